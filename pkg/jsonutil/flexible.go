// Package jsonutil handles loosely typed JSON from shop floor clients.
// Tablet apps and line gateways post counts and hours as either JSON numbers
// or numeric strings depending on their export path; these types accept both.
package jsonutil

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// FlexibleInt is an int that unmarshals from a JSON number or a numeric
// string. "120", 120 and 120.0 all decode to 120; null decodes to zero.
type FlexibleInt int

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexibleInt) UnmarshalJSON(data []byte) error {
	s, empty := normalizeNumeric(data)
	if empty {
		*f = 0
		return nil
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid integer %q", string(data))
	}
	if v != math.Trunc(v) {
		return fmt.Errorf("expected integer, got %q", string(data))
	}

	*f = FlexibleInt(int(v))
	return nil
}

// FlexibleFloat is a float64 that unmarshals from a JSON number or a numeric
// string. Null and empty strings decode to zero.
type FlexibleFloat float64

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexibleFloat) UnmarshalJSON(data []byte) error {
	s, empty := normalizeNumeric(data)
	if empty {
		*f = 0
		return nil
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid number %q", string(data))
	}

	*f = FlexibleFloat(v)
	return nil
}

// Float64Ptr returns the value as a *float64, or nil for a nil receiver.
// Used for optional fields where absent and zero mean different things.
func (f *FlexibleFloat) Float64Ptr() *float64 {
	if f == nil {
		return nil
	}
	v := float64(*f)
	return &v
}

// normalizeNumeric strips quotes and whitespace from a raw JSON value.
// The second return is true when the value is null or an empty string.
func normalizeNumeric(data []byte) (string, bool) {
	s := strings.TrimSpace(string(data))
	if s == "" || s == "null" {
		return "", true
	}
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = strings.TrimSpace(s[1 : len(s)-1])
		if s == "" {
			return "", true
		}
	}
	return s, false
}
