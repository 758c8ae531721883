// Package screening validates free-text input for SQL injection patterns
// before it reaches the persistence layer. All queries are parameterized;
// screening exists to surface probing attempts to the security audit trail,
// not as the primary defense.
package screening

import (
	libinjection "github.com/corazawaf/libinjection-go"
)

// CheckResult contains the result of an injection check on a field value.
type CheckResult struct {
	IsSQLi      bool   // True if SQL injection pattern detected
	Fingerprint string // libinjection fingerprint of the detected pattern
	FieldName   string // Name of the field that failed the check
	FieldValue  string // The value that was checked
}

// CheckField uses libinjection to detect SQL injection patterns in a
// free-text field.
//
// Returns nil if no injection is detected, or a CheckResult with details
// about the detected pattern.
//
// Example:
//
//	// Safe value - no injection
//	result := CheckField("reason", "material certification pending")
//	// result == nil
//
//	// Injection attempt detected
//	result := CheckField("reason", "'; DROP TABLE holds--")
//	// result.IsSQLi == true
//	// result.Fingerprint == "s&1c" (or similar)
func CheckField(fieldName, value string) *CheckResult {
	if value == "" {
		return nil
	}

	isSQLi, fingerprint := libinjection.IsSQLi(value)
	if isSQLi {
		return &CheckResult{
			IsSQLi:      true,
			Fingerprint: string(fingerprint),
			FieldName:   fieldName,
			FieldValue:  value,
		}
	}

	return nil
}

// CheckFields validates a set of free-text fields for SQL injection attempts.
//
// Returns a slice of CheckResult for each field that failed the check.
// Returns an empty slice if all fields are clean.
//
// Example:
//
//	results := CheckFields(map[string]string{
//	    "product_code": "WIDGET-1",             // clean
//	    "reason":       "'; DROP TABLE holds--", // injection!
//	})
//	// len(results) == 1
//	// results[0].FieldName == "reason"
func CheckFields(fields map[string]string) []*CheckResult {
	var results []*CheckResult
	for name, value := range fields {
		if result := CheckField(name, value); result != nil {
			results = append(results, result)
		}
	}
	return results
}
