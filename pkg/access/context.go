package access

import (
	"context"
	"errors"
)

type contextKey string

const (
	// ScopeKey is the context key for storing the resolved access scope.
	ScopeKey contextKey = "accessScope"
)

// ErrNoScope is returned when a scoped operation runs without a resolved
// scope in context. Repositories treat this as fatal; there is no
// fall-open default.
var ErrNoScope = errors.New("no access scope in context")

// GetScope retrieves the resolved access scope from context.
func GetScope(ctx context.Context) (*Scope, error) {
	scope, ok := ctx.Value(ScopeKey).(*Scope)
	if !ok || scope == nil {
		return nil, ErrNoScope
	}
	return scope, nil
}

// SetScope stores the resolved access scope in context.
func SetScope(ctx context.Context, scope *Scope) context.Context {
	return context.WithValue(ctx, ScopeKey, scope)
}
