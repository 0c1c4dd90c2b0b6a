package registry

import (
	"context"

	"github.com/goliatone/go-router"
)

var userCtxKey = &contextKey{"user"}
var claimsCtxKey = &contextKey{"claims"}

type contextKey struct {
	name string
}

// WithContext sets the User in the given context
func WithContext(r context.Context, user *User) context.Context {
	return context.WithValue(r, userCtxKey, user)
}

// FromContext finds the user from the context.
func FromContext(ctx context.Context) (*User, bool) {
	raw, ok := ctx.Value(userCtxKey).(*User)
	return raw, ok
}

// WithClaimsContext sets the AuthClaims in the given context
func WithClaimsContext(r context.Context, claims AuthClaims) context.Context {
	return context.WithValue(r, claimsCtxKey, claims)
}

// GetClaims extracts the AuthClaims from the standard context
func GetClaims(ctx context.Context) (AuthClaims, bool) {
	raw, ok := ctx.Value(claimsCtxKey).(AuthClaims)
	return raw, ok
}

// GetRouterClaims extracts the AuthClaims from the router context
func GetRouterClaims(ctx router.Context, key string) (AuthClaims, bool) {
	if key == "" {
		key = "user" // Default key used by the token middleware
	}
	raw := ctx.Locals(key)
	if raw == nil {
		return nil, false
	}

	switch v := raw.(type) {
	case gateClaims:
		return v.AuthClaims, true
	case AuthClaims:
		return v, true
	default:
		return nil, false
	}
}

// CanFromRouter evaluates the access policy for the claims stashed in
// the router context.
func CanFromRouter(ctx router.Context, roles ...Role) bool {
	claims, ok := GetRouterClaims(ctx, "")
	if !ok {
		return false
	}
	return CanAccess(claims, roles, nil).Allowed()
}
