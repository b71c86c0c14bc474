package auth

import (
	"context"
)

var authCtxKey = &contextKey{"auth"}

type contextKey struct {
	name string
}

// WithContext sets the AuthContext in the given context
func WithContext(r context.Context, ac *AuthContext) context.Context {
	return context.WithValue(r, authCtxKey, ac)
}

// FromContext finds the AuthContext from the context.
func FromContext(ctx context.Context) (*AuthContext, bool) {
	raw, ok := ctx.Value(authCtxKey).(*AuthContext)
	return raw, ok
}
