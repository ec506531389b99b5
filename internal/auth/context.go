// Package auth carries the authenticated caller through a request context.
package auth

import "context"

type contextKey struct{}

// Identity is the caller resolved from a bearer token.
type Identity struct {
	UserID int64
	Name   string
}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(contextKey{}).(Identity)
	return id, ok
}

// UserID returns 0 for unauthenticated contexts.
func UserID(ctx context.Context) int64 {
	id, ok := FromContext(ctx)
	if !ok {
		return 0
	}
	return id.UserID
}
