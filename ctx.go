package auth

import (
	"context"
)

var sessionCtxKey = &contextKey{"session"}

type contextKey struct {
	name string
}

// WithSession sets the Session in the given context
func WithSession(ctx context.Context, session *Session) context.Context {
	return context.WithValue(ctx, sessionCtxKey, session)
}

// SessionFromContext finds the session in the context.
func SessionFromContext(ctx context.Context) (*Session, bool) {
	if ctx == nil {
		return nil, false
	}
	raw, ok := ctx.Value(sessionCtxKey).(*Session)
	if !ok || raw == nil {
		return nil, false
	}
	return raw, true
}

// Can is a convenience function to check a permission directly from the
// standard context.
func Can(ctx context.Context, permission Permission) bool {
	session, ok := SessionFromContext(ctx)
	if !ok {
		return false
	}
	return RequirePermission(session, permission) == nil
}
