package shared

import "context"

type sessionContextKey struct{}

// ContextWithSession stores the session in context.
func ContextWithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, sess)
}

// SessionFromContext extracts the session from context.
func SessionFromContext(ctx context.Context) *Session {
	sess, _ := ctx.Value(sessionContextKey{}).(*Session)
	return sess
}

// PrincipalFromContext returns the authenticated actor, if any.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	sess := SessionFromContext(ctx)
	if sess == nil || sess.Principal.UserID == 0 {
		return Principal{}, false
	}
	return sess.Principal, true
}

// ContextWithPrincipal attaches a synthetic session carrying p. Used by
// bootstrap code and tests that run operations outside an HTTP request.
func ContextWithPrincipal(ctx context.Context, p Principal) context.Context {
	return ContextWithSession(ctx, &Session{Principal: p})
}
