package auth

import "context"

type authnContextKey struct{}

// WithAuthentication returns a context carrying the authenticated principal.
func WithAuthentication(ctx context.Context, authn *Authentication) context.Context {
	return context.WithValue(ctx, authnContextKey{}, authn)
}

// FromContext returns the authenticated principal, or nil if none is set.
func FromContext(ctx context.Context) *Authentication {
	authn, _ := ctx.Value(authnContextKey{}).(*Authentication)
	return authn
}
