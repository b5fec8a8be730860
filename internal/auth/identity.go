package auth

import "context"

type identityKey struct{}

// WithIdentity returns a copy of ctx carrying the verified claims of the
// current request.
func WithIdentity(ctx context.Context, claims Claims) context.Context {
	return context.WithValue(ctx, identityKey{}, claims)
}

func IdentityFrom(ctx context.Context) (Claims, bool) {
	claims, ok := ctx.Value(identityKey{}).(Claims)
	return claims, ok
}
