package auth

import "context"

type authDataContextKey struct{}

// ContextWithData attaches validated authentication data to the context.
func ContextWithData(ctx context.Context, data AuthenticationData) context.Context {
	if data == nil {
		return ctx
	}
	return context.WithValue(ctx, authDataContextKey{}, data)
}

// DataFromContext extracts the authentication data placed by the
// authentication middleware.
func DataFromContext(ctx context.Context) (AuthenticationData, bool) {
	if ctx == nil {
		return nil, false
	}
	v, ok := ctx.Value(authDataContextKey{}).(AuthenticationData)
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}
