package auth

import "context"

type ctxKey struct{}

// NewContext attaches the authenticated key to ctx.
func NewContext(ctx context.Context, key APIKey) context.Context {
	return context.WithValue(ctx, ctxKey{}, key)
}

// FromContext returns the key attached by NewContext.
func FromContext(ctx context.Context) (APIKey, bool) {
	key, ok := ctx.Value(ctxKey{}).(APIKey)
	return key, ok
}

// IsAdmin reports whether ctx carries an admin key. It satisfies the reward
// engine's authorization predicate.
func IsAdmin(ctx context.Context) bool {
	key, ok := FromContext(ctx)
	return ok && key.IsAdmin()
}

// System returns a context authenticated as an internal admin caller, used by
// scheduled jobs.
func System(ctx context.Context, label string) context.Context {
	return NewContext(ctx, APIKey{Label: label, Role: RoleAdmin, Source: "system"})
}
