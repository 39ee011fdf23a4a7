package auth

import (
	"context"
	"errors"
)

var (
	// ErrMissingKey is returned when a request carries no admin key.
	ErrMissingKey = errors.New("no admin key found")

	// ErrInvalidKey is returned for keys that are not configured.
	ErrInvalidKey = errors.New("invalid admin key")

	// ErrKeyDisabled is returned for configured keys that are disabled.
	ErrKeyDisabled = errors.New("admin key disabled")
)

// KeyInfo identifies an admin key. The secret itself is never kept in a
// KeyInfo.
type KeyInfo struct {
	ID      string
	Enabled bool
}

// KeyValidator validates admin keys.
type KeyValidator interface {
	Validate(key string) (*KeyInfo, error)
}

type contextKey string

// #nosec G101 - This is a context key constant, not a credential
const keyInfoKey contextKey = "admin_key_info"

// WithKeyInfo returns a context carrying the authenticated key.
func WithKeyInfo(ctx context.Context, info *KeyInfo) context.Context {
	return context.WithValue(ctx, keyInfoKey, info)
}

// GetKeyInfo retrieves the authenticated key from the request context.
func GetKeyInfo(ctx context.Context) (*KeyInfo, bool) {
	info, ok := ctx.Value(keyInfoKey).(*KeyInfo)
	return info, ok
}
