// Package revocation tracks revoked token identifiers (jti) until the
// tokens they belong to expire.
package revocation

import (
	"context"
	"time"
)

// Registry is consulted on every access and refresh token validation.
type Registry interface {
	// Revoke marks jti as revoked until expiresAt. Revoking twice is not an error.
	Revoke(ctx context.Context, jti string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// Pruner is implemented by registries that need expired entries purged
// periodically.
type Pruner interface {
	Prune(ctx context.Context) (int64, error)
}
