// Package revokedtokens declares the persistent store of revoked token
// identifiers used by the postgres revocation backend.
package revokedtokens

import (
	"context"
	"time"
)

// Repository records revoked jti values until their token would have expired.
type Repository interface {
	// Create stores jti; inserting an already revoked jti is not an error.
	Create(ctx context.Context, jti string, expiresAt time.Time) error

	// Exists reports whether jti is revoked and not yet past its expiry.
	Exists(ctx context.Context, jti string, now time.Time) (bool, error)

	// DeleteExpired purges rows whose expiry is before now and returns how
	// many were removed.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
