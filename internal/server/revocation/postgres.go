package revocation

import (
	"context"
	"time"

	"github.com/pathwayfr/pathway/internal/server/repositories/revokedtokens"
)

// PostgresRegistry persists revocations in the revoked_tokens table.
type PostgresRegistry struct {
	repo revokedtokens.Repository
	now  func() time.Time
}

func NewPostgresRegistry(repo revokedtokens.Repository) *PostgresRegistry {
	return &PostgresRegistry{repo: repo, now: time.Now}
}

func (r *PostgresRegistry) Revoke(ctx context.Context, jti string, expiresAt time.Time) error {
	return r.repo.Create(ctx, jti, expiresAt)
}

func (r *PostgresRegistry) IsRevoked(ctx context.Context, jti string) (bool, error) {
	return r.repo.Exists(ctx, jti, r.now())
}

func (r *PostgresRegistry) Prune(ctx context.Context) (int64, error) {
	return r.repo.DeleteExpired(ctx, r.now())
}
