// Package grades persists yearly averages per user.
package grades

import (
	"context"

	"github.com/pathwayfr/pathway/internal/server/models"
)

type Repository interface {
	// Upsert inserts the grade or replaces the average of the existing
	// (user, level) row.
	Upsert(ctx context.Context, g *models.Grade) error
	ListByUser(ctx context.Context, userID int64) ([]*models.Grade, error)
}
