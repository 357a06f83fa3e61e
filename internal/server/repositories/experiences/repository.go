// Package experiences persists shared admission experiences and their
// university links.
package experiences

import (
	"context"

	"github.com/pathwayfr/pathway/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, e *models.Experience) (*models.Experience, error)
	LinkUniversities(ctx context.Context, experienceID int64, universityIDs []int64) error
	GetByID(ctx context.Context, id int64) (*models.Experience, error)
	ListByStatus(ctx context.Context, status string) ([]*models.Experience, error)
	SetStatus(ctx context.Context, id int64, status string) error
	Delete(ctx context.Context, id int64) error
	// Counts fills every ExperienceStats field except ApprovalRate.
	Counts(ctx context.Context) (*models.ExperienceStats, error)
}
