// Package specialities persists the speciality catalog.
package specialities

import (
	"context"

	"github.com/pathwayfr/pathway/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, s *models.Speciality) (*models.Speciality, error)
	GetByID(ctx context.Context, id int64) (*models.Speciality, error)
	GetByName(ctx context.Context, name string) (*models.Speciality, error)
	List(ctx context.Context) ([]*models.Speciality, error)
}
