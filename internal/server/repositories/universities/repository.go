// Package universities persists the university catalog.
package universities

import (
	"context"

	"github.com/pathwayfr/pathway/internal/server/models"
)

// Column names a universities column usable for ordering or filtering.
type Column string

const (
	ColumnID              Column = "id_university"
	ColumnName            Column = "univ_name"
	ColumnCity            Column = "city"
	ColumnSpecialitiesNbr Column = "specialities_nbr"
	ColumnAccepted        Column = "nbr_candidates_accepted"
	ColumnCreatedAt       Column = "created_at"
)

// Sortable reports whether c may appear in ORDER BY.
func (c Column) Sortable() bool {
	switch c {
	case ColumnID, ColumnName, ColumnCity, ColumnSpecialitiesNbr, ColumnAccepted, ColumnCreatedAt:
		return true
	}
	return false
}

// Filterable reports whether c is a text column accepting substring filters.
func (c Column) Filterable() bool {
	return c == ColumnName || c == ColumnCity
}

// PageQuery selects one page of the universities whose id is in IDs.
type PageQuery struct {
	IDs []int64
	// Search matches name or city as a case-insensitive substring.
	Search string
	// Filters holds one case-insensitive substring per text column.
	Filters map[Column]string
	SortBy  Column
	Desc    bool
	Limit   int
	Offset  int
}

type Repository interface {
	Create(ctx context.Context, u *models.University) (*models.University, error)
	GetByID(ctx context.Context, id int64) (*models.University, error)
	// GetByName matches the name exactly; the lowest id wins on duplicates.
	GetByName(ctx context.Context, name string) (*models.University, error)
	FindByIDs(ctx context.Context, ids []int64) ([]*models.University, error)
	// Page returns the requested slice and the number of matching rows.
	Page(ctx context.Context, q PageQuery) ([]*models.University, int, error)
	List(ctx context.Context) ([]*models.University, error)
	ListByCity(ctx context.Context, city string) ([]*models.University, error)
	// Search matches name and city case-insensitively as substrings; empty
	// filters match everything.
	Search(ctx context.Context, name, city string) ([]*models.University, error)
	// CountExisting returns how many of ids are present.
	CountExisting(ctx context.Context, ids []int64) (int, error)
	Update(ctx context.Context, u *models.University) error
	Delete(ctx context.Context, id int64) error
}
