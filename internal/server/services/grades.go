package services

import (
	"context"
	"database/sql"
	"strings"

	"github.com/pathwayfr/pathway/internal/common"
	"github.com/pathwayfr/pathway/internal/dbx"
	"github.com/pathwayfr/pathway/internal/server/models"
	"github.com/pathwayfr/pathway/internal/server/repositories/repomanager"
)

type GradeInput struct {
	Level   string   `json:"level"`
	Average *float64 `json:"average"`
}

type GradeService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
}

func NewGradeService(db *sql.DB, m repomanager.RepositoryManager) *GradeService {
	return &GradeService{db: db, repomanager: m}
}

// Save upserts every grade by (user, level) in one transaction.
func (s *GradeService) Save(ctx context.Context, userID int64, in []GradeInput) error {
	if len(in) == 0 {
		return common.Validation("grades must be a non-empty list")
	}
	rows := make([]*models.Grade, 0, len(in))
	for i, g := range in {
		level := strings.TrimSpace(g.Level)
		if level == "" || g.Average == nil {
			return common.Validation("grade %d: level and average are required", i)
		}
		if *g.Average < 0 || *g.Average > 20 {
			return common.Validation("grade %d: average must be between 0 and 20", i)
		}
		rows = append(rows, &models.Grade{UserID: userID, Level: level, Average: *g.Average})
	}

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Grades(tx)
		for _, g := range rows {
			if err := repo.Upsert(ctx, g); err != nil {
				return err
			}
		}
		return nil
	})
	return classify("save grades", err)
}

func (s *GradeService) List(ctx context.Context, userID int64) ([]*models.Grade, error) {
	list, err := s.repomanager.Grades(s.db).ListByUser(ctx, userID)
	if err != nil {
		return nil, classify("list grades", err)
	}
	if list == nil {
		list = []*models.Grade{}
	}
	return list, nil
}
