package grades

import (
	"context"
	"fmt"

	"github.com/pathwayfr/pathway/internal/common"
	"github.com/pathwayfr/pathway/internal/dbx"
	"github.com/pathwayfr/pathway/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Upsert(ctx context.Context, g *models.Grade) error {
	query := `
		INSERT INTO grades (user_id, level, average)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, level)
		DO UPDATE SET average = EXCLUDED.average
	`
	if _, err := r.db.ExecContext(ctx, query, g.UserID, g.Level, g.Average); err != nil {
		if dbx.IsCheckViolation(err) {
			return common.Validation("average must be between 0 and 20")
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ListByUser(ctx context.Context, userID int64) ([]*models.Grade, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT level, average FROM grades WHERE user_id = $1 ORDER BY level`, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.Grade
	for rows.Next() {
		g := &models.Grade{UserID: userID}
		if err := rows.Scan(&g.Level, &g.Average); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}
