package specialities

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pathwayfr/pathway/internal/common"
	"github.com/pathwayfr/pathway/internal/dbx"
	"github.com/pathwayfr/pathway/internal/server/models"
)

const columns = `id_speciality, speciality_name, university_id, nbr_candidate_accepted_in,
	min_bac_average, min_tcf_score, min_average, created_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, s *models.Speciality) (*models.Speciality, error) {
	query := `INSERT INTO specialities
		(speciality_name, university_id, nbr_candidate_accepted_in, min_bac_average, min_tcf_score, min_average)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id_speciality, created_at`
	err := r.db.QueryRowContext(ctx, query, s.Name, s.UniversityID, s.NbrCandidateAcceptedIn,
		s.MinBacAverage, s.MinTCFScore, s.MinAverage).Scan(&s.ID, &s.CreatedAt)
	if err != nil {
		if dbx.IsForeignKeyViolation(err) {
			return nil, common.Validation("unknown university_id %d", derefID(s.UniversityID))
		}
		if dbx.IsCheckViolation(err) {
			return nil, common.Validation("speciality %q: threshold out of range", s.Name)
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return s, nil
}

func derefID(id *int64) int64 {
	if id == nil {
		return 0
	}
	return *id
}

func scan(row interface{ Scan(...any) error }) (*models.Speciality, error) {
	s := &models.Speciality{}
	var minBac sql.NullFloat64
	if err := row.Scan(&s.ID, &s.Name, &s.UniversityID, &s.NbrCandidateAcceptedIn, &minBac, &s.MinTCFScore, &s.MinAverage, &s.CreatedAt); err != nil {
		return nil, err
	}
	s.MinBacAverage = minBac.Float64
	return s, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*models.Speciality, error) {
	return r.getOne(ctx, `SELECT `+columns+` FROM specialities WHERE id_speciality = $1`, id)
}

func (r *PostgresRepository) GetByName(ctx context.Context, name string) (*models.Speciality, error) {
	return r.getOne(ctx, `SELECT `+columns+` FROM specialities WHERE speciality_name = $1 ORDER BY id_speciality LIMIT 1`, name)
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, arg any) (*models.Speciality, error) {
	s, err := scan(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return s, nil
}

func (r *PostgresRepository) List(ctx context.Context) ([]*models.Speciality, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+columns+` FROM specialities ORDER BY id_speciality`)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.Speciality
	for rows.Next() {
		s, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}
