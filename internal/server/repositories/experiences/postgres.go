package experiences

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/pathwayfr/pathway/internal/common"
	"github.com/pathwayfr/pathway/internal/dbx"
	"github.com/pathwayfr/pathway/internal/server/models"
)

const columns = `e.id_experience, COALESCE(e.user_id, 0), e.speciality_id, e.bac_type, e.bac_average, e.comment,
	e.application_year, e.study_year_at_application_time, e.average_each_year, e.level_tcf,
	e.candidature_year, e.is_validated, e.created_at,
	COALESCE((SELECT json_agg(eu.university_id ORDER BY eu.university_id) FROM experience_university eu
	          WHERE eu.experience_id = e.id_experience), '[]')`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, e *models.Experience) (*models.Experience, error) {
	query := `INSERT INTO experiences
		(user_id, speciality_id, bac_type, bac_average, comment, application_year,
		 study_year_at_application_time, average_each_year, level_tcf, candidature_year, is_validated)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id_experience, created_at`

	var avg any
	if len(e.AverageEachYear) > 0 {
		avg = string(e.AverageEachYear)
	}
	err := r.db.QueryRowContext(ctx, query, e.UserID, e.SpecialityID, e.BacType, e.BacAverage, e.Comment,
		e.ApplicationYear, e.StudyYearAtApplicationTime, avg, e.LevelTCF, e.CandidatureYear, e.Status).
		Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return e, nil
}

func (r *PostgresRepository) LinkUniversities(ctx context.Context, experienceID int64, universityIDs []int64) error {
	query := `INSERT INTO experience_university (experience_id, university_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`
	for _, id := range universityIDs {
		if _, err := r.db.ExecContext(ctx, query, experienceID, id); err != nil {
			return fmt.Errorf("db error: %w", err)
		}
	}
	return nil
}

func scan(row interface{ Scan(...any) error }) (*models.Experience, error) {
	e := &models.Experience{}
	var avg, unis []byte
	if err := row.Scan(&e.ID, &e.UserID, &e.SpecialityID, &e.BacType, &e.BacAverage, &e.Comment,
		&e.ApplicationYear, &e.StudyYearAtApplicationTime, &avg, &e.LevelTCF,
		&e.CandidatureYear, &e.Status, &e.CreatedAt, &unis); err != nil {
		return nil, err
	}
	if len(avg) > 0 {
		e.AverageEachYear = json.RawMessage(avg)
	}
	if err := json.Unmarshal(unis, &e.UniversityIDs); err != nil {
		return nil, fmt.Errorf("decode university ids: %w", err)
	}
	return e, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*models.Experience, error) {
	query := `SELECT ` + columns + ` FROM experiences e WHERE e.id_experience = $1`
	e, err := scan(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return e, nil
}

func (r *PostgresRepository) ListByStatus(ctx context.Context, status string) ([]*models.Experience, error) {
	query := `SELECT ` + columns + ` FROM experiences e WHERE e.is_validated = $1 ORDER BY e.id_experience`
	rows, err := r.db.QueryContext(ctx, query, status)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.Experience
	for rows.Next() {
		e, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

func (r *PostgresRepository) SetStatus(ctx context.Context, id int64, status string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE experiences SET is_validated = $2 WHERE id_experience = $1`, id, status)
	return affectedOne(res, err)
}

func (r *PostgresRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM experiences WHERE id_experience = $1`, id)
	return affectedOne(res, err)
}

func affectedOne(res sql.Result, err error) error {
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) Counts(ctx context.Context) (*models.ExperienceStats, error) {
	query := `SELECT
		COUNT(*),
		COUNT(*) FILTER (WHERE is_validated = 'approved'),
		COUNT(*) FILTER (WHERE is_validated = 'rejected'),
		COUNT(*) FILTER (WHERE is_validated = 'pending')
		FROM experiences`
	s := &models.ExperienceStats{}
	if err := r.db.QueryRowContext(ctx, query).Scan(&s.Total, &s.Approved, &s.Rejected, &s.Pending); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return s, nil
}
