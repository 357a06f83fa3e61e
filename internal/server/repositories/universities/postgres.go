package universities

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/pathwayfr/pathway/internal/common"
	"github.com/pathwayfr/pathway/internal/dbx"
	"github.com/pathwayfr/pathway/internal/server/models"
)

const columns = `id_university, univ_name, city, specialities_nbr, nbr_candidates_accepted, created_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, u *models.University) (*models.University, error) {
	query := `INSERT INTO universities (univ_name, city) VALUES ($1, $2) RETURNING id_university, created_at`
	if err := r.db.QueryRowContext(ctx, query, u.Name, u.City).Scan(&u.ID, &u.CreatedAt); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return u, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*models.University, error) {
	query := `SELECT ` + columns + ` FROM universities WHERE id_university = $1`
	u := &models.University{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(&u.ID, &u.Name, &u.City, &u.SpecialitiesNbr, &u.NbrCandidatesAccepted, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return u, nil
}

func (r *PostgresRepository) GetByName(ctx context.Context, name string) (*models.University, error) {
	query := `SELECT ` + columns + ` FROM universities WHERE univ_name = $1 ORDER BY id_university LIMIT 1`
	u := &models.University{}
	err := r.db.QueryRowContext(ctx, query, name).Scan(&u.ID, &u.Name, &u.City, &u.SpecialitiesNbr, &u.NbrCandidatesAccepted, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return u, nil
}

func (r *PostgresRepository) FindByIDs(ctx context.Context, ids []int64) ([]*models.University, error) {
	return r.query(ctx, `SELECT `+columns+` FROM universities WHERE id_university = ANY($1) ORDER BY id_university`, ids)
}

func (r *PostgresRepository) Page(ctx context.Context, q PageQuery) ([]*models.University, int, error) {
	if !q.SortBy.Sortable() {
		return nil, 0, fmt.Errorf("unsupported sort column %q", q.SortBy)
	}

	args := []any{q.IDs}
	where := []string{"id_university = ANY($1)"}
	if q.Search != "" {
		args = append(args, q.Search)
		n := len(args)
		where = append(where, fmt.Sprintf("(univ_name ILIKE '%%' || $%d || '%%' OR city ILIKE '%%' || $%d || '%%')", n, n))
	}

	cols := make([]string, 0, len(q.Filters))
	for c := range q.Filters {
		if !c.Filterable() {
			return nil, 0, fmt.Errorf("unsupported filter column %q", c)
		}
		cols = append(cols, string(c))
	}
	sort.Strings(cols)
	for _, c := range cols {
		args = append(args, q.Filters[Column(c)])
		where = append(where, fmt.Sprintf("%s ILIKE '%%' || $%d || '%%'", c, len(args)))
	}

	order := "ASC"
	if q.Desc {
		order = "DESC"
	}
	args = append(args, q.Limit, q.Offset)
	query := fmt.Sprintf(`SELECT %s, COUNT(*) OVER() FROM universities WHERE %s ORDER BY %s %s, id_university LIMIT $%d OFFSET $%d`,
		columns, strings.Join(where, " AND "), q.SortBy, order, len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var (
		result []*models.University
		total  int
	)
	for rows.Next() {
		u := &models.University{}
		if err := rows.Scan(&u.ID, &u.Name, &u.City, &u.SpecialitiesNbr, &u.NbrCandidatesAccepted, &u.CreatedAt, &total); err != nil {
			return nil, 0, fmt.Errorf("db error: %w", err)
		}
		result = append(result, u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("db error: %w", err)
	}
	return result, total, nil
}

func (r *PostgresRepository) List(ctx context.Context) ([]*models.University, error) {
	return r.query(ctx, `SELECT `+columns+` FROM universities ORDER BY id_university`)
}

func (r *PostgresRepository) ListByCity(ctx context.Context, city string) ([]*models.University, error) {
	return r.query(ctx, `SELECT `+columns+` FROM universities WHERE city = $1 ORDER BY id_university`, city)
}

func (r *PostgresRepository) Search(ctx context.Context, name, city string) ([]*models.University, error) {
	query := `SELECT ` + columns + ` FROM universities
		WHERE ($1 = '' OR univ_name ILIKE '%' || $1 || '%')
		  AND ($2 = '' OR city ILIKE '%' || $2 || '%')
		ORDER BY id_university`
	return r.query(ctx, query, name, city)
}

func (r *PostgresRepository) query(ctx context.Context, query string, args ...any) ([]*models.University, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.University
	for rows.Next() {
		u := &models.University{}
		if err := rows.Scan(&u.ID, &u.Name, &u.City, &u.SpecialitiesNbr, &u.NbrCandidatesAccepted, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

func (r *PostgresRepository) CountExisting(ctx context.Context, ids []int64) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM universities WHERE id_university = ANY($1)`, ids).Scan(&n); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) Update(ctx context.Context, u *models.University) error {
	query := `UPDATE universities
		SET univ_name = $2, city = $3, specialities_nbr = $4, nbr_candidates_accepted = $5
		WHERE id_university = $1`
	res, err := r.db.ExecContext(ctx, query, u.ID, u.Name, u.City, u.SpecialitiesNbr, u.NbrCandidatesAccepted)
	return affectedOne(res, err)
}

func (r *PostgresRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM universities WHERE id_university = $1`, id)
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
