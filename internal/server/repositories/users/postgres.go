package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/pathwayfr/pathway/internal/common"
	"github.com/pathwayfr/pathway/internal/dbx"
	"github.com/pathwayfr/pathway/internal/server/models"
)

const userColumns = `id_user, first_name, last_name, email, password, role, is_verified, isbanned,
	subscription, verification_token, created_at, accepted, experience, nbr_experience,
	bac_average, bac_type, tcf_score, localisation, date_of_birth, a_propos, univ_actuel,
	speciality, annee_etude_actuelle`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner) (*models.User, error) {
	u := &models.User{}
	err := row.Scan(&u.ID, &u.FirstName, &u.LastName, &u.Email, &u.Password, &u.Role, &u.IsVerified,
		&u.IsBanned, &u.Subscription, &u.VerificationToken, &u.CreatedAt, &u.Accepted, &u.Experience,
		&u.NbrExperience, &u.BacAverage, &u.BacType, &u.TCFScore, &u.Localisation, &u.DateOfBirth,
		&u.APropos, &u.UnivActuel, &u.Speciality, &u.AnneeEtudeActuelle)
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	query :=
		`INSERT INTO users (first_name, last_name, email, password, role, is_verified)
         VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id_user, created_at
		 `

	err := r.db.QueryRowContext(ctx, query,
		user.FirstName, user.LastName, user.Email, user.Password, user.Role, user.IsVerified).Scan(&user.ID, &user.CreatedAt)

	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return nil, common.ErrEmailTaken
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id_user = $1`
	return r.getOne(ctx, query, id)
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return r.getOne(ctx, query, email)
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, arg any) (*models.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return user, nil
}

func (r *PostgresRepository) List(ctx context.Context) ([]*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY id_user`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

func (r *PostgresRepository) SetVerificationToken(ctx context.Context, id int64, token *string) error {
	return r.exec(ctx, `UPDATE users SET verification_token = $2 WHERE id_user = $1`, id, token)
}

func (r *PostgresRepository) MarkVerified(ctx context.Context, id int64) error {
	return r.exec(ctx, `UPDATE users SET is_verified = TRUE, verification_token = NULL WHERE id_user = $1`, id)
}

func (r *PostgresRepository) SetPassword(ctx context.Context, id int64, hash string) error {
	return r.exec(ctx, `UPDATE users SET password = $2 WHERE id_user = $1`, id, hash)
}

func (r *PostgresRepository) SetBanned(ctx context.Context, id int64, banned bool) error {
	return r.exec(ctx, `UPDATE users SET isbanned = $2 WHERE id_user = $1`, id, banned)
}

func (r *PostgresRepository) SetSubscription(ctx context.Context, id int64, premium bool) error {
	return r.exec(ctx, `UPDATE users SET subscription = $2 WHERE id_user = $1`, id, premium)
}

func (r *PostgresRepository) UpdateProfile(ctx context.Context, id int64, p *models.Profile) error {
	query := `UPDATE users
		SET accepted = $2, bac_type = $3, tcf_score = $4, bac_average = $5, speciality = $6, annee_etude_actuelle = $7
		WHERE id_user = $1`
	return r.exec(ctx, query, id, p.Accepted, p.BacType, p.TCFScore, p.BacAverage, p.Speciality, p.AnneeEtudeActuelle)
}

func (r *PostgresRepository) UpdateDetails(ctx context.Context, u *models.User) error {
	query := `UPDATE users
		SET first_name = $2, last_name = $3, accepted = $4, experience = $5, nbr_experience = $6,
		    bac_average = $7, bac_type = $8, tcf_score = $9, localisation = $10, date_of_birth = $11,
		    a_propos = $12, univ_actuel = $13, speciality = $14, annee_etude_actuelle = $15
		WHERE id_user = $1`
	return r.exec(ctx, query, u.ID, u.FirstName, u.LastName, u.Accepted, u.Experience, u.NbrExperience,
		u.BacAverage, u.BacType, u.TCFScore, u.Localisation, u.DateOfBirth,
		u.APropos, u.UnivActuel, u.Speciality, u.AnneeEtudeActuelle)
}

func (r *PostgresRepository) Delete(ctx context.Context, id int64) error {
	return r.exec(ctx, `DELETE FROM users WHERE id_user = $1`, id)
}

// exec runs a single-row mutation and maps zero affected rows to ErrorNotFound.
func (r *PostgresRepository) exec(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
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

func (r *PostgresRepository) Counts(ctx context.Context, since time.Time) (*models.UserCounts, error) {
	query := `SELECT
		COUNT(*),
		COUNT(*) FILTER (WHERE subscription),
		COUNT(*) FILTER (WHERE isbanned),
		COUNT(*) FILTER (WHERE created_at >= $1),
		COUNT(*) FILTER (WHERE subscription AND created_at >= $1)
		FROM users`

	c := &models.UserCounts{}
	if err := r.db.QueryRowContext(ctx, query, since).Scan(&c.Total, &c.Premium, &c.Banned, &c.NewLast30Days, &c.PremiumLast30Days); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return c, nil
}
