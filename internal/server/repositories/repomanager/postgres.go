// Package repomanager provides a concrete RepositoryManager for PostgreSQL,
// wiring together repository constructors and database migrations (via goose).
package repomanager

import (
	"context"
	"database/sql"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pathwayfr/pathway/internal/dbx"
	"github.com/pathwayfr/pathway/internal/server/migrations"
	"github.com/pathwayfr/pathway/internal/server/repositories/experiences"
	"github.com/pathwayfr/pathway/internal/server/repositories/grades"
	"github.com/pathwayfr/pathway/internal/server/repositories/revokedtokens"
	"github.com/pathwayfr/pathway/internal/server/repositories/specialities"
	"github.com/pathwayfr/pathway/internal/server/repositories/universities"
	"github.com/pathwayfr/pathway/internal/server/repositories/users"
	"github.com/pressly/goose/v3"
)

// PostgresRepositoryManager vends PostgreSQL-backed repository implementations
// and exposes a schema migration hook.
type PostgresRepositoryManager struct{}

// Users returns a users.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Users(db dbx.DBTX) users.Repository {
	return users.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Universities(db dbx.DBTX) universities.Repository {
	return universities.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Specialities(db dbx.DBTX) specialities.Repository {
	return specialities.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Experiences(db dbx.DBTX) experiences.Repository {
	return experiences.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Grades(db dbx.DBTX) grades.Repository {
	return grades.NewPostgresRepository(db)
}

// RevokedTokens returns the store behind the postgres revocation backend.
func (m *PostgresRepositoryManager) RevokedTokens(db dbx.DBTX) revokedtokens.Repository {
	return revokedtokens.NewPostgresRepository(db)
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations sets up goose with the embedded migrations and runs them
// against the provided database connection.
func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	return gooseUpContext(ctx, db, ".")
}

// NewPostgresRepositoryManager constructs a PostgreSQL-backed RepositoryManager.
func NewPostgresRepositoryManager() RepositoryManager {
	return &PostgresRepositoryManager{}
}
