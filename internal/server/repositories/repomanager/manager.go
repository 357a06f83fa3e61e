package repomanager

import (
	"context"
	"database/sql"

	"github.com/pathwayfr/pathway/internal/dbx"
	"github.com/pathwayfr/pathway/internal/server/repositories/experiences"
	"github.com/pathwayfr/pathway/internal/server/repositories/grades"
	"github.com/pathwayfr/pathway/internal/server/repositories/revokedtokens"
	"github.com/pathwayfr/pathway/internal/server/repositories/specialities"
	"github.com/pathwayfr/pathway/internal/server/repositories/universities"
	"github.com/pathwayfr/pathway/internal/server/repositories/users"
)

// RepositoryManager vends repositories bound to either the pool or an open
// transaction, so services can compose several writes under one dbx.WithTx.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Universities(db dbx.DBTX) universities.Repository
	Specialities(db dbx.DBTX) specialities.Repository
	Experiences(db dbx.DBTX) experiences.Repository
	Grades(db dbx.DBTX) grades.Repository
	RevokedTokens(db dbx.DBTX) revokedtokens.Repository
}
