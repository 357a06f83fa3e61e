package users

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pathwayfr/pathway/internal/common"
	"github.com/pathwayfr/pathway/internal/server/models"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

var userCols = []string{"id_user", "first_name", "last_name", "email", "password", "role", "is_verified", "isbanned",
	"subscription", "verification_token", "created_at", "accepted", "experience", "nbr_experience",
	"bac_average", "bac_type", "tcf_score", "localisation", "date_of_birth", "a_propos", "univ_actuel",
	"speciality", "annee_etude_actuelle"}

func userRows(id int64, email string, verified bool) *sqlmock.Rows {
	return sqlmock.NewRows(userCols).AddRow(id, "Ada", "Lovelace", email, "$2a$hash", "user", verified, false,
		false, nil, time.Now(), false, false, 0, 0.0, "unknown", 0, nil, nil, nil, nil, nil, nil)
}

const insertQ = `(?s)^INSERT\s+INTO\s+users\s*\(first_name,\s*last_name,\s*email,\s*password,\s*role,\s*is_verified\)\s*VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*\$4,\s*\$5,\s*\$6\)\s*RETURNING\s+id_user,\s*created_at\s*$`

func TestCreate_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"id_user", "created_at"}).AddRow(int64(42), time.Now())
	mock.ExpectQuery(insertQ).
		WithArgs("Ada", "Lovelace", "ada@example.com", "hash", "user", false).
		WillReturnRows(rows)

	u := &models.User{FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com", Password: "hash", Role: "user"}
	got, err := repo.Create(context.Background(), u)
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if got.ID != 42 || got.Email != "ada@example.com" {
		t.Fatalf("unexpected user: %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreate_DuplicateEmail(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(insertQ).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"})

	_, err := repo.Create(context.Background(), &models.User{Email: "ada@example.com"})
	if !errors.Is(err, common.ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
	if common.KindOf(err) != common.KindConflict {
		t.Fatalf("expected conflict kind, got %v", common.KindOf(err))
	}
}

func TestCreate_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(insertQ).WillReturnError(errors.New("db down"))

	_, err := repo.Create(context.Background(), &models.User{Email: "ada@example.com"})
	if err == nil || !regexp.MustCompile(`db error: .*db down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestGetByEmail_Found(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^SELECT\s+id_user,.*FROM\s+users\s+WHERE\s+email\s*=\s*\$1$`
	mock.ExpectQuery(q).WithArgs("ada@example.com").WillReturnRows(userRows(7, "ada@example.com", true))

	got, err := repo.GetByEmail(context.Background(), "ada@example.com")
	if err != nil {
		t.Fatalf("GetByEmail error: %v", err)
	}
	if got.ID != 7 || !got.IsVerified || got.VerificationToken != nil {
		t.Fatalf("unexpected user: %+v", got)
	}
}

func TestGetByID_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^SELECT\s+id_user,.*FROM\s+users\s+WHERE\s+id_user\s*=\s*\$1$`
	mock.ExpectQuery(q).WithArgs(int64(404)).WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), 404)
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("expected ErrorNotFound, got %v", err)
	}
}

func TestList(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	rows := userRows(1, "a@example.com", true).AddRow(int64(2), "Bob", "B", "b@example.com", "h", "admin", true, true,
		true, nil, time.Now(), false, false, 0, 12.5, "mathematiques", 400, nil, nil, nil, nil, nil, nil)
	mock.ExpectQuery(`(?s)^SELECT\s+id_user,.*FROM\s+users\s+ORDER\s+BY\s+id_user$`).WillReturnRows(rows)

	got, err := repo.List(context.Background())
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(got) != 2 || got[1].Role != "admin" || !got[1].IsBanned {
		t.Fatalf("unexpected users: %+v", got)
	}
}

func TestMarkVerified(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `^UPDATE\s+users\s+SET\s+is_verified\s*=\s*TRUE,\s*verification_token\s*=\s*NULL\s+WHERE\s+id_user\s*=\s*\$1$`
	mock.ExpectExec(q).WithArgs(int64(3)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q).WithArgs(int64(4)).WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.MarkVerified(context.Background(), 3); err != nil {
		t.Fatalf("MarkVerified error: %v", err)
	}
	if err := repo.MarkVerified(context.Background(), 4); !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("expected ErrorNotFound for missing row, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSetters_WrapDBErrors(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`^UPDATE\s+users\s+SET\s+isbanned`).WithArgs(int64(5), true).WillReturnError(errors.New("conn reset"))
	mock.ExpectExec(`^UPDATE\s+users\s+SET\s+subscription`).WithArgs(int64(5), true).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`^UPDATE\s+users\s+SET\s+password`).WithArgs(int64(5), "newhash").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`^DELETE\s+FROM\s+users`).WithArgs(int64(5)).WillReturnResult(sqlmock.NewResult(0, 1))

	ctx := context.Background()
	if err := repo.SetBanned(ctx, 5, true); err == nil || !regexp.MustCompile(`db error: .*conn reset`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
	if err := repo.SetSubscription(ctx, 5, true); err != nil {
		t.Fatalf("SetSubscription error: %v", err)
	}
	if err := repo.SetPassword(ctx, 5, "newhash"); err != nil {
		t.Fatalf("SetPassword error: %v", err)
	}
	if err := repo.Delete(ctx, 5); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUpdateProfile(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	p := &models.Profile{Accepted: true, BacType: "mathematiques", TCFScore: 450, BacAverage: 14.2, Speciality: "info", AnneeEtudeActuelle: "L2"}
	mock.ExpectExec(`(?s)^UPDATE\s+users\s+SET\s+accepted\s*=\s*\$2,.*WHERE\s+id_user\s*=\s*\$1$`).
		WithArgs(int64(9), true, "mathematiques", 450, 14.2, "info", "L2").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.UpdateProfile(context.Background(), 9, p); err != nil {
		t.Fatalf("UpdateProfile error: %v", err)
	}
}

func TestUpdateDetails(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	city := "Lyon"
	u := &models.User{ID: 9, FirstName: "Lea", LastName: "Martin", Experience: true, NbrExperience: 2,
		BacAverage: 15, BacType: "mathematiques", TCFScore: 500, Localisation: &city,
		Role: "admin", IsBanned: true, Password: "ignored"}
	mock.ExpectExec(`(?s)^UPDATE\s+users\s+SET\s+first_name\s*=\s*\$2,.*annee_etude_actuelle\s*=\s*\$15\s+WHERE\s+id_user\s*=\s*\$1$`).
		WithArgs(int64(9), "Lea", "Martin", false, true, 2, 15.0, "mathematiques", 500, &city, nil, nil, nil, nil, nil).
		WillReturnResult(sqlmock.NewResult(0, 1))
	if err := repo.UpdateDetails(context.Background(), u); err != nil {
		t.Fatalf("UpdateDetails error: %v", err)
	}

	mock.ExpectExec(`(?s)^UPDATE\s+users`).WillReturnResult(sqlmock.NewResult(0, 0))
	if err := repo.UpdateDetails(context.Background(), &models.User{ID: 404}); !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("expected ErrorNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCounts(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	since := time.Now().Add(-30 * 24 * time.Hour)
	mock.ExpectQuery(`(?s)^SELECT\s+COUNT\(\*\),.*FROM\s+users$`).
		WithArgs(since).
		WillReturnRows(sqlmock.NewRows([]string{"a", "b", "c", "d", "e"}).AddRow(10, 4, 1, 3, 2))

	c, err := repo.Counts(context.Background(), since)
	if err != nil {
		t.Fatalf("Counts error: %v", err)
	}
	if *c != (models.UserCounts{Total: 10, Premium: 4, Banned: 1, NewLast30Days: 3, PremiumLast30Days: 2}) {
		t.Fatalf("unexpected counts: %+v", c)
	}
}
