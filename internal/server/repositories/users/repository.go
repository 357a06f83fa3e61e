// Package users declares the credential store contract and its PostgreSQL
// implementation.
package users

import (
	"context"
	"time"

	"github.com/pathwayfr/pathway/internal/server/models"
)

// Repository defines persistence operations on user accounts. Lookups return
// common.ErrorNotFound for absent rows and Create returns
// common.ErrEmailTaken when the email is already registered.
type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	List(ctx context.Context) ([]*models.User, error)

	SetVerificationToken(ctx context.Context, id int64, token *string) error
	// MarkVerified sets is_verified and clears verification_token.
	MarkVerified(ctx context.Context, id int64) error
	SetPassword(ctx context.Context, id int64, hash string) error
	SetBanned(ctx context.Context, id int64, banned bool) error
	SetSubscription(ctx context.Context, id int64, premium bool) error
	UpdateProfile(ctx context.Context, id int64, p *models.Profile) error
	// UpdateDetails writes the self-editable columns of u: names and the
	// academic profile. Email, role, flags and password are left alone.
	UpdateDetails(ctx context.Context, u *models.User) error
	Delete(ctx context.Context, id int64) error

	// Counts returns dashboard counters; "recent" means created at or after since.
	Counts(ctx context.Context, since time.Time) (*models.UserCounts, error)
}
