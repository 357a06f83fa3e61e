package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/pathwayfr/pathway/internal/common"
	"github.com/pathwayfr/pathway/internal/dbx"
	"github.com/pathwayfr/pathway/internal/logging"
	"github.com/pathwayfr/pathway/internal/server/auth"
	"github.com/pathwayfr/pathway/internal/server/models"
	"github.com/pathwayfr/pathway/internal/server/policy"
	"github.com/pathwayfr/pathway/internal/server/repositories/repomanager"
	"github.com/pathwayfr/pathway/internal/server/revocation"
)

// TokenPair bundles a short-lived access token and a long-lived refresh token.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type RegisterInput struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	Role      string `json:"role"`
}

func (in RegisterInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.FirstName, validation.Required, validation.Length(1, 100)),
		validation.Field(&in.LastName, validation.Required, validation.Length(1, 100)),
		validation.Field(&in.Email, validation.Required, is.Email),
		validation.Field(&in.Password, validation.Required),
		validation.Field(&in.Role, validation.In(common.RoleUser)),
	)
}

// AuthService owns the account lifecycle: registration, email
// verification, login, logout, refresh and password changes.
type AuthService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	hasher      auth.Hasher
	tokens      *auth.TokenIssuer
	revoked     revocation.Registry
	notifier    Notifier
	log         logging.Logger
}

func NewAuthService(db *sql.DB, m repomanager.RepositoryManager, hasher auth.Hasher, tokens *auth.TokenIssuer,
	revoked revocation.Registry, notifier Notifier, l logging.Logger) *AuthService {
	return &AuthService{
		db:          db,
		repomanager: m,
		hasher:      hasher,
		tokens:      tokens,
		revoked:     revoked,
		notifier:    notifier,
		log:         l.With("module", "auth"),
	}
}

// Register creates an unverified user and emails a verification link. The
// account survives a mail failure; the failure is only logged.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := in.Validate(); err != nil {
		return nil, common.Validation("%v", err)
	}
	if err := auth.CheckPasswordStrength(in.Password); err != nil {
		return nil, err
	}
	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, classify("hash password", err)
	}

	user := &models.User{
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Email:     in.Email,
		Password:  hash,
		Role:      common.RoleUser,
	}

	var token string
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Users(tx)
		created, err := repo.Create(ctx, user)
		if err != nil {
			return err
		}
		user = created
		token, _, err = s.tokens.Issue(strconv.FormatInt(user.ID, 10), auth.PurposeEmailVerification)
		if err != nil {
			return fmt.Errorf("issue verification token: %w", err)
		}
		return repo.SetVerificationToken(ctx, user.ID, &token)
	})
	if err != nil {
		return nil, classify("register user", err)
	}
	user.VerificationToken = &token

	if err := s.notifier.SendVerification(ctx, user.Email, user.FirstName, token); err != nil {
		s.log.Warn(ctx, "verification email not sent", "user_id", user.ID, "error", err)
	}
	s.log.Info(ctx, "user registered", "user_id", user.ID)
	return user, nil
}

// VerifyEmail consumes a verification token. Verifying twice succeeds.
func (s *AuthService) VerifyEmail(ctx context.Context, token string) error {
	user, err := s.userFromLink(ctx, token, auth.PurposeEmailVerification)
	if err != nil {
		return err
	}
	if user.IsVerified {
		return nil
	}
	if user.VerificationToken != nil && *user.VerificationToken != token {
		return fmt.Errorf("%w: superseded verification token", common.ErrLinkInvalid)
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return s.repomanager.Users(tx).MarkVerified(ctx, user.ID)
	})
	if err != nil {
		return userLookup("verify email", err)
	}
	s.log.Info(ctx, "email verified", "user_id", user.ID)
	return nil
}

// Login rejects unverified accounts before looking at the password. The ban
// is only reported once the password matched.
func (s *AuthService) Login(ctx context.Context, email, password string) (*TokenPair, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, common.Validation("email and password are required")
	}

	user, err := s.repomanager.Users(s.db).GetByEmail(ctx, email)
	if err != nil {
		return nil, userLookup("find user", err)
	}
	if !user.IsVerified {
		return nil, common.ErrEmailNotVerified
	}
	if !s.hasher.Verify(password, user.Password) {
		s.log.Warn(ctx, "login failed", "user_id", user.ID)
		return nil, common.ErrInvalidCredentials
	}
	if user.IsBanned {
		s.log.Warn(ctx, "banned user tried to log in", "user_id", user.ID)
		return nil, common.ErrAccountBanned
	}

	subject := strconv.FormatInt(user.ID, 10)
	access, _, err := s.tokens.Issue(subject, auth.PurposeAccess)
	if err != nil {
		return nil, classify("issue access token", err)
	}
	refresh, _, err := s.tokens.Issue(subject, auth.PurposeRefresh)
	if err != nil {
		return nil, classify("issue refresh token", err)
	}
	s.log.Info(ctx, "user logged in", "user_id", user.ID)
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// Logout revokes only the token the principal authenticated with.
func (s *AuthService) Logout(ctx context.Context, p *policy.Principal) error {
	if p == nil || p.TokenID == "" {
		return common.ErrInvalidToken
	}
	if err := s.revoked.Revoke(ctx, p.TokenID, p.ExpiresAt); err != nil {
		return classify("revoke token", err)
	}
	s.log.Info(ctx, "token revoked", "user_id", p.UserID, "jti", p.TokenID)
	return nil
}

// Refresh mints a new access token for the holder of a refresh token.
// Banned users cannot refresh.
func (s *AuthService) Refresh(ctx context.Context, p *policy.Principal) (string, error) {
	user, err := s.repomanager.Users(s.db).GetByID(ctx, p.UserID)
	if err != nil {
		return "", userLookup("find user", err)
	}
	if user.IsBanned {
		return "", common.ErrAccountBanned
	}
	access, _, err := s.tokens.Issue(strconv.FormatInt(user.ID, 10), auth.PurposeAccess)
	if err != nil {
		return "", classify("issue access token", err)
	}
	return access, nil
}

func (s *AuthService) ChangePassword(ctx context.Context, userID int64, current, next string) error {
	if current == "" || next == "" {
		return common.Validation("current_password and new_password are required")
	}
	user, err := s.repomanager.Users(s.db).GetByID(ctx, userID)
	if err != nil {
		return userLookup("find user", err)
	}
	if !s.hasher.Verify(current, user.Password) {
		return common.ErrInvalidCredentials
	}
	if err := s.setPassword(ctx, user.ID, next); err != nil {
		return err
	}
	if err := s.notifier.SendPasswordChanged(ctx, user.Email); err != nil {
		s.log.Warn(ctx, "password change email not sent", "user_id", user.ID, "error", err)
	}
	s.log.Info(ctx, "password changed", "user_id", user.ID)
	return nil
}

// SendPasswordReset emails a reset link to the account registered under email.
func (s *AuthService) SendPasswordReset(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return common.Validation("email is required")
	}
	user, err := s.repomanager.Users(s.db).GetByEmail(ctx, email)
	if err != nil {
		return userLookup("find user", err)
	}
	token, _, err := s.tokens.Issue(strconv.FormatInt(user.ID, 10), auth.PurposePasswordReset)
	if err != nil {
		return classify("issue reset token", err)
	}
	if err := s.notifier.SendPasswordReset(ctx, user.Email, token); err != nil {
		return classify("send reset email", err)
	}
	s.log.Info(ctx, "password reset requested", "user_id", user.ID)
	return nil
}

// CheckResetToken reports whether token still opens the reset form.
func (s *AuthService) CheckResetToken(ctx context.Context, token string) error {
	_, err := s.userFromLink(ctx, token, auth.PurposePasswordReset)
	return err
}

func (s *AuthService) ResetPassword(ctx context.Context, token, password string) error {
	if password == "" {
		return common.Validation("password is required")
	}
	claims, err := s.tokens.Verify(token, auth.PurposePasswordReset, 0)
	if err != nil {
		s.log.Info(ctx, "reset link rejected", "reason", err)
		return fmt.Errorf("%w: %w", common.ErrLinkInvalid, err)
	}
	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: bad subject", common.ErrLinkInvalid)
	}
	user, err := s.repomanager.Users(s.db).GetByID(ctx, id)
	if err != nil {
		return userLookup("find user", err)
	}
	if err := s.setPassword(ctx, user.ID, password); err != nil {
		return err
	}
	s.log.Info(ctx, "password reset", "user_id", user.ID)
	return nil
}

// Authenticate resolves a bearer token of the given purpose to a principal.
func (s *AuthService) Authenticate(ctx context.Context, token string, purpose auth.Purpose) (*policy.Principal, error) {
	claims, err := s.tokens.Verify(token, purpose, 0)
	if err != nil {
		return nil, err
	}
	if purpose.HasJTI() {
		revoked, err := s.revoked.IsRevoked(ctx, claims.ID)
		if err != nil {
			return nil, classify("check revocation", err)
		}
		if revoked {
			return nil, common.ErrTokenRevoked
		}
	}
	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return nil, common.ErrInvalidToken
	}
	user, err := s.repomanager.Users(s.db).GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrTokenUserNotFound
		}
		return nil, classify("find user", err)
	}

	p := &policy.Principal{UserID: user.ID, Email: user.Email, Role: user.Role, TokenID: claims.ID}
	if claims.ExpiresAt != nil {
		p.ExpiresAt = claims.ExpiresAt.Time
	}
	return p, nil
}

func (s *AuthService) setPassword(ctx context.Context, userID int64, password string) error {
	if err := auth.CheckPasswordStrength(password); err != nil {
		return err
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return classify("hash password", err)
	}
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return s.repomanager.Users(tx).SetPassword(ctx, userID, hash)
	})
	return userLookup("set password", err)
}

// userFromLink verifies an emailed token and loads its subject. Every token
// failure surfaces as ErrLinkInvalid.
func (s *AuthService) userFromLink(ctx context.Context, token string, purpose auth.Purpose) (*models.User, error) {
	claims, err := s.tokens.Verify(token, purpose, 0)
	if err != nil {
		s.log.Info(ctx, "emailed link rejected", "purpose", purpose, "reason", err)
		return nil, fmt.Errorf("%w: %w", common.ErrLinkInvalid, err)
	}
	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: bad subject", common.ErrLinkInvalid)
	}
	user, err := s.repomanager.Users(s.db).GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, fmt.Errorf("%w: %w", common.ErrLinkInvalid, common.ErrUserNotFound)
		}
		return nil, classify("find user", err)
	}
	return user, nil
}
