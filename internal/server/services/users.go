package services

import (
	"context"
	"database/sql"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/pathwayfr/pathway/internal/common"
	"github.com/pathwayfr/pathway/internal/dbx"
	"github.com/pathwayfr/pathway/internal/logging"
	"github.com/pathwayfr/pathway/internal/server/auth"
	"github.com/pathwayfr/pathway/internal/server/models"
	"github.com/pathwayfr/pathway/internal/server/repositories/repomanager"
)

// ProfileInput is the academic profile form. Every field must be present.
type ProfileInput struct {
	Accepted           *bool    `json:"accepted"`
	BacType            *string  `json:"bac_type"`
	TCFScore           *int     `json:"tcf_score"`
	BacAverage         *float64 `json:"bac_average"`
	Speciality         *string  `json:"speciality"`
	AnneeEtudeActuelle *string  `json:"annee_etude_actuelle"`
}

func (in ProfileInput) Validate() error {
	bacTypes := make([]any, len(models.BacTypes))
	for i, t := range models.BacTypes {
		bacTypes[i] = t
	}
	return validation.ValidateStruct(&in,
		validation.Field(&in.Accepted, validation.NotNil),
		validation.Field(&in.BacType, validation.NotNil, validation.Required, validation.In(bacTypes...)),
		validation.Field(&in.TCFScore, validation.NotNil, validation.Min(0), validation.Max(699)),
		validation.Field(&in.BacAverage, validation.NotNil, validation.Min(0.0), validation.Max(20.0)),
		validation.Field(&in.Speciality, validation.NotNil),
		validation.Field(&in.AnneeEtudeActuelle, validation.NotNil),
	)
}

// ProfileStatus lists the profile fields still unset.
type ProfileStatus struct {
	Complete bool     `json:"complete"`
	Missing  []string `json:"missing"`
}

type UserService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	hasher      auth.Hasher
	log         logging.Logger
}

func NewUserService(db *sql.DB, m repomanager.RepositoryManager, hasher auth.Hasher, l logging.Logger) *UserService {
	return &UserService{db: db, repomanager: m, hasher: hasher, log: l.With("module", "users")}
}

func (s *UserService) Get(ctx context.Context, id int64) (*models.User, error) {
	u, err := s.repomanager.Users(s.db).GetByID(ctx, id)
	if err != nil {
		return nil, userLookup("get user", err)
	}
	return u, nil
}

func (s *UserService) List(ctx context.Context) ([]*models.User, error) {
	users, err := s.repomanager.Users(s.db).List(ctx)
	if err != nil {
		return nil, classify("list users", err)
	}
	return users, nil
}

// Role returns the role of a user; it backs the admin-target guard.
func (s *UserService) Role(ctx context.Context, id int64) (string, error) {
	u, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return u.Role, nil
}

func (s *UserService) Delete(ctx context.Context, id int64) error {
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return s.repomanager.Users(tx).Delete(ctx, id)
	})
	if err != nil {
		return userLookup("delete user", err)
	}
	s.log.Info(ctx, "user deleted", "user_id", id)
	return nil
}

// SetBanned flips the ban flag. Tokens already issued stay valid; a ban
// only blocks future logins and refreshes.
func (s *UserService) SetBanned(ctx context.Context, id int64, banned bool) error {
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return s.repomanager.Users(tx).SetBanned(ctx, id, banned)
	})
	if err != nil {
		return userLookup("set banned", err)
	}
	s.log.Info(ctx, "ban flag changed", "user_id", id, "banned", banned)
	return nil
}

func (s *UserService) SetPremium(ctx context.Context, id int64, premium bool) error {
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return s.repomanager.Users(tx).SetSubscription(ctx, id, premium)
	})
	return userLookup("set subscription", err)
}

func (s *UserService) ProfileStatus(ctx context.Context, id int64) (*ProfileStatus, error) {
	u, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	st := &ProfileStatus{Missing: []string{}}
	check := func(name string, unset bool) {
		if unset {
			st.Missing = append(st.Missing, name)
		}
	}
	check("accepted", !u.Accepted)
	check("bac_type", u.BacType == "" || u.BacType == "unknown")
	check("tcf_score", u.TCFScore == 0)
	check("bac_average", u.BacAverage == 0)
	check("speciality", u.Speciality == nil || *u.Speciality == "")
	check("annee_etude_actuelle", u.AnneeEtudeActuelle == nil || *u.AnneeEtudeActuelle == "")
	st.Complete = len(st.Missing) == 0
	return st, nil
}

func (s *UserService) SetupProfile(ctx context.Context, id int64, in ProfileInput) (*models.User, error) {
	if err := in.Validate(); err != nil {
		return nil, common.Validation("%v", err)
	}
	p := &models.Profile{
		Accepted:           *in.Accepted,
		BacType:            *in.BacType,
		TCFScore:           *in.TCFScore,
		BacAverage:         *in.BacAverage,
		Speciality:         strings.TrimSpace(*in.Speciality),
		AnneeEtudeActuelle: strings.TrimSpace(*in.AnneeEtudeActuelle),
	}

	var user *models.User
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Users(tx)
		if err := repo.UpdateProfile(ctx, id, p); err != nil {
			return err
		}
		var err error
		user, err = repo.GetByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, userLookup("setup profile", err)
	}
	return user, nil
}

// UserUpdate carries the editable profile fields of an account. Nil fields
// are left untouched. Role, email, password and the account flags have no
// field here and cannot be changed through it.
type UserUpdate struct {
	FirstName          *string  `json:"first_name"`
	LastName           *string  `json:"last_name"`
	Accepted           *bool    `json:"accepted"`
	Experience         *bool    `json:"experience"`
	NbrExperience      *int     `json:"nbr_experience"`
	BacAverage         *float64 `json:"bac_average"`
	BacType            *string  `json:"bac_type"`
	TCFScore           *int     `json:"tcf_score"`
	Localisation       *string  `json:"localisation"`
	DateOfBirth        *string  `json:"date_of_birth"`
	APropos            *string  `json:"a_propos"`
	UnivActuel         *string  `json:"univ_actuel"`
	Speciality         *string  `json:"speciality"`
	AnneeEtudeActuelle *string  `json:"annee_etude_actuelle"`
}

const dateLayout = "2006-01-02"

func (in UserUpdate) Validate() error {
	bacTypes := make([]any, len(models.BacTypes))
	for i, t := range models.BacTypes {
		bacTypes[i] = t
	}
	blank := func(p *string) bool { return p != nil && strings.TrimSpace(*p) == "" }
	if blank(in.FirstName) || blank(in.LastName) {
		return common.Validation("first_name and last_name cannot be empty")
	}
	err := validation.ValidateStruct(&in,
		validation.Field(&in.FirstName, validation.Length(1, 100)),
		validation.Field(&in.LastName, validation.Length(1, 100)),
		validation.Field(&in.NbrExperience, validation.Min(0)),
		validation.Field(&in.BacAverage, validation.Min(0.0), validation.Max(20.0)),
		validation.Field(&in.BacType, validation.In(bacTypes...)),
		validation.Field(&in.TCFScore, validation.Min(0), validation.Max(699)),
		validation.Field(&in.DateOfBirth, validation.Date(dateLayout)),
	)
	if err != nil {
		return common.Validation("%v", err)
	}
	return nil
}

// optional trims s; an empty value clears the column.
func optional(s string) *string {
	if s = strings.TrimSpace(s); s == "" {
		return nil
	}
	return &s
}

func (in UserUpdate) apply(u *models.User) {
	if in.FirstName != nil {
		u.FirstName = strings.TrimSpace(*in.FirstName)
	}
	if in.LastName != nil {
		u.LastName = strings.TrimSpace(*in.LastName)
	}
	if in.Accepted != nil {
		u.Accepted = *in.Accepted
	}
	if in.Experience != nil {
		u.Experience = *in.Experience
	}
	if in.NbrExperience != nil {
		u.NbrExperience = *in.NbrExperience
	}
	if in.BacAverage != nil {
		u.BacAverage = *in.BacAverage
	}
	if in.BacType != nil {
		u.BacType = *in.BacType
	}
	if in.TCFScore != nil {
		u.TCFScore = *in.TCFScore
	}
	if in.DateOfBirth != nil {
		u.DateOfBirth = nil
		if d, err := time.Parse(dateLayout, strings.TrimSpace(*in.DateOfBirth)); err == nil {
			u.DateOfBirth = &d
		}
	}
	for _, f := range []struct {
		in  *string
		out **string
	}{
		{in.Localisation, &u.Localisation},
		{in.APropos, &u.APropos},
		{in.UnivActuel, &u.UnivActuel},
		{in.Speciality, &u.Speciality},
		{in.AnneeEtudeActuelle, &u.AnneeEtudeActuelle},
	} {
		if f.in != nil {
			*f.out = optional(*f.in)
		}
	}
}

// UpdateUser applies the profile fields of in to user id and returns the
// stored row.
func (s *UserService) UpdateUser(ctx context.Context, id int64, in UserUpdate) (*models.User, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	var user *models.User
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Users(tx)
		u, err := repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		in.apply(u)
		if err := repo.UpdateDetails(ctx, u); err != nil {
			return err
		}
		user = u
		return nil
	})
	if err != nil {
		return nil, userLookup("update user", err)
	}
	s.log.Info(ctx, "user updated", "user_id", id)
	return user, nil
}

type AdminInput struct {
	FirstName string
	LastName  string
	Email     string
	Password  string
}

// CreateAdmin creates a verified administrator account.
func (s *UserService) CreateAdmin(ctx context.Context, in AdminInput) (*models.User, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	err := validation.ValidateStruct(&in,
		validation.Field(&in.FirstName, validation.Required),
		validation.Field(&in.LastName, validation.Required),
		validation.Field(&in.Email, validation.Required, is.Email),
	)
	if err != nil {
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
		FirstName:  in.FirstName,
		LastName:   in.LastName,
		Email:      in.Email,
		Password:   hash,
		Role:       common.RoleAdmin,
		IsVerified: true,
	}
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		user, err = s.repomanager.Users(tx).Create(ctx, user)
		return err
	})
	if err != nil {
		return nil, classify("create admin", err)
	}
	s.log.Info(ctx, "admin created", "user_id", user.ID)
	return user, nil
}
