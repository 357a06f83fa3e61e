package services

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"slices"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/pathwayfr/pathway/internal/common"
	"github.com/pathwayfr/pathway/internal/dbx"
	"github.com/pathwayfr/pathway/internal/logging"
	"github.com/pathwayfr/pathway/internal/server/models"
	"github.com/pathwayfr/pathway/internal/server/repositories/repomanager"
)

// ExperienceInput is an admission outcome shared by a user. Its moderation
// status is never taken from the client.
type ExperienceInput struct {
	SpecialityID               *int64          `json:"speciality_id"`
	UniversityIDs              []int64         `json:"university_ids"`
	CandidatureYear            *int            `json:"candidature_year"`
	ApplicationYear            *int            `json:"application_year"`
	StudyYearAtApplicationTime string          `json:"study_year_at_application_time"`
	Comment                    string          `json:"comment"`
	AverageEachYear            json.RawMessage `json:"average_each_year"`
	LevelTCF                   *int            `json:"level_tcf"`
	BacType                    *string         `json:"bac_type"`
	BacAverage                 *float64        `json:"bac_average"`
}

func (in ExperienceInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.SpecialityID, validation.NotNil),
		validation.Field(&in.UniversityIDs, validation.Required),
		validation.Field(&in.CandidatureYear, validation.NotNil, validation.Min(1900), validation.Max(2100)),
		validation.Field(&in.ApplicationYear, validation.NotNil, validation.Min(1900), validation.Max(2100)),
		validation.Field(&in.StudyYearAtApplicationTime, validation.Required),
		validation.Field(&in.LevelTCF, validation.NotNil, validation.Min(0), validation.Max(699)),
		validation.Field(&in.BacAverage, validation.Min(0.0), validation.Max(20.0)),
	)
}

// normalizeAverages accepts a JSON object or array, or a string holding one.
func normalizeAverages(raw json.RawMessage) (json.RawMessage, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, common.Validation("average_each_year: invalid JSON string")
		}
		raw = bytes.TrimSpace([]byte(s))
	}
	if len(raw) == 0 || (raw[0] != '{' && raw[0] != '[') || !json.Valid(raw) {
		return nil, common.Validation("average_each_year must be a JSON object or list")
	}
	return raw, nil
}

type ExperienceService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	log         logging.Logger
}

func NewExperienceService(db *sql.DB, m repomanager.RepositoryManager, l logging.Logger) *ExperienceService {
	return &ExperienceService{db: db, repomanager: m, log: l.With("module", "experiences")}
}

// Share stores a pending experience owned by userID and links its
// universities. The speciality and every university must exist.
func (s *ExperienceService) Share(ctx context.Context, userID int64, in ExperienceInput) (*models.Experience, error) {
	if err := in.Validate(); err != nil {
		return nil, common.Validation("%v", err)
	}
	averages, err := normalizeAverages(in.AverageEachYear)
	if err != nil {
		return nil, err
	}
	ids := slices.Clone(in.UniversityIDs)
	slices.Sort(ids)
	ids = slices.Compact(ids)

	e := &models.Experience{
		UserID:                     userID,
		SpecialityID:               *in.SpecialityID,
		UniversityIDs:              ids,
		BacType:                    in.BacType,
		BacAverage:                 in.BacAverage,
		Comment:                    in.Comment,
		ApplicationYear:            *in.ApplicationYear,
		StudyYearAtApplicationTime: in.StudyYearAtApplicationTime,
		AverageEachYear:            averages,
		LevelTCF:                   *in.LevelTCF,
		CandidatureYear:            *in.CandidatureYear,
		Status:                     models.ExperiencePending,
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := s.repomanager.Specialities(tx).GetByID(ctx, e.SpecialityID); err != nil {
			if common.KindOf(err) == common.KindNotFound {
				return common.NotFound("speciality %d not found", e.SpecialityID)
			}
			return err
		}
		n, err := s.repomanager.Universities(tx).CountExisting(ctx, ids)
		if err != nil {
			return err
		}
		if n != len(ids) {
			return common.NotFound("one or more universities not found")
		}
		repo := s.repomanager.Experiences(tx)
		if e, err = repo.Create(ctx, e); err != nil {
			return err
		}
		return repo.LinkUniversities(ctx, e.ID, ids)
	})
	if err != nil {
		return nil, classify("share experience", err)
	}
	s.log.Info(ctx, "experience shared", "experience_id", e.ID, "user_id", userID)
	return e, nil
}

func (s *ExperienceService) Pending(ctx context.Context) ([]*models.Experience, error) {
	list, err := s.repomanager.Experiences(s.db).ListByStatus(ctx, models.ExperiencePending)
	return list, classify("list pending experiences", err)
}

// Moderate sets the status to approved or rejected.
func (s *ExperienceService) Moderate(ctx context.Context, id int64, status string) error {
	if status != models.ExperienceApproved && status != models.ExperienceRejected {
		return common.Validation("invalid status %q", status)
	}
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return s.repomanager.Experiences(tx).SetStatus(ctx, id, status)
	})
	if err != nil {
		return experienceLookup(err)
	}
	s.log.Info(ctx, "experience moderated", "experience_id", id, "status", status)
	return nil
}

func (s *ExperienceService) Delete(ctx context.Context, id int64) error {
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return s.repomanager.Experiences(tx).Delete(ctx, id)
	})
	if err != nil {
		return experienceLookup(err)
	}
	s.log.Info(ctx, "experience deleted", "experience_id", id)
	return nil
}

// Owner returns the user id owning the experience; 0 when the author is gone.
func (s *ExperienceService) Owner(ctx context.Context, id int64) (int64, error) {
	e, err := s.repomanager.Experiences(s.db).GetByID(ctx, id)
	if err != nil {
		return 0, experienceLookup(err)
	}
	return e.UserID, nil
}

func experienceLookup(err error) error {
	if common.KindOf(err) == common.KindNotFound {
		return common.NotFound("experience not found")
	}
	return classify("experience", err)
}
