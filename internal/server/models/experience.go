package models

import (
	"encoding/json"
	"time"
)

// Experience moderation states.
const (
	ExperiencePending  = "pending"
	ExperienceApproved = "approved"
	ExperienceRejected = "rejected"
)

// Experience is an admission outcome shared by a user.
type Experience struct {
	ID                         int64           `json:"id_experience"`
	UserID                     int64           `json:"user_id"`
	SpecialityID               int64           `json:"speciality_id"`
	UniversityIDs              []int64         `json:"university_ids"`
	BacType                    *string         `json:"bac_type"`
	BacAverage                 *float64        `json:"bac_average"`
	Comment                    string          `json:"comment"`
	ApplicationYear            int             `json:"application_year"`
	StudyYearAtApplicationTime string          `json:"study_year_at_application_time"`
	AverageEachYear            json.RawMessage `json:"average_each_year"`
	LevelTCF                   int             `json:"level_tcf"`
	CandidatureYear            int             `json:"candidature_year"`
	Status                     string          `json:"is_validated"`
	CreatedAt                  time.Time       `json:"created_at"`
}

// Grade is a yearly average of a user, unique per (user, level).
type Grade struct {
	UserID  int64   `json:"-"`
	Level   string  `json:"level"`
	Average float64 `json:"average"`
}
