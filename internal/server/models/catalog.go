package models

import "time"

type University struct {
	ID                    int64     `json:"id_university"`
	Name                  string    `json:"univ_name"`
	City                  string    `json:"city"`
	SpecialitiesNbr       int       `json:"specialities_nbr"`
	NbrCandidatesAccepted int       `json:"nbr_candidates_accepted"`
	CreatedAt             time.Time `json:"created_at"`
}

type Speciality struct {
	ID                     int64     `json:"id_speciality"`
	Name                   string    `json:"speciality_name"`
	UniversityID           *int64    `json:"university_id"`
	NbrCandidateAcceptedIn int       `json:"nbr_candidate_accepted_in"`
	MinBacAverage          float64   `json:"min_bac_average"`
	MinTCFScore            int       `json:"min_tcf_score"`
	MinAverage             float64   `json:"min_average"`
	CreatedAt              time.Time `json:"created_at"`
}
