// Package models contains the persistent domain records of the server.
package models

import "time"

// User is an account row. Password holds the bcrypt hash.
type User struct {
	ID                 int64      `json:"id_user"`
	FirstName          string     `json:"first_name"`
	LastName           string     `json:"last_name"`
	Email              string     `json:"email"`
	Password           string     `json:"-"`
	Role               string     `json:"role"`
	IsVerified         bool       `json:"is_verified"`
	IsBanned           bool       `json:"isbanned"`
	Subscription       bool       `json:"subscription"`
	VerificationToken  *string    `json:"-"`
	CreatedAt          time.Time  `json:"created_at"`
	Accepted           bool       `json:"accepted"`
	Experience         bool       `json:"experience"`
	NbrExperience      int        `json:"nbr_experience"`
	BacAverage         float64    `json:"bac_average"`
	BacType            string     `json:"bac_type"`
	TCFScore           int        `json:"tcf_score"`
	Localisation       *string    `json:"localisation"`
	DateOfBirth        *time.Time `json:"date_of_birth"`
	APropos            *string    `json:"a_propos"`
	UnivActuel         *string    `json:"univ_actuel"`
	Speciality         *string    `json:"speciality"`
	AnneeEtudeActuelle *string    `json:"annee_etude_actuelle"`
}

// Profile is the self-service academic profile completed after sign-up.
type Profile struct {
	Accepted           bool    `json:"accepted"`
	BacType            string  `json:"bac_type"`
	TCFScore           int     `json:"tcf_score"`
	BacAverage         float64 `json:"bac_average"`
	Speciality         string  `json:"speciality"`
	AnneeEtudeActuelle string  `json:"annee_etude_actuelle"`
}

// BacTypes lists the accepted values of users.bac_type.
var BacTypes = []string{
	"sciences_experimentales",
	"mathematiques",
	"technique_mathematique",
	"gestion_et_economie",
	"lettres_et_philosophie",
	"langues_etrangeres",
	"autre",
	"unknown",
}
