package models

// UserCounts holds raw account counters read from storage.
type UserCounts struct {
	Total             int
	Premium           int
	Banned            int
	NewLast30Days     int
	PremiumLast30Days int
}

// UserStats aggregates account counters for the admin dashboard.
type UserStats struct {
	Total                int     `json:"total_users"`
	Premium              int     `json:"total_premium_users"`
	Free                 int     `json:"total_free_users"`
	Active               int     `json:"active_users"`
	Banned               int     `json:"banned_users_count"`
	NewLast30Days        int     `json:"new_users_last_30_days"`
	SignupRate30Days     float64 `json:"signup_rate_30_days"`
	ConversionRate       float64 `json:"conversion_rate"`
	ConversionRate30Days float64 `json:"conversion_rate_this_month"`
}

// ExperienceStats aggregates moderation counters.
type ExperienceStats struct {
	Total        int     `json:"total_experiences"`
	Approved     int     `json:"approved_experiences"`
	Rejected     int     `json:"rejected_experiences"`
	Pending      int     `json:"pending_experiences"`
	ApprovalRate float64 `json:"approval_rate"`
}
