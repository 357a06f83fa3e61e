package services

import (
	"context"
	"database/sql"
	"time"

	"github.com/pathwayfr/pathway/internal/server/models"
	"github.com/pathwayfr/pathway/internal/server/repositories/repomanager"
)

const recentWindow = 30 * 24 * time.Hour

type StatsService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	now         func() time.Time
}

func NewStatsService(db *sql.DB, m repomanager.RepositoryManager) *StatsService {
	return &StatsService{db: db, repomanager: m, now: time.Now}
}

func percent(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total) * 100
}

func (s *StatsService) Users(ctx context.Context) (*models.UserStats, error) {
	c, err := s.repomanager.Users(s.db).Counts(ctx, s.now().Add(-recentWindow))
	if err != nil {
		return nil, classify("count users", err)
	}
	return &models.UserStats{
		Total:                c.Total,
		Premium:              c.Premium,
		Free:                 c.Total - c.Premium,
		Active:               c.Total - c.Banned,
		Banned:               c.Banned,
		NewLast30Days:        c.NewLast30Days,
		SignupRate30Days:     percent(c.NewLast30Days, c.Total),
		ConversionRate:       percent(c.Premium, c.Total),
		ConversionRate30Days: percent(c.PremiumLast30Days, c.Total),
	}, nil
}

func (s *StatsService) Experiences(ctx context.Context) (*models.ExperienceStats, error) {
	st, err := s.repomanager.Experiences(s.db).Counts(ctx)
	if err != nil {
		return nil, classify("count experiences", err)
	}
	st.ApprovalRate = percent(st.Approved, st.Total)
	return st, nil
}
