// Package http exposes the REST API. Every route is declared once in the
// route table together with its authorization policy; the gate enforces
// that policy before the handler runs.
package http

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/pathwayfr/pathway/internal/logging"
	"github.com/pathwayfr/pathway/internal/server/auth"
	"github.com/pathwayfr/pathway/internal/server/metrics"
	"github.com/pathwayfr/pathway/internal/server/models"
	"github.com/pathwayfr/pathway/internal/server/policy"
	"github.com/pathwayfr/pathway/internal/server/services"
)

const shutdownTimeout = 10 * time.Second

type AuthService interface {
	Register(ctx context.Context, in services.RegisterInput) (*models.User, error)
	VerifyEmail(ctx context.Context, token string) error
	Login(ctx context.Context, email, password string) (*services.TokenPair, error)
	Logout(ctx context.Context, p *policy.Principal) error
	Refresh(ctx context.Context, p *policy.Principal) (string, error)
	ChangePassword(ctx context.Context, userID int64, current, next string) error
	SendPasswordReset(ctx context.Context, email string) error
	CheckResetToken(ctx context.Context, token string) error
	ResetPassword(ctx context.Context, token, password string) error
	Authenticate(ctx context.Context, token string, purpose auth.Purpose) (*policy.Principal, error)
}

type UserService interface {
	Get(ctx context.Context, id int64) (*models.User, error)
	List(ctx context.Context) ([]*models.User, error)
	Role(ctx context.Context, id int64) (string, error)
	Delete(ctx context.Context, id int64) error
	SetBanned(ctx context.Context, id int64, banned bool) error
	SetPremium(ctx context.Context, id int64, premium bool) error
	ProfileStatus(ctx context.Context, id int64) (*services.ProfileStatus, error)
	SetupProfile(ctx context.Context, id int64, in services.ProfileInput) (*models.User, error)
	UpdateUser(ctx context.Context, id int64, in services.UserUpdate) (*models.User, error)
}

type CatalogService interface {
	Universities(ctx context.Context) ([]*models.University, error)
	University(ctx context.Context, id int64) (*models.University, error)
	UniversityByName(ctx context.Context, name string) (*models.University, error)
	UniversitiesByIDs(ctx context.Context, ids []int64) ([]*models.University, error)
	QueryUniversities(ctx context.Context, q services.UniversityQuery) (*services.UniversityPage, error)
	UniversitiesInCity(ctx context.Context, city string) ([]*models.University, error)
	SearchUniversities(ctx context.Context, name, city string) ([]*models.University, error)
	CreateUniversities(ctx context.Context, in []services.UniversityInput) ([]*models.University, error)
	UpdateUniversity(ctx context.Context, id int64, in services.UniversityUpdate) (*models.University, error)
	DeleteUniversity(ctx context.Context, id int64) error
	Specialities(ctx context.Context) ([]*models.Speciality, error)
	SpecialityByName(ctx context.Context, name string) (*models.Speciality, error)
	CreateSpecialities(ctx context.Context, in []services.SpecialityInput) ([]*models.Speciality, error)
}

type ExperienceService interface {
	Share(ctx context.Context, userID int64, in services.ExperienceInput) (*models.Experience, error)
	Pending(ctx context.Context) ([]*models.Experience, error)
	Moderate(ctx context.Context, id int64, status string) error
	Delete(ctx context.Context, id int64) error
	Owner(ctx context.Context, id int64) (int64, error)
}

type GradeService interface {
	Save(ctx context.Context, userID int64, in []services.GradeInput) error
	List(ctx context.Context, userID int64) ([]*models.Grade, error)
}

type StatsService interface {
	Users(ctx context.Context) (*models.UserStats, error)
	Experiences(ctx context.Context) (*models.ExperienceStats, error)
}

// Services groups the business logic the handlers delegate to.
type Services struct {
	Auth        AuthService
	Users       UserService
	Catalog     CatalogService
	Experiences ExperienceService
	Grades      GradeService
	Stats       StatsService
}

type Server struct {
	address     string
	frontendURL string
	svc         Services
	metrics     *metrics.Metrics
	logger      logging.Logger
}

func NewServer(address, frontendURL string, svc Services, m *metrics.Metrics, l logging.Logger) *Server {
	return &Server{
		address:     address,
		frontendURL: frontendURL,
		svc:         svc,
		metrics:     m,
		logger:      l.With("module", "http_server"),
	}
}

// Router builds the chi router with the operational endpoints and the
// route table.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, s.recoverer, s.observe)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not_found", Message: "route not found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method_not_allowed", Message: "method not allowed"})
	})

	mount(r, s.routes(), s.gate)
	return r
}

// mount registers every route behind its gate. A method and pattern
// declared twice is a programming error and panics.
func mount(r chi.Router, routes []route, gate func(policy.Policy) func(http.Handler) http.Handler) {
	seen := make(map[string]struct{}, len(routes))
	for _, rt := range routes {
		key := rt.method + " " + rt.pattern
		if _, dup := seen[key]; dup {
			panic(fmt.Sprintf("route %s declared twice", key))
		}
		seen[key] = struct{}{}
		r.With(gate(rt.policy)).Method(rt.method, rt.pattern, rt.handler)
	}
}

func (s *Server) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "http shutdown failed", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", listen.Addr().String())

	if err := srv.Serve(listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
