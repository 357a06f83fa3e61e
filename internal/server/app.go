// Package server wires configuration, storage, token revocation, mail and
// the business services together, then runs the HTTP API and the gRPC
// health endpoint until a shutdown signal arrives.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/pathwayfr/pathway/internal/dbx"
	"github.com/pathwayfr/pathway/internal/logging"
	"github.com/pathwayfr/pathway/internal/server/auth"
	"github.com/pathwayfr/pathway/internal/server/config"
	"github.com/pathwayfr/pathway/internal/server/mail"
	"github.com/pathwayfr/pathway/internal/server/metrics"
	"github.com/pathwayfr/pathway/internal/server/repositories/repomanager"
	"github.com/pathwayfr/pathway/internal/server/revocation"
	"github.com/pathwayfr/pathway/internal/server/services"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	gs "github.com/pathwayfr/pathway/internal/server/grpc"
	hs "github.com/pathwayfr/pathway/internal/server/http"
)

const (
	janitorInterval    = time.Minute
	healthPollInterval = 10 * time.Second
)

type App struct {
	config   *config.Config
	logger   logging.Logger
	db       *sql.DB
	registry revocation.Registry
	services hs.Services
	metrics  *metrics.Metrics
	closers  []func() error
}

// NewApp opens the database, runs migrations when configured and builds
// every service. Close releases what it opened.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	logger := logging.NewJSONLogger(os.Stdout, c.LogLevel)

	db, err := dbx.OpenPostgres(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	app := &App{config: c, logger: logger, db: db, metrics: metrics.New()}
	app.closers = append(app.closers, db.Close)

	rm := repomanager.NewPostgresRepositoryManager()
	if c.MigrateOnStart {
		if err := rm.RunMigrations(ctx, db); err != nil {
			_ = app.Close()
			return nil, fmt.Errorf("migrations: %w", err)
		}
		logger.Info(ctx, "migrations applied")
	}

	registry, closeRegistry, err := newRegistry(ctx, c, db, rm)
	if err != nil {
		_ = app.Close()
		return nil, err
	}
	app.registry = registry
	if closeRegistry != nil {
		app.closers = append(app.closers, closeRegistry)
	}

	notifier := mail.NewNotifier(newDispatcher(c, logger), c.BaseURL,
		c.VerificationTokenValidityDuration, c.ResetTokenValidityDuration)
	tokens := auth.NewTokenIssuer([]byte(c.SecretKey), tokenLifetimes(c))
	hasher := auth.NewBcryptHasher(bcrypt.DefaultCost)

	app.services = hs.Services{
		Auth:        services.NewAuthService(db, rm, hasher, tokens, registry, notifier, logger),
		Users:       services.NewUserService(db, rm, hasher, logger),
		Catalog:     services.NewCatalogService(db, rm, logger),
		Experiences: services.NewExperienceService(db, rm, logger),
		Grades:      services.NewGradeService(db, rm),
		Stats:       services.NewStatsService(db, rm),
	}
	return app, nil
}

func tokenLifetimes(c *config.Config) map[auth.Purpose]time.Duration {
	return map[auth.Purpose]time.Duration{
		auth.PurposeAccess:            c.AccessTokenValidityDuration,
		auth.PurposeRefresh:           c.RefreshTokenValidityDuration,
		auth.PurposeEmailVerification: c.VerificationTokenValidityDuration,
		auth.PurposePasswordReset:     c.ResetTokenValidityDuration,
	}
}

// newRegistry builds the configured revocation backend. The returned close
// function is nil when there is nothing to release.
func newRegistry(ctx context.Context, c *config.Config, db *sql.DB, rm repomanager.RepositoryManager) (revocation.Registry, func() error, error) {
	switch c.RevocationBackend {
	case config.RevocationRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     c.RedisAddr,
			Password: c.RedisPassword,
			DB:       c.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("redis ping: %w", err)
		}
		return revocation.NewRedisRegistry(client), client.Close, nil
	case config.RevocationPostgres:
		return revocation.NewPostgresRegistry(rm.RevokedTokens(db)), nil, nil
	default:
		return revocation.NewMemoryRegistry(), nil, nil
	}
}

// newDispatcher logs mails instead of sending them when no SMTP host is set.
func newDispatcher(c *config.Config, l logging.Logger) mail.Dispatcher {
	if c.SMTPHost == "" {
		return mail.NewLogDispatcher(l)
	}
	return mail.NewSMTPDispatcher(c.SMTPHost, c.SMTPPort, c.SMTPUsername, c.SMTPPassword, c.MailSender)
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) pinger() gs.Pinger {
	if app.db == nil {
		return nil
	}
	return app.db
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := hs.NewServer(app.config.EndpointAddrHTTP, app.config.FrontendURL, app.services, app.metrics, app.logger)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, "http server failed", "error", err)
		cancelFunc()
	}
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.pinger(), healthPollInterval)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, "grpc server failed", "error", err)
		cancelFunc()
	}
}

// Run serves until ctx is cancelled, a signal arrives or a server fails.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	if p, ok := app.registry.(revocation.Pruner); ok {
		wg.Add(1)
		go func() {
			defer wg.Done()
			revocation.RunJanitor(ctx, p, janitorInterval, app.logger)
		}()
	}

	wg.Add(2)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()

	wg.Wait()
	app.logger.Info(context.Background(), "App stopped")
}

// Close releases resources in reverse order of acquisition.
func (app *App) Close() error {
	var first error
	for i := len(app.closers) - 1; i >= 0; i-- {
		if err := app.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	app.closers = nil
	return first
}
