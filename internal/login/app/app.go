package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/empuxa/totp-login/internal/login/event"
	httpapi "github.com/empuxa/totp-login/internal/login/http"
	"github.com/empuxa/totp-login/internal/login/ratelimit"
	"github.com/empuxa/totp-login/internal/login/service"
	"github.com/empuxa/totp-login/internal/login/session"
	"github.com/empuxa/totp-login/internal/login/store"
	"github.com/empuxa/totp-login/internal/login/store/drivers/sqlite"
	"github.com/empuxa/totp-login/pkg/jwtx"
	"github.com/empuxa/totp-login/pkg/slogx"
	"github.com/redis/go-redis/v9"
)

// BuildVersion should be set at build time via ldflags.
const BuildVersion = "v0.1.0"

// Application encapsulates the login service with all its dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	db       store.Store
	redis    *redis.Client
	limiter  *ratelimit.RedisLimiter
	sessions *session.Manager
	signer   *jwtx.Signer
	events   event.Sink
	notifier service.Notifier

	// Services
	identifierService   *service.IdentifierService
	codeService         *service.CodeService
	housekeepingService *service.HousekeepingService

	// HTTP server
	server *http.Server
	router *httpapi.Router
}

// New creates a new Application instance with all dependencies initialized.
// notifier delivers login codes to accounts; pass nil to log codes instead,
// which is only sensible outside production.
func New(cfg Config, notifier service.Notifier) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "totp-login",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
		notifier: notifier,
	}

	if app.notifier == nil {
		app.logger.Warn("no notifier configured, login codes will be written to the log")
		app.notifier = service.LogNotifier{Logger: app.logger}
	}

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	if err := app.initRedis(); err != nil {
		_ = app.db.Close()
		return nil, err
	}

	signer, err := jwtx.NewEphemeralSigner(cfg.Issuer)
	if err != nil {
		_ = app.db.Close()
		return nil, fmt.Errorf("failed to initialize token signer: %w", err)
	}
	app.signer = signer

	app.sessions = session.NewManager(cfg.SessionTTL)
	app.events = event.SlogSink{Logger: app.logger}

	app.initServices()
	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.housekeepingService.Start()

	app.logger.Info("login service starting", "port", app.cfg.Port, "version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down login service...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.housekeepingService.Stop()

	if err := app.redis.Close(); err != nil {
		app.logger.Error("error closing redis client", "error", err)
	}

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("login service stopped")
	return nil
}

func (app *Application) initDatabase() error {
	db, err := sqlite.NewStore(app.cfg.DatabaseFile)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully")
	return nil
}

func (app *Application) initRedis() error {
	client := redis.NewClient(&redis.Options{
		Addr:     app.cfg.RedisAddr,
		Password: app.cfg.RedisPass,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return fmt.Errorf("failed to reach redis at %s: %w", app.cfg.RedisAddr, err)
	}

	app.redis = client
	app.limiter = ratelimit.NewRedisLimiter(client)
	return nil
}

func (app *Application) initServices() {
	codeCfg := service.CodeConfig{
		Length:               app.cfg.CodeLength,
		TTL:                  app.cfg.CodeTTL,
		MaxAttempts:          app.cfg.CodeMaxAttempts,
		EnableThrottling:     app.cfg.EnableThrottling,
		DiscloseAttemptsLeft: app.cfg.DiscloseAttemptsLeft,
	}

	app.identifierService = &service.IdentifierService{
		Store:    app.db,
		Limiter:  app.limiter,
		Notifier: app.notifier,
		Events:   app.events,
		Config: service.IdentifierConfig{
			ValidateEmail:    app.cfg.ValidateEmail,
			MaxAttempts:      app.cfg.IdentifierMaxAttempts,
			EnableThrottling: app.cfg.EnableThrottling,
		},
		Code: codeCfg,
	}

	app.codeService = &service.CodeService{
		Store:       app.db,
		Limiter:     app.limiter,
		Notifier:    app.notifier,
		Events:      app.events,
		Config:      codeCfg,
		Override:    app.cfg.OverridePolicy(),
		Environment: app.cfg.Env,
	}

	app.housekeepingService = service.NewHousekeepingService(
		app.db,
		app.sessions,
		app.logger,
		app.cfg.HousekeepingInterval,
	)
}

func (app *Application) initHTTP() {
	router := httpapi.NewRouter(
		app.signer,
		BuildVersion,
		app.db,
		app.redis,
		app.sessions,
		app.logger,
	)

	router.IdentifierService = app.identifierService
	router.CodeService = app.codeService
	router.TokenTTL = app.cfg.TokenTTL
	router.RememberTTL = app.cfg.RememberTTL
	router.Redirect = app.cfg.Redirect
	router.SecureCookies = app.cfg.SecureCookies
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
