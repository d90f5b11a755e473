package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-router"
	accounts "github.com/ia-nocode/user-roles-v4"
	"github.com/ia-nocode/user-roles-v4/config"
	"github.com/ia-nocode/user-roles-v4/internal/storage"
	"github.com/ia-nocode/user-roles-v4/provider/auth0"
	"github.com/ia-nocode/user-roles-v4/provider/kratos"
	"github.com/ia-nocode/user-roles-v4/provider/memory"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/schema"
	"golang.org/x/time/rate"
)

// App holds the wired console and its dependencies.
type App struct {
	config   *config.Config
	logger   *glog.BaseLogger
	loggers  accounts.LoggerProvider
	db       *bun.DB
	repo     accounts.RepositoryManager
	backend  accounts.IdentityBackend
	console  *accounts.Console
	sessions *accounts.AdminSessions
}

func (a *App) GetLogger(name string) accounts.Logger {
	return a.loggers.GetLogger(name)
}

func newBaseLogger(cfg config.Logger) *glog.BaseLogger {
	level := glog.WithLevel(glog.Info)
	switch logLevel(cfg.Level) {
	case "trace":
		level = glog.WithLevel(glog.Trace)
	case "debug":
		level = glog.WithLevel(glog.Debug)
	case "warn":
		level = glog.WithLevel(glog.Warn)
	case "error":
		level = glog.WithLevel(glog.Error)
	}

	if cfg.Pretty {
		return glog.NewLogger(
			glog.WithLoggerTypePretty(),
			level,
			glog.WithName("console"),
			glog.WithAddSource(false),
			glog.WithRichErrorHandler(errors.ToSlogAttributes),
		)
	}
	return glog.NewLogger(
		level,
		glog.WithName("console"),
		glog.WithAddSource(false),
		glog.WithRichErrorHandler(errors.ToSlogAttributes),
	)
}

// bootstrap loads the configuration and wires every dependency.
func bootstrap(ctx context.Context, envFiles []string) (*App, error) {
	container := config.New()
	cfg, err := config.Load(ctx, container, envFiles...)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	lgr := newBaseLogger(cfg.Logger)
	app := &App{
		config: cfg,
		logger: lgr,
		loggers: newLoggerProvider(func(name string) structuredLogger {
			return lgr.GetLogger(name)
		}),
	}

	if err := withPersistence(ctx, app); err != nil {
		return nil, err
	}
	if err := withIdentityBackend(ctx, app); err != nil {
		app.Close()
		return nil, err
	}
	if err := withConsole(app); err != nil {
		app.Close()
		return nil, err
	}
	return app, nil
}

func withPersistence(ctx context.Context, app *App) error {
	cfg := app.config.Persistence

	driver, dialect := sqliteshim.ShimName, schema.Dialect(sqlitedialect.New())
	if cfg.Driver == config.DriverPostgres {
		driver, dialect = "pgx", pgdialect.New()
	}

	sqldb, err := sql.Open(driver, cfg.DSN)
	if err != nil {
		return fmt.Errorf("open %s: %w", cfg.Driver, err)
	}

	db, err := storage.Open(ctx, cfg, sqldb, dialect, storage.Options{
		Migrate: cfg.Migrate,
		Logger:  app.logger.GetLogger("persistence"),
	})
	if err != nil {
		_ = sqldb.Close()
		return fmt.Errorf("persistence: %w", err)
	}

	app.db = db
	app.repo = accounts.NewRepositoryManager(db,
		accounts.WithProfilesLogger(app.GetLogger("accounts.profiles")),
	)
	return nil
}

func withIdentityBackend(ctx context.Context, app *App) error {
	cfg := app.config.Identity

	switch cfg.Provider {
	case config.ProviderAuth0:
		backend, err := auth0.NewBackend(ctx, auth0.Config{
			Domain:       cfg.Auth0.Domain,
			ClientID:     cfg.Auth0.ClientID,
			ClientSecret: cfg.Auth0.ClientSecret,
			Connection:   cfg.Auth0.Connection,
			Audience:     cfg.Auth0.Audience,
		})
		if err != nil {
			return err
		}
		app.backend = backend
	case config.ProviderKratos:
		backend, err := kratos.NewBackend(kratos.Config{
			PublicURL: cfg.Kratos.PublicURL,
			AdminURL:  cfg.Kratos.AdminURL,
			SchemaID:  cfg.Kratos.SchemaID,
		})
		if err != nil {
			return err
		}
		app.backend = backend
	default:
		backend := memory.NewBackend(
			memory.WithMinPasswordLength(app.config.Console.MinPasswordLength),
		)
		if err := seedMemoryAdmin(ctx, app, backend); err != nil {
			return err
		}
		app.backend = backend
	}
	return nil
}

// seedMemoryAdmin registers the configured administrator in the memory
// backend and points its profile record at the new identity.
func seedMemoryAdmin(ctx context.Context, app *App, backend *memory.Backend) error {
	cfg := app.config.Identity.Memory
	if cfg.SeedAdminEmail == "" {
		return nil
	}

	identity, err := backend.Seed(cfg.SeedAdminEmail, cfg.SeedAdminPassword)
	if err != nil {
		return fmt.Errorf("seed admin identity: %w", err)
	}

	profiles := app.repo.Profiles()
	existing, err := profiles.FindByEmail(ctx, identity.Email)
	switch {
	case err == nil && existing.IdentityID == identity.ID:
		return nil
	case err == nil:
		if err := profiles.Delete(ctx, existing.RecordID); err != nil {
			return fmt.Errorf("replace seed admin profile: %w", err)
		}
	case !accounts.IsKind(err, accounts.KindNotFound):
		return fmt.Errorf("find seed admin profile: %w", err)
	}

	_, err = profiles.Create(ctx, accounts.NewProfile{
		IdentityID: identity.ID,
		Email:      identity.Email,
		FirstName:  "Admin",
		Role:       accounts.RoleAdmin,
	})
	if err != nil {
		return fmt.Errorf("seed admin profile: %w", err)
	}
	app.GetLogger("console").Info("seeded administrator %s", identity.Email)
	return nil
}

func withConsole(app *App) error {
	cfg := app.config.Console

	// one limiter throttles sign in across the CLI console and every API
	// session
	limiter := rate.NewLimiter(rate.Limit(cfg.SignInRate), cfg.SignInBurst)
	opts := []accounts.ConsoleOption{
		accounts.WithConsoleLoggerProvider(app.loggers),
		accounts.WithConsoleMessages(accounts.MessagesFor(cfg.Locale)),
		accounts.WithConsoleRules(accounts.Rules{
			MinPasswordLength: cfg.MinPasswordLength,
			MobileRegion:      cfg.MobileRegion,
		}),
		accounts.WithSignInLimiter(limiter),
		accounts.WithActivitySink(accounts.LoggerActivitySink(app.loggers.GetLogger("accounts.audit"))),
	}

	newConsole := func() *accounts.Console {
		sessions := accounts.NewSessionProvider(app.backend,
			accounts.WithSessionLoggerProvider(app.loggers),
		)
		return accounts.NewConsole(sessions, app.repo.Profiles(), app.backend, opts...)
	}
	app.console = newConsole()

	tokens, err := accounts.NewTokenService(
		[]byte(app.config.Server.SessionSigningKey),
		app.config.Server.GetSessionTTL(),
		accounts.WithTokenLogger(app.GetLogger("accounts.tokens")),
	)
	if err != nil {
		return fmt.Errorf("session tokens: %w", err)
	}
	if app.config.Server.SessionSigningKey == "" {
		app.GetLogger("console").Warn("no session signing key configured, API sessions end on restart")
	}

	app.sessions = accounts.NewAdminSessions(newConsole, tokens,
		accounts.WithAdminSessionsLogger(app.GetLogger("accounts.admin_sessions")),
		accounts.WithAdminSessionsMessages(accounts.MessagesFor(cfg.Locale)),
	)
	return nil
}

// sweepSessions closes expired API sessions until ctx is done.
func sweepSessions(ctx context.Context, app *App, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			app.sessions.Sweep(ctx)
		}
	}
}

// newHTTPServer mounts the console API on a fiber backed router.
func newHTTPServer(app *App) router.Server[*fiber.App] {
	srv := router.NewFiberAdapter(func(a *fiber.App) *fiber.App {
		return router.DefaultFiberOptions(fiber.New(fiber.Config{
			UnescapePath:      true,
			EnablePrintRoutes: app.config.Persistence.Debug,
			StrictRouting:     false,
		}))
	})

	srv.Router().WithLogger(app.logger.GetLogger("router"))

	controller := accounts.NewConsoleController(app.sessions,
		accounts.WithControllerLogger(app.GetLogger("accounts.http")),
	)
	controller.RegisterRoutes(srv.Router().Group("/api"))

	return srv
}

// Close ends the open API sessions and releases the database handle
func (a *App) Close() {
	if a.sessions != nil {
		a.sessions.Close(context.Background())
	}
	if a.db != nil {
		_ = a.db.Close()
	}
}

func shutdownContext(cfg config.Server) (context.Context, context.CancelFunc) {
	timeout := cfg.GetShutdownTimeout()
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return context.WithTimeout(context.Background(), timeout)
}
