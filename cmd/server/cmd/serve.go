package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Togather-Foundation/registration/internal/api"
	"github.com/Togather-Foundation/registration/internal/api/handlers"
	"github.com/Togather-Foundation/registration/internal/auth"
	"github.com/Togather-Foundation/registration/internal/config"
	"github.com/Togather-Foundation/registration/internal/domain/registrations"
	"github.com/Togather-Foundation/registration/internal/domain/settings"
	"github.com/Togather-Foundation/registration/internal/email"
	"github.com/Togather-Foundation/registration/internal/intake"
	"github.com/Togather-Foundation/registration/internal/metrics"
	"github.com/Togather-Foundation/registration/internal/relayclient"
	"github.com/Togather-Foundation/registration/internal/roster"
	"github.com/Togather-Foundation/registration/internal/standings"
	"github.com/Togather-Foundation/registration/internal/storage/postgres"
	"github.com/Togather-Foundation/registration/internal/telemetry"
)

const (
	shutdownTimeout   = 10 * time.Second
	dbMetricsInterval = 15 * time.Second
	tokenIssuer       = "registration"
)

type serveOptions struct {
	host           string
	port           int
	migrate        bool
	migrationsPath string
}

func defaultServeOptions() serveOptions {
	return serveOptions{migrationsPath: postgres.DefaultMigrationsPath}
}

func newServeCommand() *cobra.Command {
	opts := defaultServeOptions()
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the registration HTTP server",
		Long: `Start the registration HTTP server and begin accepting API requests.

The server will:
- Load configuration from environment variables (and --config when given)
- Connect to PostgreSQL when DATABASE_URL is set, optionally applying migrations
- Follow global flag changes made by other instances
- Handle graceful shutdown on SIGINT/SIGTERM

Examples:
  # Start with default configuration (from env vars)
  server serve

  # Start on a specific host and port
  server serve --host 127.0.0.1 --port 9090

  # Apply pending migrations first
  server serve --migrate`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.host, "host", "", "server host address (default: 0.0.0.0)")
	cmd.Flags().IntVar(&opts.port, "port", 0, "server port (default: 8080)")
	cmd.Flags().BoolVar(&opts.migrate, "migrate", false, "apply pending database migrations before serving")
	cmd.Flags().StringVar(&opts.migrationsPath, "migrations", opts.migrationsPath, "migrations directory used with --migrate")
	return cmd
}

func runServer(ctx context.Context, opts serveOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	if opts.host != "" {
		cfg.Server.Host = opts.host
	}
	if opts.port != 0 {
		cfg.Server.Port = opts.port
	}

	logger := config.NewLogger(cfg.Logging)
	logger.Info().Str("version", Version).Str("environment", cfg.Environment).Msg("starting registration server")
	metrics.Init(Version, GitCommit, BuildDate)

	shutdownTracing, err := telemetry.InitTracing(ctx, cfg.Tracing, Version)
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Error().Err(err).Msg("tracing shutdown error")
		}
	}()

	if opts.migrate && cfg.StoreConfigured() {
		if err := postgres.MigrateUp(cfg.Database.URL, opts.migrationsPath); err != nil {
			return err
		}
		logger.Info().Str("path", opts.migrationsPath).Msg("migrations applied")
	}

	a, err := buildApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           api.NewRouter(cfg, logger, a.services),
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str("addr", server.Addr).Msg("listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		return gracefulShutdown(server, logger)
	})
	if a.listener != nil {
		g.Go(func() error { return a.listener.Run(gctx) })
	}
	if a.pool != nil {
		g.Go(func() error { return metrics.NewDBCollector(a.pool).Run(gctx, dbMetricsInterval) })
	}

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}

func gracefulShutdown(server *http.Server, logger zerolog.Logger) error {
	logger.Info().Msg("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		// Open settings streams never finish on their own.
		logger.Warn().Err(err).Msg("graceful shutdown timed out, closing remaining connections")
		return server.Close()
	}
	return nil
}

// app holds the backends behind the router and the resources serve must
// release.
type app struct {
	pool     *pgxpool.Pool
	listener *postgres.SettingsListener
	services api.Services
}

func (a *app) Close() {
	if a.pool != nil {
		a.pool.Close()
	}
}

// buildApp wires every backend the configuration enables. Absent optional
// backends stay nil so the handlers can report them as unavailable.
func buildApp(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*app, error) {
	a := &app{}

	var (
		settingsRepo settings.Repository = settings.NewMemoryRepository()
		regs         *registrations.Service
	)
	if cfg.StoreConfigured() {
		pool, err := postgres.NewPool(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("database: %w", err)
		}
		repo, err := postgres.NewRepository(pool)
		if err != nil {
			pool.Close()
			return nil, err
		}
		a.pool = pool
		settingsRepo = repo.Settings()
		regs = registrations.NewService(repo.Registrations(), logger)
	} else {
		logger.Warn().Msg("DATABASE_URL not set; registrations are kept in the legacy roster file only")
	}

	settingsSvc := settings.NewService(settingsRepo, nil, logger)
	if a.pool != nil {
		a.listener = postgres.NewSettingsListener(a.pool, settingsSvc.Apply, logger)
	}

	mailer, err := email.NewService(cfg.Email, cfg.Event, logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	if !mailer.Configured() {
		logger.Warn().Msg("RESEND_API_KEY not set; registrations cannot be submitted")
	}

	appender := roster.NewAppenderFromConfig(cfg.Roster, logger)
	var contents roster.Contents
	if cfg.Roster.GitHubConfigured() {
		contents = roster.NewContentsClient(cfg.Roster.GitHubToken, cfg.Roster.GitHubOwner, cfg.Roster.GitHubRepo,
			roster.WithBaseURL(cfg.Roster.GitHubAPIURL))
	}
	legacy := roster.NewSource(cfg.Roster, contents, nil)

	deps := intake.Dependencies{Flags: settingsSvc, Notifier: mailer, Roster: appender}
	relay := relayclient.New(cfg.Relay.BaseURL, cfg.Relay.Timeout)
	if relay.Configured() {
		deps.Notifier = relay
		deps.Roster = relay
		logger.Info().Str("base_url", cfg.Relay.BaseURL).Msg("intake notifications and roster appends go through the relays")
	}

	// Interfaces stay untyped nil without a store.
	var (
		lister standings.RegistrationLister
		admin  handlers.RegistrationAdmin
	)
	if regs != nil {
		deps.Store = regs
		lister = regs
		admin = regs
	}

	var gate *auth.AdminGate
	if cfg.Admin.Password != "" {
		gate = auth.NewAdminGate(cfg.Admin.Password, auth.NewJWTManager(cfg.Admin.JWTSecret, cfg.Admin.SessionTTL, tokenIssuer))
	} else {
		logger.Warn().Msg("ADMIN_PASSWORD not set; admin console disabled")
	}

	a.services = api.Services{
		Intake:        intake.New(deps, logger),
		Email:         mailer,
		Roster:        appender,
		RosterView:    standings.NewRosterView(lister, legacy, logger),
		Ranking:       standings.NewRankingView(settingsSvc, lister, legacy, logger),
		Settings:      settingsSvc,
		Registrations: admin,
		Gate:          gate,
		Pool:          a.pool,
		Build:         api.BuildInfo{Version: Version, GitCommit: GitCommit, BuildDate: BuildDate},
		Components: map[string]bool{
			"email":         mailer.Configured() || relay.Configured(),
			"roster":        appender.Configured() || relay.Configured(),
			"legacy_roster": legacy.Configured(),
			"admin":         gate.Enabled(),
		},
	}
	return a, nil
}
