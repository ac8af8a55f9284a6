// Package vitrine is the public API for embedding the Vitrine showcase
// backend: the connection-resilient data layer in front of a hosted
// Postgres project, plus the HTTP API that serves the public site and the
// admin console.
//
//	app, err := vitrine.New(
//	    vitrine.WithVersion(version),
//	    vitrine.WithLogger(logger),
//	)
//	if err != nil { ... }
//	if err := app.Run(ctx); err != nil { ... }
//
// The import graph is one-way: vitrine (root) imports internal/*, but
// internal/* never imports vitrine (root).
package vitrine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/ashita-ai/vitrine/api"
	"github.com/ashita-ai/vitrine/internal/auth"
	"github.com/ashita-ai/vitrine/internal/config"
	"github.com/ashita-ai/vitrine/internal/conn"
	"github.com/ashita-ai/vitrine/internal/connlog"
	"github.com/ashita-ai/vitrine/internal/entity"
	"github.com/ashita-ai/vitrine/internal/keepalive"
	"github.com/ashita-ai/vitrine/internal/localstore"
	"github.com/ashita-ai/vitrine/internal/ratelimit"
	"github.com/ashita-ai/vitrine/internal/rest"
	"github.com/ashita-ai/vitrine/internal/server"
	"github.com/ashita-ai/vitrine/internal/storage"
	"github.com/ashita-ai/vitrine/internal/telemetry"
	"github.com/ashita-ai/vitrine/migrations"
	"github.com/ashita-ai/vitrine/ui"
)

const shutdownTimeout = 15 * time.Second

// App is the Vitrine server lifecycle. Construct with New(), run with Run().
type App struct {
	cfg          config.Config
	db           *storage.DB
	store        LocalStore
	closeStore   func() error
	connLog      *connlog.Logger
	selector     *conn.Selector
	keepAlive    *keepalive.Poller
	limiter      Limiter
	srv          *server.Server
	otelShutdown telemetry.Shutdown
	logger       *slog.Logger
	version      string
}

// New wires every subsystem and returns a ready-to-run App. It opens the
// database pool lazily and never fails because the database is down; a
// paused project is woken up by the first probe in Run.
func New(opts ...Option) (*App, error) {
	o := resolvedOptions{}
	for _, fn := range opts {
		fn(&o)
	}

	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}

	// Load .env file if present (non-fatal; production won't have one).
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if o.port != 0 {
		cfg.Port = o.port
	}
	if o.databaseURL != "" {
		cfg.DatabaseURL = o.databaseURL
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	version := o.version
	if version == "" {
		version = "dev"
	}

	logger.Info("vitrine starting", "version", version, "port", cfg.Port)

	a := &App{cfg: cfg, logger: logger, version: version}
	ok := false
	defer func() {
		if !ok {
			a.close()
		}
	}()

	a.otelShutdown, err = telemetry.Init(context.Background(), cfg.OTELEndpoint, cfg.ServiceName, version, cfg.OTELInsecure)
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	// Local store for the connection log.
	switch {
	case o.localStore != nil:
		a.store = o.localStore
	case cfg.LocalStorePath == "":
		a.store = localstore.NewMemoryStore()
	default:
		s, err := localstore.Open(cfg.LocalStorePath)
		if err != nil {
			return nil, fmt.Errorf("local store: %w", err)
		}
		a.store, a.closeStore = s, s.Close
	}
	a.connLog = connlog.New(a.store, logger, connlog.WithCapacity(cfg.LogCapacity))

	// Primary transport.
	a.db, err = storage.New(context.Background(), cfg.DatabaseURL, logger)
	if err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}
	if cfg.RunMigrations {
		if err := a.db.RunMigrations(context.Background(), migrations.FS); err != nil {
			return nil, fmt.Errorf("migrations: %w", err)
		}
	}

	// Fallback transport.
	restClient, err := rest.NewClient(rest.Config{
		BaseURL: cfg.SupabaseURL,
		APIKey:  cfg.SupabaseAnonKey,
		Timeout: cfg.RESTTimeout,
		Logger:  logger,
	})
	if err != nil {
		return nil, fmt.Errorf("rest client: %w", err)
	}

	manager := conn.NewManager(a.db, a.connLog, logger, conn.WithWakeDelay(cfg.WakeDelay))
	a.selector = conn.NewSelector(manager, restClient, a.connLog)
	entities := entity.NewSet(a.selector, a.connLog, conn.RetryPolicy{
		MaxRetries: cfg.RetryMaxAttempts,
		Delay:      cfg.RetryDelay,
	})

	if cfg.KeepAliveEnabled {
		a.keepAlive = keepalive.New(a.db, a.connLog, logger,
			keepalive.WithInterval(cfg.KeepAliveInterval),
			keepalive.WithPause(cfg.KeepAlivePause),
			keepalive.WithTimeout(cfg.KeepAliveTimeout),
		)
	}

	jwtMgr, err := auth.NewJWTManager(cfg.JWTPrivateKeyPath, cfg.JWTPublicKeyPath, cfg.JWTExpiration)
	if err != nil {
		return nil, fmt.Errorf("auth: %w", err)
	}
	if !cfg.AdminEnabled() {
		logger.Warn("admin console disabled: VITRINE_ADMIN_PASSWORD_HASH not set")
	}

	a.limiter = o.limiter
	if a.limiter == nil {
		a.limiter = ratelimit.NewMemoryLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	}

	uiFS, err := ui.DistFS()
	if err != nil {
		return nil, fmt.Errorf("ui: %w", err)
	}

	a.srv = server.New(server.ServerConfig{
		Entities:            entities,
		Selector:            a.selector,
		ConnLog:             a.connLog,
		JWTMgr:              jwtMgr,
		Admin:               auth.Admin{Username: cfg.AdminUsername, PasswordHash: cfg.AdminPasswordHash},
		Logger:              logger,
		KeepAlive:           a.keepAlive,
		Limiter:             a.limiter,
		Port:                cfg.Port,
		ReadTimeout:         cfg.ReadTimeout,
		WriteTimeout:        cfg.WriteTimeout,
		Version:             version,
		MaxRequestBodyBytes: cfg.MaxRequestBodyBytes,
		CheckTimeout:        cfg.InitTimeout,
		UIFS:                uiFS,
		OpenAPISpec:         api.OpenAPISpec,
	})

	if err := a.registerMetrics(); err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}

	ok = true
	return a, nil
}

func (a *App) registerMetrics() error {
	if err := a.db.RegisterPoolMetrics(); err != nil {
		return err
	}
	if err := conn.RegisterMetrics(a.selector); err != nil {
		return err
	}
	return telemetry.RegisterGauges(telemetry.Meter("vitrine/connlog"), telemetry.Gauge{
		Name:        "vitrine.connlog.entries",
		Description: "Entries held in the connection log ring buffer",
		Observe:     func() int64 { return int64(a.connLog.Len()) },
	})
}

// Run probes the database, starts the keep-alive poller and the HTTP server,
// then blocks until ctx is cancelled or the server fails. Shutdown runs on
// return; callers should not call it separately.
func (a *App) Run(ctx context.Context) error {
	// The initial probe only decides the starting mode. A down database is
	// not fatal: the REST fallback serves until the primary recovers.
	probeCtx, cancel := context.WithTimeout(ctx, a.cfg.InitTimeout)
	mode := a.selector.GetOptimalConnection(probeCtx).Mode()
	cancel()
	a.logger.Info("initial connection mode", "mode", mode)

	if a.keepAlive != nil {
		a.keepAlive.Start(ctx)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := a.srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return a.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// Shutdown stops accepting HTTP requests, drains in-flight ones, stops the
// keep-alive poller and releases every resource.
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("vitrine shutting down")

	var err error
	if a.srv != nil {
		if serr := a.srv.Shutdown(ctx); serr != nil {
			a.logger.Error("http shutdown error", "error", serr)
			err = serr
		}
	}
	a.close()

	a.logger.Info("vitrine stopped")
	return err
}

// close releases everything New acquired. Safe on a partially built App.
func (a *App) close() {
	if a.keepAlive != nil {
		a.keepAlive.Stop()
	}
	if a.limiter != nil {
		_ = a.limiter.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
	if a.closeStore != nil {
		if err := a.closeStore(); err != nil {
			a.logger.Warn("local store close", "error", err)
		}
	}
	if a.otelShutdown != nil {
		_ = a.otelShutdown(context.Background())
	}
}

// Handler returns the root HTTP handler, for tests and embedding.
func (a *App) Handler() http.Handler {
	return a.srv.Handler()
}
