package server

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/ashita-ai/vitrine/internal/auth"
	"github.com/ashita-ai/vitrine/internal/conn"
	"github.com/ashita-ai/vitrine/internal/connlog"
	"github.com/ashita-ai/vitrine/internal/entity"
	"github.com/ashita-ai/vitrine/internal/keepalive"
	"github.com/ashita-ai/vitrine/internal/model"
	"github.com/ashita-ai/vitrine/internal/ratelimit"
)

// Server is the Vitrine HTTP server.
type Server struct {
	httpServer *http.Server
	handler    http.Handler
	handlers   *Handlers
	logger     *slog.Logger
}

// Handler returns the root HTTP handler for use in tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ServerConfig holds all dependencies and configuration for creating a Server.
// Optional fields (nil-safe): KeepAlive, Limiter, UIFS, OpenAPISpec.
type ServerConfig struct {
	// Required dependencies.
	Entities *entity.Set
	Selector *conn.Selector
	ConnLog  *connlog.Logger
	JWTMgr   *auth.JWTManager
	Admin    auth.Admin
	Logger   *slog.Logger

	// Optional dependencies (nil = disabled).
	KeepAlive *keepalive.Poller
	Limiter   ratelimit.Limiter

	// HTTP server settings.
	Port                int
	ReadTimeout         time.Duration
	WriteTimeout        time.Duration
	Version             string
	MaxRequestBodyBytes int64
	CheckTimeout        time.Duration

	// Optional embedded assets.
	UIFS        fs.FS  // Embedded UI filesystem (SPA).
	OpenAPISpec []byte // Embedded OpenAPI YAML.
}

// New creates a new HTTP server with all routes configured.
func New(cfg ServerConfig) *Server {
	h := NewHandlers(HandlersDeps{
		Entities:            cfg.Entities,
		Selector:            cfg.Selector,
		KeepAlive:           cfg.KeepAlive,
		ConnLog:             cfg.ConnLog,
		JWTMgr:              cfg.JWTMgr,
		Admin:               cfg.Admin,
		Logger:              cfg.Logger,
		Version:             cfg.Version,
		MaxRequestBodyBytes: cfg.MaxRequestBodyBytes,
		CheckTimeout:        cfg.CheckTimeout,
		OpenAPISpec:         cfg.OpenAPISpec,
	})

	rejectRL := func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusTooManyRequests, model.ErrCodeRateLimited, "too many requests")
	}
	submitRL := ratelimit.Middleware(cfg.Limiter, "submit", ratelimit.IPKeyFunc, rejectRL, cfg.Logger)
	authRL := ratelimit.Middleware(cfg.Limiter, "auth", ratelimit.IPKeyFunc, rejectRL, cfg.Logger)

	mux := http.NewServeMux()

	// Public site reads.
	mux.HandleFunc("GET /api/agents", h.HandleListAgents)
	mux.HandleFunc("GET /api/prompts", h.HandleListPrompts)
	mux.HandleFunc("GET /api/resources", h.HandleListResources)
	mux.HandleFunc("GET /api/skills", h.HandleListSkills)
	mux.HandleFunc("GET /api/carousel", h.HandleListCarousel)
	mux.HandleFunc("GET /api/content/{section}", h.HandleGetContent)

	// Public writes (rate limited by IP).
	mux.HandleFunc("POST /api/skills/download", h.HandleSkillDownload)
	mux.Handle("POST /api/requests", submitRL(http.HandlerFunc(h.HandleSubmitRequest)))

	// Admin login (no auth, rate limited by IP).
	mux.Handle("POST /api/admin/login", authRL(http.HandlerFunc(h.HandleLogin)))

	// Admin console (JWT required).
	admin := requireAdmin(cfg.JWTMgr)
	set := cfg.Entities
	crudRoutes(mux, "agents", h, set.Agents.Operations, admin, nil)
	crudRoutes(mux, "prompts", h, set.Prompts.Operations, admin, nil)
	crudRoutes(mux, "resources", h, set.Resources.Operations, admin, nil)
	crudRoutes(mux, "skills", h, set.Skills.Operations, admin, nil)
	crudRoutes(mux, "carousel", h, set.Carousel.Operations, admin, nil)
	crudRoutes(mux, "content", h, set.Content.Operations, admin, nil)
	crudRoutes(mux, "requests", h, set.Requests.Operations, admin, http.HandlerFunc(h.HandleListRequests))
	mux.Handle("PATCH /api/admin/requests/{id}/status", admin(http.HandlerFunc(h.HandleUpdateRequestStatus)))

	mux.Handle("GET /api/admin/connection", admin(http.HandlerFunc(h.HandleGetConnection)))
	mux.Handle("POST /api/admin/connection/check", admin(http.HandlerFunc(h.HandleCheckConnection)))

	mux.Handle("GET /api/admin/logs", admin(http.HandlerFunc(h.HandleListLogs)))
	mux.Handle("GET /api/admin/logs/stats", admin(http.HandlerFunc(h.HandleLogStats)))
	mux.Handle("GET /api/admin/logs/export", admin(http.HandlerFunc(h.HandleExportLogs)))
	mux.Handle("DELETE /api/admin/logs", admin(http.HandlerFunc(h.HandleClearLogs)))

	// OpenAPI spec and health (no auth, no rate limit).
	mux.HandleFunc("GET /openapi.yaml", h.HandleOpenAPISpec)
	mux.HandleFunc("GET /health", h.HandleHealth)

	// SPA: serve the embedded UI at the root path.
	// Registered last so all API routes take priority via the mux's longest-match rule.
	if cfg.UIFS != nil {
		mux.Handle("/", newSPAHandler(cfg.UIFS))
		cfg.Logger.Info("ui enabled, serving SPA at /")
	}

	// Middleware chain (outermost executes first):
	// request ID → security headers → tracing → logging → recovery → handler.
	var handler http.Handler = mux
	handler = recoveryMiddleware(cfg.Logger, handler)
	handler = loggingMiddleware(cfg.Logger, handler)
	handler = tracingMiddleware(handler)
	handler = securityHeadersMiddleware(handler)
	handler = requestIDMiddleware(handler)

	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           handler,
			ReadTimeout:       cfg.ReadTimeout,
			ReadHeaderTimeout: 10 * time.Second,
			WriteTimeout:      cfg.WriteTimeout,
		},
		handler:  handler,
		handlers: h,
		logger:   cfg.Logger,
	}
}

// Handlers returns the underlying Handlers.
func (s *Server) Handlers() *Handlers {
	return s.handlers
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http server shutting down")
	return s.httpServer.Shutdown(ctx)
}
