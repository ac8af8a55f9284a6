package server

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/ashita-ai/vitrine/internal/auth"
	"github.com/ashita-ai/vitrine/internal/conn"
	"github.com/ashita-ai/vitrine/internal/connlog"
	"github.com/ashita-ai/vitrine/internal/entity"
	"github.com/ashita-ai/vitrine/internal/keepalive"
	"github.com/ashita-ai/vitrine/internal/model"
	"github.com/ashita-ai/vitrine/internal/transport"
)

// DefaultCheckTimeout bounds POST /api/admin/connection/check.
const DefaultCheckTimeout = 10 * time.Second

// Handlers holds HTTP handler dependencies.
type Handlers struct {
	entities            *entity.Set
	selector            *conn.Selector
	keepAlive           *keepalive.Poller
	connLog             *connlog.Logger
	jwtMgr              *auth.JWTManager
	admin               auth.Admin
	logger              *slog.Logger
	startedAt           time.Time
	version             string
	maxRequestBodyBytes int64
	checkTimeout        time.Duration
	openapiSpec         []byte
}

// HandlersDeps holds all dependencies for constructing Handlers.
// Optional (nil-safe): KeepAlive, OpenAPISpec.
type HandlersDeps struct {
	Entities            *entity.Set
	Selector            *conn.Selector
	KeepAlive           *keepalive.Poller
	ConnLog             *connlog.Logger
	JWTMgr              *auth.JWTManager
	Admin               auth.Admin
	Logger              *slog.Logger
	Version             string
	MaxRequestBodyBytes int64
	CheckTimeout        time.Duration
	OpenAPISpec         []byte
}

// NewHandlers creates a new Handlers with all dependencies.
func NewHandlers(d HandlersDeps) *Handlers {
	checkTimeout := d.CheckTimeout
	if checkTimeout <= 0 {
		checkTimeout = DefaultCheckTimeout
	}
	return &Handlers{
		entities:            d.Entities,
		selector:            d.Selector,
		keepAlive:           d.KeepAlive,
		connLog:             d.ConnLog,
		jwtMgr:              d.JWTMgr,
		admin:               d.Admin,
		logger:              d.Logger,
		startedAt:           time.Now(),
		version:             d.Version,
		maxRequestBodyBytes: d.MaxRequestBodyBytes,
		checkTimeout:        checkTimeout,
		openapiSpec:         d.OpenAPISpec,
	}
}

// HandleHealth handles GET /health. It reports the last known connection
// state without probing.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	snap := h.selector.ConnectionManager().Snapshot()
	mode := h.selector.CurrentMode()

	status := "healthy"
	httpStatus := http.StatusOK
	switch {
	case snap.Status == conn.StatusConnected:
	case mode == transport.ModeAPI:
		status = "degraded"
	case snap.LastCheck.IsZero() || snap.Status == conn.StatusConnecting:
		status = "starting"
	default:
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, r, httpStatus, model.HealthResponse{
		Status:     status,
		Version:    h.version,
		Connection: string(snap.Status),
		Mode:       string(mode),
		LogEntries: h.connLog.Len(),
		Uptime:     int64(time.Since(h.startedAt).Seconds()),
	})
}

// HandleOpenAPISpec serves the embedded OpenAPI specification.
func (h *Handlers) HandleOpenAPISpec(w http.ResponseWriter, r *http.Request) {
	if len(h.openapiSpec) == 0 {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(h.openapiSpec)
}

// writeEntityError maps an entity operation failure to a response.
func (h *Handlers) writeEntityError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *model.ValidationError
	switch {
	case errors.As(err, &verr):
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, verr.Message)
	case errors.Is(err, model.ErrValidation):
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
	case errors.Is(err, transport.ErrNotFound), errors.Is(err, transport.ErrInvalidInput):
		writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound, "record not found")
	default:
		h.logger.Error("entity operation failed",
			"error", err,
			"path", r.URL.Path,
			"request_id", RequestIDFromContext(r.Context()))
		writeError(w, r, http.StatusServiceUnavailable, model.ErrCodeUnavailable, "database unavailable")
	}
}

// currentMode is the transport mode reported in list metadata.
func (h *Handlers) currentMode() string {
	return string(h.selector.CurrentMode())
}

// maxQueryLimit is the maximum allowed value for limit query parameters.
const maxQueryLimit = 1000

func queryInt(r *http.Request, key string, defaultVal int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

// queryLimit returns a bounded limit value from query params.
// Values are clamped to [1, maxQueryLimit]; 0 means no limit.
func queryLimit(r *http.Request, defaultVal int) int {
	limit := queryInt(r, "limit", defaultVal)
	if limit == 0 {
		return 0
	}
	if limit < 1 {
		return 1
	}
	if limit > maxQueryLimit {
		return maxQueryLimit
	}
	return limit
}

func queryTime(r *http.Request, key string) (time.Time, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, errors.New("invalid " + key + ": expected RFC3339 format (e.g. 2024-01-01T00:00:00Z)")
	}
	return t, nil
}
