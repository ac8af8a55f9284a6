package server_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/vitrine/internal/auth"
	"github.com/ashita-ai/vitrine/internal/conn"
	"github.com/ashita-ai/vitrine/internal/connlog"
	"github.com/ashita-ai/vitrine/internal/entity"
	"github.com/ashita-ai/vitrine/internal/model"
	"github.com/ashita-ai/vitrine/internal/ratelimit"
	"github.com/ashita-ai/vitrine/internal/server"
	"github.com/ashita-ai/vitrine/internal/transport"
	"github.com/ashita-ai/vitrine/internal/transport/transporttest"
)

const (
	adminUser     = "owner"
	adminPassword = "correct horse battery staple"
)

var errDown = errors.New("dial tcp: connection refused")

type env struct {
	t       *testing.T
	primary *transporttest.Fake
	api     *transporttest.Fake
	log     *connlog.Logger
	handler http.Handler
}

func newEnv(t *testing.T) *env {
	t.Helper()
	quiet := slog.New(slog.DiscardHandler)

	hash, err := auth.HashPassword(adminPassword)
	require.NoError(t, err)
	jwtMgr, err := auth.NewJWTManager("", "", time.Hour)
	require.NoError(t, err)

	limiter := ratelimit.NewMemoryLimiter(0.001, 2)
	t.Cleanup(func() { _ = limiter.Close() })

	e := &env{
		t:       t,
		primary: transporttest.New(transport.ModeSDK),
		api:     transporttest.New(transport.ModeAPI),
		log:     connlog.New(nil, quiet),
	}
	sel := conn.NewSelector(conn.NewManager(e.primary, e.log, quiet), e.api, e.log)
	srv := server.New(server.ServerConfig{
		Entities:            entity.NewSet(sel, e.log, conn.RetryPolicy{MaxRetries: 2, Delay: time.Millisecond}),
		Selector:            sel,
		ConnLog:             e.log,
		JWTMgr:              jwtMgr,
		Admin:               auth.Admin{Username: adminUser, PasswordHash: hash},
		Logger:              quiet,
		Limiter:             limiter,
		Version:             "test",
		MaxRequestBodyBytes: 1 << 20,
		CheckTimeout:        time.Second,
		OpenAPISpec:         []byte("openapi: 3.1.0\n"),
	})
	e.handler = srv.Handler()
	return e
}

// both seeds the same rows into both transports, like a real backend seen
// through either path.
func (e *env) both(table string, rows ...map[string]any) {
	e.primary.Seed(table, rows...)
	e.api.Seed(table, rows...)
}

func (e *env) do(method, path, token string, body any) *httptest.ResponseRecorder {
	e.t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(e.t, err)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	req.RemoteAddr = "192.0.2.10:40000"
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func (e *env) login() string {
	e.t.Helper()
	rec := e.do(http.MethodPost, "/api/admin/login", "", model.LoginRequest{Username: adminUser, Password: adminPassword})
	require.Equal(e.t, http.StatusOK, rec.Code, rec.Body.String())
	var resp struct {
		Data model.LoginResponse `json:"data"`
	}
	require.NoError(e.t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(e.t, resp.Data.Token)
	return resp.Data.Token
}

type listBody[T any] struct {
	Data  []T                `json:"data"`
	Total int                `json:"total"`
	Meta  model.ResponseMeta `json:"meta"`
}

type dataBody[T any] struct {
	Data T `json:"data"`
}

type errBody struct {
	Error model.ErrorDetail `json:"error"`
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestSkillDownload(t *testing.T) {
	e := newEnv(t)
	e.both("skills", map[string]any{
		"id": "s1", "name": "Scraper", "description": "d", "category": "编程开发", "difficulty": "初级", "downloads": 3,
	})

	t.Run("increments downloads", func(t *testing.T) {
		rec := e.do(http.MethodPost, "/api/skills/download", "", map[string]string{"skillId": "s1"})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		body := decode[model.SkillDownloadResponse](t, rec)
		assert.True(t, body.Success)
		assert.Equal(t, "s1", body.Skill.ID)
		assert.Equal(t, 4, body.Skill.Downloads)
	})

	t.Run("missing id", func(t *testing.T) {
		rec := e.do(http.MethodPost, "/api/skills/download", "", map[string]string{"skillId": "  "})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.NotEmpty(t, decode[model.PlainError](t, rec).Error)
	})

	t.Run("malformed body", func(t *testing.T) {
		rec := e.do(http.MethodPost, "/api/skills/download", "", "{")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown skill", func(t *testing.T) {
		rec := e.do(http.MethodPost, "/api/skills/download", "", map[string]string{"skillId": "nope"})
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.NotEmpty(t, decode[model.PlainError](t, rec).Error)
	})

	t.Run("malformed id", func(t *testing.T) {
		before := e.primary.CallsTo("Select")
		e.primary.FailMethod("Select", 1, fmt.Errorf("select skills: %w", transport.ErrInvalidInput))

		rec := e.do(http.MethodPost, "/api/skills/download", "", map[string]string{"skillId": "not-a-uuid"})
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.NotEmpty(t, decode[model.PlainError](t, rec).Error)
		assert.Equal(t, before+1, e.primary.CallsTo("Select"))
	})

	t.Run("backend down", func(t *testing.T) {
		e.primary.SetErr(errDown)
		e.api.SetErr(errDown)
		defer e.primary.SetErr(nil)
		defer e.api.SetErr(nil)

		rec := e.do(http.MethodPost, "/api/skills/download", "", map[string]string{"skillId": "s1"})
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.NotEmpty(t, decode[model.PlainError](t, rec).Error)
	})
}

func TestPublicList_FallsBackToAPI(t *testing.T) {
	e := newEnv(t)
	e.both("agents", map[string]any{"name": "Alpha", "description": "d", "url": "https://a.example"})

	rec := e.do(http.MethodGet, "/api/agents", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[listBody[model.Agent]](t, rec)
	assert.Equal(t, 1, body.Total)
	assert.Equal(t, "sdk", body.Meta.Mode)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	e.primary.SetErr(errDown)
	apiCalls := e.api.CallsTo("Select")

	rec = e.do(http.MethodGet, "/api/agents", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body = decode[listBody[model.Agent]](t, rec)
	assert.Equal(t, "api", body.Meta.Mode)
	require.Len(t, body.Data, 1)
	assert.Equal(t, "Alpha", body.Data[0].Name)
	assert.Equal(t, apiCalls+1, e.api.CallsTo("Select"))
}

func TestPublicLists(t *testing.T) {
	e := newEnv(t)
	active, inactive := true, false
	e.both("carousel_items",
		map[string]any{"title": "second", "image_url": "b.png", "sort_order": 2, "is_active": active},
		map[string]any{"title": "first", "image_url": "a.png", "sort_order": 1, "is_active": active},
		map[string]any{"title": "hidden", "image_url": "c.png", "sort_order": 0, "is_active": inactive},
	)
	e.both("default_content",
		map[string]any{"section": "hero", "content_key": "title", "content": map[string]any{"text": "hi"}},
		map[string]any{"section": "footer", "content_key": "copyright"},
	)
	e.both("skills",
		map[string]any{"name": "a", "category": "编程开发", "downloads": 1},
		map[string]any{"name": "b", "category": "编程开发", "downloads": 9},
		map[string]any{"name": "c", "category": "内容创作", "downloads": 5},
	)

	carousel := decode[listBody[model.CarouselItem]](t, e.do(http.MethodGet, "/api/carousel", "", nil))
	require.Len(t, carousel.Data, 2)
	assert.Equal(t, "first", carousel.Data[0].Title)

	content := decode[listBody[model.DefaultContent]](t, e.do(http.MethodGet, "/api/content/hero", "", nil))
	require.Len(t, content.Data, 1)
	assert.Equal(t, "title", content.Data[0].ContentKey)

	skills := decode[listBody[model.Skill]](t, e.do(http.MethodGet, "/api/skills?category=编程开发", "", nil))
	require.Len(t, skills.Data, 2)
	assert.Equal(t, "b", skills.Data[0].Name)

	empty := e.do(http.MethodGet, "/api/prompts", "", nil)
	assert.Contains(t, empty.Body.String(), `"data":[]`)
}

func TestSubmitRequest(t *testing.T) {
	e := newEnv(t)

	rec := e.do(http.MethodPost, "/api/requests", "", map[string]any{
		"name": "Visitor", "email": "v@example.com", "description": "build me a bot", "status": "completed",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[dataBody[model.CustomRequest]](t, rec).Data
	assert.Equal(t, model.RequestPending, created.Status)
	assert.NotEmpty(t, created.ID)

	rec = e.do(http.MethodPost, "/api/requests", "", map[string]any{
		"name": "Visitor", "email": "not-an-email", "description": "x",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, model.ErrCodeInvalidInput, decode[errBody](t, rec).Error.Code)

	// Burst of two per IP is spent.
	rec = e.do(http.MethodPost, "/api/requests", "", map[string]any{
		"name": "Visitor", "email": "v@example.com", "description": "again",
	})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, model.ErrCodeRateLimited, decode[errBody](t, rec).Error.Code)
}

func TestAdminAuth(t *testing.T) {
	e := newEnv(t)

	assert.Equal(t, http.StatusUnauthorized, e.do(http.MethodGet, "/api/admin/agents", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, e.do(http.MethodGet, "/api/admin/agents", "garbage", nil).Code)

	rec := e.do(http.MethodPost, "/api/admin/login", "", model.LoginRequest{Username: adminUser, Password: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	token := e.login()
	assert.Equal(t, http.StatusOK, e.do(http.MethodGet, "/api/admin/agents", token, nil).Code)

	authEntries := e.log.GetLogs(connlog.Filter{Category: connlog.CategoryAuth})
	require.Len(t, authEntries, 2)
	assert.Equal(t, connlog.LevelInfo, authEntries[0].Level)
	assert.Equal(t, connlog.LevelWarn, authEntries[1].Level)
}

func TestAdminCRUD(t *testing.T) {
	e := newEnv(t)
	token := e.login()

	rec := e.do(http.MethodPost, "/api/admin/agents", token, map[string]any{
		"name": "Alpha", "description": "d", "url": "https://a.example",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	id := decode[dataBody[model.Agent]](t, rec).Data.ID
	require.NotEmpty(t, id)

	rec = e.do(http.MethodPost, "/api/admin/agents", token, map[string]any{"name": "", "description": "d", "url": "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(http.MethodPatch, "/api/admin/agents/"+id, token, map[string]any{"name": "Beta", "id": "hijack"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[dataBody[model.Agent]](t, rec).Data
	assert.Equal(t, "Beta", updated.Name)
	assert.Equal(t, id, updated.ID)

	rec = e.do(http.MethodPatch, "/api/admin/agents/"+id, token, map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(http.MethodGet, "/api/admin/agents/"+id, token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, http.StatusNoContent, e.do(http.MethodDelete, "/api/admin/agents/"+id, token, nil).Code)
	assert.Equal(t, http.StatusNotFound, e.do(http.MethodDelete, "/api/admin/agents/"+id, token, nil).Code)
	assert.Equal(t, http.StatusNotFound, e.do(http.MethodGet, "/api/admin/agents/"+id, token, nil).Code)
}

func TestAdminRequests(t *testing.T) {
	e := newEnv(t)
	token := e.login()
	e.both("custom_requests",
		map[string]any{"id": "r1", "name": "a", "email": "a@example.com", "description": "x", "status": "pending"},
		map[string]any{"id": "r2", "name": "b", "email": "b@example.com", "description": "y", "status": "completed"},
	)

	list := decode[listBody[model.CustomRequest]](t, e.do(http.MethodGet, "/api/admin/requests?status=pending", token, nil))
	require.Len(t, list.Data, 1)
	assert.Equal(t, "r1", list.Data[0].ID)

	rec := e.do(http.MethodPatch, "/api/admin/requests/r1/status", token, map[string]any{"status": "in_progress"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, model.RequestInProgress, decode[dataBody[model.CustomRequest]](t, rec).Data.Status)

	rec = e.do(http.MethodPatch, "/api/admin/requests/r1/status", token, map[string]any{"status": "lost"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestConnectionEndpoints(t *testing.T) {
	e := newEnv(t)
	token := e.login()

	rec := e.do(http.MethodPost, "/api/admin/connection/check", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[dataBody[model.ConnectionResponse]](t, rec).Data
	assert.Equal(t, "connected", got.Status)
	assert.Equal(t, "sdk", got.Mode)
	assert.NotNil(t, got.LastCheck)

	e.primary.SetErr(errDown)
	rec = e.do(http.MethodPost, "/api/admin/connection/check", token, nil)
	got = decode[dataBody[model.ConnectionResponse]](t, rec).Data
	assert.Equal(t, "error", got.Status)
	assert.Equal(t, "api", got.Mode)
	assert.Equal(t, 1, got.RetryCount)
	assert.Contains(t, got.LastError, "connection refused")

	// GET reports without probing.
	before := e.primary.CallsTo("Count")
	rec = e.do(http.MethodGet, "/api/admin/connection", token, nil)
	assert.Equal(t, "api", decode[dataBody[model.ConnectionResponse]](t, rec).Data.Mode)
	assert.Equal(t, before, e.primary.CallsTo("Count"))
}

func TestLogEndpoints(t *testing.T) {
	e := newEnv(t)
	token := e.login()
	e.log.Log(connlog.LevelError, connlog.CategoryConnection, "db down", nil, map[string]any{"errorCode": "500"})
	e.log.Info(connlog.CategoryQuery, "fetch agents", nil)

	list := decode[listBody[connlog.Entry]](t, e.do(http.MethodGet, "/api/admin/logs?category=CONNECTION", token, nil))
	require.Len(t, list.Data, 1)
	assert.Equal(t, "db down", list.Data[0].Message)

	assert.Equal(t, http.StatusBadRequest, e.do(http.MethodGet, "/api/admin/logs?level=LOUD", token, nil).Code)
	assert.Equal(t, http.StatusBadRequest, e.do(http.MethodGet, "/api/admin/logs?since=yesterday", token, nil).Code)

	stats := decode[dataBody[connlog.ConnectionStats]](t, e.do(http.MethodGet, "/api/admin/logs/stats", token, nil)).Data
	assert.Equal(t, 1, stats.ErrorTypes["500"])

	rec := e.do(http.MethodGet, "/api/admin/logs/export?format=json", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), ".json")
	var exported []connlog.Entry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &exported))
	assert.Len(t, exported, e.log.Len())

	rec = e.do(http.MethodGet, "/api/admin/logs/export?format=xlsx", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")), "xlsx is a zip archive")

	assert.Equal(t, http.StatusBadRequest, e.do(http.MethodGet, "/api/admin/logs/export?format=csv", token, nil).Code)

	assert.Equal(t, http.StatusNoContent, e.do(http.MethodDelete, "/api/admin/logs", token, nil).Code)
	assert.Zero(t, e.log.Len())
}

func TestHealth(t *testing.T) {
	e := newEnv(t)

	rec := e.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	health := decode[dataBody[model.HealthResponse]](t, rec).Data
	assert.Equal(t, "test", health.Version)
	assert.Equal(t, "starting", health.Status)

	// Both paths down: the selector stays on the primary and health fails.
	e.primary.SetErr(errDown)
	e.api.SetErr(errDown)
	e.do(http.MethodGet, "/api/agents", "", nil)

	rec = e.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "unhealthy", decode[dataBody[model.HealthResponse]](t, rec).Data.Status)
}

func TestOpenAPISpec(t *testing.T) {
	e := newEnv(t)
	rec := e.do(http.MethodGet, "/openapi.yaml", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/yaml", rec.Header().Get("Content-Type"))
}

func TestRequestBodyTooLarge(t *testing.T) {
	e := newEnv(t)
	token := e.login()
	big := `{"name":"` + strings.Repeat("a", 2<<20) + `"}`
	rec := e.do(http.MethodPost, "/api/admin/prompts", token, big)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}
