package model

import "time"

// APIResponse is the standard response envelope for HTTP API responses.
type APIResponse struct {
	Data any          `json:"data,omitempty"`
	Meta ResponseMeta `json:"meta"`
}

// ListResponse is the envelope for list endpoints.
type ListResponse struct {
	Data  any          `json:"data"`
	Total int          `json:"total"`
	Meta  ResponseMeta `json:"meta"`
}

// APIError is the standard error response envelope.
type APIError struct {
	Error ErrorDetail  `json:"error"`
	Meta  ResponseMeta `json:"meta"`
}

// ResponseMeta contains request metadata included in every response.
type ResponseMeta struct {
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
	Mode      string    `json:"mode,omitempty"` // transport that served the request
}

// ErrorDetail describes an API error.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ErrorCode constants for standard API error codes.
const (
	ErrCodeInvalidInput  = "INVALID_INPUT"
	ErrCodeUnauthorized  = "UNAUTHORIZED"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeInternalError = "INTERNAL_ERROR"
	ErrCodeRateLimited   = "RATE_LIMITED"
	ErrCodeUnavailable   = "UNAVAILABLE"
)

// SkillDownloadRequest is the body of POST /api/skills/download.
type SkillDownloadRequest struct {
	SkillID string `json:"skillId"`
}

// SkillDownloadResponse is the success body of POST /api/skills/download.
// This route predates the envelope and keeps its original flat shape.
type SkillDownloadResponse struct {
	Success bool  `json:"success"`
	Skill   Skill `json:"skill"`
}

// PlainError is the flat {error} body used by POST /api/skills/download.
type PlainError struct {
	Error string `json:"error"`
}

// LoginRequest is the body of POST /api/admin/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse is returned by POST /api/admin/login.
type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// UpdateStatusRequest is the body of PATCH /api/admin/requests/{id}/status.
type UpdateStatusRequest struct {
	Status RequestStatus `json:"status"`
}

// ConnectionResponse reports the resilience layer's view of the backend.
type ConnectionResponse struct {
	Status           string     `json:"status"`
	Mode             string     `json:"mode"`
	RetryCount       int        `json:"retry_count"`
	ShouldUseAPIMode bool       `json:"should_use_api_mode"`
	LastCheck        *time.Time `json:"last_check,omitempty"`
	LastError        string     `json:"last_error,omitempty"`
	KeepAliveActive  bool       `json:"keepalive_active"`
	KeepAlivePaused  bool       `json:"keepalive_paused"`
}

// HealthResponse is the response for GET /health.
type HealthResponse struct {
	Status     string `json:"status"`
	Version    string `json:"version"`
	Connection string `json:"connection"`
	Mode       string `json:"mode"`
	LogEntries int    `json:"log_entries"`
	Uptime     int64  `json:"uptime_seconds"`
}
