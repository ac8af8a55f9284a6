package rest

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/ashita-ai/vitrine/internal/transport"
)

// codeNoRows is PostgREST's code for a singular request that matched zero rows.
const codeNoRows = "PGRST116"

// Error is a non-2xx response from PostgREST.
type Error struct {
	StatusCode int
	Status     string
	Code       string
	Message    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("rest: %s (%d): %s", e.Code, e.StatusCode, e.Message)
}

// ErrorCode returns the PostgREST or SQLSTATE code carried by the response.
func (e *Error) ErrorCode() string {
	return e.Code
}

// Is lets errors.Is match transport.ErrNotFound on PGRST116 responses and
// transport.ErrInvalidInput on 22P02 responses.
func (e *Error) Is(target error) bool {
	switch target {
	case transport.ErrNotFound:
		return e.Code == codeNoRows
	case transport.ErrInvalidInput:
		return e.Code == transport.CodeInvalidText
	}
	return false
}

// IsNotFound returns true if err is a 404 or a zero-row PGRST116 response.
func IsNotFound(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.StatusCode == http.StatusNotFound || e.Code == codeNoRows
	}
	return false
}

// IsUnauthorized returns true if the error is a 401.
func IsUnauthorized(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.StatusCode == http.StatusUnauthorized
	}
	return false
}

// IsUnavailable returns true for 502/503/504, which is how the gateway in
// front of a paused project answers.
func IsUnavailable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		switch e.StatusCode {
		case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return true
		}
	}
	return false
}
