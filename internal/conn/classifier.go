package conn

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ashita-ai/vitrine/internal/storage"
)

// Class is the coarse kind of a transport failure.
type Class int

const (
	ClassUnknown Class = iota
	// ClassPaused means the hosted database has auto-paused and needs waking.
	ClassPaused
	// ClassNetwork means the backend could not be reached at all.
	ClassNetwork
)

func (c Class) String() string {
	switch c {
	case ClassPaused:
		return "paused"
	case ClassNetwork:
		return "network"
	default:
		return "unknown"
	}
}

// Classifier maps an error to a Class. Replace it when the backend reports
// pauses some other way.
type Classifier func(err error) Class

// sqlstateCannotConnectNow is returned while a resumed instance is still starting.
const sqlstateCannotConnectNow = "57P03"

var networkMarkers = []string{"network", "timeout", "connection refused", "connection reset", "no such host"}

// DefaultClassifier sniffs error text for "paused" or "inactive", then falls
// back to transport-level checks for unreachable backends.
func DefaultClassifier(err error) Class {
	if err == nil {
		return ClassUnknown
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "paused") || strings.Contains(msg, "inactive") || ErrorCode(err) == sqlstateCannotConnectNow {
		return ClassPaused
	}

	if errors.Is(err, context.DeadlineExceeded) || pgconn.Timeout(err) {
		return ClassNetwork
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return ClassNetwork
	}
	for _, m := range networkMarkers {
		if strings.Contains(msg, m) {
			return ClassNetwork
		}
	}
	return ClassUnknown
}

// coder is implemented by transport errors that carry a backend code.
type coder interface {
	ErrorCode() string
}

// ErrorCode returns the SQLSTATE or PostgREST code behind err, or "".
func ErrorCode(err error) string {
	if code := storage.ErrorCode(err); code != "" {
		return code
	}
	var c coder
	if errors.As(err, &c) {
		return c.ErrorCode()
	}
	return ""
}
