// Package connlog is the diagnostic log for the database connection layer.
//
// Entries are kept newest-first in a bounded ring buffer, written through to
// the local store on every append so they survive restarts, and mirrored to
// the process slog.Logger. Connection statistics are derived from the entries
// themselves; there are no separate counters to drift out of sync.
package connlog

import "time"

// Level is the severity of an entry.
type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

// Category groups entries by the subsystem that produced them.
type Category string

const (
	CategoryConnection Category = "CONNECTION"
	CategoryQuery      Category = "QUERY"
	CategoryAuth       Category = "AUTH"
	CategoryRetry      Category = "RETRY"
	CategoryKeepAlive  Category = "KEEPALIVE"
	CategorySwitch     Category = "SWITCH"
)

// Entry is one immutable log record.
type Entry struct {
	ID         string         `json:"id"`
	Timestamp  time.Time      `json:"timestamp"`
	Level      Level          `json:"level"`
	Category   Category       `json:"category"`
	Message    string         `json:"message"`
	Details    any            `json:"details,omitempty"`
	Duration   *float64       `json:"duration,omitempty"` // milliseconds
	StackTrace string         `json:"stackTrace,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// Filter selects entries in GetLogs. Zero-valued fields match everything.
type Filter struct {
	Level    Level
	Category Category
	Since    time.Time
	Limit    int
}

func (f Filter) match(e *Entry) bool {
	if f.Level != "" && e.Level != f.Level {
		return false
	}
	if f.Category != "" && e.Category != f.Category {
		return false
	}
	if !f.Since.IsZero() && e.Timestamp.Before(f.Since) {
		return false
	}
	return true
}

// ParseLevel maps a case-sensitive level name to a Level.
func ParseLevel(s string) (Level, bool) {
	switch l := Level(s); l {
	case LevelDebug, LevelInfo, LevelWarn, LevelError:
		return l, true
	}
	return "", false
}

// ParseCategory maps a category name to a Category.
func ParseCategory(s string) (Category, bool) {
	switch c := Category(s); c {
	case CategoryConnection, CategoryQuery, CategoryAuth, CategoryRetry, CategoryKeepAlive, CategorySwitch:
		return c, true
	}
	return "", false
}
