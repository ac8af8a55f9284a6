package connlog

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ashita-ai/vitrine/internal/localstore"
)

const (
	// DefaultCapacity is the number of entries kept before the oldest is evicted.
	DefaultCapacity = 1000

	// StorageKey is the local store key holding the serialized entries.
	StorageKey = "db_connection_logs"
)

// Logger is the diagnostic ring buffer. All methods are safe for concurrent use.
type Logger struct {
	store  localstore.Store
	key    string
	logger *slog.Logger
	now    func() time.Time

	mu      sync.Mutex
	entries *ring[Entry]
}

// Option configures a Logger.
type Option func(*Logger)

// WithCapacity overrides DefaultCapacity.
func WithCapacity(n int) Option {
	return func(l *Logger) { l.entries = newRing[Entry](n) }
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Logger) { l.now = now }
}

// New creates a Logger and reloads any entries persisted under StorageKey.
// A nil store keeps entries in memory only. A corrupt persisted value is
// discarded with a warning.
func New(store localstore.Store, logger *slog.Logger, opts ...Option) *Logger {
	if logger == nil {
		logger = slog.Default()
	}
	l := &Logger{
		store:   store,
		key:     StorageKey,
		logger:  logger,
		now:     time.Now,
		entries: newRing[Entry](DefaultCapacity),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.load()
	return l
}

func (l *Logger) load() {
	if l.store == nil {
		return
	}
	raw, ok, err := l.store.Get(l.key)
	if err != nil {
		l.logger.Warn("connlog: load persisted entries", "error", err)
		return
	}
	if !ok || len(raw) == 0 {
		return
	}
	var saved []Entry
	if err := json.Unmarshal(raw, &saved); err != nil {
		l.logger.Warn("connlog: discard corrupt persisted entries", "error", err)
		return
	}
	// saved is newest-first; push oldest-first so the ring ends in the same order.
	if len(saved) > l.entries.cap() {
		saved = saved[:l.entries.cap()]
	}
	for i := len(saved) - 1; i >= 0; i-- {
		l.entries.push(saved[i])
	}
}

// Log appends an entry. ERROR entries carry the caller's stack.
func (l *Logger) Log(level Level, category Category, message string, details any, metadata map[string]any) {
	l.append(level, category, message, details, nil, metadata)
}

// LogDuration appends an entry that records how long something took.
func (l *Logger) LogDuration(level Level, category Category, message string, d time.Duration, metadata map[string]any) {
	ms := float64(d) / float64(time.Millisecond)
	l.append(level, category, message, nil, &ms, metadata)
}

// Debug logs at LevelDebug.
func (l *Logger) Debug(category Category, message string, metadata map[string]any) {
	l.append(LevelDebug, category, message, nil, nil, metadata)
}

// Info logs at LevelInfo.
func (l *Logger) Info(category Category, message string, metadata map[string]any) {
	l.append(LevelInfo, category, message, nil, nil, metadata)
}

// Warn logs at LevelWarn.
func (l *Logger) Warn(category Category, message string, metadata map[string]any) {
	l.append(LevelWarn, category, message, nil, nil, metadata)
}

// Error logs at LevelError with err as details.
func (l *Logger) Error(category Category, message string, err error, metadata map[string]any) {
	var details any
	if err != nil {
		details = map[string]any{"error": err.Error()}
	}
	l.append(LevelError, category, message, details, nil, metadata)
}

// StartTimer returns a function that logs the time elapsed since StartTimer
// was called at DEBUG level and returns it.
func (l *Logger) StartTimer(name string) func() time.Duration {
	start := l.now()
	return func() time.Duration {
		d := l.now().Sub(start)
		l.LogDuration(LevelDebug, CategoryQuery, fmt.Sprintf("%s completed", name), d, map[string]any{"timer": name})
		return d
	}
}

func (l *Logger) append(level Level, category Category, message string, details any, duration *float64, metadata map[string]any) {
	e := Entry{
		ID:        uuid.NewString(),
		Timestamp: l.now().UTC(),
		Level:     level,
		Category:  category,
		Message:   message,
		Details:   details,
		Duration:  duration,
		Metadata:  maps.Clone(metadata),
	}
	if level == LevelError {
		e.StackTrace = string(debug.Stack())
	}

	l.mu.Lock()
	l.entries.push(e)
	l.persistLocked()
	l.mu.Unlock()

	l.mirror(e)
}

// persistLocked writes every entry to the store. Failures are reported to
// slog and otherwise ignored so a full disk never breaks a database call.
func (l *Logger) persistLocked() {
	if l.store == nil {
		return
	}
	all := make([]Entry, 0, l.entries.len())
	l.entries.newestFirst(func(e Entry) bool {
		all = append(all, e)
		return true
	})
	raw, err := json.Marshal(all)
	if err != nil {
		l.logger.Error("connlog: encode entries", "error", err)
		return
	}
	if err := l.store.Set(l.key, raw); err != nil {
		l.logger.Error("connlog: persist entries", "error", err)
	}
}

func (l *Logger) mirror(e Entry) {
	var lvl slog.Level
	switch e.Level {
	case LevelDebug:
		lvl = slog.LevelDebug
	case LevelWarn:
		lvl = slog.LevelWarn
	case LevelError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	ctx := context.Background()
	if !l.logger.Enabled(ctx, lvl) {
		return
	}
	attrs := []any{"category", string(e.Category), "entry_id", e.ID}
	if e.Duration != nil {
		attrs = append(attrs, "duration_ms", *e.Duration)
	}
	if e.Details != nil {
		attrs = append(attrs, "details", e.Details)
	}
	if len(e.Metadata) > 0 {
		attrs = append(attrs, "metadata", e.Metadata)
	}
	l.logger.Log(ctx, lvl, e.Message, attrs...)
}

// GetLogs returns entries matching every field of f, newest first.
func (l *Logger) GetLogs(f Filter) []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Entry, 0)
	l.entries.newestFirst(func(e Entry) bool {
		if f.match(&e) {
			out = append(out, e)
		}
		return f.Limit <= 0 || len(out) < f.Limit
	})
	return out
}

// Len returns the number of buffered entries.
func (l *Logger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.entries.len()
}

// Clear drops every entry, in memory and in the store.
func (l *Logger) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries.reset()
	if l.store == nil {
		return
	}
	if err := l.store.Delete(l.key); err != nil {
		l.logger.Error("connlog: clear persisted entries", "error", err)
	}
}
