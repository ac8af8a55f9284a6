// Package conn tracks the health of the primary transport and decides, per
// call, which transport serves a request.
package conn

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/ashita-ai/vitrine/internal/connlog"
	"github.com/ashita-ai/vitrine/internal/transport"
)

// Status is the primary transport's connection state.
type Status string

const (
	StatusDisconnected Status = "disconnected"
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusError        Status = "error"
)

// MaxRetries is the consecutive-failure count at which ShouldUseAPIMode flips.
const MaxRetries = 3

// ProbeTable is counted by CheckConnection and read by the keep-alive poller.
const ProbeTable = "agents"

// WakeTables are read, in order, to wake a paused database.
var WakeTables = []string{"agents", "prompts", "teaching_resources"}

// DefaultWakeDelay spaces the wake-up reads.
const DefaultWakeDelay = 2 * time.Second

// Snapshot is a point-in-time copy of the Manager's state.
type Snapshot struct {
	Status           Status
	RetryCount       int
	ShouldUseAPIMode bool
	LastCheck        time.Time // zero before the first probe
	LastError        string
}

// Manager owns the primary transport's status and consecutive-failure count.
// State changes only inside CheckConnection. Overlapping probes are not
// serialized; each writes its own result and the later write wins.
type Manager struct {
	primary   transport.Transport
	log       *connlog.Logger
	logger    *slog.Logger
	classify  Classifier
	wakeDelay time.Duration
	now       func() time.Time
	wake      singleflight.Group

	mu         sync.Mutex
	status     Status
	retryCount int
	lastCheck  time.Time
	lastErr    string
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithClassifier replaces DefaultClassifier.
func WithClassifier(c Classifier) ManagerOption {
	return func(m *Manager) { m.classify = c }
}

// WithWakeDelay overrides the pause between wake-up reads.
func WithWakeDelay(d time.Duration) ManagerOption {
	return func(m *Manager) { m.wakeDelay = d }
}

// WithManagerClock overrides time.Now for durations and LastCheck.
func WithManagerClock(now func() time.Time) ManagerOption {
	return func(m *Manager) { m.now = now }
}

// NewManager creates a Manager in StatusDisconnected.
func NewManager(primary transport.Transport, log *connlog.Logger, logger *slog.Logger, opts ...ManagerOption) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		primary:   primary,
		log:       log,
		logger:    logger,
		classify:  DefaultClassifier,
		wakeDelay: DefaultWakeDelay,
		now:       time.Now,
		status:    StatusDisconnected,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Primary returns the transport this Manager probes.
func (m *Manager) Primary() transport.Transport {
	return m.primary
}

// CheckConnection probes the primary transport with a count against
// ProbeTable. It never returns an error: failures are recorded and reported
// as false. A failure that looks like a paused database runs the wake-up
// routine before returning.
func (m *Manager) CheckConnection(ctx context.Context) bool {
	m.mu.Lock()
	prev := m.status
	m.status = StatusConnecting
	m.mu.Unlock()

	start := m.now()
	_, err := m.primary.Count(ctx, ProbeTable)
	elapsed := m.now().Sub(start)

	if err == nil {
		m.mu.Lock()
		m.status = StatusConnected
		m.retryCount = 0
		m.lastCheck = start
		m.lastErr = ""
		m.mu.Unlock()

		m.log.LogDuration(connlog.LevelInfo, connlog.CategoryConnection, "primary connection ok", elapsed, map[string]any{
			"outcome":        connlog.OutcomeSuccess,
			"previousStatus": string(prev),
		})
		return true
	}

	m.mu.Lock()
	m.status = StatusError
	m.retryCount++
	retries := m.retryCount
	m.lastCheck = start
	m.lastErr = err.Error()
	m.mu.Unlock()

	class := m.classify(err)
	m.log.Error(connlog.CategoryConnection, "primary connection failed", err, map[string]any{
		"errorCode":      codeOrUnknown(err),
		"retryCount":     retries,
		"previousStatus": string(prev),
		"class":          class.String(),
		"durationMs":     elapsed.Milliseconds(),
	})

	if class == ClassPaused {
		m.WakeUp(ctx)
	}
	return false
}

// WakeUp issues sequential reads against WakeTables, spaced by the wake
// delay, to nudge a paused database back to life. Concurrent callers share
// one run. Failures are logged, never returned.
func (m *Manager) WakeUp(ctx context.Context) {
	_, _, _ = m.wake.Do("wake", func() (any, error) {
		m.wakeUp(ctx)
		return nil, nil
	})
}

func (m *Manager) wakeUp(ctx context.Context) {
	m.log.Warn(connlog.CategoryConnection, "database appears paused, attempting wake-up", map[string]any{
		"tables": WakeTables,
	})
	woke := 0
	for i, table := range WakeTables {
		if i > 0 {
			if err := sleep(ctx, m.wakeDelay); err != nil {
				m.logger.Debug("conn: wake-up cancelled", "error", err)
				return
			}
		}
		_, err := m.primary.SelectOne(ctx, table, transport.Query{Columns: []string{"id"}})
		if err != nil && !errors.Is(err, transport.ErrNotFound) {
			m.log.Warn(connlog.CategoryConnection, "wake-up read failed", map[string]any{
				"table": table,
				"error": err.Error(),
			})
			continue
		}
		woke++
		m.log.Debug(connlog.CategoryConnection, "wake-up read ok", map[string]any{"table": table})
	}
	m.log.Info(connlog.CategoryConnection, "wake-up finished", map[string]any{
		"succeeded": woke,
		"attempted": len(WakeTables),
	})
}

// Status returns the current status.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// RetryCount returns the number of consecutive failed probes.
func (m *Manager) RetryCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.retryCount
}

// ShouldUseAPIMode reports whether MaxRetries consecutive probes have failed.
func (m *Manager) ShouldUseAPIMode() bool {
	return m.RetryCount() >= MaxRetries
}

// Snapshot returns a copy of the Manager's state.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{
		Status:           m.status,
		RetryCount:       m.retryCount,
		ShouldUseAPIMode: m.retryCount >= MaxRetries,
		LastCheck:        m.lastCheck,
		LastError:        m.lastErr,
	}
}
