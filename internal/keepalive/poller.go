// Package keepalive pings the primary database on an interval so a hosted
// project on a free tier does not auto-pause from inactivity.
package keepalive

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ashita-ai/vitrine/internal/conn"
	"github.com/ashita-ai/vitrine/internal/connlog"
	"github.com/ashita-ai/vitrine/internal/transport"
)

const (
	DefaultInterval = 5 * time.Minute
	DefaultPause    = 30 * time.Second
	DefaultTimeout  = 30 * time.Second
)

// Poller runs one background loop. After a network failure it pauses the
// loop and restarts it on its own once the pause elapses.
type Poller struct {
	primary  transport.Transport
	log      *connlog.Logger
	logger   *slog.Logger
	classify conn.Classifier
	interval time.Duration
	pauseFor time.Duration
	timeout  time.Duration

	mu     sync.Mutex
	active bool
	parent context.Context
	cancel context.CancelFunc // nil while paused or stopped
	resume *time.Timer
	wg     sync.WaitGroup

	ticks atomic.Int64
}

// Option configures a Poller.
type Option func(*Poller)

func WithInterval(d time.Duration) Option { return func(p *Poller) { p.interval = d } }

func WithPause(d time.Duration) Option { return func(p *Poller) { p.pauseFor = d } }

// WithTimeout bounds each ping.
func WithTimeout(d time.Duration) Option { return func(p *Poller) { p.timeout = d } }

func WithClassifier(c conn.Classifier) Option { return func(p *Poller) { p.classify = c } }

// New creates a stopped Poller.
func New(primary transport.Transport, log *connlog.Logger, logger *slog.Logger, opts ...Option) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Poller{
		primary:  primary,
		log:      log,
		logger:   logger,
		classify: conn.DefaultClassifier,
		interval: DefaultInterval,
		pauseFor: DefaultPause,
		timeout:  DefaultTimeout,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Start begins pinging every interval. It is a no-op while the loop is
// running; while paused it cancels the pending resume and restarts now.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.active && p.cancel != nil {
		return
	}
	if p.resume != nil {
		p.resume.Stop()
		p.resume = nil
	}
	p.active = true
	p.parent = ctx
	p.startLocked()

	p.log.Info(connlog.CategoryKeepAlive, "keep-alive started", map[string]any{
		"interval": p.interval.String(),
	})
}

func (p *Poller) startLocked() {
	loopCtx, cancel := context.WithCancel(p.parent)
	p.cancel = cancel
	p.wg.Add(1)
	go p.run(loopCtx)
}

func (p *Poller) run(ctx context.Context) {
	defer p.wg.Done()

	t := time.NewTicker(p.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			p.tick(ctx)
		}
	}
}

// tick pings the probe table once. An empty table still proves the database
// is awake, so ErrNotFound counts as success.
func (p *Poller) tick(ctx context.Context) {
	p.ticks.Add(1)

	pingCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	_, err := p.primary.SelectOne(pingCtx, conn.ProbeTable, transport.Query{Columns: []string{"id"}, Limit: 1})
	elapsed := time.Since(start)

	if ctx.Err() != nil {
		return
	}
	if err == nil || errors.Is(err, transport.ErrNotFound) {
		p.log.LogDuration(connlog.LevelInfo, connlog.CategoryKeepAlive, "keep-alive ping ok", elapsed, map[string]any{
			"empty": err != nil,
		})
		return
	}

	class := p.classify(err)
	code := conn.ErrorCode(err)
	if code == "" {
		code = "unknown"
	}
	p.log.Error(connlog.CategoryKeepAlive, "keep-alive ping failed", err, map[string]any{
		"errorCode": code,
		"class":     class.String(),
	})
	if class == conn.ClassNetwork {
		p.pause(p.pauseFor)
	}
}

// pause stops the loop and schedules a restart after d. Stop cancels the restart.
func (p *Poller) pause(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.active || p.cancel == nil {
		return
	}
	p.cancel()
	p.cancel = nil
	p.resume = time.AfterFunc(d, p.resumeAfterPause)

	p.log.Warn(connlog.CategoryKeepAlive, "keep-alive paused after network error", map[string]any{
		"pause": d.String(),
	})
}

func (p *Poller) resumeAfterPause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.active || p.cancel != nil {
		return
	}
	p.resume = nil
	p.startLocked()
	p.logger.Debug("keepalive: resumed after pause")
}

// Stop cancels the loop and any pending resume, then waits for the loop to
// exit. Safe to call more than once.
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.active {
		p.mu.Unlock()
		return
	}
	p.active = false
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	if p.resume != nil {
		p.resume.Stop()
		p.resume = nil
	}
	p.mu.Unlock()

	p.wg.Wait()
	p.log.Info(connlog.CategoryKeepAlive, "keep-alive stopped", nil)
}

// Active reports whether the poller is started, paused or not.
func (p *Poller) Active() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

// Paused reports whether the poller is waiting out a pause.
func (p *Poller) Paused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active && p.cancel == nil
}

// Ticks returns the number of pings attempted.
func (p *Poller) Ticks() int64 {
	return p.ticks.Load()
}
