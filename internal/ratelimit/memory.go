package ratelimit

import (
	"context"
	"sync"
	"time"
)

type bucket struct {
	tokens     float64
	lastAccess time.Time
}

const (
	staleThreshold  = 10 * time.Minute
	cleanupInterval = time.Minute
)

// MemoryLimiter implements Limiter using an in-memory token bucket per key.
//
// Each key gets an independent bucket refilled at rate tokens per second up
// to burst. A background goroutine evicts keys idle for staleThreshold.
type MemoryLimiter struct {
	rate  float64
	burst float64
	now   func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket

	stopOnce sync.Once
	done     chan struct{}
	wg       sync.WaitGroup
}

// MemoryOption configures a MemoryLimiter.
type MemoryOption func(*MemoryLimiter)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *MemoryLimiter) { m.now = now }
}

// NewMemoryLimiter creates a token bucket limiter with rate requests per
// second and the given burst per key. Call Close to stop eviction.
func NewMemoryLimiter(rate float64, burst int, opts ...MemoryOption) *MemoryLimiter {
	if burst < 1 {
		burst = 1
	}
	m := &MemoryLimiter{
		rate:    rate,
		burst:   float64(burst),
		now:     time.Now,
		buckets: make(map[string]*bucket),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.wg.Add(1)
	go m.cleanup()
	return m
}

// Allow consumes one token from the bucket for key.
func (m *MemoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	b, ok := m.buckets[key]
	if !ok {
		m.buckets[key] = &bucket{tokens: m.burst - 1, lastAccess: now}
		return true, nil
	}

	b.tokens = min(m.burst, b.tokens+now.Sub(b.lastAccess).Seconds()*m.rate)
	b.lastAccess = now

	if b.tokens < 1 {
		return false, nil
	}
	b.tokens--
	return true, nil
}

// Len reports the number of tracked keys.
func (m *MemoryLimiter) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.buckets)
}

// Close stops the cleanup goroutine. Safe to call multiple times.
func (m *MemoryLimiter) Close() error {
	m.stopOnce.Do(func() { close(m.done) })
	m.wg.Wait()
	return nil
}

func (m *MemoryLimiter) cleanup() {
	defer m.wg.Done()
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			m.evictStale()
		}
	}
}

func (m *MemoryLimiter) evictStale() {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.now().Add(-staleThreshold)
	for key, b := range m.buckets {
		if b.lastAccess.Before(cutoff) {
			delete(m.buckets, key)
		}
	}
}
