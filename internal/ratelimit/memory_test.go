package ratelimit

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newLimiter(t *testing.T, rate float64, burst int) (*MemoryLimiter, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	m := NewMemoryLimiter(rate, burst, WithClock(clock.Now))
	t.Cleanup(func() { require.NoError(t, m.Close()) })
	return m, clock
}

func TestMemoryLimiterBurstThenDeny(t *testing.T) {
	m, _ := newLimiter(t, 1, 3)
	ctx := context.Background()

	for i := range 3 {
		ok, err := m.Allow(ctx, "k1")
		require.NoError(t, err)
		assert.True(t, ok, "request %d within burst", i)
	}
	ok, err := m.Allow(ctx, "k1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryLimiterRefill(t *testing.T) {
	m, clock := newLimiter(t, 2, 1)
	ctx := context.Background()

	ok, _ := m.Allow(ctx, "k1")
	require.True(t, ok)
	ok, _ = m.Allow(ctx, "k1")
	require.False(t, ok)

	clock.Advance(500 * time.Millisecond)
	ok, _ = m.Allow(ctx, "k1")
	assert.True(t, ok, "one token refilled after half a second at 2 rps")
}

func TestMemoryLimiterTokensCapAtBurst(t *testing.T) {
	m, clock := newLimiter(t, 100, 2)
	ctx := context.Background()

	_, _ = m.Allow(ctx, "k1")
	clock.Advance(time.Hour)

	allowed := 0
	for range 5 {
		if ok, _ := m.Allow(ctx, "k1"); ok {
			allowed++
		}
	}
	assert.Equal(t, 2, allowed)
}

func TestMemoryLimiterIndependentKeys(t *testing.T) {
	m, _ := newLimiter(t, 1, 1)
	ctx := context.Background()

	ok, _ := m.Allow(ctx, "a")
	assert.True(t, ok)
	ok, _ = m.Allow(ctx, "a")
	assert.False(t, ok)
	ok, _ = m.Allow(ctx, "b")
	assert.True(t, ok)
}

func TestMemoryLimiterEvictStale(t *testing.T) {
	m, clock := newLimiter(t, 1, 1)
	ctx := context.Background()

	_, _ = m.Allow(ctx, "old")
	clock.Advance(staleThreshold + time.Second)
	_, _ = m.Allow(ctx, "fresh")

	m.evictStale()
	assert.Equal(t, 1, m.Len())
}

func TestMemoryLimiterConcurrent(t *testing.T) {
	m, _ := newLimiter(t, 0, 50)
	ctx := context.Background()

	var allowed atomic.Int64
	var wg sync.WaitGroup
	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := m.Allow(ctx, "shared"); ok {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(50), allowed.Load())
}

func TestMemoryLimiterCloseIdempotent(t *testing.T) {
	m := NewMemoryLimiter(1, 1)
	require.NoError(t, m.Close())
	require.NoError(t, m.Close())
}

type errLimiter struct{}

func (errLimiter) Allow(context.Context, string) (bool, error) { return false, assert.AnError }
func (errLimiter) Close() error                                 { return nil }

func TestMiddleware(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })
	reject := func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusTooManyRequests) }
	logger := slog.New(slog.DiscardHandler)

	serve := func(h http.Handler, addr string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/requests", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	t.Run("rejects over limit", func(t *testing.T) {
		m, _ := newLimiter(t, 1, 1)
		h := Middleware(m, "requests", IPKeyFunc, reject, logger)(ok)

		assert.Equal(t, http.StatusNoContent, serve(h, "10.0.0.1:5000").Code)
		rec := serve(h, "10.0.0.1:5001")
		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.Equal(t, "1", rec.Header().Get("Retry-After"))
		assert.Equal(t, http.StatusNoContent, serve(h, "10.0.0.2:5000").Code)
	})

	t.Run("fails open on limiter error", func(t *testing.T) {
		h := Middleware(errLimiter{}, "requests", IPKeyFunc, reject, logger)(ok)
		assert.Equal(t, http.StatusNoContent, serve(h, "10.0.0.1:5000").Code)
	})

	t.Run("nil limiter disables", func(t *testing.T) {
		h := Middleware(nil, "requests", IPKeyFunc, reject, logger)(ok)
		assert.Equal(t, http.StatusNoContent, serve(h, "10.0.0.1:5000").Code)
	})

	t.Run("noop limiter allows", func(t *testing.T) {
		h := Middleware(NoopLimiter{}, "requests", IPKeyFunc, reject, logger)(ok)
		for range 10 {
			assert.Equal(t, http.StatusNoContent, serve(h, "10.0.0.1:5000").Code)
		}
	})
}

func TestIPKeyFunc(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "[::1]:443"
	assert.Equal(t, "::1", IPKeyFunc(req))
	req.RemoteAddr = "bare"
	assert.Equal(t, "bare", IPKeyFunc(req))
}
