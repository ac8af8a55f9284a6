package connlog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/ashita-ai/vitrine/internal/localstore"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// stepClock returns a clock that advances by step on every call.
func stepClock(start time.Time, step time.Duration) func() time.Time {
	var mu sync.Mutex
	t := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(step)
		return t
	}
}

func TestRingBufferBound(t *testing.T) {
	l := New(nil, quietLogger())
	for i := range 1500 {
		l.Info(CategoryQuery, fmt.Sprintf("entry %d", i), nil)
	}

	logs := l.GetLogs(Filter{})
	require.Len(t, logs, 1000)
	assert.Equal(t, "entry 1499", logs[0].Message)
	assert.Equal(t, "entry 500", logs[999].Message)
	for i := 1; i < len(logs); i++ {
		assert.False(t, logs[i].Timestamp.After(logs[i-1].Timestamp), "entries must be newest first")
	}
}

func TestRingWrapsAroundInOrder(t *testing.T) {
	r := newRing[int](3)
	for i := 1; i <= 7; i++ {
		r.push(i)
	}
	var got []int
	r.newestFirst(func(v int) bool {
		got = append(got, v)
		return true
	})
	assert.Equal(t, []int{7, 6, 5}, got)

	r.reset()
	assert.Equal(t, 0, r.len())
}

func TestGetLogsFilters(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l := New(nil, quietLogger(), WithClock(stepClock(start, time.Second)))

	l.Info(CategoryConnection, "c1", nil)                  // t+1s
	l.Warn(CategoryRetry, "r1", nil)                       // t+2s
	l.Error(CategoryConnection, "c2", errors.New("x"), nil) // t+3s
	l.Info(CategoryConnection, "c3", nil)                  // t+4s

	conn := l.GetLogs(Filter{Category: CategoryConnection})
	require.Len(t, conn, 3)
	assert.Equal(t, "c3", conn[0].Message)

	infoConn := l.GetLogs(Filter{Level: LevelInfo, Category: CategoryConnection})
	require.Len(t, infoConn, 2)

	since := l.GetLogs(Filter{Since: start.Add(3 * time.Second)})
	require.Len(t, since, 2)
	assert.Equal(t, "c3", since[0].Message)
	assert.Equal(t, "c2", since[1].Message)

	limited := l.GetLogs(Filter{Category: CategoryConnection, Limit: 1})
	require.Len(t, limited, 1)
	assert.Equal(t, "c3", limited[0].Message)
}

func TestErrorEntriesCaptureStack(t *testing.T) {
	l := New(nil, quietLogger())
	l.Error(CategoryQuery, "boom", errors.New("kaput"), nil)
	l.Info(CategoryQuery, "fine", nil)

	logs := l.GetLogs(Filter{})
	require.Len(t, logs, 2)
	assert.Empty(t, logs[0].StackTrace)
	assert.Contains(t, logs[1].StackTrace, "connlog")
	assert.Equal(t, map[string]any{"error": "kaput"}, logs[1].Details)
}

func TestMetadataIsCopiedOnAppend(t *testing.T) {
	l := New(nil, quietLogger())
	md := map[string]any{"attempt": 1}
	l.Warn(CategoryRetry, "retrying", md)
	md["attempt"] = 99

	assert.Equal(t, 1, l.GetLogs(Filter{})[0].Metadata["attempt"])
}

func TestPersistAndReload(t *testing.T) {
	store := localstore.NewMemoryStore()
	l := New(store, quietLogger(), WithCapacity(3))
	for i := range 5 {
		l.Info(CategoryKeepAlive, fmt.Sprintf("tick %d", i), nil)
	}

	raw, ok, err := store.Get(StorageKey)
	require.NoError(t, err)
	require.True(t, ok)
	var saved []Entry
	require.NoError(t, json.Unmarshal(raw, &saved))
	require.Len(t, saved, 3)
	assert.Equal(t, "tick 4", saved[0].Message)

	reloaded := New(store, quietLogger(), WithCapacity(3))
	logs := reloaded.GetLogs(Filter{})
	require.Len(t, logs, 3)
	assert.Equal(t, "tick 4", logs[0].Message)
	assert.Equal(t, "tick 2", logs[2].Message)

	// A smaller capacity keeps only the newest persisted entries.
	smaller := New(store, quietLogger(), WithCapacity(2))
	logs = smaller.GetLogs(Filter{})
	require.Len(t, logs, 2)
	assert.Equal(t, "tick 4", logs[0].Message)
}

func TestPersistFailureDoesNotPropagate(t *testing.T) {
	store := localstore.NewMemoryStore()
	store.SetErr = errors.New("quota exceeded")

	l := New(store, quietLogger())
	assert.NotPanics(t, func() {
		l.Error(CategoryConnection, "db down", errors.New("x"), nil)
	})
	assert.Equal(t, 1, l.Len())
}

func TestCorruptPersistedValueIsDiscarded(t *testing.T) {
	store := localstore.NewMemoryStore()
	require.NoError(t, store.Set(StorageKey, []byte("{not json")))

	l := New(store, quietLogger())
	assert.Equal(t, 0, l.Len())
}

func TestStartTimer(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l := New(nil, quietLogger(), WithClock(stepClock(start, 250*time.Millisecond)))

	stop := l.StartTimer("fetch agents")
	d := stop()

	assert.Equal(t, 250*time.Millisecond, d)
	logs := l.GetLogs(Filter{Level: LevelDebug})
	require.Len(t, logs, 1)
	require.NotNil(t, logs[0].Duration)
	assert.InDelta(t, 250.0, *logs[0].Duration, 0.001)
	assert.Equal(t, "fetch agents", logs[0].Metadata["timer"])
}

func TestClear(t *testing.T) {
	store := localstore.NewMemoryStore()
	l := New(store, quietLogger())
	l.Info(CategoryAuth, "login", nil)
	l.Clear()

	assert.Equal(t, 0, l.Len())
	_, ok, err := store.Get(StorageKey)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestConnectionStatsErrorTypes(t *testing.T) {
	l := New(nil, quietLogger())
	l.Log(LevelError, CategoryConnection, "db down", map[string]any{}, map[string]any{"errorCode": "500"})

	stats := l.ConnectionStats()
	assert.Equal(t, map[string]int{"500": 1}, stats.ErrorTypes)
	assert.Equal(t, 1, stats.FailedConnections)
	assert.Equal(t, 1, stats.TotalConnections)
}

func TestConnectionStatsDerivedFromEntries(t *testing.T) {
	l := New(nil, quietLogger())
	l.LogDuration(LevelInfo, CategoryConnection, "ok", 100*time.Millisecond, map[string]any{"outcome": OutcomeSuccess})
	l.LogDuration(LevelInfo, CategoryConnection, "ok", 300*time.Millisecond, map[string]any{"outcome": OutcomeSuccess})
	l.Info(CategoryConnection, "waking database", nil)
	l.Log(LevelError, CategoryConnection, "fail", nil, map[string]any{"errorCode": "57P01"})
	l.Log(LevelError, CategoryQuery, "query fail", nil, nil)
	l.Warn(CategorySwitch, "switched", map[string]any{"from": "sdk", "to": "api"})
	l.Info(CategorySwitch, "kept", map[string]any{"from": "api", "to": "api"})

	stats := l.ConnectionStats()
	assert.Equal(t, 2, stats.SuccessfulConnections)
	assert.Equal(t, 1, stats.FailedConnections)
	assert.Equal(t, 3, stats.TotalConnections)
	assert.Equal(t, 1, stats.ModeSwitch)
	assert.InDelta(t, 200.0, stats.AvgConnectionTime, 0.001)
	assert.Equal(t, map[string]int{"57P01": 1, "unknown": 1}, stats.ErrorTypes)
}

func TestExportJSON(t *testing.T) {
	l := New(nil, quietLogger())
	l.Info(CategoryQuery, "first", nil)
	l.Info(CategoryQuery, "second", nil)

	out, err := l.Export()
	require.NoError(t, err)

	var entries []Entry
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	require.Len(t, entries, 2)
	assert.Equal(t, "second", entries[0].Message)
}

func TestExportXLSX(t *testing.T) {
	l := New(nil, quietLogger())
	l.LogDuration(LevelInfo, CategoryConnection, "probe ok", 42*time.Millisecond, map[string]any{"outcome": OutcomeSuccess})
	l.Warn(CategorySwitch, "mode switched", map[string]any{"from": "sdk", "to": "api"})

	var buf bytes.Buffer
	require.NoError(t, l.ExportXLSX(&buf))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows(exportSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Level", rows[0][1])
	assert.Equal(t, "mode switched", rows[1][3])
	assert.Equal(t, "CONNECTION", rows[2][2])
	assert.Equal(t, "42", rows[2][4])
}

func TestConcurrentAppend(t *testing.T) {
	l := New(localstore.NewMemoryStore(), quietLogger(), WithCapacity(50))
	var wg sync.WaitGroup
	for g := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 25 {
				l.Info(CategoryQuery, fmt.Sprintf("g%d-%d", g, i), nil)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, l.Len())
}

func TestParseLevelAndCategory(t *testing.T) {
	lvl, ok := ParseLevel("WARN")
	assert.True(t, ok)
	assert.Equal(t, LevelWarn, lvl)
	_, ok = ParseLevel("warn")
	assert.False(t, ok)

	cat, ok := ParseCategory("KEEPALIVE")
	assert.True(t, ok)
	assert.Equal(t, CategoryKeepAlive, cat)
	_, ok = ParseCategory("NETWORK")
	assert.False(t, ok)
}
