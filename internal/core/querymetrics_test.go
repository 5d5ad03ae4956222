// AngelaMos | 2026
// querymetrics_test.go

package core

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stat(entity, op string, d time.Duration, failed bool) QueryStat {
	return QueryStat{
		Entity:   entity,
		Op:       op,
		Duration: d,
		Failed:   failed,
		At:       time.Now(),
	}
}

func TestQueryMetrics_RecentKeepsInsertionOrder(t *testing.T) {
	t.Parallel()

	m := NewQueryMetrics(8)
	for i := range 3 {
		m.ObserveQuery(stat("user", fmt.Sprintf("op%d", i), time.Millisecond, false))
	}

	recent := m.Recent()
	require.Len(t, recent, 3)
	assert.Equal(t, "op0", recent[0].Op)
	assert.Equal(t, "op2", recent[2].Op)
}

func TestQueryMetrics_RingEvictsOldest(t *testing.T) {
	t.Parallel()

	m := NewQueryMetrics(4)
	for i := range 6 {
		m.ObserveQuery(stat("user", fmt.Sprintf("op%d", i), time.Millisecond, false))
	}

	recent := m.Recent()
	require.Len(t, recent, 4)
	assert.Equal(t, "op2", recent[0].Op)
	assert.Equal(t, "op5", recent[3].Op)
}

func TestQueryMetrics_SummaryAggregatesPerKey(t *testing.T) {
	t.Parallel()

	m := NewQueryMetrics(16)
	m.ObserveQuery(stat("user", "list", 10*time.Millisecond, false))
	m.ObserveQuery(stat("user", "list", 30*time.Millisecond, true))
	m.ObserveQuery(stat("refresh_token", "create", 5*time.Millisecond, false))

	summary := m.Summary()
	require.Len(t, summary, 2)

	byKey := make(map[string]QuerySummary, len(summary))
	for _, s := range summary {
		byKey[s.Key] = s
	}

	userList := byKey["user.list"]
	assert.Equal(t, int64(2), userList.Count)
	assert.Equal(t, int64(1), userList.Failures)
	assert.InDelta(t, 20.0, userList.AvgMs, 0.001)
	assert.InDelta(t, 30.0, userList.MaxMs, 0.001)

	tokenCreate := byKey["refresh_token.create"]
	assert.Equal(t, int64(1), tokenCreate.Count)
	assert.Equal(t, int64(0), tokenCreate.Failures)
}

func TestQueryMetrics_Reset(t *testing.T) {
	t.Parallel()

	m := NewQueryMetrics(4)
	m.ObserveQuery(stat("user", "get", time.Millisecond, false))
	m.Reset()

	assert.Empty(t, m.Recent())
	assert.Empty(t, m.Summary())
}

func TestObserveQueryHelper(t *testing.T) {
	t.Parallel()

	m := NewQueryMetrics(4)
	start := time.Now().Add(-2 * time.Millisecond)
	ObserveQuery(m, "user", "get", start, errors.New("boom"))

	recent := m.Recent()
	require.Len(t, recent, 1)
	assert.Equal(t, "user", recent[0].Entity)
	assert.Equal(t, "get", recent[0].Op)
	assert.True(t, recent[0].Failed)
	assert.GreaterOrEqual(t, recent[0].Duration, 2*time.Millisecond)
}

func TestObserveQueryHelper_NilObserver(t *testing.T) {
	t.Parallel()

	// Must not panic when no collector is wired.
	ObserveQuery(nil, "user", "get", time.Now(), nil)
}

func TestSlowQueryObserver(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	next := NewQueryMetrics(4)
	obs := &SlowQueryObserver{
		Threshold: 10 * time.Millisecond,
		Logger:    slog.New(slog.NewTextHandler(&buf, nil)),
		Next:      next,
	}

	obs.ObserveQuery(stat("user", "fast", time.Millisecond, false))
	assert.Empty(t, buf.String())

	obs.ObserveQuery(stat("user", "slow", 50*time.Millisecond, false))
	assert.Contains(t, buf.String(), "slow query")
	assert.Contains(t, buf.String(), "user")

	// Both observations forwarded regardless of threshold.
	assert.Len(t, next.Recent(), 2)
}
