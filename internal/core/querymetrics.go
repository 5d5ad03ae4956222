// AngelaMos | 2026
// querymetrics.go

package core

import (
	"log/slog"
	"sync"
	"time"
)

// QueryStat describes one storage operation as seen by a repository.
type QueryStat struct {
	Entity   string        `json:"entity"`
	Op       string        `json:"op"`
	Duration time.Duration `json:"duration_ns"`
	Failed   bool          `json:"failed"`
	At       time.Time     `json:"at"`
}

// QueryObserver receives per-query timings from repositories. Implementations
// must be safe for concurrent use; repositories call it inline on the request
// path.
type QueryObserver interface {
	ObserveQuery(stat QueryStat)
}

// NopQueryObserver discards all observations.
type NopQueryObserver struct{}

func (NopQueryObserver) ObserveQuery(QueryStat) {}

// ObserveQuery is the repository-side helper: defer it with the operation
// start time and the (named) error result.
func ObserveQuery(
	obs QueryObserver,
	entity, op string,
	start time.Time,
	err error,
) {
	if obs == nil {
		return
	}
	obs.ObserveQuery(QueryStat{
		Entity:   entity,
		Op:       op,
		Duration: time.Since(start),
		Failed:   err != nil,
		At:       time.Now(),
	})
}

// QueryMetrics is a bounded in-memory collector with an explicit lifecycle:
// constructed at startup, injected into repositories, drained via Summary or
// Recent. The ring buffer keeps only the most recent observations.
type QueryMetrics struct {
	mu     sync.Mutex
	ring   []QueryStat
	next   int
	filled bool
	totals map[string]*queryTotals
}

type queryTotals struct {
	count    int64
	failures int64
	total    time.Duration
	max      time.Duration
}

func NewQueryMetrics(capacity int) *QueryMetrics {
	if capacity <= 0 {
		capacity = 1000
	}
	return &QueryMetrics{
		ring:   make([]QueryStat, capacity),
		totals: make(map[string]*queryTotals),
	}
}

func (m *QueryMetrics) ObserveQuery(stat QueryStat) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ring[m.next] = stat
	m.next++
	if m.next == len(m.ring) {
		m.next = 0
		m.filled = true
	}

	key := stat.Entity + "." + stat.Op
	t, ok := m.totals[key]
	if !ok {
		t = &queryTotals{}
		m.totals[key] = t
	}
	t.count++
	if stat.Failed {
		t.failures++
	}
	t.total += stat.Duration
	if stat.Duration > t.max {
		t.max = stat.Duration
	}
}

// Recent returns the buffered observations, oldest first.
func (m *QueryMetrics) Recent() []QueryStat {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.filled {
		out := make([]QueryStat, m.next)
		copy(out, m.ring[:m.next])
		return out
	}

	out := make([]QueryStat, 0, len(m.ring))
	out = append(out, m.ring[m.next:]...)
	out = append(out, m.ring[:m.next]...)
	return out
}

type QuerySummary struct {
	Key      string `json:"key"`
	Count    int64  `json:"count"`
	Failures int64  `json:"failures"`
	AvgMs    float64 `json:"avg_ms"`
	MaxMs    float64 `json:"max_ms"`
}

func (m *QueryMetrics) Summary() []QuerySummary {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]QuerySummary, 0, len(m.totals))
	for key, t := range m.totals {
		avg := float64(0)
		if t.count > 0 {
			avg = float64(t.total.Milliseconds()) / float64(t.count)
		}
		out = append(out, QuerySummary{
			Key:      key,
			Count:    t.count,
			Failures: t.failures,
			AvgMs:    avg,
			MaxMs:    float64(t.max.Milliseconds()),
		})
	}
	return out
}

func (m *QueryMetrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.next = 0
	m.filled = false
	m.totals = make(map[string]*queryTotals)
}

// SlowQueryObserver wraps another observer and logs queries that exceed the
// threshold before forwarding them.
type SlowQueryObserver struct {
	Threshold time.Duration
	Logger    *slog.Logger
	Next      QueryObserver
}

func (o *SlowQueryObserver) ObserveQuery(stat QueryStat) {
	if o.Threshold > 0 && stat.Duration > o.Threshold && o.Logger != nil {
		o.Logger.Warn("slow query",
			"entity", stat.Entity,
			"op", stat.Op,
			"duration_ms", stat.Duration.Milliseconds(),
			"failed", stat.Failed,
		)
	}
	if o.Next != nil {
		o.Next.ObserveQuery(stat)
	}
}
