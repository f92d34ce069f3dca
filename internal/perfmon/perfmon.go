// Package perfmon samples engine timings to surface regressions. It informs
// diagnostics; nothing in the render or sync path blocks on it.
package perfmon

import (
	"sort"
	"sync"
	"time"
)

// Metric names the engine records.
const (
	MetricParse     = "parse"
	MetricDiff      = "diff"
	MetricPatch     = "patch"
	MetricMapping   = "mapping"
	MetricFullCycle = "full_cycle"
	MetricInput     = "input_latency"
)

type sample struct {
	at time.Time
	ms float64
}

// Snapshot is a point-in-time aggregate of one metric's recent samples.
type Snapshot struct {
	Count int     `json:"count"`
	MinMs float64 `json:"min_ms"`
	MaxMs float64 `json:"max_ms"`
	AvgMs float64 `json:"avg_ms"`
	P50Ms float64 `json:"p50_ms"`
	P95Ms float64 `json:"p95_ms"`
}

// Warning is a diagnostic pushed on the warning channel: repeated parse
// failures, skipped patch ops, slow cycles. Consumers that fall behind lose
// warnings rather than blocking the engine.
type Warning struct {
	Kind   string    `json:"kind"`
	Detail string    `json:"detail"`
	At     time.Time `json:"at"`
}

// Monitor keeps rolling windows of timing samples per metric plus a bounded
// warning channel.
type Monitor struct {
	mu       sync.Mutex
	maxAge   time.Duration
	samples  map[string][]sample
	warnings chan Warning
}

func New(maxAge time.Duration) *Monitor {
	if maxAge <= 0 {
		maxAge = 5 * time.Minute
	}
	return &Monitor{
		maxAge:   maxAge,
		samples:  make(map[string][]sample),
		warnings: make(chan Warning, 64),
	}
}

// Record stores one duration sample for a metric.
func (m *Monitor) Record(metric string, d time.Duration) {
	now := time.Now()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.samples[metric] = append(m.pruneLocked(metric, now), sample{at: now, ms: float64(d.Microseconds()) / 1000})
}

// Time runs fn and records its duration under metric.
func (m *Monitor) Time(metric string, fn func()) {
	start := time.Now()
	fn()
	m.Record(metric, time.Since(start))
}

// Warn pushes a warning without ever blocking; the oldest unread warning is
// dropped when the channel is full.
func (m *Monitor) Warn(kind, detail string) {
	w := Warning{Kind: kind, Detail: detail, At: time.Now()}
	for {
		select {
		case m.warnings <- w:
			return
		default:
			select {
			case <-m.warnings:
			default:
			}
		}
	}
}

// Warnings returns the receive side of the warning channel.
func (m *Monitor) Warnings() <-chan Warning { return m.warnings }

// Snapshot aggregates the recent samples of one metric.
func (m *Monitor) Snapshot(metric string) Snapshot {
	now := time.Now()
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.pruneLocked(metric, now)
	m.samples[metric] = kept
	if len(kept) == 0 {
		return Snapshot{}
	}

	values := make([]float64, len(kept))
	var sum float64
	for i, s := range kept {
		values[i] = s.ms
		sum += s.ms
	}
	sort.Float64s(values)

	return Snapshot{
		Count: len(values),
		MinMs: values[0],
		MaxMs: values[len(values)-1],
		AvgMs: sum / float64(len(values)),
		P50Ms: percentile(values, 50),
		P95Ms: percentile(values, 95),
	}
}

// SnapshotAll aggregates every metric with samples in the window.
func (m *Monitor) SnapshotAll() map[string]Snapshot {
	m.mu.Lock()
	metrics := make([]string, 0, len(m.samples))
	for name := range m.samples {
		metrics = append(metrics, name)
	}
	m.mu.Unlock()

	out := make(map[string]Snapshot, len(metrics))
	for _, name := range metrics {
		snap := m.Snapshot(name)
		if snap.Count > 0 {
			out[name] = snap
		}
	}
	return out
}

func (m *Monitor) pruneLocked(metric string, now time.Time) []sample {
	cutoff := now.Add(-m.maxAge)
	kept := m.samples[metric][:0]
	for _, s := range m.samples[metric] {
		if !s.at.Before(cutoff) {
			kept = append(kept, s)
		}
	}
	return kept
}

func percentile(sorted []float64, pct float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if pct <= 0 {
		return sorted[0]
	}
	if pct >= 100 {
		return sorted[len(sorted)-1]
	}
	index := (float64(len(sorted)-1) * pct) / 100.0
	lower := int(index)
	upper := lower + 1
	if upper >= len(sorted) {
		return sorted[lower]
	}
	weight := index - float64(lower)
	return sorted[lower] + (sorted[upper]-sorted[lower])*weight
}
