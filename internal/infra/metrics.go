package infra

import (
	"sync/atomic"
	"time"
)

// Metrics provides lightweight observability without external dependencies.
// Uses atomic operations for thread-safety.
type Metrics struct {
	// Counters
	eventsProcessed atomic.Uint64
	restartsTotal   atomic.Uint64
	faultsTotal     atomic.Uint64

	// Latency tracking (translate + apply per frame)
	latencySumNs atomic.Int64
	latencyCount atomic.Uint64

	// Gauges
	activeStreams atomic.Int32
}

// GlobalMetrics is the singleton metrics instance.
var GlobalMetrics = &Metrics{}

// RecordEvent records one processed stream frame with its latency.
func (m *Metrics) RecordEvent(latencyNs int64) {
	m.eventsProcessed.Add(1)
	m.latencySumNs.Add(latencyNs)
	m.latencyCount.Add(1)
}

// RecordRestart records an in-band-error subscription restart.
func (m *Metrics) RecordRestart() {
	m.restartsTotal.Add(1)
}

// RecordFault records a propagated message fault.
func (m *Metrics) RecordFault() {
	m.faultsTotal.Add(1)
}

// IncrementStreams increments active logical streams by 1.
func (m *Metrics) IncrementStreams() {
	m.activeStreams.Add(1)
}

// DecrementStreams decrements active logical streams by 1.
func (m *Metrics) DecrementStreams() {
	m.activeStreams.Add(-1)
}

// MetricsSnapshot is a point-in-time view of all metrics.
type MetricsSnapshot struct {
	EventsProcessed uint64
	RestartsTotal   uint64
	FaultsTotal     uint64
	AvgLatencyNs    int64
	ActiveStreams   int32
	Timestamp       time.Time
}

// Snapshot returns current metrics as a snapshot.
func (m *Metrics) Snapshot() MetricsSnapshot {
	var avgLatency int64
	count := m.latencyCount.Load()
	if count > 0 {
		avgLatency = m.latencySumNs.Load() / int64(count)
	}

	return MetricsSnapshot{
		EventsProcessed: m.eventsProcessed.Load(),
		RestartsTotal:   m.restartsTotal.Load(),
		FaultsTotal:     m.faultsTotal.Load(),
		AvgLatencyNs:    avgLatency,
		ActiveStreams:   m.activeStreams.Load(),
		Timestamp:       time.Now(),
	}
}

// Reset clears all metrics. Intended for tests.
func (m *Metrics) Reset() {
	m.eventsProcessed.Store(0)
	m.restartsTotal.Store(0)
	m.faultsTotal.Store(0)
	m.latencySumNs.Store(0)
	m.latencyCount.Store(0)
	m.activeStreams.Store(0)
}
