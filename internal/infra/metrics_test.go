package infra

import (
	"testing"
)

func TestMetrics_RecordEvent(t *testing.T) {
	m := &Metrics{}

	m.RecordEvent(1000)
	m.RecordEvent(2000)
	m.RecordEvent(3000)

	snap := m.Snapshot()

	if snap.EventsProcessed != 3 {
		t.Errorf("Expected 3 events, got %d", snap.EventsProcessed)
	}

	// Average latency: (1000 + 2000 + 3000) / 3 = 2000
	if snap.AvgLatencyNs != 2000 {
		t.Errorf("Expected avg latency 2000, got %d", snap.AvgLatencyNs)
	}
}

func TestMetrics_Streams(t *testing.T) {
	m := &Metrics{}

	m.IncrementStreams()
	m.IncrementStreams()

	snap := m.Snapshot()
	if snap.ActiveStreams != 2 {
		t.Errorf("Expected 2 streams, got %d", snap.ActiveStreams)
	}

	m.DecrementStreams()
	snap = m.Snapshot()
	if snap.ActiveStreams != 1 {
		t.Errorf("Expected 1 stream, got %d", snap.ActiveStreams)
	}
}

func TestMetrics_RestartsAndFaults(t *testing.T) {
	m := &Metrics{}

	m.RecordRestart()
	m.RecordFault()
	m.RecordFault()

	snap := m.Snapshot()
	if snap.RestartsTotal != 1 {
		t.Errorf("Expected 1 restart, got %d", snap.RestartsTotal)
	}
	if snap.FaultsTotal != 2 {
		t.Errorf("Expected 2 faults, got %d", snap.FaultsTotal)
	}
}

func TestMetrics_Reset(t *testing.T) {
	m := &Metrics{}

	m.RecordEvent(1000)
	m.RecordFault()
	m.IncrementStreams()

	m.Reset()
	snap := m.Snapshot()

	if snap.EventsProcessed != 0 {
		t.Error("Expected 0 events after reset")
	}
	if snap.FaultsTotal != 0 {
		t.Error("Expected 0 faults after reset")
	}
	if snap.ActiveStreams != 0 {
		t.Error("Expected 0 streams after reset")
	}
}
