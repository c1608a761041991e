package metrics

import (
	"testing"
	"time"
)

func TestAggregatorCountersAndInFlight(t *testing.T) {
	a := New()
	a.IncReceived(10)
	a.IncReceived(20)
	a.IncCompleted(5 * time.Millisecond)
	a.IncFiltered(1 * time.Millisecond)
	a.IncProcessError()
	a.IncOutputError()
	a.AddOutputBytes(7)

	snap := a.Snapshot()
	if snap.TotalReceived != 2 {
		t.Fatalf("TotalReceived = %d, want 2", snap.TotalReceived)
	}
	if snap.InputBytes != 30 {
		t.Fatalf("InputBytes = %d, want 30", snap.InputBytes)
	}
	if snap.TotalCompleted != 1 || snap.TotalFiltered != 1 {
		t.Fatalf("completed/filtered = %d/%d, want 1/1", snap.TotalCompleted, snap.TotalFiltered)
	}
	if snap.TotalProcessErrors != 1 || snap.TotalOutputErrors != 1 {
		t.Fatalf("process/output errors = %d/%d, want 1/1", snap.TotalProcessErrors, snap.TotalOutputErrors)
	}
	if snap.OutputBytes != 7 {
		t.Fatalf("OutputBytes = %d, want 7", snap.OutputBytes)
	}
	// received(2) - completed(1) - filtered(1) - processErrors(1) - outputErrors(1) = -2
	if snap.InFlight != -2 {
		t.Fatalf("InFlight = %d, want -2 for this exact sequence of terminal events", snap.InFlight)
	}
}

func TestAggregatorStreamCounters(t *testing.T) {
	a := New()
	a.SetStreamCounters(3, 2, 1, 0)
	snap := a.Snapshot()
	if snap.StreamsStarted != 3 || snap.StreamsCompleted != 2 || snap.DuplicatesRejected != 1 {
		t.Fatalf("unexpected stream counters: %+v", snap)
	}
}

func TestLatencyWindowStats(t *testing.T) {
	w := newLatencyWindow(4)
	avg, min, max := w.stats()
	if avg != 0 || min != 0 || max != 0 {
		t.Fatalf("expected zero stats on an empty window, got avg=%v min=%v max=%v", avg, min, max)
	}

	w.record(10 * time.Millisecond)
	w.record(20 * time.Millisecond)
	w.record(30 * time.Millisecond)

	avg, min, max = w.stats()
	if avg != 20 || min != 10 || max != 30 {
		t.Fatalf("avg/min/max = %v/%v/%v, want 20/10/30", avg, min, max)
	}
}

func TestLatencyWindowWrapsAroundCapacity(t *testing.T) {
	w := newLatencyWindow(2)
	w.record(10 * time.Millisecond)
	w.record(20 * time.Millisecond)
	w.record(30 * time.Millisecond) // overwrites the first sample

	avg, min, max := w.stats()
	if min != 20 || max != 30 {
		t.Fatalf("expected the oldest sample to be overwritten: min=%v max=%v, want 20/30", min, max)
	}
	_ = avg
}
