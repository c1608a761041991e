// Package metrics implements the always-on in-memory aggregator: monotonic
// counters, sampled gauges, and a pluggable non-blocking publisher reached
// over a bounded channel.
package metrics

import (
	"sync/atomic"
	"time"
)

// Snapshot is a flat record of named counters and gauges, published at a
// configured interval.
type Snapshot struct {
	Time time.Time

	TotalReceived      int64
	TotalCompleted     int64
	TotalFiltered      int64
	TotalProcessErrors int64
	TotalOutputErrors  int64
	StreamsStarted     int64
	StreamsCompleted   int64
	DuplicatesRejected int64
	StaleEntriesRemoved int64
	InputBytes         int64
	OutputBytes        int64

	InFlight          int64
	ThroughputPerSec  float64
	BytesPerSec       float64
	LatencyAvgMs      float64
	LatencyMinMs      float64
	LatencyMaxMs      float64
}

// Aggregator owns the counters and gauge state. All counter fields use
// atomic ops (relaxed consistency with gauges is acceptable) and are
// never reset.
type Aggregator struct {
	totalReceived       int64
	totalCompleted      int64
	totalFiltered       int64
	totalProcessErrors  int64
	totalOutputErrors   int64
	streamsStarted      int64
	streamsCompleted    int64
	duplicatesRejected  int64
	staleEntriesRemoved int64
	inputBytes          int64
	outputBytes         int64
	inFlight            int64

	window *latencyWindow
	start  time.Time

	lastSnapTime  time.Time
	lastReceived  int64
	lastInputBytes int64
}

// New returns an Aggregator with all counters at zero.
func New() *Aggregator {
	now := time.Now()
	return &Aggregator{window: newLatencyWindow(1024), start: now, lastSnapTime: now}
}

func (a *Aggregator) IncReceived(bytes int64) {
	atomic.AddInt64(&a.totalReceived, 1)
	atomic.AddInt64(&a.inputBytes, bytes)
	atomic.AddInt64(&a.inFlight, 1)
}

func (a *Aggregator) IncCompleted(latency time.Duration) {
	atomic.AddInt64(&a.totalCompleted, 1)
	atomic.AddInt64(&a.inFlight, -1)
	a.window.record(latency)
}

func (a *Aggregator) IncFiltered(latency time.Duration) {
	atomic.AddInt64(&a.totalFiltered, 1)
	atomic.AddInt64(&a.inFlight, -1)
	a.window.record(latency)
}

func (a *Aggregator) IncProcessError() {
	atomic.AddInt64(&a.totalProcessErrors, 1)
	atomic.AddInt64(&a.inFlight, -1)
}

func (a *Aggregator) IncOutputError() {
	atomic.AddInt64(&a.totalOutputErrors, 1)
	atomic.AddInt64(&a.inFlight, -1)
}

func (a *Aggregator) AddOutputBytes(n int64) { atomic.AddInt64(&a.outputBytes, n) }

func (a *Aggregator) SetStreamCounters(started, completed, dup, stale int64) {
	atomic.StoreInt64(&a.streamsStarted, started)
	atomic.StoreInt64(&a.streamsCompleted, completed)
	atomic.StoreInt64(&a.duplicatesRejected, dup)
	atomic.StoreInt64(&a.staleEntriesRemoved, stale)
}

// Snapshot computes a point-in-time view. Throughput/bytes-per-second are
// rolling windows since the last Snapshot call.
func (a *Aggregator) Snapshot() Snapshot {
	now := time.Now()
	received := atomic.LoadInt64(&a.totalReceived)
	inputBytes := atomic.LoadInt64(&a.inputBytes)

	elapsed := now.Sub(a.lastSnapTime).Seconds()
	var throughput, bps float64
	if elapsed > 0 {
		throughput = float64(received-a.lastReceived) / elapsed
		bps = float64(inputBytes-a.lastInputBytes) / elapsed
	}
	a.lastSnapTime = now
	a.lastReceived = received
	a.lastInputBytes = inputBytes

	avg, min, max := a.window.stats()

	return Snapshot{
		Time:                now,
		TotalReceived:       received,
		TotalCompleted:      atomic.LoadInt64(&a.totalCompleted),
		TotalFiltered:       atomic.LoadInt64(&a.totalFiltered),
		TotalProcessErrors:  atomic.LoadInt64(&a.totalProcessErrors),
		TotalOutputErrors:   atomic.LoadInt64(&a.totalOutputErrors),
		StreamsStarted:      atomic.LoadInt64(&a.streamsStarted),
		StreamsCompleted:    atomic.LoadInt64(&a.streamsCompleted),
		DuplicatesRejected:  atomic.LoadInt64(&a.duplicatesRejected),
		StaleEntriesRemoved: atomic.LoadInt64(&a.staleEntriesRemoved),
		InputBytes:          inputBytes,
		OutputBytes:         atomic.LoadInt64(&a.outputBytes),
		InFlight:            atomic.LoadInt64(&a.inFlight),
		ThroughputPerSec:    throughput,
		BytesPerSec:         bps,
		LatencyAvgMs:        avg,
		LatencyMinMs:        min,
		LatencyMaxMs:        max,
	}
}
