package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusPublisher mirrors each Snapshot field into a set of gauges
// registered against the given registerer. Counters are modeled as
// gauges-of-a-monotonic-value rather than prometheus.Counter because the
// aggregator, not the Prometheus client, owns the authoritative running
// total, which is monotonically non-decreasing over the process lifetime.
type PrometheusPublisher struct {
	totalReceived      prometheus.Gauge
	totalCompleted     prometheus.Gauge
	totalFiltered      prometheus.Gauge
	totalProcessErrors prometheus.Gauge
	totalOutputErrors  prometheus.Gauge
	streamsStarted     prometheus.Gauge
	streamsCompleted   prometheus.Gauge
	duplicatesRejected prometheus.Gauge
	staleRemoved       prometheus.Gauge
	inputBytes         prometheus.Gauge
	outputBytes        prometheus.Gauge
	inFlight           prometheus.Gauge
	throughput         prometheus.Gauge
	bytesPerSec        prometheus.Gauge
	latencyAvg         prometheus.Gauge
	latencyMin         prometheus.Gauge
	latencyMax         prometheus.Gauge
}

// NewPrometheusPublisher registers Fiddler's gauge set with reg (typically
// prometheus.DefaultRegisterer, or a dedicated registry per pipeline).
func NewPrometheusPublisher(reg prometheus.Registerer) *PrometheusPublisher {
	g := func(name, help string) prometheus.Gauge {
		gauge := prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "fiddler",
			Name:      name,
			Help:      help,
		})
		reg.MustRegister(gauge)
		return gauge
	}
	return &PrometheusPublisher{
		totalReceived:      g("total_received", "Total messages received by the input."),
		totalCompleted:     g("total_completed", "Total messages successfully acked."),
		totalFiltered:      g("total_filtered", "Total messages filtered out by a processor."),
		totalProcessErrors: g("total_process_errors", "Total processor errors."),
		totalOutputErrors:  g("total_output_errors", "Total output errors."),
		streamsStarted:     g("streams_started", "Total distinct streams seen."),
		streamsCompleted:   g("streams_completed", "Total streams fully completed."),
		duplicatesRejected: g("duplicates_rejected", "Total duplicate messages rejected by the tracker."),
		staleRemoved:       g("stale_entries_removed", "Total stream entries reaped for staleness."),
		inputBytes:         g("input_bytes", "Total bytes read from the input."),
		outputBytes:        g("output_bytes", "Total bytes written to the output."),
		inFlight:           g("in_flight", "Messages currently in flight."),
		throughput:         g("throughput_per_sec", "Rolling messages-per-second throughput."),
		bytesPerSec:        g("bytes_per_sec", "Rolling bytes-per-second throughput."),
		latencyAvg:         g("latency_avg_ms", "Average per-message latency in milliseconds."),
		latencyMin:         g("latency_min_ms", "Minimum per-message latency in milliseconds."),
		latencyMax:         g("latency_max_ms", "Maximum per-message latency in milliseconds."),
	}
}

func (p *PrometheusPublisher) Publish(_ context.Context, snap Snapshot) error {
	p.totalReceived.Set(float64(snap.TotalReceived))
	p.totalCompleted.Set(float64(snap.TotalCompleted))
	p.totalFiltered.Set(float64(snap.TotalFiltered))
	p.totalProcessErrors.Set(float64(snap.TotalProcessErrors))
	p.totalOutputErrors.Set(float64(snap.TotalOutputErrors))
	p.streamsStarted.Set(float64(snap.StreamsStarted))
	p.streamsCompleted.Set(float64(snap.StreamsCompleted))
	p.duplicatesRejected.Set(float64(snap.DuplicatesRejected))
	p.staleRemoved.Set(float64(snap.StaleEntriesRemoved))
	p.inputBytes.Set(float64(snap.InputBytes))
	p.outputBytes.Set(float64(snap.OutputBytes))
	p.inFlight.Set(float64(snap.InFlight))
	p.throughput.Set(snap.ThroughputPerSec)
	p.bytesPerSec.Set(snap.BytesPerSec)
	p.latencyAvg.Set(snap.LatencyAvgMs)
	p.latencyMin.Set(snap.LatencyMinMs)
	p.latencyMax.Set(snap.LatencyMaxMs)
	return nil
}
