// Builder assembles an Executor from a parsed config.Type plus the global
// plugin registries. Its method-chaining-free, single-shot Build mirrors
// the shape of benthos's StreamBuilder.Build (stream_builder.go):
// substitute, parse, validate-and-construct each plugin, then wire the
// executor - adapted here to Fiddler's three-capability model instead of
// benthos's bundle/manager graph.
package pipeline

import (
	"context"
	"time"

	"github.com/rc1405/fiddler/internal/component"
	"github.com/rc1405/fiddler/internal/component/input"
	"github.com/rc1405/fiddler/internal/component/output"
	"github.com/rc1405/fiddler/internal/component/processor"
	"github.com/rc1405/fiddler/internal/config"
	"github.com/rc1405/fiddler/internal/log"
	"github.com/rc1405/fiddler/internal/metrics"
	"github.com/rc1405/fiddler/internal/tracker"
)

// Build constructs a ready-to-Run Executor from cfg, using the global
// input/processor/output registries. logger is used both for the
// executor's own diagnostics and threaded via log.ContextWithLogger into
// plugin Open calls.
func Build(cfg *config.Type, logger log.Logger) (*Executor, error) {
	in, err := input.Registry.Build(cfg.Input.Type, cfg.Input.Config)
	if err != nil {
		return nil, err
	}

	chain := make([]component.Processor, 0, len(cfg.Processors))
	for _, ref := range cfg.Processors {
		p, err := processor.Registry.Build(ref.Type, ref.Config)
		if err != nil {
			return nil, err
		}
		chain = append(chain, p)
	}

	out, err := output.Registry.Build(cfg.Output.Type, cfg.Output.Config)
	if err != nil {
		return nil, err
	}

	trackerOpts := tracker.Options{}
	opts := Options{NumThreads: cfg.NumThreads}
	if cfg.Dedup != nil {
		trackerOpts.DedupEnabled = cfg.Dedup.Enabled
		trackerOpts.DedupMaxSeen = cfg.Dedup.MaxSeen
		opts.DedupEnabled = cfg.Dedup.Enabled
		opts.DedupMetadataKeys = cfg.Dedup.MetadataKeys
	}

	tr := tracker.New(trackerOpts, logger)
	agg := metrics.New()

	return New(opts, in, chain, out, tr, agg, logger), nil
}

// StartMetricsPublisher wires cfg.Metrics into a Pump over agg and runs it
// in a background goroutine until ctx is cancelled. Does nothing if metrics
// are unconfigured/"none".
func StartMetricsPublisher(ctx context.Context, cfg *config.MetricsConfig, agg *metrics.Aggregator, logger log.Logger) {
	if cfg == nil || cfg.Type == "" || cfg.Type == "none" {
		return
	}
	var pub metrics.Publisher
	switch cfg.Type {
	case "stdout":
		pub = metrics.NewStdoutPublisher(logWriter{logger})
	default:
		logger.Warn("metrics: unknown publisher type, defaulting to stdout", "type", cfg.Type)
		pub = metrics.NewStdoutPublisher(logWriter{logger})
	}
	interval := time.Duration(cfg.IntervalSecs) * time.Second
	pump := metrics.NewPump(agg, pub, interval, logger)
	go pump.Run(ctx)
}

// logWriter adapts a log.Logger to io.Writer for publishers that expect to
// write raw bytes (StdoutPublisher); StartMetricsPublisher always routes
// the stdout publisher through it.
type logWriter struct{ l log.Logger }

func (w logWriter) Write(p []byte) (int, error) {
	w.l.Info(string(p))
	return len(p), nil
}
