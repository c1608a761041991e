package metrics

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/rc1405/fiddler/internal/log"
)

// Publisher receives periodic snapshots. Publish must not block the
// pipeline hot path; the Pump below enforces that by making the channel
// send non-blocking.
type Publisher interface {
	Publish(ctx context.Context, snap Snapshot) error
}

// Pump decouples the aggregator from publisher I/O with a bounded channel:
// overflow drops samples and logs a warning rather than blocking the
// pipeline hot path.
type Pump struct {
	agg      *Aggregator
	pub      Publisher
	interval time.Duration
	log      log.Logger
	ch       chan Snapshot
	done     chan struct{}
}

// NewPump starts nothing yet; call Run to begin the sampling loop.
func NewPump(agg *Aggregator, pub Publisher, interval time.Duration, logger log.Logger) *Pump {
	if interval <= 0 {
		interval = 300 * time.Second
	}
	return &Pump{
		agg:      agg,
		pub:      pub,
		interval: interval,
		log:      logger,
		ch:       make(chan Snapshot, 8),
		done:     make(chan struct{}),
	}
}

// Run blocks, sampling the aggregator at the configured interval and
// handing snapshots to a background publish goroutine, until ctx is
// cancelled.
func (p *Pump) Run(ctx context.Context) {
	go p.publishLoop(ctx)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			close(p.ch)
			<-p.done
			return
		case <-ticker.C:
			snap := p.agg.Snapshot()
			select {
			case p.ch <- snap:
			default:
				p.log.Warn("metrics: publisher channel full, dropping sample")
			}
		}
	}
}

func (p *Pump) publishLoop(ctx context.Context) {
	defer close(p.done)
	for snap := range p.ch {
		if err := p.pub.Publish(ctx, snap); err != nil {
			p.log.Warn("metrics: publish failed", "error", err)
		}
	}
}

// StdoutPublisher writes snapshots as JSON lines; the simplest publisher,
// always available with no external dependency.
type StdoutPublisher struct {
	w io.Writer
}

func NewStdoutPublisher(w io.Writer) *StdoutPublisher { return &StdoutPublisher{w: w} }

func (s *StdoutPublisher) Publish(_ context.Context, snap Snapshot) error {
	enc := json.NewEncoder(s.w)
	return enc.Encode(snap)
}
