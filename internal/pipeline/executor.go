// Package pipeline implements the pipeline executor: worker pool, bounded
// work channel for backpressure, processor chain iteration with fan-out
// re-entry, output batching, and graceful shutdown.
//
// The worker-pool / goroutine-per-role shape is grounded on Heka's
// PluginRunner split (plugin_runners.go): a single input-reader goroutine
// feeds a bounded channel, N worker goroutines drain it, and a
// sync.WaitGroup implements graceful shutdown.
package pipeline

import (
	"context"
	"errors"
	"io"
	"runtime"
	"sync"
	"time"

	"github.com/rc1405/fiddler/internal/component"
	"github.com/rc1405/fiddler/internal/ferrors"
	"github.com/rc1405/fiddler/internal/log"
	"github.com/rc1405/fiddler/internal/message"
	"github.com/rc1405/fiddler/internal/metrics"
	"github.com/rc1405/fiddler/internal/tracker"
)

// Options configures an Executor.
type Options struct {
	// NumThreads is the worker pool size. Default: runtime.NumCPU().
	NumThreads int
	// MaxInFlight bounds the work channel. Default: 2*NumThreads.
	MaxInFlight int
	// ShutdownTimeout bounds the final output flush and the output/input
	// Close calls that follow the drain. The drain itself (workers
	// finishing in-flight messages) is not bounded and nothing is
	// hard-cancelled. Default 30s.
	ShutdownTimeout time.Duration
	// DedupEnabled turns on fingerprint-based duplicate rejection at
	// inbound time, backed by the tracker's per-stream seen-set.
	DedupEnabled bool
	// DedupMetadataKeys are hashed alongside the payload to compute each
	// message's dedup fingerprint (message.Fingerprint).
	DedupMetadataKeys []string
	// MetricsSyncInterval is how often the tracker's counters (including
	// the ones the background reaper updates asynchronously) are copied
	// into the metrics aggregator. Default 10s.
	MetricsSyncInterval time.Duration
}

func (o Options) withDefaults() Options {
	if o.NumThreads <= 0 {
		o.NumThreads = runtime.NumCPU()
	}
	if o.MaxInFlight <= 0 {
		o.MaxInFlight = 2 * o.NumThreads
	}
	if o.ShutdownTimeout <= 0 {
		o.ShutdownTimeout = 30 * time.Second
	}
	if o.MetricsSyncInterval <= 0 {
		o.MetricsSyncInterval = 10 * time.Second
	}
	return o
}

// Executor wires an Input, a processor chain and an Output together with
// the tracker and metrics aggregator.
type Executor struct {
	opts    Options
	in      component.Input
	chain   []component.Processor
	out     component.Output
	tracker *tracker.Tracker
	agg     *metrics.Aggregator
	log     log.Logger

	workCh   chan workItem
	draining chan struct{}
	wg       sync.WaitGroup

	stopSync chan struct{}
	syncDone chan struct{}

	batcher *batcher

	receivedAt sync.Map // *message.Token -> time.Time, for latency gauges

	streamRefsMu sync.Mutex
	streamRefs   map[*message.Token]*streamRef
}

// streamRef tracks how many not-yet-terminal messages still share an
// inbound message's ack token, so the tracker's per-stream open_count is
// decremented exactly once per ORIGINAL inbound message, regardless of how
// many messages a processor chain fanned it out into.
type streamRef struct {
	streamID string
	pending  int64
}

type workItem struct {
	msg       *message.Message
	enqueuedAt time.Time
}

// New constructs an Executor. Call Run to start it.
func New(opts Options, in component.Input, chain []component.Processor, out component.Output, tr *tracker.Tracker, agg *metrics.Aggregator, logger log.Logger) *Executor {
	opts = opts.withDefaults()
	e := &Executor{
		opts:     opts,
		in:       in,
		chain:    wrapUnsafeProcessors(chain),
		out:      out,
		tracker:  tr,
		agg:      agg,
		log:      logger,
		workCh:     make(chan workItem, opts.MaxInFlight),
		draining:   make(chan struct{}),
		streamRefs: make(map[*message.Token]*streamRef),
		stopSync:   make(chan struct{}),
		syncDone:   make(chan struct{}),
	}
	e.batcher = newBatcher(out, agg, logger)
	return e
}

// Metrics returns the executor's metrics aggregator, so a caller can wire
// it into a publisher (see builder.go's StartMetricsPublisher) before or
// after calling Run.
func (e *Executor) Metrics() *metrics.Aggregator { return e.agg }

// Run opens the input and output, starts the worker pool, and blocks
// reading from the input until ctx is cancelled or the input is
// exhausted. On return, shutdown has already completed (drained,
// in-flight finished, output flushed).
func (e *Executor) Run(ctx context.Context) error {
	ctx = log.ContextWithLogger(ctx, e.log)
	if err := e.out.Open(ctx); err != nil {
		return ferrors.Wrap(ferrors.KindFatalIO, err, "opening output")
	}
	if err := e.in.Open(ctx); err != nil {
		return ferrors.Wrap(ferrors.KindFatalIO, err, "opening input")
	}

	for i := 0; i < e.opts.NumThreads; i++ {
		e.wg.Add(1)
		go e.worker(ctx)
	}
	go e.trackerSyncLoop()

	readErr := e.readLoop(ctx)

	close(e.workCh)
	e.wg.Wait()

	close(e.stopSync)
	<-e.syncDone
	e.syncTrackerMetrics()

	flushCtx, cancel := context.WithTimeout(context.Background(), e.opts.ShutdownTimeout)
	defer cancel()
	if err := e.batcher.flushAll(flushCtx); err != nil {
		e.log.Warn("pipeline: final flush failed", "error", err)
	}
	if err := e.out.Close(flushCtx); err != nil {
		e.log.Warn("pipeline: output close failed", "error", err)
	}
	if err := e.in.Close(flushCtx); err != nil {
		e.log.Warn("pipeline: input close failed", "error", err)
	}
	e.tracker.Stop()

	return readErr
}

func (e *Executor) readLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		msg, err := e.in.Read(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			if ferrors.IsKind(err, ferrors.KindTransientIO) {
				e.log.Warn("pipeline: transient input error", "error", err)
				continue
			}
			return err
		}
		if msg == nil {
			continue
		}

		if !e.handleInbound(msg) {
			continue
		}

		select {
		case e.workCh <- workItem{msg: msg, enqueuedAt: time.Now()}:
		case <-ctx.Done():
			// handleInbound already admitted this message (tracker.Enter,
			// streamRefs, receivedAt) before we lost the race to shut down;
			// nack it through the same path a worker would use so its
			// token's AckFunc still fires and its tracker/streamRef entry
			// doesn't leak past this run.
			e.finishTerminal(msg, false, ctx.Err())
			return nil
		}
	}
}


// handleInbound runs tracker bookkeeping for one freshly-read message and
// reports whether it should continue on into the work channel. It returns
// false only for a message CheckDuplicate rejects: that message has
// already been acked and accounted for here and must not be processed or
// enqueued again.
func (e *Executor) handleInbound(msg *message.Message) bool {
	e.agg.IncReceived(int64(len(msg.Bytes)))

	if msg.Kind == message.KindEndOfStream || msg.Kind == message.KindControl {
		// These bypass the processor chain entirely - processOne drops
		// their token directly without ever calling finishTerminal - so
		// they must not get a receivedAt/streamRef entry, or it would
		// never be cleaned up.
		if msg.Kind == message.KindEndOfStream && msg.StreamID != "" {
			e.tracker.SignalEndOfStream(msg.StreamID)
			e.syncTrackerMetrics()
		}
		return true
	}

	if t := msg.Token(); t != nil {
		e.receivedAt.Store(t, time.Now())
		e.streamRefsMu.Lock()
		e.streamRefs[t] = &streamRef{streamID: msg.StreamID, pending: 1}
		e.streamRefsMu.Unlock()
	}

	if msg.StreamID == "" {
		return true
	}

	e.tracker.Enter(msg.StreamID)

	if e.opts.DedupEnabled {
		fp := message.Fingerprint(msg, e.opts.DedupMetadataKeys)
		if e.tracker.CheckDuplicate(msg.StreamID, fp) {
			lat := e.latencyFor(msg)
			e.finishTerminal(msg, true, nil)
			e.agg.IncFiltered(lat)
			e.syncTrackerMetrics()
			return false
		}
	}
	e.syncTrackerMetrics()
	return true
}

// syncTrackerMetrics copies the tracker's stream counters into the
// metrics aggregator, so a published Snapshot reflects streams_started,
// streams_completed, duplicates_rejected and stale_entries_removed
// instead of leaving them permanently zero.
func (e *Executor) syncTrackerMetrics() {
	snap := e.tracker.Snapshot()
	e.agg.SetStreamCounters(snap.StreamsStarted, snap.StreamsCompleted, snap.DuplicatesRejected, snap.StaleEntriesRemoved)
}

// trackerSyncLoop periodically re-syncs tracker counters even when no
// inbound message triggers handleInbound, so stale_entries_removed (driven
// by the tracker's own background reaper) still reaches the aggregator.
func (e *Executor) trackerSyncLoop() {
	defer close(e.syncDone)
	ticker := time.NewTicker(e.opts.MetricsSyncInterval)
	defer ticker.Stop()
	for {
		select {
		case <-e.stopSync:
			return
		case <-ticker.C:
			e.syncTrackerMetrics()
		}
	}
}

// addStreamRefs records that n additional messages now share token's
// eventual stream-leave accounting (called alongside Token.Share for a
// fan-out of n new children).
func (e *Executor) addStreamRefs(t *message.Token, n int) {
	if t == nil || n <= 0 {
		return
	}
	e.streamRefsMu.Lock()
	defer e.streamRefsMu.Unlock()
	if ref, ok := e.streamRefs[t]; ok {
		ref.pending += int64(n)
	}
}

// leaveStreamRef decrements the shared per-token pending count and calls
// tracker.Leave exactly once, when it reaches zero.
func (e *Executor) leaveStreamRef(t *message.Token) {
	if t == nil {
		return
	}
	e.streamRefsMu.Lock()
	ref, ok := e.streamRefs[t]
	if !ok {
		e.streamRefsMu.Unlock()
		return
	}
	ref.pending--
	done := ref.pending <= 0
	if done {
		delete(e.streamRefs, t)
	}
	e.streamRefsMu.Unlock()
	if done {
		e.receivedAt.Delete(t)
		if ref.streamID != "" {
			e.tracker.Leave(ref.streamID)
			e.syncTrackerMetrics()
		}
	}
}

func (e *Executor) worker(ctx context.Context) {
	defer e.wg.Done()
	for item := range e.workCh {
		e.processOne(ctx, item.msg)
	}
}

// processOne runs a message through the full processor chain starting at
// index 0, then hands any surviving messages to the output stage.
func (e *Executor) processOne(ctx context.Context, msg *message.Message) {
	if msg.Kind == message.KindEndOfStream || msg.Kind == message.KindControl {
		// EndOfStream/control markers don't flow through the processor
		// chain or output; they only drive tracker bookkeeping and ack
		// immediately.
		if t := msg.Token(); t != nil {
			t.Drop(true, nil)
		}
		return
	}

	outs, err := e.runChain(ctx, msg, 0)
	if err != nil {
		e.finishTerminal(msg, false, err)
		e.agg.IncProcessError()
		return
	}
	if len(outs) == 0 {
		lat := e.latencyFor(msg)
		e.finishTerminal(msg, true, nil)
		e.agg.IncFiltered(lat)
		return
	}
	for _, o := range outs {
		e.batcher.submit(ctx, o, e.onOutputDone)
	}
}

// onOutputDone is the batcher's completion callback: it finalizes the
// ack-token share and metrics for one message once the output has accepted
// or rejected it, regardless of whether that happened synchronously
// (unbatched) or as part of a later batch flush.
func (e *Executor) onOutputDone(msg *message.Message, err error) {
	if err != nil {
		e.finishTerminal(msg, false, err)
		e.agg.IncOutputError()
		return
	}
	lat := e.latencyFor(msg)
	e.finishTerminal(msg, true, nil)
	e.agg.IncCompleted(lat)
}

// latencyFor reports the elapsed time since msg's original inbound message
// was received. Keyed by msg's ack token rather than the message pointer
// itself, since a fanned-out message is a clone with its own pointer but
// keeps the same shared token as its parent; the entry is deleted by
// leaveStreamRef once every share of that token has terminated, not here,
// so every fanned-out child still gets a correct (non-zero) reading.
func (e *Executor) latencyFor(msg *message.Message) time.Duration {
	t := msg.Token()
	if t == nil {
		return 0
	}
	if v, ok := e.receivedAt.Load(t); ok {
		return time.Since(v.(time.Time))
	}
	return 0
}

// finishTerminal drops the message's ack-token share and, once every share
// of that token has terminated, tells the tracker the original inbound
// message has left the system.
func (e *Executor) finishTerminal(msg *message.Message, ok bool, reason error) {
	if t := msg.Token(); t != nil {
		t.Drop(ok, reason)
		e.leaveStreamRef(t)
	}
}
