package pipeline

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/rc1405/fiddler/internal/component"
	"github.com/rc1405/fiddler/internal/log"
	"github.com/rc1405/fiddler/internal/message"
	"github.com/rc1405/fiddler/internal/metrics"
	"github.com/rc1405/fiddler/internal/tracker"
)

// oneShotInput emits a single fixed message (tagged with a stream id so the
// tracker's open/close accounting is exercised) and then reports io.EOF.
type oneShotInput struct {
	mu   sync.Mutex
	sent bool
	body []byte
}

func (in *oneShotInput) Open(context.Context) error { return nil }
func (in *oneShotInput) Read(context.Context) (*message.Message, error) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.sent {
		return nil, io.EOF
	}
	in.sent = true
	tok := message.NewToken(func(message.Disposition, error) {}, message.NackOnAnyFailure)
	m := message.New(in.body, tok)
	m.StreamID = "s1"
	return m, nil
}
func (in *oneShotInput) Ack(context.Context, *message.Message) error         { return nil }
func (in *oneShotInput) Nack(context.Context, *message.Message, error) error { return nil }
func (in *oneShotInput) Close(context.Context) error                        { return nil }

// repeatedInput emits the same body n times on one stream_id, then io.EOF -
// used to exercise dedup rejection end to end.
type repeatedInput struct {
	mu    sync.Mutex
	sent  int
	n     int
	body  []byte
}

func (in *repeatedInput) Open(context.Context) error { return nil }
func (in *repeatedInput) Read(context.Context) (*message.Message, error) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.sent >= in.n {
		return nil, io.EOF
	}
	in.sent++
	tok := message.NewToken(func(message.Disposition, error) {}, message.NackOnAnyFailure)
	m := message.New(in.body, tok)
	m.StreamID = "dup-stream"
	return m, nil
}
func (in *repeatedInput) Ack(context.Context, *message.Message) error         { return nil }
func (in *repeatedInput) Nack(context.Context, *message.Message, error) error { return nil }
func (in *repeatedInput) Close(context.Context) error                        { return nil }

// fanOutProcessor splits one message into n fixed clones.
type fanOutProcessor struct{ n int }

func (p fanOutProcessor) Process(_ context.Context, m *message.Message) (component.ProcessResult, error) {
	out := make(component.ProcessResult, 0, p.n)
	for i := 0; i < p.n; i++ {
		child := m.Clone()
		out = append(out, child)
	}
	return out, nil
}
func (fanOutProcessor) Close(context.Context) error { return nil }

// recordingOutput counts writes and can be told to fail every Nth write.
type recordingOutput struct {
	mu      sync.Mutex
	written int
	failEvery int
	calls   int
}

func (o *recordingOutput) Open(context.Context) error { return nil }
func (o *recordingOutput) Write(_ context.Context, m *message.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls++
	if o.failEvery > 0 && o.calls%o.failEvery == 0 {
		return errors.New("write failed")
	}
	o.written++
	return nil
}
func (o *recordingOutput) WriteBatch(ctx context.Context, ms []*message.Message) error {
	for _, m := range ms {
		if err := o.Write(ctx, m); err != nil {
			return err
		}
	}
	return nil
}
func (o *recordingOutput) Batch() component.BatchPolicy { return component.BatchPolicy{} }
func (o *recordingOutput) Flush(context.Context) error  { return nil }
func (o *recordingOutput) Close(context.Context) error  { return nil }

func newTestExecutor(in component.Input, chain []component.Processor, out component.Output) (*Executor, *tracker.Tracker) {
	tr := tracker.New(tracker.Options{}, log.Default())
	agg := metrics.New()
	e := New(Options{NumThreads: 1}, in, chain, out, tr, agg, log.Default())
	return e, tr
}

func TestExecutorFanOutSharesAckTokenAndCompletesStream(t *testing.T) {
	in := &oneShotInput{body: []byte("hello")}
	out := &recordingOutput{}
	e, tr := newTestExecutor(in, []component.Processor{fanOutProcessor{n: 3}}, out)
	defer tr.Stop()

	if err := e.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	out.mu.Lock()
	written := out.written
	out.mu.Unlock()
	if written != 3 {
		t.Fatalf("expected all 3 fanned-out messages written, got %d", written)
	}

	snap := tr.Snapshot()
	if snap.StreamsStarted != 1 || snap.StreamsCompleted != 1 {
		t.Fatalf("expected the single inbound stream to complete exactly once regardless of fan-out, got %+v", snap)
	}

	mSnap := e.Metrics().Snapshot()
	if mSnap.TotalReceived != 1 {
		t.Fatalf("TotalReceived = %d, want 1 (one inbound message)", mSnap.TotalReceived)
	}
	if mSnap.TotalCompleted != 3 {
		t.Fatalf("TotalCompleted = %d, want 3 (one per fanned-out child)", mSnap.TotalCompleted)
	}
	if mSnap.StreamsStarted != 1 || mSnap.StreamsCompleted != 1 {
		t.Fatalf("expected the tracker's stream counters to reach the published metrics snapshot, got %+v", mSnap)
	}

	leaked := 0
	e.receivedAt.Range(func(any, any) bool { leaked++; return true })
	if leaked != 0 {
		t.Fatalf("expected receivedAt to be empty once every fanned-out child terminated, found %d leaked entries", leaked)
	}
}

func TestExecutorPartialFanOutFailureStillCompletesStream(t *testing.T) {
	in := &oneShotInput{body: []byte("hello")}
	out := &recordingOutput{failEvery: 2}
	e, tr := newTestExecutor(in, []component.Processor{fanOutProcessor{n: 4}}, out)
	defer tr.Stop()

	if err := e.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	snap := tr.Snapshot()
	if snap.StreamsCompleted != 1 {
		t.Fatalf("expected the stream to complete even though some fanned-out children failed to write, got %+v", snap)
	}

	mSnap := e.Metrics().Snapshot()
	if mSnap.TotalCompleted != 2 || mSnap.TotalOutputErrors != 2 {
		t.Fatalf("expected 2 successful and 2 failed writes, got completed=%d outputErrors=%d", mSnap.TotalCompleted, mSnap.TotalOutputErrors)
	}
}

func TestExecutorFilteredMessageStillCompletesStream(t *testing.T) {
	in := &oneShotInput{body: []byte("hello")}
	out := &recordingOutput{}
	e, tr := newTestExecutor(in, []component.Processor{fanOutProcessor{n: 0}}, out)
	defer tr.Stop()

	if err := e.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	snap := tr.Snapshot()
	if snap.StreamsCompleted != 1 {
		t.Fatalf("expected a fully filtered message to still complete its stream, got %+v", snap)
	}
	mSnap := e.Metrics().Snapshot()
	if mSnap.TotalFiltered != 1 {
		t.Fatalf("TotalFiltered = %d, want 1", mSnap.TotalFiltered)
	}
}

func TestHandleInboundDoesNotLeakEntriesForEndOfStreamOrControl(t *testing.T) {
	tr := tracker.New(tracker.Options{}, log.Default())
	defer tr.Stop()
	agg := metrics.New()
	e := New(Options{NumThreads: 1}, &oneShotInput{}, nil, &recordingOutput{}, tr, agg, log.Default())

	tok := message.NewToken(func(message.Disposition, error) {}, message.NackOnAnyFailure)
	eos := message.New(nil, tok)
	eos.Kind = message.KindEndOfStream
	eos.StreamID = "s1"
	if !e.handleInbound(eos) {
		t.Fatalf("expected handleInbound to return true for an EndOfStream message")
	}

	tok2 := message.NewToken(func(message.Disposition, error) {}, message.NackOnAnyFailure)
	ctrl := message.New(nil, tok2)
	ctrl.Kind = message.KindControl
	if !e.handleInbound(ctrl) {
		t.Fatalf("expected handleInbound to return true for a control message")
	}

	leaked := 0
	e.receivedAt.Range(func(any, any) bool { leaked++; return true })
	if leaked != 0 {
		t.Fatalf("expected no receivedAt entries for EndOfStream/Control messages (they bypass finishTerminal), found %d", leaked)
	}
	if len(e.streamRefs) != 0 {
		t.Fatalf("expected no streamRefs entries for EndOfStream/Control messages, found %d", len(e.streamRefs))
	}
}

// signalingInput closes readCalled the moment its one Read returns, so a
// test can cancel ctx only after handleInbound has already admitted the
// message (not before, which would make readLoop's top-of-loop ctx.Done()
// check short-circuit before ever reading anything).
type signalingInput struct {
	oneShotInput
	readCalled chan struct{}
}

func (in *signalingInput) Read(ctx context.Context) (*message.Message, error) {
	m, err := in.oneShotInput.Read(ctx)
	close(in.readCalled)
	return m, err
}

func TestReadLoopResolvesTokenWhenShutdownRacesWorkChSend(t *testing.T) {
	in := &signalingInput{oneShotInput: oneShotInput{body: []byte("hello")}, readCalled: make(chan struct{})}
	out := &recordingOutput{}
	tr := tracker.New(tracker.Options{}, log.Default())
	defer tr.Stop()
	agg := metrics.New()
	e := New(Options{NumThreads: 1}, in, nil, out, tr, agg, log.Default())

	// Fill workCh to capacity so readLoop's send blocks forever - nothing
	// drains it, since the worker pool is never started in this test.
	for i := 0; i < cap(e.workCh); i++ {
		e.workCh <- workItem{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.readLoop(ctx) }()

	<-in.readCalled
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("readLoop: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("readLoop did not return after ctx cancellation raced an admitted message")
	}

	leaked := 0
	e.receivedAt.Range(func(any, any) bool { leaked++; return true })
	if leaked != 0 {
		t.Fatalf("expected receivedAt to be empty once the racing message was nacked on shutdown, found %d leaked entries", leaked)
	}
	if len(e.streamRefs) != 0 {
		t.Fatalf("expected streamRefs to be empty once the racing message was nacked on shutdown, found %d", len(e.streamRefs))
	}
}

func TestExecutorRejectsDuplicatesWhenDedupEnabled(t *testing.T) {
	in := &repeatedInput{n: 3, body: []byte("same-payload")}
	out := &recordingOutput{}
	tr := tracker.New(tracker.Options{DedupEnabled: true}, log.Default())
	defer tr.Stop()
	agg := metrics.New()

	e := New(Options{NumThreads: 1, DedupEnabled: true}, in, []component.Processor{}, out, tr, agg, log.Default())

	if err := e.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	out.mu.Lock()
	written := out.written
	out.mu.Unlock()
	if written != 1 {
		t.Fatalf("expected only the first of 3 identical messages to reach the output, got %d writes", written)
	}

	mSnap := e.Metrics().Snapshot()
	if mSnap.DuplicatesRejected != 2 {
		t.Fatalf("Metrics().Snapshot().DuplicatesRejected = %d, want 2 (published through the tracker sync path, not just tr.Snapshot())", mSnap.DuplicatesRejected)
	}
}
