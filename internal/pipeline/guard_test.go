package pipeline

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rc1405/fiddler/internal/component"
	"github.com/rc1405/fiddler/internal/message"
)

// trackingUnsafeProcessor records whether two Process calls ever
// overlapped, the way a shared, non-reentrant *script.Interpreter would
// misbehave under concurrent workers.
type trackingUnsafeProcessor struct {
	inFlight   int32
	sawOverlap int32
}

func (p *trackingUnsafeProcessor) ConcurrencySafe() bool { return false }

func (p *trackingUnsafeProcessor) Process(_ context.Context, m *message.Message) (component.ProcessResult, error) {
	if atomic.AddInt32(&p.inFlight, 1) > 1 {
		atomic.StoreInt32(&p.sawOverlap, 1)
	}
	time.Sleep(time.Millisecond)
	atomic.AddInt32(&p.inFlight, -1)
	return component.ProcessResult{m}, nil
}

func (p *trackingUnsafeProcessor) Close(context.Context) error { return nil }

func TestWrapUnsafeProcessorsSerializesConcurrentCalls(t *testing.T) {
	raw := &trackingUnsafeProcessor{}
	chain := wrapUnsafeProcessors([]component.Processor{raw})
	guarded := chain[0]

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tok := message.NewToken(func(message.Disposition, error) {}, message.NackOnAnyFailure)
			m := message.New([]byte("x"), tok)
			if _, err := guarded.Process(context.Background(), m); err != nil {
				t.Errorf("Process: %v", err)
			}
		}()
	}
	wg.Wait()

	if atomic.LoadInt32(&raw.sawOverlap) != 0 {
		t.Fatalf("expected guardedProcessor to serialize calls to a ConcurrencySafe()==false processor, but two calls overlapped")
	}
}

func TestWrapUnsafeProcessorsLeavesSafeProcessorsUnwrapped(t *testing.T) {
	raw := fanOutProcessor{n: 1}
	chain := wrapUnsafeProcessors([]component.Processor{raw})
	if _, ok := chain[0].(*guardedProcessor); ok {
		t.Fatalf("expected a processor with no ConcurrencySafe method to pass through unwrapped")
	}
}
