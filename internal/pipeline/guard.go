package pipeline

import (
	"context"
	"sync"

	"github.com/rc1405/fiddler/internal/component"
	"github.com/rc1405/fiddler/internal/message"
)

// guardedProcessor serializes Process/Close calls to an underlying
// Processor that declared itself ConcurrencySafe() == false (fiddlerscript's
// single *script.Interpreter being the motivating case). The worker pool
// still dispatches concurrently; this just turns concurrent calls into a
// queue of one at a time for that one instance, instead of requiring every
// such processor to manage its own locking.
type guardedProcessor struct {
	mu   sync.Mutex
	next component.Processor
}

func (g *guardedProcessor) Process(ctx context.Context, m *message.Message) (component.ProcessResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.next.Process(ctx, m)
}

func (g *guardedProcessor) Close(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.next.Close(ctx)
}

// wrapUnsafeProcessors returns a copy of chain with every processor that
// implements component.ConcurrencySafe and reports false wrapped in a
// guardedProcessor, so runChain can keep dispatching to e.chain[idx]
// without knowing which entries are safe for concurrent workers.
func wrapUnsafeProcessors(chain []component.Processor) []component.Processor {
	out := make([]component.Processor, len(chain))
	for i, p := range chain {
		if cs, ok := p.(component.ConcurrencySafe); ok && !cs.ConcurrencySafe() {
			out[i] = &guardedProcessor{next: p}
			continue
		}
		out[i] = p
	}
	return out
}
