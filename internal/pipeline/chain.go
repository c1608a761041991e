package pipeline

import (
	"context"

	"github.com/rc1405/fiddler/internal/message"
)

// runChain iterates e.chain starting at idx, threading fan-out back into
// the chain at idx+1 for every child a processor produces: a processor
// returning multiple messages re-enters the chain starting at the next
// processor for each child, and each child inherits the shared ack token.
func (e *Executor) runChain(ctx context.Context, msg *message.Message, idx int) ([]*message.Message, error) {
	if idx >= len(e.chain) {
		return []*message.Message{msg}, nil
	}

	results, err := e.chain[idx].Process(ctx, msg)
	if err != nil {
		return nil, err
	}

	switch len(results) {
	case 0:
		return nil, nil
	case 1:
		return e.runChain(ctx, results[0], idx+1)
	default:
		if t := msg.Token(); t != nil {
			t.Share(len(results) - 1)
			e.addStreamRefs(t, len(results)-1)
		}
		var out []*message.Message
		var lastFiltered *message.Message
		for _, child := range results {
			childOut, err := e.runChain(ctx, child, idx+1)
			if err != nil {
				// One failing child doesn't abort its siblings; it's
				// terminated here and its share of the ack token drops.
				e.finishTerminal(child, false, err)
				e.agg.IncProcessError()
				continue
			}
			if len(childOut) == 0 {
				// A filtered child's share drops here too, except the last one when
				// no sibling survives: the caller then terminates msg as filtered.
				if lastFiltered != nil {
					e.agg.IncFiltered(e.latencyFor(lastFiltered))
					e.finishTerminal(lastFiltered, true, nil)
				}
				lastFiltered = child
				continue
			}
			out = append(out, childOut...)
		}
		if len(out) > 0 && lastFiltered != nil {
			e.agg.IncFiltered(e.latencyFor(lastFiltered))
			e.finishTerminal(lastFiltered, true, nil)
		}
		return out, nil
	}
}
