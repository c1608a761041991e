package output

import (
	"bufio"
	"context"
	"os"
	"sync"

	"github.com/rc1405/fiddler/internal/component"
	"github.com/rc1405/fiddler/internal/message"
)

// StdoutOutput writes each message's payload followed by a newline to
// process stdout, the mirror image of the stdin input's line framing.
type StdoutOutput struct {
	mu sync.Mutex
	w  *bufio.Writer
}

func NewStdoutOutput(map[string]any) (component.Output, error) {
	return &StdoutOutput{w: bufio.NewWriter(os.Stdout)}, nil
}

func (o *StdoutOutput) Open(context.Context) error { return nil }

func (o *StdoutOutput) Write(_ context.Context, m *message.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, err := o.w.Write(m.Bytes); err != nil {
		return err
	}
	if err := o.w.WriteByte('\n'); err != nil {
		return err
	}
	return o.w.Flush()
}

func (o *StdoutOutput) WriteBatch(ctx context.Context, ms []*message.Message) error {
	for _, m := range ms {
		if err := o.Write(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

func (o *StdoutOutput) Batch() component.BatchPolicy { return component.BatchPolicy{} }

func (o *StdoutOutput) Flush(context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.w.Flush()
}

func (o *StdoutOutput) Close(context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.w.Flush()
}

// DropOutput discards every message; useful for testing pipelines that
// only care about processor side effects, or for /dev/null sinks.
type DropOutput struct{}

func NewDropOutput(map[string]any) (component.Output, error) { return &DropOutput{}, nil }

func (DropOutput) Open(context.Context) error { return nil }

func (DropOutput) Write(context.Context, *message.Message) error { return nil }

func (DropOutput) WriteBatch(context.Context, []*message.Message) error { return nil }

func (DropOutput) Batch() component.BatchPolicy { return component.BatchPolicy{} }

func (DropOutput) Flush(context.Context) error { return nil }

func (DropOutput) Close(context.Context) error { return nil }
