package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/rc1405/fiddler/internal/component"
	"github.com/rc1405/fiddler/internal/log"
	"github.com/rc1405/fiddler/internal/message"
	"github.com/rc1405/fiddler/internal/metrics"
)

// doneFunc is invoked exactly once per message once the output has
// accepted or rejected it - for a batched output, that's only once the
// whole batch is written, which is what makes the ack-after-output-accepted
// contract hold even under batching.
type doneFunc func(msg *message.Message, err error)

// batcher coalesces messages destined for an Output according to its
// declared BatchPolicy (size N, duration D): the batch flushes when size is
// reached, duration has elapsed since the oldest buffered message, or the
// executor calls flushAll on shutdown.
type batcher struct {
	out component.Output
	agg *metrics.Aggregator
	log log.Logger

	mu     sync.Mutex
	policy component.BatchPolicy
	buf    []*message.Message
	dones  []doneFunc
	timer  *time.Timer
}

func newBatcher(out component.Output, agg *metrics.Aggregator, logger log.Logger) *batcher {
	return &batcher{out: out, agg: agg, log: logger, policy: out.Batch()}
}

// submit hands msg to the output, buffering it if the output declares a
// batching policy, or writing it immediately otherwise. done is called
// exactly once, synchronously or later from a flush, once the output has
// accepted or rejected msg.
func (b *batcher) submit(ctx context.Context, msg *message.Message, done doneFunc) {
	if b.policy.Size <= 1 {
		err := b.out.Write(ctx, msg)
		if err == nil {
			b.agg.AddOutputBytes(int64(len(msg.Bytes)))
		}
		done(msg, err)
		return
	}

	var flushMsgs []*message.Message
	var flushDones []doneFunc
	b.mu.Lock()
	if len(b.buf) == 0 && b.policy.Duration > 0 {
		b.armTimer(ctx)
	}
	b.buf = append(b.buf, msg)
	b.dones = append(b.dones, done)
	if len(b.buf) >= b.policy.Size {
		flushMsgs, flushDones = b.buf, b.dones
		b.buf, b.dones = nil, nil
	}
	b.mu.Unlock()

	if flushMsgs != nil {
		b.writeBatch(ctx, flushMsgs, flushDones)
	}
}

func (b *batcher) armTimer(ctx context.Context) {
	d := time.Duration(b.policy.Duration)
	if b.timer != nil {
		b.timer.Stop()
	}
	b.timer = time.AfterFunc(d, func() {
		b.mu.Lock()
		flushMsgs, flushDones := b.buf, b.dones
		b.buf, b.dones = nil, nil
		b.mu.Unlock()
		if len(flushMsgs) > 0 {
			b.writeBatch(ctx, flushMsgs, flushDones)
		}
	})
}

func (b *batcher) writeBatch(ctx context.Context, msgs []*message.Message, dones []doneFunc) {
	err := b.out.WriteBatch(ctx, msgs)
	if err == nil {
		var total int64
		for _, m := range msgs {
			total += int64(len(m.Bytes))
		}
		b.agg.AddOutputBytes(total)
	}
	for i, m := range msgs {
		dones[i](m, err)
	}
}

// flushAll forces out any buffered messages, called on shutdown.
func (b *batcher) flushAll(ctx context.Context) error {
	b.mu.Lock()
	flushMsgs, flushDones := b.buf, b.dones
	b.buf, b.dones = nil, nil
	if b.timer != nil {
		b.timer.Stop()
	}
	b.mu.Unlock()

	if len(flushMsgs) > 0 {
		b.writeBatch(ctx, flushMsgs, flushDones)
	}
	return b.out.Flush(ctx)
}
