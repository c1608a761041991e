// Package component defines the three capability contracts plugins satisfy
// (Input, Processor, Output) and the tagged-variant registry used to
// construct a plugin instance from its YAML configuration.
//
// The registry pattern is grounded on benthos's tracer.Config/FromAny
// dispatch (Type string selects a constructor) and on Heka's
// AvailablePlugins/RegisterPlugin category registries, generalized here to
// three separate registries (input/processor/output) instead of one
// mixed bag, since Fiddler's three capabilities have distinct signatures.
package component

import (
	"context"

	"github.com/rc1405/fiddler/internal/message"
)

// Input produces messages until exhausted or closed.
type Input interface {
	// Open initializes resources. May fail with ferrors.KindConfig or a
	// connection failure wrapped as ferrors.KindFatalIO.
	Open(ctx context.Context) error
	// Read produces the next message, or io.EOF when the input is
	// exhausted. Transient failures are wrapped ferrors.KindTransientIO;
	// unrecoverable ones ferrors.KindFatalIO.
	Read(ctx context.Context) (*message.Message, error)
	// Ack signals successful processing of a previously read message.
	Ack(ctx context.Context, m *message.Message) error
	// Nack signals failed processing; implementations that support
	// requeueing (e.g. AMQP) should do so, otherwise this is a no-op.
	Nack(ctx context.Context, m *message.Message, reason error) error
	Close(ctx context.Context) error
}

// ProcessResult is the array of 0..N messages a Processor produces for one
// input message, or an error.
type ProcessResult = []*message.Message

// Processor transforms, filters or fans a message out. Implementations
// that hold no per-call state are safe for concurrent invocation from
// multiple workers; implementations that aren't must say so via
// ConcurrencySafe returning false, in which case the executor serializes
// calls to that instance.
type Processor interface {
	Process(ctx context.Context, m *message.Message) (ProcessResult, error)
	Close(ctx context.Context) error
}

// ConcurrencySafe is an optional interface a Processor can implement to
// declare it is NOT safe for concurrent invocation (the fiddlerscript
// processor returns false here, since its single *script.Interpreter holds
// mutable call-depth and scope state; so would a processor wrapping a
// non-thread-safe client).
type ConcurrencySafe interface {
	ConcurrencySafe() bool
}

// BatchPolicy describes an Output's size/duration coalescing preference.
type BatchPolicy struct {
	Size     int
	Duration int64 // nanoseconds; 0 disables duration-based flush
}

// Output emits messages downstream.
type Output interface {
	Open(ctx context.Context) error
	Write(ctx context.Context, m *message.Message) error
	WriteBatch(ctx context.Context, ms []*message.Message) error
	// Batch reports this output's coalescing policy; a zero BatchPolicy
	// (Size <= 1) means the executor should call Write per message.
	Batch() BatchPolicy
	Flush(ctx context.Context) error
	Close(ctx context.Context) error
}
