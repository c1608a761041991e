package processor

import (
	"context"

	"github.com/rc1405/fiddler/internal/component"
	"github.com/rc1405/fiddler/internal/ferrors"
	"github.com/rc1405/fiddler/internal/message"
	"github.com/rc1405/fiddler/internal/script"
	"github.com/rc1405/fiddler/internal/value"
)

// FiddlerScriptProcessor binds `this`/`metadata` to a message, runs a
// cached compiled program, and applies the output coercion rules (Bytes
// replaces the payload, String is UTF-8 encoded, an Array of Bytes/String
// fans out, Null filters, anything else is coerced via bytes()).
//
// Each instance owns its own *script.Interpreter: interpreters are not
// safe for concurrent use (mutable call-depth counter, mutable scope
// chain), so the processor declares itself not concurrency-safe and the
// executor wraps this instance in a mutex before handing it to the worker
// pool (see pipeline.wrapUnsafeProcessors), serializing every call to it.
type FiddlerScriptProcessor struct {
	it   *script.Interpreter
	prog *script.Program
}

func NewFiddlerScriptProcessor(cfg map[string]any) (component.Processor, error) {
	src, _ := cfg["source"].(string)
	if src == "" {
		return nil, ferrors.New(ferrors.KindConfig, "fiddlerscript: 'source' is required")
	}
	prog, err := script.Parse(src)
	if err != nil {
		return nil, err
	}
	return &FiddlerScriptProcessor{it: script.New(), prog: prog}, nil
}

func (p *FiddlerScriptProcessor) ConcurrencySafe() bool { return false }

func (p *FiddlerScriptProcessor) Process(_ context.Context, m *message.Message) (component.ProcessResult, error) {
	this := value.BytesVal(m.Bytes)
	meta := value.DictVal(m.Metadata.AsDict())

	res, err := p.it.RunMessage(p.prog, this, meta)
	if err != nil {
		return nil, ferrors.Processing(err, "fiddlerscript: evaluating")
	}

	m.Metadata = metadataFromValue(res.Metadata)

	switch res.ThisValue.Kind() {
	case value.KindNull:
		return nil, nil
	case value.KindBytes:
		m.Bytes = res.ThisValue.Bytes()
		return component.ProcessResult{m}, nil
	case value.KindString:
		m.Bytes = []byte(res.ThisValue.Str())
		return component.ProcessResult{m}, nil
	case value.KindArray:
		// Fan-out accounting (sharing the ack token across len(elems)
		// children) is handled generically by the chain iterator for any
		// processor that returns more than one message; this processor
		// just needs to return the right number of clones.
		elems := res.ThisValue.Array()
		out := make(component.ProcessResult, 0, len(elems))
		for _, e := range elems {
			child := m.Clone()
			switch e.Kind() {
			case value.KindBytes:
				child.Bytes = e.Bytes()
			case value.KindString:
				child.Bytes = []byte(e.Str())
			default:
				child.Bytes = e.ToBytes()
			}
			out = append(out, child)
		}
		return out, nil
	default:
		m.Bytes = res.ThisValue.ToBytes()
		return component.ProcessResult{m}, nil
	}
}

func (p *FiddlerScriptProcessor) Close(context.Context) error { return nil }

// metadataFromValue recovers a *message.Metadata from whatever `metadata`
// was rebound to; a script that didn't touch it gets the same dict back, a
// script that overwrote it with something other than a dict gets empty
// metadata (the value is discarded along with the previous keys).
func metadataFromValue(v value.Value) *message.Metadata {
	md := message.NewMetadata()
	if v.Kind() != value.KindDict {
		return md
	}
	for _, k := range v.Dict().Keys() {
		md.Set(k, v.Dict().Get(k))
	}
	return md
}
