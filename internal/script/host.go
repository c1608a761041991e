package script

import "github.com/rc1405/fiddler/internal/value"

// HostResult is the outcome of running a compiled program against a single
// message: ThisValue holds whatever `this` was bound to when the program
// finished, and Metadata holds the (possibly rewritten) metadata dict. The
// fiddlerscript processor applies its output coercion rules to ThisValue
// itself; this package only hands back the raw value.
type HostResult struct {
	ThisValue value.Value
	Metadata  value.Value
}

// RunMessage compiles-and-caches nothing itself (callers own the *Program
// cache); it pushes a fresh child scope binding `this` and `metadata`,
// executes prog, and returns the resulting bindings read back from that
// scope. This is the per-message entry point the fiddlerscript processor
// calls for every message it handles.
func (it *Interpreter) RunMessage(prog *Program, this value.Value, metadata value.Value) (HostResult, error) {
	h := it.NewChildScope()
	h.Set("this", this)
	h.Set("metadata", metadata)

	if err := it.RunIn(prog, h); err != nil {
		return HostResult{}, err
	}

	thisOut, _ := h.Get("this")
	metaOut, _ := h.Get("metadata")
	return HostResult{ThisValue: thisOut, Metadata: metaOut}, nil
}
