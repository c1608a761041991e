package script

import (
	"github.com/rc1405/fiddler/internal/ferrors"
	"github.com/rc1405/fiddler/internal/value"
)

// maxRecursionDepth bounds script-level call nesting; exceeding it raises
// RuntimeRecursionLimit rather than overflowing the Go stack.
const maxRecursionDepth = 64

// BuiltinFunc is the signature accepted by RegisterBuiltin; it receives
// already-evaluated argument Values and returns a Value or an error.
type BuiltinFunc func(args []value.Value) (value.Value, error)

// Interpreter is a single-threaded FiddlerScript evaluator. It is NOT safe
// for concurrent use: a worker that wants to evaluate scripts in parallel
// must instantiate its own Interpreter.
type Interpreter struct {
	global   *scope
	builtins map[string]BuiltinFunc
	depth    int
}

// New returns an Interpreter with the standard built-in library registered.
func New() *Interpreter {
	it := &Interpreter{
		global:   newScope(nil),
		builtins: make(map[string]BuiltinFunc),
	}
	registerStdlib(it)
	return it
}

// SetVariable binds name in the top-level (global) scope.
func (it *Interpreter) SetVariable(name string, v value.Value) { it.global.bind(name, v) }

func (it *Interpreter) SetInt(name string, i int64)     { it.SetVariable(name, value.Int(i)) }
func (it *Interpreter) SetString(name string, s string) { it.SetVariable(name, value.Str(s)) }
func (it *Interpreter) SetBytes(name string, b []byte)  { it.SetVariable(name, value.BytesVal(b)) }

// GetValue reads a variable back from the top-level scope.
func (it *Interpreter) GetValue(name string) (value.Value, bool) {
	return it.global.lookup(name)
}

// RegisterBuiltin installs a host-provided function, callable from script as
// name(args...) or, via method rewriting, as args[0].name(rest...).
func (it *Interpreter) RegisterBuiltin(name string, fn BuiltinFunc) {
	it.builtins[name] = fn
}

// Run lexes, parses and evaluates src against the interpreter's persistent
// global scope. Top-level `let`/assignment survive across calls, so a host
// can Run a compiled program once per message and read `this` back, or call
// Run repeatedly to build up state (as the host binding does per message,
// with a fresh child scope - see Interpreter.RunIn).
func (it *Interpreter) Run(src string) error {
	prog, err := Parse(src)
	if err != nil {
		return err
	}
	return it.RunProgram(prog)
}

// RunProgram evaluates an already-parsed Program against the global scope
// (callers that compile once and run many times cache the *Program; the
// fiddlerscript processor does so and runs it through RunMessage instead).
func (it *Interpreter) RunProgram(prog *Program) error {
	it.declareFns(prog.Stmts, it.global)
	_, sig, err := it.execBlockStmts(prog.Stmts, it.global)
	if err != nil {
		return err
	}
	_ = sig
	return nil
}

// RunProgramIn evaluates prog in a fresh child scope over the given base
// scope, returning without mutating top-level bindings except through base
// itself. This is what the fiddlerscript processor uses: base holds `this`
// and `metadata`, pushed fresh per message over the cached, compiled
// program's top-level function declarations.
func (it *Interpreter) RunProgramIn(prog *Program, base *scope) error {
	it.declareFns(prog.Stmts, base)
	_, _, err := it.execBlockStmts(prog.Stmts, base)
	return err
}

// NewChildScope exposes scope creation to the fiddlerscript processor
// without leaking the scope type outside the package; use with RunProgramIn.
func (it *Interpreter) NewChildScope() *ScopeHandle {
	return &ScopeHandle{s: newScope(it.global)}
}

// ScopeHandle is the exported wrapper around the unexported scope type.
type ScopeHandle struct{ s *scope }

func (h *ScopeHandle) Set(name string, v value.Value) { h.s.bind(name, v) }
func (h *ScopeHandle) Get(name string) (value.Value, bool) {
	return h.s.lookup(name)
}

func (it *Interpreter) RunIn(prog *Program, h *ScopeHandle) error {
	return it.RunProgramIn(prog, h.s)
}

func (it *Interpreter) declareFns(stmts []Stmt, sc *scope) {
	for _, s := range stmts {
		if fd, ok := s.(*FnDecl); ok {
			sc.fns[fd.Name] = fd
		}
	}
}

// control signals propagate a `return` up through nested blocks without
// unwinding via panic/recover.
type ctrlSignal int

const (
	sigNone ctrlSignal = iota
	sigReturn
)

func (it *Interpreter) execBlockStmts(stmts []Stmt, sc *scope) (value.Value, ctrlSignal, error) {
	var last value.Value
	for _, s := range stmts {
		v, sig, err := it.execStmt(s, sc)
		if err != nil {
			return value.Null(), sigNone, err
		}
		if sig == sigReturn {
			return v, sig, nil
		}
		last = v
	}
	return last, sigNone, nil
}

func (it *Interpreter) execStmt(s Stmt, sc *scope) (value.Value, ctrlSignal, error) {
	switch n := s.(type) {
	case *LetStmt:
		v, err := it.eval(n.Expr, sc)
		if err != nil {
			return value.Null(), sigNone, err
		}
		sc.bind(n.Name, v)
		return v, sigNone, nil
	case *AssignStmt:
		return it.execAssign(n, sc)
	case *IfStmt:
		cond, err := it.eval(n.Cond, sc)
		if err != nil {
			return value.Null(), sigNone, err
		}
		if cond.Truthy() {
			return it.execBlockStmts(n.Then.Stmts, newScope(sc))
		} else if n.Else != nil {
			switch e := n.Else.(type) {
			case *BlockStmt:
				return it.execBlockStmts(e.Stmts, newScope(sc))
			default:
				return it.execStmt(n.Else, sc)
			}
		}
		return value.Null(), sigNone, nil
	case *ForStmt:
		return it.execFor(n, sc)
	case *ReturnStmt:
		if n.Expr == nil {
			return value.Null(), sigReturn, nil
		}
		v, err := it.eval(n.Expr, sc)
		if err != nil {
			return value.Null(), sigNone, err
		}
		return v, sigReturn, nil
	case *ExprStmt:
		v, err := it.eval(n.Expr, sc)
		return v, sigNone, err
	case *FnDecl:
		sc.fns[n.Name] = n
		return value.Null(), sigNone, nil
	case *BlockStmt:
		return it.execBlockStmts(n.Stmts, newScope(sc))
	}
	return value.Null(), sigNone, ferrors.Runtime(ferrors.RuntimeInvalidArgument, "unknown statement type")
}

func (it *Interpreter) execAssign(n *AssignStmt, sc *scope) (value.Value, ctrlSignal, error) {
	v, err := it.eval(n.Expr, sc)
	if err != nil {
		return value.Null(), sigNone, err
	}
	switch tgt := n.Target.(type) {
	case *Identifier:
		sc.assign(tgt.Name, v)
		return v, sigNone, nil
	case *Index:
		return value.Null(), sigNone, ferrors.Runtime(ferrors.RuntimeInvalidArgument, "cannot assign through index; collections are value types - use set()/push() and reassign")
	case *Member:
		return value.Null(), sigNone, ferrors.Runtime(ferrors.RuntimeInvalidArgument, "cannot assign through member access; use set() and reassign")
	}
	return value.Null(), sigNone, ferrors.Runtime(ferrors.RuntimeInvalidArgument, "invalid assignment target")
}

func (it *Interpreter) execFor(n *ForStmt, sc *scope) (value.Value, ctrlSignal, error) {
	loopScope := newScope(sc)
	if n.Init != nil {
		if _, _, err := it.execStmt(n.Init, loopScope); err != nil {
			return value.Null(), sigNone, err
		}
	}
	for {
		if n.Cond != nil {
			cv, err := it.eval(n.Cond, loopScope)
			if err != nil {
				return value.Null(), sigNone, err
			}
			if !cv.Truthy() {
				break
			}
		}
		bodyScope := newScope(loopScope)
		v, sig, err := it.execBlockStmts(n.Body.Stmts, bodyScope)
		if err != nil {
			return value.Null(), sigNone, err
		}
		if sig == sigReturn {
			return v, sig, nil
		}
		if n.Post != nil {
			if _, _, err := it.execStmt(n.Post, loopScope); err != nil {
				return value.Null(), sigNone, err
			}
		}
		if n.Cond == nil && n.Init == nil && n.Post == nil {
			// bare `for { ... }` would otherwise loop forever in this
			// grammar; FiddlerScript requires at least a condition to
			// terminate, so treat a fully-empty header as a single pass.
			break
		}
	}
	return value.Null(), sigNone, nil
}
