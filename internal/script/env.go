package script

import "github.com/rc1405/fiddler/internal/value"

// scope is one level of lexical nesting. A block statement pushes a new
// scope; `let` always binds in the current scope (shadowing), while plain
// assignment walks outward to the nearest enclosing scope where the name is
// already bound.
type scope struct {
	vars   map[string]value.Value
	fns    map[string]*FnDecl
	parent *scope
}

func newScope(parent *scope) *scope {
	return &scope{vars: make(map[string]value.Value), fns: make(map[string]*FnDecl), parent: parent}
}

func (s *scope) lookup(name string) (value.Value, bool) {
	for sc := s; sc != nil; sc = sc.parent {
		if v, ok := sc.vars[name]; ok {
			return v, true
		}
	}
	return value.Null(), false
}

func (s *scope) lookupFn(name string) (*FnDecl, bool) {
	for sc := s; sc != nil; sc = sc.parent {
		if f, ok := sc.fns[name]; ok {
			return f, true
		}
	}
	return nil, false
}

// bind always writes into s (used by `let`).
func (s *scope) bind(name string, v value.Value) { s.vars[name] = v }

// assign writes to the nearest enclosing scope that already declares name,
// falling back to binding in the current scope if the name isn't found
// anywhere (top-level implicit declarations are permitted, matching the
// S6-style `let r = f(10)` idiom where the host then reads `r` back).
func (s *scope) assign(name string, v value.Value) {
	for sc := s; sc != nil; sc = sc.parent {
		if _, ok := sc.vars[name]; ok {
			sc.vars[name] = v
			return
		}
	}
	s.vars[name] = v
}
