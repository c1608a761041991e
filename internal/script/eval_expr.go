package script

import (
	"github.com/rc1405/fiddler/internal/ferrors"
	"github.com/rc1405/fiddler/internal/value"
)

func (it *Interpreter) eval(e Expr, sc *scope) (value.Value, error) {
	switch n := e.(type) {
	case *IntLit:
		return value.Int(n.Value), nil
	case *FloatLit:
		return value.Flt(n.Value), nil
	case *StringLit:
		return value.Str(n.Value), nil
	case *BoolLit:
		return value.Bool(n.Value), nil
	case *NullLit:
		return value.Null(), nil
	case *ArrayLit:
		vs := make([]value.Value, len(n.Elems))
		for i, el := range n.Elems {
			v, err := it.eval(el, sc)
			if err != nil {
				return value.Null(), err
			}
			vs[i] = v
		}
		return value.Arr(vs), nil
	case *DictLit:
		d := value.NewDict()
		for _, entry := range n.Entries {
			v, err := it.eval(entry.Value, sc)
			if err != nil {
				return value.Null(), err
			}
			d = d.Set(entry.Key, v)
		}
		return value.DictVal(d), nil
	case *Identifier:
		if v, ok := sc.lookup(n.Name); ok {
			return v, nil
		}
		line, col := n.Pos()
		return value.Null(), &ferrors.Error{Kind: ferrors.KindRuntime, Sub: ferrors.RuntimeUndefinedVariable, Line: line, Col: col, Message: "undefined variable " + n.Name}
	case *BinaryOp:
		return it.evalBinary(n, sc)
	case *UnaryOp:
		return it.evalUnary(n, sc)
	case *Index:
		return it.evalIndex(n, sc)
	case *Member:
		return it.evalMember(n, sc)
	case *Call:
		return it.evalCall(n, sc)
	case *MethodCall:
		return it.evalMethodCall(n, sc)
	}
	return value.Null(), ferrors.Runtime(ferrors.RuntimeInvalidArgument, "unknown expression type")
}

func (it *Interpreter) evalUnary(n *UnaryOp, sc *scope) (value.Value, error) {
	v, err := it.eval(n.Operand, sc)
	if err != nil {
		return value.Null(), err
	}
	switch n.Op {
	case NOT:
		return value.Bool(!v.Truthy()), nil
	case MINUS:
		switch v.Kind() {
		case value.KindInteger:
			return value.Int(-v.Int()), nil
		case value.KindFloat:
			return value.Flt(-v.Float()), nil
		}
		line, col := n.Pos()
		return value.Null(), &ferrors.Error{Kind: ferrors.KindRuntime, Sub: ferrors.RuntimeTypeMismatch, Line: line, Col: col, Message: "unary '-' requires a number, got " + v.TypeName()}
	}
	return value.Null(), ferrors.Runtime(ferrors.RuntimeInvalidArgument, "unknown unary operator")
}

func (it *Interpreter) evalBinary(n *BinaryOp, sc *scope) (value.Value, error) {
	// && and || short-circuit, so their right operand is evaluated lazily.
	if n.Op == AND {
		l, err := it.eval(n.Left, sc)
		if err != nil {
			return value.Null(), err
		}
		if !l.Truthy() {
			return value.Bool(false), nil
		}
		r, err := it.eval(n.Right, sc)
		if err != nil {
			return value.Null(), err
		}
		return value.Bool(r.Truthy()), nil
	}
	if n.Op == OR {
		l, err := it.eval(n.Left, sc)
		if err != nil {
			return value.Null(), err
		}
		if l.Truthy() {
			return value.Bool(true), nil
		}
		r, err := it.eval(n.Right, sc)
		if err != nil {
			return value.Null(), err
		}
		return value.Bool(r.Truthy()), nil
	}

	l, err := it.eval(n.Left, sc)
	if err != nil {
		return value.Null(), err
	}
	r, err := it.eval(n.Right, sc)
	if err != nil {
		return value.Null(), err
	}
	line, col := n.Pos()

	switch n.Op {
	case EQ:
		return value.Bool(value.Equal(l, r)), nil
	case NEQ:
		return value.Bool(!value.Equal(l, r)), nil
	case LT, LTE, GT, GTE:
		return compare(n.Op, l, r, line, col)
	case PLUS:
		return add(l, r, line, col)
	case MINUS, STAR, SLASH, PERCENT:
		return arith(n.Op, l, r, line, col)
	}
	return value.Null(), ferrors.Runtime(ferrors.RuntimeInvalidArgument, "unknown binary operator")
}

func numeric(v value.Value) bool {
	return v.Kind() == value.KindInteger || v.Kind() == value.KindFloat
}

func compare(op TokenType, l, r value.Value, line, col int) (value.Value, error) {
	if !numeric(l) || !numeric(r) {
		if l.Kind() == value.KindString && r.Kind() == value.KindString {
			var res bool
			switch op {
			case LT:
				res = l.Str() < r.Str()
			case LTE:
				res = l.Str() <= r.Str()
			case GT:
				res = l.Str() > r.Str()
			case GTE:
				res = l.Str() >= r.Str()
			}
			return value.Bool(res), nil
		}
		return value.Null(), &ferrors.Error{Kind: ferrors.KindRuntime, Sub: ferrors.RuntimeTypeMismatch, Line: line, Col: col,
			Message: "cannot compare " + l.TypeName() + " and " + r.TypeName()}
	}
	lf, rf := promote(l), promote(r)
	var res bool
	switch op {
	case LT:
		res = lf < rf
	case LTE:
		res = lf <= rf
	case GT:
		res = lf > rf
	case GTE:
		res = lf >= rf
	}
	return value.Bool(res), nil
}

func promote(v value.Value) float64 {
	if v.Kind() == value.KindInteger {
		return float64(v.Int())
	}
	return v.Float()
}

func add(l, r value.Value, line, col int) (value.Value, error) {
	switch {
	case l.Kind() == value.KindString && r.Kind() == value.KindString:
		return value.Str(l.Str() + r.Str()), nil
	case l.Kind() == value.KindBytes && r.Kind() == value.KindBytes:
		return value.BytesVal(append(append([]byte(nil), l.Bytes()...), r.Bytes()...)), nil
	case l.Kind() == value.KindArray && r.Kind() == value.KindArray:
		out := append([]value.Value(nil), l.Array()...)
		out = append(out, r.Array()...)
		return value.Arr(out), nil
	case numeric(l) && numeric(r):
		return arith(PLUS, l, r, line, col)
	}
	return value.Null(), &ferrors.Error{Kind: ferrors.KindRuntime, Sub: ferrors.RuntimeTypeMismatch, Line: line, Col: col,
		Message: "cannot add " + l.TypeName() + " and " + r.TypeName()}
}

func arith(op TokenType, l, r value.Value, line, col int) (value.Value, error) {
	if !numeric(l) || !numeric(r) {
		return value.Null(), &ferrors.Error{Kind: ferrors.KindRuntime, Sub: ferrors.RuntimeTypeMismatch, Line: line, Col: col,
			Message: "arithmetic requires numbers, got " + l.TypeName() + " and " + r.TypeName()}
	}
	bothInt := l.Kind() == value.KindInteger && r.Kind() == value.KindInteger
	if bothInt {
		li, ri := l.Int(), r.Int()
		switch op {
		case PLUS:
			return value.Int(li + ri), nil
		case MINUS:
			return value.Int(li - ri), nil
		case STAR:
			return value.Int(li * ri), nil
		case SLASH:
			if ri == 0 {
				return value.Null(), &ferrors.Error{Kind: ferrors.KindRuntime, Sub: ferrors.RuntimeDivisionByZero, Line: line, Col: col, Message: "division by zero"}
			}
			return value.Int(li / ri), nil // Go truncates toward zero
		case PERCENT:
			if ri == 0 {
				return value.Null(), &ferrors.Error{Kind: ferrors.KindRuntime, Sub: ferrors.RuntimeDivisionByZero, Line: line, Col: col, Message: "modulo by zero"}
			}
			return value.Int(li % ri), nil // Go's % follows the sign of the dividend
		}
	}
	lf, rf := promote(l), promote(r)
	switch op {
	case PLUS:
		return value.Flt(lf + rf), nil
	case MINUS:
		return value.Flt(lf - rf), nil
	case STAR:
		return value.Flt(lf * rf), nil
	case SLASH:
		if rf == 0 {
			return value.Null(), &ferrors.Error{Kind: ferrors.KindRuntime, Sub: ferrors.RuntimeDivisionByZero, Line: line, Col: col, Message: "division by zero"}
		}
		return value.Flt(lf / rf), nil
	case PERCENT:
		if rf == 0 {
			return value.Null(), &ferrors.Error{Kind: ferrors.KindRuntime, Sub: ferrors.RuntimeDivisionByZero, Line: line, Col: col, Message: "modulo by zero"}
		}
		li, ri := int64(lf), int64(rf)
		return value.Flt(float64(li % ri)), nil
	}
	return value.Null(), ferrors.Runtime(ferrors.RuntimeInvalidArgument, "unknown arithmetic operator")
}

func (it *Interpreter) evalIndex(n *Index, sc *scope) (value.Value, error) {
	coll, err := it.eval(n.Collection, sc)
	if err != nil {
		return value.Null(), err
	}
	idx, err := it.eval(n.Idx, sc)
	if err != nil {
		return value.Null(), err
	}
	switch coll.Kind() {
	case value.KindArray:
		i, err := idx.ToInt()
		if err != nil {
			line, col := n.Pos()
			return value.Null(), &ferrors.Error{Kind: ferrors.KindRuntime, Sub: ferrors.RuntimeTypeMismatch, Line: line, Col: col, Message: "array index must be an integer"}
		}
		arr := coll.Array()
		if i < 0 || int(i) >= len(arr) {
			return value.Null(), nil // out-of-range returns Null, not error
		}
		return arr[i], nil
	case value.KindDict:
		if idx.Kind() != value.KindString {
			line, col := n.Pos()
			return value.Null(), &ferrors.Error{Kind: ferrors.KindRuntime, Sub: ferrors.RuntimeTypeMismatch, Line: line, Col: col, Message: "dict index must be a string"}
		}
		return coll.Dict().Get(idx.Str()), nil // missing key returns Null
	}
	line, col := n.Pos()
	return value.Null(), &ferrors.Error{Kind: ferrors.KindRuntime, Sub: ferrors.RuntimeTypeMismatch, Line: line, Col: col, Message: "cannot index into " + coll.TypeName()}
}

func (it *Interpreter) evalMember(n *Member, sc *scope) (value.Value, error) {
	d, err := it.eval(n.Dict, sc)
	if err != nil {
		return value.Null(), err
	}
	if d.Kind() != value.KindDict {
		line, col := n.Pos()
		return value.Null(), &ferrors.Error{Kind: ferrors.KindRuntime, Sub: ferrors.RuntimeTypeMismatch, Line: line, Col: col, Message: "cannot access member of " + d.TypeName()}
	}
	return d.Dict().Get(n.Key), nil
}

func (it *Interpreter) evalCall(n *Call, sc *scope) (value.Value, error) {
	ident, ok := n.Callee.(*Identifier)
	if !ok {
		line, col := n.Pos()
		return value.Null(), &ferrors.Error{Kind: ferrors.KindRuntime, Sub: ferrors.RuntimeInvalidArgument, Line: line, Col: col, Message: "call target must be a function name"}
	}
	args, err := it.evalArgs(n.Args, sc)
	if err != nil {
		return value.Null(), err
	}
	return it.invoke(ident.Name, args, n)
}

func (it *Interpreter) evalMethodCall(n *MethodCall, sc *scope) (value.Value, error) {
	recv, err := it.eval(n.Receiver, sc)
	if err != nil {
		return value.Null(), err
	}
	args, err := it.evalArgs(n.Args, sc)
	if err != nil {
		return value.Null(), err
	}
	// Method syntax x.f(a) rewrites to f(x, a).
	full := append([]value.Value{recv}, args...)
	return it.invoke(n.Name, full, n)
}

func (it *Interpreter) evalArgs(exprs []Expr, sc *scope) ([]value.Value, error) {
	args := make([]value.Value, len(exprs))
	for i, a := range exprs {
		v, err := it.eval(a, sc)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	return args, nil
}

func (it *Interpreter) invoke(name string, args []value.Value, n Node) (value.Value, error) {
	line, col := n.Pos()

	if fd, ok := it.global.lookupFn(name); ok {
		return it.callUserFn(fd, args, line, col)
	}
	if fn, ok := it.builtins[name]; ok {
		v, err := fn(args)
		if err != nil {
			if _, isFE := err.(*ferrors.Error); isFE {
				return value.Null(), err
			}
			return value.Null(), &ferrors.Error{Kind: ferrors.KindRuntime, Sub: ferrors.RuntimeInvalidArgument, Line: line, Col: col, Message: err.Error()}
		}
		return v, nil
	}
	return value.Null(), &ferrors.Error{Kind: ferrors.KindRuntime, Sub: ferrors.RuntimeUndefinedVariable, Line: line, Col: col, Message: "call to undefined function " + name}
}

func (it *Interpreter) callUserFn(fd *FnDecl, args []value.Value, line, col int) (value.Value, error) {
	if it.depth >= maxRecursionDepth {
		return value.Null(), &ferrors.Error{Kind: ferrors.KindRuntime, Sub: ferrors.RuntimeRecursionLimit, Line: line, Col: col, Message: "exceeded max recursion depth"}
	}
	if len(args) != len(fd.Params) {
		return value.Null(), &ferrors.Error{Kind: ferrors.KindRuntime, Sub: ferrors.RuntimeInvalidArgument, Line: line, Col: col,
			Message: "function " + fd.Name + " expects " + itoa(len(fd.Params)) + " args, got " + itoa(len(args))}
	}
	fnScope := newScope(it.global)
	for i, p := range fd.Params {
		fnScope.bind(p, args[i])
	}
	it.depth++
	v, _, err := it.execBlockStmts(fd.Body.Stmts, fnScope)
	it.depth--
	return v, err
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
