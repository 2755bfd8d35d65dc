package interp

import (
	"fmt"
	"math"

	"github.com/wisplang/wisp/token"
)

// signalKind tags the Eval signal threaded through every evaluator call:
// an ordinary Value, or a Return/Break/Continue control-flow intent that
// must propagate upward, unwinding blocks and loops, until something that
// understands it (a call, a loop) absorbs it.
type signalKind int

const (
	sigValue signalKind = iota
	sigReturn
	sigBreak
	sigContinue
)

type signal struct {
	kind signalKind
	val  Value
}

func sigVal(v Value) signal { return signal{kind: sigValue, val: v} }
func sigRet(v Value) signal { return signal{kind: sigReturn, val: v} }
func sigBrk(v Value) signal { return signal{kind: sigBreak, val: v} }

var sigCont = signal{kind: sigContinue}

// EvalError is a located evaluator failure. The evaluator never recovers
// from one: it always aborts the entire script, localised to the smallest
// enclosing AST node whose span frames the error meaningfully.
type EvalError struct {
	Span token.Span
	Msg  string
}

func (e *EvalError) Error() string { return e.Msg }

func evalErrf(sp token.Span, format string, args ...interface{}) *EvalError {
	return &EvalError{Span: sp, Msg: fmt.Sprintf(format, args...)}
}

// evalValue evaluates e and classifies the result: a plain Value (prop is
// nil), or a non-Value signal that the caller must propagate unchanged
// (prop is non-nil, v is the zero Value). This collapses the repeated
// "if not Value, return the signal" check spec section 4.3 describes at
// every statement boundary into a single call site.
func (interp *Interpreter) evalValue(e Expr) (v Value, prop *signal, err error) {
	sig, err := interp.evalExpr(e)
	if err != nil {
		return Value{}, nil, err
	}
	if sig.kind != sigValue {
		s := sig
		return Value{}, &s, nil
	}
	return sig.val, nil, nil
}

// execStatements runs a CodeBlock in the interpreter's current topmost
// frame without pushing a new one; callers that own the frame a block
// should run in (a function call, a loop, an if/while branch) push it
// themselves via evalScopedBlock or their own push/pop pair.
func (interp *Interpreter) execStatements(block CodeBlock) (signal, error) {
	if len(block) == 0 {
		return sigVal(Null()), nil
	}
	for i, stmt := range block {
		sig, err := interp.evalExpr(stmt.Expr)
		if err != nil {
			return signal{}, err
		}
		last := i == len(block)-1
		if sig.kind != sigValue {
			return sig, nil
		}
		if last && !stmt.Terminated {
			return sig, nil
		}
	}
	return sigVal(Null()), nil
}

// evalScopedBlock pushes a fresh non-readonly, non-barrier frame, runs
// block in it, and always pops the frame again, including when evaluation
// fails partway through: scope-stack depth after any evaluation, success
// or failure, equals its depth before. Transparent (non-barrier) because
// an if/while body assigning to a name declared further out should update
// it in place, not shadow it for the duration of the branch.
func (interp *Interpreter) evalScopedBlock(block CodeBlock) (signal, error) {
	interp.scopes.push(false, false)
	defer interp.scopes.pop()
	return interp.execStatements(block)
}

// evalExpr is the tree-walking core: every AST node variant produces an
// Eval signal, never panics on a well-typed script, and fails through
// EvalError on a type or operator mismatch.
func (interp *Interpreter) evalExpr(e Expr) (signal, error) {
	switch n := e.(type) {
	case *IntLit:
		return sigVal(Int(n.Value)), nil
	case *FloatLit:
		return sigVal(Float(n.Value)), nil
	case *BoolLit:
		return sigVal(Bool(n.Value)), nil
	case *StringLit:
		return sigVal(Str(n.Value)), nil
	case *Ident:
		if v, ok := interp.scopes.lookup(n.Name); ok {
			return sigVal(v), nil
		}
		return sigVal(Null()), nil
	case *Parentheses:
		return interp.evalExpr(n.Inner)
	case *UnaryOp:
		return interp.evalUnary(n)
	case *BinaryOp:
		return interp.evalBinary(n)
	case *FieldAccess:
		return interp.evalFieldAccess(n)
	case *Index:
		return interp.evalIndex(n)
	case *Call:
		return interp.evalCall(n)
	case *Range:
		return interp.evalRange(n)
	case *List:
		return interp.evalList(n)
	case *Object:
		return interp.evalObject(n)
	case *Function:
		return sigVal(FuncValue(n)), nil
	case *If:
		return interp.evalIf(n)
	case *ForLoop:
		return interp.evalForLoop(n)
	case *WhileLoop:
		return interp.evalWhileLoop(n)
	case *Assignment:
		return interp.evalAssignment(n)
	case *Return:
		return interp.evalReturn(n)
	case *Break:
		return interp.evalBreak(n)
	case *Continue:
		return sigCont, nil
	default:
		return signal{}, evalErrf(e.Span(), "unhandled AST node %T", e)
	}
}

func (interp *Interpreter) evalUnary(n *UnaryOp) (signal, error) {
	v, prop, err := interp.evalValue(n.Value)
	if err != nil {
		return signal{}, err
	}
	if prop != nil {
		return *prop, nil
	}
	switch n.Op {
	case token.Minus:
		switch v.Kind {
		case KindInt:
			return sigVal(Int(-v.I)), nil
		case KindFloat:
			return sigVal(Float(-v.F)), nil
		default:
			return signal{}, evalErrf(n.Sp, "cannot negate %s", v.TypeName())
		}
	case token.Bang:
		if v.Kind != KindBool {
			return signal{}, evalErrf(n.Sp, "cannot apply '!' to %s", v.TypeName())
		}
		return sigVal(Bool(!v.B)), nil
	default:
		return signal{}, evalErrf(n.Sp, "unknown unary operator")
	}
}

// evalBinary evaluates both operands strictly left-to-right, then
// dispatches through the value model's capability set. '==' and '!=' never
// fail, matching the invariant that equality is total over every Value.
func (interp *Interpreter) evalBinary(n *BinaryOp) (signal, error) {
	lv, prop, err := interp.evalValue(n.LHS)
	if err != nil {
		return signal{}, err
	}
	if prop != nil {
		return *prop, nil
	}
	rv, prop, err := interp.evalValue(n.RHS)
	if err != nil {
		return signal{}, err
	}
	if prop != nil {
		return *prop, nil
	}

	switch n.Op {
	case token.EqEq:
		return sigVal(Bool(lv.Equal(rv))), nil
	case token.NotEq:
		return sigVal(Bool(!lv.Equal(rv))), nil
	case token.Gt:
		return sigVal(Bool(lv.GreaterThan(rv))), nil
	case token.Lt:
		return sigVal(Bool(lv.LessThan(rv))), nil
	case token.GtEq:
		return sigVal(Bool(lv.GreaterThan(rv) || lv.Equal(rv))), nil
	case token.LtEq:
		return sigVal(Bool(lv.LessThan(rv) || lv.Equal(rv))), nil
	case token.Plus:
		res, err := Plus(lv, rv)
		return wrapArith(n.Sp, res, err)
	case token.Minus:
		res, err := Minus(lv, rv)
		return wrapArith(n.Sp, res, err)
	case token.Star:
		res, err := Multiply(lv, rv)
		return wrapArith(n.Sp, res, err)
	case token.Slash:
		res, err := Divide(lv, rv)
		return wrapArith(n.Sp, res, err)
	default:
		return signal{}, evalErrf(n.Sp, "unknown binary operator")
	}
}

func wrapArith(sp token.Span, v Value, err error) (signal, error) {
	if err != nil {
		return signal{}, &EvalError{Span: sp, Msg: err.Error()}
	}
	return sigVal(v), nil
}

// evalFieldAccess looks a field up on the value's own fields first, then
// falls back to its kind's prototype, then Null.
func (interp *Interpreter) evalFieldAccess(n *FieldAccess) (signal, error) {
	v, prop, err := interp.evalValue(n.Value)
	if err != nil {
		return signal{}, err
	}
	if prop != nil {
		return *prop, nil
	}
	return sigVal(interp.lookupField(v, n.Field)), nil
}

func (interp *Interpreter) lookupField(v Value, name string) Value {
	if fv, ok := GetField(v, name); ok {
		return fv
	}
	if fv, ok := interp.protos.forKind(v.Kind).Fields[name]; ok {
		return fv
	}
	return Null()
}

func (interp *Interpreter) evalIndex(n *Index) (signal, error) {
	v, prop, err := interp.evalValue(n.Value)
	if err != nil {
		return signal{}, err
	}
	if prop != nil {
		return *prop, nil
	}
	idx, prop, err := interp.evalValue(n.Idx)
	if err != nil {
		return signal{}, err
	}
	if prop != nil {
		return *prop, nil
	}
	res, ok := GetIndex(v, idx)
	if !ok {
		return signal{}, evalErrf(n.Sp, "can't index into %s using %s", v.TypeName(), idx.TypeName())
	}
	return sigVal(res), nil
}

// evalCall implements both call forms from section 4.3.3: a method call
// `recv.field(args)` resolves `this` and the callee together before
// argument evaluation, while a plain call `expr(args)` evaluates the
// callee with `this` forced to Null.
func (interp *Interpreter) evalCall(n *Call) (signal, error) {
	var this Value
	var fn Value

	if fa, ok := n.Callee.(*FieldAccess); ok {
		recv, prop, err := interp.evalValue(fa.Value)
		if err != nil {
			return signal{}, err
		}
		if prop != nil {
			return *prop, nil
		}
		this = recv
		fn = interp.lookupField(recv, fa.Field)
	} else {
		callee, prop, err := interp.evalValue(n.Callee)
		if err != nil {
			return signal{}, err
		}
		if prop != nil {
			return *prop, nil
		}
		this = Null()
		fn = callee
	}

	args, prop, err := interp.evalArgs(n.Args)
	if err != nil {
		return signal{}, err
	}
	if prop != nil {
		return *prop, nil
	}

	res, callErr := CallValue(interp, n.Sp, fn, this, args)
	if callErr != nil {
		return signal{}, &EvalError{Span: n.Sp, Msg: callErr.Error()}
	}
	return sigVal(res), nil
}

func (interp *Interpreter) evalArgs(exprs []Expr) ([]Value, *signal, error) {
	vals := make([]Value, 0, len(exprs))
	for _, a := range exprs {
		v, prop, err := interp.evalValue(a)
		if err != nil {
			return nil, nil, err
		}
		if prop != nil {
			return nil, prop, nil
		}
		vals = append(vals, v)
	}
	return vals, nil, nil
}

// evalRange requires both bounds to be Integer, or a Float with no
// fractional part; anything else is fatal. No lazy iterator is built: the
// whole Array is materialised up front.
func (interp *Interpreter) evalRange(n *Range) (signal, error) {
	from, prop, err := interp.evalValue(n.From)
	if err != nil {
		return signal{}, err
	}
	if prop != nil {
		return *prop, nil
	}
	to, prop, err := interp.evalValue(n.To)
	if err != nil {
		return signal{}, err
	}
	if prop != nil {
		return *prop, nil
	}
	fi, ok := truncToInt(from)
	if !ok {
		return signal{}, evalErrf(n.Sp, "range bound must be an integer, got %s", from.TypeName())
	}
	ti, ok := truncToInt(to)
	if !ok {
		return signal{}, evalErrf(n.Sp, "range bound must be an integer, got %s", to.TypeName())
	}
	var items []Value
	for i := fi; i < ti; i++ {
		items = append(items, Int(i))
	}
	return sigVal(NewArray(items)), nil
}

func truncToInt(v Value) (int64, bool) {
	switch v.Kind {
	case KindInt:
		return v.I, true
	case KindFloat:
		if v.F == math.Trunc(v.F) {
			return int64(v.F), true
		}
	}
	return 0, false
}

func (interp *Interpreter) evalList(n *List) (signal, error) {
	items := make([]Value, 0, len(n.Items))
	for _, it := range n.Items {
		v, prop, err := interp.evalValue(it)
		if err != nil {
			return signal{}, err
		}
		if prop != nil {
			return *prop, nil
		}
		items = append(items, v)
	}
	return sigVal(NewArray(items)), nil
}

// evalObject evaluates entries in source order and fails fatally on the
// first duplicate key; the parser accepts duplicates, this is the
// deferred-to-evaluator check the design notes call for.
func (interp *Interpreter) evalObject(n *Object) (signal, error) {
	fields := make(map[string]Value, len(n.Entries))
	for _, entry := range n.Entries {
		if _, dup := fields[entry.Key]; dup {
			return signal{}, evalErrf(n.Sp, "duplicate key %q in object literal", entry.Key)
		}
		v, prop, err := interp.evalValue(entry.Value)
		if err != nil {
			return signal{}, err
		}
		if prop != nil {
			return *prop, nil
		}
		fields[entry.Key] = v
	}
	return sigVal(NewDict(fields)), nil
}

func (interp *Interpreter) evalCondition(cond Expr) (bool, *signal, error) {
	v, prop, err := interp.evalValue(cond)
	if err != nil {
		return false, nil, err
	}
	if prop != nil {
		return false, prop, nil
	}
	if v.Kind != KindBool {
		return false, nil, evalErrf(cond.Span(), "expected boolean, got %s", v.TypeName())
	}
	return v.B, nil, nil
}

// evalIf tries the primary branch, then each else-if in order, then the
// else branch if present; each branch body runs in its own fresh frame.
func (interp *Interpreter) evalIf(n *If) (signal, error) {
	branches := make([]Branch, 0, 1+len(n.ElseIfBranches))
	branches = append(branches, n.IfBranch)
	branches = append(branches, n.ElseIfBranches...)

	for _, br := range branches {
		ok, prop, err := interp.evalCondition(br.Cond)
		if err != nil {
			return signal{}, err
		}
		if prop != nil {
			return *prop, nil
		}
		if ok {
			return interp.evalScopedBlock(br.Body)
		}
	}
	if n.HasElse {
		return interp.evalScopedBlock(n.ElseBranch)
	}
	return sigVal(Null()), nil
}

// evalForLoop opens a single scope frame for the whole loop; each step
// force-binds the loop variable into that frame (so it lands there even
// though the frame started empty) and runs the body directly in it.
func (interp *Interpreter) evalForLoop(n *ForLoop) (signal, error) {
	iterV, prop, err := interp.evalValue(n.Iterator)
	if err != nil {
		return signal{}, err
	}
	if prop != nil {
		return *prop, nil
	}
	it, iterErr := Iterator(iterV)
	if iterErr != nil {
		return signal{}, &EvalError{Span: n.Sp, Msg: iterErr.Error()}
	}

	interp.scopes.push(false, false)
	defer interp.scopes.pop()

	for {
		v, ok := it.Next()
		if !ok {
			break
		}
		interp.scopes.pushVar(n.Binding, v, true)
		sig, err := interp.execStatements(n.Body)
		if err != nil {
			return signal{}, err
		}
		switch sig.kind {
		case sigReturn:
			return sig, nil
		case sigBreak:
			return sigVal(sig.val), nil
		case sigContinue, sigValue:
			continue
		}
	}
	return sigVal(Null()), nil
}

// evalWhileLoop re-evaluates the condition before every iteration. A
// Boolean(false) condition terminates the loop normally; a non-Boolean
// condition is fatal, matching If rather than silently stopping.
func (interp *Interpreter) evalWhileLoop(n *WhileLoop) (signal, error) {
	for {
		ok, prop, err := interp.evalCondition(n.Cond)
		if err != nil {
			return signal{}, err
		}
		if prop != nil {
			return *prop, nil
		}
		if !ok {
			break
		}
		sig, err := interp.evalScopedBlock(n.Body)
		if err != nil {
			return signal{}, err
		}
		switch sig.kind {
		case sigReturn:
			return sig, nil
		case sigBreak:
			return sigVal(sig.val), nil
		case sigContinue, sigValue:
			continue
		}
	}
	return sigVal(Null()), nil
}

// evalAssignment implements the three receiver shapes; the parser has
// already rejected any other receiver shape with a Fatal parse error, so
// the default case here is unreachable on a successfully parsed program.
func (interp *Interpreter) evalAssignment(n *Assignment) (signal, error) {
	switch recv := n.Receiver.(type) {
	case *Ident:
		v, prop, err := interp.evalValue(n.Value)
		if err != nil {
			return signal{}, err
		}
		if prop != nil {
			return *prop, nil
		}
		interp.scopes.pushVar(recv.Name, v, false)
		return sigVal(Null()), nil

	case *FieldAccess:
		obj, prop, err := interp.evalValue(recv.Value)
		if err != nil {
			return signal{}, err
		}
		if prop != nil {
			return *prop, nil
		}
		v, prop, err := interp.evalValue(n.Value)
		if err != nil {
			return signal{}, err
		}
		if prop != nil {
			return *prop, nil
		}
		if err := SetField(obj, recv.Field, v); err != nil {
			return signal{}, &EvalError{Span: n.Sp, Msg: err.Error()}
		}
		return sigVal(Null()), nil

	case *Index:
		obj, prop, err := interp.evalValue(recv.Value)
		if err != nil {
			return signal{}, err
		}
		if prop != nil {
			return *prop, nil
		}
		idx, prop, err := interp.evalValue(recv.Idx)
		if err != nil {
			return signal{}, err
		}
		if prop != nil {
			return *prop, nil
		}
		v, prop, err := interp.evalValue(n.Value)
		if err != nil {
			return signal{}, err
		}
		if prop != nil {
			return *prop, nil
		}
		if err := SetIndex(obj, idx, v); err != nil {
			return signal{}, &EvalError{Span: n.Sp, Msg: err.Error()}
		}
		return sigVal(Null()), nil

	default:
		return signal{}, evalErrf(n.Sp, "invalid assignment target")
	}
}

func (interp *Interpreter) evalReturn(n *Return) (signal, error) {
	if n.Value == nil {
		return sigRet(Null()), nil
	}
	v, prop, err := interp.evalValue(n.Value)
	if err != nil {
		return signal{}, err
	}
	if prop != nil {
		return *prop, nil
	}
	return sigRet(v), nil
}

func (interp *Interpreter) evalBreak(n *Break) (signal, error) {
	if n.Value == nil {
		return sigBrk(Null()), nil
	}
	v, prop, err := interp.evalValue(n.Value)
	if err != nil {
		return signal{}, err
	}
	if prop != nil {
		return *prop, nil
	}
	return sigBrk(v), nil
}

// callClosure pushes a new call frame directly onto the *caller's* current
// scope stack (the language does not implement lexical closures: a
// Function value carries only its AST node, never a captured environment),
// binds `this` and parameters, and always pops the frame again. The call
// frame is a barrier: assigning to a name that happens to already exist
// further out creates a function-local binding instead of mutating it.
func (interp *Interpreter) callClosure(clo *Closure, this Value, args []Value) (Value, error) {
	interp.scopes.push(false, true)
	defer interp.scopes.pop()

	interp.scopes.pushVar("this", this, true)
	n := clo.Node
	for i := 0; i < len(n.Params) && i < len(args); i++ {
		interp.scopes.pushVar(n.Params[i], args[i], true)
	}

	sig, err := interp.execStatements(n.Body)
	if err != nil {
		return Value{}, err
	}
	switch sig.kind {
	case sigContinue:
		return Null(), nil
	default:
		return sig.val, nil
	}
}
