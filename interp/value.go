package interp

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/wisplang/wisp/token"
)

// Kind tags a Value's active variant. Values are a tagged union rather than
// an open interface hierarchy: every capability below is a plain function
// that switches on Kind, mirroring how the scope/frame layer tags its own
// entries instead of dispatching through virtual calls.
type Kind int

const (
	KindNull Kind = iota
	KindInt
	KindFloat
	KindBool
	KindString
	KindArray
	KindDict
	KindFunction
	KindNative
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindInt:
		return "integer"
	case KindFloat:
		return "float"
	case KindBool:
		return "boolean"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindDict:
		return "object"
	case KindFunction:
		return "function"
	case KindNative:
		return "native function"
	default:
		return "unknown"
	}
}

// Array is a shared-mutable vector; copying a Value that holds one shares
// the same backing struct, so mutation through any alias is visible
// through all of them.
type Array struct {
	Items []Value
}

// Dictionary is a shared-mutable string-keyed map, used both for object
// literals and for the eight prototype registries.
type Dictionary struct {
	Fields map[string]Value
}

// Closure wraps a Function AST node by shared reference. Per the language's
// (intentionally surprising) scoping rule, it does not capture its defining
// scope: calls evaluate in a fresh frame pushed onto the *caller's* current
// scope stack. Two Closures compare equal iff they wrap the same node.
type Closure struct {
	Node *Function
}

// NativeFn is the signature library modules register on prototypes/globals.
type NativeFn func(interp *Interpreter, this Value, args []Value) (Value, error)

// Native wraps a host-provided function. Distinct Native values are never
// equal to one another, even when they wrap the same Fn.
type Native struct {
	Name string
	Fn   NativeFn
}

// Value is the tagged union of every runtime value. Only the field(s)
// matching Kind are meaningful; Go's zero Value is KindNull.
type Value struct {
	Kind Kind
	I    int64
	F    float64
	B    bool
	S    string
	Arr  *Array
	Dict *Dictionary
	Clo  *Closure
	Nat  *Native
}

func Null() Value                 { return Value{Kind: KindNull} }
func Int(v int64) Value           { return Value{Kind: KindInt, I: v} }
func Float(v float64) Value       { return Value{Kind: KindFloat, F: v} }
func Bool(v bool) Value           { return Value{Kind: KindBool, B: v} }
func Str(v string) Value          { return Value{Kind: KindString, S: v} }
func NewArray(items []Value) Value {
	return Value{Kind: KindArray, Arr: &Array{Items: items}}
}
func NewDict(fields map[string]Value) Value {
	return Value{Kind: KindDict, Dict: &Dictionary{Fields: fields}}
}
func FuncValue(n *Function) Value { return Value{Kind: KindFunction, Clo: &Closure{Node: n}} }
func NativeValue(name string, fn NativeFn) Value {
	return Value{Kind: KindNative, Nat: &Native{Name: name, Fn: fn}}
}

func (v Value) IsNull() bool { return v.Kind == KindNull }

func (v Value) TypeName() string { return v.Kind.String() }

const floatEpsilon = 1e-9

// Equal implements the structural equality rules from the value model:
// Null equals only Null, numerics compare across Int/Float with an
// epsilon, aggregates compare structurally through their contents (not by
// identity), and closures compare by underlying AST node identity.
func (v Value) Equal(o Value) bool {
	switch {
	case v.Kind == KindNull || o.Kind == KindNull:
		return v.Kind == KindNull && o.Kind == KindNull
	case isNumeric(v.Kind) && isNumeric(o.Kind):
		return math.Abs(asFloat(v)-asFloat(o)) < floatEpsilon
	case v.Kind == KindBool && o.Kind == KindBool:
		return v.B == o.B
	case v.Kind == KindString && o.Kind == KindString:
		return v.S == o.S
	case v.Kind == KindArray && o.Kind == KindArray:
		return arraysEqual(v.Arr, o.Arr)
	case v.Kind == KindDict && o.Kind == KindDict:
		return dictsEqual(v.Dict, o.Dict)
	case v.Kind == KindFunction && o.Kind == KindFunction:
		return v.Clo.Node == o.Clo.Node
	default:
		return false
	}
}

func arraysEqual(a, b *Array) bool {
	if a == b {
		return true
	}
	if len(a.Items) != len(b.Items) {
		return false
	}
	for i := range a.Items {
		if !a.Items[i].Equal(b.Items[i]) {
			return false
		}
	}
	return true
}

func dictsEqual(a, b *Dictionary) bool {
	if a == b {
		return true
	}
	if len(a.Fields) != len(b.Fields) {
		return false
	}
	for k, v := range a.Fields {
		ov, ok := b.Fields[k]
		if !ok || !v.Equal(ov) {
			return false
		}
	}
	return true
}

func isNumeric(k Kind) bool { return k == KindInt || k == KindFloat }

func asFloat(v Value) float64 {
	if v.Kind == KindInt {
		return float64(v.I)
	}
	return v.F
}

// GreaterThan and LessThan are defined only between numeric values; every
// other combination returns false (the default capability).
func (v Value) GreaterThan(o Value) bool {
	if !isNumeric(v.Kind) || !isNumeric(o.Kind) {
		return false
	}
	return asFloat(v) > asFloat(o)
}

func (v Value) LessThan(o Value) bool {
	if !isNumeric(v.Kind) || !isNumeric(o.Kind) {
		return false
	}
	return asFloat(v) < asFloat(o)
}

// arithError mirrors the "can't ADD X TO Y" diagnostic wrapping described
// for operator failures; callers attach a source span.
type arithError struct {
	op   string
	a, b Value
}

func (e *arithError) Error() string {
	return fmt.Sprintf("can't %s %s TO %s", e.op, e.a.TypeName(), e.b.TypeName())
}

// Plus implements numeric addition, numeric promotion, and string
// concatenation (string+any and any+string use the other operand's
// ToString).
func Plus(a, b Value) (Value, error) {
	if a.Kind == KindString || b.Kind == KindString {
		if a.Kind == KindString && b.Kind == KindString {
			return Str(a.S + b.S), nil
		}
		if a.Kind == KindString {
			return Str(a.S + b.ToString()), nil
		}
		return Str(a.ToString() + b.S), nil
	}
	if a.Kind == KindInt && b.Kind == KindInt {
		return Int(a.I + b.I), nil
	}
	if isNumeric(a.Kind) && isNumeric(b.Kind) {
		return Float(asFloat(a) + asFloat(b)), nil
	}
	return Value{}, &arithError{"ADD", a, b}
}

func Minus(a, b Value) (Value, error) {
	if a.Kind == KindInt && b.Kind == KindInt {
		return Int(a.I - b.I), nil
	}
	if isNumeric(a.Kind) && isNumeric(b.Kind) {
		return Float(asFloat(a) - asFloat(b)), nil
	}
	return Value{}, &arithError{"SUBTRACT", a, b}
}

func Multiply(a, b Value) (Value, error) {
	if a.Kind == KindInt && b.Kind == KindInt {
		return Int(a.I * b.I), nil
	}
	if isNumeric(a.Kind) && isNumeric(b.Kind) {
		return Float(asFloat(a) * asFloat(b)), nil
	}
	return Value{}, &arithError{"MULTIPLY", a, b}
}

// Divide always yields a Float, even for Int/Int, per the value model.
func Divide(a, b Value) (Value, error) {
	if !isNumeric(a.Kind) || !isNumeric(b.Kind) {
		return Value{}, &arithError{"DIVIDE", a, b}
	}
	return Float(asFloat(a) / asFloat(b)), nil
}

// ToString is the default textual rendering; Array, Dictionary, and
// Function override it with their own custom forms.
func (v Value) ToString() string {
	switch v.Kind {
	case KindNull:
		return "null"
	case KindInt:
		return strconv.FormatInt(v.I, 10)
	case KindFloat:
		return strconv.FormatFloat(v.F, 'g', -1, 64)
	case KindBool:
		if v.B {
			return "true"
		}
		return "false"
	case KindString:
		return v.S
	case KindArray:
		parts := make([]string, len(v.Arr.Items))
		for i, it := range v.Arr.Items {
			parts[i] = it.repr()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case KindDict:
		parts := make([]string, 0, len(v.Dict.Fields))
		for k, fv := range v.Dict.Fields {
			parts = append(parts, k+": "+fv.repr())
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case KindFunction:
		return fmt.Sprintf("function(%s)", strings.Join(v.Clo.Node.Params, ", "))
	case KindNative:
		return fmt.Sprintf("native function %s", v.Nat.Name)
	default:
		return "?"
	}
}

// repr is ToString but quotes strings, used when rendering aggregate
// elements so `["a"]` is distinguishable from `[a]`.
func (v Value) repr() string {
	if v.Kind == KindString {
		return strconv.Quote(v.S)
	}
	return v.ToString()
}

// GetIndex implements indexing for Array, Dictionary (by string key) and
// String; every other kind has no indexing capability. The second return
// value is false when the receiver cannot be indexed with a value of idx's
// kind (a fatal evaluator error), as opposed to an out-of-range index or
// absent key, which yields (Null, true).
func GetIndex(v, idx Value) (Value, bool) {
	switch v.Kind {
	case KindDict:
		if idx.Kind != KindString {
			return Value{}, false
		}
		if fv, ok := v.Dict.Fields[idx.S]; ok {
			return fv, true
		}
		return Null(), true
	case KindArray:
		if idx.Kind == KindInt {
			return arrayAt(v.Arr, idx.I), true
		}
		if idx.Kind == KindArray {
			items := make([]Value, len(idx.Arr.Items))
			for i, e := range idx.Arr.Items {
				if e.Kind != KindInt {
					return Null(), true
				}
				items[i] = arrayAt(v.Arr, e.I)
			}
			return NewArray(items), true
		}
		return Value{}, false
	case KindString:
		runes := []rune(v.S)
		if idx.Kind == KindInt {
			return stringAt(runes, idx.I), true
		}
		if idx.Kind == KindArray {
			var b strings.Builder
			for _, e := range idx.Arr.Items {
				if e.Kind != KindInt {
					return Null(), true
				}
				c := stringAt(runes, e.I)
				if c.Kind == KindString {
					b.WriteString(c.S)
				}
			}
			return Str(b.String()), true
		}
		return Value{}, false
	default:
		return Value{}, false
	}
}

func arrayAt(a *Array, i int64) Value {
	if i < 0 || i >= int64(len(a.Items)) {
		return Null()
	}
	return a.Items[i]
}

func stringAt(runes []rune, i int64) Value {
	if i < 0 || i >= int64(len(runes)) {
		return Null()
	}
	return Str(string(runes[i]))
}

// SetIndex implements the single correct set-index semantics noted in the
// design review: overwrite at a non-negative integer index, growing the
// backing slice with Null padding when the index is past the end. Only
// Array supports set_index; everything else fails.
func SetIndex(v, idx, val Value) error {
	if v.Kind != KindArray {
		return fmt.Errorf("cannot set index on %s", v.TypeName())
	}
	if idx.Kind != KindInt || idx.I < 0 {
		return fmt.Errorf("array index must be a non-negative integer, got %s", idx.TypeName())
	}
	i := idx.I
	if i >= int64(len(v.Arr.Items)) {
		grown := make([]Value, i+1)
		copy(grown, v.Arr.Items)
		for j := int64(len(v.Arr.Items)); j < i; j++ {
			grown[j] = Null()
		}
		v.Arr.Items = grown
	}
	v.Arr.Items[i] = val
	return nil
}

// GetField looks up a value's own fields. Only Dictionary carries fields of
// its own; every other kind returns (Null, false) so the evaluator falls
// through to the kind's prototype.
func GetField(v Value, name string) (Value, bool) {
	if v.Kind != KindDict {
		return Value{}, false
	}
	fv, ok := v.Dict.Fields[name]
	return fv, ok
}

// SetField mutates a Dictionary's own fields; every other kind fails.
func SetField(v Value, name string, val Value) error {
	if v.Kind != KindDict {
		return fmt.Errorf("cannot set field %q on %s", name, v.TypeName())
	}
	v.Dict.Fields[name] = val
	return nil
}

// valueIterator yields successive elements without holding a reference
// into the container across steps: each step re-derives its element from
// a position index against the container's *current* length, so a
// mutation during iteration is observed (or silently skipped) rather than
// corrupting memory, matching the single-threaded resource model.
type valueIterator struct {
	kind Kind
	arr  *Array
	dict *Dictionary
	keys []string
	str  []rune
	pos  int
}

func (it *valueIterator) Next() (Value, bool) {
	switch it.kind {
	case KindArray:
		if it.pos >= len(it.arr.Items) {
			return Value{}, false
		}
		v := arrayAt(it.arr, int64(it.pos))
		it.pos++
		return v, true
	case KindDict:
		if it.pos >= len(it.keys) {
			return Value{}, false
		}
		k := it.keys[it.pos]
		it.pos++
		v, ok := it.dict.Fields[k]
		if !ok {
			return Value{}, false
		}
		return NewDict(map[string]Value{"key": Str(k), "value": v}), true
	case KindString:
		if it.pos >= len(it.str) {
			return Value{}, false
		}
		v := Str(string(it.str[it.pos]))
		it.pos++
		return v, true
	default:
		return Value{}, false
	}
}

// Iterator builds an iterator over v. Array and String iterate in order
// (an Array's current length is re-read at every step; a String's runes
// and a Dictionary's key list are captured when the iterator is built);
// Dictionary order is unspecified (Go map order), satisfying the "order
// unspecified" contract explicitly.
func Iterator(v Value) (*valueIterator, error) {
	switch v.Kind {
	case KindArray:
		return &valueIterator{kind: KindArray, arr: v.Arr}, nil
	case KindDict:
		keys := make([]string, 0, len(v.Dict.Fields))
		for k := range v.Dict.Fields {
			keys = append(keys, k)
		}
		return &valueIterator{kind: KindDict, dict: v.Dict, keys: keys}, nil
	case KindString:
		return &valueIterator{kind: KindString, str: []rune(v.S)}, nil
	default:
		return nil, fmt.Errorf("cannot iterate %s", v.TypeName())
	}
}

// CallValue dispatches to a Function (evaluated by the interpreter against
// its scope stack) or a Native (invoked directly); any other kind fails.
func CallValue(interp *Interpreter, span token.Span, fn, this Value, args []Value) (Value, error) {
	switch fn.Kind {
	case KindFunction:
		return interp.callClosure(fn.Clo, this, args)
	case KindNative:
		return fn.Nat.Fn(interp, this, args)
	default:
		return Value{}, fmt.Errorf("cannot call %s", fn.TypeName())
	}
}
