package interp

import "fmt"

// prototypes holds the eight dictionary handles the interpreter owns, one
// per runtime value kind. They are plain Dictionary values, so they are
// observable and mutable from scripts via the $... sentinel globals.
type prototypes struct {
	integer  *Dictionary
	float    *Dictionary
	boolean  *Dictionary
	string   *Dictionary
	array    *Dictionary
	object   *Dictionary
	function *Dictionary
	null     *Dictionary
}

func newPrototypes() *prototypes {
	mk := func() *Dictionary { return &Dictionary{Fields: map[string]Value{}} }
	return &prototypes{
		integer:  mk(),
		float:    mk(),
		boolean:  mk(),
		string:   mk(),
		array:    mk(),
		object:   mk(),
		function: mk(),
		null:     mk(),
	}
}

// forKind returns the prototype dictionary consulted after a value's own
// fields come up empty. NativeFunction values share the function
// prototype, matching "one dictionary per primitive/aggregate kind" with
// native callables classified alongside user functions.
func (p *prototypes) forKind(k Kind) *Dictionary {
	switch k {
	case KindInt:
		return p.integer
	case KindFloat:
		return p.float
	case KindBool:
		return p.boolean
	case KindString:
		return p.string
	case KindArray:
		return p.array
	case KindDict:
		return p.object
	case KindFunction, KindNative:
		return p.function
	default:
		return p.null
	}
}

// installSentinels binds the $integer, $float, ... globals in the root
// frame to shared handles onto the prototype dictionaries, so a script can
// define methods on primitive kinds at runtime by mutating $array, etc.
func (interp *Interpreter) installSentinels() {
	root := interp.scopes.frames[0]
	root.vars["$integer"] = NewDict(interp.protos.integer.Fields)
	root.vars["$float"] = NewDict(interp.protos.float.Fields)
	root.vars["$boolean"] = NewDict(interp.protos.boolean.Fields)
	root.vars["$string"] = NewDict(interp.protos.string.Fields)
	root.vars["$array"] = NewDict(interp.protos.array.Fields)
	root.vars["$object"] = NewDict(interp.protos.object.Fields)
	root.vars["$function"] = NewDict(interp.protos.function.Fields)
	root.vars["$null"] = NewDict(interp.protos.null.Fields)
}

// ProtoFunction installs a native function on the prototype for kind k.
// The callee is typed: the receiver (`this`) is checked against k before
// the wrapped function ever runs, failing with "mismatched type" exactly
// as an untyped native would if it tried to unwrap the wrong variant by
// hand.
func (interp *Interpreter) ProtoFunction(k Kind, name string, fn NativeFn) {
	proto := interp.protos.forKind(k)
	proto.Fields[name] = NativeValue(name, func(ip *Interpreter, this Value, args []Value) (Value, error) {
		if this.Kind != k && !(k == KindFunction && this.Kind == KindNative) {
			return Value{}, fmt.Errorf("mismatched type: expected %s", k)
		}
		return fn(ip, this, args)
	})
}

// ProtoField installs a plain value on the prototype for kind k.
func (interp *Interpreter) ProtoField(k Kind, name string, v Value) {
	interp.protos.forKind(k).Fields[name] = v
}

// Global installs a top-level binding, as if the script itself had
// assigned it at the top level.
func (interp *Interpreter) Global(name string, v Value) {
	interp.scopes.frames[1].vars[name] = v
}
