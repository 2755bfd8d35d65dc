// Package stdlib registers the standard-library bindings onto an
// interpreter's prototype dictionaries and globals. It is an external
// collaborator: the core parser and evaluator never import it, they only
// consume whatever it installs through interp.ProtoFunction/Global.
package stdlib

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"

	"github.com/wisplang/wisp/interp"
)

// Install registers length/contains/to_int/to_float/to_boolean/to_string,
// print/read_line/eval, and a handful of supporting methods onto interp's
// prototypes and globals.
func Install(ip *interp.Interpreter) {
	installLength(ip)
	installContains(ip)
	installConversions(ip)
	installCollections(ip)
	installIO(ip)
	installEval(ip)
}

func installLength(ip *interp.Interpreter) {
	lengthFn := func(_ *interp.Interpreter, this interp.Value, _ []interp.Value) (interp.Value, error) {
		switch this.Kind {
		case interp.KindString:
			return interp.Int(int64(len([]rune(this.S)))), nil
		case interp.KindArray:
			return interp.Int(int64(len(this.Arr.Items))), nil
		default:
			return interp.Value{}, fmt.Errorf("length: unsupported receiver %s", this.TypeName())
		}
	}
	ip.ProtoFunction(interp.KindString, "length", lengthFn)
	ip.ProtoFunction(interp.KindArray, "length", lengthFn)
}

func installContains(ip *interp.Interpreter) {
	ip.ProtoFunction(interp.KindString, "contains", func(_ *interp.Interpreter, this interp.Value, args []interp.Value) (interp.Value, error) {
		if len(args) != 1 || args[0].Kind != interp.KindString {
			return interp.Value{}, fmt.Errorf("contains: expected one string argument")
		}
		return interp.Bool(strings.Contains(this.S, args[0].S)), nil
	})
	ip.ProtoFunction(interp.KindArray, "contains", func(_ *interp.Interpreter, this interp.Value, args []interp.Value) (interp.Value, error) {
		if len(args) != 1 {
			return interp.Value{}, fmt.Errorf("contains: expected one argument")
		}
		for _, it := range this.Arr.Items {
			if it.Equal(args[0]) {
				return interp.Bool(true), nil
			}
		}
		return interp.Bool(false), nil
	})
}

// installConversions provides to_int and to_string across the kinds for
// which they make sense. to_string(Integer n) round-trips through
// strconv so parsing it back reproduces n exactly for every 64-bit value.
func installConversions(ip *interp.Interpreter) {
	toInt := func(_ *interp.Interpreter, this interp.Value, _ []interp.Value) (interp.Value, error) {
		switch this.Kind {
		case interp.KindInt:
			return this, nil
		case interp.KindFloat:
			return interp.Int(int64(this.F)), nil
		case interp.KindString:
			n, err := strconv.ParseInt(strings.TrimSpace(this.S), 10, 64)
			if err != nil {
				return interp.Value{}, fmt.Errorf("to_int: %q is not an integer", this.S)
			}
			return interp.Int(n), nil
		default:
			return interp.Value{}, fmt.Errorf("to_int: unsupported receiver %s", this.TypeName())
		}
	}
	ip.ProtoFunction(interp.KindInt, "to_int", toInt)
	ip.ProtoFunction(interp.KindFloat, "to_int", toInt)
	ip.ProtoFunction(interp.KindString, "to_int", toInt)

	// to_float and to_boolean mirror to_int's shape, except that a string
	// receiver that fails to parse yields Null rather than an error (to_int
	// returns an error there), matching a lenient parse-or-null convention
	// rather than a strict one.
	toFloat := func(_ *interp.Interpreter, this interp.Value, _ []interp.Value) (interp.Value, error) {
		switch this.Kind {
		case interp.KindFloat:
			return this, nil
		case interp.KindInt:
			return interp.Float(float64(this.I)), nil
		case interp.KindString:
			f, err := strconv.ParseFloat(strings.TrimSpace(this.S), 64)
			if err != nil {
				return interp.Null(), nil
			}
			return interp.Float(f), nil
		default:
			return interp.Value{}, fmt.Errorf("to_float: unsupported receiver %s", this.TypeName())
		}
	}
	ip.ProtoFunction(interp.KindInt, "to_float", toFloat)
	ip.ProtoFunction(interp.KindFloat, "to_float", toFloat)
	ip.ProtoFunction(interp.KindString, "to_float", toFloat)

	toBoolean := func(_ *interp.Interpreter, this interp.Value, _ []interp.Value) (interp.Value, error) {
		switch this.Kind {
		case interp.KindBool:
			return this, nil
		case interp.KindString:
			b, err := strconv.ParseBool(strings.TrimSpace(this.S))
			if err != nil {
				return interp.Null(), nil
			}
			return interp.Bool(b), nil
		default:
			return interp.Value{}, fmt.Errorf("to_boolean: unsupported receiver %s", this.TypeName())
		}
	}
	ip.ProtoFunction(interp.KindBool, "to_boolean", toBoolean)
	ip.ProtoFunction(interp.KindString, "to_boolean", toBoolean)

	toString := func(_ *interp.Interpreter, this interp.Value, _ []interp.Value) (interp.Value, error) {
		return interp.Str(this.ToString()), nil
	}
	for _, k := range []interp.Kind{
		interp.KindInt, interp.KindFloat, interp.KindBool, interp.KindString,
		interp.KindArray, interp.KindDict, interp.KindFunction, interp.KindNull,
	} {
		ip.ProtoFunction(k, "to_string", toString)
	}
}

// installCollections adds keys() on dictionaries, plus push/pop on arrays
// (natural companions of length/index that scripts otherwise have no way
// to grow or shrink without set_index's null-padding side effect).
func installCollections(ip *interp.Interpreter) {
	ip.ProtoFunction(interp.KindDict, "keys", func(_ *interp.Interpreter, this interp.Value, _ []interp.Value) (interp.Value, error) {
		items := make([]interp.Value, 0, len(this.Dict.Fields))
		for k := range this.Dict.Fields {
			items = append(items, interp.Str(k))
		}
		return interp.NewArray(items), nil
	})
	ip.ProtoFunction(interp.KindArray, "push", func(_ *interp.Interpreter, this interp.Value, args []interp.Value) (interp.Value, error) {
		this.Arr.Items = append(this.Arr.Items, args...)
		return this, nil
	})
	ip.ProtoFunction(interp.KindArray, "pop", func(_ *interp.Interpreter, this interp.Value, _ []interp.Value) (interp.Value, error) {
		n := len(this.Arr.Items)
		if n == 0 {
			return interp.Null(), nil
		}
		last := this.Arr.Items[n-1]
		this.Arr.Items = this.Arr.Items[:n-1]
		return last, nil
	})
}

// installIO wires print as a global native function writing to the
// interpreter's configured Stdout, and read_line reading one line from its
// configured Stdin.
func installIO(ip *interp.Interpreter) {
	ip.Global("print", interp.NativeValue("print", func(ip *interp.Interpreter, _ interp.Value, args []interp.Value) (interp.Value, error) {
		parts := make([]string, len(args))
		for i, a := range args {
			parts[i] = a.ToString()
		}
		fmt.Fprintln(ip.Stdout(), strings.Join(parts, " "))
		return interp.Null(), nil
	}))

	var scanner *bufio.Scanner
	ip.Global("read_line", interp.NativeValue("read_line", func(ip *interp.Interpreter, _ interp.Value, _ []interp.Value) (interp.Value, error) {
		if scanner == nil {
			scanner = bufio.NewScanner(ip.Stdin())
		}
		if !scanner.Scan() {
			return interp.Null(), nil
		}
		return interp.Str(scanner.Text()), nil
	}))
}

// installEval exposes the interpreter to itself: a script can build up a
// string and run it against the same scope stack the caller is in. This
// reuses the host's Eval entry point rather than spinning up a nested
// interpreter, so eval'd code sees and can mutate the caller's globals.
func installEval(ip *interp.Interpreter) {
	ip.Global("eval", interp.NativeValue("eval", func(ip *interp.Interpreter, _ interp.Value, args []interp.Value) (interp.Value, error) {
		if len(args) != 1 || args[0].Kind != interp.KindString {
			return interp.Value{}, fmt.Errorf("eval: expected one string argument")
		}
		return ip.Eval(args[0].S)
	}))
}
