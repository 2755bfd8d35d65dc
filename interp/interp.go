package interp

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/wisplang/wisp/diag"
	"github.com/wisplang/wisp/lexer"
	"github.com/wisplang/wisp/token"
)

// DefaultSourceName names an Eval call's source when no file path is
// available, e.g. from the REPL.
const DefaultSourceName = "<repl>"

// Options configures a new Interpreter. The zero value is usable: missing
// streams default to the process's own stdio.
type Options struct {
	// Standard input, output and error streams. Default to os.Stdin,
	// os.Stdout and os.Stderr respectively.
	Stdin          io.Reader
	Stdout, Stderr io.Writer

	// Logger receives a Debug-level entry whenever an Eval call fails to
	// lex, parse or evaluate, carrying the source name (plus the lex error
	// or the parse severity). Defaults to a logrus.Logger writing to Stderr
	// at warn level, which does not print those Debug entries.
	Logger *logrus.Logger
}

// Interpreter holds everything a running script needs: its variable scope
// stack, its prototype registry, and the standard streams native functions
// read and write through. It is not safe for concurrent use by multiple
// goroutines evaluating different sources against the same scope stack.
type Interpreter struct {
	name string // name of the source being evaluated, used in log entries

	scopes *scopeStack
	protos *prototypes

	stdin          io.Reader
	stdout, stderr io.Writer
	log            *logrus.Logger
}

// New returns a ready-to-use interpreter with its prototype dictionaries
// installed as $integer, $float, ... sentinels.
func New(options Options) *Interpreter {
	interp := &Interpreter{
		name:   DefaultSourceName,
		scopes: newScopeStack(),
		protos: newPrototypes(),
	}

	if interp.stdin = options.Stdin; interp.stdin == nil {
		interp.stdin = os.Stdin
	}
	if interp.stdout = options.Stdout; interp.stdout == nil {
		interp.stdout = os.Stdout
	}
	if interp.stderr = options.Stderr; interp.stderr == nil {
		interp.stderr = os.Stderr
	}
	if interp.log = options.Logger; interp.log == nil {
		l := logrus.New()
		l.SetOutput(interp.stderr)
		l.SetLevel(logrus.WarnLevel)
		interp.log = l
	}

	interp.installSentinels()
	return interp
}

// Eval lexes, parses, and evaluates src against the interpreter's current
// scope stack, returning the value of its last unterminated statement (or
// Null if the source is empty or every statement is terminated).
func (interp *Interpreter) Eval(src string) (Value, error) {
	toks, lexErr := lexer.Tokenize(src)
	if lexErr != nil {
		le, _ := lexErr.(*lexer.Error)
		interp.log.WithFields(logrus.Fields{
			"source": interp.name,
			"error":  lexErr,
		}).Debug("lex failed")
		if le != nil {
			return Value{}, fmt.Errorf("%s", diagReport(src, le.Offset, le.Offset+1, lexErr.Error()))
		}
		return Value{}, lexErr
	}

	block, parseErr := Parse(toks)
	if parseErr != nil {
		interp.log.WithFields(logrus.Fields{
			"source":   interp.name,
			"severity": parseErr.Sev.String(),
		}).Debug("parse failed")
		return Value{}, fmt.Errorf("%s", reportParseError(src, parseErr))
	}

	sig, evalErr := interp.execStatements(block)
	if evalErr != nil {
		interp.log.WithFields(logrus.Fields{
			"source": interp.name,
		}).Debug("eval failed")
		if ee, ok := evalErr.(*EvalError); ok {
			return Value{}, fmt.Errorf("%s", reportEvalError(src, ee))
		}
		return Value{}, evalErr
	}

	switch sig.kind {
	case sigValue:
		return sig.val, nil
	default:
		// A bare return/break/continue at top level has nothing to
		// absorb it; surface its carried value rather than losing it.
		return sig.val, nil
	}
}

// Stdout returns the stream native functions like print write to.
func (interp *Interpreter) Stdout() io.Writer { return interp.stdout }

// Stderr returns the stream the REPL and diagnostics write to.
func (interp *Interpreter) Stderr() io.Writer { return interp.stderr }

// Stdin returns the stream native functions like read_line read from.
func (interp *Interpreter) Stdin() io.Reader { return interp.stdin }

// EvalFile evaluates the named file's contents, attributing its log
// entries to its path instead of the default source name. The returned
// error text is the same as Eval's and does not include the path.
func (interp *Interpreter) EvalFile(path string, src string) (Value, error) {
	interp.name = path
	defer func() { interp.name = DefaultSourceName }()
	return interp.Eval(src)
}

func reportParseError(src string, e *ParseError) string {
	return diagReport(src, e.Span.Start, e.Span.End, e.Error())
}

func reportEvalError(src string, e *EvalError) string {
	return diagReport(src, e.Span.Start, e.Span.End, e.Msg)
}

// REPL runs an interactive read-eval-print loop over interp's configured
// stdin/stdout, printing each top-level result and recovering from errors
// without losing the session: a failed line is discarded and the prompt
// returns, rather than aborting the whole loop.
func (interp *Interpreter) REPL() error {
	in, out, errs := interp.stdin, interp.stdout, interp.stderr
	s := bufio.NewScanner(in)
	prompt := replPrompt(in, out)

	prompt(Value{}, false)
	for s.Scan() {
		line := s.Text()
		v, err := interp.Eval(line)
		if err != nil {
			fmt.Fprintln(errs, err)
			prompt(Value{}, false)
			continue
		}
		prompt(v, true)
	}
	if err := s.Err(); err != nil {
		fmt.Fprintln(errs, err)
		return err
	}
	return nil
}

func replPrompt(in io.Reader, out io.Writer) func(v Value, show bool) {
	forcePrompt, _ := strconv.ParseBool(os.Getenv("WISP_PROMPT"))
	isTTY := forcePrompt
	if s, ok := in.(interface{ Stat() (os.FileInfo, error) }); ok {
		if stat, err := s.Stat(); err == nil && stat.Mode()&os.ModeCharDevice != 0 {
			isTTY = true
		}
	}
	if !isTTY {
		return func(Value, bool) {}
	}
	return func(v Value, show bool) {
		if show {
			fmt.Fprintln(out, ":", v.ToString())
		}
		fmt.Fprint(out, "> ")
	}
}

// diagReport renders a one-line-plus-caret diagnostic at the given byte
// span.
func diagReport(src string, start, end int, msg string) string {
	return diag.ReportSpan(src, token.Span{Start: start, End: end}, msg)
}
