// Package token defines the lexical tokens shared between the lexer and the
// parser: token kinds, literal text, and the byte spans used for diagnostics.
package token

import "fmt"

// Span is a half-open byte range [Start, End) into the source text. Spans
// are propagated from leaves to composite nodes; they carry no semantic
// meaning and are used only to render diagnostics.
type Span struct {
	Start int
	End   int
}

// Union returns the smallest span covering both s and o.
func (s Span) Union(o Span) Span {
	u := s
	if o.Start < u.Start {
		u.Start = o.Start
	}
	if o.End > u.End {
		u.End = o.End
	}
	return u
}

// Kind identifies the lexical category of a Token.
type Kind int

const (
	EOF Kind = iota
	Illegal

	Int
	Float
	String
	Bool
	Ident

	Plus
	Minus
	Star
	Slash

	EqEq
	NotEq
	Gt
	Lt
	GtEq
	LtEq
	Bang
	Assign

	LParen
	RParen
	LBrace
	RBrace
	LBracket
	RBracket

	Semi
	Colon
	Comma
	Dot
	DotDot

	KwFunction
	KwReturn
	KwBreak
	KwContinue
	KwIf
	KwElse
	KwFor
	KwIn
	KwWhile
)

var names = map[Kind]string{
	EOF:        "end of input",
	Illegal:    "illegal token",
	Int:        "integer literal",
	Float:      "float literal",
	String:     "string literal",
	Bool:       "boolean literal",
	Ident:      "identifier",
	Plus:       "'+'",
	Minus:      "'-'",
	Star:       "'*'",
	Slash:      "'/'",
	EqEq:       "'=='",
	NotEq:      "'!='",
	Gt:         "'>'",
	Lt:         "'<'",
	GtEq:       "'>='",
	LtEq:       "'<='",
	Bang:       "'!'",
	Assign:     "'='",
	LParen:     "'('",
	RParen:     "')'",
	LBrace:     "'{'",
	RBrace:     "'}'",
	LBracket:   "'['",
	RBracket:   "']'",
	Semi:       "';'",
	Colon:      "':'",
	Comma:      "','",
	Dot:        "'.'",
	DotDot:     "'..'",
	KwFunction: "'function'",
	KwReturn:   "'return'",
	KwBreak:    "'break'",
	KwContinue: "'continue'",
	KwIf:       "'if'",
	KwElse:     "'else'",
	KwFor:      "'for'",
	KwIn:       "'in'",
	KwWhile:    "'while'",
}

// Name returns the human-readable name used in diagnostics, e.g. "'+'" or
// "identifier".
func (k Kind) Name() string {
	if n, ok := names[k]; ok {
		return n
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

func (k Kind) String() string { return k.Name() }

// Keywords maps reserved identifier text to its keyword Kind.
var Keywords = map[string]Kind{
	"function": KwFunction,
	"return":   KwReturn,
	"break":    KwBreak,
	"continue": KwContinue,
	"if":       KwIf,
	"else":     KwElse,
	"for":      KwFor,
	"in":       KwIn,
	"while":    KwWhile,
	"true":     Bool,
	"false":    Bool,
}

// Token is a single lexeme: its kind, the exact source text it was scanned
// from, and the span it occupies.
type Token struct {
	Kind    Kind
	Literal string
	Span    Span
}

func (t Token) String() string {
	if t.Literal != "" {
		return fmt.Sprintf("%s(%q)", t.Kind, t.Literal)
	}
	return t.Kind.String()
}
