// Package lexer turns source text into a flat token stream. It is the
// "trivial regex/keyword tokenizer" external collaborator described by the
// language core: the parser and evaluator treat it as a fixed contract and
// never inspect how it is implemented.
package lexer

import (
	"fmt"
	"regexp"

	"github.com/wisplang/wisp/token"
)

// Error reports a byte offset the lexer could not turn into a token.
type Error struct {
	Offset int
	Byte   byte
}

func (e *Error) Error() string {
	return fmt.Sprintf("unexpected byte %q at offset %d", e.Byte, e.Offset)
}

// rule pairs a regular expression with the token Kind it produces. Rules are
// tried in order, so two-character operators are listed ahead of their
// one-character prefixes.
type rule struct {
	kind Kind
	re   *regexp.Regexp
}

// Kind is an alias kept local so rule tables below read without the
// package-qualified "token." prefix on every line.
type Kind = token.Kind

var rules = []rule{
	{token.Float, regexp.MustCompile(`^\d+\.\d+`)},
	{token.Int, regexp.MustCompile(`^\d+`)},
	{token.String, regexp.MustCompile(`^"(?:[^"\\]|\\.)*"`)},
	{token.Ident, regexp.MustCompile(`^[$A-Za-z_][$A-Za-z0-9_]*`)},

	{token.DotDot, regexp.MustCompile(`^\.\.`)},
	{token.EqEq, regexp.MustCompile(`^==`)},
	{token.NotEq, regexp.MustCompile(`^!=`)},
	{token.GtEq, regexp.MustCompile(`^>=`)},
	{token.LtEq, regexp.MustCompile(`^<=`)},

	{token.Plus, regexp.MustCompile(`^\+`)},
	{token.Minus, regexp.MustCompile(`^-`)},
	{token.Star, regexp.MustCompile(`^\*`)},
	{token.Slash, regexp.MustCompile(`^/`)},
	{token.Gt, regexp.MustCompile(`^>`)},
	{token.Lt, regexp.MustCompile(`^<`)},
	{token.Bang, regexp.MustCompile(`^!`)},
	{token.Assign, regexp.MustCompile(`^=`)},

	{token.LParen, regexp.MustCompile(`^\(`)},
	{token.RParen, regexp.MustCompile(`^\)`)},
	{token.LBrace, regexp.MustCompile(`^\{`)},
	{token.RBrace, regexp.MustCompile(`^\}`)},
	{token.LBracket, regexp.MustCompile(`^\[`)},
	{token.RBracket, regexp.MustCompile(`^\]`)},

	{token.Semi, regexp.MustCompile(`^;`)},
	{token.Colon, regexp.MustCompile(`^:`)},
	{token.Comma, regexp.MustCompile(`^,`)},
	{token.Dot, regexp.MustCompile(`^\.`)},
}

var (
	whitespace = regexp.MustCompile(`^[ \t\r\n]+`)
	lineCmt    = regexp.MustCompile(`^//[^\n]*`)
)

// Tokenize scans src into a sequence of positioned tokens terminated by an
// EOF token, or returns a lex Error for the first byte that cannot start any
// known token.
func Tokenize(src string) ([]token.Token, error) {
	var toks []token.Token
	pos := 0
	for pos < len(src) {
		rest := src[pos:]

		if loc := whitespace.FindStringIndex(rest); loc != nil && loc[0] == 0 {
			pos += loc[1]
			continue
		}
		if loc := lineCmt.FindStringIndex(rest); loc != nil && loc[0] == 0 {
			pos += loc[1]
			continue
		}

		matched := false
		for _, r := range rules {
			loc := r.re.FindStringIndex(rest)
			if loc == nil || loc[0] != 0 {
				continue
			}
			text := rest[:loc[1]]
			kind := r.kind
			if kind == token.Ident {
				if kw, ok := token.Keywords[text]; ok {
					kind = kw
				}
			}
			toks = append(toks, token.Token{
				Kind:    kind,
				Literal: text,
				Span:    token.Span{Start: pos, End: pos + loc[1]},
			})
			pos += loc[1]
			matched = true
			break
		}
		if !matched {
			return nil, &Error{Offset: pos, Byte: src[pos]}
		}
	}
	toks = append(toks, token.Token{Kind: token.EOF, Span: token.Span{Start: pos, End: pos}})
	return toks, nil
}
