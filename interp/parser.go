package interp

import (
	"fmt"

	"github.com/wisplang/wisp/token"
)

// Severity distinguishes a parse attempt that simply didn't match (the
// caller may try another alternative) from one that committed past a
// distinguishing token and then failed (no backtracking is possible).
type Severity int

const (
	Recoverable Severity = iota
	Fatal
)

func (s Severity) String() string {
	if s == Fatal {
		return "fatal"
	}
	return "recoverable"
}

// errKind is either Missing(name) or Unexpected{got, expected}.
type errKind interface{ errString() string }

type missingErr struct{ name string }

func (e missingErr) errString() string { return fmt.Sprintf("missing %s", e.name) }

type unexpectedErr struct{ got, expected string }

func (e unexpectedErr) errString() string {
	return fmt.Sprintf("unexpected %s, expected %s", e.got, e.expected)
}

// ParseError is a located, severity-tagged parse failure.
type ParseError struct {
	Sev  Severity
	Span token.Span
	Kind errKind
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %s", e.Sev, e.Kind.errString())
}

// intoFatal promotes a Recoverable error to Fatal; a branch that already
// committed past its distinguishing token calls this before returning.
func (e *ParseError) intoFatal() *ParseError {
	cp := *e
	cp.Sev = Fatal
	return &cp
}

// intoRecoverable demotes an error back to Recoverable, used when an
// otherwise-fatal sub-parse is attempted speculatively.
func (e *ParseError) intoRecoverable() *ParseError {
	cp := *e
	cp.Sev = Recoverable
	return &cp
}

// parser holds the immutable token slice produced by the lexer. All parse
// functions are pure with respect to it: they take a position and return
// either a value plus the new position, or a *ParseError. Recoverable
// failures never advance the caller's position because the caller simply
// discards the returned position on failure.
type parser struct {
	toks []token.Token
}

func newParser(toks []token.Token) *parser { return &parser{toks: toks} }

func (p *parser) peek(pos int) token.Token {
	if pos < 0 || pos >= len(p.toks) {
		return p.toks[len(p.toks)-1] // EOF sentinel is always last
	}
	return p.toks[pos]
}

// pop returns the token at pos and the next position. It never fails: at
// end of input it keeps returning the EOF token without advancing further.
func (p *parser) pop(pos int) (token.Token, int) {
	t := p.peek(pos)
	if pos >= len(p.toks)-1 {
		return t, len(p.toks) - 1
	}
	return t, pos + 1
}

// popExpect consumes the token at pos if it has kind k, else produces an
// Unexpected (or Missing, at EOF) Recoverable error.
func (p *parser) popExpect(pos int, k token.Kind) (token.Token, int, *ParseError) {
	t := p.peek(pos)
	if t.Kind == token.EOF {
		return t, pos, &ParseError{Sev: Recoverable, Span: t.Span, Kind: missingErr{k.Name()}}
	}
	if t.Kind != k {
		return t, pos, &ParseError{Sev: Recoverable, Span: t.Span, Kind: unexpectedErr{got: t.Kind.Name(), expected: k.Name()}}
	}
	nt, np := p.pop(pos)
	return nt, np, nil
}

// Parse parses a lexed token slice into a top-level CodeBlock (no
// surrounding braces: the whole file is a sequence of statements).
func Parse(toks []token.Token) (CodeBlock, *ParseError) {
	p := newParser(toks)
	block, pos, err := p.parseStatements(0, token.EOF)
	if err != nil {
		return nil, err
	}
	if p.peek(pos).Kind != token.EOF {
		t := p.peek(pos)
		return nil, &ParseError{Sev: Fatal, Span: t.Span, Kind: unexpectedErr{got: t.Kind.Name(), expected: "end of input"}}
	}
	return block, nil
}

// parseStatements parses a sequence of statements until the next token is
// `end` (RBrace for a nested block, EOF for the top level program). Each
// statement is Terminated if followed by ';'; only the final statement of
// the block may instead be Unterminated, ending the loop immediately since
// no further statements can follow it.
func (p *parser) parseStatements(pos int, end token.Kind) (CodeBlock, int, *ParseError) {
	var block CodeBlock
	for {
		if p.peek(pos).Kind == end {
			return block, pos, nil
		}
		expr, next, err := p.parseExpr(pos)
		if err != nil {
			return nil, pos, err.intoFatal()
		}
		pos = next
		if p.peek(pos).Kind == token.Semi {
			_, pos = p.pop(pos)
			block = append(block, Statement{Expr: expr, Terminated: true})
			continue
		}
		block = append(block, Statement{Expr: expr, Terminated: false})
		return block, pos, nil
	}
}

// parseBlock parses a delimited `{ ... }` body.
func (p *parser) parseBlock(pos int) (CodeBlock, int, *ParseError) {
	_, pos, err := p.popExpect(pos, token.LBrace)
	if err != nil {
		return nil, pos, err
	}
	block, pos, err := p.parseStatements(pos, token.RBrace)
	if err != nil {
		return nil, pos, err
	}
	_, pos, err = p.popExpect(pos, token.RBrace)
	if err != nil {
		return nil, pos, err.intoFatal()
	}
	return block, pos, nil
}

// parseExpr parses a full expression, including a trailing right-associative
// assignment if one follows the first production.
func (p *parser) parseExpr(pos int) (Expr, int, *ParseError) {
	return p.parseContinuation(pos)
}

// parseContinuation parses an atom then greedily appends postfix/infix
// constructs until it reaches a terminator token.
func (p *parser) parseContinuation(pos int) (Expr, int, *ParseError) {
	lhs, pos, err := p.parseAtom(pos)
	if err != nil {
		return nil, pos, err
	}

	for {
		t := p.peek(pos)
		switch {
		case t.Kind == token.Assign:
			_, pos = p.pop(pos)
			if !isValidAssignReceiver(lhs) {
				return nil, pos, &ParseError{Sev: Fatal, Span: lhs.Span(), Kind: unexpectedErr{got: "expression", expected: "assignment target (identifier, field, or index)"}}
			}
			rhs, next, err := p.parseExpr(pos)
			if err != nil {
				return nil, pos, err.intoFatal()
			}
			pos = next
			lhs = &Assignment{Receiver: lhs, Value: rhs, Sp: lhs.Span().Union(rhs.Span())}

		case t.Kind == token.Dot:
			_, pos = p.pop(pos)
			name, next, err := p.popExpect(pos, token.Ident)
			if err != nil {
				return nil, pos, err.intoFatal()
			}
			pos = next
			lhs = &FieldAccess{Value: lhs, Field: name.Literal, Sp: lhs.Span().Union(name.Span)}

		case t.Kind == token.LBracket:
			_, pos = p.pop(pos)
			idx, next, err := p.parseExpr(pos)
			if err != nil {
				return nil, pos, err.intoFatal()
			}
			pos = next
			closeT, next, err := p.popExpect(pos, token.RBracket)
			if err != nil {
				return nil, pos, err.intoFatal()
			}
			pos = next
			lhs = &Index{Value: lhs, Idx: idx, Sp: lhs.Span().Union(closeT.Span)}

		case t.Kind == token.LParen:
			_, pos = p.pop(pos)
			args, next, err := p.parseExprList(pos, token.RParen)
			if err != nil {
				return nil, pos, err.intoFatal()
			}
			pos = next
			closeT, next, err := p.popExpect(pos, token.RParen)
			if err != nil {
				return nil, pos, err.intoFatal()
			}
			pos = next
			lhs = &Call{Callee: lhs, Args: args, Sp: lhs.Span().Union(closeT.Span)}

		case t.Kind == token.DotDot:
			_, pos = p.pop(pos)
			to, next, err := p.parseAtom(pos)
			if err != nil {
				return nil, pos, err.intoFatal()
			}
			pos = next
			lhs = &Range{From: lhs, To: to, Sp: lhs.Span().Union(to.Span())}

		case isBinaryOp(t.Kind):
			_, pos = p.pop(pos)
			rhs, next, err := p.parseContinuation(pos)
			if err != nil {
				return nil, pos, err.intoFatal()
			}
			pos = next
			lhs = rotate(lhs, t.Kind, rhs)

		default:
			return lhs, pos, nil
		}
	}
}

func isValidAssignReceiver(e Expr) bool {
	switch e.(type) {
	case *Ident, *FieldAccess, *Index:
		return true
	default:
		return false
	}
}

// rotate builds `lhs op rhs` while keeping the precedence bands correct.
// Because rhs was itself produced by parseContinuation it is either a leaf
// or a BinaryOp whose own subtree is already canonicalised. If that
// BinaryOp's operator does not bind strictly tighter than op, it is
// rotated, and the rotation is repeated down rhs's left spine:
//
//	lhs op (a op2 b)  ->  (lhs op a) op2 b     when prec(op2) <= prec(op)
//
// where `lhs op a` is itself built by rotate. Using <= (rather than only <)
// makes same-precedence chains left-associative, e.g. `a - b - c - d`
// parses as `((a - b) - c) - d`.
func rotate(lhs Expr, op token.Kind, rhs Expr) Expr {
	if sub, ok := rhs.(*BinaryOp); ok && binaryPrecedence(sub.Op) <= binaryPrecedence(op) {
		newLHS := rotate(lhs, op, sub.LHS)
		return &BinaryOp{LHS: newLHS, Op: sub.Op, RHS: sub.RHS, Sp: newLHS.Span().Union(sub.RHS.Span())}
	}
	return &BinaryOp{LHS: lhs, Op: op, RHS: rhs, Sp: lhs.Span().Union(rhs.Span())}
}

// parseExprList parses a comma-separated list of expressions, trailing
// comma permitted, until `end` is seen.
func (p *parser) parseExprList(pos int, end token.Kind) ([]Expr, int, *ParseError) {
	var items []Expr
	if p.peek(pos).Kind == end {
		return items, pos, nil
	}
	for {
		item, next, err := p.parseExpr(pos)
		if err != nil {
			return nil, pos, err
		}
		pos = next
		items = append(items, item)
		if p.peek(pos).Kind != token.Comma {
			return items, pos, nil
		}
		_, pos = p.pop(pos)
		if p.peek(pos).Kind == end {
			return items, pos, nil
		}
	}
}

// parseAtom is the first-success of the atomic expression forms. Each
// either fails Recoverably on its first token (so the caller tries the next
// alternative) or commits Fatally after consuming a distinguishing token.
func (p *parser) parseAtom(pos int) (Expr, int, *ParseError) {
	t := p.peek(pos)
	switch t.Kind {
	case token.KwReturn:
		return p.parseReturn(pos)
	case token.KwBreak:
		return p.parseBreak(pos)
	case token.KwContinue:
		_, next := p.pop(pos)
		return &Continue{Sp: t.Span}, next, nil
	case token.KwFunction:
		return p.parseFunction(pos)
	case token.KwIf:
		return p.parseIf(pos)
	case token.KwFor:
		return p.parseForLoop(pos)
	case token.KwWhile:
		return p.parseWhileLoop(pos)
	case token.Bang, token.Minus:
		return p.parseUnary(pos)
	case token.LParen:
		return p.parseParentheses(pos)
	case token.LBracket:
		return p.parseList(pos)
	case token.LBrace:
		return p.parseObject(pos)
	case token.Ident:
		_, next := p.pop(pos)
		return &Ident{Name: t.Literal, Sp: t.Span}, next, nil
	case token.Int:
		return p.parseIntLit(pos)
	case token.Float:
		_, next := p.pop(pos)
		return p.parseFloatLit(t, next)
	case token.String:
		_, next := p.pop(pos)
		return &StringLit{Value: unquote(t.Literal), Sp: t.Span}, next, nil
	case token.Bool:
		_, next := p.pop(pos)
		return &BoolLit{Value: t.Literal == "true", Sp: t.Span}, next, nil
	default:
		return nil, pos, &ParseError{Sev: Recoverable, Span: t.Span, Kind: unexpectedErr{got: t.Kind.Name(), expected: "expression"}}
	}
}

func (p *parser) parseIntLit(pos int) (Expr, int, *ParseError) {
	t, next := p.pop(pos)
	v, ok := parseInt(t.Literal)
	if !ok {
		return nil, pos, &ParseError{Sev: Fatal, Span: t.Span, Kind: unexpectedErr{got: "malformed integer literal", expected: "integer literal"}}
	}
	return &IntLit{Value: v, Sp: t.Span}, next, nil
}

func (p *parser) parseFloatLit(t token.Token, next int) (Expr, int, *ParseError) {
	v, ok := parseFloat(t.Literal)
	if !ok {
		return nil, next, &ParseError{Sev: Fatal, Span: t.Span, Kind: unexpectedErr{got: "malformed float literal", expected: "float literal"}}
	}
	return &FloatLit{Value: v, Sp: t.Span}, next, nil
}

func (p *parser) parseUnary(pos int) (Expr, int, *ParseError) {
	opT, pos := p.pop(pos)
	val, next, err := p.parseAtom(pos)
	if err != nil {
		return nil, pos, err.intoFatal()
	}
	return &UnaryOp{Op: opT.Kind, Value: val, Sp: opT.Span.Union(val.Span())}, next, nil
}

func (p *parser) parseParentheses(pos int) (Expr, int, *ParseError) {
	openT, pos := p.pop(pos)
	inner, next, err := p.parseExpr(pos)
	if err != nil {
		return nil, pos, err.intoFatal()
	}
	pos = next
	closeT, pos, err := p.popExpect(pos, token.RParen)
	if err != nil {
		return nil, pos, err.intoFatal()
	}
	return &Parentheses{Inner: inner, Sp: openT.Span.Union(closeT.Span)}, pos, nil
}

func (p *parser) parseList(pos int) (Expr, int, *ParseError) {
	openT, pos := p.pop(pos)
	items, pos, err := p.parseExprList(pos, token.RBracket)
	if err != nil {
		return nil, pos, err.intoFatal()
	}
	closeT, pos, err := p.popExpect(pos, token.RBracket)
	if err != nil {
		return nil, pos, err.intoFatal()
	}
	return &List{Items: items, Sp: openT.Span.Union(closeT.Span)}, pos, nil
}

// parseObject parses `{ k1: v1, k2: v2 }`. Keys are bare identifiers.
// Duplicate-key detection is deferred to the evaluator (see evalObject).
func (p *parser) parseObject(pos int) (Expr, int, *ParseError) {
	openT, pos := p.pop(pos)
	var entries []ObjectEntry
	if p.peek(pos).Kind != token.RBrace {
		for {
			key, next, err := p.popExpect(pos, token.Ident)
			if err != nil {
				return nil, pos, err.intoFatal()
			}
			pos = next
			_, pos, err = p.popExpect(pos, token.Colon)
			if err != nil {
				return nil, pos, err.intoFatal()
			}
			val, next, err := p.parseExpr(pos)
			if err != nil {
				return nil, pos, err.intoFatal()
			}
			pos = next
			entries = append(entries, ObjectEntry{Key: key.Literal, Value: val})
			if p.peek(pos).Kind != token.Comma {
				break
			}
			_, pos = p.pop(pos)
			if p.peek(pos).Kind == token.RBrace {
				break
			}
		}
	}
	closeT, pos, err := p.popExpect(pos, token.RBrace)
	if err != nil {
		return nil, pos, err.intoFatal()
	}
	return &Object{Entries: entries, Sp: openT.Span.Union(closeT.Span)}, pos, nil
}

func (p *parser) parseFunction(pos int) (Expr, int, *ParseError) {
	kwT, pos := p.pop(pos)
	_, pos, err := p.popExpect(pos, token.LParen)
	if err != nil {
		return nil, pos, err.intoFatal()
	}
	var params []string
	if p.peek(pos).Kind != token.RParen {
		for {
			name, next, err := p.popExpect(pos, token.Ident)
			if err != nil {
				return nil, pos, err.intoFatal()
			}
			pos = next
			params = append(params, name.Literal)
			if p.peek(pos).Kind != token.Comma {
				break
			}
			_, pos = p.pop(pos)
		}
	}
	_, pos, err = p.popExpect(pos, token.RParen)
	if err != nil {
		return nil, pos, err.intoFatal()
	}
	body, pos, err := p.parseBlock(pos)
	if err != nil {
		return nil, pos, err
	}
	return &Function{Params: params, Body: body, Sp: kwT.Span.Union(p.toks[pos-1].Span)}, pos, nil
}

func (p *parser) parseCondition(pos int) (Expr, int, *ParseError) {
	_, pos, err := p.popExpect(pos, token.LParen)
	if err != nil {
		return nil, pos, err.intoFatal()
	}
	cond, pos, err := p.parseExpr(pos)
	if err != nil {
		return nil, pos, err.intoFatal()
	}
	_, pos, err = p.popExpect(pos, token.RParen)
	if err != nil {
		return nil, pos, err.intoFatal()
	}
	return cond, pos, nil
}

func (p *parser) parseIf(pos int) (Expr, int, *ParseError) {
	kwT, pos := p.pop(pos)
	cond, pos, err := p.parseCondition(pos)
	if err != nil {
		return nil, pos, err
	}
	body, pos, err := p.parseBlock(pos)
	if err != nil {
		return nil, pos, err
	}
	closeSp := p.toks[pos-1].Span
	n := &If{IfBranch: Branch{Cond: cond, Body: body}, Sp: kwT.Span.Union(closeSp)}

	for p.peek(pos).Kind == token.KwElse && p.peek(pos+1).Kind == token.KwIf {
		_, pos = p.pop(pos) // else
		_, pos = p.pop(pos) // if
		c, next, err := p.parseCondition(pos)
		if err != nil {
			return nil, pos, err
		}
		pos = next
		b, next, err := p.parseBlock(pos)
		if err != nil {
			return nil, pos, err
		}
		pos = next
		n.ElseIfBranches = append(n.ElseIfBranches, Branch{Cond: c, Body: b})
		n.Sp = n.Sp.Union(p.toks[pos-1].Span)
	}

	if p.peek(pos).Kind == token.KwElse {
		_, pos = p.pop(pos)
		b, next, err := p.parseBlock(pos)
		if err != nil {
			return nil, pos, err
		}
		pos = next
		n.ElseBranch = b
		n.HasElse = true
		n.Sp = n.Sp.Union(p.toks[pos-1].Span)
	}
	return n, pos, nil
}

func (p *parser) parseForLoop(pos int) (Expr, int, *ParseError) {
	kwT, pos := p.pop(pos)
	_, pos, err := p.popExpect(pos, token.LParen)
	if err != nil {
		return nil, pos, err.intoFatal()
	}
	binding, pos, err := p.popExpect(pos, token.Ident)
	if err != nil {
		return nil, pos, err.intoFatal()
	}
	_, pos, err = p.popExpect(pos, token.KwIn)
	if err != nil {
		return nil, pos, err.intoFatal()
	}
	iter, pos, err := p.parseExpr(pos)
	if err != nil {
		return nil, pos, err.intoFatal()
	}
	_, pos, err = p.popExpect(pos, token.RParen)
	if err != nil {
		return nil, pos, err.intoFatal()
	}
	body, pos, err := p.parseBlock(pos)
	if err != nil {
		return nil, pos, err
	}
	return &ForLoop{Binding: binding.Literal, Iterator: iter, Body: body, Sp: kwT.Span.Union(p.toks[pos-1].Span)}, pos, nil
}

func (p *parser) parseWhileLoop(pos int) (Expr, int, *ParseError) {
	kwT, pos := p.pop(pos)
	cond, pos, err := p.parseCondition(pos)
	if err != nil {
		return nil, pos, err
	}
	body, pos, err := p.parseBlock(pos)
	if err != nil {
		return nil, pos, err
	}
	return &WhileLoop{Cond: cond, Body: body, Sp: kwT.Span.Union(p.toks[pos-1].Span)}, pos, nil
}

// parseReturn, parseBreak parse an optional trailing expression: absent iff
// the next token is ';', '}', or end-of-input.
func (p *parser) parseReturn(pos int) (Expr, int, *ParseError) {
	kwT, pos := p.pop(pos)
	if endsPayload(p.peek(pos).Kind) {
		return &Return{Sp: kwT.Span}, pos, nil
	}
	val, pos, err := p.parseExpr(pos)
	if err != nil {
		return nil, pos, err.intoFatal()
	}
	return &Return{Value: val, Sp: kwT.Span.Union(val.Span())}, pos, nil
}

func (p *parser) parseBreak(pos int) (Expr, int, *ParseError) {
	kwT, pos := p.pop(pos)
	if endsPayload(p.peek(pos).Kind) {
		return &Break{Sp: kwT.Span}, pos, nil
	}
	val, pos, err := p.parseExpr(pos)
	if err != nil {
		return nil, pos, err.intoFatal()
	}
	return &Break{Value: val, Sp: kwT.Span.Union(val.Span())}, pos, nil
}

func endsPayload(k token.Kind) bool {
	return k == token.Semi || k == token.RBrace || k == token.EOF
}
