// Package filter implements the boolean title-matching language used by
// profile include/exclude rules. Expressions are parsed once when a profile
// is saved and evaluated many times against candidate titles.
package filter

import (
	"fmt"
	"regexp"
	"strings"
)

// SyntaxError reports an invalid filter expression. It is returned at save
// time so that invalid rule text never reaches the evaluator.
type SyntaxError struct {
	Expr string
	Msg  string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("invalid filter expression %q: %s", e.Expr, e.Msg)
}

// Expression is a compiled set of filter rules. Each non-blank line of the
// source text is an independent sub-expression; a title matches the
// Expression when it matches any line.
type Expression struct {
	raw   string
	lines []node
}

// Parse compiles rule text into an Expression. Blank lines are ignored.
// A nil Expression (no rules at all) is returned for empty input.
func Parse(text string) (*Expression, error) {
	expr := &Expression{raw: normalize(text)}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		n, err := parseLine(line)
		if err != nil {
			return nil, err
		}
		expr.lines = append(expr.lines, n)
	}
	if len(expr.lines) == 0 {
		return nil, nil
	}
	return expr, nil
}

// MustParse is Parse for expressions known to be valid, such as test
// fixtures. It panics on error.
func MustParse(text string) *Expression {
	expr, err := Parse(text)
	if err != nil {
		panic(err)
	}
	return expr
}

// Match reports whether the title satisfies any line of the expression.
// Matching is case-insensitive. A nil Expression matches nothing; callers
// treat a nil include expression as "keep everything" themselves.
func (e *Expression) Match(title string) bool {
	if e == nil {
		return false
	}
	folded := strings.ToLower(title)
	for _, n := range e.lines {
		if n.eval(folded) {
			return true
		}
	}
	return false
}

// String returns the normalized source text of the expression.
func (e *Expression) String() string {
	if e == nil {
		return ""
	}
	return e.raw
}

func normalize(text string) string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

// Expression tree nodes. Titles are lowercased once before evaluation.

type node interface {
	eval(folded string) bool
}

type andNode struct{ left, right node }

func (n andNode) eval(folded string) bool { return n.left.eval(folded) && n.right.eval(folded) }

type orNode struct{ left, right node }

func (n orNode) eval(folded string) bool { return n.left.eval(folded) || n.right.eval(folded) }

type termNode struct {
	literal string         // lowercased, used when re is nil
	re      *regexp.Regexp // compiled glob, unanchored
}

func (n termNode) eval(folded string) bool {
	if n.re != nil {
		return n.re.MatchString(folded)
	}
	return strings.Contains(folded, n.literal)
}

func newTerm(line, raw string) (termNode, error) {
	if raw == "" {
		return termNode{}, &SyntaxError{Expr: line, Msg: "empty term"}
	}
	if !strings.ContainsAny(raw, "*?") {
		return termNode{literal: strings.ToLower(raw)}, nil
	}
	var b strings.Builder
	for _, r := range raw {
		switch r {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	re, err := regexp.Compile("(?is)" + b.String())
	if err != nil {
		return termNode{}, &SyntaxError{Expr: line, Msg: "bad wildcard pattern"}
	}
	return termNode{re: re}, nil
}

// Parser. Grammar per line, AND binding tighter than OR:
//
//	expr    := and_expr ( OR and_expr )*
//	and_expr:= primary ( AND primary )*
//	primary := "(" expr ")" | term | quoted_phrase
//
// A line containing no operators or parentheses is a single term, so plain
// phrases like release candidate work without quoting; a fully quoted line
// is the same term with the quotes stripped.

var hasOperators = regexp.MustCompile(`(?i)(\bAND\b|\bOR\b|[()])`)

func parseLine(line string) (node, error) {
	if !hasOperators.MatchString(line) {
		stripped, err := stripOuterQuotes(line)
		if err != nil {
			return nil, err
		}
		return newTerm(line, stripped)
	}

	tokens, err := tokenize(line)
	if err != nil {
		return nil, err
	}
	p := &parser{line: line, tokens: tokens}
	n, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.pos < len(p.tokens) {
		return nil, &SyntaxError{Expr: line, Msg: "unexpected token " + p.tokens[p.pos].text}
	}
	return n, nil
}

func stripOuterQuotes(line string) (string, error) {
	for _, q := range []string{`"`, `'`} {
		if !strings.HasPrefix(line, q) {
			continue
		}
		if len(line) >= 2 && strings.HasSuffix(line, q) && strings.Count(line, q) == 2 {
			return line[1 : len(line)-1], nil
		}
		return "", &SyntaxError{Expr: line, Msg: "unbalanced quote"}
	}
	return line, nil
}

type tokenKind int

const (
	tokTerm tokenKind = iota
	tokAnd
	tokOr
	tokLParen
	tokRParen
)

type token struct {
	kind tokenKind
	text string
}

func tokenize(line string) ([]token, error) {
	var tokens []token
	runes := []rune(line)
	i := 0
	for i < len(runes) {
		r := runes[i]
		switch {
		case r == ' ' || r == '\t':
			i++
		case r == '(':
			tokens = append(tokens, token{tokLParen, "("})
			i++
		case r == ')':
			tokens = append(tokens, token{tokRParen, ")"})
			i++
		case r == '"' || r == '\'':
			end := -1
			for j := i + 1; j < len(runes); j++ {
				if runes[j] == r {
					end = j
					break
				}
			}
			if end < 0 {
				return nil, &SyntaxError{Expr: line, Msg: "unbalanced quote"}
			}
			tokens = append(tokens, token{tokTerm, string(runes[i+1 : end])})
			i = end + 1
		default:
			// Quotes only open a phrase at a token boundary; an apostrophe
			// inside a word stays part of the term.
			start := i
			for i < len(runes) && !strings.ContainsRune(" \t()", runes[i]) {
				i++
			}
			word := string(runes[start:i])
			switch strings.ToUpper(word) {
			case "AND":
				tokens = append(tokens, token{tokAnd, word})
			case "OR":
				tokens = append(tokens, token{tokOr, word})
			default:
				tokens = append(tokens, token{tokTerm, word})
			}
		}
	}
	return tokens, nil
}

type parser struct {
	line   string
	tokens []token
	pos    int
}

func (p *parser) peek() (token, bool) {
	if p.pos >= len(p.tokens) {
		return token{}, false
	}
	return p.tokens[p.pos], true
}

func (p *parser) parseOr() (node, error) {
	n, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for {
		tok, ok := p.peek()
		if !ok || tok.kind != tokOr {
			return n, nil
		}
		p.pos++
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		n = orNode{left: n, right: right}
	}
}

func (p *parser) parseAnd() (node, error) {
	n, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		tok, ok := p.peek()
		if !ok || tok.kind != tokAnd {
			return n, nil
		}
		p.pos++
		right, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		n = andNode{left: n, right: right}
	}
}

func (p *parser) parsePrimary() (node, error) {
	tok, ok := p.peek()
	if !ok {
		return nil, &SyntaxError{Expr: p.line, Msg: "incomplete expression"}
	}
	switch tok.kind {
	case tokTerm:
		p.pos++
		return newTerm(p.line, tok.text)
	case tokLParen:
		p.pos++
		n, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		closing, ok := p.peek()
		if !ok || closing.kind != tokRParen {
			return nil, &SyntaxError{Expr: p.line, Msg: "unbalanced parentheses"}
		}
		p.pos++
		return n, nil
	default:
		return nil, &SyntaxError{Expr: p.line, Msg: "expected a term or parenthesized group"}
	}
}

// Apply runs the include/exclude passes over titles: an item is kept when it
// matches include (or include is nil) and does not match exclude. Exclude is
// evaluated strictly after include.
func Apply(title string, include, exclude *Expression) bool {
	if include != nil && !include.Match(title) {
		return false
	}
	if exclude != nil && exclude.Match(title) {
		return false
	}
	return true
}
