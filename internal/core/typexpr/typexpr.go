// Package typexpr parses and prints type expressions of the form
// dotted.name[arg, arg, ...], where arguments are type expressions,
// bare bracketed lists (for Callable parameters), ellipses or literals.
package typexpr

import (
	"fmt"
	"strings"
	"unicode"
)

// Expr is one node of a parsed type expression.
type Expr struct {
	// Head is a dotted identifier, "..." or a literal; empty for a bare list.
	Head string
	Args []*Expr
	// Subscripted is true when the head carried brackets, even empty ones.
	Subscripted bool
	// List marks a bare bracketed list such as the parameters of Callable.
	List bool
}

// UnionHead is the head used when rewriting A | B unions.
const UnionHead = "typing.Union"

// Parse parses s. PEP 604 unions are rewritten into UnionHead[...].
func Parse(s string) (*Expr, error) {
	p := &parser{toks: tokenize(strings.TrimSpace(s))}
	if len(p.toks) == 0 {
		return nil, fmt.Errorf("empty type expression")
	}
	for _, t := range p.toks {
		if t.kind == tokInvalid {
			return nil, fmt.Errorf("invalid character %q in type expression %q", t.text, s)
		}
	}
	e, err := p.union()
	if err != nil {
		return nil, fmt.Errorf("parse %q: %w", s, err)
	}
	if !p.done() {
		return nil, fmt.Errorf("parse %q: unexpected %q", s, p.peek().text)
	}
	return e, nil
}

// HeadOf returns the head of s without parsing arguments.
func HeadOf(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '['); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return s
}

func (e *Expr) String() string {
	var b strings.Builder
	e.write(&b)
	return b.String()
}

func (e *Expr) write(b *strings.Builder) {
	if e.List {
		b.WriteByte('[')
		writeArgs(b, e.Args)
		b.WriteByte(']')
		return
	}
	b.WriteString(e.Head)
	if e.Subscripted {
		b.WriteByte('[')
		writeArgs(b, e.Args)
		b.WriteByte(']')
	}
}

func writeArgs(b *strings.Builder, args []*Expr) {
	for i, a := range args {
		if i > 0 {
			b.WriteString(", ")
		}
		a.write(b)
	}
}

// IsIdentifier reports whether the head is a dotted identifier.
func (e *Expr) IsIdentifier() bool {
	return !e.List && isDotted(e.Head)
}

// IsLiteral reports whether the head is a quoted string or a number.
func (e *Expr) IsLiteral() bool {
	if e.List || e.Head == "" {
		return false
	}
	c := e.Head[0]
	return c == '"' || c == '\'' || c == '-' || (c >= '0' && c <= '9')
}

func isDotted(s string) bool {
	if s == "" {
		return false
	}
	for _, part := range strings.Split(s, ".") {
		if part == "" {
			return false
		}
		for i, r := range part {
			if r == '_' || unicode.IsLetter(r) || (i > 0 && unicode.IsDigit(r)) {
				continue
			}
			return false
		}
	}
	return true
}
