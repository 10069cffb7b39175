package typexpr

import (
	"fmt"
	"strings"
	"unicode"
)

type tokKind int

const (
	tokIdent tokKind = iota
	tokLiteral
	tokEllipsis
	tokLBrack
	tokRBrack
	tokComma
	tokPipe
	tokInvalid
)

type token struct {
	kind tokKind
	text string
}

func tokenize(s string) []token {
	var toks []token
	for i := 0; i < len(s); {
		c := s[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '[':
			toks = append(toks, token{tokLBrack, "["})
			i++
		case c == ']':
			toks = append(toks, token{tokRBrack, "]"})
			i++
		case c == ',':
			toks = append(toks, token{tokComma, ","})
			i++
		case c == '|':
			toks = append(toks, token{tokPipe, "|"})
			i++
		case strings.HasPrefix(s[i:], "..."):
			toks = append(toks, token{tokEllipsis, "..."})
			i += 3
		case c == '"' || c == '\'':
			j := i + 1
			for j < len(s) && s[j] != c {
				if s[j] == '\\' {
					j++
				}
				j++
			}
			if j >= len(s) {
				return append(toks, token{tokInvalid, s[i:]})
			}
			toks = append(toks, token{tokLiteral, s[i : j+1]})
			i = j + 1
		case c == '-' || (c >= '0' && c <= '9'):
			j := i + 1
			for j < len(s) && (s[j] == '.' || s[j] == '_' || (s[j] >= '0' && s[j] <= '9')) {
				j++
			}
			toks = append(toks, token{tokLiteral, s[i:j]})
			i = j
		case c == '_' || c >= 0x80 || unicode.IsLetter(rune(c)):
			j := i
			for j < len(s) {
				r := rune(s[j])
				if r == '.' || r == '_' || r >= 0x80 || unicode.IsLetter(r) || unicode.IsDigit(r) {
					j++
					continue
				}
				break
			}
			toks = append(toks, token{tokIdent, s[i:j]})
			i = j
		default:
			return append(toks, token{tokInvalid, string(c)})
		}
	}
	return toks
}

type parser struct {
	toks []token
	pos  int
}

func (p *parser) done() bool { return p.pos >= len(p.toks) }

func (p *parser) peek() token {
	if p.done() {
		return token{kind: tokInvalid, text: "<end>"}
	}
	return p.toks[p.pos]
}

func (p *parser) next() token {
	t := p.peek()
	p.pos++
	return t
}

func (p *parser) union() (*Expr, error) {
	first, err := p.primary()
	if err != nil {
		return nil, err
	}
	members := []*Expr{first}
	for !p.done() && p.peek().kind == tokPipe {
		p.next()
		m, err := p.primary()
		if err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	if len(members) == 1 {
		return first, nil
	}
	return &Expr{Head: UnionHead, Args: members, Subscripted: true}, nil
}

func (p *parser) primary() (*Expr, error) {
	t := p.next()
	switch t.kind {
	case tokLBrack:
		args, err := p.list()
		if err != nil {
			return nil, err
		}
		return &Expr{List: true, Args: args}, nil
	case tokEllipsis, tokLiteral:
		return &Expr{Head: t.text}, nil
	case tokIdent:
		if !isDotted(t.text) {
			return nil, fmt.Errorf("malformed identifier %q", t.text)
		}
		e := &Expr{Head: t.text}
		if !p.done() && p.peek().kind == tokLBrack {
			p.next()
			args, err := p.list()
			if err != nil {
				return nil, err
			}
			e.Args = args
			e.Subscripted = true
		}
		return e, nil
	}
	return nil, fmt.Errorf("unexpected %q", t.text)
}

// list parses comma separated expressions up to and including the closing bracket.
func (p *parser) list() ([]*Expr, error) {
	var args []*Expr
	for {
		if p.done() {
			return nil, fmt.Errorf("unterminated bracket")
		}
		if p.peek().kind == tokRBrack {
			p.next()
			return args, nil
		}
		e, err := p.union()
		if err != nil {
			return nil, err
		}
		args = append(args, e)
		switch p.next().kind {
		case tokComma:
			continue
		case tokRBrack:
			return args, nil
		default:
			return nil, fmt.Errorf("expected ',' or ']'")
		}
	}
}
