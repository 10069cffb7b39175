package model

import "strings"

// ArgKind is a bitset describing how an argument may be supplied at a call site.
type ArgKind uint8

const (
	Positional ArgKind = 1 << iota
	Keyword
	Variadic
	Default
)

const (
	PositionalOnly      = Positional
	KeywordOnly         = Keyword
	PositionalOrKeyword = Positional | Keyword
	VarPositional       = Positional | Variadic
	VarKeyword          = Keyword | Variadic
)

const argKindAll = Positional | Keyword | Variadic | Default

func (k ArgKind) Has(bits ArgKind) bool { return k&bits == bits }

func (k ArgKind) IsPositionalOnly() bool {
	return k.Has(Positional) && !k.Has(Keyword) && !k.Has(Variadic)
}

func (k ArgKind) IsKeywordOnly() bool {
	return k.Has(Keyword) && !k.Has(Positional) && !k.Has(Variadic)
}

func (k ArgKind) IsVarPositional() bool { return k&^Default == VarPositional }

func (k ArgKind) IsVarKeyword() bool { return k&^Default == VarKeyword }

// Valid reports whether k is one of the canonical encodings.
func (k ArgKind) Valid() bool {
	if k&^argKindAll != 0 {
		return false
	}
	switch k &^ Default {
	case PositionalOnly, KeywordOnly, PositionalOrKeyword:
		return true
	case VarPositional, VarKeyword:
		return !k.Has(Default)
	}
	return false
}

func (k ArgKind) String() string {
	parts := make([]string, 0, 4)
	if k.Has(Positional) {
		parts = append(parts, "P")
	}
	if k.Has(Keyword) {
		parts = append(parts, "K")
	}
	if k.Has(Variadic) {
		parts = append(parts, "V")
	}
	if k.Has(Default) {
		parts = append(parts, "D")
	}
	return "{" + strings.Join(parts, ",") + "}"
}
