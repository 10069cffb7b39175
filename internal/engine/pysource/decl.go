// # internal/engine/pysource/decl.go
package pysource

import "apisurface/internal/engine/pyobj"

// ModuleDecl is the declaration-level reading of one Python source file.
// It holds no tree-sitter state and can be cached across loads.
type ModuleDecl struct {
	Path string
	// IsPackage is true for __init__.py files.
	IsPackage bool
	Doc       string
	Stmts     []Stmt
	// SyntaxErrors counts error nodes tree-sitter recovered from.
	SyntaxErrors int
}

type StmtKind int

const (
	StmtImport StmtKind = iota
	StmtFromImport
	StmtAssign
	StmtAnnotation
	StmtAugAll
	StmtAttrAssign
	StmtDelete
	StmtDef
	StmtClass
)

// Stmt is one top-level or class-level statement that affects a namespace.
type Stmt struct {
	Kind StmtKind
	Line int

	// Imports. Module is dotted and Level counts leading dots of relative imports.
	Module string
	Level  int
	Names  []ImportName
	Star   bool

	// Assignments. Targets are bound left to right to Value; Annotation is the
	// declared type text.
	Targets    []string
	Value      *Expr
	Annotation string

	// Attribute assignment Object.Attr = Value.
	Object string
	Attr   string

	Def   *FuncDecl
	Class *ClassDecl
}

// ImportName is one imported name and its alias.
type ImportName struct {
	Name  string
	Alias string
}

// Bound is the local name an import binds.
func (n ImportName) Bound() string {
	if n.Alias != "" {
		return n.Alias
	}
	return n.Name
}

type FuncDecl struct {
	Name       string
	Async      bool
	Params     []ParamDecl
	Returns    string
	Decorators []string
	Doc        string
	// TypeComment is the "(A, B) -> R" text of the signature type comment.
	TypeComment string
	// ParamErr describes a parameter list tree-sitter could not parse.
	ParamErr string
}

type ParamDecl struct {
	Name       string
	Kind       pyobj.ParamKind
	Annotation string
	Default    *Expr
	// TypeComment is the "# type:" text trailing the parameter on its line.
	TypeComment string
}

type ClassDecl struct {
	Name       string
	Bases      []*Expr
	Decorators []string
	Doc        string
	Body       []Stmt
}

type ExprKind int

const (
	ExprOpaque ExprKind = iota
	ExprName
	ExprNone
	ExprBool
	ExprInt
	ExprFloat
	ExprComplex
	ExprStr
	ExprBytes
	ExprList
	ExprTuple
	ExprSet
	ExprDict
	ExprCall
	ExprLambda
)

// Expr is the subset of Python expressions whose values matter to a surface.
type Expr struct {
	Kind ExprKind
	// Ref is the dotted name of ExprName and the callee of ExprCall.
	Ref string
	// Text is the source text; for ExprStr it is the literal's content.
	Text   string
	Items  []*Expr
	Keys   []*Expr
	Values []*Expr
	Lambda *FuncDecl
}
