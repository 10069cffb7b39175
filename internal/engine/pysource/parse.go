// # internal/engine/pysource/parse.go
package pysource

import (
	"fmt"
	"path/filepath"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"
)

// Parser turns Python source into declarations. It is not safe for
// concurrent use; tree-sitter parsers are single-threaded.
type Parser struct {
	sp *sitter.Parser
}

func NewParser() (*Parser, error) {
	sp := sitter.NewParser()
	if err := sp.SetLanguage(sitter.NewLanguage(tree_sitter_python.Language())); err != nil {
		sp.Close()
		return nil, fmt.Errorf("load python grammar: %w", err)
	}
	return &Parser{sp: sp}, nil
}

func (p *Parser) Close() {
	if p.sp != nil {
		p.sp.Close()
		p.sp = nil
	}
}

// Parse reads the declarations of source, which was loaded from path.
func (p *Parser) Parse(source []byte, path string) (*ModuleDecl, error) {
	tree := p.sp.Parse(source, nil)
	if tree == nil {
		return nil, fmt.Errorf("parse %s: tree-sitter returned no tree", path)
	}
	defer tree.Close()

	ctx := &parseContext{source: source}
	root := tree.RootNode()
	decl := &ModuleDecl{
		Path:      path,
		IsPackage: filepath.Base(path) == "__init__.py",
		Doc:       ctx.docstring(root),
		Stmts:     ctx.block(root),
	}
	if root.HasError() {
		decl.SyntaxErrors = countErrors(root)
	}
	return decl, nil
}

type parseContext struct {
	source []byte
}

func (c *parseContext) text(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	return string(c.source[n.StartByte():n.EndByte()])
}

func line(n *sitter.Node) int { return int(n.StartPosition().Row) + 1 }

func countErrors(n *sitter.Node) int {
	if n == nil {
		return 0
	}
	count := 0
	if n.IsError() || n.IsMissing() {
		count++
	}
	for i := uint(0); i < n.ChildCount(); i++ {
		count += countErrors(n.Child(i))
	}
	return count
}

// block reads the statements of a module or block node in order.
func (c *parseContext) block(n *sitter.Node) []Stmt {
	var out []Stmt
	if n == nil {
		return out
	}
	for i := uint(0); i < n.NamedChildCount(); i++ {
		out = append(out, c.statement(n.NamedChild(i))...)
	}
	return out
}

func (c *parseContext) statement(n *sitter.Node) []Stmt {
	switch n.Kind() {
	case "import_statement":
		return c.importStatement(n)
	case "import_from_statement":
		return c.fromImport(n)
	case "expression_statement":
		return c.expressionStatement(n)
	case "delete_statement":
		return c.deleteStatement(n)
	case "function_definition":
		return []Stmt{{Kind: StmtDef, Line: line(n), Def: c.function(n, nil)}}
	case "class_definition":
		return []Stmt{{Kind: StmtClass, Line: line(n), Class: c.class(n, nil)}}
	case "decorated_definition":
		return c.decorated(n)
	case "if_statement", "with_statement", "try_statement":
		// Only the first branch is taken: the body of try and with, the
		// consequence of if.
		body := n.ChildByFieldName("body")
		if n.Kind() == "if_statement" {
			body = n.ChildByFieldName("consequence")
		}
		return c.block(body)
	}
	return nil
}

func (c *parseContext) decorated(n *sitter.Node) []Stmt {
	var decorators []string
	for i := uint(0); i < n.NamedChildCount(); i++ {
		child := n.NamedChild(i)
		if child.Kind() == "decorator" {
			decorators = append(decorators, strings.TrimSpace(strings.TrimPrefix(c.text(child), "@")))
		}
	}
	def := n.ChildByFieldName("definition")
	if def == nil {
		return nil
	}
	switch def.Kind() {
	case "function_definition":
		return []Stmt{{Kind: StmtDef, Line: line(def), Def: c.function(def, decorators)}}
	case "class_definition":
		return []Stmt{{Kind: StmtClass, Line: line(def), Class: c.class(def, decorators)}}
	}
	return nil
}

func (c *parseContext) function(n *sitter.Node, decorators []string) *FuncDecl {
	fn := &FuncDecl{
		Name:       c.text(n.ChildByFieldName("name")),
		Decorators:  decorators,
		Returns:     c.text(n.ChildByFieldName("return_type")),
		Doc:         c.docstring(n.ChildByFieldName("body")),
		TypeComment: c.signatureComment(n),
	}
	if first := n.Child(0); first != nil && first.Kind() == "async" {
		fn.Async = true
	}
	fn.Params, fn.ParamErr = c.parameters(n.ChildByFieldName("parameters"))
	return fn
}

func (c *parseContext) class(n *sitter.Node, decorators []string) *ClassDecl {
	cls := &ClassDecl{
		Name:       c.text(n.ChildByFieldName("name")),
		Decorators: decorators,
	}
	if supers := n.ChildByFieldName("superclasses"); supers != nil {
		for i := uint(0); i < supers.NamedChildCount(); i++ {
			arg := supers.NamedChild(i)
			switch arg.Kind() {
			case "keyword_argument", "list_splat", "dictionary_splat", "comment":
				continue
			}
			cls.Bases = append(cls.Bases, c.expr(arg))
		}
	}
	body := n.ChildByFieldName("body")
	cls.Doc = c.docstring(body)
	cls.Body = c.block(body)
	return cls
}

// docstring returns the content of a leading string statement of body.
func (c *parseContext) docstring(body *sitter.Node) string {
	if body == nil {
		return ""
	}
	for i := uint(0); i < body.NamedChildCount(); i++ {
		st := body.NamedChild(i)
		if st.Kind() == "comment" {
			continue
		}
		if st.Kind() != "expression_statement" || st.NamedChildCount() != 1 {
			return ""
		}
		s := st.NamedChild(0)
		if s.Kind() != "string" && s.Kind() != "concatenated_string" {
			return ""
		}
		return c.stringContent(s)
	}
	return ""
}

// stringContent joins the literal content of a string node without its quotes.
func (c *parseContext) stringContent(n *sitter.Node) string {
	if n.Kind() == "concatenated_string" {
		var b strings.Builder
		for i := uint(0); i < n.NamedChildCount(); i++ {
			b.WriteString(c.stringContent(n.NamedChild(i)))
		}
		return b.String()
	}
	var b strings.Builder
	for i := uint(0); i < n.ChildCount(); i++ {
		child := n.Child(i)
		switch child.Kind() {
		case "string_content", "escape_sequence", "interpolation":
			b.WriteString(c.text(child))
		}
	}
	return b.String()
}

func (c *parseContext) importStatement(n *sitter.Node) []Stmt {
	var out []Stmt
	for i := uint(0); i < n.NamedChildCount(); i++ {
		child := n.NamedChild(i)
		switch child.Kind() {
		case "dotted_name":
			out = append(out, Stmt{Kind: StmtImport, Line: line(n), Module: c.text(child)})
		case "aliased_import":
			out = append(out, Stmt{
				Kind:   StmtImport,
				Line:   line(n),
				Module: c.text(child.ChildByFieldName("name")),
				Names:  []ImportName{{Name: c.text(child.ChildByFieldName("name")), Alias: c.text(child.ChildByFieldName("alias"))}},
			})
		}
	}
	return out
}

func (c *parseContext) fromImport(n *sitter.Node) []Stmt {
	st := Stmt{Kind: StmtFromImport, Line: line(n)}
	mod := n.ChildByFieldName("module_name")
	if mod != nil && mod.Kind() == "relative_import" {
		for i := uint(0); i < mod.NamedChildCount(); i++ {
			part := mod.NamedChild(i)
			switch part.Kind() {
			case "import_prefix":
				st.Level = strings.Count(c.text(part), ".")
			case "dotted_name":
				st.Module = c.text(part)
			}
		}
	} else {
		st.Module = c.text(mod)
	}
	for i := uint(0); i < n.NamedChildCount(); i++ {
		child := n.NamedChild(i)
		if mod != nil && child.StartByte() == mod.StartByte() {
			continue
		}
		switch child.Kind() {
		case "wildcard_import":
			st.Star = true
		case "dotted_name":
			st.Names = append(st.Names, ImportName{Name: c.text(child)})
		case "aliased_import":
			st.Names = append(st.Names, ImportName{
				Name:  c.text(child.ChildByFieldName("name")),
				Alias: c.text(child.ChildByFieldName("alias")),
			})
		}
	}
	return []Stmt{st}
}

func (c *parseContext) expressionStatement(n *sitter.Node) []Stmt {
	if n.NamedChildCount() == 0 {
		return nil
	}
	inner := n.NamedChild(0)
	switch inner.Kind() {
	case "assignment":
		return c.assignment(inner)
	case "augmented_assignment":
		left := inner.ChildByFieldName("left")
		op := inner.ChildByFieldName("operator")
		if c.text(left) == "__all__" && c.text(op) == "+=" {
			return []Stmt{{Kind: StmtAugAll, Line: line(inner), Value: c.expr(inner.ChildByFieldName("right"))}}
		}
	}
	return nil
}

// assignment flattens a = b = value chains and annotated assignments.
func (c *parseContext) assignment(n *sitter.Node) []Stmt {
	var lefts []*sitter.Node
	annotation := ""
	cur := n
	for {
		lefts = append(lefts, cur.ChildByFieldName("left"))
		if t := cur.ChildByFieldName("type"); t != nil && annotation == "" {
			annotation = c.text(t)
		}
		right := cur.ChildByFieldName("right")
		if right != nil && right.Kind() == "assignment" {
			cur = right
			continue
		}
		var value *Expr
		if right != nil {
			value = c.expr(right)
		}
		return c.bindTargets(n, lefts, value, annotation)
	}
}

func (c *parseContext) bindTargets(n *sitter.Node, lefts []*sitter.Node, value *Expr, annotation string) []Stmt {
	var out []Stmt
	for _, left := range lefts {
		if left == nil {
			continue
		}
		switch left.Kind() {
		case "identifier":
			kind := StmtAssign
			if value == nil {
				kind = StmtAnnotation
			}
			out = append(out, Stmt{Kind: kind, Line: line(n), Targets: []string{c.text(left)}, Value: value, Annotation: annotation})
		case "attribute":
			obj := left.ChildByFieldName("object")
			if obj == nil || obj.Kind() != "identifier" || value == nil {
				continue
			}
			out = append(out, Stmt{
				Kind:   StmtAttrAssign,
				Line:   line(n),
				Object: c.text(obj),
				Attr:   c.text(left.ChildByFieldName("attribute")),
				Value:  value,
			})
		case "pattern_list", "tuple_pattern", "list_pattern":
			out = append(out, c.unpack(n, left, value)...)
		}
	}
	return out
}

// unpack binds a, b = x, y element-wise when the value is a literal sequence of
// the same length and to opaque values otherwise.
func (c *parseContext) unpack(n, left *sitter.Node, value *Expr) []Stmt {
	var out []Stmt
	count := left.NamedChildCount()
	literal := value != nil && (value.Kind == ExprTuple || value.Kind == ExprList) && uint(len(value.Items)) == count
	for i := uint(0); i < count; i++ {
		target := left.NamedChild(i)
		if target.Kind() != "identifier" {
			continue
		}
		v := &Expr{Kind: ExprOpaque, Text: c.text(n.ChildByFieldName("right"))}
		if literal {
			v = value.Items[i]
		}
		out = append(out, Stmt{Kind: StmtAssign, Line: line(n), Targets: []string{c.text(target)}, Value: v})
	}
	return out
}

func (c *parseContext) deleteStatement(n *sitter.Node) []Stmt {
	var names []string
	var collect func(*sitter.Node)
	collect = func(x *sitter.Node) {
		switch x.Kind() {
		case "identifier":
			names = append(names, c.text(x))
		case "expression_list", "tuple", "list":
			for i := uint(0); i < x.NamedChildCount(); i++ {
				collect(x.NamedChild(i))
			}
		}
	}
	for i := uint(0); i < n.NamedChildCount(); i++ {
		collect(n.NamedChild(i))
	}
	if len(names) == 0 {
		return nil
	}
	return []Stmt{{Kind: StmtDelete, Line: line(n), Targets: names}}
}
