package pysource

import (
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// expr reads the value-relevant shape of an expression node.
func (c *parseContext) expr(n *sitter.Node) *Expr {
	if n == nil {
		return &Expr{Kind: ExprOpaque}
	}
	text := c.text(n)
	switch n.Kind() {
	case "identifier":
		switch text {
		case "None":
			return &Expr{Kind: ExprNone, Text: text}
		case "True", "False":
			return &Expr{Kind: ExprBool, Text: text}
		}
		return &Expr{Kind: ExprName, Ref: text, Text: text}
	case "attribute":
		if ref, ok := c.dotted(n); ok {
			return &Expr{Kind: ExprName, Ref: ref, Text: text}
		}
	case "none":
		return &Expr{Kind: ExprNone, Text: text}
	case "true", "false":
		return &Expr{Kind: ExprBool, Text: text}
	case "integer", "float":
		return numberExpr(n.Kind(), text)
	case "unary_operator":
		if arg := c.expr(n.ChildByFieldName("argument")); isNumber(arg.Kind) {
			return &Expr{Kind: arg.Kind, Text: text}
		}
	case "string", "concatenated_string":
		kind := ExprStr
		if strings.ContainsAny(stringPrefix(text), "bB") {
			kind = ExprBytes
		}
		return &Expr{Kind: kind, Text: c.stringContent(n)}
	case "parenthesized_expression":
		if n.NamedChildCount() == 1 {
			return c.expr(n.NamedChild(0))
		}
	case "list":
		return &Expr{Kind: ExprList, Text: text, Items: c.items(n)}
	case "tuple", "expression_list":
		return &Expr{Kind: ExprTuple, Text: text, Items: c.items(n)}
	case "set":
		return &Expr{Kind: ExprSet, Text: text, Items: c.items(n)}
	case "dictionary":
		e := &Expr{Kind: ExprDict, Text: text}
		for i := uint(0); i < n.NamedChildCount(); i++ {
			pair := n.NamedChild(i)
			if pair.Kind() != "pair" {
				continue
			}
			e.Keys = append(e.Keys, c.expr(pair.ChildByFieldName("key")))
			e.Values = append(e.Values, c.expr(pair.ChildByFieldName("value")))
		}
		return e
	case "call":
		e := &Expr{Kind: ExprCall, Text: text}
		if ref, ok := c.dotted(n.ChildByFieldName("function")); ok {
			e.Ref = ref
		}
		if args := n.ChildByFieldName("arguments"); args != nil && args.Kind() == "argument_list" {
			for i := uint(0); i < args.NamedChildCount(); i++ {
				if a := args.NamedChild(i); a.Kind() != "keyword_argument" && a.Kind() != "comment" {
					e.Items = append(e.Items, c.expr(a))
				}
			}
		}
		return e
	case "lambda":
		fn := &FuncDecl{Name: "<lambda>"}
		fn.Params, fn.ParamErr = c.parameters(n.ChildByFieldName("parameters"))
		return &Expr{Kind: ExprLambda, Text: text, Lambda: fn}
	}
	return &Expr{Kind: ExprOpaque, Text: text}
}

func (c *parseContext) items(n *sitter.Node) []*Expr {
	var out []*Expr
	for i := uint(0); i < n.NamedChildCount(); i++ {
		child := n.NamedChild(i)
		if child.Kind() == "comment" {
			continue
		}
		out = append(out, c.expr(child))
	}
	return out
}

// dotted renders identifier and attribute chains such as a.b.c.
func (c *parseContext) dotted(n *sitter.Node) (string, bool) {
	if n == nil {
		return "", false
	}
	switch n.Kind() {
	case "identifier":
		return c.text(n), true
	case "attribute":
		obj, ok := c.dotted(n.ChildByFieldName("object"))
		if !ok {
			return "", false
		}
		return obj + "." + c.text(n.ChildByFieldName("attribute")), true
	}
	return "", false
}

func numberExpr(kind, text string) *Expr {
	lower := strings.ToLower(text)
	switch {
	case strings.HasSuffix(lower, "j"):
		return &Expr{Kind: ExprComplex, Text: text}
	case kind == "float":
		return &Expr{Kind: ExprFloat, Text: text}
	}
	return &Expr{Kind: ExprInt, Text: text}
}

func isNumber(k ExprKind) bool {
	return k == ExprInt || k == ExprFloat || k == ExprComplex
}

func stringPrefix(text string) string {
	if i := strings.IndexAny(text, `"'`); i > 0 {
		return text[:i]
	}
	return ""
}
