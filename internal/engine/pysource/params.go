package pysource

import (
	"fmt"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"apisurface/internal/engine/pyobj"
)

// parameters reads a parameters or lambda_parameters node. The second result
// is non-empty when the list cannot be read faithfully.
func (c *parseContext) parameters(n *sitter.Node) ([]ParamDecl, string) {
	if n == nil {
		return nil, ""
	}
	if n.HasError() {
		return nil, fmt.Sprintf("malformed parameter list at line %d", line(n))
	}
	var (
		out         []ParamDecl
		keywordOnly bool
		// lastRow is the row the previous parameter ends on; a type comment
		// on that row belongs to it.
		lastRow = -1
	)
	kindFor := func() pyobj.ParamKind {
		if keywordOnly {
			return pyobj.ParamKeywordOnly
		}
		return pyobj.ParamPositionalOrKeyword
	}
	for i := uint(0); i < n.NamedChildCount(); i++ {
		p := n.NamedChild(i)
		switch p.Kind() {
		case "comment":
			if t, ok := typeComment(c.text(p)); ok && len(out) > 0 && int(p.StartPosition().Row) == lastRow {
				out[len(out)-1].TypeComment = t
			}
			continue
		case "identifier":
			out = append(out, ParamDecl{Name: c.text(p), Kind: kindFor()})
		case "default_parameter":
			out = append(out, ParamDecl{
				Name:    c.text(p.ChildByFieldName("name")),
				Kind:    kindFor(),
				Default: c.expr(p.ChildByFieldName("value")),
			})
		case "typed_default_parameter":
			out = append(out, ParamDecl{
				Name:       c.text(p.ChildByFieldName("name")),
				Kind:       kindFor(),
				Annotation: c.text(p.ChildByFieldName("type")),
				Default:    c.expr(p.ChildByFieldName("value")),
			})
		case "typed_parameter":
			decl, ok := c.typedParameter(p, kindFor())
			if !ok {
				return nil, fmt.Sprintf("unsupported parameter %q at line %d", c.text(p), line(p))
			}
			if decl.Kind == pyobj.ParamVarPositional {
				keywordOnly = true
			}
			out = append(out, decl)
		case "list_splat_pattern":
			out = append(out, ParamDecl{Name: c.splatName(p), Kind: pyobj.ParamVarPositional})
			keywordOnly = true
		case "dictionary_splat_pattern":
			out = append(out, ParamDecl{Name: c.splatName(p), Kind: pyobj.ParamVarKeyword})
		case "keyword_separator":
			keywordOnly = true
			lastRow = -1
			continue
		case "positional_separator":
			for j := range out {
				out[j].Kind = pyobj.ParamPositionalOnly
			}
			lastRow = -1
			continue
		default:
			return nil, fmt.Sprintf("unsupported parameter %q at line %d", c.text(p), line(p))
		}
		lastRow = int(p.EndPosition().Row)
	}
	return out, ""
}

// signatureComment returns the type text of the comment that directly
// follows the header colon, on the same line or ahead of the first statement.
func (c *parseContext) signatureComment(n *sitter.Node) string {
	colon := false
	for i := uint(0); i < n.ChildCount(); i++ {
		child := n.Child(i)
		if !colon {
			colon = child.Kind() == ":"
			continue
		}
		if child.Kind() == "comment" {
			t, _ := typeComment(c.text(child))
			return t
		}
		break
	}
	if body := n.ChildByFieldName("body"); body != nil && body.NamedChildCount() > 0 {
		if first := body.NamedChild(0); first.Kind() == "comment" {
			t, _ := typeComment(c.text(first))
			return t
		}
	}
	return ""
}

// typeComment returns T from a "# type: T" comment. "# type: ignore" and
// any trailing comment such as "# noqa" are dropped.
func typeComment(text string) (string, bool) {
	text = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(text), "#"))
	rest, ok := strings.CutPrefix(text, "type:")
	if !ok {
		return "", false
	}
	if i := strings.IndexByte(rest, '#'); i >= 0 {
		rest = rest[:i]
	}
	rest = strings.TrimSpace(rest)
	if rest == "" || rest == "ignore" || strings.HasPrefix(rest, "ignore[") {
		return "", false
	}
	return rest, true
}

// typedParameter reads "name: T", "*name: T" and "**name: T".
func (c *parseContext) typedParameter(p *sitter.Node, kind pyobj.ParamKind) (ParamDecl, bool) {
	decl := ParamDecl{Kind: kind, Annotation: c.text(p.ChildByFieldName("type"))}
	for i := uint(0); i < p.NamedChildCount(); i++ {
		child := p.NamedChild(i)
		switch child.Kind() {
		case "identifier":
			decl.Name = c.text(child)
			return decl, true
		case "list_splat_pattern":
			decl.Name, decl.Kind = c.splatName(child), pyobj.ParamVarPositional
			return decl, true
		case "dictionary_splat_pattern":
			decl.Name, decl.Kind = c.splatName(child), pyobj.ParamVarKeyword
			return decl, true
		}
	}
	return decl, false
}

func (c *parseContext) splatName(n *sitter.Node) string {
	for i := uint(0); i < n.NamedChildCount(); i++ {
		if child := n.NamedChild(i); child.Kind() == "identifier" {
			return c.text(child)
		}
	}
	return ""
}
