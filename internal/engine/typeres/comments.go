package typeres

import (
	"regexp"
	"strings"

	"apisurface/internal/engine/pyobj"
)

var signatureRe = regexp.MustCompile(`^\((.*)\)\s*->\s*(.+)$`)

// commentEvidence is what the "# type:" comments of one definition say.
type commentEvidence struct {
	// positional holds the types of a "(A, B) -> R" comment in order; nil for "(...)".
	positional []string
	hasReturn  bool
	returns    string
	// perParam maps a parameter name to the comment trailing it.
	perParam map[string]string
}

func commentsOf(fn *pyobj.Function) commentEvidence {
	ev := commentEvidence{perParam: fn.ParamComments}
	ev.parseSignature(fn.SignatureComment)
	return ev
}

func (ev *commentEvidence) parseSignature(text string) {
	m := signatureRe.FindStringSubmatch(strings.TrimSpace(text))
	if m == nil {
		return
	}
	ev.hasReturn = true
	ev.returns = strings.TrimSpace(m[2])
	args := strings.TrimSpace(m[1])
	if args == "..." {
		return
	}
	ev.positional = []string{}
	if args == "" {
		return
	}
	for _, a := range splitTopLevel(args) {
		a = strings.TrimSpace(a)
		a = strings.TrimLeft(a, "*")
		ev.positional = append(ev.positional, strings.TrimSpace(a))
	}
}

// splitTopLevel splits s at commas outside brackets.
func splitTopLevel(s string) []string {
	var (
		out   []string
		depth int
		last  int
	)
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '[', '(', '{':
			depth++
		case ']', ')', '}':
			depth--
		case ',':
			if depth == 0 {
				out = append(out, s[last:i])
				last = i + 1
			}
		}
	}
	return append(out, s[last:])
}
