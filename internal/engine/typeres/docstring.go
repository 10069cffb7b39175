package typeres

import (
	"regexp"
	"strings"
)

var (
	sectionRe  = regexp.MustCompile(`^(Arg|Args|Arguments|Parameters|Returns|Return|Yields|Yield)\s*:\s*$`)
	docParamRe = regexp.MustCompile(`^\*{0,2}([A-Za-z_][A-Za-z0-9_]*)\s*\((.+)\)\s*(?::.*)?$`)
)

// docEvidence is the typing information of a Google-style docstring.
type docEvidence struct {
	params    map[string]string
	returns   string
	hasReturn bool
}

type docSection int

const (
	sectionNone docSection = iota
	sectionArgs
	sectionReturns
	sectionYields
)

func parseDocstring(doc string) docEvidence {
	ev := docEvidence{params: map[string]string{}}
	if strings.TrimSpace(doc) == "" {
		return ev
	}
	var (
		section      = sectionNone
		headerIndent int
		itemIndent   = -1
	)
	for _, raw := range strings.Split(doc, "\n") {
		raw = strings.TrimRight(raw, " \t\r")
		text := strings.TrimSpace(raw)
		if text == "" {
			continue
		}
		indent := len(raw) - len(strings.TrimLeft(raw, " \t"))
		if m := sectionRe.FindStringSubmatch(text); m != nil {
			section = sectionOf(m[1])
			headerIndent = indent
			itemIndent = -1
			continue
		}
		if section == sectionNone {
			continue
		}
		if indent <= headerIndent {
			section = sectionNone
			continue
		}
		if itemIndent < 0 {
			itemIndent = indent
		}
		if indent != itemIndent {
			continue // continuation of a description
		}
		switch section {
		case sectionArgs:
			if m := docParamRe.FindStringSubmatch(text); m != nil {
				ev.params[m[1]] = docParamType(m[2])
			}
		case sectionReturns, sectionYields:
			if ev.hasReturn {
				continue
			}
			t := returnLineType(text)
			if t == "" {
				continue
			}
			if section == sectionYields {
				t = "typing.Iterable[" + t + "]"
			}
			ev.returns, ev.hasReturn = t, true
		}
	}
	return ev
}

func sectionOf(header string) docSection {
	switch header {
	case "Returns", "Return":
		return sectionReturns
	case "Yields", "Yield":
		return sectionYields
	}
	return sectionArgs
}

// docParamType drops the ", optional" marker Google style allows after a type.
func docParamType(t string) string {
	t = strings.TrimSpace(t)
	if parts := splitTopLevel(t); len(parts) > 1 && strings.TrimSpace(parts[len(parts)-1]) == "optional" {
		t = strings.TrimSpace(strings.Join(parts[:len(parts)-1], ","))
	}
	return t
}

// returnLineType reads "type: description" up to the first colon outside brackets.
func returnLineType(line string) string {
	depth := 0
	for i := 0; i < len(line); i++ {
		switch line[i] {
		case '[', '(':
			depth++
		case ']', ')':
			depth--
		case ':':
			if depth == 0 {
				return strings.TrimSpace(line[:i])
			}
		}
	}
	return ""
}
