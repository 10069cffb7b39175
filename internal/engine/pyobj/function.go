package pyobj

import "strings"

type ParamKind int

const (
	ParamPositionalOnly ParamKind = iota
	ParamPositionalOrKeyword
	ParamVarPositional
	ParamKeywordOnly
	ParamVarKeyword
)

func (k ParamKind) String() string {
	switch k {
	case ParamPositionalOnly:
		return "POSITIONAL_ONLY"
	case ParamPositionalOrKeyword:
		return "POSITIONAL_OR_KEYWORD"
	case ParamVarPositional:
		return "VAR_POSITIONAL"
	case ParamKeywordOnly:
		return "KEYWORD_ONLY"
	case ParamVarKeyword:
		return "VAR_KEYWORD"
	}
	return "UNKNOWN"
}

// Param is one entry of a callable's signature.
type Param struct {
	Name       string
	Kind       ParamKind
	HasDefault bool
	// Default resolves the default value; nil when HasDefault is false.
	Default Getter
}

// Function carries everything known about a callable.
type Function struct {
	Params []Param
	// SignatureErr is set when the parameter list could not be recovered.
	SignatureErr error
	// Annotations maps parameter names, and "return", to annotation text.
	Annotations map[string]string
	Doc         string
	// ParamComments maps parameter names to their "# type:" comment text.
	ParamComments map[string]string
	// SignatureComment is the "(A, B) -> R" type comment below the header.
	SignatureComment string
	Decorators       []string
}

// HasDecorator matches a decorator by its last dotted segment, ignoring call arguments.
func (f *Function) HasDecorator(name string) bool {
	if f == nil {
		return false
	}
	for _, d := range f.Decorators {
		if i := strings.IndexByte(d, '('); i >= 0 {
			d = d[:i]
		}
		d = strings.TrimSpace(d)
		if d == name || strings.HasSuffix(d, "."+name) {
			return true
		}
	}
	return false
}
