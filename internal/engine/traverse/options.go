package traverse

import (
	"fmt"

	"github.com/gobwas/glob"
)

// DefaultDepth bounds container nesting below the root.
const DefaultDepth = 6

// Options configures one extraction. It is passed by value.
type Options struct {
	// ExcludeModules skips attributes that are themselves modules.
	ExcludeModules bool
	// AllFilter restricts a module to its __all__ list when it defines one.
	AllFilter bool
	// Depth is the maximum container nesting; zero means DefaultDepth.
	Depth int
	// Exclude holds glob patterns matched against dotted attribute paths.
	Exclude []string
	// PromoteSignatureErrors emits Unknown instead of catch-all Funcs.
	PromoteSignatureErrors bool
	// Allowed lists extra dotted prefixes of modules that may be descended
	// into besides the root's own package.
	Allowed []string
}

func DefaultOptions() Options {
	return Options{Depth: DefaultDepth}
}

func (o Options) depth() int {
	if o.Depth <= 0 {
		return DefaultDepth
	}
	return o.Depth
}

func compileExcludes(patterns []string) ([]glob.Glob, error) {
	out := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p, '.')
		if err != nil {
			return nil, fmt.Errorf("invalid exclude pattern %q: %w", p, err)
		}
		out = append(out, g)
	}
	return out, nil
}
