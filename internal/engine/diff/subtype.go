package diff

import "apisurface/internal/core/typexpr"

// DefaultRules is the minimal widening relation on type heads.
var DefaultRules = [][2]string{
	{"typing.List", "typing.Sequence"},
	{"typing.Tuple", "typing.Sequence"},
	{"typing.MutableSequence", "typing.Sequence"},
	{"typing.Dict", "typing.Mapping"},
	{"typing.MutableMapping", "typing.Mapping"},
	{"typing.Set", "typing.AbstractSet"},
}

// Subtyper decides whether one type expression is narrower than another.
// Only heads are compared; parameters are not descended.
type Subtyper struct {
	supers map[string][]string
}

func NewSubtyper() *Subtyper {
	s := &Subtyper{supers: map[string][]string{}}
	for _, r := range DefaultRules {
		s.Register(r[0], r[1])
	}
	return s
}

// Register declares sub ⊑ sup for the given heads.
func (s *Subtyper) Register(sub, sup string) {
	for _, existing := range s.supers[sub] {
		if existing == sup {
			return
		}
	}
	s.supers[sub] = append(s.supers[sub], sup)
}

// IsSubtype reports sub ⊑ sup. Equal heads are not a widening.
func (s *Subtyper) IsSubtype(sub, sup string) bool {
	from, to := typexpr.HeadOf(sub), typexpr.HeadOf(sup)
	if from == to {
		return false
	}
	seen := map[string]bool{from: true}
	queue := []string{from}
	for len(queue) > 0 {
		head := queue[0]
		queue = queue[1:]
		for _, next := range s.supers[head] {
			if next == to {
				return true
			}
			if !seen[next] {
				seen[next] = true
				queue = append(queue, next)
			}
		}
	}
	return false
}
