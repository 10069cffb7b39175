// Package diff compares two surfaces and grades every difference.
package diff

import (
	"sort"

	"apisurface/internal/core/model"
)

// Differ compares surfaces using a widening relation.
type Differ struct {
	Subtypes *Subtyper
}

func NewDiffer() *Differ {
	return &Differ{Subtypes: NewSubtyper()}
}

// Compare diffs two sets of top-level modules with the default relation.
func Compare(before, after []*model.Module) []Change {
	return NewDiffer().Compare(before, after)
}

// Compare matches modules by path. The result is a set; it is returned
// deduplicated and sorted by level (worst first), detail and category.
func (d *Differ) Compare(before, after []*model.Module) []Change {
	c := &collector{d: d, seen: map[Change]bool{}}
	beforeByPath := make(map[string]*model.Module, len(before))
	for _, m := range before {
		if _, dup := beforeByPath[m.Path]; !dup {
			beforeByPath[m.Path] = m
		}
	}
	afterByPath := make(map[string]*model.Module, len(after))
	for _, m := range after {
		if _, dup := afterByPath[m.Path]; !dup {
			afterByPath[m.Path] = m
		}
	}
	for path, o := range beforeByPath {
		n, ok := afterByPath[path]
		if !ok {
			c.add(model.Major, CategoryRemoved, path)
			continue
		}
		c.pair(path, o, n)
	}
	for path := range afterByPath {
		if _, ok := beforeByPath[path]; !ok {
			c.add(model.Minor, CategoryAdded, path)
		}
	}
	return c.sorted()
}

// CompareNodes diffs a single matched pair whose detail path is detail.
func (d *Differ) CompareNodes(detail string, before, after model.Node) []Change {
	c := &collector{d: d, seen: map[Change]bool{}}
	c.pair(detail, before, after)
	return c.sorted()
}

type collector struct {
	d       *Differ
	seen    map[Change]bool
	changes []Change
}

func (c *collector) add(level model.Level, cat Category, detail string) {
	ch := Change{Level: level, Category: cat, Detail: detail}
	if c.seen[ch] {
		return
	}
	c.seen[ch] = true
	c.changes = append(c.changes, ch)
}

func (c *collector) sorted() []Change {
	out := c.changes
	if out == nil {
		out = []Change{}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Level != out[j].Level {
			return out[i].Level > out[j].Level
		}
		if out[i].Detail != out[j].Detail {
			return out[i].Detail < out[j].Detail
		}
		return out[i].Category < out[j].Category
	})
	return out
}

func (c *collector) pair(detail string, before, after model.Node) {
	if model.Equal(before, after) {
		return
	}
	if before.Kind() == model.KindUnknown || after.Kind() == model.KindUnknown {
		c.add(model.Minor, CategoryCouldNotVerify, detail)
		return
	}
	if before.Kind() != after.Kind() {
		c.add(model.Major, CategoryTypeChanged, detail)
		return
	}
	switch o := before.(type) {
	case *model.Module, *model.Class:
		c.bodies(detail, model.BodyOf(o), model.BodyOf(after))
	case *model.Var:
		n := after.(*model.Var)
		if o.Type == n.Type {
			return
		}
		if o.Type == model.UnknownType {
			c.add(model.Patch, CategoryAddedType, detail)
			return
		}
		c.add(model.Major, CategoryTypeChanged, detail)
	case *model.Func:
		c.function(detail, o, after.(*model.Func))
	}
}

// bodies matches children by name.
func (c *collector) bodies(parent string, before, after []model.Node) {
	beforeByName := indexBody(before)
	afterByName := indexBody(after)
	for name, o := range beforeByName {
		n, ok := afterByName[name]
		if !ok {
			c.add(model.Major, CategoryRemoved, parent+"."+name)
			continue
		}
		c.pair(parent+"."+name, o, n)
	}
	for name := range afterByName {
		if _, ok := beforeByName[name]; !ok {
			c.add(model.Minor, CategoryAdded, parent+"."+name)
		}
	}
}

func indexBody(body []model.Node) map[string]model.Node {
	out := make(map[string]model.Node, len(body))
	for _, n := range body {
		if n == nil {
			continue
		}
		if _, dup := out[n.NodeName()]; !dup {
			out[n.NodeName()] = n
		}
	}
	return out
}
