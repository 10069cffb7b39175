// # internal/core/model/types.go
package model

import (
	"sort"
)

const (
	// UnknownType marks a slot for which no type evidence exists at all.
	UnknownType = "~unknown"
	// AnyType marks a slot explicitly declared (or inferred) as any.
	AnyType = "typing.Any"
	// NoneType is the type of the null value.
	NoneType = "None"
)

type NodeKind string

const (
	KindModule  NodeKind = "Module"
	KindClass   NodeKind = "Class"
	KindFunc    NodeKind = "Func"
	KindArg     NodeKind = "Arg"
	KindVar     NodeKind = "Var"
	KindUnknown NodeKind = "Unknown"
)

// kindRank breaks ties between siblings that share a name.
var kindRank = map[NodeKind]int{
	KindModule:  0,
	KindClass:   1,
	KindFunc:    2,
	KindVar:     3,
	KindUnknown: 4,
}

// Node is one entry of a Module or Class body.
type Node interface {
	Kind() NodeKind
	NodeName() string
}

type Module struct {
	Name string
	Path string
	Body []Node
}

type Class struct {
	Name string
	Path string
	Body []Node
}

type Func struct {
	Name    string
	Args    []Arg
	Returns string
}

type Arg struct {
	Name string
	Type string
	Kind ArgKind
}

type Var struct {
	Name string
	Type string
}

// Unknown records something that exists but could not be inspected.
type Unknown struct {
	Name string
	Info string
}

func (m *Module) Kind() NodeKind  { return KindModule }
func (c *Class) Kind() NodeKind   { return KindClass }
func (f *Func) Kind() NodeKind    { return KindFunc }
func (v *Var) Kind() NodeKind     { return KindVar }
func (u *Unknown) Kind() NodeKind { return KindUnknown }

func (m *Module) NodeName() string  { return m.Name }
func (c *Class) NodeName() string   { return c.Name }
func (f *Func) NodeName() string    { return f.Name }
func (v *Var) NodeName() string     { return v.Name }
func (u *Unknown) NodeName() string { return u.Name }

// NewModule builds a module node with a canonical body.
func NewModule(name, path string, body []Node) *Module {
	return &Module{Name: name, Path: path, Body: CanonicalBody(body)}
}

// NewClass builds a class node with a canonical body.
func NewClass(name, path string, body []Node) *Class {
	return &Class{Name: name, Path: path, Body: CanonicalBody(body)}
}

// CanonicalBody sorts children by name then kind and drops later duplicates of a name.
func CanonicalBody(body []Node) []Node {
	out := make([]Node, 0, len(body))
	seen := make(map[string]bool, len(body))
	for _, n := range body {
		if n == nil || seen[n.NodeName()] {
			continue
		}
		seen[n.NodeName()] = true
		out = append(out, n)
	}
	SortBody(out)
	return out
}

// SortBody orders siblings ascending by name, then by kind tag.
func SortBody(body []Node) {
	sort.SliceStable(body, func(i, j int) bool {
		if body[i].NodeName() != body[j].NodeName() {
			return body[i].NodeName() < body[j].NodeName()
		}
		return kindRank[body[i].Kind()] < kindRank[body[j].Kind()]
	})
}

// BodyOf returns the children of container nodes and nil for leaves.
func BodyOf(n Node) []Node {
	switch v := n.(type) {
	case *Module:
		return v.Body
	case *Class:
		return v.Body
	}
	return nil
}
