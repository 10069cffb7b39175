// Package pyobj models the namespace graph of loaded Python modules.
// Objects are compared by pointer identity; attribute retrieval is lazy
// and may fail, mirroring attribute access on live interpreter objects.
package pyobj

import (
	"fmt"
)

type Kind int

const (
	KindNone Kind = iota
	KindBuiltinType
	KindModule
	KindClass
	KindFunction
	KindProperty
	KindBool
	KindInt
	KindFloat
	KindComplex
	KindStr
	KindBytes
	KindList
	KindTuple
	KindSet
	KindFrozenSet
	KindDict
	KindOpaque
)

var kindNames = map[Kind]string{
	KindNone:        "none",
	KindBuiltinType: "builtin-type",
	KindModule:      "module",
	KindClass:       "class",
	KindFunction:    "function",
	KindProperty:    "property",
	KindBool:        "bool",
	KindInt:         "int",
	KindFloat:       "float",
	KindComplex:     "complex",
	KindStr:         "str",
	KindBytes:       "bytes",
	KindList:        "list",
	KindTuple:       "tuple",
	KindSet:         "set",
	KindFrozenSet:   "frozenset",
	KindDict:        "dict",
	KindOpaque:      "object",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Getter resolves an attribute value on demand.
type Getter func() (*Object, error)

// Object is a node of the namespace graph.
type Object struct {
	Kind Kind
	// Name is the dotted module name, the qualified class or function name,
	// or the builtin name for builtin types.
	Name string
	// Module is the defining module of classes and functions.
	Module *Object

	ns    *Namespace
	bases []Getter

	// All is the explicit export list of a module (__all__).
	All    []string
	HasAll bool
	// Annotations holds declared attribute types of a module or class.
	Annotations map[string]string
	// Context maps unqualified names visible in a module to dotted paths.
	Context map[string]string

	Func *Function

	Items  []*Object
	Keys   []*Object
	Values []*Object

	// External marks modules outside the loaded search paths.
	External bool
	// Ref is the qualified name an opaque object was imported as.
	Ref string
}

// Value returns a getter that always yields obj.
func Value(obj *Object) Getter {
	return func() (*Object, error) { return obj, nil }
}

// Fail returns a getter that always fails with err.
func Fail(err error) Getter {
	return func() (*Object, error) { return nil, err }
}

func (o *Object) String() string {
	if o == nil {
		return "<nil>"
	}
	if o.Name != "" {
		return fmt.Sprintf("<%s %s>", o.Kind, o.Name)
	}
	return fmt.Sprintf("<%s>", o.Kind)
}

// IsCallable reports whether o has a signature.
func (o *Object) IsCallable() bool {
	return o != nil && o.Kind == KindFunction
}

// Namespace returns the own namespace, creating it for containers.
func (o *Object) Namespace() *Namespace {
	if o.ns == nil {
		o.ns = NewNamespace()
	}
	return o.ns
}

// SetAttr binds name in the own namespace.
func (o *Object) SetAttr(name string, g Getter) {
	o.Namespace().Set(name, g)
}

// SetAttrValue binds name to a resolved object.
func (o *Object) SetAttrValue(name string, v *Object) {
	o.Namespace().Set(name, Value(v))
}

// AddBase appends a lazily resolved base class.
func (o *Object) AddBase(g Getter) {
	o.bases = append(o.bases, g)
}

// AttrNames lists own attribute names followed by inherited ones, without duplicates.
func (o *Object) AttrNames() []string {
	seen := make(map[string]bool)
	var names []string
	o.collectNames(&names, seen, map[*Object]bool{})
	return names
}

func (o *Object) collectNames(names *[]string, seen map[string]bool, visiting map[*Object]bool) {
	if o == nil || visiting[o] {
		return
	}
	visiting[o] = true
	if o.ns != nil {
		for _, n := range o.ns.Names() {
			if !seen[n] {
				seen[n] = true
				*names = append(*names, n)
			}
		}
	}
	for _, base := range o.resolvedBases() {
		base.collectNames(names, seen, visiting)
	}
}

// Attr retrieves name from the own namespace, then from bases left to right.
func (o *Object) Attr(name string) (*Object, error) {
	if o == nil {
		return nil, fmt.Errorf("attribute %q of nil object", name)
	}
	g, ok := o.find(name, map[*Object]bool{})
	if !ok {
		return nil, fmt.Errorf("AttributeError: %s has no attribute %q", o, name)
	}
	return g()
}

func (o *Object) find(name string, visiting map[*Object]bool) (Getter, bool) {
	visiting[o] = true
	if o.ns != nil {
		if g, ok := o.ns.Lookup(name); ok {
			return g, true
		}
	}
	for _, base := range o.resolvedBases() {
		if visiting[base] {
			continue
		}
		if g, ok := base.find(name, visiting); ok {
			return g, true
		}
	}
	return nil, false
}

// Annotation returns the declared type of name and the object declaring it,
// searching o and then its bases in attribute lookup order.
func (o *Object) Annotation(name string) (string, *Object) {
	return o.annotation(name, map[*Object]bool{})
}

func (o *Object) annotation(name string, visiting map[*Object]bool) (string, *Object) {
	if o == nil || visiting[o] {
		return "", nil
	}
	visiting[o] = true
	if t := o.Annotations[name]; t != "" {
		return t, o
	}
	for _, base := range o.resolvedBases() {
		if t, owner := base.annotation(name, visiting); t != "" {
			return t, owner
		}
	}
	return "", nil
}

// HasOwnAttr reports whether name is bound directly on o.
func (o *Object) HasOwnAttr(name string) bool {
	if o == nil || o.ns == nil {
		return false
	}
	_, ok := o.ns.Lookup(name)
	return ok
}

// resolvedBases returns the base classes that resolve to classes; failures are skipped.
func (o *Object) resolvedBases() []*Object {
	out := make([]*Object, 0, len(o.bases))
	for _, g := range o.bases {
		b, err := g()
		if err != nil || b == nil || b.Kind != KindClass || b == o {
			continue
		}
		out = append(out, b)
	}
	return out
}

// DelAttr unbinds name from the own namespace.
func (o *Object) DelAttr(name string) {
	if o.ns != nil {
		o.ns.Delete(name)
	}
}
