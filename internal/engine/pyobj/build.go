package pyobj

// NewModule creates an empty module named by its dotted path.
func NewModule(name string) *Object {
	return &Object{Kind: KindModule, Name: name, Context: map[string]string{}, Annotations: map[string]string{}}
}

// NewExternalModule creates a module stub for a module outside the search paths.
func NewExternalModule(name string) *Object {
	m := NewModule(name)
	m.External = true
	return m
}

func NewClass(qualname string, module *Object) *Object {
	return &Object{Kind: KindClass, Name: qualname, Module: module, Annotations: map[string]string{}}
}

func NewFunction(qualname string, module *Object, fn *Function) *Object {
	if fn == nil {
		fn = &Function{}
	}
	if fn.Annotations == nil {
		fn.Annotations = map[string]string{}
	}
	return &Object{Kind: KindFunction, Name: qualname, Module: module, Func: fn}
}

func NewProperty(name string) *Object {
	return &Object{Kind: KindProperty, Name: name}
}

func NewBuiltinType(name string) *Object {
	return &Object{Kind: KindBuiltinType, Name: name}
}

func NewNone() *Object { return &Object{Kind: KindNone, Name: "None"} }

// NewScalar creates a scalar value of kind k (bool, int, float, complex, str, bytes).
func NewScalar(k Kind) *Object { return &Object{Kind: k} }

// NewSequence creates a list, tuple, set or frozenset holding items.
func NewSequence(k Kind, items ...*Object) *Object { return &Object{Kind: k, Items: items} }

func NewDict(keys, values []*Object) *Object {
	return &Object{Kind: KindDict, Keys: keys, Values: values}
}

// NewOpaque creates a value whose type cannot be inferred; ref names where it came from.
func NewOpaque(ref string) *Object { return &Object{Kind: KindOpaque, Ref: ref} }

// builtinTypes are the names recognised as built-in type objects.
var builtinTypes = map[string]bool{
	"bool": true, "bytearray": true, "bytes": true, "complex": true, "dict": true,
	"float": true, "frozenset": true, "int": true, "list": true, "object": true,
	"set": true, "str": true, "tuple": true, "type": true, "memoryview": true,
	"range": true, "slice": true,
}

// IsBuiltinTypeName reports whether name is a recognised built-in type.
func IsBuiltinTypeName(name string) bool { return builtinTypes[name] }
