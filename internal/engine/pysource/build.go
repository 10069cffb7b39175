package pysource

import (
	"fmt"
	"log/slog"
	"strings"

	"apisurface/internal/engine/pyobj"
)

// propertyDecorators turn a def into a data descriptor.
var propertyDecorators = []string{"property", "cached_property", "setter", "getter", "deleter"}

// scope is a namespace statements bind into. Class bodies see their own
// namespace and then the module's, never an enclosing class.
type scope struct {
	ns    *pyobj.Object
	outer *scope
	qual  string
}

func (s *scope) lookup(name string) (pyobj.Getter, bool) {
	for cur := s; cur != nil; cur = cur.outer {
		if g, ok := cur.ns.Namespace().Lookup(name); ok {
			return g, true
		}
	}
	return nil, false
}

// builder executes the declarations of one module into its object.
type builder struct {
	loader    *Loader
	module    *pyobj.Object
	isPackage bool
	// classes are the classes bound at module level, by name.
	classes map[string]*pyobj.Object
}

func newBuilder(l *Loader, m *pyobj.Object, isPackage bool) *builder {
	return &builder{loader: l, module: m, isPackage: isPackage, classes: map[string]*pyobj.Object{}}
}

func (b *builder) exec(decl *ModuleDecl) {
	root := &scope{ns: b.module}
	for i := range decl.Stmts {
		b.stmt(root, &decl.Stmts[i])
	}
}

func (b *builder) stmt(s *scope, st *Stmt) {
	atModule := s.outer == nil
	switch st.Kind {
	case StmtImport:
		b.importStmt(s, st, atModule)
	case StmtFromImport:
		b.fromImport(s, st, atModule)
	case StmtAssign:
		g := b.eval(s, st.Value)
		for _, target := range st.Targets {
			s.ns.SetAttr(target, g)
			if st.Annotation != "" {
				s.ns.Annotations[target] = st.Annotation
			}
			if atModule && target == "__all__" {
				b.setAll(st.Value)
			}
		}
	case StmtAnnotation:
		for _, target := range st.Targets {
			s.ns.Annotations[target] = st.Annotation
		}
	case StmtAugAll:
		if atModule {
			b.module.All = append(b.module.All, stringItems(st.Value)...)
			b.module.HasAll = true
		}
	case StmtAttrAssign:
		if cls, ok := b.classes[st.Object]; ok && atModule {
			cls.SetAttr(st.Attr, b.eval(s, st.Value))
		}
	case StmtDelete:
		for _, target := range st.Targets {
			s.ns.DelAttr(target)
		}
	case StmtDef:
		s.ns.SetAttr(st.Def.Name, pyobj.Value(b.function(s, st.Def)))
	case StmtClass:
		cls := b.class(s, st.Class)
		s.ns.SetAttr(st.Class.Name, pyobj.Value(cls))
		if atModule {
			b.classes[st.Class.Name] = cls
		}
	}
}

// importStmt binds "import a.b" to the top package a, and "import a.b as c"
// to a.b itself.
func (b *builder) importStmt(s *scope, st *Stmt, atModule bool) {
	names := st.Names
	if len(names) == 0 {
		names = []ImportName{{Name: st.Module}}
	}
	for _, n := range names {
		full := n.Name
		if n.Alias != "" {
			s.ns.SetAttr(n.Alias, func() (*pyobj.Object, error) { return b.loader.Import(full) })
			if atModule {
				b.module.Context[n.Alias] = full
			}
			continue
		}
		top, _, _ := strings.Cut(full, ".")
		s.ns.SetAttr(top, func() (*pyobj.Object, error) {
			if _, err := b.loader.Import(full); err != nil {
				return nil, err
			}
			return b.loader.Import(top)
		})
		if atModule {
			b.module.Context[top] = top
		}
	}
}

func (b *builder) fromImport(s *scope, st *Stmt, atModule bool) {
	base, err := b.absolute(st.Module, st.Level)
	if err != nil {
		for _, n := range st.Names {
			s.ns.SetAttr(n.Bound(), pyobj.Fail(err))
		}
		return
	}
	if st.Star {
		b.starImport(s, base, atModule)
		return
	}
	for _, n := range st.Names {
		name := n.Name
		s.ns.SetAttr(n.Bound(), func() (*pyobj.Object, error) { return b.importName(base, name) })
		if atModule {
			b.module.Context[n.Bound()] = base + "." + name
		}
	}
}

// importName resolves "from base import name": an attribute of base first,
// then a submodule.
func (b *builder) importName(base, name string) (*pyobj.Object, error) {
	mod, err := b.loader.Import(base)
	if err != nil {
		return nil, err
	}
	if mod.External {
		return pyobj.NewOpaque(base + "." + name), nil
	}
	if mod.HasOwnAttr(name) {
		return mod.Attr(name)
	}
	if sub, err := b.loader.Import(base + "." + name); err == nil {
		return sub, nil
	}
	return nil, fmt.Errorf("ImportError: cannot import name '%s' from '%s'", name, base)
}

// starImport copies the public names of base eagerly, as the names are only
// known once base has been loaded.
func (b *builder) starImport(s *scope, base string, atModule bool) {
	mod, err := b.loader.Import(base)
	if err != nil {
		slog.Debug("star import failed", "module", b.module.Name, "from", base, "error", err)
		return
	}
	if mod.External {
		return
	}
	names := mod.All
	if !mod.HasAll {
		names = nil
		for _, name := range mod.AttrNames() {
			if !strings.HasPrefix(name, "_") {
				names = append(names, name)
			}
		}
	}
	for _, name := range names {
		s.ns.SetAttr(name, func() (*pyobj.Object, error) { return mod.Attr(name) })
		if atModule {
			b.module.Context[name] = base + "." + name
		}
	}
}

// absolute turns a relative module reference into a dotted name.
func (b *builder) absolute(module string, level int) (string, error) {
	if level == 0 {
		return module, nil
	}
	pkg := b.module.Name
	if !b.isPackage {
		pkg, _ = splitLast(pkg)
	}
	for i := 1; i < level; i++ {
		if pkg == "" {
			break
		}
		pkg, _ = splitLast(pkg)
	}
	if pkg == "" {
		return "", fmt.Errorf("ImportError: attempted relative import beyond top-level package in %s", b.module.Name)
	}
	if module == "" {
		return pkg, nil
	}
	return pkg + "." + module, nil
}

func (b *builder) setAll(value *Expr) {
	if value == nil || (value.Kind != ExprList && value.Kind != ExprTuple) {
		return
	}
	b.module.All = stringItems(value)
	b.module.HasAll = true
}

func stringItems(e *Expr) []string {
	if e == nil {
		return nil
	}
	out := []string{}
	for _, item := range e.Items {
		if item.Kind == ExprStr {
			out = append(out, item.Text)
		}
	}
	return out
}

func (b *builder) function(s *scope, def *FuncDecl) *pyobj.Object {
	for _, d := range propertyDecorators {
		if (&pyobj.Function{Decorators: def.Decorators}).HasDecorator(d) {
			return pyobj.NewProperty(s.qual + def.Name)
		}
	}
	return pyobj.NewFunction(s.qual+def.Name, b.module, b.signature(s, def))
}

func (b *builder) signature(s *scope, def *FuncDecl) *pyobj.Function {
	fn := &pyobj.Function{
		Annotations:      map[string]string{},
		Doc:              def.Doc,
		SignatureComment: def.TypeComment,
		Decorators:       def.Decorators,
	}
	if def.ParamErr != "" {
		fn.SignatureErr = fmt.Errorf("ValueError: %s", def.ParamErr)
		return fn
	}
	for _, p := range def.Params {
		param := pyobj.Param{Name: p.Name, Kind: p.Kind}
		if p.Default != nil {
			param.HasDefault = true
			param.Default = b.eval(s, p.Default)
		}
		if p.Annotation != "" {
			fn.Annotations[p.Name] = p.Annotation
		}
		if p.TypeComment != "" {
			if fn.ParamComments == nil {
				fn.ParamComments = map[string]string{}
			}
			fn.ParamComments[p.Name] = p.TypeComment
		}
		fn.Params = append(fn.Params, param)
	}
	if def.Returns != "" {
		fn.Annotations["return"] = def.Returns
	}
	return fn
}

func (b *builder) class(s *scope, decl *ClassDecl) *pyobj.Object {
	cls := pyobj.NewClass(s.qual+decl.Name, b.module)
	for _, base := range decl.Bases {
		cls.AddBase(b.eval(s, base))
	}
	if s.outer == nil {
		b.module.Context[decl.Name] = b.module.Name + "." + decl.Name
	}
	body := &scope{ns: cls, outer: moduleScope(s), qual: s.qual + decl.Name + "."}
	for i := range decl.Body {
		b.stmt(body, &decl.Body[i])
	}
	return cls
}

func moduleScope(s *scope) *scope {
	for s.outer != nil {
		s = s.outer
	}
	return s
}

// eval returns a getter for the value of e as bound now. Names are looked up
// immediately, so a later rebinding does not change what was captured.
func (b *builder) eval(s *scope, e *Expr) pyobj.Getter {
	if e == nil {
		return pyobj.Value(pyobj.NewOpaque(""))
	}
	switch e.Kind {
	case ExprNone:
		return pyobj.Value(pyobj.NewNone())
	case ExprBool:
		return pyobj.Value(pyobj.NewScalar(pyobj.KindBool))
	case ExprInt:
		return pyobj.Value(pyobj.NewScalar(pyobj.KindInt))
	case ExprFloat:
		return pyobj.Value(pyobj.NewScalar(pyobj.KindFloat))
	case ExprComplex:
		return pyobj.Value(pyobj.NewScalar(pyobj.KindComplex))
	case ExprStr:
		return pyobj.Value(pyobj.NewScalar(pyobj.KindStr))
	case ExprBytes:
		return pyobj.Value(pyobj.NewScalar(pyobj.KindBytes))
	case ExprName:
		return b.name(s, e.Ref)
	case ExprList, ExprTuple, ExprSet:
		return b.sequence(containerKind(e.Kind), b.evalAll(s, e.Items))
	case ExprDict:
		keys, values := b.evalAll(s, e.Keys), b.evalAll(s, e.Values)
		return func() (*pyobj.Object, error) {
			k, err := resolveAll(keys)
			if err != nil {
				return nil, err
			}
			v, err := resolveAll(values)
			if err != nil {
				return nil, err
			}
			return pyobj.NewDict(k, v), nil
		}
	case ExprCall:
		return b.call(s, e)
	case ExprLambda:
		return pyobj.Value(pyobj.NewFunction("<lambda>", b.module, b.signature(s, e.Lambda)))
	}
	return pyobj.Value(pyobj.NewOpaque(e.Text))
}

// name resolves a dotted reference, looking the first segment up in scope
// and then among the builtins.
func (b *builder) name(s *scope, ref string) pyobj.Getter {
	segments := strings.Split(ref, ".")
	g, ok := s.lookup(segments[0])
	switch {
	case ok:
	case pyobj.IsBuiltinTypeName(segments[0]):
		g = pyobj.Value(pyobj.NewBuiltinType(segments[0]))
	case builtinNames[segments[0]]:
		g = pyobj.Value(pyobj.NewOpaque("builtins." + segments[0]))
	default:
		return pyobj.Fail(fmt.Errorf("NameError: name '%s' is not defined", segments[0]))
	}
	for _, seg := range segments[1:] {
		g = attrOf(g, seg)
	}
	return g
}

func attrOf(g pyobj.Getter, name string) pyobj.Getter {
	return func() (*pyobj.Object, error) {
		obj, err := g()
		if err != nil {
			return nil, err
		}
		switch {
		case obj.Kind == pyobj.KindModule && obj.External:
			return pyobj.NewOpaque(obj.Name + "." + name), nil
		case obj.Kind == pyobj.KindOpaque:
			return pyobj.NewOpaque(obj.Ref + "." + name), nil
		}
		return obj.Attr(name)
	}
}

// call recognises constructors of builtin containers and the descriptor
// factories; any other call yields a value of unknown type.
func (b *builder) call(s *scope, e *Expr) pyobj.Getter {
	switch e.Ref {
	case "property":
		return pyobj.Value(pyobj.NewProperty(""))
	case "staticmethod", "classmethod":
		if _, shadowed := s.lookup(e.Ref); !shadowed && len(e.Items) == 1 {
			return markDescriptor(b.eval(s, e.Items[0]), e.Ref)
		}
	case "list", "tuple", "set", "frozenset":
		if _, shadowed := s.lookup(e.Ref); shadowed {
			break
		}
		kind := map[string]pyobj.Kind{
			"list": pyobj.KindList, "tuple": pyobj.KindTuple,
			"set": pyobj.KindSet, "frozenset": pyobj.KindFrozenSet,
		}[e.Ref]
		var items []pyobj.Getter
		if len(e.Items) == 1 {
			switch arg := e.Items[0]; arg.Kind {
			case ExprList, ExprTuple, ExprSet:
				items = b.evalAll(s, arg.Items)
			default:
				return pyobj.Value(pyobj.NewOpaque(e.Text))
			}
		}
		return b.sequence(kind, items)
	case "dict":
		if _, shadowed := s.lookup(e.Ref); !shadowed && len(e.Items) == 0 {
			return pyobj.Value(pyobj.NewDict(nil, nil))
		}
	}
	return pyobj.Value(pyobj.NewOpaque(e.Text))
}

// markDescriptor returns a copy of the wrapped function carrying decorator,
// as if it had been applied with @.
func markDescriptor(g pyobj.Getter, decorator string) pyobj.Getter {
	return func() (*pyobj.Object, error) {
		obj, err := g()
		if err != nil || obj == nil || obj.Kind != pyobj.KindFunction || obj.Func == nil {
			return obj, err
		}
		fn := *obj.Func
		fn.Decorators = append(append([]string(nil), fn.Decorators...), decorator)
		return pyobj.NewFunction(obj.Name, obj.Module, &fn), nil
	}
}

func (b *builder) sequence(kind pyobj.Kind, items []pyobj.Getter) pyobj.Getter {
	return func() (*pyobj.Object, error) {
		resolved, err := resolveAll(items)
		if err != nil {
			return nil, err
		}
		return pyobj.NewSequence(kind, resolved...), nil
	}
}

func (b *builder) evalAll(s *scope, exprs []*Expr) []pyobj.Getter {
	out := make([]pyobj.Getter, len(exprs))
	for i, e := range exprs {
		out[i] = b.eval(s, e)
	}
	return out
}

func resolveAll(getters []pyobj.Getter) ([]*pyobj.Object, error) {
	out := make([]*pyobj.Object, 0, len(getters))
	for _, g := range getters {
		obj, err := g()
		if err != nil {
			return nil, err
		}
		out = append(out, obj)
	}
	return out, nil
}

func containerKind(k ExprKind) pyobj.Kind {
	switch k {
	case ExprTuple:
		return pyobj.KindTuple
	case ExprSet:
		return pyobj.KindSet
	}
	return pyobj.KindList
}

// builtinNames are builtins that are not types; referencing them yields an
// opaque value instead of a NameError.
var builtinNames = map[string]bool{
	"abs": true, "all": true, "any": true, "callable": true, "classmethod": true,
	"dir": true, "enumerate": true, "filter": true, "getattr": true, "hasattr": true,
	"id": true, "isinstance": true, "issubclass": true, "iter": true, "len": true,
	"map": true, "max": true, "min": true, "next": true, "open": true, "print": true,
	"property": true, "repr": true, "reversed": true, "round": true, "setattr": true,
	"sorted": true, "staticmethod": true, "sum": true, "super": true, "vars": true,
	"zip": true, "NotImplemented": true, "Ellipsis": true, "__name__": true, "__file__": true,
	"BaseException": true, "Exception": true, "ValueError": true, "TypeError": true,
	"KeyError": true, "IndexError": true, "RuntimeError": true, "AttributeError": true,
	"LookupError": true, "NotImplementedError": true, "OSError": true, "IOError": true,
	"ImportError": true, "StopIteration": true, "Warning": true, "DeprecationWarning": true,
	"UserWarning": true,
}
