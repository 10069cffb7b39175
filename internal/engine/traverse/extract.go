// Package traverse walks the object graph of a root module and emits its
// public surface as model nodes.
package traverse

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/gobwas/glob"

	"apisurface/internal/core/model"
	"apisurface/internal/engine/pyobj"
	"apisurface/internal/engine/signature"
	"apisurface/internal/engine/typeres"
	"apisurface/internal/shared/util"
)

const initName = "__init__"

// Observer is told about every node the extractor emits.
type Observer interface {
	NodeEmitted(kind model.NodeKind)
}

// Extractor holds one configured traversal. It keeps no state between calls.
type Extractor struct {
	opts     Options
	excludes []glob.Glob
	observer Observer
}

func New(opts Options) (*Extractor, error) {
	excludes, err := compileExcludes(opts.Exclude)
	if err != nil {
		return nil, err
	}
	return &Extractor{opts: opts, excludes: excludes}, nil
}

// WithObserver registers o to receive node counts.
func (e *Extractor) WithObserver(o Observer) *Extractor {
	e.observer = o
	return e
}

// Extract is shorthand for New(opts) followed by Extract.
func Extract(root *pyobj.Object, opts Options) (*model.Module, error) {
	e, err := New(opts)
	if err != nil {
		return nil, err
	}
	return e.Extract(root)
}

// walk is the state of one extraction.
type walk struct {
	*Extractor
	root     *pyobj.Object
	prefixes []string
	reader   *signature.Reader
}

// frame is the container being enumerated.
type frame struct {
	obj     *pyobj.Object
	path    string
	class   bool
	depth   int
	visited map[*pyobj.Object]bool
	types   *typeres.Resolver
}

// Extract returns the surface of root, which must be a module.
func (e *Extractor) Extract(root *pyobj.Object) (*model.Module, error) {
	if root == nil || root.Kind != pyobj.KindModule {
		return nil, fmt.Errorf("extract: %s is not a module", root)
	}
	w := &walk{
		Extractor: e,
		root:      root,
		prefixes:  append([]string{root.Name}, e.opts.Allowed...),
		reader:    signature.NewReader(typeres.New(root.Context)),
	}
	visited := map[*pyobj.Object]bool{root: true}
	body := w.body(frame{
		obj:     root,
		path:    root.Name,
		visited: visited,
		types:   typeres.New(root.Context),
	})
	w.emitted(model.KindModule)
	return model.NewModule(leafName(root.Name), root.Name, body), nil
}

func (w *walk) body(f frame) []model.Node {
	names := w.attributeNames(f)
	out := make([]model.Node, 0, len(names))
	for _, name := range names {
		if n := w.visit(f, name); n != nil {
			w.emitted(n.Kind())
			out = append(out, n)
		}
	}
	return out
}

// attributeNames lists the public names of a container in sorted order.
func (w *walk) attributeNames(f frame) []string {
	var allowed map[string]bool
	if w.opts.AllFilter && f.obj.HasAll {
		allowed = make(map[string]bool, len(f.obj.All))
		for _, n := range f.obj.All {
			allowed[n] = true
		}
	}
	var names []string
	for _, name := range f.obj.AttrNames() {
		public := name != "" && !strings.HasPrefix(name, "_")
		if !public && !(f.class && name == initName) {
			continue
		}
		if allowed != nil && !allowed[name] {
			continue
		}
		if w.excluded(f.path + "." + name) {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (w *walk) excluded(path string) bool {
	for _, g := range w.excludes {
		if g.Match(path) {
			return true
		}
	}
	return false
}

// visit runs CLASSIFY for one attribute. A nil result means SKIP.
func (w *walk) visit(f frame, name string) (node model.Node) {
	defer func() {
		if r := recover(); r != nil {
			node = w.unknown(f, name, fmt.Sprintf("%v", r))
		}
	}()

	value, err := f.obj.Attr(name)
	if err != nil {
		if f.class && name == initName {
			return nil
		}
		return w.unknown(f, name, err.Error())
	}
	if f.class && name == initName && !value.IsCallable() {
		return nil
	}
	return w.classify(f, name, value)
}

// classify discriminates value in a fixed order; the class check must precede
// the callable check.
func (w *walk) classify(f frame, name string, value *pyobj.Object) model.Node {
	switch {
	case value == nil || value.Kind == pyobj.KindNone:
		return &model.Var{Name: name, Type: model.NoneType}
	case value.Kind == pyobj.KindBuiltinType:
		return &model.Var{Name: name, Type: value.Name}
	case value.Kind == pyobj.KindModule:
		if w.opts.ExcludeModules || !w.allowedModule(value) {
			return nil
		}
		return w.descend(f, name, value, value.Name)
	case value.Kind == pyobj.KindClass:
		return w.descend(f, name, value, f.path+"."+name)
	case value.IsCallable():
		return w.function(f, name, value)
	case value.Kind == pyobj.KindProperty:
		return &model.Var{Name: name, Type: model.UnknownType}
	}
	return &model.Var{Name: name, Type: f.types.AttrType(f.obj, name, value)}
}

func (w *walk) allowedModule(m *pyobj.Object) bool {
	if m.External {
		return false
	}
	for _, p := range w.prefixes {
		if util.HasDottedPrefix(m.Name, p) {
			return true
		}
	}
	return false
}

// descend guards a container by identity, then by depth, and recurses with a
// copy of the visited set.
func (w *walk) descend(f frame, name string, value *pyobj.Object, path string) model.Node {
	if f.visited[value] {
		return w.unknown(f, name, "Circular Reference: "+path)
	}
	if f.depth+1 > w.opts.depth() {
		return w.unknown(f, name, "Max depth exceeded")
	}
	visited := make(map[*pyobj.Object]bool, len(f.visited)+1)
	for k := range f.visited {
		visited[k] = true
	}
	visited[value] = true

	child := frame{
		obj:     value,
		path:    path,
		class:   value.Kind == pyobj.KindClass,
		depth:   f.depth + 1,
		visited: visited,
		types:   f.types.For(value.Module),
	}
	if value.Kind == pyobj.KindModule {
		child.types = f.types.For(value)
	}
	body := w.body(child)
	if child.class {
		return model.NewClass(name, path, body)
	}
	return model.NewModule(name, path, body)
}

func (w *walk) function(f frame, name string, value *pyobj.Object) model.Node {
	args, returns, err := w.reader.Read(value, f.class)
	if err != nil {
		slog.Debug("signature unavailable", "path", f.path+"."+name, "error", err)
		if w.opts.PromoteSignatureErrors {
			return w.unknown(f, name, err.Error())
		}
	}
	return &model.Func{Name: name, Args: args, Returns: returns}
}

func (w *walk) unknown(f frame, name, info string) model.Node {
	slog.Debug("emitting unknown", "path", f.path+"."+name, "info", info)
	return &model.Unknown{Name: name, Info: info}
}

func (w *walk) emitted(kind model.NodeKind) {
	if w.observer != nil {
		w.observer.NodeEmitted(kind)
	}
}

func leafName(dotted string) string {
	if i := strings.LastIndexByte(dotted, '.'); i >= 0 {
		return dotted[i+1:]
	}
	return dotted
}
