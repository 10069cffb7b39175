// Package typeres derives canonical type expressions for parameters, return
// values and attribute values from the evidence a definition carries.
//
// Evidence is consulted strongest first: "# type:" comments, native
// annotations, Google-style docstrings, and finally the value itself.
package typeres

import (
	"apisurface/internal/core/model"
	"apisurface/internal/engine/pyobj"
)

// Resolver resolves types against one name context.
type Resolver struct {
	context map[string]string
	cache   map[*pyobj.Function]*evidence
}

type evidence struct {
	comments commentEvidence
	doc      docEvidence
}

// New returns a resolver for ctx, which maps unqualified names to dotted paths.
func New(ctx map[string]string) *Resolver {
	if ctx == nil {
		ctx = map[string]string{}
	}
	return &Resolver{context: ctx, cache: map[*pyobj.Function]*evidence{}}
}

// For returns a resolver bound to the name context of module.
func (r *Resolver) For(module *pyobj.Object) *Resolver {
	if module == nil || module.Context == nil {
		return r
	}
	return New(module.Context)
}

func (r *Resolver) evidenceOf(fn *pyobj.Function) *evidence {
	if ev, ok := r.cache[fn]; ok {
		return ev
	}
	ev := &evidence{
		comments: commentsOf(fn),
		doc:      parseDocstring(fn.Doc),
	}
	r.cache[fn] = ev
	return ev
}

// ParamType returns the type of parameter p of fn.
func (r *Resolver) ParamType(fn *pyobj.Function, p pyobj.Param) string {
	return r.paramType(fn, p, 0)
}

func (r *Resolver) paramType(fn *pyobj.Function, p pyobj.Param, depth int) string {
	if fn == nil {
		return model.UnknownType
	}
	ev := r.evidenceOf(fn)
	if t := commentParamType(ev.comments, fn.Params, p.Name); t != "" {
		return r.Normalise(t)
	}
	if t := fn.Annotations[p.Name]; t != "" {
		return r.Normalise(t)
	}
	if t := ev.doc.params[p.Name]; t != "" {
		return r.Normalise(t)
	}
	if p.HasDefault && p.Default != nil {
		v, err := p.Default()
		switch {
		case err != nil:
			return model.UnknownType
		case v != nil && v.Kind == pyobj.KindNone:
			return "typing.Optional[typing.Any]"
		default:
			return r.valueType(v, depth)
		}
	}
	return model.UnknownType
}

// ReturnType returns the declared return type of fn, or ~unknown.
func (r *Resolver) ReturnType(fn *pyobj.Function) string {
	if fn == nil {
		return model.UnknownType
	}
	ev := r.evidenceOf(fn)
	if ev.comments.hasReturn && ev.comments.returns != "" {
		return r.Normalise(ev.comments.returns)
	}
	if t := fn.Annotations["return"]; t != "" {
		return r.Normalise(t)
	}
	if ev.doc.hasReturn {
		return r.Normalise(ev.doc.returns)
	}
	return model.UnknownType
}

// AttrType types attribute name of container: a declared annotation, own or
// inherited, wins over inference from the value. Inherited annotations are
// resolved in the declaring class's module.
func (r *Resolver) AttrType(container *pyobj.Object, name string, value *pyobj.Object) string {
	if t, owner := container.Annotation(name); t != "" {
		if owner != container {
			return r.For(owner.Module).Normalise(t)
		}
		return r.Normalise(t)
	}
	return r.ValueType(value)
}

// commentParamType maps "(A, B) -> R" types onto params. A comment that omits
// the receiver lines up with the parameters after it.
func commentParamType(ev commentEvidence, params []pyobj.Param, name string) string {
	if ev.positional != nil {
		offset := -1
		switch len(ev.positional) {
		case len(params):
			offset = 0
		case len(params) - 1:
			offset = 1
		}
		if offset >= 0 {
			for i := offset; i < len(params); i++ {
				if params[i].Name == name {
					if t := ev.positional[i-offset]; t != "" {
						return t
					}
				}
			}
		}
	}
	return ev.perParam[name]
}
