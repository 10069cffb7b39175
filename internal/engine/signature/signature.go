// Package signature turns a callable of the object graph into surface Args.
package signature

import (
	"fmt"

	"apisurface/internal/core/model"
	"apisurface/internal/engine/pyobj"
	"apisurface/internal/engine/typeres"
)

// CatchAll is the argument list reported when a signature cannot be read.
func CatchAll() []model.Arg {
	return []model.Arg{
		{Name: "args", Type: model.AnyType, Kind: model.VarPositional},
		{Name: "kwargs", Type: model.AnyType, Kind: model.VarKeyword},
	}
}

// Reader reads signatures, resolving types through Types.
type Reader struct {
	Types *typeres.Resolver
}

func NewReader(types *typeres.Resolver) *Reader {
	if types == nil {
		types = typeres.New(nil)
	}
	return &Reader{Types: types}
}

// Read returns the arguments and return type of fn. For methods the receiver
// is stripped unless fn is a staticmethod. On failure the catch-all arguments
// and typing.Any are returned together with the error.
func (r *Reader) Read(fn *pyobj.Object, isMethod bool) ([]model.Arg, string, error) {
	if fn == nil || fn.Func == nil {
		return CatchAll(), model.AnyType, fmt.Errorf("no signature for %s", fn)
	}
	f := fn.Func
	if f.SignatureErr != nil {
		return CatchAll(), model.AnyType, fmt.Errorf("signature of %s: %w", fn.Name, f.SignatureErr)
	}
	if err := validate(f.Params); err != nil {
		return CatchAll(), model.AnyType, fmt.Errorf("signature of %s: %w", fn.Name, err)
	}

	types := r.Types.For(fn.Module)
	params := f.Params
	if isMethod && !f.HasDecorator("staticmethod") && len(params) > 0 && receiverCapable(params[0]) {
		params = params[1:]
	}

	args := make([]model.Arg, 0, len(params))
	for _, p := range params {
		args = append(args, model.Arg{
			Name: p.Name,
			Type: types.ParamType(f, p),
			Kind: KindOf(p),
		})
	}
	return args, types.ReturnType(f), nil
}

// KindOf maps a parameter kind to the surface bitset; DEFAULT is set iff the
// parameter has a default and is not variadic.
func KindOf(p pyobj.Param) model.ArgKind {
	var k model.ArgKind
	switch p.Kind {
	case pyobj.ParamPositionalOnly:
		k = model.PositionalOnly
	case pyobj.ParamPositionalOrKeyword:
		k = model.PositionalOrKeyword
	case pyobj.ParamKeywordOnly:
		k = model.KeywordOnly
	case pyobj.ParamVarPositional:
		return model.VarPositional
	case pyobj.ParamVarKeyword:
		return model.VarKeyword
	}
	if p.HasDefault {
		k |= model.Default
	}
	return k
}

func receiverCapable(p pyobj.Param) bool {
	return p.Kind == pyobj.ParamPositionalOnly || p.Kind == pyobj.ParamPositionalOrKeyword
}

// validate checks the ordering rules a well-formed parameter list obeys.
func validate(params []pyobj.Param) error {
	var varPos, varKw int
	last := pyobj.ParamPositionalOnly
	seen := make(map[string]bool, len(params))
	for _, p := range params {
		if p.Name == "" {
			return fmt.Errorf("unnamed parameter")
		}
		if seen[p.Name] {
			return fmt.Errorf("duplicate parameter %q", p.Name)
		}
		seen[p.Name] = true
		if p.Kind < last {
			return fmt.Errorf("parameter %q (%s) out of order", p.Name, p.Kind)
		}
		last = p.Kind
		switch p.Kind {
		case pyobj.ParamVarPositional:
			varPos++
		case pyobj.ParamVarKeyword:
			varKw++
		}
	}
	if varPos > 1 || varKw > 1 {
		return fmt.Errorf("more than one variadic parameter of a kind")
	}
	return nil
}
