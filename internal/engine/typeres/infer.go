package typeres

import (
	"strings"

	"apisurface/internal/core/model"
	"apisurface/internal/engine/pyobj"
)

const maxInferDepth = 8

// ValueType infers a type expression from a runtime value.
func (r *Resolver) ValueType(obj *pyobj.Object) string {
	return r.valueType(obj, 0)
}

func (r *Resolver) valueType(obj *pyobj.Object, depth int) string {
	if obj == nil || depth > maxInferDepth {
		return model.AnyType
	}
	switch obj.Kind {
	case pyobj.KindNone:
		return model.NoneType
	case pyobj.KindBool, pyobj.KindInt, pyobj.KindFloat, pyobj.KindComplex, pyobj.KindStr, pyobj.KindBytes:
		return obj.Kind.String()
	case pyobj.KindList:
		return "typing.List[" + r.firstItem(obj.Items, depth) + "]"
	case pyobj.KindSet:
		return "typing.Set[" + r.firstItem(obj.Items, depth) + "]"
	case pyobj.KindFrozenSet:
		return "typing.FrozenSet[" + r.firstItem(obj.Items, depth) + "]"
	case pyobj.KindTuple:
		return "typing.Tuple[" + r.firstItem(obj.Items, depth) + ", ...]"
	case pyobj.KindDict:
		return "typing.Dict[" + r.firstItem(obj.Keys, depth) + ", " + r.firstItem(obj.Values, depth) + "]"
	case pyobj.KindFunction:
		return r.callableType(obj, depth)
	}
	return model.AnyType
}

func (r *Resolver) firstItem(items []*pyobj.Object, depth int) string {
	if len(items) == 0 {
		return model.AnyType
	}
	return r.valueType(items[0], depth+1)
}

// callableType renders typing.Callable[[P...], R] from the callable's own evidence.
func (r *Resolver) callableType(obj *pyobj.Object, depth int) string {
	fn := obj.Func
	if fn == nil || fn.SignatureErr != nil {
		return "typing.Callable[..., typing.Any]"
	}
	fr := r.For(obj.Module)
	var params []string
	for _, p := range fn.Params {
		if p.Kind == pyobj.ParamVarPositional || p.Kind == pyobj.ParamVarKeyword {
			continue
		}
		params = append(params, concrete(fr.paramType(fn, p, depth+1)))
	}
	return "typing.Callable[[" + strings.Join(params, ", ") + "], " + concrete(fr.ReturnType(fn)) + "]"
}

// concrete replaces the no-evidence sentinel, which is not valid inside an expression.
func concrete(t string) string {
	if t == model.UnknownType {
		return model.AnyType
	}
	return t
}
