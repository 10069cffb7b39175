package typeres

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"apisurface/internal/core/model"
	"apisurface/internal/engine/pyobj"
)

func TestNormalise(t *testing.T) {
	r := New(map[string]string{
		"np":   "numpy",
		"Node": "pkg.tree.Node",
		"Seq":  "typing.Sequence",
	})
	tests := []struct {
		in, want string
	}{
		{"List[int]", "typing.List[int]"},
		{"Dict[str, Node]", "typing.Dict[str, pkg.tree.Node]"},
		{"np.ndarray", "numpy.ndarray"},
		{"Seq[int]", "typing.Sequence[int]"},
		{"'Node'", "pkg.tree.Node"},
		{"Optional['Node']", "typing.Optional[pkg.tree.Node]"},
		{"Literal['Node', 1]", "typing.Literal['Node', 1]"},
		{"int | None", "typing.Union[int, None]"},
		{"Callable[[int, str], bool]", "typing.Callable[[int, str], bool]"},
		{"Unresolved", "Unresolved"},
		{"not a type!", model.AnyType},
		{"", model.UnknownType},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, r.Normalise(tt.in), "Normalise(%q)", tt.in)
	}
}

func TestValueType(t *testing.T) {
	r := New(nil)
	str := pyobj.NewScalar(pyobj.KindStr)
	tests := []struct {
		name string
		obj  *pyobj.Object
		want string
	}{
		{"int", pyobj.NewScalar(pyobj.KindInt), "int"},
		{"bool", pyobj.NewScalar(pyobj.KindBool), "bool"},
		{"complex", pyobj.NewScalar(pyobj.KindComplex), "complex"},
		{"none", pyobj.NewNone(), "None"},
		{"list", pyobj.NewSequence(pyobj.KindList, str), "typing.List[str]"},
		{"empty list", pyobj.NewSequence(pyobj.KindList), "typing.List[typing.Any]"},
		{"empty set", pyobj.NewSequence(pyobj.KindSet), "typing.Set[typing.Any]"},
		{"tuple", pyobj.NewSequence(pyobj.KindTuple, pyobj.NewScalar(pyobj.KindFloat), str), "typing.Tuple[float, ...]"},
		{"empty tuple", pyobj.NewSequence(pyobj.KindTuple), "typing.Tuple[typing.Any, ...]"},
		{"empty dict", pyobj.NewDict(nil, nil), "typing.Dict[typing.Any, typing.Any]"},
		{"dict", pyobj.NewDict([]*pyobj.Object{str}, []*pyobj.Object{pyobj.NewSequence(pyobj.KindList)}), "typing.Dict[str, typing.List[typing.Any]]"},
		{"bytes", pyobj.NewScalar(pyobj.KindBytes), "bytes"},
		{"opaque", pyobj.NewOpaque("os.environ"), model.AnyType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.ValueType(tt.obj))
		})
	}
}

func TestValueType_Callable(t *testing.T) {
	mod := pyobj.NewModule("pkg")
	fn := &pyobj.Function{
		Params: []pyobj.Param{
			{Name: "a", Kind: pyobj.ParamPositionalOrKeyword},
			{Name: "b", Kind: pyobj.ParamPositionalOrKeyword},
			{Name: "rest", Kind: pyobj.ParamVarPositional},
		},
		Annotations: map[string]string{"a": "int", "return": "List[str]"},
	}
	obj := pyobj.NewFunction("f", mod, fn)
	assert.Equal(t, "typing.Callable[[int, typing.Any], typing.List[str]]", New(nil).ValueType(obj))

	broken := pyobj.NewFunction("g", mod, &pyobj.Function{SignatureErr: errors.New("bad")})
	assert.Equal(t, "typing.Callable[..., typing.Any]", New(nil).ValueType(broken))
}

func TestParamType_EvidenceOrder(t *testing.T) {
	// Three types for five params: the signature comment does not line up.
	fn := &pyobj.Function{
		Params: []pyobj.Param{
			{Name: "a", Kind: pyobj.ParamPositionalOrKeyword},
			{Name: "b", Kind: pyobj.ParamPositionalOrKeyword},
			{Name: "c", Kind: pyobj.ParamPositionalOrKeyword, HasDefault: true, Default: pyobj.Value(pyobj.NewNone())},
			{Name: "d", Kind: pyobj.ParamPositionalOrKeyword, HasDefault: true, Default: pyobj.Value(pyobj.NewScalar(pyobj.KindInt))},
			{Name: "e", Kind: pyobj.ParamPositionalOrKeyword, HasDefault: true, Default: pyobj.Value(pyobj.NewSequence(pyobj.KindList))},
		},
		Annotations:      map[string]string{"a": "float"},
		Doc:              "Do it.\n\nArgs:\n    b (Dict[str, int]): mapping\n        more text\n",
		SignatureComment: "(int, str, ...) -> bool",
	}
	r := New(nil)
	got := make([]string, 0, len(fn.Params))
	for _, p := range fn.Params {
		got = append(got, r.ParamType(fn, p))
	}
	assert.Equal(t, []string{
		"float",
		"typing.Dict[str, int]",
		"typing.Optional[typing.Any]",
		"int",
		"typing.List[typing.Any]",
	}, got)
	assert.Equal(t, "bool", r.ReturnType(fn))
}

func TestParamType_SignatureComment(t *testing.T) {
	fn := &pyobj.Function{
		Params: []pyobj.Param{
			{Name: "self", Kind: pyobj.ParamPositionalOrKeyword},
			{Name: "a", Kind: pyobj.ParamPositionalOrKeyword},
			{Name: "args", Kind: pyobj.ParamVarPositional},
			{Name: "kwargs", Kind: pyobj.ParamVarKeyword},
		},
		Annotations:      map[string]string{"a": "float"},
		SignatureComment: "(List[int], *str, **Any) -> None",
	}
	r := New(nil)
	assert.Equal(t, model.UnknownType, r.ParamType(fn, fn.Params[0]))
	assert.Equal(t, "typing.List[int]", r.ParamType(fn, fn.Params[1]))
	assert.Equal(t, "str", r.ParamType(fn, fn.Params[2]))
	assert.Equal(t, "typing.Any", r.ParamType(fn, fn.Params[3]))
	assert.Equal(t, "None", r.ReturnType(fn))
}

func TestParamType_PerParameterComments(t *testing.T) {
	fn := &pyobj.Function{
		Params: []pyobj.Param{
			{Name: "a", Kind: pyobj.ParamPositionalOrKeyword},
			{Name: "b", Kind: pyobj.ParamPositionalOrKeyword},
			{Name: "c", Kind: pyobj.ParamPositionalOrKeyword},
		},
		ParamComments:    map[string]string{"a": "int", "b": "Optional[str]"},
		SignatureComment: "(...) -> Dict[str, int]",
	}
	r := New(nil)
	assert.Equal(t, "int", r.ParamType(fn, fn.Params[0]))
	assert.Equal(t, "typing.Optional[str]", r.ParamType(fn, fn.Params[1]))
	assert.Equal(t, model.UnknownType, r.ParamType(fn, fn.Params[2]))
	assert.Equal(t, "typing.Dict[str, int]", r.ReturnType(fn))
}

func TestReturnType_Docstring(t *testing.T) {
	r := New(nil)
	yields := &pyobj.Function{Doc: "Counts.\n\nYields:\n    int: the next number\n"}
	assert.Equal(t, "typing.Iterable[int]", r.ReturnType(yields))

	returns := &pyobj.Function{Doc: "Returns:\n  Dict[str, int]: counts by name\n"}
	assert.Equal(t, "typing.Dict[str, int]", r.ReturnType(returns))

	none := &pyobj.Function{Doc: "No sections here."}
	assert.Equal(t, model.UnknownType, r.ReturnType(none))
}

func TestParamType_DefaultRetrievalFails(t *testing.T) {
	fn := &pyobj.Function{Params: []pyobj.Param{
		{Name: "x", Kind: pyobj.ParamKeywordOnly, HasDefault: true, Default: pyobj.Fail(errors.New("NameError"))},
	}}
	assert.Equal(t, model.UnknownType, New(nil).ParamType(fn, fn.Params[0]))
}

func TestAttrType_AnnotationWins(t *testing.T) {
	mod := pyobj.NewModule("pkg")
	mod.Annotations["limit"] = "Optional[int]"
	r := New(mod.Context)
	assert.Equal(t, "typing.Optional[int]", r.AttrType(mod, "limit", pyobj.NewNone()))
	assert.Equal(t, "str", r.AttrType(mod, "name", pyobj.NewScalar(pyobj.KindStr)))
}

func TestAttrType_InheritedAnnotation(t *testing.T) {
	other := pyobj.NewModule("other")
	other.Context["Node"] = "other.tree.Node"
	base := pyobj.NewClass("Base", other)
	base.Annotations["x"] = "int"
	base.Annotations["root"] = "Optional[Node]"

	mod := pyobj.NewModule("pkg")
	mod.Context["Node"] = "pkg.Node"
	derived := pyobj.NewClass("Derived", mod)
	derived.AddBase(pyobj.Value(base))

	r := New(mod.Context)
	assert.Equal(t, "int", r.AttrType(derived, "x", pyobj.NewScalar(pyobj.KindBool)))
	assert.Equal(t, "typing.Optional[other.tree.Node]", r.AttrType(derived, "root", pyobj.NewNone()))
	assert.Equal(t, "str", r.AttrType(derived, "label", pyobj.NewScalar(pyobj.KindStr)))
}

func TestParseDocstring_Optional(t *testing.T) {
	ev := parseDocstring("Args:\n    path (str, optional): where\n    *rest (int): extra\n")
	assert.Equal(t, "str", ev.params["path"])
	assert.Equal(t, "int", ev.params["rest"])
}
