package traverse

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"apisurface/internal/core/model"
	"apisurface/internal/engine/pyobj"
)

type countingObserver map[model.NodeKind]int

func (c countingObserver) NodeEmitted(kind model.NodeKind) { c[kind]++ }

func fixture() *pyobj.Object {
	mod := pyobj.NewModule("pkg")
	mod.SetAttrValue("VERSION", pyobj.NewScalar(pyobj.KindStr))
	mod.SetAttrValue("_private", pyobj.NewScalar(pyobj.KindInt))
	mod.SetAttrValue("NOTHING", pyobj.NewNone())
	mod.SetAttrValue("text_type", pyobj.NewBuiltinType("str"))
	mod.SetAttr("broken", pyobj.Fail(errors.New("ImportError: cannot import name 'broken'")))
	mod.SetAttrValue("os", pyobj.NewExternalModule("os"))
	mod.SetAttrValue("environ", pyobj.NewOpaque("os.environ"))

	cls := pyobj.NewClass("Widget", mod)
	cls.SetAttrValue("__init__", pyobj.NewFunction("Widget.__init__", mod, &pyobj.Function{
		Params: []pyobj.Param{
			{Name: "self", Kind: pyobj.ParamPositionalOrKeyword},
			{Name: "size", Kind: pyobj.ParamPositionalOrKeyword},
		},
		Annotations: map[string]string{"size": "int", "return": "None"},
	}))
	cls.SetAttrValue("area", pyobj.NewProperty("area"))
	cls.SetAttrValue("_hidden", pyobj.NewScalar(pyobj.KindInt))
	mod.SetAttrValue("Widget", cls)

	sub := pyobj.NewModule("pkg.sub")
	sub.SetAttrValue("helper", pyobj.NewFunction("helper", sub, &pyobj.Function{}))
	mod.SetAttrValue("sub", sub)
	return mod
}

func TestExtract_Classification(t *testing.T) {
	obs := countingObserver{}
	e, err := New(DefaultOptions())
	require.NoError(t, err)
	got, err := e.WithObserver(obs).Extract(fixture())
	require.NoError(t, err)

	want := model.NewModule("pkg", "pkg", []model.Node{
		&model.Var{Name: "NOTHING", Type: "None"},
		&model.Var{Name: "VERSION", Type: "str"},
		model.NewClass("Widget", "pkg.Widget", []model.Node{
			&model.Func{Name: "__init__", Args: []model.Arg{{Name: "size", Type: "int", Kind: model.PositionalOrKeyword}}, Returns: "None"},
			&model.Var{Name: "area", Type: model.UnknownType},
		}),
		&model.Unknown{Name: "broken", Info: "ImportError: cannot import name 'broken'"},
		&model.Var{Name: "environ", Type: model.AnyType},
		model.NewModule("sub", "pkg.sub", []model.Node{
			&model.Func{Name: "helper", Args: []model.Arg{}, Returns: model.UnknownType},
		}),
		&model.Var{Name: "text_type", Type: "str"},
	})
	assert.True(t, model.Equal(want, got), "unexpected surface: %+v", got)
	assert.Equal(t, 2, obs[model.KindModule])
	assert.Equal(t, 2, obs[model.KindFunc])
	assert.Equal(t, 1, obs[model.KindUnknown])
}

func TestExtract_Deterministic(t *testing.T) {
	a, err := Extract(fixture(), DefaultOptions())
	require.NoError(t, err)
	b, err := Extract(fixture(), DefaultOptions())
	require.NoError(t, err)
	assert.True(t, model.Equal(a, b))
}

func TestExtract_SelfReferentialClass(t *testing.T) {
	mod := pyobj.NewModule("m")
	cls := pyobj.NewClass("C", mod)
	cls.SetAttrValue("C", cls)
	mod.SetAttrValue("C", cls)

	got, err := Extract(mod, DefaultOptions())
	require.NoError(t, err)
	require.Len(t, got.Body, 1)
	c, ok := got.Body[0].(*model.Class)
	require.True(t, ok)
	require.Len(t, c.Body, 1)
	u, ok := c.Body[0].(*model.Unknown)
	require.True(t, ok, "expected Unknown, got %T", c.Body[0])
	assert.Contains(t, u.Info, "Circular Reference")
}

func TestExtract_DiamondIsNotACycle(t *testing.T) {
	mod := pyobj.NewModule("m")
	shared := pyobj.NewClass("Shared", mod)
	shared.SetAttrValue("x", pyobj.NewScalar(pyobj.KindInt))
	a := pyobj.NewClass("A", mod)
	a.SetAttrValue("ref", shared)
	b := pyobj.NewClass("B", mod)
	b.SetAttrValue("ref", shared)
	mod.SetAttrValue("A", a)
	mod.SetAttrValue("B", b)

	got, err := Extract(mod, DefaultOptions())
	require.NoError(t, err)
	for _, n := range got.Body {
		ref := n.(*model.Class).Body[0]
		assert.Equal(t, model.KindClass, ref.Kind(), "diamond sharing must not look circular")
	}
}

func TestExtract_DepthLimit(t *testing.T) {
	mod := pyobj.NewModule("m")
	parent := mod
	for i := 0; i < 10; i++ {
		cls := pyobj.NewClass("Level", mod)
		parent.SetAttrValue("Level", cls)
		parent = cls
	}

	got, err := Extract(mod, Options{Depth: 3})
	require.NoError(t, err)
	var node model.Node = got
	for i := 0; i < 3; i++ {
		body := model.BodyOf(node)
		require.Len(t, body, 1)
		node = body[0]
		require.Equal(t, model.KindClass, node.Kind(), "level %d", i)
	}
	last := model.BodyOf(node)
	require.Len(t, last, 1)
	u, ok := last[0].(*model.Unknown)
	require.True(t, ok)
	assert.Equal(t, "Max depth exceeded", u.Info)
}

func TestExtract_ModuleFilters(t *testing.T) {
	t.Run("exclude modules", func(t *testing.T) {
		got, err := Extract(fixture(), Options{ExcludeModules: true})
		require.NoError(t, err)
		for _, n := range got.Body {
			assert.NotEqual(t, model.KindModule, n.Kind())
		}
	})

	t.Run("all filter", func(t *testing.T) {
		mod := fixture()
		mod.All, mod.HasAll = []string{"VERSION", "Widget"}, true
		got, err := Extract(mod, Options{AllFilter: true})
		require.NoError(t, err)
		names := make([]string, 0, len(got.Body))
		for _, n := range got.Body {
			names = append(names, n.NodeName())
		}
		assert.Equal(t, []string{"VERSION", "Widget"}, names)
	})

	t.Run("glob exclude", func(t *testing.T) {
		got, err := Extract(fixture(), Options{Exclude: []string{"pkg.Widget.*", "pkg.sub"}})
		require.NoError(t, err)
		for _, n := range got.Body {
			assert.NotEqual(t, "sub", n.NodeName())
			if c, ok := n.(*model.Class); ok {
				assert.Empty(t, c.Body)
			}
		}
	})

	t.Run("invalid glob", func(t *testing.T) {
		_, err := New(Options{Exclude: []string{"pkg.["}})
		assert.Error(t, err)
	})
}

func TestExtract_InitThatIsNotAFunctionIsDropped(t *testing.T) {
	mod := pyobj.NewModule("m")
	cls := pyobj.NewClass("C", mod)
	cls.SetAttrValue("__init__", pyobj.NewScalar(pyobj.KindInt))
	mod.SetAttrValue("C", cls)

	got, err := Extract(mod, DefaultOptions())
	require.NoError(t, err)
	assert.Empty(t, got.Body[0].(*model.Class).Body)
}

func TestExtract_SignatureErrors(t *testing.T) {
	mod := pyobj.NewModule("m")
	mod.SetAttrValue("f", pyobj.NewFunction("f", mod, &pyobj.Function{SignatureErr: errors.New("bad parameters")}))

	got, err := Extract(mod, DefaultOptions())
	require.NoError(t, err)
	fn, ok := got.Body[0].(*model.Func)
	require.True(t, ok)
	assert.Len(t, fn.Args, 2)
	assert.Equal(t, model.AnyType, fn.Returns)

	got, err = Extract(mod, Options{PromoteSignatureErrors: true})
	require.NoError(t, err)
	u, ok := got.Body[0].(*model.Unknown)
	require.True(t, ok)
	assert.True(t, strings.Contains(u.Info, "bad parameters"))
}

func TestExtract_PanicBecomesUnknown(t *testing.T) {
	mod := pyobj.NewModule("m")
	mod.SetAttr("explodes", func() (*pyobj.Object, error) { panic("descriptor raised") })
	mod.SetAttrValue("fine", pyobj.NewScalar(pyobj.KindInt))

	got, err := Extract(mod, DefaultOptions())
	require.NoError(t, err)
	require.Len(t, got.Body, 2)
	assert.Equal(t, &model.Unknown{Name: "explodes", Info: "descriptor raised"}, got.Body[0])
	assert.Equal(t, &model.Var{Name: "fine", Type: "int"}, got.Body[1])
}

func TestExtract_RejectsNonModuleRoot(t *testing.T) {
	_, err := Extract(pyobj.NewScalar(pyobj.KindInt), DefaultOptions())
	assert.Error(t, err)
}
