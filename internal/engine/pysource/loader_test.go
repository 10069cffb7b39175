package pysource

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"apisurface/internal/core/model"
	"apisurface/internal/engine/pyobj"
	"apisurface/internal/engine/traverse"
	"apisurface/internal/engine/typeres"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// shapesTree writes a small package with a circular import, relative imports,
// an external import and a broken submodule.
func shapesTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeFile(t, root, "shapes/__init__.py", `"""Shapes."""
from .core import Shape, area
from . import util
__all__ = ["Shape", "area", "util", "VERSION"]
VERSION = "1.0"
_internal = True
`)
	writeFile(t, root, "shapes/core.py", `import os
from typing import List
from shapes import util


class Shape(object):
    sides: int = 0

    def __init__(self, name: str, sides=3):
        self.name = name

    @property
    def label(self):
        return self.name

    def scale(self, factor):
        # type: (float) -> Shape
        return self


def area(shape, precision=2) -> float:
    return 0.0


Shape.kind = "polygon"
TAGS = ["a", "b"]
`)
	writeFile(t, root, "shapes/util.py", `from shapes.core import Shape


def clamp(value: int, low: int = 0, *, high: int = 10) -> int:
    return value


DEFAULTS = {"low": 0}
`)
	writeFile(t, root, "shapes/extra/__init__.py", "NAME = 'extra'\n")
	writeFile(t, root, "shapes/broken.py", "from .missing import thing\n")
	return root
}

func newLoader(t *testing.T, root string) *Loader {
	t.Helper()
	l, err := NewLoader(Options{SearchPaths: []string{root}})
	require.NoError(t, err)
	t.Cleanup(l.Close)
	return l
}

func attr(t *testing.T, obj *pyobj.Object, names ...string) *pyobj.Object {
	t.Helper()
	for _, name := range names {
		next, err := obj.Attr(name)
		require.NoError(t, err, "attribute %s of %s", name, obj)
		obj = next
	}
	return obj
}

func TestLoader_ImportsPackage(t *testing.T) {
	l := newLoader(t, shapesTree(t))

	shapes, err := l.Import("shapes")
	require.NoError(t, err)
	assert.Equal(t, pyobj.KindModule, shapes.Kind)
	assert.True(t, shapes.HasAll)
	assert.Equal(t, []string{"Shape", "area", "util", "VERSION"}, shapes.All)

	shape := attr(t, shapes, "Shape")
	assert.Equal(t, pyobj.KindClass, shape.Kind)
	assert.Equal(t, "Shape", shape.Name)
	assert.Same(t, attr(t, shapes, "core", "Shape"), shape)
	assert.Same(t, attr(t, shapes, "util", "Shape"), shape, "circular import yields the same class")

	assert.Equal(t, pyobj.KindProperty, attr(t, shape, "label").Kind)
	assert.Equal(t, pyobj.KindStr, attr(t, shape, "kind").Kind)
	assert.Equal(t, "int", shape.Annotations["sides"])

	init := attr(t, shape, "__init__")
	require.Equal(t, pyobj.KindFunction, init.Kind)
	assert.Equal(t, "Shape.__init__", init.Name)
	require.Len(t, init.Func.Params, 3)
	assert.True(t, init.Func.Params[2].HasDefault)
}

func TestLoader_ExternalAndMissingModules(t *testing.T) {
	l := newLoader(t, shapesTree(t))

	core, err := l.Import("shapes.core")
	require.NoError(t, err)
	osMod := attr(t, core, "os")
	assert.True(t, osMod.External)
	list := attr(t, core, "List")
	assert.Equal(t, pyobj.KindOpaque, list.Kind)
	assert.Equal(t, "typing.List", list.Ref)
	assert.Equal(t, "typing.List", core.Context["List"])
	assert.Equal(t, "shapes.core.Shape", core.Context["Shape"])

	broken, err := l.Import("shapes.broken")
	require.NoError(t, err)
	_, err = broken.Attr("thing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "No module named 'shapes.missing'")

	_, err = l.Import("shapes.nowhere")
	require.Error(t, err)

	ext, err := l.Import("numpy.linalg")
	require.NoError(t, err)
	assert.True(t, ext.External)
	assert.False(t, l.IsLocal("numpy"))
	assert.True(t, l.IsLocal("shapes.core"))
}

func TestLoader_BindsSubmodulesLazily(t *testing.T) {
	l := newLoader(t, shapesTree(t))
	shapes, err := l.Import("shapes")
	require.NoError(t, err)

	assert.True(t, shapes.HasOwnAttr("extra"))
	before := l.Stats().Modules
	extra := attr(t, shapes, "extra")
	assert.Equal(t, "shapes.extra", extra.Name)
	assert.Greater(t, l.Stats().Modules, before)
}

func TestLoader_ReusesParsedFiles(t *testing.T) {
	root := shapesTree(t)
	l := newLoader(t, root)

	_, err := l.Import("shapes.util")
	require.NoError(t, err)
	parsed := l.Stats().Parsed
	require.Greater(t, parsed, 0)

	l.Reset()
	_, err = l.Import("shapes.util")
	require.NoError(t, err)
	assert.Equal(t, parsed, l.Stats().Parsed)
	assert.Greater(t, l.Stats().CacheHits, 0)
}

func TestLoader_StarImportHonoursAll(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "pkg/__init__.py", "from .impl import *\n")
	writeFile(t, root, "pkg/impl.py", `__all__ = ["exported"]
__all__ += ["also"]
def exported(): pass
def also(): pass
def hidden(): pass
`)
	l := newLoader(t, root)
	pkg, err := l.Import("pkg")
	require.NoError(t, err)
	assert.True(t, pkg.HasOwnAttr("exported"))
	assert.True(t, pkg.HasOwnAttr("also"))
	assert.False(t, pkg.HasOwnAttr("hidden"))
}

func TestLoader_ValueCapture(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "vals.py", `LIMIT = 5
ALIAS = LIMIT
LIMIT = "five"
MISSING = undefined_name
SEQ = tuple([1, 2])
OPT = None
del OPT
`)
	l := newLoader(t, root)
	vals, err := l.Import("vals")
	require.NoError(t, err)

	assert.Equal(t, pyobj.KindInt, attr(t, vals, "ALIAS").Kind)
	assert.Equal(t, pyobj.KindStr, attr(t, vals, "LIMIT").Kind)
	assert.Equal(t, pyobj.KindTuple, attr(t, vals, "SEQ").Kind)
	assert.False(t, vals.HasOwnAttr("OPT"))

	_, err = vals.Attr("MISSING")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NameError")
}

func TestLoader_RelativeImportBeyondTopLevel(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "solo.py", "from .. import nothing\n")
	l := newLoader(t, root)
	solo, err := l.Import("solo")
	require.NoError(t, err)
	_, err = solo.Attr("nothing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "beyond top-level package")
}

func TestLoader_ExtractEndToEnd(t *testing.T) {
	l := newLoader(t, shapesTree(t))
	shapes, err := l.Import("shapes")
	require.NoError(t, err)

	surface, err := traverse.Extract(shapes, traverse.Options{AllFilter: true})
	require.NoError(t, err)
	assert.Equal(t, "shapes", surface.Path)

	byName := map[string]model.Node{}
	for _, n := range surface.Body {
		byName[n.NodeName()] = n
	}
	require.Len(t, byName, 4)
	assert.Equal(t, &model.Var{Name: "VERSION", Type: "str"}, byName["VERSION"])

	area, ok := byName["area"].(*model.Func)
	require.True(t, ok)
	assert.Equal(t, "float", area.Returns)
	assert.Equal(t, []model.Arg{
		{Name: "shape", Type: model.UnknownType, Kind: model.PositionalOrKeyword},
		{Name: "precision", Type: "int", Kind: model.PositionalOrKeyword | model.Default},
	}, area.Args)

	shape, ok := byName["Shape"].(*model.Class)
	require.True(t, ok)
	assert.Equal(t, "shapes.Shape", shape.Path)
	members := map[string]model.Node{}
	for _, n := range shape.Body {
		members[n.NodeName()] = n
	}
	assert.Contains(t, members, "__init__")
	assert.Equal(t, &model.Var{Name: "label", Type: model.UnknownType}, members["label"])
	assert.Equal(t, &model.Var{Name: "sides", Type: "int"}, members["sides"])

	scale, ok := members["scale"].(*model.Func)
	require.True(t, ok)
	assert.Equal(t, "shapes.core.Shape", scale.Returns)
	require.Len(t, scale.Args, 1)
	assert.Equal(t, "float", scale.Args[0].Type)

	util, ok := byName["util"].(*model.Module)
	require.True(t, ok)
	assert.Equal(t, "shapes.util", util.Path)
}

func TestLoader_TypeCommentsFollowTheirParameter(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "hooks.py", `def register(cb=lambda a, b: a,  # type: Callable[[int, int], int]
             n=0,  # type: int
             ):
    # type: (...) -> None
    pass
`)
	l := newLoader(t, root)
	hooks, err := l.Import("hooks")
	require.NoError(t, err)
	fn := attr(t, hooks, "register").Func
	require.NotNil(t, fn)
	require.Len(t, fn.Params, 2)

	r := typeres.New(hooks.Context)
	assert.Equal(t, "typing.Callable[[int, int], int]", r.ParamType(fn, fn.Params[0]))
	assert.Equal(t, "int", r.ParamType(fn, fn.Params[1]))
	assert.Equal(t, "None", r.ReturnType(fn))
}

func TestLoader_IgnoredSubmodulesAreNotBound(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, ".gitignore", "vendored/\n*_local.py\n")
	writeFile(t, root, "app/__init__.py", "")
	writeFile(t, root, "app/api.py", "def run(): pass\n")
	writeFile(t, root, "app/settings_local.py", "DEBUG = True\n")
	writeFile(t, root, "app/vendored/__init__.py", "")

	l := newLoader(t, root)
	app, err := l.Import("app")
	require.NoError(t, err)
	assert.True(t, app.HasOwnAttr("api"))
	assert.False(t, app.HasOwnAttr("settings_local"))
	assert.False(t, app.HasOwnAttr("vendored"))
}

func TestSourceFiles_HonoursGitignore(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, ".gitignore", "# generated code\ngen/\n*_pb2.py\n")
	writeFile(t, root, "pkg/__init__.py", "")
	writeFile(t, root, "pkg/api_pb2.py", "")
	writeFile(t, root, "pkg/core.py", "")
	writeFile(t, root, "gen/out.py", "")
	writeFile(t, root, "pkg/__pycache__/core.py", "")
	writeFile(t, root, "README.md", "")

	files, err := SourceFiles(root)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join("pkg", "__init__.py"),
		filepath.Join("pkg", "core.py"),
	}, files)
}

func TestIgnore_Match(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, ".gitignore", "vendored/\n")
	ig := LoadIgnore(root)
	assert.True(t, ig.Match(filepath.Join(root, "vendored"), true))
	assert.True(t, ig.Match(filepath.Join(root, "vendored", "x.py"), false))
	assert.False(t, ig.Match(filepath.Join(root, "vendored"), false))
	assert.False(t, ig.Match(filepath.Join(filepath.Dir(root), "vendored", "x.py"), false))
	assert.False(t, LoadIgnore(t.TempDir()).Match("anything.py", false))

	var none *Ignore
	assert.False(t, none.Match("x.py", false))
}

func TestLoader_DescriptorCallsKeepTheirMarker(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "tools.py", `def helper(x, y):
    return x


class Tools:
    g = staticmethod(helper)
    h = classmethod(helper)
`)
	l := newLoader(t, root)
	tools, err := l.Import("tools")
	require.NoError(t, err)
	assert.True(t, attr(t, tools, "Tools", "g").Func.HasDecorator("staticmethod"))
	assert.False(t, attr(t, tools, "helper").Func.HasDecorator("staticmethod"))

	surface, err := traverse.Extract(tools, traverse.DefaultOptions())
	require.NoError(t, err)
	var cls *model.Class
	for _, n := range surface.Body {
		if c, ok := n.(*model.Class); ok && c.Name == "Tools" {
			cls = c
		}
	}
	require.NotNil(t, cls)
	args := map[string][]string{}
	for _, n := range cls.Body {
		if fn, ok := n.(*model.Func); ok {
			for _, a := range fn.Args {
				args[fn.Name] = append(args[fn.Name], a.Name)
			}
		}
	}
	assert.Equal(t, []string{"x", "y"}, args["g"])
	assert.Equal(t, []string{"y"}, args["h"])
}
