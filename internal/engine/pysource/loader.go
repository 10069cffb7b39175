// Package pysource loads Python packages from source into the object graph of
// package pyobj, without running any Python.
package pysource

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"apisurface/internal/engine/pyobj"
)

const DefaultCacheSize = 512

type Options struct {
	// SearchPaths are the directories module names are resolved against.
	SearchPaths []string
	// CacheSize bounds the number of parsed files kept between loads.
	CacheSize int
}

// Stats counts parse work since the loader was created.
type Stats struct {
	Parsed    int
	CacheHits int
	Modules   int
}

type cachedDecl struct {
	modTime time.Time
	size    int64
	decl    *ModuleDecl
}

// location is where a module name resolved on disk.
type location struct {
	// file is the source file; empty for namespace packages.
	file      string
	dir       string
	isPackage bool
}

// Loader imports modules by dotted name. Loaded modules are shared, so
// repeated and circular imports yield the same object.
type Loader struct {
	searchPaths []string
	parser      *Parser
	cache       *lru.Cache[string, cachedDecl]
	modules     map[string]*pyobj.Object
	// ignores holds the .gitignore rules of each search path, read on first use.
	ignores map[string]*Ignore
	stats   Stats
}

func NewLoader(opts Options) (*Loader, error) {
	size := opts.CacheSize
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[string, cachedDecl](size)
	if err != nil {
		return nil, fmt.Errorf("create parse cache: %w", err)
	}
	parser, err := NewParser()
	if err != nil {
		return nil, err
	}
	paths := make([]string, 0, len(opts.SearchPaths))
	for _, p := range opts.SearchPaths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("resolve search path %s: %w", p, err)
		}
		paths = append(paths, abs)
	}
	return &Loader{
		searchPaths: paths,
		parser:      parser,
		cache:       cache,
		modules:     map[string]*pyobj.Object{},
		ignores:     map[string]*Ignore{},
	}, nil
}

func (l *Loader) Close() {
	l.parser.Close()
}

// Reset forgets loaded modules and ignore rules. Parsed files stay cached and
// are reused when they have not changed on disk.
func (l *Loader) Reset() {
	l.modules = map[string]*pyobj.Object{}
	l.ignores = map[string]*Ignore{}
}

func (l *Loader) Stats() Stats {
	s := l.stats
	s.Modules = len(l.modules)
	return s
}

// AddSearchPath appends dir to the search paths if it is not already present.
func (l *Loader) AddSearchPath(dir string) error {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return err
	}
	for _, p := range l.searchPaths {
		if p == abs {
			return nil
		}
	}
	l.searchPaths = append(l.searchPaths, abs)
	return nil
}

// Import loads module name and its parent packages. Names that cannot be
// found under any search path, and whose top-level package is not local
// either, become external module stubs.
func (l *Loader) Import(name string) (*pyobj.Object, error) {
	if m, ok := l.modules[name]; ok {
		return m, nil
	}
	var parent *pyobj.Object
	parentName, leaf := splitLast(name)
	if parentName != "" {
		p, err := l.Import(parentName)
		if err != nil {
			return nil, err
		}
		if p.External {
			return l.external(name), nil
		}
		parent = p
		// The parent's body may have imported this module already.
		if m, ok := l.modules[name]; ok {
			return m, nil
		}
	}

	loc, found := l.locate(name)
	if !found {
		if parent != nil {
			return nil, fmt.Errorf("ModuleNotFoundError: No module named '%s'", name)
		}
		return l.external(name), nil
	}

	m := pyobj.NewModule(name)
	l.modules[name] = m
	if parent != nil {
		parent.SetAttrValue(leaf, m)
	}

	if loc.file != "" {
		decl, err := l.parse(loc.file)
		if err != nil {
			delete(l.modules, name)
			return nil, err
		}
		newBuilder(l, m, loc.isPackage).exec(decl)
	}
	if loc.isPackage {
		l.bindSubmodules(m, loc.dir)
	}
	slog.Debug("imported module", "module", name, "file", loc.file)
	return m, nil
}

func (l *Loader) external(name string) *pyobj.Object {
	if m, ok := l.modules[name]; ok {
		return m
	}
	m := pyobj.NewExternalModule(name)
	l.modules[name] = m
	return m
}

// IsLocal reports whether the top-level package of name exists on a search path.
func (l *Loader) IsLocal(name string) bool {
	top, _, _ := strings.Cut(name, ".")
	_, ok := l.locate(top)
	return ok
}

func (l *Loader) locate(name string) (location, bool) {
	parts := strings.Split(name, ".")
	for _, root := range l.searchPaths {
		dir := filepath.Join(append([]string{root}, parts...)...)
		if init := filepath.Join(dir, "__init__.py"); isFile(init) {
			return location{file: init, dir: dir, isPackage: true}, true
		}
		if file := dir + ".py"; isFile(file) {
			return location{file: file, dir: filepath.Dir(file)}, true
		}
		if info, err := os.Stat(dir); err == nil && info.IsDir() && hasPython(dir) {
			return location{dir: dir, isPackage: true}, true
		}
	}
	return location{}, false
}

// bindSubmodules exposes the submodules of a package as lazily imported
// attributes, unless the package body bound those names itself.
func (l *Loader) bindSubmodules(pkg *pyobj.Object, dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	ig := l.ignoreFor(dir)
	var names []string
	for _, e := range entries {
		name := e.Name()
		path := filepath.Join(dir, name)
		switch {
		case e.IsDir():
			if _, skip := skipDirs[name]; skip || !isIdentifier(name) {
				continue
			}
			if !isFile(filepath.Join(path, "__init__.py")) || ig.Match(path, true) {
				continue
			}
			names = append(names, name)
		case strings.HasSuffix(name, ".py") && name != "__init__.py":
			stem := strings.TrimSuffix(name, ".py")
			if isIdentifier(stem) && !ig.Match(path, false) {
				names = append(names, stem)
			}
		}
	}
	sort.Strings(names)
	for _, sub := range names {
		if pkg.HasOwnAttr(sub) {
			continue
		}
		full := pkg.Name + "." + sub
		pkg.SetAttr(sub, func() (*pyobj.Object, error) { return l.Import(full) })
	}
}

// ignoreFor returns the ignore rules of the search path holding dir.
func (l *Loader) ignoreFor(dir string) *Ignore {
	for _, root := range l.searchPaths {
		if dir != root && !strings.HasPrefix(dir, root+string(filepath.Separator)) {
			continue
		}
		ig, ok := l.ignores[root]
		if !ok {
			ig = LoadIgnore(root)
			l.ignores[root] = ig
		}
		return ig
	}
	return nil
}

func (l *Loader) parse(path string) (*ModuleDecl, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if c, ok := l.cache.Get(path); ok && c.modTime.Equal(info.ModTime()) && c.size == info.Size() {
		l.stats.CacheHits++
		return c.decl, nil
	}
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	decl, err := l.parser.Parse(source, path)
	if err != nil {
		return nil, err
	}
	if decl.SyntaxErrors > 0 {
		slog.Warn("python source has syntax errors", "path", path, "errors", decl.SyntaxErrors)
	}
	l.stats.Parsed++
	l.cache.Add(path, cachedDecl{modTime: info.ModTime(), size: info.Size(), decl: decl})
	return decl, nil
}

func splitLast(dotted string) (string, string) {
	if i := strings.LastIndexByte(dotted, '.'); i >= 0 {
		return dotted[:i], dotted[i+1:]
	}
	return "", dotted
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func hasPython(dir string) bool {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false
	}
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".py") {
			return true
		}
	}
	return false
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r >= 0x80 || (i > 0 && r >= '0' && r <= '9') {
			continue
		}
		return false
	}
	return true
}
