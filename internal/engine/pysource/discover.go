package pysource

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	ignore "github.com/sabhiram/go-gitignore"

	"apisurface/internal/shared/util"
)

var skipDirs = map[string]struct{}{
	"__pycache__":   {},
	"node_modules":  {},
	".git":          {},
	".hg":           {},
	".svn":          {},
	"venv":          {},
	".venv":         {},
	"env":           {},
	".env":          {},
	"build":         {},
	"dist":          {},
	".tox":          {},
	".mypy_cache":   {},
	".ruff_cache":   {},
	".pytest_cache": {},
	"egg-info":      {},
}

// Target is a module to extract and the search path it is importable from.
type Target struct {
	Module string
	Root   string
}

// ResolveTarget accepts a dotted module name or a path to a .py file or a
// package directory. Paths are mapped to dotted names by walking up through
// enclosing packages; dotted names resolve against defaultRoot.
func ResolveTarget(arg, defaultRoot string) (Target, error) {
	if arg == "" {
		return Target{}, fmt.Errorf("empty module reference")
	}
	info, err := os.Stat(arg)
	if err != nil {
		if util.ContainsPathSeparator(arg) || strings.HasSuffix(arg, ".py") {
			return Target{}, fmt.Errorf("stat %s: %w", arg, err)
		}
		for _, part := range strings.Split(arg, ".") {
			if !isIdentifier(part) {
				return Target{}, fmt.Errorf("invalid module name %q", arg)
			}
		}
		return Target{Module: arg, Root: defaultRoot}, nil
	}
	abs, err := filepath.Abs(arg)
	if err != nil {
		return Target{}, err
	}
	var dir, leaf string
	switch {
	case info.IsDir():
		dir, leaf = filepath.Dir(abs), filepath.Base(abs)
	case strings.HasSuffix(abs, ".py"):
		dir, leaf = filepath.Dir(abs), strings.TrimSuffix(filepath.Base(abs), ".py")
		if leaf == "__init__" {
			dir, leaf = filepath.Dir(dir), filepath.Base(dir)
		}
	default:
		return Target{}, fmt.Errorf("%s is neither a package directory nor a .py file", arg)
	}
	parts := []string{leaf}
	for isFile(filepath.Join(dir, "__init__.py")) {
		parts = append([]string{filepath.Base(dir)}, parts...)
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	for _, part := range parts {
		if !isIdentifier(part) {
			return Target{}, fmt.Errorf("%s does not map to a module name", arg)
		}
	}
	return Target{Module: strings.Join(parts, "."), Root: dir}, nil
}

// SourceFiles lists the .py files under root, relative to it and sorted.
// Inside a git work tree only tracked and unignored files are listed;
// otherwise a top-level .gitignore is honoured.
func SourceFiles(root string) ([]string, error) {
	gitFiles := gitLsFiles(root)
	var gi *Ignore
	if gitFiles == nil {
		gi = LoadIgnore(root)
	}

	var results []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		name := d.Name()
		if d.IsDir() {
			if path == root {
				return nil
			}
			if _, skip := skipDirs[name]; skip || strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".egg-info") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") || !strings.HasSuffix(name, ".py") {
			return nil
		}
		if d.Type()&os.ModeSymlink != 0 {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		if gitFiles != nil {
			if _, ok := gitFiles[filepath.ToSlash(rel)]; !ok {
				return nil
			}
		} else if gi.Match(path, false) {
			return nil
		}
		results = append(results, rel)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(results)
	return results, nil
}

// Skipped reports whether a directory name is never searched for sources.
func Skipped(dirName string) bool {
	_, skip := skipDirs[dirName]
	return skip || strings.HasPrefix(dirName, ".") || strings.HasSuffix(dirName, ".egg-info")
}

func gitLsFiles(root string) map[string]struct{} {
	info, err := os.Stat(filepath.Join(root, ".git"))
	if err != nil || !info.IsDir() {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", "ls-files", "--cached", "--others", "--exclude-standard")
	cmd.Dir = root
	out, err := cmd.Output()
	if err != nil {
		return nil
	}
	files := make(map[string]struct{})
	for _, line := range strings.Split(strings.TrimRight(string(out), "\n"), "\n") {
		if line != "" {
			files[line] = struct{}{}
		}
	}
	return files
}

// Ignore matches paths under a root against the root's .gitignore.
type Ignore struct {
	root string
	gi   *ignore.GitIgnore
}

// LoadIgnore reads root/.gitignore. Without one nothing is ignored.
func LoadIgnore(root string) *Ignore {
	gi, err := ignore.CompileIgnoreFile(filepath.Join(root, ".gitignore"))
	if err != nil {
		return &Ignore{root: root}
	}
	return &Ignore{root: root, gi: gi}
}

// Match reports whether path is ignored. Paths outside the root never are.
func (i *Ignore) Match(path string, isDir bool) bool {
	if i == nil || i.gi == nil {
		return false
	}
	rel, err := filepath.Rel(i.root, path)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return false
	}
	rel = filepath.ToSlash(rel)
	if isDir {
		rel += "/"
	}
	return i.gi.MatchesPath(rel)
}
