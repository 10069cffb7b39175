// Package watcher reports debounced batches of changed Python sources.
package watcher

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/fsnotify/fsnotify"
	"github.com/gobwas/glob"

	"apisurface/internal/engine/pysource"
	"apisurface/internal/shared/observability"
	"apisurface/internal/shared/util"
)

const sourceExt = ".py"

type Watcher struct {
	fsWatcher   *fsnotify.Watcher
	debounce    time.Duration
	excludeDirs []glob.Glob
	limiter     *util.Limiter
	onChange    func([]string)
	callbackMu  sync.Mutex

	pending   map[string]time.Time
	pendingMu sync.Mutex
	timer     *time.Timer

	// hashes holds the content digest last reported per file; guarded by
	// callbackMu.
	hashes map[string]uint64
	// ignores holds the .gitignore rules of each watched root; set before run starts.
	ignores map[string]*pysource.Ignore

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// NewWatcher returns a watcher that calls onChange with the sorted set of
// Python files touched during each quiet period of length debounce.
// Directories whose base name matches one of excludeDirs are not watched.
func NewWatcher(debounce time.Duration, excludeDirs []string, onChange func([]string)) (*Watcher, error) {
	if onChange == nil {
		return nil, os.ErrInvalid
	}

	compiledDirs := make([]glob.Glob, 0, len(excludeDirs))
	for _, pattern := range excludeDirs {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, err
		}
		compiledDirs = append(compiledDirs, g)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Watcher{
		fsWatcher:   fsw,
		debounce:    debounce,
		excludeDirs: compiledDirs,
		onChange:    onChange,
		pending:     make(map[string]time.Time),
		hashes:      make(map[string]uint64),
		ignores:     make(map[string]*pysource.Ignore),
		ctx:         ctx,
		cancel:      cancel,
	}, nil
}

// SetMinInterval spaces consecutive callbacks at least d apart. Zero
// removes the limit.
func (w *Watcher) SetMinInterval(d time.Duration) {
	w.callbackMu.Lock()
	defer w.callbackMu.Unlock()
	if d <= 0 {
		w.limiter = nil
		return
	}
	w.limiter = util.NewLimiter(1/d.Seconds(), 1)
}

func (w *Watcher) SetDebounce(debounce time.Duration) {
	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()
	w.debounce = debounce
}

func (w *Watcher) Watch(paths []string) error {
	for _, path := range paths {
		w.ignores[path] = pysource.LoadIgnore(path)
	}
	for _, path := range paths {
		if err := w.watchRecursive(path); err != nil {
			return err
		}
		w.callbackMu.Lock()
		for _, file := range w.sourceFiles(path) {
			if sum, ok := hashFile(file); ok {
				w.hashes[file] = sum
			}
		}
		w.callbackMu.Unlock()
	}

	go w.run()
	return nil
}

func (w *Watcher) watchRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && w.shouldExcludeDir(path) {
			return filepath.SkipDir
		}
		return w.fsWatcher.Add(path)
	})
}

func (w *Watcher) run() {
	for {
		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			observability.WatcherEventsTotal.Inc()

			if event.Op&fsnotify.Create == fsnotify.Create {
				info, err := os.Stat(event.Name)
				if err == nil && info.IsDir() {
					if !w.shouldExcludeDir(event.Name) {
						if err := w.watchRecursive(event.Name); err != nil {
							slog.Warn("failed to watch new directory", "path", event.Name, "error", err)
						} else {
							w.enqueueExistingFiles(event.Name)
						}
					}
					continue
				}
			}

			if w.shouldExcludeFile(event.Name) || w.ignored(event.Name) {
				continue
			}

			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
				w.scheduleChange(event.Name)
			}

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			slog.Error("watcher error", "error", err)
		}
	}
}

func (w *Watcher) scheduleChange(path string) {
	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()

	w.pending[path] = time.Now()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.flushChanges)
}

func (w *Watcher) flushChanges() {
	w.pendingMu.Lock()
	paths := util.SortedStringKeys(w.pending)
	w.pending = make(map[string]time.Time)
	w.pendingMu.Unlock()

	if len(paths) == 0 {
		return
	}

	w.callbackMu.Lock()
	defer w.callbackMu.Unlock()
	paths = w.contentChanged(paths)
	if len(paths) == 0 {
		return
	}
	if w.limiter != nil {
		if err := w.limiter.Wait(w.ctx, 1); err != nil {
			return
		}
	}
	w.onChange(paths)
}

// contentChanged drops files whose content matches what was last reported.
// Removed files are kept once and then forgotten.
func (w *Watcher) contentChanged(paths []string) []string {
	out := paths[:0]
	for _, path := range paths {
		sum, ok := hashFile(path)
		if !ok {
			delete(w.hashes, path)
			out = append(out, path)
			continue
		}
		if prev, known := w.hashes[path]; known && prev == sum {
			continue
		}
		w.hashes[path] = sum
		out = append(out, path)
	}
	return out
}

func hashFile(path string) (uint64, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}
	return xxhash.Sum64(data), true
}

func (w *Watcher) shouldExcludeDir(path string) bool {
	base := filepath.Base(path)
	if pysource.Skipped(base) {
		return true
	}
	for _, g := range w.excludeDirs {
		if g.Match(base) {
			return true
		}
	}
	return false
}

// ignored reports whether a watched root's .gitignore covers path.
func (w *Watcher) ignored(path string) bool {
	for _, ig := range w.ignores {
		if ig.Match(path, false) {
			return true
		}
	}
	return false
}

func (w *Watcher) shouldExcludeFile(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return true
	}
	return strings.ToLower(filepath.Ext(base)) != sourceExt
}

func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		w.cancel()
		w.pendingMu.Lock()
		if w.timer != nil {
			w.timer.Stop()
		}
		w.pendingMu.Unlock()
		err = w.fsWatcher.Close()
	})
	return err
}

func (w *Watcher) enqueueExistingFiles(root string) {
	for _, path := range w.sourceFiles(root) {
		w.scheduleChange(path)
	}
}

// sourceFiles lists the unignored Python files under root, skipping
// excluded directories.
func (w *Watcher) sourceFiles(root string) []string {
	rels, err := pysource.SourceFiles(root)
	if err != nil {
		slog.Warn("failed to list source files", "path", root, "error", err)
		return nil
	}
	files := make([]string, 0, len(rels))
	for _, rel := range rels {
		if w.inExcludedDir(filepath.Dir(rel)) {
			continue
		}
		path := filepath.Join(root, rel)
		if w.shouldExcludeFile(path) || w.ignored(path) {
			continue
		}
		files = append(files, path)
	}
	return files
}

func (w *Watcher) inExcludedDir(relDir string) bool {
	if relDir == "." {
		return false
	}
	for _, part := range strings.Split(filepath.ToSlash(relDir), "/") {
		if w.shouldExcludeDir(part) {
			return true
		}
	}
	return false
}
