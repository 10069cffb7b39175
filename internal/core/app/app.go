// Package app wires source loading, extraction, comparison and the snapshot
// store into the use cases behind the command line.
package app

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"apisurface/internal/core/config"
	"apisurface/internal/core/errors"
	"apisurface/internal/core/model"
	"apisurface/internal/core/ports"
	"apisurface/internal/core/watcher"
	"apisurface/internal/data/snapshots"
	"apisurface/internal/engine/diff"
	"apisurface/internal/engine/pysource"
	"apisurface/internal/engine/traverse"
	"apisurface/internal/shared/observability"
	"apisurface/internal/shared/util"
)

type App struct {
	Config *config.Config
	Paths  config.ResolvedPaths

	// mu serialises use of the loader, which is not safe for concurrent use.
	mu        sync.Mutex
	loader    *pysource.Loader
	extractor *traverse.Extractor
	differ    *diff.Differ

	storeMu sync.Mutex
	store   ports.SnapshotStore

	watchMu       sync.Mutex
	activeWatcher *watcher.Watcher
}

func New(cfg *config.Config, paths config.ResolvedPaths) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	loader, err := pysource.NewLoader(pysource.Options{
		SearchPaths: paths.SearchPaths,
		CacheSize:   cfg.Extract.CacheSize,
	})
	if err != nil {
		return nil, err
	}
	extractor, err := traverse.New(ExtractOptions(cfg.Extract))
	if err != nil {
		loader.Close()
		return nil, errors.Wrap(err, errors.CodeValidationError, "invalid extract options")
	}
	extractor.WithObserver(nodeCounter{})

	return &App{
		Config:    cfg,
		Paths:     paths,
		loader:    loader,
		extractor: extractor,
		differ:    diff.NewDiffer(),
	}, nil
}

// ExtractOptions maps the [extract] section onto traversal options.
// A non-positive depth keeps the default.
func ExtractOptions(cfg config.Extract) traverse.Options {
	opts := traverse.DefaultOptions()
	opts.ExcludeModules = cfg.ExcludeModules
	opts.AllFilter = cfg.AllFilter
	if cfg.Depth > 0 {
		opts.Depth = cfg.Depth
	}
	opts.Exclude = append([]string(nil), cfg.Exclude...)
	opts.PromoteSignatureErrors = cfg.PromoteSignatureErrors
	opts.Allowed = append([]string(nil), cfg.Allowed...)
	return opts
}

// WithStore replaces the snapshot store opened from the configured path.
func (a *App) WithStore(store ports.SnapshotStore) *App {
	a.storeMu.Lock()
	defer a.storeMu.Unlock()
	a.store = store
	return a
}

// Differ exposes the widening relation so callers can register subtypes.
func (a *App) Differ() *diff.Differ {
	return a.differ
}

func (a *App) snapshotStore() (ports.SnapshotStore, error) {
	a.storeMu.Lock()
	defer a.storeMu.Unlock()
	if a.store != nil {
		return a.store, nil
	}
	store, err := snapshots.Open(a.Paths.StorePath, a.Config.Store.BusyTimeout)
	if err != nil {
		return nil, errors.AddContext(err, errors.CtxPath, a.Paths.StorePath)
	}
	a.store = store
	return store, nil
}

// Close releases the loader and store and exports metrics when a metrics
// file is configured.
func (a *App) Close(ctx context.Context) error {
	if a == nil {
		return nil
	}
	var errs []error
	a.watchMu.Lock()
	if a.activeWatcher != nil {
		errs = append(errs, a.activeWatcher.Close())
		a.activeWatcher = nil
	}
	a.watchMu.Unlock()

	a.mu.Lock()
	a.loader.Close()
	a.mu.Unlock()

	a.storeMu.Lock()
	if a.store != nil {
		errs = append(errs, a.store.Close())
		a.store = nil
	}
	a.storeMu.Unlock()

	errs = append(errs, a.ExportMetrics())
	return stderrors.Join(errs...)
}

// ExportMetrics writes the metrics textfile if one is configured.
func (a *App) ExportMetrics() error {
	return observability.WriteTextfile(a.Paths.MetricsFile)
}

// extractTargets loads every target afresh and extracts its surface.
// Unchanged files are served from the parse cache.
func (a *App) extractTargets(targets []string) ([]*model.Module, pysource.Stats, error) {
	if len(targets) == 0 {
		return nil, pysource.Stats{}, errors.New(errors.CodeValidationError, "at least one module is required")
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	before := a.loader.Stats()
	a.loader.Reset()

	modules := make([]*model.Module, 0, len(targets))
	for _, target := range targets {
		surface, err := a.extractTarget(target)
		if err != nil {
			return nil, pysource.Stats{}, errors.AddContext(err, errors.CtxPath, target)
		}
		modules = append(modules, surface)
	}

	after := a.loader.Stats()
	delta := pysource.Stats{
		Parsed:    after.Parsed - before.Parsed,
		CacheHits: after.CacheHits - before.CacheHits,
		Modules:   after.Modules,
	}
	observability.FilesParsedTotal.Add(float64(delta.Parsed))
	observability.ParseCacheHitsTotal.Add(float64(delta.CacheHits))
	slog.Debug("extraction finished",
		"modules", len(modules),
		"files_parsed", delta.Parsed,
		"cache_hits", delta.CacheHits,
		"heap_mb", util.GetHeapAllocMB(),
	)
	return modules, delta, nil
}

func (a *App) extractTarget(arg string) (*model.Module, error) {
	target, err := pysource.ResolveTarget(arg, a.defaultRoot())
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeValidationError, "cannot resolve module")
	}
	if err := a.loader.AddSearchPath(target.Root); err != nil {
		return nil, fmt.Errorf("add search path %s: %w", target.Root, err)
	}

	start := time.Now()
	root, err := a.loader.Import(target.Module)
	observePhase("load", start)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeNotFound, "cannot import module")
	}
	if root.External || !a.loader.IsLocal(target.Module) {
		return nil, errors.Newf(errors.CodeNotFound, "module %q not found under search paths", target.Module)
	}

	start = time.Now()
	surface, err := a.extractor.Extract(root)
	observePhase("extract", start)
	if err != nil {
		return nil, err
	}
	return surface, nil
}

func (a *App) defaultRoot() string {
	if len(a.Paths.SearchPaths) > 0 {
		return a.Paths.SearchPaths[0]
	}
	return a.Paths.ProjectRoot
}

// watchRoots returns the directories holding each target's top-level
// package, or the search root for single-file modules.
func (a *App) watchRoots(targets []string) ([]string, error) {
	seen := map[string]bool{}
	roots := make([]string, 0, len(targets))
	for _, arg := range targets {
		target, err := pysource.ResolveTarget(arg, a.defaultRoot())
		if err != nil {
			return nil, errors.AddContext(errors.Wrap(err, errors.CodeValidationError, "cannot resolve module"), errors.CtxPath, arg)
		}
		top := strings.SplitN(target.Module, ".", 2)[0]
		dir := filepath.Join(target.Root, top)
		if !isDir(dir) {
			dir = target.Root
		}
		if !seen[dir] {
			seen[dir] = true
			roots = append(roots, dir)
		}
	}
	return roots, nil
}

// ApplyWatchConfig updates the running watcher after a config reload.
func (a *App) ApplyWatchConfig(cfg config.Watch) {
	a.watchMu.Lock()
	defer a.watchMu.Unlock()
	a.Config.Watch = cfg
	if a.activeWatcher == nil {
		return
	}
	a.activeWatcher.SetDebounce(cfg.Debounce)
	a.activeWatcher.SetMinInterval(cfg.MinInterval)
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

type nodeCounter struct{}

func (nodeCounter) NodeEmitted(kind model.NodeKind) {
	observability.NodesEmittedTotal.WithLabelValues(string(kind)).Inc()
}

func observePhase(phase string, start time.Time) {
	observability.PhaseDuration.WithLabelValues(phase).Observe(time.Since(start).Seconds())
}
