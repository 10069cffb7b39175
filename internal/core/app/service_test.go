package app

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"apisurface/internal/core/config"
	"apisurface/internal/core/errors"
	"apisurface/internal/core/model"
	"apisurface/internal/core/ports"
	"apisurface/internal/engine/diff"
)

const inventoryInit = `"""Inventory."""
from .items import Item, restock

__all__ = ["Item", "restock", "LIMIT"]
LIMIT = 10
`

const inventoryItems = `class Item:
    def __init__(self, name: str, count: int = 0):
        self.name = name

    def label(self) -> str:
        return self.name


def restock(item: Item, amount: int) -> None:
    pass


def audit(item):
    pass
`

func writeSource(t *testing.T, root, rel, content string) string {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newTestApp(t *testing.T) (*App, string) {
	t.Helper()
	root := t.TempDir()
	writeSource(t, root, "inventory/__init__.py", inventoryInit)
	writeSource(t, root, "inventory/items.py", inventoryItems)

	cfg := config.Default()
	cfg.Extract.AllFilter = true
	cfg.Watch.Debounce = 50 * time.Millisecond
	cfg.Watch.MinInterval = 0
	paths := config.ResolvedPaths{
		ProjectRoot: root,
		StorePath:   filepath.Join(root, ".apisurface", "snapshots.db"),
		MetricsFile: filepath.Join(root, "metrics", "apisurface.prom"),
		SearchPaths: []string{root},
	}
	a, err := New(cfg, paths)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close(context.Background()) })
	return a, root
}

func names(m *model.Module) []string {
	out := make([]string, 0, len(m.Body))
	for _, n := range m.Body {
		out = append(out, n.NodeName())
	}
	return out
}

func TestNew_RejectsInvalidExcludes(t *testing.T) {
	cfg := config.Default()
	cfg.Extract.Exclude = []string{"pkg.["}
	_, err := New(cfg, config.ResolvedPaths{ProjectRoot: t.TempDir()})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeValidationError))

	_, err = New(nil, config.ResolvedPaths{})
	require.Error(t, err)
}

func TestSurfaceService_Dump(t *testing.T) {
	a, root := newTestApp(t)
	svc := a.SurfaceService()
	ctx := context.Background()

	res, err := svc.Dump(ctx, ports.DumpRequest{Targets: []string{"inventory"}})
	require.NoError(t, err)
	require.Len(t, res.Modules, 1)
	assert.Equal(t, "inventory", res.Modules[0].Path)
	assert.Equal(t, []string{"Item", "LIMIT", "restock"}, names(res.Modules[0]))
	assert.Greater(t, res.FilesParsed, 0)

	byPath, err := svc.Dump(ctx, ports.DumpRequest{Targets: []string{filepath.Join(root, "inventory")}})
	require.NoError(t, err)
	assert.True(t, model.Equal(res.Modules[0], byPath.Modules[0]), "path and dotted name give the same surface")
	assert.Equal(t, 0, byPath.FilesParsed)
	assert.Greater(t, byPath.CacheHits, 0)
}

func TestSurfaceService_DumpErrors(t *testing.T) {
	a, _ := newTestApp(t)
	svc := a.SurfaceService()
	ctx := context.Background()

	_, err := svc.Dump(ctx, ports.DumpRequest{})
	assert.True(t, errors.IsCode(err, errors.CodeValidationError), "got %v", err)

	_, err = svc.Dump(ctx, ports.DumpRequest{Targets: []string{"nonexistent"}})
	assert.True(t, errors.IsCode(err, errors.CodeNotFound), "got %v", err)

	_, err = svc.Dump(ctx, ports.DumpRequest{Targets: []string{"not a module"}})
	assert.True(t, errors.IsCode(err, errors.CodeValidationError), "got %v", err)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = svc.Dump(cancelled, ports.DumpRequest{Targets: []string{"inventory"}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSurfaceService_CompareAfterEdit(t *testing.T) {
	a, root := newTestApp(t)
	svc := a.SurfaceService()
	ctx := context.Background()

	before, err := svc.Dump(ctx, ports.DumpRequest{Targets: []string{"inventory"}})
	require.NoError(t, err)

	same, err := svc.Compare(ctx, ports.CompareRequest{Before: before.Modules, After: before.Modules})
	require.NoError(t, err)
	assert.Empty(t, same.Changes)
	assert.Equal(t, model.Patch, same.Level)

	edited := strings.Replace(inventoryItems, "def restock(item: Item, amount: int)", "def restock(item: Item)", 1)
	writeSource(t, root, "inventory/items.py", edited)
	after, err := svc.Dump(ctx, ports.DumpRequest{Targets: []string{"inventory"}})
	require.NoError(t, err)

	res, err := svc.Compare(ctx, ports.CompareRequest{Before: before.Modules, After: after.Modules})
	require.NoError(t, err)
	assert.Equal(t, model.Major, res.Level)
	assert.Contains(t, res.Changes, diff.Change{
		Level:    model.Major,
		Category: diff.CategoryRemovedArg,
		Detail:   "inventory.restock.(amount)",
	})
	assert.Equal(t, 1, res.Summary.Major)
}

func TestSurfaceService_Bump(t *testing.T) {
	a, _ := newTestApp(t)
	svc := a.SurfaceService()
	ctx := context.Background()

	res, err := svc.Bump(ctx, ports.BumpRequest{Level: model.Minor, Version: " 1.4.2 "})
	require.NoError(t, err)
	assert.Equal(t, "1.4.2", res.Previous)
	assert.Equal(t, "1.5.0", res.Next)

	res, err = svc.Bump(ctx, ports.BumpRequest{Level: model.Major, Version: "0.3.1"})
	require.NoError(t, err)
	assert.Equal(t, "0.4.0", res.Next)

	_, err = svc.Bump(ctx, ports.BumpRequest{Level: model.Patch, Version: "v1"})
	assert.True(t, errors.IsCode(err, errors.CodeValidationError), "got %v", err)
}

func TestSurfaceService_SnapshotRoundTrip(t *testing.T) {
	a, _ := newTestApp(t)
	svc := a.SurfaceService()
	ctx := context.Background()

	dump, err := svc.Dump(ctx, ports.DumpRequest{Targets: []string{"inventory"}})
	require.NoError(t, err)

	_, err = svc.SaveSnapshot(ctx, ports.SaveRequest{Commit: "c0ffee", Modules: nil})
	assert.True(t, errors.IsCode(err, errors.CodeValidationError), "got %v", err)

	ref, err := svc.SaveSnapshot(ctx, ports.SaveRequest{Commit: "c0ffee", Modules: dump.Modules})
	require.NoError(t, err)
	assert.Equal(t, "c0ffee", ref.Commit)
	assert.Equal(t, "inventory", ref.Module)

	loaded, err := svc.LoadSnapshot(ctx, "c0ffee")
	require.NoError(t, err)
	require.Len(t, loaded.Modules, 1)
	assert.True(t, model.Equal(dump.Modules[0], loaded.Modules[0]))
	assert.Equal(t, ref.Digest, loaded.Ref.Digest)

	refs, err := svc.ListSnapshots(ctx)
	require.NoError(t, err)
	require.Len(t, refs, 1)

	_, err = svc.LoadSnapshot(ctx, "deadbeef")
	assert.True(t, errors.IsCode(err, errors.CodeNotFound), "got %v", err)
}

func TestSurfaceService_SaveDefaultsToHead(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	a, root := newTestApp(t)
	git := func(args ...string) string {
		t.Helper()
		out, err := exec.Command("git", append([]string{"-C", root}, args...)...).CombinedOutput()
		require.NoError(t, err, "git %v: %s", args, out)
		return strings.TrimSpace(string(out))
	}
	git("init", "-q")
	git("-c", "user.name=test", "-c", "user.email=test@example.com", "commit", "-q", "--allow-empty", "-m", "init")
	head := git("rev-parse", "HEAD")

	svc := a.SurfaceService()
	ctx := context.Background()
	dump, err := svc.Dump(ctx, ports.DumpRequest{Targets: []string{"inventory"}})
	require.NoError(t, err)

	ref, err := svc.SaveSnapshot(ctx, ports.SaveRequest{Modules: dump.Modules})
	require.NoError(t, err)
	assert.Equal(t, head, ref.Commit)

	loaded, err := svc.LoadSnapshot(ctx, "HEAD")
	require.NoError(t, err)
	assert.Equal(t, head, loaded.Ref.Commit)
}

func TestSurfaceService_Watch(t *testing.T) {
	a, root := newTestApp(t)
	svc := a.SurfaceService()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	updates := make(chan ports.WatchUpdate, 4)
	done := make(chan error, 1)
	go func() {
		done <- svc.Watch(ctx, ports.WatchRequest{Targets: []string{"inventory"}}, func(u ports.WatchUpdate) {
			updates <- u
		})
	}()

	require.Eventually(t, func() bool {
		a.watchMu.Lock()
		defer a.watchMu.Unlock()
		return a.activeWatcher != nil
	}, 5*time.Second, 20*time.Millisecond, "watcher did not start")
	writeSource(t, root, "inventory/items.py", inventoryItems+"\n\ndef extra(): pass\n")
	writeSource(t, root, "inventory/__init__.py", strings.Replace(inventoryInit, `"LIMIT"]`, `"LIMIT", "extra"]`, 1)+"from .items import extra\n")

	deadline := time.After(5 * time.Second)
	for {
		select {
		case u := <-updates:
			require.NoError(t, u.Err)
			if u.Level != model.Minor {
				continue
			}
			assert.NotEmpty(t, u.Files)
			assert.Contains(t, u.Changes, diff.Change{Level: model.Minor, Category: diff.CategoryAdded, Detail: "inventory.extra"})
			cancel()
			select {
			case err := <-done:
				require.NoError(t, err)
			case <-time.After(2 * time.Second):
				t.Fatal("watch did not return after cancel")
			}
			return
		case <-deadline:
			t.Fatal("timed out waiting for a MINOR watch update")
		}
	}
}

func TestApp_CloseExportsMetrics(t *testing.T) {
	a, root := newTestApp(t)
	_, err := a.SurfaceService().Dump(context.Background(), ports.DumpRequest{Targets: []string{"inventory"}})
	require.NoError(t, err)
	require.NoError(t, a.Close(context.Background()))

	data, err := os.ReadFile(filepath.Join(root, "metrics", "apisurface.prom"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "apisurface_nodes_emitted_total")
	assert.Contains(t, string(data), "apisurface_files_parsed_total")
}

func TestApp_ApplyWatchConfig(t *testing.T) {
	a, _ := newTestApp(t)
	a.ApplyWatchConfig(config.Watch{Debounce: time.Second, MinInterval: 2 * time.Second})
	assert.Equal(t, time.Second, a.Config.Watch.Debounce)
	assert.Equal(t, 2*time.Second, a.Config.Watch.MinInterval)
}
