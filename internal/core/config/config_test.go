package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), DefaultFile)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
version = 1

[extract]
search_paths = ["src"]
exclude_modules = true
all_filter = true
depth = 4
exclude = ["pkg.internal.*", "pkg.*._*"]
promote_signature_errors = true

[store]
path = "data/surfaces.db"
busy_timeout = "5s"

[watch]
debounce = "1s"
min_interval = "3s"
exclude_dirs = ["docs"]

[observability]
metrics_file = "metrics/apisurface.prom"

[compare]
check_level = "major"
format = "yaml"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if !cfg.Extract.ExcludeModules || !cfg.Extract.AllFilter || !cfg.Extract.PromoteSignatureErrors {
		t.Errorf("expected extract flags to be set, got %+v", cfg.Extract)
	}
	if cfg.Extract.Depth != 4 {
		t.Errorf("expected depth 4, got %d", cfg.Extract.Depth)
	}
	if len(cfg.Extract.Exclude) != 2 {
		t.Errorf("expected 2 exclude patterns, got %v", cfg.Extract.Exclude)
	}
	if cfg.Extract.CacheSize != defaultCacheSize {
		t.Errorf("expected default cache size, got %d", cfg.Extract.CacheSize)
	}
	if cfg.Store.Path != "data/surfaces.db" || cfg.Store.BusyTimeout != 5*time.Second {
		t.Errorf("unexpected store config %+v", cfg.Store)
	}
	if cfg.Watch.Debounce != time.Second || cfg.Watch.MinInterval != 3*time.Second {
		t.Errorf("unexpected watch config %+v", cfg.Watch)
	}
	if cfg.Compare.CheckLevel != "major" || cfg.Compare.Format != "yaml" {
		t.Errorf("unexpected compare config %+v", cfg.Compare)
	}
	if cfg.Observability.ServiceName != "apisurface" {
		t.Errorf("expected default service name, got %q", cfg.Observability.ServiceName)
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Version != CurrentVersion {
		t.Errorf("expected version %d, got %d", CurrentVersion, cfg.Version)
	}
	if cfg.Extract.Depth != defaultDepth {
		t.Errorf("expected depth %d, got %d", defaultDepth, cfg.Extract.Depth)
	}
	if cfg.Store.Path == "" || cfg.Compare.Format != "json" {
		t.Errorf("unexpected defaults %+v", cfg)
	}
	if errs := Validate(cfg); len(errs) != 0 {
		t.Errorf("defaults should validate, got %v", errs)
	}
}

func TestLoadOrDefault_MissingFile(t *testing.T) {
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("expected defaults, got %v", err)
	}
	if cfg.Extract.Depth != defaultDepth {
		t.Errorf("expected default depth, got %d", cfg.Extract.Depth)
	}
}

func TestLoad_InvalidTOML(t *testing.T) {
	path := writeConfig(t, "[extract\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"version", func(c *Config) { c.Version = 9 }, "unsupported config version 9"},
		{"depth", func(c *Config) { c.Extract.Depth = 100 }, "extract.depth must be between"},
		{"glob", func(c *Config) { c.Extract.Exclude = []string{"pkg.["} }, "extract.exclude[0]"},
		{"allowed", func(c *Config) { c.Extract.Allowed = []string{" "} }, "extract.allowed[0]"},
		{"store path", func(c *Config) { c.Store.Path = " " }, "store.path must not be empty"},
		{"debounce", func(c *Config) { c.Watch.Debounce = -time.Second }, "watch.debounce"},
		{"tracing", func(c *Config) { c.Observability.EnableTracing = true }, "otlp_endpoint is required"},
		{"level", func(c *Config) { c.Compare.CheckLevel = "huge" }, "compare.check_level"},
		{"format", func(c *Config) { c.Compare.Format = "xml" }, "compare.format must be json or yaml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			errs := Validate(cfg)
			found := false
			for _, err := range errs {
				if strings.Contains(err.Error(), tt.wantErr) {
					found = true
				}
			}
			if !found {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, errs)
			}
		})
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("APISURFACE_EXTRACT_DEPTH", "3")
	t.Setenv("APISURFACE_EXTRACT_EXCLUDE", "a.*, b.c ,")
	t.Setenv("APISURFACE_EXTRACT_ALL_FILTER", "TRUE")
	t.Setenv("APISURFACE_STORE_BUSY_TIMEOUT", "250ms")
	t.Setenv("APISURFACE_COMPARE_CHECK_LEVEL", "minor")
	t.Setenv("APISURFACE_WATCH_DEBOUNCE", "not-a-duration")

	cfg := Default()
	ApplyEnvOverrides(cfg)

	if cfg.Extract.Depth != 3 {
		t.Errorf("expected depth 3, got %d", cfg.Extract.Depth)
	}
	if got := strings.Join(cfg.Extract.Exclude, "|"); got != "a.*|b.c" {
		t.Errorf("expected trimmed list, got %q", got)
	}
	if !cfg.Extract.AllFilter {
		t.Error("expected all_filter override")
	}
	if cfg.Store.BusyTimeout != 250*time.Millisecond {
		t.Errorf("expected busy timeout override, got %v", cfg.Store.BusyTimeout)
	}
	if cfg.Compare.CheckLevel != "minor" {
		t.Errorf("expected check level override, got %q", cfg.Compare.CheckLevel)
	}
	if cfg.Watch.Debounce != 500*time.Millisecond {
		t.Errorf("invalid duration must be ignored, got %v", cfg.Watch.Debounce)
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	if err := LoadDotEnv(dir); err != nil {
		t.Fatalf("missing .env must be ignored, got %v", err)
	}

	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("APISURFACE_TEST_DOTENV=from-file\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("APISURFACE_TEST_DOTENV", "")
	os.Unsetenv("APISURFACE_TEST_DOTENV")
	if err := LoadDotEnv(dir); err != nil {
		t.Fatalf("load .env: %v", err)
	}
	if got := os.Getenv("APISURFACE_TEST_DOTENV"); got != "from-file" {
		t.Errorf("expected value from .env, got %q", got)
	}
}

func TestResolvePaths(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "pyproject.toml"), []byte("[project]\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	nested := filepath.Join(root, "src", "pkg")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}

	cfg := Default()
	cfg.Extract.SearchPaths = []string{"src"}
	cfg.Observability.MetricsFile = "out/metrics.prom"

	got, err := ResolvePaths(cfg, nested)
	if err != nil {
		t.Fatal(err)
	}
	if got.ProjectRoot != filepath.Clean(root) {
		t.Fatalf("expected project root %q, got %q", root, got.ProjectRoot)
	}
	if got.StorePath != filepath.Join(root, ".apisurface", "snapshots.db") {
		t.Errorf("unexpected store path %q", got.StorePath)
	}
	if got.MetricsFile != filepath.Join(root, "out", "metrics.prom") {
		t.Errorf("unexpected metrics file %q", got.MetricsFile)
	}
	if len(got.SearchPaths) != 1 || got.SearchPaths[0] != filepath.Join(root, "src") {
		t.Errorf("unexpected search paths %v", got.SearchPaths)
	}

	if _, err := ResolvePaths(cfg, " "); err == nil {
		t.Error("expected error for empty cwd")
	}
}

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	path := writeConfig(t, "[extract]\ndepth = 2\n")
	got := make(chan *Config, 4)
	w := NewWatcher(path, func(cfg *Config) { got <- cfg })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("start watcher: %v", err)
	}
	defer w.Stop()

	if err := os.WriteFile(path, []byte("[extract]\ndepth = 5\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	select {
	case cfg := <-got:
		if cfg.Extract.Depth != 5 {
			t.Errorf("expected reloaded depth 5, got %d", cfg.Extract.Depth)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reload")
	}
}

func TestLoad_ExampleFile(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "..", "apisurface.example.toml"))
	if err != nil {
		t.Fatalf("example config does not load: %v", err)
	}
	if cfg.Compare.CheckLevel != "major" || cfg.Watch.Debounce != 500*time.Millisecond {
		t.Fatalf("unexpected example values: %+v", cfg)
	}
}
