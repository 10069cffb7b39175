// Package config loads apisurface.toml, applies defaults and environment
// overrides, and validates the result.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	DefaultFile      = "apisurface.toml"
	CurrentVersion   = 1
	defaultDepth     = 6
	defaultCacheSize = 512
)

type Config struct {
	Version       int           `toml:"version"`
	ProjectRoot   string        `toml:"project_root"`
	Extract       Extract       `toml:"extract"`
	Store         Store         `toml:"store"`
	Watch         Watch         `toml:"watch"`
	Observability Observability `toml:"observability"`
	Compare       Compare       `toml:"compare"`
}

type Extract struct {
	// SearchPaths are import roots besides the target's own root.
	SearchPaths            []string `toml:"search_paths"`
	ExcludeModules         bool     `toml:"exclude_modules"`
	AllFilter              bool     `toml:"all_filter"`
	Depth                  int      `toml:"depth"`
	Exclude                []string `toml:"exclude"`
	Allowed                []string `toml:"allowed"`
	PromoteSignatureErrors bool     `toml:"promote_signature_errors"`
	CacheSize              int      `toml:"cache_size"`
}

type Store struct {
	Path        string        `toml:"path"`
	BusyTimeout time.Duration `toml:"busy_timeout"`
}

type Watch struct {
	Debounce    time.Duration `toml:"debounce"`
	MinInterval time.Duration `toml:"min_interval"`
	ExcludeDirs []string      `toml:"exclude_dirs"`
}

type Observability struct {
	MetricsFile   string `toml:"metrics_file"`
	EnableTracing bool   `toml:"enable_tracing"`
	OTLPEndpoint  string `toml:"otlp_endpoint"`
	OTLPInsecure  bool   `toml:"otlp_insecure"`
	ServiceName   string `toml:"service_name"`
}

type Compare struct {
	// CheckLevel is the level at or above which compare --check fails.
	CheckLevel string `toml:"check_level"`
	Format     string `toml:"format"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	applyDefaults(&cfg)
	if errs := Validate(&cfg); len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return &cfg, nil
}

// LoadOrDefault loads path, falling back to Default when the file is missing.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

func applyDefaults(cfg *Config) {
	if cfg.Version == 0 {
		cfg.Version = CurrentVersion
	}
	if cfg.Extract.Depth == 0 {
		cfg.Extract.Depth = defaultDepth
	}
	if cfg.Extract.CacheSize == 0 {
		cfg.Extract.CacheSize = defaultCacheSize
	}
	if strings.TrimSpace(cfg.Store.Path) == "" {
		cfg.Store.Path = ".apisurface/snapshots.db"
	}
	if cfg.Store.BusyTimeout == 0 {
		cfg.Store.BusyTimeout = 2 * time.Second
	}
	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = 500 * time.Millisecond
	}
	if cfg.Watch.MinInterval == 0 {
		cfg.Watch.MinInterval = 2 * time.Second
	}
	if strings.TrimSpace(cfg.Observability.ServiceName) == "" {
		cfg.Observability.ServiceName = "apisurface"
	}
	if strings.TrimSpace(cfg.Compare.Format) == "" {
		cfg.Compare.Format = "json"
	}
}
