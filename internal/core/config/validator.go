package config

import (
	"fmt"
	"strings"

	"github.com/gobwas/glob"

	"apisurface/internal/core/model"
)

const maxDepth = 64

// Validate returns every problem found in cfg.
func Validate(cfg *Config) []error {
	var errs []error
	errs = append(errs, validateVersion(cfg)...)
	errs = append(errs, validateExtract(cfg)...)
	errs = append(errs, validateStore(cfg)...)
	errs = append(errs, validateWatch(cfg)...)
	errs = append(errs, validateObservability(cfg)...)
	errs = append(errs, validateCompare(cfg)...)
	return errs
}

func validateVersion(cfg *Config) []error {
	if cfg.Version < 1 || cfg.Version > CurrentVersion {
		return []error{fmt.Errorf("unsupported config version %d; supported version is %d", cfg.Version, CurrentVersion)}
	}
	return nil
}

func validateExtract(cfg *Config) []error {
	var errs []error
	if cfg.Extract.Depth < 1 || cfg.Extract.Depth > maxDepth {
		errs = append(errs, fmt.Errorf("extract.depth must be between 1 and %d, got %d", maxDepth, cfg.Extract.Depth))
	}
	if cfg.Extract.CacheSize < 1 {
		errs = append(errs, fmt.Errorf("extract.cache_size must be positive, got %d", cfg.Extract.CacheSize))
	}
	for i, pattern := range cfg.Extract.Exclude {
		if _, err := glob.Compile(pattern, '.'); err != nil {
			errs = append(errs, fmt.Errorf("extract.exclude[%d] %q: %w", i, pattern, err))
		}
	}
	for i, prefix := range cfg.Extract.Allowed {
		if strings.TrimSpace(prefix) == "" {
			errs = append(errs, fmt.Errorf("extract.allowed[%d] must not be empty", i))
		}
	}
	return errs
}

func validateStore(cfg *Config) []error {
	var errs []error
	if strings.TrimSpace(cfg.Store.Path) == "" {
		errs = append(errs, fmt.Errorf("store.path must not be empty"))
	}
	if cfg.Store.BusyTimeout < 0 {
		errs = append(errs, fmt.Errorf("store.busy_timeout must not be negative"))
	}
	return errs
}

func validateWatch(cfg *Config) []error {
	var errs []error
	if cfg.Watch.Debounce < 0 {
		errs = append(errs, fmt.Errorf("watch.debounce must not be negative"))
	}
	if cfg.Watch.MinInterval < 0 {
		errs = append(errs, fmt.Errorf("watch.min_interval must not be negative"))
	}
	for i, dir := range cfg.Watch.ExcludeDirs {
		if _, err := glob.Compile(dir); err != nil {
			errs = append(errs, fmt.Errorf("watch.exclude_dirs[%d] %q: %w", i, dir, err))
		}
	}
	return errs
}

func validateObservability(cfg *Config) []error {
	if cfg.Observability.EnableTracing && strings.TrimSpace(cfg.Observability.OTLPEndpoint) == "" {
		return []error{fmt.Errorf("observability.otlp_endpoint is required when tracing is enabled")}
	}
	return nil
}

func validateCompare(cfg *Config) []error {
	var errs []error
	if level := strings.TrimSpace(cfg.Compare.CheckLevel); level != "" {
		if _, err := model.ParseLevel(level); err != nil {
			errs = append(errs, fmt.Errorf("compare.check_level: %w", err))
		}
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Compare.Format)) {
	case "json", "yaml":
	default:
		errs = append(errs, fmt.Errorf("compare.format must be json or yaml, got %q", cfg.Compare.Format))
	}
	return errs
}
