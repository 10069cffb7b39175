package config

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads dir/.env into the process environment without replacing
// variables that are already set. A missing file is not an error.
func LoadDotEnv(dir string) error {
	err := godotenv.Load(filepath.Join(dir, ".env"))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// ApplyEnvOverrides applies environment variable overrides to the configuration.
// Pattern: APISURFACE_[SECTION]_[KEY] (e.g., APISURFACE_EXTRACT_DEPTH).
func ApplyEnvOverrides(cfg *Config) {
	setEnvString(&cfg.ProjectRoot, "APISURFACE_PROJECT_ROOT")

	// Extract
	setEnvList(&cfg.Extract.SearchPaths, "APISURFACE_EXTRACT_SEARCH_PATHS")
	setEnvBool(&cfg.Extract.ExcludeModules, "APISURFACE_EXTRACT_EXCLUDE_MODULES")
	setEnvBool(&cfg.Extract.AllFilter, "APISURFACE_EXTRACT_ALL_FILTER")
	setEnvInt(&cfg.Extract.Depth, "APISURFACE_EXTRACT_DEPTH")
	setEnvList(&cfg.Extract.Exclude, "APISURFACE_EXTRACT_EXCLUDE")
	setEnvList(&cfg.Extract.Allowed, "APISURFACE_EXTRACT_ALLOWED")
	setEnvBool(&cfg.Extract.PromoteSignatureErrors, "APISURFACE_EXTRACT_PROMOTE_SIGNATURE_ERRORS")
	setEnvInt(&cfg.Extract.CacheSize, "APISURFACE_EXTRACT_CACHE_SIZE")

	// Store
	setEnvString(&cfg.Store.Path, "APISURFACE_STORE_PATH")
	setEnvDuration(&cfg.Store.BusyTimeout, "APISURFACE_STORE_BUSY_TIMEOUT")

	// Watch
	setEnvDuration(&cfg.Watch.Debounce, "APISURFACE_WATCH_DEBOUNCE")
	setEnvDuration(&cfg.Watch.MinInterval, "APISURFACE_WATCH_MIN_INTERVAL")
	setEnvList(&cfg.Watch.ExcludeDirs, "APISURFACE_WATCH_EXCLUDE_DIRS")

	// Observability
	setEnvString(&cfg.Observability.MetricsFile, "APISURFACE_OBSERVABILITY_METRICS_FILE")
	setEnvBool(&cfg.Observability.EnableTracing, "APISURFACE_OBSERVABILITY_ENABLE_TRACING")
	setEnvString(&cfg.Observability.OTLPEndpoint, "APISURFACE_OBSERVABILITY_OTLP_ENDPOINT")
	setEnvBool(&cfg.Observability.OTLPInsecure, "APISURFACE_OBSERVABILITY_OTLP_INSECURE")
	setEnvString(&cfg.Observability.ServiceName, "APISURFACE_OBSERVABILITY_SERVICE_NAME")

	// Compare
	setEnvString(&cfg.Compare.CheckLevel, "APISURFACE_COMPARE_CHECK_LEVEL")
	setEnvString(&cfg.Compare.Format, "APISURFACE_COMPARE_FORMAT")
}

func setEnvString(target *string, key string) {
	if val, ok := os.LookupEnv(key); ok {
		slog.Debug("applying env override", "key", key, "value", val)
		*target = val
	}
}

// setEnvList splits a comma-separated value, dropping empty entries.
func setEnvList(target *[]string, key string) {
	if val, ok := os.LookupEnv(key); ok {
		var items []string
		for _, item := range strings.Split(val, ",") {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
		slog.Debug("applying env override", "key", key, "value", val)
		*target = items
	}
}

func setEnvInt(target *int, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(val); err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = i
		}
	}
}

func setEnvBool(target *bool, key string) {
	if val, ok := os.LookupEnv(key); ok {
		b, err := strconv.ParseBool(strings.ToLower(val))
		if err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = b
		}
	}
}

func setEnvDuration(target *time.Duration, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(val); err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = d
		}
	}
}
