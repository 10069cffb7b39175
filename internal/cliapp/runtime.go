package cliapp

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	coreapp "apisurface/internal/core/app"
	"apisurface/internal/core/config"
	"apisurface/internal/core/errors"
	"apisurface/internal/core/ports"
	"apisurface/internal/shared/observability"
)

// runtime carries the state shared by every command of one invocation.
type runtime struct {
	opts   cliOptions
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	// cwd overrides the working directory, for tests.
	cwd string

	cfg        *config.Config
	configPath string
	paths      config.ResolvedPaths
	app        *coreapp.App
	svc        ports.SurfaceService
	shutdown   func(context.Context) error

	// exitCode is set by commands that succeed but still fail the process,
	// such as compare --check.
	exitCode int
}

func Run(args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return run(ctx, args, os.Stdin, os.Stdout, os.Stderr, "")
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer, cwd string) int {
	rt := &runtime{stdin: stdin, stdout: stdout, stderr: stderr, cwd: cwd}
	root := newRootCmd(rt)
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if closeErr := rt.close(); closeErr != nil {
		slog.Warn("shutdown failed", "error", closeErr)
	}
	if err != nil {
		return reportError(stderr, err)
	}
	return rt.exitCode
}

func reportError(w io.Writer, err error) int {
	var usage usageError
	if stderrors.As(err, &usage) || strings.HasPrefix(err.Error(), "unknown command") {
		fmt.Fprintf(w, "error: %v\nRun 'apisurface --help' for usage.\n", err)
		return exitUsage
	}
	if stderrors.Is(err, context.Canceled) {
		return exitError
	}
	fmt.Fprintf(w, "error: %v\n", err)
	return exitError
}

// setup loads configuration and builds the app. It runs before every
// command except help and version.
func (rt *runtime) setup(ctx context.Context) error {
	configureLogging(rt.stderr, rt.opts.verbose)

	cwd := rt.cwd
	if cwd == "" {
		wd, err := os.Getwd()
		if err != nil {
			return err
		}
		cwd = wd
	}
	if err := config.LoadDotEnv(cwd); err != nil {
		slog.Warn("failed to load .env", "error", err)
	}

	configPath := config.ResolveRelative(cwd, rt.opts.configPath)
	cfg, err := loadConfig(configPath, rt.opts.configPath != config.DefaultFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	config.ApplyEnvOverrides(cfg)
	if errs := config.Validate(cfg); len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", stderrors.Join(errs...))
	}
	paths, err := config.ResolvePaths(cfg, cwd)
	if err != nil {
		return err
	}

	if cfg.Observability.EnableTracing {
		shutdown, err := observability.InitTracing(ctx, observability.TracingConfig{
			ServiceName:  cfg.Observability.ServiceName,
			Version:      versionString,
			OTLPEndpoint: cfg.Observability.OTLPEndpoint,
			Insecure:     cfg.Observability.OTLPInsecure,
		})
		if err != nil {
			return err
		}
		rt.shutdown = shutdown
	}

	app, err := coreapp.New(cfg, paths)
	if err != nil {
		return err
	}
	rt.cfg = cfg
	rt.configPath = configPath
	rt.paths = paths
	rt.app = app
	rt.svc = app.SurfaceService()
	slog.Debug("configuration loaded", "config", configPath, "project_root", paths.ProjectRoot)
	return nil
}

func (rt *runtime) close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var errs []error
	if rt.app != nil {
		errs = append(errs, rt.app.Close(ctx))
		rt.app = nil
	}
	if rt.shutdown != nil {
		errs = append(errs, rt.shutdown(ctx))
		rt.shutdown = nil
	}
	return stderrors.Join(errs...)
}

// loadConfig reads path. The default file may be absent; an explicitly
// named one may not.
func loadConfig(path string, explicit bool) (*config.Config, error) {
	if explicit {
		return config.Load(path)
	}
	return config.LoadOrDefault(path)
}

func configureLogging(w io.Writer, verbose bool) {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)
}

// openInput returns stdin for "-" and the named file otherwise.
func (rt *runtime) openInput(path string) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(rt.stdin), nil
	}
	f, err := os.Open(rt.resolve(path))
	if err != nil {
		if stderrors.Is(err, os.ErrNotExist) {
			return nil, errors.AddContext(errors.Wrap(err, errors.CodeNotFound, "snapshot file not found"), errors.CtxPath, path)
		}
		return nil, err
	}
	return f, nil
}

func (rt *runtime) resolve(path string) string {
	if path == "" || path == "-" || filepath.IsAbs(path) || rt.cwd == "" {
		return path
	}
	return filepath.Join(rt.cwd, path)
}
