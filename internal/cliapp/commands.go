package cliapp

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"apisurface/internal/core/config"
	"apisurface/internal/core/model"
	"apisurface/internal/core/ports"
	"apisurface/internal/ui/report"
)

func newDumpCmd(rt *runtime) *cobra.Command {
	var output, format string
	cmd := &cobra.Command{
		Use:   "dump TARGET...",
		Short: "Extract the public API surface of one or more modules",
		Long: `Extract the public API surface of each TARGET and write it as a snapshot.
A TARGET is a dotted module name, a package directory or a .py file.`,
		Args: minimumArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := snapshotFormat(format, output, rt.cfg.Compare.Format)
			if err != nil {
				return usageError{err}
			}
			res, err := rt.svc.Dump(cmd.Context(), ports.DumpRequest{Targets: args})
			if err != nil {
				return err
			}
			slog.Info("surface extracted",
				"modules", len(res.Modules),
				"files_parsed", res.FilesParsed,
				"cache_hits", res.CacheHits,
				"duration", res.Duration.Round(time.Millisecond),
			)
			return writeSnapshot(rt.stdout, rt.resolve(output), f, res.Modules)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the snapshot to a file instead of stdout")
	cmd.Flags().StringVar(&format, "format", "", "Snapshot format: json or yaml (default from file extension or config)")
	return cmd
}

type compareOptions struct {
	againstCommit string
	check         string
	report        string
	version       string
	format        string
}

func newCompareCmd(rt *runtime) *cobra.Command {
	var opts compareOptions
	cmd := &cobra.Command{
		Use:   "compare BEFORE AFTER | compare --against-commit REV TARGET...",
		Short: "Compare two surfaces and recommend a version bump",
		Long: `Compare two snapshot files ("-" reads stdin), or a stored snapshot against
the current sources. With --check, the command exits with status 3 when any
change is at or above the given level. A comparison that finds no changes
always passes, even with --check patch.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rt.runCompare(cmd.Context(), args, opts, cmd.Flags().Changed("check"))
		},
	}
	cmd.Flags().StringVar(&opts.againstCommit, "against-commit", "", "Compare the snapshot stored for REV with the current sources")
	cmd.Flags().StringVar(&opts.check, "check", "", "Exit 3 when a change reaches this level: patch, minor or major (default from config); no changes always pass")
	cmd.Flags().StringVar(&opts.report, "report", "text", "Report format: text, json, markdown or sarif")
	cmd.Flags().StringVar(&opts.version, "current-version", "", "Current version; also prints the recommended next version")
	cmd.Flags().StringVar(&opts.format, "format", "", "Snapshot format of stdin input: json or yaml")
	return cmd
}

func (rt *runtime) runCompare(ctx context.Context, args []string, opts compareOptions, checkSet bool) error {
	check := opts.check
	if !checkSet {
		check = rt.cfg.Compare.CheckLevel
	}
	var threshold model.Level
	if strings.TrimSpace(check) != "" {
		level, err := model.ParseLevel(check)
		if err != nil {
			return usageError{err}
		}
		threshold = level
	}
	reportFormat, err := report.ParseFormat(opts.report)
	if err != nil {
		return usageError{err}
	}

	before, after, labels, err := rt.compareInputs(ctx, args, opts)
	if err != nil {
		return err
	}
	res, err := rt.svc.Compare(ctx, ports.CompareRequest{Before: before, After: after})
	if err != nil {
		return err
	}

	comparison := report.Comparison{
		Before:  labels[0],
		After:   labels[1],
		Level:   res.Level,
		Summary: res.Summary,
		Changes: res.Changes,
	}
	if opts.version != "" {
		bumped, err := rt.svc.Bump(ctx, ports.BumpRequest{Level: res.Level, Version: opts.version})
		if err != nil {
			return err
		}
		comparison.Next = bumped.Next
	}
	if err := report.Write(rt.stdout, reportFormat, comparison, report.Options{
		ProjectName: filepath.Base(rt.paths.ProjectRoot),
		ToolVersion: versionString,
	}); err != nil {
		return err
	}

	// An empty comparison still has level PATCH; it never fails the check.
	if strings.TrimSpace(check) != "" && len(res.Changes) > 0 && res.Level >= threshold {
		fmt.Fprintf(rt.stderr, "check failed: %s change found (threshold %s)\n", res.Level, threshold)
		rt.exitCode = exitThreshold
	}
	return nil
}

// compareInputs returns the before and after surfaces with a label for each.
func (rt *runtime) compareInputs(ctx context.Context, args []string, opts compareOptions) ([]*model.Module, []*model.Module, [2]string, error) {
	if opts.againstCommit != "" {
		if len(args) == 0 {
			return nil, nil, [2]string{}, usageError{fmt.Errorf("--against-commit needs at least one TARGET")}
		}
		loaded, err := rt.svc.LoadSnapshot(ctx, opts.againstCommit)
		if err != nil {
			return nil, nil, [2]string{}, err
		}
		dumped, err := rt.svc.Dump(ctx, ports.DumpRequest{Targets: args})
		if err != nil {
			return nil, nil, [2]string{}, err
		}
		return loaded.Modules, dumped.Modules, [2]string{shorten(loaded.Ref.Commit, 12), "working tree"}, nil
	}

	if len(args) != 2 {
		return nil, nil, [2]string{}, usageError{fmt.Errorf("compare expects BEFORE and AFTER snapshots, got %d argument(s)", len(args))}
	}
	if args[0] == "-" && args[1] == "-" {
		return nil, nil, [2]string{}, usageError{fmt.Errorf("only one of BEFORE and AFTER may be read from stdin")}
	}
	before, err := rt.readSnapshot(args[0], opts.format)
	if err != nil {
		return nil, nil, [2]string{}, err
	}
	after, err := rt.readSnapshot(args[1], opts.format)
	if err != nil {
		return nil, nil, [2]string{}, err
	}
	return before, after, [2]string{args[0], args[1]}, nil
}

func (rt *runtime) readSnapshot(path, formatFlag string) ([]*model.Module, error) {
	f, err := snapshotFormat(formatFlag, path, rt.cfg.Compare.Format)
	if err != nil {
		return nil, usageError{err}
	}
	r, err := rt.openInput(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return decodeSnapshot(r, f, path)
}

func newBumpCmd(rt *runtime) *cobra.Command {
	var beforePath, afterPath string
	cmd := &cobra.Command{
		Use:   "bump LEVEL VERSION | bump --before A --after B VERSION",
		Short: "Apply a change level to a MAJOR.MINOR.PATCH version",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			var level model.Level
			var version string
			switch {
			case beforePath != "" || afterPath != "":
				if beforePath == "" || afterPath == "" {
					return usageError{fmt.Errorf("--before and --after must be used together")}
				}
				if len(args) != 1 {
					return usageError{fmt.Errorf("bump --before --after expects VERSION, got %d argument(s)", len(args))}
				}
				before, err := rt.readSnapshot(beforePath, "")
				if err != nil {
					return err
				}
				after, err := rt.readSnapshot(afterPath, "")
				if err != nil {
					return err
				}
				res, err := rt.svc.Compare(ctx, ports.CompareRequest{Before: before, After: after})
				if err != nil {
					return err
				}
				level, version = res.Level, args[0]
			default:
				if len(args) != 2 {
					return usageError{fmt.Errorf("bump expects LEVEL and VERSION, got %d argument(s)", len(args))}
				}
				parsed, err := model.ParseLevel(args[0])
				if err != nil {
					return usageError{err}
				}
				level, version = parsed, args[1]
			}

			res, err := rt.svc.Bump(ctx, ports.BumpRequest{Level: level, Version: version})
			if err != nil {
				return err
			}
			fmt.Fprintln(rt.stdout, res.Next)
			return nil
		},
	}
	cmd.Flags().StringVar(&beforePath, "before", "", "Snapshot to compare from")
	cmd.Flags().StringVar(&afterPath, "after", "", "Snapshot to compare to")
	return cmd
}

func newStoreCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "store",
		Short: "Save and load snapshots keyed by git commit",
	}

	var commit string
	save := &cobra.Command{
		Use:   "save TARGET...",
		Short: "Extract TARGETs and store the surface under a commit (default HEAD)",
		Args:  minimumArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			dumped, err := rt.svc.Dump(ctx, ports.DumpRequest{Targets: args})
			if err != nil {
				return err
			}
			ref, err := rt.svc.SaveSnapshot(ctx, ports.SaveRequest{Commit: commit, Modules: dumped.Modules})
			if err != nil {
				return err
			}
			fmt.Fprintf(rt.stdout, "%s %s %s\n", ref.Commit, shorten(ref.Digest, 12), ref.Module)
			return nil
		},
	}
	save.Flags().StringVar(&commit, "commit", "", "Commit to store the snapshot under (default: resolved HEAD)")

	var output, format string
	load := &cobra.Command{
		Use:   "load COMMIT",
		Short: "Write the snapshot stored for COMMIT",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := snapshotFormat(format, output, rt.cfg.Compare.Format)
			if err != nil {
				return usageError{err}
			}
			loaded, err := rt.svc.LoadSnapshot(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return writeSnapshot(rt.stdout, rt.resolve(output), f, loaded.Modules)
		},
	}
	load.Flags().StringVarP(&output, "output", "o", "", "Write the snapshot to a file instead of stdout")
	load.Flags().StringVar(&format, "format", "", "Snapshot format: json or yaml")

	list := &cobra.Command{
		Use:   "list",
		Short: "List stored snapshots",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			refs, err := rt.svc.ListSnapshots(cmd.Context())
			if err != nil {
				return err
			}
			renderRefs(rt.stdout, refs)
			return nil
		},
	}

	cmd.AddCommand(save, load, list)
	return cmd
}

func newWatchCmd(rt *runtime) *cobra.Command {
	var againstCommit string
	cmd := &cobra.Command{
		Use:   "watch TARGET...",
		Short: "Re-extract TARGETs on every source change and report against a baseline",
		Long: `Watch the sources of each TARGET. The baseline is the surface at start-up,
or the snapshot stored for --against-commit. Watch settings in the config
file are reloaded while running.`,
		Args: minimumArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			req := ports.WatchRequest{Targets: args}
			if againstCommit != "" {
				loaded, err := rt.svc.LoadSnapshot(ctx, againstCommit)
				if err != nil {
					return err
				}
				req.Baseline = loaded.Modules
			}

			if stop := rt.watchConfig(ctx); stop != nil {
				defer stop()
			}
			err := rt.svc.Watch(ctx, req, func(u ports.WatchUpdate) {
				renderWatchUpdate(rt.stdout, u)
			})
			if err != nil && ctx.Err() != nil {
				return nil
			}
			return err
		},
	}
	cmd.Flags().StringVar(&againstCommit, "against-commit", "", "Use the snapshot stored for REV as the baseline")
	return cmd
}

// watchConfig reloads [watch] settings while a watch runs. It returns nil
// when there is no config file to follow.
func (rt *runtime) watchConfig(ctx context.Context) func() {
	if _, err := os.Stat(rt.configPath); err != nil {
		return nil
	}
	w := config.NewWatcher(rt.configPath, func(cfg *config.Config) {
		rt.app.ApplyWatchConfig(cfg.Watch)
	})
	if err := w.Start(ctx); err != nil {
		slog.Warn("config reload disabled", "path", rt.configPath, "error", err)
		return nil
	}
	return w.Stop
}

func newConfigCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the effective configuration",
	}
	show := &cobra.Command{
		Use:   "show",
		Short: "Print the configuration after defaults and environment overrides",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			return toml.NewEncoder(rt.stdout).Encode(rt.cfg)
		},
	}
	paths := &cobra.Command{
		Use:   "paths",
		Short: "Print the resolved project, store and metrics paths",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(rt.stdout, "config:       %s\n", rt.configPath)
			fmt.Fprintf(rt.stdout, "project_root: %s\n", rt.paths.ProjectRoot)
			fmt.Fprintf(rt.stdout, "store:        %s\n", rt.paths.StorePath)
			fmt.Fprintf(rt.stdout, "metrics_file: %s\n", rt.paths.MetricsFile)
			for _, p := range rt.paths.SearchPaths {
				fmt.Fprintf(rt.stdout, "search_path:  %s\n", p)
			}
			return nil
		},
	}
	cmd.AddCommand(show, paths)
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "apisurface v%s\n", versionString)
			return nil
		},
	}
}
