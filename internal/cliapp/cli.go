package cliapp

import (
	"fmt"

	"github.com/spf13/cobra"

	"apisurface/internal/core/config"
)

// versionString is replaced at build time with -ldflags "-X apisurface/internal/cliapp.versionString=...".
var versionString = "0.1.0"

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
	// exitThreshold reports that compare --check found a change at or above
	// the requested level.
	exitThreshold = 3
)

type cliOptions struct {
	configPath string
	verbose    bool
}

// usageError marks errors caused by bad arguments rather than failed work.
type usageError struct {
	err error
}

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) != n {
			return usageError{fmt.Errorf("%s expects %d argument(s), got %d", cmd.CommandPath(), n, len(args))}
		}
		return nil
	}
}

func minimumArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) < n {
			return usageError{fmt.Errorf("%s expects at least %d argument(s)", cmd.CommandPath(), n)}
		}
		return nil
	}
}

func newRootCmd(rt *runtime) *cobra.Command {
	root := &cobra.Command{
		Use:   "apisurface",
		Short: "Extract the public API surface of Python packages and grade changes",
		Long: `apisurface reads Python sources, records the public API surface of a
package and compares two surfaces to recommend a semantic-version bump.

Examples:
  apisurface dump mypkg -o before.json
  apisurface compare before.json after.json --check major
  apisurface compare --against-commit HEAD~1 mypkg
  apisurface compare before.json after.json --report sarif
  apisurface bump minor 1.4.2
  apisurface store save mypkg
  apisurface watch mypkg`,
		Version:       versionString,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			switch cmd.Name() {
			case "help", "version":
				return nil
			}
			return rt.setup(cmd.Context())
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError{err}
	})
	root.PersistentFlags().StringVar(&rt.opts.configPath, "config", config.DefaultFile, "Path to config file")
	root.PersistentFlags().BoolVarP(&rt.opts.verbose, "verbose", "v", false, "Enable verbose logging")

	root.AddCommand(
		newDumpCmd(rt),
		newCompareCmd(rt),
		newBumpCmd(rt),
		newStoreCmd(rt),
		newWatchCmd(rt),
		newConfigCmd(rt),
		newVersionCmd(),
	)
	return root
}
