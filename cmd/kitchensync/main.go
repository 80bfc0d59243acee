package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"kitchensync/internal/app"
	"kitchensync/internal/config"
	"kitchensync/internal/ks"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes the command line and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return exitCode(root.ExecuteContext(ctx), stderr)
}

// exitError carries a process exit code out of a command whose problems
// were already reported.
type exitError struct {
	code int
}

func (e *exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

// exitCode maps an error to 0 (success), 1 (entry failures or any other
// error) or 2 (configuration error), printing it to stderr.
func exitCode(err error, stderr io.Writer) int {
	if err == nil {
		return 0
	}
	var exit *exitError
	if errors.As(err, &exit) {
		return exit.code
	}
	fmt.Fprintf(stderr, "error: %v\n", err)
	var cfgErr *ks.ConfigError
	if errors.As(err, &cfgErr) {
		return 2
	}
	return 1
}

// loadConfig reads the config file, falling back to built-in defaults.
func loadConfig() (*config.Config, app.Paths, error) {
	paths, err := app.DefaultPaths()
	if err != nil {
		return nil, paths, ks.NewConfigError("getting defaults", err)
	}

	cfg, err := config.Load(paths.ConfigPath, paths.BaseDir)
	if err != nil {
		return nil, paths, ks.NewConfigError("reading config", err)
	}
	return cfg, paths, nil
}

// syncOptions holds the values of the root command's flags.
type syncOptions struct {
	perform           yesNo
	verbosity         int
	excludes          []string
	greaterSizeOnly   yesNo
	includeTimestamps yesNo
	useModTime        yesNo
	force             yesNo
	abortTimeout      int
}

func newRootCmd() *cobra.Command {
	opts := &syncOptions{
		verbosity:    config.DefaultVerbosity,
		useModTime:   true,
		abortTimeout: config.DefaultAbortTimeout,
	}

	root := &cobra.Command{
		Use:   "kitchensync [options] SOURCE DESTINATION",
		Short: "Mirror a directory, archiving everything it replaces or removes",
		Long: `kitchensync makes DESTINATION match SOURCE. Destination files and
directories that would be overwritten or deleted are first moved to
DESTINATION/.kitchensync/<timestamp>/, so nothing is ever lost.

Without -p=Y the run is a preview: every action is shown and nothing changes.`,
		Version:       version,
		Args:          syncArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return cmd.Help()
			}
			return runSync(cmd, opts, args[0], args[1])
		},
	}
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return ks.NewConfigError("invalid arguments", err)
	})

	f := root.Flags()
	f.VarP(&opts.perform, "perform", "p", "perform the sync (Y) or only preview it (N)")
	f.IntVarP(&opts.verbosity, "verbosity", "v", opts.verbosity, "0 silent, 1 actions and summary, 2 everything")
	f.StringArrayVarP(&opts.excludes, "exclude", "x", nil, "exclude names matching `PATTERN` (repeatable)")
	f.VarP(&opts.greaterSizeOnly, "greater-size-only", "g", "only copy files larger than their destination counterpart")
	f.VarP(&opts.includeTimestamps, "include-timestamps", "t", "include names that look like timestamps")
	f.VarP(&opts.useModTime, "use-modtime", "m", "compare modification times as well as sizes")
	f.VarP(&opts.force, "force", "c", "copy every file even if it looks unchanged")
	f.IntVarP(&opts.abortTimeout, "abort-timeout", "a", opts.abortTimeout, "abort a copy making no progress for `SECONDS` (0 disables)")

	root.AddCommand(newHistoryCmd(), newConfigCmd())
	return root
}

func syncArgs(_ *cobra.Command, args []string) error {
	if len(args) == 1 || len(args) > 2 {
		return ks.NewConfigError(fmt.Sprintf("expected SOURCE and DESTINATION, got %d arguments", len(args)), nil)
	}
	return nil
}

func runSync(cmd *cobra.Command, opts *syncOptions, source, dest string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	// Flags given on the command line win over the config file; excludes
	// from both are combined.
	s := app.SettingsFromConfig(cfg)
	s.Source = source
	s.Destination = dest
	s.Version = version
	s.Perform = bool(opts.perform)
	s.GreaterSizeOnly = bool(opts.greaterSizeOnly)
	s.Force = bool(opts.force)
	s.Excludes = append(s.Excludes, opts.excludes...)

	f := cmd.Flags()
	if f.Changed("verbosity") {
		s.Verbosity = opts.verbosity
	}
	if f.Changed("include-timestamps") {
		s.IncludeTimestamps = bool(opts.includeTimestamps)
	}
	if f.Changed("use-modtime") {
		s.UseModTime = bool(opts.useModTime)
	}
	if f.Changed("abort-timeout") {
		if opts.abortTimeout < 0 {
			return ks.NewConfigError(fmt.Sprintf("abort timeout must not be negative, got %d", opts.abortTimeout), nil)
		}
		s.AbortTimeout = time.Duration(opts.abortTimeout) * time.Second
	}

	a, err := app.NewApp(cfg, s, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer a.Close()

	summary, err := a.Sync(cmd.Context())
	if err != nil {
		return err
	}
	if summary.Failed() {
		return &exitError{code: 1}
	}
	return nil
}
