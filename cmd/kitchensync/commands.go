package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"kitchensync/internal/app"
	"kitchensync/internal/config"
	"kitchensync/internal/journal"
)

const listTimeLayout = "2006-01-02 15:04:05"

// history command
func newHistoryCmd() *cobra.Command {
	var (
		limit int
		runID string
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "View journaled runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}

			h, err := app.OpenHistory(cfg)
			if errors.Is(err, app.ErrNoJournal) {
				fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded.")
				return nil
			}
			if err != nil {
				return err
			}
			defer h.Close()

			if runID != "" {
				run, entries, err := h.Run(cmd.Context(), runID)
				if err != nil {
					return err
				}
				printRun(cmd, run, entries)
				return nil
			}

			runs, err := h.Runs(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded.")
				return nil
			}
			for _, r := range runs {
				fmt.Fprintln(cmd.OutOrStdout(), runLine(r))
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs to show")
	cmd.Flags().StringVar(&runID, "run", "", "Show the entries archived by one run")
	return cmd
}

func runLine(r *journal.Run) string {
	duration := ""
	if r.FinishedAt.Valid {
		duration = r.FinishedAt.Time.Sub(r.StartedAt).Truncate(time.Millisecond).String()
	}
	status := r.Status
	if r.Preview {
		status += " (preview)"
	}
	return fmt.Sprintf("%s  %s  %-21s  %8s  %s -> %s",
		r.ID,
		r.StartedAt.Local().Format(listTimeLayout),
		status,
		duration,
		r.Source,
		r.Destination,
	)
}

func printRun(cmd *cobra.Command, r *journal.Run, entries []*journal.ArchivedEntry) {
	w := cmd.OutOrStdout()
	fmt.Fprintln(w, runLine(r))
	fmt.Fprintf(w, "  copied %d, directories created %d, archived %d, removed %d, errors %d\n",
		r.Copied, r.DirsCreated, r.Archived, r.Removed, r.Errors)
	if r.ArchiveDir != "" {
		fmt.Fprintf(w, "  archive: %s\n", r.ArchiveDir)
	}
	if len(entries) == 0 {
		fmt.Fprintln(w, "  No entries archived.")
		return
	}
	fmt.Fprintln(w)
	for _, e := range entries {
		fmt.Fprintf(w, "%-8s  %-9s  %s -> %s\n", e.Reason, e.Kind, e.RelativePath, e.ArchivePath)
	}
}

// config command
func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
	}
	cmd.AddCommand(newConfigInitCmd(), newConfigListCmd())
	return cmd
}

func newConfigInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a config file with the default settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := app.DefaultPaths()
			if err != nil {
				return fmt.Errorf("failed to get defaults: %w", err)
			}

			cfg := config.NewConfig(paths.BaseDir)
			if err := config.Init(paths.ConfigPath, cfg); err != nil {
				return fmt.Errorf("failed to initialize config: %w", err)
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Configuration initialized at %s\n", paths.ConfigPath)
			fmt.Fprintf(w, "Base Dir: %s\n", cfg.BaseDir)
			return nil
		},
	}
}

func newConfigListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "View configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, paths, err := loadConfig()
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			path := paths.ConfigPath
			if _, err := os.Stat(path); err != nil {
				fmt.Fprintf(w, "No config file at %s, using built-in defaults:\n\n", path)
			} else {
				fmt.Fprintf(w, "Configuration from %s:\n\n", path)
			}

			d := cfg.Defaults
			journalPath := "disabled"
			if cfg.JournalEnabled() {
				journalPath = cfg.Journal.Path
			}
			fmt.Fprintf(w, "Base Dir:           %s\n", cfg.BaseDir)
			fmt.Fprintf(w, "Log Dir:            %s\n", cfg.LogDir)
			fmt.Fprintf(w, "Journal:            %s\n", journalPath)
			fmt.Fprintf(w, "Verbosity:          %d\n", d.VerbosityOr(config.DefaultVerbosity))
			fmt.Fprintf(w, "Include timestamps: %s\n", yn(d.IncludeTimestampsOr(false)))
			fmt.Fprintf(w, "Use modtime:        %s\n", yn(d.UseModTimeOr(true)))
			fmt.Fprintf(w, "Abort timeout:      %ds\n", d.AbortTimeoutOr(config.DefaultAbortTimeout))
			fmt.Fprintf(w, "Excludes:           [%s]\n", strings.Join(d.Exclude, ", "))
			if d.ExcludeFrom != "" {
				fmt.Fprintf(w, "Exclude from:       %s\n", d.ExcludeFrom)
			}
			return nil
		},
	}
}

func yn(b bool) string {
	v := yesNo(b)
	return v.String()
}
