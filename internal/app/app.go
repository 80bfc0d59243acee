package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/afero"

	"kitchensync/internal/archive"
	"kitchensync/internal/config"
	"kitchensync/internal/fs"
	"kitchensync/internal/journal"
	"kitchensync/internal/ks"
	"kitchensync/internal/report"
)

// Settings are the effective options of one sync run, after the config file
// defaults and the command line are merged.
type Settings struct {
	Source      string
	Destination string
	Version     string

	Perform           bool
	Verbosity         int
	Excludes          []string
	GreaterSizeOnly   bool
	IncludeTimestamps bool
	UseModTime        bool
	Force             bool
	AbortTimeout      time.Duration
}

// SettingsFromConfig returns the settings implied by cfg alone.
func SettingsFromConfig(cfg *config.Config) Settings {
	d := cfg.Defaults
	return Settings{
		Verbosity:         d.VerbosityOr(config.DefaultVerbosity),
		Excludes:          append([]string(nil), d.Exclude...),
		IncludeTimestamps: d.IncludeTimestampsOr(false),
		UseModTime:        d.UseModTimeOr(true),
		AbortTimeout:      time.Duration(d.AbortTimeoutOr(config.DefaultAbortTimeout)) * time.Second,
	}
}

// App is the application layer between the CLI and the ks.Engine.
// It constructs all dependencies from config and settings and releases the
// log file and journal on Close.
type App struct {
	cfg      *config.Config
	settings Settings
	engine   *ks.Engine
	journal  *journal.Journal
	logger   ks.Logger
	logFile  *os.File
}

// NewApp creates a fully wired App printing progress to stdout.
// The caller must call Close when done.
func NewApp(cfg *config.Config, s Settings, stdout io.Writer) (*App, error) {
	return newApp(cfg, s, stdout, ks.RealClock{}, ks.UUIDGenerator{})
}

func newApp(cfg *config.Config, s Settings, stdout io.Writer, clock ks.Clock, idgen ks.IDGenerator) (*App, error) {
	if s.Verbosity < 0 || s.Verbosity > 2 {
		return nil, ks.NewConfigError(fmt.Sprintf("verbosity must be 0, 1 or 2, got %d", s.Verbosity), nil)
	}
	if s.AbortTimeout < 0 {
		return nil, ks.NewConfigError("abort timeout must not be negative", nil)
	}

	patterns := s.Excludes
	if cfg.Defaults.ExcludeFrom != "" {
		fromFile, err := fs.ParseExcludeFile(cfg.Defaults.ExcludeFrom)
		if err != nil {
			return nil, ks.NewConfigError("reading exclude_from", err)
		}
		patterns = append(append([]string(nil), patterns...), fromFile...)
	}
	filter, err := fs.NewFilter(patterns, s.IncludeTimestamps)
	if err != nil {
		return nil, err
	}

	// The run ID is fixed up front so every log line of the run carries it.
	runID := idgen.New()
	printer := report.NewPrinter(stdout, clock)
	console := report.NewConsoleHandler(printer, report.LevelFor(s.Verbosity))
	sl, logFile, err := newLogger(cfg.LogDir, runID, console)
	if err != nil {
		return nil, ks.NewConfigError("creating logger", err)
	}
	logger := &slogAdapter{l: sl}

	reporters := ks.MultiReporter{report.NewConsole(printer, report.Settings{
		Version:           s.Version,
		IncludeTimestamps: s.IncludeTimestamps,
		AbortTimeout:      s.AbortTimeout,
		Excludes:          filter.Patterns(),
		Verbosity:         s.Verbosity,
	})}

	var j *journal.Journal
	if cfg.JournalEnabled() {
		j, err = openJournal(cfg.Journal.Path, logger, clock)
		if err != nil {
			logger.Warn("journal unavailable, run will not be recorded", "path", cfg.Journal.Path, "error", err)
		} else {
			reporters = append(reporters, j)
		}
	}

	osfs := afero.NewOsFs()
	engine := ks.NewEngine(
		osfs,
		fs.NewWalker(osfs, filter, logger),
		archive.NewArchiver(osfs, logger),
		fs.NewCopier(osfs, s.AbortTimeout, logger),
		reporters,
		logger,
		clock,
		presetID(runID),
		ks.Options{
			Preview: !s.Perform,
			Mode: ks.CompareMode{
				GreaterSizeOnly: s.GreaterSizeOnly,
				IgnoreModTime:   !s.UseModTime,
				Force:           s.Force,
			},
		},
	)

	return &App{
		cfg:      cfg,
		settings: s,
		engine:   engine,
		journal:  j,
		logger:   logger,
		logFile:  logFile,
	}, nil
}

// presetID hands out the ID chosen before the engine was built.
type presetID string

func (p presetID) New() string { return string(p) }

func openJournal(path string, logger ks.Logger, clock ks.Clock) (*journal.Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating journal directory: %w", err)
	}
	return journal.Open(path, logger, clock)
}

// Sync runs the engine once from the source to the destination.
// A *ks.ConfigError means nothing was done.
func (a *App) Sync(ctx context.Context) (*ks.RunSummary, error) {
	summary, err := a.engine.Run(ctx, a.settings.Source, a.settings.Destination)
	if err != nil {
		a.logger.Info("run aborted", "error", err)
		return nil, err
	}
	return summary, nil
}

// Close closes the journal and the log file.
func (a *App) Close() error {
	var firstErr error
	if a.journal != nil {
		if err := a.journal.Close(); err != nil {
			firstErr = fmt.Errorf("closing journal: %w", err)
		}
	}
	if a.logFile != nil {
		if err := a.logFile.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing log file: %w", err)
		}
	}
	return firstErr
}
