package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"kitchensync/internal/config"
	"kitchensync/internal/journal"
	"kitchensync/internal/ks"
)

// ErrNoJournal is returned when history is requested but no run was ever
// journaled.
var ErrNoJournal = errors.New("no journal found")

// History gives read access to the run journal.
type History struct {
	journal *journal.Journal
}

// OpenHistory opens the journal configured in cfg. It never creates one.
func OpenHistory(cfg *config.Config) (*History, error) {
	if !cfg.JournalEnabled() {
		return nil, ks.NewConfigError("the journal is disabled in the config file", nil)
	}
	if _, err := os.Stat(cfg.Journal.Path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w at %s", ErrNoJournal, cfg.Journal.Path)
		}
		return nil, fmt.Errorf("checking journal: %w", err)
	}
	j, err := journal.Open(cfg.Journal.Path, ks.NewNopLogger(), ks.RealClock{})
	if err != nil {
		return nil, err
	}
	return &History{journal: j}, nil
}

// Runs returns the most recent runs, newest first.
func (h *History) Runs(ctx context.Context, limit int) ([]*journal.Run, error) {
	return h.journal.ListRuns(ctx, limit)
}

// Run returns one run and the entries it archived.
func (h *History) Run(ctx context.Context, id string) (*journal.Run, []*journal.ArchivedEntry, error) {
	run, err := h.journal.FindRun(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if run == nil {
		return nil, nil, fmt.Errorf("run %s not found", id)
	}
	entries, err := h.journal.ListArchived(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return run, entries, nil
}

// Close closes the journal.
func (h *History) Close() error {
	return h.journal.Close()
}
