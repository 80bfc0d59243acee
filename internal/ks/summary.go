package ks

import (
	"time"

	"github.com/google/uuid"
)

// Clock supplies the run start, which also names the archive session.
type Clock interface {
	Now() time.Time
}

// RealClock reads the system clock.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// IDGenerator supplies run IDs.
type IDGenerator interface {
	New() string
}

// UUIDGenerator makes random (version 4) run IDs.
type UUIDGenerator struct{}

func (UUIDGenerator) New() string { return uuid.NewString() }

// RunSummary holds the counters of one run. It is owned and mutated by the
// Engine; reporters read it once the pass is over.
type RunSummary struct {
	RunID       string
	Source      string
	Destination string
	Preview     bool

	Copied       int // files copied, including replacements
	DirsCreated  int
	Archived     int // entries moved into the archive session
	Removed      int // destination-only entries removed after archiving
	Skipped      int // files left untouched
	Touched      int // files whose mtime was updated
	Filtered     int // nodes excluded on either side
	LinksSkipped int

	Errors      []error
	Interrupted bool

	// ArchiveDir is the session directory, empty if nothing was archived.
	ArchiveDir string

	StartedAt  time.Time
	FinishedAt time.Time
}

// Failed reports whether any entry failed or the pass was cut short.
func (s *RunSummary) Failed() bool {
	return len(s.Errors) > 0 || s.Interrupted
}

// Mutations returns the number of destination changes made (or, in preview,
// that would have been made).
func (s *RunSummary) Mutations() int {
	return s.Copied + s.DirsCreated + s.Archived + s.Removed + s.Touched
}
