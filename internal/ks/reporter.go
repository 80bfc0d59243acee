package ks

import "time"

// RunInfo describes a run as it starts.
type RunInfo struct {
	RunID       string
	Source      string
	Destination string
	Preview     bool
	Mode        CompareMode
	StartedAt   time.Time
}

// ActionEvent describes one decided entry, after its action was performed
// (or, in preview, after it was counted).
type ActionEvent struct {
	Action  Action
	Entry   Entry
	Preview bool
	// ArchivedTo is where the destination entry went (or would go in preview).
	// Empty for actions that do not archive.
	ArchivedTo string
	// Replaced is the destination entry that was archived, if any.
	Replaced *Entry
	Err      error
}

// Reporter receives the progress of a run. Implementations must be safe for
// concurrent use: walk events arrive from both tree walks at once.
type Reporter interface {
	Started(info RunInfo)
	Walked(side Side, ev WalkEvent)
	Acted(ev ActionEvent)
	Finished(summary *RunSummary)
}

// MultiReporter fans events out to several reporters in order.
type MultiReporter []Reporter

func (m MultiReporter) Started(info RunInfo) {
	for _, r := range m {
		r.Started(info)
	}
}

func (m MultiReporter) Walked(side Side, ev WalkEvent) {
	for _, r := range m {
		r.Walked(side, ev)
	}
}

func (m MultiReporter) Acted(ev ActionEvent) {
	for _, r := range m {
		r.Acted(ev)
	}
}

func (m MultiReporter) Finished(summary *RunSummary) {
	for _, r := range m {
		r.Finished(summary)
	}
}

// NopReporter discards all events. Use in tests.
type NopReporter struct{}

func (NopReporter) Started(RunInfo)        {}
func (NopReporter) Walked(Side, WalkEvent) {}
func (NopReporter) Acted(ActionEvent)      {}
func (NopReporter) Finished(*RunSummary)   {}

var (
	_ Reporter = MultiReporter(nil)
	_ Reporter = NopReporter{}
)

// Logger is the structured log sink of the engine and its collaborators.
// args alternate keys and values, as with log/slog.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// NopLogger drops everything.
type NopLogger struct{}

func NewNopLogger() *NopLogger { return &NopLogger{} }

func (*NopLogger) Debug(string, ...any) {}
func (*NopLogger) Info(string, ...any)  {}
func (*NopLogger) Warn(string, ...any)  {}
func (*NopLogger) Error(string, ...any) {}
