package report

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"kitchensync/internal/ks"
)

// Settings are the effective options shown in the banner. They complement
// what the engine reports in ks.RunInfo.
type Settings struct {
	Version           string
	IncludeTimestamps bool
	AbortTimeout      time.Duration
	Excludes          []string
	Verbosity         int
}

// Console is the ks.Reporter for the terminal.
type Console struct {
	p        *Printer
	settings Settings
}

// NewConsole creates a Console printing through p at settings.Verbosity.
func NewConsole(p *Printer, settings Settings) *Console {
	return &Console{p: p, settings: settings}
}

func (c *Console) Started(info ks.RunInfo) {
	if c.settings.Verbosity < 1 {
		return
	}
	c.p.Plain(c.banner(info)...)
	if info.Preview {
		c.p.Plain("", "PREVIEW MODE: no changes will be made. Use -p=Y to perform the sync.", "")
	}
}

func (c *Console) banner(info ks.RunInfo) []string {
	timeout := "disabled"
	if c.settings.AbortTimeout > 0 {
		timeout = fmt.Sprintf("%d seconds", int(c.settings.AbortTimeout.Seconds()))
	}
	lines := []string{"kitchensync configuration:"}
	if c.settings.Version != "" {
		lines = append(lines, "  Version:            "+c.settings.Version)
	}
	return append(lines,
		"  Source:             "+info.Source,
		"  Destination:        "+info.Destination,
		"  Preview:            "+enabled(info.Preview),
		"  Include timestamps: "+enabled(c.settings.IncludeTimestamps),
		"  Use modtime:        "+enabled(!info.Mode.IgnoreModTime),
		"  Greater size only:  "+enabled(info.Mode.GreaterSizeOnly),
		"  Force copy:         "+enabled(info.Mode.Force),
		"  Abort timeout:      "+timeout,
		"  Excludes:           "+fmt.Sprintf("[%s]", strings.Join(c.settings.Excludes, ", ")),
		"  Verbosity:          "+fmt.Sprint(c.settings.Verbosity),
	)
}

func (c *Console) Walked(_ ks.Side, ev ks.WalkEvent) {
	switch ev.Outcome {
	case ks.WalkExcluded:
		c.verbose("excluding " + ev.RelPath)
	case ks.WalkLinkSkipped:
		c.verbose("skipping symlink " + ev.RelPath)
	case ks.WalkSpecialSkipped:
		c.verbose("skipping special file " + ev.RelPath)
	case ks.WalkFailed:
		c.normal("error: " + ev.Err.Error())
	}
}

func (c *Console) Acted(ev ks.ActionEvent) {
	if ev.Err != nil {
		c.normal("error: " + ev.Err.Error())
		return
	}
	rel := ev.Entry.RelPath
	switch ev.Action {
	case ks.Skip:
		c.verbose("skipping " + rel)
	case ks.Copy:
		c.normal(creating(ev.Entry))
	case ks.ArchiveAndReplace:
		c.normal(archiving(ev))
		c.normal(creating(ev.Entry))
	case ks.ArchiveAndRemove:
		c.normal(archiving(ev))
		c.normal("removing " + rel)
	case ks.UpdateModTime:
		c.normal("updating modification time " + rel)
	}
}

func creating(e ks.Entry) string {
	if e.IsDir() {
		return "creating directory " + e.RelPath
	}
	return "copying " + e.RelPath
}

func archiving(ev ks.ActionEvent) string {
	if ev.ArchivedTo == "" {
		return "archiving " + ev.Entry.RelPath
	}
	return "archiving " + ev.Entry.RelPath + " -> " + ev.ArchivedTo
}

func (c *Console) Finished(s *ks.RunSummary) {
	if c.settings.Verbosity < 1 {
		return
	}

	lines := []string{
		"",
		"Synchronization summary:",
		fmt.Sprintf("  Files copied:           %d", s.Copied),
		fmt.Sprintf("  Directories created:    %d", s.DirsCreated),
		fmt.Sprintf("  Entries archived:       %d", s.Archived),
		fmt.Sprintf("  Entries removed:        %d", s.Removed),
		fmt.Sprintf("  Files skipped:          %d", s.Skipped),
		fmt.Sprintf("  Modification times set: %d", s.Touched),
		fmt.Sprintf("  Entries filtered:       %d", s.Filtered),
		fmt.Sprintf("  Symlinks skipped:       %d", s.LinksSkipped),
		fmt.Sprintf("  Errors:                 %d", len(s.Errors)),
	}
	if s.ArchiveDir != "" {
		lines = append(lines, "  Archive:                "+s.ArchiveDir)
	}
	if s.Interrupted {
		lines = append(lines, "", "Synchronization was interrupted before all entries were processed.")
	}

	if len(s.Errors) > 0 {
		lines = append(lines, "", fmt.Sprintf("Synchronization completed with %d errors:", len(s.Errors)))
		for i, err := range s.Errors {
			op, path := "sync", "N/A"
			var failure ks.EntryFailure
			if errors.As(err, &failure) {
				op, path = failure.Operation(), failure.Path()
				if path == "" {
					path = "."
				}
			}
			lines = append(lines,
				"",
				fmt.Sprintf("Error %d:", i+1),
				"  Operation: "+op,
				"  Path:      "+path,
				"  Reason:    "+Reason(err),
			)
		}
	}

	if s.Preview {
		lines = append(lines, "", "PREVIEW MODE: no changes were made. Use -p=Y to perform the sync shown above.")
	}
	c.p.Plain(lines...)
}

func (c *Console) normal(msg string) {
	if c.settings.Verbosity >= 1 {
		c.p.Line(msg)
	}
}

func (c *Console) verbose(msg string) {
	if c.settings.Verbosity >= 2 {
		c.p.Line(msg)
	}
}

func enabled(b bool) string {
	if b {
		return "enabled"
	}
	return "disabled"
}

// Compile-time check that Console implements ks.Reporter
var _ ks.Reporter = (*Console)(nil)
