package app

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"kitchensync/internal/report"
	"kitchensync/internal/testutil"
)

func TestFileHandler_Handle(t *testing.T) {
	ts := time.Date(2024, 6, 15, 14, 30, 45, 0, time.UTC)

	tests := []struct {
		name    string
		runID   string
		level   slog.Level
		message string
		attrs   []slog.Attr
		want    string
	}{
		{
			name:    "basic info message",
			runID:   "run-123",
			level:   slog.LevelInfo,
			message: "created archive session",
			want:    "2024-06-15T14:30:45Z\tINFO\trun-123\tcreated archive session\n",
		},
		{
			name:    "debug level",
			runID:   "run-456",
			level:   slog.LevelDebug,
			message: "loading directory",
			want:    "2024-06-15T14:30:45Z\tDEBUG\trun-456\tloading directory\n",
		},
		{
			name:    "with record attrs",
			runID:   "run-789",
			level:   slog.LevelWarn,
			message: "skipping broken symlink",
			attrs:   []slog.Attr{slog.String("path", "docs/link"), slog.Int("depth", 2)},
			want:    "2024-06-15T14:30:45Z\tWARN\trun-789\tskipping broken symlink\tpath=docs/link\tdepth=2\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			h := &fileHandler{w: &buf, runID: tt.runID}

			r := slog.NewRecord(ts, tt.level, tt.message, 0)
			for _, a := range tt.attrs {
				r.AddAttrs(a)
			}

			if err := h.Handle(context.Background(), r); err != nil {
				t.Fatalf("Handle() error = %v", err)
			}

			if got := buf.String(); got != tt.want {
				t.Errorf("Handle() output =\n%q\nwant:\n%q", got, tt.want)
			}
		})
	}
}

func TestFileHandler_WithAttrs(t *testing.T) {
	var buf bytes.Buffer
	h := &fileHandler{w: &buf, runID: "run-1", attrs: []slog.Attr{slog.String("a", "1")}}

	h2 := h.WithAttrs([]slog.Attr{slog.String("component", "archive")}).(*fileHandler)

	if len(h.attrs) != 1 {
		t.Errorf("original handler attrs modified: got %d, want 1", len(h.attrs))
	}

	r := slog.NewRecord(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), slog.LevelInfo, "moved", 0)
	r.AddAttrs(slog.String("key", "abc"))
	if err := h2.Handle(context.Background(), r); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	got := buf.String()
	if !strings.Contains(got, "\tcomponent=archive") {
		t.Errorf("expected pre-set attr component=archive, got: %q", got)
	}
	if !strings.Contains(got, "\tkey=abc") {
		t.Errorf("expected record attr key=abc, got: %q", got)
	}
}

func TestTeeHandler(t *testing.T) {
	var file, console bytes.Buffer
	p := report.NewPrinter(&console, testutil.FixedClock())
	h := teeHandler{
		&fileHandler{w: &file, runID: "run-1"},
		report.NewConsoleHandler(p, slog.LevelWarn),
	}
	logger := slog.New(h)

	logger.Debug("loading directory", "path", "docs")
	logger.Warn("skipping broken symlink", "path", "docs/link")

	if got := strings.Count(file.String(), "\n"); got != 2 {
		t.Errorf("file got %d lines, want 2:\n%s", got, file.String())
	}
	if strings.Contains(console.String(), "loading directory") {
		t.Errorf("console should not show debug records, got: %q", console.String())
	}
	if !strings.Contains(console.String(), "warning: skipping broken symlink path=docs/link") {
		t.Errorf("console missing warning, got: %q", console.String())
	}
}

func TestTeeHandler_Enabled(t *testing.T) {
	p := report.NewPrinter(&bytes.Buffer{}, testutil.FixedClock())
	silent := teeHandler{report.NewConsoleHandler(p, report.LevelSilent)}
	if silent.Enabled(context.Background(), slog.LevelError) {
		t.Error("Enabled(Error) = true for a silent console")
	}

	withFile := append(silent, &fileHandler{})
	if !withFile.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("Enabled(Debug) = false with a file handler")
	}
}

func TestNewLogger(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "log")
	p := report.NewPrinter(&bytes.Buffer{}, testutil.FixedClock())

	logger, f, err := newLogger(dir, "run-1", report.NewConsoleHandler(p, report.LevelSilent))
	if err != nil {
		t.Fatalf("newLogger() error = %v", err)
	}
	logger.Info("run finished", "copied", 3)
	f.Close()

	data, err := os.ReadFile(filepath.Join(dir, LogFileName))
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if !strings.Contains(string(data), "\trun-1\trun finished\tcopied=3\n") {
		t.Errorf("unexpected log file content: %q", data)
	}
}
