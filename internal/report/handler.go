package report

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// LevelSilent is above every level the application logs at.
const LevelSilent = slog.LevelError + 4

// LevelFor maps a verbosity to the lowest log level shown on the console.
// Verbosity 1 shows warnings and errors; 2 adds everything down to debug.
func LevelFor(verbosity int) slog.Level {
	switch {
	case verbosity <= 0:
		return LevelSilent
	case verbosity == 1:
		return slog.LevelWarn
	default:
		return slog.LevelDebug
	}
}

// ConsoleHandler is a slog.Handler that prints records as progress lines:
//
//	[<timestamp>] <level prefix><message> <key=value ...>
type ConsoleHandler struct {
	p     *Printer
	level slog.Leveler
	attrs []slog.Attr
}

// NewConsoleHandler creates a handler printing records at or above level.
func NewConsoleHandler(p *Printer, level slog.Leveler) *ConsoleHandler {
	return &ConsoleHandler{p: p, level: level}
}

func (h *ConsoleHandler) Enabled(_ context.Context, l slog.Level) bool {
	return l >= h.level.Level()
}

func (h *ConsoleHandler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder
	switch {
	case r.Level >= slog.LevelError:
		b.WriteString("error: ")
	case r.Level >= slog.LevelWarn:
		b.WriteString("warning: ")
	}
	b.WriteString(r.Message)

	for _, a := range h.attrs {
		fmt.Fprintf(&b, " %s=%v", a.Key, a.Value)
	}
	r.Attrs(func(a slog.Attr) bool {
		fmt.Fprintf(&b, " %s=%v", a.Key, a.Value)
		return true
	})

	h.p.Line(b.String())
	return nil
}

func (h *ConsoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ConsoleHandler{
		p:     h.p,
		level: h.level,
		attrs: append(append([]slog.Attr{}, h.attrs...), attrs...),
	}
}

func (h *ConsoleHandler) WithGroup(string) slog.Handler { return h }
