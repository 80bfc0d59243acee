// Package report renders a run on the console: the settings banner, one line
// per action, warnings from the log, and the closing summary.
package report

import (
	"fmt"
	"io"
	"sync"

	"kitchensync/internal/ks"
)

// TimeLayout prefixes every progress line.
const TimeLayout = "2006-01-02_15:04:05"

// Printer writes whole lines to w. Reporter output and console log records
// share one Printer so their lines never interleave.
type Printer struct {
	mu    sync.Mutex
	w     io.Writer
	clock ks.Clock
}

// NewPrinter creates a Printer stamping lines with clock.
func NewPrinter(w io.Writer, clock ks.Clock) *Printer {
	return &Printer{w: w, clock: clock}
}

// Line writes "[timestamp] msg".
func (p *Printer) Line(msg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, "[%s] %s\n", p.clock.Now().Format(TimeLayout), msg)
}

// Plain writes lines as they are.
func (p *Printer) Plain(lines ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, l := range lines {
		fmt.Fprintln(p.w, l)
	}
}
