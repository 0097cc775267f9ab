package main

import (
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// progressLabel/progressCount style the single status line a progressReporter
// rewrites in place via carriage return.
var (
	progressLabel = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#11C3DB"))
	progressCount = lipgloss.NewStyle().Foreground(lipgloss.Color("15"))
)

// progressReporter writes a rewriting stderr status line every N processed
// extensions. It never touches stdout, and its line is advisory: nothing
// downstream parses it.
//
// Tick is called synchronously from the driver's own scan loop, so there is
// no event loop to run: lipgloss supplies the styling for a counter with no
// input and no screen to manage.
type progressReporter struct {
	w     io.Writer
	every int

	mu       sync.Mutex
	seen     int
	lastLine int
}

func newProgressReporter(w io.Writer, every int) *progressReporter {
	return &progressReporter{w: w, every: every}
}

// Tick records one processed extension and, every `every` calls, rewrites
// the status line. every <= 0 disables reporting entirely.
func (r *progressReporter) Tick() {
	if r.every <= 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen++
	if r.seen%r.every != 0 {
		return
	}
	line := fmt.Sprintf("\r%s %s", progressLabel.Render("scanned"), progressCount.Render(fmt.Sprintf("%d", r.seen)))
	fmt.Fprint(r.w, line)
	r.lastLine = r.seen
}

// Close writes a final newline so the rewritten status line doesn't run into
// whatever the driver prints next.
func (r *progressReporter) Close() error {
	if r.every <= 0 || r.lastLine == 0 {
		return nil
	}
	fmt.Fprintln(r.w)
	return nil
}
