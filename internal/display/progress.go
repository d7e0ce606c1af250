package display

import (
	"fmt"
	"io"
	"strings"

	"github.com/backmassage/retempo/internal/batch"
)

const lineWidth = 80

// Progress shows a live batch counter. On a TTY it writes an inline
// \r-overwritten line; otherwise it is a no-op (the per-record log lines
// already provide enough breadcrumbs in piped/logged output).
type Progress struct {
	w     io.Writer
	tty   bool
	dirty bool
}

// NewProgress returns a printer writing to w. tty selects inline updates.
func NewProgress(w io.Writer, tty bool) *Progress {
	return &Progress{w: w, tty: tty}
}

// Update renders p. It matches the batch progress callback signature.
func (pr *Progress) Update(p batch.Progress) {
	if !pr.tty || p.Total == 0 {
		return
	}
	pct := p.Done * 100 / p.Total
	status := fmt.Sprintf("  Records [%d/%d] %d%% ", p.Done, p.Total, pct)
	c := p.Counts
	status += fmt.Sprintf("ok %d  skip %d  fail %d ", c.Succeeded, c.Skipped, c.Failed)
	status += truncate(fmt.Sprintf("(record %d: %s)", p.RecordID, p.Status), 30)

	// Pad to the line width to overwrite previous longer lines, then \r.
	if len(status) < lineWidth {
		status += strings.Repeat(" ", lineWidth-len(status))
	}
	fmt.Fprintf(pr.w, "\r%s", status)
	pr.dirty = true
}

// Clear erases the inline progress line on a TTY.
func (pr *Progress) Clear() {
	if !pr.tty || !pr.dirty {
		return
	}
	fmt.Fprintf(pr.w, "\r%s\r", strings.Repeat(" ", lineWidth))
	pr.dirty = false
}
