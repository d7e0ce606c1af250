package display

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/backmassage/retempo/internal/batch"
	"github.com/backmassage/retempo/internal/naming"
	"github.com/backmassage/retempo/internal/preview"
	"github.com/backmassage/retempo/internal/term"
	"github.com/backmassage/retempo/internal/undo"
)

const timeLayout = "2006-01-02 15:04:05"

// colorPad pads s to width and wraps it in color when enabled. Padding is
// applied first so escape sequences never count toward the column width.
func colorPad(s string, width int, color string, enabled bool) string {
	padded := fmt.Sprintf("%-*s", width, s)
	if !enabled || color == "" {
		return padded
	}
	return color + padded + term.NC
}

func statusColor(s batch.Status) string {
	switch s {
	case batch.StatusSucceeded:
		return term.Green
	case batch.StatusFailed:
		return term.Red
	case batch.StatusRemaining:
		return term.Orange
	default:
		return ""
	}
}

// PrintOutcome prints the end-of-batch summary and the failing jobs.
func PrintOutcome(w io.Writer, out *batch.Outcome, color bool) {
	c := out.Counts
	fmt.Fprintf(w, "\nRun %s: %s at %sx\n", out.RunID, out.State, naming.FormatSpeed(out.Speed))
	fmt.Fprintf(w, "  Succeeded: %d\n  Skipped:   %d\n  Failed:    %d\n  Remaining: %d\n",
		c.Succeeded, c.Skipped, c.Failed, c.Remaining)
	fmt.Fprintf(w, "  Duration:  %s\n", out.FinishedAt.Sub(out.StartedAt).Round(time.Millisecond))

	for _, warn := range out.Warnings {
		fmt.Fprintf(w, "  %s\n", colorPad("Warning: "+warn, 0, term.Orange, color))
	}
	if out.Error != "" {
		fmt.Fprintf(w, "  %s\n", colorPad("Error: "+out.Error, 0, term.Red, color))
	}
	if len(out.Failures) == 0 {
		return
	}

	fmt.Fprintf(w, "\n  %-14s %-6s %-20s %-32s\n", "RECORD", "FIELD", "KIND", "FILE")
	for _, f := range out.Failures {
		fmt.Fprintf(w, "  %-14d %-6d %s %-32s\n",
			f.RecordID, f.FieldID, colorPad(string(f.Kind), 20, term.Red, color), truncate(f.Filename, 32))
		if f.Detail != "" {
			fmt.Fprintf(w, "      %s\n", truncate(firstLine(f.Detail), 72))
		}
	}
}

// PrintRecords prints one line per record with its terminal status.
func PrintRecords(w io.Writer, records []batch.RecordResult, color bool) {
	for _, r := range records {
		detail := ""
		for _, j := range r.Jobs {
			if j.Status == batch.StatusSucceeded {
				detail += " " + j.Reference + " -> " + j.Target
			}
		}
		fmt.Fprintf(w, "  %-14d %s%s\n", r.RecordID, colorPad(string(r.Status), 10, statusColor(r.Status), color), detail)
	}
}

// PrintDetection prints a dry-run summary.
func PrintDetection(w io.Writer, d *batch.Detection, speed float64) {
	fmt.Fprintf(w, "Dry run at %sx over %d records\n", naming.FormatSpeed(speed), d.Records)
	fmt.Fprintf(w, "  With audio:        %d\n", d.WithAudio)
	fmt.Fprintf(w, "  Without audio:     %d\n", d.WithoutAudio)
	if d.Unreadable > 0 {
		fmt.Fprintf(w, "  Unreadable:        %d\n", d.Unreadable)
	}
	fmt.Fprintf(w, "  References:        %d\n", d.References)
	fmt.Fprintf(w, "  Would transform:   %d\n", d.Pending)
	fmt.Fprintf(w, "  Already processed: %d\n", d.Processed)
	fmt.Fprintf(w, "  Already at speed:  %d\n", d.AlreadyAtSpeed)
	fmt.Fprintf(w, "  Missing files:     %d\n", d.Missing)
	for _, j := range d.Jobs {
		src := ""
		if j.Source != j.Reference {
			src = " (from " + j.Source + ")"
		}
		fmt.Fprintf(w, "    %d/%d %s -> %s%s\n", j.RecordID, j.FieldID, j.Reference, j.Target, src)
	}
}

// PrintPreview prints original and preview paths with durations.
func PrintPreview(w io.Writer, pairs []preview.Pair, color bool) {
	if len(pairs) == 0 {
		fmt.Fprintln(w, "No sound references to preview.")
		return
	}
	for i, p := range pairs {
		fmt.Fprintf(w, "%d. %s (record %d)\n", i+1, p.Reference, p.RecordID)
		if p.Err != nil {
			fmt.Fprintf(w, "   %s\n", colorPad("failed: "+firstLine(p.Err.Error()), 0, term.Red, color))
			continue
		}
		fmt.Fprintf(w, "   original  %-9s %-10s %s\n",
			FormatDuration(p.OriginalDuration), FormatBytes(p.OriginalSize), p.Original)
		fmt.Fprintf(w, "   preview   %-9s %-10s %s (%s)\n",
			FormatDuration(p.PreviewDuration), FormatBytes(p.PreviewSize), p.Preview,
			FormatBytesWithSign(p.PreviewSize-p.OriginalSize))
	}
}

// PrintReverts prints the result of an undo.
func PrintReverts(w io.Writer, outcomes []undo.RevertOutcome) {
	var reverted, stale, blocked int
	for _, o := range outcomes {
		fmt.Fprintf(w, "  record %-14d reverted %d", o.RecordID, o.Reverted)
		if o.Stale > 0 {
			fmt.Fprintf(w, ", %d stale", o.Stale)
		}
		if o.Blocked > 0 {
			fmt.Fprintf(w, ", %d blocked by a later run", o.Blocked)
		}
		fmt.Fprintln(w)
		reverted += o.Reverted
		stale += o.Stale
		blocked += o.Blocked
	}
	fmt.Fprintf(w, "Reverted %d references in %d records (%d stale, %d blocked)\n",
		reverted, len(outcomes), stale, blocked)
}

// PrintHistory prints undo entries grouped by run, oldest run first.
func PrintHistory(w io.Writer, entries []undo.Entry, color bool) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "Undo log is empty.")
		return
	}
	var (
		order []string
		byRun = make(map[string][]undo.Entry)
	)
	for _, e := range entries {
		if _, ok := byRun[e.RunID]; !ok {
			order = append(order, e.RunID)
		}
		byRun[e.RunID] = append(byRun[e.RunID], e)
	}

	for _, run := range order {
		es := byRun[run]
		label := run
		if label == "" {
			label = "(no run id)"
		}
		fmt.Fprintf(w, "%s  %s  %d entries\n",
			colorPad(label, 36, term.Magenta, color), es[0].CreatedAt.Local().Format(timeLayout), len(es))
		for _, e := range es {
			fmt.Fprintf(w, "  %-14d %-3d %5sx  %s -> %s\n",
				e.RecordID, e.FieldID, naming.FormatSpeed(e.Speed), e.Original, e.New)
		}
	}
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
