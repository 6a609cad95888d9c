// Package render formats sessions, contracts, artifacts and repair results
// for the CLI, either as plain tab-separated lines or pretty terminal output.
package render

import (
	"fmt"
	"os"
	"time"

	"golang.org/x/term"

	"github.com/pxng0lin/DeepCurrent/internal/domain"
)

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return f != nil && term.IsTerminal(int(f.Fd()))
}

var outcomeIcons = map[domain.RepairOutcome]string{
	domain.OutcomeValid:             "✓",
	domain.OutcomeRepaired:          "↻",
	domain.OutcomeDeclined:          "○",
	domain.OutcomeFailed:            "✗",
	domain.OutcomeMissingDependency: "!",
}

// OutcomeIcon returns the icon for a repair outcome.
func OutcomeIcon(o domain.RepairOutcome) string {
	if icon, ok := outcomeIcons[o]; ok {
		return icon
	}
	return "•"
}

// Truncate shortens a string to max runes.
func Truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}

// FormatDuration formats a duration in human-readable form.
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
}

// FormatBytes formats a byte count.
func FormatBytes(n int) string {
	switch {
	case n < 1024:
		return fmt.Sprintf("%dB", n)
	case n < 1024*1024:
		return fmt.Sprintf("%.1fKB", float64(n)/1024)
	default:
		return fmt.Sprintf("%.1fMB", float64(n)/(1024*1024))
	}
}
