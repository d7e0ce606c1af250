// Package term resolves whether ANSI colors should be used for a given
// output stream.
package term

import (
	"os"
	"strings"

	"github.com/backmassage/retempo/internal/config"
)

// Raw escape sequences used outside the log writer (banner and tables).
// Callers decide with [Enabled] whether to emit them.
const (
	Red     = "\033[1;91m"
	Green   = "\033[1;92m"
	Orange  = "\033[1;38;5;208m"
	Magenta = "\033[1;95m"
	NC      = "\033[0m"
)

// Enabled resolves the color mode for f, honoring TTY detection, the
// NO_COLOR env var (https://no-color.org) and TERM=dumb.
func Enabled(mode config.ColorMode, f *os.File) bool {
	switch mode {
	case config.ColorAlways:
		return true
	case config.ColorNever:
		return false
	default: // ColorAuto
		return IsTerminal(f) &&
			os.Getenv("NO_COLOR") == "" &&
			strings.ToLower(os.Getenv("TERM")) != "dumb"
	}
}

// IsTerminal reports whether f is attached to a TTY (character device).
func IsTerminal(f *os.File) bool {
	if f == nil {
		return false
	}
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}
