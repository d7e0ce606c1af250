package display

import (
	"fmt"
	"io"

	"github.com/backmassage/retempo/internal/term"
)

// PrintBanner prints the ASCII art banner; uses Magenta if color is set.
func PrintBanner(w io.Writer, color bool) {
	if color {
		fmt.Fprint(w, term.Magenta)
	}
	fmt.Fprint(w, `           _
 _ __ ___| |_ ___ _ __ ___  _ __   ___
| '__/ _ \ __/ _ \ '_ `+"`"+` _ \| '_ \ / _ \
| | |  __/ ||  __/ | | | | | |_) | (_) |
|_|  \___|\__\___|_| |_| |_| .__/ \___/
                           |_|
`)
	if color {
		fmt.Fprintln(w, term.NC)
	}
}
