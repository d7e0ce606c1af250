// Command retempo changes the playback speed of the audio referenced by
// flashcard records without changing its pitch, rewrites the references and
// keeps an undo log so every change can be reverted.
//
// Subcommands: run (or run --dry-run), preview, undo, history and check.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
)

// version and commit are injected at build time via -ldflags.
var (
	version = "0.1.0"
	commit  = "unknown"
)

// errFailures ends a command with exit status 1 after its output has
// already explained why.
var errFailures = errors.New("completed with failures")

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// run executes the CLI and returns the process exit code: 0 on success, 1
// on any refused command or failed job.
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	a := newApp(stdin, stdout, stderr)
	defer a.close()

	root := a.rootCmd()
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	if err := root.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errFailures) {
			if a.log != nil {
				a.log.Error("%v", err)
			} else {
				fmt.Fprintf(stderr, "retempo: %v\n", err)
			}
		}
		return 1
	}
	return 0
}
