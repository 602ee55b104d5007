// Package cli holds the conventions shared by the drone binaries: exit
// codes, error reporting, color and logging.
package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	xterm "golang.org/x/term"

	"github.com/drone-os/drone/pkg/signals"
)

// Exit codes.
const (
	ExitOK      = 0
	ExitFailure = 1
)

// Report prints err to w and returns the process exit code.  Operator
// interruption exits with failure but prints nothing: the operator asked
// for it.
func Report(w io.Writer, palette *Palette, err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, signals.ErrInterrupted):
		return ExitFailure
	}
	fmt.Fprintf(w, "%s: %v\n", palette.Error().Render("Error"), err)
	return ExitFailure
}

// Exit reports err on stderr and terminates the process.
func Exit(palette *Palette, err error) {
	os.Exit(Report(os.Stderr, palette, err))
}

// NewLogger returns the diagnostic logger.  A terminal on f gets
// human-readable text; anything else gets JSON lines.  verbose lowers
// the level to debug.
func NewLogger(f *os.File, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	options := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if xterm.IsTerminal(int(f.Fd())) {
		handler = slog.NewTextHandler(f, options)
	} else {
		handler = slog.NewJSONHandler(f, options)
	}
	return slog.New(handler)
}
