//go:build windows

package process

import (
	"os"
	"os/exec"

	xterm "golang.org/x/term"
)

// Streams bundles the operator's terminal for an interactive child.
type Streams struct {
	Stdin  *os.File
	Stdout *os.File
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return f != nil && xterm.IsTerminal(int(f.Fd()))
}

// SpawnTerminal starts cmd with the console handed over directly;
// Windows has no pseudo-terminal to interpose.
func SpawnTerminal(cmd *exec.Cmd, streams Streams) (*Handle, error) {
	cmd.Stdin = streams.Stdin
	cmd.Stdout = streams.Stdout
	return Spawn(cmd)
}
