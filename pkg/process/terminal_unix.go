//go:build !windows

package process

import (
	"io"
	"os"
	"os/exec"
	"os/signal"

	"github.com/creack/pty"
	"golang.org/x/sys/unix"
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

// SpawnTerminal starts cmd on a fresh pseudo-terminal wired to streams.
// The operator's terminal is switched to raw mode for the lifetime of
// the child, so keystrokes such as Ctrl+C reach the child through its
// own line discipline instead of signalling drone.  Window size changes
// are forwarded.  The terminal is restored once the child is reaped.
func SpawnTerminal(cmd *exec.Cmd, streams Streams) (*Handle, error) {
	ptmx, err := pty.Start(cmd)
	if err != nil {
		return nil, &SpawnError{Command: Describe(cmd), Err: err}
	}

	if size, err := pty.GetsizeFull(streams.Stdin); err == nil {
		_ = pty.Setsize(ptmx, size)
	}
	restore := makeRaw(streams.Stdin)

	winch := make(chan os.Signal, 1)
	signal.Notify(winch, unix.SIGWINCH)
	stopResize := make(chan struct{})
	go func() {
		for {
			select {
			case <-winch:
				if size, err := pty.GetsizeFull(streams.Stdin); err == nil {
					_ = pty.Setsize(ptmx, size)
				}
			case <-stopResize:
				return
			}
		}
	}()

	outputDone := make(chan struct{})
	go func() {
		_, _ = io.Copy(ptmx, streams.Stdin)
	}()
	go func() {
		_, _ = io.Copy(streams.Stdout, ptmx)
		close(outputDone)
	}()

	wait := func() error {
		// The pty reports EOF only once the child and everything that
		// inherited the slave side are gone.
		<-outputDone
		err := cmd.Wait()

		signal.Stop(winch)
		close(stopResize)
		restore()
		_ = ptmx.Close()
		return err
	}
	return watch(cmd, wait), nil
}

func makeRaw(f *os.File) func() {
	if !IsTerminal(f) {
		return func() {}
	}
	fd := int(f.Fd())
	oldState, err := xterm.MakeRaw(fd)
	if err != nil {
		return func() {}
	}
	return func() {
		_ = xterm.Restore(fd, oldState)
	}
}
