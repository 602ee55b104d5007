package process

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"
)

// waitDelay bounds how long reaping waits for I/O pipes after the child
// exits, so a grandchild holding stdout open cannot stall the wait.
const waitDelay = time.Second

// ExitedError is returned by Kill when the process had already exited
// on its own before anyone asked it to stop.
type ExitedError struct {
	Command string
	// Err is the classified exit status, nil for a clean exit.
	Err error
}

func (e *ExitedError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("`%s` exited before it was stopped", e.Command)
	}
	return fmt.Sprintf("`%s` exited before it was stopped: %v", e.Command, e.Err)
}

func (e *ExitedError) Unwrap() error { return e.Err }

// Handle supervises a spawned child.  The child is reaped in the
// background as soon as it exits, so its status is never lost.  The
// owner must call Kill on every exit path.
type Handle struct {
	cmd     *exec.Cmd
	command string

	done chan struct{}
	err  error

	killMu sync.Mutex
	killed bool
}

// Spawn starts cmd and returns a handle to it.
func Spawn(cmd *exec.Cmd) (*Handle, error) {
	if cmd.WaitDelay == 0 {
		cmd.WaitDelay = waitDelay
	}
	if err := cmd.Start(); err != nil {
		return nil, &SpawnError{Command: Describe(cmd), Err: err}
	}
	return watch(cmd, cmd.Wait), nil
}

// watch reaps an already started cmd with wait.
func watch(cmd *exec.Cmd, wait func() error) *Handle {
	h := &Handle{
		cmd:     cmd,
		command: Describe(cmd),
		done:    make(chan struct{}),
	}
	go func() {
		h.err = classify(h.command, wait())
		close(h.done)
	}()
	return h
}

// Pid returns the child's process id.
func (h *Handle) Pid() int {
	return h.cmd.Process.Pid
}

// Command returns the description used in errors.
func (h *Handle) Command() string {
	return h.command
}

// Done is closed once the child has exited and been reaped.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until the child exits and returns its classified status.
func (h *Handle) Wait() error {
	<-h.done
	return h.err
}

// Kill terminates the child and waits until it is reaped.  It is safe to
// call any number of times; only the first call has an effect.  If the
// child had already exited on its own, Kill returns an *ExitedError
// describing that exit.
func (h *Handle) Kill() error {
	h.killMu.Lock()
	defer h.killMu.Unlock()

	if h.killed {
		<-h.done
		return nil
	}
	h.killed = true

	select {
	case <-h.done:
		return &ExitedError{Command: h.command, Err: h.err}
	default:
	}

	if err := kill(h.cmd); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("killing `%s`: %w", h.command, err)
	}
	<-h.done
	return nil
}
