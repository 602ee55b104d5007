// Package process starts external tools, waits for them under operator
// cancellation, and classifies how they ended.
package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"

	"github.com/drone-os/drone/pkg/signals"
)

// SpawnError reports that a process could not be started at all
// (missing binary, permission denied).
type SpawnError struct {
	Command string
	Err     error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("`%s` failed to execute: %v", e.Command, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// ExitCodeError reports a process that exited with a nonzero status.
type ExitCodeError struct {
	Command string
	Code    int
}

func (e *ExitCodeError) Error() string {
	return fmt.Sprintf("`%s` exited with status code: %d", e.Command, e.Code)
}

// SignalledError reports a process that was terminated by a signal and
// therefore has no exit code.
type SignalledError struct {
	Command string
}

func (e *SignalledError) Error() string {
	return fmt.Sprintf("`%s` terminated by signal", e.Command)
}

// Describe renders cmd the way errors refer to it.
func Describe(cmd *exec.Cmd) string {
	return cmd.String()
}

// classify maps the result of exec.Cmd.Wait onto the error taxonomy.
func classify(command string, err error) error {
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if code := exitErr.ExitCode(); code >= 0 {
			return &ExitCodeError{Command: command, Code: code}
		}
		return &SignalledError{Command: command}
	}
	return fmt.Errorf("waiting for `%s`: %w", command, err)
}

// Run starts cmd and waits for it to finish.  The wait is abandoned when
// a signal outside ignore arrives on sub or ctx is cancelled; the child
// is then killed and reaped before Run returns the interruption.
func Run(ctx context.Context, sub *signals.Subscription, cmd *exec.Cmd, ignore ...signals.Kind) error {
	h, err := Spawn(cmd)
	if err != nil {
		return err
	}
	return Supervise(ctx, sub, h, ignore...)
}

// Supervise waits for an already spawned child the way Run does, killing
// and reaping it if the wait is interrupted.  sub may be nil to wait on
// ctx alone.
func Supervise(ctx context.Context, sub *signals.Subscription, h *Handle, ignore ...signals.Kind) error {
	err := signals.Do(ctx, sub, h.Wait, ignore...)
	if errors.Is(err, signals.ErrInterrupted) || ctx.Err() != nil {
		_ = h.Kill()
	}
	return err
}

// Output runs cmd like Run and returns its standard output.
func Output(ctx context.Context, sub *signals.Subscription, cmd *exec.Cmd, ignore ...signals.Kind) ([]byte, error) {
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	if err := Run(ctx, sub, cmd, ignore...); err != nil {
		return nil, err
	}
	return stdout.Bytes(), nil
}
