//go:build !windows

package process

import (
	"context"
	"errors"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/drone-os/drone/internal/testutil"
	"github.com/drone-os/drone/pkg/signals"
)

func newSub(t *testing.T) (*signals.Monitor, *signals.Subscription) {
	t.Helper()
	m := signals.NewMonitor()
	sub := m.Subscribe()
	t.Cleanup(sub.Close)
	return m, sub
}

func TestRunClassification(t *testing.T) {
	_, sub := newSub(t)

	tests := []struct {
		name  string
		cmd   *exec.Cmd
		check func(t *testing.T, err error)
	}{
		{
			name: "success",
			cmd:  exec.Command("sh", "-c", "exit 0"),
			check: func(t *testing.T, err error) {
				if err != nil {
					t.Fatalf("got %v, want nil", err)
				}
			},
		},
		{
			name: "exit code",
			cmd:  exec.Command("sh", "-c", "exit 3"),
			check: func(t *testing.T, err error) {
				var exitErr *ExitCodeError
				if !errors.As(err, &exitErr) {
					t.Fatalf("got %v, want ExitCodeError", err)
				}
				if exitErr.Code != 3 {
					t.Errorf("code = %d, want 3", exitErr.Code)
				}
				if !strings.Contains(err.Error(), "exited with status code: 3") {
					t.Errorf("message %q lacks status code", err.Error())
				}
			},
		},
		{
			name: "signalled",
			cmd:  exec.Command("sh", "-c", "kill -TERM $$"),
			check: func(t *testing.T, err error) {
				var sigErr *SignalledError
				if !errors.As(err, &sigErr) {
					t.Fatalf("got %v, want SignalledError", err)
				}
			},
		},
		{
			name: "spawn failure",
			cmd:  exec.Command("/nonexistent/drone-test-binary"),
			check: func(t *testing.T, err error) {
				var spawnErr *SpawnError
				if !errors.As(err, &spawnErr) {
					t.Fatalf("got %v, want SpawnError", err)
				}
				if !strings.Contains(err.Error(), "failed to execute") {
					t.Errorf("message %q", err.Error())
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, Run(context.Background(), sub, tt.cmd))
		})
	}
}

func TestRunInterruptKillsChild(t *testing.T) {
	m, sub := newSub(t)

	cmd := exec.Command("sleep", "30")
	errs := make(chan error, 1)
	go func() { errs <- Run(context.Background(), sub, cmd) }()

	// A signal delivered before Run starts waiting stays buffered in
	// the subscription, so this cannot be lost.
	m.Deliver(signals.Terminate)

	err := testutil.RequireReceive(t, errs, 10*time.Second, "waiting for Run")
	if !errors.Is(err, signals.ErrInterrupted) {
		t.Fatalf("got %v, want interruption", err)
	}
	if cmd.ProcessState == nil {
		t.Fatal("child was not reaped before Run returned")
	}
}

func TestRunIgnoredSignal(t *testing.T) {
	m, sub := newSub(t)
	m.Deliver(signals.Interrupt)

	err := Run(context.Background(), sub, exec.Command("sh", "-c", "sleep 0.1; exit 0"), signals.Interrupt)
	if err != nil {
		t.Fatalf("got %v, want nil", err)
	}
}

func TestRunContextCancel(t *testing.T) {
	_, sub := newSub(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cmd := exec.Command("sleep", "30")
	err := Run(ctx, sub, cmd)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", err)
	}
	if cmd.ProcessState == nil {
		t.Fatal("child was not reaped")
	}
}

func TestOutput(t *testing.T) {
	_, sub := newSub(t)

	out, err := Output(context.Background(), sub, exec.Command("sh", "-c", "printf 'a\\nb\\n'"))
	if err != nil {
		t.Fatalf("Output: %v", err)
	}
	if string(out) != "a\nb\n" {
		t.Errorf("got %q", out)
	}
}

func TestOutputWithLingeringGrandchild(t *testing.T) {
	_, sub := newSub(t)

	// The backgrounded sleep inherits stdout and keeps the pipe open
	// after sh exits.
	errs := make(chan error, 1)
	go func() {
		_, err := Output(context.Background(), sub, exec.Command("sh", "-c", "sleep 5 & exit 0"))
		errs <- err
	}()

	err := testutil.RequireReceive(t, errs, 4*time.Second, "waiting for Output")
	if !errors.Is(err, exec.ErrWaitDelay) {
		t.Fatalf("expected exec.ErrWaitDelay, got %v", err)
	}
}

func TestSpawnKeepsExplicitWaitDelay(t *testing.T) {
	cmd := exec.Command("true")
	cmd.WaitDelay = 3 * time.Second
	h, err := Spawn(cmd)
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	defer h.Kill()
	if cmd.WaitDelay != 3*time.Second {
		t.Errorf("expected WaitDelay 3s, got %v", cmd.WaitDelay)
	}
}

func TestHandleKillIdempotent(t *testing.T) {
	h, err := Spawn(exec.Command("sleep", "30"))
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	if err := h.Kill(); err != nil {
		t.Fatalf("first Kill: %v", err)
	}
	if err := h.Kill(); err != nil {
		t.Fatalf("second Kill: %v", err)
	}
	testutil.RequireClosed(t, h.Done(), time.Second, "handle done")

	var sigErr *SignalledError
	if !errors.As(h.Wait(), &sigErr) {
		t.Errorf("Wait = %v, want SignalledError", h.Wait())
	}
}

func TestHandleKillAfterExitReportsExit(t *testing.T) {
	h, err := Spawn(exec.Command("sh", "-c", "exit 2"))
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	testutil.RequireClosed(t, h.Done(), 5*time.Second, "child exit")

	err = h.Kill()
	var exited *ExitedError
	if !errors.As(err, &exited) {
		t.Fatalf("got %v, want ExitedError", err)
	}
	var exitErr *ExitCodeError
	if !errors.As(err, &exitErr) || exitErr.Code != 2 {
		t.Errorf("ExitedError does not carry exit status: %v", err)
	}
}

func TestDetachedKillTakesGroup(t *testing.T) {
	cmd := exec.Command("sh", "-c", "sleep 30 & wait")
	Detach(cmd)
	h, err := Spawn(cmd)
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	if err := h.Kill(); err != nil {
		t.Fatalf("Kill: %v", err)
	}
	testutil.RequireClosed(t, h.Done(), 5*time.Second, "group killed")
}
