package probe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os/exec"
	"sync"
	"time"

	"github.com/drone-os/drone/pkg/process"
	"github.com/drone-os/drone/pkg/signals"
)

// State is a session's lifecycle stage.
type State int

const (
	Idle State = iota
	ServerStarting
	ServerRunning
	ClientRunning
	Completed
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case ServerStarting:
		return "server starting"
	case ServerRunning:
		return "server running"
	case ClientRunning:
		return "client running"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Server is a probe server process a client talks to.
type Server struct {
	Cmd *exec.Cmd
	// Ready, if set, blocks until the server accepts clients.
	Ready func(ctx context.Context) error
}

// Session runs one client operation, optionally against a probe server
// it owns.  The server is killed on every exit path before Run returns.
type Session struct {
	Sub    *signals.Subscription
	Logger *slog.Logger
	// Ignore lists signals the client wait lets through, e.g. Interrupt
	// for an interactive GDB that handles Ctrl+C itself.
	Ignore []signals.Kind
	// Observe, if set, is called on every state transition.
	Observe func(State)

	mu    sync.Mutex
	state State
}

// State returns the current lifecycle stage.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) set(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
	s.logger().Debug("session state", "state", state.String())
	if s.Observe != nil {
		s.Observe(state)
	}
}

func (s *Session) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

// Run starts server, if any, then runs client until it returns or the
// wait is interrupted.  The client's context is cancelled when Run stops
// waiting on it, and when the server dies underneath it; in the latter
// case the cause is a *process.ExitedError.
func (s *Session) Run(ctx context.Context, server *Server, client func(ctx context.Context) error) (err error) {
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	defer func() {
		if err != nil {
			s.set(Failed)
		} else {
			s.set(Completed)
		}
	}()

	if server != nil {
		s.set(ServerStarting)
		process.Detach(server.Cmd)
		s.logger().Debug("starting probe server", "command", process.Describe(server.Cmd))
		h, err := process.Spawn(server.Cmd)
		if err != nil {
			return err
		}
		s.logger().Debug("probe server started", "pid", h.Pid())
		defer s.stopServer(h)

		go func() {
			select {
			case <-h.Done():
				cause := &process.ExitedError{Command: h.Command(), Err: h.Wait()}
				cancel(cause)
			case <-ctx.Done():
			}
		}()

		if server.Ready != nil {
			ready := func() error { return server.Ready(ctx) }
			if err := signals.Do(ctx, s.Sub, ready); err != nil {
				return err
			}
		}
		s.set(ServerRunning)
	}

	s.set(ClientRunning)
	clientDone := make(chan signals.Outcome[struct{}], 1)
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		clientDone <- signals.Outcome[struct{}]{Err: client(ctx)}
	}()
	_, err = signals.Await(ctx, s.Sub, clientDone, s.Ignore...)
	cancel(err)
	<-finished
	return err
}

// stopServer kills the server.  A server that had already exited is
// reported but never replaces the client's result.
func (s *Session) stopServer(h *process.Handle) {
	err := h.Kill()
	var exited *process.ExitedError
	switch {
	case errors.As(err, &exited):
		s.logger().Warn("probe server terminated unexpectedly", "command", exited.Command, "error", exited.Err)
	case err != nil:
		s.logger().Warn("stopping probe server", "error", err)
	}
}

// readyPoll is how often DialReady retries.
const readyPoll = 50 * time.Millisecond

// DialReady returns a Ready function that waits until addr accepts TCP
// connections.
func DialReady(addr string) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		var d net.Dialer
		for {
			conn, err := d.DialContext(ctx, "tcp", addr)
			if err == nil {
				return conn.Close()
			}
			select {
			case <-ctx.Done():
				return context.Cause(ctx)
			case <-time.After(readyPoll):
			}
		}
	}
}
