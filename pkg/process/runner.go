package process

import (
	"context"
	"log/slog"
	"os/exec"

	"github.com/drone-os/drone/pkg/signals"
)

// Runner binds Run and Output to one signal subscription and ignore
// policy, so callers can pass it around as an executor.
type Runner struct {
	Sub    *signals.Subscription
	Ignore []signals.Kind
	Logger *slog.Logger
}

// NewRunner returns a Runner over sub with the given ignore policy.
func NewRunner(sub *signals.Subscription, logger *slog.Logger, ignore ...signals.Kind) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{Sub: sub, Ignore: ignore, Logger: logger}
}

// Run runs cmd to completion.
func (r *Runner) Run(ctx context.Context, cmd *exec.Cmd) error {
	r.Logger.Debug("running command", "command", Describe(cmd))
	return Run(ctx, r.Sub, cmd, r.Ignore...)
}

// Output runs cmd to completion and returns its standard output.
func (r *Runner) Output(ctx context.Context, cmd *exec.Cmd) ([]byte, error) {
	r.Logger.Debug("running command", "command", Describe(cmd))
	return Output(ctx, r.Sub, cmd, r.Ignore...)
}
