package probe

import (
	"context"
	"os"
	"os/exec"

	"github.com/drone-os/drone/pkg/process"
	"github.com/drone-os/drone/pkg/signals"
)

// gdbClientCommand builds an operator-facing GDB invocation.
func gdbClientCommand(env *Env, req GDBRequest, script string) *exec.Cmd {
	args := append([]string{}, req.Args...)
	if req.Firmware != "" {
		args = append(args, req.Firmware)
	}
	args = append(args, "--command", script)
	if req.Interpreter != "" {
		args = append(args, "--interpreter", req.Interpreter)
	}
	return exec.Command(env.Config.Probe.GDBClientCommand, args...)
}

// gdbBatchCommand builds a non-interactive GDB invocation that runs
// script and exits.
func gdbBatchCommand(env *Env, firmware, script string) *exec.Cmd {
	var args []string
	if firmware != "" {
		args = append(args, firmware)
	}
	args = append(args, "--quiet", "--nx", "--batch", "--command", script)
	return exec.Command(env.Config.Probe.GDBClientCommand, args...)
}

// interactive reports whether the GDB client gets the operator's
// terminal.  Machine interfaces always use plain pipes.
func interactive(env *Env, req GDBRequest) bool {
	return req.Interpreter == "" && process.IsTerminal(env.Streams.Stdin)
}

// runGDBClient runs an operator-facing GDB until it exits or ctx ends.
// Signals are left to the owning Session.
func runGDBClient(ctx context.Context, env *Env, cmd *exec.Cmd, tty bool) error {
	env.logger().Debug("starting gdb", "command", process.Describe(cmd), "terminal", tty)
	if !tty {
		inherit(env, cmd)
		return process.Run(ctx, nil, cmd)
	}
	h, err := process.SpawnTerminal(cmd, env.Streams)
	if err != nil {
		return err
	}
	return process.Supervise(ctx, nil, h)
}

// gdbSession runs an operator-facing GDB against server, if any.  An
// interactive GDB handles Ctrl+C itself, so Interrupt is ignored.
func gdbSession(ctx context.Context, env *Env, req GDBRequest, server *Server, script scriptData, template string) error {
	path, err := writeScript(env.TempDir, template, script)
	if err != nil {
		return err
	}
	defer os.Remove(path)

	cmd := gdbClientCommand(env, req, path)
	tty := interactive(env, req)
	var ignore []signals.Kind
	if tty {
		ignore = append(ignore, signals.Interrupt)
	}
	return env.session(ignore...).Run(ctx, server, func(ctx context.Context) error {
		return runGDBClient(ctx, env, cmd, tty)
	})
}

// substitutePath maps rustc's embedded source paths onto the local
// sysroot.  Without a toolchain the mapping is skipped.
func substitutePath(ctx context.Context, env *Env) (string, error) {
	if env.Toolchain == nil {
		return "", nil
	}
	return env.Toolchain.RustcSubstitutePath(ctx)
}

// inherit wires cmd to the operator's streams.
func inherit(env *Env, cmd *exec.Cmd) {
	if cmd.Stdin == nil && env.Streams.Stdin != nil {
		cmd.Stdin = env.Streams.Stdin
	}
	if cmd.Stdout == nil && env.Streams.Stdout != nil {
		cmd.Stdout = env.Streams.Stdout
	}
	if cmd.Stderr == nil {
		cmd.Stderr = env.stderr()
	}
}

// runTool runs a batch tool to completion.  Interrupt is ignored so a
// stray Ctrl+C cannot leave the target half flashed.
func runTool(ctx context.Context, env *Env, cmd *exec.Cmd) error {
	inherit(env, cmd)
	return process.NewRunner(env.Sub, env.logger(), signals.Interrupt).Run(ctx, cmd)
}
