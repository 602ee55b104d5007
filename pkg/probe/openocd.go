package probe

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"os/exec"
	"strconv"

	"github.com/drone-os/drone/pkg/capture"
	"github.com/drone-os/drone/pkg/config"
)

type openocdBackend struct{}

// openocdCommand builds `<command> <arguments...> -c <cmd>...`.
func openocdCommand(cfg *config.ProbeOpenOCD, commands ...string) *exec.Cmd {
	args := append([]string{}, cfg.Arguments...)
	for _, c := range commands {
		args = append(args, "-c", c)
	}
	return exec.Command(cfg.Command, args...)
}

func openocdResetCommands() []string {
	return []string{"init", "reset run", "shutdown"}
}

func openocdFlashCommands(firmware string) []string {
	return []string{
		"init",
		"reset halt",
		"flash write_image erase " + firmware,
		"verify_image " + firmware,
		"reset run",
		"shutdown",
	}
}

func openocdGDBCommands(port uint16, reset bool) []string {
	commands := []string{fmt.Sprintf("gdb_port %d", port), "init"}
	if reset {
		commands = append(commands, "reset halt")
	}
	return commands
}

// openocdLogCommands configures the TPIU for SWO.  fifo is empty when the
// trace arrives through an external serial adapter.
func openocdLogCommands(swo *config.LogSWO, fifo string, reset bool) []string {
	commands := []string{"init"}
	if reset {
		commands = append(commands, "reset halt")
	}
	if fifo == "" {
		commands = append(commands, fmt.Sprintf("tpiu config external uart off %d %d", swo.ResetFreq, swo.BaudRate))
	} else {
		commands = append(commands, fmt.Sprintf("tpiu config internal %s uart off %d %d", fifo, swo.ResetFreq, swo.BaudRate))
	}
	commands = append(commands, "itm ports on")
	if reset {
		commands = append(commands, "resume")
	}
	return commands
}

func (openocdBackend) Reset(ctx context.Context, env *Env) error {
	cmd := openocdCommand(env.Config.Probe.OpenOCD, openocdResetCommands()...)
	return runTool(ctx, env, cmd)
}

func (openocdBackend) Flash(ctx context.Context, env *Env, firmware string) error {
	cmd := openocdCommand(env.Config.Probe.OpenOCD, openocdFlashCommands(firmware)...)
	return runTool(ctx, env, cmd)
}

func (openocdBackend) GDB(ctx context.Context, env *Env, req GDBRequest) error {
	cfg := env.Config.Probe.OpenOCD
	sub, err := substitutePath(ctx, env)
	if err != nil {
		return err
	}
	server := &Server{
		Cmd:   serverCommand(env, openocdCommand(cfg, openocdGDBCommands(cfg.GDBPort, req.Reset)...)),
		Ready: DialReady(localAddr(cfg.GDBPort)),
	}
	script := scriptData{Port: cfg.GDBPort, SubstitutePath: sub}
	return gdbSession(ctx, env, req, server, script, "openocd-gdb")
}

// openocdLog streams SWO trace configured through OpenOCD.  The trace
// reaches drone either through a fifo OpenOCD writes into or through a
// serial adapter wired to the SWO pin.
func openocdLog(ctx context.Context, env *Env, log Log, req LogRequest) error {
	swo := env.Config.Log.SWO
	outputs := req.Outputs
	if len(outputs) == 0 {
		outputs = env.Config.Log.Outputs
	}
	sinks, err := capture.OpenSinkTable(outputs)
	if err != nil {
		return err
	}
	defer sinks.Close()

	var src io.ReadCloser
	var fifo string
	switch log {
	case SWOSerial:
		src, err = capture.OpenSerial(swo.SerialEndpoint, swo.BaudRate)
		if err != nil {
			return err
		}
	default:
		dir, err := os.MkdirTemp(env.TempDir, "drone-swo-")
		if err != nil {
			return fmt.Errorf("creating fifo directory: %w", err)
		}
		defer os.RemoveAll(dir)
		if fifo, err = capture.MakeFIFO(dir, "swo"); err != nil {
			return err
		}
		if src, err = capture.OpenFIFO(fifo); err != nil {
			return err
		}
	}
	defer src.Close()

	server := &Server{
		Cmd: serverCommand(env, openocdCommand(env.Config.Probe.OpenOCD, openocdLogCommands(swo, fifo, req.Reset)...)),
	}
	return env.session().Run(ctx, server, func(ctx context.Context) error {
		if err := capture.WriteBanner(env.stderr(), env.Banner); err != nil {
			return err
		}
		p := &capture.Pipeline{Decoder: capture.NewITMDecoder(), Sinks: sinks, Logger: env.logger()}
		return p.Run(ctx, src)
	})
}

// serverCommand keeps a probe server's chatter off stdout, which may
// carry captured log output.
func serverCommand(env *Env, cmd *exec.Cmd) *exec.Cmd {
	cmd.Stdout = env.stderr()
	cmd.Stderr = env.stderr()
	return cmd
}

func localAddr(port uint16) string {
	return net.JoinHostPort("127.0.0.1", strconv.Itoa(int(port)))
}
