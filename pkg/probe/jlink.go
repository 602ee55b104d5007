package probe

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/drone-os/drone/pkg/config"
)

type jlinkBackend struct{}

// jlinkArgs are the connection arguments shared by every J-Link tool.
func jlinkArgs(cfg *config.ProbeJLink) []string {
	args := []string{
		"-Device", cfg.Device,
		"-Speed", strconv.FormatUint(uint64(cfg.Speed), 10),
		"-If", cfg.Interface,
	}
	if cfg.Interface == "JTAG" {
		args = append(args, "-JTAGConf", "-1,-1")
	}
	return args
}

func jlinkGDBServerCommand(cfg *config.ProbeJLink) *exec.Cmd {
	args := append(jlinkArgs(cfg),
		"-LocalHostOnly", "1",
		"-Silent", "1",
		"-Port", strconv.Itoa(int(cfg.Port)),
		"-NoReset", "1",
	)
	return exec.Command(cfg.GDBServerCommand, args...)
}

func jlinkCommanderCommand(cfg *config.ProbeJLink, script string) *exec.Cmd {
	args := append(jlinkArgs(cfg),
		"-AutoConnect", "1",
		"-ExitOnError", "1",
		"-CommandFile", script,
	)
	return exec.Command(cfg.CommanderCommand, args...)
}

// binaryPath is where the raw flash image for firmware is written.
func binaryPath(firmware string) string {
	return strings.TrimSuffix(firmware, filepath.Ext(firmware)) + ".bin"
}

func (jlinkBackend) Reset(ctx context.Context, env *Env) error {
	return jlinkCommander(ctx, env, "jlink-reset", scriptData{})
}

func (jlinkBackend) Flash(ctx context.Context, env *Env, firmware string) error {
	if env.Toolchain == nil {
		return errors.New("flashing through J-Link needs the Rust toolchain for llvm-objcopy")
	}
	objcopy, err := env.Toolchain.SearchRustTool(ctx, "llvm-objcopy")
	if err != nil {
		return err
	}
	bin := binaryPath(firmware)
	if err := runTool(ctx, env, exec.Command(objcopy, firmware, bin, "--output-target=binary")); err != nil {
		return err
	}
	if err := os.Chmod(bin, 0o644); err != nil {
		return fmt.Errorf("setting permissions on `%s`: %w", bin, err)
	}
	return jlinkCommander(ctx, env, "jlink-flash", scriptData{Binary: bin, Origin: env.Config.Memory.Flash.Origin})
}

func jlinkCommander(ctx context.Context, env *Env, template string, data scriptData) error {
	path, err := writeScript(env.TempDir, template, data)
	if err != nil {
		return err
	}
	defer os.Remove(path)
	return runTool(ctx, env, jlinkCommanderCommand(env.Config.Probe.JLink, path))
}

func (jlinkBackend) GDB(ctx context.Context, env *Env, req GDBRequest) error {
	cfg := env.Config.Probe.JLink
	sub, err := substitutePath(ctx, env)
	if err != nil {
		return err
	}
	server := &Server{
		Cmd:   serverCommand(env, jlinkGDBServerCommand(cfg)),
		Ready: DialReady(localAddr(cfg.Port)),
	}
	script := scriptData{Port: cfg.Port, Reset: req.Reset, SubstitutePath: sub}
	return gdbSession(ctx, env, req, server, script, "jlink-gdb")
}
