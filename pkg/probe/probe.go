// Package probe drives debug probes: resetting and flashing the target,
// attaching GDB, and capturing the target's log output.
package probe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/charmbracelet/lipgloss"

	"github.com/drone-os/drone/pkg/config"
	"github.com/drone-os/drone/pkg/process"
	"github.com/drone-os/drone/pkg/signals"
	"github.com/drone-os/drone/pkg/toolchain"
)

// Probe is a supported debug adapter.
type Probe int

const (
	BMP Probe = iota + 1
	JLink
	OpenOCD
)

func (p Probe) String() string {
	switch p {
	case BMP:
		return "bmp"
	case JLink:
		return "jlink"
	case OpenOCD:
		return "openocd"
	default:
		return "unknown"
	}
}

// Log is a supported trace delivery mechanism.
type Log int

const (
	// SWOProbe is ARM SWO delivered through the debug probe.
	SWOProbe Log = iota + 1
	// SWOSerial is ARM SWO delivered through a USB-serial adapter.
	SWOSerial
	// DSOSerial is Drone Serial Output through a USB-serial adapter.
	DSOSerial
)

func (l Log) String() string {
	switch l {
	case SWOProbe:
		return "swoprobe"
	case SWOSerial:
		return "swoserial"
	case DSOSerial:
		return "dsoserial"
	default:
		return "unknown"
	}
}

// ErrUnsupportedProbe matches every *UnsupportedProbeError.
var ErrUnsupportedProbe = errors.New("unsupported probe")

// UnsupportedProbeError reports a probe drone cannot drive, either
// because no probe section is configured or because no handler exists.
type UnsupportedProbeError struct {
	Probe Probe
	// Err is the underlying configuration error, if any.
	Err error
}

func (e *UnsupportedProbeError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("`%s` probe is not supported", e.Probe)
}

func (e *UnsupportedProbeError) Is(target error) bool { return target == ErrUnsupportedProbe }

func (e *UnsupportedProbeError) Unwrap() error { return e.Err }

// UnsupportedLogError reports a probe and log pair outside the
// compatibility table.
type UnsupportedLogError struct {
	Probe Probe
	Log   Log
}

func (e *UnsupportedLogError) Error() string {
	return fmt.Sprintf("`%s` log with `%s` probe is not supported", e.Log, e.Probe)
}

// FromConfig selects the probe from the first configured backend
// section, in the order bmp, jlink, openocd.
func FromConfig(cfg *config.Config) (Probe, error) {
	p, err := cfg.RequireProbe()
	if err != nil {
		return 0, &UnsupportedProbeError{Err: err}
	}
	switch {
	case p.BMP != nil:
		return BMP, nil
	case p.JLink != nil:
		return JLink, nil
	case p.OpenOCD != nil:
		return OpenOCD, nil
	}
	return 0, &UnsupportedProbeError{Err: &config.MissingSectionError{
		Section:      "probe",
		Alternatives: []string{"probe.bmp", "probe.jlink", "probe.openocd"},
	}}
}

// LogFromConfig selects the log mechanism from the log section.
func LogFromConfig(cfg *config.Config) (Log, error) {
	l, err := cfg.RequireLog()
	if err != nil {
		return 0, err
	}
	switch {
	case l.SWO != nil && l.SWO.SerialEndpoint != "":
		return SWOSerial, nil
	case l.SWO != nil:
		return SWOProbe, nil
	case l.DSO != nil:
		return DSOSerial, nil
	}
	return 0, &config.MissingSectionError{Section: "log", Alternatives: []string{"log.swo", "log.dso"}}
}

// GDBRequest parameterizes a GDB session.
type GDBRequest struct {
	// Firmware is the ELF image loaded into GDB, optional.
	Firmware string
	// Reset halts the target after attaching.
	Reset bool
	// Interpreter selects a GDB machine interface, e.g. "mi".
	Interpreter string
	// Args are passed to GDB before all other arguments.
	Args []string
}

// LogRequest parameterizes a log capture.
type LogRequest struct {
	// Reset restarts the target once capture is set up.
	Reset bool
	// Outputs override the configured log.outputs routes.
	Outputs []config.LogOutput
}

// Env is what a backend needs from the invoking command.
type Env struct {
	Config    *config.Config
	Sub       *signals.Subscription
	Logger    *slog.Logger
	Toolchain *toolchain.Toolchain
	Streams   process.Streams
	Stderr    io.Writer
	Banner    lipgloss.Style
	// TempDir holds rendered scripts and fifos.
	TempDir string
}

func (e *Env) logger() *slog.Logger {
	if e.Logger == nil {
		return slog.Default()
	}
	return e.Logger
}

func (e *Env) stderr() io.Writer {
	if e.Stderr == nil {
		return os.Stderr
	}
	return e.Stderr
}

func (e *Env) session(ignore ...signals.Kind) *Session {
	return &Session{Sub: e.Sub, Logger: e.logger().With("component", "session"), Ignore: ignore}
}

// Backend implements the probe operations for one adapter.
type Backend interface {
	Reset(ctx context.Context, env *Env) error
	Flash(ctx context.Context, env *Env, firmware string) error
	GDB(ctx context.Context, env *Env, req GDBRequest) error
}

// LogHandler captures log output for one probe and log pair.
type LogHandler func(ctx context.Context, env *Env, log Log, req LogRequest) error

type logPair struct {
	probe Probe
	log   Log
}

var backends = map[Probe]Backend{
	BMP:     bmpBackend{},
	JLink:   jlinkBackend{},
	OpenOCD: openocdBackend{},
}

var logHandlers = map[logPair]LogHandler{
	{OpenOCD, SWOProbe}:  openocdLog,
	{OpenOCD, SWOSerial}: openocdLog,
}

// Lookup returns the backend for p.
func Lookup(p Probe) (Backend, error) {
	b, ok := backends[p]
	if !ok {
		return nil, &UnsupportedProbeError{Probe: p}
	}
	return b, nil
}

// SupportsLog reports whether log capture works for the pair.
func SupportsLog(p Probe, l Log) bool {
	_, ok := logHandlers[logPair{p, l}]
	return ok
}

func backendFor(env *Env) (Backend, error) {
	p, err := FromConfig(env.Config)
	if err != nil {
		return nil, err
	}
	return Lookup(p)
}

// Reset resets the target.
func Reset(ctx context.Context, env *Env) error {
	b, err := backendFor(env)
	if err != nil {
		return err
	}
	return b.Reset(ctx, env)
}

// Flash writes firmware to the target's flash memory.
func Flash(ctx context.Context, env *Env, firmware string) error {
	b, err := backendFor(env)
	if err != nil {
		return err
	}
	return b.Flash(ctx, env, firmware)
}

// GDB runs a GDB session against the target.
func GDB(ctx context.Context, env *Env, req GDBRequest) error {
	b, err := backendFor(env)
	if err != nil {
		return err
	}
	return b.GDB(ctx, env, req)
}

// Capture streams the target's log output until interrupted.
func Capture(ctx context.Context, env *Env, req LogRequest) error {
	p, err := FromConfig(env.Config)
	if err != nil {
		return err
	}
	l, err := LogFromConfig(env.Config)
	if err != nil {
		return err
	}
	handler, ok := logHandlers[logPair{p, l}]
	if !ok {
		return &UnsupportedLogError{Probe: p, Log: l}
	}
	return handler(ctx, env, l, req)
}
