// Package config loads the project configuration file, Drone.yaml,
// which describes the target's memory layout, the debug probe, and the
// log capture setup.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// FileName is the configuration file looked up in the crate root.
const FileName = "Drone.yaml"

// Config is the project configuration.
type Config struct {
	Memory Memory `yaml:"memory"`
	Heap   Heap   `yaml:"heap"`
	Stack  Stack  `yaml:"stack"`
	Linker Linker `yaml:"linker"`

	// Probe and Log are optional sections; commands that need them
	// report a MissingSectionError when they are absent.
	Probe *Probe `yaml:"probe,omitempty"`
	Log   *Log   `yaml:"log,omitempty"`
}

// Memory describes the target's memory regions.
type Memory struct {
	Flash Region `yaml:"flash"`
	RAM   Region `yaml:"ram"`
}

// Region is one contiguous memory region.
type Region struct {
	Origin uint32 `yaml:"origin"`
	Size   uint32 `yaml:"size"`
}

// Heap configures the heap placed after static data in RAM.
type Heap struct {
	// Size is a lower bound; the second link pass grows the heap to
	// fill whatever RAM the data, bss and stack leave free.
	Size uint32 `yaml:"size"`
}

// Stack configures the main stack at the top of RAM.
type Stack struct {
	Size uint32 `yaml:"size"`
}

// Linker configures linker script generation.
type Linker struct {
	// Include lists extra linker scripts pulled in with INCLUDE.
	Include []string `yaml:"include"`
}

// Probe selects and configures the debug probe.  Exactly one backend
// section is expected.
type Probe struct {
	GDBClientCommand string `yaml:"gdb-client-command"`

	BMP     *ProbeBMP     `yaml:"bmp,omitempty"`
	JLink   *ProbeJLink   `yaml:"jlink,omitempty"`
	OpenOCD *ProbeOpenOCD `yaml:"openocd,omitempty"`
}

// ProbeBMP configures a Black Magic Probe.
type ProbeBMP struct {
	// GDBEndpoint is the probe's GDB serial port, e.g. /dev/ttyBmpGdb.
	GDBEndpoint string `yaml:"gdb-endpoint"`
}

// ProbeJLink configures a SEGGER J-Link.
type ProbeJLink struct {
	GDBServerCommand string `yaml:"gdb-server-command"`
	CommanderCommand string `yaml:"commander-command"`
	Device           string `yaml:"device"`
	Speed            uint32 `yaml:"speed"`
	Interface        string `yaml:"interface"`
	Port             uint16 `yaml:"port"`
}

// ProbeOpenOCD configures OpenOCD.
type ProbeOpenOCD struct {
	Command   string   `yaml:"command"`
	Arguments []string `yaml:"arguments"`
	GDBPort   uint16   `yaml:"gdb-port"`
}

// Log configures log capture.
type Log struct {
	SWO *LogSWO `yaml:"swo,omitempty"`
	DSO *LogDSO `yaml:"dso,omitempty"`

	// Outputs are the default routes, used when none are given on the
	// command line.
	Outputs []LogOutput `yaml:"outputs"`
}

// LogSWO configures ARM SWO trace capture.
type LogSWO struct {
	ResetFreq uint32 `yaml:"reset-freq"`
	BaudRate  uint32 `yaml:"baud-rate"`
	// SerialEndpoint, when set, captures SWO through a USB-serial
	// adapter instead of the probe.
	SerialEndpoint string `yaml:"serial-endpoint"`
}

// LogDSO configures Drone Serial Output capture.
type LogDSO struct {
	BaudRate       uint32 `yaml:"baud-rate"`
	SerialEndpoint string `yaml:"serial-endpoint"`
}

// MissingSectionError reports a configuration section that a command
// needs but the file does not provide.
type MissingSectionError struct {
	Section string
	// Alternatives, when set, lists the sections of which one is needed.
	Alternatives []string
}

func (e *MissingSectionError) Error() string {
	if len(e.Alternatives) == 0 {
		return fmt.Sprintf("missing `%s` section in `%s`", e.Section, FileName)
	}
	return fmt.Sprintf("missing one of %s sections in `%s`", quoteList(e.Alternatives), FileName)
}

func quoteList(names []string) string {
	s := ""
	for i, n := range names {
		if i > 0 {
			s += ", "
		}
		s += "`" + n + "`"
	}
	return s
}

// Load reads and validates the configuration at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// ReadFromDir loads FileName from dir.
func ReadFromDir(dir string) (*Config, error) {
	cfg, err := Load(filepath.Join(dir, FileName))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("`%s` not found in `%s`", FileName, dir)
	}
	return cfg, err
}

// Parse decodes YAML configuration, applies defaults, and validates it.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", FileName, err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if p := c.Probe; p != nil {
		if p.GDBClientCommand == "" {
			p.GDBClientCommand = "gdb-multiarch"
		}
		if j := p.JLink; j != nil {
			if j.GDBServerCommand == "" {
				j.GDBServerCommand = "JLinkGDBServer"
			}
			if j.CommanderCommand == "" {
				j.CommanderCommand = "JLinkExe"
			}
			if j.Interface == "" {
				j.Interface = "SWD"
			}
			if j.Speed == 0 {
				j.Speed = 4000
			}
			if j.Port == 0 {
				j.Port = 2331
			}
		}
		if o := p.OpenOCD; o != nil {
			if o.Command == "" {
				o.Command = "openocd"
			}
			if o.GDBPort == 0 {
				o.GDBPort = 3333
			}
		}
	}
	if l := c.Log; l != nil {
		if l.SWO != nil && l.SWO.BaudRate == 0 {
			l.SWO.BaudRate = 115200
		}
		if l.DSO != nil && l.DSO.BaudRate == 0 {
			l.DSO.BaudRate = 115200
		}
	}
}

// Validate checks values that would otherwise surface as confusing
// failures in external tools.
func (c *Config) Validate() error {
	if c.Memory.Flash.Size == 0 {
		return fmt.Errorf("%s: memory.flash.size must be set", FileName)
	}
	if c.Memory.RAM.Size == 0 {
		return fmt.Errorf("%s: memory.ram.size must be set", FileName)
	}
	if reserved := uint64(c.Heap.Size) + uint64(c.Stack.Size); reserved > uint64(c.Memory.RAM.Size) {
		return fmt.Errorf("%s: heap.size + stack.size (%d) exceeds memory.ram.size (%d)",
			FileName, reserved, c.Memory.RAM.Size)
	}
	if p := c.Probe; p != nil && p.BMP != nil && p.BMP.GDBEndpoint == "" {
		return fmt.Errorf("%s: probe.bmp.gdb-endpoint must be set", FileName)
	}
	if p := c.Probe; p != nil && p.JLink != nil && p.JLink.Device == "" {
		return fmt.Errorf("%s: probe.jlink.device must be set", FileName)
	}
	if l := c.Log; l != nil {
		if l.SWO != nil && l.SWO.ResetFreq == 0 {
			return fmt.Errorf("%s: log.swo.reset-freq must be set", FileName)
		}
		if l.DSO != nil && l.DSO.SerialEndpoint == "" {
			return fmt.Errorf("%s: log.dso.serial-endpoint must be set", FileName)
		}
		for i, out := range l.Outputs {
			if err := out.validate(); err != nil {
				return fmt.Errorf("%s: log.outputs[%d]: %w", FileName, i, err)
			}
		}
	}
	return nil
}

// RequireProbe returns the probe section or a MissingSectionError.
func (c *Config) RequireProbe() (*Probe, error) {
	if c.Probe == nil {
		return nil, &MissingSectionError{Section: "probe"}
	}
	return c.Probe, nil
}

// RequireLog returns the log section or a MissingSectionError.
func (c *Config) RequireLog() (*Log, error) {
	if c.Log == nil {
		return nil, &MissingSectionError{Section: "log"}
	}
	return c.Log, nil
}
