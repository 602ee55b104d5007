// Package linker drives the two-pass firmware link.
//
// Final section placement depends on section sizes that are only known
// once the image is linked.  The first pass links with a script that
// does not use the sizes; the sizes are then read back from the
// artifact and handed to the second pass as --defsym arguments.
package linker

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sort"
	"strconv"
	"strings"

	"github.com/drone-os/drone/pkg/config"
)

// ErrOutputNotDetermined is returned when the link arguments name no
// output file.
var ErrOutputNotDetermined = errors.New("could not determine linker output")

// Executor runs external tools.
type Executor interface {
	Run(ctx context.Context, cmd *exec.Cmd) error
	Output(ctx context.Context, cmd *exec.Cmd) ([]byte, error)
}

// Tools are the resolved paths of the link and size tools.
type Tools struct {
	Linker string
	Size   string
}

// Driver performs the two-pass link.
type Driver struct {
	Tools    Tools
	BuildDir string
	Config   *config.Config
	Exec     Executor
	Logger   *slog.Logger
}

// Link links the firmware described by args, the pass-through linker
// arguments.
func (d *Driver) Link(ctx context.Context, args []string) error {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}

	output, err := ResolveOutput(args)
	if err != nil {
		return err
	}
	scripts, err := WriteScripts(d.BuildDir, d.Config)
	if err != nil {
		return err
	}

	logger.Debug("linking first pass", "script", scripts.First, "output", output)
	if err := d.Exec.Run(ctx, d.linkCommand(scripts.First, args, nil)); err != nil {
		return err
	}

	out, err := d.Exec.Output(ctx, exec.Command(d.Tools.Size, "-A", output))
	if err != nil {
		return err
	}
	sizes := ParseSizes(out)
	syms := Defsyms(sizes)
	logger.Debug("section sizes", "sections", len(sizes))

	logger.Debug("linking second pass", "script", scripts.Second)
	return d.Exec.Run(ctx, d.linkCommand(scripts.Second, args, syms))
}

func (d *Driver) linkCommand(script string, args, syms []string) *exec.Cmd {
	argv := make([]string, 0, 4+len(args)+len(syms))
	argv = append(argv, "-flavor", "gnu", "-T", script)
	argv = append(argv, args...)
	argv = append(argv, syms...)
	cmd := exec.Command(d.Tools.Linker, argv...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd
}

// ResolveOutput returns the output path from an explicit "-o PATH" pair
// in args or, failing that, from the first "@FILE" response file that
// has a "-o" line followed by the path line.
func ResolveOutput(args []string) (string, error) {
	for i, arg := range args {
		if arg == "-o" && i+1 < len(args) {
			return args[i+1], nil
		}
	}
	for _, arg := range args {
		file, ok := strings.CutPrefix(arg, "@")
		if !ok {
			continue
		}
		output, found, err := scanResponseFile(file)
		if err != nil {
			return "", err
		}
		if found {
			return output, nil
		}
	}
	return "", ErrOutputNotDetermined
}

func scanResponseFile(path string) (string, bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", false, fmt.Errorf("reading response file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if scanner.Text() != "-o" {
			continue
		}
		if scanner.Scan() {
			return scanner.Text(), true, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return "", false, fmt.Errorf("reading response file %s: %w", path, err)
	}
	return "", false, nil
}

// SectionSizes maps section names, without the leading dot, to sizes in
// bytes.
type SectionSizes map[string]uint64

// ParseSizes reads the output of "llvm-size -A".  Only lines starting
// with '.' describe sections; lines with fewer than two fields or a
// non-numeric size are skipped.
func ParseSizes(out []byte) SectionSizes {
	sizes := make(SectionSizes)
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, ".") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 || fields[0] == "." {
			continue
		}
		size, err := strconv.ParseUint(fields[1], 10, 64)
		if err != nil {
			continue
		}
		sizes[fields[0][1:]] = size
	}
	return sizes
}

// Defsyms derives one --defsym argument per section, sorted by name.
func Defsyms(sizes SectionSizes) []string {
	names := make([]string, 0, len(sizes))
	for name := range sizes {
		names = append(names, name)
	}
	sort.Strings(names)

	syms := make([]string, len(names))
	for i, name := range names {
		syms[i] = fmt.Sprintf("--defsym=_%s_section_size=%d", name, sizes[name])
	}
	return syms
}
