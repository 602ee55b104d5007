// Package toolchain locates the crate being built and the Rust
// toolchain binaries drone drives.
package toolchain

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Executor runs a command and captures its standard output.
type Executor interface {
	Output(ctx context.Context, cmd *exec.Cmd) ([]byte, error)
}

// ToolNotFoundError reports a tool missing from the Rust sysroot.
type ToolNotFoundError struct {
	Tool    string
	Sysroot string
}

func (e *ToolNotFoundError) Error() string {
	return fmt.Sprintf("couldn't find `%s` in `%s`", e.Tool, e.Sysroot)
}

// Toolchain queries cargo and rustc.
type Toolchain struct {
	Exec Executor

	// Cargo and Rustc override the binaries looked up on PATH.
	Cargo string
	Rustc string
}

// New returns a Toolchain using the cargo and rustc found on PATH.
func New(x Executor) *Toolchain {
	return &Toolchain{Exec: x, Cargo: "cargo", Rustc: "rustc"}
}

// CrateRoot returns the directory holding the current crate's manifest.
func (t *Toolchain) CrateRoot(ctx context.Context) (string, error) {
	out, err := t.Exec.Output(ctx, exec.Command(t.Cargo, "locate-project", "--message-format=plain"))
	if err != nil {
		return "", fmt.Errorf("locating crate root: %w", err)
	}
	manifest := strings.TrimSpace(string(out))
	if manifest == "" {
		return "", errors.New("locating crate root: cargo printed no manifest path")
	}
	return filepath.Dir(manifest), nil
}

// Sysroot returns the rustc sysroot.
func (t *Toolchain) Sysroot(ctx context.Context) (string, error) {
	out, err := t.Exec.Output(ctx, exec.Command(t.Rustc, "--print", "sysroot"))
	if err != nil {
		return "", fmt.Errorf("querying rustc sysroot: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}

// SearchRustTool finds tool, for example rust-lld or llvm-size, in the
// rustc sysroot.
func (t *Toolchain) SearchRustTool(ctx context.Context, tool string) (string, error) {
	sysroot, err := t.Sysroot(ctx)
	if err != nil {
		return "", err
	}
	return FindTool(sysroot, tool)
}

// FindTool walks root and returns the first regular file whose name,
// without extension, equals tool.
func FindTool(root, tool string) (string, error) {
	var found string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		name := d.Name()
		if strings.TrimSuffix(name, filepath.Ext(name)) == tool {
			found = path
			return fs.SkipAll
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("searching for `%s`: %w", tool, err)
	}
	if found == "" {
		return "", &ToolNotFoundError{Tool: tool, Sysroot: root}
	}
	return found, nil
}

// RustcSubstitutePath returns the GDB substitute-path argument mapping
// the paths compiled into the standard library onto the local copy of
// its sources.
func (t *Toolchain) RustcSubstitutePath(ctx context.Context) (string, error) {
	sysroot, err := t.Sysroot(ctx)
	if err != nil {
		return "", err
	}
	out, err := t.Exec.Output(ctx, exec.Command(t.Rustc, "--verbose", "--version"))
	if err != nil {
		return "", fmt.Errorf("querying rustc version: %w", err)
	}
	hash, err := commitHash(out)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("/rustc/%s %s/lib/rustlib/src/rust", hash, sysroot), nil
}

func commitHash(version []byte) (string, error) {
	scanner := bufio.NewScanner(bytes.NewReader(version))
	for scanner.Scan() {
		if hash, ok := strings.CutPrefix(scanner.Text(), "commit-hash: "); ok {
			return strings.TrimSpace(hash), nil
		}
	}
	return "", errors.New("parsing of rustc output failed: no commit-hash line")
}

type cargoConfig struct {
	Build struct {
		Target string `toml:"target"`
	} `toml:"build"`
}

// ResolveTarget reads the build target triple from the crate's cargo
// configuration, preferring .cargo/config.toml over .cargo/config.
func ResolveTarget(crateRoot string) (string, error) {
	dir := filepath.Join(crateRoot, ".cargo")
	for _, name := range []string{"config.toml", "config"} {
		path := filepath.Join(dir, name)
		var cfg cargoConfig
		_, err := toml.DecodeFile(path, &cfg)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("parsing `%s`: %w", path, err)
		}
		if cfg.Build.Target == "" {
			return "", fmt.Errorf("no [build.target] configuration in `%s`", path)
		}
		return cfg.Build.Target, nil
	}
	return "", fmt.Errorf("`.cargo/config.toml` does not exist in `%s`", crateRoot)
}

// BuildDir returns the target-specific build output directory.
func BuildDir(crateRoot, target string) string {
	return filepath.Join(crateRoot, "target", target)
}

// TempDir returns the directory for drone's temporary files.
func TempDir() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return dir
	}
	return os.TempDir()
}
