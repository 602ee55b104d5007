package toolchain

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

// fakeExec answers commands by their argument list.
type fakeExec map[string]string

func (f fakeExec) Output(ctx context.Context, cmd *exec.Cmd) ([]byte, error) {
	key := strings.Join(cmd.Args, " ")
	out, ok := f[key]
	if !ok {
		return nil, fmt.Errorf("unexpected command %q", key)
	}
	return []byte(out), nil
}

func TestCrateRoot(t *testing.T) {
	tc := New(fakeExec{"cargo locate-project --message-format=plain": "/work/app/Cargo.toml\n"})
	root, err := tc.CrateRoot(context.Background())
	if err != nil {
		t.Fatalf("CrateRoot: %v", err)
	}
	if root != "/work/app" {
		t.Errorf("expected /work/app, got %q", root)
	}
}

func TestSearchRustTool(t *testing.T) {
	sysroot := t.TempDir()
	bin := filepath.Join(sysroot, "lib", "rustlib", "x86_64-unknown-linux-gnu", "bin")
	if err := os.MkdirAll(bin, 0o755); err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(bin, "rust-lld")
	if err := os.WriteFile(want, nil, 0o755); err != nil {
		t.Fatal(err)
	}

	tc := New(fakeExec{"rustc --print sysroot": sysroot + "\n"})
	got, err := tc.SearchRustTool(context.Background(), "rust-lld")
	if err != nil {
		t.Fatalf("SearchRustTool: %v", err)
	}
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}

	_, err = tc.SearchRustTool(context.Background(), "llvm-size")
	var notFound *ToolNotFoundError
	if !errors.As(err, &notFound) || notFound.Tool != "llvm-size" {
		t.Errorf("expected ToolNotFoundError, got %v", err)
	}
}

func TestFindToolMatchesStem(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "llvm-size.exe"), nil, 0o755); err != nil {
		t.Fatal(err)
	}
	got, err := FindTool(root, "llvm-size")
	if err != nil {
		t.Fatalf("FindTool: %v", err)
	}
	if filepath.Base(got) != "llvm-size.exe" {
		t.Errorf("unexpected match %q", got)
	}
}

const rustcVersion = `rustc 1.80.0-nightly
binary: rustc
commit-hash: 0123abcd
commit-date: 2024-05-01
`

func TestRustcSubstitutePath(t *testing.T) {
	tc := New(fakeExec{
		"rustc --print sysroot":     "/home/u/.rustup/toolchains/nightly\n",
		"rustc --verbose --version": rustcVersion,
	})
	got, err := tc.RustcSubstitutePath(context.Background())
	if err != nil {
		t.Fatalf("RustcSubstitutePath: %v", err)
	}
	want := "/rustc/0123abcd /home/u/.rustup/toolchains/nightly/lib/rustlib/src/rust"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestRustcSubstitutePathUnparseable(t *testing.T) {
	tc := New(fakeExec{
		"rustc --print sysroot":     "/sysroot\n",
		"rustc --verbose --version": "rustc 1.80.0\n",
	})
	if _, err := tc.RustcSubstitutePath(context.Background()); err == nil {
		t.Fatal("expected error for missing commit-hash")
	}
}

func TestResolveTarget(t *testing.T) {
	tests := []struct {
		name    string
		files   map[string]string
		want    string
		wantErr string
	}{
		{
			name:  "config.toml",
			files: map[string]string{"config.toml": "[build]\ntarget = \"thumbv7em-none-eabihf\"\n"},
			want:  "thumbv7em-none-eabihf",
		},
		{
			name:  "legacy config",
			files: map[string]string{"config": "[build]\ntarget = \"thumbv6m-none-eabi\"\n"},
			want:  "thumbv6m-none-eabi",
		},
		{
			name: "config.toml preferred",
			files: map[string]string{
				"config.toml": "[build]\ntarget = \"a\"\n",
				"config":      "[build]\ntarget = \"b\"\n",
			},
			want: "a",
		},
		{
			name:    "no target key",
			files:   map[string]string{"config.toml": "[build]\njobs = 4\n"},
			wantErr: "no [build.target]",
		},
		{
			name:    "no config",
			wantErr: "does not exist",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			if len(tt.files) > 0 {
				if err := os.Mkdir(filepath.Join(root, ".cargo"), 0o755); err != nil {
					t.Fatal(err)
				}
			}
			for name, content := range tt.files {
				if err := os.WriteFile(filepath.Join(root, ".cargo", name), []byte(content), 0o644); err != nil {
					t.Fatal(err)
				}
			}

			got, err := ResolveTarget(root)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ResolveTarget: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestTempDir(t *testing.T) {
	t.Setenv("XDG_RUNTIME_DIR", "/run/user/1000")
	if got := TempDir(); got != "/run/user/1000" {
		t.Errorf("expected XDG_RUNTIME_DIR, got %q", got)
	}
	t.Setenv("XDG_RUNTIME_DIR", "")
	if got := TempDir(); got != os.TempDir() {
		t.Errorf("expected os.TempDir(), got %q", got)
	}
}
