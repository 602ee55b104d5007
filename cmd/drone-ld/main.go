// Command drone-ld is the linker wrapper cargo invokes for Drone
// firmware.  It takes rust-lld's arguments unchanged and links twice,
// sizing the heap from the sections of the first pass.
package main

import (
	"context"
	"os"

	"github.com/drone-os/drone/pkg/cli"
	"github.com/drone-os/drone/pkg/config"
	"github.com/drone-os/drone/pkg/linker"
	"github.com/drone-os/drone/pkg/process"
	"github.com/drone-os/drone/pkg/signals"
	"github.com/drone-os/drone/pkg/toolchain"
)

func main() {
	cli.Exit(cli.NewPalette(os.Stderr, cli.ColorNever), run(context.Background(), os.Args[1:]))
}

func run(ctx context.Context, args []string) error {
	cfg, err := config.ReadFromDir(".")
	if err != nil {
		return err
	}

	monitor, err := signals.Install()
	if err != nil {
		return err
	}
	sub := monitor.Subscribe()
	defer sub.Close()

	logger := cli.NewLogger(os.Stderr, os.Getenv("DRONE_LD_DEBUG") != "")
	runner := process.NewRunner(sub, logger, signals.Interrupt)
	tc := toolchain.New(runner)

	root, err := tc.CrateRoot(ctx)
	if err != nil {
		return err
	}
	target, err := toolchain.ResolveTarget(root)
	if err != nil {
		return err
	}
	lld, err := tc.SearchRustTool(ctx, "rust-lld")
	if err != nil {
		return err
	}
	size, err := tc.SearchRustTool(ctx, "llvm-size")
	if err != nil {
		return err
	}

	d := &linker.Driver{
		Tools:    linker.Tools{Linker: lld, Size: size},
		BuildDir: toolchain.BuildDir(root, target),
		Config:   cfg,
		Exec:     runner,
		Logger:   logger,
	}
	return d.Link(ctx, args)
}
