package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/drone-os/drone/pkg/cli"
	"github.com/drone-os/drone/pkg/config"
	"github.com/drone-os/drone/pkg/probe"
	"github.com/drone-os/drone/pkg/process"
	"github.com/drone-os/drone/pkg/signals"
	"github.com/drone-os/drone/pkg/toolchain"
)

var (
	flagColor   = cli.ColorAuto
	flagVerbose bool
)

func main() {
	rootCmd := newRootCommand()
	err := rootCmd.Execute()
	cli.Exit(cli.NewPalette(os.Stderr, flagColor), err)
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "drone",
		Short: "Drone firmware development tool",
		Long: `Flash, reset, debug and trace Drone firmware on a microcontroller.

The project configuration is read from Drone.yaml in the crate root, which
selects the debug probe and the log capture mechanism.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.Var(&flagColor, "color", `Coloring: "auto", "always", "never"`)
	flags.BoolVarP(&flagVerbose, "verbose", "v", false, "Print debug diagnostics")

	rootCmd.AddCommand(
		newResetCommand(),
		newFlashCommand(),
		newGDBCommand(),
		newLogCommand(),
	)
	return rootCmd
}

// session is the per-invocation state shared by every subcommand.
type session struct {
	env *probe.Env
	sub *signals.Subscription
}

func (s *session) Close() {
	s.sub.Close()
}

// openSession installs signal handling and loads the configuration from
// the crate root, or the working directory outside a crate.
func openSession(ctx context.Context) (*session, error) {
	monitor, err := signals.Install()
	if err != nil {
		return nil, err
	}
	sub := monitor.Subscribe()

	logger := cli.NewLogger(os.Stderr, flagVerbose)
	slog.SetDefault(logger)
	tc := toolchain.New(process.NewRunner(sub, logger, signals.Interrupt))

	root, err := tc.CrateRoot(ctx)
	if err != nil {
		logger.Debug("falling back to working directory", "error", err)
		if root, err = os.Getwd(); err != nil {
			sub.Close()
			return nil, fmt.Errorf("resolving working directory: %w", err)
		}
	}
	cfg, err := config.ReadFromDir(root)
	if err != nil {
		sub.Close()
		return nil, err
	}
	logger.Debug("loaded configuration", "dir", root)

	palette := cli.NewPalette(os.Stderr, flagColor)
	env := &probe.Env{
		Config:    cfg,
		Sub:       sub,
		Logger:    logger,
		Toolchain: tc,
		Streams:   process.Streams{Stdin: os.Stdin, Stdout: os.Stdout},
		Stderr:    os.Stderr,
		Banner:    palette.Banner(),
		TempDir:   toolchain.TempDir(),
	}
	return &session{env: env, sub: sub}, nil
}

// withSession runs fn with a freshly opened session.
func withSession(cmd *cobra.Command, fn func(ctx context.Context, env *probe.Env) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(ctx, s.env)
}
