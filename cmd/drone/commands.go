package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/drone-os/drone/pkg/config"
	"github.com/drone-os/drone/pkg/probe"
)

func newResetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Reset the attached device",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, probe.Reset)
		},
	}
}

func newFlashCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "flash FIRMWARE",
		Short: "Write a firmware image to the device's flash memory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(ctx context.Context, env *probe.Env) error {
				return probe.Flash(ctx, env, args[0])
			})
		},
	}
}

func newGDBCommand() *cobra.Command {
	var req probe.GDBRequest
	cmd := &cobra.Command{
		Use:   "gdb [options] [FIRMWARE] [-- GDB_ARG...]",
		Short: "Run a GDB session against the device",
		Args: func(cmd *cobra.Command, args []string) error {
			positional := len(args)
			if dash := cmd.ArgsLenAtDash(); dash >= 0 {
				positional = dash
			}
			if positional > 1 {
				return fmt.Errorf("accepts at most 1 firmware argument, received %d", positional)
			}
			return nil
		},
		DisableFlagsInUseLine: true,
		Example: `  drone gdb target/thumbv7em-none-eabihf/release/app
  drone gdb --reset app
  drone gdb --interpreter=mi app -- -ex "info registers"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Firmware, req.Args = splitGDBArgs(cmd.ArgsLenAtDash(), args)
			return withSession(cmd, func(ctx context.Context, env *probe.Env) error {
				return probe.GDB(ctx, env, req)
			})
		},
	}
	flags := cmd.Flags()
	flags.BoolVarP(&req.Reset, "reset", "r", false, "Reset the device before attaching")
	flags.StringVar(&req.Interpreter, "interpreter", "", "GDB machine interface, e.g. mi")
	return cmd
}

// splitGDBArgs separates the optional firmware from the arguments after
// "--", which go to GDB verbatim.
func splitGDBArgs(dash int, args []string) (firmware string, gdbArgs []string) {
	positional := args
	if dash >= 0 {
		positional, gdbArgs = args[:dash], args[dash:]
	}
	if len(positional) > 0 {
		firmware = positional[0]
	}
	return firmware, gdbArgs
}

func newLogCommand() *cobra.Command {
	var (
		req     probe.LogRequest
		outputs outputsFlag
	)
	cmd := &cobra.Command{
		Use:   "log",
		Short: "Capture the device's log output",
		Long: `Capture the device's log output until interrupted.

Each --output routes the given comma-separated ports to a file; without a
ports prefix every port is routed.  An empty path is standard output.
Without --output the log.outputs list from Drone.yaml is used.`,
		Args: cobra.NoArgs,
		Example: `  drone log
  drone log --reset --output 0:app.log --output 1,2:
  drone log --output trace.log`,
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Outputs = []config.LogOutput(outputs)
			return withSession(cmd, func(ctx context.Context, env *probe.Env) error {
				return probe.Capture(ctx, env, req)
			})
		},
	}
	flags := cmd.Flags()
	flags.BoolVarP(&req.Reset, "reset", "r", false, "Reset the device before capturing")
	flags.VarP(&outputs, "output", "o", "Route `[PORTS:]PATH`, repeatable")
	return cmd
}
