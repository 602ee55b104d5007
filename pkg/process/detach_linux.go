//go:build linux

package process

import (
	"os/exec"
	"syscall"
)

// Detach moves cmd into its own process group, so terminal signals meant
// for the operator's foreground job do not reach it and Kill takes down
// everything it forks.  The kernel also kills it if drone dies first.
func Detach(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Setpgid = true
	cmd.SysProcAttr.Pdeathsig = syscall.SIGKILL
}
