//go:build !linux && !windows

package process

import (
	"os/exec"
	"syscall"
)

// Detach moves cmd into its own process group.
func Detach(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Setpgid = true
}
