//go:build !windows

package process

import (
	"os"
	"os/exec"

	"golang.org/x/sys/unix"
)

// kill sends SIGKILL to the child, or to its whole process group when it
// was started detached.
func kill(cmd *exec.Cmd) error {
	if cmd.SysProcAttr != nil && cmd.SysProcAttr.Setpgid {
		err := unix.Kill(-cmd.Process.Pid, unix.SIGKILL)
		if err == unix.ESRCH {
			return os.ErrProcessDone
		}
		return err
	}
	return cmd.Process.Kill()
}
