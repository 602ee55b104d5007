//go:build windows

package process

import "os/exec"

func kill(cmd *exec.Cmd) error {
	return cmd.Process.Kill()
}

// Detach is a no-op on Windows.
func Detach(cmd *exec.Cmd) {}
