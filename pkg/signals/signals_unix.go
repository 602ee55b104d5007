//go:build !windows

package signals

import (
	"os"

	"golang.org/x/sys/unix"
)

var notifySignals = []os.Signal{unix.SIGINT, unix.SIGQUIT, unix.SIGTERM}

func kindOf(sig os.Signal) (Kind, bool) {
	switch sig {
	case unix.SIGINT:
		return Interrupt, true
	case unix.SIGQUIT:
		return Quit, true
	case unix.SIGTERM:
		return Terminate, true
	}
	return 0, false
}
