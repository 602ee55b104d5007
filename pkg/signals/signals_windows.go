//go:build windows

package signals

import (
	"os"
	"syscall"
)

// The Go runtime reports both CTRL_C_EVENT and CTRL_BREAK_EVENT as
// os.Interrupt, so CtrlBreak is never produced here; console close
// arrives as SIGTERM.
var notifySignals = []os.Signal{os.Interrupt, syscall.SIGTERM}

func kindOf(sig os.Signal) (Kind, bool) {
	switch sig {
	case os.Interrupt:
		return Interrupt, true
	case syscall.SIGTERM:
		return Terminate, true
	}
	return 0, false
}
