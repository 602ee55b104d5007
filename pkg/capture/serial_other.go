//go:build !linux && !darwin

package capture

import (
	"fmt"
	"os"
	"runtime"
)

// OpenSerial is not available on this platform.
func OpenSerial(path string, baud uint32) (*os.File, error) {
	return nil, fmt.Errorf("serial log capture is not supported on %s", runtime.GOOS)
}
