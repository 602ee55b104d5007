package capture

import (
	"errors"
	"os"
)

var errNoFIFO = errors.New("named pipes are not supported on windows")

// MakeFIFO is not available on windows.
func MakeFIFO(dir, name string) (string, error) {
	return "", errNoFIFO
}

// OpenFIFO is not available on windows.
func OpenFIFO(path string) (*os.File, error) {
	return nil, errNoFIFO
}
