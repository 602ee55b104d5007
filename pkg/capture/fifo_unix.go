//go:build !windows

package capture

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// MakeFIFO creates a named pipe called name in dir.
func MakeFIFO(dir, name string) (string, error) {
	path := filepath.Join(dir, name)
	if err := unix.Mkfifo(path, 0o644); err != nil {
		return "", fmt.Errorf("creating fifo %s: %w", path, err)
	}
	return path, nil
}

// OpenFIFO opens a named pipe for reading.  It is opened read-write so
// the open does not wait for a writer and the reader never sees EOF when
// a writer goes away and comes back.
func OpenFIFO(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("opening fifo: %w", err)
	}
	return f, nil
}
