package fileutil

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/sys/unix"
)

// ErrNotRegular is returned when a path exists but is not a regular file.
var ErrNotRegular = errors.New("not a regular file")

// CheckReadable verifies that path names a regular file the current process
// may open for reading.
func CheckReadable(path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return errors.New("empty path")
	}
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%s: %w", path, ErrNotRegular)
	}
	if err := unix.Access(path, unix.R_OK); err != nil {
		return fmt.Errorf("%s: insufficient permissions: %w", path, err)
	}
	return nil
}

// SizeOf returns the size of the file at path, or 0 when it cannot be read.
func SizeOf(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}
