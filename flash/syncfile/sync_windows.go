//go:build windows

package syncfile

import (
	"os"

	"golang.org/x/sys/windows"
)

// Sync forces any buffered writes to f to the underlying storage.
func Sync(f *os.File) error {
	return windows.FlushFileBuffers(windows.Handle(f.Fd()))
}
