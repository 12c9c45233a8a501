//go:build !windows
// +build !windows

// Package syncfile isolates the one piece of this bootloader that is
// legitimately OS-specific: forcing a write to a bank-backing file to
// be durable before the next write begins, per spec section 5's
// ordering guarantee ("writes to flash are completed... before the
// next write begins"). It is the direct descendant of the teacher's
// stub/unix_stub.go + stub/windows_stub.go pair, repurposed from
// device-node syscalls (Major/Minor/Mknod/Stat) to a single durability
// primitive.
package syncfile

import (
	"os"

	"golang.org/x/sys/unix"
)

// Sync forces any buffered writes to f to the underlying storage.
// Fdatasync is preferred over Sync(2) because only file contents, not
// metadata, need to be durable for a flash-bank simulation.
func Sync(f *os.File) error {
	return unix.Fdatasync(int(f.Fd()))
}
