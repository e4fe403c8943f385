//go:build unix

package filesystem

import (
	"errors"
	"os"

	"golang.org/x/sys/unix"
)

// IsStale reports whether err is an NFS stale file handle error (ESTALE).
func IsStale(err error) bool {
	return errors.Is(err, unix.ESTALE)
}

// IsCrossDevice reports whether err is a rename across filesystems (EXDEV).
func IsCrossDevice(err error) bool {
	return errors.Is(err, unix.EXDEV)
}

// IsPermission reports whether err is an access or privilege error. On
// macOS, files protected by Full Disk Access report EPERM.
func IsPermission(err error) bool {
	return errors.Is(err, os.ErrPermission) ||
		errors.Is(err, unix.EACCES) ||
		errors.Is(err, unix.EPERM)
}
