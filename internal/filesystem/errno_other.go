//go:build !unix

package filesystem

import (
	"errors"
	"os"
)

// IsStale reports whether err is a stale file handle error. Never true here.
func IsStale(error) bool { return false }

// IsCrossDevice reports whether err is a rename across filesystems.
// Never detected here; renames that fail are returned as-is.
func IsCrossDevice(error) bool { return false }

// IsPermission reports whether err is an access error.
func IsPermission(err error) bool {
	return errors.Is(err, os.ErrPermission)
}
