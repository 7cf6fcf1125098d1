// Package fuseadapter binds the core inode/directory store and file-body
// engine to github.com/hanwen/go-fuse/v2's Inode tree, translating each
// kernel upcall into one or more store calls and mapping the result back
// to a syscall.Errno.
package fuseadapter

import (
	"syscall"

	"github.com/marmos91/udavfs3/pkg/fsops"
)

// errnoOf extracts the POSIX errno from a core-layer error, defaulting to
// EIO for anything unrecognized.
func errnoOf(err error) syscall.Errno {
	if err == nil {
		return 0
	}
	if e, ok := err.(*fsops.Errno); ok {
		return e.Errno
	}
	return syscall.EIO
}
