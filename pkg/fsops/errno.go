// Package fsops models the POSIX errno surface the core operations raise,
// and maps Storage Gateway failures onto it. It is the only layer above
// pkg/gateway that is allowed to know about database error classes; the
// FUSE adapter only ever sees an *Errno or a plain Go error.
package fsops

import (
	"errors"
	"fmt"
	"syscall"

	"github.com/marmos91/udavfs3/pkg/gateway"
)

// Errno is a POSIX error surfaced by a core operation, analogous to
// dittofs's metadata.StoreError but carrying a syscall.Errno directly
// since the only consumer is the FUSE adapter's Errno translation.
type Errno struct {
	Errno syscall.Errno
	Op    string
	Path  string
}

func (e *Errno) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Path, e.Errno)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Errno)
}

// Is supports errors.Is(err, syscall.ENOENT) and similar comparisons
// against a bare syscall.Errno.
func (e *Errno) Is(target error) bool {
	t, ok := target.(syscall.Errno)
	return ok && e.Errno == t
}

func newErrno(errno syscall.Errno, op, path string) *Errno {
	return &Errno{Errno: errno, Op: op, Path: path}
}

// ErrNoEnt builds ENOENT: a name did not resolve to an entry.
func ErrNoEnt(op, path string) *Errno { return newErrno(syscall.ENOENT, op, path) }

// ErrExist builds EEXIST: a create/rename target name already exists.
func ErrExist(op, path string) *Errno { return newErrno(syscall.EEXIST, op, path) }

// ErrNotEmpty builds ENOTEMPTY: rmdir or rename-over found children.
func ErrNotEmpty(op, path string) *Errno { return newErrno(syscall.ENOTEMPTY, op, path) }

// ErrInval builds EINVAL: operation on an orphaned parent, or a malformed
// argument.
func ErrInval(op, path string) *Errno { return newErrno(syscall.EINVAL, op, path) }

// ErrIsDir builds EISDIR: unlink's target is a directory.
func ErrIsDir(op, path string) *Errno { return newErrno(syscall.EISDIR, op, path) }

// ErrNotDir builds ENOTDIR: rmdir's target is not a directory.
func ErrNotDir(op, path string) *Errno { return newErrno(syscall.ENOTDIR, op, path) }

// ErrIO builds a generic I/O failure for unexpected database errors.
func ErrIO(op, path string) *Errno { return newErrno(syscall.EIO, op, path) }

// ErrNoSpace builds ENOSPC: the backing store rejected a write for lack of
// capacity.
func ErrNoSpace(op, path string) *Errno { return newErrno(syscall.ENOSPC, op, path) }

// MapStoreError translates a pkg/gateway error (NoSuchRow, NotUnique, or a
// *gateway.Error) into the closest POSIX *Errno for op/path. notFoundErrno
// lets the caller pick ENOENT vs. a different errno for a missing row,
// since "no such row" means different things at different call sites
// (lookup miss vs. dangling foreign key).
func MapStoreError(err error, op, path string, notFoundErrno syscall.Errno) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gateway.NoSuchRow) {
		return newErrno(notFoundErrno, op, path)
	}
	if errors.Is(err, gateway.NotUnique) {
		return newErrno(syscall.EIO, op, path)
	}

	var gerr *gateway.Error
	if errors.As(err, &gerr) {
		switch gerr.Class {
		case gateway.ClassAlreadyExists:
			return newErrno(syscall.EEXIST, op, path)
		case gateway.ClassNotFound:
			return newErrno(notFoundErrno, op, path)
		case gateway.ClassCheckViolation:
			return newErrno(syscall.ENOTEMPTY, op, path)
		case gateway.ClassInvalidArgument:
			return newErrno(syscall.EINVAL, op, path)
		case gateway.ClassNoSpace:
			return newErrno(syscall.ENOSPC, op, path)
		case gateway.ClassConflict, gateway.ClassConnection, gateway.ClassUnknown:
			return newErrno(syscall.EIO, op, path)
		}
	}
	return newErrno(syscall.EIO, op, path)
}
