package logger

import "log/slog"

// Standard field keys, kept consistent across every upcall handler and
// store-layer log line so log aggregation/querying works across the repo.
const (
	KeyOp      = "op"       // FUSE upcall name: Lookup, Getattr, Write, ...
	KeyFSID    = "fsid"     // 40-hex fsid scoping the operation
	KeyInodeID = "inode_id" // primary inode the operation concerns
	KeyParent  = "parent"   // parent inode id, for name-based operations
	KeyName    = "name"     // directory entry name
	KeyUID     = "uid"
	KeyGID     = "gid"

	KeyOffset       = "offset"
	KeyLength       = "length"
	KeyBytesRead    = "bytes_read"
	KeyBytesWritten = "bytes_written"
	KeyBlockNo      = "block_no"
	KeySize         = "size"
	KeyBlockSize    = "blocksize"

	KeyDurationMs = "duration_ms"
	KeyError      = "error"
	KeyErrno      = "errno"
)

// Op returns a slog.Attr for the upcall name.
func Op(name string) slog.Attr { return slog.String(KeyOp, name) }

// FSID returns a slog.Attr for the filesystem id.
func FSID(fsid string) slog.Attr { return slog.String(KeyFSID, fsid) }

// InodeID returns a slog.Attr for an inode id.
func InodeID(id uint64) slog.Attr { return slog.Uint64(KeyInodeID, id) }

// Parent returns a slog.Attr for a parent inode id.
func Parent(id uint64) slog.Attr { return slog.Uint64(KeyParent, id) }

// Name returns a slog.Attr for a directory entry name.
func Name(name string) slog.Attr { return slog.String(KeyName, name) }

// Offset returns a slog.Attr for a byte offset.
func Offset(off int64) slog.Attr { return slog.Int64(KeyOffset, off) }

// Length returns a slog.Attr for a byte length.
func Length(n int) slog.Attr { return slog.Int(KeyLength, n) }

// Err returns a slog.Attr wrapping an error's message.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
