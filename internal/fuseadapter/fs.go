package fuseadapter

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/marmos91/udavfs3/internal/logger"
	"github.com/marmos91/udavfs3/pkg/body"
	"github.com/marmos91/udavfs3/pkg/fsops"
	"github.com/marmos91/udavfs3/pkg/inodestore"
)

// FS wires the Inode & Directory Store and the File-Body Engine into a
// go-fuse node tree. One FS instance serves one mounted filesystem.
type FS struct {
	inodes *inodestore.Store
	bodies *body.Store
	runID  string
}

// New constructs an FS bound to the given stores, both scoped to the same
// bootstrapped filesystem. A random run id is minted to tag every log line
// emitted during this mount session, distinguishing it from a previous or
// concurrent mount of the same filesystem in aggregated logs.
func New(inodes *inodestore.Store, bodies *body.Store) *FS {
	return &FS{inodes: inodes, bodies: bodies, runID: uuid.NewString()}
}

// Root returns the root Node for fs.NewNodeFS.
func (f *FS) Root() fs.InodeEmbedder {
	return &Node{fsys: f, inodeID: inodestore.RootInodeID}
}

// callerCreds extracts the kernel upcall's caller uid/gid, defaulting to
// 0/0 if the bridge did not attach one (e.g. direct unit-test calls).
func callerCreds(ctx context.Context) (uid, gid uint32) {
	if caller, ok := fuse.FromContext(ctx); ok {
		return caller.Uid, caller.Gid
	}
	return 0, 0
}

// logCtx builds a context carrying per-upcall log fields and returns it
// alongside the OpContext so callers can report duration/errors on exit.
func (f *FS) logCtx(ctx context.Context, op string, inodeID uint64) (context.Context, *logger.OpContext) {
	uid, gid := callerCreds(ctx)
	oc := logger.NewOpContext(f.inodes.FSID(), op, uid, gid).WithInode(inodeID)
	return logger.WithOp(ctx, oc), oc
}

// logResult logs an upcall's completion: debug on success, warn on
// failure, always with the run id tagging this mount session.
func logResult(ctx context.Context, oc *logger.OpContext, runID string, err error) {
	if err != nil {
		logger.WarnCtx(ctx, "upcall failed", "run_id", runID, logger.KeyDurationMs, oc.DurationMs(), logger.Err(err))
		return
	}
	logger.DebugCtx(ctx, "upcall completed", "run_id", runID, logger.KeyDurationMs, oc.DurationMs())
}

// fillAttr populates a fuse.Attr from a core Inode record.
func fillAttr(ino *inodestore.Inode, blockSize int64, attr *fuse.Attr) {
	attr.Ino = ino.InodeID
	attr.Size = uint64(ino.Size)
	attr.Blocks = uint64(ino.Blocks) * uint64(blockSize) / 512
	attr.Mode = ino.Mode
	attr.Nlink = ino.Nlink
	attr.Owner = fuse.Owner{Uid: ino.UID, Gid: ino.GID}
	attr.Rdev = uint32(ino.Rdev)
	attr.Blksize = uint32(blockSize)
	attr.Atime = uint64(ino.AtimeNs / 1e9)
	attr.Atimensec = uint32(ino.AtimeNs % 1e9)
	attr.Mtime = uint64(ino.MtimeNs / 1e9)
	attr.Mtimensec = uint32(ino.MtimeNs % 1e9)
	attr.Ctime = uint64(ino.CtimeNs / 1e9)
	attr.Ctimensec = uint32(ino.CtimeNs % 1e9)
}

func durationToOut(d time.Duration) (sec uint64, nsec uint32) {
	return uint64(d / time.Second), uint32(d % time.Second / time.Nanosecond)
}

func setEntryTimeout(out *fuse.EntryOut) {
	out.EntryValid, out.EntryValidNsec = durationToOut(fsops.DefaultEntryTimeout)
	out.AttrValid, out.AttrValidNsec = durationToOut(fsops.DefaultAttrTimeout)
}

func setAttrTimeout(out *fuse.AttrOut) {
	out.AttrValid, out.AttrValidNsec = durationToOut(fsops.DefaultAttrTimeout)
}
