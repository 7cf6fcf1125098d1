package logger

import (
	"context"
	"time"
)

type contextKey struct{}

var opContextKey = contextKey{}

// OpContext holds per-upcall logging context: which FUSE operation is
// running, against which mounted filesystem, on whose behalf.
type OpContext struct {
	Op        string // Op is the upcall name: Lookup, Read, Write, Mkdir, ...
	FSID      string // FSID scopes the operation to one mounted filesystem
	InodeID   uint64 // InodeID is the primary inode the op concerns, if any
	UID       uint32
	GID       uint32
	StartTime time.Time
}

// WithOp returns a context carrying op, for use with the *Ctx logging
// functions.
func WithOp(ctx context.Context, op *OpContext) context.Context {
	return context.WithValue(ctx, opContextKey, op)
}

// OpFromContext retrieves the OpContext, or nil if none is set.
func OpFromContext(ctx context.Context) *OpContext {
	if ctx == nil {
		return nil
	}
	op, _ := ctx.Value(opContextKey).(*OpContext)
	return op
}

// NewOpContext starts an OpContext for a freshly dispatched upcall.
func NewOpContext(fsid, op string, uid, gid uint32) *OpContext {
	return &OpContext{Op: op, FSID: fsid, UID: uid, GID: gid, StartTime: time.Now()}
}

// WithInode returns a copy of oc scoped to the given inode id.
func (oc *OpContext) WithInode(inodeID uint64) *OpContext {
	if oc == nil {
		return nil
	}
	clone := *oc
	clone.InodeID = inodeID
	return &clone
}

// DurationMs reports elapsed time since the upcall started, in milliseconds.
func (oc *OpContext) DurationMs() float64 {
	if oc == nil || oc.StartTime.IsZero() {
		return 0
	}
	return float64(time.Since(oc.StartTime).Microseconds()) / 1000.0
}

func appendContextFields(ctx context.Context, args []any) []any {
	oc := OpFromContext(ctx)
	if oc == nil {
		return args
	}
	fields := make([]any, 0, 10+len(args))
	if oc.Op != "" {
		fields = append(fields, KeyOp, oc.Op)
	}
	if oc.FSID != "" {
		fields = append(fields, KeyFSID, oc.FSID)
	}
	if oc.InodeID != 0 {
		fields = append(fields, KeyInodeID, oc.InodeID)
	}
	fields = append(fields, KeyUID, oc.UID, KeyGID, oc.GID)
	return append(fields, args...)
}
