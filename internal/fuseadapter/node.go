package fuseadapter

import (
	"context"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/marmos91/udavfs3/pkg/inodestore"
)

// Node is one live inode in the kernel's view of the tree. It carries no
// cached attributes of its own; every upcall re-reads the store.
type Node struct {
	fs.Inode
	fsys    *FS
	inodeID uint64
}

var (
	_ fs.InodeEmbedder  = (*Node)(nil)
	_ fs.NodeLookuper   = (*Node)(nil)
	_ fs.NodeGetattrer  = (*Node)(nil)
	_ fs.NodeSetattrer  = (*Node)(nil)
	_ fs.NodeReaddirer  = (*Node)(nil)
	_ fs.NodeMkdirer    = (*Node)(nil)
	_ fs.NodeMknoder    = (*Node)(nil)
	_ fs.NodeCreater    = (*Node)(nil)
	_ fs.NodeUnlinker   = (*Node)(nil)
	_ fs.NodeRmdirer    = (*Node)(nil)
	_ fs.NodeRenamer    = (*Node)(nil)
	_ fs.NodeLinker     = (*Node)(nil)
	_ fs.NodeSymlinker  = (*Node)(nil)
	_ fs.NodeReadlinker = (*Node)(nil)
	_ fs.NodeOpener     = (*Node)(nil)
	_ fs.NodeReader     = (*Node)(nil)
	_ fs.NodeWriter     = (*Node)(nil)
	_ fs.NodeReleaser   = (*Node)(nil)
	_ fs.NodeAccesser   = (*Node)(nil)
	_ fs.NodeStatfser   = (*Node)(nil)
)

// child wraps a resolved inode as a Node and hands it to the kernel via
// NewInode. Passing the real inode id as StableAttr.Ino lets go-fuse
// dedup against an already-live Inode for the same id (the hard-link
// case), rather than minting a second kernel-visible node.
func (n *Node) child(ino *inodestore.Inode) *fs.Inode {
	child := &Node{fsys: n.fsys, inodeID: ino.InodeID}
	return n.NewInode(context.Background(), child, fs.StableAttr{
		Mode: ino.Mode,
		Ino:  ino.InodeID,
	})
}

func (n *Node) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	lctx, oc := n.fsys.logCtx(ctx, "Lookup", n.inodeID)
	ino, err := n.fsys.inodes.Lookup(ctx, n.inodeID, name)
	logResult(lctx, oc, n.fsys.runID, err)
	if err != nil {
		return nil, errnoOf(err)
	}
	fillAttr(ino, n.fsys.inodes.BlockSize(), &out.Attr)
	setEntryTimeout(out)
	return n.child(ino), fs.OK
}

func (n *Node) Getattr(ctx context.Context, f fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	ino, err := n.fsys.inodes.GetAttr(ctx, n.inodeID)
	if err != nil {
		return errnoOf(err)
	}
	fillAttr(ino, n.fsys.inodes.BlockSize(), &out.Attr)
	setAttrTimeout(out)
	return fs.OK
}

func (n *Node) Setattr(ctx context.Context, f fs.FileHandle, in *fuse.SetAttrIn, out *fuse.AttrOut) syscall.Errno {
	if size, ok := in.GetSize(); ok {
		if err := n.fsys.bodies.Truncate(ctx, n.inodeID, int64(size)); err != nil {
			return errnoOf(err)
		}
	}

	req := inodestore.SetAttrRequest{}
	if mode, ok := in.GetMode(); ok {
		req.Mode = &mode
	}
	if uid, ok := in.GetUID(); ok {
		req.UID = &uid
	}
	if gid, ok := in.GetGID(); ok {
		req.GID = &gid
	}
	if atime, ok := in.GetATime(); ok {
		ns := atime.UnixNano()
		req.AtimeNs = &ns
	}
	if mtime, ok := in.GetMTime(); ok {
		ns := mtime.UnixNano()
		req.MtimeNs = &ns
	}

	ino, err := n.fsys.inodes.SetAttr(ctx, n.inodeID, req)
	if err != nil {
		return errnoOf(err)
	}
	fillAttr(ino, n.fsys.inodes.BlockSize(), &out.Attr)
	setAttrTimeout(out)
	return fs.OK
}

func (n *Node) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	entries, err := n.fsys.inodes.ReadDir(ctx, n.inodeID, 0)
	if err != nil {
		return nil, errnoOf(err)
	}
	out := make([]fuse.DirEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, fuse.DirEntry{Name: e.Name, Ino: e.InodeID, Mode: e.NodeMode})
	}
	return fs.NewListDirStream(out), fs.OK
}

func (n *Node) Mkdir(ctx context.Context, name string, mode uint32, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	lctx, oc := n.fsys.logCtx(ctx, "Mkdir", n.inodeID)
	uid, gid := callerCreds(ctx)
	ino, err := n.fsys.inodes.Mkdir(ctx, n.inodeID, name, mode, uid, gid)
	logResult(lctx, oc, n.fsys.runID, err)
	if err != nil {
		return nil, errnoOf(err)
	}
	fillAttr(ino, n.fsys.inodes.BlockSize(), &out.Attr)
	setEntryTimeout(out)
	return n.child(ino), fs.OK
}

func (n *Node) Mknod(ctx context.Context, name string, mode, dev uint32, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	uid, gid := callerCreds(ctx)
	ino, err := n.fsys.inodes.Mknod(ctx, n.inodeID, name, mode, uint64(dev), uid, gid)
	if err != nil {
		return nil, errnoOf(err)
	}
	fillAttr(ino, n.fsys.inodes.BlockSize(), &out.Attr)
	setEntryTimeout(out)
	return n.child(ino), fs.OK
}

func (n *Node) Create(ctx context.Context, name string, flags, mode uint32, out *fuse.EntryOut) (*fs.Inode, fs.FileHandle, uint32, syscall.Errno) {
	lctx, oc := n.fsys.logCtx(ctx, "Create", n.inodeID)
	uid, gid := callerCreds(ctx)
	ino, handle, err := n.fsys.inodes.Create(ctx, n.inodeID, name, mode, uid, gid)
	logResult(lctx, oc, n.fsys.runID, err)
	if err != nil {
		return nil, nil, 0, errnoOf(err)
	}
	fillAttr(ino, n.fsys.inodes.BlockSize(), &out.Attr)
	setEntryTimeout(out)
	return n.child(ino), fileHandle(handle), 0, fs.OK
}

func (n *Node) Unlink(ctx context.Context, name string) syscall.Errno {
	lctx, oc := n.fsys.logCtx(ctx, "Unlink", n.inodeID)
	err := n.fsys.inodes.Unlink(ctx, n.inodeID, name)
	logResult(lctx, oc, n.fsys.runID, err)
	return errnoOf(err)
}

func (n *Node) Rmdir(ctx context.Context, name string) syscall.Errno {
	lctx, oc := n.fsys.logCtx(ctx, "Rmdir", n.inodeID)
	err := n.fsys.inodes.Rmdir(ctx, n.inodeID, name)
	logResult(lctx, oc, n.fsys.runID, err)
	return errnoOf(err)
}

func (n *Node) Rename(ctx context.Context, name string, newParent fs.InodeEmbedder, newName string, flags uint32) syscall.Errno {
	newParentNode, ok := newParent.(*Node)
	if !ok {
		return syscall.EINVAL
	}
	lctx, oc := n.fsys.logCtx(ctx, "Rename", n.inodeID)
	err := n.fsys.inodes.Rename(ctx, n.inodeID, name, newParentNode.inodeID, newName)
	logResult(lctx, oc, n.fsys.runID, err)
	return errnoOf(err)
}

func (n *Node) Link(ctx context.Context, target fs.InodeEmbedder, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	targetNode, ok := target.(*Node)
	if !ok {
		return nil, syscall.EINVAL
	}
	ino, err := n.fsys.inodes.Link(ctx, targetNode.inodeID, n.inodeID, name)
	if err != nil {
		return nil, errnoOf(err)
	}
	fillAttr(ino, n.fsys.inodes.BlockSize(), &out.Attr)
	setEntryTimeout(out)
	return n.child(ino), fs.OK
}

func (n *Node) Symlink(ctx context.Context, target, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	uid, gid := callerCreds(ctx)
	ino, err := n.fsys.inodes.Symlink(ctx, n.inodeID, name, target, uid, gid)
	if err != nil {
		return nil, errnoOf(err)
	}
	fillAttr(ino, n.fsys.inodes.BlockSize(), &out.Attr)
	setEntryTimeout(out)
	return n.child(ino), fs.OK
}

func (n *Node) Readlink(ctx context.Context) ([]byte, syscall.Errno) {
	target, err := n.fsys.inodes.ReadLink(ctx, n.inodeID)
	if err != nil {
		return nil, errnoOf(err)
	}
	return target, fs.OK
}

func (n *Node) Open(ctx context.Context, flags uint32) (fs.FileHandle, uint32, syscall.Errno) {
	handle, err := n.fsys.inodes.Open(ctx, n.inodeID)
	if err != nil {
		return nil, 0, errnoOf(err)
	}
	return fileHandle(handle), 0, fs.OK
}

func (n *Node) Read(ctx context.Context, f fs.FileHandle, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	ino, err := n.fsys.inodes.GetAttr(ctx, n.inodeID)
	if err != nil {
		return nil, errnoOf(err)
	}
	data, err := n.fsys.bodies.Read(ctx, n.inodeID, ino.Size, off, int64(len(dest)))
	if err != nil {
		return nil, errnoOf(err)
	}
	return fuse.ReadResultData(data), fs.OK
}

func (n *Node) Write(ctx context.Context, f fs.FileHandle, data []byte, off int64) (uint32, syscall.Errno) {
	written, err := n.fsys.bodies.Write(ctx, n.inodeID, off, data)
	if err != nil {
		return 0, errnoOf(err)
	}
	return uint32(written), fs.OK
}

func (n *Node) Release(ctx context.Context, f fs.FileHandle) syscall.Errno {
	return errnoOf(n.fsys.inodes.Release(ctx, n.inodeID))
}

func (n *Node) Access(ctx context.Context, mask uint32) syscall.Errno {
	uid, gid := callerCreds(ctx)
	ok, err := n.fsys.inodes.Access(ctx, n.inodeID, mask, uid, gid)
	if err != nil {
		return errnoOf(err)
	}
	if !ok {
		return syscall.EACCES
	}
	return fs.OK
}

func (n *Node) Statfs(ctx context.Context, out *fuse.StatfsOut) syscall.Errno {
	stat, err := n.fsys.inodes.StatFS(ctx)
	if err != nil {
		return errnoOf(err)
	}
	out.Blocks = uint64(stat.TotalBlocks)
	out.Bfree = uint64(stat.FreeBlocks)
	out.Bavail = uint64(stat.Available)
	out.Files = uint64(stat.Files)
	out.Ffree = uint64(stat.FreeFiles)
	out.Bsize = uint32(stat.BlockSize)
	out.Frsize = uint32(stat.FragSize)
	out.NameLen = 255
	return fs.OK
}

// fileHandle is the handle the kernel carries between open/read/write/
// release. The underlying identity is the inode id itself (spec.md
// §4.3's open() returns the inode id as the handle), so no extra state is
// needed beyond the receiver's inodeID; this type only exists to satisfy
// fs.FileHandle's empty interface.
type fileHandle uint64
