// Package inodestore implements CRUD over inodes and directory entries:
// name resolution, attribute records, the create/link/unlink/rename
// directory-entry protocol, and the open-count-gated orphan inode
// lifetime. It does not know how file bodies are stored; pkg/body owns
// block content, and size changes go through pkg/body's Truncate, which
// the caller runs before SetAttr.
package inodestore

import "github.com/marmos91/udavfs3/pkg/schema"

// RootInodeID is the well-known inode id for the root directory.
const RootInodeID = schema.RootInodeID

// Inode is the full attribute record for a filesystem object.
type Inode struct {
	InodeID       uint64
	Mode          uint32
	UID           uint32
	GID           uint32
	Size          int64
	Rdev          uint64
	SymlinkTarget []byte
	AtimeNs       int64
	MtimeNs       int64
	CtimeNs       int64
	Nlink         uint32
	Blocks        int64
}

// DirEntry is one resolved directory entry as returned by ReadDir.
type DirEntry struct {
	RowID    int64
	Name     string
	InodeID  uint64
	NodeMode uint32
}

// StatFS reports the aggregate filesystem statistics spec.md §4.3 defines.
type StatFS struct {
	BlockSize   int64
	FragSize    int64
	TotalBlocks int64
	FreeBlocks  int64
	Available   int64
	Files       int64
	FreeFiles   int64
}

// SetAttrRequest carries the flagged-vs-unconditional attribute fields
// spec.md §4.3's setattr describes. A nil pointer means "field not
// supplied"; Rdev and CtimeNs are applied whenever non-nil, independent of
// the Mode/UID/GID/Atime/Mtime/Size flags.
type SetAttrRequest struct {
	Mode    *uint32
	UID     *uint32
	GID     *uint32
	AtimeNs *int64
	MtimeNs *int64
	Size    *int64
	Rdev    *uint64
	CtimeNs *int64
}
