package inodestore

import (
	"context"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/marmos91/udavfs3/pkg/fsops"
	"github.com/marmos91/udavfs3/pkg/gateway"
)

// allocateInodeID atomically reserves the next inode id for this
// filesystem by incrementing fsinfo.next_inode_id and returning the
// pre-increment value. The row-level lock UPDATE takes makes this safe
// under concurrent upcalls.
func (s *Store) allocateInodeID(ctx context.Context) (uint64, error) {
	var next int64
	err := s.gw.OneRow(ctx,
		`UPDATE fsinfo SET next_inode_id = next_inode_id + 1
		 WHERE fsid = $1
		 RETURNING next_inode_id - 1`,
		[]any{s.fsid},
		func(row gateway.Row) error { return row.Scan(&next) },
	)
	if err != nil {
		return 0, err
	}
	return uint64(next), nil
}

// createParams bundles the arguments common to mknod/mkdir/symlink/create's
// shared creation path (spec.md §4.3 "_create").
type createParams struct {
	Parent uint64
	Name   string
	Mode   uint32
	UID    uint32
	GID    uint32
	Rdev   uint64
	Target []byte
}

// create is the shared creation path: assert the parent is not orphaned,
// insert the new inode, bind it into the parent's listing, and (for
// directories) record its own ".." self-reference.
func (s *Store) create(ctx context.Context, p createParams) (*Inode, error) {
	nlink, err := s.linkCount(ctx, p.Parent)
	if err != nil {
		return nil, fsops.MapStoreError(err, "Create", p.Name, syscall.ENOENT)
	}
	if nlink == 0 {
		return nil, fsops.ErrInval("Create", p.Name)
	}

	newID, err := s.allocateInodeID(ctx)
	if err != nil {
		return nil, fsops.MapStoreError(err, "Create", p.Name, syscall.ENOENT)
	}

	now := time.Now().UnixNano()
	if _, err := s.gw.Exec(ctx,
		`INSERT INTO inodes (fsid, inode_id, mode, uid, gid, size, rdev, symlink_target, atime_ns, mtime_ns, ctime_ns)
		 VALUES ($1, $2, $3, $4, $5, 0, $6, $7, $8, $8, $8)`,
		s.fsid, int64(newID), int32(p.Mode), int32(p.UID), int32(p.GID), int64(p.Rdev), nullableBytes(p.Target), now,
	); err != nil {
		return nil, fsops.MapStoreError(err, "Create", p.Name, syscall.ENOENT)
	}

	if _, err := s.gw.Exec(ctx,
		`INSERT INTO contents (fsid, parent_inode, name, inode_id) VALUES ($1, $2, $3, $4)`,
		s.fsid, int64(p.Parent), p.Name, int64(newID),
	); err != nil {
		return nil, fsops.MapStoreError(err, "Create", p.Name, syscall.EEXIST)
	}

	if p.Mode&unix.S_IFMT == unix.S_IFDIR {
		if _, err := s.gw.Exec(ctx,
			`INSERT INTO contents (fsid, parent_inode, name, inode_id) VALUES ($1, $2, '..', $3)`,
			s.fsid, int64(newID), int64(p.Parent),
		); err != nil {
			return nil, fsops.MapStoreError(err, "Create", p.Name, syscall.EEXIST)
		}
	}

	return s.GetAttr(ctx, newID)
}

func nullableBytes(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}

// Mknod creates a device, fifo, or socket node. mode must already carry the
// intended type bits.
func (s *Store) Mknod(ctx context.Context, parent uint64, name string, mode uint32, rdev uint64, uid, gid uint32) (*Inode, error) {
	return s.create(ctx, createParams{Parent: parent, Name: name, Mode: mode, UID: uid, GID: gid, Rdev: rdev})
}

// Mkdir creates a directory. The directory type bit is added to mode here,
// so the caller may pass permission bits only.
func (s *Store) Mkdir(ctx context.Context, parent uint64, name string, mode uint32, uid, gid uint32) (*Inode, error) {
	return s.create(ctx, createParams{Parent: parent, Name: name, Mode: mode | unix.S_IFDIR, UID: uid, GID: gid})
}

// Symlink creates a symbolic link with rwx for all classes and the given
// target.
func (s *Store) Symlink(ctx context.Context, parent uint64, name, target string, uid, gid uint32) (*Inode, error) {
	const symlinkMode = unix.S_IFLNK | 0o777
	return s.create(ctx, createParams{Parent: parent, Name: name, Mode: symlinkMode, UID: uid, GID: gid, Target: []byte(target)})
}

// Create creates a regular file and opens it, returning the new inode and
// a handle (the inode id itself, per spec.md §4.3 "open").
func (s *Store) Create(ctx context.Context, parent uint64, name string, mode uint32, uid, gid uint32) (*Inode, uint64, error) {
	ino, err := s.create(ctx, createParams{Parent: parent, Name: name, Mode: mode | unix.S_IFREG, UID: uid, GID: gid})
	if err != nil {
		return nil, 0, err
	}
	s.openTable.Open(ino.InodeID)
	return ino, ino.InodeID, nil
}

// Link adds a new directory entry for an existing inode, increasing its
// effective link count.
func (s *Store) Link(ctx context.Context, inodeID, newParent uint64, newName string) (*Inode, error) {
	nlink, err := s.linkCount(ctx, newParent)
	if err != nil {
		return nil, fsops.MapStoreError(err, "Link", newName, syscall.ENOENT)
	}
	if nlink == 0 {
		return nil, fsops.ErrInval("Link", newName)
	}

	if _, err := s.gw.Exec(ctx,
		`INSERT INTO contents (fsid, parent_inode, name, inode_id) VALUES ($1, $2, $3, $4)`,
		s.fsid, int64(newParent), newName, int64(inodeID),
	); err != nil {
		return nil, fsops.MapStoreError(err, "Link", newName, syscall.EEXIST)
	}

	return s.GetAttr(ctx, inodeID)
}
