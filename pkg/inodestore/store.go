package inodestore

import (
	"context"
	"syscall"

	"github.com/marmos91/udavfs3/pkg/fsops"
	"github.com/marmos91/udavfs3/pkg/gateway"
)

// Store is the Inode & Directory Store, scoped to one filesystem instance.
type Store struct {
	gw        *gateway.Gateway
	fsid      string
	blockSize int64
	capacity  int64
	openTable *OpenTable
}

// New constructs a Store bound to a bootstrapped filesystem header.
func New(gw *gateway.Gateway, fsid string, blockSize, capacity int64) *Store {
	return &Store{gw: gw, fsid: fsid, blockSize: blockSize, capacity: capacity, openTable: NewOpenTable()}
}

// Gateway exposes the underlying gateway for pkg/body, which shares the
// same connection pool but owns its own SQL.
func (s *Store) Gateway() *gateway.Gateway { return s.gw }

// FSID returns the filesystem id this store is scoped to.
func (s *Store) FSID() string { return s.fsid }

// BlockSize returns the fixed block size for this filesystem.
func (s *Store) BlockSize() int64 { return s.blockSize }

// Lookup resolves name within parent. "." returns parent itself; ".."
// returns parent's recorded ".." entry (self for root); any other name is
// resolved via the unique (parent, name) directory entry.
func (s *Store) Lookup(ctx context.Context, parent uint64, name string) (*Inode, error) {
	if name == "." {
		return s.GetAttr(ctx, parent)
	}

	childID, err := s.resolveChild(ctx, parent, name)
	if err != nil {
		return nil, err
	}
	return s.GetAttr(ctx, childID)
}

// resolveChild returns the inode id bound to (parent, name), mapping a
// missing row to ENOENT.
func (s *Store) resolveChild(ctx context.Context, parent uint64, name string) (uint64, error) {
	var childID int64
	err := s.gw.OneRow(ctx,
		`SELECT inode_id FROM contents WHERE fsid = $1 AND parent_inode = $2 AND name = $3`,
		[]any{s.fsid, int64(parent), name},
		func(row gateway.Row) error { return row.Scan(&childID) },
	)
	if err != nil {
		return 0, fsops.MapStoreError(err, "Lookup", name, syscall.ENOENT)
	}
	return uint64(childID), nil
}

// GetAttr fetches the full attribute record for inodeID, computing nlink
// and block count live.
func (s *Store) GetAttr(ctx context.Context, inodeID uint64) (*Inode, error) {
	ino := &Inode{InodeID: inodeID}
	var mode, uid, gid int32
	var rdev int64
	var symlinkTarget []byte

	err := s.gw.OneRow(ctx,
		`SELECT mode, uid, gid, size, rdev, symlink_target, atime_ns, mtime_ns, ctime_ns
		 FROM inodes WHERE fsid = $1 AND inode_id = $2`,
		[]any{s.fsid, int64(inodeID)},
		func(row gateway.Row) error {
			return row.Scan(&mode, &uid, &gid, &ino.Size, &rdev, &symlinkTarget,
				&ino.AtimeNs, &ino.MtimeNs, &ino.CtimeNs)
		},
	)
	if err != nil {
		return nil, fsops.MapStoreError(err, "GetAttr", "", syscall.ENOENT)
	}
	ino.Mode = uint32(mode)
	ino.UID = uint32(uid)
	ino.GID = uint32(gid)
	ino.Rdev = uint64(rdev)
	ino.SymlinkTarget = symlinkTarget

	nlink, err := s.linkCount(ctx, inodeID)
	if err != nil {
		return nil, fsops.MapStoreError(err, "GetAttr", "", syscall.ENOENT)
	}
	ino.Nlink = nlink

	blocks, err := s.blockCount(ctx, inodeID)
	if err != nil {
		return nil, fsops.MapStoreError(err, "GetAttr", "", syscall.ENOENT)
	}
	ino.Blocks = blocks

	return ino, nil
}

// ReadDir streams directory entries for inodeID whose rowid is strictly
// greater than off, in ascending rowid order. An off of zero returns every
// entry from the beginning.
func (s *Store) ReadDir(ctx context.Context, inodeID uint64, off int64) ([]DirEntry, error) {
	var entries []DirEntry
	err := s.gw.AllRows(ctx,
		`SELECT c.rowid, c.name, c.inode_id, i.mode
		 FROM contents c
		 JOIN inodes i ON i.fsid = c.fsid AND i.inode_id = c.inode_id
		 WHERE c.fsid = $1 AND c.parent_inode = $2 AND c.rowid > $3
		 ORDER BY c.rowid ASC`,
		[]any{s.fsid, int64(inodeID), off},
		func(rows gateway.Rows) error {
			var e DirEntry
			var childID int64
			var mode int32
			if err := rows.Scan(&e.RowID, &e.Name, &childID, &mode); err != nil {
				return err
			}
			e.InodeID = uint64(childID)
			e.NodeMode = uint32(mode)
			entries = append(entries, e)
			return nil
		},
	)
	if err != nil {
		return nil, fsops.MapStoreError(err, "ReadDir", "", syscall.ENOENT)
	}
	return entries, nil
}

// ReadLink returns the stored symlink target verbatim.
func (s *Store) ReadLink(ctx context.Context, inodeID uint64) ([]byte, error) {
	ino, err := s.GetAttr(ctx, inodeID)
	if err != nil {
		return nil, err
	}
	return ino.SymlinkTarget, nil
}

// linkCount returns the number of directory entries pointing at inodeID.
func (s *Store) linkCount(ctx context.Context, inodeID uint64) (uint32, error) {
	var count int64
	err := s.gw.OneRow(ctx,
		`SELECT COUNT(*) FROM contents WHERE fsid = $1 AND inode_id = $2`,
		[]any{s.fsid, int64(inodeID)},
		func(row gateway.Row) error { return row.Scan(&count) },
	)
	if err != nil {
		return 0, err
	}
	return uint32(count), nil
}

// blockCount returns the number of stored blocks for inodeID.
func (s *Store) blockCount(ctx context.Context, inodeID uint64) (int64, error) {
	var count int64
	err := s.gw.OneRow(ctx,
		`SELECT COUNT(*) FROM body WHERE fsid = $1 AND inode_id = $2`,
		[]any{s.fsid, int64(inodeID)},
		func(row gateway.Row) error { return row.Scan(&count) },
	)
	if err != nil {
		return 0, err
	}
	return count, nil
}

// childCountExcludingDotDot reports whether inodeID (a directory) has any
// directory entries pointing out of it, other than its own recorded ".."
// self-reference.
func (s *Store) childCountExcludingDotDot(ctx context.Context, inodeID uint64) (int64, error) {
	var count int64
	err := s.gw.OneRow(ctx,
		`SELECT COUNT(*) FROM contents WHERE fsid = $1 AND parent_inode = $2 AND name <> '..'`,
		[]any{s.fsid, int64(inodeID)},
		func(row gateway.Row) error { return row.Scan(&count) },
	)
	if err != nil {
		return 0, err
	}
	return count, nil
}

// deleteInodeIfOrphaned deletes inodeID's row (cascading its blocks and any
// directory entries for which it is the child) if its link count is zero
// and it has no open handles. It also cleans up the directory's own ".."
// self-entry, which the inodes->contents(inode_id) cascade does not reach
// since that row's inode_id column holds the parent, not inodeID itself.
func (s *Store) deleteInodeIfOrphaned(ctx context.Context, inodeID uint64) error {
	nlink, err := s.linkCount(ctx, inodeID)
	if err != nil {
		return err
	}
	if nlink > 0 || s.openTable.IsOpen(inodeID) {
		return nil
	}

	if _, err := s.gw.Exec(ctx,
		`DELETE FROM contents WHERE fsid = $1 AND parent_inode = $2`,
		s.fsid, int64(inodeID),
	); err != nil {
		return err
	}
	if _, err := s.gw.Exec(ctx,
		`DELETE FROM inodes WHERE fsid = $1 AND inode_id = $2`,
		s.fsid, int64(inodeID),
	); err != nil {
		return err
	}
	return nil
}
