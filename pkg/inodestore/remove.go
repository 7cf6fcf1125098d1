package inodestore

import (
	"context"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/marmos91/udavfs3/pkg/fsops"
)

func isDir(mode uint32) bool { return mode&unix.S_IFMT == unix.S_IFDIR }

// Unlink removes a non-directory directory entry. Fails EISDIR if the
// target is a directory.
func (s *Store) Unlink(ctx context.Context, parent uint64, name string) error {
	childID, err := s.resolveChild(ctx, parent, name)
	if err != nil {
		return err
	}
	ino, err := s.GetAttr(ctx, childID)
	if err != nil {
		return err
	}
	if isDir(ino.Mode) {
		return fsops.ErrIsDir("Unlink", name)
	}
	return s.remove(ctx, parent, name, childID)
}

// Rmdir removes an empty directory's entry. Fails ENOTDIR if the target is
// not a directory.
func (s *Store) Rmdir(ctx context.Context, parent uint64, name string) error {
	childID, err := s.resolveChild(ctx, parent, name)
	if err != nil {
		return err
	}
	ino, err := s.GetAttr(ctx, childID)
	if err != nil {
		return err
	}
	if !isDir(ino.Mode) {
		return fsops.ErrNotDir("Rmdir", name)
	}
	return s.remove(ctx, parent, name, childID)
}

// remove implements spec.md §4.3 "_remove": reject non-empty directories,
// delete the (parent, name) entry, and drop the inode if its link count
// just reached zero while unopened.
func (s *Store) remove(ctx context.Context, parent uint64, name string, childID uint64) error {
	ino, err := s.GetAttr(ctx, childID)
	if err != nil {
		return err
	}
	if isDir(ino.Mode) {
		children, err := s.childCountExcludingDotDot(ctx, childID)
		if err != nil {
			return fsops.MapStoreError(err, "Remove", name, syscall.ENOENT)
		}
		if children > 0 {
			return fsops.ErrNotEmpty("Remove", name)
		}
	}

	if _, err := s.gw.Exec(ctx,
		`DELETE FROM contents WHERE fsid = $1 AND parent_inode = $2 AND name = $3`,
		s.fsid, int64(parent), name,
	); err != nil {
		return fsops.MapStoreError(err, "Remove", name, syscall.ENOENT)
	}

	if err := s.deleteInodeIfOrphaned(ctx, childID); err != nil {
		return fsops.MapStoreError(err, "Remove", name, syscall.ENOENT)
	}
	return nil
}

// Rename implements spec.md §4.3's rename-over-existing-empty-target
// protocol.
func (s *Store) Rename(ctx context.Context, oldParent uint64, oldName string, newParent uint64, newName string) error {
	oldChildID, err := s.resolveChild(ctx, oldParent, oldName)
	if err != nil {
		return err
	}
	oldInode, err := s.GetAttr(ctx, oldChildID)
	if err != nil {
		return err
	}

	newChildID, err := s.resolveChild(ctx, newParent, newName)
	if err != nil {
		if !isNoEnt(err) {
			return err
		}
		return s.renameOntoFreeName(ctx, oldParent, oldName, newParent, newName, oldChildID, oldInode)
	}
	return s.renameOverExisting(ctx, oldParent, oldName, newParent, newName, oldChildID, oldInode, newChildID)
}

func isNoEnt(err error) bool {
	var errno *fsops.Errno
	if e, ok := err.(*fsops.Errno); ok {
		errno = e
	}
	return errno != nil && errno.Errno == syscall.ENOENT
}

func (s *Store) renameOntoFreeName(ctx context.Context, oldParent uint64, oldName string, newParent uint64, newName string, oldChildID uint64, oldInode *Inode) error {
	if _, err := s.gw.Exec(ctx,
		`UPDATE contents SET parent_inode = $1, name = $2
		 WHERE fsid = $3 AND parent_inode = $4 AND name = $5`,
		int64(newParent), newName, s.fsid, int64(oldParent), oldName,
	); err != nil {
		return fsops.MapStoreError(err, "Rename", newName, syscall.ENOENT)
	}
	return s.fixUpDotDot(ctx, oldChildID, oldInode, oldParent, newParent)
}

func (s *Store) renameOverExisting(ctx context.Context, oldParent uint64, oldName string, newParent uint64, newName string, oldChildID uint64, oldInode *Inode, newChildID uint64) error {
	newInode, err := s.GetAttr(ctx, newChildID)
	if err != nil {
		return err
	}
	if isDir(newInode.Mode) {
		children, err := s.childCountExcludingDotDot(ctx, newChildID)
		if err != nil {
			return fsops.MapStoreError(err, "Rename", newName, syscall.ENOENT)
		}
		if children > 0 {
			return fsops.ErrNotEmpty("Rename", newName)
		}
	}

	if _, err := s.gw.Exec(ctx,
		`UPDATE contents SET inode_id = $1 WHERE fsid = $2 AND parent_inode = $3 AND name = $4`,
		int64(oldChildID), s.fsid, int64(newParent), newName,
	); err != nil {
		return fsops.MapStoreError(err, "Rename", newName, syscall.ENOENT)
	}
	if _, err := s.gw.Exec(ctx,
		`DELETE FROM contents WHERE fsid = $1 AND parent_inode = $2 AND name = $3`,
		s.fsid, int64(oldParent), oldName,
	); err != nil {
		return fsops.MapStoreError(err, "Rename", oldName, syscall.ENOENT)
	}

	if err := s.fixUpDotDot(ctx, oldChildID, oldInode, oldParent, newParent); err != nil {
		return err
	}

	return s.deleteInodeIfOrphaned(ctx, newChildID)
}

// fixUpDotDot keeps a moved directory's recorded ".." entry consistent
// with its real new parent; a supplement to spec.md's rename description,
// necessary because this implementation records ".." as an ordinary
// directory entry rather than deriving it implicitly.
func (s *Store) fixUpDotDot(ctx context.Context, movedID uint64, movedInode *Inode, oldParent, newParent uint64) error {
	if !isDir(movedInode.Mode) || oldParent == newParent {
		return nil
	}
	_, err := s.gw.Exec(ctx,
		`UPDATE contents SET inode_id = $1 WHERE fsid = $2 AND parent_inode = $3 AND name = '..'`,
		int64(newParent), s.fsid, int64(movedID),
	)
	return err
}
