package inodestore

import (
	"context"
	"syscall"

	"github.com/marmos91/udavfs3/pkg/fsops"
)

// Open marks inodeID as in-use, returning a handle (the inode id itself)
// for the open() upcall on an existing inode.
func (s *Store) Open(ctx context.Context, inodeID uint64) (uint64, error) {
	if _, err := s.GetAttr(ctx, inodeID); err != nil {
		return 0, err
	}
	s.openTable.Open(inodeID)
	return inodeID, nil
}

// Release drops one reference to handle. If the inode's link count has
// already reached zero and this was its last open reference, the inode row
// is deleted now.
func (s *Store) Release(ctx context.Context, handle uint64) error {
	s.openTable.Close(handle)
	if err := s.deleteInodeIfOrphaned(ctx, handle); err != nil {
		return fsops.MapStoreError(err, "Release", "", syscall.ENOENT)
	}
	return nil
}
