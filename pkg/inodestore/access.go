package inodestore

import (
	"context"
)

// Access checks mode (a combination of unix.R_OK/W_OK/X_OK/F_OK) against
// inodeID's owner/group/other permission bits for the given caller
// credentials. F_OK only checks existence.
func (s *Store) Access(ctx context.Context, inodeID uint64, mode uint32, uid, gid uint32) (bool, error) {
	ino, err := s.GetAttr(ctx, inodeID)
	if err != nil {
		return false, err
	}
	if mode == 0 {
		return true, nil
	}

	perm := ino.Mode & 0o777
	var bits uint32
	switch {
	case uid == ino.UID:
		bits = (perm >> 6) & 0o7
	case gid == ino.GID:
		bits = (perm >> 3) & 0o7
	default:
		bits = perm & 0o7
	}

	return mode&bits == mode, nil
}
