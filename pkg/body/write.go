package body

import (
	"context"
	"syscall"

	"github.com/marmos91/udavfs3/pkg/fsops"
	"github.com/marmos91/udavfs3/pkg/gateway"
)

// getSize fetches inodeID's recorded size.
func (s *Store) getSize(ctx context.Context, inodeID uint64) (int64, error) {
	var size int64
	err := s.gw.OneRow(ctx,
		`SELECT size FROM inodes WHERE fsid = $1 AND inode_id = $2`,
		[]any{s.fsid, int64(inodeID)},
		func(row gateway.Row) error { return row.Scan(&size) },
	)
	if err != nil {
		return 0, err
	}
	return size, nil
}

func (s *Store) setSize(ctx context.Context, inodeID uint64, size int64) error {
	_, err := s.gw.Exec(ctx,
		`UPDATE inodes SET size = $1 WHERE fsid = $2 AND inode_id = $3`,
		size, s.fsid, int64(inodeID),
	)
	return err
}

// getBlock fetches block_no's content, right-padded with zeros to a full
// block. ok is false when no row exists for block_no.
func (s *Store) getBlock(ctx context.Context, inodeID uint64, blockNo int64) (data []byte, ok bool, err error) {
	var raw []byte
	err = s.gw.OneRow(ctx,
		`SELECT data FROM body WHERE fsid = $1 AND inode_id = $2 AND block_no = $3`,
		[]any{s.fsid, int64(inodeID), blockNo},
		func(row gateway.Row) error { return row.Scan(&raw) },
	)
	if err == gateway.NoSuchRow {
		return make([]byte, s.blockSize), false, nil
	}
	if err != nil {
		return nil, false, err
	}
	padded := make([]byte, s.blockSize)
	copy(padded, raw)
	return padded, true, nil
}

func (s *Store) putBlock(ctx context.Context, inodeID uint64, blockNo int64, data []byte, existed bool) error {
	if existed {
		_, err := s.gw.Exec(ctx,
			`UPDATE body SET data = $1 WHERE fsid = $2 AND inode_id = $3 AND block_no = $4`,
			data, s.fsid, int64(inodeID), blockNo,
		)
		return err
	}
	_, err := s.gw.Exec(ctx,
		`INSERT INTO body (fsid, inode_id, block_no, data) VALUES ($1, $2, $3, $4)`,
		s.fsid, int64(inodeID), blockNo, data,
	)
	return err
}

func (s *Store) deleteBlock(ctx context.Context, inodeID uint64, blockNo int64) error {
	_, err := s.gw.Exec(ctx,
		`DELETE FROM body WHERE fsid = $1 AND inode_id = $2 AND block_no = $3`,
		s.fsid, int64(inodeID), blockNo,
	)
	return err
}

// Write splices buf into inodeID's content at offset, per spec.md §4.4.
// Every touched block is keyed by (inode_id, block_no, fsid) — not the
// reference's WHERE clause that omits block_no and would rewrite every
// block to the same content.
func (s *Store) Write(ctx context.Context, inodeID uint64, offset int64, buf []byte) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}

	size, err := s.getSize(ctx, inodeID)
	if err != nil {
		return 0, fsops.MapStoreError(err, "Write", "", syscall.ENOENT)
	}

	oldLast := ceilDiv(size, s.blockSize) - 1
	newSize := offset + int64(len(buf))
	if size > newSize {
		newSize = size
	}
	newLast := ceilDiv(newSize, s.blockSize) - 1

	r := computeRange(offset, int64(len(buf)), s.blockSize)

	for b := r.FirstBlock; b <= r.LastBlock; b++ {
		segStart := offset
		if b*s.blockSize > segStart {
			segStart = b * s.blockSize
		}
		segEnd := offset + int64(len(buf))
		if (b+1)*s.blockSize < segEnd {
			segEnd = (b + 1) * s.blockSize
		}
		bufStart := segStart - offset
		bufEnd := segEnd - offset
		localStart := segStart - b*s.blockSize
		localEnd := segEnd - b*s.blockSize

		existed := b <= oldLast
		old, _, err := s.getBlock(ctx, inodeID, b)
		if err != nil {
			return 0, fsops.MapStoreError(err, "Write", "", syscall.ENOENT)
		}

		newContent := make([]byte, s.blockSize)
		copy(newContent, old)
		copy(newContent[localStart:localEnd], buf[bufStart:bufEnd])

		storedLen := s.blockSize
		if b == newLast {
			storedLen = newSize - b*s.blockSize
		}
		newContent = newContent[:storedLen]

		if err := s.putBlock(ctx, inodeID, b, newContent, existed); err != nil {
			return 0, fsops.MapStoreError(err, "Write", "", syscall.ENOSPC)
		}
	}

	if newSize > size {
		if err := s.setSize(ctx, inodeID, newSize); err != nil {
			return 0, fsops.MapStoreError(err, "Write", "", syscall.ENOENT)
		}
	}

	return len(buf), nil
}
