package body

import (
	"context"
	"syscall"

	"github.com/marmos91/udavfs3/pkg/fsops"
	"github.com/marmos91/udavfs3/pkg/gateway"
)

// Read returns up to length bytes of inodeID's content starting at offset,
// clamped to the inode's recorded size. Reads past EOF return empty;
// reads straddling EOF are clamped to what remains.
func (s *Store) Read(ctx context.Context, inodeID uint64, size, offset, length int64) ([]byte, error) {
	if offset >= size || length <= 0 {
		return []byte{}, nil
	}
	if offset+length > size {
		length = size - offset
	}

	r := computeRange(offset, length, s.blockSize)

	blocks := make(map[int64][]byte, r.Blocks)
	err := s.gw.AllRows(ctx,
		`SELECT block_no, data FROM body
		 WHERE fsid = $1 AND inode_id = $2 AND block_no BETWEEN $3 AND $4
		 ORDER BY block_no ASC`,
		[]any{s.fsid, int64(inodeID), r.FirstBlock, r.LastBlock},
		func(rows gateway.Rows) error {
			var blockNo int64
			var data []byte
			if err := rows.Scan(&blockNo, &data); err != nil {
				return err
			}
			blocks[blockNo] = data
			return nil
		},
	)
	if err != nil {
		return nil, fsops.MapStoreError(err, "Read", "", syscall.ENOENT)
	}

	out := make([]byte, 0, length)
	for b := r.FirstBlock; b <= r.LastBlock; b++ {
		data := blocks[b]
		lo := int64(0)
		hi := s.blockSize
		if b == r.FirstBlock {
			lo = r.StartIdx
		}
		if b == r.LastBlock {
			hi = r.EndIdx
		}
		out = append(out, sliceZeroPad(data, lo, hi)...)
	}
	return out, nil
}

// sliceZeroPad returns data[lo:hi] as if data were right-padded with zero
// bytes out to hi: a grown last block may carry fewer stored bytes than
// its declared tail length (spec.md §4.4's grow-in-place path writes no
// zero-fill), so bytes beyond what's stored read back as zero.
func sliceZeroPad(data []byte, lo, hi int64) []byte {
	out := make([]byte, hi-lo)
	n := int64(len(data))
	for i := lo; i < hi && i < n; i++ {
		out[i-lo] = data[i]
	}
	return out
}
