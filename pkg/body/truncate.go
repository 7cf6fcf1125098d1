package body

import (
	"context"
	"syscall"

	"github.com/marmos91/udavfs3/pkg/fsops"
)

// Truncate resizes inodeID's content to newSize, per spec.md §4.4's
// grow/shrink algorithms, and updates the inode's recorded size.
func (s *Store) Truncate(ctx context.Context, inodeID uint64, newSize int64) error {
	size, err := s.getSize(ctx, inodeID)
	if err != nil {
		return fsops.MapStoreError(err, "Truncate", "", syscall.ENOENT)
	}

	switch {
	case newSize == size:
		return nil
	case newSize > size:
		return s.grow(ctx, inodeID, size, newSize)
	default:
		return s.shrink(ctx, inodeID, size, newSize)
	}
}

// grow implements the two growth paths: a tail that fits inside the
// existing last block needs no new storage (the grown range reads back as
// zero via the sparse-read rule); otherwise zero-filled bytes are written
// across however many new blocks the growth spans.
func (s *Store) grow(ctx context.Context, inodeID uint64, size, newSize int64) error {
	endLen := size % s.blockSize
	d := newSize - size

	if endLen > 0 && d <= s.blockSize-endLen {
		return fsops.MapStoreError(s.setSize(ctx, inodeID, newSize), "Truncate", "", syscall.ENOENT)
	}

	zeros := make([]byte, d)
	_, err := s.Write(ctx, inodeID, size, zeros)
	return err
}

// shrink implements the four shrink cases from spec.md §4.4, keyed on how
// the discarded range d relates to the current last block's fill length
// endLen.
func (s *Store) shrink(ctx context.Context, inodeID uint64, size, newSize int64) error {
	endLen := size % s.blockSize
	blocks := ceilDiv(size, s.blockSize)
	lastBlock := blocks - 1
	d := size - newSize

	switch {
	case d < endLen:
		if err := s.rewriteBlockPrefix(ctx, inodeID, lastBlock, endLen-d); err != nil {
			return fsops.MapStoreError(err, "Truncate", "", syscall.ENOENT)
		}
	case d == endLen && endLen > 0:
		if err := s.deleteBlock(ctx, inodeID, lastBlock); err != nil {
			return fsops.MapStoreError(err, "Truncate", "", syscall.ENOENT)
		}
	default:
		remaining := d
		cursor := lastBlock
		if endLen > 0 {
			if err := s.deleteBlock(ctx, inodeID, cursor); err != nil {
				return fsops.MapStoreError(err, "Truncate", "", syscall.ENOENT)
			}
			remaining -= endLen
			cursor--
		}

		fullBlocksToDelete := remaining / s.blockSize
		for i := int64(0); i < fullBlocksToDelete; i++ {
			if err := s.deleteBlock(ctx, inodeID, cursor); err != nil {
				return fsops.MapStoreError(err, "Truncate", "", syscall.ENOENT)
			}
			cursor--
		}
		remaining -= fullBlocksToDelete * s.blockSize

		if remaining > 0 {
			if err := s.rewriteBlockPrefix(ctx, inodeID, cursor, s.blockSize-remaining); err != nil {
				return fsops.MapStoreError(err, "Truncate", "", syscall.ENOENT)
			}
		}
	}

	return fsops.MapStoreError(s.setSize(ctx, inodeID, newSize), "Truncate", "", syscall.ENOENT)
}

// rewriteBlockPrefix trims blockNo's stored content down to its first
// keepLen bytes; the discarded tail reads back as zero via the
// sparse-read rule rather than being explicitly zero-filled.
func (s *Store) rewriteBlockPrefix(ctx context.Context, inodeID uint64, blockNo, keepLen int64) error {
	old, existed, err := s.getBlock(ctx, inodeID, blockNo)
	if err != nil {
		return err
	}
	return s.putBlock(ctx, inodeID, blockNo, old[:keepLen], existed)
}
