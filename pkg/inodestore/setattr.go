package inodestore

import (
	"context"
	"fmt"
	"strings"
	"syscall"
	"time"

	"github.com/marmos91/udavfs3/pkg/fsops"
	"github.com/marmos91/udavfs3/pkg/gateway"
)

// SetAttr applies the flagged fields in req to inodeID, always bumping
// ctime. Size changes are not handled here: the caller truncates the body
// first (pkg/body.Truncate updates the size column itself) and omits Size
// from req in that case.
func (s *Store) SetAttr(ctx context.Context, inodeID uint64, req SetAttrRequest) (*Inode, error) {
	var sets []string
	var args []any

	add := func(col string, val any) {
		args = append(args, val)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	if req.Mode != nil {
		add("mode", int32(*req.Mode))
	}
	if req.UID != nil {
		add("uid", int32(*req.UID))
	}
	if req.GID != nil {
		add("gid", int32(*req.GID))
	}
	if req.AtimeNs != nil {
		add("atime_ns", *req.AtimeNs)
	}
	if req.MtimeNs != nil {
		add("mtime_ns", *req.MtimeNs)
	}
	if req.Rdev != nil {
		add("rdev", int64(*req.Rdev))
	}

	ctime := time.Now().UnixNano()
	if req.CtimeNs != nil {
		ctime = *req.CtimeNs
	}
	add("ctime_ns", ctime)

	args = append(args, s.fsid, int64(inodeID))
	query := fmt.Sprintf(
		"UPDATE inodes SET %s WHERE fsid = $%d AND inode_id = $%d",
		strings.Join(sets, ", "), len(args)-1, len(args),
	)

	if _, err := s.gw.Exec(ctx, query, args...); err != nil {
		return nil, fsops.MapStoreError(err, "SetAttr", "", syscall.ENOENT)
	}
	return s.GetAttr(ctx, inodeID)
}

// StatFS reports aggregate filesystem usage for the statfs upcall.
func (s *Store) StatFS(ctx context.Context) (*StatFS, error) {
	var usedBytes int64
	var fileCount int64

	err := s.gw.OneRow(ctx,
		`SELECT COALESCE(SUM(size), 0), COUNT(*) FROM inodes WHERE fsid = $1`,
		[]any{s.fsid},
		func(row gateway.Row) error { return row.Scan(&usedBytes, &fileCount) },
	)
	if err != nil {
		return nil, fsops.MapStoreError(err, "StatFS", "", syscall.ENOENT)
	}

	totalBlocks := s.capacity / s.blockSize
	usedBlocks := (usedBytes + s.blockSize - 1) / s.blockSize
	freeBlocks := totalBlocks - usedBlocks
	if freeBlocks < 0 {
		freeBlocks = 0
	}

	const minFreeFiles = 100
	freeFiles := fileCount
	if freeFiles < minFreeFiles {
		freeFiles = minFreeFiles
	}

	return &StatFS{
		BlockSize:   s.blockSize,
		FragSize:    s.blockSize,
		TotalBlocks: totalBlocks,
		FreeBlocks:  freeBlocks,
		Available:   freeBlocks,
		Files:       fileCount,
		FreeFiles:   freeFiles,
	}, nil
}
