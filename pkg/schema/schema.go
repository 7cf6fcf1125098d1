// Package schema detects whether the backing tables for a filesystem
// instance exist, creates them if not, and seeds the header row plus root
// inode and root ".." directory entry on first mount.
package schema

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/marmos91/udavfs3/internal/logger"
	"github.com/marmos91/udavfs3/pkg/gateway"
)

// RootInodeID is the well-known inode id reserved for the root directory.
const RootInodeID uint64 = 1

// minFSSize is the minimum allowed declared capacity, matching the
// mount-option constraint (internal/mountopts) but enforced again here so
// any caller of Bootstrap gets the same guarantee.
const minFSSize int64 = 4 * 1024 * 1024

// modeDirDefault is the root directory's mode: directory bit set, rwx for
// owner, rx for group and other (0755).
const modeDirDefault uint32 = 0040755

// FSID returns the 40-character hex SHA-1 digest of name's UTF-8 bytes,
// scoping every row in the schema to one logical filesystem.
func FSID(name string) string {
	sum := sha1.Sum([]byte(name))
	return hex.EncodeToString(sum[:])
}

// Header is the filesystem-header row: declared capacity and block size,
// fixed at creation and superseding any later command-line values.
type Header struct {
	FSID      string
	BlockSize int64
	Capacity  int64
}

// Bootstrap creates the backing tables if they do not exist yet, then
// probes for the header row for fsid; if absent it seeds the header, root
// inode, and root ".." entry. If present, the stored blocksize/capacity are returned and
// requestedBlockSize/requestedCapacity are ignored, per spec.md §4.2 step 3.
func Bootstrap(ctx context.Context, gw *gateway.Gateway, fsname string, requestedBlockSize, requestedCapacity int64, uid, gid uint32) (*Header, error) {
	fsid := FSID(fsname)

	if err := createTablesIfNotExist(ctx, gw); err != nil {
		return nil, fmt.Errorf("schema: create tables: %w", err)
	}

	existing, err := probeHeader(ctx, gw, fsid)
	if err == nil {
		logger.Info("filesystem already bootstrapped, using stored parameters",
			logger.FSID(fsid), "blocksize", existing.BlockSize, "capacity", existing.Capacity)
		return existing, nil
	}
	if err != gateway.NoSuchRow {
		return nil, fmt.Errorf("schema: probe header: %w", err)
	}

	if requestedCapacity < minFSSize {
		return nil, fmt.Errorf("schema: requested capacity %d is below the %d byte minimum", requestedCapacity, minFSSize)
	}

	header := &Header{FSID: fsid, BlockSize: requestedBlockSize, Capacity: requestedCapacity}
	if err := seedFilesystem(ctx, gw, header, uid, gid); err != nil {
		return nil, fmt.Errorf("schema: seed filesystem: %w", err)
	}

	logger.Info("bootstrapped new filesystem",
		logger.FSID(fsid), "blocksize", header.BlockSize, "capacity", header.Capacity)
	return header, nil
}

func probeHeader(ctx context.Context, gw *gateway.Gateway, fsid string) (*Header, error) {
	h := &Header{FSID: fsid}
	err := gw.OneRow(ctx,
		`SELECT blocksize, capacity FROM fsinfo WHERE fsid = $1`,
		[]any{fsid},
		func(row gateway.Row) error {
			return row.Scan(&h.BlockSize, &h.Capacity)
		},
	)
	if err != nil {
		return nil, err
	}
	return h, nil
}

func createTablesIfNotExist(ctx context.Context, gw *gateway.Gateway) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS fsinfo (
			fsid           text PRIMARY KEY,
			blocksize      bigint NOT NULL,
			capacity       bigint NOT NULL,
			next_inode_id  bigint NOT NULL DEFAULT 2
		)`,
		`CREATE TABLE IF NOT EXISTS inodes (
			fsid           text NOT NULL REFERENCES fsinfo(fsid) ON DELETE CASCADE,
			inode_id       bigint NOT NULL,
			mode           integer NOT NULL,
			uid            integer NOT NULL,
			gid            integer NOT NULL,
			size           bigint NOT NULL DEFAULT 0,
			rdev           bigint NOT NULL DEFAULT 0,
			symlink_target bytea,
			atime_ns       bigint NOT NULL,
			mtime_ns       bigint NOT NULL,
			ctime_ns       bigint NOT NULL,
			PRIMARY KEY (fsid, inode_id)
		)`,
		`CREATE TABLE IF NOT EXISTS contents (
			rowid        bigserial,
			fsid         text NOT NULL,
			parent_inode bigint NOT NULL,
			name         text NOT NULL,
			inode_id     bigint NOT NULL,
			PRIMARY KEY (rowid),
			UNIQUE (fsid, parent_inode, name),
			FOREIGN KEY (fsid, inode_id) REFERENCES inodes(fsid, inode_id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS body (
			fsid     text NOT NULL,
			inode_id bigint NOT NULL,
			block_no bigint NOT NULL,
			data     bytea NOT NULL,
			PRIMARY KEY (fsid, inode_id, block_no),
			FOREIGN KEY (fsid, inode_id) REFERENCES inodes(fsid, inode_id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS contents_parent_idx ON contents (fsid, parent_inode, rowid)`,
	}
	for _, stmt := range statements {
		if _, err := gw.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func seedFilesystem(ctx context.Context, gw *gateway.Gateway, h *Header, uid, gid uint32) error {
	if _, err := gw.Exec(ctx,
		`INSERT INTO fsinfo (fsid, blocksize, capacity) VALUES ($1, $2, $3)
		 ON CONFLICT (fsid) DO NOTHING`,
		h.FSID, h.BlockSize, h.Capacity,
	); err != nil {
		return err
	}

	now := time.Now().UnixNano()
	if _, err := gw.Exec(ctx,
		`INSERT INTO inodes (fsid, inode_id, mode, uid, gid, size, rdev, symlink_target, atime_ns, mtime_ns, ctime_ns)
		 VALUES ($1, $2, $3, $4, $5, 0, 0, NULL, $6, $6, $6)
		 ON CONFLICT (fsid, inode_id) DO NOTHING`,
		h.FSID, RootInodeID, int32(modeDirDefault), int32(uid), int32(gid), now,
	); err != nil {
		return err
	}

	if _, err := gw.Exec(ctx,
		`INSERT INTO contents (fsid, parent_inode, name, inode_id)
		 VALUES ($1, $2, '..', $2)
		 ON CONFLICT (fsid, parent_inode, name) DO NOTHING`,
		h.FSID, RootInodeID,
	); err != nil {
		return err
	}

	return nil
}
