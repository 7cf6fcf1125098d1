package body

import (
	"github.com/marmos91/udavfs3/pkg/gateway"
)

// Store is the File-Body Engine, scoped to one filesystem instance. It
// shares the Inode & Directory Store's connection pool but owns its own
// SQL against the body table.
type Store struct {
	gw        *gateway.Gateway
	fsid      string
	blockSize int64
}

// New constructs a body Store bound to a bootstrapped filesystem header.
func New(gw *gateway.Gateway, fsid string, blockSize int64) *Store {
	return &Store{gw: gw, fsid: fsid, blockSize: blockSize}
}
