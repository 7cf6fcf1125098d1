//go:build integration

package schema

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/marmos91/udavfs3/internal/pgtest"
	"github.com/marmos91/udavfs3/pkg/gateway"
)

var sharedContainer *pgtest.Container

func TestMain(m *testing.M) {
	ctx := context.Background()

	c, err := pgtest.Start(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "schema: failed to start postgres container: %v\n", err)
		os.Exit(1)
	}
	sharedContainer = c

	code := m.Run()

	if err := c.Terminate(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "schema: failed to terminate container: %v\n", err)
	}
	os.Exit(code)
}

func openTestGateway(t *testing.T) *gateway.Gateway {
	t.Helper()
	gw, err := gateway.Open(context.Background(), gateway.Config{ConnString: sharedContainer.ConnString()})
	require.NoError(t, err)
	t.Cleanup(gw.Close)
	return gw
}

func TestBootstrapFirstMountSeedsRoot(t *testing.T) {
	gw := openTestGateway(t)
	ctx := context.Background()

	h, err := Bootstrap(ctx, gw, "fresh-fs-1", 4096, 16*1024*1024, 1000, 1000)
	require.NoError(t, err)
	require.Equal(t, int64(4096), h.BlockSize)
	require.Equal(t, int64(16*1024*1024), h.Capacity)

	var mode int32
	err = gw.OneRow(ctx, `SELECT mode FROM inodes WHERE fsid = $1 AND inode_id = $2`,
		[]any{h.FSID, RootInodeID}, func(row gateway.Row) error { return row.Scan(&mode) })
	require.NoError(t, err)
	require.Equal(t, int32(modeDirDefault), mode)

	var selfChild int64
	err = gw.OneRow(ctx, `SELECT inode_id FROM contents WHERE fsid = $1 AND parent_inode = $2 AND name = '..'`,
		[]any{h.FSID, RootInodeID}, func(row gateway.Row) error { return row.Scan(&selfChild) })
	require.NoError(t, err)
	require.Equal(t, int64(RootInodeID), selfChild)
}

func TestBootstrapSecondMountUsesStoredValues(t *testing.T) {
	gw := openTestGateway(t)
	ctx := context.Background()

	_, err := Bootstrap(ctx, gw, "fresh-fs-2", 4096, 32*1024*1024, 1000, 1000)
	require.NoError(t, err)

	h2, err := Bootstrap(ctx, gw, "fresh-fs-2", 8192, 9999, 1000, 1000)
	require.NoError(t, err)
	require.Equal(t, int64(4096), h2.BlockSize, "stored blocksize must win over the second mount's request")
	require.Equal(t, int64(32*1024*1024), h2.Capacity, "stored capacity must win over the second mount's request")
}

func TestBootstrapRejectsTooSmallCapacity(t *testing.T) {
	gw := openTestGateway(t)
	ctx := context.Background()

	_, err := Bootstrap(ctx, gw, "fresh-fs-3", 4096, 1024, 1000, 1000)
	require.Error(t, err)
}
