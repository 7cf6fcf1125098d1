//go:build integration

package body

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/marmos91/udavfs3/internal/pgtest"
	"github.com/marmos91/udavfs3/pkg/gateway"
	"github.com/marmos91/udavfs3/pkg/inodestore"
	"github.com/marmos91/udavfs3/pkg/schema"
)

var sharedContainer *pgtest.Container

func TestMain(m *testing.M) {
	ctx := context.Background()

	c, err := pgtest.Start(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "body: failed to start postgres container: %v\n", err)
		os.Exit(1)
	}
	sharedContainer = c

	code := m.Run()

	if err := c.Terminate(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "body: failed to terminate container: %v\n", err)
	}
	os.Exit(code)
}

const testBlockSize = 4096

func newTestFixture(t *testing.T, fsname string) (*Store, *inodestore.Store, uint64) {
	t.Helper()
	ctx := context.Background()

	gw, err := gateway.Open(ctx, gateway.Config{ConnString: sharedContainer.ConnString()})
	require.NoError(t, err)
	t.Cleanup(gw.Close)

	h, err := schema.Bootstrap(ctx, gw, fsname, testBlockSize, 16*1024*1024, 1000, 1000)
	require.NoError(t, err)

	ino := inodestore.New(gw, h.FSID, h.BlockSize, h.Capacity)
	_, handle, err := ino.Create(ctx, inodestore.RootInodeID, "f.bin", 0o644, 1000, 1000)
	require.NoError(t, err)

	return New(gw, h.FSID, h.BlockSize), ino, handle
}

func TestWriteWithinOneBlock(t *testing.T) {
	s, ino, handle := newTestFixture(t, "body-write-one-block")
	ctx := context.Background()

	n, err := s.Write(ctx, handle, 10, []byte("hello"))
	require.NoError(t, err)
	require.Equal(t, 5, n)

	attr, err := ino.GetAttr(ctx, handle)
	require.NoError(t, err)
	require.Equal(t, int64(15), attr.Size)

	got, err := s.Read(ctx, handle, attr.Size, 0, attr.Size)
	require.NoError(t, err)
	require.Equal(t, append(make([]byte, 10), []byte("hello")...), got)
}

func TestWriteCrossingBoundary(t *testing.T) {
	s, ino, handle := newTestFixture(t, "body-write-crossing")
	ctx := context.Background()

	n, err := s.Write(ctx, handle, testBlockSize-10, []byte("0123456789abcdef"))
	require.NoError(t, err)
	require.Equal(t, 16, n)

	attr, err := ino.GetAttr(ctx, handle)
	require.NoError(t, err)
	require.Equal(t, int64(testBlockSize+6), attr.Size)

	got, err := s.Read(ctx, handle, attr.Size, testBlockSize-10, 16)
	require.NoError(t, err)
	require.Equal(t, []byte("0123456789abcdef"), got)
}

func TestWriteSpanningThreeBlocks(t *testing.T) {
	s, ino, handle := newTestFixture(t, "body-write-three-blocks")
	ctx := context.Background()

	buf := bytes.Repeat([]byte{0xAB}, 3*testBlockSize)
	n, err := s.Write(ctx, handle, 100, buf)
	require.NoError(t, err)
	require.Equal(t, len(buf), n)

	attr, err := ino.GetAttr(ctx, handle)
	require.NoError(t, err)
	require.Equal(t, int64(100+len(buf)), attr.Size)
	require.GreaterOrEqual(t, attr.Blocks, int64(4))

	got, err := s.Read(ctx, handle, attr.Size, 100, int64(len(buf)))
	require.NoError(t, err)
	require.Equal(t, buf, got)
}

func TestGrowAcrossBlockBoundary(t *testing.T) {
	s, ino, handle := newTestFixture(t, "body-grow-boundary")
	ctx := context.Background()

	_, err := s.Write(ctx, handle, 4090, []byte("0123456789"))
	require.NoError(t, err)

	attr, err := ino.GetAttr(ctx, handle)
	require.NoError(t, err)
	require.Equal(t, int64(4100), attr.Size)

	got, err := s.Read(ctx, handle, attr.Size, 0, attr.Size)
	require.NoError(t, err)
	require.Len(t, got, 4100)
	require.Equal(t, make([]byte, 4090), got[:4090])
	require.Equal(t, []byte("0123456789"), got[4090:])
}

func TestGrowFitsInExistingTail(t *testing.T) {
	s, ino, handle := newTestFixture(t, "body-grow-fits-tail")
	ctx := context.Background()

	_, err := s.Write(ctx, handle, 0, []byte("hello"))
	require.NoError(t, err)

	require.NoError(t, s.Truncate(ctx, handle, 100))

	attr, err := ino.GetAttr(ctx, handle)
	require.NoError(t, err)
	require.Equal(t, int64(100), attr.Size)
	require.Equal(t, int64(1), attr.Blocks)

	got, err := s.Read(ctx, handle, attr.Size, 0, attr.Size)
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), got[:5])
	require.Equal(t, make([]byte, 95), got[5:])
}

func TestGrowRequiresNewBlocks(t *testing.T) {
	s, ino, handle := newTestFixture(t, "body-grow-new-blocks")
	ctx := context.Background()

	_, err := s.Write(ctx, handle, 0, []byte("hello"))
	require.NoError(t, err)

	require.NoError(t, s.Truncate(ctx, handle, 3*testBlockSize))

	attr, err := ino.GetAttr(ctx, handle)
	require.NoError(t, err)
	require.Equal(t, int64(3*testBlockSize), attr.Size)
	require.Equal(t, int64(3), attr.Blocks)

	got, err := s.Read(ctx, handle, attr.Size, 0, attr.Size)
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), got[:5])
	require.Equal(t, make([]byte, 3*testBlockSize-5), got[5:])
}

func TestShrinkWithinTail(t *testing.T) {
	s, ino, handle := newTestFixture(t, "body-shrink-within-tail")
	ctx := context.Background()

	_, err := s.Write(ctx, handle, 0, bytes.Repeat([]byte{0x11}, 200))
	require.NoError(t, err)

	require.NoError(t, s.Truncate(ctx, handle, 150))

	attr, err := ino.GetAttr(ctx, handle)
	require.NoError(t, err)
	require.Equal(t, int64(150), attr.Size)
	require.Equal(t, int64(1), attr.Blocks)

	got, err := s.Read(ctx, handle, attr.Size, 0, attr.Size)
	require.NoError(t, err)
	require.Equal(t, bytes.Repeat([]byte{0x11}, 150), got)
}

func TestShrinkRemovesExactlyTail(t *testing.T) {
	s, ino, handle := newTestFixture(t, "body-shrink-exact-tail")
	ctx := context.Background()

	_, err := s.Write(ctx, handle, 0, bytes.Repeat([]byte{0x22}, testBlockSize+200))
	require.NoError(t, err)

	require.NoError(t, s.Truncate(ctx, handle, testBlockSize))

	attr, err := ino.GetAttr(ctx, handle)
	require.NoError(t, err)
	require.Equal(t, int64(testBlockSize), attr.Size)
	require.Equal(t, int64(1), attr.Blocks)
}

func TestShrinkRemovesTailPlusFullBlocks(t *testing.T) {
	s, ino, handle := newTestFixture(t, "body-shrink-full-blocks")
	ctx := context.Background()

	_, err := s.Write(ctx, handle, 0, bytes.Repeat([]byte{0x33}, 3*testBlockSize))
	require.NoError(t, err)

	require.NoError(t, s.Truncate(ctx, handle, int64(1.5*testBlockSize)))

	attr, err := ino.GetAttr(ctx, handle)
	require.NoError(t, err)
	require.Equal(t, int64(2), attr.Blocks)
	require.Equal(t, int64(1.5*testBlockSize), attr.Size)

	got, err := s.Read(ctx, handle, attr.Size, 0, attr.Size)
	require.NoError(t, err)
	require.Equal(t, bytes.Repeat([]byte{0x33}, testBlockSize), got[:testBlockSize])
	require.Equal(t, bytes.Repeat([]byte{0x33}, testBlockSize/2), got[testBlockSize:])
}

func TestShrinkRemovesTailPlusFullBlocksPlusPartialTail(t *testing.T) {
	s, ino, handle := newTestFixture(t, "body-shrink-partial-remainder")
	ctx := context.Background()

	_, err := s.Write(ctx, handle, 0, bytes.Repeat([]byte{0x44}, 3*testBlockSize+200))
	require.NoError(t, err)

	newSize := int64(testBlockSize + 500)
	require.NoError(t, s.Truncate(ctx, handle, newSize))

	attr, err := ino.GetAttr(ctx, handle)
	require.NoError(t, err)
	require.Equal(t, newSize, attr.Size)
	require.Equal(t, int64(2), attr.Blocks)
}

func TestReadPastEOFReturnsEmpty(t *testing.T) {
	s, ino, handle := newTestFixture(t, "body-read-past-eof")
	ctx := context.Background()

	_, err := s.Write(ctx, handle, 0, []byte("hi"))
	require.NoError(t, err)

	attr, err := ino.GetAttr(ctx, handle)
	require.NoError(t, err)

	got, err := s.Read(ctx, handle, attr.Size, 100, 10)
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestReadStraddlingEOFClamps(t *testing.T) {
	s, ino, handle := newTestFixture(t, "body-read-straddle-eof")
	ctx := context.Background()

	_, err := s.Write(ctx, handle, 0, []byte("hello"))
	require.NoError(t, err)

	attr, err := ino.GetAttr(ctx, handle)
	require.NoError(t, err)

	got, err := s.Read(ctx, handle, attr.Size, 2, 1000)
	require.NoError(t, err)
	require.Equal(t, []byte("llo"), got)
}

func TestOpenAcrossUnlink(t *testing.T) {
	s, ino, handle := newTestFixture(t, "body-open-across-unlink")
	ctx := context.Background()

	require.NoError(t, ino.Unlink(ctx, inodestore.RootInodeID, "f.bin"))

	n, err := s.Write(ctx, handle, 0, []byte("still here"))
	require.NoError(t, err)
	require.Equal(t, 10, n)

	attr, err := ino.GetAttr(ctx, handle)
	require.NoError(t, err)
	got, err := s.Read(ctx, handle, attr.Size, 0, attr.Size)
	require.NoError(t, err)
	require.Equal(t, []byte("still here"), got)

	require.NoError(t, ino.Release(ctx, handle))

	_, err = ino.GetAttr(ctx, handle)
	require.Error(t, err)
}
