package body

import "testing"

func TestCeilDiv(t *testing.T) {
	cases := []struct{ x, y, want int64 }{
		{0, 4096, 0},
		{1, 4096, 1},
		{4096, 4096, 1},
		{4097, 4096, 2},
		{8192, 4096, 2},
	}
	for _, c := range cases {
		if got := ceilDiv(c.x, c.y); got != c.want {
			t.Errorf("ceilDiv(%d, %d) = %d, want %d", c.x, c.y, got, c.want)
		}
	}
}

func TestComputeRangeWithinOneBlock(t *testing.T) {
	r := computeRange(10, 20, 4096)
	if r.FirstBlock != 0 || r.LastBlock != 0 {
		t.Fatalf("expected single block, got first=%d last=%d", r.FirstBlock, r.LastBlock)
	}
	if r.StartIdx != 10 || r.EndIdx != 30 {
		t.Fatalf("expected start=10 end=30, got start=%d end=%d", r.StartIdx, r.EndIdx)
	}
	if r.Blocks != 1 {
		t.Fatalf("expected 1 block, got %d", r.Blocks)
	}
}

func TestComputeRangeCrossingBoundary(t *testing.T) {
	r := computeRange(4090, 10, 4096)
	if r.FirstBlock != 0 || r.LastBlock != 1 {
		t.Fatalf("expected first=0 last=1, got first=%d last=%d", r.FirstBlock, r.LastBlock)
	}
	if r.StartIdx != 4090 {
		t.Fatalf("expected start=4090, got %d", r.StartIdx)
	}
	if r.EndIdx != 4 {
		t.Fatalf("expected end=4, got %d", r.EndIdx)
	}
	if r.Blocks != 2 {
		t.Fatalf("expected 2 blocks, got %d", r.Blocks)
	}
}

func TestComputeRangeExactBlockAligned(t *testing.T) {
	r := computeRange(4096, 4096, 4096)
	if r.FirstBlock != 1 || r.LastBlock != 1 {
		t.Fatalf("expected first=1 last=1, got first=%d last=%d", r.FirstBlock, r.LastBlock)
	}
	if r.EndIdx != 4096 {
		t.Fatalf("expected end=4096 (wraps from 0), got %d", r.EndIdx)
	}
}

func TestComputeRangeSpansManyBlocks(t *testing.T) {
	r := computeRange(100, 3*4096, 4096)
	if r.Blocks != 4 {
		t.Fatalf("expected 4 blocks, got %d", r.Blocks)
	}
}
