package inodestore

import "sync"

// OpenTable is the process-local inode_id -> open-count map (spec.md §3
// "In-memory state", §5 "Shared resources"). It does not persist and is
// rebuilt empty on every mount. All access is serialized by a mutex since
// the kernel bridge may deliver concurrent upcalls.
type OpenTable struct {
	mu     sync.Mutex
	counts map[uint64]int
}

// NewOpenTable returns an empty table.
func NewOpenTable() *OpenTable {
	return &OpenTable{counts: make(map[uint64]int)}
}

// Open increments the open count for inodeID and returns the new count.
func (t *OpenTable) Open(inodeID uint64) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.counts[inodeID]++
	return t.counts[inodeID]
}

// Close decrements the open count for inodeID and returns the new count.
// Once the count reaches zero the entry is removed from the map.
func (t *OpenTable) Close(inodeID uint64) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	c, ok := t.counts[inodeID]
	if !ok {
		return 0
	}
	c--
	if c <= 0 {
		delete(t.counts, inodeID)
		return 0
	}
	t.counts[inodeID] = c
	return c
}

// IsOpen reports whether inodeID currently has any outstanding handles.
func (t *OpenTable) IsOpen(inodeID uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.counts[inodeID] > 0
}
