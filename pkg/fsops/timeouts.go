package fsops

import "time"

// DefaultEntryTimeout and DefaultAttrTimeout are the advisory kernel-bridge
// cache hints for directory entries and inode attributes (spec.md §4.3).
const (
	DefaultEntryTimeout = 300 * time.Second
	DefaultAttrTimeout  = 300 * time.Second
)
