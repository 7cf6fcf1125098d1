package fuseadapter

import (
	"fmt"
	"os"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/marmos91/udavfs3/internal/mountopts"
	"github.com/marmos91/udavfs3/pkg/fsops"
)

// Mount creates the mountpoint directory if missing and starts a go-fuse
// server over fsys, passing through the kernel bridge options
// spec.md §6 and the Options value mandate. It returns the running
// *fuse.Server; callers drive its lifecycle with WaitMount/Serve/Wait/
// Unmount.
func Mount(fsys *FS, mountpoint string, opts *mountopts.Options) (*fuse.Server, error) {
	if _, err := os.Stat(mountpoint); os.IsNotExist(err) {
		if err := os.MkdirAll(mountpoint, 0755); err != nil {
			return nil, fmt.Errorf("fuseadapter: create mountpoint: %w", err)
		}
	}

	attrTimeout := fsops.DefaultAttrTimeout
	entryTimeout := fsops.DefaultEntryTimeout
	nodeFS := fs.NewNodeFS(fsys.Root(), &fs.Options{
		AttrTimeout:  &attrTimeout,
		EntryTimeout: &entryTimeout,
	})

	server, err := fuse.NewServer(nodeFS, mountpoint, &fuse.MountOptions{
		Options:              opts.BridgeOptions(),
		MaxBackground:        512,
		DisableXAttrs:        true,
		EnableSymlinkCaching: true,
		SyncRead:             false,
		RememberInodes:       true,
		MaxReadAhead:         1 << 17,
	})
	if err != nil {
		return nil, fmt.Errorf("fuseadapter: create server: %w", err)
	}
	return server, nil
}
