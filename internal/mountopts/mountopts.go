// Package mountopts parses the `-o key=value,key` mount-option string
// spec.md §6 defines into a typed Options value.
package mountopts

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/marmos91/udavfs3/internal/bytesize"
)

// MinFSSize is the smallest accepted fssize, per spec.md §6.
const MinFSSize = 4 * bytesize.MiB

// Options is the parsed, validated mount-option set.
type Options struct {
	FSName      string
	BlockSize   int64
	FSSize      int64
	Passthrough map[string]string
}

// Parse splits one or more comma-separated `-o` option strings into an
// Options value. fsname is mandatory; blocksize and fssize are mandatory
// on a first mount but may be absent on a subsequent one (schema.Bootstrap
// then returns the stored blocksize and capacity, which override whatever
// was parsed here).
func Parse(raw []string) (*Options, error) {
	opts := &Options{Passthrough: map[string]string{}}
	var haveBlockSize, haveFSSize bool

	for _, group := range raw {
		for _, item := range strings.Split(group, ",") {
			item = strings.TrimSpace(item)
			if item == "" {
				continue
			}
			key, value, hasValue := strings.Cut(item, "=")

			switch key {
			case "fsname":
				if !hasValue || value == "" {
					return nil, fmt.Errorf("mountopts: fsname requires a value")
				}
				opts.FSName = value
			case "blocksize":
				if !hasValue {
					return nil, fmt.Errorf("mountopts: blocksize requires a value")
				}
				n, err := strconv.ParseInt(value, 10, 64)
				if err != nil || n <= 0 {
					return nil, fmt.Errorf("mountopts: invalid blocksize %q", value)
				}
				opts.BlockSize = n
				haveBlockSize = true
			case "fssize":
				if !hasValue {
					return nil, fmt.Errorf("mountopts: fssize requires a value")
				}
				n, err := bytesize.Parse(value)
				if err != nil {
					return nil, fmt.Errorf("mountopts: invalid fssize %q: %w", value, err)
				}
				opts.FSSize = n
				haveFSSize = true
			default:
				if hasValue {
					opts.Passthrough[key] = value
				} else {
					opts.Passthrough[key] = ""
				}
			}
		}
	}

	if opts.FSName == "" {
		return nil, fmt.Errorf("mountopts: fsname is mandatory")
	}

	if haveFSSize {
		if opts.FSSize < MinFSSize {
			return nil, fmt.Errorf("mountopts: fssize must be at least %d bytes (4 MiB)", MinFSSize)
		}
		if haveBlockSize {
			opts.FSSize = roundUp(opts.FSSize, opts.BlockSize)
		}
	}

	return opts, nil
}

// roundUp rounds n up to the nearest multiple of blockSize.
func roundUp(n, blockSize int64) int64 {
	return ((n + blockSize - 1) / blockSize) * blockSize
}

// BridgeOptions returns the option string to hand the kernel bridge:
// the mandatory parameters spec.md §6 names, plus whatever pass-through
// options were not recognized as fsname/blocksize/fssize.
func (o *Options) BridgeOptions() []string {
	opts := []string{"fsname=udavfs3", "nonempty", "default_permissions", "allow_other"}
	for k, v := range o.Passthrough {
		if v == "" {
			opts = append(opts, k)
		} else {
			opts = append(opts, k+"="+v)
		}
	}
	return opts
}
