// Package bytesize parses the size suffixes spec.md §6 assigns to the
// `fssize` mount option: a plain integer followed by one of k/m/g/t,
// scaled by 1024, 1024², 1024³, 1024⁴ respectively.
package bytesize

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

const (
	KiB int64 = 1024
	MiB       = 1024 * KiB
	GiB       = 1024 * MiB
	TiB       = 1024 * GiB
)

var sizePattern = regexp.MustCompile(`(?i)^\s*(\d+)\s*([kmgt]?)\s*$`)

var unitMultipliers = map[string]int64{
	"":  1,
	"k": KiB,
	"m": MiB,
	"g": GiB,
	"t": TiB,
}

// Parse parses a size string such as "16g" or "4194304" into a byte count.
func Parse(s string) (int64, error) {
	if strings.TrimSpace(s) == "" {
		return 0, fmt.Errorf("bytesize: empty size string")
	}

	m := sizePattern.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("bytesize: invalid size %q", s)
	}

	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("bytesize: invalid number in %q: %w", s, err)
	}

	mult := unitMultipliers[strings.ToLower(m[2])]
	return n * mult, nil
}
