//go:build !windows

package daemon

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunningFalseForMissingFile(t *testing.T) {
	_, alive := Running(filepath.Join(t.TempDir(), "nonexistent.pid"))
	assert.False(t, alive)
}

func TestRunningTrueForSelf(t *testing.T) {
	pidPath := filepath.Join(t.TempDir(), "self.pid")
	require.NoError(t, os.WriteFile(pidPath, []byte(fmt.Sprintf("%d", os.Getpid())), 0644))

	pid, alive := Running(pidPath)
	assert.True(t, alive)
	assert.Equal(t, os.Getpid(), pid)
}
