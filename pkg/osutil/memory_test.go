package osutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCgroupMemoryLimit(t *testing.T) {
	for _, tc := range []struct {
		raw      string
		expected uint64
		ok       bool
	}{
		{"536870912\n", 536870912, true},
		{"max\n", 0, false},
		{"9223372036854771712\n", 0, false},
		{"0", 0, false},
		{"garbage", 0, false},
	} {
		actual, ok := parseCgroupMemoryLimit(tc.raw)
		assert.Equal(t, tc.ok, ok, tc.raw)
		assert.Equal(t, tc.expected, actual, tc.raw)
	}
}

func TestReadCgroupMemoryLimit(t *testing.T) {
	_, ok := readCgroupMemoryLimit(filepath.Join(t.TempDir(), "missing"))
	assert.False(t, ok)

	location := filepath.Join(t.TempDir(), "memory.max")
	require.NoError(t, os.WriteFile(location, []byte("1073741824\n"), 0o600))

	limit, ok := readCgroupMemoryLimit(location)
	require.True(t, ok)
	assert.EqualValues(t, 1073741824, limit)
}

func TestGetTotalMemory(t *testing.T) {
	assert.NotZero(t, GetTotalMemory())
}
