package tracking

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeRanges(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mil_ranges.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestModesUtilMilitaryRanges(t *testing.T) {
	path := writeRanges(t, `{"military": [["adf7c8", "afffff"], ["010070", "01008f"]]}`)

	u, err := NewModesUtil(path)
	require.NoError(t, err)

	assert.True(t, u.IsMilitary("ADF7C8"), "range start is inclusive")
	assert.True(t, u.IsMilitary("AE0001"))
	assert.True(t, u.IsMilitary("AFFFFF"), "range end is inclusive")
	assert.True(t, u.IsMilitary("010080"))

	assert.False(t, u.IsMilitary("ADF7C7"))
	assert.False(t, u.IsMilitary("B00000"))
	assert.False(t, u.IsMilitary("A1B2C3"))
	assert.False(t, u.IsMilitary("not-hex"))
}

func TestModesUtilRejectsBadRanges(t *testing.T) {
	_, err := NewModesUtil(writeRanges(t, `{"military": [["zzz", "afffff"]]}`))
	assert.Error(t, err)

	_, err = NewModesUtil(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestIsIcao24Addr(t *testing.T) {
	assert.True(t, IsIcao24Addr("a1b2c3"))
	assert.True(t, IsIcao24Addr("ADF7C8"))
	assert.False(t, IsIcao24Addr("a1b2c"))
	assert.False(t, IsIcao24Addr("a1b2c3d"))
	assert.False(t, IsIcao24Addr("ghijkl"))
}
