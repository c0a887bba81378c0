package util

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanText(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
		want string
	}{
		{"plain", []byte("great movie"), "great movie"},
		{"bom", append([]byte{0xEF, 0xBB, 0xBF}, []byte("hello")...), "hello"},
		{"smart quotes", []byte("it’s “fine”"), "it's \"fine\""},
		{"nbsp", []byte("a b"), "a b"},
		{"invalid utf8", []byte{'o', 'k', 0xff}, "ok�"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CleanText(tt.in, "test")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIsLikelyBinary(t *testing.T) {
	dir := t.TempDir()
	text := filepath.Join(dir, "a.txt")
	bin := filepath.Join(dir, "a.bin")
	require.NoError(t, os.WriteFile(text, []byte("just words"), 0o644))
	require.NoError(t, os.WriteFile(bin, []byte{0x01, 0x00, 0x02}, 0o644))

	isBin, err := IsLikelyBinary(text)
	require.NoError(t, err)
	assert.False(t, isBin)

	isBin, err = IsLikelyBinary(bin)
	require.NoError(t, err)
	assert.True(t, isBin)

	_, err = IsLikelyBinary(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}
