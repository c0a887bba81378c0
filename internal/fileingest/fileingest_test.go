package fileingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func TestDiscoverReviewFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "train", "pos", "1_9.txt"), "loved it")
	writeFile(t, filepath.Join(root, "train", "neg", "2_1.txt"), "hated it")
	writeFile(t, filepath.Join(root, "train", "unsup", "3_0.txt"), "meh")
	writeFile(t, filepath.Join(root, "train", "pos", "notes.md"), "ignored")

	files, err := DiscoverReviewFiles(context.Background(), root, false)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "2_1.txt", files[0].Name)
	assert.Equal(t, 0, files[0].Label)
	assert.Equal(t, "1_9.txt", files[1].Name)
	assert.Equal(t, 1, files[1].Label)

	all, err := DiscoverReviewFiles(context.Background(), root, true)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, -1, all[2].Label)
}

func TestDiscoverReviewFilesCancelled(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "pos", "a.txt"), "x")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := DiscoverReviewFiles(ctx, root, false)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExtractFileMeta(t *testing.T) {
	path := filepath.Join(t.TempDir(), "r.txt")
	writeFile(t, path, "12345")
	meta, err := ExtractFileMeta(path)
	require.NoError(t, err)
	assert.Equal(t, int64(5), meta.Size)
	assert.Equal(t, "r.txt", meta.Name)

	_, err = ExtractFileMeta(path + ".missing")
	assert.Error(t, err)
}
