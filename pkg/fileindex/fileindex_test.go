package fileindex

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path string, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func paths(idx *Index) []string {
	var out []string
	for rec := range idx.All() {
		out = append(out, rec.Path)
	}
	return out
}

func TestScan_SortedRecords(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "b.txt"), "bb")
	writeFile(t, filepath.Join(root, "a.txt"), "a")
	writeFile(t, filepath.Join(root, "sub", "c.txt"), "ccc")

	idx, err := Scan(context.Background(), []string{root}, Options{})
	require.NoError(t, err)

	assert.Equal(t, []string{
		filepath.Join(root, "a.txt"),
		filepath.Join(root, "b.txt"),
		filepath.Join(root, "sub", "c.txt"),
	}, paths(idx))

	recs := idx.Records()
	assert.Equal(t, int64(1), recs[0].Size)
	assert.Equal(t, "a.txt", recs[0].Name)
	assert.False(t, recs[0].ID.IsZero())
	assert.Equal(t, uint64(1), recs[0].Links)

	stats := idx.Stats()
	assert.Equal(t, 3, stats.Files)
	assert.Equal(t, uint64(6), stats.Bytes)
	assert.Empty(t, idx.Errors())
}

func TestScan_SingleFileRoot(t *testing.T) {
	root := t.TempDir()
	file := filepath.Join(root, "only.bin")
	writeFile(t, file, "xyz")

	idx, err := Scan(context.Background(), []string{file}, Options{})
	require.NoError(t, err)
	require.Equal(t, 1, idx.Len())
	assert.Equal(t, []string{file}, paths(idx))
}

func TestScan_MissingRoot(t *testing.T) {
	_, err := Scan(context.Background(), []string{filepath.Join(t.TempDir(), "nope")}, Options{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRootNotFound))
}

func TestScan_MultipleRootsKeepArgumentOrder(t *testing.T) {
	first := t.TempDir()
	second := t.TempDir()
	writeFile(t, filepath.Join(first, "z.txt"), "z")
	writeFile(t, filepath.Join(second, "a.txt"), "a")

	idx, err := Scan(context.Background(), []string{first, second}, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(first, "z.txt"),
		filepath.Join(second, "a.txt"),
	}, paths(idx))
}

func TestScan_Symlinks(t *testing.T) {
	outside := t.TempDir()
	writeFile(t, filepath.Join(outside, "target.txt"), "target")

	root := t.TempDir()
	writeFile(t, filepath.Join(root, "real.txt"), "real")
	require.NoError(t, os.Symlink(filepath.Join(outside, "target.txt"), filepath.Join(root, "link.txt")))
	require.NoError(t, os.Symlink(filepath.Join(root, "real.txt"), filepath.Join(root, "alias.txt")))

	t.Run("ignored_by_default", func(t *testing.T) {
		idx, err := Scan(context.Background(), []string{root}, Options{})
		require.NoError(t, err)
		assert.Equal(t, []string{filepath.Join(root, "real.txt")}, paths(idx))
		assert.Equal(t, 2, idx.Stats().SkippedSymlinks)
	})

	t.Run("followed", func(t *testing.T) {
		idx, err := Scan(context.Background(), []string{root}, Options{FollowSymlinks: true})
		require.NoError(t, err)

		got := paths(idx)
		assert.Contains(t, got, filepath.Join(root, "link.txt"))
		assert.Contains(t, got, filepath.Join(root, "real.txt"))
		// alias.txt points at real.txt which is already indexed
		assert.NotContains(t, got, filepath.Join(root, "alias.txt"))
		assert.Equal(t, 1, idx.Stats().Duplicates)

		for rec := range idx.All() {
			if rec.Name == "link.txt" {
				assert.True(t, rec.IsSymlink)
				assert.Equal(t, int64(len("target")), rec.Size)
			}
		}
	})
}

func TestScan_SymlinkCycleTerminates(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a", "file.txt"), "data")
	require.NoError(t, os.Symlink(root, filepath.Join(root, "a", "loop")))

	idx, err := Scan(context.Background(), []string{root}, Options{FollowSymlinks: true})
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(root, "a", "file.txt")}, paths(idx))
}

func TestScan_IgnoreHardlinks(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "one.txt"), "shared")
	writeFile(t, filepath.Join(root, "solo.txt"), "solo")
	require.NoError(t, os.Link(filepath.Join(root, "one.txt"), filepath.Join(root, "two.txt")))

	idx, err := Scan(context.Background(), []string{root}, Options{IgnoreHardlinks: true})
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(root, "solo.txt")}, paths(idx))
	assert.Equal(t, 2, idx.Stats().SkippedHardlinks)

	idx, err = Scan(context.Background(), []string{root}, Options{})
	require.NoError(t, err)
	assert.Equal(t, 3, idx.Len())

	recs := idx.Records()
	assert.True(t, recs[0].ID.Equal(recs[2].ID), "one.txt and two.txt share an inode")
}

func TestScan_Exclude(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "keep.txt"), "keep")
	writeFile(t, filepath.Join(root, ".DS_Store"), "junk")

	idx, err := Scan(context.Background(), []string{root}, Options{
		Exclude: func(rec Record) bool { return rec.Name == ".DS_Store" },
	})
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(root, "keep.txt")}, paths(idx))
	assert.Equal(t, 1, idx.Stats().Excluded)
}

func TestScan_UnreadableDirectoryIsSkipped(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permissions are not enforced for root")
	}

	root := t.TempDir()
	writeFile(t, filepath.Join(root, "ok.txt"), "ok")
	locked := filepath.Join(root, "locked")
	writeFile(t, filepath.Join(locked, "secret.txt"), "secret")
	require.NoError(t, os.Chmod(locked, 0o000))
	t.Cleanup(func() { _ = os.Chmod(locked, 0o755) })

	idx, err := Scan(context.Background(), []string{root}, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(root, "ok.txt")}, paths(idx))
	require.NotEmpty(t, idx.Errors())
	assert.True(t, slices.ContainsFunc(idx.Errors(), func(e FileError) bool {
		return e.Path == locked
	}))
}

func TestScan_Cancelled(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.txt"), "a")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Scan(ctx, []string{root}, Options{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFileID_Equal(t *testing.T) {
	assert.True(t, FileID{Device: 1, Inode: 2}.Equal(FileID{Device: 1, Inode: 2}))
	assert.False(t, FileID{Device: 1, Inode: 2}.Equal(FileID{Device: 2, Inode: 2}))
	assert.False(t, FileID{}.Equal(FileID{}))
	assert.Equal(t, "1:2", FileID{Device: 1, Inode: 2}.String())
}
