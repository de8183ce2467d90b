package hasher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/cespare/xxhash/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dupelink/dupelink/pkg/fileindex"
	"github.com/dupelink/dupelink/pkg/hashcache"
)

func record(t *testing.T, dir, name, content string) fileindex.Record {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return fileindex.Record{Path: path, Name: name, Size: int64(len(content))}
}

func TestGetAlgorithm(t *testing.T) {
	tests := []struct {
		name    string
		want    string
		wantErr bool
	}{
		{name: "", want: "sha1"},
		{name: "SHA256", want: "sha256"},
		{name: "sha512", want: "sha512"},
		{name: "md5", want: "md5"},
		{name: "xxhash", want: "xxhash"},
		{name: "crc32", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			algo, err := GetAlgorithm(tt.name)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnsupportedAlgorithm)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, algo.Name)
			assert.Equal(t, algo.Size, algo.NewFunc().Size())
		})
	}
}

func TestDigest_KnownValues(t *testing.T) {
	dir := t.TempDir()
	rec := record(t, dir, "abc.txt", "abc")

	tests := []struct {
		algo string
		want string
	}{
		{algo: "sha1", want: "a9993e364706816aba3e25717850c26c9cd0d89d"},
		{algo: "sha256", want: "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"},
		{algo: "md5", want: "900150983cd24fb0d6963f7d28e17f72"},
		{algo: "xxhash", want: fmt.Sprintf("%016x", xxhash.Sum64String("abc"))},
	}

	for _, tt := range tests {
		t.Run(tt.algo, func(t *testing.T) {
			// a buffer smaller than the file forces several reads
			h, err := New(nil, Options{Algorithm: tt.algo, BufferSize: 2})
			require.NoError(t, err)

			d, err := h.Digest(context.Background(), rec, true)
			require.NoError(t, err)
			assert.Equal(t, hashcache.Digest(tt.want), d)
			assert.Equal(t, Stats{Hashed: 1, Bytes: 3}, h.Stats())
		})
	}
}

func TestDigest_EmptyFile(t *testing.T) {
	rec := record(t, t.TempDir(), "empty", "")

	h, err := New(nil, Options{})
	require.NoError(t, err)

	d, err := h.Digest(context.Background(), rec, false)
	require.NoError(t, err)
	assert.Equal(t, hashcache.Digest("da39a3ee5e6b4b0d3255bfef95601890afd80709"), d)
}

func TestDigest_UnreadableFile(t *testing.T) {
	h, err := New(nil, Options{})
	require.NoError(t, err)

	_, err = h.Digest(context.Background(), fileindex.Record{Path: filepath.Join(t.TempDir(), "gone"), Size: 1}, false)
	assert.Error(t, err)
	assert.Equal(t, uint64(0), h.Stats().Hashed)
}

func TestDigest_CacheRoundTrip(t *testing.T) {
	dir := t.TempDir()
	cachePath := filepath.Join(dir, "cache", "hashes.json")
	recs := []fileindex.Record{
		record(t, dir, "a.txt", "alpha"),
		record(t, dir, "b.txt", "bravo!"),
	}

	first := hashcache.New(hashcache.NewFileStore(cachePath), hashcache.Options{Enabled: true, Algorithm: "sha1"})
	require.NoError(t, first.Load())
	h1, err := New(first, Options{})
	require.NoError(t, err)

	var want []hashcache.Digest
	for _, rec := range recs {
		d, err := h1.Digest(context.Background(), rec, true)
		require.NoError(t, err)
		want = append(want, d)
	}
	require.NoError(t, first.Flush())
	assert.Equal(t, uint64(2), h1.Stats().Hashed)

	second := hashcache.New(hashcache.NewFileStore(cachePath), hashcache.Options{Enabled: true, Algorithm: "sha1"})
	require.NoError(t, second.Load())
	h2, err := New(second, Options{})
	require.NoError(t, err)

	for i, rec := range recs {
		d, err := h2.Digest(context.Background(), rec, true)
		require.NoError(t, err)
		assert.Equal(t, want[i], d)
	}
	assert.Equal(t, Stats{CacheHits: 2}, h2.Stats())
}

func TestDigest_CacheBypassStillStores(t *testing.T) {
	rec := record(t, t.TempDir(), "a.txt", "alpha")
	cache := hashcache.New(hashcache.NewMemoryStore(hashcache.Data{
		"sha1": {"5 a.txt": "stale"},
	}), hashcache.Options{Enabled: true, Algorithm: "sha1"})
	require.NoError(t, cache.Load())

	h, err := New(cache, Options{})
	require.NoError(t, err)

	d, err := h.Digest(context.Background(), rec, false)
	require.NoError(t, err)
	assert.NotEqual(t, hashcache.Digest("stale"), d)

	cached, ok := cache.Lookup(hashcache.KeyFor(rec.Path, rec.Size))
	require.True(t, ok)
	assert.Equal(t, d, cached)
}

func TestHashFile_Cancelled(t *testing.T) {
	rec := record(t, t.TempDir(), "a.txt", "alpha")
	h, err := New(nil, Options{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err = h.HashFile(ctx, rec.Path)
	assert.ErrorIs(t, err, context.Canceled)
}
