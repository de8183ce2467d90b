package hasher

import (
	"context"
	"encoding/hex"
	"io"
	"os"
	"sync/atomic"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/dupelink/dupelink/pkg/fileindex"
	"github.com/dupelink/dupelink/pkg/hashcache"
	"github.com/dupelink/dupelink/pkg/logger"
)

const DefaultBufferSize = 64 * 1024

type Options struct {
	Algorithm  string
	BufferSize int
}

type Stats struct {
	Hashed    uint64
	Bytes     uint64
	CacheHits uint64
}

type Hasher struct {
	algo   Algorithm
	buffer int
	cache  *hashcache.Cache

	hashed    atomic.Uint64
	bytes     atomic.Uint64
	cacheHits atomic.Uint64

	log *logrus.Entry
}

// New creates a hasher backed by cache. A nil cache behaves like a disabled one.
func New(cache *hashcache.Cache, opts Options) (*Hasher, error) {
	algo, err := GetAlgorithm(opts.Algorithm)
	if err != nil {
		return nil, err
	}

	if opts.BufferSize <= 0 {
		opts.BufferSize = DefaultBufferSize
	}
	if cache == nil {
		cache = hashcache.Disabled()
	}

	return &Hasher{
		algo:   algo,
		buffer: opts.BufferSize,
		cache:  cache,
		log:    logger.GetLogger("hasher"),
	}, nil
}

func (h *Hasher) Algorithm() Algorithm {
	return h.algo
}

// Digest returns the content digest of rec. With useCache a cached digest for
// the record's name and size is returned without reading the file. Computed
// digests are always offered to the cache.
func (h *Hasher) Digest(ctx context.Context, rec fileindex.Record, useCache bool) (hashcache.Digest, error) {
	key := hashcache.KeyFor(rec.Path, rec.Size)

	if useCache {
		if d, ok := h.cache.Lookup(key); ok {
			h.cacheHits.Add(1)
			h.log.Tracef("Found cached hash for %q: %s", key.String(), d)
			return d, nil
		}
	}

	sum, n, err := h.HashFile(ctx, rec.Path)
	if err != nil {
		return "", err
	}

	d := hashcache.Digest(hex.EncodeToString(sum))
	h.hashed.Add(1)
	h.bytes.Add(uint64(n))
	h.cache.Store(key, d)

	h.log.Tracef("Calculated %s hash for %q (%s): %s", h.algo.Name, rec.Path, humanize.IBytes(uint64(n)), d)
	return d, nil
}

// HashFile reads path in chunks of the configured buffer size and checks ctx
// between chunks.
func (h *Hasher) HashFile(ctx context.Context, path string) ([]byte, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, errors.Wrapf(err, "open %q", path)
	}
	defer f.Close()

	sum := h.algo.NewFunc()
	buf := make([]byte, h.buffer)
	var total int64

	for {
		if err := ctx.Err(); err != nil {
			return nil, total, err
		}

		n, err := f.Read(buf)
		if n > 0 {
			sum.Write(buf[:n])
			total += int64(n)
		}

		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, total, errors.Wrapf(err, "read %q", path)
		}
	}

	return sum.Sum(nil), total, nil
}

func (h *Hasher) Stats() Stats {
	return Stats{
		Hashed:    h.hashed.Load(),
		Bytes:     h.bytes.Load(),
		CacheHits: h.cacheHits.Load(),
	}
}
