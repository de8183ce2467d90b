package digestmap

import (
	"slices"

	"github.com/dupelink/dupelink/pkg/fileindex"
	"github.com/dupelink/dupelink/pkg/hashcache"
)

func New() *DigestMap {
	return &DigestMap{
		digestMap: make(map[hashcache.Digest][]fileindex.Record),
		paths:     make(map[string]struct{}),
	}
}

func (d *DigestMap) Add(digest hashcache.Digest, rec fileindex.Record) {
	if digest == "" {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.paths[rec.Path]; exists {
		return
	}

	d.paths[rec.Path] = struct{}{}
	d.digestMap[digest] = append(d.digestMap[digest], rec)
}

// Records returns a copy of the records with digest, in insertion order.
func (d *DigestMap) Records(digest hashcache.Digest) []fileindex.Record {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return slices.Clone(d.digestMap[digest])
}

// First returns the first record with digest that skip does not reject.
func (d *DigestMap) First(digest hashcache.Digest, skip func(fileindex.Record) bool) (fileindex.Record, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	for _, rec := range d.digestMap[digest] {
		if skip != nil && skip(rec) {
			continue
		}
		return rec, true
	}

	return fileindex.Record{}, false
}

func (d *DigestMap) Has(digest hashcache.Digest) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, exists := d.digestMap[digest]
	return exists
}

// IsUnique reports whether at most one record carries digest.
func (d *DigestMap) IsUnique(digest hashcache.Digest) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.digestMap[digest]) <= 1
}

// Length returns the number of distinct digests.
func (d *DigestMap) Length() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.digestMap)
}
