package hashcache

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"
)

// Digest is the lower-case hex encoding of a content hash.
type Digest string

// Key identifies a file by base name and size only. Two different files
// sharing both will share a cache entry.
type Key struct {
	Name string
	Size int64
}

func KeyFor(path string, size int64) Key {
	return Key{Name: filepath.Base(path), Size: size}
}

// String renders the key the way it is persisted: "<size> <name>".
func (k Key) String() string {
	return fmt.Sprintf("%d %s", k.Size, k.Name)
}

// Data is the persisted layout: algorithm -> key -> digest.
type Data map[string]map[string]string

// Store persists cache data between runs.
type Store interface {
	Load() (Data, error)
	Save(Data) error
}

type Options struct {
	Enabled   bool
	Algorithm string
	// FlushEvery saves the cache after this many new entries, 0 only flushes on demand.
	FlushEvery int
}

type Cache struct {
	backend Store
	opts    Options

	mu      sync.RWMutex
	data    Data
	pending int
	loaded  int

	flushMu sync.Mutex
	log     *logrus.Entry
}
