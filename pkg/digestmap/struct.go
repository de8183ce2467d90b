package digestmap

import (
	"sync"

	"github.com/dupelink/dupelink/pkg/fileindex"
	"github.com/dupelink/dupelink/pkg/hashcache"
)

// DigestMap indexes records by content digest. Records sharing a digest keep
// the order they were added in.
type DigestMap struct {
	digestMap map[hashcache.Digest][]fileindex.Record
	// paths guards against the same record being added twice
	paths map[string]struct{}
	mu    sync.RWMutex
}
