package hashcache

import (
	"maps"

	"github.com/pkg/errors"

	"github.com/dupelink/dupelink/pkg/logger"
)

func New(backend Store, opts Options) *Cache {
	return &Cache{
		backend: backend,
		opts:    opts,
		data:    Data{opts.Algorithm: make(map[string]string)},
		log:     logger.GetLogger("hashcache"),
	}
}

// Disabled returns a pass-through cache: lookups miss and stores are dropped.
func Disabled() *Cache {
	return New(nil, Options{Enabled: false})
}

func (c *Cache) Enabled() bool {
	return c.opts.Enabled && c.backend != nil
}

func (c *Cache) Load() error {
	if !c.Enabled() {
		return nil
	}

	data, err := c.backend.Load()
	if err != nil {
		return errors.Wrap(err, "load hash cache")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if data == nil {
		data = Data{}
	}
	if data[c.opts.Algorithm] == nil {
		data[c.opts.Algorithm] = make(map[string]string)
	}

	c.data = data
	c.loaded = len(data[c.opts.Algorithm])
	c.pending = 0

	c.log.Infof("Loaded %d previously calculated %s hashes", c.loaded, c.opts.Algorithm)
	return nil
}

func (c *Cache) Lookup(key Key) (Digest, bool) {
	if !c.Enabled() {
		return "", false
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	d, ok := c.data[c.opts.Algorithm][key.String()]
	if !ok || d == "" {
		return "", false
	}

	return Digest(d), true
}

func (c *Cache) Store(key Key, digest Digest) {
	if !c.Enabled() || digest == "" {
		return
	}

	c.mu.Lock()
	entries := c.data[c.opts.Algorithm]
	if old, ok := entries[key.String()]; ok && old == string(digest) {
		c.mu.Unlock()
		return
	}
	entries[key.String()] = string(digest)
	c.pending++
	flush := c.opts.FlushEvery > 0 && c.pending >= c.opts.FlushEvery
	c.mu.Unlock()

	if flush {
		if err := c.Flush(); err != nil {
			c.log.WithError(err).Warn("Failed saving hash cache, will retry on next flush")
		}
	}
}

// Flush persists the cache when entries were added since the last flush.
func (c *Cache) Flush() error {
	if !c.Enabled() {
		return nil
	}

	c.flushMu.Lock()
	defer c.flushMu.Unlock()

	c.mu.Lock()
	if c.pending == 0 {
		c.mu.Unlock()
		return nil
	}

	snapshot := make(Data, len(c.data))
	for algo, entries := range c.data {
		snapshot[algo] = maps.Clone(entries)
	}
	pending := c.pending
	c.pending = 0
	c.mu.Unlock()

	if err := c.backend.Save(snapshot); err != nil {
		c.mu.Lock()
		c.pending += pending
		c.mu.Unlock()
		return errors.Wrap(err, "save hash cache")
	}

	c.log.Debugf("Saved %d new hashes (%d total)", pending, len(snapshot[c.opts.Algorithm]))
	return nil
}

// Len returns the number of entries for the configured algorithm.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data[c.opts.Algorithm])
}

// Added returns the number of entries stored since Load.
func (c *Cache) Added() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data[c.opts.Algorithm]) - c.loaded
}
