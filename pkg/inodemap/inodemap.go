package inodemap

import (
	"iter"
	"slices"

	"github.com/dupelink/dupelink/pkg/fileindex"
	"github.com/dupelink/dupelink/pkg/logger"
)

func New(records iter.Seq[fileindex.Record]) *InodeMap {
	m := &InodeMap{
		inodeMap: make(map[fileindex.FileID][]string),
		links:    make(map[fileindex.FileID]uint64),
		log:      logger.GetLogger("inodemap"),
	}

	if records != nil {
		for rec := range records {
			m.Add(rec)
		}
	}

	return m
}

func (m *InodeMap) Add(rec fileindex.Record) {
	if rec.ID.IsZero() {
		m.log.Tracef("No file identifier for %q, not mapping", rec.Path)
		return
	}

	m.links[rec.ID] = rec.Links

	if paths, exists := m.inodeMap[rec.ID]; exists {
		// inode already associated with other paths
		if !slices.Contains(paths, rec.Path) {
			m.inodeMap[rec.ID] = append(paths, rec.Path)
		}
		return
	}

	// inode has not been seen before, create entry
	m.inodeMap[rec.ID] = []string{rec.Path}
}

func (m *InodeMap) Has(id fileindex.FileID) bool {
	_, ok := m.inodeMap[id]
	return ok
}

// Paths returns the indexed paths sharing id, in insertion order.
func (m *InodeMap) Paths(id fileindex.FileID) []string {
	return slices.Clone(m.inodeMap[id])
}

// HardlinkedOutside reports whether the file has links that were not indexed.
func (m *InodeMap) HardlinkedOutside(rec fileindex.Record) bool {
	paths, exists := m.inodeMap[rec.ID]
	if !exists {
		return rec.Links > 1
	}

	return m.links[rec.ID] > uint64(len(paths))
}

func (m *InodeMap) Length() int {
	return len(m.inodeMap)
}
