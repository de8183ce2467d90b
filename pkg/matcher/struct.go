package matcher

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/dupelink/dupelink/pkg/fileindex"
	"github.com/dupelink/dupelink/pkg/hashcache"
)

const DefaultWorkers = 4

// Digester produces content digests, consulting its cache when useCache is set.
type Digester interface {
	Digest(ctx context.Context, rec fileindex.Record, useCache bool) (hashcache.Digest, error)
}

type Side int

const (
	SideSource Side = iota
	SideDestination
)

func (s Side) String() string {
	if s == SideDestination {
		return "destination"
	}
	return "source"
}

type Options struct {
	// Workers bounds concurrent hashing, 1 hashes sequentially.
	Workers          int
	SourceCache      bool
	DestinationCache bool

	// OnStart is called once with the amount of work left after size pruning.
	OnStart func(files int, bytes uint64)
	// OnHashed is called from worker goroutines after each record is hashed.
	OnHashed func(rec fileindex.Record)
}

// Pair is a destination file whose content equals Source.
type Pair struct {
	Destination fileindex.Record
	Source      fileindex.Record
	Digest      hashcache.Digest
	// Reclaimable is false when the destination has links outside the
	// destination tree, so replacing it frees no space.
	Reclaimable bool
}

type HashedRecord struct {
	Record fileindex.Record
	Digest hashcache.Digest
	Side   Side
}

type Counters struct {
	SourceFiles      int
	DestinationFiles int
	// Pruned records had no counterpart of the same size and were never hashed.
	Pruned        int
	Hashed        int
	SelfMatches   int
	AlreadyLinked int
	Unmatched     int
	MatchedBytes  uint64
}

type Result struct {
	Pairs  []Pair
	Hashes []HashedRecord
	Errors []fileindex.FileError
	Counters
}

type Matcher struct {
	digester Digester
	opts     Options
	log      *logrus.Entry
}
