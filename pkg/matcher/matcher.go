package matcher

import (
	"context"
	"iter"
	"slices"
	"sort"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/scylladb/go-set/i64set"
	"github.com/scylladb/go-set/strset"

	"github.com/dupelink/dupelink/pkg/digestmap"
	"github.com/dupelink/dupelink/pkg/fileindex"
	"github.com/dupelink/dupelink/pkg/hashcache"
	"github.com/dupelink/dupelink/pkg/inodemap"
	"github.com/dupelink/dupelink/pkg/logger"
)

type job struct {
	rec  fileindex.Record
	side Side
}

func New(digester Digester, opts Options) *Matcher {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}

	return &Matcher{
		digester: digester,
		opts:     opts,
		log:      logger.GetLogger("matcher"),
	}
}

// Match pairs every destination record with the first source record of equal
// content. Sources keep index order, so the earliest source wins a tie.
func (m *Matcher) Match(ctx context.Context, sources, destination *fileindex.Index) (*Result, error) {
	res := &Result{}
	res.Errors = append(sources.Errors(), destination.Errors()...)
	res.SourceFiles = sources.Len()
	res.DestinationFiles = destination.Len()

	sourcePaths := strset.New()
	for rec := range sources.All() {
		sourcePaths.Add(rec.Path)
	}
	sourceInodes := inodemap.New(sources.All())
	destinationInodes := inodemap.New(destination.All())

	// destinations that are a source themselves, or share its inode, are never touched
	var candidates []fileindex.Record
	for rec := range destination.All() {
		switch {
		case sourcePaths.Has(rec.Path):
			res.SelfMatches++
			m.log.Debugf("Destination is also a source, skipping: %q", rec.Path)
		case sourceInodes.Has(rec.ID):
			res.AlreadyLinked++
			m.log.Debugf("Destination already links to %q, skipping: %q", sourceInodes.Paths(rec.ID)[0], rec.Path)
		default:
			candidates = append(candidates, rec)
		}
	}

	sizes := i64set.Intersection(sizeSet(sources.All()), sizeSet(slices.Values(candidates)))

	var (
		jobs  []job
		bytes uint64
	)
	for rec := range sources.All() {
		if !sizes.Has(rec.Size) {
			res.Pruned++
			continue
		}
		jobs = append(jobs, job{rec: rec, side: SideSource})
		bytes += uint64(rec.Size)
	}
	for _, rec := range candidates {
		if !sizes.Has(rec.Size) {
			res.Pruned++
			continue
		}
		jobs = append(jobs, job{rec: rec, side: SideDestination})
		bytes += uint64(rec.Size)
	}

	m.log.WithField("size", humanize.IBytes(bytes)).
		Infof("Hashing %d files sharing %d sizes, pruned %d files", len(jobs), sizes.Size(), res.Pruned)
	if m.opts.OnStart != nil {
		m.opts.OnStart(len(jobs), bytes)
	}

	digests := make([]hashcache.Digest, len(jobs))
	errs := make([]error, len(jobs))

	processInBatches(ctx, len(jobs), m.opts.Workers, func(i int) {
		j := jobs[i]
		useCache := m.opts.SourceCache
		if j.side == SideDestination {
			useCache = m.opts.DestinationCache
		}

		digests[i], errs[i] = m.digester.Digest(ctx, j.rec, useCache)
		if m.opts.OnHashed != nil {
			m.opts.OnHashed(j.rec)
		}
	})

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dm := digestmap.New()
	for i, j := range jobs {
		if errs[i] != nil {
			m.log.WithError(errs[i]).Warnf("Failed hashing %s file, skipping: %q", j.side, j.rec.Path)
			res.Errors = append(res.Errors, fileindex.FileError{Path: j.rec.Path, Op: "hash", Err: errs[i]})
			continue
		}

		res.Hashed++
		res.Hashes = append(res.Hashes, HashedRecord{Record: j.rec, Digest: digests[i], Side: j.side})
		if j.side == SideSource {
			dm.Add(digests[i], j.rec)
		}
	}

	m.log.Debugf("Indexed %d distinct source digests", dm.Length())

	for i, j := range jobs {
		if j.side != SideDestination || errs[i] != nil {
			continue
		}

		dst := j.rec
		src, ok := dm.First(digests[i], func(r fileindex.Record) bool {
			return r.Path == dst.Path || r.ID.Equal(dst.ID)
		})
		if !ok {
			res.Unmatched++
			continue
		}

		res.Pairs = append(res.Pairs, Pair{
			Destination: dst,
			Source:      src,
			Digest:      digests[i],
			Reclaimable: !destinationInodes.HardlinkedOutside(dst),
		})
		res.MatchedBytes += uint64(dst.Size)

		if !dm.IsUnique(digests[i]) {
			m.log.Tracef("Several sources share the content of %q, using the first: %q", dst.Path, src.Path)
		}
		m.log.Debugf("Match found (%s): %q -> %q", humanize.IBytes(uint64(dst.Size)), dst.Path, src.Path)
	}

	// destinations that were never hashed have no counterpart either
	for _, rec := range candidates {
		if !sizes.Has(rec.Size) {
			res.Unmatched++
		}
	}

	sort.SliceStable(res.Pairs, func(a, b int) bool {
		return res.Pairs[a].Destination.Path < res.Pairs[b].Destination.Path
	})
	sort.SliceStable(res.Errors, func(a, b int) bool {
		return res.Errors[a].Path < res.Errors[b].Path
	})

	m.log.WithField("size", humanize.IBytes(res.MatchedBytes)).
		Infof("Compared %d source files with %d destination files, %d matches", res.SourceFiles, res.DestinationFiles, len(res.Pairs))

	return res, nil
}

func sizeSet(records iter.Seq[fileindex.Record]) *i64set.Set {
	s := i64set.New()
	for rec := range records {
		s.Add(rec.Size)
	}
	return s
}

// processInBatches runs fn for every index below n on at most workers
// goroutines. No new work is started once ctx is done.
func processInBatches(ctx context.Context, n int, workers int, fn func(int)) {
	if workers <= 1 {
		for i := range n {
			if ctx.Err() != nil {
				return
			}
			fn(i)
		}
		return
	}

	var wg sync.WaitGroup
	workerSem := make(chan struct{}, workers)

	for i := range n {
		if ctx.Err() != nil {
			break
		}

		wg.Add(1)
		workerSem <- struct{}{}

		go func(i int) {
			defer func() {
				<-workerSem
				wg.Done()
			}()

			fn(i)
		}(i)
	}

	wg.Wait()
}
