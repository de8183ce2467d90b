package fileindex

import (
	"context"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charlievieth/fastwalk"
	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"

	"github.com/dupelink/dupelink/pkg/logger"
)

// ErrRootNotFound is returned by Scan when a root path does not exist.
var ErrRootNotFound = errors.New("path does not exist")

// Scan indexes every regular file below roots. Roots keep their order,
// records below a root are sorted by path.
func Scan(ctx context.Context, roots []string, opts Options) (*Index, error) {
	idx := &Index{
		log: logger.GetLogger("fileindex"),
	}

	for _, root := range roots {
		if err := idx.scanRoot(ctx, root, opts); err != nil {
			return nil, err
		}
	}

	sort.Slice(idx.errors, func(i, j int) bool {
		return idx.errors[i].Path < idx.errors[j].Path
	})

	return idx, nil
}

func (i *Index) scanRoot(ctx context.Context, root string, opts Options) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return errors.Wrapf(err, "resolve %q", root)
	}

	info, err := os.Stat(abs)
	switch {
	case os.IsNotExist(err):
		return errors.Wrapf(ErrRootNotFound, "%q", root)
	case err != nil:
		return errors.Wrapf(err, "stat %q", root)
	}

	if !info.IsDir() {
		rec, err := newRecord(abs, info, false)
		if err != nil {
			return errors.Wrapf(err, "read %q", root)
		}

		i.records = append(i.records, rec)
		i.stats.Files++
		i.stats.Bytes += uint64(rec.Size)
		i.log.Debugf("Indexed single file: %q", abs)
		return nil
	}

	if _, err := os.ReadDir(abs); err != nil {
		return errors.Wrapf(err, "read %q", root)
	}

	found, err := i.walk(ctx, abs, opts)
	if err != nil {
		return err
	}

	sort.Slice(found, func(a, b int) bool {
		return found[a].Path < found[b].Path
	})

	var size uint64
	for _, rec := range found {
		size += uint64(rec.Size)
	}

	i.records = append(i.records, found...)
	i.stats.Files += len(found)
	i.stats.Bytes += size

	i.log.WithField("size", humanize.IBytes(size)).Infof("Found %d files in %q", len(found), abs)
	return nil
}

func (i *Index) walk(ctx context.Context, root string, opts Options) ([]Record, error) {
	var (
		found       []Record
		candidates  = make(map[string][]Record)
		visitedDirs = make(map[string]struct{})
	)

	rootCanonical := root
	if opts.FollowSymlinks {
		c, err := filepath.EvalSymlinks(root)
		if err != nil {
			return nil, errors.Wrapf(err, "resolve %q", root)
		}
		rootCanonical = c
	}

	// lexical maps a walked path onto the resolved root without resolving
	// anything below it. A path whose canonical form differs was reached
	// through a symlink.
	lexical := func(path string) string {
		return filepath.Join(rootCanonical, strings.TrimPrefix(path, root))
	}

	within := func(path string) bool {
		return path == rootCanonical || strings.HasPrefix(path, rootCanonical+string(filepath.Separator))
	}

	conf := fastwalk.Config{
		Follow:     opts.FollowSymlinks,
		NumWorkers: opts.Workers,
	}

	// fastwalk invokes the callback from several goroutines
	err := fastwalk.Walk(&conf, root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		if err != nil {
			i.addError(path, "walk", err)
			return nil
		}

		if d.IsDir() {
			if !opts.FollowSymlinks || path == root {
				return nil
			}

			canonical, err := filepath.EvalSymlinks(path)
			if err != nil {
				i.addError(path, "resolve", err)
				return filepath.SkipDir
			}

			if canonical != lexical(path) && within(canonical) {
				i.log.Tracef("Skipping linked directory inside root: %q -> %q", path, canonical)
				return filepath.SkipDir
			}

			i.mu.Lock()
			_, seen := visitedDirs[canonical]
			visitedDirs[canonical] = struct{}{}
			i.mu.Unlock()

			if seen {
				i.log.Tracef("Skipping already visited directory: %q", path)
				return filepath.SkipDir
			}
			return nil
		}

		isLink := d.Type()&fs.ModeSymlink != 0
		if isLink && !opts.FollowSymlinks {
			i.mu.Lock()
			i.stats.SkippedSymlinks++
			i.mu.Unlock()
			i.log.Tracef("Skipping symlink: %q", path)
			return nil
		}

		var info fs.FileInfo
		if isLink {
			info, err = fastwalk.StatDirEntry(path, d)
		} else {
			info, err = d.Info()
		}
		if err != nil {
			i.addError(path, "stat", err)
			return nil
		}

		if !info.Mode().IsRegular() {
			// symlinked directories are descended by fastwalk itself
			return nil
		}

		rec, err := newRecord(path, info, isLink)
		if err != nil {
			i.addError(path, "stat", err)
			return nil
		}

		if opts.IgnoreHardlinks && rec.Links > 1 {
			i.mu.Lock()
			i.stats.SkippedHardlinks++
			i.mu.Unlock()
			i.log.Tracef("Skipping hardlinked file (%d links): %q", rec.Links, path)
			return nil
		}

		if opts.Exclude != nil && opts.Exclude(rec) {
			i.mu.Lock()
			i.stats.Excluded++
			i.mu.Unlock()
			i.log.Tracef("Skipping excluded file: %q", path)
			return nil
		}

		if !opts.FollowSymlinks {
			i.mu.Lock()
			found = append(found, rec)
			i.mu.Unlock()
			return nil
		}

		canonical, err := filepath.EvalSymlinks(path)
		if err != nil {
			i.addError(path, "resolve", err)
			return nil
		}

		i.mu.Lock()
		candidates[canonical] = append(candidates[canonical], rec)
		i.mu.Unlock()

		return nil
	})

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, errors.Wrapf(err, "walk %q", root)
	}

	// one record per physical path: prefer the path that is not behind a
	// link, otherwise the lexically smallest one
	for canonical, recs := range candidates {
		best := recs[0]
		for _, rec := range recs[1:] {
			bestDirect := lexical(best.Path) == canonical
			recDirect := lexical(rec.Path) == canonical
			if (recDirect && !bestDirect) || (recDirect == bestDirect && rec.Path < best.Path) {
				best = rec
			}
		}

		i.stats.Duplicates += len(recs) - 1
		found = append(found, best)
	}

	return found, nil
}

func newRecord(path string, info fs.FileInfo, isLink bool) (Record, error) {
	id, links, err := linkInfo(path)
	if err != nil {
		return Record{}, err
	}

	return Record{
		Path:      path,
		Name:      filepath.Base(path),
		Size:      info.Size(),
		ModTime:   info.ModTime(),
		IsSymlink: isLink,
		ID:        id,
		Links:     links,
	}, nil
}

func (i *Index) addError(path string, op string, err error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.errors = append(i.errors, FileError{Path: path, Op: op, Err: err})
	i.stats.Errors++
	i.log.WithError(err).Warnf("Skipping unreadable entry: %q", path)
}

// All yields the records in index order.
func (i *Index) All() iter.Seq[Record] {
	return func(yield func(Record) bool) {
		for _, rec := range i.records {
			if !yield(rec) {
				return
			}
		}
	}
}

// Records returns a copy of the records in index order.
func (i *Index) Records() []Record {
	out := make([]Record, len(i.records))
	copy(out, i.records)
	return out
}

func (i *Index) Len() int {
	return len(i.records)
}

func (i *Index) Errors() []FileError {
	out := make([]FileError, len(i.errors))
	copy(out, i.errors)
	return out
}

func (i *Index) Stats() Stats {
	return i.stats
}

// FromRecords builds an index from already known records, keeping their order.
func FromRecords(records ...Record) *Index {
	idx := &Index{
		records: records,
		log:     logger.GetLogger("fileindex"),
	}

	for _, rec := range records {
		idx.stats.Files++
		idx.stats.Bytes += uint64(rec.Size)
	}

	return idx
}
