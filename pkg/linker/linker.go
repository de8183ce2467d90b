package linker

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"

	"github.com/dupelink/dupelink/pkg/logger"
	"github.com/dupelink/dupelink/pkg/matcher"
)

const tempSuffix = ".dupelink"

func New(opts Options) *Linker {
	if opts.FS == nil {
		opts.FS = NewOS()
	}

	return &Linker{
		mode: opts.Mode,
		fs:   opts.FS,
		log:  logger.GetLogger("linker"),
	}
}

func (l *Linker) Mode() Mode {
	return l.mode
}

// Apply replaces the pair's destination with a link to its source. The link is
// created next to the destination and renamed over it, so a failure leaves the
// destination as it was.
func (l *Linker) Apply(ctx context.Context, pair matcher.Pair) Result {
	res := l.apply(ctx, pair)
	l.record(res)
	return res
}

// ApplyAll applies pairs in order. Pairs left when ctx is done are not attempted.
func (l *Linker) ApplyAll(ctx context.Context, pairs []matcher.Pair) []Result {
	results := make([]Result, 0, len(pairs))
	for _, pair := range pairs {
		if ctx.Err() != nil {
			break
		}
		results = append(results, l.Apply(ctx, pair))
	}
	return results
}

func (l *Linker) Summary() Summary {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.summary
}

func (l *Linker) apply(ctx context.Context, pair matcher.Pair) Result {
	res := Result{Pair: pair}
	dst := pair.Destination.Path
	src := pair.Source.Path

	if err := ctx.Err(); err != nil {
		res.Outcome = OutcomeSkipped
		res.Err = err
		return res
	}

	if err := l.validate(pair); err != nil {
		l.log.WithError(err).Warnf("Skipping %q", dst)
		res.Outcome = OutcomeSkipped
		res.Err = err
		return res
	}

	if l.mode == ModeHardlink && crossDevice(pair) {
		l.log.Errorf("Cannot hardlink %q to %q: %v", dst, src, ErrCrossDevice)
		res.Outcome = OutcomeFailed
		res.Err = ErrCrossDevice
		return res
	}

	if l.mode == ModeDryRun {
		l.log.Infof("Would link (%s): %q -> %q", humanize.IBytes(uint64(pair.Destination.Size)), dst, src)
		res.Outcome = OutcomeWouldLink
		return res
	}

	if err := l.link(src, dst); err != nil {
		l.log.WithError(err).Errorf("Failed linking %q", dst)
		res.Outcome = OutcomeFailed
		res.Err = err
		return res
	}

	l.log.Infof("Linked (%s): %q -> %q", l.mode, dst, src)
	res.Outcome = OutcomeLinked
	return res
}

// validate checks that neither side changed since indexing.
func (l *Linker) validate(pair matcher.Pair) error {
	dstInfo, err := l.fs.Lstat(pair.Destination.Path)
	if err != nil {
		return errors.Wrap(err, "destination")
	}

	if pair.Destination.IsSymlink {
		if dstInfo.Mode()&fs.ModeSymlink == 0 {
			return errors.Wrap(ErrChanged, "destination is no longer a symlink")
		}
		if dstInfo, err = l.fs.Stat(pair.Destination.Path); err != nil {
			return errors.Wrap(err, "destination")
		}
	}

	if !dstInfo.Mode().IsRegular() {
		return errors.Wrap(ErrChanged, "destination is not a regular file")
	}
	if dstInfo.Size() != pair.Destination.Size {
		return errors.Wrapf(ErrChanged, "destination size %d, expected %d", dstInfo.Size(), pair.Destination.Size)
	}

	srcInfo, err := l.fs.Stat(pair.Source.Path)
	if err != nil {
		return errors.Wrap(err, "source")
	}
	if !srcInfo.Mode().IsRegular() || srcInfo.Size() != pair.Source.Size {
		return errors.Wrap(ErrChanged, "source")
	}

	if !pair.Destination.IsSymlink && os.SameFile(srcInfo, dstInfo) {
		return errors.Wrap(ErrChanged, "destination already links to source")
	}

	return nil
}

func (l *Linker) link(src, dst string) error {
	tmp := filepath.Join(filepath.Dir(dst), "."+filepath.Base(dst)+tempSuffix)

	// leftover from an interrupted run
	if err := l.fs.Remove(tmp); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return errors.Wrapf(err, "remove stale %q", tmp)
	}

	var err error
	switch l.mode {
	case ModeSoftlink:
		err = l.fs.Symlink(src, tmp)
	case ModeHardlink:
		err = l.fs.Link(src, tmp)
	default:
		return errors.Errorf("unsupported link mode: %s", l.mode)
	}
	if err != nil {
		if errors.Is(err, syscall.EXDEV) {
			return ErrCrossDevice
		}
		return errors.Wrapf(err, "create %s", l.mode)
	}

	if err := l.fs.Rename(tmp, dst); err != nil {
		_ = l.fs.Remove(tmp)
		return errors.Wrapf(err, "replace %q", dst)
	}

	return nil
}

func (l *Linker) record(res Result) {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch res.Outcome {
	case OutcomeWouldLink:
		l.summary.WouldLink++
	case OutcomeLinked:
		l.summary.Linked++
	case OutcomeSkipped:
		l.summary.Skipped++
		return
	case OutcomeFailed:
		l.summary.Failed++
		return
	}

	if res.Pair.Reclaimable {
		l.summary.ReclaimedBytes += uint64(res.Pair.Destination.Size)
	}
}

func crossDevice(pair matcher.Pair) bool {
	src, dst := pair.Source.ID, pair.Destination.ID
	if src.IsZero() || dst.IsZero() || pair.Destination.IsSymlink {
		return false
	}
	return src.Device != dst.Device
}
