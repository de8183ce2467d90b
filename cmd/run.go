package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/dupelink/dupelink/pkg/config"
	"github.com/dupelink/dupelink/pkg/expression"
	"github.com/dupelink/dupelink/pkg/fileindex"
	"github.com/dupelink/dupelink/pkg/hashcache"
	"github.com/dupelink/dupelink/pkg/hasher"
	"github.com/dupelink/dupelink/pkg/linker"
	"github.com/dupelink/dupelink/pkg/logger"
	"github.com/dupelink/dupelink/pkg/matcher"
	"github.com/dupelink/dupelink/pkg/metrics"
	"github.com/dupelink/dupelink/pkg/notification"
	"github.com/dupelink/dupelink/pkg/progress"
)

const progressInterval = 5 * time.Second

func linkMode() linker.Mode {
	switch {
	case flagSoftlink:
		return linker.ModeSoftlink
	case flagHardlink:
		return linker.ModeHardlink
	default:
		return linker.ModeDryRun
	}
}

func run(ctx context.Context, out io.Writer, sources []string, destination string) error {
	var (
		start = time.Now()
		cfg   = config.Config
		mode  = linkMode()
		log   = logger.GetLogger("dupelink")
	)

	log.WithFields(logrus.Fields{
		"mode":      mode.String(),
		"algorithm": cfg.Hash.Algorithm,
		"cache":     cfg.Cache.Enabled,
	}).Infof("Linking duplicates from %d source(s) into %q", len(sources), destination)

	ignore, err := expression.Compile(cfg.Filter.Ignore)
	if err != nil {
		return errors.Wrap(err, "filter.ignore")
	}
	exclude := expression.Excluder(ctx, ignore)

	cache := openCache(cfg, log)
	defer func() {
		if err := cache.Flush(); err != nil {
			log.WithError(err).Error("Failed saving hash cache")
		}
	}()

	bufferSize, err := cfg.Hash.BufferSize()
	if err != nil {
		return errors.Wrap(err, "hash.buffer")
	}

	h, err := hasher.New(cache, hasher.Options{
		Algorithm:  cfg.Hash.Algorithm,
		BufferSize: bufferSize,
	})
	if err != nil {
		return err
	}

	sourceIndex, err := fileindex.Scan(ctx, sources, fileindex.Options{
		FollowSymlinks: cfg.Index.FollowSymlinks,
		Exclude:        exclude,
	})
	if err != nil {
		return errors.Wrap(err, "index sources")
	}

	destinationIndex, err := fileindex.Scan(ctx, []string{destination}, fileindex.Options{
		FollowSymlinks:  cfg.Index.FollowSymlinks,
		IgnoreHardlinks: cfg.Index.IgnoreHardlinks,
		Exclude:         exclude,
	})
	if err != nil {
		return errors.Wrap(err, "index destination")
	}

	logIndexStats(log, "source", sourceIndex.Stats())
	logIndexStats(log, "destination", destinationIndex.Stats())

	reporter := progress.New(interactive(), os.Stderr, progressInterval)
	m := matcher.New(h, matcher.Options{
		Workers:          cfg.Performance.HashWorkers,
		SourceCache:      cfg.Cache.Source,
		DestinationCache: cfg.Cache.Destination,
		OnStart:          reporter.Start,
		OnHashed:         reporter.Hashed,
	})

	res, err := m.Match(ctx, sourceIndex, destinationIndex)
	reporter.Stop()
	if err != nil {
		return errors.Wrap(err, "match duplicates")
	}

	if flagPrintHashes {
		printHashes(out, res.Hashes)
	}

	l := linker.New(linker.Options{Mode: mode})
	results := l.ApplyAll(ctx, res.Pairs)
	summary := l.Summary()
	stats := h.Stats()

	printReport(out, mode, res, results, summary)

	if cfg.Metrics.File != "" {
		writeMetrics(log, cfg.Metrics.File, mode, res, summary, stats, time.Since(start))
	}

	if cfg.Notifications.Enabled() {
		sendNotification(ctx, log, cfg.Notifications, mode, results, summary, time.Since(start))
	}

	log.WithFields(logrus.Fields{
		"hashed":          stats.Hashed,
		"hashed_size":     humanize.IBytes(stats.Bytes),
		"cache_hits":      stats.CacheHits,
		"reclaimed_space": humanize.IBytes(summary.ReclaimedBytes),
	}).Infof("Finished in %s", time.Since(start).Truncate(time.Millisecond))

	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, "interrupted")
	}

	return nil
}

// openCache loads the hash cache. An unreadable cache is not fatal, the run
// continues without it and leaves the file alone.
func openCache(cfg *config.Configuration, log *logrus.Entry) *hashcache.Cache {
	cache := hashcache.New(hashcache.NewFileStore(cfg.Cache.Path), hashcache.Options{
		Enabled:    cfg.Cache.Enabled,
		Algorithm:  cfg.Hash.Algorithm,
		FlushEvery: cfg.Cache.FlushEvery,
	})

	if err := cache.Load(); err != nil {
		log.WithError(err).Warnf("Failed loading hash cache %q, continuing without it", cfg.Cache.Path)
		return hashcache.Disabled()
	}

	return cache
}

func logIndexStats(log *logrus.Entry, side string, stats fileindex.Stats) {
	log.WithFields(logrus.Fields{
		"size":              humanize.IBytes(stats.Bytes),
		"skipped_symlinks":  stats.SkippedSymlinks,
		"skipped_hardlinks": stats.SkippedHardlinks,
		"excluded":          stats.Excluded,
		"errors":            stats.Errors,
	}).Infof("Indexed %d %s files", stats.Files, side)
}

func writeMetrics(log *logrus.Entry, path string, mode linker.Mode, res *matcher.Result, summary linker.Summary, stats hasher.Stats, took time.Duration) {
	m := metrics.New()
	m.Observe(metrics.Run{
		Mode:             mode.String(),
		SourceFiles:      res.SourceFiles,
		DestinationFiles: res.DestinationFiles,
		Pruned:           res.Pruned,
		Hashed:           stats.Hashed,
		HashedBytes:      stats.Bytes,
		CacheHits:        stats.CacheHits,
		Pairs:            len(res.Pairs),
		MatchedBytes:     res.MatchedBytes,
		Outcomes: map[string]int{
			linker.OutcomeWouldLink.String(): summary.WouldLink,
			linker.OutcomeLinked.String():    summary.Linked,
			linker.OutcomeSkipped.String():   summary.Skipped,
			linker.OutcomeFailed.String():    summary.Failed,
		},
		ReclaimedBytes: summary.ReclaimedBytes,
		Errors:         len(res.Errors),
		Duration:       took,
	})

	if err := m.WriteFile(path); err != nil {
		log.WithError(err).Error("Failed writing metrics")
		return
	}
	log.Debugf("Wrote metrics to %q", path)
}

func sendNotification(ctx context.Context, log *logrus.Entry, cfg config.NotificationsConfig, mode linker.Mode, results []linker.Result, summary linker.Summary, took time.Duration) {
	noti := notification.NewDiscordSender(log, cfg)

	var fields []notification.Field
	for _, r := range results {
		opts := notification.BuildOptions{
			Destination: r.Pair.Destination.Path,
			Source:      r.Pair.Source.Path,
			Size:        r.Pair.Destination.Size,
			Mode:        mode.String(),
			Reason:      r.Reason(),
		}

		switch r.Outcome {
		case linker.OutcomeLinked, linker.OutcomeWouldLink:
			fields = append(fields, noti.BuildField(notification.ActionLink, opts))
		case linker.OutcomeFailed:
			fields = append(fields, noti.BuildField(notification.ActionFailure, opts))
		}
	}

	description := fmt.Sprintf("Linked: **%d**, would link: **%d**, skipped: **%d**, failed: **%d**\nReclaimed: **%s**",
		summary.Linked, summary.WouldLink, summary.Skipped, summary.Failed, humanize.IBytes(summary.ReclaimedBytes))

	if err := noti.Send(ctx, "Duplicates", description, took, fields, mode == linker.ModeDryRun); err != nil {
		log.WithError(err).Error("Failed sending notification")
	}
}
