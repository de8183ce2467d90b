package progress

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pterm/pterm"
	"github.com/sirupsen/logrus"

	"github.com/dupelink/dupelink/pkg/fileindex"
	"github.com/dupelink/dupelink/pkg/logger"
)

// Reporter follows hashing progress. Hashed is called concurrently.
type Reporter interface {
	Start(files int, bytes uint64)
	Hashed(rec fileindex.Record)
	Stop()
}

// New returns a progress bar writing to w when interactive is set, otherwise
// a reporter logging throughput every interval.
func New(interactive bool, w io.Writer, interval time.Duration) Reporter {
	if interactive {
		return &barReporter{writer: w}
	}

	return &logReporter{
		interval: interval,
		log:      logger.GetLogger("progress"),
	}
}

type counters struct {
	mu         sync.Mutex
	files      int
	totalBytes uint64
	doneFiles  int
	doneBytes  uint64
	started    time.Time
}

func (c *counters) start(files int, bytes uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.files, c.totalBytes = files, bytes
	c.doneFiles, c.doneBytes = 0, 0
	c.started = time.Now()
}

func (c *counters) add(rec fileindex.Record) {
	c.doneFiles++
	c.doneBytes += uint64(rec.Size)
}

// status renders e.g. "1.2 GiB / 4.0 GiB (30%), 120 MiB/s". Caller holds mu.
func (c *counters) status() string {
	pct := 100.0
	if c.totalBytes > 0 {
		pct = float64(c.doneBytes) * 100 / float64(c.totalBytes)
	}

	rate := "-"
	if elapsed := time.Since(c.started).Seconds(); elapsed > 0 {
		rate = humanize.IBytes(uint64(float64(c.doneBytes)/elapsed)) + "/s"
	}

	return fmt.Sprintf("%s / %s (%.0f%%), %s",
		humanize.IBytes(c.doneBytes), humanize.IBytes(c.totalBytes), pct, rate)
}

type barReporter struct {
	counters
	writer io.Writer
	bar    *pterm.ProgressbarPrinter
}

func (b *barReporter) Start(files int, bytes uint64) {
	b.start(files, bytes)
	if files == 0 {
		return
	}

	bar, err := pterm.DefaultProgressbar.
		WithTotal(files).
		WithTitle("Hashing").
		WithWriter(b.writer).
		WithRemoveWhenDone(true).
		Start()
	if err != nil {
		return
	}
	b.bar = bar
}

func (b *barReporter) Hashed(rec fileindex.Record) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.add(rec)
	if b.bar == nil {
		return
	}
	b.bar.UpdateTitle("Hashing " + b.status())
	b.bar.Increment()
}

func (b *barReporter) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.bar != nil {
		_, _ = b.bar.Stop()
		b.bar = nil
	}
}

type logReporter struct {
	counters
	interval time.Duration
	last     time.Time
	log      *logrus.Entry
}

func (l *logReporter) Start(files int, bytes uint64) {
	l.start(files, bytes)
	l.last = time.Now()
}

func (l *logReporter) Hashed(rec fileindex.Record) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.add(rec)
	if time.Since(l.last) < l.interval && l.doneFiles < l.files {
		return
	}

	l.last = time.Now()
	l.log.Infof("Hashed %d/%d files: %s", l.doneFiles, l.files, l.status())
}

func (l *logReporter) Stop() {}
