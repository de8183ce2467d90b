package linker

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/dupelink/dupelink/pkg/matcher"
)

type Mode int

const (
	ModeDryRun Mode = iota
	ModeSoftlink
	ModeHardlink
)

func (m Mode) String() string {
	switch m {
	case ModeSoftlink:
		return "softlink"
	case ModeHardlink:
		return "hardlink"
	default:
		return "dry-run"
	}
}

type Outcome int

const (
	OutcomeWouldLink Outcome = iota
	OutcomeLinked
	OutcomeSkipped
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeLinked:
		return "linked"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeFailed:
		return "failed"
	default:
		return "would-link"
	}
}

var (
	ErrCrossDevice = errors.New("source and destination are on different devices")
	ErrChanged     = errors.New("file changed since it was indexed")
)

type Result struct {
	Pair    matcher.Pair
	Outcome Outcome
	Err     error
}

// Reason is a short description of why a pair was skipped or failed.
func (r Result) Reason() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

type Summary struct {
	WouldLink int
	Linked    int
	Skipped   int
	Failed    int
	// ReclaimedBytes counts linked pairs, or would-be linked pairs in a dry-run.
	ReclaimedBytes uint64
}

func (s Summary) Total() int {
	return s.WouldLink + s.Linked + s.Skipped + s.Failed
}

type Options struct {
	Mode Mode
	// FS defaults to the OS filesystem.
	FS FS
}

type Linker struct {
	mode Mode
	fs   FS

	mu      sync.Mutex
	summary Summary

	log *logrus.Entry
}
