package fileindex

import (
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// FileID represents a unique file identifier (device ID + inode number).
type FileID struct {
	Device uint64
	Inode  uint64
}

func (f FileID) String() string {
	return fmt.Sprintf("%d:%d", f.Device, f.Inode)
}

// Equal checks if two FileIDs are equal. The zero FileID never equals anything.
func (f FileID) Equal(other FileID) bool {
	if f.IsZero() || other.IsZero() {
		return false
	}
	return f.Device == other.Device && f.Inode == other.Inode
}

func (f FileID) IsZero() bool {
	return f.Device == 0 && f.Inode == 0
}

// Record is a regular file found while scanning a root.
type Record struct {
	Path      string
	Name      string
	Size      int64
	ModTime   time.Time
	IsSymlink bool
	ID        FileID
	Links     uint64
}

// FileError is a per-entry failure; the scan carries on without the entry.
type FileError struct {
	Path string
	Op   string
	Err  error
}

func (e FileError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Op, e.Path, e.Err)
}

func (e FileError) Unwrap() error {
	return e.Err
}

type Options struct {
	FollowSymlinks  bool
	IgnoreHardlinks bool
	// Exclude drops records for which it returns true.
	Exclude func(Record) bool
	// Workers is passed to fastwalk; zero picks its default.
	Workers int
}

type Stats struct {
	Files            int
	Bytes            uint64
	SkippedSymlinks  int
	SkippedHardlinks int
	Excluded         int
	Duplicates       int
	Errors           int
}

type Index struct {
	records []Record
	errors  []FileError
	stats   Stats

	mu  sync.Mutex
	log *logrus.Entry
}
