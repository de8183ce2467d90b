//go:build unix

package fileindex

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// linkInfo returns the device/inode pair and link count, following symlinks.
func linkInfo(path string) (FileID, uint64, error) {
	var stat unix.Stat_t
	if err := unix.Stat(path, &stat); err != nil {
		return FileID{}, 0, fmt.Errorf("stat file: %w", err)
	}

	return FileID{
		Device: uint64(stat.Dev),
		Inode:  uint64(stat.Ino),
	}, uint64(stat.Nlink), nil
}
