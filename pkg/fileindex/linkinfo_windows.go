package fileindex

import (
	"fmt"
	"syscall"
)

// linkInfo returns the volume/file-index pair and link count for a file on Windows.
// Symlinks are followed, CreateFile is called without FILE_FLAG_OPEN_REPARSE_POINT.
func linkInfo(path string) (FileID, uint64, error) {
	pathp, err := syscall.UTF16PtrFromString(path)
	if err != nil {
		return FileID{}, 0, fmt.Errorf("convert path to UTF16: %w", err)
	}

	h, err := syscall.CreateFile(pathp, 0, 0, nil, syscall.OPEN_EXISTING, syscall.FILE_FLAG_BACKUP_SEMANTICS, 0)
	if err != nil {
		return FileID{}, 0, fmt.Errorf("open file: %w", err)
	}
	defer syscall.CloseHandle(h)

	var info syscall.ByHandleFileInformation
	if err := syscall.GetFileInformationByHandle(h, &info); err != nil {
		return FileID{}, 0, fmt.Errorf("get file info: %w", err)
	}

	// Device = VolumeSerialNumber, Inode = (FileIndexHigh << 32) | FileIndexLow
	return FileID{
		Device: uint64(info.VolumeSerialNumber),
		Inode:  (uint64(info.FileIndexHigh) << 32) | uint64(info.FileIndexLow),
	}, uint64(info.NumberOfLinks), nil
}
