package inodemap

import (
	"github.com/sirupsen/logrus"

	"github.com/dupelink/dupelink/pkg/fileindex"
)

type InodeMap struct {
	// inodeMap maps a FileID to every indexed path that shares the inode
	inodeMap map[fileindex.FileID][]string
	// links holds the link count reported by the filesystem for each FileID
	links map[fileindex.FileID]uint64
	log   *logrus.Entry
}
