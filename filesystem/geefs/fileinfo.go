package geefs

import (
	iofs "io/fs"
	"time"
)

// FileInfo describes a directory entry and the inode it names
type FileInfo struct {
	name     string
	inode    uint32
	fileType inodeType
	size     uint32
	blocks   uint32
}

var _ iofs.FileInfo = (*FileInfo)(nil)

func newFileInfo(name string, in *inode) *FileInfo {
	return &FileInfo{
		name:     name,
		inode:    in.number,
		fileType: in.fileType,
		size:     in.size,
		blocks:   in.blocks,
	}
}

func (fi *FileInfo) Name() string {
	return fi.name
}

func (fi *FileInfo) Size() int64 {
	return int64(fi.size)
}

func (fi *FileInfo) Mode() iofs.FileMode {
	if fi.IsDir() {
		return iofs.ModeDir | 0o755
	}
	return 0o644
}

// ModTime is always the zero time, GeeFS records no timestamps
func (fi *FileInfo) ModTime() time.Time {
	return time.Time{}
}

func (fi *FileInfo) IsDir() bool {
	return fi.fileType == inodeTypeDirectory
}

// Sys returns the inode id as a uint32
func (fi *FileInfo) Sys() any {
	return fi.inode
}

// Inode returns the inode id
func (fi *FileInfo) Inode() uint32 {
	return fi.inode
}

// Blocks returns the number of data blocks holding the content, indirect blocks excluded
func (fi *FileInfo) Blocks() uint32 {
	return fi.blocks
}
