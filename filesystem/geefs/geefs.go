// Package geefs builds and navigates GeeFS images.
//
// A GeeFS image is a sequence of equally sized blocks:
//
//	block 0                     superblock
//	blocks [1, 1+F)             free maps: unused counter, then a bitmap of data blocks
//	blocks [1+F, 1+F+I)         inode table: unused counter, then packed inodes
//	blocks [1+F+I, ...)         data blocks, one per free map bit
//
// Every inode has 12 direct block pointers, one single indirect and one double
// indirect pointer. Directories are files holding 32-byte entries and always
// start with "." and "..". Inode 0 is the root directory.
//
// A FileSystem keeps the superblock and the current directory in memory and
// writes every other change straight to the backing storage. It is not safe for
// concurrent use; callers sharing an image must serialize all calls.
package geefs

import (
	"errors"
	"fmt"
	"strings"

	"github.com/maxxsoft/geefs/backend"
	"github.com/sirupsen/logrus"
)

const (
	// DefaultBlockSize is used when Params.BlockSize is 0
	DefaultBlockSize uint32 = 512
	// DefaultFreeMapBlocks is used when Params.FreeMapBlocks is 0
	DefaultFreeMapBlocks uint32 = 1
	// DefaultInodeBlocks is used when Params.InodeBlocks is 0
	DefaultInodeBlocks uint32 = 1

	// blocks zeroed per write when formatting
	zeroChunkBlocks = 64
)

// Params describes the geometry of a new image
type Params struct {
	// BlockSize in bytes. It must hold the superblock, an inode block header plus
	// one inode, and two directory entries; in practice at least 72.
	BlockSize uint32
	// FreeMapBlocks is the number of free map blocks. Each tracks
	// (BlockSize-4)*8 data blocks, so this also fixes the data capacity.
	FreeMapBlocks uint32
	// InodeBlocks is the number of inode table blocks, each holding
	// (BlockSize-4)/68 inodes.
	InodeBlocks uint32
}

// Option configures a FileSystem
type Option func(*FileSystem)

// WithLogger sets the logger used for debug events
func WithLogger(l logrus.FieldLogger) Option {
	return func(fs *FileSystem) {
		if l != nil {
			fs.log = l
		}
	}
}

// FileSystem is an open GeeFS image
type FileSystem struct {
	superblock *superblock
	backend    backend.Storage
	log        logrus.FieldLogger

	// current working directory and the names leading to it from the root
	cwd  *inode
	path []string
}

func newFileSystem(b backend.Storage, opts []Option) *FileSystem {
	fs := &FileSystem{
		backend: b,
		log:     logrus.StandardLogger().WithField("filesystem", "geefs"),
	}
	for _, opt := range opts {
		opt(fs)
	}
	return fs
}

// Equal compare if two filesystems are equal
func (fs *FileSystem) Equal(a *FileSystem) bool {
	return fs.backend == a.backend && fs.superblock.equal(a.superblock)
}

// Create lays out an empty GeeFS image on b and returns it opened at the root.
//
// The storage is resized to exactly
// (1 + FreeMapBlocks + InodeBlocks + (BlockSize-4)*8*FreeMapBlocks) * BlockSize
// bytes and every block is zeroed before the headers and the root directory are
// written. Zero values in p are replaced by the package defaults.
func Create(b backend.Storage, p *Params, opts ...Option) (*FileSystem, error) {
	if b == nil {
		return nil, errors.New("storage is nil")
	}
	// be safe about the params pointer
	if p == nil {
		p = &Params{}
	}
	sb := &superblock{
		magic:       MagicNumber,
		headerSize:  superblockSize,
		blockSize:   p.BlockSize,
		freeMapNum:  p.FreeMapBlocks,
		inodeBlkNum: p.InodeBlocks,
	}
	if sb.blockSize == 0 {
		sb.blockSize = DefaultBlockSize
	}
	if sb.freeMapNum == 0 {
		sb.freeMapNum = DefaultFreeMapBlocks
	}
	if sb.inodeBlkNum == 0 {
		sb.inodeBlkNum = DefaultInodeBlocks
	}
	if err := sb.validate(); err != nil {
		return nil, err
	}

	fs := newFileSystem(b, opts)
	fs.superblock = sb
	fs.log.WithFields(logrus.Fields{
		"blocksize":   sb.blockSize,
		"freemaps":    sb.freeMapNum,
		"inodeblocks": sb.inodeBlkNum,
		"datablocks":  sb.dataBlocks(),
		"size":        sb.imageSize(),
	}).Debug("creating image")

	if err := b.Resize(sb.imageSize()); err != nil {
		return nil, fmt.Errorf("%w: could not resize storage to %d bytes: %w", ErrIO, sb.imageSize(), err)
	}

	// zero everything, in chunks of whole blocks
	total := sb.totalBlocks()
	zeros := make([]byte, int64(sb.blockSize)*zeroChunkBlocks)
	for blk := uint64(0); blk < total; blk += zeroChunkBlocks {
		n := min(uint64(zeroChunkBlocks), total-blk)
		if err := fs.writeAt(zeros[:n*uint64(sb.blockSize)], int64(blk)*int64(sb.blockSize)); err != nil {
			return nil, fmt.Errorf("could not zero blocks starting at %d: %w", blk, err)
		}
	}

	if err := fs.writeAt(sb.toBytes(), 0); err != nil {
		return nil, fmt.Errorf("could not write superblock: %w", err)
	}
	for i := uint32(0); i < sb.freeMapNum; i++ {
		if err := fs.writeUint32(sb.bitsPerFreeMap(), sb.freeMapByteLocation(i)); err != nil {
			return nil, fmt.Errorf("could not write free map header %d: %w", i, err)
		}
	}
	for i := uint32(0); i < sb.inodeBlkNum; i++ {
		if err := fs.writeUint32(sb.inodesPerBlock(), sb.inodeBlockByteLocation(i)); err != nil {
			return nil, fmt.Errorf("could not write inode block header %d: %w", i, err)
		}
	}

	root, err := fs.makeDirInode(rootInode)
	if err != nil {
		return nil, fmt.Errorf("could not create root directory: %w", err)
	}
	if root.number != rootInode {
		return nil, fmt.Errorf("%w: root directory allocated as inode %d", ErrCorrupted, root.number)
	}
	fs.cwd = root

	if err := fs.Sync(); err != nil {
		return nil, err
	}
	return fs, nil
}

// Open reads an existing GeeFS image from b and returns it opened at the root
func Open(b backend.Storage, opts ...Option) (*FileSystem, error) {
	if b == nil {
		return nil, errors.New("storage is nil")
	}
	fs := newFileSystem(b, opts)

	sbBytes := make([]byte, superblockSize)
	if err := fs.readAt(sbBytes, 0); err != nil {
		return nil, fmt.Errorf("could not read superblock bytes: %w", err)
	}
	sb, err := superblockFromBytes(sbBytes)
	if err != nil {
		return nil, fmt.Errorf("could not interpret superblock data: %w", err)
	}
	if sb.magic != MagicNumber {
		return nil, fmt.Errorf("%w: found %#x, expected %#x", ErrBadMagic, sb.magic, MagicNumber)
	}
	if sb.headerSize != superblockSize {
		return nil, fmt.Errorf("%w: superblock header size %d, expected %d", ErrInvalidGeometry, sb.headerSize, superblockSize)
	}
	if err := sb.validate(); err != nil {
		return nil, err
	}
	if size := b.Size(); size < sb.imageSize() {
		return nil, fmt.Errorf("%w: storage holds %d bytes, image needs %d", ErrInvalidGeometry, size, sb.imageSize())
	}
	fs.superblock = sb

	root, err := fs.readInode(rootInode)
	if err != nil {
		return nil, fmt.Errorf("could not read root directory: %w", err)
	}
	if root.fileType != inodeTypeDirectory {
		return nil, fmt.Errorf("%w: root inode has type %s", ErrCorrupted, root.fileType)
	}
	fs.cwd = root
	fs.log.WithFields(logrus.Fields{
		"blocksize":   sb.blockSize,
		"freemaps":    sb.freeMapNum,
		"inodeblocks": sb.inodeBlkNum,
	}).Debug("opened image")
	return fs, nil
}

// Sync flushes all modifications to the storage
func (fs *FileSystem) Sync() error {
	if err := fs.backend.Sync(); err != nil {
		return fmt.Errorf("%w: could not sync storage: %w", ErrIO, err)
	}
	return nil
}

// Close syncs the image. The storage itself stays open and belongs to the caller.
func (fs *FileSystem) Close() error {
	return fs.Sync()
}

// BlockSize returns the block size of the image in bytes
func (fs *FileSystem) BlockSize() uint32 {
	return fs.superblock.blockSize
}

// CurrentPath returns the path of the current directory, "/" at the root
func (fs *FileSystem) CurrentPath() string {
	return "/" + strings.Join(fs.path, "/")
}

// ChangeDir makes the directory name, inside the current directory, the new
// current directory. ".." moves to the parent and "." stays put.
func (fs *FileSystem) ChangeDir(name string) error {
	_, in, err := fs.lookup(fs.cwd, name)
	if err != nil {
		return err
	}
	if in.fileType != inodeTypeDirectory {
		return fmt.Errorf("%w: %s", ErrNotDir, name)
	}
	fs.cwd = in
	switch name {
	case dotName:
	case dotDotName:
		if len(fs.path) > 0 {
			fs.path = fs.path[:len(fs.path)-1]
		}
	default:
		fs.path = append(fs.path, name)
	}
	return nil
}

// CreateFile creates an empty file in the current directory
func (fs *FileSystem) CreateFile(name string) error {
	if err := fs.checkNewEntry(fs.cwd, name); err != nil {
		return err
	}
	id, err := fs.allocateInode(inodeTypeFile)
	if err != nil {
		return fmt.Errorf("could not allocate inode for file %s: %w", name, err)
	}
	// an inode orphaned by a failure here is not reclaimed
	if err := fs.insertEntry(fs.cwd, id, name); err != nil {
		return fmt.Errorf("could not add entry for file %s: %w", name, err)
	}
	return nil
}

// MakeDir creates an empty directory in the current directory
func (fs *FileSystem) MakeDir(name string) error {
	if err := fs.checkNewEntry(fs.cwd, name); err != nil {
		return err
	}
	dir, err := fs.makeDirInode(fs.cwd.number)
	if err != nil {
		return fmt.Errorf("could not create directory %s: %w", name, err)
	}
	if err := fs.insertEntry(fs.cwd, dir.number, name); err != nil {
		return fmt.Errorf("could not add entry for directory %s: %w", name, err)
	}
	return nil
}

// makeDirInode allocates a directory inode with one data block holding "." and
// "..". For the root, parent is the root itself.
func (fs *FileSystem) makeDirInode(parent uint32) (*inode, error) {
	block, err := fs.newBlock()
	if err != nil {
		return nil, err
	}
	id, err := fs.allocateInode(inodeTypeDirectory)
	if err != nil {
		if ferr := fs.freeDataBlock(block); ferr != nil {
			return nil, errors.Join(err, ferr)
		}
		return nil, err
	}
	if parent == rootInode && id == rootInode {
		parent = id
	}
	dir := &inode{
		number:   id,
		fileType: inodeTypeDirectory,
		size:     2 * entrySize,
		blocks:   1,
	}
	dir.direct[0] = block
	if err := fs.initDirBlock(block, id, parent); err != nil {
		return nil, err
	}
	if err := fs.writeInode(dir); err != nil {
		return nil, err
	}
	return dir, nil
}
