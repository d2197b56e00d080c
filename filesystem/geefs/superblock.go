package geefs

import (
	"fmt"
	"math"
)

const (
	// MagicNumber identifies a GeeFS image, stored in the first 4 bytes of block 0
	MagicNumber uint32 = 0x9eef5000

	superblockSize = 20
	// free map blocks and inode blocks both start with a single unused counter
	blockHeaderSize = 4
	inodeSize       = 68
	entrySize       = 32
	pointerSize     = 4

	directBlocks = 12
	// fileNameLength is the size of the on-disk name buffer, including the NUL
	fileNameLength = 28
	// MaxNameLength is the longest name a directory entry can hold
	MaxNameLength = fileNameLength - 1

	rootInode uint32 = 0
)

// superblock is the in-memory copy of block 0. It is written once, at creation.
type superblock struct {
	magic       uint32
	headerSize  uint32
	blockSize   uint32
	freeMapNum  uint32
	inodeBlkNum uint32
}

func (sb *superblock) equal(o *superblock) bool {
	if (sb == nil && o != nil) || (o == nil && sb != nil) {
		return false
	}
	if sb == nil && o == nil {
		return true
	}
	return *sb == *o
}

func superblockFromBytes(b []byte) (*superblock, error) {
	sb := &superblock{}
	var (
		offset int
		err    error
	)
	if offset, err = toUint32(b, offset, &sb.magic); err != nil {
		return nil, fmt.Errorf("failed to deserialize magic number: %w", err)
	}
	if offset, err = toUint32(b, offset, &sb.headerSize); err != nil {
		return nil, fmt.Errorf("failed to deserialize header size: %w", err)
	}
	if offset, err = toUint32(b, offset, &sb.blockSize); err != nil {
		return nil, fmt.Errorf("failed to deserialize block size: %w", err)
	}
	if offset, err = toUint32(b, offset, &sb.freeMapNum); err != nil {
		return nil, fmt.Errorf("failed to deserialize free map count: %w", err)
	}
	if _, err = toUint32(b, offset, &sb.inodeBlkNum); err != nil {
		return nil, fmt.Errorf("failed to deserialize inode block count: %w", err)
	}
	return sb, nil
}

func (sb *superblock) toBytes() []byte {
	b := make([]byte, superblockSize)
	offset := putUint32(b, 0, sb.magic)
	offset = putUint32(b, offset, sb.headerSize)
	offset = putUint32(b, offset, sb.blockSize)
	offset = putUint32(b, offset, sb.freeMapNum)
	putUint32(b, offset, sb.inodeBlkNum)
	return b
}

// validate checks that the geometry can hold the headers, at least one inode and
// the two entries of a directory, and that every block number fits in 32 bits.
func (sb *superblock) validate() error {
	switch {
	case sb.blockSize < superblockSize:
		return fmt.Errorf("%w: block size %d cannot hold the %d byte superblock", ErrInvalidGeometry, sb.blockSize, superblockSize)
	case sb.blockSize-blockHeaderSize < inodeSize:
		return fmt.Errorf("%w: block size %d cannot hold a single inode", ErrInvalidGeometry, sb.blockSize)
	case sb.blockSize < 2*entrySize:
		return fmt.Errorf("%w: block size %d cannot hold the two entries of a directory", ErrInvalidGeometry, sb.blockSize)
	case sb.freeMapNum == 0:
		return fmt.Errorf("%w: at least one free map block is required", ErrInvalidGeometry)
	case sb.inodeBlkNum == 0:
		return fmt.Errorf("%w: at least one inode block is required", ErrInvalidGeometry)
	}
	if total := sb.totalBlocks(); total > math.MaxUint32 {
		return fmt.Errorf("%w: %d blocks do not fit 32-bit block numbers", ErrInvalidGeometry, total)
	}
	return nil
}

// bitsPerFreeMap is the number of data blocks tracked by one free map block
func (sb *superblock) bitsPerFreeMap() uint32 {
	return (sb.blockSize - blockHeaderSize) * 8
}

// dataBlocks is the number of data blocks, i.e. the capacity of all free maps
func (sb *superblock) dataBlocks() uint64 {
	return uint64(sb.bitsPerFreeMap()) * uint64(sb.freeMapNum)
}

// dataStart is the global block number of the first data block
func (sb *superblock) dataStart() uint32 {
	return 1 + sb.freeMapNum + sb.inodeBlkNum
}

func (sb *superblock) totalBlocks() uint64 {
	return 1 + uint64(sb.freeMapNum) + uint64(sb.inodeBlkNum) + sb.dataBlocks()
}

// imageSize is the exact number of bytes an image with this geometry occupies
func (sb *superblock) imageSize() int64 {
	return int64(sb.totalBlocks()) * int64(sb.blockSize)
}

func (sb *superblock) inodesPerBlock() uint32 {
	return (sb.blockSize - blockHeaderSize) / inodeSize
}

func (sb *superblock) inodeCount() uint32 {
	return sb.inodesPerBlock() * sb.inodeBlkNum
}

func (sb *superblock) entriesPerBlock() uint32 {
	return sb.blockSize / entrySize
}

func (sb *superblock) pointersPerBlock() uint32 {
	return sb.blockSize / pointerSize
}

// maxBlocksPerInode is the direct, single and double indirect capacity of one inode
func (sb *superblock) maxBlocksPerInode() uint64 {
	ppb := uint64(sb.pointersPerBlock())
	return directBlocks + ppb + ppb*ppb
}

func (sb *superblock) blockByteLocation(block uint32) int64 {
	return int64(block) * int64(sb.blockSize)
}

func (sb *superblock) freeMapByteLocation(i uint32) int64 {
	return sb.blockByteLocation(1 + i)
}

func (sb *superblock) inodeBlockByteLocation(i uint32) int64 {
	return sb.blockByteLocation(1 + sb.freeMapNum + i)
}
