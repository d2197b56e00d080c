package geefs

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/bits"

	"github.com/sirupsen/logrus"
)

// firstZeroBit finds the first clear bit, scanning bytes in order and bits
// most significant first. Returns the byte and the bit position from the MSB.
func firstZeroBit(bm []byte) (int, int, bool) {
	for i, b := range bm {
		if b == 0xff {
			continue
		}
		return i, bits.LeadingZeros8(^b), true
	}
	return 0, 0, false
}

func countZeroBits(bm []byte) uint32 {
	var n int
	for _, b := range bm {
		n += 8 - bits.OnesCount8(b)
	}
	return uint32(n)
}

// allocateDataBlock takes the first free data block, marks it used in its free
// map and returns its global block number. The block content is left as is.
func (fs *FileSystem) allocateDataBlock() (uint32, error) {
	sb := fs.superblock
	bm := make([]byte, sb.blockSize-blockHeaderSize)
	for i := uint32(0); i < sb.freeMapNum; i++ {
		offset := sb.freeMapByteLocation(i)
		unused, err := fs.readUint32(offset)
		if err != nil {
			return 0, fmt.Errorf("could not read free map header %d: %w", i, err)
		}
		if unused == 0 {
			continue
		}
		if err := fs.readAt(bm, offset+blockHeaderSize); err != nil {
			return 0, fmt.Errorf("could not read free map %d: %w", i, err)
		}
		byteIdx, bit, ok := firstZeroBit(bm)
		if !ok {
			return 0, fmt.Errorf("%w: free map %d claims %d unused blocks but its bitmap is full", ErrCorrupted, i, unused)
		}
		if err := fs.writeUint32(unused-1, offset); err != nil {
			return 0, fmt.Errorf("could not write free map header %d: %w", i, err)
		}
		bm[byteIdx] |= 0x80 >> bit
		if err := fs.writeAt(bm[byteIdx:byteIdx+1], offset+blockHeaderSize+int64(byteIdx)); err != nil {
			return 0, fmt.Errorf("could not write free map %d: %w", i, err)
		}
		block := sb.dataStart() + i*sb.bitsPerFreeMap() + uint32(byteIdx)*8 + uint32(bit)
		fs.log.WithFields(logrus.Fields{"block": block, "freemap": i}).Debug("allocated data block")
		return block, nil
	}
	return 0, fmt.Errorf("%w: no free data blocks", ErrNoSpace)
}

// freeDataBlock returns block to its free map
func (fs *FileSystem) freeDataBlock(block uint32) error {
	sb := fs.superblock
	if block < sb.dataStart() || uint64(block-sb.dataStart()) >= sb.dataBlocks() {
		return fmt.Errorf("%w: block %d is not a data block", ErrCorrupted, block)
	}
	idx := block - sb.dataStart()
	i, bit := idx/sb.bitsPerFreeMap(), idx%sb.bitsPerFreeMap()
	offset := sb.freeMapByteLocation(i)
	byteOffset := offset + blockHeaderSize + int64(bit/8)
	mask := byte(0x80) >> (bit % 8)

	var b [1]byte
	if err := fs.readAt(b[:], byteOffset); err != nil {
		return fmt.Errorf("could not read free map %d: %w", i, err)
	}
	if b[0]&mask == 0 {
		return fmt.Errorf("%w: freeing block %d which is not allocated", ErrCorrupted, block)
	}
	unused, err := fs.readUint32(offset)
	if err != nil {
		return fmt.Errorf("could not read free map header %d: %w", i, err)
	}
	if unused >= sb.bitsPerFreeMap() {
		return fmt.Errorf("%w: free map %d claims %d unused blocks with block %d allocated", ErrCorrupted, i, unused, block)
	}
	b[0] &^= mask
	if err := fs.writeAt(b[:], byteOffset); err != nil {
		return fmt.Errorf("could not write free map %d: %w", i, err)
	}
	if err := fs.writeUint32(unused+1, offset); err != nil {
		return fmt.Errorf("could not write free map header %d: %w", i, err)
	}
	fs.log.WithFields(logrus.Fields{"block": block, "freemap": i}).Debug("freed data block")
	return nil
}

// newBlock allocates a data block and zeroes it
func (fs *FileSystem) newBlock() (uint32, error) {
	block, err := fs.allocateDataBlock()
	if err != nil {
		return 0, err
	}
	if err := fs.writeAt(make([]byte, fs.superblock.blockSize), fs.superblock.blockByteLocation(block)); err != nil {
		return 0, fmt.Errorf("could not zero block %d: %w", block, err)
	}
	return block, nil
}

// allocateInode takes the first unused inode slot and immediately records it
// with type t, so the same slot is never handed out twice
func (fs *FileSystem) allocateInode(t inodeType) (uint32, error) {
	sb := fs.superblock
	ipb := sb.inodesPerBlock()
	buf := make([]byte, ipb*inodeSize)
	for i := uint32(0); i < sb.inodeBlkNum; i++ {
		offset := sb.inodeBlockByteLocation(i)
		unused, err := fs.readUint32(offset)
		if err != nil {
			return 0, fmt.Errorf("could not read inode block header %d: %w", i, err)
		}
		if unused == 0 {
			continue
		}
		if err := fs.readAt(buf, offset+blockHeaderSize); err != nil {
			return 0, fmt.Errorf("could not read inode block %d: %w", i, err)
		}
		slot := -1
		for j := uint32(0); j < ipb; j++ {
			if inodeType(binary.LittleEndian.Uint32(buf[j*inodeSize:])) == inodeTypeUnused {
				slot = int(j)
				break
			}
		}
		if slot < 0 {
			return 0, fmt.Errorf("%w: inode block %d claims %d unused inodes but has none", ErrCorrupted, i, unused)
		}
		if err := fs.writeUint32(unused-1, offset); err != nil {
			return 0, fmt.Errorf("could not write inode block header %d: %w", i, err)
		}
		id := i*ipb + uint32(slot)
		if err := fs.writeInode(&inode{number: id, fileType: t}); err != nil {
			return 0, err
		}
		fs.log.WithFields(logrus.Fields{"inode": id, "type": t}).Debug("allocated inode")
		return id, nil
	}
	return 0, fmt.Errorf("%w: no free inodes available", ErrNoSpace)
}

// freeInode marks inode id unused. Its blocks must already have been released.
func (fs *FileSystem) freeInode(id uint32) error {
	if id == rootInode {
		return fmt.Errorf("%w: cannot free the root inode", ErrInvalidArgument)
	}
	in, err := fs.readInode(id)
	if err != nil {
		return err
	}
	if in.fileType == inodeTypeUnused {
		return fmt.Errorf("%w: freeing inode %d which is not in use", ErrCorrupted, id)
	}
	sb := fs.superblock
	offset := sb.inodeBlockByteLocation(id / sb.inodesPerBlock())
	unused, err := fs.readUint32(offset)
	if err != nil {
		return fmt.Errorf("could not read inode block header: %w", err)
	}
	if unused >= sb.inodesPerBlock() {
		return fmt.Errorf("%w: inode block header claims %d unused inodes with inode %d in use", ErrCorrupted, unused, id)
	}
	if err := fs.writeInode(&inode{number: id}); err != nil {
		return err
	}
	if err := fs.writeUint32(unused+1, offset); err != nil {
		return fmt.Errorf("could not write inode block header: %w", err)
	}
	fs.log.WithField("inode", id).Debug("freed inode")
	return nil
}

// Usage reports free and total data blocks and inodes, as recorded in the block headers
type Usage struct {
	BlockSize   uint32
	TotalBlocks uint64
	FreeBlocks  uint64
	TotalInodes uint32
	FreeInodes  uint32
}

// Usage sums the free map and inode block headers
func (fs *FileSystem) Usage() (Usage, error) {
	sb := fs.superblock
	u := Usage{
		BlockSize:   sb.blockSize,
		TotalBlocks: sb.dataBlocks(),
		TotalInodes: sb.inodeCount(),
	}
	for i := uint32(0); i < sb.freeMapNum; i++ {
		unused, err := fs.readUint32(sb.freeMapByteLocation(i))
		if err != nil {
			return Usage{}, fmt.Errorf("could not read free map header %d: %w", i, err)
		}
		u.FreeBlocks += uint64(unused)
	}
	for i := uint32(0); i < sb.inodeBlkNum; i++ {
		unused, err := fs.readUint32(sb.inodeBlockByteLocation(i))
		if err != nil {
			return Usage{}, fmt.Errorf("could not read inode block header %d: %w", i, err)
		}
		u.FreeInodes += unused
	}
	return u, nil
}

// Check verifies that every free map header matches the zero bits of its bitmap
// and every inode block header matches its unused slots. All mismatches are
// reported, each wrapping ErrCorrupted.
func (fs *FileSystem) Check() error {
	sb := fs.superblock
	var errs []error
	block := make([]byte, sb.blockSize)
	for i := uint32(0); i < sb.freeMapNum; i++ {
		if err := fs.readAt(block, sb.freeMapByteLocation(i)); err != nil {
			return fmt.Errorf("could not read free map %d: %w", i, err)
		}
		unused := binary.LittleEndian.Uint32(block)
		if zeros := countZeroBits(block[blockHeaderSize:]); zeros != unused {
			errs = append(errs, fmt.Errorf("%w: free map %d header says %d unused, bitmap has %d", ErrCorrupted, i, unused, zeros))
		}
	}
	ipb := sb.inodesPerBlock()
	for i := uint32(0); i < sb.inodeBlkNum; i++ {
		if err := fs.readAt(block, sb.inodeBlockByteLocation(i)); err != nil {
			return fmt.Errorf("could not read inode block %d: %w", i, err)
		}
		unused := binary.LittleEndian.Uint32(block)
		var free uint32
		for j := uint32(0); j < ipb; j++ {
			if inodeType(binary.LittleEndian.Uint32(block[blockHeaderSize+j*inodeSize:])) == inodeTypeUnused {
				free++
			}
		}
		if free != unused {
			errs = append(errs, fmt.Errorf("%w: inode block %d header says %d unused, table has %d", ErrCorrupted, i, unused, free))
		}
	}
	return errors.Join(errs...)
}
