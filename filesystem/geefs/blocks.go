package geefs

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
)

type blockTier uint8

const (
	tierDirect blockTier = iota
	tierIndirect
	tierDoubleIndirect
	tierOutOfRange
)

// blockPos locates a logical block of an inode. For the direct and single
// indirect tiers only inner is used; for the double indirect tier outer is the
// slot in the inode's indirect2 block and inner the slot in the block it names.
type blockPos struct {
	tier  blockTier
	outer uint32
	inner uint32
}

func (sb *superblock) blockPosition(n uint32) blockPos {
	if n < directBlocks {
		return blockPos{tier: tierDirect, inner: n}
	}
	ppb := uint64(sb.pointersPerBlock())
	rel := uint64(n) - directBlocks
	if rel < ppb {
		return blockPos{tier: tierIndirect, inner: uint32(rel)}
	}
	rel -= ppb
	if rel < ppb*ppb {
		return blockPos{tier: tierDoubleIndirect, outer: uint32(rel / ppb), inner: uint32(rel % ppb)}
	}
	return blockPos{tier: tierOutOfRange}
}

func (fs *FileSystem) pointerLocation(container, slot uint32) int64 {
	return fs.superblock.blockByteLocation(container) + int64(slot)*pointerSize
}

func (fs *FileSystem) readPointer(container, slot uint32) (uint32, error) {
	p, err := fs.readUint32(fs.pointerLocation(container, slot))
	if err != nil {
		return 0, fmt.Errorf("reading indirect block %d at entry %d: %w", container, slot, err)
	}
	return p, nil
}

func (fs *FileSystem) writePointer(container, slot, block uint32) error {
	if err := fs.writeUint32(block, fs.pointerLocation(container, slot)); err != nil {
		return fmt.Errorf("writing indirect block %d at entry %d: %w", container, slot, err)
	}
	return nil
}

// blockOffset returns the global block number of the n-th block of in
func (fs *FileSystem) blockOffset(in *inode, n uint32) (uint32, error) {
	if n >= in.blocks {
		return 0, fmt.Errorf("%w: block %d of inode %d, which has %d blocks", ErrOutOfRange, n, in.number, in.blocks)
	}
	pos := fs.superblock.blockPosition(n)
	switch pos.tier {
	case tierDirect:
		return in.direct[pos.inner], nil
	case tierIndirect:
		return fs.readPointer(in.indirect, pos.inner)
	case tierDoubleIndirect:
		outer, err := fs.readPointer(in.indirect2, pos.outer)
		if err != nil {
			return 0, err
		}
		return fs.readPointer(outer, pos.inner)
	default:
		return 0, fmt.Errorf("%w: block %d of inode %d is past the double indirect range", ErrOutOfRange, n, in.number)
	}
}

// appendBlock makes block the next logical block of in, allocating the single
// or double indirect containers the first time a tier or inner block is needed.
// The inode is updated in memory only; callers persist it.
func (fs *FileSystem) appendBlock(in *inode, block uint32) (err error) {
	pos := fs.superblock.blockPosition(in.blocks)

	// containers allocated by this call, released again if a later step fails
	var fresh []uint32
	defer func() {
		if err == nil {
			return
		}
		for _, b := range fresh {
			if ferr := fs.freeDataBlock(b); ferr != nil {
				err = errors.Join(err, ferr)
			}
		}
	}()
	container := func() (uint32, error) {
		b, err := fs.newBlock()
		if err != nil {
			return 0, fmt.Errorf("could not allocate indirect block for inode %d: %w", in.number, err)
		}
		fresh = append(fresh, b)
		fs.log.WithFields(logrus.Fields{"inode": in.number, "block": b}).Debug("allocated indirect block")
		return b, nil
	}

	switch pos.tier {
	case tierDirect:
		in.direct[pos.inner] = block
	case tierIndirect:
		indirect := in.indirect
		if pos.inner == 0 {
			if indirect, err = container(); err != nil {
				return err
			}
		}
		if err = fs.writePointer(indirect, pos.inner, block); err != nil {
			return err
		}
		in.indirect = indirect
	case tierDoubleIndirect:
		outer := in.indirect2
		if pos.outer == 0 && pos.inner == 0 {
			if outer, err = container(); err != nil {
				return err
			}
		}
		var inner uint32
		if pos.inner == 0 {
			if inner, err = container(); err != nil {
				return err
			}
			if err = fs.writePointer(outer, pos.outer, inner); err != nil {
				return err
			}
		} else if inner, err = fs.readPointer(outer, pos.outer); err != nil {
			return err
		}
		if err = fs.writePointer(inner, pos.inner, block); err != nil {
			return err
		}
		in.indirect2 = outer
	default:
		return fmt.Errorf("%w: inode %d already has the maximum of %d blocks", ErrFileTooLarge, in.number, in.blocks)
	}
	in.blocks++
	return nil
}

// popBlock removes and frees the last logical block of in, together with any
// indirect container left empty. The inode is updated in memory only.
func (fs *FileSystem) popBlock(in *inode) (uint32, error) {
	if in.blocks == 0 {
		return 0, fmt.Errorf("%w: inode %d has no blocks", ErrOutOfRange, in.number)
	}
	last := in.blocks - 1
	block, err := fs.blockOffset(in, last)
	if err != nil {
		return 0, err
	}
	pos := fs.superblock.blockPosition(last)
	switch pos.tier {
	case tierDirect:
		in.direct[pos.inner] = 0
	case tierIndirect:
		if pos.inner == 0 {
			if err := fs.freeDataBlock(in.indirect); err != nil {
				return 0, err
			}
			in.indirect = 0
		}
	case tierDoubleIndirect:
		if pos.inner == 0 {
			inner, err := fs.readPointer(in.indirect2, pos.outer)
			if err != nil {
				return 0, err
			}
			if err := fs.freeDataBlock(inner); err != nil {
				return 0, err
			}
			if pos.outer == 0 {
				if err := fs.freeDataBlock(in.indirect2); err != nil {
					return 0, err
				}
				in.indirect2 = 0
			}
		}
	}
	in.blocks--
	if err := fs.freeDataBlock(block); err != nil {
		return 0, err
	}
	return block, nil
}

// growTo appends zeroed blocks until in has count blocks
func (fs *FileSystem) growTo(in *inode, count uint32) error {
	for in.blocks < count {
		if uint64(in.blocks) >= fs.superblock.maxBlocksPerInode() {
			return fmt.Errorf("%w: inode %d cannot address more than %d blocks", ErrFileTooLarge, in.number, fs.superblock.maxBlocksPerInode())
		}
		block, err := fs.newBlock()
		if err != nil {
			return err
		}
		if err := fs.appendBlock(in, block); err != nil {
			if ferr := fs.freeDataBlock(block); ferr != nil {
				return errors.Join(err, ferr)
			}
			return err
		}
	}
	return nil
}
