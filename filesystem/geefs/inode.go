package geefs

import (
	"fmt"
)

type inodeType uint32

const (
	inodeTypeUnused    inodeType = 0
	inodeTypeFile      inodeType = 1
	inodeTypeDirectory inodeType = 2
)

func (t inodeType) String() string {
	switch t {
	case inodeTypeUnused:
		return "unused"
	case inodeTypeFile:
		return "file"
	case inodeTypeDirectory:
		return "directory"
	default:
		return fmt.Sprintf("unknown(%d)", uint32(t))
	}
}

// inode is a single inode record. number is its id and is not stored on disk;
// it follows from the position of the record in the inode table.
type inode struct {
	number    uint32
	fileType  inodeType
	size      uint32
	blocks    uint32
	direct    [directBlocks]uint32
	indirect  uint32
	indirect2 uint32
}

func (in *inode) equal(o *inode) bool {
	if (in == nil && o != nil) || (o == nil && in != nil) {
		return false
	}
	if in == nil && o == nil {
		return true
	}
	return *in == *o
}

func inodeFromBytes(b []byte, number uint32) (*inode, error) {
	in := &inode{number: number}
	var (
		offset int
		err    error
		t      uint32
	)
	if offset, err = toUint32(b, offset, &t); err != nil {
		return nil, fmt.Errorf("failed to deserialize inode type: %w", err)
	}
	in.fileType = inodeType(t)
	if offset, err = toUint32(b, offset, &in.size); err != nil {
		return nil, fmt.Errorf("failed to deserialize inode size: %w", err)
	}
	if offset, err = toUint32(b, offset, &in.blocks); err != nil {
		return nil, fmt.Errorf("failed to deserialize block count: %w", err)
	}
	for i := range in.direct {
		if offset, err = toUint32(b, offset, &in.direct[i]); err != nil {
			return nil, fmt.Errorf("failed to deserialize direct block %d: %w", i, err)
		}
	}
	if offset, err = toUint32(b, offset, &in.indirect); err != nil {
		return nil, fmt.Errorf("failed to deserialize indirect block: %w", err)
	}
	if _, err = toUint32(b, offset, &in.indirect2); err != nil {
		return nil, fmt.Errorf("failed to deserialize double indirect block: %w", err)
	}
	return in, nil
}

func (in *inode) toBytes() []byte {
	b := make([]byte, inodeSize)
	offset := putUint32(b, 0, uint32(in.fileType))
	offset = putUint32(b, offset, in.size)
	offset = putUint32(b, offset, in.blocks)
	for _, d := range in.direct {
		offset = putUint32(b, offset, d)
	}
	offset = putUint32(b, offset, in.indirect)
	putUint32(b, offset, in.indirect2)
	return b
}

// inodeByteLocation is where inode id lives: its inode block, past the block
// header, at its slot
func (fs *FileSystem) inodeByteLocation(id uint32) (int64, error) {
	sb := fs.superblock
	if id >= sb.inodeCount() {
		return 0, fmt.Errorf("%w: inode %d, image has %d inodes", ErrOutOfRange, id, sb.inodeCount())
	}
	ipb := sb.inodesPerBlock()
	return sb.inodeBlockByteLocation(id/ipb) + blockHeaderSize + int64(id%ipb)*inodeSize, nil
}

// readInode read a single inode from disk
func (fs *FileSystem) readInode(id uint32) (*inode, error) {
	offset, err := fs.inodeByteLocation(id)
	if err != nil {
		return nil, err
	}
	b := make([]byte, inodeSize)
	if err := fs.readAt(b, offset); err != nil {
		return nil, fmt.Errorf("failed to read inode %d: %w", id, err)
	}
	in, err := inodeFromBytes(b, id)
	if err != nil {
		return nil, fmt.Errorf("could not interpret inode data: %w", err)
	}
	return in, nil
}

// writeInode write a single inode to disk
func (fs *FileSystem) writeInode(in *inode) error {
	offset, err := fs.inodeByteLocation(in.number)
	if err != nil {
		return err
	}
	if err := fs.writeAt(in.toBytes(), offset); err != nil {
		return fmt.Errorf("failed to write inode %d: %w", in.number, err)
	}
	return nil
}
