package geefs

import (
	"errors"
	"testing"

	"github.com/go-test/deep"
)

func TestInodeBytes(t *testing.T) {
	in := &inode{
		number:    9,
		fileType:  inodeTypeFile,
		size:      0x1234,
		blocks:    14,
		direct:    [directBlocks]uint32{10, 11, 12, 13, 14, 15, 16, 17, 18, 19, 20, 21},
		indirect:  22,
		indirect2: 0,
	}
	b := in.toBytes()
	if len(b) != inodeSize {
		t.Fatalf("toBytes() returned %d bytes, expected %d", len(b), inodeSize)
	}
	// type, size and block count lead the record, indirect pointers close it
	if b[0] != 1 || b[4] != 0x34 || b[5] != 0x12 || b[8] != 14 || b[12] != 10 || b[60] != 22 {
		t.Errorf("unexpected layout: % x", b)
	}
	parsed, err := inodeFromBytes(b, 9)
	if err != nil {
		t.Fatalf("inodeFromBytes() unexpected error: %v", err)
	}
	deep.CompareUnexportedFields = true
	if diff := deep.Equal(parsed, in); diff != nil {
		t.Errorf("inodeFromBytes() = %v", diff)
	}
	if _, err := inodeFromBytes(b[:40], 9); err == nil {
		t.Errorf("inodeFromBytes() on short input returned no error")
	}
}

func TestInodeByteLocation(t *testing.T) {
	fs, _ := testCreate(t, &Params{BlockSize: 128, FreeMapBlocks: 1, InodeBlocks: 2})
	tests := []struct {
		id       uint32
		expected int64
	}{
		{0, 2*128 + 4},
		{1, 3*128 + 4},
	}
	for _, tt := range tests {
		got, err := fs.inodeByteLocation(tt.id)
		if err != nil {
			t.Fatalf("inodeByteLocation(%d) unexpected error: %v", tt.id, err)
		}
		if got != tt.expected {
			t.Errorf("inodeByteLocation(%d) = %d, expected %d", tt.id, got, tt.expected)
		}
	}
	if _, err := fs.inodeByteLocation(2); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("inodeByteLocation(2) = %v, expected %v", err, ErrOutOfRange)
	}

	fs, _ = testCreate(t, &Params{BlockSize: 512, FreeMapBlocks: 1, InodeBlocks: 2})
	// 7 inodes per block: inode 8 is the second slot of the second inode block
	got, err := fs.inodeByteLocation(8)
	if err != nil {
		t.Fatalf("inodeByteLocation(8) unexpected error: %v", err)
	}
	if expected := int64(3*512 + 4 + 68); got != expected {
		t.Errorf("inodeByteLocation(8) = %d, expected %d", got, expected)
	}
}

func TestReadWriteInode(t *testing.T) {
	fs, _ := testCreate(t, &Params{BlockSize: 512, FreeMapBlocks: 1, InodeBlocks: 2})
	id, err := fs.allocateInode(inodeTypeFile)
	if err != nil {
		t.Fatalf("allocateInode() unexpected error: %v", err)
	}
	in, err := fs.readInode(id)
	if err != nil {
		t.Fatalf("readInode(%d) unexpected error: %v", id, err)
	}
	if diff := deep.Equal(in, &inode{number: id, fileType: inodeTypeFile}); diff != nil {
		t.Errorf("freshly allocated inode: %v", diff)
	}
	in.size = 5
	in.blocks = 1
	in.direct[0] = 1234
	if err := fs.writeInode(in); err != nil {
		t.Fatalf("writeInode() unexpected error: %v", err)
	}
	reread, err := fs.readInode(id)
	if err != nil {
		t.Fatalf("readInode(%d) unexpected error: %v", id, err)
	}
	if !reread.equal(in) {
		t.Errorf("readInode() = %+v, expected %+v", reread, in)
	}
}
