package geefs

import (
	"bytes"
	"fmt"

	"github.com/elliotwutingfeng/asciiset"
)

const (
	dotName    = "."
	dotDotName = ".."
)

// bytes that may never appear in a name: '/' separates paths in the CLI and
// NUL terminates the on-disk name buffer
var invalidNameChars, _ = asciiset.MakeASCIISet("/\x00")

// directoryEntry is a single directory entry
type directoryEntry struct {
	inode    uint32
	filename string

	// position of the entry within its directory, not stored on disk
	index uint32
}

func (de *directoryEntry) equal(other *directoryEntry) bool {
	return de.inode == other.inode && de.filename == other.filename
}

func directoryEntryFromBytes(b []byte) (*directoryEntry, error) {
	de := &directoryEntry{}
	if err := de.UnmarshalGeeFS(b); err != nil {
		return nil, err
	}
	return de, nil
}

func (de *directoryEntry) UnmarshalGeeFS(b []byte) (err error) {
	var offset int
	if offset, err = toUint32(b, 0x0, &de.inode); err != nil {
		return fmt.Errorf("failed to deserialize inode: %w", err)
	}
	if len(b) < offset+fileNameLength {
		return fmt.Errorf("failed to deserialize file name: expected %d bytes, received: %d", offset+fileNameLength, len(b))
	}
	name := b[offset : offset+fileNameLength]
	if i := bytes.IndexByte(name, 0); i >= 0 {
		name = name[:i]
	}
	de.filename = string(name)
	return nil
}

func (de *directoryEntry) MarshalGeeFS(b []byte) error {
	if len(b) < entrySize {
		return fmt.Errorf("directory entry of bytes of length %d is too short for entry size %d", len(b), entrySize)
	}
	if len(de.filename) > MaxNameLength {
		return fmt.Errorf("%w: %q is %d bytes, max %d", ErrNameTooLong, de.filename, len(de.filename), MaxNameLength)
	}
	putUint32(b, 0x0, de.inode)
	n := copy(b[0x4:entrySize], de.filename)
	clear(b[0x4+n : entrySize])
	return nil
}

func (de *directoryEntry) toBytes() []byte {
	b := make([]byte, entrySize)
	_ = de.MarshalGeeFS(b)
	return b
}

// validateName checks a name can be stored in a directory entry
func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: name cannot be empty", ErrInvalidName)
	}
	if len(name) > MaxNameLength {
		return fmt.Errorf("%w: %q is %d bytes, max %d", ErrNameTooLong, name, len(name), MaxNameLength)
	}
	for i := 0; i < len(name); i++ {
		if invalidNameChars.Contains(name[i]) {
			return fmt.Errorf("%w: %q contains %q", ErrInvalidName, name, name[i])
		}
	}
	return nil
}
