package geefs

import (
	"encoding/binary"
	"fmt"
	"io"
)

func toUint32(b []byte, start int, to *uint32) (int, error) {
	if len(b) < start+4 {
		return 0, fmt.Errorf("%w: expected at least %d bytes, received: %d", io.EOF, start+4, len(b))
	}
	*to = binary.LittleEndian.Uint32(b[start:])
	return start + 4, nil
}

func putUint32(b []byte, start int, v uint32) int {
	binary.LittleEndian.PutUint32(b[start:start+4], v)
	return start + 4
}

// readAt reads exactly len(b) bytes at off, any failure or short read is an ErrIO
func (fs *FileSystem) readAt(b []byte, off int64) error {
	n, err := fs.backend.ReadAt(b, off)
	if err != nil {
		return fmt.Errorf("%w: could not read %d bytes at %d: %w", ErrIO, len(b), off, err)
	}
	if n != len(b) {
		return fmt.Errorf("%w: read %d bytes at %d instead of %d", ErrIO, n, off, len(b))
	}
	return nil
}

// writeAt writes all of b at off, any failure or short write is an ErrIO
func (fs *FileSystem) writeAt(b []byte, off int64) error {
	n, err := fs.backend.WriteAt(b, off)
	if err != nil {
		return fmt.Errorf("%w: could not write %d bytes at %d: %w", ErrIO, len(b), off, err)
	}
	if n != len(b) {
		return fmt.Errorf("%w: wrote %d bytes at %d instead of %d", ErrIO, n, off, len(b))
	}
	return nil
}

func (fs *FileSystem) readUint32(off int64) (uint32, error) {
	var b [4]byte
	if err := fs.readAt(b[:], off); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

func (fs *FileSystem) writeUint32(v uint32, off int64) error {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return fs.writeAt(b[:], off)
}
