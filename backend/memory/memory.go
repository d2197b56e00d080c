// Package memory provides a backend.Storage kept entirely in a byte slice.
package memory

import (
	"fmt"

	"github.com/maxxsoft/geefs/backend"
)

// Storage implements backend.Storage over an in-memory buffer
type Storage struct {
	data []byte
}

var _ backend.Storage = (*Storage)(nil)

// New returns an empty in-memory storage. Call Resize before use.
func New() *Storage {
	return &Storage{}
}

// FromBytes wraps b as storage. The slice is used directly, not copied.
func FromBytes(b []byte) *Storage {
	return &Storage{data: b}
}

// Bytes returns the underlying buffer
func (m *Storage) Bytes() []byte {
	return m.data
}

func (m *Storage) Size() int64 {
	return int64(len(m.data))
}

func (m *Storage) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off >= int64(len(m.data)) {
		return 0, fmt.Errorf("%w: read at %d, size %d", backend.ErrOutOfRange, off, len(m.data))
	}
	n := copy(p, m.data[off:])
	if n < len(p) {
		return n, fmt.Errorf("%w: read %d bytes at %d, size %d", backend.ErrOutOfRange, len(p), off, len(m.data))
	}
	return n, nil
}

func (m *Storage) WriteAt(p []byte, off int64) (int, error) {
	if off < 0 || off >= int64(len(m.data)) {
		return 0, fmt.Errorf("%w: write at %d, size %d", backend.ErrOutOfRange, off, len(m.data))
	}
	n := copy(m.data[off:], p)
	if n < len(p) {
		return n, fmt.Errorf("%w: write %d bytes at %d, size %d", backend.ErrOutOfRange, len(p), off, len(m.data))
	}
	return n, nil
}

func (m *Storage) Resize(size int64) error {
	if size < 0 {
		return fmt.Errorf("invalid storage size %d", size)
	}
	if size <= int64(cap(m.data)) {
		old := len(m.data)
		m.data = m.data[:size]
		if int(size) > old {
			clear(m.data[old:])
		}
		return nil
	}
	data := make([]byte, size)
	copy(data, m.data)
	m.data = data
	return nil
}

func (m *Storage) Sync() error {
	return nil
}
