// Package backend defines the storage contract a GeeFS image is laid out on.
//
// A Storage is a byte addressable, fixed size store. The filesystem never reads or
// writes past Size(), and grows the store exactly once, when an image is created.
package backend

import (
	"errors"
	"io"
)

var (
	// ErrOutOfRange is returned when a read or write starts at or past the end of the storage.
	ErrOutOfRange = errors.New("offset out of range")
	// ErrReadOnly is returned by writes against storage opened read-only.
	ErrReadOnly = errors.New("storage is read-only")
)

// Storage is the device a filesystem image lives on
type Storage interface {
	io.ReaderAt
	io.WriterAt
	// Size returns the current size of the storage in bytes
	Size() int64
	// Resize grows or shrinks the storage to exactly size bytes
	Resize(size int64) error
	// Sync flushes buffered writes to durable storage
	Sync() error
}
