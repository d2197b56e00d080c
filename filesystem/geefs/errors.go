package geefs

import (
	"errors"
	"fmt"
	"os"
)

var (
	// ErrInvalidGeometry is returned when the requested or recorded block size and
	// block counts cannot describe a usable image.
	ErrInvalidGeometry = errors.New("invalid filesystem geometry")
	// ErrBadMagic is returned when opening storage that does not hold a GeeFS image.
	ErrBadMagic = errors.New("not a GeeFS image: bad magic number")
	// ErrNameTooLong is returned for names longer than MaxNameLength bytes.
	ErrNameTooLong = errors.New("file name too long")
	// ErrInvalidName is returned for empty names, names containing '/' or NUL,
	// and for operations that may not target "." or "..".
	ErrInvalidName = errors.New("invalid file name")
	// ErrInvalidArgument is returned for negative offsets or lengths.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrIsDir is returned when a file operation targets a directory.
	ErrIsDir = errors.New("is a directory")
	// ErrNotEmpty is returned when removing a directory that still has entries.
	ErrNotEmpty = errors.New("directory not empty")

	// ErrNotFound is returned when a name does not exist in the current directory.
	ErrNotFound = fmt.Errorf("no such file or directory: %w", os.ErrNotExist)
	// ErrNotDir is returned when changing into something that is not a directory.
	ErrNotDir = fmt.Errorf("not a directory: %w", ErrNotFound)
	// ErrExist is returned when a name is already present in the current directory.
	ErrExist = fmt.Errorf("file exists: %w", os.ErrExist)

	// ErrNoSpace is returned when no free data block or inode is left.
	ErrNoSpace = errors.New("no space left on device")
	// ErrFileTooLarge is returned when a file would outgrow its addressable blocks
	// or the 32-bit size field.
	ErrFileTooLarge = errors.New("file too large")
	// ErrOutOfRange is returned when addressing a block or inode past the end.
	ErrOutOfRange = errors.New("index out of range")

	// ErrIO wraps every failed or short read, write, resize or sync of the storage.
	ErrIO = errors.New("i/o error")
	// ErrCorrupted is returned when on-disk bookkeeping contradicts itself, e.g. a
	// free map header claims free blocks its bitmap does not have. It is not
	// recoverable; callers should stop using the image.
	ErrCorrupted = errors.New("filesystem corrupted")
)

// IsCorruption reports whether err signals on-disk corruption
func IsCorruption(err error) bool {
	return errors.Is(err, ErrCorrupted)
}
