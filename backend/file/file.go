// Package file provides a backend.Storage over a regular file or a block device.
package file

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/maxxsoft/geefs/backend"
)

// Storage implements backend.Storage over an *os.File
type Storage struct {
	f           *os.File
	size        int64
	readOnly    bool
	blockDevice bool
}

var _ backend.Storage = (*Storage)(nil)

// New wraps an already opened file. The size is taken from the file itself,
// or from the device when f is a block device.
func New(f *os.File, readOnly bool) (*Storage, error) {
	if f == nil {
		return nil, errors.New("file is nil")
	}
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("could not stat file %s: %w", f.Name(), err)
	}
	s := &Storage{f: f, size: info.Size(), readOnly: readOnly}
	if info.Mode()&os.ModeDevice != 0 {
		size, err := getBlockDeviceSize(f)
		if err != nil {
			return nil, fmt.Errorf("could not get size of block device %s: %w", f.Name(), err)
		}
		s.size = size
		s.blockDevice = true
	}
	return s, nil
}

// OpenFromPath opens an existing image or device
func OpenFromPath(p string, readOnly bool) (*Storage, error) {
	if p == "" {
		return nil, errors.New("must pass device or image path")
	}
	flag := os.O_RDWR
	if readOnly {
		flag = os.O_RDONLY
	}
	f, err := os.OpenFile(p, flag, 0o600)
	if err != nil {
		return nil, fmt.Errorf("could not open %s: %w", p, err)
	}
	s, err := New(f, readOnly)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return s, nil
}

// CreateFromPath creates a new, empty image file. It fails if the file already exists.
func CreateFromPath(p string) (*Storage, error) {
	if p == "" {
		return nil, errors.New("must pass image path")
	}
	f, err := os.OpenFile(p, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o666)
	if err != nil {
		return nil, fmt.Errorf("could not create image file %s: %w", p, err)
	}
	return &Storage{f: f}, nil
}

// Name returns the path of the underlying file
func (s *Storage) Name() string {
	return s.f.Name()
}

func (s *Storage) Size() int64 {
	return s.size
}

func (s *Storage) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off >= s.size {
		return 0, fmt.Errorf("%w: read at %d, size %d", backend.ErrOutOfRange, off, s.size)
	}
	n, err := s.f.ReadAt(p, off)
	// a full read that ends exactly at EOF is not an error
	if errors.Is(err, io.EOF) && n == len(p) {
		err = nil
	}
	if err != nil {
		return n, fmt.Errorf("disk read error: %w", err)
	}
	return n, nil
}

func (s *Storage) WriteAt(p []byte, off int64) (int, error) {
	if s.readOnly {
		return 0, backend.ErrReadOnly
	}
	if off < 0 || off >= s.size {
		return 0, fmt.Errorf("%w: write at %d, size %d", backend.ErrOutOfRange, off, s.size)
	}
	if room := s.size - off; int64(len(p)) > room {
		n, err := s.f.WriteAt(p[:room], off)
		if err != nil {
			return n, fmt.Errorf("disk write error: %w", err)
		}
		return n, fmt.Errorf("%w: write %d bytes at %d, size %d", backend.ErrOutOfRange, len(p), off, s.size)
	}
	n, err := s.f.WriteAt(p, off)
	if err != nil {
		return n, fmt.Errorf("disk write error: %w", err)
	}
	return n, nil
}

// Resize sets the image size. Block devices cannot grow; asking for more than
// the device holds is an error, asking for less only limits what is addressed.
func (s *Storage) Resize(size int64) error {
	if s.readOnly {
		return backend.ErrReadOnly
	}
	if size < 0 {
		return fmt.Errorf("invalid image size %d", size)
	}
	if s.blockDevice {
		devSize, err := getBlockDeviceSize(s.f)
		if err != nil {
			return fmt.Errorf("could not get size of block device %s: %w", s.f.Name(), err)
		}
		if size > devSize {
			return fmt.Errorf("requested size %d is larger than block device %s of size %d", size, s.f.Name(), devSize)
		}
		s.size = size
		return nil
	}
	if err := s.f.Truncate(size); err != nil {
		return fmt.Errorf("failed to truncate image file: %w", err)
	}
	if err := preallocate(s.f, size); err != nil {
		return fmt.Errorf("failed to allocate image file: %w", err)
	}
	s.size = size
	return nil
}

func (s *Storage) Sync() error {
	if s.readOnly {
		return nil
	}
	if err := s.f.Sync(); err != nil {
		return fmt.Errorf("disk sync error: %w", err)
	}
	return nil
}

// Close closes the underlying file
func (s *Storage) Close() error {
	if err := s.f.Close(); err != nil {
		return fmt.Errorf("disk close error: %w", err)
	}
	return nil
}
