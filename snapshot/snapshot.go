// Package snapshot exports whole GeeFS images as single compressed streams and
// imports them back into memory.
//
// A snapshot is an 18 byte header followed by the compressed image:
//
//	0x00  8  magic "GEEFSNAP"
//	0x08  1  format version
//	0x09  1  compression
//	0x0a  8  size of the uncompressed image, little endian
package snapshot

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/maxxsoft/geefs/backend"
	"github.com/maxxsoft/geefs/backend/memory"
)

const (
	headerSize = 18
	version    = 1
)

var magic = []byte("GEEFSNAP")

var (
	// ErrBadSnapshot is returned when the header is missing, damaged or from an unknown version
	ErrBadSnapshot = errors.New("not a valid snapshot")
	// ErrUnsupportedCompression is returned for unknown or unavailable compressors
	ErrUnsupportedCompression = errors.New("unsupported compression")
)

type header struct {
	version     uint8
	compression Compression
	rawSize     uint64
}

func (h *header) toBytes() []byte {
	b := make([]byte, headerSize)
	copy(b, magic)
	b[8] = h.version
	b[9] = uint8(h.compression)
	binary.LittleEndian.PutUint64(b[10:], h.rawSize)
	return b
}

func headerFromBytes(b []byte) (*header, error) {
	if len(b) < headerSize {
		return nil, fmt.Errorf("%w: header needs %d bytes, received %d", ErrBadSnapshot, headerSize, len(b))
	}
	if !bytes.Equal(b[:len(magic)], magic) {
		return nil, fmt.Errorf("%w: bad magic %q", ErrBadSnapshot, b[:len(magic)])
	}
	h := &header{
		version:     b[8],
		compression: Compression(b[9]),
		rawSize:     binary.LittleEndian.Uint64(b[10:]),
	}
	if h.version != version {
		return nil, fmt.Errorf("%w: version %d, expected %d", ErrBadSnapshot, h.version, version)
	}
	return h, nil
}

// Export writes the full content of s to w as a snapshot compressed with c.
// A nil c stores the image uncompressed.
func Export(w io.Writer, s backend.Storage, c Compressor) error {
	if c == nil {
		c = &CompressorNone{}
	}
	raw := make([]byte, s.Size())
	if len(raw) > 0 {
		if _, err := s.ReadAt(raw, 0); err != nil {
			return fmt.Errorf("could not read image: %w", err)
		}
	}
	payload, err := c.compress(raw)
	if err != nil {
		return fmt.Errorf("could not compress image with %s: %w", c.flavour(), err)
	}
	h := &header{version: version, compression: c.flavour(), rawSize: uint64(len(raw))}
	if _, err := w.Write(h.toBytes()); err != nil {
		return fmt.Errorf("could not write snapshot header: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("could not write snapshot payload: %w", err)
	}
	return nil
}

// Import reads a snapshot from r and returns the image it holds
func Import(r io.Reader) (*memory.Storage, error) {
	b := make([]byte, headerSize)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, fmt.Errorf("%w: could not read header: %w", ErrBadSnapshot, err)
	}
	h, err := headerFromBytes(b)
	if err != nil {
		return nil, err
	}
	c, err := newCompressor(h.compression)
	if err != nil {
		return nil, err
	}
	payload, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("could not read snapshot payload: %w", err)
	}
	raw, err := c.decompress(payload)
	if err != nil {
		return nil, fmt.Errorf("could not decompress %s payload: %w", h.compression, err)
	}
	if uint64(len(raw)) != h.rawSize {
		return nil, fmt.Errorf("%w: payload holds %d bytes, header says %d", ErrBadSnapshot, len(raw), h.rawSize)
	}
	return memory.FromBytes(raw), nil
}

// Restore copies a snapshot from r onto s, resizing s to the image size
func Restore(r io.Reader, s backend.Storage) error {
	m, err := Import(r)
	if err != nil {
		return err
	}
	if err := s.Resize(m.Size()); err != nil {
		return fmt.Errorf("could not resize storage to %d bytes: %w", m.Size(), err)
	}
	if m.Size() > 0 {
		if _, err := s.WriteAt(m.Bytes(), 0); err != nil {
			return fmt.Errorf("could not write image: %w", err)
		}
	}
	return s.Sync()
}
