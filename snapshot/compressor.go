package snapshot

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression identifies the algorithm a snapshot payload is compressed with.
// The value is stored in the snapshot header.
type Compression uint8

const (
	CompressionNone Compression = iota
	CompressionGzip
	CompressionZstd
	CompressionLz4
	CompressionXz
	CompressionLzma
)

var compressionNames = map[Compression]string{
	CompressionNone: "none",
	CompressionGzip: "gzip",
	CompressionZstd: "zstd",
	CompressionLz4:  "lz4",
	CompressionXz:   "xz",
	CompressionLzma: "lzma",
}

func (c Compression) String() string {
	if name, ok := compressionNames[c]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%d)", uint8(c))
}

// Compressor compresses a whole image in one pass
type Compressor interface {
	compress([]byte) ([]byte, error)
	decompress([]byte) ([]byte, error)
	flavour() Compression
}

// CompressorNone stores the image as is
type CompressorNone struct{}

func (c *CompressorNone) compress(in []byte) ([]byte, error) {
	return in, nil
}
func (c *CompressorNone) decompress(in []byte) ([]byte, error) {
	return in, nil
}
func (c *CompressorNone) flavour() Compression {
	return CompressionNone
}

// CompressorGzip uses gzip at the given level, gzip.DefaultCompression when 0
type CompressorGzip struct {
	Level int
}

func (c *CompressorGzip) compress(in []byte) ([]byte, error) {
	level := c.Level
	if level == 0 {
		level = gzip.DefaultCompression
	}
	var b bytes.Buffer
	gz, err := gzip.NewWriterLevel(&b, level)
	if err != nil {
		return nil, fmt.Errorf("error creating gzip compressor: %w", err)
	}
	if _, err := gz.Write(in); err != nil {
		return nil, err
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}
func (c *CompressorGzip) decompress(in []byte) ([]byte, error) {
	gz, err := gzip.NewReader(bytes.NewReader(in))
	if err != nil {
		return nil, fmt.Errorf("error creating gzip decompressor: %w", err)
	}
	defer gz.Close()
	p, err := io.ReadAll(gz)
	if err != nil {
		return nil, fmt.Errorf("error decompressing: %w", err)
	}
	return p, nil
}
func (c *CompressorGzip) flavour() Compression {
	return CompressionGzip
}

// CompressorZstd uses zstd at the default encoder level
type CompressorZstd struct{}

func (c *CompressorZstd) compress(in []byte) ([]byte, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("error creating zstd compressor: %w", err)
	}
	defer enc.Close()
	return enc.EncodeAll(in, nil), nil
}
func (c *CompressorZstd) decompress(in []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("error creating zstd decompressor: %w", err)
	}
	defer dec.Close()
	p, err := dec.DecodeAll(in, nil)
	if err != nil {
		return nil, fmt.Errorf("error decompressing: %w", err)
	}
	return p, nil
}
func (c *CompressorZstd) flavour() Compression {
	return CompressionZstd
}

// CompressorLz4 uses the lz4 frame format
type CompressorLz4 struct{}

func (c *CompressorLz4) compress(in []byte) ([]byte, error) {
	var b bytes.Buffer
	lw := lz4.NewWriter(&b)
	if _, err := lw.Write(in); err != nil {
		return nil, err
	}
	if err := lw.Close(); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}
func (c *CompressorLz4) decompress(in []byte) ([]byte, error) {
	p, err := io.ReadAll(lz4.NewReader(bytes.NewReader(in)))
	if err != nil {
		return nil, fmt.Errorf("error decompressing: %w", err)
	}
	return p, nil
}
func (c *CompressorLz4) flavour() Compression {
	return CompressionLz4
}

// CompressorXz uses xz; not available on 32-bit platforms
type CompressorXz struct{}

func (c *CompressorXz) flavour() Compression {
	return CompressionXz
}

// CompressorLzma uses classic lzma; not available on 32-bit platforms
type CompressorLzma struct{}

func (c *CompressorLzma) flavour() Compression {
	return CompressionLzma
}

func newCompressor(flavour Compression) (Compressor, error) {
	var c Compressor
	switch flavour {
	case CompressionNone:
		c = &CompressorNone{}
	case CompressionGzip:
		c = &CompressorGzip{}
	case CompressionZstd:
		c = &CompressorZstd{}
	case CompressionLz4:
		c = &CompressorLz4{}
	case CompressionXz:
		c = &CompressorXz{}
	case CompressionLzma:
		c = &CompressorLzma{}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedCompression, flavour)
	}
	return c, nil
}

// CompressorByName returns the compressor called name, e.g. "zstd". Matching
// ignores case; the empty string selects no compression.
func CompressorByName(name string) (Compressor, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return &CompressorNone{}, nil
	}
	for flavour, n := range compressionNames {
		if n == name {
			return newCompressor(flavour)
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedCompression, name)
}
