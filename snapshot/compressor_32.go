//go:build arm || 386

// lzma and xz do not compile for 32bit systems
package snapshot

import (
	"fmt"
)

func (c *CompressorLzma) compress(in []byte) ([]byte, error) {
	return nil, fmt.Errorf("%w: lzma is not supported on 32 bit systems", ErrUnsupportedCompression)
}
func (c *CompressorLzma) decompress(in []byte) ([]byte, error) {
	return nil, fmt.Errorf("%w: lzma is not supported on 32 bit systems", ErrUnsupportedCompression)
}

func (c *CompressorXz) compress(in []byte) ([]byte, error) {
	return nil, fmt.Errorf("%w: xz is not supported on 32 bit systems", ErrUnsupportedCompression)
}
func (c *CompressorXz) decompress(in []byte) ([]byte, error) {
	return nil, fmt.Errorf("%w: xz is not supported on 32 bit systems", ErrUnsupportedCompression)
}
