package geefs

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/sirupsen/logrus"
)

// openFile resolves name in the current directory to a regular file inode
func (fs *FileSystem) openFile(name string) (*inode, error) {
	_, in, err := fs.lookup(fs.cwd, name)
	if err != nil {
		return nil, err
	}
	if in.fileType == inodeTypeDirectory {
		return nil, fmt.Errorf("%w: %s", ErrIsDir, name)
	}
	if in.fileType != inodeTypeFile {
		return nil, fmt.Errorf("%w: entry %s points to inode %d of type %s", ErrCorrupted, name, in.number, in.fileType)
	}
	return in, nil
}

// Read copies up to length bytes of the file name, starting at offset, to w.
// The range is clamped to the file size, so reading at or past the end copies
// nothing and returns 0.
func (fs *FileSystem) Read(name string, w io.Writer, offset, length int64) (int64, error) {
	if offset < 0 || length < 0 {
		return 0, fmt.Errorf("%w: offset %d, length %d", ErrInvalidArgument, offset, length)
	}
	in, err := fs.openFile(name)
	if err != nil {
		return 0, err
	}
	size := int64(in.size)
	if offset >= size {
		return 0, nil
	}
	end := size
	if length < size-offset {
		end = offset + length
	}

	bs := int64(fs.superblock.blockSize)
	buf := make([]byte, bs)
	var n int64
	for pos := offset; pos < end; {
		block, err := fs.blockOffset(in, uint32(pos/bs))
		if err != nil {
			return n, fmt.Errorf("could not locate block %d of %s: %w", pos/bs, name, err)
		}
		start := pos % bs
		chunk := min(bs-start, end-pos)
		if err := fs.readAt(buf[:chunk], fs.superblock.blockByteLocation(block)+start); err != nil {
			return n, err
		}
		written, err := w.Write(buf[:chunk])
		n += int64(written)
		if err != nil {
			return n, fmt.Errorf("could not write content of %s: %w", name, err)
		}
		pos += chunk
	}
	return n, nil
}

// ReadFile returns the whole content of the file name
func (fs *FileSystem) ReadFile(name string) ([]byte, error) {
	in, err := fs.openFile(name)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.Grow(int(in.size))
	if _, err := fs.Read(name, &buf, 0, int64(in.size)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Write stores length bytes read from r into the file name at offset.
//
// Writing past the end first zero fills the gap between the current size and
// offset. Blocks are allocated as the write proceeds; if the image runs out of
// space or the file out of addressable blocks, Write keeps what was written so
// far and returns that count along with the error. The size grows to cover the
// written range and the inode is always persisted.
func (fs *FileSystem) Write(name string, r io.Reader, offset, length int64) (n int64, err error) {
	if offset < 0 || length < 0 {
		return 0, fmt.Errorf("%w: offset %d, length %d", ErrInvalidArgument, offset, length)
	}
	if offset+length > math.MaxUint32 {
		return 0, fmt.Errorf("%w: writing %d bytes at %d exceeds the 32-bit file size", ErrFileTooLarge, length, offset)
	}
	in, err := fs.openFile(name)
	if err != nil {
		return 0, err
	}
	defer func() {
		if end := uint32(offset + n); n > 0 && end > in.size {
			in.size = end
		}
		if werr := fs.writeInode(in); werr != nil {
			err = errors.Join(err, werr)
		}
		fs.log.WithFields(logrus.Fields{"inode": in.number, "offset": offset, "written": n, "size": in.size}).Debug("wrote file")
	}()

	bs := int64(fs.superblock.blockSize)
	if offset > int64(in.size) {
		if err := fs.zeroFill(in, offset); err != nil {
			return 0, err
		}
	}

	buf := make([]byte, bs)
	end := offset + length
	for pos := offset; pos < end; {
		idx := pos / bs
		if idx >= int64(in.blocks) {
			if err := fs.growTo(in, uint32(idx)+1); err != nil {
				return n, fmt.Errorf("could not grow %s to %d blocks: %w", name, idx+1, err)
			}
		}
		block, err := fs.blockOffset(in, uint32(idx))
		if err != nil {
			return n, err
		}
		start := pos % bs
		chunk := min(bs-start, end-pos)
		read, rerr := io.ReadFull(r, buf[:chunk])
		if read > 0 {
			if err := fs.writeAt(buf[:read], fs.superblock.blockByteLocation(block)+start); err != nil {
				return n, err
			}
			n += int64(read)
			pos += int64(read)
		}
		if rerr != nil {
			return n, fmt.Errorf("could not read content for %s: %w", name, rerr)
		}
	}
	return n, nil
}

// zeroFill extends in to size bytes of zeros. Blocks already allocated past
// the old size are cleared explicitly, new blocks arrive zeroed.
func (fs *FileSystem) zeroFill(in *inode, size int64) error {
	bs := int64(fs.superblock.blockSize)
	old := int64(in.size)
	if old%bs != 0 && old/bs < int64(in.blocks) {
		block, err := fs.blockOffset(in, uint32(old/bs))
		if err != nil {
			return err
		}
		tail := bs - old%bs
		if err := fs.writeAt(make([]byte, tail), fs.superblock.blockByteLocation(block)+old%bs); err != nil {
			return fmt.Errorf("could not clear tail of block %d: %w", block, err)
		}
	}
	for idx := (old + bs - 1) / bs; idx < int64(in.blocks); idx++ {
		block, err := fs.blockOffset(in, uint32(idx))
		if err != nil {
			return err
		}
		if err := fs.writeAt(make([]byte, bs), fs.superblock.blockByteLocation(block)); err != nil {
			return fmt.Errorf("could not clear block %d: %w", block, err)
		}
	}
	if err := fs.growTo(in, uint32((size+bs-1)/bs)); err != nil {
		return err
	}
	in.size = uint32(size)
	return nil
}

// WriteFile writes data at the start of the file name, creating it in the
// current directory when missing. Bytes of an existing file past len(data) stay.
func (fs *FileSystem) WriteFile(name string, data []byte) error {
	if _, err := fs.Stat(name); errors.Is(err, ErrNotFound) {
		if err := fs.CreateFile(name); err != nil {
			return err
		}
	} else if err != nil {
		return err
	}
	n, err := fs.Write(name, bytes.NewReader(data), 0, int64(len(data)))
	if err != nil {
		return err
	}
	if n != int64(len(data)) {
		return fmt.Errorf("%w: wrote %d of %d bytes to %s", ErrIO, n, len(data), name)
	}
	return nil
}
