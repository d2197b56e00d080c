package geefs

import (
	"errors"
	"fmt"
	"iter"

	"github.com/sirupsen/logrus"
)

// entries walks every entry of dir in block order. The sequence can be ranged
// over any number of times; each pass reads the directory afresh. A read error
// is yielded once and ends the pass.
func (fs *FileSystem) entries(dir *inode) iter.Seq2[*directoryEntry, error] {
	return func(yield func(*directoryEntry, error) bool) {
		epb := fs.superblock.entriesPerBlock()
		count := dir.size / entrySize
		buf := make([]byte, epb*entrySize)
		for i := uint32(0); i < count; i++ {
			if i%epb == 0 {
				block, err := fs.blockOffset(dir, i/epb)
				if err != nil {
					yield(nil, fmt.Errorf("could not locate block %d of directory inode %d: %w", i/epb, dir.number, err))
					return
				}
				if err := fs.readAt(buf, fs.superblock.blockByteLocation(block)); err != nil {
					yield(nil, fmt.Errorf("could not read directory block %d: %w", block, err))
					return
				}
			}
			start := (i % epb) * entrySize
			de, err := directoryEntryFromBytes(buf[start : start+entrySize])
			if err != nil {
				yield(nil, fmt.Errorf("could not parse entry %d of directory inode %d: %w", i, dir.number, err))
				return
			}
			de.index = i
			if !yield(de, nil) {
				return
			}
		}
	}
}

// entryLocation is the byte offset of the entry at index in dir
func (fs *FileSystem) entryLocation(dir *inode, index uint32) (int64, error) {
	epb := fs.superblock.entriesPerBlock()
	block, err := fs.blockOffset(dir, index/epb)
	if err != nil {
		return 0, err
	}
	return fs.superblock.blockByteLocation(block) + int64(index%epb)*entrySize, nil
}

func (fs *FileSystem) writeEntry(dir *inode, de *directoryEntry) error {
	offset, err := fs.entryLocation(dir, de.index)
	if err != nil {
		return err
	}
	b := make([]byte, entrySize)
	if err := de.MarshalGeeFS(b); err != nil {
		return err
	}
	return fs.writeAt(b, offset)
}

// lookup finds name in dir and loads the inode it refers to
func (fs *FileSystem) lookup(dir *inode, name string) (*directoryEntry, *inode, error) {
	for de, err := range fs.entries(dir) {
		if err != nil {
			return nil, nil, err
		}
		if de.filename != name {
			continue
		}
		in, err := fs.readInode(de.inode)
		if err != nil {
			return nil, nil, fmt.Errorf("could not read inode %d of %s: %w", de.inode, name, err)
		}
		return de, in, nil
	}
	return nil, nil, fmt.Errorf("%w: %s", ErrNotFound, name)
}

// checkNewEntry makes sure name can be added to dir
func (fs *FileSystem) checkNewEntry(dir *inode, name string) error {
	if err := validateName(name); err != nil {
		return err
	}
	_, _, err := fs.lookup(dir, name)
	switch {
	case err == nil:
		return fmt.Errorf("%w: %s", ErrExist, name)
	case errors.Is(err, ErrNotFound):
		return nil
	default:
		return err
	}
}

// insertEntry appends an entry for inode id to dir, growing it by a block when
// the last one is full, and persists dir. The name must already be checked.
func (fs *FileSystem) insertEntry(dir *inode, id uint32, name string) error {
	index := dir.size / entrySize
	if need := index/fs.superblock.entriesPerBlock() + 1; need > dir.blocks {
		if err := fs.growTo(dir, need); err != nil {
			return err
		}
	}
	de := &directoryEntry{inode: id, filename: name, index: index}
	if err := fs.writeEntry(dir, de); err != nil {
		return err
	}
	dir.size += entrySize
	if err := fs.writeInode(dir); err != nil {
		return err
	}
	fs.log.WithFields(logrus.Fields{"directory": dir.number, "inode": id, "name": name}).Debug("added entry")
	return nil
}

// addEntry links inode id into dir under name
func (fs *FileSystem) addEntry(dir *inode, id uint32, name string) error {
	if err := fs.checkNewEntry(dir, name); err != nil {
		return err
	}
	return fs.insertEntry(dir, id, name)
}

// removeEntry deletes de from dir by moving the last entry into its slot, then
// shrinks dir, releasing its last block once that block holds no entries
func (fs *FileSystem) removeEntry(dir *inode, de *directoryEntry) error {
	count := dir.size / entrySize
	if de.index >= count {
		return fmt.Errorf("%w: entry %d of directory inode %d with %d entries", ErrOutOfRange, de.index, dir.number, count)
	}
	last := count - 1
	if de.index != last {
		offset, err := fs.entryLocation(dir, last)
		if err != nil {
			return err
		}
		b := make([]byte, entrySize)
		if err := fs.readAt(b, offset); err != nil {
			return fmt.Errorf("could not read last entry of directory inode %d: %w", dir.number, err)
		}
		moved, err := directoryEntryFromBytes(b)
		if err != nil {
			return err
		}
		moved.index = de.index
		if err := fs.writeEntry(dir, moved); err != nil {
			return err
		}
	}
	dir.size -= entrySize
	epb := fs.superblock.entriesPerBlock()
	need := (dir.size/entrySize + epb - 1) / epb
	for dir.blocks > need {
		if _, err := fs.popBlock(dir); err != nil {
			return err
		}
	}
	if err := fs.writeInode(dir); err != nil {
		return err
	}
	fs.log.WithFields(logrus.Fields{"directory": dir.number, "inode": de.inode, "name": de.filename}).Debug("removed entry")
	return nil
}

// initDirBlock writes the "." and ".." entries at the start of block
func (fs *FileSystem) initDirBlock(block, self, parent uint32) error {
	b := make([]byte, 2*entrySize)
	dot := &directoryEntry{inode: self, filename: dotName}
	dotDot := &directoryEntry{inode: parent, filename: dotDotName}
	if err := dot.MarshalGeeFS(b[:entrySize]); err != nil {
		return err
	}
	if err := dotDot.MarshalGeeFS(b[entrySize:]); err != nil {
		return err
	}
	if err := fs.writeAt(b, fs.superblock.blockByteLocation(block)); err != nil {
		return fmt.Errorf("could not initialize directory block %d: %w", block, err)
	}
	return nil
}

// List returns the entries of the current directory, "." and ".." included,
// in on-disk order
func (fs *FileSystem) List() ([]*FileInfo, error) {
	var infos []*FileInfo
	for de, err := range fs.entries(fs.cwd) {
		if err != nil {
			return nil, err
		}
		in, err := fs.readInode(de.inode)
		if err != nil {
			return nil, fmt.Errorf("could not read inode %d of %s: %w", de.inode, de.filename, err)
		}
		infos = append(infos, newFileInfo(de.filename, in))
	}
	return infos, nil
}

// Stat returns information about name in the current directory
func (fs *FileSystem) Stat(name string) (*FileInfo, error) {
	_, in, err := fs.lookup(fs.cwd, name)
	if err != nil {
		return nil, err
	}
	return newFileInfo(name, in), nil
}
