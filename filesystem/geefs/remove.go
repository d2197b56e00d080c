package geefs

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// Remove deletes the file or empty directory name from the current directory.
// All of its data and indirect blocks go back to the free maps and its inode
// slot becomes unused.
func (fs *FileSystem) Remove(name string) error {
	if name == dotName || name == dotDotName {
		return fmt.Errorf("%w: cannot remove %q", ErrInvalidName, name)
	}
	de, in, err := fs.lookup(fs.cwd, name)
	if err != nil {
		return err
	}
	if in.number == rootInode {
		return fmt.Errorf("%w: %s refers to the root directory", ErrCorrupted, name)
	}
	if in.fileType == inodeTypeDirectory && in.size > 2*entrySize {
		return fmt.Errorf("%w: %s", ErrNotEmpty, name)
	}

	blocks := in.blocks
	for in.blocks > 0 {
		if _, err := fs.popBlock(in); err != nil {
			return fmt.Errorf("could not release blocks of %s: %w", name, err)
		}
	}
	if err := fs.freeInode(in.number); err != nil {
		return err
	}
	if err := fs.removeEntry(fs.cwd, de); err != nil {
		return fmt.Errorf("could not remove entry %s: %w", name, err)
	}
	fs.log.WithFields(logrus.Fields{"name": name, "inode": in.number, "blocks": blocks}).Debug("removed")
	return nil
}
