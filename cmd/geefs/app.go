package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/maxxsoft/geefs/backend/file"
	"github.com/maxxsoft/geefs/filesystem/geefs"
	"github.com/maxxsoft/geefs/snapshot"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

var errUsage = errors.New("wrong number of arguments")

type app struct {
	cfg *Config
	// host is where files copied into an image come from
	host billy.Filesystem
	// resolve turns a command line path into a path on host
	resolve func(string) (string, error)
	log     *logrus.Logger
}

func newApp(cfg *Config, host billy.Filesystem, resolve func(string) (string, error)) *app {
	return &app{
		cfg:     cfg,
		host:    host,
		resolve: resolve,
		log:     logrus.New(),
	}
}

func (a *app) newCLI(in io.Reader, out, errOut io.Writer) *cli.App {
	a.log.SetOutput(errOut)
	return &cli.App{
		Name:        "geefs",
		Usage:       "build and browse GeeFS filesystem images",
		HideVersion: true,
		Reader:      in,
		Writer:      out,
		ErrWriter:   errOut,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "one of panic, fatal, error, warn, info, debug, trace",
				Value: a.cfg.LogLevel,
			},
		},
		Before: func(c *cli.Context) error {
			level, err := logrus.ParseLevel(c.String("log-level"))
			if err != nil {
				return err
			}
			a.log.SetLevel(level)
			return nil
		},
		Commands: []*cli.Command{{
			Name:      "create",
			Usage:     "create an empty image file",
			ArgsUsage: "IMAGE",
			Flags: []cli.Flag{
				&cli.UintFlag{Name: "block-size", Usage: "block size in bytes", Value: uint(a.cfg.BlockSize)},
				&cli.UintFlag{Name: "free-maps", Usage: "number of free map blocks", Value: uint(a.cfg.FreeMaps)},
				&cli.UintFlag{Name: "inode-blocks", Usage: "number of inode table blocks", Value: uint(a.cfg.InodeBlocks)},
			},
			Action: a.create,
		}, {
			Name:      "add",
			Usage:     "copy host files into an image",
			ArgsUsage: "IMAGE FILE...",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "dir", Usage: "directory inside the image to copy into", Value: "/"},
			},
			Action: a.add,
		}, {
			Name:      "ls",
			Usage:     "list a directory of an image",
			ArgsUsage: "IMAGE [DIR]",
			Action:    a.ls,
		}, {
			Name:      "cat",
			Usage:     "print a file from an image",
			ArgsUsage: "IMAGE FILE",
			Action:    a.cat,
		}, {
			Name:      "check",
			Usage:     "verify the allocation headers of an image and report usage",
			ArgsUsage: "IMAGE",
			Action:    a.check,
		}, {
			Name:      "shell",
			Usage:     "browse and modify an image interactively",
			ArgsUsage: "IMAGE",
			Action:    a.shell,
		}, {
			Name:      "export",
			Usage:     "write an image as a compressed snapshot",
			ArgsUsage: "IMAGE SNAPSHOT",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:  "compression",
					Usage: "one of none, gzip, zstd, lz4, xz, lzma",
					Value: a.cfg.Compression,
				},
			},
			Action: a.export,
		}, {
			Name:      "import",
			Usage:     "restore a snapshot into a new image file",
			ArgsUsage: "SNAPSHOT IMAGE",
			Action:    a.restore,
		}},
	}
}

// checkArgs wants between least and most arguments, most < 0 meaning no limit
func checkArgs(c *cli.Context, least, most int) error {
	if n := c.NArg(); n < least || (most >= 0 && n > most) {
		return fmt.Errorf("%w: usage: %s %s %s", errUsage, c.App.Name, c.Command.Name, c.Command.ArgsUsage)
	}
	return nil
}

// withImage opens the image named by the first argument and closes it once fn returns
func (a *app) withImage(c *cli.Context, readOnly bool, fn func(*geefs.FileSystem) error) error {
	p := c.Args().First()
	s, err := file.OpenFromPath(p, readOnly)
	if err != nil {
		return err
	}
	defer s.Close()
	fs, err := geefs.Open(s, geefs.WithLogger(a.log.WithField("image", p)))
	if err != nil {
		return fmt.Errorf("could not open image %s: %w", p, err)
	}
	if err := fn(fs); err != nil {
		return err
	}
	return fs.Close()
}

// changeDirPath walks the slash separated dir from the current directory
func changeDirPath(fs *geefs.FileSystem, dir string) error {
	for _, part := range strings.Split(dir, "/") {
		if part == "" {
			continue
		}
		if err := fs.ChangeDir(part); err != nil {
			return fmt.Errorf("could not change to %s: %w", dir, err)
		}
	}
	return nil
}

func printEntries(w io.Writer, infos []*geefs.FileInfo) {
	for _, fi := range infos {
		kind := "file"
		if fi.IsDir() {
			kind = "dir"
		}
		fmt.Fprintf(w, "%-4s %6d %10d %s\n", kind, fi.Inode(), fi.Size(), fi.Name())
	}
}

func (a *app) create(c *cli.Context) error {
	if err := checkArgs(c, 1, 1); err != nil {
		return err
	}
	p := c.Args().First()
	params := &geefs.Params{
		BlockSize:     uint32(c.Uint("block-size")),
		FreeMapBlocks: uint32(c.Uint("free-maps")),
		InodeBlocks:   uint32(c.Uint("inode-blocks")),
	}
	s, err := file.CreateFromPath(p)
	if err != nil {
		return err
	}
	fs, err := geefs.Create(s, params, geefs.WithLogger(a.log.WithField("image", p)))
	if err != nil {
		_ = s.Close()
		_ = os.Remove(p)
		return fmt.Errorf("could not create image %s: %w", p, err)
	}
	defer s.Close()
	u, err := fs.Usage()
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "created %s: %d data blocks of %d bytes, %d inodes\n", p, u.TotalBlocks, u.BlockSize, u.TotalInodes)
	return fs.Close()
}

func (a *app) add(c *cli.Context) error {
	if err := checkArgs(c, 2, -1); err != nil {
		return err
	}
	return a.withImage(c, false, func(fs *geefs.FileSystem) error {
		if err := changeDirPath(fs, c.String("dir")); err != nil {
			return err
		}
		for _, p := range c.Args().Tail() {
			if err := a.addFile(fs, p, c.App.Writer); err != nil {
				return err
			}
		}
		return nil
	})
}

func (a *app) addFile(fs *geefs.FileSystem, p string, out io.Writer) error {
	hostPath, err := a.resolve(p)
	if err != nil {
		return fmt.Errorf("could not resolve %s: %w", p, err)
	}
	info, err := a.host.Stat(hostPath)
	if err != nil {
		return fmt.Errorf("could not stat %s: %w", p, err)
	}
	if info.IsDir() {
		a.log.WithField("path", p).Warn("skipping directory")
		return nil
	}
	name := path.Base(strings.ReplaceAll(p, "\\", "/"))
	f, err := a.host.Open(hostPath)
	if err != nil {
		return fmt.Errorf("could not open %s: %w", p, err)
	}
	defer f.Close()
	if err := fs.CreateFile(name); err != nil {
		return fmt.Errorf("could not create %s: %w", name, err)
	}
	n, err := fs.Write(name, f, 0, info.Size())
	if err != nil {
		return fmt.Errorf("could not copy %s after %d bytes: %w", p, n, err)
	}
	a.log.WithFields(logrus.Fields{"path": p, "name": name, "size": n}).Info("added file")
	fmt.Fprintf(out, "added %s (%d bytes)\n", name, n)
	return nil
}

func (a *app) ls(c *cli.Context) error {
	if err := checkArgs(c, 1, 2); err != nil {
		return err
	}
	return a.withImage(c, true, func(fs *geefs.FileSystem) error {
		if err := changeDirPath(fs, c.Args().Get(1)); err != nil {
			return err
		}
		infos, err := fs.List()
		if err != nil {
			return err
		}
		printEntries(c.App.Writer, infos)
		return nil
	})
}

func (a *app) cat(c *cli.Context) error {
	if err := checkArgs(c, 2, 2); err != nil {
		return err
	}
	return a.withImage(c, true, func(fs *geefs.FileSystem) error {
		dir, name := path.Split(c.Args().Get(1))
		if err := changeDirPath(fs, dir); err != nil {
			return err
		}
		fi, err := fs.Stat(name)
		if err != nil {
			return err
		}
		_, err = fs.Read(name, c.App.Writer, 0, fi.Size())
		return err
	})
}

func (a *app) check(c *cli.Context) error {
	if err := checkArgs(c, 1, 1); err != nil {
		return err
	}
	return a.withImage(c, true, func(fs *geefs.FileSystem) error {
		if err := fs.Check(); err != nil {
			return err
		}
		u, err := fs.Usage()
		if err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "blocks: %d of %d free (%d bytes each)\n", u.FreeBlocks, u.TotalBlocks, u.BlockSize)
		fmt.Fprintf(c.App.Writer, "inodes: %d of %d free\n", u.FreeInodes, u.TotalInodes)
		return nil
	})
}

func (a *app) shell(c *cli.Context) error {
	if err := checkArgs(c, 1, 1); err != nil {
		return err
	}
	return a.withImage(c, false, func(fs *geefs.FileSystem) error {
		return newShell(fs, c.App.Reader, c.App.Writer, a.log).run()
	})
}

func (a *app) export(c *cli.Context) error {
	if err := checkArgs(c, 2, 2); err != nil {
		return err
	}
	comp, err := snapshot.CompressorByName(c.String("compression"))
	if err != nil {
		return err
	}
	image, out := c.Args().Get(0), c.Args().Get(1)
	s, err := file.OpenFromPath(image, true)
	if err != nil {
		return err
	}
	defer s.Close()
	// refuse to export something that is not an image
	if _, err := geefs.Open(s, geefs.WithLogger(a.log.WithField("image", image))); err != nil {
		return fmt.Errorf("could not open image %s: %w", image, err)
	}
	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("could not create snapshot %s: %w", out, err)
	}
	if err := snapshot.Export(f, s, comp); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("could not close snapshot %s: %w", out, err)
	}
	a.log.WithFields(logrus.Fields{"image": image, "snapshot": out, "compression": c.String("compression")}).Info("exported image")
	return nil
}

func (a *app) restore(c *cli.Context) error {
	if err := checkArgs(c, 2, 2); err != nil {
		return err
	}
	in, image := c.Args().Get(0), c.Args().Get(1)
	f, err := os.Open(in)
	if err != nil {
		return fmt.Errorf("could not open snapshot %s: %w", in, err)
	}
	defer f.Close()
	s, err := file.CreateFromPath(image)
	if err != nil {
		return err
	}
	defer s.Close()
	fail := func(err error) error {
		_ = os.Remove(image)
		return err
	}
	if err := snapshot.Restore(f, s); err != nil {
		return fail(err)
	}
	if _, err := geefs.Open(s, geefs.WithLogger(a.log.WithField("image", image))); err != nil {
		return fail(fmt.Errorf("snapshot %s does not hold a valid image: %w", in, err))
	}
	a.log.WithFields(logrus.Fields{"image": image, "snapshot": in}).Info("imported image")
	return nil
}
