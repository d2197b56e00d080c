package main

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/maxxsoft/geefs/filesystem/geefs"
	"github.com/sirupsen/logrus"
)

var errQuit = errors.New("quit")

const shellHelp = `commands:
  ls                           list the current directory
  pwd                          print the current directory
  create NAME                  create an empty file
  mkdir NAME                   create a directory
  cd NAME                      change directory, .. for the parent
  rm NAME                      remove a file or an empty directory
  read NAME [OFFSET [LENGTH]]  print a file, whole or in part
  write NAME TEXT              append TEXT and a newline to a file
  df                           show free blocks and inodes
  help                         show this help
  quit                         leave the shell
`

type shell struct {
	fs  *geefs.FileSystem
	in  *bufio.Scanner
	out io.Writer
	log logrus.FieldLogger
}

func newShell(fs *geefs.FileSystem, in io.Reader, out io.Writer, log logrus.FieldLogger) *shell {
	return &shell{
		fs:  fs,
		in:  bufio.NewScanner(in),
		out: out,
		log: log.WithField("session", uuid.NewString()),
	}
}

// run reads commands until quit or end of input. A failed command is reported
// and the shell carries on, unless the image turned out to be corrupted.
func (s *shell) run() error {
	s.log.Debug("shell started")
	defer s.log.Debug("shell finished")
	for {
		fmt.Fprint(s.out, s.fs.CurrentPath()+"> ")
		if !s.in.Scan() {
			fmt.Fprintln(s.out)
			return s.in.Err()
		}
		line := strings.TrimSpace(s.in.Text())
		if line == "" {
			continue
		}
		cmd, args, _ := strings.Cut(line, " ")
		err := s.exec(cmd, strings.TrimSpace(args))
		switch {
		case err == nil:
		case errors.Is(err, errQuit):
			return nil
		case geefs.IsCorruption(err):
			return err
		default:
			s.log.WithError(err).WithField("command", cmd).Error("command failed")
			fmt.Fprintf(s.out, "failed to %s: %v\n", cmd, err)
		}
	}
}

func (s *shell) exec(cmd, args string) error {
	fields := strings.Fields(args)
	switch cmd {
	case "ls":
		infos, err := s.fs.List()
		if err != nil {
			return err
		}
		printEntries(s.out, infos)
	case "pwd":
		fmt.Fprintln(s.out, s.fs.CurrentPath())
	case "create", "touch":
		if len(fields) != 1 {
			return fmt.Errorf("%w: %s NAME", errUsage, cmd)
		}
		return s.fs.CreateFile(fields[0])
	case "mkdir":
		if len(fields) != 1 {
			return fmt.Errorf("%w: %s NAME", errUsage, cmd)
		}
		return s.fs.MakeDir(fields[0])
	case "cd":
		if len(fields) != 1 {
			return fmt.Errorf("%w: %s NAME", errUsage, cmd)
		}
		return s.fs.ChangeDir(fields[0])
	case "rm":
		if len(fields) != 1 {
			return fmt.Errorf("%w: %s NAME", errUsage, cmd)
		}
		return s.fs.Remove(fields[0])
	case "read", "cat":
		return s.read(cmd, fields)
	case "write":
		name, text, ok := strings.Cut(args, " ")
		if !ok || name == "" {
			return fmt.Errorf("%w: %s NAME TEXT", errUsage, cmd)
		}
		return s.write(name, text+"\n")
	case "df":
		u, err := s.fs.Usage()
		if err != nil {
			return err
		}
		fmt.Fprintf(s.out, "blocks: %d of %d free, inodes: %d of %d free\n", u.FreeBlocks, u.TotalBlocks, u.FreeInodes, u.TotalInodes)
	case "help":
		fmt.Fprint(s.out, shellHelp)
	case "quit", "exit":
		return errQuit
	default:
		return fmt.Errorf("unknown command %q, try help", cmd)
	}
	return nil
}

func (s *shell) read(cmd string, fields []string) error {
	if len(fields) < 1 || len(fields) > 3 {
		return fmt.Errorf("%w: %s NAME [OFFSET [LENGTH]]", errUsage, cmd)
	}
	fi, err := s.fs.Stat(fields[0])
	if err != nil {
		return err
	}
	offset, length := int64(0), fi.Size()
	if len(fields) > 1 {
		if offset, err = strconv.ParseInt(fields[1], 10, 64); err != nil {
			return fmt.Errorf("bad offset %q: %w", fields[1], err)
		}
		length = max(fi.Size()-offset, 0)
	}
	if len(fields) > 2 {
		if length, err = strconv.ParseInt(fields[2], 10, 64); err != nil {
			return fmt.Errorf("bad length %q: %w", fields[2], err)
		}
	}
	var buf bytes.Buffer
	if _, err := s.fs.Read(fields[0], &buf, offset, length); err != nil {
		return err
	}
	if buf.Len() > 0 && buf.Bytes()[buf.Len()-1] != '\n' {
		buf.WriteByte('\n')
	}
	_, err = s.out.Write(buf.Bytes())
	return err
}

// write appends text to the file name
func (s *shell) write(name, text string) error {
	fi, err := s.fs.Stat(name)
	if err != nil {
		return err
	}
	n, err := s.fs.Write(name, strings.NewReader(text), fi.Size(), int64(len(text)))
	if err != nil {
		return fmt.Errorf("wrote %d of %d bytes: %w", n, len(text), err)
	}
	return nil
}
