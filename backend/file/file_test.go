package file

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/maxxsoft/geefs/backend"
)

func TestCreateResizeReadWrite(t *testing.T) {
	p := filepath.Join(t.TempDir(), "disk.img")
	s, err := CreateFromPath(p)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	if err := s.Resize(4096); err != nil {
		t.Fatalf("Resize() error: %v", err)
	}
	if s.Size() != 4096 {
		t.Errorf("Size() = %d, expected 4096", s.Size())
	}
	if _, err := s.WriteAt([]byte("tail"), 4092); err != nil {
		t.Fatalf("WriteAt() error: %v", err)
	}
	if err := s.Sync(); err != nil {
		t.Fatalf("Sync() error: %v", err)
	}
	b := make([]byte, 4)
	if _, err := s.ReadAt(b, 4092); err != nil {
		t.Fatalf("ReadAt() error: %v", err)
	}
	if !bytes.Equal(b, []byte("tail")) {
		t.Errorf("read %q, expected %q", b, "tail")
	}

	info, err := os.Stat(p)
	if err != nil {
		t.Fatal(err)
	}
	if info.Size() != 4096 {
		t.Errorf("file size %d, expected 4096", info.Size())
	}
}

func TestCreateFromPathExisting(t *testing.T) {
	p := filepath.Join(t.TempDir(), "disk.img")
	if err := os.WriteFile(p, nil, 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := CreateFromPath(p); !errors.Is(err, os.ErrExist) {
		t.Errorf("expected os.ErrExist, got %v", err)
	}
}

func TestOpenReadOnly(t *testing.T) {
	p := filepath.Join(t.TempDir(), "disk.img")
	if err := os.WriteFile(p, make([]byte, 512), 0o600); err != nil {
		t.Fatal(err)
	}
	s, err := OpenFromPath(p, true)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if s.Size() != 512 {
		t.Errorf("Size() = %d, expected 512", s.Size())
	}
	if _, err := s.WriteAt([]byte{1}, 0); !errors.Is(err, backend.ErrReadOnly) {
		t.Errorf("expected ErrReadOnly, got %v", err)
	}
	if _, err := s.ReadAt(make([]byte, 1), 512); !errors.Is(err, backend.ErrOutOfRange) {
		t.Errorf("expected ErrOutOfRange, got %v", err)
	}
}
