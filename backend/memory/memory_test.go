package memory

import (
	"bytes"
	"errors"
	"testing"

	"github.com/maxxsoft/geefs/backend"
)

func TestReadWriteAt(t *testing.T) {
	m := New()
	if err := m.Resize(16); err != nil {
		t.Fatal(err)
	}
	if n, err := m.WriteAt([]byte("geefs"), 4); err != nil || n != 5 {
		t.Fatalf("WriteAt() = %d, %v", n, err)
	}
	b := make([]byte, 5)
	if n, err := m.ReadAt(b, 4); err != nil || n != 5 {
		t.Fatalf("ReadAt() = %d, %v", n, err)
	}
	if !bytes.Equal(b, []byte("geefs")) {
		t.Errorf("read %q, expected %q", b, "geefs")
	}
}

func TestOutOfRange(t *testing.T) {
	m := New()
	if err := m.Resize(8); err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		name string
		op   func() (int, error)
	}{
		{"read past end", func() (int, error) { return m.ReadAt(make([]byte, 1), 8) }},
		{"short read", func() (int, error) { return m.ReadAt(make([]byte, 4), 6) }},
		{"write past end", func() (int, error) { return m.WriteAt([]byte{1}, 8) }},
		{"short write", func() (int, error) { return m.WriteAt([]byte{1, 2, 3, 4}, 6) }},
		{"negative offset", func() (int, error) { return m.ReadAt(make([]byte, 1), -1) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.op(); !errors.Is(err, backend.ErrOutOfRange) {
				t.Errorf("expected ErrOutOfRange, got %v", err)
			}
		})
	}
}

func TestResizeZeroesGrowth(t *testing.T) {
	m := FromBytes(make([]byte, 8, 32))
	if _, err := m.WriteAt([]byte{0xff, 0xff}, 6); err != nil {
		t.Fatal(err)
	}
	if err := m.Resize(6); err != nil {
		t.Fatal(err)
	}
	if err := m.Resize(10); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(m.Bytes()[6:], make([]byte, 4)) {
		t.Errorf("grown region not zeroed: %v", m.Bytes()[6:])
	}
	if m.Size() != 10 {
		t.Errorf("Size() = %d, expected 10", m.Size())
	}
}
