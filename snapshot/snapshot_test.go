package snapshot

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/maxxsoft/geefs/backend/memory"
	"github.com/maxxsoft/geefs/filesystem/geefs"
	"github.com/sirupsen/logrus"
)

func testImage(t *testing.T) *memory.Storage {
	t.Helper()
	l := logrus.New()
	l.SetOutput(io.Discard)
	s := memory.New()
	fs, err := geefs.Create(s, &geefs.Params{BlockSize: 256, FreeMapBlocks: 1, InodeBlocks: 2}, geefs.WithLogger(l))
	if err != nil {
		t.Fatalf("Create() unexpected error: %v", err)
	}
	if err := fs.MakeDir("etc"); err != nil {
		t.Fatalf("MakeDir(etc) unexpected error: %v", err)
	}
	if err := fs.ChangeDir("etc"); err != nil {
		t.Fatalf("ChangeDir(etc) unexpected error: %v", err)
	}
	if err := fs.WriteFile("hosts", []byte("127.0.0.1 localhost\n")); err != nil {
		t.Fatalf("WriteFile(hosts) unexpected error: %v", err)
	}
	if err := fs.Close(); err != nil {
		t.Fatalf("Close() unexpected error: %v", err)
	}
	return s
}

func TestExportImport(t *testing.T) {
	src := testImage(t)
	for _, name := range []string{"none", "gzip", "zstd", "lz4", "xz", "lzma"} {
		t.Run(name, func(t *testing.T) {
			c, err := CompressorByName(name)
			if err != nil {
				t.Fatalf("CompressorByName(%s) unexpected error: %v", name, err)
			}
			var buf bytes.Buffer
			if err := Export(&buf, src, c); err != nil {
				t.Fatalf("Export() unexpected error: %v", err)
			}
			if name != "none" && int64(buf.Len()) >= src.Size() {
				t.Errorf("%s snapshot is %d bytes, image is only %d", name, buf.Len(), src.Size())
			}
			if got := Compression(buf.Bytes()[9]); got.String() != name {
				t.Errorf("header compression = %s, expected %s", got, name)
			}

			restored, err := Import(&buf)
			if err != nil {
				t.Fatalf("Import() unexpected error: %v", err)
			}
			if !bytes.Equal(restored.Bytes(), src.Bytes()) {
				t.Fatalf("imported image differs from the exported one")
			}
			fs, err := geefs.Open(restored)
			if err != nil {
				t.Fatalf("Open() of imported image unexpected error: %v", err)
			}
			if err := fs.ChangeDir("etc"); err != nil {
				t.Fatalf("ChangeDir(etc) unexpected error: %v", err)
			}
			data, err := fs.ReadFile("hosts")
			if err != nil {
				t.Fatalf("ReadFile(hosts) unexpected error: %v", err)
			}
			if diff := cmp.Diff("127.0.0.1 localhost\n", string(data)); diff != "" {
				t.Errorf("hosts mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRestore(t *testing.T) {
	src := testImage(t)
	var buf bytes.Buffer
	if err := Export(&buf, src, &CompressorZstd{}); err != nil {
		t.Fatalf("Export() unexpected error: %v", err)
	}
	dst := memory.New()
	if err := Restore(&buf, dst); err != nil {
		t.Fatalf("Restore() unexpected error: %v", err)
	}
	if !bytes.Equal(dst.Bytes(), src.Bytes()) {
		t.Errorf("restored image differs from the exported one")
	}
}

func TestCompressorByName(t *testing.T) {
	tests := []struct {
		name     string
		expected Compression
	}{
		{"", CompressionNone},
		{"none", CompressionNone},
		{"GZIP", CompressionGzip},
		{" zstd ", CompressionZstd},
		{"lz4", CompressionLz4},
		{"xz", CompressionXz},
		{"lzma", CompressionLzma},
	}
	for _, tt := range tests {
		c, err := CompressorByName(tt.name)
		if err != nil {
			t.Errorf("CompressorByName(%q) unexpected error: %v", tt.name, err)
			continue
		}
		if c.flavour() != tt.expected {
			t.Errorf("CompressorByName(%q) = %s, expected %s", tt.name, c.flavour(), tt.expected)
		}
	}
	if _, err := CompressorByName("brotli"); !errors.Is(err, ErrUnsupportedCompression) {
		t.Errorf("CompressorByName(brotli) = %v, expected %v", err, ErrUnsupportedCompression)
	}
}

func TestImportErrors(t *testing.T) {
	var good bytes.Buffer
	if err := Export(&good, testImage(t), &CompressorGzip{}); err != nil {
		t.Fatalf("Export() unexpected error: %v", err)
	}
	valid := good.Bytes()

	badMagic := append([]byte("NOTASNAP"), valid[8:]...)
	badVersion := append([]byte(nil), valid...)
	badVersion[8] = 9
	badCompression := append([]byte(nil), valid...)
	badCompression[9] = 200
	wrongSize := append([]byte(nil), valid...)
	wrongSize[10]++

	tests := []struct {
		name     string
		b        []byte
		expected error
	}{
		{"empty", nil, ErrBadSnapshot},
		{"short header", valid[:10], ErrBadSnapshot},
		{"bad magic", badMagic, ErrBadSnapshot},
		{"bad version", badVersion, ErrBadSnapshot},
		{"unknown compression", badCompression, ErrUnsupportedCompression},
		{"size mismatch", wrongSize, ErrBadSnapshot},
	}
	for _, tt := range tests {
		if _, err := Import(bytes.NewReader(tt.b)); !errors.Is(err, tt.expected) {
			t.Errorf("%s: Import() = %v, expected %v", tt.name, err, tt.expected)
		}
	}
	if _, err := Import(bytes.NewReader(valid[:len(valid)-8])); err == nil {
		t.Errorf("Import() of a truncated payload returned no error")
	}
}
