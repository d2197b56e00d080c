package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/maxxsoft/geefs/filesystem/geefs"
	"github.com/maxxsoft/geefs/snapshot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *Config {
	return &Config{
		BlockSize:   512,
		FreeMaps:    1,
		InodeBlocks: 4,
		LogLevel:    "error",
		Compression: "zstd",
	}
}

func testApp(t *testing.T, files map[string]string) *app {
	t.Helper()
	host := memfs.New()
	for name, content := range files {
		require.NoError(t, util.WriteFile(host, name, []byte(content), 0o644))
	}
	return newApp(testConfig(), host, func(p string) (string, error) { return p, nil })
}

func testRun(t *testing.T, a *app, stdin string, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	err := a.newCLI(strings.NewReader(stdin), &out, &errOut).Run(append([]string{"geefs"}, args...))
	return out.String(), err
}

func TestCreateAddListCat(t *testing.T) {
	a := testApp(t, map[string]string{
		"hello.txt":     "hello, world",
		"notes/todo.md": "- write tests\n",
	})
	img := filepath.Join(t.TempDir(), "disk.img")

	out, err := testRun(t, a, "", "create", img)
	require.NoError(t, err)
	assert.Equal(t, "created "+img+": 4064 data blocks of 512 bytes, 28 inodes\n", out)
	info, err := os.Stat(img)
	require.NoError(t, err)
	assert.Equal(t, int64(1+1+4+4064)*512, info.Size())

	out, err = testRun(t, a, "", "add", img, "hello.txt", "notes/todo.md", "notes")
	require.NoError(t, err)
	assert.Contains(t, out, "added hello.txt (12 bytes)\n")
	assert.Contains(t, out, "added todo.md (14 bytes)\n")

	out, err = testRun(t, a, "", "ls", img)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, []string{"dir", "0", "128", "."}, strings.Fields(lines[0]))
	assert.Equal(t, []string{"file", "1", "12", "hello.txt"}, strings.Fields(lines[2]))
	assert.Equal(t, []string{"file", "2", "14", "todo.md"}, strings.Fields(lines[3]))

	out, err = testRun(t, a, "", "cat", img, "hello.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello, world", out)

	_, err = testRun(t, a, "", "add", img, "hello.txt")
	assert.ErrorIs(t, err, geefs.ErrExist)

	_, err = testRun(t, a, "", "cat", img, "missing")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestAddIntoDirectory(t *testing.T) {
	a := testApp(t, map[string]string{"motd": "welcome\n"})
	img := filepath.Join(t.TempDir(), "disk.img")
	_, err := testRun(t, a, "", "create", "--block-size", "256", "--inode-blocks", "2", img)
	require.NoError(t, err)
	_, err = testRun(t, a, "mkdir etc\nquit\n", "shell", img)
	require.NoError(t, err)

	_, err = testRun(t, a, "", "add", "--dir", "/etc", img, "motd")
	require.NoError(t, err)

	out, err := testRun(t, a, "", "cat", img, "/etc/motd")
	require.NoError(t, err)
	assert.Equal(t, "welcome\n", out)

	out, err = testRun(t, a, "", "ls", img, "etc")
	require.NoError(t, err)
	assert.Contains(t, out, "motd")

	_, err = testRun(t, a, "", "ls", img, "nope")
	assert.ErrorIs(t, err, geefs.ErrNotFound)
}

func TestCreateErrors(t *testing.T) {
	a := testApp(t, nil)
	dir := t.TempDir()
	img := filepath.Join(dir, "disk.img")

	_, err := testRun(t, a, "", "create", "--block-size", "64", img)
	assert.ErrorIs(t, err, geefs.ErrInvalidGeometry)
	_, statErr := os.Stat(img)
	assert.ErrorIs(t, statErr, os.ErrNotExist, "a failed create leaves no image behind")

	_, err = testRun(t, a, "", "create", img)
	require.NoError(t, err)
	_, err = testRun(t, a, "", "create", img)
	assert.ErrorIs(t, err, os.ErrExist)

	_, err = testRun(t, a, "", "create")
	assert.ErrorIs(t, err, errUsage)
	_, err = testRun(t, a, "", "ls")
	assert.ErrorIs(t, err, errUsage)
	_, err = testRun(t, a, "", "--log-level", "loud", "ls", img)
	assert.Error(t, err)

	notImage := filepath.Join(dir, "zeros")
	require.NoError(t, os.WriteFile(notImage, make([]byte, 4096), 0o644))
	_, err = testRun(t, a, "", "ls", notImage)
	assert.ErrorIs(t, err, geefs.ErrBadMagic)
}

func TestShell(t *testing.T) {
	a := testApp(t, nil)
	img := filepath.Join(t.TempDir(), "disk.img")
	_, err := testRun(t, a, "", "create", img)
	require.NoError(t, err)

	script := strings.Join([]string{
		"mkdir a",
		"cd a",
		"pwd",
		"create f",
		"write f hello world",
		"write f again",
		"read f",
		"read f 6 5",
		"cd nope",
		"bogus",
		"",
		"rm a",
		"cd ..",
		"rm a",
		"cd a",
		"rm f",
		"cd ..",
		"rm a",
		"ls",
		"df",
		"quit",
		"pwd",
	}, "\n")
	out, err := testRun(t, a, script, "shell", img)
	require.NoError(t, err)

	assert.Contains(t, out, "/> /a> /a\n")
	assert.Contains(t, out, "hello world\nagain\n")
	assert.Contains(t, out, "/a> world\n")
	assert.Contains(t, out, "failed to cd: ")
	assert.Contains(t, out, "failed to bogus: unknown command")
	assert.Contains(t, out, "failed to rm: ")
	assert.Contains(t, out, "blocks: 4063 of 4064 free, inodes: 27 of 28 free\n")
	assert.True(t, strings.HasSuffix(out, "/> "), "quit ends the session before the last command: %q", out)

	out, err = testRun(t, a, "", "ls", img)
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(out), "\n"), 2)

	out, err = testRun(t, a, "", "check", img)
	require.NoError(t, err)
	assert.Equal(t, "blocks: 4063 of 4064 free (512 bytes each)\ninodes: 27 of 28 free\n", out)
}

func TestShellEndOfInput(t *testing.T) {
	a := testApp(t, nil)
	img := filepath.Join(t.TempDir(), "disk.img")
	_, err := testRun(t, a, "", "create", img)
	require.NoError(t, err)

	out, err := testRun(t, a, "create x\nwrite x persisted", "shell", img)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(out, "/> \n"))

	out, err = testRun(t, a, "", "cat", img, "x")
	require.NoError(t, err)
	assert.Equal(t, "persisted\n", out)
}

func TestExportImport(t *testing.T) {
	a := testApp(t, map[string]string{"data.bin": strings.Repeat("geefs ", 500)})
	dir := t.TempDir()
	img := filepath.Join(dir, "disk.img")
	_, err := testRun(t, a, "", "create", img)
	require.NoError(t, err)
	_, err = testRun(t, a, "", "add", img, "data.bin")
	require.NoError(t, err)

	for _, compression := range []string{"none", "gzip", "zstd", "lz4"} {
		t.Run(compression, func(t *testing.T) {
			snap := filepath.Join(dir, compression+".snap")
			restored := filepath.Join(dir, compression+".img")
			_, err := testRun(t, a, "", "export", "--compression", compression, img, snap)
			require.NoError(t, err)
			_, err = testRun(t, a, "", "import", snap, restored)
			require.NoError(t, err)

			original, err := os.ReadFile(img)
			require.NoError(t, err)
			copied, err := os.ReadFile(restored)
			require.NoError(t, err)
			assert.True(t, bytes.Equal(original, copied), "restored image differs")

			out, err := testRun(t, a, "", "cat", restored, "data.bin")
			require.NoError(t, err)
			assert.Equal(t, strings.Repeat("geefs ", 500), out)
		})
	}

	_, err = testRun(t, a, "", "export", "--compression", "brotli", img, filepath.Join(dir, "x.snap"))
	assert.ErrorIs(t, err, snapshot.ErrUnsupportedCompression)

	// the default compression comes from the config
	_, err = testRun(t, a, "", "export", img, filepath.Join(dir, "default.snap"))
	require.NoError(t, err)
	b, err := os.ReadFile(filepath.Join(dir, "default.snap"))
	require.NoError(t, err)
	assert.Equal(t, byte(snapshot.CompressionZstd), b[9])

	bogus := filepath.Join(dir, "bogus.snap")
	require.NoError(t, os.WriteFile(bogus, []byte("not a snapshot at all"), 0o644))
	target := filepath.Join(dir, "bogus.img")
	_, err = testRun(t, a, "", "import", bogus, target)
	assert.ErrorIs(t, err, snapshot.ErrBadSnapshot)
	_, statErr := os.Stat(target)
	assert.ErrorIs(t, statErr, os.ErrNotExist)
}
