package fsutil

import (
	"bytes"
	"errors"
	"io/fs"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exerciseFileSystem(t *testing.T, fsys FileSystem, root string) {
	t.Helper()

	dir := filepath.Join(root, "reports", "run-1")
	name := filepath.Join(dir, "usage.html")

	_, err := fsys.Create(name)
	assert.Error(t, err, "parent directory does not exist yet")

	require.NoError(t, fsys.MkdirAll(dir, 0o755))
	assert.True(t, fsys.Exists(dir))
	assert.False(t, fsys.Exists(name))

	n, err := WriteTo(fsys, name, strings.NewReader("<html></html>"))
	require.NoError(t, err)
	assert.Equal(t, int64(13), n)
	assert.True(t, fsys.Exists(name))

	data, err := fsys.ReadFile(name)
	require.NoError(t, err)
	assert.Equal(t, "<html></html>", string(data))

	_, err = WriteTo(fsys, name, bytes.NewBufferString("v2"))
	require.NoError(t, err)
	data, err = fsys.ReadFile(name)
	require.NoError(t, err)
	assert.Equal(t, "v2", string(data), "create truncates")

	_, err = fsys.ReadFile(filepath.Join(dir, "missing"))
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}

func TestOSFileSystem(t *testing.T) {
	t.Parallel()
	exerciseFileSystem(t, OSFileSystem{}, t.TempDir())
}

func TestMemoryFileSystem(t *testing.T) {
	t.Parallel()

	m := NewMemoryFileSystem()
	exerciseFileSystem(t, m, "out")
	assert.Equal(t, []string{filepath.Join("out", "reports", "run-1", "usage.html")}, m.Files())
	assert.True(t, m.Exists("out"))
}

func TestWriteTo_CreateFails(t *testing.T) {
	t.Parallel()

	m := NewMemoryFileSystem()
	_, err := WriteTo(m, filepath.Join("nowhere", "x.png"), strings.NewReader("x"))
	assert.ErrorIs(t, err, fs.ErrNotExist)
}
