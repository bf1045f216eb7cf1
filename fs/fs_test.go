package fs

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/mitchellh/go-homedir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type closer struct {
	err error
}

func (c closer) Close() error { return c.err }

func TestCheckClose(t *testing.T) {
	closeErr := errors.New("close failed")

	var err error
	CheckClose(closer{err: closeErr}, &err)
	assert.Equal(t, closeErr, err)

	first := errors.New("first")
	err = first
	CheckClose(closer{err: closeErr}, &err)
	assert.Equal(t, first, err)

	err = nil
	CheckClose(closer{}, &err)
	assert.NoError(t, err)
}

func TestExpandPath(t *testing.T) {
	home, err := homedir.Dir()
	require.NoError(t, err)

	got, err := ExpandPath("~/data/../file.csv")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "file.csv"), got)

	got, err = ExpandPath("a//b/")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("a", "b"), got)

	_, err = ExpandPath("")
	assert.ErrorIs(t, err, ErrorEmptyPath)
}

func TestRegularFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "f.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))

	info, err := RegularFile(file)
	require.NoError(t, err)
	assert.Equal(t, int64(1), info.Size())

	_, err = RegularFile(dir)
	assert.ErrorIs(t, err, ErrorIsDir)

	_, err = RegularFile(filepath.Join(dir, "missing"))
	assert.ErrorIs(t, err, ErrorObjectNotFound)
	var pe *os.PathError
	assert.True(t, errors.As(err, &pe))
}

func TestFileExists(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "f.txt")
	require.NoError(t, os.WriteFile(file, nil, 0o600))

	for _, tt := range []struct {
		path string
		want bool
	}{
		{file, true},
		{dir, false},
		{filepath.Join(dir, "missing"), false},
	} {
		ok, err := FileExists(tt.path)
		require.NoError(t, err)
		assert.Equal(t, tt.want, ok, tt.path)
	}
}

func TestEnsureParentDir(t *testing.T) {
	dir := t.TempDir()

	target := filepath.Join(dir, "a", "b", "c.txt")
	require.NoError(t, EnsureParentDir(target))
	info, err := os.Stat(filepath.Join(dir, "a", "b"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	require.NoError(t, EnsureParentDir(target), "existing parent is fine")

	file := filepath.Join(dir, "plain")
	require.NoError(t, os.WriteFile(file, nil, 0o600))
	err = EnsureParentDir(filepath.Join(file, "child.txt"))
	assert.ErrorIs(t, err, ErrorParentIsNotADir)
}
