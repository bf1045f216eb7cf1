// Package fs holds the local file system helpers shared by uploads and downloads
package fs

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/mitchellh/go-homedir"
)

// Globals
var (
	ErrorObjectNotFound    = errors.New("object not found")
	ErrorIsDir             = errors.New("is a directory not a file")
	ErrorNotAFile          = errors.New("is not a regular file")
	ErrorPermissionDenied  = errors.New("permission denied")
	ErrorEmptyPath         = errors.New("empty path")
	ErrorParentIsNotADir   = errors.New("parent is not a directory")
	ErrorCantCreateParents = errors.New("can't create parent directories")
)

// CheckClose is a utility function used to check the return from
// Close in a defer statement.
func CheckClose(c io.Closer, err *error) {
	cerr := c.Close()
	if *err == nil {
		*err = cerr
	}
}

// ExpandPath expands a leading ~ to the home directory and cleans the result.
func ExpandPath(path string) (string, error) {
	if path == "" {
		return "", ErrorEmptyPath
	}
	expanded, err := homedir.Expand(path)
	if err != nil {
		return "", err
	}
	return filepath.Clean(expanded), nil
}

// FileExists returns true if path is an existing regular file.
// If path is a directory, FileExists returns false.
func FileExists(path string) (bool, error) {
	_, err := RegularFile(path)
	if err != nil {
		if errors.Is(err, ErrorObjectNotFound) || errors.Is(err, ErrorIsDir) || errors.Is(err, ErrorNotAFile) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// RegularFile stats path and fails unless it is a regular file.
func RegularFile(path string) (os.FileInfo, error) {
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return nil, &os.PathError{Op: "stat", Path: path, Err: ErrorObjectNotFound}
	case errors.Is(err, os.ErrPermission):
		return nil, &os.PathError{Op: "stat", Path: path, Err: ErrorPermissionDenied}
	case err != nil:
		return nil, err
	case info.IsDir():
		return nil, &os.PathError{Op: "stat", Path: path, Err: ErrorIsDir}
	case !info.Mode().IsRegular():
		return nil, &os.PathError{Op: "stat", Path: path, Err: ErrorNotAFile}
	}
	return info, nil
}

// EnsureParentDir creates the directory that will hold path.
func EnsureParentDir(path string) error {
	dir := filepath.Dir(path)
	info, err := os.Stat(dir)
	if err == nil {
		if !info.IsDir() {
			return &os.PathError{Op: "mkdir", Path: dir, Err: ErrorParentIsNotADir}
		}
		return nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w %s: %v", ErrorCantCreateParents, dir, err)
	}
	return nil
}
