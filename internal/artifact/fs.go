package artifact

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
)

// FileSystem is the storage the Writer goes through. Tests substitute
// failing implementations.
type FileSystem interface {
	MkdirAll(path string, perm os.FileMode) error
	// WriteFile replaces path with data. Readers never observe a partial
	// file.
	WriteFile(path string, data []byte, perm os.FileMode) error
	// Remove deletes a file; a missing file is not an error.
	Remove(path string) error
}

// OSFileSystem is the default FileSystem backed by the os package.
type OSFileSystem struct{}

func (OSFileSystem) MkdirAll(path string, perm os.FileMode) error {
	return os.MkdirAll(path, perm)
}

// WriteFile writes to a temporary file in the target directory and renames
// it into place.
func (OSFileSystem) WriteFile(path string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp.*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(data); err != nil {
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		return err
	}
	_ = tmp.Sync()
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

func (OSFileSystem) Remove(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
