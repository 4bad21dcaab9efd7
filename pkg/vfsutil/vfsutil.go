package vfsutil

import (
	"os"
	"path/filepath"

	"github.com/twpayne/go-vfs"
)

// WriteFileAtomic writes data next to path and renames it into place, so readers
// see either the previous content or the new one.
func WriteFileAtomic(fs vfs.FS, path string, data []byte) error {
	perm := os.FileMode(0644)
	if info, err := fs.Stat(path); err == nil {
		perm = info.Mode().Perm()
	} else if !os.IsNotExist(err) {
		return err
	}

	tmp := filepath.Join(filepath.Dir(path), "."+filepath.Base(path)+".libroll-tmp")
	if err := fs.WriteFile(tmp, data, perm); err != nil {
		return err
	}

	if err := fs.Rename(tmp, path); err != nil {
		_ = fs.Remove(tmp)
		return err
	}

	return nil
}

func Exists(fs vfs.FS, path string) (bool, error) {
	_, err := fs.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}
