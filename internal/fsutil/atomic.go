// Package fsutil holds small filesystem helpers shared by the adapters.
package fsutil

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// WriteAtomic streams r into path so that readers never observe a partial
// file: temp file in the same directory, fsync, rename.
func WriteAtomic(path string, r io.Reader, perm os.FileMode) (int64, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return 0, fmt.Errorf("create directory %s: %w", dir, err)
	}

	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := f.Name()

	n, err := io.Copy(f, r)
	if err != nil {
		f.Close()
		os.Remove(tmpPath)
		return n, fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return n, fmt.Errorf("fsync %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return n, fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		os.Remove(tmpPath)
		return n, fmt.Errorf("chmod %s: %w", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return n, fmt.Errorf("rename %s: %w", path, err)
	}
	return n, nil
}
