// Package fsutil holds small filesystem durability helpers shared by the
// sync orchestrators.
package fsutil

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
)

func validateDirectoryPath(path string) error {
	cleanPath := filepath.Clean(path)
	if !filepath.IsAbs(cleanPath) && strings.Contains(cleanPath, "..") {
		return errors.New("unsafe directory path (contains directory traversal): " + path)
	}
	return nil
}

// DirSync calls fsync(2) on the directory to persist directory-entry
// changes. Call this after os.Create, os.Rename and similar operations
// whose metadata would otherwise survive only in the page cache.
func DirSync(d string) error {
	if err := validateDirectoryPath(d); err != nil {
		return errors.Wrap(err, "DirSync")
	}

	f, err := os.OpenFile(d, os.O_RDONLY, 0o755) // #nosec G304,G302 - path validated, 0755 needed for directory access
	if err != nil {
		return err
	}
	if err := f.Sync(); err != nil {
		return err
	}
	return f.Close()
}

func dirSyncFunc(path string, info os.FileInfo, err error) error {
	if err != nil {
		return err
	}
	if !info.Mode().IsDir() {
		return nil
	}
	return DirSync(path)
}

// DirSyncTree calls DirSync recursively on a directory tree rooted at d.
func DirSyncTree(d string) error {
	return filepath.Walk(d, dirSyncFunc)
}
