package index

import (
	"bufio"
	"context"
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
)

// Task is one download derived from an index entry: fetch URL to Path,
// verifying ExpectedHash.
type Task struct {
	Name         string
	Version      string
	URL          string
	Path         string
	ExpectedHash string
}

// EmitFunc receives one Task per index entry as the tree (or a diff) is
// walked. Returning an error stops the walk.
type EmitFunc func(Task) error

// WalkFull iterates the entire index tree depth-first, skipping hidden
// entries, and emits a Task per line of every non-JSON-suffixed regular
// file (crates.io index files carry no extension).
func WalkFull(ctx context.Context, root, cratesDomain string, emit EmitFunc) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		name := d.Name()
		if strings.HasPrefix(name, ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || strings.HasSuffix(name, ".json") {
			return nil
		}
		return walkIndexFile(path, cratesDomain, emit)
	})
}

// WalkDiff processes each changed path returned by Repository.Diff,
// resolving it relative to root and processing its lines as WalkFull does.
func WalkDiff(ctx context.Context, root, cratesDomain string, paths []string, emit EmitFunc) error {
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return err
		}
		full := filepath.Join(root, p)
		info, err := os.Stat(full)
		if err != nil {
			if os.IsNotExist(err) {
				// file removed or renamed away between diff and walk; skip
				continue
			}
			return errors.Wrapf(err, "stat diff path %s", p)
		}
		if info.IsDir() {
			continue
		}
		if err := walkIndexFile(full, cratesDomain, emit); err != nil {
			return err
		}
	}
	return nil
}

// WalkFile processes a single crate's index file, used by repair-by-name
// to resubmit every version of one crate.
func WalkFile(path, cratesDomain string, emit EmitFunc) error {
	return walkIndexFile(path, cratesDomain, emit)
}

func walkIndexFile(path, cratesDomain string, emit EmitFunc) error {
	f, err := os.Open(path) // #nosec G304 - path comes from a locally-owned index clone
	if err != nil {
		return errors.Wrapf(err, "open index file %s", path)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var e Entry
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			return errors.Wrapf(err, "parse index line in %s", path)
		}
		task := Task{
			Name:         e.Name,
			Version:      e.Version,
			URL:          ArchiveURL(cratesDomain, e.Name, e.Version),
			Path:         ArchivePath(e.Name, e.Version),
			ExpectedHash: e.Checksum,
		}
		if err := emit(task); err != nil {
			return err
		}
	}
	return scanner.Err()
}
