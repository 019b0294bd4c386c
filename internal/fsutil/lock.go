package fsutil

import (
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"golang.org/x/sys/unix"
)

const lockFilename = ".regmirror.lock"

// ErrWorkDirLocked is returned by AcquireWorkDirLock when another process
// already holds the lock on the same work directory.
var ErrWorkDirLocked = errors.New("work directory is locked by another process")

// WorkDirLock is an exclusive, advisory lock on a work directory, held for
// the lifetime of a single sync run so two sync processes never write into
// the same tree at once.
type WorkDirLock struct {
	file *os.File
}

// AcquireWorkDirLock opens (creating if needed) workDir/.regmirror.lock and
// takes a non-blocking exclusive flock(2) on it. It returns ErrWorkDirLocked
// immediately rather than waiting for the holder to finish.
func AcquireWorkDirLock(workDir string) (*WorkDirLock, error) {
	if err := validateDirectoryPath(workDir); err != nil {
		return nil, errors.Wrap(err, "AcquireWorkDirLock")
	}
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create work dir")
	}

	lockPath := filepath.Join(workDir, lockFilename)
	f, err := os.OpenFile(lockPath, os.O_RDWR|os.O_CREATE, 0o644) // #nosec G304,G302 - path derived from validated work dir
	if err != nil {
		return nil, errors.Wrap(err, "open lock file")
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, ErrWorkDirLocked
		}
		return nil, errors.Wrap(err, "flock")
	}
	return &WorkDirLock{file: f}, nil
}

// Release drops the lock and closes the underlying file. The lock file
// itself is left in place intentionally: removing it here would let a
// second waiter recreate and lock a different inode while this one is
// still being torn down, defeating the mutual exclusion it exists for.
func (l *WorkDirLock) Release() error {
	if err := unix.Flock(int(l.file.Fd()), unix.LOCK_UN); err != nil {
		l.file.Close()
		return errors.Wrap(err, "unlock")
	}
	return l.file.Close()
}
