package fsutil

import (
	"errors"
	"testing"
)

func TestAcquireWorkDirLockExclusive(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	first, err := AcquireWorkDirLock(dir)
	if err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	defer first.Release()

	if _, err := AcquireWorkDirLock(dir); !errors.Is(err, ErrWorkDirLocked) {
		t.Fatalf("expected ErrWorkDirLocked, got %v", err)
	}
}

func TestAcquireWorkDirLockReacquireAfterRelease(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	first, err := AcquireWorkDirLock(dir)
	if err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	if err := first.Release(); err != nil {
		t.Fatalf("release: %v", err)
	}

	second, err := AcquireWorkDirLock(dir)
	if err != nil {
		t.Fatalf("second acquire after release: %v", err)
	}
	defer second.Release()
}

func TestAcquireWorkDirLockCreatesWorkDir(t *testing.T) {
	t.Parallel()
	dir := t.TempDir() + "/nested/work"

	lock, err := AcquireWorkDirLock(dir)
	if err != nil {
		t.Fatalf("acquire with missing work dir: %v", err)
	}
	defer lock.Release()
}
