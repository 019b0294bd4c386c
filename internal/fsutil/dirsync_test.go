package fsutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDirSync(t *testing.T) {
	dir := t.TempDir()
	if err := DirSync(dir); err != nil {
		t.Fatal(err)
	}
}

func TestDirSyncRejectsTraversal(t *testing.T) {
	if err := DirSync("../../etc"); err == nil {
		t.Error("expected a relative traversal path to be rejected")
	}
}

func TestDirSyncTreeWalksSubdirectories(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b", "c")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := DirSyncTree(root); err != nil {
		t.Fatal(err)
	}
}
