package index

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

func commitFile(t *testing.T, repo *git.Repository, dir, relPath, contents string) string {
	t.Helper()
	full := filepath.Join(dir, relPath)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(full, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := wt.Add(relPath); err != nil {
		t.Fatal(err)
	}
	hash, err := wt.Commit("update "+relPath, &git.CommitOptions{
		Author: &object.Signature{Name: "test", Email: "test@example.com", When: time.Unix(0, 0)},
	})
	if err != nil {
		t.Fatal(err)
	}
	return hash.String()
}

func TestRepositoryDiffExcludesConfigJSON(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	if err != nil {
		t.Fatal(err)
	}

	from := commitFile(t, repo, dir, "se/rd/serde", `{"name":"serde","vers":"1.0.0"}`)
	commitFile(t, repo, dir, "config.json", `{"dl":"https://example.com"}`)
	to := commitFile(t, repo, dir, "se/rd/serde", `{"name":"serde","vers":"1.0.0"}
{"name":"serde","vers":"1.0.1"}`)

	r := New(dir, nil)
	paths, err := r.Diff(t.Context(), from, to)
	if err != nil {
		t.Fatal(err)
	}
	if len(paths) != 1 || paths[0] != "se/rd/serde" {
		t.Errorf("paths = %v, want [se/rd/serde]", paths)
	}
}

func TestNeedsRecloneDetectsTornClone(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	torn, err := needsReclone(dir)
	if err != nil {
		t.Fatal(err)
	}
	if !torn {
		t.Error("empty directory should be reported as needing reclone")
	}

	if err := os.WriteFile(filepath.Join(dir, "file"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	torn, err = needsReclone(dir)
	if err != nil {
		t.Fatal(err)
	}
	if torn {
		t.Error("non-empty directory should not be reported as needing reclone")
	}
}

func TestNeedsRecloneMissingDirectory(t *testing.T) {
	t.Parallel()

	torn, err := needsReclone(filepath.Join(t.TempDir(), "does-not-exist"))
	if err != nil {
		t.Fatal(err)
	}
	if torn {
		t.Error("a missing directory is not torn, just absent")
	}
}
