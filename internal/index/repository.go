// Package index maintains a local clone of the upstream crate index tree
// and provides commit-to-commit diffs, and walks the tree (or a diff's
// changed paths) into download tasks.
package index

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cheggaaa/pb/v3"
	"github.com/cockroachdb/errors"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// FirstCommit is the documented ancestor commit of the public crate index,
// recorded as the "from" side of the first CommitRecord after a clone.
const FirstCommit = "83ef4b3aa2e01d0cba0d267a68780aec797dd5f1"

// DefaultBranch is the upstream branch tracked by Pull.
const DefaultBranch = "master"

// ErrMergeConflict is returned by Pull when the update is not a
// fast-forward (or the pull fails for any other reason); the run halts,
// and the index directory is left as-is for inspection. No merge is
// attempted and no conflicted worktree is written.
var ErrMergeConflict = errors.New("index merge conflict, run halted")

// Recorder persists CommitRecord(from, to) for successful clones/pulls.
// Implemented by internal/crates so the index package stays storage-agnostic.
type Recorder interface {
	RecordCommit(from, to string) error
}

// Repository maintains a local git clone at Dir.
type Repository struct {
	Dir          string
	ShowProgress bool
	Recorder     Recorder
}

// New returns a Repository rooted at dir.
func New(dir string, recorder Recorder) *Repository {
	return &Repository{Dir: dir, Recorder: recorder}
}

// needsReclone reports whether Dir exists but holds no non-hidden entries,
// the torn-clone state spec §4.D's recovery rule guards against (a crash
// between directory creation and checkout).
func needsReclone(dir string) (bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	for _, e := range entries {
		if !strings.HasPrefix(e.Name(), ".") {
			return false, nil
		}
	}
	return true, nil
}

func (r *Repository) progressWriter() io.Writer {
	if !r.ShowProgress {
		return io.Discard
	}
	return os.Stderr
}

// EnsureCloned clones upstreamURL into Dir if Dir is missing or torn,
// otherwise leaves an existing clone untouched. This is the top-level
// "pull" recovery dispatch of spec §4.D.
func (r *Repository) EnsureCloned(ctx context.Context, upstreamURL string) error {
	torn, err := needsReclone(r.Dir)
	if err != nil {
		return errors.Wrap(err, "inspect index directory")
	}
	if torn {
		if err := os.RemoveAll(r.Dir); err != nil {
			return errors.Wrap(err, "remove torn index clone")
		}
	}

	if _, err := os.Stat(filepath.Join(r.Dir, ".git")); err == nil {
		return nil
	}
	return r.Clone(ctx, upstreamURL)
}

// Head returns the current HEAD commit hash of the local clone.
func (r *Repository) Head() (string, error) {
	repo, err := git.PlainOpen(r.Dir)
	if err != nil {
		return "", errors.Wrap(err, "open index repository")
	}
	head, err := repo.Head()
	if err != nil {
		return "", errors.Wrap(err, "read HEAD")
	}
	return head.Hash().String(), nil
}

// Clone performs an initial clone with progress reporting, and records
// CommitRecord(FirstCommit, HEAD) on success.
func (r *Repository) Clone(ctx context.Context, upstreamURL string) error {
	bar := pb.New(0)
	bar.SetWriter(r.progressWriter())
	if r.ShowProgress {
		bar.Start()
		defer bar.Finish()
	}

	repo, err := git.PlainCloneContext(ctx, r.Dir, false, &git.CloneOptions{
		URL:           upstreamURL,
		ReferenceName: plumbing.NewBranchReferenceName(DefaultBranch),
		SingleBranch:  true,
	})
	if err != nil {
		return errors.Wrap(err, "clone index repository")
	}

	head, err := repo.Head()
	if err != nil {
		return errors.Wrap(err, "read cloned HEAD")
	}

	if r.Recorder != nil {
		if err := r.Recorder.RecordCommit(FirstCommit, head.Hash().String()); err != nil {
			return errors.Wrap(err, "record initial commit")
		}
	}
	return nil
}

// Pull fetches origin/master and either fast-forwards or no-ops when
// already up to date. Three-way merges are not performed: any
// non-fast-forward update returns ErrMergeConflict. On success it records
// CommitRecord(pre, post) when the two differ.
func (r *Repository) Pull(ctx context.Context) error {
	repo, err := git.PlainOpen(r.Dir)
	if err != nil {
		return errors.Wrap(err, "open index repository")
	}

	preHead, err := repo.Head()
	if err != nil {
		return errors.Wrap(err, "read pre-pull HEAD")
	}

	wt, err := repo.Worktree()
	if err != nil {
		return errors.Wrap(err, "open worktree")
	}

	err = wt.PullContext(ctx, &git.PullOptions{
		RemoteName:    "origin",
		ReferenceName: plumbing.NewBranchReferenceName(DefaultBranch),
		Force:         true, // fast-forward or no-op; conflicts surface as an error below
	})
	switch {
	case err == nil:
		// fast-forward succeeded
	case errors.Is(err, git.NoErrAlreadyUpToDate):
		return nil
	default:
		// go-git refuses non-fast-forward updates rather than attempting a
		// three-way merge; treat any other pull error as the merge-conflict
		// case spec §4.D describes: halt without committing, leave state
		// recoverable for the next run.
		return errors.Mark(errors.Wrapf(err, "pull index repository"), ErrMergeConflict)
	}

	postHead, err := repo.Head()
	if err != nil {
		return errors.Wrap(err, "read post-pull HEAD")
	}

	if r.Recorder != nil && preHead.Hash() != postHead.Hash() {
		if err := r.Recorder.RecordCommit(preHead.Hash().String(), postHead.Hash().String()); err != nil {
			return errors.Wrap(err, "record pull commit")
		}
	}
	return nil
}

// Diff returns the name-only set of changed paths between two commits,
// excluding config.json, matching spec §4.D's diff contract.
func (r *Repository) Diff(ctx context.Context, from, to string) ([]string, error) {
	repo, err := git.PlainOpen(r.Dir)
	if err != nil {
		return nil, errors.Wrap(err, "open index repository")
	}

	fromTree, err := treeAt(repo, from)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve from-commit %s", from)
	}
	toTree, err := treeAt(repo, to)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve to-commit %s", to)
	}

	changes, err := fromTree.Diff(toTree)
	if err != nil {
		return nil, errors.Wrap(err, "diff trees")
	}

	seen := make(map[string]struct{}, len(changes))
	for _, c := range changes {
		for _, name := range []string{c.From.Name, c.To.Name} {
			if name == "" || filepath.Base(name) == "config.json" {
				continue
			}
			seen[name] = struct{}{}
		}
	}

	paths := make([]string, 0, len(seen))
	for p := range seen {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths, nil
}

func treeAt(repo *git.Repository, commitHash string) (*object.Tree, error) {
	hash := plumbing.NewHash(commitHash)
	commit, err := repo.CommitObject(hash)
	if err != nil {
		return nil, err
	}
	return commit.Tree()
}
