package crates

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"github.com/regmirror/regmirror/internal/fetch"
	"github.com/regmirror/regmirror/internal/index"
	"github.com/regmirror/regmirror/internal/mirrorcfg"
	"github.com/regmirror/regmirror/internal/objectstore"
	"github.com/regmirror/regmirror/internal/workpool"
)

// Options carries the per-invocation flags of the `crates download` verb.
type Options struct {
	Threads           int
	Upload            bool
	DeleteAfterUpload bool
}

// Syncer drives the Index Repository, Index Walker, Downloader, Storage
// Uploader and Worker Pool through Init, Increment and Repair modes.
type Syncer struct {
	cfg       *mirrorcfg.Config
	fetcher   *fetch.Fetcher
	uploader  objectstore.Uploader
	repo      *index.Repository
	journal   *Journal
	commitLog *CommitLog
}

// NewSyncer wires the orchestrator's collaborators.
func NewSyncer(cfg *mirrorcfg.Config, fetcher *fetch.Fetcher, uploader objectstore.Uploader) *Syncer {
	commitLog := NewCommitLog(cfg.LogDir())
	repo := index.New(cfg.IndexDir(), commitLog)
	return &Syncer{
		cfg:       cfg,
		fetcher:   fetcher,
		uploader:  uploader,
		repo:      repo,
		journal:   NewJournal(cfg.ErrorJournal()),
		commitLog: commitLog,
	}
}

// Pull ensures the index clone exists, then fetches and merges upstream,
// backing the `crates pull` verb.
func (s *Syncer) Pull(ctx context.Context) error {
	if err := s.repo.EnsureCloned(ctx, s.cfg.Crates.IndexDomain); err != nil {
		return errors.Wrap(err, "ensure index cloned")
	}
	if err := s.repo.Pull(ctx); err != nil {
		if errors.Is(err, index.ErrMergeConflict) {
			slog.Error("index merge conflict, run halted", "error", err)
			return err
		}
		return errors.Wrap(err, "pull index")
	}
	return nil
}

// Init performs a full traversal of the index, submitting every task to
// the pool; failures are journaled, never fatal to the run.
func (s *Syncer) Init(ctx context.Context, opts Options) error {
	pool := workpool.New(ctx, opts.Threads)
	err := index.WalkFull(ctx, s.cfg.IndexDir(), s.cfg.Crates.Domain, func(t index.Task) error {
		pool.Submit(func(ctx context.Context) error { return s.runTask(ctx, t, opts) })
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "walk index")
	}
	if err := pool.Wait(); err != nil {
		return errors.Wrap(err, "wait for downloads")
	}
	slog.Info("crates init complete", "failed", pool.FailedCount())
	return nil
}

// Increment diffs the most recent same-day commit record against HEAD and
// diff-traverses only the changed index files.
func (s *Syncer) Increment(ctx context.Context, opts Options) error {
	from, found, err := s.commitLog.MostRecentToday()
	if err != nil {
		return errors.Wrap(err, "read commit log")
	}
	if !found {
		return errors.New("no commit record for today; run `crates pull` first")
	}

	to, err := s.repo.Head()
	if err != nil {
		return errors.Wrap(err, "read index HEAD")
	}

	paths, err := s.repo.Diff(ctx, from, to)
	if err != nil {
		return errors.Wrap(err, "diff index")
	}

	pool := workpool.New(ctx, opts.Threads)
	err = index.WalkDiff(ctx, s.cfg.IndexDir(), s.cfg.Crates.Domain, paths, func(t index.Task) error {
		pool.Submit(func(ctx context.Context) error { return s.runTask(ctx, t, opts) })
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "walk diff")
	}
	if err := pool.Wait(); err != nil {
		return errors.Wrap(err, "wait for downloads")
	}
	slog.Info("crates increment complete", "files", len(paths), "failed", pool.FailedCount())
	return nil
}

// Repair resolves crates needing a re-download: a single named crate, or
// every unique crate name recorded in the error journal. A repair pass
// that completes without new failures truncates the journal.
func (s *Syncer) Repair(ctx context.Context, name string, opts Options) error {
	names, err := s.repairTargets(name)
	if err != nil {
		return err
	}

	pool := workpool.New(ctx, opts.Threads)
	for _, n := range names {
		shardPath := filepath.Join(s.cfg.IndexDir(), index.ShardedPath(n))
		if err := index.WalkFile(shardPath, s.cfg.Crates.Domain, func(t index.Task) error {
			pool.Submit(func(ctx context.Context) error { return s.runTask(ctx, t, opts) })
			return nil
		}); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				slog.Warn("repair: crate missing from index", "name", n)
				continue
			}
			return errors.Wrapf(err, "repair crate %s", n)
		}
	}
	if err := pool.Wait(); err != nil {
		return errors.Wrap(err, "wait for downloads")
	}

	if pool.FailedCount() == 0 {
		if err := s.journal.Truncate(); err != nil {
			return errors.Wrap(err, "truncate error journal")
		}
	}
	slog.Info("crates repair complete", "crates", len(names), "failed", pool.FailedCount())
	return nil
}

func (s *Syncer) repairTargets(name string) ([]string, error) {
	if name != "" {
		return []string{name}, nil
	}

	records, err := s.journal.ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, "read error journal")
	}
	seen := make(map[string]struct{})
	var names []string
	for _, r := range records {
		if _, ok := seen[r.Name]; ok {
			continue
		}
		seen[r.Name] = struct{}{}
		names = append(names, r.Name)
	}
	return names, nil
}

// runTask is the per-task action shared by Init, Increment and Repair:
// download, optionally upload, optionally delete, journal on failure.
func (s *Syncer) runTask(ctx context.Context, t index.Task, opts Options) error {
	localPath := filepath.Join(s.cfg.WorkDir, t.Path)
	outcome, err := s.fetcher.Download(ctx, t.URL, localPath, t.ExpectedHash, false)
	if err != nil {
		slog.Warn("crate download failed", "name", t.Name, "version", t.Version, "error", err)
		if jerr := s.journal.Append(t.Name, t.Version); jerr != nil {
			return errors.Wrap(jerr, "append error journal")
		}
		return err
	}

	if outcome == fetch.Downloaded && opts.Upload {
		if err := s.uploader.UploadFile(ctx, localPath, t.Path, s.cfg.Object.Bucket); err != nil {
			slog.Warn("crate upload failed", "name", t.Name, "version", t.Version, "error", err)
			return nil
		}
		if opts.DeleteAfterUpload {
			if err := os.Remove(localPath); err != nil {
				slog.Warn("failed to delete local file after upload", "path", localPath, "error", err)
			}
		}
	}
	return nil
}
