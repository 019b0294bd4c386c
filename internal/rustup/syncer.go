// Package rustup implements the Rustup Toolchain Sync Orchestrator:
// fetching the stable release pointer and rustup-init for every known
// target platform.
package rustup

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/regmirror/regmirror/internal/fetch"
	"github.com/regmirror/regmirror/internal/mirrorcfg"
	"github.com/regmirror/regmirror/internal/objectstore"
	"github.com/regmirror/regmirror/internal/workpool"
)

// Options carries the `rustup download`/`rustup upload` verb's flags.
type Options struct {
	Upload            bool
	DeleteAfterUpload bool
	Bucket            string
	Threads           int
}

// Syncer drives release-pointer and rustup-init sync across Platforms.
type Syncer struct {
	cfg      *mirrorcfg.Config
	fetcher  *fetch.Fetcher
	uploader objectstore.Uploader
}

// NewSyncer wires the orchestrator's collaborators.
func NewSyncer(cfg *mirrorcfg.Config, fetcher *fetch.Fetcher, uploader objectstore.Uploader) *Syncer {
	return &Syncer{cfg: cfg, fetcher: fetcher, uploader: uploader}
}

// SyncInit implements spec §4.H: fetch the release pointer, then fan out
// one rustup-init download per platform through the worker pool.
func (s *Syncer) SyncInit(ctx context.Context, opts Options) error {
	root := s.cfg.RustupDir()
	releaseURL := s.cfg.Rustup.Domain + "/rustup/release-stable.toml"
	releasePath := filepath.Join(root, "release-stable.toml")

	if _, err := s.fetcher.Download(ctx, releaseURL, releasePath, "", true); err != nil {
		return errors.Wrap(err, "download release-stable.toml")
	}
	if opts.Upload {
		if err := s.uploader.UploadFile(ctx, releasePath, "rustup/release-stable.toml", opts.Bucket); err != nil {
			slog.Warn("release-stable.toml upload failed", "error", err)
		}
	}

	pool := workpool.New(ctx, opts.Threads)
	for _, platform := range Platforms {
		platform := platform
		pool.Submit(func(ctx context.Context) error {
			return s.syncPlatform(ctx, platform, opts)
		})
	}
	if err := pool.Wait(); err != nil {
		return errors.Wrap(err, "wait for rustup-init downloads")
	}
	slog.Info("rustup sync complete", "platforms", len(Platforms), "failed", pool.FailedCount())
	return nil
}

func (s *Syncer) syncPlatform(ctx context.Context, platform string, opts Options) error {
	file := "rustup-init"
	if strings.Contains(platform, "windows") {
		file = "rustup-init.exe"
	}
	dir := filepath.Join(s.cfg.RustupDir(), "dist", platform)

	baseURL := s.cfg.Rustup.Domain + "/rustup/dist/" + platform + "/" + file
	outcome, err := s.fetcher.DownloadWithSidecar(ctx, baseURL, dir, file)
	if err != nil {
		if errors.Is(err, fetch.ErrSidecarUnavailable) {
			slog.Debug("rustup-init unavailable for platform", "platform", platform)
			return nil
		}
		slog.Warn("rustup-init download failed", "platform", platform, "error", err)
		return err
	}
	if outcome != fetch.Downloaded || !opts.Upload {
		return nil
	}

	localPath := filepath.Join(dir, file)
	remotePath := "rustup/dist/" + platform + "/" + file
	if err := s.uploader.UploadFile(ctx, localPath, remotePath, opts.Bucket); err != nil {
		slog.Warn("rustup-init upload failed", "platform", platform, "error", err)
		return nil
	}
	if opts.DeleteAfterUpload {
		if rmErr := os.Remove(localPath); rmErr != nil {
			slog.Warn("failed to delete local file after upload", "path", localPath, "error", rmErr)
		}
	}
	return nil
}
