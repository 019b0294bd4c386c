package channel

import (
	"context"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/regmirror/regmirror/internal/fetch"
	"github.com/regmirror/regmirror/internal/mirrorcfg"
	"github.com/regmirror/regmirror/internal/objectstore"
	"github.com/regmirror/regmirror/internal/workpool"
	"github.com/ulikunitz/xz"
)

// Options carries the `channel download` verb's flags.
type Options struct {
	Selector          string // explicit channel, empty if unused
	History           bool
	Init              bool
	Clean             bool
	Upload            bool
	DeleteAfterUpload bool
	Bucket            string
	Threads           int
}

// Syncer drives manifest download, component fan-out, upload and retention.
type Syncer struct {
	cfg      *mirrorcfg.Config
	fetcher  *fetch.Fetcher
	uploader objectstore.Uploader
}

// NewSyncer wires the orchestrator's collaborators.
func NewSyncer(cfg *mirrorcfg.Config, fetcher *fetch.Fetcher, uploader objectstore.Uploader) *Syncer {
	return &Syncer{cfg: cfg, fetcher: fetcher, uploader: uploader}
}

// Run dispatches the three precedence-ordered modes of spec §4.G, then
// applies retention if requested, regardless of which mode ran.
func (s *Syncer) Run(ctx context.Context, opts Options) error {
	switch {
	case opts.Selector != "":
		if err := s.syncOne(ctx, opts.Selector, opts); err != nil {
			slog.Warn("channel sync failed", "channel", opts.Selector, "error", err)
		}
	case opts.History:
		if err := s.syncHistory(ctx, opts); err != nil {
			return err
		}
	default:
		if err := s.syncDefault(ctx, opts); err != nil {
			return err
		}
	}

	if opts.Clean {
		if err := s.Retain(ctx); err != nil {
			return errors.Wrap(err, "retention pass")
		}
	}
	return nil
}

func (s *Syncer) syncHistory(ctx context.Context, opts Options) error {
	start, err := time.Parse("2006-01-02", s.cfg.Rustup.HistoryVersionStartDate)
	if err != nil {
		return errors.Wrap(err, "parse history_version_start_date")
	}
	for _, date := range dateRange(start, time.Now().UTC()) {
		for _, sel := range []string{"beta-" + date, "nightly-" + date} {
			if err := s.syncOne(ctx, sel, opts); err != nil {
				// a "hole" in history (channel never published that day) is
				// expected and benign; log and move on to the next day.
				slog.Debug("history sync skipped", "channel", sel, "error", err)
			}
		}
	}
	return nil
}

func (s *Syncer) syncDefault(ctx context.Context, opts Options) error {
	for _, sel := range []string{"stable", "beta", "nightly"} {
		if err := s.syncOne(ctx, sel, opts); err != nil {
			slog.Warn("channel sync failed", "channel", sel, "error", err)
		}
	}
	if opts.Init {
		for _, v := range s.cfg.Rustup.SyncStableVersions {
			if err := s.syncOne(ctx, v, opts); err != nil {
				slog.Warn("pinned version sync failed", "version", v, "error", err)
			}
		}
	}
	return nil
}

// syncOne implements the per-channel procedure of spec §4.G.
func (s *Syncer) syncOne(ctx context.Context, selector string, opts Options) error {
	r := resolve(s.cfg.Rustup.Domain, s.cfg.DistDir(), selector)

	outcome, err := s.fetcher.DownloadWithSidecar(ctx, r.url, r.localDir, r.manifestName)
	if err != nil {
		if errors.Is(err, fetch.ErrSidecarUnavailable) {
			slog.Info("channel manifest sidecar unavailable, skipping", "channel", selector)
			return nil
		}
		return errors.Wrapf(err, "download manifest for %s", selector)
	}
	manifestPath := filepath.Join(r.localDir, r.manifestName)
	if outcome == fetch.Skipped {
		if _, statErr := os.Stat(manifestPath); statErr != nil {
			slog.Info("channel manifest absent, skipping", "channel", selector)
			return nil
		}
	}

	data, err := os.ReadFile(manifestPath) // #nosec G304 - path derived from mirror-owned dist root
	if err != nil {
		return errors.Wrap(err, "read manifest")
	}
	manifest, err := ParseManifest(data)
	if err != nil {
		slog.Warn("channel manifest parse failed, skipping", "channel", selector, "error", err)
		return nil
	}

	pool := workpool.New(ctx, opts.Threads)
	for _, pkg := range manifest.Pkg {
		for _, target := range pkg.Target {
			for _, p := range componentPairs(target) {
				p := p
				localPath, err := componentLocalPath(s.cfg.DistDir(), p.url)
				if err != nil {
					slog.Warn("skip component with unexpected url shape", "url", p.url, "error", err)
					continue
				}
				pool.Submit(func(ctx context.Context) error {
					return s.runComponentTask(ctx, p.url, localPath, p.hash, opts)
				})
			}
		}
	}
	if err := pool.Wait(); err != nil {
		return errors.Wrap(err, "wait for component downloads")
	}
	slog.Info("channel component sync complete", "channel", selector, "failed", pool.FailedCount())

	// Barrier: manifest + sidecar upload happens only after every
	// component task has finished (spec §4.G step 5 / §5 causal barrier b).
	if opts.Upload {
		if err := s.uploadManifestAndSidecar(ctx, manifestPath, r.localDir, opts.Bucket); err != nil {
			slog.Warn("manifest upload failed", "channel", selector, "error", err)
		}
	}
	return nil
}

func (s *Syncer) runComponentTask(ctx context.Context, componentURL, localPath, hash string, opts Options) error {
	outcome, err := s.fetcher.Download(ctx, componentURL, localPath, hash, false)
	if err != nil {
		slog.Warn("channel component download failed", "url", componentURL, "error", err)
		return err
	}
	if outcome == fetch.Downloaded && strings.HasSuffix(localPath, ".xz") {
		if err := verifyXzStream(localPath); err != nil {
			slog.Warn("xz component failed to decompress, keeping file for inspection", "path", localPath, "error", err)
		}
	}
	if outcome != fetch.Downloaded || !opts.Upload {
		return nil
	}

	remotePath := "dist" + strings.TrimPrefix(localPath, s.cfg.DistDir())
	remotePath = filepath.ToSlash(remotePath)
	if err := s.uploader.UploadFile(ctx, localPath, remotePath, opts.Bucket); err != nil {
		slog.Warn("channel component upload failed", "path", localPath, "error", err)
		return nil
	}
	if opts.DeleteAfterUpload {
		if err := os.Remove(localPath); err != nil {
			slog.Warn("failed to delete local file after upload", "path", localPath, "error", err)
		}
	}
	return nil
}

func (s *Syncer) uploadManifestAndSidecar(ctx context.Context, manifestPath, localDir, bucket string) error {
	remoteManifest := "dist" + strings.TrimPrefix(manifestPath, s.cfg.DistDir())
	if err := s.uploader.UploadFile(ctx, manifestPath, filepath.ToSlash(remoteManifest), bucket); err != nil {
		return errors.Wrap(err, "upload manifest")
	}
	sidecarPath := manifestPath + ".sha256"
	if _, err := os.Stat(sidecarPath); err == nil {
		remoteSidecar := remoteManifest + ".sha256"
		if err := s.uploader.UploadFile(ctx, sidecarPath, filepath.ToSlash(remoteSidecar), bucket); err != nil {
			return errors.Wrap(err, "upload manifest sidecar")
		}
	}
	return nil
}

// verifyXzStream decompresses path fully and discards the output, confirming
// the archive is not truncated or corrupt before it is fanned out further.
func verifyXzStream(path string) error {
	f, err := os.Open(path) // #nosec G304 - path derived from mirror-owned dist root
	if err != nil {
		return errors.Wrap(err, "open xz component")
	}
	defer f.Close()

	r, err := xz.NewReader(f)
	if err != nil {
		return errors.Wrap(err, "read xz header")
	}
	if _, err := io.Copy(io.Discard, r); err != nil {
		return errors.Wrap(err, "decompress xz body")
	}
	return nil
}

// componentLocalPath derives the local path by splitting the URL on "/"
// and discarding the first four segments (scheme + host + "dist"),
// prepending the local dist root, matching spec §4.G step 3 exactly.
func componentLocalPath(distRoot, rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", errors.Wrap(err, "parse component url")
	}
	segments := strings.Split(strings.TrimPrefix(u.Path, "/"), "/")
	if len(segments) < 2 || segments[0] != "dist" {
		return "", errors.Newf("unexpected component url path %q", u.Path)
	}
	rest := segments[1:]
	return filepath.Join(append([]string{distRoot}, rest...)...), nil
}
