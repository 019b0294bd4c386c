// Package fetch implements the Downloader: fetch a URL to a path, verify
// its hash, and re-download on mismatch.
package fetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/regmirror/regmirror/internal/fsutil"
)

// Outcome reports what Download actually did.
type Outcome int

const (
	// Downloaded means the body was fetched and written to path.
	Downloaded Outcome = iota
	// Skipped means path already held the expected bytes, or no
	// verification was requested and force_override was false.
	Skipped
	// Failed means the fetch did not complete; Download's error describes why.
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Downloaded:
		return "downloaded"
	case Skipped:
		return "skipped"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// ErrSidecarUnavailable is returned by DownloadWithSidecar when the
// companion ".sha256" file could not be retrieved; callers treat this as
// "skip", not an error, per the sidecar-hash contract.
var ErrSidecarUnavailable = errors.New("sidecar hash unavailable")

// Fetcher performs hash-verified HTTPS downloads.
type Fetcher struct {
	client *http.Client
}

// New builds a Fetcher. If proxyURL is non-empty, it is used for all requests.
func New(proxyURL string) (*Fetcher, error) {
	tr := http.DefaultTransport.(*http.Transport).Clone()
	tr.MaxIdleConns = 100
	tr.MaxIdleConnsPerHost = 10
	tr.IdleConnTimeout = 90 * time.Second

	if proxyURL != "" {
		u, err := url.Parse(proxyURL)
		if err != nil {
			return nil, errors.Wrap(err, "parse proxy url")
		}
		tr.Proxy = http.ProxyURL(u)
	}

	return &Fetcher{client: &http.Client{Transport: tr, Timeout: 0}}, nil
}

// rewriteUpstreamURL applies the Huawei object-storage percent-encoding
// workaround: hosts ending in myhuaweicloud.com, serving a /crates path,
// need their final path segment (which may contain "+") percent-encoded,
// because that origin misinterprets a literal "+" as a space.
func rewriteUpstreamURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", errors.Wrap(err, "parse url")
	}
	if !strings.HasSuffix(u.Hostname(), "myhuaweicloud.com") || !strings.HasPrefix(u.Path, "/crates") {
		return raw, nil
	}

	dir, file := filepath.Split(u.Path)
	u.RawPath = dir + strings.ReplaceAll(url.PathEscape(file), "+", "%2B")
	return u.String(), nil
}

// sha256File streams path's content through SHA-256, returning its hex digest.
func sha256File(path string) (string, error) {
	f, err := os.Open(path) // #nosec G304 - caller-controlled local mirror path
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Download implements the Downloader contract of spec §4.A.
func (f *Fetcher) Download(ctx context.Context, rawURL, path, expectedHash string, forceOverride bool) (Outcome, error) {
	if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() {
		if expectedHash != "" {
			actual, err := sha256File(path)
			if err != nil {
				return Failed, errors.Wrap(err, "hash existing file")
			}
			if actual == expectedHash {
				return Skipped, nil
			}
			if err := os.Remove(path); err != nil {
				return Failed, errors.Wrap(err, "remove mismatched file")
			}
			slog.Warn("hash mismatch, re-fetching", "path", path)
		} else if !forceOverride {
			return Skipped, nil
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return Failed, errors.Wrap(err, "mkdir parent")
	}

	effectiveURL, err := rewriteUpstreamURL(rawURL)
	if err != nil {
		return Failed, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, effectiveURL, nil)
	if err != nil {
		return Failed, errors.Wrap(err, "build request")
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return Failed, errors.Wrap(err, "http get")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Failed, errors.Newf("unexpected status %d for %s", resp.StatusCode, effectiveURL)
	}

	out, err := os.CreateTemp(filepath.Dir(path), ".fetch-*")
	if err != nil {
		return Failed, errors.Wrap(err, "create temp file")
	}
	tempName := out.Name()
	h := sha256.New()
	if _, err := io.Copy(io.MultiWriter(out, h), resp.Body); err != nil {
		out.Close()
		os.Remove(tempName)
		return Failed, errors.Wrap(err, "copy body")
	}
	if err := out.Close(); err != nil {
		os.Remove(tempName)
		return Failed, errors.Wrap(err, "close temp file")
	}

	if expectedHash != "" {
		if actual := hex.EncodeToString(h.Sum(nil)); actual != expectedHash {
			os.Remove(tempName)
			return Failed, errors.Newf("checksum mismatch for %s: got %s want %s", path, actual, expectedHash)
		}
	}

	if err := os.Rename(tempName, path); err != nil {
		os.Remove(tempName)
		return Failed, errors.Wrap(err, "rename temp file into place")
	}
	if err := fsutil.DirSync(filepath.Dir(path)); err != nil {
		slog.Warn("directory fsync failed after download", "dir", filepath.Dir(path), "error", err)
	}
	return Downloaded, nil
}

// fetchSidecarHash retrieves "<url>.sha256" and returns the first 64 hex
// characters of its body.
func (f *Fetcher) fetchSidecarHash(ctx context.Context, baseURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+".sha256", nil)
	if err != nil {
		return "", err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", errors.Newf("sidecar status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return "", err
	}
	trimmed := strings.TrimSpace(string(body))
	if len(trimmed) < 64 {
		return "", errors.New("sidecar body too short to contain a SHA-256 digest")
	}
	return trimmed[:64], nil
}

// DownloadWithSidecar fetches "<baseURL>.sha256" for the expected digest,
// then downloads baseURL to filepath.Join(dir, filename). If the sidecar
// is unavailable, it returns (Skipped, ErrSidecarUnavailable) rather than
// failing the caller's run.
func (f *Fetcher) DownloadWithSidecar(ctx context.Context, baseURL, dir, filename string) (Outcome, error) {
	hash, err := f.fetchSidecarHash(ctx, baseURL)
	if err != nil {
		slog.Debug("sidecar unavailable, skipping", "url", baseURL, "error", err)
		return Skipped, ErrSidecarUnavailable
	}
	return f.Download(ctx, baseURL, filepath.Join(dir, filename), hash, true)
}
