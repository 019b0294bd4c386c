package rustup

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/regmirror/regmirror/internal/fetch"
	"github.com/regmirror/regmirror/internal/mirrorcfg"
)

func TestSyncInitSkipsPlatformsWithoutSidecar(t *testing.T) {
	t.Parallel()

	releaseBody := []byte("schema-version = \"1\"\n")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/rustup/release-stable.toml" {
			_, _ = w.Write(releaseBody)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	workDir := t.TempDir()
	cfg := mirrorcfg.New()
	cfg.WorkDir = workDir
	cfg.Rustup.Domain = srv.URL

	fetcher, err := fetch.New("")
	if err != nil {
		t.Fatal(err)
	}
	s := NewSyncer(cfg, fetcher, nil)

	if err := s.SyncInit(t.Context(), Options{Threads: 4}); err != nil {
		t.Fatal(err)
	}

	got, err := os.ReadFile(filepath.Join(cfg.RustupDir(), "release-stable.toml"))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(releaseBody) {
		t.Errorf("release-stable.toml content = %q", got)
	}
}

func TestSyncPlatformDownloadsWindowsExecutable(t *testing.T) {
	t.Parallel()

	body := []byte("rustup-init bytes")
	sum := sha256.Sum256(body)
	hash := hex.EncodeToString(sum[:])

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/rustup/dist/x86_64-pc-windows-msvc/rustup-init.exe.sha256":
			_, _ = w.Write([]byte(hash))
		case "/rustup/dist/x86_64-pc-windows-msvc/rustup-init.exe":
			_, _ = w.Write(body)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	workDir := t.TempDir()
	cfg := mirrorcfg.New()
	cfg.WorkDir = workDir
	cfg.Rustup.Domain = srv.URL

	fetcher, err := fetch.New("")
	if err != nil {
		t.Fatal(err)
	}
	s := NewSyncer(cfg, fetcher, nil)

	if err := s.syncPlatform(t.Context(), "x86_64-pc-windows-msvc", Options{}); err != nil {
		t.Fatal(err)
	}

	got, err := os.ReadFile(filepath.Join(cfg.RustupDir(), "dist", "x86_64-pc-windows-msvc", "rustup-init.exe"))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(body) {
		t.Errorf("content = %q, want %q", got, body)
	}
}
