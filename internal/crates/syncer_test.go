package crates

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/regmirror/regmirror/internal/fetch"
	"github.com/regmirror/regmirror/internal/index"
	"github.com/regmirror/regmirror/internal/mirrorcfg"
)

type fakeUploader struct {
	uploaded []string
}

func (f *fakeUploader) UploadFile(ctx context.Context, localPath, remotePath, bucket string) error {
	f.uploaded = append(f.uploaded, remotePath)
	return nil
}

func (f *fakeUploader) UploadFolder(ctx context.Context, localDir, bucket string) error {
	return nil
}

func writeIndexEntry(t *testing.T, indexDir, name, version, body string, checksum string) {
	t.Helper()
	rel := filepath.Join(indexDir, name)
	if err := os.MkdirAll(filepath.Dir(rel), 0o755); err != nil {
		t.Fatal(err)
	}
	line := `{"name":"` + name + `","vers":"` + version + `","deps":[],"cksum":"` + checksum + `","features":{},"yanked":false}` + "\n"
	f, err := os.OpenFile(rel, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if _, err := f.WriteString(line); err != nil {
		t.Fatal(err)
	}
}

func TestSyncerInitDownloadsAndUploads(t *testing.T) {
	t.Parallel()

	body := []byte("crate archive bytes")
	sum := sha256.Sum256(body)
	checksum := hex.EncodeToString(sum[:])

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	workDir := t.TempDir()
	cfg := mirrorcfg.New()
	cfg.WorkDir = workDir
	cfg.Crates.Domain = srv.URL

	writeIndexEntry(t, cfg.IndexDir(), "a", "1.0.0", string(body), checksum)

	fetcher, err := fetch.New("")
	if err != nil {
		t.Fatal(err)
	}
	uploader := &fakeUploader{}
	s := NewSyncer(cfg, fetcher, uploader)

	opts := Options{Threads: 2, Upload: true}
	if err := s.Init(t.Context(), opts); err != nil {
		t.Fatal(err)
	}

	archivePath := filepath.Join(workDir, "crates", "a", "a-1.0.0.crate")
	got, err := os.ReadFile(archivePath)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(body) {
		t.Errorf("archive content = %q, want %q", got, body)
	}
	if len(uploader.uploaded) != 1 || uploader.uploaded[0] != "crates/a/a-1.0.0.crate" {
		t.Errorf("uploaded = %v", uploader.uploaded)
	}
}

func TestSyncerRunTaskJournalsFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	workDir := t.TempDir()
	cfg := mirrorcfg.New()
	cfg.WorkDir = workDir
	cfg.Crates.Domain = srv.URL

	fetcher, err := fetch.New("")
	if err != nil {
		t.Fatal(err)
	}
	s := NewSyncer(cfg, fetcher, &fakeUploader{})

	task := index.Task{
		Name:         "missing",
		Version:      "1.0.0",
		URL:          srv.URL + "/missing/missing-1.0.0.crate",
		Path:         "crates/missing/missing-1.0.0.crate",
		ExpectedHash: "",
	}
	if err := s.runTask(t.Context(), task, Options{}); err == nil {
		t.Fatal("expected download failure")
	}

	records, err := s.journal.ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 || records[0].Name != "missing" {
		t.Errorf("journal records = %v", records)
	}
}
