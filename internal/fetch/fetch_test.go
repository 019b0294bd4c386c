package fetch

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestDownloadVerifiesHash(t *testing.T) {
	t.Parallel()

	body := []byte("crate bytes")
	sum := sha256.Sum256(body)
	hash := hex.EncodeToString(sum[:])

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	f, err := New("")
	if err != nil {
		t.Fatal(err)
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "out.crate")

	outcome, err := f.Download(t.Context(), srv.URL, path, hash, false)
	if err != nil {
		t.Fatal(err)
	}
	if outcome != Downloaded {
		t.Errorf("outcome = %v, want Downloaded", outcome)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(body) {
		t.Errorf("content = %q, want %q", got, body)
	}

	outcome, err = f.Download(t.Context(), srv.URL, path, hash, false)
	if err != nil {
		t.Fatal(err)
	}
	if outcome != Skipped {
		t.Errorf("second outcome = %v, want Skipped", outcome)
	}
}

func TestDownloadRejectsMismatch(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("wrong bytes"))
	}))
	defer srv.Close()

	f, err := New("")
	if err != nil {
		t.Fatal(err)
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "out.crate")

	_, err = f.Download(t.Context(), srv.URL, path, "0000000000000000000000000000000000000000000000000000000000000000", false)
	if err == nil {
		t.Fatal("expected checksum mismatch error")
	}
	if _, statErr := os.Stat(path); statErr == nil {
		t.Error("mismatched file should not be left on disk")
	}
}

func TestDownloadWithSidecarUnavailable(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	f, err := New("")
	if err != nil {
		t.Fatal(err)
	}

	dir := t.TempDir()
	_, err = f.DownloadWithSidecar(t.Context(), srv.URL+"/rustup-init", dir, "rustup-init")
	if err != ErrSidecarUnavailable {
		t.Errorf("err = %v, want ErrSidecarUnavailable", err)
	}
}
