package server

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/regmirror/regmirror/internal/mirrorcfg"
)

func buildPublishBody(t *testing.T, meta CratesPublish, crateBytes []byte) []byte {
	t.Helper()
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	var lenBuf [4]byte

	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(metaJSON)))
	buf.Write(lenBuf[:])
	buf.Write(metaJSON)

	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(crateBytes)))
	buf.Write(lenBuf[:])
	buf.Write(crateBytes)

	return buf.Bytes()
}

func TestHandlePublishWritesArchiveAndIndexEntry(t *testing.T) {
	cfg := mirrorcfg.New()
	cfg.WorkDir = t.TempDir()
	s := New(cfg)

	meta := CratesPublish{Name: "demo", Vers: "0.1.0", Deps: []Dep{{Name: "serde", VersionReq: "^1.0", Kind: "normal"}}}
	crateBytes := []byte("crate archive contents")
	body := buildPublishBody(t, meta, crateBytes)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/crates/new", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.handlePublish(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	archive, err := os.ReadFile(filepath.Join(cfg.CratesDir(), "demo", "demo-0.1.0.crate"))
	if err != nil {
		t.Fatal(err)
	}
	if string(archive) != string(crateBytes) {
		t.Errorf("archive content = %q", archive)
	}

	indexPath := filepath.Join(cfg.IndexDir(), "de", "mo", "demo")
	indexLine, err := os.ReadFile(indexPath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(indexLine), `"name":"demo"`) {
		t.Errorf("index line = %q", indexLine)
	}
	if !strings.Contains(string(indexLine), `"vers":"0.1.0"`) {
		t.Errorf("index line = %q", indexLine)
	}
}

func TestHandlePublishRejectsPathTraversalInName(t *testing.T) {
	cfg := mirrorcfg.New()
	cfg.WorkDir = t.TempDir()
	s := New(cfg)

	meta := CratesPublish{Name: "../../../../tmp/pwned", Vers: "0.1.0"}
	body := buildPublishBody(t, meta, []byte("crate archive contents"))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/crates/new", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.handlePublish(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400, body = %s", rec.Code, rec.Body.String())
	}
	if _, err := os.Stat(filepath.Join(cfg.WorkDir, "tmp", "pwned")); !os.IsNotExist(err) {
		t.Fatalf("expected no file written outside the crates tree, stat err = %v", err)
	}
}

func TestHandlePublishRejectsPathTraversalInVersion(t *testing.T) {
	cfg := mirrorcfg.New()
	cfg.WorkDir = t.TempDir()
	s := New(cfg)

	meta := CratesPublish{Name: "demo", Vers: "../../escape"}
	body := buildPublishBody(t, meta, []byte("crate archive contents"))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/crates/new", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.handlePublish(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400, body = %s", rec.Code, rec.Body.String())
	}
}

func TestHandlePublishRejectsGet(t *testing.T) {
	cfg := mirrorcfg.New()
	cfg.WorkDir = t.TempDir()
	s := New(cfg)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/crates/new", nil)
	rec := httptest.NewRecorder()
	s.handlePublish(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
}

func TestToIndexDepsHandlesExplicitRename(t *testing.T) {
	explicit := "serde"
	deps := []Dep{{Name: "serde_renamed", ExplicitNameInTOML: &explicit, VersionReq: "^1.0"}}
	out := toIndexDeps(deps)
	if len(out) != 1 {
		t.Fatalf("len(out) = %d, want 1", len(out))
	}
	if out[0].Name != "serde" {
		t.Errorf("Name = %q, want the explicit rename", out[0].Name)
	}
	if out[0].Package == nil || *out[0].Package != "serde_renamed" {
		t.Errorf("Package = %v, want the original crate name", out[0].Package)
	}
}
