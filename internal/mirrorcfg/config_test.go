package mirrorcfg

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "regmirror", "config.toml")
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Crates.DownloadThreads != 8 {
		t.Errorf("Crates.DownloadThreads = %d, want 8", cfg.Crates.DownloadThreads)
	}
	if cfg.WorkDir != filepath.Dir(path) {
		t.Errorf("WorkDir = %q, want %q", cfg.WorkDir, filepath.Dir(path))
	}
}

func TestLoadDecodesTOMLAndAppliesEnv(t *testing.T) {
	content := `
work_dir = "/var/regmirror"

[crates]
domain = "https://crates.example.com"
download_threads = 4
`
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("REGMIRROR_CRATES_DOMAIN", "https://override.example.com")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.WorkDir != "/var/regmirror" {
		t.Errorf("WorkDir = %q", cfg.WorkDir)
	}
	if cfg.Crates.Domain != "https://override.example.com" {
		t.Errorf("Crates.Domain = %q, want env override", cfg.Crates.Domain)
	}
	if cfg.Crates.DownloadThreads != 4 {
		t.Errorf("Crates.DownloadThreads = %d, want 4 from TOML", cfg.Crates.DownloadThreads)
	}
}

func TestCheckRejectsRelativeWorkDir(t *testing.T) {
	cfg := New()
	cfg.WorkDir = "relative/path"
	if err := cfg.Check(); err == nil {
		t.Error("expected Check() to reject a relative work_dir")
	}
}

func TestCheckRejectsNonPositiveThreads(t *testing.T) {
	cfg := New()
	cfg.WorkDir = "/var/regmirror"
	cfg.Crates.DownloadThreads = 0
	if err := cfg.Check(); err == nil {
		t.Error("expected Check() to reject zero download threads")
	}
}

func TestRequireBucket(t *testing.T) {
	cfg := New()
	if err := cfg.RequireBucket(false); err != nil {
		t.Errorf("RequireBucket(false) = %v, want nil when upload not requested", err)
	}
	if err := cfg.RequireBucket(true); err == nil {
		t.Error("RequireBucket(true) should fail with no bucket configured")
	}
	cfg.Object.Bucket = "my-bucket"
	if err := cfg.RequireBucket(true); err != nil {
		t.Errorf("RequireBucket(true) = %v, want nil once bucket is set", err)
	}
}

func TestPathHelpers(t *testing.T) {
	cfg := New()
	cfg.WorkDir = "/data/regmirror"
	if got, want := cfg.IndexDir(), "/data/regmirror/crates.io-index"; got != want {
		t.Errorf("IndexDir() = %q, want %q", got, want)
	}
	if got, want := cfg.ErrorJournal(), "/data/regmirror/log/error-crates.log"; got != want {
		t.Errorf("ErrorJournal() = %q, want %q", got, want)
	}
}
