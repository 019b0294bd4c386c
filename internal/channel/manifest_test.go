package channel

import "testing"

const sampleManifest = `
manifest-version = "2"
date = "2026-07-01"

[pkg.rustc]
version = "1.80.0"

[pkg.rustc.target.x86_64-unknown-linux-gnu]
available = true
url = "https://example.com/dist/rustc-1.80.0-x86_64-unknown-linux-gnu.tar.gz"
hash = "deadbeef"
xz_url = "https://example.com/dist/rustc-1.80.0-x86_64-unknown-linux-gnu.tar.xz"
xz_hash = "cafef00d"

[pkg.rustc.target.some-missing-target]
available = false
url = "https://example.com/dist/rustc-missing.tar.gz"
hash = "deadbeef"
`

func TestParseManifest(t *testing.T) {
	m, err := ParseManifest([]byte(sampleManifest))
	if err != nil {
		t.Fatal(err)
	}
	if m.Date != "2026-07-01" {
		t.Errorf("Date = %q", m.Date)
	}
	pkg, ok := m.Pkg["rustc"]
	if !ok {
		t.Fatal("missing pkg.rustc")
	}
	if len(pkg.Target) != 2 {
		t.Fatalf("len(Target) = %d, want 2", len(pkg.Target))
	}
}

func TestComponentPairsPrefersXzThenPlain(t *testing.T) {
	target := Target{
		Available: true,
		URL:       "https://example.com/a.tar.gz",
		Hash:      "deadbeef",
		XzURL:     "https://example.com/a.tar.xz",
		XzHash:    "cafef00d",
	}
	pairs := componentPairs(target)
	if len(pairs) != 2 {
		t.Fatalf("len(pairs) = %d, want 2", len(pairs))
	}
	if pairs[0].url != target.XzURL {
		t.Errorf("pairs[0] should be the xz pair, got %v", pairs[0])
	}
	if pairs[1].url != target.URL {
		t.Errorf("pairs[1] should be the plain pair, got %v", pairs[1])
	}
}

func TestComponentPairsSkipsUnavailable(t *testing.T) {
	target := Target{Available: false, URL: "https://example.com/a.tar.gz", Hash: "deadbeef"}
	if pairs := componentPairs(target); pairs != nil {
		t.Errorf("pairs = %v, want nil for an unavailable target", pairs)
	}
}

func TestComponentPairsSkipsIncompletePairs(t *testing.T) {
	target := Target{Available: true, URL: "https://example.com/a.tar.gz", XzURL: "https://example.com/a.tar.xz"}
	if pairs := componentPairs(target); pairs != nil {
		t.Errorf("pairs = %v, want nil when hash fields are empty", pairs)
	}
}
