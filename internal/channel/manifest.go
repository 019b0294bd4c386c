// Package channel implements the Channel Sync Orchestrator: manifest
// parsing, platform x component fan-out, optional upload, and
// time-bounded retention of historical channel snapshots.
package channel

import (
	"github.com/BurntSushi/toml"
	"github.com/cockroachdb/errors"
)

// Target is one platform entry of a package in a channel manifest.
type Target struct {
	Available bool   `toml:"available"`
	URL       string `toml:"url"`
	Hash      string `toml:"hash"`
	XzURL     string `toml:"xz_url"`
	XzHash    string `toml:"xz_hash"`
}

// Pkg is one component of a channel manifest.
type Pkg struct {
	Version string            `toml:"version"`
	Target  map[string]Target `toml:"target"`
}

// Manifest is a parsed channel-rust-*.toml file.
type Manifest struct {
	ManifestVersion string         `toml:"manifest-version"`
	Date            string         `toml:"date"`
	Pkg             map[string]Pkg `toml:"pkg"`
}

// ParseManifest decodes TOML bytes into a Manifest. Invalid TOML or an
// unexpected schema is a Manifest-parse failure (spec §7): the caller
// skips the channel and continues with others.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if _, err := toml.Decode(string(data), &m); err != nil {
		return nil, errors.Wrap(err, "parse channel manifest")
	}
	return &m, nil
}

// pair is one (url, hash) download derived from a manifest Target.
type pair struct {
	url  string
	hash string
}

// componentPairs returns up to two pairs for an available target: the
// xz-compressed pair first (if both fields present and non-empty), then
// the plain pair (same condition). Unavailable targets and incomplete
// pairs are discarded, matching the ChannelManifest invariant exactly.
func componentPairs(t Target) []pair {
	if !t.Available {
		return nil
	}
	var pairs []pair
	if t.XzURL != "" && t.XzHash != "" {
		pairs = append(pairs, pair{url: t.XzURL, hash: t.XzHash})
	}
	if t.URL != "" && t.Hash != "" {
		pairs = append(pairs, pair{url: t.URL, hash: t.Hash})
	}
	return pairs
}
