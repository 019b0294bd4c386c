package server

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"

	"github.com/cockroachdb/errors"
	"github.com/regmirror/regmirror/internal/index"
)

const maxPublishMetadataSize = 1 << 20 // 1MiB guard on the JSON header block

var (
	validCrateName    = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)
	validCrateVersion = regexp.MustCompile(`^[a-zA-Z0-9.+_-]{1,64}$`)
)

// handlePublish implements "POST /api/v1/crates/new": a 4-byte
// little-endian length, JSON metadata, a second 4-byte little-endian
// length, then raw crate bytes.
func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	meta, body, err := readPublishBody(r.Body)
	if err != nil {
		writePublishError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.writePublishedCrate(meta, body); err != nil {
		writePublishError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(PublishRsp{})
}

// writePublishError answers a failed publish with the Errors envelope.
func writePublishError(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(NewErrors(detail))
}

func readPublishBody(r io.Reader) (CratesPublish, []byte, error) {
	var meta CratesPublish

	metaLen, err := readU32LE(r)
	if err != nil {
		return meta, nil, errors.Wrap(err, "read metadata length")
	}
	if metaLen == 0 || metaLen > maxPublishMetadataSize {
		return meta, nil, errors.Newf("metadata length out of range: %d", metaLen)
	}
	metaBytes := make([]byte, metaLen)
	if _, err := io.ReadFull(r, metaBytes); err != nil {
		return meta, nil, errors.Wrap(err, "read metadata body")
	}
	if err := json.Unmarshal(metaBytes, &meta); err != nil {
		return meta, nil, errors.Wrap(err, "parse crate metadata")
	}
	if !validCrateName.MatchString(meta.Name) {
		return meta, nil, errors.New("invalid crate name: " + meta.Name)
	}
	if !validCrateVersion.MatchString(meta.Vers) {
		return meta, nil, errors.New("invalid crate version: " + meta.Vers)
	}

	crateLen, err := readU32LE(r)
	if err != nil {
		return meta, nil, errors.Wrap(err, "read crate length")
	}
	crateBytes := make([]byte, crateLen)
	if _, err := io.ReadFull(r, crateBytes); err != nil {
		return meta, nil, errors.Wrap(err, "read crate body")
	}
	return meta, crateBytes, nil
}

func readU32LE(r io.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

// writePublishedCrate derives the archive and index-entry paths and writes
// both. Callers must have already validated meta.Name/meta.Vers via
// readPublishBody; this is the only path that constructs filesystem paths
// from publish metadata.
func (s *Server) writePublishedCrate(meta CratesPublish, crateBytes []byte) error {
	sum := sha256.Sum256(crateBytes)
	checksum := hex.EncodeToString(sum[:])

	archivePath := filepath.Join(s.cfg.CratesDir(), meta.Name, meta.Name+"-"+meta.Vers+".crate")
	if err := os.MkdirAll(filepath.Dir(archivePath), 0o755); err != nil {
		return errors.Wrap(err, "mkdir crate directory")
	}
	if err := os.WriteFile(archivePath, crateBytes, 0o644); err != nil {
		return errors.Wrap(err, "write crate archive")
	}

	entry := index.Entry{
		Name:         meta.Name,
		Version:      meta.Vers,
		Dependencies: toIndexDeps(meta.Deps),
		Checksum:     checksum,
		Features:     meta.Features,
	}
	if meta.Links != nil {
		entry.Links = *meta.Links
	}
	line, err := json.Marshal(entry)
	if err != nil {
		return errors.Wrap(err, "marshal index entry")
	}

	indexPath := filepath.Join(s.cfg.IndexDir(), filepath.FromSlash(index.ShardedPath(meta.Name)))
	if err := os.MkdirAll(filepath.Dir(indexPath), 0o755); err != nil {
		return errors.Wrap(err, "mkdir index directory")
	}
	f, err := os.OpenFile(indexPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644) // #nosec G304 - path derived from validated crate name
	if err != nil {
		return errors.Wrap(err, "open index file")
	}
	defer f.Close()
	if _, err := f.Write(append(line, '\n')); err != nil {
		return errors.Wrap(err, "append index line")
	}
	return nil
}

func toIndexDeps(deps []Dep) []index.Dependency {
	out := make([]index.Dependency, len(deps))
	for i, d := range deps {
		name := d.Name
		if d.ExplicitNameInTOML != nil {
			name = *d.ExplicitNameInTOML
		}
		var pkg *string
		if d.ExplicitNameInTOML != nil {
			original := d.Name
			pkg = &original
		}
		out[i] = index.Dependency{
			Name:            name,
			VersionReq:      d.VersionReq,
			Features:        d.Features,
			Optional:        d.Optional,
			DefaultFeatures: d.DefaultFeatures,
			Target:          d.Target,
			Kind:            d.Kind,
			Package:         pkg,
		}
	}
	return out
}
