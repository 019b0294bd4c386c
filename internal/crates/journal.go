// Package crates implements the Crate Sync Orchestrator: Init, Increment
// and Repair modes driving the index repository, walker, fetcher, worker
// pool and storage uploader.
package crates

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
)

// ErrorRecord is one line of the error journal: {name, version, time}.
type ErrorRecord struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Time    int64  `json:"time"`
}

// Journal is the single append-only error journal, mutated from many
// workers under one process-wide lock so every append is one whole JSON
// object plus newline (spec §5's shared-mutex file journal).
type Journal struct {
	path string
	mu   sync.Mutex
}

// NewJournal opens the journal at path (created on first Append).
func NewJournal(path string) *Journal {
	return &Journal{path: path}
}

// Append writes one ErrorRecord as a JSON line, creating parent
// directories and the file as needed.
func (j *Journal) Append(name, version string) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(j.path), 0o755); err != nil {
		return errors.Wrap(err, "mkdir error journal dir")
	}
	f, err := os.OpenFile(j.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644) // #nosec G302,G304 - journal is a mirror-owned log file
	if err != nil {
		return errors.Wrap(err, "open error journal")
	}
	defer f.Close()

	rec := ErrorRecord{Name: name, Version: version, Time: time.Now().Unix()}
	line, err := json.Marshal(rec)
	if err != nil {
		return errors.Wrap(err, "marshal error record")
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		return errors.Wrap(err, "append error journal")
	}
	return nil
}

// ReadAll returns every record currently in the journal. A missing file
// is treated as an empty journal.
func (j *Journal) ReadAll() ([]ErrorRecord, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	f, err := os.Open(j.path) // #nosec G304 - mirror-owned log file
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "open error journal")
	}
	defer f.Close()

	var records []ErrorRecord
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var rec ErrorRecord
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			return nil, errors.Wrap(err, "parse error record")
		}
		records = append(records, rec)
	}
	return records, scanner.Err()
}

// Truncate empties the journal, used after a repair pass completes with
// no new failures (spec testable property #2).
func (j *Journal) Truncate() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if err := os.Remove(j.path); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "truncate error journal")
	}
	return nil
}
