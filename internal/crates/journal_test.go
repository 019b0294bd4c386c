package crates

import (
	"path/filepath"
	"testing"
)

func TestJournalAppendAndReadAll(t *testing.T) {
	t.Parallel()

	j := NewJournal(filepath.Join(t.TempDir(), "errors.log"))

	records, err := j.ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if records != nil {
		t.Errorf("ReadAll() on missing file = %v, want nil", records)
	}

	if err := j.Append("serde", "1.0.0"); err != nil {
		t.Fatal(err)
	}
	if err := j.Append("serde", "1.0.1"); err != nil {
		t.Fatal(err)
	}

	records, err = j.ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Fatalf("len(records) = %d, want 2", len(records))
	}
	if records[0].Name != "serde" || records[0].Version != "1.0.0" {
		t.Errorf("records[0] = %+v", records[0])
	}
}

func TestJournalTruncate(t *testing.T) {
	t.Parallel()

	j := NewJournal(filepath.Join(t.TempDir(), "errors.log"))
	if err := j.Append("serde", "1.0.0"); err != nil {
		t.Fatal(err)
	}
	if err := j.Truncate(); err != nil {
		t.Fatal(err)
	}
	records, err := j.ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 0 {
		t.Errorf("records after truncate = %v, want empty", records)
	}

	// Truncating an already-empty journal is not an error.
	if err := j.Truncate(); err != nil {
		t.Fatal(err)
	}
}
