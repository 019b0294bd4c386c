package crates

import (
	"bufio"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

// CommitLog writes and reads CommitRecord lines "<from>,<to>,<unix_seconds>"
// to one file per calendar date, under dir.
type CommitLog struct {
	dir string
}

// NewCommitLog roots a CommitLog at dir (typically "<work_dir>/log").
func NewCommitLog(dir string) *CommitLog {
	return &CommitLog{dir: dir}
}

func (c *CommitLog) pathForDate(date string) string {
	return filepath.Join(c.dir, date+"-record.log")
}

// RecordCommit implements index.Recorder: append a record to
// today's log, but only when from != to (testable property #3).
func (c *CommitLog) RecordCommit(from, to string) error {
	if from == to {
		return nil
	}
	return c.append(time.Now().UTC().Format("2006-01-02"), from, to, time.Now().Unix())
}

func (c *CommitLog) append(date, from, to string, unixSeconds int64) error {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return errors.Wrap(err, "mkdir commit log dir")
	}
	f, err := os.OpenFile(c.pathForDate(date), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644) // #nosec G302,G304 - mirror-owned log file
	if err != nil {
		return errors.Wrap(err, "open commit log")
	}
	defer f.Close()

	line := strings.Join([]string{from, to, strconv.FormatInt(unixSeconds, 10)}, ",") + "\n"
	if _, err := f.WriteString(line); err != nil {
		return errors.Wrap(err, "append commit log")
	}
	return nil
}

// MostRecentToday returns the "to" field of the last line in today's
// commit-record file, the basis for Increment mode's diff source.
func (c *CommitLog) MostRecentToday() (to string, found bool, err error) {
	date := time.Now().UTC().Format("2006-01-02")
	f, err := os.Open(c.pathForDate(date)) // #nosec G304 - mirror-owned log file
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, errors.Wrap(err, "open today's commit log")
	}
	defer f.Close()

	var lastTo string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		parts := strings.Split(line, ",")
		if len(parts) != 3 {
			continue
		}
		lastTo = parts[1]
	}
	if err := scanner.Err(); err != nil {
		return "", false, err
	}
	if lastTo == "" {
		return "", false, nil
	}
	return lastTo, true, nil
}
