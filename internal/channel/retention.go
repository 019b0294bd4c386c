package channel

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

// channelTag pairs one of the two retained channels with its day-threshold
// config and the filename substring that marks a file as belonging to it.
type channelTag struct {
	tag  string
	days int
}

// Retain walks every "YYYY-MM-DD" directory directly under the dist root
// and, for each whose age exceeds the per-channel retention window,
// deletes every file whose name contains that channel's tag; the
// directory is removed once empty. Matches spec §4.G's retention pass and
// testable property #9 exactly.
func (s *Syncer) Retain(ctx context.Context) error {
	tags := []channelTag{
		{tag: "beta", days: s.cfg.Rustup.SyncBetaDays},
		{tag: "nightly", days: s.cfg.Rustup.SyncNightlyDays},
	}

	entries, err := os.ReadDir(s.cfg.DistDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrap(err, "read dist root")
	}

	now := time.Now().UTC()
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !entry.IsDir() {
			continue
		}
		date, err := time.Parse("2006-01-02", entry.Name())
		if err != nil {
			continue // not a dated snapshot directory
		}

		dirPath := filepath.Join(s.cfg.DistDir(), entry.Name())
		ageDays := int(now.Sub(date).Hours() / 24)
		for _, ct := range tags {
			if ct.days <= 0 || ageDays <= ct.days {
				continue
			}
			if err := removeTaggedFiles(dirPath, ct.tag); err != nil {
				return errors.Wrapf(err, "clean %s from %s", ct.tag, dirPath)
			}
		}
		removeIfEmpty(dirPath)
	}
	return nil
}

func removeTaggedFiles(dir, tag string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.Contains(e.Name(), tag) {
			if err := os.Remove(filepath.Join(dir, e.Name())); err != nil {
				return err
			}
		}
	}
	return nil
}

func removeIfEmpty(dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil || len(entries) > 0 {
		return
	}
	_ = os.Remove(dir)
}
