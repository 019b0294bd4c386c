package channel

import (
	"path"
	"strings"
	"time"
)

// resolution is the manifest name, download URL, and local directory
// derived from a channel selector.
type resolution struct {
	manifestName string
	url          string
	localDir     string
}

// resolve implements spec §4.G's channel name resolution table.
func resolve(domain, distRoot, selector string) resolution {
	if date, ok := dateSuffix(selector, "nightly-"); ok {
		return resolution{
			manifestName: "channel-rust-nightly.toml",
			url:          domain + "/dist/" + date + "/channel-rust-nightly.toml",
			localDir:     path.Join(distRoot, date),
		}
	}
	if date, ok := dateSuffix(selector, "beta-"); ok {
		return resolution{
			manifestName: "channel-rust-beta.toml",
			url:          domain + "/dist/" + date + "/channel-rust-beta.toml",
			localDir:     path.Join(distRoot, date),
		}
	}
	manifestName := "channel-rust-" + selector + ".toml"
	return resolution{
		manifestName: manifestName,
		url:          domain + "/dist/" + manifestName,
		localDir:     distRoot,
	}
}

// dateSuffix reports whether selector is "<prefix><YYYY-MM-DD>" and
// returns the date portion.
func dateSuffix(selector, prefix string) (string, bool) {
	if !strings.HasPrefix(selector, prefix) {
		return "", false
	}
	date := strings.TrimPrefix(selector, prefix)
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return "", false
	}
	return date, true
}

// dateRange returns every calendar day from start to end inclusive,
// formatted "YYYY-MM-DD".
func dateRange(start, end time.Time) []string {
	var days []string
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		days = append(days, d.Format("2006-01-02"))
	}
	return days
}
