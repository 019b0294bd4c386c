package index

import "strings"

// Dependency is one dependency line of an IndexEntry, matching the
// crates.io index schema exactly (field names and the three-way kind
// enum are wire contracts, not stylistic choices).
type Dependency struct {
	Name            string   `json:"name"`
	VersionReq      string   `json:"req"`
	Features        []string `json:"features"`
	Optional        bool     `json:"optional"`
	DefaultFeatures bool     `json:"default_features"`
	Target          *string  `json:"target"`
	Kind            string   `json:"kind"` // "normal", "build", or "dev"
	Package         *string  `json:"package,omitempty"`
}

// Entry is one line of a crate's index file.
type Entry struct {
	Name         string              `json:"name"`
	Version      string              `json:"vers"`
	Dependencies []Dependency        `json:"deps"`
	Checksum     string              `json:"cksum"`
	Features     map[string][]string `json:"features"`
	Yanked       bool                `json:"yanked"`
	Links        string              `json:"links,omitempty"`
	SchemaV      int                 `json:"v,omitempty"`
}

// ShardedPath implements the §3 path convention for a crate named c:
// |c| in {1,2} -> "<len>/<c>"; |c| == 3 -> "3/<c[0]>/<c>";
// else -> "<c[0:2]>/<c[2:4]>/<c>".
func ShardedPath(name string) string {
	switch len(name) {
	case 1, 2:
		return strings.Join([]string{itoa(len(name)), name}, "/")
	case 3:
		return strings.Join([]string{"3", name[0:1], name}, "/")
	default:
		return strings.Join([]string{name[0:2], name[2:4], name}, "/")
	}
}

func itoa(n int) string {
	return string(rune('0' + n))
}

// ArchivePath implements "crates/<name>/<name>-<version>.crate".
func ArchivePath(name, version string) string {
	return "crates/" + name + "/" + name + "-" + version + ".crate"
}

// ArchiveURL implements "<crates_domain>/<name>/<name>-<version>.crate".
func ArchiveURL(cratesDomain, name, version string) string {
	return strings.TrimRight(cratesDomain, "/") + "/" + name + "/" + name + "-" + version + ".crate"
}
