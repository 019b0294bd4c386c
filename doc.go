/*
Package regmirror is a mirror and proxy service for a package-registry
ecosystem: a version-controlled crate index, crate archives, and
toolchain channel/installer artifacts.

regmirror provides:
  - Incremental crate-index sync via commit diffing
  - Content-addressed archive integrity verification
  - Toolchain channel manifest fan-out across platforms and components
  - Optional object-storage replication
  - Local-first HTTP serving with redirect fallback and a version-control
    smart-protocol bridge

The main packages are:

	github.com/regmirror/regmirror/internal/index      - index clone/pull/diff/walk
	github.com/regmirror/regmirror/internal/crates     - crate sync orchestration
	github.com/regmirror/regmirror/internal/channel     - toolchain channel sync
	github.com/regmirror/regmirror/internal/rustup      - rustup-init sync
	github.com/regmirror/regmirror/internal/server      - HTTP serving layer
	github.com/regmirror/regmirror/internal/fetch       - hash-verified downloads
	github.com/regmirror/regmirror/internal/objectstore - storage replication
	github.com/regmirror/regmirror/internal/workpool    - bounded-concurrency scheduling
	github.com/regmirror/regmirror/internal/mirrorcfg   - merged configuration
	github.com/regmirror/regmirror/cmd/regmirror        - command-line interface
*/
package regmirror
