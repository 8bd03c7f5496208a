// Package model defines the data structures for repository snapshots,
// history entries and isolated runs.
package model

// Path represents a file system path.
type Path string

// StateDirName is the directory under a repository root that holds all
// lyra-owned state (history entries, isolated runs). It is always excluded
// from manifests and copies so the subsystem never snapshots itself.
const StateDirName = ".lyra"
