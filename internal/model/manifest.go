package model

// ManifestEntry records the identity of a single regular file: its
// POSIX-style path relative to the repository root, its size, and a
// SHA-256 digest of its full contents.
type ManifestEntry struct {
	RelPath string `json:"rel_path"`
	Size    int64  `json:"size"`
	SHA256  string `json:"sha256"`
}

// Manifest maps relative path to entry for every regular file under a
// repository root, excluding files under excluded top-level directories.
// Two manifests built from byte-identical trees are equal regardless of
// traversal order.
type Manifest map[string]ManifestEntry

// ScanReason classifies why a file was left out of a manifest.
type ScanReason string

// Scan failure reasons.
const (
	ScanOpenFailed ScanReason = "open-failed"
	ScanReadFailed ScanReason = "read-failed"
	ScanStatFailed ScanReason = "stat-failed"
)

// ScanFailure records a file that could not be hashed during a manifest
// build. Failures are reported alongside the manifest rather than
// silently dropped so callers can choose to surface them.
type ScanFailure struct {
	RelPath string     `json:"rel_path"`
	Reason  ScanReason `json:"reason"`
}
