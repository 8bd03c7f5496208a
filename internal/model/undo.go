package model

// UndoSummary reports exactly what an undo could and could not restore.
// SkippedNoBackup lists changed files that were never backed up (binary,
// oversized or unreadable at entry creation) and were left untouched.
type UndoSummary struct {
	RunID           string   `json:"run_id"`
	Restored        []string `json:"restored"`
	Removed         []string `json:"removed"`
	SkippedNoBackup []string `json:"skipped_no_backup"`
}

// FileDiff is a unified diff between a file's backed-up bytes and its
// current live bytes.
type FileDiff struct {
	RelPath string
	Diff    string
}
