package model

// SkipReason classifies why a file present in the BEFORE manifest was not
// copied into the backup archive.
type SkipReason string

// Backup skip reasons.
const (
	SkipExtension  SkipReason = "extension"
	SkipTooLarge   SkipReason = "too-large"
	SkipBinary     SkipReason = "binary"
	SkipUnreadable SkipReason = "unreadable"
)

// SkippedFile is one file that was eligible by manifest but not backed up,
// tagged with the reason it was skipped.
type SkippedFile struct {
	RelPath string     `json:"rel_path"`
	Reason  SkipReason `json:"reason"`
}

// RunMeta is the durable metadata persisted for a history entry at
// creation time, before the external mutator runs.
type RunMeta struct {
	Repo         string        `json:"repo"`
	RunID        string        `json:"run_id"`
	CreatedAtUTC string        `json:"created_at_utc"`
	Command      string        `json:"command"`
	BackedUp     []string      `json:"backed_up_files"`
	Skipped      []SkippedFile `json:"skipped_files"`
	Note         string        `json:"note,omitempty"`
}

// HistoryEntry locates the on-disk records of one mutation attempt. The
// entry exclusively owns its backup archive and manifest files.
type HistoryEntry struct {
	Repo               Path
	RunID              string
	Root               Path
	BeforeManifestPath Path
	AfterManifestPath  Path
	ChangesPath        Path
	BackupRoot         Path
	MetaPath           Path
}

// ChangeSet is the diff between a BEFORE and an AFTER manifest: paths
// absent before and present after (added), present before and absent
// after (deleted), and present in both with differing hashes (modified).
type ChangeSet struct {
	RunID    string   `json:"run_id"`
	Added    []string `json:"added"`
	Deleted  []string `json:"deleted"`
	Modified []string `json:"modified"`
}

// Total returns the number of paths across all three sets.
func (c ChangeSet) Total() int {
	return len(c.Added) + len(c.Deleted) + len(c.Modified)
}

// Empty reports whether the mutation changed nothing.
func (c ChangeSet) Empty() bool {
	return c.Total() == 0
}
