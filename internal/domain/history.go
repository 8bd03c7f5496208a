package domain

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kpatel513/lyra/internal/adapter"
	m "github.com/kpatel513/lyra/internal/model"
)

// Backup policy defaults. Only likely-to-be-edited text/code files below
// the byte ceiling are copied into the backup archive; everything else is
// recorded as skipped with a reason so undo can explain its gaps.
const (
	DefaultMaxBackupBytes = 5 * 1024 * 1024
	binarySniffWindow     = 4096

	backupNote = "Undo can only restore files that were backed up."
)

// DefaultBackupExtensions returns the allow-list of file extensions
// eligible for backup.
func DefaultBackupExtensions() map[string]struct{} {
	return map[string]struct{}{
		".py":   {},
		".pyw":  {},
		".sh":   {},
		".md":   {},
		".txt":  {},
		".toml": {},
		".yaml": {},
		".yml":  {},
		".json": {},
	}
}

// BackupPolicy controls which manifest entries are copied into a history
// entry's backup archive.
type BackupPolicy struct {
	Extensions map[string]struct{}
	MaxBytes   int64
}

// DefaultBackupPolicy returns the stock policy.
func DefaultBackupPolicy() BackupPolicy {
	return BackupPolicy{
		Extensions: DefaultBackupExtensions(),
		MaxBytes:   DefaultMaxBackupBytes,
	}
}

// HistoryLifecycle orchestrates manifest capture around a mutation: Create
// captures the BEFORE state and backups, Finalize captures the AFTER state
// and computes the diff.
type HistoryLifecycle interface {
	// Create allocates a run id, writes the BEFORE manifest and backup
	// archive, and persists metadata immediately, so a restorable record
	// exists even if the subsequent mutation crashes.
	Create(ctx context.Context, repo m.Path, command string) (m.HistoryEntry, error)

	// Finalize re-scans the repository and persists the AFTER manifest and
	// the change set. Idempotent: with no further filesystem changes a
	// second call yields an identical change set.
	Finalize(ctx context.Context, entry m.HistoryEntry) (m.ChangeSet, error)

	// List returns metadata for every entry of the repository, newest first.
	List(ctx context.Context, repo m.Path) ([]m.RunMeta, error)
}

type historyLifecycle struct {
	fs      adapter.RepoFSAdapter
	store   adapter.HistoryStore
	builder ManifestBuilder
	policy  BackupPolicy
	now     func() time.Time
}

// NewHistoryLifecycle constructs a HistoryLifecycle with the given backup
// policy.
func NewHistoryLifecycle(
	fs adapter.RepoFSAdapter,
	store adapter.HistoryStore,
	builder ManifestBuilder,
	policy BackupPolicy,
) HistoryLifecycle {
	return &historyLifecycle{
		fs:      fs,
		store:   store,
		builder: builder,
		policy:  policy,
		now:     time.Now,
	}
}

// NewRunID derives a unique, sortable run identifier from t: a UTC
// second-resolution timestamp plus a random suffix, so rapid successive
// invocations cannot collide.
func NewRunID(t time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return t.UTC().Format("20060102-150405") + "-" + suffix
}

func (h *historyLifecycle) Create(ctx context.Context, repo m.Path, command string) (m.HistoryEntry, error) {
	createdAt := h.now().UTC()
	runID := NewRunID(createdAt)
	entry := h.store.EntryPaths(repo, runID)

	slog.Info("Creating history entry", "repo", repo, "run_id", runID, "command", command)

	before, failures, err := h.builder.Build(ctx, repo)
	if err != nil {
		return m.HistoryEntry{}, fmt.Errorf("build before manifest: %w", err)
	}

	if err := h.store.SaveManifest(entry.BeforeManifestPath, before); err != nil {
		return m.HistoryEntry{}, fmt.Errorf("save before manifest: %w", err)
	}

	backedUp, skipped := h.backup(entry, before)

	for _, f := range failures {
		skipped = append(skipped, m.SkippedFile{RelPath: f.RelPath, Reason: m.SkipUnreadable})
	}

	sort.Strings(backedUp)
	sort.Slice(skipped, func(i, j int) bool { return skipped[i].RelPath < skipped[j].RelPath })

	meta := m.RunMeta{
		Repo:         string(repo),
		RunID:        runID,
		CreatedAtUTC: createdAt.Format(time.RFC3339),
		Command:      command,
		BackedUp:     backedUp,
		Skipped:      skipped,
		Note:         backupNote,
	}

	if err := h.store.SaveMeta(entry, meta); err != nil {
		return m.HistoryEntry{}, fmt.Errorf("save meta: %w", err)
	}

	slog.Info("History entry created", "run_id", runID, "backed_up", len(backedUp), "skipped", len(skipped))

	return entry, nil
}

// backup copies every allow-listed, small enough, non-binary manifest
// entry into the backup archive at the same relative path.
func (h *historyLifecycle) backup(entry m.HistoryEntry, before m.Manifest) ([]string, []m.SkippedFile) {
	backedUp := []string{}
	skipped := []m.SkippedFile{}

	for rel, me := range before {
		ext := strings.ToLower(filepath.Ext(rel))
		if _, ok := h.policy.Extensions[ext]; !ok {
			skipped = append(skipped, m.SkippedFile{RelPath: rel, Reason: m.SkipExtension})
			continue
		}

		if me.Size > h.policy.MaxBytes {
			skipped = append(skipped, m.SkippedFile{RelPath: rel, Reason: m.SkipTooLarge})
			continue
		}

		src := h.fs.JoinPath(string(entry.Repo), rel)
		if h.fs.SniffBinary(src, binarySniffWindow) {
			skipped = append(skipped, m.SkippedFile{RelPath: rel, Reason: m.SkipBinary})
			continue
		}

		dst := h.fs.JoinPath(string(entry.BackupRoot), rel)
		if err := h.fs.CopyFile(src, dst); err != nil {
			slog.Warn("Failed to back up file", "rel_path", rel, "error", err)
			skipped = append(skipped, m.SkippedFile{RelPath: rel, Reason: m.SkipUnreadable})

			continue
		}

		backedUp = append(backedUp, rel)
	}

	return backedUp, skipped
}

func (h *historyLifecycle) Finalize(ctx context.Context, entry m.HistoryEntry) (m.ChangeSet, error) {
	before, err := h.store.LoadManifest(entry.BeforeManifestPath)
	if err != nil {
		return m.ChangeSet{}, fmt.Errorf("load before manifest: %w", err)
	}

	after, _, err := h.builder.Build(ctx, entry.Repo)
	if err != nil {
		return m.ChangeSet{}, fmt.Errorf("build after manifest: %w", err)
	}

	if err := h.store.SaveManifest(entry.AfterManifestPath, after); err != nil {
		return m.ChangeSet{}, fmt.Errorf("save after manifest: %w", err)
	}

	changes := DiffManifests(before, after)
	changes.RunID = entry.RunID

	if err := h.store.SaveChanges(entry, changes); err != nil {
		return m.ChangeSet{}, fmt.Errorf("save changes: %w", err)
	}

	slog.Info("History entry finalized",
		"run_id", entry.RunID,
		"added", len(changes.Added),
		"deleted", len(changes.Deleted),
		"modified", len(changes.Modified),
	)

	return changes, nil
}

func (h *historyLifecycle) List(_ context.Context, repo m.Path) ([]m.RunMeta, error) {
	return h.store.ListMetas(repo)
}

// DiffManifests computes the change set between two manifests: keys only
// in after are added, keys only in before are deleted, keys in both with
// differing hashes are modified. Each set is sorted.
func DiffManifests(before, after m.Manifest) m.ChangeSet {
	changes := m.ChangeSet{
		Added:    []string{},
		Deleted:  []string{},
		Modified: []string{},
	}

	for rel, ae := range after {
		be, ok := before[rel]
		if !ok {
			changes.Added = append(changes.Added, rel)
			continue
		}

		if be.SHA256 != ae.SHA256 {
			changes.Modified = append(changes.Modified, rel)
		}
	}

	for rel := range before {
		if _, ok := after[rel]; !ok {
			changes.Deleted = append(changes.Deleted, rel)
		}
	}

	sort.Strings(changes.Added)
	sort.Strings(changes.Deleted)
	sort.Strings(changes.Modified)

	return changes
}
