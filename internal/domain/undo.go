package domain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/kpatel513/lyra/internal/adapter"
	m "github.com/kpatel513/lyra/internal/model"
	"github.com/kpatel513/lyra/pkg"
)

// ErrNoHistory reports that a run id was not found or its records are
// incomplete. No files are touched in that case.
var ErrNoHistory = errors.New("history entry incomplete or missing")

// DivergenceError reports live files whose content no longer matches the
// hash recorded in the entry's AFTER manifest. Undo refuses to proceed
// without force so a human can inspect every offending path.
type DivergenceError struct {
	RunID string
	Paths []string
}

func (e *DivergenceError) Error() string {
	var b strings.Builder

	b.WriteString("refusing to undo because these files changed since the run:\n")

	for _, p := range e.Paths {
		fmt.Fprintf(&b, "  - %s\n", p)
	}

	b.WriteString("re-run with --force to overwrite")

	return b.String()
}

// undoJournalName is the per-entry progress log written during a restore.
const undoJournalName = "undo_journal.gob"

// restoreAction is one journaled step of an undo.
type restoreAction struct {
	RelPath string
	Action  string // "restored" | "removed" | "skipped-no-backup"
}

// UndoEngine consumes a history entry to safely reverse a mutation. It
// only reads the entry's records; the entry keeps owning them.
type UndoEngine interface {
	// Undo reverts the mutation recorded under runID. Without force it
	// refuses entirely when any changed file diverged from the recorded
	// AFTER state. Changed files that were never backed up are left
	// untouched and reported in the summary.
	Undo(ctx context.Context, repo m.Path, runID string, force bool) (m.UndoSummary, error)

	// Diffs returns unified diffs between each backed-up changed file and
	// its current live content, without touching anything.
	Diffs(ctx context.Context, repo m.Path, runID string) ([]m.FileDiff, error)
}

type undoEngine struct {
	fs    adapter.RepoFSAdapter
	store adapter.HistoryStore
}

// NewUndoEngine constructs an UndoEngine.
func NewUndoEngine(fs adapter.RepoFSAdapter, store adapter.HistoryStore) UndoEngine {
	return &undoEngine{fs: fs, store: store}
}

func (u *undoEngine) Undo(ctx context.Context, repo m.Path, runID string, force bool) (m.UndoSummary, error) {
	entry, changes, after, err := u.loadRecords(repo, runID)
	if err != nil {
		return m.UndoSummary{}, err
	}

	changed := unionSorted(changes.Modified, changes.Deleted)

	divergent := u.findDivergence(ctx, repo, changed, after)
	if len(divergent) > 0 && !force {
		return m.UndoSummary{}, &DivergenceError{RunID: runID, Paths: divergent}
	}

	journal, err := pkg.NewJournal[restoreAction](string(u.fs.JoinPath(string(entry.Root), undoJournalName)))
	if err != nil {
		return m.UndoSummary{}, fmt.Errorf("open undo journal: %w", err)
	}

	defer func() {
		_ = journal.Close()
	}()

	summary := m.UndoSummary{
		RunID:           runID,
		Restored:        []string{},
		Removed:         []string{},
		SkippedNoBackup: []string{},
	}

	// Remove files the mutation added. Already-absent paths are fine.
	for _, rel := range changes.Added {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		live := u.fs.JoinPath(string(repo), rel)
		if _, err := u.fs.Stat(live); err != nil {
			continue
		}

		if err := u.fs.Remove(live); err != nil {
			slog.Warn("Failed to remove added file", "rel_path", rel, "error", err)
			continue
		}

		summary.Removed = append(summary.Removed, rel)
		_ = journal.Append(restoreAction{RelPath: rel, Action: "removed"})
	}

	// Restore modified and deleted files from backups, one atomic
	// replace per file. Files without a backup are left untouched.
	for _, rel := range changed {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		backup := u.fs.JoinPath(string(entry.BackupRoot), rel)

		content, err := u.fs.ReadFile(backup)
		if err != nil {
			summary.SkippedNoBackup = append(summary.SkippedNoBackup, rel)
			_ = journal.Append(restoreAction{RelPath: rel, Action: "skipped-no-backup"})

			continue
		}

		// The backup copy carries the original file mode, so an executable
		// script comes back executable.
		mode := os.FileMode(0o600)
		if info, err := u.fs.Stat(backup); err == nil {
			mode = info.Mode().Perm()
		}

		live := u.fs.JoinPath(string(repo), rel)
		if err := u.fs.ReplaceFile(live, content, mode); err != nil {
			return summary, fmt.Errorf("restore %s: %w", rel, err)
		}

		summary.Restored = append(summary.Restored, rel)
		_ = journal.Append(restoreAction{RelPath: rel, Action: "restored"})
	}

	slog.Info("Undo complete",
		"run_id", runID,
		"restored", len(summary.Restored),
		"removed", len(summary.Removed),
		"skipped_no_backup", len(summary.SkippedNoBackup),
	)

	return summary, nil
}

func (u *undoEngine) Diffs(_ context.Context, repo m.Path, runID string) ([]m.FileDiff, error) {
	entry, changes, _, err := u.loadRecords(repo, runID)
	if err != nil {
		return nil, err
	}

	diffs := []m.FileDiff{}

	for _, rel := range unionSorted(changes.Modified, changes.Deleted) {
		backup, err := u.fs.ReadFile(u.fs.JoinPath(string(entry.BackupRoot), rel))
		if err != nil {
			continue
		}

		live, err := u.fs.ReadFile(u.fs.JoinPath(string(repo), rel))
		if err != nil && !os.IsNotExist(err) {
			continue
		}

		text, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
			A:        difflib.SplitLines(string(backup)),
			B:        difflib.SplitLines(string(live)),
			FromFile: rel + " (backup)",
			ToFile:   rel + " (current)",
			Context:  3,
		})
		if err != nil {
			return nil, fmt.Errorf("diff %s: %w", rel, err)
		}

		if text == "" {
			continue
		}

		diffs = append(diffs, m.FileDiff{RelPath: rel, Diff: text})
	}

	return diffs, nil
}

// loadRecords loads all three records of an entry, mapping any missing or
// malformed file to ErrNoHistory.
func (u *undoEngine) loadRecords(repo m.Path, runID string) (m.HistoryEntry, m.ChangeSet, m.Manifest, error) {
	entry := u.store.EntryPaths(repo, runID)

	changes, err := u.store.LoadChanges(entry)
	if err != nil {
		return entry, m.ChangeSet{}, nil, fmt.Errorf("%w: %s: %v", ErrNoHistory, runID, err)
	}

	after, err := u.store.LoadManifest(entry.AfterManifestPath)
	if err != nil {
		return entry, m.ChangeSet{}, nil, fmt.Errorf("%w: %s: %v", ErrNoHistory, runID, err)
	}

	if _, err := u.store.LoadManifest(entry.BeforeManifestPath); err != nil {
		return entry, m.ChangeSet{}, nil, fmt.Errorf("%w: %s: %v", ErrNoHistory, runID, err)
	}

	return entry, changes, after, nil
}

// findDivergence hashes every still-existing changed path and collects
// those whose content differs from the recorded AFTER state. Paths the
// AFTER manifest has no hash for (deleted by the mutation) cannot diverge.
func (u *undoEngine) findDivergence(ctx context.Context, repo m.Path, changed []string, after m.Manifest) []string {
	divergent := []string{}

	for _, rel := range changed {
		if ctx.Err() != nil {
			break
		}

		live := u.fs.JoinPath(string(repo), rel)
		if _, err := u.fs.Stat(live); err != nil {
			continue
		}

		expected, ok := after[rel]
		if !ok {
			continue
		}

		current, err := u.fs.HashFile(live)
		if err != nil {
			continue
		}

		if current != expected.SHA256 {
			divergent = append(divergent, rel)
		}
	}

	return divergent
}

func unionSorted(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))

	for _, s := range append(append([]string{}, a...), b...) {
		if _, ok := seen[s]; ok {
			continue
		}

		seen[s] = struct{}{}

		out = append(out, s)
	}

	sort.Strings(out)

	return out
}
