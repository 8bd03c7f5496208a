package domain

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kpatel513/lyra/internal/adapter"
	m "github.com/kpatel513/lyra/internal/model"
)

func newTestLifecycle(policy BackupPolicy) HistoryLifecycle {
	fs := adapter.NewLocalRepoFSAdapter()

	return NewHistoryLifecycle(fs, adapter.NewJSONHistoryStore(), NewManifestBuilder(fs, 2), policy)
}

func skipReasonFor(t *testing.T, meta m.RunMeta, rel string) m.SkipReason {
	t.Helper()

	for _, s := range meta.Skipped {
		if s.RelPath == rel {
			return s.Reason
		}
	}

	t.Fatalf("path %s not found in skipped list", rel)

	return ""
}

func TestHistoryLifecycle_CreateBacksUpEligibleFiles(t *testing.T) {
	repo := t.TempDir()
	writeRepoFile(t, repo, "train.py", "a=1\n")
	writeRepoFile(t, repo, "weights.bin", "bin\x00data")

	lifecycle := newTestLifecycle(DefaultBackupPolicy())

	entry, err := lifecycle.Create(context.Background(), m.Path(repo), "test")
	require.NoError(t, err)
	assert.NotEmpty(t, entry.RunID)

	backedUp, err := os.ReadFile(filepath.Join(string(entry.BackupRoot), "train.py"))
	require.NoError(t, err)
	assert.Equal(t, "a=1\n", string(backedUp))

	// Metadata and BEFORE manifest must exist before any mutation runs.
	store := adapter.NewJSONHistoryStore()

	meta, err := store.LoadMeta(entry)
	require.NoError(t, err)
	assert.Equal(t, entry.RunID, meta.RunID)
	assert.Equal(t, "test", meta.Command)
	assert.Equal(t, []string{"train.py"}, meta.BackedUp)

	before, err := store.LoadManifest(entry.BeforeManifestPath)
	require.NoError(t, err)
	assert.Contains(t, before, "train.py")
	assert.Contains(t, before, "weights.bin")
}

func TestHistoryLifecycle_SkipReasons(t *testing.T) {
	repo := t.TempDir()
	writeRepoFile(t, repo, "train.py", "a=1\n")
	writeRepoFile(t, repo, "weights.bin", "raw")
	writeRepoFile(t, repo, "binary.py", "x\x00y")
	writeRepoFile(t, repo, "huge.py", strings.Repeat("x = 1\n", 100))

	policy := DefaultBackupPolicy()
	policy.MaxBytes = 64

	lifecycle := newTestLifecycle(policy)

	entry, err := lifecycle.Create(context.Background(), m.Path(repo), "test")
	require.NoError(t, err)

	meta, err := adapter.NewJSONHistoryStore().LoadMeta(entry)
	require.NoError(t, err)

	assert.Equal(t, []string{"train.py"}, meta.BackedUp)
	assert.Equal(t, m.SkipExtension, skipReasonFor(t, meta, "weights.bin"))
	assert.Equal(t, m.SkipBinary, skipReasonFor(t, meta, "binary.py"))
	assert.Equal(t, m.SkipTooLarge, skipReasonFor(t, meta, "huge.py"))
}

func TestHistoryLifecycle_FinalizeComputesChanges(t *testing.T) {
	repo := t.TempDir()
	writeRepoFile(t, repo, "train.py", "a=1\n")
	writeRepoFile(t, repo, "utils.py", "u=1\n")
	writeRepoFile(t, repo, "old.py", "o=1\n")

	lifecycle := newTestLifecycle(DefaultBackupPolicy())

	entry, err := lifecycle.Create(context.Background(), m.Path(repo), "test")
	require.NoError(t, err)

	writeRepoFile(t, repo, "train.py", "a=2\n")
	writeRepoFile(t, repo, "new_helper.py", "h=1\n")
	require.NoError(t, os.Remove(filepath.Join(repo, "old.py")))

	changes, err := lifecycle.Finalize(context.Background(), entry)
	require.NoError(t, err)

	assert.Equal(t, entry.RunID, changes.RunID)
	assert.Equal(t, []string{"new_helper.py"}, changes.Added)
	assert.Equal(t, []string{"old.py"}, changes.Deleted)
	assert.Equal(t, []string{"train.py"}, changes.Modified)
}

func TestHistoryLifecycle_FinalizeIdempotent(t *testing.T) {
	repo := t.TempDir()
	writeRepoFile(t, repo, "train.py", "a=1\n")

	lifecycle := newTestLifecycle(DefaultBackupPolicy())

	entry, err := lifecycle.Create(context.Background(), m.Path(repo), "test")
	require.NoError(t, err)

	writeRepoFile(t, repo, "train.py", "a=2\n")

	first, err := lifecycle.Finalize(context.Background(), entry)
	require.NoError(t, err)

	second, err := lifecycle.Finalize(context.Background(), entry)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestHistoryLifecycle_ListNewestFirst(t *testing.T) {
	repo := t.TempDir()
	writeRepoFile(t, repo, "train.py", "a=1\n")

	lifecycle := newTestLifecycle(DefaultBackupPolicy())

	first, err := lifecycle.Create(context.Background(), m.Path(repo), "first")
	require.NoError(t, err)

	second, err := lifecycle.Create(context.Background(), m.Path(repo), "second")
	require.NoError(t, err)

	metas, err := lifecycle.List(context.Background(), m.Path(repo))
	require.NoError(t, err)
	require.Len(t, metas, 2)

	ids := []string{metas[0].RunID, metas[1].RunID}
	assert.Contains(t, ids, first.RunID)
	assert.Contains(t, ids, second.RunID)
	assert.GreaterOrEqual(t, metas[0].RunID, metas[1].RunID)
}

func TestNewRunID_UniqueWithinSameSecond(t *testing.T) {
	now := time.Now()

	seen := make(map[string]struct{})

	for i := 0; i < 50; i++ {
		id := NewRunID(now)
		_, dup := seen[id]
		assert.False(t, dup, "duplicate run id %s", id)
		seen[id] = struct{}{}
	}
}

func TestNewRunID_SortableTimestampPrefix(t *testing.T) {
	earlier := NewRunID(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	later := NewRunID(time.Date(2026, 1, 2, 3, 4, 6, 0, time.UTC))

	assert.Less(t, earlier[:15], later[:15])
	assert.True(t, strings.HasPrefix(earlier, "20260102-030405"))
}
