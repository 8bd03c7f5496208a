package domain

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kpatel513/lyra/internal/adapter"
	m "github.com/kpatel513/lyra/internal/model"
)

func writeRepoFile(t *testing.T, repo, rel, content string) {
	t.Helper()

	path := filepath.Join(repo, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestManifestBuilder_Deterministic(t *testing.T) {
	repo := t.TempDir()
	writeRepoFile(t, repo, "train.py", "a=1\n")
	writeRepoFile(t, repo, "utils.py", "def f():\n    return 2\n")
	writeRepoFile(t, repo, "data/config.yaml", "lr: 0.01\n")

	builder := NewManifestBuilder(adapter.NewLocalRepoFSAdapter(), 4)

	first, failures, err := builder.Build(context.Background(), m.Path(repo))
	require.NoError(t, err)
	assert.Empty(t, failures)

	second, _, err := builder.Build(context.Background(), m.Path(repo))
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, first, 3)
	assert.Equal(t, first["train.py"].SHA256, second["train.py"].SHA256)
	assert.Equal(t, int64(4), first["train.py"].Size)
}

func TestManifestBuilder_ExcludesTopLevelDirs(t *testing.T) {
	repo := t.TempDir()
	writeRepoFile(t, repo, "train.py", "a=1\n")
	writeRepoFile(t, repo, ".git/HEAD", "ref: refs/heads/main\n")
	writeRepoFile(t, repo, ".lyra/history/x/meta.json", "{}\n")
	writeRepoFile(t, repo, "__pycache__/train.cpython-311.pyc", "\x00\x01")
	writeRepoFile(t, repo, "venv/bin/activate", "export PATH\n")

	builder := NewManifestBuilder(adapter.NewLocalRepoFSAdapter(), 1)

	manifest, _, err := builder.Build(context.Background(), m.Path(repo))
	require.NoError(t, err)

	assert.Len(t, manifest, 1)
	assert.Contains(t, manifest, "train.py")
}

func TestManifestBuilder_KeepsNestedDirsMatchingExcludedNames(t *testing.T) {
	repo := t.TempDir()
	writeRepoFile(t, repo, "train.py", "a=1\n")
	writeRepoFile(t, repo, "build/gen.py", "g=1\n")
	writeRepoFile(t, repo, "src/build/gen.py", "g=2\n")
	writeRepoFile(t, repo, "docs/dist/notes.md", "n\n")

	builder := NewManifestBuilder(adapter.NewLocalRepoFSAdapter(), 1)

	manifest, _, err := builder.Build(context.Background(), m.Path(repo))
	require.NoError(t, err)

	// Exclusion applies to the first path segment only. Nested build/ and
	// dist/ directories are user code and must stay undoable.
	assert.NotContains(t, manifest, "build/gen.py")
	assert.Contains(t, manifest, "src/build/gen.py")
	assert.Contains(t, manifest, "docs/dist/notes.md")
}

func TestManifestBuilder_PosixRelPaths(t *testing.T) {
	repo := t.TempDir()
	writeRepoFile(t, repo, "pkg/nested/mod.py", "x=1\n")

	builder := NewManifestBuilder(adapter.NewLocalRepoFSAdapter(), 1)

	manifest, _, err := builder.Build(context.Background(), m.Path(repo))
	require.NoError(t, err)

	entry, ok := manifest["pkg/nested/mod.py"]
	require.True(t, ok)
	assert.Equal(t, "pkg/nested/mod.py", entry.RelPath)
}

// failingHashFS wraps the local adapter and fails hashing one path, so
// scan-failure reporting can be exercised without unreadable fixtures.
type failingHashFS struct {
	adapter.RepoFSAdapter
	failSuffix string
}

func (f *failingHashFS) HashFile(path m.Path) (string, error) {
	if filepath.Base(string(path)) == f.failSuffix {
		return "", os.ErrPermission
	}

	return f.RepoFSAdapter.HashFile(path)
}

func TestManifestBuilder_ReportsScanFailures(t *testing.T) {
	repo := t.TempDir()
	writeRepoFile(t, repo, "train.py", "a=1\n")
	writeRepoFile(t, repo, "broken.py", "b=2\n")

	fs := &failingHashFS{RepoFSAdapter: adapter.NewLocalRepoFSAdapter(), failSuffix: "broken.py"}
	builder := NewManifestBuilder(fs, 2)

	manifest, failures, err := builder.Build(context.Background(), m.Path(repo))
	require.NoError(t, err)

	assert.Len(t, manifest, 1)
	assert.Contains(t, manifest, "train.py")

	require.Len(t, failures, 1)
	assert.Equal(t, "broken.py", failures[0].RelPath)
	assert.Equal(t, m.ScanOpenFailed, failures[0].Reason)
}

func TestDiffManifests(t *testing.T) {
	tests := []struct {
		name         string
		before       m.Manifest
		after        m.Manifest
		wantAdded    []string
		wantDeleted  []string
		wantModified []string
	}{
		{
			name:         "identical",
			before:       m.Manifest{"a.py": {RelPath: "a.py", SHA256: "h1"}},
			after:        m.Manifest{"a.py": {RelPath: "a.py", SHA256: "h1"}},
			wantAdded:    []string{},
			wantDeleted:  []string{},
			wantModified: []string{},
		},
		{
			name:         "added and deleted",
			before:       m.Manifest{"old.py": {SHA256: "h1"}},
			after:        m.Manifest{"new.py": {SHA256: "h2"}},
			wantAdded:    []string{"new.py"},
			wantDeleted:  []string{"old.py"},
			wantModified: []string{},
		},
		{
			name: "modified",
			before: m.Manifest{
				"a.py": {SHA256: "h1"},
				"b.py": {SHA256: "h2"},
			},
			after: m.Manifest{
				"a.py": {SHA256: "h1x"},
				"b.py": {SHA256: "h2"},
			},
			wantAdded:    []string{},
			wantDeleted:  []string{},
			wantModified: []string{"a.py"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			changes := DiffManifests(tt.before, tt.after)

			assert.Equal(t, tt.wantAdded, changes.Added)
			assert.Equal(t, tt.wantDeleted, changes.Deleted)
			assert.Equal(t, tt.wantModified, changes.Modified)
		})
	}
}
