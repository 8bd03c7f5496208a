package adapter

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	m "github.com/kpatel513/lyra/internal/model"
)

// On-disk layout of one history entry under <repo>/.lyra/history/<run-id>/.
const (
	historyDirName     = "history"
	metaFileName       = "meta.json"
	beforeManifestName = "before_manifest.json"
	afterManifestName  = "after_manifest.json"
	changesFileName    = "changes.json"
	backupDirName      = "before"
)

// HistoryStore persists and loads the durable records of history entries:
// metadata, manifests and change sets. The backup archive itself is written
// through the RepoFSAdapter by the lifecycle; the store only deals in JSON
// documents.
type HistoryStore interface {
	// EntryPaths resolves the on-disk locations for a run id without
	// touching the disk.
	EntryPaths(repo m.Path, runID string) m.HistoryEntry

	// SaveMeta / LoadMeta persist the entry metadata.
	SaveMeta(entry m.HistoryEntry, meta m.RunMeta) error
	LoadMeta(entry m.HistoryEntry) (m.RunMeta, error)

	// SaveManifest / LoadManifest persist a manifest at the given path.
	SaveManifest(path m.Path, manifest m.Manifest) error
	LoadManifest(path m.Path) (m.Manifest, error)

	// SaveChanges / LoadChanges persist the computed change set.
	SaveChanges(entry m.HistoryEntry, changes m.ChangeSet) error
	LoadChanges(entry m.HistoryEntry) (m.ChangeSet, error)

	// ListMetas returns the metadata of every complete entry under the
	// repository's history root, newest first.
	ListMetas(repo m.Path) ([]m.RunMeta, error)
}

// JSONHistoryStore stores history records as pretty-printed JSON files,
// one directory per run id.
type JSONHistoryStore struct{}

// NewJSONHistoryStore constructs a JSONHistoryStore.
func NewJSONHistoryStore() *JSONHistoryStore {
	return &JSONHistoryStore{}
}

// HistoryRoot returns the directory that holds all history entries for a
// repository.
func HistoryRoot(repo m.Path) m.Path {
	return m.Path(filepath.Join(string(repo), m.StateDirName, historyDirName))
}

// EntryPaths resolves every file path belonging to a run id.
func (s *JSONHistoryStore) EntryPaths(repo m.Path, runID string) m.HistoryEntry {
	root := filepath.Join(string(HistoryRoot(repo)), runID)

	return m.HistoryEntry{
		Repo:               repo,
		RunID:              runID,
		Root:               m.Path(root),
		BeforeManifestPath: m.Path(filepath.Join(root, beforeManifestName)),
		AfterManifestPath:  m.Path(filepath.Join(root, afterManifestName)),
		ChangesPath:        m.Path(filepath.Join(root, changesFileName)),
		BackupRoot:         m.Path(filepath.Join(root, backupDirName)),
		MetaPath:           m.Path(filepath.Join(root, metaFileName)),
	}
}

// SaveMeta persists the entry metadata.
func (s *JSONHistoryStore) SaveMeta(entry m.HistoryEntry, meta m.RunMeta) error {
	return writeJSON(entry.MetaPath, meta)
}

// LoadMeta loads the entry metadata.
func (s *JSONHistoryStore) LoadMeta(entry m.HistoryEntry) (m.RunMeta, error) {
	var meta m.RunMeta
	if err := readJSON(entry.MetaPath, &meta); err != nil {
		return m.RunMeta{}, err
	}

	return meta, nil
}

// SaveManifest persists a manifest. JSON object keys serialize sorted, so
// the document is deterministic for a given manifest.
func (s *JSONHistoryStore) SaveManifest(path m.Path, manifest m.Manifest) error {
	return writeJSON(path, manifest)
}

// LoadManifest loads a manifest from the given path.
func (s *JSONHistoryStore) LoadManifest(path m.Path) (m.Manifest, error) {
	var manifest m.Manifest
	if err := readJSON(path, &manifest); err != nil {
		return nil, err
	}

	return manifest, nil
}

// SaveChanges persists the change set for an entry.
func (s *JSONHistoryStore) SaveChanges(entry m.HistoryEntry, changes m.ChangeSet) error {
	return writeJSON(entry.ChangesPath, changes)
}

// LoadChanges loads the change set for an entry.
func (s *JSONHistoryStore) LoadChanges(entry m.HistoryEntry) (m.ChangeSet, error) {
	var changes m.ChangeSet
	if err := readJSON(entry.ChangesPath, &changes); err != nil {
		return m.ChangeSet{}, err
	}

	return changes, nil
}

// ListMetas scans the history root and loads every readable meta.json,
// newest run id first. Entries with missing or malformed metadata are
// skipped, not fatal: one corrupt entry must not hide the rest.
func (s *JSONHistoryStore) ListMetas(repo m.Path) ([]m.RunMeta, error) {
	root := string(HistoryRoot(repo))

	dirEntries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("read history root: %w", err)
	}

	names := make([]string, 0, len(dirEntries))

	for _, de := range dirEntries {
		if de.IsDir() {
			names = append(names, de.Name())
		}
	}

	// Run ids are time-derived, so lexical descending order is newest first.
	sort.Sort(sort.Reverse(sort.StringSlice(names)))

	metas := make([]m.RunMeta, 0, len(names))

	for _, name := range names {
		var meta m.RunMeta
		if err := readJSON(m.Path(filepath.Join(root, name, metaFileName)), &meta); err != nil {
			slog.Warn("Skipping unreadable history entry", "run_id", name, "error", err)
			continue
		}

		metas = append(metas, meta)
	}

	return metas, nil
}

func writeJSON(path m.Path, obj any) error {
	data, err := json.MarshalIndent(obj, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(string(path)), err)
	}

	if err := os.MkdirAll(filepath.Dir(string(path)), 0o750); err != nil {
		return err
	}

	return os.WriteFile(string(path), append(data, '\n'), 0o600)
}

func readJSON(path m.Path, obj any) error {
	data, err := os.ReadFile(string(path))
	if err != nil {
		return err
	}

	if err := json.Unmarshal(data, obj); err != nil {
		return fmt.Errorf("unmarshal %s: %w", filepath.Base(string(path)), err)
	}

	return nil
}
