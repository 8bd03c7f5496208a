// Package domain implements the snapshot, undo and sandbox logic of Lyra.
package domain

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/kpatel513/lyra/internal/adapter"
	m "github.com/kpatel513/lyra/internal/model"
)

// ManifestExcludedDirs are directory names whose subtrees never enter a
// manifest: version-control metadata, dependency and build caches, and the
// subsystem's own state directory.
func ManifestExcludedDirs() map[string]struct{} {
	return map[string]struct{}{
		".git":        {},
		".venv":       {},
		"venv":        {},
		"build":       {},
		"dist":        {},
		"__pycache__": {},
		m.StateDirName: {},
	}
}

// ManifestBuilder produces a deterministic map of a directory tree's file
// identities. Files that cannot be read are reported as scan failures
// alongside the manifest rather than silently dropped.
type ManifestBuilder interface {
	Build(ctx context.Context, repo m.Path) (m.Manifest, []m.ScanFailure, error)
}

type manifestBuilder struct {
	fs      adapter.RepoFSAdapter
	threads int
}

// NewManifestBuilder constructs a ManifestBuilder hashing with up to
// threads concurrent workers. threads <= 0 means sequential.
func NewManifestBuilder(fs adapter.RepoFSAdapter, threads int) ManifestBuilder {
	return &manifestBuilder{fs: fs, threads: threads}
}

type scanCandidate struct {
	rel  string
	size int64
}

// Build walks the tree, then hashes surviving files through a bounded
// worker pool. The manifest is an unordered set of (path, hash) pairs, so
// no ordering between workers is assumed.
func (b *manifestBuilder) Build(ctx context.Context, repo m.Path) (m.Manifest, []m.ScanFailure, error) {
	var candidates []scanCandidate

	excluded := ManifestExcludedDirs()

	err := b.fs.WalkFiles(ctx, repo, excluded, func(rel string, info os.FileInfo) error {
		candidates = append(candidates, scanCandidate{rel: rel, size: info.Size()})
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("scan %s: %w", repo, err)
	}

	manifest := make(m.Manifest, len(candidates))

	var (
		failures []m.ScanFailure
		mu       sync.Mutex
	)

	group, ctx := errgroup.WithContext(ctx)
	if b.threads > 0 {
		group.SetLimit(b.threads)
	} else {
		group.SetLimit(1)
	}

	for _, c := range candidates {
		c := c
		group.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			hash, err := b.fs.HashFile(b.fs.JoinPath(string(repo), c.rel))

			mu.Lock()
			defer mu.Unlock()

			if err != nil {
				failures = append(failures, m.ScanFailure{RelPath: c.rel, Reason: scanReasonFor(err)})
				return nil
			}

			manifest[c.rel] = m.ManifestEntry{RelPath: c.rel, Size: c.size, SHA256: hash}

			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, nil, fmt.Errorf("hash files under %s: %w", repo, err)
	}

	if len(failures) > 0 {
		slog.Debug("Manifest build skipped unreadable files", "repo", repo, "count", len(failures))
	}

	return manifest, failures, nil
}

func scanReasonFor(err error) m.ScanReason {
	if os.IsNotExist(err) || os.IsPermission(err) {
		return m.ScanOpenFailed
	}

	return m.ScanReadFailed
}
