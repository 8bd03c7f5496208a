package domain

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/kpatel513/lyra/internal/adapter"
	m "github.com/kpatel513/lyra/internal/model"
)

const (
	runsDirName        = "runs"
	isolatedRepoName   = "repo"
	runDirTimestampFmt = "20060102-150405"
)

// SandboxExcludedDirs are directory names never copied into an isolated
// run: everything a manifest excludes plus tool caches.
func SandboxExcludedDirs() map[string]struct{} {
	dirs := ManifestExcludedDirs()
	dirs[".pytest_cache"] = struct{}{}
	dirs[".ruff_cache"] = struct{}{}

	return dirs
}

// SandboxOptions configure an isolated run. A zero value uses the
// defaults: run directories under <repo>/.lyra/runs and the stock guard.
type SandboxOptions struct {
	// RunsRoot overrides where run directories are allocated.
	RunsRoot m.Path

	// MaxSteps overrides the guard's default step cap.
	MaxSteps int

	// DisableSaving bakes save-suppression into the rendered guard as its
	// default; the guard's env variable still overrides it at execution.
	DisableSaving bool
}

// SandboxPreparer builds a disposable full copy of a repository plus an
// injected runtime guard, for untrusted or exploratory execution. The
// caller owns eventual cleanup of the run directory.
type SandboxPreparer interface {
	Prepare(ctx context.Context, repo, script m.Path, opts SandboxOptions) (m.IsolatedRun, error)
}

type sandboxPreparer struct {
	fs  adapter.RepoFSAdapter
	now func() time.Time
}

// NewSandboxPreparer constructs a SandboxPreparer.
func NewSandboxPreparer(fs adapter.RepoFSAdapter) SandboxPreparer {
	return &sandboxPreparer{fs: fs, now: time.Now}
}

// Prepare copies the repository into a fresh timestamped run directory,
// verifies the target script exists inside the copy, and writes the guard
// module at the copy's root.
func (s *sandboxPreparer) Prepare(ctx context.Context, repo, script m.Path, opts SandboxOptions) (m.IsolatedRun, error) {
	relScript, err := s.fs.RelPath(repo, script)
	if err != nil || filepath.IsAbs(string(relScript)) || startsWithParent(string(relScript)) {
		return m.IsolatedRun{}, fmt.Errorf("script %s is not inside repository %s", script, repo)
	}

	runsRoot := opts.RunsRoot
	if runsRoot == "" {
		runsRoot = s.fs.JoinPath(string(repo), m.StateDirName, runsDirName)
	}

	runDir := s.fs.JoinPath(string(runsRoot), s.now().UTC().Format(runDirTimestampFmt))
	isolatedRepo := s.fs.JoinPath(string(runDir), isolatedRepoName)

	slog.Info("Preparing isolated run", "repo", repo, "run_dir", runDir)

	if err := s.fs.CopyTree(ctx, repo, isolatedRepo, SandboxExcludedDirs()); err != nil {
		return m.IsolatedRun{}, fmt.Errorf("copy repository: %w", err)
	}

	isolatedScript := s.fs.JoinPath(string(isolatedRepo), string(relScript))
	if _, err := s.fs.Stat(isolatedScript); err != nil {
		// The copy is incomplete or the path was wrong; fail fast rather
		// than let a later execution step fail confusingly.
		return m.IsolatedRun{}, fmt.Errorf("script not found in isolated copy: %s: %w", isolatedScript, err)
	}

	cfg := DefaultGuardConfig()
	if opts.MaxSteps > 0 {
		cfg.MaxSteps = opts.MaxSteps
	}

	cfg.DisableSaving = opts.DisableSaving

	guard, err := RenderGuardModule(cfg)
	if err != nil {
		return m.IsolatedRun{}, err
	}

	guardPath := s.fs.JoinPath(string(isolatedRepo), GuardModuleName)
	if err := s.fs.WriteFile(guardPath, guard, 0o600); err != nil {
		return m.IsolatedRun{}, fmt.Errorf("write guard module: %w", err)
	}

	return m.IsolatedRun{
		OriginalRepo:   repo,
		RunDir:         runDir,
		IsolatedRepo:   isolatedRepo,
		IsolatedScript: isolatedScript,
		GuardPath:      guardPath,
	}, nil
}

func startsWithParent(rel string) bool {
	return rel == ".." || len(rel) > 2 && rel[:3] == ".."+string(filepath.Separator)
}
