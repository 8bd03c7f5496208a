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

func newTestPreparer() SandboxPreparer {
	return NewSandboxPreparer(adapter.NewLocalRepoFSAdapter())
}

func prepareTestRepo(t *testing.T) string {
	t.Helper()

	repo := t.TempDir()
	writeRepoFile(t, repo, "train.py", "a=1\n")
	writeRepoFile(t, repo, "src/model.py", "m=1\n")
	writeRepoFile(t, repo, ".git/HEAD", "ref: refs/heads/main\n")
	writeRepoFile(t, repo, ".venv/pyvenv.cfg", "home = /usr\n")
	writeRepoFile(t, repo, "__pycache__/train.cpython-312.pyc", "pyc")
	writeRepoFile(t, repo, ".pytest_cache/CACHEDIR.TAG", "tag")
	writeRepoFile(t, repo, m.StateDirName+"/history/keep.json", "{}")

	return repo
}

func TestSandboxPrepare_CopiesRepoWithoutExcludedDirs(t *testing.T) {
	repo := prepareTestRepo(t)

	run, err := newTestPreparer().Prepare(
		context.Background(), m.Path(repo), m.Path(filepath.Join(repo, "train.py")), SandboxOptions{})
	require.NoError(t, err)

	assert.Equal(t, m.Path(repo), run.OriginalRepo)
	assert.FileExists(t, filepath.Join(string(run.IsolatedRepo), "train.py"))
	assert.FileExists(t, filepath.Join(string(run.IsolatedRepo), "src", "model.py"))

	for _, excluded := range []string{".git", ".venv", "__pycache__", ".pytest_cache", m.StateDirName} {
		assert.NoDirExists(t, filepath.Join(string(run.IsolatedRepo), excluded))
	}
}

func TestSandboxPrepare_DefaultRunsRootUnderStateDir(t *testing.T) {
	repo := prepareTestRepo(t)

	run, err := newTestPreparer().Prepare(
		context.Background(), m.Path(repo), m.Path(filepath.Join(repo, "train.py")), SandboxOptions{})
	require.NoError(t, err)

	runsRoot := filepath.Join(repo, m.StateDirName, runsDirName)
	assert.Equal(t, runsRoot, filepath.Dir(string(run.RunDir)))
	assert.Equal(t, isolatedRepoName, filepath.Base(string(run.IsolatedRepo)))
}

func TestSandboxPrepare_RunsRootOverride(t *testing.T) {
	repo := prepareTestRepo(t)
	runsRoot := t.TempDir()

	run, err := newTestPreparer().Prepare(
		context.Background(), m.Path(repo), m.Path(filepath.Join(repo, "train.py")),
		SandboxOptions{RunsRoot: m.Path(runsRoot)})
	require.NoError(t, err)

	assert.Equal(t, runsRoot, filepath.Dir(string(run.RunDir)))
}

func TestSandboxPrepare_WritesGuardModule(t *testing.T) {
	repo := prepareTestRepo(t)

	run, err := newTestPreparer().Prepare(
		context.Background(), m.Path(repo), m.Path(filepath.Join(repo, "train.py")), SandboxOptions{})
	require.NoError(t, err)

	assert.Equal(t, GuardModuleName, filepath.Base(string(run.GuardPath)))
	assert.Equal(t, string(run.IsolatedRepo), filepath.Dir(string(run.GuardPath)))

	guard, err := os.ReadFile(string(run.GuardPath))
	require.NoError(t, err)
	assert.Contains(t, string(guard), GuardActivateEnv)
	assert.Contains(t, string(guard), GuardMaxStepsEnv)
	assert.Contains(t, string(guard), GuardDisableSavingEnv)

	// The original tree stays clean.
	assert.NoFileExists(t, filepath.Join(repo, GuardModuleName))
}

func TestSandboxPrepare_ScriptOutsideRepo(t *testing.T) {
	repo := prepareTestRepo(t)

	outside := filepath.Join(t.TempDir(), "elsewhere.py")
	require.NoError(t, os.WriteFile(outside, []byte("x=1\n"), 0o600))

	_, err := newTestPreparer().Prepare(
		context.Background(), m.Path(repo), m.Path(outside), SandboxOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not inside repository")
}

func TestSandboxPrepare_MissingScript(t *testing.T) {
	repo := prepareTestRepo(t)

	_, err := newTestPreparer().Prepare(
		context.Background(), m.Path(repo), m.Path(filepath.Join(repo, "no_such.py")), SandboxOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found in isolated copy")
}

func TestRenderGuardModule_Defaults(t *testing.T) {
	guard, err := RenderGuardModule(DefaultGuardConfig())
	require.NoError(t, err)

	text := string(guard)
	assert.Contains(t, text, `os.environ.get("`+GuardActivateEnv+`")`)
	assert.Contains(t, text, `os.environ.get("`+GuardMaxStepsEnv+`", "100")`)
	assert.Contains(t, text, "SystemExit(0)")
	assert.Contains(t, text, "[lyra-guard]")
	assert.Contains(t, text, "class _LyraGuard")
}

func TestRenderGuardModule_MaxStepsOverride(t *testing.T) {
	cfg := DefaultGuardConfig()
	cfg.MaxSteps = 7

	guard, err := RenderGuardModule(cfg)
	require.NoError(t, err)
	assert.Contains(t, string(guard), `os.environ.get("`+GuardMaxStepsEnv+`", "7")`)
}

func TestRenderGuardModule_DisableSavingDefault(t *testing.T) {
	cfg := DefaultGuardConfig()
	cfg.DisableSaving = true

	guard, err := RenderGuardModule(cfg)
	require.NoError(t, err)
	assert.Contains(t, string(guard), `os.environ.get("`+GuardDisableSavingEnv+`", "1")`)

	off, err := RenderGuardModule(DefaultGuardConfig())
	require.NoError(t, err)
	assert.Contains(t, string(off), `os.environ.get("`+GuardDisableSavingEnv+`", "0")`)
}

func TestSandboxPrepare_DisableSavingBakedIntoGuard(t *testing.T) {
	repo := prepareTestRepo(t)

	run, err := newTestPreparer().Prepare(
		context.Background(), m.Path(repo), m.Path(filepath.Join(repo, "train.py")),
		SandboxOptions{DisableSaving: true})
	require.NoError(t, err)

	guard, err := os.ReadFile(string(run.GuardPath))
	require.NoError(t, err)
	assert.Contains(t, string(guard), `os.environ.get("`+GuardDisableSavingEnv+`", "1")`)
}

func TestRenderGuardModule_NonPositiveStepsFallsBack(t *testing.T) {
	cfg := DefaultGuardConfig()
	cfg.MaxSteps = 0

	guard, err := RenderGuardModule(cfg)
	require.NoError(t, err)
	assert.Contains(t, string(guard), `"100"`)
}
