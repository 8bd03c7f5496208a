package domain

import (
	"bytes"
	"fmt"
	"text/template"

	m "github.com/kpatel513/lyra/internal/model"
)

// Environment variables read by the injected guard module at process start.
const (
	GuardActivateEnv      = "LYRA_SAFE_PROFILE"
	GuardMaxStepsEnv      = "LYRA_MAX_STEPS"
	GuardDisableSavingEnv = "LYRA_DISABLE_SAVING"

	// DefaultGuardMaxSteps caps optimizer step invocations in a guarded run.
	DefaultGuardMaxSteps = 100
)

// GuardModuleName is the file written into the root of an isolated copy.
// Python imports sitecustomize automatically on interpreter start, which
// is what lets the guard run before any training code.
const GuardModuleName = "sitecustomize.py"

// DefaultGuardConfig returns the stock guard configuration.
func DefaultGuardConfig() m.GuardConfig {
	return m.GuardConfig{
		ActivateVar:      GuardActivateEnv,
		MaxStepsVar:      GuardMaxStepsEnv,
		DisableSavingVar: GuardDisableSavingEnv,
		MaxSteps:         DefaultGuardMaxSteps,
	}
}

// The guard is rendered as a single interceptor class with one install
// point instead of patch statements scattered through the module. When
// the activation variable is absent the module defines nothing and exits
// without side effects. On reaching the step cap it prints exactly one
// diagnostic line and performs a clean process exit; with saving disabled
// it replaces persistence calls with no-ops, warning once.
var guardTemplate = template.Must(template.New("guard").Parse(`import os
import sys


def _truthy(value):
    if value is None:
        return False
    return value.strip().lower() in {"1", "true", "yes", "y", "on"}


class _LyraGuard:
    """Caps optimizer steps and neutralizes persistence calls."""

    def __init__(self, max_steps, disable_saving):
        self.max_steps = max_steps
        self.disable_saving = disable_saving
        self.steps = 0
        self._warned = set()

    def _warn_once(self, key, msg):
        if key in self._warned:
            return
        self._warned.add(key)
        print("[lyra-guard] " + msg, file=sys.stderr)

    def wrap_step(self, original):
        guard = self

        def step(opt, *args, **kwargs):
            out = original(opt, *args, **kwargs)
            guard.steps += 1
            if guard.steps >= guard.max_steps:
                guard._warn_once("steps", "reached {{.MaxStepsVar}}=%d; exiting" % guard.max_steps)
                raise SystemExit(0)
            return out

        return step

    def wrap_save(self, name):
        def save(*args, **kwargs):
            self._warn_once("save", name + " disabled ({{.DisableSavingVar}}=1)")
            return None

        return save

    def install(self):
        try:
            import torch
            import torch.optim
        except Exception:
            return

        optimizer = torch.optim.Optimizer
        if not getattr(optimizer, "_lyra_guarded", False):
            optimizer.step = self.wrap_step(optimizer.step)
            optimizer._lyra_guarded = True

        if not self.disable_saving:
            return

        if not getattr(torch.save, "_lyra_disabled", False):
            torch._lyra_original_save = torch.save
            torch.save = self.wrap_save("torch.save")
            torch.save._lyra_disabled = True

        jit = getattr(torch, "jit", None)
        if jit is not None and hasattr(jit, "save"):
            jit._lyra_original_save = jit.save
            jit.save = self.wrap_save("torch.jit.save")


if _truthy(os.environ.get("{{.ActivateVar}}")):
    try:
        _max_steps = int(os.environ.get("{{.MaxStepsVar}}", "{{.MaxSteps}}"))
    except ValueError:
        _max_steps = {{.MaxSteps}}
    _LyraGuard(_max_steps, _truthy(os.environ.get("{{.DisableSavingVar}}", "{{if .DisableSaving}}1{{else}}0{{end}}"))).install()
`))

// RenderGuardModule renders the runtime-guard module for the given config.
func RenderGuardModule(cfg m.GuardConfig) ([]byte, error) {
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = DefaultGuardMaxSteps
	}

	var buf bytes.Buffer
	if err := guardTemplate.Execute(&buf, cfg); err != nil {
		return nil, fmt.Errorf("render guard module: %w", err)
	}

	return buf.Bytes(), nil
}
