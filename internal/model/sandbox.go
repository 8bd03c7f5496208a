package model

// IsolatedRun describes one disposable sandbox instance: a full copy of a
// repository prepared for guarded execution. The sandbox owns its copied
// tree exclusively; the original repository is read-only to it.
type IsolatedRun struct {
	OriginalRepo   Path
	RunDir         Path
	IsolatedRepo   Path
	IsolatedScript Path
	GuardPath      Path
}

// GuardConfig parameterizes the runtime-guard module injected into an
// isolated copy. The guard is a complete no-op unless the process it runs
// in has ActivateVar set to a truthy value.
type GuardConfig struct {
	ActivateVar      string
	MaxStepsVar      string
	DisableSavingVar string
	MaxSteps         int

	// DisableSaving bakes save-suppression on as the guard's default;
	// DisableSavingVar still overrides it at execution time.
	DisableSaving bool
}
