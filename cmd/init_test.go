package cmd

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// lyraConfigFile mirrors the document layout init writes.
type lyraConfigFile struct {
	Version int `yaml:"version"`
	Agent   struct {
		Binary  string `yaml:"binary"`
		Timeout string `yaml:"timeout"`
	} `yaml:"agent"`
	Backup struct {
		MaxBytes int64 `yaml:"max_bytes"`
	} `yaml:"backup"`
	Scan struct {
		Parallel int `yaml:"parallel"`
	} `yaml:"scan"`
	Sandbox struct {
		MaxSteps int `yaml:"max_steps"`
	} `yaml:"sandbox"`
}

func TestInit_WritesDefaultConfig(t *testing.T) {
	chdir(t, t.TempDir())

	cmd := newInitCmd()
	require.NoError(t, cmd.RunE(cmd, nil))

	data, err := os.ReadFile(configFileName)
	require.NoError(t, err)

	var cfg lyraConfigFile
	require.NoError(t, yaml.Unmarshal(data, &cfg))

	assert.Equal(t, currentConfigVersion, cfg.Version)
	assert.Equal(t, defaultAgentBinary, cfg.Agent.Binary)
	assert.Equal(t, defaultAgentTimeout.String(), cfg.Agent.Timeout)
	assert.Equal(t, int64(defaultMaxBackupBytes), cfg.Backup.MaxBytes)
	assert.Equal(t, defaultScanParallel, cfg.Scan.Parallel)
	assert.Equal(t, 100, cfg.Sandbox.MaxSteps)
}

func TestInit_RefusesToOverwrite(t *testing.T) {
	chdir(t, t.TempDir())

	require.NoError(t, os.WriteFile(configFileName, []byte("version: 1\n"), 0o600))

	cmd := newInitCmd()
	err := cmd.RunE(cmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to write config file")
}
