// Package cmd provides the root command and CLI setup for lyra.
package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/kpatel513/lyra/internal/adapter"
	"github.com/kpatel513/lyra/internal/controller"
	"github.com/kpatel513/lyra/internal/domain"
	m "github.com/kpatel513/lyra/internal/model"
)

var fsAdapter adapter.RepoFSAdapter
var historyStore adapter.HistoryStore
var agentAdapter adapter.AgentRunnerAdapter
var manifestBuilder domain.ManifestBuilder
var historyLifecycle domain.HistoryLifecycle
var undoEngine domain.UndoEngine
var sandboxPreparer domain.SandboxPreparer
var optimizeWorkflow domain.Workflow
var ui controller.UI

// repoFlag is a root-level flag shared by every command that operates on
// a repository.
var repoFlag string

// verboseFlag switches file logging to debug level.
var verboseFlag bool

// logFileFlag overrides the log file location.
var logFileFlag string

func init() {
	configureRootFlags(rootCmd)

	// Initialize shared dependencies.
	ui = controller.NewSimpleUI(rootCmd)
	fsAdapter = adapter.NewLocalRepoFSAdapter()
	historyStore = adapter.NewJSONHistoryStore()
	agentAdapter = adapter.NewLocalAgentRunnerAdapter(viper.GetString(agentBinaryKey))
	manifestBuilder = domain.NewManifestBuilder(fsAdapter, viper.GetInt(scanParallelConfigKey))
	historyLifecycle = domain.NewHistoryLifecycle(fsAdapter, historyStore, manifestBuilder, backupPolicyFromConfig())
	undoEngine = domain.NewUndoEngine(fsAdapter, historyStore)
	sandboxPreparer = domain.NewSandboxPreparer(fsAdapter)
	optimizeWorkflow = domain.NewWorkflow(historyLifecycle, agentAdapter)
}

func backupPolicyFromConfig() domain.BackupPolicy {
	policy := domain.DefaultBackupPolicy()
	if maxBytes := viper.GetInt64(backupMaxBytesKey); maxBytes > 0 {
		policy.MaxBytes = maxBytes
	}

	return policy
}

const rootLongDescription = `Lyra profiles ML training scripts and lets an external code-editing agent
optimize them. Every mutating run is bracketed by repository snapshots so
it can be reverted later, and scripts can be executed inside a disposable
sandboxed copy with a step-limiting runtime guard.`

// rootCmd represents the base command when called without any subcommands.
var rootCmd = baseRootCmd()

func baseRootCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lyra",
		Short: "Training-script optimization with snapshot and undo",
		Long:  rootLongDescription,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			configureLogger(logFileFlag, verboseFlag)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
}

func configureRootFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().
		StringVarP(
			&repoFlag, repoFlagName, "r",
			viper.GetString(repoConfigKey),
			"repository root to operate on",
		)
	bindFlagToConfig(cmd.PersistentFlags().Lookup(repoFlagName), repoConfigKey)

	cmd.PersistentFlags().BoolVarP(&verboseFlag, verboseFlagName, "v", viper.GetBool(logVerboseKey), "log at debug level")
	bindFlagToConfig(cmd.PersistentFlags().Lookup(verboseFlagName), logVerboseKey)

	cmd.PersistentFlags().StringVar(&logFileFlag, logFileFlagName, viper.GetString(logFilenameKey), "log file location")
	bindFlagToConfig(cmd.PersistentFlags().Lookup(logFileFlagName), logFilenameKey)
}

// bindFlagToConfig wires a Cobra flag to a Viper key so config/env values feed the flag.
func bindFlagToConfig(flag *pflag.Flag, key string) {
	if flag == nil {
		cobra.CheckErr(fmt.Errorf("flag for config key %q not found", key))
		return
	}

	cobra.CheckErr(viper.BindPFlag(key, flag))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

// resolveRepo turns the repo flag into an absolute path.
func resolveRepo() (m.Path, error) {
	repo := viper.GetString(repoConfigKey)
	if repo == "" {
		repo = defaultRepo
	}

	abs, err := filepath.Abs(repo)
	if err != nil {
		return "", fmt.Errorf("resolve repository path %q: %w", repo, err)
	}

	return m.Path(abs), nil
}
