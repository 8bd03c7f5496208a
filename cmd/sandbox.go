package cmd

import (
	"context"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kpatel513/lyra/internal/domain"
	m "github.com/kpatel513/lyra/internal/model"
)

var sandboxScriptFlag string
var sandboxRunsRootFlag string
var sandboxMaxStepsFlag int
var sandboxNoSaveFlag bool

// sandboxCmd represents the sandbox command.
var sandboxCmd = newSandboxCmd()

func newSandboxCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sandbox",
		Short: "Prepare an isolated copy of the repository for guarded execution",
		Long: `Copy the repository into a fresh run directory and inject a runtime
guard. Executing the target script inside the copy with the guard's
activation environment variable set bounds optimizer steps and can
neutralize model-persistence calls.`,
		Args: cobra.ExactArgs(0),
		RunE: func(_ *cobra.Command, _ []string) error {
			repo, err := resolveRepo()
			if err != nil {
				return err
			}

			script := m.Path(sandboxScriptFlag)
			if !filepath.IsAbs(sandboxScriptFlag) {
				script = m.Path(filepath.Join(string(repo), sandboxScriptFlag))
			}

			opts := domain.SandboxOptions{
				MaxSteps:      sandboxMaxStepsFlag,
				DisableSaving: sandboxNoSaveFlag,
			}
			if sandboxRunsRootFlag != "" {
				opts.RunsRoot = m.Path(sandboxRunsRootFlag)
			}

			ctx := context.Background()

			run, err := sandboxPreparer.Prepare(ctx, repo, script, opts)
			if err != nil {
				return err
			}

			return ui.DisplayIsolatedRun(ctx, run)
		},
	}

	cmd.Flags().StringVarP(&sandboxScriptFlag, scriptFlagName, "s", "", "training script path (relative to the repository)")
	cobra.CheckErr(cmd.MarkFlagRequired(scriptFlagName))

	cmd.Flags().StringVar(&sandboxRunsRootFlag, runsRootFlagName, "", "directory for run directories (default: <repo>/.lyra/runs)")
	cmd.Flags().IntVar(&sandboxMaxStepsFlag, maxStepsFlagName, viper.GetInt(sandboxMaxStepsKey), "optimizer step cap baked into the guard default")
	bindFlagToConfig(cmd.Flags().Lookup(maxStepsFlagName), sandboxMaxStepsKey)

	cmd.Flags().BoolVar(&sandboxNoSaveFlag, noSaveFlagName, false, "bake save-suppression into the guard default")

	return cmd
}

func init() {
	rootCmd.AddCommand(sandboxCmd)
}
