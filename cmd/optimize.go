package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kpatel513/lyra/internal/domain"
)

var optimizeApplyFlag bool
var optimizePlanFlag bool
var optimizePromptFlag string
var optimizeScriptFlag string

// optimizeCmd represents the optimize command.
var optimizeCmd = newOptimizeCmd()

func newOptimizeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "optimize",
		Short: "Let the code-editing agent optimize the repository",
		Long: `Hand the repository to the external code-editing agent. Plan mode (the
default) modifies nothing. With --apply a history entry is created first,
the agent runs, and the resulting file changes are recorded so the run
can be undone later.`,
		Args: cobra.ExactArgs(0),
		RunE: func(_ *cobra.Command, _ []string) error {
			repo, err := resolveRepo()
			if err != nil {
				return err
			}

			ctx := context.Background()

			prompt := optimizePromptFlag
			if prompt == "" {
				prompt = defaultOptimizePrompt(optimizeScriptFlag)
			}

			command := "lyra optimize"
			if optimizeApplyFlag {
				command = "lyra optimize --apply"
			}

			if optimizeScriptFlag != "" {
				command += " --script " + optimizeScriptFlag
			}

			result, runErr := optimizeWorkflow.Optimize(ctx, domain.OptimizeArgs{
				Repo:         repo,
				Prompt:       prompt,
				Command:      command,
				Apply:        optimizeApplyFlag,
				AgentTimeout: agentTimeout(),
			})

			// Display whatever was recorded even when the agent failed:
			// the history entry exists and is undoable either way.
			if result.RunID != "" || runErr == nil {
				if err := ui.DisplayOptimizeResult(ctx, result); err != nil {
					return err
				}
			}

			if runErr != nil {
				return fmt.Errorf("optimize: %w", runErr)
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&optimizeApplyFlag, applyFlagName, false, "allow the agent to modify files (records a history entry)")
	cmd.Flags().BoolVar(&optimizePlanFlag, planFlagName, false, "read-only mode, modify nothing (the default)")
	cmd.Flags().StringVarP(&optimizePromptFlag, promptFlagName, "p", "", "prompt handed to the agent (overrides the script-derived default)")
	cmd.Flags().StringVarP(&optimizeScriptFlag, scriptFlagName, "s", "", "training script the agent should focus on")
	cmd.MarkFlagsMutuallyExclusive(applyFlagName, planFlagName)

	return cmd
}

// defaultOptimizePrompt builds the agent prompt when none is given.
func defaultOptimizePrompt(script string) string {
	if script == "" {
		return "Optimize the training code in this repository for speed without changing its observable behavior."
	}

	return fmt.Sprintf(
		"Optimize the training script %s for speed without changing its observable behavior.", script)
}

func init() {
	rootCmd.AddCommand(optimizeCmd)
}
