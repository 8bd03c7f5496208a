package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	m "github.com/kpatel513/lyra/internal/model"
)

var undoForceFlag bool

// undoCmd represents the undo command.
var undoCmd = newUndoCmd()

func newUndoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "undo [run-id]",
		Short: "Revert the repository to a recorded snapshot",
		Long: `Revert the file changes recorded for a run. Without a run id the most
recent history entry is used. Undo refuses to overwrite files that have
diverged since the run unless --force is given.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			repo, err := resolveRepo()
			if err != nil {
				return err
			}

			ctx := context.Background()

			runID := ""
			if len(args) == 1 {
				runID = args[0]
			}

			if runID == "" {
				runID, err = latestRunID(ctx, repo)
				if err != nil {
					return err
				}
			}

			summary, err := undoEngine.Undo(ctx, repo, runID, undoForceFlag)
			if err != nil {
				return err
			}

			return ui.DisplayUndoSummary(ctx, summary)
		},
	}

	cmd.Flags().BoolVarP(&undoForceFlag, forceFlagName, "f", false, "overwrite files that diverged since the run")
	cmd.AddCommand(newUndoShowCmd())

	return cmd
}

func newUndoShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show diffs between a run's backups and the current files",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			repo, err := resolveRepo()
			if err != nil {
				return err
			}

			ctx := context.Background()

			diffs, err := undoEngine.Diffs(ctx, repo, args[0])
			if err != nil {
				return err
			}

			return ui.DisplayDiffs(ctx, diffs)
		},
	}
}

// latestRunID resolves the newest history entry for the repository.
func latestRunID(ctx context.Context, repo m.Path) (string, error) {
	metas, err := historyLifecycle.List(ctx, repo)
	if err != nil {
		return "", err
	}

	if len(metas) == 0 {
		return "", errors.New("no history entries found")
	}

	if metas[0].RunID == "" {
		return "", fmt.Errorf("history metadata missing run_id")
	}

	return metas[0].RunID, nil
}

func init() {
	rootCmd.AddCommand(undoCmd)
}
