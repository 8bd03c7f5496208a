package cmd

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/kpatel513/lyra/internal/controller"
)

var historyInteractiveFlag bool

// historyCmd represents the history command.
var historyCmd = newHistoryCmd()

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded optimization runs",
		Long:  "List the history entries recorded for the repository, newest first.",
		Args:  cobra.ExactArgs(0),
		RunE: func(_ *cobra.Command, _ []string) error {
			repo, err := resolveRepo()
			if err != nil {
				return err
			}

			ctx := context.Background()

			metas, err := historyLifecycle.List(ctx, repo)
			if err != nil {
				return err
			}

			if historyInteractiveFlag && controller.IsTTY(os.Stdout) {
				return controller.NewHistoryBrowser(os.Stdout).Browse(metas)
			}

			return ui.DisplayHistory(ctx, metas)
		},
	}

	cmd.Flags().BoolVarP(&historyInteractiveFlag, interactiveFlagName, "i", false, "browse entries interactively")

	return cmd
}

func init() {
	rootCmd.AddCommand(historyCmd)
}
