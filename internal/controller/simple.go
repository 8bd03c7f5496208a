package controller

import (
	"bytes"
	"context"
	"fmt"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/kpatel513/lyra/internal/domain"
	m "github.com/kpatel513/lyra/internal/model"
)

// SimpleUI implements UI using cobra Command's Println.
type SimpleUI struct {
	cmd *cobra.Command
}

// NewSimpleUI creates a new SimpleUI.
func NewSimpleUI(cmd *cobra.Command) *SimpleUI {
	return &SimpleUI{cmd: cmd}
}

// DisplayHistory prints one table row per history entry, newest first.
func (s *SimpleUI) DisplayHistory(ctx context.Context, metas []m.RunMeta) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if len(metas) == 0 {
		s.cmd.Println("No history entries found.")
		return nil
	}

	var buf bytes.Buffer

	table := tablewriter.NewWriter(&buf)
	table.SetHeader([]string{"Run ID", "Created (UTC)", "Command", "Backed Up", "Skipped"})
	table.SetBorder(false)
	table.SetCenterSeparator("")

	for _, meta := range metas {
		table.Append([]string{
			meta.RunID,
			meta.CreatedAtUTC,
			meta.Command,
			fmt.Sprintf("%d", len(meta.BackedUp)),
			fmt.Sprintf("%d", len(meta.Skipped)),
		})
	}

	table.Render()
	s.cmd.Print(buf.String())

	return nil
}

// DisplayChanges prints the added/deleted/modified sets of a change set.
func (s *SimpleUI) DisplayChanges(ctx context.Context, changes m.ChangeSet) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if changes.Empty() {
		s.cmd.Println("No changes recorded.")
		return nil
	}

	var buf bytes.Buffer

	table := tablewriter.NewWriter(&buf)
	table.SetHeader([]string{"Change", "Path"})
	table.SetBorder(false)
	table.SetCenterSeparator("")
	table.SetColumnAlignment([]int{tablewriter.ALIGN_LEFT, tablewriter.ALIGN_LEFT})

	for _, rel := range changes.Added {
		table.Append([]string{"added", rel})
	}

	for _, rel := range changes.Deleted {
		table.Append([]string{"deleted", rel})
	}

	for _, rel := range changes.Modified {
		table.Append([]string{"modified", rel})
	}

	table.Render()
	s.cmd.Print(buf.String())
	s.cmd.Printf("\n%d change(s) recorded for run %s\n", changes.Total(), changes.RunID)

	return nil
}

// DisplayUndoSummary prints what an undo restored, removed and skipped.
func (s *SimpleUI) DisplayUndoSummary(ctx context.Context, summary m.UndoSummary) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.cmd.Printf("Reverted snapshot: %s\n", summary.RunID)
	s.cmd.Printf(
		"Restored: %d | Removed: %d | Skipped (no backup): %d\n",
		len(summary.Restored),
		len(summary.Removed),
		len(summary.SkippedNoBackup),
	)

	for _, rel := range summary.SkippedNoBackup {
		s.cmd.Printf("  not restored (no backup): %s\n", rel)
	}

	return nil
}

// DisplayDiffs prints unified diffs, one block per changed file.
func (s *SimpleUI) DisplayDiffs(ctx context.Context, diffs []m.FileDiff) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if len(diffs) == 0 {
		s.cmd.Println("No backed-up changes to diff.")
		return nil
	}

	for _, d := range diffs {
		s.cmd.Print(d.Diff)
		s.cmd.Println()
	}

	return nil
}

// DisplayIsolatedRun prints the layout of a prepared sandbox.
func (s *SimpleUI) DisplayIsolatedRun(ctx context.Context, run m.IsolatedRun) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.cmd.Printf("Isolated run prepared.\n")
	s.cmd.Printf("  run dir:  %s\n", run.RunDir)
	s.cmd.Printf("  repo:     %s\n", run.IsolatedRepo)
	s.cmd.Printf("  script:   %s\n", run.IsolatedScript)
	s.cmd.Printf("  guard:    %s\n", run.GuardPath)
	s.cmd.Printf("Set %s=1 when executing the script to activate the guard.\n", domain.GuardActivateEnv)

	return nil
}

// DisplayOptimizeResult prints the outcome of an optimization attempt.
func (s *SimpleUI) DisplayOptimizeResult(ctx context.Context, result domain.OptimizeResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if result.Mode == "plan" {
		s.cmd.Println("Plan mode: no files were modified. Re-run with --apply to let the agent edit the repository.")
		return nil
	}

	s.cmd.Printf("Applied optimization run %s\n", result.RunID)

	return s.DisplayChanges(ctx, result.Changes)
}
