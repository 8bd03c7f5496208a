// Package controller provides output adapters for displaying snapshot and
// undo results.
package controller

import (
	"context"
	"os"

	"golang.org/x/term"

	"github.com/kpatel513/lyra/internal/domain"
	m "github.com/kpatel513/lyra/internal/model"
)

// UI defines the interface for displaying history entries, undo results
// and sandbox layouts. Implementations can use different output methods
// (simple text or an interactive TUI).
type UI interface {
	DisplayHistory(ctx context.Context, metas []m.RunMeta) error
	DisplayChanges(ctx context.Context, changes m.ChangeSet) error
	DisplayUndoSummary(ctx context.Context, summary m.UndoSummary) error
	DisplayDiffs(ctx context.Context, diffs []m.FileDiff) error
	DisplayIsolatedRun(ctx context.Context, run m.IsolatedRun) error
	DisplayOptimizeResult(ctx context.Context, result domain.OptimizeResult) error
}

// IsTTY reports whether f is attached to a terminal.
func IsTTY(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
