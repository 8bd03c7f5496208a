package controller

import (
	"fmt"
	"io"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	m "github.com/kpatel513/lyra/internal/model"
)

var (
	tuiTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Border(lipgloss.NormalBorder()).
			Padding(0, 2)

	tuiSelectedStyle = lipgloss.NewStyle().Bold(true).Reverse(true)
	tuiDimStyle      = lipgloss.NewStyle().Faint(true)
)

// HistoryBrowser shows history entries in an interactive scrollable list
// using Bubble Tea.
type HistoryBrowser struct {
	output io.Writer
}

// NewHistoryBrowser creates a HistoryBrowser writing to output.
func NewHistoryBrowser(output io.Writer) *HistoryBrowser {
	return &HistoryBrowser{output: output}
}

// Browse displays the entries interactively. When the list fits on one
// screen it just prints and returns without taking over the terminal.
func (hb *HistoryBrowser) Browse(metas []m.RunMeta) error {
	model := newHistoryModel(metas)

	if f, ok := hb.output.(*os.File); ok {
		width, height, err := term.GetSize(int(f.Fd()))
		if err == nil {
			model.width = width
			model.height = height
		}
	}

	if !model.needsPagination() {
		_, err := fmt.Fprint(hb.output, model.View())
		return err
	}

	program := tea.NewProgram(model, tea.WithOutput(hb.output), tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return err
	}

	return nil
}

// historyModel is the Bubble Tea model for browsing history entries.
type historyModel struct {
	metas    []m.RunMeta
	cursor   int
	offset   int
	width    int
	height   int
	quitting bool
}

func newHistoryModel(metas []m.RunMeta) historyModel {
	return historyModel{metas: metas}
}

func (hm historyModel) Init() tea.Cmd {
	return nil
}

func (hm historyModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		hm.width = msg.Width
		hm.height = msg.Height

		return hm, nil

	case tea.KeyMsg:
		return hm.handleKeyPress(msg)
	}

	return hm, nil
}

//nolint:exhaustive // Key handling requires multiple cases for UI navigation
func (hm historyModel) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC, tea.KeyEsc:
		hm.quitting = true
		return hm, tea.Quit
	default:
	}

	switch msg.String() {
	case "q":
		hm.quitting = true
		return hm, tea.Quit

	case "down", "j":
		if hm.cursor < len(hm.metas)-1 {
			hm.cursor++
		}

	case "up", "k":
		if hm.cursor > 0 {
			hm.cursor--
		}

	case "g", "home":
		hm.cursor = 0

	case "G", "end":
		hm.cursor = len(hm.metas) - 1
	}

	hm.clampOffset()

	return hm, nil
}

func (hm *historyModel) clampOffset() {
	perPage := hm.itemsPerPage()

	if hm.cursor < hm.offset {
		hm.offset = hm.cursor
	}

	if hm.cursor >= hm.offset+perPage {
		hm.offset = hm.cursor - perPage + 1
	}
}

// itemsPerPage calculates how many entries fit on screen below the title,
// the column header and the help footer.
func (hm historyModel) itemsPerPage() int {
	if hm.height == 0 {
		return 10
	}

	reserved := 8

	available := hm.height - reserved
	if available < 1 {
		return 1
	}

	return available
}

func (hm historyModel) needsPagination() bool {
	return hm.height > 0 && len(hm.metas) > hm.itemsPerPage()
}

func (hm historyModel) View() string {
	var b strings.Builder

	b.WriteString(tuiTitleStyle.Render("Lyra - Optimization History"))
	b.WriteString("\n\n")

	if len(hm.metas) == 0 {
		b.WriteString("  No history entries found.\n")
		return b.String()
	}

	b.WriteString(tuiDimStyle.Render(fmt.Sprintf("  %-26s %-22s %-10s %-8s %s", "RUN ID", "CREATED (UTC)", "BACKED UP", "SKIPPED", "COMMAND")))
	b.WriteString("\n")

	perPage := hm.itemsPerPage()

	end := hm.offset + perPage
	if end > len(hm.metas) {
		end = len(hm.metas)
	}

	for i := hm.offset; i < end; i++ {
		meta := hm.metas[i]

		line := fmt.Sprintf(
			"  %-26s %-22s %-10d %-8d %s",
			meta.RunID,
			meta.CreatedAtUTC,
			len(meta.BackedUp),
			len(meta.Skipped),
			meta.Command,
		)

		if i == hm.cursor && hm.needsPagination() {
			b.WriteString(tuiSelectedStyle.Render(line))
		} else {
			b.WriteString(line)
		}

		b.WriteString("\n")
	}

	if hm.needsPagination() {
		b.WriteString("\n")
		b.WriteString(tuiDimStyle.Render(fmt.Sprintf("  %d-%d of %d  |  j/k scroll, g/G jump, q quit", hm.offset+1, end, len(hm.metas))))
		b.WriteString("\n")
	}

	return b.String()
}
