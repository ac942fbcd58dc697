package tasklist

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/taskboard/internal/model"
	"github.com/nhle/taskboard/internal/theme"
)

// deadlineLayout formats deadlines in list lines and the detail pane.
const deadlineLayout = "02.01.2006 15:04"

// TaskItem wraps a model.Task so it can be used in a bubbles/list.
type TaskItem struct {
	Task    model.Task
	Overdue bool
}

// FilterValue returns the string used for fuzzy filtering.
func (i TaskItem) FilterValue() string { return i.Task.Title }

// Title returns the task title for the list.
func (i TaskItem) Title() string { return i.Task.Title }

// Description returns a short summary line for the list.
func (i TaskItem) Description() string {
	names := make([]string, len(i.Task.Assignees))
	for n, a := range i.Task.Assignees {
		names[n] = a.FullName
	}
	return strings.Join([]string{i.Task.Status.Label(), strings.Join(names, ", ")}, " | ")
}

var (
	selectedStyle = lipgloss.NewStyle().
			Foreground(theme.ColorWhite).
			Background(theme.ColorBorder).
			Bold(true)
	itemStyle     = lipgloss.NewStyle().PaddingLeft(1)
	deadlineStyle = lipgloss.NewStyle().Foreground(theme.ColorGray)
	overdueStyle  = lipgloss.NewStyle().Foreground(theme.ColorRed).Bold(true)
)

// ItemDelegate implements list.ItemDelegate for rendering task lines.
type ItemDelegate struct{}

// Height returns the number of lines each item takes.
func (d ItemDelegate) Height() int { return 1 }

// Spacing returns the number of blank lines between items.
func (d ItemDelegate) Spacing() int { return 0 }

// Update handles per-item messages (unused).
func (d ItemDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd {
	return nil
}

// Render draws a single task line: status, title, deadline and an overdue
// marker.
func (d ItemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	ti, ok := item.(TaskItem)
	if !ok {
		return
	}

	status := theme.StatusStyle(ti.Task.Status).Render(ti.Task.Status.Label())
	deadline := deadlineStyle.Render(ti.Task.Deadline.Format(deadlineLayout))
	overdue := ""
	if ti.Overdue {
		overdue = overdueStyle.Render(" ПРОСРОЧЕНА")
	}

	line := fmt.Sprintf("%s %s  %s%s", status, ti.Task.Title, deadline, overdue)
	if index == m.Index() {
		line = selectedStyle.Render(line)
	} else {
		line = itemStyle.Render(line)
	}
	fmt.Fprint(w, line)
}
