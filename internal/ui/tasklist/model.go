// Package tasklist is the terminal view of the tasks a user can see.
package tasklist

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/taskboard/internal/board"
	"github.com/nhle/taskboard/internal/keys"
	"github.com/nhle/taskboard/internal/model"
	"github.com/nhle/taskboard/internal/rules"
	"github.com/nhle/taskboard/internal/theme"
)

// Source is the part of the board the view reads from.
type Source interface {
	ListTasks(ctx context.Context, actor rules.Actor, q board.TaskQuery) ([]model.Task, error)
	TaskDetail(ctx context.Context, actor rules.Actor, id int64) (*board.TaskView, error)
	Now() time.Time
}

// TasksLoadedMsg is sent when the task list has been loaded.
type TasksLoadedMsg struct {
	Tasks []model.Task
	Err   error
}

// DetailLoadedMsg is sent when a task has been opened.
type DetailLoadedMsg struct {
	View *board.TaskView
	Err  error
}

// deadlineModes is the order the deadline filter cycles through.
var deadlineModes = []string{"", "overdue", "today", "future"}

var deadlineLabels = map[string]string{
	"":        "все",
	"overdue": "просроченные",
	"today":   "сегодня",
	"future":  "будущие",
}

// Model is the task list view.
type Model struct {
	list   list.Model
	help   help.Model
	source Source
	actor  rules.Actor
	keys   *keys.KeyMap

	query        board.TaskQuery
	deadlineMode int

	detail *board.TaskView
	err    error

	width  int
	height int
}

// New creates a task list view for actor.
func New(src Source, actor rules.Actor, k *keys.KeyMap, width, height int) Model {
	l := list.New([]list.Item{}, ItemDelegate{}, width, height-3)
	l.Title = "Задачи"
	l.SetShowStatusBar(true)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.Styles.Title = theme.HeaderStyle

	return Model{
		list:   l,
		help:   help.New(),
		source: src,
		actor:  actor,
		keys:   k,
		query:  board.TaskQuery{Sort: "deadline", Direction: "asc"},
		width:  width,
		height: height,
	}
}

// Init returns a command that loads the initial set of tasks.
func (m Model) Init() tea.Cmd {
	return m.LoadTasks()
}

// Query returns the active list filters.
func (m Model) Query() board.TaskQuery {
	return m.query
}

// Detail returns the open task, if any.
func (m Model) Detail() *board.TaskView {
	return m.detail
}

// Update handles messages for the task list view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.SetSize(msg.Width, msg.Height)
		return m, nil

	case TasksLoadedMsg:
		m.err = msg.Err
		now := m.source.Now()
		items := make([]list.Item, len(msg.Tasks))
		for i, t := range msg.Tasks {
			items[i] = TaskItem{Task: t, Overdue: t.IsOverdue(now)}
		}
		return m, m.list.SetItems(items)

	case DetailLoadedMsg:
		m.err = msg.Err
		m.detail = msg.View
		return m, nil

	case tea.KeyMsg:
		return m.handleKeys(msg)
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m Model) handleKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil

	case key.Matches(msg, m.keys.Back):
		m.detail = nil
		return m, nil
	}

	if m.detail != nil {
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Select):
		item, ok := m.list.SelectedItem().(TaskItem)
		if !ok {
			return m, nil
		}
		return m, m.LoadDetail(item.Task.ID)

	case key.Matches(msg, m.keys.CycleDeadline):
		m.deadlineMode = (m.deadlineMode + 1) % len(deadlineModes)
		m.query.Deadline = deadlineModes[m.deadlineMode]
		return m, m.LoadTasks()

	case key.Matches(msg, m.keys.ToggleOrder):
		if m.query.Direction == "desc" {
			m.query.Direction = "asc"
		} else {
			m.query.Direction = "desc"
		}
		return m, m.LoadTasks()

	case key.Matches(msg, m.keys.Refresh):
		return m, m.LoadTasks()
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// View renders the list or the open task.
func (m Model) View() string {
	var body string
	switch {
	case m.detail != nil:
		body = m.renderDetail()
	case len(m.list.Items()) == 0:
		body = m.renderEmptyState()
	default:
		body = m.list.View()
	}

	status := theme.HelpStyle.Render(fmt.Sprintf("Срок: %s · порядок: %s",
		deadlineLabels[m.query.Deadline], m.query.Direction))
	if m.err != nil {
		status = theme.ErrorStyle.Render(m.err.Error())
	}
	return lipgloss.JoinVertical(lipgloss.Left, body, status, m.help.View(m.keys))
}

func (m Model) renderDetail() string {
	v := m.detail
	t := v.Task

	names := make([]string, len(t.Assignees))
	for i, a := range t.Assignees {
		names[i] = a.FullName
	}

	var b strings.Builder
	b.WriteString(theme.HeaderStyle.Render(t.Title))
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "Статус: %s\n", theme.StatusStyle(t.Status).Render(t.Status.Label()))
	fmt.Fprintf(&b, "Срок: %s", t.Deadline.Format(deadlineLayout))
	if v.Overdue {
		b.WriteString(overdueStyle.Render(" ПРОСРОЧЕНА"))
	}
	fmt.Fprintf(&b, "\nАвтор: %s\nИсполнители: %s\n\n%s\n", t.Creator.FullName, strings.Join(names, ", "), t.Description)

	if len(v.Comments) > 0 {
		b.WriteString("\nКомментарии:\n")
		for _, c := range v.Comments {
			fmt.Fprintf(&b, "  %s (%s): %s\n", c.Author.FullName, c.CreatedAt.Format(deadlineLayout), c.Text)
		}
	}
	return lipgloss.NewStyle().Width(m.width).Padding(0, 1).Render(b.String())
}

func (m Model) renderEmptyState() string {
	return lipgloss.NewStyle().
		Width(m.width).
		Height(m.height-3).
		Align(lipgloss.Center, lipgloss.Center).
		Foreground(theme.ColorGray).
		Render("Задач нет.")
}

// LoadTasks returns a tea.Cmd that lists tasks with the current filters.
func (m Model) LoadTasks() tea.Cmd {
	src, actor, q := m.source, m.actor, m.query
	return func() tea.Msg {
		tasks, err := src.ListTasks(context.Background(), actor, q)
		return TasksLoadedMsg{Tasks: tasks, Err: err}
	}
}

// LoadDetail returns a tea.Cmd that opens task id.
func (m Model) LoadDetail(id int64) tea.Cmd {
	src, actor := m.source, m.actor
	return func() tea.Msg {
		v, err := src.TaskDetail(context.Background(), actor, id)
		return DetailLoadedMsg{View: v, Err: err}
	}
}

// SetSize updates the view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.list.SetSize(width, height-3)
	m.help.Width = width
}
