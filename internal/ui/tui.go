// Package ui renders the client controller as a terminal interface.
package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"todo-tracker/internal/client"
	"todo-tracker/internal/models"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const noteTTL = 3 * time.Second

// NotificationQueue is a client.Notifier that hands notifications to the
// bubbletea loop. Notifications are dropped when the queue is full.
type NotificationQueue chan client.Notification

func NewNotificationQueue() NotificationQueue {
	return make(NotificationQueue, 16)
}

func (q NotificationQueue) Notify(n client.Notification) {
	select {
	case q <- n:
	default:
	}
}

type mode int

const (
	modeBrowse mode = iota
	modeForm
	modeSearch
	modeConfirmDelete
)

const (
	fieldTitle = iota
	fieldDescription
	fieldStatus
	fieldCount
)

type form struct {
	editing     bool
	title       string
	description string
	status      models.TaskStatus
	focus       int
	err         string
	saving      bool
}

type Model struct {
	ctx   context.Context
	ctrl  *client.Controller
	notes NotificationQueue

	mode    mode
	cursor  int
	form    form
	search  string
	victim  models.Task
	note    *client.Notification
	noteSeq int
}

type opDoneMsg struct {
	err error
}

type formDoneMsg struct {
	err error
}

type notifyMsg client.Notification

type clearNoteMsg struct {
	seq int
}

func NewModel(ctx context.Context, ctrl *client.Controller, notes NotificationQueue) *Model {
	return &Model{ctx: ctx, ctrl: ctrl, notes: notes}
}

// Run blocks until the user quits or ctx is cancelled.
func Run(ctx context.Context, ctrl *client.Controller, notes NotificationQueue) error {
	program := tea.NewProgram(NewModel(ctx, ctrl, notes), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := program.Run()
	return err
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.run(func(ctx context.Context) error {
		return m.ctrl.LoadPage(ctx, 1)
	}), waitForNotification(m.notes))
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		switch m.mode {
		case modeForm:
			return m, m.updateForm(msg)
		case modeSearch:
			return m, m.updateSearch(msg)
		case modeConfirmDelete:
			return m, m.updateConfirm(msg)
		default:
			return m, m.updateBrowse(msg)
		}
	case opDoneMsg:
		m.clampCursor()
	case formDoneMsg:
		m.form.saving = false
		if msg.err == nil {
			m.closeForm()
		}
		m.clampCursor()
	case notifyMsg:
		n := client.Notification(msg)
		m.note = &n
		m.noteSeq++
		seq := m.noteSeq
		return m, tea.Batch(
			waitForNotification(m.notes),
			tea.Tick(noteTTL, func(time.Time) tea.Msg { return clearNoteMsg{seq: seq} }),
		)
	case clearNoteMsg:
		if msg.seq == m.noteSeq {
			m.note = nil
		}
	}
	return m, nil
}

func (m *Model) updateBrowse(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "q":
		return tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.ctrl.VisibleTasks())-1 {
			m.cursor++
		}
	case "left", "h":
		if m.ctrl.CanPrev() {
			m.cursor = 0
			return m.run(m.ctrl.PrevPage)
		}
	case "right", "l":
		if m.ctrl.CanNext() {
			m.cursor = 0
			return m.run(m.ctrl.NextPage)
		}
	case "r":
		return m.run(m.ctrl.Refresh)
	case "n":
		m.form = form{status: models.StatusPending}
		m.mode = modeForm
	case "e":
		if task, ok := m.selected(); ok {
			if target, err := m.ctrl.BeginEdit(task.ID.String()); err == nil {
				m.form = form{
					editing:     true,
					title:       target.Title,
					description: target.Description,
					status:      target.Status,
				}
				m.mode = modeForm
			}
		}
	case "d":
		if task, ok := m.selected(); ok {
			m.victim = task
			m.mode = modeConfirmDelete
		}
	case "/":
		m.search = m.ctrl.SearchTerm()
		m.mode = modeSearch
	case "esc":
		m.ctrl.SetSearchTerm("")
		m.clampCursor()
	}
	return nil
}

func (m *Model) updateForm(msg tea.KeyMsg) tea.Cmd {
	if m.form.saving {
		return nil
	}
	switch msg.Type {
	case tea.KeyEsc:
		m.closeForm()
		return nil
	case tea.KeyTab, tea.KeyDown:
		m.form.focus = (m.form.focus + 1) % fieldCount
		return nil
	case tea.KeyShiftTab, tea.KeyUp:
		m.form.focus = (m.form.focus + fieldCount - 1) % fieldCount
		return nil
	case tea.KeyEnter:
		return m.submitForm()
	}

	if m.form.focus == fieldStatus {
		switch msg.String() {
		case " ", "right", "l":
			m.form.status = m.form.status.Next()
		case "left", "h":
			m.form.status = m.form.status.Next().Next()
		}
		return nil
	}

	field := &m.form.title
	if m.form.focus == fieldDescription {
		field = &m.form.description
	}
	editText(field, msg)
	return nil
}

func (m *Model) submitForm() tea.Cmd {
	if strings.TrimSpace(m.form.title) == "" {
		m.form.err = "Title is required"
		return nil
	}
	m.form.err = ""
	m.form.saving = true

	data := client.TaskForm{
		Title:       m.form.title,
		Description: m.form.description,
		Status:      m.form.status,
	}
	editing := m.form.editing
	ctx := m.ctx
	return func() tea.Msg {
		var err error
		if editing {
			_, err = m.ctrl.SubmitEdit(ctx, data)
		} else {
			_, err = m.ctrl.CreateTask(ctx, data)
		}
		return formDoneMsg{err: err}
	}
}

func (m *Model) closeForm() {
	if m.form.editing {
		m.ctrl.CancelEdit()
	}
	m.form = form{}
	m.mode = modeBrowse
}

// updateSearch edits the local title filter live. Enter on a non-empty
// term hands it to the server as well; esc clears both.
func (m *Model) updateSearch(msg tea.KeyMsg) tea.Cmd {
	switch msg.Type {
	case tea.KeyEsc:
		m.search = ""
		m.ctrl.SetSearchTerm("")
		m.mode = modeBrowse
		m.cursor = 0
		if m.ctrl.ServerSearch() != "" {
			return m.run(func(ctx context.Context) error { return m.ctrl.SetServerSearch(ctx, "") })
		}
		return nil
	case tea.KeyEnter:
		m.mode = modeBrowse
		m.cursor = 0
		term := m.search
		return m.run(func(ctx context.Context) error { return m.ctrl.SetServerSearch(ctx, term) })
	}
	editText(&m.search, msg)
	m.ctrl.SetSearchTerm(m.search)
	m.clampCursor()
	return nil
}

func (m *Model) updateConfirm(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "y", "Y":
		m.mode = modeBrowse
		victim := m.victim
		return m.run(func(ctx context.Context) error {
			return m.ctrl.DeleteTask(ctx, victim.ID.String(), func(t models.Task) bool {
				return t.ID == victim.ID
			})
		})
	case "n", "N", "esc", "q":
		m.mode = modeBrowse
	}
	return nil
}

func (m *Model) run(fn func(context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		return opDoneMsg{err: fn(ctx)}
	}
}

func (m *Model) selected() (models.Task, bool) {
	visible := m.ctrl.VisibleTasks()
	if m.cursor < 0 || m.cursor >= len(visible) {
		return models.Task{}, false
	}
	return visible[m.cursor], true
}

func (m *Model) clampCursor() {
	n := len(m.ctrl.VisibleTasks())
	if m.cursor >= n {
		m.cursor = n - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func waitForNotification(q NotificationQueue) tea.Cmd {
	if q == nil {
		return nil
	}
	return func() tea.Msg {
		n, ok := <-q
		if !ok {
			return nil
		}
		return notifyMsg(n)
	}
}

func editText(field *string, msg tea.KeyMsg) {
	switch msg.Type {
	case tea.KeyBackspace:
		if r := []rune(*field); len(r) > 0 {
			*field = string(r[:len(r)-1])
		}
	case tea.KeySpace:
		*field += " "
	case tea.KeyRunes:
		*field += string(msg.Runes)
	}
}

func (m *Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("ToDo App"))
	b.WriteString("\n\n")
	writeStats(&b, m.ctrl)

	switch m.mode {
	case modeForm:
		writeForm(&b, m.form)
	case modeConfirmDelete:
		b.WriteString(errorStyle.Render(fmt.Sprintf("Delete this task? %q (y/n)", m.victim.Title)))
		b.WriteString("\n\n")
	default:
		m.writeTasks(&b)
	}

	if m.note != nil {
		style := successStyle
		if m.note.Kind == client.NotifyError {
			style = errorStyle
		}
		b.WriteString(style.Render(m.note.Message))
		b.WriteString("\n\n")
	}

	b.WriteString(mutedStyle.Render(m.help()))
	b.WriteString("\n")
	return b.String()
}

func writeStats(b *strings.Builder, ctrl *client.Controller) {
	stats := ctrl.Stats()
	fmt.Fprintf(b, "Total Tasks: %d   Pending: %d   In Progress: %d   Completed: %d\n\n",
		ctrl.Total(), stats.Pending, stats.InProgress, stats.Completed)
}

func (m *Model) writeTasks(b *strings.Builder) {
	header := headerStyle.Render("Recent Tasks")
	if m.mode == modeSearch {
		header += "   Search: " + m.search + "_"
	} else if term := m.ctrl.SearchTerm(); term != "" {
		header += "   Search: " + term
	}
	b.WriteString(header)
	b.WriteString("\n\n")

	if m.ctrl.Loading() {
		b.WriteString("Loading...\n\n")
		return
	}

	visible := m.ctrl.VisibleTasks()
	if len(visible) == 0 {
		b.WriteString("No tasks found\n")
		b.WriteString(mutedStyle.Render("Create a new task to get started"))
		b.WriteString("\n\n")
	}
	for i, t := range visible {
		b.WriteString(renderCard(t, i == m.cursor))
		b.WriteString("\n")
	}

	b.WriteString(renderPager(m.ctrl.Page(), m.ctrl.CanPrev(), m.ctrl.CanNext()))
	b.WriteString("\n\n")
}

func renderCard(t models.Task, selected bool) string {
	desc := t.Description
	if desc == "" {
		desc = "No description provided."
	}
	body := fmt.Sprintf("%s  %s\n%s\n%s",
		statusStyle(t.Status).Render(string(t.Status)),
		lipgloss.NewStyle().Bold(true).Render(t.Title),
		desc,
		mutedStyle.Render("ID: #"+t.ShortID()),
	)
	style := cardStyle
	if selected {
		style = selectedCardStyle
	}
	return style.Render(body)
}

func renderPager(page int, canPrev, canNext bool) string {
	prev, next := "[Previous]", "[Next]"
	if !canPrev {
		prev = mutedStyle.Render(prev)
	}
	if !canNext {
		next = mutedStyle.Render(next)
	}
	return fmt.Sprintf("%s  Page %d  %s", prev, page, next)
}

func writeForm(b *strings.Builder, f form) {
	heading := "Create New Task"
	if f.editing {
		heading = "Edit Task"
	}
	b.WriteString(headerStyle.Render(heading))
	b.WriteString("\n\n")

	fields := []struct {
		label string
		value string
	}{
		{"Task Title", f.title},
		{"Description", f.description},
		{"Status", string(f.status) + "  (space to change)"},
	}
	for i, field := range fields {
		marker := "  "
		value := field.value
		if i == f.focus {
			marker = "> "
			if i != fieldStatus {
				value += "_"
			}
		}
		fmt.Fprintf(b, "%s%s: %s\n", marker, field.label, value)
	}
	if f.err != "" {
		b.WriteString(errorStyle.Render(f.err))
		b.WriteString("\n")
	}
	if f.saving {
		b.WriteString("Saving...\n")
	}
	b.WriteString("\n")
}

func (m *Model) help() string {
	switch m.mode {
	case modeForm:
		return "tab next field | enter save | esc cancel"
	case modeSearch:
		return "type to filter this page | enter search all | esc clear"
	case modeConfirmDelete:
		return "y delete | n cancel"
	}
	return "n new | e edit | d delete | / search | h/l page | r refresh | q quit"
}

var (
	titleStyle        = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	headerStyle       = lipgloss.NewStyle().Bold(true)
	mutedStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	successStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("34"))
	errorStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("160"))
	cardStyle         = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1).Width(48)
	selectedCardStyle = cardStyle.BorderForeground(lipgloss.Color("63"))
)

func statusStyle(s models.TaskStatus) lipgloss.Style {
	switch s {
	case models.StatusCompleted:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("34"))
	case models.StatusInProgress:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("33"))
	default:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("178"))
	}
}
