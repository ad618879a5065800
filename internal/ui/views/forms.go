package views

import (
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tgienger/depplan/internal/board"
	"github.com/tgienger/depplan/internal/models"
	"github.com/tgienger/depplan/internal/ui/keys"
	"github.com/tgienger/depplan/internal/ui/styles"
)

type formResult int

const (
	formEditing formResult = iota
	formSubmit
	formCancel
)

// taskForm edits a new or existing task
type taskForm struct {
	listID   int64
	taskID   int64 // 0 for a new task
	name     textinput.Model
	desc     textarea.Model
	start    textinput.Model
	due      textinput.Model
	focusIdx int // 0=name, 1=desc, 2=start, 3=due, 4=save
	err      string
}

const taskFormFields = 5

func newTaskForm(listID int64, t *models.Task) *taskForm {
	name := textinput.New()
	name.Placeholder = "Task name"
	name.CharLimit = 200

	desc := textarea.New()
	desc.Placeholder = "Description"
	desc.CharLimit = 2000
	desc.SetWidth(50)
	desc.SetHeight(4)
	desc.ShowLineNumbers = false

	start := textinput.New()
	start.Placeholder = "YYYY-MM-DD"
	start.CharLimit = 10

	due := textinput.New()
	due.Placeholder = "YYYY-MM-DD"
	due.CharLimit = 10

	f := &taskForm{listID: listID, name: name, desc: desc, start: start, due: due}
	if t != nil {
		f.taskID = t.ID
		f.name.SetValue(t.Name)
		f.desc.SetValue(t.Description)
		f.start.SetValue(dateValue(t.StartDate))
		f.due.SetValue(dateValue(t.DueDate))
	}
	f.updateFocus()
	return f
}

func (f *taskForm) init() tea.Cmd { return textinput.Blink }

// fields validates the dates; the name is checked by the board command
func (f *taskForm) fields() (board.TaskFields, error) {
	start, err := parseOptionalDate(f.start.Value())
	if err != nil {
		return board.TaskFields{}, err
	}
	due, err := parseOptionalDate(f.due.Value())
	if err != nil {
		return board.TaskFields{}, err
	}
	return board.TaskFields{
		Name:        f.name.Value(),
		Description: f.desc.Value(),
		StartDate:   start,
		DueDate:     due,
	}, nil
}

func (f *taskForm) update(msg tea.KeyMsg, km keys.KeyMap) (formResult, tea.Cmd) {
	switch {
	case key.Matches(msg, km.Back):
		return formCancel, nil

	case key.Matches(msg, km.Save):
		return formSubmit, nil

	case key.Matches(msg, km.Tab):
		f.focusIdx = (f.focusIdx + 1) % taskFormFields
		f.updateFocus()
		return formEditing, nil

	case msg.String() == "shift+tab":
		f.focusIdx = (f.focusIdx + taskFormFields - 1) % taskFormFields
		f.updateFocus()
		return formEditing, nil

	case key.Matches(msg, km.Enter):
		switch f.focusIdx {
		case 1:
			// newline in the description
		case 4:
			return formSubmit, nil
		default:
			f.focusIdx++
			f.updateFocus()
			return formEditing, nil
		}
	}

	var cmd tea.Cmd
	switch f.focusIdx {
	case 0:
		f.name, cmd = f.name.Update(msg)
	case 1:
		f.desc, cmd = f.desc.Update(msg)
	case 2:
		f.start, cmd = f.start.Update(msg)
	case 3:
		f.due, cmd = f.due.Update(msg)
	}
	return formEditing, cmd
}

func (f *taskForm) updateFocus() {
	f.name.Blur()
	f.desc.Blur()
	f.start.Blur()
	f.due.Blur()
	switch f.focusIdx {
	case 0:
		f.name.Focus()
	case 1:
		f.desc.Focus()
	case 2:
		f.start.Focus()
	case 3:
		f.due.Focus()
	}
}

func (f *taskForm) view(s *styles.Styles, width, height int) string {
	contentWidth := styles.ContentWidth(width)
	inputWidth := clamp(contentWidth-6, 20, 50)
	f.desc.SetWidth(inputWidth)

	title := "New Task"
	if f.taskID != 0 {
		title = "Edit Task"
	}

	inputStyle := func(i int) lipgloss.Style {
		if i == f.focusIdx {
			return s.InputFocused
		}
		return s.Input
	}
	btnStyle := s.Button
	if f.focusIdx == 4 {
		btnStyle = s.ButtonFocused
	}

	rows := []string{
		s.Title.Render(title),
		"",
		"Name:",
		inputStyle(0).Width(inputWidth).Render(f.name.View()),
		"",
		"Description:",
		inputStyle(1).Render(f.desc.View()),
		"",
		lipgloss.JoinHorizontal(lipgloss.Top,
			lipgloss.JoinVertical(lipgloss.Left, "Start:", inputStyle(2).Width(14).Render(f.start.View())),
			"  ",
			lipgloss.JoinVertical(lipgloss.Left, "Due:", inputStyle(3).Width(14).Render(f.due.View())),
		),
		"",
		btnStyle.Render(" Save "),
	}
	if f.err != "" {
		rows = append(rows, "", s.Error.Width(inputWidth).Render(f.err))
	}
	rows = append(rows, "", s.TitleMuted.Render("Tab: next • Ctrl+S: save • Esc: cancel"))

	centered := lipgloss.Place(contentWidth, height,
		lipgloss.Center, lipgloss.Center,
		lipgloss.JoinVertical(lipgloss.Left, rows...),
	)
	return styles.CenterView(centered, width, height)
}

// listForm creates or renames a list
type listForm struct {
	listID int64 // 0 for a new list
	name   textinput.Model
	err    string
}

func newListForm(l *models.BoardList) *listForm {
	name := textinput.New()
	name.Placeholder = "List name"
	name.CharLimit = 100
	f := &listForm{name: name}
	if l != nil {
		f.listID = l.ID
		f.name.SetValue(l.Name)
	}
	f.name.Focus()
	return f
}

func (f *listForm) init() tea.Cmd { return textinput.Blink }

func (f *listForm) update(msg tea.KeyMsg, km keys.KeyMap) (formResult, tea.Cmd) {
	switch {
	case key.Matches(msg, km.Back):
		return formCancel, nil
	case key.Matches(msg, km.Save), key.Matches(msg, km.Enter):
		return formSubmit, nil
	}
	var cmd tea.Cmd
	f.name, cmd = f.name.Update(msg)
	return formEditing, cmd
}

func (f *listForm) view(s *styles.Styles, width, height int) string {
	contentWidth := styles.ContentWidth(width)
	inputWidth := clamp(contentWidth-6, 20, 40)

	title := "New List"
	if f.listID != 0 {
		title = "Rename List"
	}
	rows := []string{
		s.Title.Render(title),
		"",
		"Name:",
		s.InputFocused.Width(inputWidth).Render(f.name.View()),
	}
	if f.err != "" {
		rows = append(rows, "", s.Error.Render(f.err))
	}
	rows = append(rows, "", s.TitleMuted.Render("↵: save • Esc: cancel"))

	centered := lipgloss.Place(contentWidth, height,
		lipgloss.Center, lipgloss.Center,
		lipgloss.JoinVertical(lipgloss.Left, rows...),
	)
	return styles.CenterView(centered, width, height)
}
