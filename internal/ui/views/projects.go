package views

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog/log"

	"github.com/tgienger/depplan/internal/api"
	"github.com/tgienger/depplan/internal/models"
	"github.com/tgienger/depplan/internal/ui/keys"
	"github.com/tgienger/depplan/internal/ui/styles"
)

type projectItem struct {
	project models.Project
}

func (i projectItem) Title() string { return i.project.Name }
func (i projectItem) Description() string {
	if i.project.Description != "" {
		return i.project.Description
	}
	if !i.project.CreatedAt.IsZero() {
		return "created " + i.project.CreatedAt.Format("Jan 2, 2006")
	}
	return ""
}
func (i projectItem) FilterValue() string { return i.project.Name }

type projectDelegate struct {
	styles *styles.Styles
	width  int
}

func (d projectDelegate) Height() int                               { return 2 }
func (d projectDelegate) Spacing() int                              { return 1 }
func (d projectDelegate) Update(msg tea.Msg, m *list.Model) tea.Cmd { return nil }

func (d projectDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	p, ok := item.(projectItem)
	if !ok {
		return
	}

	width := max(d.width-4, 20)
	base := d.styles.ListItem
	if index == m.Index() {
		base = d.styles.ListSelected
	}

	title := base.Width(width).Render(p.Title())
	desc := base.Foreground(styles.Current.ForegroundDim).Width(width).Render(p.Description())
	fmt.Fprintf(w, "%s\n%s", title, desc)
}

// ProjectListView lists the caller's projects
type ProjectListView struct {
	env      *Env
	list     list.Model
	delegate *projectDelegate
	styles   *styles.Styles
	keys     keys.KeyMap
	width    int
	height   int

	loaded     bool
	refreshing bool
	err        string

	creating bool
	newName  textinput.Model
	newDesc  textinput.Model
	focusIdx int // 0=name, 1=desc, 2=confirm
	formErr  string

	showHelpPopup bool
}

type projectsLoadedMsg struct {
	projects []models.Project
	cached   bool
	err      error
}

type projectCreatedMsg struct {
	project *models.Project
	err     error
}

func NewProjectListView(env *Env) *ProjectListView {
	s := styles.NewStyles()

	newName := textinput.New()
	newName.Placeholder = "Project name"
	newName.CharLimit = 100

	newDesc := textinput.New()
	newDesc.Placeholder = "Description (optional)"
	newDesc.CharLimit = 500

	delegate := &projectDelegate{styles: s, width: 80}

	l := list.New([]list.Item{}, delegate, 0, 0)
	l.Title = "Projects"
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(true)
	l.Styles.Title = s.Title
	l.SetShowHelp(false)

	return &ProjectListView{
		env:      env,
		list:     l,
		delegate: delegate,
		styles:   s,
		keys:     keys.DefaultKeyMap(),
		newName:  newName,
		newDesc:  newDesc,
	}
}

// Init shows the cached list right away and refetches behind it
func (v *ProjectListView) Init() tea.Cmd {
	v.refreshing = true
	return tea.Batch(v.loadCached, v.fetchProjects)
}

func (v *ProjectListView) loadCached() tea.Msg {
	projects, err := v.env.DB.CachedProjects()
	if err != nil {
		log.Warn().Err(err).Msg("views.loadCached: reading project cache")
		return nil
	}
	return projectsLoadedMsg{projects: projects, cached: true}
}

func (v *ProjectListView) fetchProjects() tea.Msg {
	ctx, cancel := v.env.context()
	defer cancel()
	projects, err := v.env.Client.ListProjects(ctx)
	if err != nil {
		return projectsLoadedMsg{err: err}
	}
	if err := v.env.DB.ReplaceProjectCache(projects); err != nil {
		log.Warn().Err(err).Msg("views.fetchProjects: writing project cache")
	}
	return projectsLoadedMsg{projects: projects}
}

func (v *ProjectListView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.width = msg.Width
		v.height = msg.Height
		contentWidth := styles.ContentWidth(msg.Width)
		v.delegate.width = contentWidth
		v.list.SetSize(contentWidth-4, msg.Height-6)
		return v, nil

	case projectsLoadedMsg:
		if msg.err != nil {
			v.refreshing = false
			v.loaded = true
			v.err = errorText(msg.err)
			return v, v.env.guard(msg.err)
		}
		// a late cache read must not replace fresh data
		if msg.cached && !v.refreshing {
			return v, nil
		}
		if !msg.cached {
			v.refreshing = false
			v.err = ""
		}
		v.setProjects(msg.projects)
		v.loaded = true
		return v, nil

	case projectCreatedMsg:
		if msg.err != nil {
			v.formErr = errorText(msg.err)
			return v, v.env.guard(msg.err)
		}
		v.creating = false
		project := *msg.project
		return v, func() tea.Msg { return SelectedProject{Project: project} }

	case tea.KeyMsg:
		if v.showHelpPopup {
			v.showHelpPopup = false
			return v, nil
		}

		if v.creating {
			return v.updateCreating(msg)
		}

		// the list owns the keyboard while its filter is being typed
		if v.list.FilterState() == list.Filtering {
			break
		}

		switch {
		case key.Matches(msg, v.keys.Quit):
			return v, tea.Quit
		case key.Matches(msg, v.keys.Back):
			return v, nil
		case key.Matches(msg, v.keys.New):
			v.creating = true
			v.focusIdx = 0
			v.formErr = ""
			v.newName.Reset()
			v.newDesc.Reset()
			v.updateFocus()
			return v, textinput.Blink
		case key.Matches(msg, v.keys.Help):
			v.showHelpPopup = true
			return v, nil
		case key.Matches(msg, v.keys.Refresh):
			v.refreshing = true
			return v, v.fetchProjects
		case key.Matches(msg, v.keys.Invites):
			return v, func() tea.Msg { return OpenInvitations{} }
		case key.Matches(msg, v.keys.Logout):
			return v, func() tea.Msg { return LoggedOut{} }
		case key.Matches(msg, v.keys.Enter):
			if item, ok := v.list.SelectedItem().(projectItem); ok {
				return v, func() tea.Msg {
					return SelectedProject{Project: item.project}
				}
			}
		}
	}

	var cmd tea.Cmd
	v.list, cmd = v.list.Update(msg)
	return v, cmd
}

func (v *ProjectListView) setProjects(projects []models.Project) {
	items := make([]list.Item, len(projects))
	for i, p := range projects {
		items[i] = projectItem{project: p}
	}
	v.list.SetItems(items)
}

func (v *ProjectListView) updateCreating(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, v.keys.Back):
		v.creating = false
		return v, nil

	case key.Matches(msg, v.keys.Save):
		return v, v.createProject()

	case msg.String() == "shift+tab":
		v.focusIdx = (v.focusIdx + 2) % 3
		v.updateFocus()
		return v, nil

	case key.Matches(msg, v.keys.Tab):
		v.focusIdx = (v.focusIdx + 1) % 3
		v.updateFocus()
		return v, nil

	case key.Matches(msg, v.keys.Enter):
		if v.focusIdx < 2 {
			v.focusIdx++
			v.updateFocus()
			return v, nil
		}
		return v, v.createProject()
	}

	var cmd tea.Cmd
	switch v.focusIdx {
	case 0:
		v.newName, cmd = v.newName.Update(msg)
	case 1:
		v.newDesc, cmd = v.newDesc.Update(msg)
	}
	return v, cmd
}

func (v *ProjectListView) createProject() tea.Cmd {
	name := strings.TrimSpace(v.newName.Value())
	if name == "" {
		v.formErr = "Name is required"
		return nil
	}
	v.formErr = ""
	p := api.NewProject{Name: name, Description: strings.TrimSpace(v.newDesc.Value())}
	env := v.env
	return func() tea.Msg {
		ctx, cancel := env.context()
		defer cancel()
		project, err := env.Client.CreateProject(ctx, p)
		return projectCreatedMsg{project: project, err: err}
	}
}

func (v *ProjectListView) updateFocus() {
	v.newName.Blur()
	v.newDesc.Blur()
	switch v.focusIdx {
	case 0:
		v.newName.Focus()
	case 1:
		v.newDesc.Focus()
	}
}

// View renders the view
func (v *ProjectListView) View() string {
	if v.showHelpPopup {
		return v.renderHelpPopup()
	}

	if v.creating {
		return v.renderCreateForm()
	}

	if !v.loaded {
		return v.styles.TitleMuted.Render("Loading...")
	}

	if len(v.list.Items()) == 0 {
		return v.renderEmpty()
	}

	content := v.list.View() + "\n" + v.renderStatus() + v.renderHelp()
	return styles.CenterView(content, v.width, v.height)
}

func (v *ProjectListView) renderStatus() string {
	switch {
	case v.err != "":
		return v.styles.StatusBar.Render(v.styles.Error.Render(v.err)) + "\n"
	case v.refreshing:
		return v.styles.StatusBar.Render(v.styles.Busy.Render("● refreshing")) + "\n"
	}
	return ""
}

func (v *ProjectListView) renderEmpty() string {
	s := v.styles
	contentWidth := styles.ContentWidth(v.width)

	rows := []string{
		s.Title.Render("No Projects"),
		"",
		s.TitleMuted.Render("Press 'n' to create your first project"),
		"",
		s.ButtonPrimary.Render(" New Project "),
	}
	if v.err != "" {
		rows = append(rows, "", s.Error.Render(v.err))
	}

	centered := lipgloss.Place(contentWidth, v.height,
		lipgloss.Center, lipgloss.Center,
		lipgloss.JoinVertical(lipgloss.Center, rows...),
	)
	return styles.CenterView(centered, v.width, v.height)
}

func (v *ProjectListView) renderCreateForm() string {
	s := v.styles
	contentWidth := styles.ContentWidth(v.width)

	nameStyle := s.Input
	descStyle := s.Input
	btnStyle := s.Button

	switch v.focusIdx {
	case 0:
		nameStyle = s.InputFocused
	case 1:
		descStyle = s.InputFocused
	case 2:
		btnStyle = s.ButtonFocused
	}

	inputWidth := clamp(contentWidth-6, 20, 50)

	rows := []string{
		s.Title.Render("New Project"),
		"",
		"Name:",
		nameStyle.Width(inputWidth).Render(v.newName.View()),
		"",
		"Description:",
		descStyle.Width(inputWidth).Render(v.newDesc.View()),
		"",
		btnStyle.Render(" Create "),
	}
	if v.formErr != "" {
		rows = append(rows, "", s.Error.Render(v.formErr))
	}
	rows = append(rows, "", s.TitleMuted.Render("Tab: next • Ctrl+S: save • Esc: cancel"))

	centered := lipgloss.Place(contentWidth, v.height,
		lipgloss.Center, lipgloss.Center,
		lipgloss.JoinVertical(lipgloss.Left, rows...),
	)
	return styles.CenterView(centered, v.width, v.height)
}

func (v *ProjectListView) renderHelp() string {
	contentWidth := styles.ContentWidth(v.width)
	if contentWidth > 0 && contentWidth < 50 {
		return v.styles.Help.Render(v.styles.HelpKey.Render("?") + " help")
	}
	return helpLine(v.styles,
		"↵", "open",
		"n", "new",
		"/", "filter",
		"i", "invitations",
		"L", "log out",
		"q", "quit",
	)
}

func (v *ProjectListView) renderHelpPopup() string {
	return helpPopup(v.styles, v.width, v.height, [][2]string{
		{"↵", "open project"},
		{"n", "new project"},
		{"/", "filter"},
		{"ctrl+r", "refresh"},
		{"i", "invitations"},
		{"L", "log out"},
		{"q", "quit"},
	})
}
