package ui

import (
	"errors"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog/log"

	"github.com/tgienger/depplan/internal/auth"
	"github.com/tgienger/depplan/internal/models"
	"github.com/tgienger/depplan/internal/ui/views"
)

// Currently active view
type View int

const (
	ViewLogin View = iota
	ViewProjects
	ViewBoard
	ViewInvitations
)

type App struct {
	env         *views.Env
	currentView View
	login       *views.LoginView
	projectList *views.ProjectListView
	board       *views.BoardView
	invitations *views.InvitationsView
	width       int
	height      int
}

// Creates a new application
func NewApp(env *views.Env) *App {
	return &App{env: env}
}

// CurrentView reports which view is showing
func (a *App) CurrentView() View { return a.currentView }

// Close stops any open board's background work
func (a *App) Close() {
	if a.board != nil {
		a.board.Close()
		a.board = nil
	}
}

func (a *App) Init() tea.Cmd {
	if err := a.env.Auth.Check(); err != nil {
		return a.showLogin(notice(err))
	}

	// Reopen the last project when it is still in the cache
	id, err := a.env.DB.LastProjectID()
	if err == nil && id != 0 {
		project, ok, err := a.env.DB.CachedProject(id)
		if err == nil && ok {
			return a.openProject(*project)
		}
	}
	return a.showProjects()
}

func notice(err error) string {
	if errors.Is(err, auth.ErrSessionExpired) {
		return "Your session has expired, please sign in again."
	}
	return ""
}

// resize replays the last window size to a freshly created view. Before
// the first size arrives there is nothing to replay.
func (a *App) resize() tea.Cmd {
	w, h := a.width, a.height
	if w == 0 && h == 0 {
		return nil
	}
	return func() tea.Msg {
		return tea.WindowSizeMsg{Width: w, Height: h}
	}
}

func (a *App) showLogin(text string) tea.Cmd {
	a.Close()
	a.currentView = ViewLogin
	a.login = views.NewLoginView(a.env, text)
	return tea.Batch(a.login.Init(), a.resize())
}

// protected views go through the session guard first
func (a *App) guarded(open func() tea.Cmd) tea.Cmd {
	if err := a.env.Auth.Check(); err != nil {
		return a.showLogin(notice(err))
	}
	return open()
}

func (a *App) showProjects() tea.Cmd {
	return a.guarded(func() tea.Cmd {
		a.Close()
		a.currentView = ViewProjects
		a.projectList = views.NewProjectListView(a.env)
		return tea.Batch(a.projectList.Init(), a.resize())
	})
}

func (a *App) showInvitations() tea.Cmd {
	return a.guarded(func() tea.Cmd {
		a.currentView = ViewInvitations
		a.invitations = views.NewInvitationsView(a.env)
		return tea.Batch(a.invitations.Init(), a.resize())
	})
}

func (a *App) openProject(project models.Project) tea.Cmd {
	return a.guarded(func() tea.Cmd {
		a.Close()
		a.currentView = ViewBoard
		a.board = views.NewBoardView(a.env, project)

		// Save as last opened project
		if err := a.env.DB.SetLastProjectID(project.ID); err != nil {
			log.Warn().Err(err).Msg("ui.openProject: saving last project")
		}
		return tea.Batch(a.board.Init(), a.resize())
	})
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height

	case views.SignedIn:
		log.Info().Str("username", msg.User.Username).Msg("ui.Update: signed in")
		return a, a.showProjects()

	case views.SessionExpired:
		return a, a.showLogin("Your session has expired, please sign in again.")

	case views.LoggedOut:
		if err := a.env.Auth.Logout(); err != nil {
			log.Error().Err(err).Msg("ui.Update: logging out")
		}
		return a, a.showLogin("Signed out.")

	case views.SelectedProject:
		return a, a.openProject(msg.Project)

	case views.OpenInvitations:
		return a, a.showInvitations()

	case views.BackToProjects:
		if err := a.env.DB.SetLastProjectID(0); err != nil {
			log.Warn().Err(err).Msg("ui.Update: clearing last project")
		}
		return a, a.showProjects()
	}

	var cmd tea.Cmd
	switch a.currentView {
	case ViewLogin:
		_, cmd = a.login.Update(msg)
	case ViewProjects:
		_, cmd = a.projectList.Update(msg)
	case ViewBoard:
		_, cmd = a.board.Update(msg)
	case ViewInvitations:
		_, cmd = a.invitations.Update(msg)
	}
	return a, cmd
}

func (a *App) View() string {
	switch a.currentView {
	case ViewLogin:
		return a.login.View()
	case ViewBoard:
		return a.board.View()
	case ViewInvitations:
		return a.invitations.View()
	}
	if a.projectList == nil {
		return ""
	}
	return a.projectList.View()
}
