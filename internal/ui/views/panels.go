package views

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tgienger/depplan/internal/api"
	"github.com/tgienger/depplan/internal/auth"
	"github.com/tgienger/depplan/internal/graph"
	"github.com/tgienger/depplan/internal/models"
	"github.com/tgienger/depplan/internal/timeline"
	"github.com/tgienger/depplan/internal/ui/keys"
	"github.com/tgienger/depplan/internal/ui/styles"
)

// panel is a full-screen view opened from the board
type panel interface {
	Init() tea.Cmd
	Update(msg tea.Msg) (panel, tea.Cmd)
	View() string
}

type closePanel struct{}

func closePanelCmd() tea.Msg { return closePanel{} }

// textPanel shows rendered board text in a scrollable viewport and
// rebuilds it whenever the board changes
type textPanel struct {
	styles   *styles.Styles
	keys     keys.KeyMap
	title    string
	source   func() []models.BoardList
	render   func(lists []models.BoardList, width int) string
	viewport viewport.Model
	width    int
	height   int
}

func newTextPanel(s *styles.Styles, title string, source func() []models.BoardList, render func([]models.BoardList, int) string, width, height int) *textPanel {
	p := &textPanel{
		styles: s,
		keys:   keys.DefaultKeyMap(),
		title:  title,
		source: source,
		render: render,
	}
	p.resize(width, height)
	return p
}

func newGraphPanel(s *styles.Styles, project string, source func() []models.BoardList, width, height int) panel {
	return newTextPanel(s, project+": dependency graph", source, func(lists []models.BoardList, _ int) string {
		g := graph.Build(models.FlattenTasks(lists))
		out := graph.Render(g)
		if g.HasCycle() {
			out = s.Warning.Render("⚠ The dependencies contain a cycle") + "\n\n" + out
		}
		return out
	}, width, height)
}

func newGanttPanel(s *styles.Styles, project string, source func() []models.BoardList, width, height int) panel {
	return newTextPanel(s, project+": timeline", source, func(lists []models.BoardList, width int) string {
		bars := timeline.Bars(models.FlattenTasks(lists), time.Now())
		labelWidth := 16
		chart := timeline.Render(bars, labelWidth, max(width-labelWidth-6, 10))

		names := make(map[int64]string, len(bars))
		for _, b := range bars {
			names[b.TaskID] = b.Name
		}
		var links []string
		for _, b := range bars {
			for _, dep := range b.Dependencies {
				if name, ok := names[dep]; ok {
					links = append(links, fmt.Sprintf("  %s ⇠ %s", b.Name, name))
				}
			}
		}
		if len(links) > 0 {
			chart += "\n\n" + s.TitleMuted.Render("Waits on:") + "\n" + strings.Join(links, "\n")
		}
		return chart
	}, width, height)
}

func (p *textPanel) resize(width, height int) {
	p.width, p.height = width, height
	p.viewport = viewport.New(max(width-4, 10), max(height-6, 3))
	p.refresh()
}

func (p *textPanel) refresh() {
	offset := p.viewport.YOffset
	p.viewport.SetContent(p.render(p.source(), p.width))
	p.viewport.SetYOffset(offset)
}

func (p *textPanel) Init() tea.Cmd { return nil }

func (p *textPanel) Update(msg tea.Msg) (panel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		p.resize(msg.Width, msg.Height)
		return p, nil
	case boardChangedMsg:
		p.refresh()
		return p, nil
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, p.keys.Back):
			return p, closePanelCmd
		case key.Matches(msg, p.keys.Quit):
			return p, tea.Quit
		}
	}
	var cmd tea.Cmd
	p.viewport, cmd = p.viewport.Update(msg)
	return p, cmd
}

func (p *textPanel) View() string {
	s := p.styles
	return lipgloss.NewStyle().Padding(1, 2).Render(lipgloss.JoinVertical(lipgloss.Left,
		s.Title.Render(p.title),
		"",
		p.viewport.View(),
		helpLine(s, "↑↓", "scroll", "esc", "back"),
	))
}

// collabPanel manages who can see the project
type collabPanel struct {
	env       *Env
	styles    *styles.Styles
	keys      keys.KeyMap
	projectID int64
	width     int
	height    int

	collaborators []models.Collaborator
	invitations   []models.Invitation
	cursor        int
	loading       bool
	err           string
	info          string

	inviting      bool
	email         textinput.Model
	roleIdx       int
	confirmRemove bool
}

var inviteRoles = []models.Role{models.RoleMember, models.RoleAdmin, models.RoleViewer}

type collabLoadedMsg struct {
	collaborators []models.Collaborator
	invitations   []models.Invitation
	err           error
}

type collabActionMsg struct {
	info string
	err  error
}

func newCollabPanel(env *Env, s *styles.Styles, projectID int64, width, height int) panel {
	email := textinput.New()
	email.Placeholder = "teammate@example.com"
	email.CharLimit = 100
	return &collabPanel{
		env:       env,
		styles:    s,
		keys:      keys.DefaultKeyMap(),
		projectID: projectID,
		width:     width,
		height:    height,
		email:     email,
	}
}

func (p *collabPanel) Init() tea.Cmd {
	p.loading = true
	env, id := p.env, p.projectID
	return func() tea.Msg {
		ctx, cancel := env.context()
		defer cancel()
		collabs, err := env.Client.ListCollaborators(ctx, id)
		if err != nil {
			return collabLoadedMsg{err: err}
		}
		invites, err := env.Client.ListInvitations(ctx, id)
		return collabLoadedMsg{collaborators: collabs, invitations: invites, err: err}
	}
}

func (p *collabPanel) Update(msg tea.Msg) (panel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		p.width, p.height = msg.Width, msg.Height
		return p, nil

	case collabLoadedMsg:
		p.loading = false
		if msg.err != nil {
			p.err = errorText(msg.err)
			return p, p.env.guard(msg.err)
		}
		p.collaborators = msg.collaborators
		p.invitations = pendingOnly(msg.invitations)
		p.cursor = clamp(p.cursor, 0, max(len(p.collaborators)-1, 0))
		return p, nil

	case collabActionMsg:
		if msg.err != nil {
			p.err = errorText(msg.err)
			return p, p.env.guard(msg.err)
		}
		p.err = ""
		p.info = msg.info
		p.inviting = false
		return p, p.Init()

	case tea.KeyMsg:
		if p.inviting {
			return p.updateInviting(msg)
		}
		if p.confirmRemove {
			return p.updateConfirmRemove(msg)
		}
		switch {
		case key.Matches(msg, p.keys.Back):
			return p, closePanelCmd
		case key.Matches(msg, p.keys.Quit):
			return p, tea.Quit
		case key.Matches(msg, p.keys.Up):
			p.cursor = max(p.cursor-1, 0)
		case key.Matches(msg, p.keys.Down):
			p.cursor = clamp(p.cursor+1, 0, max(len(p.collaborators)-1, 0))
		case key.Matches(msg, p.keys.New):
			p.inviting = true
			p.err, p.info = "", ""
			p.email.Reset()
			p.email.Focus()
			return p, textinput.Blink
		case key.Matches(msg, p.keys.Delete):
			if p.cursor < len(p.collaborators) && p.collaborators[p.cursor].Role != models.RoleOwner {
				p.confirmRemove = true
			}
		case key.Matches(msg, p.keys.Refresh):
			return p, p.Init()
		}
	}
	return p, nil
}

func (p *collabPanel) updateInviting(msg tea.KeyMsg) (panel, tea.Cmd) {
	switch {
	case key.Matches(msg, p.keys.Back):
		p.inviting = false
		p.err = ""
		return p, nil
	case key.Matches(msg, p.keys.Tab):
		p.roleIdx = (p.roleIdx + 1) % len(inviteRoles)
		return p, nil
	case key.Matches(msg, p.keys.Enter), key.Matches(msg, p.keys.Save):
		email := strings.TrimSpace(p.email.Value())
		if err := auth.ValidateEmail(email); err != nil {
			p.err = errorText(err)
			return p, nil
		}
		inv := api.NewInvite(email, inviteRoles[p.roleIdx], p.env.Config.Session.InviteExpiration)
		env, id := p.env, p.projectID
		return p, func() tea.Msg {
			ctx, cancel := env.context()
			defer cancel()
			_, err := env.Client.InviteUser(ctx, id, inv)
			return collabActionMsg{info: "Invitation sent to " + inv.Email, err: err}
		}
	}
	var cmd tea.Cmd
	p.email, cmd = p.email.Update(msg)
	return p, cmd
}

func (p *collabPanel) updateConfirmRemove(msg tea.KeyMsg) (panel, tea.Cmd) {
	switch msg.String() {
	case "y", "Y":
		p.confirmRemove = false
		c := p.collaborators[p.cursor]
		env, id := p.env, p.projectID
		return p, func() tea.Msg {
			ctx, cancel := env.context()
			defer cancel()
			err := env.Client.RemoveCollaborator(ctx, id, c.UserID)
			return collabActionMsg{info: c.Username + " removed", err: err}
		}
	case "n", "N", "esc":
		p.confirmRemove = false
	}
	return p, nil
}

func pendingOnly(invs []models.Invitation) []models.Invitation {
	out := invs[:0:0]
	for _, inv := range invs {
		if inv.Status == models.InvitationPending {
			out = append(out, inv)
		}
	}
	return out
}

func (p *collabPanel) View() string {
	s := p.styles
	if p.confirmRemove && p.cursor < len(p.collaborators) {
		return confirmDialog(s, p.width, p.height, "Remove Collaborator?",
			fmt.Sprintf("%s will lose access to this project.", p.collaborators[p.cursor].Username))
	}

	rows := []string{s.Title.Render("Collaborators"), ""}
	switch {
	case p.loading && len(p.collaborators) == 0:
		rows = append(rows, s.TitleMuted.Render("Loading..."))
	case len(p.collaborators) == 0:
		rows = append(rows, s.TitleMuted.Render("Only you so far"))
	}
	for i, c := range p.collaborators {
		style := s.ListItem
		if i == p.cursor && !p.inviting {
			style = s.ListSelected
		}
		rows = append(rows, style.Render(fmt.Sprintf("%-16s %-26s %s", clip(c.Username, 16), clip(c.UserEmail, 26), c.Role)))
	}

	rows = append(rows, "", s.ColumnTitle.Render("Pending invitations"))
	if len(p.invitations) == 0 {
		rows = append(rows, s.TitleMuted.Render("None"))
	}
	for _, inv := range p.invitations {
		expires := ""
		if !inv.ExpiresAt.IsZero() {
			expires = "expires " + inv.ExpiresAt.Format("Jan 2")
		}
		rows = append(rows, s.ListItem.Render(fmt.Sprintf("%-30s %-8s %s", clip(inv.InvitedEmail, 30), inv.Role, expires)))
	}

	if p.inviting {
		rows = append(rows, "",
			"Invite by email:",
			s.InputFocused.Width(clamp(styles.ContentWidth(p.width)-10, 20, 44)).Render(p.email.View()),
			"Role: "+s.HelpKey.Render(string(inviteRoles[p.roleIdx]))+s.TitleMuted.Render("  (tab to change)"),
		)
	}
	if p.info != "" {
		rows = append(rows, "", s.Success.Render(p.info))
	}
	if p.err != "" {
		rows = append(rows, "", s.Error.Render(p.err))
	}

	if p.inviting {
		rows = append(rows, helpLine(s, "↵", "send", "tab", "role", "esc", "cancel"))
	} else {
		rows = append(rows, helpLine(s, "n", "invite", "d", "remove", "ctrl+r", "refresh", "esc", "back"))
	}
	padded := lipgloss.NewStyle().Padding(1, 2).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
	return styles.CenterView(padded, p.width, p.height)
}
