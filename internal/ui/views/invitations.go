package views

import (
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tgienger/depplan/internal/api"
	"github.com/tgienger/depplan/internal/models"
	"github.com/tgienger/depplan/internal/ui/keys"
	"github.com/tgienger/depplan/internal/ui/styles"
)

// InvitationsView lists invitations addressed to the signed-in user
type InvitationsView struct {
	env    *Env
	styles *styles.Styles
	keys   keys.KeyMap
	width  int
	height int

	invitations []models.Invitation
	cursor      int
	loading     bool
	responding  bool
	err         string
	info        string
}

type invitationsLoadedMsg struct {
	invitations []models.Invitation
	err         error
}

type invitationAnsweredMsg struct {
	invitation models.Invitation
	response   api.InvitationResponse
	err        error
}

func NewInvitationsView(env *Env) *InvitationsView {
	return &InvitationsView{
		env:    env,
		styles: styles.NewStyles(),
		keys:   keys.DefaultKeyMap(),
	}
}

func (v *InvitationsView) Init() tea.Cmd {
	v.loading = true
	env := v.env
	return func() tea.Msg {
		ctx, cancel := env.context()
		defer cancel()
		invs, err := env.Client.MyInvitations(ctx)
		return invitationsLoadedMsg{invitations: invs, err: err}
	}
}

func (v *InvitationsView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.width = msg.Width
		v.height = msg.Height

	case invitationsLoadedMsg:
		v.loading = false
		if msg.err != nil {
			v.err = errorText(msg.err)
			return v, v.env.guard(msg.err)
		}
		v.invitations = pendingOnly(msg.invitations)
		v.cursor = clamp(v.cursor, 0, max(len(v.invitations)-1, 0))

	case invitationAnsweredMsg:
		v.responding = false
		if msg.err != nil {
			v.err = errorText(msg.err)
			return v, v.env.guard(msg.err)
		}
		v.err = ""
		verb := "Declined"
		if msg.response == api.Accept {
			verb = "Joined"
		}
		v.info = fmt.Sprintf("%s %s", verb, msg.invitation.ProjectName)
		return v, v.Init()

	case tea.KeyMsg:
		if v.responding {
			return v, nil
		}
		switch {
		case key.Matches(msg, v.keys.Quit):
			return v, tea.Quit
		case key.Matches(msg, v.keys.Back):
			return v, func() tea.Msg { return BackToProjects{} }
		case key.Matches(msg, v.keys.Up):
			v.cursor = max(v.cursor-1, 0)
		case key.Matches(msg, v.keys.Down):
			v.cursor = clamp(v.cursor+1, 0, max(len(v.invitations)-1, 0))
		case key.Matches(msg, v.keys.Refresh):
			return v, v.Init()
		case key.Matches(msg, v.keys.Enter), msg.String() == "a":
			return v, v.respond(api.Accept)
		case key.Matches(msg, v.keys.Delete), msg.String() == "x":
			return v, v.respond(api.Decline)
		}
	}
	return v, nil
}

func (v *InvitationsView) respond(resp api.InvitationResponse) tea.Cmd {
	if v.cursor >= len(v.invitations) {
		return nil
	}
	inv := v.invitations[v.cursor]
	v.responding = true
	v.info = ""
	env := v.env
	return func() tea.Msg {
		ctx, cancel := env.context()
		defer cancel()
		err := env.Client.RespondToInvitationByID(ctx, inv.ID, resp)
		return invitationAnsweredMsg{invitation: inv, response: resp, err: err}
	}
}

// View renders the view
func (v *InvitationsView) View() string {
	s := v.styles
	rows := []string{s.Title.Render("Invitations"), ""}

	switch {
	case v.loading && len(v.invitations) == 0:
		rows = append(rows, s.TitleMuted.Render("Loading..."))
	case len(v.invitations) == 0:
		rows = append(rows, s.TitleMuted.Render("No pending invitations"))
	}

	for i, inv := range v.invitations {
		style := s.ListItem
		if i == v.cursor {
			style = s.ListSelected
		}
		detail := fmt.Sprintf("from %s as %s", inv.InvitedByUsername, inv.Role)
		if !inv.ExpiresAt.IsZero() {
			detail += ", expires " + inv.ExpiresAt.Format("Jan 2, 2006")
		}
		rows = append(rows,
			style.Render(inv.ProjectName),
			style.Foreground(styles.Current.ForegroundDim).Render(detail),
			"",
		)
	}

	if v.info != "" {
		rows = append(rows, s.Success.Render(v.info))
	}
	if v.err != "" {
		rows = append(rows, s.Error.Render(v.err))
	}
	rows = append(rows, helpLine(s, "↵/a", "accept", "d/x", "decline", "esc", "back"))

	padded := lipgloss.NewStyle().Padding(1, 2).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
	return styles.CenterView(padded, v.width, v.height)
}
