package views

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tgienger/depplan/internal/api"
	"github.com/tgienger/depplan/internal/models"
	"github.com/tgienger/depplan/internal/ui/keys"
	"github.com/tgienger/depplan/internal/ui/styles"
)

type authMode int

const (
	modeLogin authMode = iota
	modeRegister
)

// LoginView handles sign in and sign up
type LoginView struct {
	env    *Env
	styles *styles.Styles
	keys   keys.KeyMap
	width  int
	height int

	mode     authMode
	username textinput.Model
	email    textinput.Model
	password textinput.Model
	focusIdx int

	busy    bool
	spinner spinner.Model
	err     string
	info    string
}

type loginDoneMsg struct {
	user *models.User
	err  error
}

type registerDoneMsg struct {
	username string
	message  string
	err      error
}

// NewLoginView creates the sign in form. notice, when set, is shown above
// the form (for example after the session expired).
func NewLoginView(env *Env, notice string) *LoginView {
	username := textinput.New()
	username.Placeholder = "Username"
	username.CharLimit = 50

	email := textinput.New()
	email.Placeholder = "you@example.com"
	email.CharLimit = 100

	password := textinput.New()
	password.Placeholder = "Password"
	password.CharLimit = 100
	password.EchoMode = textinput.EchoPassword
	password.EchoCharacter = '•'

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(styles.Current.Accent)

	v := &LoginView{
		env:      env,
		styles:   styles.NewStyles(),
		keys:     keys.DefaultKeyMap(),
		username: username,
		email:    email,
		password: password,
		spinner:  sp,
		info:     notice,
	}
	v.updateFocus()
	return v
}

func (v *LoginView) Init() tea.Cmd {
	return textinput.Blink
}

// fields returns the inputs of the current mode in tab order
func (v *LoginView) fields() []*textinput.Model {
	if v.mode == modeRegister {
		return []*textinput.Model{&v.username, &v.email, &v.password}
	}
	return []*textinput.Model{&v.username, &v.password}
}

// focus count includes the submit button
func (v *LoginView) focusCount() int { return len(v.fields()) + 1 }

func (v *LoginView) updateFocus() {
	for i, f := range v.fields() {
		if i == v.focusIdx {
			f.Focus()
		} else {
			f.Blur()
		}
	}
	if v.mode == modeLogin {
		v.email.Blur()
	}
}

func (v *LoginView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.width = msg.Width
		v.height = msg.Height
		return v, nil

	case spinner.TickMsg:
		if !v.busy {
			return v, nil
		}
		var cmd tea.Cmd
		v.spinner, cmd = v.spinner.Update(msg)
		return v, cmd

	case loginDoneMsg:
		v.busy = false
		if msg.err != nil {
			v.err = errorText(msg.err)
			return v, nil
		}
		user := *msg.user
		return v, func() tea.Msg { return SignedIn{User: user} }

	case registerDoneMsg:
		v.busy = false
		if msg.err != nil {
			v.err = errorText(msg.err)
			return v, nil
		}
		v.switchMode(modeLogin)
		v.username.SetValue(msg.username)
		v.focusIdx = 1
		v.updateFocus()
		v.info = msg.message
		return v, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return v, tea.Quit
		}
		if v.busy {
			return v, nil
		}
		return v.updateForm(msg)
	}
	return v, nil
}

func (v *LoginView) updateForm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, v.keys.SwitchTab):
		if v.mode == modeLogin {
			v.switchMode(modeRegister)
		} else {
			v.switchMode(modeLogin)
		}
		return v, textinput.Blink

	case key.Matches(msg, v.keys.Back):
		v.err = ""
		v.info = ""
		return v, nil

	case key.Matches(msg, v.keys.Save):
		return v, v.submit()

	case key.Matches(msg, v.keys.Tab), msg.String() == "down":
		v.focusIdx = (v.focusIdx + 1) % v.focusCount()
		v.updateFocus()
		return v, nil

	case msg.String() == "shift+tab", msg.String() == "up":
		v.focusIdx = (v.focusIdx + v.focusCount() - 1) % v.focusCount()
		v.updateFocus()
		return v, nil

	case key.Matches(msg, v.keys.Enter):
		if v.focusIdx < len(v.fields())-1 {
			v.focusIdx++
			v.updateFocus()
			return v, nil
		}
		return v, v.submit()
	}

	fields := v.fields()
	if v.focusIdx >= len(fields) {
		return v, nil
	}
	var cmd tea.Cmd
	*fields[v.focusIdx], cmd = fields[v.focusIdx].Update(msg)
	return v, cmd
}

func (v *LoginView) switchMode(m authMode) {
	v.mode = m
	v.focusIdx = 0
	v.err = ""
	v.info = ""
	v.password.Reset()
	v.updateFocus()
}

func (v *LoginView) submit() tea.Cmd {
	v.err = ""
	v.info = ""
	v.busy = true
	env := v.env

	if v.mode == modeRegister {
		reg := api.Registration{
			Username: v.username.Value(),
			Email:    v.email.Value(),
			Password: v.password.Value(),
		}
		return tea.Batch(v.spinner.Tick, func() tea.Msg {
			ctx, cancel := env.context()
			defer cancel()
			msg, err := env.Auth.Register(ctx, env.Client, reg)
			if msg == "" {
				msg = "Registered. Check your email to verify your account, then sign in."
			}
			return registerDoneMsg{username: strings.TrimSpace(reg.Username), message: msg, err: err}
		})
	}

	creds := api.Credentials{
		Username: v.username.Value(),
		Password: v.password.Value(),
	}
	return tea.Batch(v.spinner.Tick, func() tea.Msg {
		ctx, cancel := env.context()
		defer cancel()
		user, err := env.Auth.Login(ctx, env.Client, creds)
		return loginDoneMsg{user: user, err: err}
	})
}

// View renders the view
func (v *LoginView) View() string {
	s := v.styles
	contentWidth := styles.ContentWidth(v.width)
	inputWidth := clamp(contentWidth-6, 20, 40)

	title := "Sign In"
	button := " Sign In "
	other := "ctrl+t: create an account"
	if v.mode == modeRegister {
		title = "Create Account"
		button = " Register "
		other = "ctrl+t: back to sign in"
	}

	style := func(i int) lipgloss.Style {
		if i == v.focusIdx {
			return s.InputFocused.Width(inputWidth)
		}
		return s.Input.Width(inputWidth)
	}

	rows := []string{s.Title.Render("Dependency Planner"), s.TitleMuted.Render(title), ""}
	if v.info != "" {
		rows = append(rows, s.Success.Width(inputWidth+4).Render(v.info), "")
	}
	rows = append(rows, "Username:", style(0).Render(v.username.View()), "")
	idx := 1
	if v.mode == modeRegister {
		rows = append(rows, "Email:", style(1).Render(v.email.View()), "")
		idx = 2
	}
	rows = append(rows, "Password:", style(idx).Render(v.password.View()), "")

	btnStyle := s.Button
	if v.focusIdx == v.focusCount()-1 {
		btnStyle = s.ButtonFocused
	}
	btn := btnStyle.Render(button)
	if v.busy {
		btn = lipgloss.JoinHorizontal(lipgloss.Center, btn, " ", v.spinner.View())
	}
	rows = append(rows, btn)

	if v.err != "" {
		rows = append(rows, "", s.Error.Width(inputWidth+4).Render(v.err))
	}
	rows = append(rows, "", s.TitleMuted.Render("Tab: next • ↵: submit • "+other))

	centered := lipgloss.Place(contentWidth, v.height,
		lipgloss.Center, lipgloss.Center,
		lipgloss.JoinVertical(lipgloss.Left, rows...),
	)
	return styles.CenterView(centered, v.width, v.height)
}
