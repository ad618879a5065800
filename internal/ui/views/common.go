package views

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tgienger/depplan/internal/api"
	"github.com/tgienger/depplan/internal/auth"
	"github.com/tgienger/depplan/internal/board"
	"github.com/tgienger/depplan/internal/config"
	"github.com/tgienger/depplan/internal/db"
	"github.com/tgienger/depplan/internal/models"
	"github.com/tgienger/depplan/internal/ui/styles"
)

// Env is what every view needs to reach the backend and local state
type Env struct {
	Client *api.Client
	DB     *db.DB
	Auth   *auth.Manager
	Config *config.Config
}

// context bounds one user action. Board commands confirm with a refetch,
// so they get room for two round trips.
func (e *Env) context() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 2*e.Config.API.Timeout+time.Second)
}

// Messages the app routes between views
type (
	SignedIn        struct{ User models.User }
	SessionExpired  struct{}
	LoggedOut       struct{}
	SelectedProject struct{ Project models.Project }
	BackToProjects  struct{}
	OpenInvitations struct{}
)

// guard turns an authorization failure into SessionExpired. It returns nil
// for any other error.
func (e *Env) guard(err error) tea.Cmd {
	if err == nil || !e.Auth.HandleError(err) {
		return nil
	}
	return func() tea.Msg { return SessionExpired{} }
}

var friendly = map[error]string{
	board.ErrNameRequired:    "Name is required",
	board.ErrSelfDependency:  "A task cannot depend on itself",
	board.ErrUnknownList:     "That list is no longer on the board",
	board.ErrUnknownTask:     "That task is no longer on the board",
	auth.ErrUsernameRequired: "Username is required",
	auth.ErrPasswordRequired: "Password is required",
	auth.ErrEmailInvalid:     "Enter a valid email address",
	auth.ErrPasswordTooShort: "Password must be at least 6 characters",
	auth.ErrSessionExpired:   "Your session has expired, please sign in again",
	auth.ErrNotSignedIn:      "Please sign in",
	errUnknownAuthor:         "That author is no longer a collaborator",
}

// errorText is the inline message shown for err
func errorText(err error) string {
	for target, text := range friendly {
		if errors.Is(err, target) {
			return text
		}
	}
	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		return api.ErrorMessage(err, http.StatusText(apiErr.Status))
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "The server did not answer in time"
	}
	return err.Error()
}

// clamp returns val clamped between minVal and maxVal
func clamp(val, minVal, maxVal int) int {
	if val < minVal {
		return minVal
	}
	if val > maxVal {
		return maxVal
	}
	return val
}

// parseOptionalDate accepts "" or YYYY-MM-DD
func parseOptionalDate(s string) (*models.Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	d, err := models.ParseDate(s)
	if err != nil {
		return nil, errors.New("dates use the form YYYY-MM-DD")
	}
	return &d, nil
}

func dateValue(d *models.Date) string {
	if d == nil || d.IsZero() {
		return ""
	}
	return d.String()
}

// helpLine renders "key desc • key desc" pairs
func helpLine(s *styles.Styles, pairs ...string) string {
	parts := make([]string, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		parts = append(parts, s.HelpKey.Render(pairs[i])+" "+s.HelpDesc.Render(pairs[i+1]))
	}
	return s.Help.Render(strings.Join(parts, " • "))
}

// popup centers content in a bordered box
func popup(s *styles.Styles, width, height int, content string) string {
	contentWidth := styles.ContentWidth(width)
	centered := lipgloss.Place(contentWidth, height,
		lipgloss.Center, lipgloss.Center,
		s.FilterBar.Render(content),
	)
	return styles.CenterView(centered, width, height)
}

// helpPopup renders a keyboard shortcut list
func helpPopup(s *styles.Styles, width, height int, items [][2]string) string {
	lines := []string{s.Title.Render("Keyboard Shortcuts"), ""}
	for _, it := range items {
		lines = append(lines, s.HelpKey.Render(padRight(it[0], 7))+it[1])
	}
	lines = append(lines, "", s.TitleMuted.Render("Press any key to close"))
	return popup(s, width, height, lipgloss.JoinVertical(lipgloss.Left, lines...))
}

func padRight(s string, n int) string {
	w := lipgloss.Width(s)
	if w >= n {
		return s + " "
	}
	return s + strings.Repeat(" ", n-w)
}

// confirmDialog is the y/n prompt used before destructive actions
func confirmDialog(s *styles.Styles, width, height int, title, detail string) string {
	contentWidth := styles.ContentWidth(width)
	content := lipgloss.JoinVertical(lipgloss.Center,
		s.Title.Foreground(styles.Current.Error).Render(title),
		"",
		s.TitleMuted.Render(detail),
		"",
		lipgloss.JoinHorizontal(lipgloss.Center,
			s.ButtonPrimary.Render(" Y - Yes "),
			"  ",
			s.Button.Render(" N - No "),
		),
	)
	centered := lipgloss.Place(contentWidth, height,
		lipgloss.Center, lipgloss.Center,
		content,
	)
	return styles.CenterView(centered, width, height)
}
