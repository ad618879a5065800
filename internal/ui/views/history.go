package views

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tgienger/depplan/internal/api"
	"github.com/tgienger/depplan/internal/models"
	"github.com/tgienger/depplan/internal/ui/keys"
	"github.com/tgienger/depplan/internal/ui/styles"
)

// recentActivityLimit is how many entries the history panel fetches
const recentActivityLimit = 20

// historyPageSize is the page size of the full log
const historyPageSize = 20

var errUnknownAuthor = errors.New("views: author is not a collaborator of this project")

type historyScope int

const (
	scopeRecent historyScope = iota
	scopeAll
	scopeToday
	scopeType
	scopeEntity
	scopeAuthor
)

// historyQuery selects which slice of the activity log is shown
type historyQuery struct {
	scope      historyScope
	page       int
	typ        models.ActivityType
	entityType string
	entityID   int64
	label      string
}

func (q historyQuery) title() string {
	switch q.scope {
	case scopeAll:
		return fmt.Sprintf("All activity (page %d)", q.page+1)
	case scopeToday:
		return "Today's activity"
	case scopeType:
		return "Activity: " + humanType(q.typ)
	case scopeEntity:
		return fmt.Sprintf("History of %s %s", strings.ToLower(q.entityType), q.label)
	case scopeAuthor:
		return "Activity by " + q.label
	}
	return "Recent activity"
}

// historySource is the part of the client the panel reads from
type historySource interface {
	RecentActivities(ctx context.Context, projectID int64, limit int) ([]models.Activity, error)
	ActivitiesPage(ctx context.Context, projectID int64, page, size int) (*models.ActivityPage, error)
	ActivitiesBetween(ctx context.Context, projectID int64, start, end time.Time) ([]models.Activity, error)
	ActivitiesByType(ctx context.Context, projectID int64, typ models.ActivityType) ([]models.Activity, error)
	EntityActivities(ctx context.Context, projectID int64, entityType string, entityID int64) ([]models.Activity, error)
	UserActivities(ctx context.Context, projectID, userID int64) ([]models.Activity, error)
	ListCollaborators(ctx context.Context, projectID int64) ([]models.Collaborator, error)
	ActivityStatistics(ctx context.Context, projectID int64) ([]models.ActivityStat, error)
}

var _ historySource = (*api.Client)(nil)

// fetchHistory runs q and returns the entries and, for the paged log, the
// page count
func fetchHistory(ctx context.Context, c historySource, projectID int64, q historyQuery, now time.Time) ([]models.Activity, int, error) {
	switch q.scope {
	case scopeAll:
		page, err := c.ActivitiesPage(ctx, projectID, q.page, historyPageSize)
		if err != nil {
			return nil, 0, err
		}
		return page.Content, page.TotalPages, nil
	case scopeToday:
		y, m, d := now.Date()
		acts, err := c.ActivitiesBetween(ctx, projectID, time.Date(y, m, d, 0, 0, 0, 0, now.Location()), now)
		return acts, 0, err
	case scopeType:
		acts, err := c.ActivitiesByType(ctx, projectID, q.typ)
		return acts, 0, err
	case scopeEntity:
		acts, err := c.EntityActivities(ctx, projectID, q.entityType, q.entityID)
		return acts, 0, err
	case scopeAuthor:
		collabs, err := c.ListCollaborators(ctx, projectID)
		if err != nil {
			return nil, 0, err
		}
		for _, col := range collabs {
			if col.Username == q.label {
				acts, err := c.UserActivities(ctx, projectID, col.UserID)
				return acts, 0, err
			}
		}
		return nil, 0, errUnknownAuthor
	}
	acts, err := c.RecentActivities(ctx, projectID, recentActivityLimit)
	return acts, 0, err
}

// historyPanel lists the project's activity log
type historyPanel struct {
	env       *Env
	styles    *styles.Styles
	keys      keys.KeyMap
	projectID int64
	width     int
	height    int

	query      historyQuery
	activities []models.Activity
	pages      int
	stats      []models.ActivityStat
	cursor     int
	expanded   map[int64]bool
	loading    bool
	err        string
}

type historyLoadedMsg struct {
	query      historyQuery
	activities []models.Activity
	pages      int
	stats      []models.ActivityStat
	err        error
}

func newHistoryPanel(env *Env, s *styles.Styles, projectID int64, width, height int) panel {
	return &historyPanel{
		env:       env,
		styles:    s,
		keys:      keys.DefaultKeyMap(),
		projectID: projectID,
		width:     width,
		height:    height,
		expanded:  map[int64]bool{},
	}
}

func (p *historyPanel) Init() tea.Cmd {
	return p.fetch(p.query)
}

func (p *historyPanel) fetch(q historyQuery) tea.Cmd {
	p.loading = true
	env, id := p.env, p.projectID
	return func() tea.Msg {
		ctx, cancel := env.context()
		defer cancel()
		acts, pages, err := fetchHistory(ctx, env.Client, id, q, time.Now())
		if err != nil {
			return historyLoadedMsg{query: q, err: err}
		}
		stats, err := env.Client.ActivityStatistics(ctx, id)
		return historyLoadedMsg{query: q, activities: acts, pages: pages, stats: stats, err: err}
	}
}

// selected returns the entry under the cursor
func (p *historyPanel) selected() (models.Activity, bool) {
	if p.cursor < 0 || p.cursor >= len(p.activities) {
		return models.Activity{}, false
	}
	return p.activities[p.cursor], true
}

func (p *historyPanel) Update(msg tea.Msg) (panel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		p.width, p.height = msg.Width, msg.Height
	case historyLoadedMsg:
		if msg.query != p.query {
			return p, nil
		}
		p.loading = false
		if msg.err != nil {
			p.err = errorText(msg.err)
			return p, p.env.guard(msg.err)
		}
		p.err = ""
		p.activities = msg.activities
		p.pages = msg.pages
		p.stats = msg.stats
		p.cursor = clamp(p.cursor, 0, max(len(p.activities)-1, 0))
	case tea.KeyMsg:
		return p, p.handleKey(msg)
	}
	return p, nil
}

func (p *historyPanel) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, p.keys.Back):
		if p.query.scope != scopeRecent {
			return p.show(historyQuery{})
		}
		return closePanelCmd
	case key.Matches(msg, p.keys.Quit):
		return tea.Quit
	case key.Matches(msg, p.keys.Up):
		p.cursor = max(p.cursor-1, 0)
	case key.Matches(msg, p.keys.Down):
		p.cursor = clamp(p.cursor+1, 0, max(len(p.activities)-1, 0))
	case key.Matches(msg, p.keys.Enter), key.Matches(msg, p.keys.Grab):
		if a, ok := p.selected(); ok {
			p.expanded[a.ID] = !p.expanded[a.ID]
		}
	case key.Matches(msg, p.keys.Refresh):
		return p.fetch(p.query)
	case key.Matches(msg, p.keys.Left):
		if p.query.scope == scopeAll && p.query.page > 0 {
			return p.show(historyQuery{scope: scopeAll, page: p.query.page - 1})
		}
	case key.Matches(msg, p.keys.Right):
		if p.query.scope == scopeAll && p.query.page+1 < p.pages {
			return p.show(historyQuery{scope: scopeAll, page: p.query.page + 1})
		}
	case msg.String() == "f":
		next := map[historyScope]historyScope{scopeRecent: scopeAll, scopeAll: scopeToday}[p.query.scope]
		return p.show(historyQuery{scope: next})
	case msg.String() == "y":
		if a, ok := p.selected(); ok {
			return p.show(historyQuery{scope: scopeType, typ: a.ActivityType})
		}
	case msg.String() == "o":
		if a, ok := p.selected(); ok && a.EntityType != "" {
			return p.show(historyQuery{scope: scopeEntity, entityType: a.EntityType, entityID: a.EntityID, label: a.EntityName})
		}
	case msg.String() == "u":
		if a, ok := p.selected(); ok && a.Username != "" {
			return p.show(historyQuery{scope: scopeAuthor, label: a.Username})
		}
	}
	return nil
}

func (p *historyPanel) show(q historyQuery) tea.Cmd {
	p.query = q
	p.cursor = 0
	p.activities = nil
	p.err = ""
	return p.fetch(q)
}

func (p *historyPanel) View() string {
	s := p.styles
	textWidth := clamp(styles.ContentWidth(p.width)-6, 30, 74)
	rows := []string{s.Title.Render(p.query.title()), ""}

	switch {
	case p.err != "":
		rows = append(rows, s.Error.Render(p.err))
	case p.loading && len(p.activities) == 0:
		rows = append(rows, s.TitleMuted.Render("Loading..."))
	case len(p.activities) == 0:
		rows = append(rows, s.TitleMuted.Render("Nothing has happened yet"))
	}

	for i, a := range p.activities {
		when := ""
		if !a.Timestamp.IsZero() {
			when = a.Timestamp.Format("Jan 2 15:04")
		}
		line := fmt.Sprintf("%-12s %-10s %s", when, clip(a.Username, 10), clip(activitySummary(a), textWidth-25))
		style := s.ListItem
		if i == p.cursor {
			style = s.ListSelected
		}
		rows = append(rows, style.Render(line))
		if p.expanded[a.ID] {
			rows = append(rows, p.renderChange(a, textWidth))
		}
	}

	if len(p.stats) > 0 {
		parts := make([]string, 0, len(p.stats))
		for _, st := range p.stats {
			parts = append(parts, fmt.Sprintf("%s %d", humanType(st.Type), st.Count))
		}
		rows = append(rows, "", s.TitleMuted.Width(textWidth).Render("Totals: "+strings.Join(parts, " • ")))
	}

	pairs := []string{"↑↓", "select", "↵", "details", "f", "scope", "y", "same type", "o", "same item", "u", "same author"}
	if p.query.scope == scopeAll {
		pairs = append(pairs, "←→", "page")
	}
	pairs = append(pairs, "esc", "back")
	rows = append(rows, helpLine(s, pairs...))
	padded := lipgloss.NewStyle().Padding(1, 2).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
	return styles.CenterView(padded, p.width, p.height)
}

func (p *historyPanel) renderChange(a models.Activity, width int) string {
	s := p.styles
	block := lipgloss.NewStyle().Width(width - 6).MarginLeft(4)
	var parts []string
	if a.EntityType != "" {
		parts = append(parts, s.TitleMuted.Render(fmt.Sprintf("%s #%d %s", strings.ToLower(a.EntityType), a.EntityID, a.EntityName)))
	}
	if a.OldValues != "" {
		parts = append(parts, s.Error.Render("- ")+prettyJSON(a.OldValues))
	}
	if a.NewValues != "" {
		parts = append(parts, s.Success.Render("+ ")+prettyJSON(a.NewValues))
	}
	if len(parts) == 0 {
		parts = append(parts, s.TitleMuted.Render("no recorded values"))
	}
	return block.Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
}

func activitySummary(a models.Activity) string {
	if a.Description != "" {
		return a.Description
	}
	if a.EntityName != "" {
		return humanType(a.ActivityType) + " " + a.EntityName
	}
	return humanType(a.ActivityType)
}

// humanType turns TASK_CREATED into "task created"
func humanType(t models.ActivityType) string {
	return strings.ToLower(strings.ReplaceAll(string(t), "_", " "))
}

func prettyJSON(s string) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, []byte(s), "", "  "); err != nil {
		return s
	}
	return buf.String()
}
