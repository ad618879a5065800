package views

import (
	"context"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tgienger/depplan/internal/models"
	"github.com/tgienger/depplan/internal/testutil/fakeapi"
)

func seedHistory(t *testing.T, srv *fakeapi.Server) int64 {
	t.Helper()
	pid := srv.AddProject("Launch")
	srv.AddUser("bob", "bob@example.com", "secret1")
	srv.AddCollaborator(pid, "bob", models.RoleMember)

	srv.AddActivity(pid, models.Activity{Username: "ada", ActivityType: models.ActivityTaskCreated, EntityType: "TASK", EntityID: 1, EntityName: "Brief"})
	srv.AddActivity(pid, models.Activity{Username: "bob", ActivityType: models.ActivityTaskUpdated, EntityType: "TASK", EntityID: 1, EntityName: "Brief"})
	srv.AddActivity(pid, models.Activity{Username: "bob", ActivityType: models.ActivityListCreated, EntityType: "LIST", EntityID: 2, EntityName: "Todo"})
	srv.AddActivity(pid, models.Activity{Username: "ada", ActivityType: models.ActivityTaskCreated, EntityType: "TASK", EntityID: 3, EntityName: "Slides"})
	return pid
}

func TestFetchHistoryScopes(t *testing.T) {
	srv := fakeapi.New(t)
	env := newTestEnv(t, srv)
	pid := seedHistory(t, srv)

	tests := []struct {
		name  string
		query historyQuery
		want  []string
	}{
		{"recent", historyQuery{}, []string{"Slides", "Todo", "Brief", "Brief"}},
		{"today", historyQuery{scope: scopeToday}, []string{"Slides", "Todo", "Brief", "Brief"}},
		{"by type", historyQuery{scope: scopeType, typ: models.ActivityTaskCreated}, []string{"Slides", "Brief"}},
		{"by entity", historyQuery{scope: scopeEntity, entityType: "TASK", entityID: 1}, []string{"Brief", "Brief"}},
		{"by author", historyQuery{scope: scopeAuthor, label: "bob"}, []string{"Todo", "Brief"}},
		{"all first page", historyQuery{scope: scopeAll}, []string{"Slides", "Todo", "Brief", "Brief"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acts, _, err := fetchHistory(context.Background(), env.Client, pid, tt.query, time.Now())
			require.NoError(t, err)
			names := make([]string, len(acts))
			for i, a := range acts {
				names[i] = a.EntityName
			}
			assert.Equal(t, tt.want, names)
		})
	}

	_, _, err := fetchHistory(context.Background(), env.Client, pid, historyQuery{scope: scopeAuthor, label: "nobody"}, time.Now())
	assert.ErrorIs(t, err, errUnknownAuthor)
}

func TestHistoryPanelFilterKeys(t *testing.T) {
	srv := fakeapi.New(t)
	env := newTestEnv(t, srv)
	pid := seedHistory(t, srv)

	p := newHistoryPanel(env, nil, pid, 120, 40).(*historyPanel)
	deliver := func(cmd tea.Cmd) {
		t.Helper()
		require.NotNil(t, cmd)
		p.Update(cmd())
	}
	deliver(p.Init())
	require.Len(t, p.activities, 4)

	// cursor on "Todo", then narrow to its author
	p.Update(keyDown)
	_, cmd := p.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'u'}})
	deliver(cmd)
	assert.Equal(t, scopeAuthor, p.query.scope)
	assert.Len(t, p.activities, 2)

	// esc from a filter goes back to recent instead of closing
	_, cmd = p.Update(keyEsc)
	deliver(cmd)
	assert.Equal(t, scopeRecent, p.query.scope)
	assert.Len(t, p.activities, 4)

	_, cmd = p.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'o'}})
	deliver(cmd)
	assert.Equal(t, scopeEntity, p.query.scope)
	assert.Equal(t, "Slides", p.query.label)

	_, cmd = p.Update(keyEsc)
	deliver(cmd)
	_, cmd = p.Update(keyEsc)
	require.NotNil(t, cmd)
	assert.IsType(t, closePanel{}, cmd())
}
