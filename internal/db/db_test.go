package db

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tgienger/depplan/internal/models"
)

func openTest(t *testing.T) *DB {
	t.Helper()
	database, err := New(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return database
}

func TestSettings(t *testing.T) {
	database := openTest(t)

	v, err := database.GetSetting("missing")
	require.NoError(t, err)
	assert.Empty(t, v)

	require.NoError(t, database.SetSetting("theme", "dark"))
	require.NoError(t, database.SetSetting("theme", "light"))
	v, err = database.GetSetting("theme")
	require.NoError(t, err)
	assert.Equal(t, "light", v)

	require.NoError(t, database.DeleteSetting("theme"))
	v, _ = database.GetSetting("theme")
	assert.Empty(t, v)
}

func TestSessionRoundTrip(t *testing.T) {
	dir := t.TempDir()
	database, err := New(dir)
	require.NoError(t, err)

	s, err := database.LoadSession()
	require.NoError(t, err)
	assert.Nil(t, s)

	want := Session{Token: "tok", User: models.User{Username: "alice", Email: "a@example.com"}}
	require.NoError(t, database.SaveSession(want))
	require.NoError(t, database.SetLastProjectID(42))
	require.NoError(t, database.Close())

	// survives reopening the file
	database, err = New(dir)
	require.NoError(t, err)
	defer database.Close()

	got, err := database.LoadSession()
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, want, *got)

	id, err := database.LastProjectID()
	require.NoError(t, err)
	assert.EqualValues(t, 42, id)

	require.NoError(t, database.ClearSession())
	got, err = database.LoadSession()
	require.NoError(t, err)
	assert.Nil(t, got)
	id, _ = database.LastProjectID()
	assert.Zero(t, id)
}

func TestInMemory(t *testing.T) {
	database, err := New("")
	require.NoError(t, err)
	defer database.Close()

	require.NoError(t, database.SetSetting("k", "v"))
	v, err := database.GetSetting("k")
	require.NoError(t, err)
	assert.Equal(t, "v", v)
}

func TestProjectCache(t *testing.T) {
	database := openTest(t)
	created := models.Timestamp{Time: time.Date(2025, 2, 3, 4, 5, 6, 0, time.Local)}

	require.NoError(t, database.ReplaceProjectCache([]models.Project{
		{ID: 2, Name: "Beta"},
		{ID: 1, Name: "Alpha", Description: "first", CreatedAt: created},
	}))

	projects, err := database.CachedProjects()
	require.NoError(t, err)
	require.Len(t, projects, 2)
	assert.Equal(t, "Alpha", projects[0].Name)
	assert.True(t, created.Equal(projects[0].CreatedAt.Time))
	assert.True(t, projects[1].CreatedAt.IsZero())

	require.NoError(t, database.ReplaceProjectCache([]models.Project{{ID: 3, Name: "Gamma"}}))
	projects, err = database.CachedProjects()
	require.NoError(t, err)
	require.Len(t, projects, 1)

	p, ok, err := database.CachedProject(3)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Gamma", p.Name)

	_, ok, err = database.CachedProject(1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSyncJournal(t *testing.T) {
	database := openTest(t)
	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, database.RecordSyncFailure(JournalEntry{
		ProjectID: 1, EntityKind: "task", EntityID: 10, Attempts: 3, LastError: "503", FailedAt: base,
	}))
	require.NoError(t, database.RecordSyncFailure(JournalEntry{
		ProjectID: 1, EntityKind: "list", EntityID: 4, Attempts: 3, LastError: "timeout", FailedAt: base.Add(time.Minute),
	}))

	entries, err := database.SyncFailures(0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "list", entries[0].EntityKind, "newest first")
	assert.EqualValues(t, 10, entries[1].EntityID)
	assert.True(t, base.Equal(entries[1].FailedAt))

	entries, err = database.SyncFailures(1)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	require.NoError(t, database.ClearSyncJournal())
	entries, err = database.SyncFailures(0)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
