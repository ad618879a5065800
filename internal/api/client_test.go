package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tgienger/depplan/internal/models"
	"github.com/tgienger/depplan/internal/testutil/fakeapi"
)

func newClient(t *testing.T, srv *fakeapi.Server, token string) *Client {
	t.Helper()
	c, err := New(Options{BaseURL: srv.BaseURL(), Timeout: 5 * time.Second, Tokens: StaticToken(token)})
	require.NoError(t, err)
	return c
}

func TestNewRejectsRelativeURL(t *testing.T) {
	_, err := New(Options{BaseURL: "/api"})
	require.Error(t, err)
}

func TestRequestHeaders(t *testing.T) {
	srv := fakeapi.New(t)
	token := srv.Token("alice")
	c := newClient(t, srv, token)

	_, err := c.ListProjects(context.Background())
	require.NoError(t, err)

	reqs := srv.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "Bearer "+token, reqs[0].Auth)
	assert.Len(t, reqs[0].RequestID, 36, "request id is a uuid")
	assert.Equal(t, "/projects", reqs[0].Path)
}

func TestNoTokenIsUnauthorized(t *testing.T) {
	srv := fakeapi.New(t)
	c := newClient(t, srv, "")

	_, err := c.ListProjects(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnauthorized))
	assert.Empty(t, srv.Requests()[0].Auth)
}

func TestLoginAndMe(t *testing.T) {
	srv := fakeapi.New(t)
	srv.AddUser("alice", "alice@example.com", "secret1")
	ctx := context.Background()

	anon := newClient(t, srv, "")
	_, err := anon.Login(ctx, Credentials{Username: "alice", Password: "wrong"})
	require.Error(t, err)
	assert.Equal(t, "Bad credentials", ErrorMessage(err, "login failed"))

	resp, err := anon.Login(ctx, Credentials{Username: "alice", Password: "secret1"})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Token)

	me, err := newClient(t, srv, resp.Token).Me(ctx)
	require.NoError(t, err)
	assert.Equal(t, "alice", me.Username)
	assert.Equal(t, "alice@example.com", me.Email)
}

func TestRegisterPlainTextMessages(t *testing.T) {
	srv := fakeapi.New(t)
	c := newClient(t, srv, "")
	ctx := context.Background()

	msg, err := c.Register(ctx, Registration{Username: "bob", Email: "bob@example.com", Password: "hunter2"})
	require.NoError(t, err)
	assert.Contains(t, msg, "registered successfully")

	_, err = c.Register(ctx, Registration{Username: "bob", Email: "other@example.com", Password: "hunter2"})
	require.Error(t, err)
	assert.Equal(t, "Error: Username is already taken!", ErrorMessage(err, "registration failed"))
}

func TestBoardRoundTrip(t *testing.T) {
	srv := fakeapi.New(t)
	c := newClient(t, srv, srv.Token("alice"))
	ctx := context.Background()

	p, err := c.CreateProject(ctx, NewProject{Name: "Launch"})
	require.NoError(t, err)

	todo, err := c.CreateList(ctx, p.ID, "Todo")
	require.NoError(t, err)
	done, err := c.CreateList(ctx, p.ID, "Done")
	require.NoError(t, err)
	assert.Equal(t, 1, done.Position)

	start := models.NewDate(time.Date(2025, 5, 1, 0, 0, 0, 0, time.Local))
	task, err := c.CreateTask(ctx, todo.ID, NewTask{Name: "Write docs", StartDate: &start})
	require.NoError(t, err)
	assert.Equal(t, todo.ID, task.ListID)

	reqs := srv.Requests()
	var body map[string]any
	require.NoError(t, json.Unmarshal([]byte(reqs[len(reqs)-1].Body), &body))
	assert.Equal(t, "2025-05-01", body["startDate"])
	assert.Equal(t, map[string]any{"id": float64(todo.ID)}, body["list"])

	u := TaskUpdateFrom(*task)
	u.ListID = done.ID
	u.Position = 0
	_, err = c.UpdateTask(ctx, u)
	require.NoError(t, err)

	lists, err := c.ListLists(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, lists, 2)
	assert.Empty(t, lists[0].Tasks)
	require.Len(t, lists[1].Tasks, 1)
	assert.Equal(t, "2025-05-01", lists[1].Tasks[0].StartDate.String())

	_, err = c.UpdateList(ctx, done.ID, "Shipped", 0)
	require.NoError(t, err)
	got, _ := srv.List(done.ID)
	assert.Equal(t, "Shipped", got.Name)

	require.NoError(t, c.DeleteTask(ctx, task.ID))
	err = c.DeleteTask(ctx, task.ID)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestDependencies(t *testing.T) {
	srv := fakeapi.New(t)
	c := newClient(t, srv, srv.Token("alice"))
	ctx := context.Background()

	p := srv.AddProject("p")
	l := srv.AddList(p, "l")
	a := srv.AddTask(l, "a")
	b := srv.AddTask(l, "b")

	dep, err := c.AddDependency(ctx, b, a)
	require.NoError(t, err)
	assert.Equal(t, b, dep.TaskID)
	assert.Equal(t, a, dep.DependsOnID)

	_, err = c.AddDependency(ctx, a, b)
	require.Error(t, err)
	assert.Contains(t, ErrorMessage(err, ""), "circular")

	deps, err := c.ListDependents(ctx, a)
	require.NoError(t, err)
	require.Len(t, deps, 1)

	require.NoError(t, c.RemoveDependency(ctx, b, a))
	deps, err = c.ListDependencies(ctx, b)
	require.NoError(t, err)
	assert.Empty(t, deps)
}

func TestInvitationsFlow(t *testing.T) {
	srv := fakeapi.New(t)
	srv.AddUser("carol", "carol@example.com", "pw1234")
	c := newClient(t, srv, srv.Token("carol"))
	ctx := context.Background()

	p := srv.AddProject("p")
	inv, err := c.InviteUser(ctx, p, NewInvite("carol@example.com", models.RoleMember, 48*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, models.InvitationPending, inv.Status)
	assert.Contains(t, srv.Requests()[0].Body, `"expirationHours":48`)

	mine, err := c.MyInvitations(ctx)
	require.NoError(t, err)
	require.Len(t, mine, 1)

	require.NoError(t, c.RespondToInvitationByID(ctx, inv.ID, Accept))
	got, _ := srv.Invitation(inv.ID)
	assert.Equal(t, models.InvitationAccepted, got.Status)

	collabs, err := c.ListCollaborators(ctx, p)
	require.NoError(t, err)
	require.Len(t, collabs, 1)
	assert.Equal(t, "carol", collabs[0].Username)

	ok, err := c.CheckAccess(ctx, p)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestActivities(t *testing.T) {
	srv := fakeapi.New(t)
	c := newClient(t, srv, srv.Token("alice"))
	ctx := context.Background()

	p := srv.AddProject("p")
	for i := 0; i < 5; i++ {
		srv.AddActivity(p, models.Activity{ActivityType: models.ActivityTaskCreated, Description: "created"})
	}
	srv.AddActivity(p, models.Activity{ActivityType: models.ActivityListMoved})

	recent, err := c.RecentActivities(ctx, p, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, models.ActivityListMoved, recent[0].ActivityType, "newest first")

	page, err := c.ActivitiesPage(ctx, p, 1, 4)
	require.NoError(t, err)
	assert.EqualValues(t, 6, page.TotalElements)
	assert.Equal(t, 2, page.TotalPages)
	assert.Len(t, page.Content, 2)

	stats, err := c.ActivityStatistics(ctx, p)
	require.NoError(t, err)
	require.Len(t, stats, 2)
	assert.EqualValues(t, 5, stats[0].Count)
}

func TestActivitiesBetweenQuery(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		_, _ = w.Write([]byte(`[]`))
	}))
	t.Cleanup(srv.Close)

	c, err := New(Options{BaseURL: srv.URL + "/api"})
	require.NoError(t, err)

	start := time.Date(2025, 1, 2, 3, 4, 5, 0, time.Local)
	_, err = c.ActivitiesBetween(context.Background(), 9, start, start.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, "endDate=2025-01-02T04%3A04%3A05&startDate=2025-01-02T03%3A04%3A05", gotQuery)
}

func TestDecodeErrorShapes(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{name: "json message", status: 400, body: `{"message":"bad name"}`, want: "bad name"},
		{name: "json error field", status: 500, body: `{"error":"boom"}`, want: "boom"},
		{name: "json string", status: 400, body: `"Error: nope"`, want: "Error: nope"},
		{name: "plain text", status: 409, body: "conflict here\n", want: "conflict here"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			t.Cleanup(srv.Close)

			c, err := New(Options{BaseURL: srv.URL})
			require.NoError(t, err)
			err = c.DeleteList(context.Background(), 1)

			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tc.status, apiErr.Status)
			assert.Equal(t, tc.want, apiErr.Message)
		})
	}
}

func TestInjectedFailure(t *testing.T) {
	srv := fakeapi.New(t)
	srv.SetFail(func(r *http.Request) int { return http.StatusForbidden })
	c := newClient(t, srv, srv.Token("alice"))

	_, err := c.ListProjects(context.Background())
	assert.True(t, errors.Is(err, ErrUnauthorized))
	assert.False(t, errors.Is(err, ErrNotFound))
}
