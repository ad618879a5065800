package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tgienger/depplan/internal/api"
	"github.com/tgienger/depplan/internal/db"
	"github.com/tgienger/depplan/internal/testutil/fakeapi"
)

func openDB(t *testing.T) *db.DB {
	t.Helper()
	database, err := db.New(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return database
}

func signed(t *testing.T, exp time.Time) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(exp),
	}).SignedString([]byte("k"))
	require.NoError(t, err)
	return tok
}

func TestValidateLogin(t *testing.T) {
	assert.ErrorIs(t, ValidateLogin(api.Credentials{Password: "x"}), ErrUsernameRequired)
	assert.ErrorIs(t, ValidateLogin(api.Credentials{Username: "  ", Password: "x"}), ErrUsernameRequired)
	assert.ErrorIs(t, ValidateLogin(api.Credentials{Username: "a"}), ErrPasswordRequired)
	assert.NoError(t, ValidateLogin(api.Credentials{Username: "a", Password: "x"}))
}

func TestValidateRegistration(t *testing.T) {
	tests := []struct {
		name string
		reg  api.Registration
		want error
	}{
		{name: "ok", reg: api.Registration{Username: "bob", Email: "bob@example.com", Password: "secret"}},
		{name: "no username", reg: api.Registration{Email: "bob@example.com", Password: "secret"}, want: ErrUsernameRequired},
		{name: "no at", reg: api.Registration{Username: "bob", Email: "bob.example.com", Password: "secret"}, want: ErrEmailInvalid},
		{name: "no dot", reg: api.Registration{Username: "bob", Email: "bob@example", Password: "secret"}, want: ErrEmailInvalid},
		{name: "short password", reg: api.Registration{Username: "bob", Email: "b@e.co", Password: "12345"}, want: ErrPasswordTooShort},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateRegistration(tc.reg)
			if tc.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestValidateEmail(t *testing.T) {
	assert.NoError(t, ValidateEmail(" carol@example.com "))
	assert.ErrorIs(t, ValidateEmail("carol"), ErrEmailInvalid)
	assert.ErrorIs(t, ValidateEmail(""), ErrEmailInvalid)
}

func TestExpiresAt(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	got, ok := ExpiresAt(signed(t, exp))
	require.True(t, ok)
	assert.True(t, exp.Equal(got))

	_, ok = ExpiresAt("opaque-token")
	assert.False(t, ok)
}

func TestGuard(t *testing.T) {
	database := openDB(t)
	m, err := NewManager(database)
	require.NoError(t, err)

	assert.ErrorIs(t, m.Check(), ErrNotSignedIn)

	require.NoError(t, database.SaveSession(db.Session{Token: signed(t, time.Now().Add(-time.Minute))}))
	m, err = NewManager(database)
	require.NoError(t, err)
	assert.ErrorIs(t, m.Check(), ErrSessionExpired)
	tok, err := m.Token()
	require.NoError(t, err)
	assert.Empty(t, tok, "expired sessions send no token")

	require.NoError(t, database.SaveSession(db.Session{Token: "opaque"}))
	m, err = NewManager(database)
	require.NoError(t, err)
	assert.NoError(t, m.Check(), "tokens without exp are left to the server")
}

func TestLoginPersistsAndLogoutClears(t *testing.T) {
	srv := fakeapi.New(t)
	srv.AddUser("alice", "alice@example.com", "secret1")
	database := openDB(t)

	m, err := NewManager(database)
	require.NoError(t, err)
	client, err := api.New(api.Options{BaseURL: srv.BaseURL(), Tokens: m})
	require.NoError(t, err)
	ctx := context.Background()

	_, err = m.Login(ctx, client, api.Credentials{Username: "", Password: "x"})
	assert.ErrorIs(t, err, ErrUsernameRequired)
	assert.Empty(t, srv.Requests(), "validation happens before any call")

	_, err = m.Login(ctx, client, api.Credentials{Username: "alice", Password: "nope"})
	require.Error(t, err)
	assert.Nil(t, m.Current())

	user, err := m.Login(ctx, client, api.Credentials{Username: " alice ", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", user.Email)
	require.NoError(t, m.Check())

	// the client now authenticates through the manager
	me, err := client.Me(ctx)
	require.NoError(t, err)
	assert.Equal(t, "alice", me.Username)

	reloaded, err := NewManager(database)
	require.NoError(t, err)
	require.NotNil(t, reloaded.Current())
	assert.Equal(t, "alice", reloaded.Current().User.Username)

	require.NoError(t, m.Logout())
	assert.ErrorIs(t, m.Check(), ErrNotSignedIn)
	s, err := database.LoadSession()
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestRegisterDoesNotSignIn(t *testing.T) {
	srv := fakeapi.New(t)
	m, err := NewManager(openDB(t))
	require.NoError(t, err)
	client, err := api.New(api.Options{BaseURL: srv.BaseURL(), Tokens: m})
	require.NoError(t, err)

	_, err = m.Register(context.Background(), client, api.Registration{Username: "bob", Email: "bad", Password: "secret"})
	assert.ErrorIs(t, err, ErrEmailInvalid)

	msg, err := m.Register(context.Background(), client, api.Registration{Username: "bob", Email: "bob@example.com", Password: "secret"})
	require.NoError(t, err)
	assert.Contains(t, msg, "verify")
	assert.Nil(t, m.Current())
}

func TestHandleErrorClearsOnUnauthorized(t *testing.T) {
	database := openDB(t)
	require.NoError(t, database.SaveSession(db.Session{Token: "opaque"}))
	m, err := NewManager(database)
	require.NoError(t, err)

	assert.False(t, m.HandleError(errors.New("network down")))
	assert.NotNil(t, m.Current())

	assert.True(t, m.HandleError(&api.APIError{Status: 401}))
	assert.Nil(t, m.Current())
	s, _ := database.LoadSession()
	assert.Nil(t, s)
}

func TestHandleErrorKeepsSessionOnProjectForbidden(t *testing.T) {
	database := openDB(t)
	require.NoError(t, database.SaveSession(db.Session{Token: "opaque"}))
	m, err := NewManager(database)
	require.NoError(t, err)

	tests := []struct {
		name    string
		err     error
		signOut bool
	}{
		{"activities of foreign project", &api.APIError{Status: 403, Path: "/projects/7/activities/recent"}, false},
		{"collaborators of foreign project", fmt.Errorf("api.ListCollaborators: %w", &api.APIError{Status: 403, Path: "/projects/7/collaboration/collaborators"}), false},
		{"forbidden outside a project", &api.APIError{Status: 403, Path: "/tasks/3"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, database.SaveSession(db.Session{Token: "opaque"}))
			m.mu.Lock()
			m.session = &db.Session{Token: "opaque"}
			m.mu.Unlock()

			assert.Equal(t, tt.signOut, m.HandleError(tt.err))
			assert.Equal(t, tt.signOut, m.Current() == nil)
		})
	}
}

func TestTokenConcurrentWithLogout(t *testing.T) {
	database := openDB(t)
	m, err := NewManager(database)
	require.NoError(t, err)

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			tok, err := m.Token()
			assert.NoError(t, err)
			if tok != "" {
				assert.Equal(t, "opaque", tok)
			}
		}
	}()

	deadline := time.Now().Add(50 * time.Millisecond)
	for time.Now().Before(deadline) {
		m.mu.Lock()
		m.session = &db.Session{Token: "opaque"}
		m.mu.Unlock()
		require.NoError(t, m.Logout())
	}
	close(stop)
	wg.Wait()
}
