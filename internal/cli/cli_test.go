package cli

import (
	"bytes"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tgienger/depplan/internal/api"
	"github.com/tgienger/depplan/internal/db"
	"github.com/tgienger/depplan/internal/models"
	"github.com/tgienger/depplan/internal/testutil/fakeapi"
)

// runCLI executes the command tree against srv with an isolated data dir.
func runCLI(t *testing.T, srv *fakeapi.Server, stdin string, args ...string) (string, error) {
	t.Helper()

	configPath, apiURL, logLevel = "", "", ""
	username, email, passwordStdin = "", "", false
	cachedOnly, journalLimit, clearJournal = false, 20, false
	inviteToken, resendVerification = "", false

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(append([]string{"--api-url", srv.BaseURL(), "--log-level", "error"}, args...))
	err := rootCmd.Execute()
	return out.String(), err
}

func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("DEPPLAN_DATA_DIR", dir)
	return dir
}

func TestLoginThenWhoami(t *testing.T) {
	isolate(t)
	srv := fakeapi.New(t)
	srv.AddUser("ada", "ada@example.com", "secret1")

	out, err := runCLI(t, srv, "secret1\n", "login", "--username", "ada", "--password-stdin")
	require.NoError(t, err)
	assert.Contains(t, out, "Signed in as ada")

	out, err = runCLI(t, srv, "", "whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "ada <ada@example.com>")

	_, err = runCLI(t, srv, "", "logout")
	require.NoError(t, err)

	_, err = runCLI(t, srv, "", "whoami")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "depplan login")
}

func TestLoginBadPassword(t *testing.T) {
	isolate(t)
	srv := fakeapi.New(t)
	srv.AddUser("ada", "ada@example.com", "secret1")

	_, err := runCLI(t, srv, "nope\n", "login", "--username", "ada", "--password-stdin")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Bad credentials")
}

func TestProjectsFillsCache(t *testing.T) {
	dir := isolate(t)
	srv := fakeapi.New(t)
	srv.AddUser("ada", "ada@example.com", "secret1")
	srv.AddProject("Launch")
	srv.AddProject("Migration")

	_, err := runCLI(t, srv, "secret1\n", "login", "--username", "ada", "--password-stdin")
	require.NoError(t, err)

	out, err := runCLI(t, srv, "", "projects")
	require.NoError(t, err)
	assert.Contains(t, out, "Launch")
	assert.Contains(t, out, "Migration")

	srv.ResetRequests()
	out, err = runCLI(t, srv, "", "projects", "--cached")
	require.NoError(t, err)
	assert.Contains(t, out, "Migration")
	assert.Zero(t, srv.CountRequests("GET", "/projects"))

	database, err := db.New(dir)
	require.NoError(t, err)
	defer database.Close()
	cached, err := database.CachedProjects()
	require.NoError(t, err)
	assert.Len(t, cached, 2)
}

func TestProjectsShow(t *testing.T) {
	isolate(t)
	srv := fakeapi.New(t)
	srv.AddUser("ada", "ada@example.com", "secret1")
	pid := srv.AddProject("Launch")
	todo := srv.AddList(pid, "Todo")
	srv.AddTask(todo, "Brief")
	srv.AddTask(todo, "Slides")
	srv.AddList(pid, "Done")

	_, err := runCLI(t, srv, "secret1\n", "login", "--username", "ada", "--password-stdin")
	require.NoError(t, err)

	out, err := runCLI(t, srv, "", "projects", "show", strconv.FormatInt(pid, 10))
	require.NoError(t, err)
	assert.Contains(t, out, "Launch")
	assert.Contains(t, out, "Brief, Slides")
	assert.Contains(t, out, "Done")
	assert.Equal(t, 1, srv.CountRequests("GET", "/projects/"+strconv.FormatInt(pid, 10)+"/collaboration/check-access"))

	srv.ResetRequests()
	_, err = runCLI(t, srv, "", "projects", "show", "999")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "do not have access")
	// only the access check went out
	assert.Equal(t, 1, srv.CountRequests("GET", "/projects/999"))
}

func TestInvitationsAccept(t *testing.T) {
	isolate(t)
	srv := fakeapi.New(t)
	srv.AddUser("ada", "ada@example.com", "secret1")
	pid := srv.AddProject("Launch")
	invID := srv.AddInvitation(pid, "ada@example.com", models.RoleMember)

	_, err := runCLI(t, srv, "secret1\n", "login", "--username", "ada", "--password-stdin")
	require.NoError(t, err)

	out, err := runCLI(t, srv, "", "invitations")
	require.NoError(t, err)
	assert.Contains(t, out, "member")

	_, err = runCLI(t, srv, "", "invitations", "accept", "abc")
	require.Error(t, err)

	out, err = runCLI(t, srv, "", "invitations", "accept", strconv.FormatInt(invID, 10))
	require.NoError(t, err)
	assert.Contains(t, out, "Accepted")

	inv, ok := srv.Invitation(invID)
	require.True(t, ok)
	assert.Equal(t, models.InvitationAccepted, inv.Status)
}

func TestInvitationsAcceptByToken(t *testing.T) {
	isolate(t)
	srv := fakeapi.New(t)
	srv.AddUser("ada", "ada@example.com", "secret1")
	pid := srv.AddProject("Launch")
	invID := srv.AddInvitation(pid, "ada@example.com", models.RoleViewer)

	_, err := runCLI(t, srv, "secret1\n", "login", "--username", "ada", "--password-stdin")
	require.NoError(t, err)

	_, err = runCLI(t, srv, "", "invitations", "decline")
	require.Error(t, err)
	_, err = runCLI(t, srv, "", "invitations", "decline", "1", "--token", "x")
	require.Error(t, err)

	out, err := runCLI(t, srv, "", "invitations", "decline", "--token", srv.InvitationToken(invID))
	require.NoError(t, err)
	assert.Contains(t, out, "Declined invitation")

	inv, ok := srv.Invitation(invID)
	require.True(t, ok)
	assert.Equal(t, models.InvitationDeclined, inv.Status)
}

func TestAPIErrorKeepsChain(t *testing.T) {
	isolate(t)
	srv := fakeapi.New(t)
	srv.AddUser("ada", "ada@example.com", "secret1")

	_, err := runCLI(t, srv, "secret1\n", "login", "--username", "ada", "--password-stdin")
	require.NoError(t, err)

	_, err = runCLI(t, srv, "", "invitations", "accept", "404")
	require.Error(t, err)
	assert.ErrorIs(t, err, api.ErrNotFound)
	var apiErr *api.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Contains(t, err.Error(), apiErr.Message)

	// a missing invitation is not a reason to sign out
	out, err := runCLI(t, srv, "", "whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "ada")
}

func TestRegisterThenVerify(t *testing.T) {
	isolate(t)
	srv := fakeapi.New(t)

	_, err := runCLI(t, srv, "secret1\n", "register", "--username", "grace", "--email", "grace@example.com", "--password-stdin")
	require.NoError(t, err)
	assert.False(t, srv.Verified("grace"))

	first := srv.VerificationToken("grace")
	require.NotEmpty(t, first)

	out, err := runCLI(t, srv, "", "verify", "--resend", "--email", "grace@example.com")
	require.NoError(t, err)
	assert.Contains(t, out, "Verification email sent")
	second := srv.VerificationToken("grace")
	assert.NotEqual(t, first, second)

	_, err = runCLI(t, srv, "", "verify", first)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid or expired")

	out, err = runCLI(t, srv, "", "verify", second)
	require.NoError(t, err)
	assert.Contains(t, out, "Email verified")
	assert.True(t, srv.Verified("grace"))

	_, err = runCLI(t, srv, "", "verify", "--resend", "--email", "grace@example.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already verified")
}

func TestVerifyArgs(t *testing.T) {
	isolate(t)
	srv := fakeapi.New(t)

	_, err := runCLI(t, srv, "", "verify")
	require.Error(t, err)
	_, err = runCLI(t, srv, "", "verify", "tok", "--resend", "--email", "a@b.co")
	require.Error(t, err)
	assert.Zero(t, srv.CountRequests("POST", "/auth/verify-email"))
}

func TestJournal(t *testing.T) {
	dir := isolate(t)
	srv := fakeapi.New(t)

	database, err := db.New(dir)
	require.NoError(t, err)
	require.NoError(t, database.RecordSyncFailure(db.JournalEntry{
		ProjectID: 4, EntityKind: "task", EntityID: 9, Attempts: 3, LastError: "503 service unavailable",
	}))
	require.NoError(t, database.Close())

	out, err := runCLI(t, srv, "", "journal")
	require.NoError(t, err)
	assert.Contains(t, out, "task 9")
	assert.Contains(t, out, "503 service unavailable")

	_, err = runCLI(t, srv, "", "journal", "--clear")
	require.NoError(t, err)

	out, err = runCLI(t, srv, "", "journal")
	require.NoError(t, err)
	assert.Contains(t, out, "No failed changes")
}

func TestReadSecret(t *testing.T) {
	got, err := readSecret(strings.NewReader("hunter2\r\nignored\n"))
	require.NoError(t, err)
	assert.Equal(t, "hunter2", got)

	got, err = readSecret(strings.NewReader("no-newline"))
	require.NoError(t, err)
	assert.Equal(t, "no-newline", got)
}
