// Package fakeapi is an in-memory implementation of the planner REST
// backend for tests. It keeps just enough state to exercise the client.
package fakeapi

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"

	"github.com/tgienger/depplan/internal/models"
)

const signingSecret = "fakeapi-signing-secret-not-for-production"

// Request is one recorded call.
type Request struct {
	Method    string
	Path      string
	Query     string
	Auth      string
	RequestID string
	Body      string
}

// FailFunc decides whether a request should fail; it returns a status code
// or 0 to let the request through.
type FailFunc func(r *http.Request) int

// Server is a fake backend bound to an httptest.Server.
type Server struct {
	*httptest.Server

	mu           sync.Mutex
	nextID       int64
	users        map[string]user
	projects     map[int64]*models.Project
	lists        map[int64]*list
	tasks        map[int64]*models.Task
	deps         map[int64]models.Dependency
	collabs      map[int64][]models.Collaborator
	invitations  map[int64]*models.Invitation
	verifyTokens map[string]string
	activities   map[int64][]models.Activity
	requests     []Request
	fail         FailFunc
	tokenTTL     time.Duration
}

type user struct {
	username string
	email    string
	password string
	verified bool
}

type list struct {
	models.BoardList
	projectID int64
}

// New starts a fake backend and registers its shutdown with t.
func New(t testing.TB) *Server {
	t.Helper()
	s := &Server{
		users:        map[string]user{},
		projects:     map[int64]*models.Project{},
		lists:        map[int64]*list{},
		tasks:        map[int64]*models.Task{},
		deps:         map[int64]models.Dependency{},
		collabs:      map[int64][]models.Collaborator{},
		invitations:  map[int64]*models.Invitation{},
		verifyTokens: map[string]string{},
		activities:   map[int64][]models.Activity{},
		tokenTTL:     time.Hour,
	}
	s.Server = httptest.NewServer(s.routes())
	t.Cleanup(s.Close)
	return s
}

// BaseURL returns the API base URL clients should use.
func (s *Server) BaseURL() string {
	return s.Server.URL + "/api"
}

// SetFail installs (or clears, with nil) a failure injector.
func (s *Server) SetFail(f FailFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = f
}

// SetTokenTTL changes the lifetime of tokens issued by login.
func (s *Server) SetTokenTTL(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokenTTL = d
}

// Requests returns a copy of every recorded call.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.requests))
	copy(out, s.requests)
	return out
}

// ResetRequests forgets recorded calls.
func (s *Server) ResetRequests() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = nil
}

// CountRequests returns how many recorded calls match method and path prefix.
func (s *Server) CountRequests(method, pathPrefix string) int {
	n := 0
	for _, r := range s.Requests() {
		if r.Method == method && strings.HasPrefix(r.Path, pathPrefix) {
			n++
		}
	}
	return n
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(s.record)

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/login", s.login)
		r.Post("/auth/register", s.register)
		r.Post("/auth/verify-email", s.verifyEmail)
		r.Post("/auth/resend-verification", s.resendVerification)
		r.Group(func(r chi.Router) {
			r.Use(s.authenticate)
			r.Get("/auth/me", s.me)

			r.Get("/projects", s.listProjects)
			r.Post("/projects", s.createProject)
			r.Get("/projects/{projectID}", s.getProject)

			r.Get("/lists/project/{projectID}", s.listLists)
			r.Post("/lists", s.createList)
			r.Put("/lists/{listID}", s.updateList)
			r.Delete("/lists/{listID}", s.deleteList)

			r.Post("/tasks", s.createTask)
			r.Put("/tasks/{taskID}", s.updateTask)
			r.Delete("/tasks/{taskID}", s.deleteTask)

			r.Post("/tasks/{taskID}/dependencies", s.addDependency)
			r.Get("/tasks/{taskID}/dependencies", s.listDependencies)
			r.Get("/tasks/{taskID}/dependencies/dependents", s.listDependents)
			r.Delete("/tasks/{taskID}/dependencies/{dependsOnID}", s.removeDependency)

			r.Route("/projects/{projectID}/collaboration", func(r chi.Router) {
				r.Get("/collaborators", s.listCollaborators)
				r.Get("/invitations", s.listInvitations)
				r.Post("/invite", s.invite)
				r.Delete("/collaborators/{userID}", s.removeCollaborator)
				r.Get("/check-access", s.checkAccess)
			})
			r.Get("/invitations/my-invitations", s.myInvitations)
			r.Post("/invitations/respond", s.respondByToken)
			r.Post("/invitations/respond-by-id", s.respondByID)

			r.Route("/projects/{projectID}/activities", func(r chi.Router) {
				r.Get("/recent", s.recentActivities)
				r.Get("/date-range", s.activitiesBetween)
				r.Get("/type/{type}", s.activitiesByType)
				r.Get("/entity/{entityType}/{entityID}", s.entityActivities)
				r.Get("/user/{userID}", s.userActivities)
				r.Get("/paginated", s.pagedActivities)
				r.Get("/statistics", s.activityStatistics)
			})
		})
	})
	return r
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		r.Body = io.NopCloser(strings.NewReader(string(body)))

		s.mu.Lock()
		s.requests = append(s.requests, Request{
			Method:    r.Method,
			Path:      strings.TrimPrefix(r.URL.Path, "/api"),
			Query:     r.URL.RawQuery,
			Auth:      r.Header.Get("Authorization"),
			RequestID: r.Header.Get("X-Request-ID"),
			Body:      string(body),
		})
		fail := s.fail
		s.mu.Unlock()

		if fail != nil {
			if status := fail(r); status != 0 {
				writeJSON(w, status, map[string]string{"message": "injected failure"})
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if raw == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "missing token"})
			return
		}
		claims := &jwt.RegisteredClaims{}
		_, err := jwt.ParseWithClaims(raw, claims, func(_ *jwt.Token) (any, error) {
			return []byte(signingSecret), nil
		}, jwt.WithValidMethods([]string{"HS256"}))
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "invalid token"})
			return
		}
		next.ServeHTTP(w, r.WithContext(withUser(r.Context(), claims.Subject)))
	})
}

// ---------------------------------------------------------------------------
// Seeding helpers
// ---------------------------------------------------------------------------

// AddUser registers a verified account.
func (s *Server) AddUser(username, email, password string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[username] = user{username: username, email: email, password: password, verified: true}
}

// Token issues a valid token for username without a login round-trip.
func (s *Server) Token(username string) string {
	s.mu.Lock()
	ttl := s.tokenTTL
	s.mu.Unlock()
	return issueToken(username, ttl)
}

// AddProject seeds a project.
func (s *Server) AddProject(name string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.id()
	s.projects[id] = &models.Project{ID: id, Name: name, CreatedAt: now()}
	return id
}

// AddList seeds a list at the end of a project.
func (s *Server) AddList(projectID int64, name string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addList(projectID, name)
}

// AddTask seeds a task at the end of a list.
func (s *Server) AddTask(listID int64, name string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addTask(listID, models.Task{Name: name})
}

// Task returns the server's copy of a task.
func (s *Server) Task(id int64) (models.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return models.Task{}, false
	}
	return *t, true
}

// List returns the server's copy of a list (without tasks).
func (s *Server) List(id int64) (models.BoardList, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.lists[id]
	if !ok {
		return models.BoardList{}, false
	}
	return l.BoardList, true
}

// AddActivity appends an activity to a project's log.
func (s *Server) AddActivity(projectID int64, a models.Activity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a.ID = s.id()
	a.ProjectID = projectID
	if a.Timestamp.IsZero() {
		a.Timestamp = now()
	}
	s.activities[projectID] = append(s.activities[projectID], a)
}

// AddCollaborator seeds a collaborator and returns its user id.
func (s *Server) AddCollaborator(projectID int64, username string, role models.Role) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	userID := s.id()
	s.collabs[projectID] = append(s.collabs[projectID], models.Collaborator{
		ID:        s.id(),
		ProjectID: projectID,
		UserID:    userID,
		Username:  username,
		UserEmail: s.users[username].email,
		Role:      role,
		JoinedAt:  now(),
	})
	return userID
}

// AddInvitation seeds a pending invitation.
func (s *Server) AddInvitation(projectID int64, email string, role models.Role) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.id()
	s.invitations[id] = &models.Invitation{
		ID:           id,
		ProjectID:    projectID,
		InvitedEmail: email,
		Role:         role,
		Status:       models.InvitationPending,
		CreatedAt:    now(),
		ExpiresAt:    models.Timestamp{Time: time.Now().Add(168 * time.Hour)},
	}
	return id
}

// InvitationToken returns the token mailed with an invitation.
func (s *Server) InvitationToken(id int64) string {
	return invitationToken(id)
}

func invitationToken(id int64) string {
	return "invite-" + strconv.FormatInt(id, 10)
}

// VerificationToken returns the pending email verification token of a
// registered user, or "".
func (s *Server) VerificationToken(username string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	for tok, name := range s.verifyTokens {
		if name == username {
			return tok
		}
	}
	return ""
}

// Verified reports whether username confirmed their email.
func (s *Server) Verified(username string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.users[username].verified
}

// Invitation returns the server's copy of an invitation.
func (s *Server) Invitation(id int64) (models.Invitation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.invitations[id]
	if !ok {
		return models.Invitation{}, false
	}
	return *inv, true
}

func (s *Server) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *Server) addList(projectID int64, name string) int64 {
	id := s.id()
	pos := 0
	for _, l := range s.lists {
		if l.projectID == projectID {
			pos++
		}
	}
	s.lists[id] = &list{
		BoardList: models.BoardList{ID: id, Name: name, Position: pos, CreatedAt: now()},
		projectID: projectID,
	}
	return id
}

func (s *Server) addTask(listID int64, t models.Task) int64 {
	t.ID = s.id()
	t.ListID = listID
	t.CreatedAt = now()
	t.Position = 0
	for _, other := range s.tasks {
		if other.ListID == listID {
			t.Position++
		}
	}
	t.DependencyIDs = []int64{}
	s.tasks[t.ID] = &t
	return t.ID
}

func now() models.Timestamp {
	return models.Timestamp{Time: time.Now().Truncate(time.Second)}
}

func issueToken(username string, ttl time.Duration) string {
	claims := jwt.RegisteredClaims{
		Subject:   username,
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(signingSecret))
	if err != nil {
		panic(fmt.Sprintf("fakeapi: signing token: %v", err))
	}
	return signed
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	return id, err == nil
}

// boardLists returns a project's lists ordered by position with their
// tasks ordered by position. Caller holds s.mu.
func (s *Server) boardLists(projectID int64) []models.BoardList {
	var out []models.BoardList
	for _, l := range s.lists {
		if l.projectID != projectID {
			continue
		}
		bl := l.BoardList
		bl.Tasks = s.listTasksLocked(l.ID)
		out = append(out, bl)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Position != out[j].Position {
			return out[i].Position < out[j].Position
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (s *Server) listTasksLocked(listID int64) []models.Task {
	tasks := []models.Task{}
	for _, t := range s.tasks {
		if t.ListID != listID {
			continue
		}
		cp := *t
		cp.DependencyIDs = s.dependencyIDs(t.ID)
		tasks = append(tasks, cp)
	}
	sort.Slice(tasks, func(i, j int) bool {
		if tasks[i].Position != tasks[j].Position {
			return tasks[i].Position < tasks[j].Position
		}
		return tasks[i].ID < tasks[j].ID
	})
	return tasks
}

func (s *Server) dependencyIDs(taskID int64) []int64 {
	ids := []int64{}
	for _, d := range s.deps {
		if d.TaskID == taskID {
			ids = append(ids, d.DependsOnID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
