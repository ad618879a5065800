package fakeapi

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tgienger/depplan/internal/models"
)

type ctxKey struct{}

func withUser(ctx context.Context, username string) context.Context {
	return context.WithValue(ctx, ctxKey{}, username)
}

func username(r *http.Request) string {
	u, _ := r.Context().Value(ctxKey{}).(string)
	return u
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "malformed body"})
		return false
	}
	return true
}

func writeText(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(msg))
}

func notFound(w http.ResponseWriter, what string) {
	writeJSON(w, http.StatusNotFound, map[string]string{"message": what + " not found"})
}

// ---------------------------------------------------------------------------
// Auth
// ---------------------------------------------------------------------------

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if !decode(w, r, &in) {
		return
	}
	s.mu.Lock()
	u, ok := s.users[in.Username]
	ttl := s.tokenTTL
	s.mu.Unlock()
	if !ok || u.password != in.Password {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Bad credentials"})
		return
	}
	writeJSON(w, http.StatusOK, models.AuthResponse{
		Token:    issueToken(u.username, ttl),
		Type:     "Bearer",
		Username: u.username,
		Email:    u.email,
	})
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !decode(w, r, &in) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.users[in.Username]; taken {
		writeText(w, http.StatusBadRequest, "Error: Username is already taken!")
		return
	}
	for _, u := range s.users {
		if strings.EqualFold(u.email, in.Email) {
			writeText(w, http.StatusBadRequest, "Error: Email is already in use!")
			return
		}
	}
	s.users[in.Username] = user{username: in.Username, email: in.Email, password: in.Password}
	s.issueVerificationLocked(in.Username)
	writeText(w, http.StatusOK, "User registered successfully! Please check your email to verify your account.")
}

// issueVerificationLocked replaces username's pending verification token.
// Caller holds s.mu.
func (s *Server) issueVerificationLocked(username string) string {
	for tok, name := range s.verifyTokens {
		if name == username {
			delete(s.verifyTokens, tok)
		}
	}
	tok := "verify-" + strconv.FormatInt(s.id(), 10)
	s.verifyTokens[tok] = username
	return tok
}

func (s *Server) verifyEmail(w http.ResponseWriter, r *http.Request) {
	tok := r.URL.Query().Get("token")
	s.mu.Lock()
	defer s.mu.Unlock()
	name, ok := s.verifyTokens[tok]
	if !ok {
		writeText(w, http.StatusBadRequest, "Invalid or expired verification token")
		return
	}
	delete(s.verifyTokens, tok)
	u := s.users[name]
	u.verified = true
	s.users[name] = u
	writeText(w, http.StatusOK, "Email verified successfully! You can now log in.")
}

func (s *Server) resendVerification(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email string `json:"email"`
	}
	if !decode(w, r, &in) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for name, u := range s.users {
		if strings.EqualFold(u.email, in.Email) {
			if u.verified {
				writeText(w, http.StatusBadRequest, "Email is already verified")
				return
			}
			s.issueVerificationLocked(name)
			writeText(w, http.StatusOK, "Verification email sent")
			return
		}
	}
	writeText(w, http.StatusBadRequest, "No account with that email")
}

func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	u, ok := s.users[username(r)]
	s.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusOK, models.User{Username: username(r)})
		return
	}
	writeJSON(w, http.StatusOK, models.User{Username: u.username, Email: u.email})
}

// ---------------------------------------------------------------------------
// Projects, lists and tasks
// ---------------------------------------------------------------------------

func (s *Server) listProjects(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Project{}
	for _, p := range s.projects {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) createProject(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if !decode(w, r, &in) {
		return
	}
	if strings.TrimSpace(in.Name) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "name is required"})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.id()
	p := &models.Project{ID: id, Name: in.Name, Description: in.Description, CreatedAt: now()}
	s.projects[id] = p
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) getProject(w http.ResponseWriter, r *http.Request) {
	id, _ := pathID(r, "projectID")
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[id]
	if !ok {
		notFound(w, "project")
		return
	}
	out := *p
	out.Lists = s.boardLists(id)
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) listLists(w http.ResponseWriter, r *http.Request) {
	id, _ := pathID(r, "projectID")
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.projects[id]; !ok {
		notFound(w, "project")
		return
	}
	lists := s.boardLists(id)
	if lists == nil {
		lists = []models.BoardList{}
	}
	writeJSON(w, http.StatusOK, lists)
}

func (s *Server) createList(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Name    string `json:"name"`
		Project struct {
			ID int64 `json:"id"`
		} `json:"project"`
	}
	if !decode(w, r, &in) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.projects[in.Project.ID]; !ok {
		notFound(w, "project")
		return
	}
	id := s.addList(in.Project.ID, in.Name)
	out := s.lists[id].BoardList
	out.Tasks = []models.Task{}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) updateList(w http.ResponseWriter, r *http.Request) {
	id, _ := pathID(r, "listID")
	var in struct {
		Name     string `json:"name"`
		Position int    `json:"position"`
	}
	if !decode(w, r, &in) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.lists[id]
	if !ok {
		notFound(w, "list")
		return
	}
	l.Name = in.Name
	l.Position = in.Position
	out := l.BoardList
	out.Tasks = s.listTasksLocked(id)
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) deleteList(w http.ResponseWriter, r *http.Request) {
	id, _ := pathID(r, "listID")
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.lists[id]; !ok {
		notFound(w, "list")
		return
	}
	delete(s.lists, id)
	for tid, t := range s.tasks {
		if t.ListID == id {
			s.deleteTaskLocked(tid)
		}
	}
	w.WriteHeader(http.StatusOK)
}

type taskBody struct {
	Name        string       `json:"name"`
	Description string       `json:"description"`
	StartDate   *models.Date `json:"startDate"`
	DueDate     *models.Date `json:"dueDate"`
	ListID      int64        `json:"listId"`
	Position    int          `json:"position"`
	List        *struct {
		ID int64 `json:"id"`
	} `json:"list"`
}

func (s *Server) createTask(w http.ResponseWriter, r *http.Request) {
	var in taskBody
	if !decode(w, r, &in) {
		return
	}
	if in.List == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "list is required"})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.lists[in.List.ID]; !ok {
		notFound(w, "list")
		return
	}
	id := s.addTask(in.List.ID, models.Task{
		Name:        in.Name,
		Description: in.Description,
		StartDate:   in.StartDate,
		DueDate:     in.DueDate,
	})
	writeJSON(w, http.StatusOK, s.tasks[id])
}

func (s *Server) updateTask(w http.ResponseWriter, r *http.Request) {
	id, _ := pathID(r, "taskID")
	var in taskBody
	if !decode(w, r, &in) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		notFound(w, "task")
		return
	}
	if in.ListID != 0 {
		if _, ok := s.lists[in.ListID]; !ok {
			notFound(w, "list")
			return
		}
		t.ListID = in.ListID
	}
	t.Name = in.Name
	t.Description = in.Description
	t.StartDate = in.StartDate
	t.DueDate = in.DueDate
	t.Position = in.Position
	out := *t
	out.DependencyIDs = s.dependencyIDs(id)
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) deleteTask(w http.ResponseWriter, r *http.Request) {
	id, _ := pathID(r, "taskID")
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[id]; !ok {
		notFound(w, "task")
		return
	}
	s.deleteTaskLocked(id)
	w.WriteHeader(http.StatusOK)
}

func (s *Server) deleteTaskLocked(id int64) {
	delete(s.tasks, id)
	for did, d := range s.deps {
		if d.TaskID == id || d.DependsOnID == id {
			delete(s.deps, did)
		}
	}
}

// ---------------------------------------------------------------------------
// Dependencies
// ---------------------------------------------------------------------------

func (s *Server) addDependency(w http.ResponseWriter, r *http.Request) {
	taskID, _ := pathID(r, "taskID")
	var in struct {
		DependsOnID int64 `json:"dependsOnId"`
	}
	if !decode(w, r, &in) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[taskID]; !ok {
		notFound(w, "task")
		return
	}
	if _, ok := s.tasks[in.DependsOnID]; !ok {
		notFound(w, "task")
		return
	}
	if taskID == in.DependsOnID {
		writeText(w, http.StatusBadRequest, "A task cannot depend on itself")
		return
	}
	for _, d := range s.deps {
		if d.TaskID == taskID && d.DependsOnID == in.DependsOnID {
			writeText(w, http.StatusBadRequest, "Dependency already exists")
			return
		}
	}
	if s.reachable(in.DependsOnID, taskID) {
		writeText(w, http.StatusBadRequest, "Adding this dependency would create a circular dependency")
		return
	}
	dep := models.Dependency{ID: s.id(), TaskID: taskID, DependsOnID: in.DependsOnID}
	s.deps[dep.ID] = dep
	writeJSON(w, http.StatusOK, dep)
}

// reachable reports whether to can be reached from from by following
// depends-on edges.
func (s *Server) reachable(from, to int64) bool {
	seen := map[int64]bool{}
	var visit func(id int64) bool
	visit = func(id int64) bool {
		if id == to {
			return true
		}
		if seen[id] {
			return false
		}
		seen[id] = true
		for _, d := range s.deps {
			if d.TaskID == id && visit(d.DependsOnID) {
				return true
			}
		}
		return false
	}
	return visit(from)
}

func (s *Server) removeDependency(w http.ResponseWriter, r *http.Request) {
	taskID, _ := pathID(r, "taskID")
	dependsOn, _ := pathID(r, "dependsOnID")
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, d := range s.deps {
		if d.TaskID == taskID && d.DependsOnID == dependsOn {
			delete(s.deps, id)
			w.WriteHeader(http.StatusOK)
			return
		}
	}
	notFound(w, "dependency")
}

func (s *Server) listDependencies(w http.ResponseWriter, r *http.Request) {
	taskID, _ := pathID(r, "taskID")
	s.writeDeps(w, func(d models.Dependency) bool { return d.TaskID == taskID })
}

func (s *Server) listDependents(w http.ResponseWriter, r *http.Request) {
	taskID, _ := pathID(r, "taskID")
	s.writeDeps(w, func(d models.Dependency) bool { return d.DependsOnID == taskID })
}

func (s *Server) writeDeps(w http.ResponseWriter, keep func(models.Dependency) bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Dependency{}
	for _, d := range s.deps {
		if keep(d) {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	writeJSON(w, http.StatusOK, out)
}

// ---------------------------------------------------------------------------
// Collaboration
// ---------------------------------------------------------------------------

func (s *Server) listCollaborators(w http.ResponseWriter, r *http.Request) {
	id, _ := pathID(r, "projectID")
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]models.Collaborator{}, s.collabs[id]...)
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) listInvitations(w http.ResponseWriter, r *http.Request) {
	id, _ := pathID(r, "projectID")
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Invitation{}
	for _, inv := range s.invitations {
		if inv.ProjectID == id {
			out = append(out, *inv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) invite(w http.ResponseWriter, r *http.Request) {
	projectID, _ := pathID(r, "projectID")
	var in struct {
		Email           string      `json:"email"`
		Role            models.Role `json:"role"`
		ExpirationHours int         `json:"expirationHours"`
	}
	if !decode(w, r, &in) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[projectID]
	if !ok {
		notFound(w, "project")
		return
	}
	created := now()
	inv := &models.Invitation{
		ID:                s.id(),
		ProjectID:         projectID,
		ProjectName:       p.Name,
		InvitedByUsername: username(r),
		InvitedEmail:      in.Email,
		Role:              in.Role,
		Status:            models.InvitationPending,
		CreatedAt:         created,
		ExpiresAt:         models.Timestamp{Time: created.Add(hours(in.ExpirationHours))},
	}
	s.invitations[inv.ID] = inv
	writeJSON(w, http.StatusOK, inv)
}

func (s *Server) removeCollaborator(w http.ResponseWriter, r *http.Request) {
	projectID, _ := pathID(r, "projectID")
	userID, _ := pathID(r, "userID")
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.collabs[projectID][:0]
	found := false
	for _, c := range s.collabs[projectID] {
		if c.UserID == userID {
			found = true
			continue
		}
		kept = append(kept, c)
	}
	if !found {
		notFound(w, "collaborator")
		return
	}
	s.collabs[projectID] = kept
	w.WriteHeader(http.StatusOK)
}

func (s *Server) checkAccess(w http.ResponseWriter, r *http.Request) {
	id, _ := pathID(r, "projectID")
	s.mu.Lock()
	_, ok := s.projects[id]
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, ok)
}

func (s *Server) myInvitations(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	email := s.users[username(r)].email
	out := []models.Invitation{}
	for _, inv := range s.invitations {
		if strings.EqualFold(inv.InvitedEmail, email) && inv.Status == models.InvitationPending {
			out = append(out, *inv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) respondByID(w http.ResponseWriter, r *http.Request) {
	var in struct {
		ID       int64  `json:"id"`
		Response string `json:"response"`
	}
	if !decode(w, r, &in) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.invitations[in.ID]
	if !ok {
		notFound(w, "invitation")
		return
	}
	s.answerLocked(w, r, inv, in.Response)
}

func (s *Server) respondByToken(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Token    string `json:"token"`
		Response string `json:"response"`
	}
	if !decode(w, r, &in) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, inv := range s.invitations {
		if invitationToken(id) == in.Token {
			s.answerLocked(w, r, inv, in.Response)
			return
		}
	}
	notFound(w, "invitation")
}

// answerLocked applies an accept or decline. Caller holds s.mu.
func (s *Server) answerLocked(w http.ResponseWriter, r *http.Request, inv *models.Invitation, response string) {
	if inv.Status != models.InvitationPending {
		writeText(w, http.StatusBadRequest, "Invitation has already been responded to")
		return
	}
	responded := now()
	switch response {
	case "accept":
		inv.Status = models.InvitationAccepted
		u := s.users[username(r)]
		s.collabs[inv.ProjectID] = append(s.collabs[inv.ProjectID], models.Collaborator{
			ID:        s.id(),
			ProjectID: inv.ProjectID,
			UserID:    s.id(),
			Username:  u.username,
			UserEmail: u.email,
			Role:      inv.Role,
			JoinedAt:  responded,
		})
	case "decline":
		inv.Status = models.InvitationDeclined
	default:
		writeText(w, http.StatusBadRequest, "Invalid response")
		return
	}
	inv.RespondedAt = &responded
	writeText(w, http.StatusOK, "Invitation "+response+"ed")
}

// ---------------------------------------------------------------------------
// Activities
// ---------------------------------------------------------------------------

// newestFirst returns a copy of a project's log, newest entry first.
// Caller holds s.mu.
func (s *Server) newestFirst(projectID int64) []models.Activity {
	src := s.activities[projectID]
	out := make([]models.Activity, 0, len(src))
	for i := len(src) - 1; i >= 0; i-- {
		out = append(out, src[i])
	}
	return out
}

// filtered writes the project's log, newest first, keeping entries keep
// accepts
func (s *Server) filtered(w http.ResponseWriter, r *http.Request, keep func(models.Activity) bool) {
	id, _ := pathID(r, "projectID")
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Activity{}
	for _, a := range s.newestFirst(id) {
		if keep(a) {
			out = append(out, a)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) activitiesBetween(w http.ResponseWriter, r *http.Request) {
	const layout = "2006-01-02T15:04:05"
	start, err1 := time.ParseInLocation(layout, r.URL.Query().Get("startDate"), time.Local)
	end, err2 := time.ParseInLocation(layout, r.URL.Query().Get("endDate"), time.Local)
	if err1 != nil || err2 != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid date range"})
		return
	}
	s.filtered(w, r, func(a models.Activity) bool {
		return !a.Timestamp.Before(start) && !a.Timestamp.After(end)
	})
}

func (s *Server) activitiesByType(w http.ResponseWriter, r *http.Request) {
	typ := chi.URLParam(r, "type")
	s.filtered(w, r, func(a models.Activity) bool {
		return strings.EqualFold(string(a.ActivityType), typ)
	})
}

func (s *Server) entityActivities(w http.ResponseWriter, r *http.Request) {
	kind := chi.URLParam(r, "entityType")
	entityID, _ := pathID(r, "entityID")
	s.filtered(w, r, func(a models.Activity) bool {
		return strings.EqualFold(a.EntityType, kind) && a.EntityID == entityID
	})
}

// userActivities resolves the user id through the project's collaborators
func (s *Server) userActivities(w http.ResponseWriter, r *http.Request) {
	projectID, _ := pathID(r, "projectID")
	userID, _ := pathID(r, "userID")
	s.mu.Lock()
	name := ""
	for _, c := range s.collabs[projectID] {
		if c.UserID == userID {
			name = c.Username
		}
	}
	s.mu.Unlock()
	s.filtered(w, r, func(a models.Activity) bool {
		return name != "" && a.Username == name
	})
}

func (s *Server) recentActivities(w http.ResponseWriter, r *http.Request) {
	id, _ := pathID(r, "projectID")
	limit := queryInt(r, "limit", 10)
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.newestFirst(id)
	if len(out) > limit {
		out = out[:limit]
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) pagedActivities(w http.ResponseWriter, r *http.Request) {
	id, _ := pathID(r, "projectID")
	page := queryInt(r, "page", 0)
	size := queryInt(r, "size", 20)
	if size < 1 {
		size = 20
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	all := s.newestFirst(id)
	start := min(page*size, len(all))
	end := min(start+size, len(all))
	writeJSON(w, http.StatusOK, models.ActivityPage{
		Content:       all[start:end],
		TotalElements: int64(len(all)),
		TotalPages:    (len(all) + size - 1) / size,
		Number:        page,
		Size:          size,
	})
}

func (s *Server) activityStatistics(w http.ResponseWriter, r *http.Request) {
	id, _ := pathID(r, "projectID")
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := map[models.ActivityType]int64{}
	var order []models.ActivityType
	for _, a := range s.activities[id] {
		if _, seen := counts[a.ActivityType]; !seen {
			order = append(order, a.ActivityType)
		}
		counts[a.ActivityType]++
	}
	rows := [][]any{}
	for _, typ := range order {
		rows = append(rows, []any{typ, counts[typ]})
	}
	writeJSON(w, http.StatusOK, rows)
}

func queryInt(r *http.Request, name string, fallback int) int {
	n, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil {
		return fallback
	}
	return n
}

func hours(n int) time.Duration {
	if n <= 0 {
		n = 168
	}
	return time.Duration(n) * time.Hour
}
