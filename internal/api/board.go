package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/tgienger/depplan/internal/models"
)

type ref struct {
	ID int64 `json:"id"`
}

// NewProject is the payload of CreateProject.
type NewProject struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// NewTask is the payload of CreateTask.
type NewTask struct {
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	StartDate   *models.Date `json:"startDate,omitempty"`
	DueDate     *models.Date `json:"dueDate,omitempty"`
}

// TaskUpdate carries a task's full editable fields.
type TaskUpdate struct {
	ID          int64        `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	StartDate   *models.Date `json:"startDate,omitempty"`
	DueDate     *models.Date `json:"dueDate,omitempty"`
	ListID      int64        `json:"listId"`
	Position    int          `json:"position"`
}

// TaskUpdateFrom builds the update payload for t as it currently stands.
func TaskUpdateFrom(t models.Task) TaskUpdate {
	return TaskUpdate{
		ID:          t.ID,
		Name:        t.Name,
		Description: t.Description,
		StartDate:   t.StartDate,
		DueDate:     t.DueDate,
		ListID:      t.ListID,
		Position:    t.Position,
	}
}

// ListProjects returns every project visible to the caller.
func (c *Client) ListProjects(ctx context.Context) ([]models.Project, error) {
	var projects []models.Project
	if err := c.do(ctx, http.MethodGet, "/projects", nil, nil, &projects); err != nil {
		return nil, fmt.Errorf("api.ListProjects: %w", err)
	}
	return projects, nil
}

// GetProject fetches one project.
func (c *Client) GetProject(ctx context.Context, id int64) (*models.Project, error) {
	var p models.Project
	if err := c.do(ctx, http.MethodGet, idPath("/projects/%d", id), nil, nil, &p); err != nil {
		return nil, fmt.Errorf("api.GetProject: %w", err)
	}
	return &p, nil
}

// CreateProject creates a project owned by the caller.
func (c *Client) CreateProject(ctx context.Context, p NewProject) (*models.Project, error) {
	var created models.Project
	if err := c.do(ctx, http.MethodPost, "/projects", nil, p, &created); err != nil {
		return nil, fmt.Errorf("api.CreateProject: %w", err)
	}
	return &created, nil
}

// ListLists returns a project's lists with their tasks.
func (c *Client) ListLists(ctx context.Context, projectID int64) ([]models.BoardList, error) {
	var lists []models.BoardList
	if err := c.do(ctx, http.MethodGet, idPath("/lists/project/%d", projectID), nil, nil, &lists); err != nil {
		return nil, fmt.Errorf("api.ListLists: %w", err)
	}
	return lists, nil
}

// CreateList appends a list to a project.
func (c *Client) CreateList(ctx context.Context, projectID int64, name string) (*models.BoardList, error) {
	body := struct {
		Name    string `json:"name"`
		Project ref    `json:"project"`
	}{Name: name, Project: ref{ID: projectID}}

	var created models.BoardList
	if err := c.do(ctx, http.MethodPost, "/lists", nil, body, &created); err != nil {
		return nil, fmt.Errorf("api.CreateList: %w", err)
	}
	return &created, nil
}

// UpdateList renames and/or repositions a list.
func (c *Client) UpdateList(ctx context.Context, id int64, name string, position int) (*models.BoardList, error) {
	body := struct {
		ID       int64  `json:"id"`
		Name     string `json:"name"`
		Position int    `json:"position"`
	}{ID: id, Name: name, Position: position}

	var updated models.BoardList
	if err := c.do(ctx, http.MethodPut, idPath("/lists/%d", id), nil, body, &updated); err != nil {
		return nil, fmt.Errorf("api.UpdateList: %w", err)
	}
	return &updated, nil
}

// DeleteList removes a list and its tasks.
func (c *Client) DeleteList(ctx context.Context, id int64) error {
	if err := c.do(ctx, http.MethodDelete, idPath("/lists/%d", id), nil, nil, nil); err != nil {
		return fmt.Errorf("api.DeleteList: %w", err)
	}
	return nil
}

// CreateTask appends a task to a list.
func (c *Client) CreateTask(ctx context.Context, listID int64, t NewTask) (*models.Task, error) {
	body := struct {
		NewTask
		List ref `json:"list"`
	}{NewTask: t, List: ref{ID: listID}}

	var created models.Task
	if err := c.do(ctx, http.MethodPost, "/tasks", nil, body, &created); err != nil {
		return nil, fmt.Errorf("api.CreateTask: %w", err)
	}
	return &created, nil
}

// UpdateTask writes a task's editable fields, including position and list.
func (c *Client) UpdateTask(ctx context.Context, u TaskUpdate) (*models.Task, error) {
	var updated models.Task
	if err := c.do(ctx, http.MethodPut, idPath("/tasks/%d", u.ID), nil, u, &updated); err != nil {
		return nil, fmt.Errorf("api.UpdateTask: %w", err)
	}
	return &updated, nil
}

// DeleteTask removes a task.
func (c *Client) DeleteTask(ctx context.Context, id int64) error {
	if err := c.do(ctx, http.MethodDelete, idPath("/tasks/%d", id), nil, nil, nil); err != nil {
		return fmt.Errorf("api.DeleteTask: %w", err)
	}
	return nil
}

// AddDependency records that taskID depends on dependsOnID.
func (c *Client) AddDependency(ctx context.Context, taskID, dependsOnID int64) (*models.Dependency, error) {
	body := map[string]int64{"dependsOnId": dependsOnID}
	var dep models.Dependency
	if err := c.do(ctx, http.MethodPost, idPath("/tasks/%d/dependencies", taskID), nil, body, &dep); err != nil {
		return nil, fmt.Errorf("api.AddDependency: %w", err)
	}
	return &dep, nil
}

// RemoveDependency deletes the edge taskID -> dependsOnID.
func (c *Client) RemoveDependency(ctx context.Context, taskID, dependsOnID int64) error {
	if err := c.do(ctx, http.MethodDelete, idPath("/tasks/%d/dependencies/%d", taskID, dependsOnID), nil, nil, nil); err != nil {
		return fmt.Errorf("api.RemoveDependency: %w", err)
	}
	return nil
}

// ListDependencies returns the prerequisites of a task.
func (c *Client) ListDependencies(ctx context.Context, taskID int64) ([]models.Dependency, error) {
	var deps []models.Dependency
	if err := c.do(ctx, http.MethodGet, idPath("/tasks/%d/dependencies", taskID), nil, nil, &deps); err != nil {
		return nil, fmt.Errorf("api.ListDependencies: %w", err)
	}
	return deps, nil
}

// ListDependents returns the tasks blocked by a task.
func (c *Client) ListDependents(ctx context.Context, taskID int64) ([]models.Dependency, error) {
	var deps []models.Dependency
	if err := c.do(ctx, http.MethodGet, idPath("/tasks/%d/dependencies/dependents", taskID), nil, nil, &deps); err != nil {
		return nil, fmt.Errorf("api.ListDependents: %w", err)
	}
	return deps, nil
}
