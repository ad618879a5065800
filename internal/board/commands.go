package board

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tgienger/depplan/internal/api"
	"github.com/tgienger/depplan/internal/models"
)

var (
	// ErrNameRequired is returned when a list or task name is blank.
	ErrNameRequired = errors.New("board: name is required")
	// ErrUnknownList is returned for a list that is not on the board.
	ErrUnknownList = errors.New("board: unknown list")
	// ErrUnknownTask is returned for a task that is not on the board.
	ErrUnknownTask = errors.New("board: unknown task")
	// ErrSelfDependency is returned when a task would depend on itself.
	ErrSelfDependency = errors.New("board: a task cannot depend on itself")
	// ErrClosed is returned by commands after Close.
	ErrClosed = errors.New("board: synchronizer closed")
)

// TaskFields are the user-editable fields of a task.
type TaskFields struct {
	Name        string
	Description string
	StartDate   *models.Date
	DueDate     *models.Date
}

func cleanName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrNameRequired
	}
	return name, nil
}

func (s *Synchronizer) open() error {
	if s.ctx.Err() != nil {
		return ErrClosed
	}
	return nil
}

// confirm refetches after a confirmed command. A failed refetch leaves the
// store invalidated; the command itself still succeeded.
func (s *Synchronizer) confirm(ctx context.Context) {
	_ = s.Refresh(ctx)
}

// CreateList appends a list to the project.
func (s *Synchronizer) CreateList(ctx context.Context, name string) (*models.BoardList, error) {
	name, err := cleanName(name)
	if err != nil {
		return nil, err
	}
	if err := s.open(); err != nil {
		return nil, err
	}
	l, err := s.backend.CreateList(ctx, s.store.ProjectID(), name)
	if err != nil {
		return nil, fmt.Errorf("board.CreateList: %w", err)
	}
	s.store.ApplyCreateList(*l)
	s.confirm(ctx)
	return l, nil
}

// RenameList changes a list's name, keeping its position.
func (s *Synchronizer) RenameList(ctx context.Context, id int64, name string) error {
	name, err := cleanName(name)
	if err != nil {
		return err
	}
	if err := s.open(); err != nil {
		return err
	}
	l, ok := s.store.List(id)
	if !ok {
		return ErrUnknownList
	}
	if _, err := s.backend.UpdateList(ctx, id, name, l.Position); err != nil {
		return fmt.Errorf("board.RenameList: %w", err)
	}
	s.store.ApplyUpdateList(id, name)
	s.confirm(ctx)
	return nil
}

// DeleteList removes a list and its tasks.
func (s *Synchronizer) DeleteList(ctx context.Context, id int64) error {
	if err := s.open(); err != nil {
		return err
	}
	if err := s.backend.DeleteList(ctx, id); err != nil {
		return fmt.Errorf("board.DeleteList: %w", err)
	}
	s.store.ApplyDeleteList(id)
	s.confirm(ctx)
	return nil
}

// CreateTask appends a task to a list.
func (s *Synchronizer) CreateTask(ctx context.Context, listID int64, f TaskFields) (*models.Task, error) {
	name, err := cleanName(f.Name)
	if err != nil {
		return nil, err
	}
	if err := s.open(); err != nil {
		return nil, err
	}
	if _, ok := s.store.List(listID); !ok {
		return nil, ErrUnknownList
	}
	t, err := s.backend.CreateTask(ctx, listID, api.NewTask{
		Name:        name,
		Description: strings.TrimSpace(f.Description),
		StartDate:   f.StartDate,
		DueDate:     f.DueDate,
	})
	if err != nil {
		return nil, fmt.Errorf("board.CreateTask: %w", err)
	}
	if t.ListID == 0 {
		t.ListID = listID
	}
	s.store.ApplyCreateTask(*t)
	s.confirm(ctx)
	return t, nil
}

// EditTask writes a task's editable fields. The task stays where it is.
func (s *Synchronizer) EditTask(ctx context.Context, id int64, f TaskFields) error {
	name, err := cleanName(f.Name)
	if err != nil {
		return err
	}
	if err := s.open(); err != nil {
		return err
	}
	cur, ok := s.store.Task(id)
	if !ok {
		return ErrUnknownTask
	}
	cur.Name = name
	cur.Description = strings.TrimSpace(f.Description)
	cur.StartDate = f.StartDate
	cur.DueDate = f.DueDate

	// a pending drag write for this task would otherwise overwrite the edit
	s.claim(TaskKey(id))
	if _, err := s.backend.UpdateTask(ctx, api.TaskUpdateFrom(cur)); err != nil {
		return fmt.Errorf("board.EditTask: %w", err)
	}
	s.store.ApplyUpdateTask(cur)
	s.confirm(ctx)
	return nil
}

// DeleteTask removes a task.
func (s *Synchronizer) DeleteTask(ctx context.Context, id int64) error {
	if err := s.open(); err != nil {
		return err
	}
	s.claim(TaskKey(id))
	if err := s.backend.DeleteTask(ctx, id); err != nil {
		return fmt.Errorf("board.DeleteTask: %w", err)
	}
	s.store.ApplyDeleteTask(id)
	s.confirm(ctx)
	return nil
}

// AddDependency records that taskID depends on dependsOnID. Cycles are
// rejected by the server.
func (s *Synchronizer) AddDependency(ctx context.Context, taskID, dependsOnID int64) error {
	if taskID == dependsOnID {
		return ErrSelfDependency
	}
	if err := s.open(); err != nil {
		return err
	}
	if _, err := s.backend.AddDependency(ctx, taskID, dependsOnID); err != nil {
		return fmt.Errorf("board.AddDependency: %w", err)
	}
	s.confirm(ctx)
	return nil
}

// RemoveDependency deletes the edge taskID -> dependsOnID.
func (s *Synchronizer) RemoveDependency(ctx context.Context, taskID, dependsOnID int64) error {
	if err := s.open(); err != nil {
		return err
	}
	if err := s.backend.RemoveDependency(ctx, taskID, dependsOnID); err != nil {
		return fmt.Errorf("board.RemoveDependency: %w", err)
	}
	s.confirm(ctx)
	return nil
}
