package board

import (
	"sort"
	"sync"

	"github.com/tgienger/depplan/internal/models"
)

// Store owns the cached board of one project. Every mutation goes through
// one of its Apply methods or Replace; readers get deep copies.
type Store struct {
	projectID int64

	mu      sync.RWMutex
	lists   []models.BoardList
	loaded  bool
	stale   bool
	version uint64
	subs    map[int]chan struct{}
	nextSub int
}

// NewStore returns an empty, not yet loaded store for projectID.
func NewStore(projectID int64) *Store {
	return &Store{projectID: projectID, subs: map[int]chan struct{}{}}
}

// ProjectID returns the project the store caches.
func (s *Store) ProjectID() int64 { return s.projectID }

// Lists returns a deep copy of the board in display order.
func (s *Store) Lists() []models.BoardList {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneLists(s.lists)
}

// Tasks returns every task of the board, list by list.
func (s *Store) Tasks() []models.Task {
	return models.FlattenTasks(s.Lists())
}

// Task looks up one task.
func (s *Store) Task(id int64) (models.Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	li, ti := locateTask(s.lists, id)
	if li < 0 {
		return models.Task{}, false
	}
	return cloneTask(s.lists[li].Tasks[ti]), true
}

// List looks up one list.
func (s *Store) List(id int64) (models.BoardList, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := listIndex(s.lists, id)
	if i < 0 {
		return models.BoardList{}, false
	}
	return cloneLists(s.lists[i : i+1])[0], true
}

// Loaded reports whether the store has received a server snapshot.
func (s *Store) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

// Stale reports whether the cache was invalidated since the last Replace.
func (s *Store) Stale() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stale
}

// Version increases on every change.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Subscribe returns a channel that receives a value after changes, and a
// func to stop the subscription. Notifications coalesce: a slow reader sees
// one pending signal, not one per change.
func (s *Store) Subscribe() (<-chan struct{}, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	ch := make(chan struct{}, 1)
	s.subs[id] = ch
	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

// changed must be called with s.mu held for writing.
func (s *Store) changed() {
	s.version++
	for _, ch := range s.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Replace installs a fresh server snapshot. Lists and tasks are ordered
// by position, then id.
func (s *Store) Replace(lists []models.BoardList) {
	next := cloneLists(lists)
	sort.SliceStable(next, func(i, j int) bool {
		if next[i].Position != next[j].Position {
			return next[i].Position < next[j].Position
		}
		return next[i].ID < next[j].ID
	})
	for i := range next {
		tasks := next[i].Tasks
		sort.SliceStable(tasks, func(a, b int) bool {
			if tasks[a].Position != tasks[b].Position {
				return tasks[a].Position < tasks[b].Position
			}
			return tasks[a].ID < tasks[b].ID
		})
		for j := range tasks {
			if tasks[j].ListID == 0 {
				tasks[j].ListID = next[i].ID
			}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.lists = next
	s.loaded = true
	s.stale = false
	s.changed()
}

// Invalidate marks the cache as needing a refetch.
func (s *Store) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stale = true
	s.changed()
}

// ApplyDrag plans ev against the current board and, unless it is a no-op,
// installs the result atomically.
func (s *Store) ApplyDrag(ev DragEnd) (Plan, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	plan, ok := PlanDrag(s.lists, ev)
	if !ok {
		return Plan{}, false
	}
	s.lists = plan.Lists
	plan.Lists = cloneLists(plan.Lists)
	s.changed()
	return plan, true
}

// ApplyListReorder moves list activeID to the index of list overID.
func (s *Store) ApplyListReorder(activeID, overID int64) (Plan, bool) {
	return s.ApplyDrag(DragEnd{Active: ListKey(activeID), Over: ListKey(overID)})
}

// ApplyTaskMove moves a task onto another task or to the end of a list.
func (s *Store) ApplyTaskMove(taskID int64, over Key) (Plan, bool) {
	return s.ApplyDrag(DragEnd{Active: TaskKey(taskID), Over: over})
}

// ApplyCreateList appends a list confirmed by the server.
func (s *Store) ApplyCreateList(l models.BoardList) {
	l = cloneLists([]models.BoardList{l})[0]
	s.mu.Lock()
	defer s.mu.Unlock()
	if listIndex(s.lists, l.ID) >= 0 {
		return
	}
	s.lists = append(s.lists, l)
	s.changed()
}

// ApplyUpdateList records a list's new name. Position changes go through
// ApplyListReorder.
func (s *Store) ApplyUpdateList(id int64, name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := listIndex(s.lists, id)
	if i < 0 {
		return false
	}
	s.lists[i].Name = name
	s.changed()
	return true
}

// ApplyDeleteList drops a list and its tasks, then closes the position gap.
func (s *Store) ApplyDeleteList(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := listIndex(s.lists, id)
	if i < 0 {
		return false
	}
	s.lists = append(s.lists[:i], s.lists[i+1:]...)
	for j := range s.lists {
		s.lists[j].Position = j
	}
	s.changed()
	return true
}

// ApplyCreateTask appends a task confirmed by the server to its list.
func (s *Store) ApplyCreateTask(t models.Task) bool {
	t = cloneTask(t)
	if t.DependencyIDs == nil {
		t.DependencyIDs = []int64{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i := listIndex(s.lists, t.ListID)
	if i < 0 {
		return false
	}
	if li, _ := locateTask(s.lists, t.ID); li >= 0 {
		return false
	}
	t.Position = len(s.lists[i].Tasks)
	s.lists[i].Tasks = append(s.lists[i].Tasks, t)
	s.changed()
	return true
}

// ApplyUpdateTask replaces a task's editable fields in place. Its list and
// position are left alone; moves go through ApplyTaskMove.
func (s *Store) ApplyUpdateTask(t models.Task) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	li, ti := locateTask(s.lists, t.ID)
	if li < 0 {
		return false
	}
	cur := &s.lists[li].Tasks[ti]
	next := cloneTask(t)
	cur.Name = next.Name
	cur.Description = next.Description
	cur.StartDate = next.StartDate
	cur.DueDate = next.DueDate
	if next.DependencyIDs != nil {
		cur.DependencyIDs = next.DependencyIDs
	}
	s.changed()
	return true
}

// ApplyDeleteTask drops a task and closes the gap in its list.
func (s *Store) ApplyDeleteTask(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	li, ti := locateTask(s.lists, id)
	if li < 0 {
		return false
	}
	tasks := s.lists[li].Tasks
	s.lists[li].Tasks = append(tasks[:ti], tasks[ti+1:]...)
	renumber(s.lists[li].Tasks)
	for i := range s.lists {
		for j := range s.lists[i].Tasks {
			deps := s.lists[i].Tasks[j].DependencyIDs
			kept := deps[:0]
			for _, d := range deps {
				if d != id {
					kept = append(kept, d)
				}
			}
			s.lists[i].Tasks[j].DependencyIDs = kept
		}
	}
	s.changed()
	return true
}
