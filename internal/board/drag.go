package board

import "github.com/tgienger/depplan/internal/models"

// DragEnd is a finished drag gesture: Active was dropped onto Over.
type DragEnd struct {
	Active Key
	Over   Key
}

// ListWrite is the persisted state of one list after a reorder.
type ListWrite struct {
	ID       int64
	Name     string
	Position int
}

// Plan is the outcome of a drag: the board as it should look, plus every
// entity whose persisted state changed.
type Plan struct {
	Lists      []models.BoardList
	ListWrites []ListWrite
	TaskWrites []models.Task
}

// PlanDrag computes the result of ev on lists without modifying them. The
// second result is false when the drag is a no-op: same key, an
// unresolvable key, or a list dropped onto a task.
func PlanDrag(lists []models.BoardList, ev DragEnd) (Plan, bool) {
	if ev.Active == ev.Over {
		return Plan{}, false
	}
	switch {
	case ev.Active.IsList() && ev.Over.IsList():
		return planListReorder(lists, ev.Active.ID, ev.Over.ID)
	case ev.Active.IsTask():
		return planTaskMove(lists, ev.Active.ID, ev.Over)
	}
	return Plan{}, false
}

func planListReorder(lists []models.BoardList, activeID, overID int64) (Plan, bool) {
	from, to := listIndex(lists, activeID), listIndex(lists, overID)
	if from < 0 || to < 0 {
		return Plan{}, false
	}

	next := moveItem(cloneLists(lists), from, to)
	plan := Plan{Lists: next, ListWrites: make([]ListWrite, len(next))}
	for i := range next {
		next[i].Position = i
		plan.ListWrites[i] = ListWrite{ID: next[i].ID, Name: next[i].Name, Position: i}
	}
	return plan, true
}

func planTaskMove(lists []models.BoardList, taskID int64, over Key) (Plan, bool) {
	src, from := locateTask(lists, taskID)
	if src < 0 {
		return Plan{}, false
	}

	var dst, at int
	switch over.Kind {
	case KindTask:
		dst, at = locateTask(lists, over.ID)
	case KindList:
		dst = listIndex(lists, over.ID)
		if dst >= 0 {
			at = len(lists[dst].Tasks)
		}
	default:
		return Plan{}, false
	}
	if dst < 0 {
		return Plan{}, false
	}

	next := cloneLists(lists)
	if src == dst {
		tasks := next[src].Tasks
		next[src].Tasks = moveItem(tasks, from, min(at, len(tasks)-1))
		renumber(next[src].Tasks)
		return Plan{Lists: next, TaskWrites: cloneTasks(next[src].Tasks)}, true
	}

	moved := next[src].Tasks[from]
	moved.ListID = next[dst].ID
	next[src].Tasks = append(next[src].Tasks[:from], next[src].Tasks[from+1:]...)
	next[dst].Tasks = insertItem(next[dst].Tasks, min(at, len(next[dst].Tasks)), moved)
	renumber(next[src].Tasks)
	renumber(next[dst].Tasks)

	writes := append(cloneTasks(next[src].Tasks), cloneTasks(next[dst].Tasks)...)
	return Plan{Lists: next, TaskWrites: writes}, true
}

func listIndex(lists []models.BoardList, id int64) int {
	for i := range lists {
		if lists[i].ID == id {
			return i
		}
	}
	return -1
}

// locateTask returns the list index and in-list index of a task, or -1s.
func locateTask(lists []models.BoardList, id int64) (int, int) {
	for li := range lists {
		for ti := range lists[li].Tasks {
			if lists[li].Tasks[ti].ID == id {
				return li, ti
			}
		}
	}
	return -1, -1
}

func renumber(tasks []models.Task) {
	for i := range tasks {
		tasks[i].Position = i
	}
}

// moveItem relocates s[from] to index to, shifting the elements between.
func moveItem[T any](s []T, from, to int) []T {
	if from == to {
		return s
	}
	item := s[from]
	s = append(s[:from], s[from+1:]...)
	return insertItem(s, to, item)
}

func insertItem[T any](s []T, at int, item T) []T {
	var zero T
	s = append(s, zero)
	copy(s[at+1:], s[at:])
	s[at] = item
	return s
}

func cloneLists(lists []models.BoardList) []models.BoardList {
	out := make([]models.BoardList, len(lists))
	for i, l := range lists {
		out[i] = l
		out[i].Tasks = cloneTasks(l.Tasks)
	}
	return out
}

func cloneTasks(tasks []models.Task) []models.Task {
	out := make([]models.Task, len(tasks))
	for i, t := range tasks {
		out[i] = cloneTask(t)
	}
	return out
}

func cloneTask(t models.Task) models.Task {
	t.DependencyIDs = append([]int64{}, t.DependencyIDs...)
	if t.StartDate != nil {
		d := *t.StartDate
		t.StartDate = &d
	}
	if t.DueDate != nil {
		d := *t.DueDate
		t.DueDate = &d
	}
	return t
}
