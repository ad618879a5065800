package board

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tgienger/depplan/internal/models"
)

func task(id, listID int64, pos int) models.Task {
	return models.Task{ID: id, Name: "t", ListID: listID, Position: pos, DependencyIDs: []int64{}}
}

// sampleBoard: L1=[t1,t2] L2=[t3] L3=[]
func sampleBoard() []models.BoardList {
	return []models.BoardList{
		{ID: 1, Name: "A", Position: 0, Tasks: []models.Task{task(11, 1, 0), task(12, 1, 1)}},
		{ID: 2, Name: "B", Position: 1, Tasks: []models.Task{task(13, 2, 0)}},
		{ID: 3, Name: "C", Position: 2, Tasks: []models.Task{}},
	}
}

func listIDs(lists []models.BoardList) []int64 {
	ids := make([]int64, len(lists))
	for i, l := range lists {
		ids[i] = l.ID
	}
	return ids
}

func taskIDs(tasks []models.Task) []int64 {
	ids := make([]int64, len(tasks))
	for i, t := range tasks {
		ids[i] = t.ID
	}
	return ids
}

func assertContiguous(t *testing.T, lists []models.BoardList) {
	t.Helper()
	for i, l := range lists {
		assert.Equal(t, i, l.Position, "list %d position", l.ID)
		for j, tk := range l.Tasks {
			assert.Equal(t, j, tk.Position, "task %d position", tk.ID)
			assert.Equal(t, l.ID, tk.ListID, "task %d list", tk.ID)
		}
	}
}

func TestParseKey(t *testing.T) {
	tests := []struct {
		in      string
		want    Key
		wantErr bool
	}{
		{in: "list-7", want: ListKey(7)},
		{in: "task-12", want: TaskKey(12)},
		{in: "task-", wantErr: true},
		{in: "board-1", wantErr: true},
		{in: "12", wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseKey(tc.in)
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrBadKey)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, tc.in, got.String())
		})
	}
}

func TestListAndTaskKeysDiffer(t *testing.T) {
	assert.NotEqual(t, ListKey(1), TaskKey(1))
}

func TestPlanListReorder(t *testing.T) {
	plan, ok := PlanDrag(sampleBoard(), DragEnd{Active: ListKey(1), Over: ListKey(3)})
	require.True(t, ok)

	assert.Equal(t, []int64{2, 3, 1}, listIDs(plan.Lists))
	assertContiguous(t, plan.Lists)
	assert.Equal(t, []ListWrite{
		{ID: 2, Name: "B", Position: 0},
		{ID: 3, Name: "C", Position: 1},
		{ID: 1, Name: "A", Position: 2},
	}, plan.ListWrites)
	assert.Empty(t, plan.TaskWrites)
}

func TestPlanListReorderBackwards(t *testing.T) {
	plan, ok := PlanDrag(sampleBoard(), DragEnd{Active: ListKey(3), Over: ListKey(1)})
	require.True(t, ok)
	assert.Equal(t, []int64{3, 1, 2}, listIDs(plan.Lists))
	assertContiguous(t, plan.Lists)
}

func TestPlanSameListReorder(t *testing.T) {
	lists := []models.BoardList{{ID: 1, Tasks: []models.Task{task(1, 1, 0), task(2, 1, 1), task(3, 1, 2)}}}

	plan, ok := PlanDrag(lists, DragEnd{Active: TaskKey(3), Over: TaskKey(1)})
	require.True(t, ok)

	assert.Equal(t, []int64{3, 1, 2}, taskIDs(plan.Lists[0].Tasks))
	assertContiguous(t, plan.Lists)
	assert.Equal(t, []int64{3, 1, 2}, taskIDs(plan.TaskWrites))
	assert.Empty(t, plan.ListWrites)
}

func TestPlanCrossListMove(t *testing.T) {
	plan, ok := PlanDrag(sampleBoard(), DragEnd{Active: TaskKey(11), Over: TaskKey(13)})
	require.True(t, ok)

	assert.Equal(t, []int64{12}, taskIDs(plan.Lists[0].Tasks))
	assert.Equal(t, []int64{11, 13}, taskIDs(plan.Lists[1].Tasks))
	assertContiguous(t, plan.Lists)

	// every task of both lists is written, with the moved task's new list
	assert.Equal(t, []int64{12, 11, 13}, taskIDs(plan.TaskWrites))
	assert.EqualValues(t, 2, plan.TaskWrites[1].ListID)
}

func TestPlanSingleOwnership(t *testing.T) {
	plan, ok := PlanDrag(sampleBoard(), DragEnd{Active: TaskKey(12), Over: ListKey(3)})
	require.True(t, ok)

	count := 0
	for _, l := range plan.Lists {
		for _, tk := range l.Tasks {
			if tk.ID == 12 {
				count++
				assert.EqualValues(t, 3, l.ID)
			}
		}
	}
	assert.Equal(t, 1, count)
}

func TestPlanDropOnListAppends(t *testing.T) {
	plan, ok := PlanDrag(sampleBoard(), DragEnd{Active: TaskKey(13), Over: ListKey(1)})
	require.True(t, ok)

	assert.Equal(t, []int64{11, 12, 13}, taskIDs(plan.Lists[0].Tasks))
	assert.Empty(t, plan.Lists[1].Tasks)
	assertContiguous(t, plan.Lists)
}

func TestPlanDropOnOwnListMovesToEnd(t *testing.T) {
	plan, ok := PlanDrag(sampleBoard(), DragEnd{Active: TaskKey(11), Over: ListKey(1)})
	require.True(t, ok)

	assert.Equal(t, []int64{12, 11}, taskIDs(plan.Lists[0].Tasks))
	assertContiguous(t, plan.Lists)
}

func TestPlanNoOps(t *testing.T) {
	tests := []struct {
		name string
		ev   DragEnd
	}{
		{name: "task onto itself", ev: DragEnd{Active: TaskKey(11), Over: TaskKey(11)}},
		{name: "list onto itself", ev: DragEnd{Active: ListKey(2), Over: ListKey(2)}},
		{name: "unknown task target", ev: DragEnd{Active: TaskKey(11), Over: TaskKey(999)}},
		{name: "unknown list target", ev: DragEnd{Active: TaskKey(11), Over: ListKey(999)}},
		{name: "unknown active task", ev: DragEnd{Active: TaskKey(999), Over: TaskKey(11)}},
		{name: "unknown active list", ev: DragEnd{Active: ListKey(999), Over: ListKey(1)}},
		{name: "list onto task", ev: DragEnd{Active: ListKey(1), Over: TaskKey(13)}},
		{name: "zero keys", ev: DragEnd{}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			plan, ok := PlanDrag(sampleBoard(), tc.ev)
			assert.False(t, ok)
			assert.Empty(t, plan.ListWrites)
			assert.Empty(t, plan.TaskWrites)
		})
	}
}

func TestPlanLeavesInputAlone(t *testing.T) {
	lists := sampleBoard()
	_, ok := PlanDrag(lists, DragEnd{Active: TaskKey(11), Over: TaskKey(13)})
	require.True(t, ok)
	assert.Equal(t, sampleBoard(), lists)
}

func TestPlanEveryMoveKeepsPositionsContiguous(t *testing.T) {
	keys := []Key{ListKey(1), ListKey(2), ListKey(3), TaskKey(11), TaskKey(12), TaskKey(13)}
	for _, active := range keys {
		for _, over := range keys {
			plan, ok := PlanDrag(sampleBoard(), DragEnd{Active: active, Over: over})
			if !ok {
				continue
			}
			assertContiguous(t, plan.Lists)
			assert.Len(t, models.FlattenTasks(plan.Lists), 3, "%s onto %s", active, over)
		}
	}
}
