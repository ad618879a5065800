package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimestampUnmarshal(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    time.Time
		wantErr bool
	}{
		{name: "local date-time", input: `"2025-03-04T10:11:12"`, want: time.Date(2025, 3, 4, 10, 11, 12, 0, time.Local)},
		{name: "fractional seconds", input: `"2025-03-04T10:11:12.5"`, want: time.Date(2025, 3, 4, 10, 11, 12, 500000000, time.Local)},
		{name: "rfc3339", input: `"2025-03-04T10:11:12Z"`, want: time.Date(2025, 3, 4, 10, 11, 12, 0, time.UTC)},
		{name: "null", input: `null`},
		{name: "empty string", input: `""`},
		{name: "garbage", input: `"yesterday"`, wantErr: true},
		{name: "not a string", input: `42`, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var ts Timestamp
			err := json.Unmarshal([]byte(tc.input), &ts)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, tc.want.Equal(ts.Time), "got %s want %s", ts.Time, tc.want)
		})
	}
}

func TestDateRoundTrip(t *testing.T) {
	var task Task
	require.NoError(t, json.Unmarshal([]byte(`{"id":1,"name":"a","startDate":"2025-01-02","dueDate":null}`), &task))
	require.NotNil(t, task.StartDate)
	assert.Equal(t, "2025-01-02", task.StartDate.String())
	assert.Nil(t, task.DueDate)

	out, err := json.Marshal(task)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"startDate":"2025-01-02"`)
	assert.NotContains(t, string(out), "dueDate")
}

func TestDateAcceptsTimestamp(t *testing.T) {
	var d Date
	require.NoError(t, json.Unmarshal([]byte(`"2025-06-30T00:00:00"`), &d))
	assert.Equal(t, "2025-06-30", d.String())
}

func TestActivityStatUnmarshal(t *testing.T) {
	var stats []ActivityStat
	require.NoError(t, json.Unmarshal([]byte(`[["TASK_CREATED",4],["LIST_MOVED",1]]`), &stats))
	require.Len(t, stats, 2)
	assert.Equal(t, ActivityTaskCreated, stats[0].Type)
	assert.EqualValues(t, 4, stats[0].Count)
	assert.Equal(t, ActivityListMoved, stats[1].Type)

	var bad ActivityStat
	assert.Error(t, json.Unmarshal([]byte(`["TASK_CREATED"]`), &bad))
}

func TestFlattenTasks(t *testing.T) {
	lists := []BoardList{
		{ID: 1, Tasks: []Task{{ID: 10}, {ID: 11}}},
		{ID: 2},
		{ID: 3, Tasks: []Task{{ID: 30}}},
	}
	got := FlattenTasks(lists)
	require.Len(t, got, 3)
	assert.Equal(t, []int64{10, 11, 30}, []int64{got[0].ID, got[1].ID, got[2].ID})
}
