package timeline

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tgienger/depplan/internal/models"
)

func date(t *testing.T, s string) *models.Date {
	t.Helper()
	d, err := models.ParseDate(s)
	require.NoError(t, err)
	return &d
}

func TestBarsDefaults(t *testing.T) {
	today := time.Date(2025, 3, 10, 15, 30, 0, 0, time.Local)
	bars := Bars([]models.Task{
		{ID: 1, Name: "both", StartDate: date(t, "2025-03-01"), DueDate: date(t, "2025-03-05"), DependencyIDs: []int64{9}},
		{ID: 2, Name: "no dates"},
		{ID: 3, Name: "no due", StartDate: date(t, "2025-03-08")},
		{ID: 4, Name: "backwards", StartDate: date(t, "2025-03-20"), DueDate: date(t, "2025-03-02")},
		{ID: 5},
	}, today)
	require.Len(t, bars, 5)

	assert.Equal(t, 5, bars[0].Days())
	assert.Equal(t, []int64{9}, bars[0].Dependencies)

	midnight := time.Date(2025, 3, 10, 0, 0, 0, 0, time.Local)
	assert.True(t, midnight.Equal(bars[1].Start), "missing start is today")
	assert.True(t, midnight.Equal(bars[1].End), "missing due is today")

	assert.Equal(t, 3, bars[2].Days())
	assert.Equal(t, 1, bars[3].Days(), "due before start is one day")
	assert.Equal(t, "Task #5", bars[4].Name)
	assert.NotNil(t, bars[4].Dependencies)
}

func TestSpan(t *testing.T) {
	bars := Bars([]models.Task{
		{ID: 1, StartDate: date(t, "2025-01-05"), DueDate: date(t, "2025-01-06")},
		{ID: 2, StartDate: date(t, "2025-01-02"), DueDate: date(t, "2025-01-03")},
		{ID: 3, StartDate: date(t, "2025-01-04"), DueDate: date(t, "2025-01-09")},
	}, time.Now())

	first, last := Span(bars)
	assert.Equal(t, "2025-01-02", first.Format(models.DateLayout))
	assert.Equal(t, "2025-01-09", last.Format(models.DateLayout))

	first, _ = Span(nil)
	assert.True(t, first.IsZero())
}

func TestRender(t *testing.T) {
	assert.Equal(t, "No tasks yet.", Render(nil, 10, 0))

	bars := Bars([]models.Task{
		{ID: 1, Name: "design", StartDate: date(t, "2025-01-01"), DueDate: date(t, "2025-01-02")},
		{ID: 2, Name: "a very long task name", StartDate: date(t, "2025-01-03"), DueDate: date(t, "2025-01-03")},
	}, time.Now())
	lines := strings.Split(Render(bars, 8, 0), "\n")
	require.Len(t, lines, 3)

	assert.Contains(t, lines[0], "2025-01-01")
	assert.Equal(t, "design   ██ ", lines[1])
	assert.Equal(t, "a very … ┊ █", lines[2], "week ticks fill empty days")
}
