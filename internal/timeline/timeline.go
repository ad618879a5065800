// Package timeline lays tasks out as Gantt bars.
package timeline

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/tgienger/depplan/internal/models"
)

// Bar is one task's span. Start and End are calendar days, both inclusive.
type Bar struct {
	TaskID       int64
	Name         string
	Start        time.Time
	End          time.Time
	Dependencies []int64
}

// Days returns the bar length in days.
func (b Bar) Days() int {
	return daysBetween(b.Start, b.End) + 1
}

// daysBetween rounds so a DST shift inside the range does not lose a day.
func daysBetween(from, to time.Time) int {
	return int(math.Round(to.Sub(from).Hours() / 24))
}

// Bars builds one bar per task. A missing start or due date is today; a
// due date before the start collapses to a one day bar.
func Bars(tasks []models.Task, today time.Time) []Bar {
	day := models.NewDate(today).Time
	bars := make([]Bar, 0, len(tasks))
	for _, t := range tasks {
		start, end := day, day
		if t.StartDate != nil && !t.StartDate.IsZero() {
			start = t.StartDate.Time
		}
		if t.DueDate != nil && !t.DueDate.IsZero() {
			end = t.DueDate.Time
		}
		if end.Before(start) {
			end = start
		}
		name := t.Name
		if name == "" {
			name = fmt.Sprintf("Task #%d", t.ID)
		}
		bars = append(bars, Bar{
			TaskID:       t.ID,
			Name:         name,
			Start:        start,
			End:          end,
			Dependencies: append([]int64{}, t.DependencyIDs...),
		})
	}
	return bars
}

// Span returns the first and last day covered by any bar.
func Span(bars []Bar) (time.Time, time.Time) {
	if len(bars) == 0 {
		return time.Time{}, time.Time{}
	}
	first, last := bars[0].Start, bars[0].End
	for _, b := range bars[1:] {
		if b.Start.Before(first) {
			first = b.Start
		}
		if b.End.After(last) {
			last = b.End
		}
	}
	return first, last
}

// Render draws bars at day granularity. Labels are cut to labelWidth;
// spans wider than maxDays are truncated on the right.
func Render(bars []Bar, labelWidth, maxDays int) string {
	if len(bars) == 0 {
		return "No tasks yet."
	}
	first, last := Span(bars)
	days := daysBetween(first, last) + 1
	if maxDays > 0 && days > maxDays {
		days = maxDays
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%-*s %s\n", labelWidth, "", first.Format(models.DateLayout))
	for _, bar := range bars {
		offset := daysBetween(first, bar.Start)
		length := bar.Days()
		row := make([]rune, days)
		for i := range row {
			switch {
			case i >= offset && i < offset+length:
				row[i] = '█'
			case i%7 == 0:
				row[i] = '┊'
			default:
				row[i] = ' '
			}
		}
		fmt.Fprintf(&b, "%-*s %s\n", labelWidth, clip(bar.Name, labelWidth), string(row))
	}
	return strings.TrimRight(b.String(), "\n")
}

func clip(s string, width int) string {
	r := []rune(s)
	if width <= 0 || len(r) <= width {
		return s
	}
	if width == 1 {
		return "…"
	}
	return string(r[:width-1]) + "…"
}
