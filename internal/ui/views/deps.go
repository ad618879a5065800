package views

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/tgienger/depplan/internal/graph"
	"github.com/tgienger/depplan/internal/models"
	"github.com/tgienger/depplan/internal/ui/styles"
)

// depPicker toggles the prerequisites of one task
type depPicker struct {
	taskID     int64
	taskName   string
	candidates []models.Task
	listNames  map[int64]string
	selected   map[int64]bool
	graph      *graph.Graph
	cursor     int
	err        string
}

func newDepPicker(taskID int64, lists []models.BoardList) *depPicker {
	p := &depPicker{taskID: taskID}
	p.reload(lists)
	return p
}

// reload rebuilds the candidates from a fresh board, keeping the cursor on
// the same task
func (p *depPicker) reload(lists []models.BoardList) {
	var keep int64
	if c, ok := p.current(); ok {
		keep = c.ID
	}

	tasks := models.FlattenTasks(lists)
	p.graph = graph.Build(tasks)
	p.listNames = make(map[int64]string, len(lists))
	for _, l := range lists {
		p.listNames[l.ID] = l.Name
	}

	p.candidates = p.candidates[:0]
	p.selected = map[int64]bool{}
	for _, t := range tasks {
		if t.ID == p.taskID {
			p.taskName = t.Name
			for _, id := range t.DependencyIDs {
				p.selected[id] = true
			}
			continue
		}
		p.candidates = append(p.candidates, t)
	}

	p.cursor = clamp(p.cursor, 0, max(len(p.candidates)-1, 0))
	for i, c := range p.candidates {
		if c.ID == keep {
			p.cursor = i
			break
		}
	}
}

func (p *depPicker) current() (models.Task, bool) {
	if p.cursor < 0 || p.cursor >= len(p.candidates) {
		return models.Task{}, false
	}
	return p.candidates[p.cursor], true
}

func (p *depPicker) move(delta int) {
	if len(p.candidates) == 0 {
		return
	}
	p.cursor = clamp(p.cursor+delta, 0, len(p.candidates)-1)
}

// wouldCycle is advisory: the server makes the final call
func (p *depPicker) wouldCycle(candidateID int64) bool {
	return !p.selected[candidateID] && p.graph.WouldCycle(p.taskID, candidateID)
}

func (p *depPicker) view(s *styles.Styles, width, height int) string {
	contentWidth := styles.ContentWidth(width)
	rows := []string{
		s.Title.Render("Dependencies of: " + p.taskName),
		s.TitleMuted.Render("Checked tasks must finish first"),
		"",
	}

	if len(p.candidates) == 0 {
		rows = append(rows, s.TitleMuted.Render("No other tasks on this board"))
	}

	visible := max(3, height-12)
	start := 0
	if p.cursor >= visible {
		start = p.cursor - visible + 1
	}
	for i := start; i < len(p.candidates) && i < start+visible; i++ {
		c := p.candidates[i]
		box := "[ ]"
		if p.selected[c.ID] {
			box = "[x]"
		}
		line := fmt.Sprintf("%s %s", box, clip(c.Name, 30))
		line += s.TitleMuted.Render("  " + p.listNames[c.ListID])
		if p.wouldCycle(c.ID) {
			line += s.Warning.Render("  ⚠ cycle")
		}
		style := s.ListItem
		if i == p.cursor {
			style = s.ListSelected
		}
		rows = append(rows, style.Render(line))
	}

	if c, ok := p.current(); ok && p.wouldCycle(c.ID) {
		rows = append(rows, "", s.Warning.Render(fmt.Sprintf("%q already depends on this task; adding it would create a cycle.", c.Name)))
	}
	if p.err != "" {
		rows = append(rows, "", s.Error.Width(contentWidth-6).Render(p.err))
	}
	rows = append(rows, "", s.TitleMuted.Render("Space/↵: toggle • Esc: done"))

	return popup(s, width, height, lipgloss.JoinVertical(lipgloss.Left, rows...))
}
