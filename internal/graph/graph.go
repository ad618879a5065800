// Package graph builds the task dependency graph of a board.
package graph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tgienger/depplan/internal/models"
)

// Node is one task.
type Node struct {
	ID     int64
	Name   string
	ListID int64
}

// Edge points from a prerequisite to the task that depends on it.
type Edge struct {
	From int64
	To   int64
}

// Graph is an immutable view of task dependencies.
type Graph struct {
	nodes    []Node
	index    map[int64]int
	edges    []Edge
	requires map[int64][]int64 // task -> prerequisites
	enables  map[int64][]int64 // prerequisite -> dependents
}

// Build creates the graph of tasks. Dependency ids that do not name a
// task in tasks, self references and duplicates are ignored.
func Build(tasks []models.Task) *Graph {
	g := &Graph{
		index:    make(map[int64]int, len(tasks)),
		requires: map[int64][]int64{},
		enables:  map[int64][]int64{},
	}
	for _, t := range tasks {
		if _, dup := g.index[t.ID]; dup {
			continue
		}
		g.index[t.ID] = len(g.nodes)
		g.nodes = append(g.nodes, Node{ID: t.ID, Name: t.Name, ListID: t.ListID})
	}

	seen := map[Edge]bool{}
	for _, t := range tasks {
		for _, dep := range t.DependencyIDs {
			e := Edge{From: dep, To: t.ID}
			if dep == t.ID || seen[e] {
				continue
			}
			if _, ok := g.index[dep]; !ok {
				continue
			}
			seen[e] = true
			g.edges = append(g.edges, e)
			g.requires[t.ID] = append(g.requires[t.ID], dep)
			g.enables[dep] = append(g.enables[dep], t.ID)
		}
	}
	return g
}

// Nodes returns the tasks in input order.
func (g *Graph) Nodes() []Node { return append([]Node(nil), g.nodes...) }

// Edges returns every dependency edge.
func (g *Graph) Edges() []Edge { return append([]Edge(nil), g.edges...) }

// Node looks up a task by id.
func (g *Graph) Node(id int64) (Node, bool) {
	i, ok := g.index[id]
	if !ok {
		return Node{}, false
	}
	return g.nodes[i], true
}

// Prerequisites returns the tasks id depends on.
func (g *Graph) Prerequisites(id int64) []int64 {
	return append([]int64(nil), g.requires[id]...)
}

// Dependents returns the tasks that depend on id.
func (g *Graph) Dependents(id int64) []int64 {
	return append([]int64(nil), g.enables[id]...)
}

// Layers orders tasks breadth first: layer 0 holds tasks without
// prerequisites and every later layer holds tasks whose prerequisites all
// sit in earlier layers. Tasks caught in a cycle form one final layer.
func (g *Graph) Layers() [][]int64 {
	layers, _ := g.layers()
	return layers
}

// layers also reports whether a trailing cycle layer was added. Anything
// left unplaced is on a cycle or downstream of one.
func (g *Graph) layers() ([][]int64, bool) {
	remaining := make(map[int64]int, len(g.nodes))
	for _, n := range g.nodes {
		remaining[n.ID] = len(g.requires[n.ID])
	}

	var layers [][]int64
	var current []int64
	for _, n := range g.nodes {
		if remaining[n.ID] == 0 {
			current = append(current, n.ID)
		}
	}

	placed := 0
	for len(current) > 0 {
		layers = append(layers, current)
		placed += len(current)
		var next []int64
		for _, id := range current {
			for _, dep := range g.enables[id] {
				remaining[dep]--
				if remaining[dep] == 0 {
					next = append(next, dep)
				}
			}
		}
		g.sortByInput(next)
		current = next
	}

	if placed < len(g.nodes) {
		var cyclic []int64
		for _, n := range g.nodes {
			if remaining[n.ID] > 0 {
				cyclic = append(cyclic, n.ID)
			}
		}
		return append(layers, cyclic), true
	}
	return layers, false
}

func (g *Graph) sortByInput(ids []int64) {
	sort.Slice(ids, func(i, j int) bool { return g.index[ids[i]] < g.index[ids[j]] })
}

// HasCycle reports whether the edges contain a cycle.
func (g *Graph) HasCycle() bool {
	_, cyclic := g.layers()
	return cyclic
}

// WouldCycle reports whether adding "taskID depends on dependsOnID" would
// close a cycle, i.e. dependsOnID already depends on taskID transitively.
// The server makes the final decision.
func (g *Graph) WouldCycle(taskID, dependsOnID int64) bool {
	if taskID == dependsOnID {
		return true
	}
	return g.reaches(dependsOnID, taskID, map[int64]bool{})
}

// reaches is a depth-first search along prerequisite edges.
func (g *Graph) reaches(from, target int64, seen map[int64]bool) bool {
	for _, dep := range g.requires[from] {
		if dep == target {
			return true
		}
		if seen[dep] {
			continue
		}
		seen[dep] = true
		if g.reaches(dep, target, seen) {
			return true
		}
	}
	return false
}

// Render draws the layers as text, one line per layer, followed by the
// edge list.
func Render(g *Graph) string {
	if len(g.nodes) == 0 {
		return "No tasks yet."
	}
	var b strings.Builder
	layers, cyclic := g.layers()
	for i, layer := range layers {
		label := fmt.Sprintf("Layer %d", i)
		if cyclic && i == len(layers)-1 {
			label = "Cycle"
		}
		names := make([]string, len(layer))
		for j, id := range layer {
			names[j] = "[" + g.nodes[g.index[id]].Name + "]"
		}
		fmt.Fprintf(&b, "%-8s %s\n", label+":", strings.Join(names, "  "))
	}
	if len(g.edges) > 0 {
		b.WriteString("\n")
		for _, e := range g.edges {
			fmt.Fprintf(&b, "  %s -> %s\n", g.nodes[g.index[e.From]].Name, g.nodes[g.index[e.To]].Name)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
