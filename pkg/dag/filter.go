// Package dag decides which part of the task dependency graph is worth
// showing and turns it into a Mermaid diagram plus sidebar lookup payloads.
//
// Everything in this package is a pure function of its inputs: nothing is
// mutated, nothing is cached between calls, and concurrent calls on
// independent snapshots need no locking.
package dag

import (
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/traverse"

	"github.com/vanderheijden86/tuskdash/pkg/debug"
	"github.com/vanderheijden86/tuskdash/pkg/metrics"
	"github.com/vanderheijden86/tuskdash/pkg/model"
)

// Visible is the subset of a snapshot that survives Filter. Slices keep the
// input order.
type Visible struct {
	Tasks    []model.Task
	Edges    []model.Edge
	Blockers []model.Blocker
}

// TaskIDs returns the ids of the visible tasks in order.
func (v Visible) TaskIDs() []int64 {
	ids := make([]int64, len(v.Tasks))
	for i, t := range v.Tasks {
		ids[i] = t.ID
	}
	return ids
}

// FilterSnapshot is Filter applied to a whole snapshot.
func FilterSnapshot(s model.Snapshot, showAll bool) Visible {
	return Filter(s.Tasks, s.Edges, s.Blockers, showAll)
}

// Filter selects the tasks, edges and blockers to draw.
//
// To Do and In Progress tasks are always kept. Done tasks are kept when
// showAll is set or when they touch at least one edge. Without showAll,
// every connected component (edges taken as undirected) made up solely of
// Done tasks is then dropped. Edges and blockers survive only when all the
// tasks they reference survive.
func Filter(tasks []model.Task, edges []model.Edge, blockers []model.Blocker, showAll bool) Visible {
	defer metrics.Timer(metrics.DAGFilter)()

	onEdge := make(map[int64]bool, len(edges)*2)
	for _, e := range edges {
		onEdge[e.TaskID] = true
		onEdge[e.DependsOnID] = true
	}

	visibleTasks := make([]model.Task, 0, len(tasks))
	for _, t := range tasks {
		switch {
		case t.Status.IsActive():
			visibleTasks = append(visibleTasks, t)
		case t.Status.IsDone() && (showAll || onEdge[t.ID]):
			visibleTasks = append(visibleTasks, t)
		}
	}

	visibleIDs := make(map[int64]bool, len(visibleTasks))
	for _, t := range visibleTasks {
		visibleIDs[t.ID] = true
	}

	if !showAll {
		removed := doneComponents(visibleTasks, edges, visibleIDs)
		if len(removed) > 0 {
			kept := make([]model.Task, 0, len(visibleTasks)-len(removed))
			for _, t := range visibleTasks {
				if removed[t.ID] {
					delete(visibleIDs, t.ID)
					continue
				}
				kept = append(kept, t)
			}
			visibleTasks = kept
		}
	}

	visibleEdges := make([]model.Edge, 0, len(edges))
	for _, e := range edges {
		if visibleIDs[e.TaskID] && visibleIDs[e.DependsOnID] {
			visibleEdges = append(visibleEdges, e)
		}
	}

	visibleBlockers := make([]model.Blocker, 0, len(blockers))
	for _, b := range blockers {
		if visibleIDs[b.TaskID] {
			visibleBlockers = append(visibleBlockers, b)
		}
	}

	debug.Log("DAG visible (showAll=%v): %d tasks, %d edges, %d blockers",
		showAll, len(visibleTasks), len(visibleEdges), len(visibleBlockers))

	return Visible{Tasks: visibleTasks, Edges: visibleEdges, Blockers: visibleBlockers}
}

// doneComponents returns the ids of every visible task that belongs to a
// connected component with no unfinished member.
func doneComponents(visible []model.Task, edges []model.Edge, visibleIDs map[int64]bool) map[int64]bool {
	g := simple.NewUndirectedGraph()
	done := make(map[int64]bool, len(visible))
	for _, t := range visible {
		if g.Node(t.ID) == nil {
			g.AddNode(simple.Node(t.ID))
		}
		done[t.ID] = t.Status.IsDone()
	}
	for _, e := range edges {
		if e.TaskID == e.DependsOnID {
			continue
		}
		if visibleIDs[e.TaskID] && visibleIDs[e.DependsOnID] {
			g.SetEdge(g.NewEdge(simple.Node(e.TaskID), simple.Node(e.DependsOnID)))
		}
	}

	removed := make(map[int64]bool)
	var component []int64
	bfs := traverse.BreadthFirst{
		Visit: func(n graph.Node) { component = append(component, n.ID()) },
	}
	for _, t := range visible {
		if bfs.Visited(g.Node(t.ID)) {
			continue
		}
		component = component[:0]
		bfs.Walk(g, g.Node(t.ID), nil)

		allDone := true
		for _, id := range component {
			if !done[id] {
				allDone = false
				break
			}
		}
		if allDone {
			for _, id := range component {
				removed[id] = true
			}
		}
	}
	return removed
}
