package testutil

import (
	"testing"

	"github.com/vanderheijden86/tuskdash/pkg/model"
)

// AssertTaskCount verifies the expected number of tasks.
func AssertTaskCount(t *testing.T, tasks []model.Task, expected int) {
	t.Helper()
	if len(tasks) != expected {
		t.Errorf("expected %d tasks, got %d", expected, len(tasks))
	}
}

// AssertNoDuplicateIDs verifies all task ids are unique.
func AssertNoDuplicateIDs(t *testing.T, tasks []model.Task) {
	t.Helper()
	seen := make(map[int64]bool, len(tasks))
	for _, task := range tasks {
		if seen[task.ID] {
			t.Errorf("duplicate task id: %d", task.ID)
		}
		seen[task.ID] = true
	}
}

// AssertClosed verifies every edge endpoint and blocker owner is among tasks.
func AssertClosed(t *testing.T, tasks []model.Task, edges []model.Edge, blockers []model.Blocker) {
	t.Helper()
	ids := TaskIDSet(tasks)
	for _, e := range edges {
		if !ids[e.TaskID] || !ids[e.DependsOnID] {
			t.Errorf("edge %d -> %d has an endpoint outside the task set", e.DependsOnID, e.TaskID)
		}
	}
	for _, b := range blockers {
		if !ids[b.TaskID] {
			t.Errorf("blocker %d attached to missing task %d", b.ID, b.TaskID)
		}
	}
}

// AssertStatusCounts checks how many tasks carry each status.
func AssertStatusCounts(t *testing.T, tasks []model.Task, todo, inProgress, done int) {
	t.Helper()
	counts := CountByStatus(tasks)
	if counts[model.StatusToDo] != todo || counts[model.StatusInProgress] != inProgress || counts[model.StatusDone] != done {
		t.Errorf("status counts = %v, want To Do=%d In Progress=%d Done=%d", counts, todo, inProgress, done)
	}
}

// TaskIDSet returns the ids of tasks as a set.
func TaskIDSet(tasks []model.Task) map[int64]bool {
	ids := make(map[int64]bool, len(tasks))
	for _, task := range tasks {
		ids[task.ID] = true
	}
	return ids
}

// CountByStatus tallies tasks per status.
func CountByStatus(tasks []model.Task) map[model.Status]int {
	counts := make(map[model.Status]int)
	for _, task := range tasks {
		counts[task.Status]++
	}
	return counts
}
