// Package model defines the task, dependency and blocker records read from a
// tusk database snapshot.
package model

import (
	"errors"
	"fmt"
)

// Status is the lifecycle state of a task as stored by tusk.
type Status string

const (
	StatusToDo       Status = "To Do"
	StatusInProgress Status = "In Progress"
	StatusDone       Status = "Done"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusToDo, StatusInProgress, StatusDone:
		return true
	}
	return false
}

// IsActive reports whether the task is still being worked on or waiting.
func (s Status) IsActive() bool {
	return s == StatusToDo || s == StatusInProgress
}

// IsDone reports whether the task is finished.
func (s Status) IsDone() bool {
	return s == StatusDone
}

// Complexity is the estimated effort tier of a task. Empty means unestimated.
type Complexity string

const (
	ComplexityXS Complexity = "XS"
	ComplexityS  Complexity = "S"
	ComplexityM  Complexity = "M"
	ComplexityL  Complexity = "L"
	ComplexityXL Complexity = "XL"
)

// Valid reports whether c is empty or one of the known tiers.
func (c Complexity) Valid() bool {
	switch c {
	case "", ComplexityXS, ComplexityS, ComplexityM, ComplexityL, ComplexityXL:
		return true
	}
	return false
}

// RelationshipType distinguishes hard dependencies from contingent ones.
type RelationshipType string

const (
	RelBlocking   RelationshipType = "blocking"
	RelContingent RelationshipType = "contingent"
)

// Valid reports whether r is empty (treated as blocking) or a known type.
func (r RelationshipType) Valid() bool {
	return r == "" || r == RelBlocking || r == RelContingent
}

// Task is a unit of tracked work along with its pre-aggregated metrics.
type Task struct {
	ID         int64
	Summary    string
	Status     Status
	Complexity Complexity

	Priority      *string
	Domain        *string
	TaskType      *string
	PriorityScore *float64

	SessionCount    int
	TokensIn        int64
	TokensOut       int64
	Cost            float64
	DurationSeconds float64
	CriteriaDone    int
	CriteriaTotal   int
}

// Edge records that TaskID cannot finish before DependsOnID.
type Edge struct {
	TaskID           int64
	DependsOnID      int64
	RelationshipType RelationshipType
}

// Blocker is an external obstruction attached to a single task.
type Blocker struct {
	ID          int64
	TaskID      int64
	Description string
	BlockerType string
	IsResolved  bool
}

// Snapshot is one consistent read of the task graph.
type Snapshot struct {
	Tasks    []Task
	Edges    []Edge
	Blockers []Blocker
}

// ErrInvalidSnapshot wraps every error returned by Snapshot.Validate.
var ErrInvalidSnapshot = errors.New("invalid snapshot")

// Validate checks the producer-side contract: positive unique task ids and
// known enum values. Dangling edge and blocker references are allowed.
func (s Snapshot) Validate() error {
	seen := make(map[int64]bool, len(s.Tasks))
	for _, t := range s.Tasks {
		if t.ID <= 0 {
			return fmt.Errorf("%w: task id %d is not positive", ErrInvalidSnapshot, t.ID)
		}
		if seen[t.ID] {
			return fmt.Errorf("%w: duplicate task id %d", ErrInvalidSnapshot, t.ID)
		}
		seen[t.ID] = true
		if !t.Status.Valid() {
			return fmt.Errorf("%w: task %d has unknown status %q", ErrInvalidSnapshot, t.ID, t.Status)
		}
		if !t.Complexity.Valid() {
			return fmt.Errorf("%w: task %d has unknown complexity %q", ErrInvalidSnapshot, t.ID, t.Complexity)
		}
	}
	for _, e := range s.Edges {
		if !e.RelationshipType.Valid() {
			return fmt.Errorf("%w: edge %d->%d has unknown relationship %q",
				ErrInvalidSnapshot, e.TaskID, e.DependsOnID, e.RelationshipType)
		}
	}
	for _, b := range s.Blockers {
		if b.ID <= 0 {
			return fmt.Errorf("%w: blocker id %d is not positive", ErrInvalidSnapshot, b.ID)
		}
	}
	return nil
}
