package model

import (
	"errors"
	"testing"
)

func TestStatusPredicates(t *testing.T) {
	tests := []struct {
		status Status
		valid  bool
		active bool
		done   bool
	}{
		{StatusToDo, true, true, false},
		{StatusInProgress, true, true, false},
		{StatusDone, true, false, true},
		{"Blocked", false, false, false},
		{"", false, false, false},
	}
	for _, tt := range tests {
		if got := tt.status.Valid(); got != tt.valid {
			t.Errorf("%q.Valid() = %v, want %v", tt.status, got, tt.valid)
		}
		if got := tt.status.IsActive(); got != tt.active {
			t.Errorf("%q.IsActive() = %v, want %v", tt.status, got, tt.active)
		}
		if got := tt.status.IsDone(); got != tt.done {
			t.Errorf("%q.IsDone() = %v, want %v", tt.status, got, tt.done)
		}
	}
}

func TestComplexityValid(t *testing.T) {
	for _, c := range []Complexity{"", ComplexityXS, ComplexityS, ComplexityM, ComplexityL, ComplexityXL} {
		if !c.Valid() {
			t.Errorf("%q should be valid", c)
		}
	}
	if Complexity("XXL").Valid() {
		t.Error("XXL should not be valid")
	}
}

func TestSnapshotValidate(t *testing.T) {
	tests := []struct {
		name    string
		snap    Snapshot
		wantErr bool
	}{
		{
			name: "valid with dangling edge",
			snap: Snapshot{
				Tasks:    []Task{{ID: 1, Status: StatusToDo}},
				Edges:    []Edge{{TaskID: 1, DependsOnID: 99, RelationshipType: RelBlocking}},
				Blockers: []Blocker{{ID: 3, TaskID: 42}},
			},
		},
		{
			name:    "non-positive id",
			snap:    Snapshot{Tasks: []Task{{ID: 0, Status: StatusDone}}},
			wantErr: true,
		},
		{
			name:    "duplicate id",
			snap:    Snapshot{Tasks: []Task{{ID: 2, Status: StatusDone}, {ID: 2, Status: StatusToDo}}},
			wantErr: true,
		},
		{
			name:    "unknown status",
			snap:    Snapshot{Tasks: []Task{{ID: 2, Status: "Waiting"}}},
			wantErr: true,
		},
		{
			name:    "unknown complexity",
			snap:    Snapshot{Tasks: []Task{{ID: 2, Status: StatusDone, Complexity: "XXL"}}},
			wantErr: true,
		},
		{
			name: "unknown relationship",
			snap: Snapshot{
				Tasks: []Task{{ID: 1, Status: StatusToDo}},
				Edges: []Edge{{TaskID: 1, DependsOnID: 2, RelationshipType: "related"}},
			},
			wantErr: true,
		},
		{
			name:    "bad blocker id",
			snap:    Snapshot{Blockers: []Blocker{{ID: -1, TaskID: 1}}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.snap.Validate()
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidSnapshot) {
					t.Fatalf("expected ErrInvalidSnapshot, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}
