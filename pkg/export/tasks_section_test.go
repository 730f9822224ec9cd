package export

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/vanderheijden86/tuskdash/pkg/model"
)

func ptr[T any](v T) *T { return &v }

func tableSnapshot() model.Snapshot {
	return model.Snapshot{
		Tasks: []model.Task{
			{ID: 1, Summary: "Schema", Status: model.StatusDone, Complexity: model.ComplexityS,
				SessionCount: 1, TokensIn: 1000, TokensOut: 500, Cost: 2, DurationSeconds: 600,
				CriteriaDone: 3, CriteriaTotal: 3},
			{ID: 2, Summary: "Loader & <parser>", Status: model.StatusInProgress, Complexity: model.ComplexityM,
				PriorityScore: ptr(12.5), SessionCount: 2, TokensIn: 2_000_000, TokensOut: 100_000, Cost: 10,
				DurationSeconds: 7500, CriteriaDone: 1, CriteriaTotal: 4},
			{ID: 3, Summary: "Docs", Status: model.StatusToDo},
			{ID: 4, Summary: "Migration", Status: model.StatusDone, Complexity: model.ComplexityS,
				SessionCount: 3, Cost: 10, DurationSeconds: 1800},
			{ID: 5, Summary: "Big refactor", Status: model.StatusDone, Complexity: model.ComplexityXL,
				SessionCount: 6, Cost: 0.5},
		},
		Edges: []model.Edge{
			{TaskID: 2, DependsOnID: 1, RelationshipType: model.RelBlocking},
			{TaskID: 3, DependsOnID: 2, RelationshipType: model.RelContingent},
			{TaskID: 3, DependsOnID: 1},
			{TaskID: 2, DependsOnID: 99, RelationshipType: model.RelBlocking},
		},
		Blockers: []model.Blocker{
			{ID: 7, TaskID: 3, Description: "Waiting on review", BlockerType: ""},
			{ID: 8, TaskID: 3, Description: "Legal sign-off", BlockerType: "approval", IsResolved: true},
		},
	}
}

func rowByID(t *testing.T, d TasksData, id int64) TaskRow {
	t.Helper()
	for _, r := range d.Rows {
		if r.Task.ID == id {
			return r
		}
	}
	t.Fatalf("row %d not found", id)
	return TaskRow{}
}

func TestBuildTasksData_KPIs(t *testing.T) {
	d := BuildTasksData(tableSnapshot())

	want := KPIs{
		TotalCost:      22.5,
		TasksCompleted: 3,
		TasksTotal:     5,
		AvgCostPerTask: 22.5 / 4,
		TokensIn:       2_001_000,
		TokensOut:      100_500,
	}
	if diff := cmp.Diff(want, d.KPIs); diff != "" {
		t.Errorf("KPIs mismatch (-want +got):\n%s", diff)
	}
	if d.KPIs.TotalTokens() != 2_101_500 {
		t.Errorf("TotalTokens = %d", d.KPIs.TotalTokens())
	}
}

func TestBuildTasksData_KPIsWithoutSessions(t *testing.T) {
	d := BuildTasksData(model.Snapshot{Tasks: []model.Task{{ID: 1, Summary: "New", Status: model.StatusToDo}}})
	if d.KPIs.AvgCostPerTask != 0 || d.KPIs.TasksTotal != 1 {
		t.Errorf("unexpected KPIs: %+v", d.KPIs)
	}
}

func TestBuildTasksData_RowOrder(t *testing.T) {
	d := BuildTasksData(tableSnapshot())

	var got []int64
	for _, r := range d.Rows {
		got = append(got, r.Task.ID)
	}
	// Cost descending, ties broken by id.
	want := []int64{2, 4, 1, 5, 3}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("row order mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildTasksData_DependencyLinks(t *testing.T) {
	d := BuildTasksData(tableSnapshot())

	loader := rowByID(t, d, 2)
	wantBlockedBy := []DepLink{
		{ID: 1, RelationshipType: model.RelBlocking, Summary: "Schema"},
		{ID: 99, RelationshipType: model.RelBlocking, Summary: "Task #99"},
	}
	if diff := cmp.Diff(wantBlockedBy, loader.BlockedBy); diff != "" {
		t.Errorf("task 2 blocked-by mismatch (-want +got):\n%s", diff)
	}
	wantBlocks := []DepLink{{ID: 3, RelationshipType: model.RelContingent, Summary: "Docs"}}
	if diff := cmp.Diff(wantBlocks, loader.Blocks); diff != "" {
		t.Errorf("task 2 blocks mismatch (-want +got):\n%s", diff)
	}

	schema := rowByID(t, d, 1)
	if len(schema.BlockedBy) != 0 {
		t.Errorf("task 1 has no dependencies, got %+v", schema.BlockedBy)
	}
	if len(schema.Blocks) != 2 || schema.Blocks[0].ID != 2 || schema.Blocks[1].ID != 3 {
		t.Errorf("task 1 should block 2 and 3 in id order, got %+v", schema.Blocks)
	}
	if schema.Blocks[1].RelationshipType != model.RelBlocking {
		t.Errorf("empty relationship type should read as blocking, got %q", schema.Blocks[1].RelationshipType)
	}
}

func TestBuildTasksData_Expandable(t *testing.T) {
	d := BuildTasksData(tableSnapshot())

	tests := []struct {
		id   int64
		want bool
	}{
		{1, true},  // criteria
		{3, true},  // blockers only
		{4, false}, // neither
	}
	for _, tt := range tests {
		if got := rowByID(t, d, tt.id).Expandable(); got != tt.want {
			t.Errorf("task %d Expandable() = %v, want %v", tt.id, got, tt.want)
		}
	}
	if got := len(rowByID(t, d, 3).Blockers); got != 2 {
		t.Errorf("expected 2 blockers on task 3, got %d", got)
	}
}

func TestBuildTasksData_Complexity(t *testing.T) {
	d := BuildTasksData(tableSnapshot())

	want := []ComplexityRow{
		{Complexity: model.ComplexityS, TaskCount: 2, AvgSessions: 2, AvgDurationSeconds: 1200, AvgCost: 6,
			ExpectedLow: 1, ExpectedHigh: 1.5},
		{Complexity: model.ComplexityXL, TaskCount: 1, AvgSessions: 6, AvgCost: 0.5,
			ExpectedLow: 5, ExpectedHigh: 10},
	}
	if diff := cmp.Diff(want, d.Complexity); diff != "" {
		t.Errorf("complexity rows mismatch (-want +got):\n%s", diff)
	}
	if !d.Complexity[0].Exceeds() {
		t.Error("S tier averaging 2 sessions should exceed 1.5")
	}
	if d.Complexity[1].Exceeds() {
		t.Error("XL tier at 6 sessions is within range")
	}

	wantTiers := []model.Complexity{model.ComplexityS, model.ComplexityM, model.ComplexityXL}
	if diff := cmp.Diff(wantTiers, d.Tiers); diff != "" {
		t.Errorf("tiers mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildTasksData_AvgSessionsRounded(t *testing.T) {
	snap := model.Snapshot{Tasks: []model.Task{
		{ID: 1, Status: model.StatusDone, Complexity: model.ComplexityM, SessionCount: 1},
		{ID: 2, Status: model.StatusDone, Complexity: model.ComplexityM, SessionCount: 1},
		{ID: 3, Status: model.StatusDone, Complexity: model.ComplexityM, SessionCount: 2},
	}}
	d := BuildTasksData(snap)
	if len(d.Complexity) != 1 || d.Complexity[0].AvgSessions != 1.3 {
		t.Errorf("expected 1.3 average sessions, got %+v", d.Complexity)
	}
}

func TestCostHeatClass(t *testing.T) {
	tests := []struct {
		cost, max float64
		want      string
	}{
		{0, 10, ""},
		{5, 0, ""},
		{0.5, 10, ""},
		{1, 10, "cost-heat-1"},
		{3, 10, "cost-heat-2"},
		{5, 10, "cost-heat-3"},
		{7, 10, "cost-heat-4"},
		{10, 10, "cost-heat-5"},
	}
	for _, tt := range tests {
		if got := CostHeatClass(tt.cost, tt.max); got != tt.want {
			t.Errorf("CostHeatClass(%v, %v) = %q, want %q", tt.cost, tt.max, got, tt.want)
		}
	}
}

func TestRenderTasksSection(t *testing.T) {
	section, err := RenderTasksSection(tableSnapshot())
	if err != nil {
		t.Fatalf("RenderTasksSection failed: %v", err)
	}

	for _, want := range []string{
		`<div class="kpi-value" id="kpiTotalCost">$22.50</div>`,
		`<div class="kpi-sub">of 5 total</div>`,
		`2.1M`,
		`id="statusFilter"`,
		`<option value="XL">XL</option>`,
		`id="searchInput"`,
		`id="paginationBar"`,
		`data-task-id="2"`,
		`data-summary="loader &amp; &lt;parser&gt;"`,
		`Loader &amp; &lt;parser&gt;`,
		`status-badge status-in-progress`,
		`class="col-cost cost-heat-5"`,
		`<span class="dep-label">Blocked by</span>`,
		`class="dep-link dep-type-contingent" data-target="3" title="Docs"`,
		`title="Task #99"`,
		`Acceptance criteria: 1/4 complete`,
		`width: 25%`,
		`#7 [external] Waiting on review`,
		`Legal sign-off (resolved)`,
		`Estimate vs. Actual`,
		`<tr class="tier-exceeds">`,
		`1–1.5`,
	} {
		if !strings.Contains(section, want) {
			t.Errorf("section missing %s", want)
		}
	}
	if strings.Contains(section, "<parser>") {
		t.Error("task summary was not escaped")
	}
	if got := strings.Count(section, `class="criteria-row"`); got != 3 {
		t.Errorf("expected 3 detail rows (tasks 1, 2, 3), got %d", got)
	}
	if strings.Index(section, `data-task-id="2"`) > strings.Index(section, `data-task-id="4"`) {
		t.Error("rows should be rendered in cost order")
	}
}

func TestRenderTasksSection_Empty(t *testing.T) {
	section, err := RenderTasksSection(model.Snapshot{})
	if err != nil {
		t.Fatalf("RenderTasksSection failed: %v", err)
	}
	if !strings.Contains(section, "No tasks yet.") {
		t.Error("expected empty-table row")
	}
	if strings.Contains(section, "Estimate vs. Actual") {
		t.Error("complexity panel should be omitted without Done tasks")
	}
}

func TestWritePage_Tabs(t *testing.T) {
	var buf bytes.Buffer
	if err := WritePage(context.Background(), &buf, tableSnapshot(), PageOptions{}); err != nil {
		t.Fatalf("WritePage failed: %v", err)
	}
	page := buf.String()

	tasks := strings.Index(page, `<section id="tasks" class="tab-panel active">`)
	dag := strings.Index(page, `<section id="dag" class="tab-panel">`)
	if tasks < 0 || dag < 0 {
		t.Fatalf("expected both tab panels in page")
	}
	if kpi := strings.Index(page, `<div class="kpi-grid">`); kpi < tasks || kpi > dag {
		t.Error("KPI cards should sit inside the Tasks tab")
	}
	if m := strings.Index(page, "dagMermaidContainer"); m < dag {
		t.Error("diagram should sit inside the DAG tab")
	}
	for _, want := range []string{`data-tab="tasks"`, `data-tab="dag"`, `id="taskTable"`} {
		if !strings.Contains(page, want) {
			t.Errorf("page missing %s", want)
		}
	}
}
