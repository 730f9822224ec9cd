package export

import (
	"bytes"
	"fmt"
	"html/template"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/vanderheijden86/tuskdash/pkg/debug"
	"github.com/vanderheijden86/tuskdash/pkg/format"
	"github.com/vanderheijden86/tuskdash/pkg/metrics"
	"github.com/vanderheijden86/tuskdash/pkg/model"
)

// ComplexityTiers lists the known tiers from smallest to largest.
var ComplexityTiers = []model.Complexity{
	model.ComplexityXS,
	model.ComplexityS,
	model.ComplexityM,
	model.ComplexityL,
	model.ComplexityXL,
}

// ExpectedSessions is the planned session range for each tier.
var ExpectedSessions = map[model.Complexity][2]float64{
	model.ComplexityXS: {0.5, 1},
	model.ComplexityS:  {1, 1.5},
	model.ComplexityM:  {1, 2},
	model.ComplexityL:  {3, 5},
	model.ComplexityXL: {5, 10},
}

// complexityRank orders tiers for sorting; unknown or empty tiers sort first.
func complexityRank(c model.Complexity) int {
	for i, tier := range ComplexityTiers {
		if tier == c {
			return i + 1
		}
	}
	return 0
}

// KPIs are the headline numbers shown above the task table.
type KPIs struct {
	TotalCost      float64
	TasksCompleted int
	TasksTotal     int
	// AvgCostPerTask averages over tasks with at least one session.
	AvgCostPerTask float64
	TokensIn       int64
	TokensOut      int64
}

// TotalTokens is TokensIn plus TokensOut.
func (k KPIs) TotalTokens() int64 {
	return k.TokensIn + k.TokensOut
}

// DepLink is one end of a dependency badge.
type DepLink struct {
	ID               int64
	RelationshipType model.RelationshipType
	// Summary is the linked task's summary, or "Task #N" when it is not in
	// the snapshot.
	Summary string
}

// TaskRow is a task plus the derived fields the table shows.
type TaskRow struct {
	Task      model.Task
	BlockedBy []DepLink
	Blocks    []DepLink
	Blockers  []model.Blocker
	CostHeat  string
}

// Expandable reports whether the row has a detail row to toggle.
func (r TaskRow) Expandable() bool {
	return r.Task.CriteriaTotal > 0 || len(r.Blockers) > 0
}

// ComplexityRow compares estimated and actual effort for one tier.
type ComplexityRow struct {
	Complexity model.Complexity
	TaskCount  int
	// AvgSessions is rounded to one decimal place.
	AvgSessions        float64
	AvgDurationSeconds float64
	AvgCost            float64
	ExpectedLow        float64
	ExpectedHigh       float64
}

// Exceeds reports whether the tier took more sessions than planned.
func (r ComplexityRow) Exceeds() bool {
	return r.AvgSessions > r.ExpectedHigh
}

// TasksData is everything the Tasks tab needs.
type TasksData struct {
	KPIs KPIs
	// Rows are ordered by cost descending, then by id.
	Rows []TaskRow
	// Complexity covers Done tasks only, one row per tier that has any.
	Complexity []ComplexityRow
	// Tiers lists the complexity values present, for the size filter.
	Tiers []model.Complexity
}

// BuildTasksData derives the task table, KPI cards and the estimate vs.
// actual breakdown from snap.
func BuildTasksData(snap model.Snapshot) TasksData {
	defer metrics.Timer(metrics.TableBuild)()

	data := TasksData{
		KPIs:       buildKPIs(snap.Tasks),
		Complexity: buildComplexityRows(snap.Tasks),
	}

	summaries := make(map[int64]string, len(snap.Tasks))
	maxCost := 0.0
	tiers := make(map[model.Complexity]bool)
	for _, t := range snap.Tasks {
		summaries[t.ID] = t.Summary
		maxCost = math.Max(maxCost, t.Cost)
		if t.Complexity != "" {
			tiers[t.Complexity] = true
		}
	}

	blockedBy := make(map[int64][]DepLink)
	blocks := make(map[int64][]DepLink)
	link := func(id int64, rel model.RelationshipType) DepLink {
		if rel == "" {
			rel = model.RelBlocking
		}
		summary, ok := summaries[id]
		if !ok {
			summary = "Task #" + strconv.FormatInt(id, 10)
		}
		return DepLink{ID: id, RelationshipType: rel, Summary: summary}
	}
	for _, e := range snap.Edges {
		blockedBy[e.TaskID] = append(blockedBy[e.TaskID], link(e.DependsOnID, e.RelationshipType))
		blocks[e.DependsOnID] = append(blocks[e.DependsOnID], link(e.TaskID, e.RelationshipType))
	}
	blockers := make(map[int64][]model.Blocker)
	for _, b := range snap.Blockers {
		blockers[b.TaskID] = append(blockers[b.TaskID], b)
	}

	data.Rows = make([]TaskRow, 0, len(snap.Tasks))
	for _, t := range snap.Tasks {
		row := TaskRow{
			Task:      t,
			BlockedBy: sortLinks(blockedBy[t.ID]),
			Blocks:    sortLinks(blocks[t.ID]),
			Blockers:  blockers[t.ID],
			CostHeat:  CostHeatClass(t.Cost, maxCost),
		}
		data.Rows = append(data.Rows, row)
	}
	sort.SliceStable(data.Rows, func(i, j int) bool {
		a, b := data.Rows[i].Task, data.Rows[j].Task
		if a.Cost != b.Cost {
			return a.Cost > b.Cost
		}
		return a.ID < b.ID
	})

	for _, tier := range ComplexityTiers {
		if tiers[tier] {
			data.Tiers = append(data.Tiers, tier)
		}
	}
	return data
}

func sortLinks(links []DepLink) []DepLink {
	sort.Slice(links, func(i, j int) bool { return links[i].ID < links[j].ID })
	return links
}

func buildKPIs(tasks []model.Task) KPIs {
	var k KPIs
	withSessions := 0
	for _, t := range tasks {
		k.TasksTotal++
		if t.Status.IsDone() {
			k.TasksCompleted++
		}
		if t.SessionCount > 0 {
			withSessions++
		}
		k.TotalCost += t.Cost
		k.TokensIn += t.TokensIn
		k.TokensOut += t.TokensOut
	}
	if withSessions > 0 {
		k.AvgCostPerTask = k.TotalCost / float64(withSessions)
	}
	return k
}

func buildComplexityRows(tasks []model.Task) []ComplexityRow {
	type acc struct {
		count          int
		sessions       int
		duration, cost float64
	}
	byTier := make(map[model.Complexity]*acc)
	for _, t := range tasks {
		if !t.Status.IsDone() || complexityRank(t.Complexity) == 0 {
			continue
		}
		a := byTier[t.Complexity]
		if a == nil {
			a = &acc{}
			byTier[t.Complexity] = a
		}
		a.count++
		a.sessions += t.SessionCount
		a.duration += t.DurationSeconds
		a.cost += t.Cost
	}

	var rows []ComplexityRow
	for _, tier := range ComplexityTiers {
		a := byTier[tier]
		if a == nil {
			continue
		}
		n := float64(a.count)
		expected := ExpectedSessions[tier]
		rows = append(rows, ComplexityRow{
			Complexity:         tier,
			TaskCount:          a.count,
			AvgSessions:        math.Round(float64(a.sessions)/n*10) / 10,
			AvgDurationSeconds: a.duration / n,
			AvgCost:            a.cost / n,
			ExpectedLow:        expected[0],
			ExpectedHigh:       expected[1],
		})
	}
	return rows
}

// CostHeatClass buckets cost relative to the most expensive task into
// cost-heat-1 through cost-heat-5. Costs under 10% of the maximum get no class.
func CostHeatClass(cost, maxCost float64) string {
	if maxCost <= 0 || cost <= 0 {
		return ""
	}
	ratio := cost / maxCost
	switch {
	case ratio < 0.10:
		return ""
	case ratio < 0.25:
		return "cost-heat-1"
	case ratio < 0.45:
		return "cost-heat-2"
	case ratio < 0.65:
		return "cost-heat-3"
	case ratio < 0.85:
		return "cost-heat-4"
	default:
		return "cost-heat-5"
	}
}

type kpiView struct {
	TotalCost      string
	TasksCompleted int
	TasksTotal     int
	AvgCost        string
	TotalTokens    string
	TokensIn       string
	TokensOut      string
}

type depView struct {
	ID      int64
	Type    string
	Summary string
}

type blockerView struct {
	ID          int64
	Description string
	Type        string
	Resolved    bool
}

type taskRowView struct {
	ID             int64
	Summary        string
	SearchText     string
	Status         string
	StatusClass    string
	Complexity     string
	ComplexitySort int
	WSJF           string
	WSJFSort       float64
	Cost           string
	CostSort       float64
	CostClass      string
	Sessions       int
	Duration       string
	DurationSort   float64
	Criteria       string
	CriteriaSort   float64
	CriteriaPct    int
	TokensIn       string
	TokensInSort   int64
	TokensOut      string
	TokensOutSort  int64
	Muted          bool
	Expandable     bool
	HasCriteria    bool
	BlockedBy      []depView
	Blocks         []depView
	Blockers       []blockerView
}

type complexityRowView struct {
	Complexity  string
	TaskCount   int
	Expected    string
	AvgSessions string
	AvgDuration string
	AvgCost     string
	Exceeds     bool
}

type tasksSectionView struct {
	KPIs       kpiView
	Rows       []taskRowView
	Complexity []complexityRowView
	Tiers      []string
}

func newDepViews(links []DepLink) []depView {
	views := make([]depView, 0, len(links))
	for _, l := range links {
		views = append(views, depView{ID: l.ID, Type: string(l.RelationshipType), Summary: l.Summary})
	}
	return views
}

// formatRange renders an expected session range like 1-1.5 or 3-5.
func formatRange(lo, hi float64) string {
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	return f(lo) + "–" + f(hi)
}

func newTasksSectionView(d TasksData) tasksSectionView {
	h := format.Humanized{}
	view := tasksSectionView{
		KPIs: kpiView{
			TotalCost:      h.Cost(d.KPIs.TotalCost),
			TasksCompleted: d.KPIs.TasksCompleted,
			TasksTotal:     d.KPIs.TasksTotal,
			AvgCost:        h.Cost(d.KPIs.AvgCostPerTask),
			TotalTokens:    format.TokensCompact(d.KPIs.TotalTokens()),
			TokensIn:       format.TokensCompact(d.KPIs.TokensIn),
			TokensOut:      format.TokensCompact(d.KPIs.TokensOut),
		},
	}

	for _, r := range d.Rows {
		t := r.Task
		v := taskRowView{
			ID:             t.ID,
			Summary:        t.Summary,
			SearchText:     strings.ToLower(t.Summary),
			Status:         string(t.Status),
			StatusClass:    "status-" + strings.ReplaceAll(strings.ToLower(string(t.Status)), " ", "-"),
			Complexity:     string(t.Complexity),
			ComplexitySort: complexityRank(t.Complexity),
			Cost:           h.Cost(t.Cost),
			CostSort:       t.Cost,
			CostClass:      strings.TrimSpace("col-cost " + r.CostHeat),
			Sessions:       t.SessionCount,
			DurationSort:   t.DurationSeconds,
			TokensIn:       format.TokensCompact(t.TokensIn),
			TokensInSort:   t.TokensIn,
			TokensOut:      format.TokensCompact(t.TokensOut),
			TokensOutSort:  t.TokensOut,
			Muted:          t.SessionCount == 0,
			Expandable:     r.Expandable(),
			HasCriteria:    t.CriteriaTotal > 0,
			BlockedBy:      newDepViews(r.BlockedBy),
			Blocks:         newDepViews(r.Blocks),
		}
		if t.PriorityScore != nil {
			v.WSJF = strconv.FormatFloat(*t.PriorityScore, 'f', -1, 64)
			v.WSJFSort = *t.PriorityScore
		}
		if t.DurationSeconds > 0 {
			v.Duration = h.Duration(t.DurationSeconds)
		}
		if t.CriteriaTotal > 0 {
			v.Criteria = fmt.Sprintf("%d/%d", t.CriteriaDone, t.CriteriaTotal)
			v.CriteriaSort = float64(t.CriteriaDone) / float64(t.CriteriaTotal)
			v.CriteriaPct = t.CriteriaDone * 100 / t.CriteriaTotal
		}
		for _, b := range r.Blockers {
			typ := b.BlockerType
			if typ == "" {
				typ = "external"
			}
			v.Blockers = append(v.Blockers, blockerView{
				ID:          b.ID,
				Description: b.Description,
				Type:        typ,
				Resolved:    b.IsResolved,
			})
		}
		view.Rows = append(view.Rows, v)
	}

	for _, c := range d.Complexity {
		view.Complexity = append(view.Complexity, complexityRowView{
			Complexity:  string(c.Complexity),
			TaskCount:   c.TaskCount,
			Expected:    formatRange(c.ExpectedLow, c.ExpectedHigh),
			AvgSessions: strconv.FormatFloat(c.AvgSessions, 'f', -1, 64),
			AvgDuration: h.Duration(c.AvgDurationSeconds),
			AvgCost:     h.Cost(c.AvgCost),
			Exceeds:     c.Exceeds(),
		})
	}
	for _, tier := range d.Tiers {
		view.Tiers = append(view.Tiers, string(tier))
	}
	return view
}

// RenderTasksSection returns the Tasks tab HTML fragment for snap.
func RenderTasksSection(snap model.Snapshot) (string, error) {
	d := BuildTasksData(snap)
	debug.Log("task table: %d rows, %d complexity tiers", len(d.Rows), len(d.Complexity))

	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, "tasks_section", newTasksSectionView(d)); err != nil {
		return "", fmt.Errorf("render task table: %w", err)
	}
	return buf.String(), nil
}

// tasksSection wraps RenderTasksSection for use as trusted page markup.
func tasksSection(snap model.Snapshot) (template.HTML, error) {
	s, err := RenderTasksSection(snap)
	return template.HTML(s), err
}
