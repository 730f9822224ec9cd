package dag

import (
	"github.com/vanderheijden86/tuskdash/pkg/metrics"
	"github.com/vanderheijden86/tuskdash/pkg/model"
)

// Formatter turns raw metrics into display strings. The dashboard passes
// format.Humanized; tests can pass anything.
type Formatter interface {
	Number(n int64) string
	Cost(dollars float64) string
	Duration(seconds float64) string
}

// BlockerRef is a blocker as listed in its task's sidebar.
type BlockerRef struct {
	ID          int64  `json:"id"`
	Description string `json:"description"`
	BlockerType string `json:"blocker_type"`
	IsResolved  bool   `json:"is_resolved"`
}

// TaskDetail is the sidebar record for one task node.
type TaskDetail struct {
	ID            int64        `json:"id"`
	Summary       string       `json:"summary"`
	Status        string       `json:"status"`
	Priority      *string      `json:"priority"`
	Complexity    *string      `json:"complexity"`
	Domain        *string      `json:"domain"`
	TaskType      *string      `json:"task_type"`
	PriorityScore *float64     `json:"priority_score"`
	Sessions      int          `json:"sessions"`
	TokensIn      string       `json:"tokens_in"`
	TokensOut     string       `json:"tokens_out"`
	Cost          string       `json:"cost"`
	Duration      string       `json:"duration"`
	CriteriaDone  int          `json:"criteria_done"`
	CriteriaTotal int          `json:"criteria_total"`
	Blockers      []BlockerRef `json:"blockers"`
}

// BlockerDetail is the sidebar record for one blocker node.
type BlockerDetail struct {
	ID          int64  `json:"id"`
	TaskID      int64  `json:"task_id"`
	Description string `json:"description"`
	BlockerType string `json:"blocker_type"`
	IsResolved  bool   `json:"is_resolved"`
}

// Payloads are the id-keyed lookups the page reads on node click.
type Payloads struct {
	Tasks    map[int64]TaskDetail
	Blockers map[int64]BlockerDetail
}

// PayloadBuilder projects visible entities into sidebar records.
type PayloadBuilder struct {
	Format Formatter
}

// NewPayloadBuilder returns a builder using f for metric display strings.
func NewPayloadBuilder(f Formatter) *PayloadBuilder {
	return &PayloadBuilder{Format: f}
}

// BuildVisible is Build over a filter result.
func (b *PayloadBuilder) BuildVisible(v Visible) Payloads {
	return b.Build(v.Tasks, v.Blockers)
}

// Build returns one record per task and per blocker. A task lists exactly
// the blockers from the given slice that point at it, in input order.
func (b *PayloadBuilder) Build(tasks []model.Task, blockers []model.Blocker) Payloads {
	defer metrics.Timer(metrics.PayloadBuild)()

	byTask := make(map[int64][]BlockerRef)
	out := Payloads{
		Tasks:    make(map[int64]TaskDetail, len(tasks)),
		Blockers: make(map[int64]BlockerDetail, len(blockers)),
	}
	for _, bl := range blockers {
		byTask[bl.TaskID] = append(byTask[bl.TaskID], BlockerRef{
			ID:          bl.ID,
			Description: bl.Description,
			BlockerType: bl.BlockerType,
			IsResolved:  bl.IsResolved,
		})
		out.Blockers[bl.ID] = BlockerDetail{
			ID:          bl.ID,
			TaskID:      bl.TaskID,
			Description: bl.Description,
			BlockerType: bl.BlockerType,
			IsResolved:  bl.IsResolved,
		}
	}

	for _, t := range tasks {
		refs := byTask[t.ID]
		if refs == nil {
			refs = []BlockerRef{}
		}
		var complexity *string
		if t.Complexity != "" {
			c := string(t.Complexity)
			complexity = &c
		}
		out.Tasks[t.ID] = TaskDetail{
			ID:            t.ID,
			Summary:       t.Summary,
			Status:        string(t.Status),
			Priority:      t.Priority,
			Complexity:    complexity,
			Domain:        t.Domain,
			TaskType:      t.TaskType,
			PriorityScore: t.PriorityScore,
			Sessions:      t.SessionCount,
			TokensIn:      b.Format.Number(t.TokensIn),
			TokensOut:     b.Format.Number(t.TokensOut),
			Cost:          b.Format.Cost(t.Cost),
			Duration:      b.Format.Duration(t.DurationSeconds),
			CriteriaDone:  t.CriteriaDone,
			CriteriaTotal: t.CriteriaTotal,
			Blockers:      refs,
		}
	}
	return out
}
