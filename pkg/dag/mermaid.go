package dag

import (
	"strconv"
	"strings"

	"github.com/vanderheijden86/tuskdash/pkg/metrics"
	"github.com/vanderheijden86/tuskdash/pkg/model"
)

// Label limits, in runes.
const (
	maxSummaryLen     = 40
	maxDescriptionLen = 35
	ellipsis          = "..."
)

// Click callbacks bound to nodes; the page defines them.
const (
	TaskCallback    = "dagShowSidebar"
	BlockerCallback = "dagShowBlockerSidebar"
)

// defaultBlockerType labels blockers recorded without a type.
const defaultBlockerType = "external"

var classDefs = []string{
	"classDef todo fill:#3b82f6,stroke:#2563eb,color:#fff",
	"classDef inprogress fill:#f59e0b,stroke:#d97706,color:#fff",
	"classDef done fill:#22c55e,stroke:#16a34a,color:#fff",
	"classDef blocker fill:#ef4444,stroke:#dc2626,color:#fff",
	"classDef blockerResolved fill:#9ca3af,stroke:#6b7280,color:#fff",
}

// Mermaid renders v as a left-to-right Mermaid flowchart.
//
// Output order is fixed: task nodes, blocker nodes, dependency links,
// blocker links, task click bindings, blocker click bindings, each in input
// order. The same Visible always yields the same bytes.
func Mermaid(v Visible) string {
	defer metrics.Timer(metrics.DiagramRender)()

	var sb strings.Builder
	line := func(parts ...string) {
		sb.WriteString("\n    ")
		for _, p := range parts {
			sb.WriteString(p)
		}
	}

	sb.WriteString("graph LR")
	for _, def := range classDefs {
		line(def)
	}

	for _, t := range v.Tasks {
		id := taskNodeID(t.ID)
		label := "#" + strconv.FormatInt(t.ID, 10) + ": " + quoteSafe(truncateLabel(t.Summary, maxSummaryLen))
		openDelim, closeDelim := taskShape(t.Complexity)
		line(id, openDelim, `"`, label, `"`, closeDelim)
		if class := statusClass(t.Status); class != "" {
			line("class ", id, " ", class)
		}
	}

	for _, b := range v.Blockers {
		id := blockerNodeID(b.ID)
		btype := b.BlockerType
		if btype == "" {
			btype = defaultBlockerType
		}
		label := btype + ": " + quoteSafe(truncateLabel(b.Description, maxDescriptionLen))
		line(id, `>"`, label, `"]`)
		if b.IsResolved {
			line("class ", id, " blockerResolved")
		} else {
			line("class ", id, " blocker")
		}
	}

	for _, e := range v.Edges {
		arrow := " --> "
		if e.RelationshipType == model.RelContingent {
			arrow = " -.-> "
		}
		line(taskNodeID(e.DependsOnID), arrow, taskNodeID(e.TaskID))
	}

	for _, b := range v.Blockers {
		line(blockerNodeID(b.ID), " -.-x ", taskNodeID(b.TaskID))
	}

	for _, t := range v.Tasks {
		line("click ", taskNodeID(t.ID), " ", TaskCallback)
	}
	for _, b := range v.Blockers {
		line("click ", blockerNodeID(b.ID), " ", BlockerCallback)
	}

	return sb.String()
}

func taskNodeID(id int64) string {
	return "T" + strconv.FormatInt(id, 10)
}

func blockerNodeID(id int64) string {
	return "B" + strconv.FormatInt(id, 10)
}

// taskShape returns the Mermaid delimiters for a node sized by complexity.
// Unestimated tasks draw like S.
func taskShape(c model.Complexity) (openDelim, closeDelim string) {
	switch c {
	case "", model.ComplexityXS, model.ComplexityS:
		return "[", "]"
	case model.ComplexityM:
		return "(", ")"
	default:
		return "{{", "}}"
	}
}

func statusClass(s model.Status) string {
	switch s {
	case model.StatusToDo:
		return "todo"
	case model.StatusInProgress:
		return "inprogress"
	case model.StatusDone:
		return "done"
	}
	return ""
}

// truncateLabel cuts s to limit-3 runes plus "..." when it is longer than limit.
func truncateLabel(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit-len(ellipsis)]) + ellipsis
}

var labelReplacer = strings.NewReplacer(
	`"`, "'",
	"\r\n", " ",
	"\n", " ",
	"\r", " ",
)

// quoteSafe swaps double quotes for single quotes so the label stays inside
// Mermaid's quoted string, and folds line breaks so it stays on one line.
func quoteSafe(s string) string {
	return labelReplacer.Replace(s)
}
