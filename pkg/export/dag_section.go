// Package export renders the tusk dashboard as a self-contained HTML page.
package export

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"strings"

	json "github.com/goccy/go-json"
	"golang.org/x/sync/errgroup"

	"github.com/vanderheijden86/tuskdash/pkg/dag"
	"github.com/vanderheijden86/tuskdash/pkg/debug"
	"github.com/vanderheijden86/tuskdash/pkg/format"
	"github.com/vanderheijden86/tuskdash/pkg/model"
)

// DAGData is everything the DAG tab needs, computed once per snapshot.
type DAGData struct {
	Default        dag.Visible
	All            dag.Visible
	MermaidDefault string
	MermaidAll     string
	// Payloads cover the show-all visible set, a superset of the default
	// view, so a click on any node in either diagram finds its record.
	Payloads dag.Payloads
	// HasRelations is false when the snapshot has neither edges nor
	// blockers, in which case the page shows a hint.
	HasRelations bool
}

// BuildDAGData filters the snapshot for both views concurrently and
// serializes each. Payloads come from the show-all view so that nodes in
// either diagram resolve to a record.
func BuildDAGData(ctx context.Context, snap model.Snapshot) (DAGData, error) {
	data := DAGData{
		HasRelations: len(snap.Edges) > 0 || len(snap.Blockers) > 0,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		data.Default = dag.FilterSnapshot(snap, false)
		data.MermaidDefault = dag.Mermaid(data.Default)
		return nil
	})
	g.Go(func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		data.All = dag.FilterSnapshot(snap, true)
		data.MermaidAll = dag.Mermaid(data.All)
		data.Payloads = dag.NewPayloadBuilder(format.Humanized{}).BuildVisible(data.All)
		return nil
	})
	if err := g.Wait(); err != nil {
		return DAGData{}, fmt.Errorf("build DAG: %w", err)
	}

	debug.Log("DAG data: default %d/%d tasks, all %d tasks",
		len(data.Default.Tasks), len(snap.Tasks), len(data.All.Tasks))
	return data, nil
}

type dagSectionView struct {
	TaskJSON       template.JS
	BlockerJSON    template.JS
	MermaidDefault template.JS
	MermaidAll     template.JS
	ShowHint       bool
}

// scriptJSON encodes v for inlining in a <script> element.
func scriptJSON(v any) (template.JS, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return template.JS(strings.ReplaceAll(string(b), "</", `<\/`)), nil
}

func newDAGSectionView(d DAGData) (dagSectionView, error) {
	var (
		view dagSectionView
		err  error
	)
	if view.TaskJSON, err = scriptJSON(d.Payloads.Tasks); err != nil {
		return view, fmt.Errorf("encode task data: %w", err)
	}
	if view.BlockerJSON, err = scriptJSON(d.Payloads.Blockers); err != nil {
		return view, fmt.Errorf("encode blocker data: %w", err)
	}
	if view.MermaidDefault, err = scriptJSON(d.MermaidDefault); err != nil {
		return view, fmt.Errorf("encode diagram: %w", err)
	}
	if view.MermaidAll, err = scriptJSON(d.MermaidAll); err != nil {
		return view, fmt.Errorf("encode diagram: %w", err)
	}
	view.ShowHint = !d.HasRelations
	return view, nil
}

// RenderDAGSection returns the DAG tab HTML fragment for snap.
func RenderDAGSection(ctx context.Context, snap model.Snapshot) (string, error) {
	d, err := BuildDAGData(ctx, snap)
	if err != nil {
		return "", err
	}
	return renderDAGSection(d)
}

func renderDAGSection(d DAGData) (string, error) {
	view, err := newDAGSectionView(d)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, "dag_section", view); err != nil {
		return "", fmt.Errorf("render DAG section: %w", err)
	}
	return buf.String(), nil
}
