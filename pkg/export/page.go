package export

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"io"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vanderheijden86/tuskdash/pkg/config"
	"github.com/vanderheijden86/tuskdash/pkg/debug"
	"github.com/vanderheijden86/tuskdash/pkg/metrics"
	"github.com/vanderheijden86/tuskdash/pkg/model"
	"github.com/vanderheijden86/tuskdash/pkg/version"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.tmpl"))

// PageOptions controls the page chrome around the Tasks and DAG tabs.
type PageOptions struct {
	Title      string
	MermaidCDN string
	// Now stamps the page; time.Now when zero.
	Now time.Time
}

type pageView struct {
	Title        string
	MermaidCDN   string
	Generated    string
	Version      string
	TaskCount    int
	TasksSection template.HTML
	DAGSection   template.HTML
}

func (o PageOptions) withDefaults() PageOptions {
	if o.Title == "" {
		o.Title = config.DefaultTitle
	}
	if o.MermaidCDN == "" {
		o.MermaidCDN = config.DefaultMermaidCDN
	}
	if o.Now.IsZero() {
		o.Now = time.Now()
	}
	return o
}

// WritePage renders the full dashboard page for snap to w.
func WritePage(ctx context.Context, w io.Writer, snap model.Snapshot, opts PageOptions) error {
	defer metrics.Timer(metrics.PageRender)()
	opts = opts.withDefaults()

	view := pageView{
		Title:      opts.Title,
		MermaidCDN: opts.MermaidCDN,
		Generated:  opts.Now.Format("2006-01-02 15:04 MST"),
		Version:    version.Version,
		TaskCount:  len(snap.Tasks),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		section, err := RenderDAGSection(gctx, snap)
		view.DAGSection = template.HTML(section)
		return err
	})
	g.Go(func() error {
		if err := gctx.Err(); err != nil {
			return err
		}
		var err error
		view.TasksSection, err = tasksSection(snap)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	if err := templates.ExecuteTemplate(w, "page", view); err != nil {
		return fmt.Errorf("render page: %w", err)
	}
	return nil
}

// WritePageFile renders the page into a temp file next to path and renames
// it into place, so a browser reloading mid-write never sees a partial page.
func WritePageFile(ctx context.Context, path string, snap model.Snapshot, opts PageOptions) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := WritePage(ctx, tmp, snap, opts); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("chmod output: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename output: %w", err)
	}

	debug.Log("wrote %s", path)
	return nil
}
