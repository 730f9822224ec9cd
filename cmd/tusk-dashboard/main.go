package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/pprof"
	"syscall"

	"github.com/atotto/clipboard"
	json "github.com/goccy/go-json"

	"github.com/vanderheijden86/tuskdash/internal/datasource"
	"github.com/vanderheijden86/tuskdash/pkg/config"
	"github.com/vanderheijden86/tuskdash/pkg/dag"
	"github.com/vanderheijden86/tuskdash/pkg/debug"
	"github.com/vanderheijden86/tuskdash/pkg/export"
	"github.com/vanderheijden86/tuskdash/pkg/metrics"
	"github.com/vanderheijden86/tuskdash/pkg/model"
	"github.com/vanderheijden86/tuskdash/pkg/report"
	"github.com/vanderheijden86/tuskdash/pkg/version"
	"github.com/vanderheijden86/tuskdash/pkg/watcher"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// copyToClipboard is swapped out in tests.
var copyToClipboard = clipboard.WriteAll

type options struct {
	db          string
	configPath  string
	out         string
	title       string
	mermaid     bool
	showAll     bool
	summary     bool
	copyMermaid bool
	watch       bool
	metrics     bool
	version     bool
	help        bool
	cpuProfile  string
}

func parseFlags(args []string, stderr io.Writer) (options, *flag.FlagSet, error) {
	var o options
	fs := flag.NewFlagSet("tusk-dashboard", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.db, "db", "", "Path to tusk/tasks.db (default: $TUSK_DB, config, or nearest tusk/tasks.db)")
	fs.StringVar(&o.configPath, "config", "", "Config file (default: $XDG_CONFIG_HOME/tusk-dashboard/config.yaml)")
	fs.StringVar(&o.out, "out", "", "Output HTML file (default from config)")
	fs.StringVar(&o.title, "title", "", "Page title (default from config)")
	fs.BoolVar(&o.mermaid, "mermaid", false, "Print the Mermaid diagram to stdout instead of writing the page")
	fs.BoolVar(&o.showAll, "show-all", false, "Include all-Done clusters in --mermaid, --summary and --copy-mermaid")
	fs.BoolVar(&o.summary, "summary", false, "Print a terminal summary of the visible graph")
	fs.BoolVar(&o.copyMermaid, "copy-mermaid", false, "Copy the Mermaid diagram to the clipboard")
	fs.BoolVar(&o.watch, "watch", false, "Regenerate the page whenever the database changes")
	fs.BoolVar(&o.metrics, "metrics", false, "Print timing metrics as JSON to stderr on exit")
	fs.BoolVar(&o.version, "version", false, "Show version")
	fs.BoolVar(&o.help, "help", false, "Show help")
	fs.StringVar(&o.cpuProfile, "cpu-profile", "", "Write CPU profile to file")
	err := fs.Parse(args)
	return o, fs, err
}

func run(args []string, stdout, stderr io.Writer) int {
	opts, fs, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() > 0 {
		fmt.Fprintf(stderr, "Error: unexpected arguments: %v\n", fs.Args())
		return 2
	}

	if opts.help {
		fmt.Fprintln(stdout, "Usage: tusk-dashboard [options]")
		fmt.Fprintln(stdout, "\nRender the tusk task dependency graph as an HTML dashboard.")
		fs.SetOutput(stdout)
		fs.PrintDefaults()
		return 0
	}
	if opts.version {
		fmt.Fprintf(stdout, "tusk-dashboard %s\n", version.Version)
		return 0
	}

	if opts.cpuProfile != "" {
		f, err := os.Create(opts.cpuProfile)
		if err != nil {
			fmt.Fprintf(stderr, "Could not create CPU profile: %v\n", err)
			return 1
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			fmt.Fprintf(stderr, "Could not start CPU profile: %v\n", err)
			return 1
		}
		defer pprof.StopCPUProfile()
	}
	if opts.metrics {
		defer printMetrics(stderr)
	}

	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error loading config: %v\n", err)
		return 1
	}
	if opts.out != "" {
		cfg.Output = opts.out
	}
	if opts.title != "" {
		cfg.Title = opts.title
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	dbPath, err := resolveDB(opts.db, cfg)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		fmt.Fprintln(stderr, "Run inside a project initialized with tusk, or pass --db.")
		return 1
	}
	debug.Log("database: %s", dbPath)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	snap, err := datasource.LoadSnapshot(ctx, dbPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error loading tasks: %v\n", err)
		return 1
	}
	if err := snap.Validate(); err != nil {
		fmt.Fprintf(stderr, "Warning: %v\n", err)
	}

	if opts.mermaid || opts.summary || opts.copyMermaid {
		return runInspect(opts, snap, stdout, stderr)
	}

	outPath := resolveOutput(cfg.Output, dbPath)
	pageOpts := export.PageOptions{Title: cfg.Title, MermaidCDN: cfg.MermaidCDN}
	if err := export.WritePageFile(ctx, outPath, snap, pageOpts); err != nil {
		fmt.Fprintf(stderr, "Error writing dashboard: %v\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "Dashboard written to %s\n", outPath)

	if opts.watch {
		if err := watchAndRegenerate(ctx, dbPath, outPath, cfg, pageOpts, stdout, stderr); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
	}
	return 0
}

// runInspect handles the modes that print or copy instead of writing a page.
func runInspect(opts options, snap model.Snapshot, stdout, stderr io.Writer) int {
	v := dag.FilterSnapshot(snap, opts.showAll)
	diagram := dag.Mermaid(v)

	if opts.mermaid {
		fmt.Fprintln(stdout, diagram)
	}
	if opts.summary {
		ropts := report.Options{}
		if f, ok := stdout.(*os.File); ok && report.IsTerminal(f) {
			ropts.Color = os.Getenv("NO_COLOR") == ""
			ropts.Width = report.TerminalWidth(f)
		}
		if err := report.Write(stdout, v, ropts); err != nil {
			fmt.Fprintf(stderr, "Error writing summary: %v\n", err)
			return 1
		}
	}
	if opts.copyMermaid {
		if err := copyToClipboard(diagram); err != nil {
			fmt.Fprintf(stderr, "Error copying to clipboard: %v\n", err)
			return 1
		}
		fmt.Fprintf(stderr, "Copied Mermaid diagram (%d tasks) to clipboard\n", len(v.Tasks))
	}
	return 0
}

func loadConfig(path string) (config.Config, error) {
	if path != "" {
		return config.LoadFrom(path)
	}
	return config.Load()
}

// resolveDB picks the database: --db, then $TUSK_DB, then the configured
// db_path if it exists, then the nearest tusk/tasks.db above cwd.
func resolveDB(flagPath string, cfg config.Config) (string, error) {
	if flagPath != "" {
		return datasource.DiscoverDB(datasource.DiscoveryOptions{Path: flagPath})
	}
	if os.Getenv("TUSK_DB") == "" && cfg.DBPath != "" {
		if p, err := datasource.DiscoverDB(datasource.DiscoveryOptions{Path: cfg.DBPath}); err == nil {
			return p, nil
		}
	}
	return datasource.DiscoverDB(datasource.DiscoveryOptions{
		Logger: func(msg string) { debug.Log("%s", msg) },
	})
}

// resolveOutput anchors a relative output path at the project root, the
// directory holding tusk/. A database outside a tusk/ directory leaves the
// path relative to the working directory.
func resolveOutput(out, dbPath string) string {
	if filepath.IsAbs(out) {
		return out
	}
	dir := filepath.Dir(dbPath)
	if filepath.Base(dir) != "tusk" {
		return out
	}
	return filepath.Join(filepath.Dir(dir), out)
}

func watchAndRegenerate(ctx context.Context, dbPath, outPath string, cfg config.Config,
	pageOpts export.PageOptions, stdout, stderr io.Writer) error {
	w, err := watcher.New(watcher.DatabasePaths(dbPath),
		watcher.WithDebounceDuration(cfg.Watch.Debounce()),
		watcher.WithPollInterval(cfg.Watch.PollInterval()),
		watcher.WithForcePoll(cfg.Watch.ForcePoll),
		watcher.WithOnError(func(err error) {
			fmt.Fprintf(stderr, "Watch error: %v\n", err)
		}),
	)
	if err != nil {
		return err
	}
	if err := w.Start(); err != nil {
		return err
	}
	defer w.Stop()

	mode := "fsnotify"
	if w.IsPolling() {
		mode = "polling"
	}
	fmt.Fprintf(stdout, "Watching %s (%s). Press Ctrl+C to stop.\n", dbPath, mode)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-w.Changed():
			snap, err := datasource.LoadSnapshot(ctx, dbPath)
			if err != nil {
				fmt.Fprintf(stderr, "Error reloading tasks: %v\n", err)
				continue
			}
			if err := export.WritePageFile(ctx, outPath, snap, pageOpts); err != nil {
				fmt.Fprintf(stderr, "Error writing dashboard: %v\n", err)
				continue
			}
			fmt.Fprintf(stdout, "Dashboard regenerated (%d tasks)\n", len(snap.Tasks))
		}
	}
}

func printMetrics(w io.Writer) {
	data, err := json.MarshalIndent(metrics.AllTimingStats(), "", "  ")
	if err != nil {
		fmt.Fprintf(w, "Error encoding metrics: %v\n", err)
		return
	}
	fmt.Fprintln(w, string(data))
}
