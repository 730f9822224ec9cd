// Package report prints the visible DAG as a compact terminal table.
package report

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"github.com/muesli/termenv"
	"golang.org/x/term"

	"github.com/vanderheijden86/tuskdash/pkg/dag"
	"github.com/vanderheijden86/tuskdash/pkg/format"
	"github.com/vanderheijden86/tuskdash/pkg/model"
)

// DefaultWidth is used when Options.Width is not positive.
const DefaultWidth = 100

const (
	idWidth     = 6
	statusWidth = 11
	sizeWidth   = 3
	tokensWidth = 7
	costWidth   = 10
	// separators between the six columns
	gaps = 5
)

// Options controls rendering.
type Options struct {
	Color bool
	Width int
}

type styles struct {
	todo, inProgress, done, muted, bold lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		todo:       r.NewStyle().Foreground(lipgloss.Color("#3b82f6")),
		inProgress: r.NewStyle().Foreground(lipgloss.Color("#f59e0b")),
		done:       r.NewStyle().Foreground(lipgloss.Color("#22c55e")),
		muted:      r.NewStyle().Foreground(lipgloss.Color("#9ca3af")),
		bold:       r.NewStyle().Bold(true),
	}
}

func (s styles) status(st model.Status) lipgloss.Style {
	switch st {
	case model.StatusToDo:
		return s.todo
	case model.StatusInProgress:
		return s.inProgress
	case model.StatusDone:
		return s.done
	default:
		return s.muted
	}
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// TerminalWidth returns f's column count, or DefaultWidth when unknown.
func TerminalWidth(f *os.File) int {
	w, _, err := term.GetSize(int(f.Fd()))
	if err != nil || w <= 0 {
		return DefaultWidth
	}
	return w
}

// Write prints one line per visible task followed by a totals line.
func Write(w io.Writer, v dag.Visible, opts Options) error {
	width := opts.Width
	if width <= 0 {
		width = DefaultWidth
	}

	r := lipgloss.NewRenderer(w)
	if opts.Color {
		r.SetColorProfile(termenv.TrueColor)
	} else {
		r.SetColorProfile(termenv.Ascii)
	}
	st := newStyles(r)

	openBlockers := make(map[int64]int)
	for _, b := range v.Blockers {
		if !b.IsResolved {
			openBlockers[b.TaskID]++
		}
	}

	summaryWidth := width - idWidth - statusWidth - sizeWidth - tokensWidth - costWidth - gaps
	if summaryWidth < 10 {
		summaryWidth = 10
	}

	cost := format.Humanized{}
	for _, t := range v.Tasks {
		size := string(t.Complexity)
		if size == "" {
			size = "-"
		}
		summary := t.Summary
		if n := openBlockers[t.ID]; n > 0 {
			summary = fmt.Sprintf("[%d blocked] %s", n, summary)
		}

		line := fmt.Sprintf("%s %s %s %s %s %s",
			runewidth.FillRight("#"+strconv.FormatInt(t.ID, 10), idWidth),
			st.status(t.Status).Render(runewidth.FillRight(string(t.Status), statusWidth)),
			runewidth.FillRight(size, sizeWidth),
			runewidth.FillLeft(format.TokensCompact(t.TokensIn+t.TokensOut), tokensWidth),
			runewidth.FillLeft(cost.Cost(t.Cost), costWidth),
			runewidth.Truncate(summary, summaryWidth, "..."),
		)
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}

	open := 0
	for _, n := range openBlockers {
		open += n
	}
	totals := fmt.Sprintf("%d tasks, %d edges, %d blockers (%d open)",
		len(v.Tasks), len(v.Edges), len(v.Blockers), open)
	_, err := fmt.Fprintln(w, st.bold.Render(totals))
	return err
}
