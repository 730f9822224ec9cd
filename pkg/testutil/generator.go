// Package testutil provides deterministic task-graph fixtures and a writer
// that materializes them as a tusk SQLite database.
package testutil

import (
	"fmt"
	"math/rand"

	"github.com/vanderheijden86/tuskdash/pkg/model"
)

// GraphFixture is an abstract dependency graph. Edge [a, b] means node a
// depends on node b.
type GraphFixture struct {
	Description string
	Size        int
	Edges       [][2]int
}

// GeneratorConfig controls snapshot generation.
type GeneratorConfig struct {
	Seed int64 // 0 uses 42
	// StatusMix is sampled per task (nil = all To Do).
	StatusMix []model.Status
	// ComplexityMix is sampled per task (nil = no complexity).
	ComplexityMix []model.Complexity
	// BlockerRate is the chance a task gets an external blocker.
	BlockerRate float64
}

// DefaultConfig returns a config suitable for most tests.
func DefaultConfig() GeneratorConfig {
	return GeneratorConfig{
		Seed:          42,
		StatusMix:     []model.Status{model.StatusToDo, model.StatusInProgress, model.StatusDone},
		ComplexityMix: []model.Complexity{model.ComplexityXS, model.ComplexityS, model.ComplexityM, model.ComplexityL, model.ComplexityXL},
		BlockerRate:   0.1,
	}
}

// Generator produces fixtures from a seeded source.
type Generator struct {
	cfg GeneratorConfig
	rng *rand.Rand
}

// New creates a Generator with the given config.
func New(cfg GeneratorConfig) *Generator {
	if cfg.Seed == 0 {
		cfg.Seed = 42
	}
	if len(cfg.StatusMix) == 0 {
		cfg.StatusMix = []model.Status{model.StatusToDo}
	}
	return &Generator{cfg: cfg, rng: rand.New(rand.NewSource(cfg.Seed))}
}

// NewDefault creates a Generator with default config.
func NewDefault() *Generator {
	return New(DefaultConfig())
}

// Chain: n1 depends on n0, n2 on n1, and so on.
func (g *Generator) Chain(size int) GraphFixture {
	edges := make([][2]int, 0, max(size-1, 0))
	for i := 1; i < size; i++ {
		edges = append(edges, [2]int{i, i - 1})
	}
	return GraphFixture{Description: fmt.Sprintf("chain of %d", size), Size: size, Edges: edges}
}

// Star: every spoke depends on the hub (node 0).
func (g *Generator) Star(spokes int) GraphFixture {
	edges := make([][2]int, spokes)
	for i := 1; i <= spokes; i++ {
		edges[i-1] = [2]int{i, 0}
	}
	return GraphFixture{Description: fmt.Sprintf("star with %d spokes", spokes), Size: spokes + 1, Edges: edges}
}

// Diamond: top depends on width middle nodes which all depend on bottom.
func (g *Generator) Diamond(width int) GraphFixture {
	if width < 1 {
		width = 1
	}
	size := width + 2
	edges := make([][2]int, 0, width*2)
	for i := 1; i <= width; i++ {
		edges = append(edges, [2]int{0, i}, [2]int{i, size - 1})
	}
	return GraphFixture{Description: fmt.Sprintf("diamond of width %d", width), Size: size, Edges: edges}
}

// Cycle: n0 -> n1 -> ... -> n0. Invalid as a plan but legal input.
func (g *Generator) Cycle(size int) GraphFixture {
	edges := make([][2]int, size)
	for i := 0; i < size; i++ {
		edges[i] = [2]int{i, (i + 1) % size}
	}
	return GraphFixture{Description: fmt.Sprintf("cycle of %d", size), Size: size, Edges: edges}
}

// Disconnected returns `components` chains of componentSize nodes each.
func (g *Generator) Disconnected(components, componentSize int) GraphFixture {
	var edges [][2]int
	for c := 0; c < components; c++ {
		base := c * componentSize
		for i := 1; i < componentSize; i++ {
			edges = append(edges, [2]int{base + i, base + i - 1})
		}
	}
	return GraphFixture{
		Description: fmt.Sprintf("%d chains of %d", components, componentSize),
		Size:        components * componentSize,
		Edges:       edges,
	}
}

// RandomDAG adds each backward edge i -> j (j < i) with probability density.
func (g *Generator) RandomDAG(size int, density float64) GraphFixture {
	var edges [][2]int
	for i := 1; i < size; i++ {
		for j := 0; j < i; j++ {
			if g.rng.Float64() < density {
				edges = append(edges, [2]int{i, j})
			}
		}
	}
	return GraphFixture{Description: fmt.Sprintf("random DAG of %d (density %.2f)", size, density), Size: size, Edges: edges}
}

// ToSnapshot turns a fixture into tasks with ids 1..Size, sampled statuses
// and complexities, blocking edges and occasional blockers.
func (g *Generator) ToSnapshot(gf GraphFixture) model.Snapshot {
	snap := model.Snapshot{Tasks: make([]model.Task, gf.Size)}
	for i := range snap.Tasks {
		t := model.Task{
			ID:      int64(i + 1),
			Summary: fmt.Sprintf("Task %d", i+1),
			Status:  g.cfg.StatusMix[g.rng.Intn(len(g.cfg.StatusMix))],
		}
		if n := len(g.cfg.ComplexityMix); n > 0 {
			t.Complexity = g.cfg.ComplexityMix[g.rng.Intn(n)]
		}
		snap.Tasks[i] = t

		if g.cfg.BlockerRate > 0 && g.rng.Float64() < g.cfg.BlockerRate {
			snap.Blockers = append(snap.Blockers, model.Blocker{
				ID:          int64(len(snap.Blockers) + 1),
				TaskID:      t.ID,
				Description: fmt.Sprintf("Waiting on %d", t.ID),
				BlockerType: "external",
				IsResolved:  g.rng.Intn(2) == 0,
			})
		}
	}
	for _, e := range gf.Edges {
		snap.Edges = append(snap.Edges, model.Edge{
			TaskID:           int64(e[0] + 1),
			DependsOnID:      int64(e[1] + 1),
			RelationshipType: model.RelBlocking,
		})
	}
	return snap
}

// QuickRandom returns a default-config random snapshot.
func QuickRandom(size int, density float64) model.Snapshot {
	g := NewDefault()
	return g.ToSnapshot(g.RandomDAG(size, density))
}
