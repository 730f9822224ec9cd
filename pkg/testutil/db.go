package testutil

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/vanderheijden86/tuskdash/pkg/model"
)

// Schema is the subset of the tusk schema the dashboard reads.
const Schema = `
CREATE TABLE tasks (
	id INTEGER PRIMARY KEY,
	summary TEXT NOT NULL,
	status TEXT NOT NULL,
	priority TEXT,
	complexity TEXT,
	domain TEXT,
	task_type TEXT,
	priority_score REAL
);
CREATE TABLE task_sessions (
	id INTEGER PRIMARY KEY,
	task_id INTEGER NOT NULL,
	tokens_in INTEGER,
	tokens_out INTEGER,
	cost_dollars REAL,
	duration_seconds REAL
);
CREATE TABLE acceptance_criteria (
	id INTEGER PRIMARY KEY,
	task_id INTEGER NOT NULL,
	is_completed INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE task_dependencies (
	task_id INTEGER NOT NULL,
	depends_on_id INTEGER NOT NULL,
	relationship_type TEXT
);
CREATE TABLE external_blockers (
	id INTEGER PRIMARY KEY,
	task_id INTEGER NOT NULL,
	description TEXT,
	blocker_type TEXT,
	is_resolved INTEGER NOT NULL DEFAULT 0
);
`

// WriteDB creates a tusk database at path holding snap. Session totals
// are stored on the first of SessionCount rows.
func WriteDB(path string, snap model.Snapshot) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create db dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	if _, err := db.Exec(Schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	for _, t := range snap.Tasks {
		var complexity any
		if t.Complexity != "" {
			complexity = string(t.Complexity)
		}
		if _, err = tx.Exec(`INSERT INTO tasks VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			t.ID, t.Summary, string(t.Status), t.Priority, complexity, t.Domain, t.TaskType, t.PriorityScore); err != nil {
			return fmt.Errorf("insert task %d: %w", t.ID, err)
		}
		for i := 0; i < t.SessionCount; i++ {
			var in, out int64
			var cost, dur float64
			if i == 0 {
				in, out, cost, dur = t.TokensIn, t.TokensOut, t.Cost, t.DurationSeconds
			}
			if _, err = tx.Exec(`INSERT INTO task_sessions (task_id, tokens_in, tokens_out, cost_dollars, duration_seconds)
				VALUES (?, ?, ?, ?, ?)`, t.ID, in, out, cost, dur); err != nil {
				return fmt.Errorf("insert session for %d: %w", t.ID, err)
			}
		}
		for i := 0; i < t.CriteriaTotal; i++ {
			done := 0
			if i < t.CriteriaDone {
				done = 1
			}
			if _, err = tx.Exec(`INSERT INTO acceptance_criteria (task_id, is_completed) VALUES (?, ?)`, t.ID, done); err != nil {
				return fmt.Errorf("insert criterion for %d: %w", t.ID, err)
			}
		}
	}
	for _, e := range snap.Edges {
		if _, err = tx.Exec(`INSERT INTO task_dependencies VALUES (?, ?, ?)`,
			e.TaskID, e.DependsOnID, string(e.RelationshipType)); err != nil {
			return fmt.Errorf("insert edge %d->%d: %w", e.TaskID, e.DependsOnID, err)
		}
	}
	for _, b := range snap.Blockers {
		if _, err = tx.Exec(`INSERT INTO external_blockers VALUES (?, ?, ?, ?, ?)`,
			b.ID, b.TaskID, b.Description, b.BlockerType, b.IsResolved); err != nil {
			return fmt.Errorf("insert blocker %d: %w", b.ID, err)
		}
	}
	return tx.Commit()
}
