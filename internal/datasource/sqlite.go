package datasource

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"

	_ "modernc.org/sqlite"

	"github.com/vanderheijden86/tuskdash/pkg/debug"
	"github.com/vanderheijden86/tuskdash/pkg/metrics"
	"github.com/vanderheijden86/tuskdash/pkg/model"
)

// SQLiteReader provides read-only access to a tusk database.
type SQLiteReader struct {
	db   *sql.DB
	path string
}

// readOnlyDSN builds a file: URI for path. Characters that SQLite's URI
// parser treats specially ('?', '#', '%') are percent-encoded.
func readOnlyDSN(path string) string {
	escaped := (&url.URL{Path: path}).EscapedPath()
	return "file:" + escaped + "?mode=ro&_pragma=busy_timeout(5000)"
}

// NewSQLiteReader opens the database at path in read-only mode.
func NewSQLiteReader(path string) (*SQLiteReader, error) {
	if _, err := checkFile(path); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", readOnlyDSN(path))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA cache_size = -16000",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			debug.Log("pragma %q failed: %v", pragma, err)
		}
	}

	return &SQLiteReader{db: db, path: path}, nil
}

// Path returns the database path.
func (r *SQLiteReader) Path() string {
	return r.path
}

// Close closes the database connection.
func (r *SQLiteReader) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// LoadSnapshot reads tasks, dependencies and blockers in one transaction so
// they describe the same moment.
func (r *SQLiteReader) LoadSnapshot(ctx context.Context) (model.Snapshot, error) {
	defer metrics.Timer(metrics.SnapshotLoad)()
	defer debug.LogEnterExit("LoadSnapshot")()

	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("begin read: %w", err)
	}
	defer tx.Rollback()

	tables, err := listTables(ctx, tx)
	if err != nil {
		return model.Snapshot{}, err
	}
	if !tables["tasks"] {
		return model.Snapshot{}, fmt.Errorf("%s: missing tasks table", r.path)
	}

	var snap model.Snapshot
	if snap.Tasks, err = loadTasks(ctx, tx, tables); err != nil {
		return model.Snapshot{}, fmt.Errorf("load tasks: %w", err)
	}
	if tables["task_dependencies"] {
		if snap.Edges, err = loadEdges(ctx, tx); err != nil {
			return model.Snapshot{}, fmt.Errorf("load dependencies: %w", err)
		}
	}
	if tables["external_blockers"] {
		if snap.Blockers, err = loadBlockers(ctx, tx); err != nil {
			return model.Snapshot{}, fmt.Errorf("load blockers: %w", err)
		}
	}

	debug.Log("snapshot %s: %d tasks, %d edges, %d blockers",
		r.path, len(snap.Tasks), len(snap.Edges), len(snap.Blockers))
	return snap, nil
}

func listTables(ctx context.Context, tx *sql.Tx) (map[string]bool, error) {
	rows, err := tx.QueryContext(ctx, `SELECT name FROM sqlite_master WHERE type IN ('table', 'view')`)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	tables := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("list tables: %w", err)
		}
		tables[name] = true
	}
	return tables, rows.Err()
}

func loadTasks(ctx context.Context, tx *sql.Tx, tables map[string]bool) ([]model.Task, error) {
	sessions := `0, 0, 0, 0, 0`
	if tables["task_sessions"] {
		sessions = `
			(SELECT COUNT(*) FROM task_sessions s WHERE s.task_id = t.id),
			(SELECT COALESCE(SUM(s.tokens_in), 0) FROM task_sessions s WHERE s.task_id = t.id),
			(SELECT COALESCE(SUM(s.tokens_out), 0) FROM task_sessions s WHERE s.task_id = t.id),
			(SELECT COALESCE(SUM(s.cost_dollars), 0) FROM task_sessions s WHERE s.task_id = t.id),
			(SELECT COALESCE(SUM(s.duration_seconds), 0) FROM task_sessions s WHERE s.task_id = t.id)`
	}
	criteria := `0, 0`
	if tables["acceptance_criteria"] {
		criteria = `
			(SELECT COUNT(*) FROM acceptance_criteria c WHERE c.task_id = t.id AND c.is_completed = 1),
			(SELECT COUNT(*) FROM acceptance_criteria c WHERE c.task_id = t.id)`
	}

	query := `
		SELECT
			t.id, t.summary, t.status, t.priority, t.complexity, t.domain,
			t.task_type, t.priority_score,
			` + sessions + `,
			` + criteria + `
		FROM tasks t
		ORDER BY t.id`

	rows, err := tx.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []model.Task
	for rows.Next() {
		var (
			t                           model.Task
			summary, status, complexity sql.NullString
			priority, domain, taskType  sql.NullString
			priorityScore               sql.NullFloat64
			tokensIn, tokensOut         int64
			cost, duration              float64
		)
		if err := rows.Scan(
			&t.ID, &summary, &status, &priority, &complexity, &domain,
			&taskType, &priorityScore,
			&t.SessionCount, &tokensIn, &tokensOut, &cost, &duration,
			&t.CriteriaDone, &t.CriteriaTotal,
		); err != nil {
			return nil, err
		}

		t.Summary = summary.String
		t.Status = model.Status(status.String)
		t.Complexity = model.Complexity(complexity.String)
		t.Priority = nullString(priority)
		t.Domain = nullString(domain)
		t.TaskType = nullString(taskType)
		if priorityScore.Valid {
			v := priorityScore.Float64
			t.PriorityScore = &v
		}
		t.TokensIn = tokensIn
		t.TokensOut = tokensOut
		t.Cost = cost
		t.DurationSeconds = duration

		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func loadEdges(ctx context.Context, tx *sql.Tx) ([]model.Edge, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT task_id, depends_on_id, relationship_type
		FROM task_dependencies
		ORDER BY task_id, depends_on_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var edges []model.Edge
	for rows.Next() {
		var e model.Edge
		var rel sql.NullString
		if err := rows.Scan(&e.TaskID, &e.DependsOnID, &rel); err != nil {
			return nil, err
		}
		e.RelationshipType = model.RelBlocking
		if rel.Valid && rel.String != "" {
			e.RelationshipType = model.RelationshipType(rel.String)
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

func loadBlockers(ctx context.Context, tx *sql.Tx) ([]model.Blocker, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT id, task_id, description, blocker_type, is_resolved
		FROM external_blockers
		ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var blockers []model.Blocker
	for rows.Next() {
		var b model.Blocker
		var desc, btype sql.NullString
		var resolved sql.NullInt64
		if err := rows.Scan(&b.ID, &b.TaskID, &desc, &btype, &resolved); err != nil {
			return nil, err
		}
		b.Description = desc.String
		b.BlockerType = btype.String
		b.IsResolved = resolved.Valid && resolved.Int64 != 0
		blockers = append(blockers, b)
	}
	return blockers, rows.Err()
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

// LoadSnapshot opens path, reads one snapshot and closes the database.
func LoadSnapshot(ctx context.Context, path string) (model.Snapshot, error) {
	r, err := NewSQLiteReader(path)
	if err != nil {
		return model.Snapshot{}, err
	}
	defer r.Close()
	return r.LoadSnapshot(ctx)
}
