package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/steveyegge/taskql/internal/task"
)

// Dependency kinds stored in the deps table.
const (
	depDependsOn = "depends_on"
	depBlockedBy = "blocked_by"
)

// SQLite is an embedded SQLite index of tasks. It runs in WAL mode so
// queries can read while a sync writes.
type SQLite struct {
	conn *sql.DB
	path string
}

// OpenSQLite opens (creating if needed) the database at path and
// initializes its schema.
//
// The caller must call Close when done.
func OpenSQLite(path string) (*SQLite, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(8)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(5 * time.Minute)

	db := &SQLite{conn: conn, path: path}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := conn.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to run %s: %w", pragma, err)
		}
	}

	if err := db.InitSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

// Path returns the database file path.
func (db *SQLite) Path() string {
	return db.path
}

// Close checkpoints the WAL and closes the connection.
func (db *SQLite) Close() error {
	if db.conn == nil {
		return nil
	}

	// Best effort; the WAL is replayed on next open anyway.
	_, _ = db.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)")

	if err := db.conn.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	db.conn = nil
	return nil
}

// InitSchema creates the tables and indexes if they don't exist. It is
// idempotent.
func (db *SQLite) InitSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS tasks (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT ' ',
		priority INTEGER,          -- NULL means normal
		due_at TEXT,
		scheduled_at TEXT,
		start_at TEXT,
		frequency TEXT,            -- JSON object
		tags TEXT NOT NULL DEFAULT '[]', -- JSON array
		heading TEXT NOT NULL DEFAULT '',
		path TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS deps (
		task_id TEXT NOT NULL,
		other_id TEXT NOT NULL,
		type TEXT NOT NULL,        -- depends_on, blocked_by
		position INTEGER NOT NULL,
		PRIMARY KEY (task_id, other_id, type),
		FOREIGN KEY (task_id) REFERENCES tasks(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_tasks_due ON tasks(due_at);
	CREATE INDEX IF NOT EXISTS idx_tasks_path ON tasks(path);
	CREATE INDEX IF NOT EXISTS idx_deps_other ON deps(other_id);
	`

	if _, err := db.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

// UpsertTask inserts or replaces a task and its dependency lists.
func (db *SQLite) UpsertTask(ctx context.Context, t *task.Task) error {
	if err := t.Validate(); err != nil {
		return fmt.Errorf("invalid task: %w", err)
	}

	tagsJSON, err := json.Marshal(orEmpty(t.Tags))
	if err != nil {
		return fmt.Errorf("failed to marshal tags: %w", err)
	}

	var freq sql.NullString
	if t.Frequency != nil {
		data, err := json.Marshal(t.Frequency)
		if err != nil {
			return fmt.Errorf("failed to marshal frequency: %w", err)
		}
		freq = sql.NullString{String: string(data), Valid: true}
	}

	var priority sql.NullInt64
	if t.Priority != nil {
		priority = sql.NullInt64{Int64: int64(*t.Priority), Valid: true}
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
	INSERT INTO tasks (
		id, title, description, status, priority,
		due_at, scheduled_at, start_at, frequency,
		tags, heading, path, created_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		title = excluded.title,
		description = excluded.description,
		status = excluded.status,
		priority = excluded.priority,
		due_at = excluded.due_at,
		scheduled_at = excluded.scheduled_at,
		start_at = excluded.start_at,
		frequency = excluded.frequency,
		tags = excluded.tags,
		heading = excluded.heading,
		path = excluded.path,
		created_at = excluded.created_at,
		updated_at = excluded.updated_at
	`

	_, err = tx.ExecContext(ctx, query,
		t.ID,
		t.Title,
		t.Description,
		t.Status,
		priority,
		timeToNullString(t.DueAt),
		timeToNullString(t.ScheduledAt),
		timeToNullString(t.StartAt),
		freq,
		string(tagsJSON),
		t.Heading,
		t.Path,
		t.CreatedAt.Format(time.RFC3339Nano),
		t.UpdatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert task %s: %w", t.ID, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM deps WHERE task_id = ?`, t.ID); err != nil {
		return fmt.Errorf("failed to clear dependencies of %s: %w", t.ID, err)
	}
	for typ, ids := range map[string][]string{depDependsOn: t.DependsOn, depBlockedBy: t.BlockedBy} {
		for i, other := range ids {
			_, err := tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO deps (task_id, other_id, type, position) VALUES (?, ?, ?, ?)`,
				t.ID, other, typ, i)
			if err != nil {
				return fmt.Errorf("failed to insert dependency %s --%s--> %s: %w", t.ID, typ, other, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// DeleteTask removes a task and its dependency rows. Deleting a missing
// task is not an error.
func (db *SQLite) DeleteTask(ctx context.Context, id string) error {
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete task %s: %w", id, err)
	}
	return nil
}

// TaskCount returns the number of indexed tasks.
func (db *SQLite) TaskCount(ctx context.Context) (int, error) {
	var count int
	if err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM tasks").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to get task count: %w", err)
	}
	return count, nil
}

// TaskIDs returns the IDs of all indexed tasks in ascending order.
func (db *SQLite) TaskIDs(ctx context.Context) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx, "SELECT id FROM tasks ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to list task ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan task id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating task ids: %w", err)
	}
	return ids, nil
}

const selectTasks = `
	SELECT id, title, description, status, priority,
	       due_at, scheduled_at, start_at, frequency,
	       tags, heading, path, created_at, updated_at
	FROM tasks
`

// GetTask returns the task with the given ID, or ErrNotFound.
func (db *SQLite) GetTask(ctx context.Context, id string) (*task.Task, error) {
	rows, err := db.conn.QueryContext(ctx, selectTasks+" WHERE id = ?", id)
	if err != nil {
		return nil, fmt.Errorf("failed to query task %s: %w", id, err)
	}
	defer rows.Close()

	tasks, err := scanTasks(rows)
	if err != nil {
		return nil, err
	}
	if len(tasks) == 0 {
		return nil, fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	if err := db.attachDeps(ctx, tasks); err != nil {
		return nil, err
	}
	return tasks[0], nil
}

// AllTasks returns every indexed task ordered by ID.
func (db *SQLite) AllTasks(ctx context.Context) ([]*task.Task, error) {
	rows, err := db.conn.QueryContext(ctx, selectTasks+" ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer rows.Close()

	tasks, err := scanTasks(rows)
	if err != nil {
		return nil, err
	}
	if err := db.attachDeps(ctx, tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// attachDeps fills DependsOn and BlockedBy from the deps table.
func (db *SQLite) attachDeps(ctx context.Context, tasks []*task.Task) error {
	if len(tasks) == 0 {
		return nil
	}

	byID := make(map[string]*task.Task, len(tasks))
	for _, t := range tasks {
		byID[t.ID] = t
	}

	rows, err := db.conn.QueryContext(ctx, `SELECT task_id, other_id, type FROM deps ORDER BY task_id, type, position`)
	if err != nil {
		return fmt.Errorf("failed to query dependencies: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, other, typ string
		if err := rows.Scan(&id, &other, &typ); err != nil {
			return fmt.Errorf("failed to scan dependency: %w", err)
		}
		t, ok := byID[id]
		if !ok {
			continue
		}
		switch typ {
		case depDependsOn:
			t.DependsOn = append(t.DependsOn, other)
		case depBlockedBy:
			t.BlockedBy = append(t.BlockedBy, other)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating dependencies: %w", err)
	}
	return nil
}

func scanTasks(rows *sql.Rows) ([]*task.Task, error) {
	var tasks []*task.Task

	for rows.Next() {
		var t task.Task
		var priority sql.NullInt64
		var dueAt, scheduledAt, startAt, freq sql.NullString
		var tagsJSON, createdAt, updatedAt string

		err := rows.Scan(
			&t.ID,
			&t.Title,
			&t.Description,
			&t.Status,
			&priority,
			&dueAt,
			&scheduledAt,
			&startAt,
			&freq,
			&tagsJSON,
			&t.Heading,
			&t.Path,
			&createdAt,
			&updatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}

		if priority.Valid {
			t.Priority = task.Priority(priority.Int64).Ptr()
		}
		t.DueAt = nullStringToTime(dueAt)
		t.ScheduledAt = nullStringToTime(scheduledAt)
		t.StartAt = nullStringToTime(startAt)

		if freq.Valid {
			var f task.Frequency
			if err := json.Unmarshal([]byte(freq.String), &f); err != nil {
				return nil, fmt.Errorf("failed to unmarshal frequency of %s: %w", t.ID, err)
			}
			t.Frequency = &f
		}

		if err := json.Unmarshal([]byte(tagsJSON), &t.Tags); err != nil {
			return nil, fmt.Errorf("failed to unmarshal tags of %s: %w", t.ID, err)
		}
		if len(t.Tags) == 0 {
			t.Tags = nil
		}

		if ts, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
			t.CreatedAt = ts
		}
		if ts, err := time.Parse(time.RFC3339Nano, updatedAt); err == nil {
			t.UpdatedAt = ts
		}

		tasks = append(tasks, &t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tasks: %w", err)
	}
	return tasks, nil
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func timeToNullString(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.Format(time.RFC3339Nano), Valid: true}
}

func nullStringToTime(ns sql.NullString) *time.Time {
	if !ns.Valid {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, ns.String)
	if err != nil {
		return nil
	}
	return &t
}
