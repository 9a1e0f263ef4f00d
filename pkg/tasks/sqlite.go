package tasks

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS tasks (
	id         TEXT PRIMARY KEY,
	status     TEXT NOT NULL,
	created_at TEXT NOT NULL,
	payload    BLOB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tasks_created_at ON tasks(created_at);
`

// SQLiteStore persists task snapshots to a SQLite database so completed
// work survives restarts. Each task is stored as a JSON payload with
// status and creation time denormalized for querying.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if necessary) the database at path and
// ensures the schema exists.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open task store: %w", err)
	}

	// The driver serializes writers; a single connection avoids
	// SQLITE_BUSY under concurrent saves.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize task store schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// SaveTask upserts the task's JSON snapshot.
func (s *SQLiteStore) SaveTask(task *Task) error {
	payload, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("encode task %s: %w", task.ID, err)
	}

	_, err = s.db.Exec(`
		INSERT INTO tasks (id, status, created_at, payload)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			payload = excluded.payload`,
		task.ID, task.Status, task.CreatedAt.UTC().Format(time.RFC3339Nano), payload)
	if err != nil {
		return fmt.Errorf("save task %s: %w", task.ID, err)
	}
	return nil
}

// LoadTask reads a task snapshot by id.
func (s *SQLiteStore) LoadTask(id string) (*Task, bool, error) {
	var payload []byte
	err := s.db.QueryRow(`SELECT payload FROM tasks WHERE id = ?`, id).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load task %s: %w", id, err)
	}

	var task Task
	if err := json.Unmarshal(payload, &task); err != nil {
		return nil, false, fmt.Errorf("decode task %s: %w", id, err)
	}
	return &task, true, nil
}

// ListTasks returns all tasks ordered by creation time, oldest first.
func (s *SQLiteStore) ListTasks() ([]*Task, error) {
	rows, err := s.db.Query(`SELECT payload FROM tasks ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var out []*Task
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan task row: %w", err)
		}
		var task Task
		if err := json.Unmarshal(payload, &task); err != nil {
			return nil, fmt.Errorf("decode task row: %w", err)
		}
		out = append(out, &task)
	}
	return out, rows.Err()
}

// DeleteTask removes the task with the given id.
func (s *SQLiteStore) DeleteTask(id string) error {
	if _, err := s.db.Exec(`DELETE FROM tasks WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete task %s: %w", id, err)
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
