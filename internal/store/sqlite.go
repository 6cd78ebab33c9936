package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/vkuznetsov/todolist/internal/model"
)

// SQLiteStore implements Store on a single-file SQLite database. This
// is the local-device variant: the file lives next to the process and
// no network is involved.
type SQLiteStore struct {
	db *sql.DB
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS todos (
	id         TEXT PRIMARY KEY,
	owner_id   TEXT NOT NULL,
	text       TEXT NOT NULL,
	completed  INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_todos_owner ON todos(owner_id);
`

// NewSQLiteStore opens (creating if needed) the database file at path
// and ensures the schema exists.
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite store: path must not be empty")
	}

	// modernc.org/sqlite driver name is "sqlite".
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite store: open %s: %w", path, err)
	}

	// A single writer avoids SQLITE_BUSY under concurrent requests.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite store: migrate schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database file.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// List returns all todos belonging to the given owner in creation order.
func (s *SQLiteStore) List(ctx context.Context, ownerID string) ([]model.Todo, error) {
	if ownerID == "" {
		return nil, ErrInvalidOwner
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, owner_id, text, completed, created_at, updated_at
		FROM todos
		WHERE owner_id = ?
		ORDER BY created_at, id`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list todos: %w", err)
	}
	defer rows.Close()

	var todos []model.Todo
	for rows.Next() {
		var t model.Todo
		if err := rows.Scan(&t.ID, &t.OwnerID, &t.Text, &t.Completed, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("list todos: scan: %w", err)
		}
		todos = append(todos, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list todos: %w", err)
	}

	if todos == nil {
		todos = []model.Todo{}
	}

	return todos, nil
}

// Create durably stores a new todo and returns it with a generated ID.
func (s *SQLiteStore) Create(ctx context.Context, todo *model.Todo) (*model.Todo, error) {
	if todo == nil {
		return nil, fmt.Errorf("create todo: %w", ErrNilTodo)
	}

	if todo.OwnerID == "" {
		return nil, ErrInvalidOwner
	}

	now := time.Now().UTC()
	newTodo := model.Todo{
		ID:        uuid.New().String(),
		OwnerID:   todo.OwnerID,
		Text:      todo.Text,
		Completed: todo.Completed,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO todos (id, owner_id, text, completed, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		newTodo.ID, newTodo.OwnerID, newTodo.Text, newTodo.Completed,
		newTodo.CreatedAt, newTodo.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("create todo: %w", err)
	}

	return &newTodo, nil
}

// Update applies the non-nil fields to an existing todo.
func (s *SQLiteStore) Update(ctx context.Context, id string, fields Fields) (*model.Todo, error) {
	if id == "" {
		return nil, ErrInvalidID
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, owner_id, text, completed, created_at, updated_at
		FROM todos WHERE id = ?`, id)

	var t model.Todo
	err := row.Scan(&t.ID, &t.OwnerID, &t.Text, &t.Completed, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update todo: %w", err)
	}

	if fields.Text != nil {
		t.Text = *fields.Text
	}
	if fields.Completed != nil {
		t.Completed = *fields.Completed
	}
	t.UpdatedAt = time.Now().UTC()

	_, err = s.db.ExecContext(ctx, `
		UPDATE todos SET text = ?, completed = ?, updated_at = ?
		WHERE id = ?`,
		t.Text, t.Completed, t.UpdatedAt, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update todo: %w", err)
	}

	return &t, nil
}

// Delete removes a todo by ID. Missing IDs are ignored.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	if id == "" {
		return ErrInvalidID
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM todos WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete todo: %w", err)
	}

	return nil
}
