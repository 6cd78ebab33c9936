package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vkuznetsov/todolist/internal/model"
)

// MemoryStore implements Store with in-memory storage. It keeps
// creation order per owner so List returns todos the way they were
// added.
type MemoryStore struct {
	mu    sync.RWMutex
	todos map[string]model.Todo
	order []string
}

// NewMemoryStore creates a new MemoryStore instance.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		todos: make(map[string]model.Todo),
	}
}

// List returns all todos belonging to the given owner in creation order.
func (s *MemoryStore) List(ctx context.Context, ownerID string) ([]model.Todo, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("list todos: %w", ctx.Err())
	default:
	}

	if ownerID == "" {
		return nil, ErrInvalidOwner
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	todos := make([]model.Todo, 0, len(s.order))
	for _, id := range s.order {
		todo, exists := s.todos[id]
		if !exists {
			continue
		}
		if todo.OwnerID == ownerID {
			todos = append(todos, todo)
		}
	}

	return todos, nil
}

// Create durably stores a new todo and returns it with a generated ID.
func (s *MemoryStore) Create(ctx context.Context, todo *model.Todo) (*model.Todo, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("create todo: %w", ctx.Err())
	default:
	}

	if todo == nil {
		return nil, fmt.Errorf("create todo: %w", ErrNilTodo)
	}

	if todo.OwnerID == "" {
		return nil, ErrInvalidOwner
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	newTodo := model.Todo{
		ID:        uuid.New().String(),
		OwnerID:   todo.OwnerID,
		Text:      todo.Text,
		Completed: todo.Completed,
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.todos[newTodo.ID] = newTodo
	s.order = append(s.order, newTodo.ID)

	return &newTodo, nil
}

// Update applies the non-nil fields to an existing todo.
func (s *MemoryStore) Update(ctx context.Context, id string, fields Fields) (*model.Todo, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("update todo: %w", ctx.Err())
	default:
	}

	if id == "" {
		return nil, ErrInvalidID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.todos[id]
	if !exists {
		return nil, ErrNotFound
	}

	if fields.Text != nil {
		existing.Text = *fields.Text
	}
	if fields.Completed != nil {
		existing.Completed = *fields.Completed
	}
	existing.UpdatedAt = time.Now().UTC()

	s.todos[id] = existing

	return &existing, nil
}

// Delete removes a todo by ID. Missing IDs are ignored.
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("delete todo: %w", ctx.Err())
	default:
	}

	if id == "" {
		return ErrInvalidID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.todos[id]; !exists {
		return nil
	}

	delete(s.todos, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}

	return nil
}
