// Package store provides durable storage for todo items, abstracting
// over the local single-file database and the shared remote store.
package store

import (
	"context"
	"errors"

	"github.com/vkuznetsov/todolist/internal/model"
)

// Store errors.
var (
	ErrNotFound     = errors.New("todo not found")
	ErrInvalidID    = errors.New("invalid todo ID")
	ErrInvalidOwner = errors.New("invalid owner ID")
	ErrNilTodo      = errors.New("todo cannot be nil")
)

// Fields names the todo fields a partial update may change. Nil
// pointers leave the corresponding field untouched.
type Fields struct {
	Text      *string
	Completed *bool
}

// Store defines the interface for todo persistence operations. It is a
// pass-through to durable storage and never caches; ordering the
// collection is the engine's job.
type Store interface {
	// List returns all todos belonging to the given owner in creation
	// order.
	List(ctx context.Context, ownerID string) ([]model.Todo, error)

	// Create durably writes a new todo and returns it with the
	// assigned ID.
	Create(ctx context.Context, todo *model.Todo) (*model.Todo, error)

	// Update applies the non-nil fields to an existing todo and
	// returns the updated record. Returns ErrNotFound when no record
	// has the given ID.
	Update(ctx context.Context, id string, fields Fields) (*model.Todo, error)

	// Delete removes a todo by ID. Deleting an ID that does not exist
	// is not an error.
	Delete(ctx context.Context, id string) error
}
