// Package engine owns the in-memory todo collection and the edit-mode
// state machine. Every mutation goes through the persistence store
// first; memory changes only after the store call succeeds, so the
// visible collection never diverges from durable state.
package engine

import (
	"context"
	"errors"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/vkuznetsov/todolist/internal/model"
	"github.com/vkuznetsov/todolist/internal/store"
)

// Engine errors.
var (
	// ErrNotInitialized is returned when an operation runs before
	// Initialize has completed. This is a sequencing bug in the
	// caller, not a user-facing condition.
	ErrNotInitialized = errors.New("engine not initialized")

	// ErrEmptyOwner is returned by Initialize for an empty owner ID.
	ErrEmptyOwner = errors.New("owner id must not be empty")
)

// Engine holds one owner's ordered todo collection together with the
// exclusive edit-mode state. At most one item is in edit mode at any
// time; toggling is blocked while an edit is active.
//
// All exported methods are safe for concurrent use. Each one runs as
// an atomic unit: the mutex is held across the persistence call, so a
// second mutation cannot interleave and leave memory and store
// inconsistent.
type Engine struct {
	store  store.Store
	logger *zap.Logger

	mu          sync.Mutex
	ownerID     string
	initialized bool
	collection  []model.Todo
	editingID   string
	editingText string
}

// New creates an Engine backed by the given store. The engine is not
// usable until Initialize has loaded an owner's collection.
func New(s store.Store, logger *zap.Logger) *Engine {
	return &Engine{
		store:  s,
		logger: logger,
	}
}

// Initialize loads the owner's todos from the store, replacing the
// collection wholesale and resetting the edit state. Calling it again
// with a different owner swaps the whole collection, which is how a
// re-login as another user is handled.
func (e *Engine) Initialize(ctx context.Context, ownerID string) error {
	if ownerID == "" {
		return ErrEmptyOwner
	}

	todos, err := e.store.List(ctx, ownerID)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.ownerID = ownerID
	e.collection = todos
	e.editingID = ""
	e.editingText = ""
	e.initialized = true

	e.logger.Debug("engine initialized",
		zap.String("owner_id", ownerID),
		zap.Int("todos", len(todos)),
	)

	return nil
}

// Add creates a new todo from text and appends it to the collection.
// Whitespace-only text is rejected as a no-op and both return values
// are nil; over-long text returns model.ErrTextTooLong. Append is the
// collection's only insertion point.
func (e *Engine) Add(ctx context.Context, text string) (*model.Todo, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.initialized {
		return nil, ErrNotInitialized
	}

	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, nil
	}

	todo := model.NewTodo(e.ownerID, trimmed)
	if err := todo.Validate(); err != nil {
		return nil, err
	}

	created, err := e.store.Create(ctx, &todo)
	if err != nil {
		e.logger.Warn("add todo: persistence failed", zap.Error(err))
		return nil, err
	}

	e.collection = append(e.collection, *created)

	return created, nil
}

// Toggle flips the completed flag on the matching todo. It is blocked
// while any item is being edited, and a no-op when the id is unknown;
// both cases return nil, nil.
func (e *Engine) Toggle(ctx context.Context, id string) (*model.Todo, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.initialized {
		return nil, ErrNotInitialized
	}

	if e.editingID != "" {
		return nil, nil
	}

	idx := e.indexOf(id)
	if idx < 0 {
		return nil, nil
	}

	return e.setCompleted(ctx, idx, !e.collection[idx].Completed)
}

// BeginEdit puts the matching todo into edit mode, seeding the draft
// with its current text. A completed todo is first flipped back to
// incomplete (persisted) so an edit always starts from an incomplete
// state. Starting an edit while another is active abandons the prior
// draft. Returns false without error when the id is unknown.
func (e *Engine) BeginEdit(ctx context.Context, id string) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.initialized {
		return false, ErrNotInitialized
	}

	idx := e.indexOf(id)
	if idx < 0 {
		return false, nil
	}

	if e.collection[idx].Completed {
		if _, err := e.setCompleted(ctx, idx, false); err != nil {
			return false, err
		}
	}

	e.editingID = id
	e.editingText = e.collection[idx].Text

	return true, nil
}

// UpdateDraft stores the live edit text without persisting it. It
// returns false when no edit is active.
func (e *Engine) UpdateDraft(text string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.initialized || e.editingID == "" {
		return false
	}

	e.editingText = text
	return true
}

// CommitEdit persists the trimmed draft as the editing todo's text and
// leaves edit mode. A whitespace-only draft rejects the commit as a
// no-op and the edit session stays open; both return values are nil.
// An over-long draft returns model.ErrTextTooLong, also keeping the
// session open. On a persistence failure the collection and the edit
// state are left untouched.
func (e *Engine) CommitEdit(ctx context.Context) (*model.Todo, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.initialized {
		return nil, ErrNotInitialized
	}

	if e.editingID == "" {
		return nil, nil
	}

	trimmed := strings.TrimSpace(e.editingText)
	if trimmed == "" {
		return nil, nil
	}
	if len(trimmed) > model.MaxTextLength {
		return nil, model.ErrTextTooLong
	}

	idx := e.indexOf(e.editingID)
	if idx < 0 {
		// Collection and edit state disagree; treat as cancel.
		e.editingID = ""
		e.editingText = ""
		return nil, nil
	}

	updated, err := e.store.Update(ctx, e.editingID, store.Fields{Text: &trimmed})
	if err != nil {
		e.logger.Warn("commit edit: persistence failed",
			zap.String("id", e.editingID),
			zap.Error(err),
		)
		return nil, err
	}

	e.collection[idx] = *updated
	e.editingID = ""
	e.editingText = ""

	return updated, nil
}

// CancelEdit leaves edit mode without persisting the draft. Calling it
// when no edit is active is a no-op.
func (e *Engine) CancelEdit() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.initialized {
		return
	}

	e.editingID = ""
	e.editingText = ""
}

// Delete removes the matching todo from the store and the collection.
// If the deleted todo was being edited, the edit is implicitly
// cancelled. Deleting an unknown id is a no-op that never reaches the
// store: the id may belong to another owner in a shared backend.
func (e *Engine) Delete(ctx context.Context, id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.initialized {
		return ErrNotInitialized
	}

	idx := e.indexOf(id)
	if idx < 0 {
		return nil
	}

	if err := e.store.Delete(ctx, id); err != nil {
		e.logger.Warn("delete todo: persistence failed",
			zap.String("id", id),
			zap.Error(err),
		)
		return err
	}

	e.collection = append(e.collection[:idx], e.collection[idx+1:]...)

	if e.editingID == id {
		e.editingID = ""
		e.editingText = ""
	}

	return nil
}

// State returns a snapshot of the collection and edit state for
// rendering. The returned slice is a copy; callers cannot mutate the
// engine through it.
func (e *Engine) State() model.ListState {
	e.mu.Lock()
	defer e.mu.Unlock()

	items := make([]model.Todo, len(e.collection))
	copy(items, e.collection)

	return model.ListState{
		Items:       items,
		EditingID:   e.editingID,
		EditingText: e.editingText,
	}
}

// OwnerID returns the owner loaded by the last Initialize, or the
// empty string before initialization.
func (e *Engine) OwnerID() string {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.ownerID
}

// indexOf returns the collection index for id, or -1. Callers hold the
// mutex.
func (e *Engine) indexOf(id string) int {
	for i := range e.collection {
		if e.collection[i].ID == id {
			return i
		}
	}
	return -1
}

// setCompleted persists the new completed flag and updates the
// collection in place. Callers hold the mutex.
func (e *Engine) setCompleted(ctx context.Context, idx int, completed bool) (*model.Todo, error) {
	id := e.collection[idx].ID

	updated, err := e.store.Update(ctx, id, store.Fields{Completed: &completed})
	if err != nil {
		e.logger.Warn("toggle todo: persistence failed",
			zap.String("id", id),
			zap.Error(err),
		)
		return nil, err
	}

	e.collection[idx] = *updated

	return updated, nil
}
