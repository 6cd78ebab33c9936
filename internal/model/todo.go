// Package model defines data structures used throughout the application.
package model

import (
	"errors"
	"strings"
	"time"
)

// Validation errors for Todo.
var (
	ErrEmptyText   = errors.New("text cannot be empty or whitespace")
	ErrTextTooLong = errors.New("text cannot exceed 500 characters")
	ErrEmptyOwner  = errors.New("owner id cannot be empty")
)

// MaxTextLength is the longest accepted todo text.
const MaxTextLength = 500

// Todo represents a single to-do entry belonging to one owner.
type Todo struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Text      string    `json:"text"`
	Completed bool      `json:"completed"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewTodo builds an unpersisted todo for the given owner. The text is
// trimmed; the store assigns the ID on create.
func NewTodo(ownerID, text string) Todo {
	return Todo{
		OwnerID: ownerID,
		Text:    strings.TrimSpace(text),
	}
}

// Validate checks if the Todo has valid field values. Text is compared
// after trimming, so whitespace-only text is rejected.
func (t *Todo) Validate() error {
	if strings.TrimSpace(t.Text) == "" {
		return ErrEmptyText
	}

	if len(t.Text) > MaxTextLength {
		return ErrTextTooLong
	}

	if t.OwnerID == "" {
		return ErrEmptyOwner
	}

	return nil
}

// ListState is the renderable view of one owner's todo list: the
// ordered collection plus the edit-mode state. EditingID is empty when
// no item is being edited.
type ListState struct {
	Items       []Todo `json:"items"`
	EditingID   string `json:"editing_id,omitempty"`
	EditingText string `json:"editing_text,omitempty"`
}

// APIResponse is a generic wrapper for API responses.
type APIResponse[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// NewSuccessResponse creates a successful API response.
func NewSuccessResponse[T any](data T) APIResponse[T] {
	return APIResponse[T]{
		Success: true,
		Data:    data,
	}
}

// NewErrorResponse creates an error API response.
func NewErrorResponse[T any](errMsg string) APIResponse[T] {
	return APIResponse[T]{
		Success: false,
		Error:   errMsg,
	}
}

// ErrorResponse represents an error response structure.
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// GestureOp names a user gesture forwarded over the WebSocket session.
type GestureOp string

// Gesture operations accepted by the session handler.
const (
	OpLoad          GestureOp = "load"
	OpAdd           GestureOp = "add"
	OpToggle        GestureOp = "toggle"
	OpBeginEdit     GestureOp = "begin_edit"
	OpDraft         GestureOp = "draft"
	OpCommit        GestureOp = "commit"
	OpCancel        GestureOp = "cancel"
	OpCancelOutside GestureOp = "cancel_outside"
	OpDelete        GestureOp = "delete"
)

// GestureMessage is a client-to-server WebSocket frame carrying one
// user gesture. ID and Text are meaningful only for ops that need them.
type GestureMessage struct {
	Op   GestureOp `json:"op"`
	ID   string    `json:"id,omitempty"`
	Text string    `json:"text,omitempty"`
}

// StateMessage is a server-to-client WebSocket frame sent after each
// gesture: the op it answers, whether the engine applied it, and the
// resulting list state.
type StateMessage struct {
	Op        GestureOp `json:"op"`
	Applied   bool      `json:"applied"`
	Error     string    `json:"error,omitempty"`
	State     ListState `json:"state"`
	Timestamp time.Time `json:"timestamp"`
}

// NewStateMessage creates a state frame answering the given gesture.
func NewStateMessage(op GestureOp, applied bool, errMsg string, state ListState) StateMessage {
	return StateMessage{
		Op:        op,
		Applied:   applied,
		Error:     errMsg,
		State:     state,
		Timestamp: time.Now().UTC(),
	}
}
