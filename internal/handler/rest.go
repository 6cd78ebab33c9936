package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/vkuznetsov/todolist/internal/engine"
	"github.com/vkuznetsov/todolist/internal/model"
	"github.com/vkuznetsov/todolist/internal/store"
)

// RESTHandler exposes the engine operations over HTTP. Validation and
// not-found no-ops are absorbed by the engine and reported here as 4xx
// statuses; persistence failures surface as 500 so the client can show
// a notification.
type RESTHandler struct {
	sessions   *engine.Registry
	localOwner string
	logger     *zap.Logger
}

// NewRESTHandler creates a new RESTHandler instance.
func NewRESTHandler(sessions *engine.Registry, localOwner string, logger *zap.Logger) *RESTHandler {
	return &RESTHandler{
		sessions:   sessions,
		localOwner: localOwner,
		logger:     logger,
	}
}

// textRequest is the JSON body carrying todo or draft text.
type textRequest struct {
	Text string `json:"text"`
}

// RegisterRoutes registers the REST API routes with the router.
func (h *RESTHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)
	router.HandleFunc("/ready", h.ReadyCheck).Methods(http.MethodGet)
	router.HandleFunc("/api/v1/todos", h.ListTodos).Methods(http.MethodGet)
	router.HandleFunc("/api/v1/todos", h.AddTodo).Methods(http.MethodPost)
	router.HandleFunc("/api/v1/todos/{id}/toggle", h.ToggleTodo).Methods(http.MethodPost)
	router.HandleFunc("/api/v1/todos/{id}/edit", h.BeginEdit).Methods(http.MethodPost)
	router.HandleFunc("/api/v1/todos/{id}", h.DeleteTodo).Methods(http.MethodDelete)
	router.HandleFunc("/api/v1/edit", h.UpdateDraft).Methods(http.MethodPut)
	router.HandleFunc("/api/v1/edit/commit", h.CommitEdit).Methods(http.MethodPost)
	router.HandleFunc("/api/v1/edit", h.CancelEdit).Methods(http.MethodDelete)
	router.HandleFunc("/api/v1/session", h.EndSession).Methods(http.MethodDelete)
}

// HealthCheck handles GET /health requests.
func (h *RESTHandler) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	response := HealthResponse{
		Status:  "healthy",
		Version: Version,
	}
	h.writeJSON(w, http.StatusOK, model.NewSuccessResponse(response))
}

// ReadyCheck handles GET /ready requests.
func (h *RESTHandler) ReadyCheck(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, model.NewSuccessResponse(ReadyResponse{Status: "ready"}))
}

// ListTodos handles GET /api/v1/todos requests, returning the full
// list state for rendering.
func (h *RESTHandler) ListTodos(w http.ResponseWriter, r *http.Request) {
	eng, ok := h.acquire(w, r)
	if !ok {
		return
	}

	h.writeJSON(w, http.StatusOK, model.NewSuccessResponse(eng.State()))
}

// AddTodo handles POST /api/v1/todos requests.
func (h *RESTHandler) AddTodo(w http.ResponseWriter, r *http.Request) {
	eng, ok := h.acquire(w, r)
	if !ok {
		return
	}

	var input textRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		h.logger.Warn("invalid request body", zap.Error(err))
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	created, err := eng.Add(r.Context(), input.Text)
	if errors.Is(err, model.ErrTextTooLong) {
		todoOperations.WithLabelValues(string(model.OpAdd), outcomeRejected).Inc()
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		todoOperations.WithLabelValues(string(model.OpAdd), outcomeError).Inc()
		h.handleEngineError(w, err, "add todo")
		return
	}

	if created == nil {
		todoOperations.WithLabelValues(string(model.OpAdd), outcomeRejected).Inc()
		h.writeError(w, http.StatusBadRequest, "text cannot be empty")
		return
	}

	todoOperations.WithLabelValues(string(model.OpAdd), outcomeApplied).Inc()
	h.writeJSON(w, http.StatusCreated, model.NewSuccessResponse(created))
}

// ToggleTodo handles POST /api/v1/todos/{id}/toggle requests. Toggling
// is blocked while an edit is active (409); unknown ids are 404.
func (h *RESTHandler) ToggleTodo(w http.ResponseWriter, r *http.Request) {
	eng, ok := h.acquire(w, r)
	if !ok {
		return
	}

	id := mux.Vars(r)["id"]

	toggled, err := eng.Toggle(r.Context(), id)
	if err != nil {
		todoOperations.WithLabelValues(string(model.OpToggle), outcomeError).Inc()
		h.handleEngineError(w, err, "toggle todo")
		return
	}

	if toggled == nil {
		todoOperations.WithLabelValues(string(model.OpToggle), outcomeRejected).Inc()
		if eng.State().EditingID != "" {
			h.writeError(w, http.StatusConflict, "toggle is blocked while editing")
			return
		}
		h.writeError(w, http.StatusNotFound, "todo not found")
		return
	}

	todoOperations.WithLabelValues(string(model.OpToggle), outcomeApplied).Inc()
	h.writeJSON(w, http.StatusOK, model.NewSuccessResponse(toggled))
}

// BeginEdit handles POST /api/v1/todos/{id}/edit requests.
func (h *RESTHandler) BeginEdit(w http.ResponseWriter, r *http.Request) {
	eng, ok := h.acquire(w, r)
	if !ok {
		return
	}

	id := mux.Vars(r)["id"]

	started, err := eng.BeginEdit(r.Context(), id)
	if err != nil {
		todoOperations.WithLabelValues(string(model.OpBeginEdit), outcomeError).Inc()
		h.handleEngineError(w, err, "begin edit")
		return
	}

	if !started {
		todoOperations.WithLabelValues(string(model.OpBeginEdit), outcomeRejected).Inc()
		h.writeError(w, http.StatusNotFound, "todo not found")
		return
	}

	todoOperations.WithLabelValues(string(model.OpBeginEdit), outcomeApplied).Inc()
	h.writeJSON(w, http.StatusOK, model.NewSuccessResponse(eng.State()))
}

// UpdateDraft handles PUT /api/v1/edit requests, storing the live
// draft text without persisting it.
func (h *RESTHandler) UpdateDraft(w http.ResponseWriter, r *http.Request) {
	eng, ok := h.acquire(w, r)
	if !ok {
		return
	}

	var input textRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		h.logger.Warn("invalid request body", zap.Error(err))
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if !eng.UpdateDraft(input.Text) {
		todoOperations.WithLabelValues(string(model.OpDraft), outcomeRejected).Inc()
		h.writeError(w, http.StatusConflict, "no edit in progress")
		return
	}

	todoOperations.WithLabelValues(string(model.OpDraft), outcomeApplied).Inc()
	h.writeJSON(w, http.StatusOK, model.NewSuccessResponse(eng.State()))
}

// CommitEdit handles POST /api/v1/edit/commit requests.
func (h *RESTHandler) CommitEdit(w http.ResponseWriter, r *http.Request) {
	eng, ok := h.acquire(w, r)
	if !ok {
		return
	}

	committed, err := eng.CommitEdit(r.Context())
	if errors.Is(err, model.ErrTextTooLong) {
		// Edit session stays open so the user can shorten the draft.
		todoOperations.WithLabelValues(string(model.OpCommit), outcomeRejected).Inc()
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		todoOperations.WithLabelValues(string(model.OpCommit), outcomeError).Inc()
		h.handleEngineError(w, err, "commit edit")
		return
	}

	if committed == nil {
		todoOperations.WithLabelValues(string(model.OpCommit), outcomeRejected).Inc()
		if eng.State().EditingID == "" {
			h.writeError(w, http.StatusConflict, "no edit in progress")
			return
		}
		// Edit session stays open on an empty draft.
		h.writeError(w, http.StatusBadRequest, "draft text cannot be empty")
		return
	}

	todoOperations.WithLabelValues(string(model.OpCommit), outcomeApplied).Inc()
	h.writeJSON(w, http.StatusOK, model.NewSuccessResponse(committed))
}

// CancelEdit handles DELETE /api/v1/edit requests. Cancelling when no
// edit is active is a no-op and still succeeds.
func (h *RESTHandler) CancelEdit(w http.ResponseWriter, r *http.Request) {
	eng, ok := h.acquire(w, r)
	if !ok {
		return
	}

	eng.CancelEdit()
	todoOperations.WithLabelValues(string(model.OpCancel), outcomeApplied).Inc()
	h.writeJSON(w, http.StatusNoContent, nil)
}

// DeleteTodo handles DELETE /api/v1/todos/{id} requests.
func (h *RESTHandler) DeleteTodo(w http.ResponseWriter, r *http.Request) {
	eng, ok := h.acquire(w, r)
	if !ok {
		return
	}

	id := mux.Vars(r)["id"]

	if err := eng.Delete(r.Context(), id); err != nil {
		todoOperations.WithLabelValues(string(model.OpDelete), outcomeError).Inc()
		h.handleEngineError(w, err, "delete todo")
		return
	}

	todoOperations.WithLabelValues(string(model.OpDelete), outcomeApplied).Inc()
	h.writeJSON(w, http.StatusNoContent, nil)
}

// EndSession handles DELETE /api/v1/session requests, discarding the
// owner's in-memory collection. Durable state is untouched; the next
// request reloads it from the store.
func (h *RESTHandler) EndSession(w http.ResponseWriter, r *http.Request) {
	h.sessions.Release(ownerID(r, h.localOwner))
	h.writeJSON(w, http.StatusNoContent, nil)
}

// acquire resolves the request's owner and returns its engine,
// initializing it on first use. On failure it writes the error
// response and returns false.
func (h *RESTHandler) acquire(w http.ResponseWriter, r *http.Request) (*engine.Engine, bool) {
	owner := ownerID(r, h.localOwner)

	eng, err := h.sessions.Acquire(r.Context(), owner)
	if err != nil {
		h.logger.Error("failed to load todo list",
			zap.String("owner_id", owner),
			zap.Error(err),
		)
		h.writeError(w, http.StatusInternalServerError, "failed to load todo list")
		return nil, false
	}

	return eng, true
}

// handleEngineError maps engine errors to HTTP responses.
func (h *RESTHandler) handleEngineError(w http.ResponseWriter, err error, operation string) {
	switch {
	case errors.Is(err, engine.ErrNotInitialized):
		h.logger.Error("engine used before initialization", zap.String("operation", operation))
		h.writeError(w, http.StatusInternalServerError, "session not initialized")
	case errors.Is(err, store.ErrNotFound):
		// Memory and store disagree about this id.
		h.writeError(w, http.StatusNotFound, "todo not found in store")
	default:
		h.logger.Error("persistence operation failed",
			zap.String("operation", operation),
			zap.Error(err),
		)
		h.writeError(w, http.StatusInternalServerError, "persistence failure")
	}
}

// writeJSON writes a JSON response with the given status code.
func (h *RESTHandler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if data == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", zap.Error(err))
	}
}

// writeError writes an error response with the given status code and message.
func (h *RESTHandler) writeError(w http.ResponseWriter, status int, message string) {
	response := model.ErrorResponse{
		Code:    status,
		Message: message,
	}
	h.writeJSON(w, status, response)
}
