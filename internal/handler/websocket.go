package handler

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/vkuznetsov/todolist/internal/engine"
	"github.com/vkuznetsov/todolist/internal/model"
)

// WebSocket configuration constants.
const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 16
)

// wsClient is one live gesture session: a connection, its outbound
// state queue, and the cancel that tears both down.
type wsClient struct {
	conn   *websocket.Conn
	send   chan model.StateMessage
	cancel context.CancelFunc
}

// WebSocketHandler runs one gesture session per connection: the
// browser sends user gestures as JSON frames and receives the full
// list state after each one. This is transport for a single session,
// not cross-tab synchronization.
type WebSocketHandler struct {
	upgrader   websocket.Upgrader
	sessions   *engine.Registry
	localOwner string
	logger     *zap.Logger
	mu         sync.RWMutex
	clients    map[*websocket.Conn]*wsClient
}

// NewWebSocketHandler creates a new WebSocketHandler instance.
func NewWebSocketHandler(sessions *engine.Registry, localOwner string, logger *zap.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(_ *http.Request) bool {
				return true // CORS policy is enforced by the middleware layer
			},
		},
		sessions:   sessions,
		localOwner: localOwner,
		logger:     logger,
		clients:    make(map[*websocket.Conn]*wsClient),
	}
}

// RegisterRoutes registers the WebSocket routes with the router.
func (h *WebSocketHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/ws", h.HandleSession).Methods(http.MethodGet)
}

// HandleSession upgrades the connection and starts a gesture session
// bound to the request's owner.
//
//nolint:contextcheck // intentional: the session outlives the HTTP request context
func (h *WebSocketHandler) HandleSession(w http.ResponseWriter, r *http.Request) {
	owner := ownerID(r, h.localOwner)

	// Load the owner's engine before upgrading so a store failure can
	// still produce a plain HTTP error.
	eng, err := h.sessions.Acquire(r.Context(), owner)
	if err != nil {
		h.logger.Error("failed to load todo list for session",
			zap.String("owner_id", owner),
			zap.Error(err),
		)
		http.Error(w, "failed to load todo list", http.StatusInternalServerError)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("failed to upgrade connection", zap.Error(err))
		return
	}

	// The request context dies when this handler returns; the session
	// needs its own lifetime.
	ctx, cancel := context.WithCancel(context.Background())

	client := &wsClient{
		conn:   conn,
		send:   make(chan model.StateMessage, sendBuffer),
		cancel: cancel,
	}

	h.mu.Lock()
	h.clients[conn] = client
	h.mu.Unlock()

	h.logger.Info("gesture session connected",
		zap.String("owner_id", owner),
		zap.String("remote_addr", conn.RemoteAddr().String()),
	)

	// Initial state push so the client can render without a gesture.
	client.send <- model.NewStateMessage(model.OpLoad, true, "", eng.State())

	go h.writePump(ctx, client)
	go h.readPump(ctx, client, eng)
}

// readPump reads gesture frames, applies them to the engine, and
// queues the resulting state for the writer.
func (h *WebSocketHandler) readPump(ctx context.Context, client *wsClient, eng *engine.Engine) {
	conn := client.conn

	defer func() {
		client.cancel()
		h.removeClient(conn)
		if err := conn.Close(); err != nil {
			h.logger.Debug("error closing connection", zap.Error(err))
		}
	}()

	conn.SetReadLimit(maxMessageSize)
	if err := conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		h.logger.Error("failed to set read deadline", zap.Error(err))
		return
	}

	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		select {
		case <-ctx.Done():
			return
		default:
			var gesture model.GestureMessage
			if err := conn.ReadJSON(&gesture); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					h.logger.Warn("websocket read error", zap.Error(err))
				}
				return
			}

			state := h.apply(ctx, eng, gesture)

			select {
			case client.send <- state:
			case <-ctx.Done():
				return
			}
		}
	}
}

// apply routes one gesture into the engine and builds the answering
// state frame.
func (h *WebSocketHandler) apply(ctx context.Context, eng *engine.Engine, gesture model.GestureMessage) model.StateMessage {
	var (
		applied bool
		errMsg  string
	)

	switch gesture.Op {
	case model.OpLoad:
		applied = true
	case model.OpAdd:
		created, err := eng.Add(ctx, gesture.Text)
		applied, errMsg = outcome(created != nil, err)
	case model.OpToggle:
		toggled, err := eng.Toggle(ctx, gesture.ID)
		applied, errMsg = outcome(toggled != nil, err)
	case model.OpBeginEdit:
		started, err := eng.BeginEdit(ctx, gesture.ID)
		applied, errMsg = outcome(started, err)
	case model.OpDraft:
		applied = eng.UpdateDraft(gesture.Text)
	case model.OpCommit:
		committed, err := eng.CommitEdit(ctx)
		applied, errMsg = outcome(committed != nil, err)
	case model.OpCancel, model.OpCancelOutside:
		// The outside-click gesture is just a cancel raised by the
		// presentation layer.
		applied = eng.State().EditingID != ""
		eng.CancelEdit()
	case model.OpDelete:
		err := eng.Delete(ctx, gesture.ID)
		applied, errMsg = outcome(err == nil, err)
	default:
		errMsg = "unknown op"
	}

	label := outcomeApplied
	switch {
	case errMsg != "":
		label = outcomeError
	case !applied:
		label = outcomeRejected
	}
	todoOperations.WithLabelValues(string(gesture.Op), label).Inc()

	return model.NewStateMessage(gesture.Op, applied, errMsg, eng.State())
}

// outcome folds an engine result into the applied flag and error text
// of a state frame.
func outcome(applied bool, err error) (bool, string) {
	if err != nil {
		return false, err.Error()
	}
	return applied, ""
}

// writePump sends queued state frames and keepalive pings.
func (h *WebSocketHandler) writePump(ctx context.Context, client *wsClient) {
	conn := client.conn
	pingTicker := time.NewTicker(pingPeriod)
	defer pingTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.sendCloseMessage(conn)
			return
		case state := <-client.send:
			if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := conn.WriteJSON(state); err != nil {
				h.logger.Debug("failed to send state", zap.Error(err))
				return
			}
		case <-pingTicker.C:
			if err := h.sendPing(conn); err != nil {
				h.logger.Debug("failed to send ping", zap.Error(err))
				return
			}
		}
	}
}

// sendPing sends a ping message to the connection.
func (h *WebSocketHandler) sendPing(conn *websocket.Conn) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteMessage(websocket.PingMessage, nil)
}

// sendCloseMessage sends a close message to the connection.
func (h *WebSocketHandler) sendCloseMessage(conn *websocket.Conn) {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		h.logger.Debug("failed to set write deadline for close", zap.Error(err))
		return
	}

	closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "server shutting down")
	if err := conn.WriteMessage(websocket.CloseMessage, closeMsg); err != nil {
		h.logger.Debug("failed to send close message", zap.Error(err))
	}
}

// removeClient removes a client from the clients map.
func (h *WebSocketHandler) removeClient(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if client, exists := h.clients[conn]; exists {
		client.cancel()
		delete(h.clients, conn)
		h.logger.Info("gesture session disconnected",
			zap.String("remote_addr", conn.RemoteAddr().String()),
		)
	}
}

// CloseAllConnections closes all active gesture sessions, used during
// graceful shutdown.
func (h *WebSocketHandler) CloseAllConnections() {
	h.mu.Lock()
	clients := make([]*wsClient, 0, len(h.clients))
	for _, client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.Unlock()

	// Cancel all session contexts first so writePump sends close
	// frames.
	for _, client := range clients {
		client.cancel()
	}

	// Give writePump goroutines time to send close messages.
	time.Sleep(100 * time.Millisecond)

	h.mu.Lock()
	for conn := range h.clients {
		if err := conn.Close(); err != nil {
			h.logger.Debug("error closing connection", zap.Error(err))
		}
		delete(h.clients, conn)
	}
	h.mu.Unlock()

	h.logger.Info("all gesture sessions closed")
}
