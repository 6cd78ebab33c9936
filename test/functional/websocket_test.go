//go:build functional

package functional

import (
	"context"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vkuznetsov/todolist/internal/model"
)

// wsSession wraps one gesture session against a running test server.
type wsSession struct {
	conn *websocket.Conn
	t    *testing.T
}

func dialSession(t *testing.T, ts *TestServer) *wsSession {
	t.Helper()

	dialer := websocket.Dialer{HandshakeTimeout: DefaultWebSocketTimeout}
	conn, resp, err := dialer.Dial(ts.WSURL+"/ws", nil)
	if err != nil {
		t.Fatalf("dialing gesture session: %v", err)
	}
	if resp != nil {
		resp.Body.Close()
	}

	t.Cleanup(func() { conn.Close() })
	return &wsSession{conn: conn, t: t}
}

func (s *wsSession) send(gesture model.GestureMessage) {
	s.t.Helper()

	if err := s.conn.WriteJSON(gesture); err != nil {
		s.t.Fatalf("sending gesture: %v", err)
	}
}

func (s *wsSession) recv() model.StateMessage {
	s.t.Helper()

	if err := s.conn.SetReadDeadline(time.Now().Add(DefaultWebSocketTimeout)); err != nil {
		s.t.Fatalf("setting read deadline: %v", err)
	}

	var msg model.StateMessage
	if err := s.conn.ReadJSON(&msg); err != nil {
		s.t.Fatalf("reading state frame: %v", err)
	}
	return msg
}

func TestFunctional_WebSocketInitialState(t *testing.T) {
	ts := NewTestServer(t)
	ts.Start()
	t.Cleanup(ts.Stop)

	session := dialSession(t, ts)

	msg := session.recv()
	if msg.Op != model.OpLoad {
		t.Errorf("first frame op = %s, want %s", msg.Op, model.OpLoad)
	}
	if !msg.Applied {
		t.Error("initial load should be applied")
	}
	if len(msg.State.Items) != 0 {
		t.Errorf("fresh server should have no todos, got %d", len(msg.State.Items))
	}
}

func TestFunctional_WebSocketGestureFlow(t *testing.T) {
	ts := NewTestServer(t)
	ts.Start()
	t.Cleanup(ts.Stop)

	session := dialSession(t, ts)
	session.recv() // initial load

	// Add
	session.send(model.GestureMessage{Op: model.OpAdd, Text: "walk the dog"})
	msg := session.recv()
	if !msg.Applied {
		t.Fatalf("add not applied: %q", msg.Error)
	}
	if len(msg.State.Items) != 1 {
		t.Fatalf("items = %d, want 1", len(msg.State.Items))
	}
	id := msg.State.Items[0].ID

	// Toggle
	session.send(model.GestureMessage{Op: model.OpToggle, ID: id})
	msg = session.recv()
	if !msg.Applied || !msg.State.Items[0].Completed {
		t.Error("toggle should complete the todo")
	}

	// Begin edit flips the completed flag back
	session.send(model.GestureMessage{Op: model.OpBeginEdit, ID: id})
	msg = session.recv()
	if !msg.Applied {
		t.Fatalf("begin_edit not applied: %q", msg.Error)
	}
	if msg.State.Items[0].Completed {
		t.Error("entering edit mode should clear the completed flag")
	}
	if msg.State.EditingID != id {
		t.Errorf("EditingID = %s, want %s", msg.State.EditingID, id)
	}

	// Draft and commit
	session.send(model.GestureMessage{Op: model.OpDraft, Text: "walk the cat"})
	msg = session.recv()
	if !msg.Applied || msg.State.EditingText != "walk the cat" {
		t.Error("draft should be held in the edit state")
	}

	session.send(model.GestureMessage{Op: model.OpCommit})
	msg = session.recv()
	if !msg.Applied {
		t.Fatalf("commit not applied: %q", msg.Error)
	}
	if msg.State.Items[0].Text != "walk the cat" {
		t.Errorf("text = %q, want %q", msg.State.Items[0].Text, "walk the cat")
	}
	if msg.State.EditingID != "" {
		t.Error("edit should be closed after commit")
	}

	// Delete
	session.send(model.GestureMessage{Op: model.OpDelete, ID: id})
	msg = session.recv()
	if !msg.Applied || len(msg.State.Items) != 0 {
		t.Error("delete should remove the todo")
	}
}

func TestFunctional_WebSocketOutsideClickCancels(t *testing.T) {
	ts := NewTestServer(t)
	ts.Start()
	t.Cleanup(ts.Stop)

	session := dialSession(t, ts)
	session.recv()

	session.send(model.GestureMessage{Op: model.OpAdd, Text: "task"})
	msg := session.recv()
	id := msg.State.Items[0].ID

	session.send(model.GestureMessage{Op: model.OpBeginEdit, ID: id})
	session.recv()
	session.send(model.GestureMessage{Op: model.OpDraft, Text: "half-typed"})
	session.recv()

	// A click outside the edit field abandons the draft
	session.send(model.GestureMessage{Op: model.OpCancelOutside})
	msg = session.recv()
	if !msg.Applied {
		t.Error("cancel_outside during an edit should be applied")
	}
	if msg.State.EditingID != "" {
		t.Error("edit should be closed")
	}
	if msg.State.Items[0].Text != "task" {
		t.Error("abandoned draft must not be saved")
	}
}

func TestFunctional_WebSocketAndRESTShareSession(t *testing.T) {
	// The gesture session and the REST surface drive the same
	// per-owner engine.
	ts := NewTestServer(t)
	ts.Start()
	t.Cleanup(ts.Stop)

	session := dialSession(t, ts)
	session.recv()

	session.send(model.GestureMessage{Op: model.OpAdd, Text: "from websocket"})
	msg := session.recv()
	if !msg.Applied {
		t.Fatalf("add not applied: %q", msg.Error)
	}

	client := NewHTTPClient(t, ts.BaseURL)
	state := listState(t, client, context.Background())
	if len(state.Items) != 1 || state.Items[0].Text != "from websocket" {
		t.Errorf("REST view = %+v, want the websocket-added todo", state.Items)
	}
}

func TestFunctional_WebSocketConcurrentSessions(t *testing.T) {
	// Two connections for the same owner both answer gestures; each
	// session sees its own frames.
	ts := NewTestServer(t)
	ts.Start()
	t.Cleanup(ts.Stop)

	first := dialSession(t, ts)
	first.recv()
	second := dialSession(t, ts)
	msg := second.recv()
	if msg.Op != model.OpLoad {
		t.Fatalf("second session first frame op = %s, want %s", msg.Op, model.OpLoad)
	}

	first.send(model.GestureMessage{Op: model.OpAdd, Text: "task"})
	msg = first.recv()
	if !msg.Applied {
		t.Fatalf("add not applied: %q", msg.Error)
	}

	// The second session sees the shared state on its next gesture
	second.send(model.GestureMessage{Op: model.OpLoad})
	msg = second.recv()
	if len(msg.State.Items) != 1 {
		t.Errorf("second session items = %d, want 1", len(msg.State.Items))
	}
}
