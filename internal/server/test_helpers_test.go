package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"association-party/internal/config"
	"association-party/internal/game"
	"association-party/internal/hub"
	"association-party/internal/store/memory"
)

func newTestServer(t *testing.T, handler http.Handler) *httptest.Server {
	t.Helper()
	listener, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Skipf("skipping test; listen unavailable: %v", err)
	}
	ts := &httptest.Server{
		Listener: listener,
		Config:   &http.Server{Handler: handler},
	}
	ts.Start()
	return ts
}

func newTestApp(t *testing.T) (*Server, *memory.Store) {
	t.Helper()
	store := memory.New(game.NewSeededRand(1, 2))
	engine := game.NewEngine(store, game.WithRand(game.NewSeededRand(5, 6)))
	registry := hub.New()
	t.Cleanup(registry.Close)
	return New(engine, registry, config.Default()), store
}

type recorded struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// recordingSession is a hub.Session that keeps every message it is sent.
type recordingSession struct {
	id     string
	userID uint

	mu       sync.Mutex
	messages []recorded
}

func (r *recordingSession) ID() string   { return r.id }
func (r *recordingSession) UserID() uint { return r.userID }
func (r *recordingSession) Close() error { return nil }

func (r *recordingSession) Send(data []byte) error {
	var msg recorded
	if err := json.Unmarshal(data, &msg); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, msg)
	return nil
}

func (r *recordingSession) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.messages))
	for _, msg := range r.messages {
		out = append(out, msg.Type)
	}
	return out
}

// last decodes the most recent message of the given type into dest.
func (r *recordingSession) last(t *testing.T, msgType string, dest any) bool {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.messages) - 1; i >= 0; i-- {
		if r.messages[i].Type != msgType {
			continue
		}
		if dest != nil {
			if err := json.Unmarshal(r.messages[i].Payload, dest); err != nil {
				t.Fatalf("decode %s payload: %v", msgType, err)
			}
		}
		return true
	}
	return false
}

func (r *recordingSession) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = nil
}

type table struct {
	srv     *Server
	store   *memory.Store
	roomID  uint
	host    actor
	players []actor
}

// newTable creates a lobby with a connected host and the given number of
// connected players.
func newTable(t *testing.T, players int) *table {
	t.Helper()
	ctx := context.Background()
	srv, store := newTestApp(t)
	room, host, err := srv.engine.CreateRoom(ctx, "Host")
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	tb := &table{srv: srv, store: store, roomID: room.ID}
	tb.host = tb.connect(host.ID)
	for i := 0; i < players; i++ {
		_, user, err := srv.engine.JoinRoom(ctx, room.Code, fmt.Sprintf("Player %d", i+1))
		if err != nil {
			t.Fatalf("join: %v", err)
		}
		tb.players = append(tb.players, tb.connect(user.ID))
	}
	return tb
}

func (tb *table) connect(userID uint) actor {
	session := &recordingSession{id: fmt.Sprintf("session-%d", userID), userID: userID}
	tb.srv.hub.Register(tb.roomID, session)
	return actor{roomID: tb.roomID, userID: userID, session: session}
}

func (tb *table) send(t *testing.T, who actor, msgType string, payload any) {
	t.Helper()
	msg := map[string]any{"type": msgType}
	if payload != nil {
		msg["payload"] = payload
	}
	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	tb.srv.handleMessage(context.Background(), who, data)
}

func (tb *table) everyone() []actor {
	return append([]actor{tb.host}, tb.players...)
}

func (tb *table) resetAll() {
	for _, who := range tb.everyone() {
		who.session.(*recordingSession).reset()
	}
}

func (tb *table) status(t *testing.T) game.RoomStatus {
	t.Helper()
	room, err := tb.store.RoomByID(context.Background(), tb.roomID)
	if err != nil {
		t.Fatalf("load room: %v", err)
	}
	return room.Status
}

func rec(who actor) *recordingSession {
	return who.session.(*recordingSession)
}

func doRequest(t *testing.T, ts *httptest.Server, method, path string, payload any) *http.Response {
	t.Helper()
	var body *bytes.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(data)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, ts.URL+path, body)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return body
}
