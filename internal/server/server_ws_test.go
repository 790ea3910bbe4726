package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"association-party/internal/game"
)

func dialRoom(t *testing.T, ts *httptest.Server, roomID, userID any) *websocket.Conn {
	t.Helper()
	wsURL := fmt.Sprintf("ws%s/ws/rooms/%v?userId=%v", strings.TrimPrefix(ts.URL, "http"), roomID, userID)
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Skipf("skipping test; websocket dial unavailable: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestWebsocketWelcomeSnapshot(t *testing.T) {
	ts := startApp(t)
	room := createRoom(t, ts, "Host")

	conn := dialRoom(t, ts, room["roomId"], room["userId"])
	var state roomStatePayload
	if messageType := readWSMessage(t, conn, 5*time.Second, &state); messageType != msgRoomState {
		t.Fatalf("expected room_state first, got %s", messageType)
	}
	if state.Room.Code != room["code"] || state.Room.Status != "lobby" {
		t.Fatalf("unexpected snapshot %+v", state)
	}
}

func TestWebsocketRejectsStrangers(t *testing.T) {
	ts := startApp(t)
	room := createRoom(t, ts, "Host")

	conn := dialRoom(t, ts, room["roomId"], 9999)
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, _, err := conn.ReadMessage()
	var closeErr *websocket.CloseError
	if !errors.As(err, &closeErr) || closeErr.Code != websocket.ClosePolicyViolation {
		t.Fatalf("expected policy violation close, got %v", err)
	}
}

func TestWebsocketGameFlow(t *testing.T) {
	ts := startApp(t)
	room := createRoom(t, ts, "Host")
	code := room["code"].(string)
	host := dialRoom(t, ts, room["roomId"], room["userId"])

	players := make([]*websocket.Conn, 0, 4)
	for i := 0; i < 4; i++ {
		joined := decodeBody(t, joinRoom(t, ts, code, fmt.Sprintf("Player %d", i+1)))
		players = append(players, dialRoom(t, ts, room["roomId"], joined["userId"]))
	}
	for _, conn := range players {
		waitForWSMessage(t, conn, 5*time.Second, msgRoomState, nil)
	}

	writeWS(t, host, msgStartGame, startGamePayload{Items: []string{"Pizza", "Beach", "Guitar", "Volcano"}})
	for i, conn := range players {
		var assignment assignmentPayload
		waitForWSMessage(t, conn, 5*time.Second, msgAssignment, &assignment)
		if assignment.ItemName == "" {
			t.Fatalf("player %d got an empty assignment", i+1)
		}
		writeWS(t, conn, msgSubmitAssociation, associationPayload{Value: fmt.Sprintf("word %d", i+1)})
	}

	var round roundStartedPayload
	waitForWSMessage(t, host, 5*time.Second, msgRoundStarted, &round)
	if round.RoundNumber != 1 || len(round.Options) != 4 || len(round.EligibleUserIDs) != 3 {
		t.Fatalf("unexpected round %+v", round)
	}

	writeWS(t, players[0], "not_a_message", nil)
	var failure errorPayload
	waitForWSMessage(t, players[0], 5*time.Second, msgError, &failure)
	if failure.Message != "unknown message type" {
		t.Fatalf("unexpected error %q", failure.Message)
	}

	writeWS(t, host, msgSkipStage, nil)
	var votes votesRevealedPayload
	waitForWSMessage(t, players[1], 5*time.Second, msgVotesRevealed, &votes)
	if votes.RoundNumber != 1 {
		t.Fatalf("unexpected votes %+v", votes)
	}
}

// startedGame is a four player room already in the submitting phase, served
// over a live test server.
type startedGame struct {
	srv         *Server
	ts          *httptest.Server
	room        *game.Room
	players     []game.User
	assignments map[uint]uint
}

func startGameOverWS(t *testing.T) *startedGame {
	t.Helper()
	ctx := context.Background()
	srv, _ := newTestApp(t)
	ts := newTestServer(t, srv.Handler())
	t.Cleanup(ts.Close)

	room, _, err := srv.engine.CreateRoom(ctx, "Host")
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	g := &startedGame{srv: srv, ts: ts, room: room}
	for i := 0; i < 4; i++ {
		_, user, err := srv.engine.JoinRoom(ctx, room.Code, fmt.Sprintf("Player %d", i+1))
		if err != nil {
			t.Fatalf("join player %d: %v", i+1, err)
		}
		g.players = append(g.players, *user)
	}
	g.assignments, _, err = srv.engine.StartGame(ctx, room.ID, fourItems)
	if err != nil {
		t.Fatalf("start game: %v", err)
	}
	return g
}

// beginGuessing submits a word for every player and opens round one.
func (g *startedGame) beginGuessing(t *testing.T) *game.RoundView {
	t.Helper()
	ctx := context.Background()
	for _, player := range g.players {
		if _, err := g.srv.engine.SubmitAssociation(ctx, g.room.ID, player.ID, "word "+player.Nickname); err != nil {
			t.Fatalf("submit association: %v", err)
		}
	}
	round, err := g.srv.engine.BeginGuessing(ctx, g.room.ID)
	if err != nil {
		t.Fatalf("begin guessing: %v", err)
	}
	view, err := g.srv.engine.DescribeRound(ctx, g.room.ID, round)
	if err != nil {
		t.Fatalf("describe round: %v", err)
	}
	return view
}

func TestWebsocketWelcomeResendsAssignment(t *testing.T) {
	g := startGameOverWS(t)
	player := g.players[1]

	conn := dialRoom(t, g.ts, g.room.ID, player.ID)
	if messageType := readWSMessage(t, conn, 5*time.Second, nil); messageType != msgRoomState {
		t.Fatalf("expected room_state first, got %s", messageType)
	}
	var assignment assignmentPayload
	if messageType := readWSMessage(t, conn, 5*time.Second, &assignment); messageType != msgAssignment {
		t.Fatalf("expected assignment second, got %s", messageType)
	}
	if assignment.ItemID != g.assignments[player.ID] || assignment.ItemName == "" {
		t.Fatalf("unexpected assignment %+v, want item %d", assignment, g.assignments[player.ID])
	}
}

func TestWebsocketWelcomeResendsActiveRound(t *testing.T) {
	g := startGameOverWS(t)
	view := g.beginGuessing(t)

	conn := dialRoom(t, g.ts, g.room.ID, view.Eligible[0])
	if messageType := readWSMessage(t, conn, 5*time.Second, nil); messageType != msgRoomState {
		t.Fatalf("expected room_state first, got %s", messageType)
	}
	var round roundStartedPayload
	if messageType := readWSMessage(t, conn, 5*time.Second, &round); messageType != msgRoundStarted {
		t.Fatalf("expected round_started second, got %s", messageType)
	}
	if round.RoundNumber != 1 || round.Status != "active" || len(round.Options) != 4 || len(round.EligibleUserIDs) != 3 {
		t.Fatalf("unexpected round %+v", round)
	}
}

func TestWebsocketWelcomeOmitsClosedRound(t *testing.T) {
	ctx := context.Background()
	g := startGameOverWS(t)
	view := g.beginGuessing(t)

	if _, _, err := g.srv.engine.RevealVotes(ctx, g.room.ID); err != nil {
		t.Fatalf("reveal votes: %v", err)
	}
	voting := dialRoom(t, g.ts, g.room.ID, view.Eligible[0])
	assertWelcomeWithoutRound(t, voting)

	if _, err := g.srv.engine.RevealAnswer(ctx, g.room.ID); err != nil {
		t.Fatalf("reveal answer: %v", err)
	}
	revealed := dialRoom(t, g.ts, g.room.ID, view.Eligible[1])
	assertWelcomeWithoutRound(t, revealed)
}

func assertWelcomeWithoutRound(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	seen := drainWS(t, conn, 500*time.Millisecond)
	if len(seen) == 0 || seen[0] != msgRoomState {
		t.Fatalf("expected room_state first, got %v", seen)
	}
	for _, messageType := range seen {
		if messageType == msgRoundStarted {
			t.Fatalf("unexpected round_started for a closed round; seen=%v", seen)
		}
	}
}

// drainWS reads until the connection stays quiet for the given duration and
// returns the types it saw.
func drainWS(t *testing.T, conn *websocket.Conn, quiet time.Duration) []string {
	t.Helper()
	seen := make([]string, 0, 4)
	for {
		_ = conn.SetReadDeadline(time.Now().Add(quiet))
		_, data, err := conn.ReadMessage()
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				return seen
			}
			t.Fatalf("read websocket message: %v", err)
		}
		var msg recorded
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("decode websocket message: %v", err)
		}
		seen = append(seen, msg.Type)
	}
}

func writeWS(t *testing.T, conn *websocket.Conn, msgType string, payload any) {
	t.Helper()
	msg := map[string]any{"type": msgType}
	if payload != nil {
		msg["payload"] = payload
	}
	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("write websocket message: %v", err)
	}
}

// readWSMessage reads one message, decodes its payload into dest when given,
// and returns its type.
func readWSMessage(t *testing.T, conn *websocket.Conn, timeout time.Duration, dest any) string {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(timeout))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read websocket message: %v", err)
	}
	var msg recorded
	if err := json.Unmarshal(data, &msg); err != nil {
		return "invalid-json"
	}
	if dest != nil && len(msg.Payload) > 0 {
		if err := json.Unmarshal(msg.Payload, dest); err != nil {
			t.Fatalf("decode %s payload: %v", msg.Type, err)
		}
	}
	return msg.Type
}

// waitForWSMessage skips messages until one of the wanted type arrives.
func waitForWSMessage(t *testing.T, conn *websocket.Conn, timeout time.Duration, want string, dest any) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	seen := make([]string, 0, 8)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			t.Fatalf("timed out waiting for %s; seen=%v", want, seen)
		}
		_ = conn.SetReadDeadline(time.Now().Add(remaining))
		_, data, err := conn.ReadMessage()
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				t.Fatalf("timed out waiting for %s; seen=%v", want, seen)
			}
			t.Fatalf("read websocket message: %v", err)
		}
		var msg recorded
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("decode websocket message: %v", err)
		}
		seen = append(seen, msg.Type)
		if msg.Type != want {
			continue
		}
		if dest != nil {
			if err := json.Unmarshal(msg.Payload, dest); err != nil {
				t.Fatalf("decode %s payload: %v", want, err)
			}
		}
		return
	}
}
