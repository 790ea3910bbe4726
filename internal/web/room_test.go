package web

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestRoomRendersJoinFormInLobby(t *testing.T) {
	var buf bytes.Buffer
	page := RoomPage{RoomID: 3, Code: "ABCD", Status: "lobby", PlayerCount: 2, MaxPlayers: 50, QRPath: "/api/rooms/ABCD/qr"}
	if err := Room(page).Render(context.Background(), &buf); err != nil {
		t.Fatalf("render: %v", err)
	}
	html := buf.String()
	for _, want := range []string{`id="joinForm"`, `data-room-id="3"`, `/api/rooms/ABCD/qr`, "2 of 50 players"} {
		if !strings.Contains(html, want) {
			t.Fatalf("expected page to contain %q", want)
		}
	}
}

func TestRoomHidesJoinFormOnceStarted(t *testing.T) {
	var buf bytes.Buffer
	page := RoomPage{RoomID: 3, Code: "ABCD", Status: "guessing", PlayerCount: 5, MaxPlayers: 50}
	if err := Room(page).Render(context.Background(), &buf); err != nil {
		t.Fatalf("render: %v", err)
	}
	if strings.Contains(buf.String(), `id="joinForm"`) {
		t.Fatalf("expected no join form for a started room")
	}
}

func TestNotFoundEscapesCode(t *testing.T) {
	var buf bytes.Buffer
	if err := NotFound("<b>").Render(context.Background(), &buf); err != nil {
		t.Fatalf("render: %v", err)
	}
	if strings.Contains(buf.String(), "<b>") {
		t.Fatalf("expected code to be escaped")
	}
}
