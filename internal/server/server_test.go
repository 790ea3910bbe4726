package server

import (
	"bytes"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func startApp(t *testing.T) *httptest.Server {
	t.Helper()
	srv, _ := newTestApp(t)
	ts := newTestServer(t, srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func createRoom(t *testing.T, ts *httptest.Server, nickname string) map[string]any {
	t.Helper()
	resp := doRequest(t, ts, http.MethodPost, "/api/rooms", map[string]string{"nickname": nickname})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201 creating room, got %d", resp.StatusCode)
	}
	return decodeBody(t, resp)
}

func joinRoom(t *testing.T, ts *httptest.Server, code, nickname string) *http.Response {
	t.Helper()
	return doRequest(t, ts, http.MethodPost, "/api/rooms/"+code+"/join", map[string]string{"nickname": nickname})
}

func assertString(t *testing.T, body map[string]any, key, expected string) {
	t.Helper()
	value, ok := body[key].(string)
	if !ok {
		t.Fatalf("expected %s to be string, got %T", key, body[key])
	}
	if value != expected {
		t.Fatalf("expected %s to be %q, got %q", key, expected, value)
	}
}

func TestCreateRoom(t *testing.T) {
	ts := startApp(t)
	body := createRoom(t, ts, "  Quizmaster ")

	assertString(t, body, "nickname", "Quizmaster")
	code, _ := body["code"].(string)
	if len(code) != 4 || strings.ToUpper(code) != code {
		t.Fatalf("unexpected room code %q", code)
	}
	if body["isHost"] != true {
		t.Fatalf("expected host flag, got %v", body["isHost"])
	}
}

func TestCreateRoomRejectsBadNickname(t *testing.T) {
	ts := startApp(t)
	for _, nickname := range []string{"", "   ", strings.Repeat("x", 21)} {
		resp := doRequest(t, ts, http.MethodPost, "/api/rooms", map[string]string{"nickname": nickname})
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("nickname %q: expected 400, got %d", nickname, resp.StatusCode)
		}
		if decodeBody(t, resp)["error"] == "" {
			t.Fatalf("nickname %q: expected an error reason", nickname)
		}
	}
}

func TestJoinRoom(t *testing.T) {
	ts := startApp(t)
	room := createRoom(t, ts, "Host")
	code := room["code"].(string)

	resp := joinRoom(t, ts, strings.ToLower(code), "Ada")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	assertString(t, body, "code", code)
	assertString(t, body, "nickname", "Ada")
	if body["isHost"] != false {
		t.Fatalf("joined player must not be host")
	}

	resp = joinRoom(t, ts, code, " ADA ")
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate nickname, got %d", resp.StatusCode)
	}
	assertString(t, decodeBody(t, resp), "error", "nickname already taken")

	resp = joinRoom(t, ts, "1234", "Grace")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for malformed code, got %d", resp.StatusCode)
	}

	resp = joinRoom(t, ts, code, "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty nickname, got %d", resp.StatusCode)
	}
}

func TestReconnect(t *testing.T) {
	ts := startApp(t)
	room := createRoom(t, ts, "Host")
	code := room["code"].(string)
	joined := decodeBody(t, joinRoom(t, ts, code, "Ada"))

	resp := doRequest(t, ts, http.MethodPost, "/api/rooms/"+code+"/reconnect", map[string]any{"userId": joined["userId"]})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	assertString(t, decodeBody(t, resp), "nickname", "Ada")

	resp = doRequest(t, ts, http.MethodPost, "/api/rooms/"+code+"/reconnect", map[string]any{"userId": 9999})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for stranger, got %d", resp.StatusCode)
	}

	resp = doRequest(t, ts, http.MethodPost, "/api/rooms/"+code+"/reconnect", map[string]any{})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 without userId, got %d", resp.StatusCode)
	}
}

func TestRoomStateEndpoint(t *testing.T) {
	ts := startApp(t)
	room := createRoom(t, ts, "Host")
	code := room["code"].(string)
	joinRoom(t, ts, code, "Ada")

	resp := doRequest(t, ts, http.MethodGet, "/api/rooms/"+code+"/state", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	info, _ := body["room"].(map[string]any)
	assertString(t, info, "status", "lobby")
	players, _ := body["players"].([]any)
	if len(players) != 1 {
		t.Fatalf("expected one player, got %v", body["players"])
	}

	// I and O never appear in generated codes.
	resp = doRequest(t, ts, http.MethodGet, "/api/rooms/IOIO/state", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown room, got %d", resp.StatusCode)
	}
}

func TestRoomQRCode(t *testing.T) {
	ts := startApp(t)
	code := createRoom(t, ts, "Host")["code"].(string)

	resp := doRequest(t, ts, http.MethodGet, "/api/rooms/"+code+"/qr", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
		t.Fatalf("expected image/png, got %q", ct)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read qr: %v", err)
	}
	if _, err := png.Decode(bytes.NewReader(data)); err != nil {
		t.Fatalf("decode qr: %v", err)
	}
}

func TestPages(t *testing.T) {
	ts := startApp(t)
	code := createRoom(t, ts, "Host")["code"].(string)

	resp := doRequest(t, ts, http.MethodGet, "/", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected home 200, got %d", resp.StatusCode)
	}

	resp = doRequest(t, ts, http.MethodGet, "/rooms/"+code, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected room page 200, got %d", resp.StatusCode)
	}
	page, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(page), code) {
		t.Fatalf("room page does not mention code %s", code)
	}

	resp = doRequest(t, ts, http.MethodGet, "/rooms/12", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for bad code, got %d", resp.StatusCode)
	}
}
