package stream

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(_ *http.Request) bool { return true },
}

type wsHandler func(t *testing.T, conn *websocket.Conn)

// newWSServer starts a test websocket server and returns its ws:// URL.
func newWSServer(t *testing.T, handler wsHandler) string {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		defer conn.Close()
		handler(t, conn)
	}))
	t.Cleanup(server.Close)
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

// authFlow drives the server side of the handshake, asserting the token.
func authFlow(t *testing.T, conn *websocket.Conn, wantToken string) bool {
	t.Helper()
	if err := conn.WriteJSON(map[string]any{"type": "auth_required"}); err != nil {
		return false
	}
	var auth map[string]any
	if err := conn.ReadJSON(&auth); err != nil {
		return false
	}
	if auth["type"] != "auth" || auth["access_token"] != wantToken {
		conn.WriteJSON(map[string]any{"type": "auth_invalid", "message": "invalid token"})
		return false
	}
	return conn.WriteJSON(map[string]any{"type": "auth_ok"}) == nil
}

// acceptSubscribe acknowledges the subscribe request and returns its id.
func acceptSubscribe(t *testing.T, conn *websocket.Conn) (int64, bool) {
	t.Helper()
	var req map[string]any
	if err := conn.ReadJSON(&req); err != nil {
		return 0, false
	}
	if req["type"] != "subscribe_events" {
		t.Errorf("expected subscribe_events, got %v", req["type"])
		return 0, false
	}
	id := int64(req["id"].(float64))
	err := conn.WriteJSON(map[string]any{"id": id, "type": "result", "success": true})
	return id, err == nil
}

func TestDialAuthenticates(t *testing.T) {
	url := newWSServer(t, func(t *testing.T, conn *websocket.Conn) {
		authFlow(t, conn, "secret")
	})

	client, err := Dial(context.Background(), url, "secret", nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	client.Close()
}

func TestDialRejectsBadToken(t *testing.T) {
	url := newWSServer(t, func(t *testing.T, conn *websocket.Conn) {
		authFlow(t, conn, "secret")
	})

	_, err := Dial(context.Background(), url, "wrong", nil)
	if !errors.Is(err, ErrAuthFailed) {
		t.Fatalf("error = %v, want ErrAuthFailed", err)
	}
}

func TestSubscribeAndNextEvent(t *testing.T) {
	payload := map[string]any{"event_type": "custom_event", "data": map[string]any{"k": "v"}}
	url := newWSServer(t, func(t *testing.T, conn *websocket.Conn) {
		if !authFlow(t, conn, "secret") {
			return
		}
		id, ok := acceptSubscribe(t, conn)
		if !ok {
			return
		}
		// A stray frame the client must skip, then the event.
		conn.WriteJSON(map[string]any{"type": "result", "id": id + 1, "success": true})
		conn.WriteJSON(map[string]any{"id": id, "type": "event", "event": payload})
	})

	client, err := Dial(context.Background(), url, "secret", nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer client.Close()

	if err := client.Subscribe(); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	raw, err := client.NextEvent()
	if err != nil {
		t.Fatalf("NextEvent: %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("event payload: %v", err)
	}
	if got["event_type"] != "custom_event" {
		t.Errorf("event_type = %v", got["event_type"])
	}
}

func TestSubscribeRejected(t *testing.T) {
	url := newWSServer(t, func(t *testing.T, conn *websocket.Conn) {
		if !authFlow(t, conn, "secret") {
			return
		}
		var req map[string]any
		if err := conn.ReadJSON(&req); err != nil {
			return
		}
		id := int64(req["id"].(float64))
		conn.WriteJSON(map[string]any{"id": id, "type": "result", "success": false})
	})

	client, err := Dial(context.Background(), url, "secret", nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer client.Close()

	if err := client.Subscribe(); !errors.Is(err, ErrSubscribeFailed) {
		t.Fatalf("error = %v, want ErrSubscribeFailed", err)
	}
}

func TestWebsocketURL(t *testing.T) {
	tests := []struct {
		base string
		want string
	}{
		{base: "http://localhost:8123", want: "ws://localhost:8123/api/websocket"},
		{base: "https://hub.example.com/", want: "wss://hub.example.com/api/websocket"},
	}
	for _, tt := range tests {
		if got := WebsocketURL(tt.base); got != tt.want {
			t.Errorf("WebsocketURL(%q) = %q, want %q", tt.base, got, tt.want)
		}
	}
}
