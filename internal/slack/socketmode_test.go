package slack

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// newSocketTestServer serves apps.connections.open pointing at its own
// websocket endpoint, which runs handler once per connection.
func newSocketTestServer(t *testing.T, handler func(conn *websocket.Conn)) *Client {
	t.Helper()

	upgrader := websocket.Upgrader{}
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	mux.HandleFunc("/apps.connections.open", func(w http.ResponseWriter, r *http.Request) {
		wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/link"
		json.NewEncoder(w).Encode(map[string]any{"ok": true, "url": wsURL})
	})
	mux.HandleFunc("/link", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		handler(conn)
	})

	c := NewClient(Config{BotToken: "xoxb-test", AppToken: "xapp-test"}, discardLogger())
	c.baseURL = srv.URL
	return c
}

func TestSocketModeDeliversMessageAndAcks(t *testing.T) {
	ackSeen := make(chan struct{})

	client := newSocketTestServer(t, func(conn *websocket.Conn) {
		conn.WriteJSON(map[string]any{"type": "hello"})
		conn.WriteJSON(map[string]any{
			"type":        "events_api",
			"envelope_id": "env-1",
			"payload": map[string]any{
				"event": map[string]any{
					"type":         "message",
					"user":         "U1",
					"channel":      "D1",
					"channel_type": "im",
					"text":         "hello bot",
					"ts":           "1700000000.000001",
				},
			},
		})

		var ack map[string]string
		if err := conn.ReadJSON(&ack); err == nil && ack["envelope_id"] == "env-1" {
			close(ackSeen)
		}
		// Hold the connection open until the client goes away.
		conn.ReadJSON(&ack)
	})

	sm := NewSocketMode(client, discardLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runDone := make(chan error, 1)
	go func() { runDone <- sm.Run(ctx) }()

	select {
	case ev := <-sm.Messages():
		if ev.Text != "hello bot" || ev.Channel != "D1" || ev.User != "U1" {
			t.Errorf("event = %+v", ev)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no message event delivered")
	}

	// Wait for the server to read the ack before tearing the
	// connection down: cancelling closes the websocket, which would
	// discard an ack frame still in the server's receive buffer.
	select {
	case <-ackSeen:
	case <-time.After(5 * time.Second):
		t.Fatal("envelope was never acked")
	}

	cancel()
	select {
	case <-runDone:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestSocketModeReconnectsOnDisconnectEnvelope(t *testing.T) {
	var dials atomic.Int32

	client := newSocketTestServer(t, func(conn *websocket.Conn) {
		n := dials.Add(1)
		if n == 1 {
			conn.WriteJSON(map[string]any{"type": "hello"})
			conn.WriteJSON(map[string]any{"type": "disconnect", "envelope_id": "env-d"})
			var ack map[string]string
			conn.ReadJSON(&ack)
			return
		}
		conn.WriteJSON(map[string]any{"type": "hello"})
		conn.WriteJSON(map[string]any{
			"type":        "events_api",
			"envelope_id": "env-2",
			"payload": map[string]any{
				"event": map[string]any{
					"type":    "message",
					"user":    "U1",
					"channel": "D1",
					"text":    "after reconnect",
					"ts":      "1700000001.000001",
				},
			},
		})
		var ack map[string]string
		conn.ReadJSON(&ack)
		conn.ReadJSON(&ack)
	})

	sm := NewSocketMode(client, discardLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sm.Run(ctx)

	select {
	case ev := <-sm.Messages():
		if ev.Text != "after reconnect" {
			t.Errorf("event text = %q", ev.Text)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("no event after reconnect")
	}
	if dials.Load() < 2 {
		t.Errorf("dial count = %d, want at least 2", dials.Load())
	}
}
