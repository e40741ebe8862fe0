package slack

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// reconnectBackoff is the pause before redialing after a dropped or
// refreshed connection.
const reconnectBackoff = 2 * time.Second

// MessageEvent is an inbound message from the Events API, delivered
// over Socket Mode.
type MessageEvent struct {
	User        string `json:"user"`
	BotID       string `json:"bot_id"`
	Channel     string `json:"channel"`
	ChannelType string `json:"channel_type"`
	Text        string `json:"text"`
	TS          string `json:"ts"`
	ThreadTS    string `json:"thread_ts"`
	Subtype     string `json:"subtype"`
	Files       []File `json:"files"`
}

// envelope is the Socket Mode frame wrapping every server message.
type envelope struct {
	EnvelopeID string          `json:"envelope_id"`
	Type       string          `json:"type"`
	Payload    json.RawMessage `json:"payload"`
}

type eventsAPIPayload struct {
	Event struct {
		Type string `json:"type"`
		MessageEvent
	} `json:"event"`
}

// SocketMode maintains a Socket Mode websocket to Slack, acking
// envelopes and pushing message events to a channel. On disconnect
// envelopes or read errors it redials with a fresh connection URL.
type SocketMode struct {
	client *Client
	logger *slog.Logger

	connMu sync.Mutex
	conn   *websocket.Conn

	messages chan MessageEvent
}

// NewSocketMode creates a Socket Mode listener. Call Run to connect.
func NewSocketMode(client *Client, logger *slog.Logger) *SocketMode {
	if logger == nil {
		logger = slog.Default()
	}
	return &SocketMode{
		client:   client,
		logger:   logger,
		messages: make(chan MessageEvent, 64),
	}
}

// Messages returns the channel of inbound message events. Closed when
// Run returns.
func (s *SocketMode) Messages() <-chan MessageEvent {
	return s.messages
}

// Run connects and processes envelopes until the context is cancelled.
// Dropped connections are redialed; only context cancellation or a
// failure to obtain a connection URL ends the loop.
func (s *SocketMode) Run(ctx context.Context) error {
	defer close(s.messages)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		wsURL, err := s.client.openConnection(ctx)
		if err != nil {
			return fmt.Errorf("socket mode: %w", err)
		}

		if err := s.dial(ctx, wsURL); err != nil {
			s.logger.Error("socket mode dial failed, retrying", "error", err)
			if !sleepCtx(ctx, reconnectBackoff) {
				return ctx.Err()
			}
			continue
		}

		err = s.readLoop(ctx)
		s.closeConn()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.logger.Warn("socket mode connection ended, reconnecting", "reason", err)
		if !sleepCtx(ctx, reconnectBackoff) {
			return ctx.Err()
		}
	}
}

func (s *SocketMode) dial(ctx context.Context, wsURL string) error {
	dialer := websocket.Dialer{
		ReadBufferSize:  64 * 1024,
		WriteBufferSize: 64 * 1024,
	}
	conn, _, err := dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial websocket: %w", err)
	}

	s.connMu.Lock()
	s.conn = conn
	s.connMu.Unlock()

	s.logger.Info("socket mode connected")
	return nil
}

func (s *SocketMode) closeConn() {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
}

// readLoop processes envelopes until the connection fails or Slack
// asks for a reconnect. Returns the reason the connection ended.
func (s *SocketMode) readLoop(ctx context.Context) error {
	// Unblock the blocking read when the context is cancelled.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			s.closeConn()
		case <-stop:
		}
	}()

	for {
		s.connMu.Lock()
		conn := s.conn
		s.connMu.Unlock()
		if conn == nil {
			return fmt.Errorf("connection closed")
		}

		var env envelope
		if err := conn.ReadJSON(&env); err != nil {
			return fmt.Errorf("read envelope: %w", err)
		}

		// Ack before processing; Slack redelivers unacked envelopes.
		if env.EnvelopeID != "" {
			s.ack(env.EnvelopeID)
		}

		switch env.Type {
		case "hello":
			s.logger.Debug("socket mode hello received")

		case "disconnect":
			// Slack refreshes connections periodically; redial.
			return fmt.Errorf("server requested disconnect")

		case "events_api":
			s.handleEvent(env.Payload)

		default:
			s.logger.Debug("unhandled socket mode envelope", "type", env.Type)
		}
	}
}

func (s *SocketMode) handleEvent(payload json.RawMessage) {
	var p eventsAPIPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		s.logger.Warn("malformed events_api payload", "error", err)
		return
	}
	if p.Event.Type != "message" {
		s.logger.Debug("ignoring event", "type", p.Event.Type)
		return
	}

	select {
	case s.messages <- p.Event.MessageEvent:
	default:
		s.logger.Warn("message channel full, dropping event",
			"channel", p.Event.Channel, "ts", p.Event.TS)
	}
}

func (s *SocketMode) ack(envelopeID string) {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	if s.conn == nil {
		return
	}
	if err := s.conn.WriteJSON(map[string]string{"envelope_id": envelopeID}); err != nil {
		s.logger.Warn("failed to ack envelope", "envelope_id", envelopeID, "error", err)
	}
}

// sleepCtx sleeps for d unless the context is cancelled first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
