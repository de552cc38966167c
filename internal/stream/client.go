package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// Protocol message types on the hub's websocket endpoint.
const (
	msgAuthRequired    = "auth_required"
	msgAuth            = "auth"
	msgAuthOK          = "auth_ok"
	msgAuthInvalid     = "auth_invalid"
	msgSubscribeEvents = "subscribe_events"
	msgResult          = "result"
	msgEvent           = "event"
)

// handshakeTimeout bounds each read/write during connect, auth, and
// subscribe. The listen loop itself has no deadline; a dead peer surfaces as
// a read error when the connection drops.
const handshakeTimeout = 10 * time.Second

// envelope is the hub's websocket message frame.
type envelope struct {
	ID          int64           `json:"id,omitempty"`
	Type        string          `json:"type"`
	Success     *bool           `json:"success,omitempty"`
	Message     string          `json:"message,omitempty"`
	AccessToken string          `json:"access_token,omitempty"`
	Event       json.RawMessage `json:"event,omitempty"`
}

// Logger defines the logging interface required by the stream package.
// This allows the package to remain decoupled from specific logging implementations.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is used when no logger is provided.
type noopLogger struct{}

func (noopLogger) Debug(msg string, args ...any) {}
func (noopLogger) Info(msg string, args ...any)  {}
func (noopLogger) Warn(msg string, args ...any)  {}
func (noopLogger) Error(msg string, args ...any) {}

// Client is one authenticated websocket connection to the hub. It is not
// reused across reconnects; the Manager dials a fresh Client per attempt.
type Client struct {
	conn      *websocket.Conn
	messageID atomic.Int64
	subID     int64
	logger    Logger
}

// Dial connects to the hub's websocket endpoint and completes the
// authentication handshake: the hub opens with auth_required, the client
// answers with the access token, and the hub settles with auth_ok or
// auth_invalid.
func Dial(ctx context.Context, wsURL, token string, logger Logger) (*Client, error) {
	if logger == nil {
		logger = noopLogger{}
	}

	logger.Info("connecting to hub event stream", "url", wsURL)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	c := &Client{conn: conn, logger: logger}
	if err := c.authenticate(token); err != nil {
		conn.Close()
		return nil, err
	}
	return c, nil
}

func (c *Client) authenticate(token string) error {
	greeting, err := c.readHandshake()
	if err != nil {
		return err
	}
	if greeting.Type != msgAuthRequired {
		return fmt.Errorf("%w: expected %s, got %q", ErrConnectionFailed, msgAuthRequired, greeting.Type)
	}

	if err := c.write(envelope{Type: msgAuth, AccessToken: token}); err != nil {
		return err
	}

	verdict, err := c.readHandshake()
	if err != nil {
		return err
	}
	switch verdict.Type {
	case msgAuthOK:
		c.logger.Info("hub event stream authenticated")
		return nil
	case msgAuthInvalid:
		return fmt.Errorf("%w: %s", ErrAuthFailed, verdict.Message)
	default:
		return fmt.Errorf("%w: unexpected auth response %q", ErrConnectionFailed, verdict.Type)
	}
}

// Subscribe requests delivery of all hub events. The request carries a
// monotonically increasing id and the hub must acknowledge with a successful
// result keyed by that same id before events flow.
func (c *Client) Subscribe() error {
	id := c.messageID.Add(1)
	if err := c.write(envelope{ID: id, Type: msgSubscribeEvents}); err != nil {
		return err
	}

	ack, err := c.readHandshake()
	if err != nil {
		return err
	}
	if ack.ID != id || ack.Type != msgResult || ack.Success == nil || !*ack.Success {
		return fmt.Errorf("%w: id=%d type=%q", ErrSubscribeFailed, ack.ID, ack.Type)
	}

	c.subID = id
	c.logger.Info("subscribed to hub events", "subscription_id", id)
	return nil
}

// NextEvent blocks until the next subscribed event arrives and returns its
// raw payload. Non-event frames are skipped. Any read error means the
// connection is done.
func (c *Client) NextEvent() (json.RawMessage, error) {
	c.conn.SetReadDeadline(time.Time{})
	for {
		var env envelope
		if err := c.conn.ReadJSON(&env); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
		}
		if env.Type == msgEvent && env.ID == c.subID {
			return env.Event, nil
		}
		c.logger.Debug("ignoring non-event frame", "type", env.Type, "id", env.ID)
	}
}

// Close closes the underlying connection. Safe to call more than once.
func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) readHandshake() (envelope, error) {
	c.conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	var env envelope
	if err := c.conn.ReadJSON(&env); err != nil {
		return envelope{}, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	return env, nil
}

func (c *Client) write(env envelope) error {
	c.conn.SetWriteDeadline(time.Now().Add(handshakeTimeout))
	if err := c.conn.WriteJSON(env); err != nil {
		return fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	return nil
}
