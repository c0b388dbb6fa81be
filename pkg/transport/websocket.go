package transport

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/gommon/log"
)

// Connection policy is fixed: a bounded number of dial attempts with a
// handshake timeout each, matching the server's expectations.
const (
	connectAttempts = 3
	connectTimeout  = 5 * time.Second
	retryDelay      = time.Second
	writeTimeout    = 10 * time.Second
)

type envelope struct {
	Event EventName       `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type wsClient struct {
	url    string
	events chan Event

	mu     sync.Mutex
	conn   *websocket.Conn
	sid    string
	closed bool
}

// NewWebsocketClient builds a client for the given server address. The
// address may use http(s) scheme; it is rewritten to ws(s) before dialing.
func NewWebsocketClient(serverURL string) Client {
	return &wsClient{
		url:    wsURLFromHTTP(serverURL),
		events: make(chan Event),
	}
}

func wsURLFromHTTP(url string) string {
	if strings.HasPrefix(url, "http://") {
		return strings.Replace(url, "http://", "ws://", 1)
	}
	if strings.HasPrefix(url, "https://") {
		return strings.Replace(url, "https://", "wss://", 1)
	}
	return url
}

func (c *wsClient) Connect(ctx context.Context) error {
	if !strings.HasPrefix(c.url, "ws://") && !strings.HasPrefix(c.url, "wss://") {
		return ErrInvalidScheme
	}

	dialer := websocket.Dialer{HandshakeTimeout: connectTimeout}

	var err error
	var conn *websocket.Conn
	for attempt := 1; attempt <= connectAttempts; attempt++ {
		conn, _, err = dialer.DialContext(ctx, c.url, nil)
		if err == nil {
			break
		}
		log.Warnf("dial failed | attempt: %d, url: %s, error: %v", attempt, c.url, err)

		if attempt == connectAttempts {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryDelay):
		}
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		conn.Close()
		return ErrClientClosed
	}
	c.conn = conn
	c.mu.Unlock()

	go c.readLoop(conn)
	return nil
}

// readLoop delivers events one at a time on an unbuffered channel, so the
// consumer sees them strictly in arrival order.
func (c *wsClient) readLoop(conn *websocket.Conn) {
	defer close(c.events)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.events <- Event{Name: EventDisconnect}
			return
		}

		var env envelope
		if err := json.Unmarshal(data, &env); err != nil {
			log.Warnf("skipping malformed frame | error: %v", err)
			continue
		}

		if env.Event == EventConnected {
			c.recordSessionID(env.Data)
		}

		c.events <- Event{Name: env.Event, Data: env.Data}
	}
}

func (c *wsClient) recordSessionID(data json.RawMessage) {
	var ack Connected
	if err := json.Unmarshal(data, &ack); err != nil || ack.SID == "" {
		return
	}
	c.mu.Lock()
	c.sid = ack.SID
	c.mu.Unlock()
}

func (c *wsClient) Emit(event EventName, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	frame, err := json.Marshal(envelope{Event: event, Data: data})
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClientClosed
	}
	if c.conn == nil {
		return ErrNotConnected
	}
	if err = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, frame)
}

func (c *wsClient) Events() <-chan Event {
	return c.events
}

func (c *wsClient) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sid
}

func (c *wsClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
