package hub

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/dhruvin2968/facebook-messaging/internal/domain"
	"github.com/dhruvin2968/facebook-messaging/pkg/log"
)

// Config holds the per-connection WebSocket timings.
type Config struct {
	PingInterval   time.Duration `mapstructure:"ping_interval"`
	PongWait       time.Duration `mapstructure:"pong_wait"`
	WriteWait      time.Duration `mapstructure:"write_wait"`
	MaxMessageSize int64         `mapstructure:"max_message_size"`
}

// Connection states. A connection is Connecting until a valid announce,
// Active afterwards, and Closed once the transport goes away. Rejected
// is terminal: the socket closed without ever registering presence.
const (
	StateConnecting = "connecting"
	StateActive     = "active"
	StateClosed     = "closed"
	StateRejected   = "rejected"
)

// Client owns one transport connection. The identity is bound exactly
// once, by a valid announce; cleanup funcs registered by the session
// handler run synchronously before the hub releases the connection.
type Client struct {
	ID   string
	Hub  *Hub
	Conn *websocket.Conn
	Send chan []byte

	mu       sync.RWMutex
	state    string
	identity *domain.UserIdentity
	cleanup  []func()

	// sendMu makes closing Send mutually exclusive with queueing into
	// it, so a relay racing a disconnect cannot send on a closed channel.
	sendMu     sync.Mutex
	sendClosed bool

	config Config
}

// NewClient wraps an upgraded connection.
func NewClient(id string, h *Hub, conn *websocket.Conn, cfg Config) *Client {
	return &Client{
		ID:     id,
		Hub:    h,
		Conn:   conn,
		Send:   make(chan []byte, 256),
		state:  StateConnecting,
		config: cfg,
	}
}

// Authenticate binds the announced identity and moves the connection to
// Active. Returns false if the connection was already authenticated.
func (c *Client) Authenticate(identity domain.UserIdentity) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateConnecting {
		return false
	}
	c.identity = &identity
	c.state = StateActive
	return true
}

// Identity returns the authenticated identity, or nil before announce.
func (c *Client) Identity() *domain.UserIdentity {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.identity
}

// State returns the connection state.
func (c *Client) State() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Reject marks an unauthenticated connection as terminally rejected.
func (c *Client) Reject() {
	c.mu.Lock()
	if c.state == StateConnecting {
		c.state = StateRejected
	}
	c.mu.Unlock()
}

// OnClose registers a cleanup func run synchronously when the connection
// tears down (presence unregister, room unsubscribes). Scoped release:
// a handle registered here can never outlive the connection.
func (c *Client) OnClose(fn func()) {
	c.mu.Lock()
	c.cleanup = append(c.cleanup, fn)
	c.mu.Unlock()
}

// Teardown runs the registered cleanup funcs and marks the connection
// closed. Idempotent; the read pump calls it when the transport drops.
func (c *Client) Teardown() {
	c.mu.Lock()
	fns := c.cleanup
	c.cleanup = nil
	if c.state != StateRejected {
		c.state = StateClosed
	}
	c.mu.Unlock()

	// LIFO, mirroring acquisition order.
	for i := len(fns) - 1; i >= 0; i-- {
		fns[i]()
	}
}

// SendJSON marshals and queues a frame without blocking. A full send
// buffer drops the frame; the write pump's deadlines will close truly
// stuck connections.
func (c *Client) SendJSON(message interface{}) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}

	c.trySend(data)
	return nil
}

// trySend queues a raw frame without blocking. Frames offered after the
// hub released the connection are dropped.
func (c *Client) trySend(data []byte) bool {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.sendClosed {
		return false
	}
	select {
	case c.Send <- data:
	default:
	}
	return true
}

// closeSend closes the send channel exactly once. Only the hub calls
// this; buffered frames still drain through the write pump.
func (c *Client) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if !c.sendClosed {
		c.sendClosed = true
		close(c.Send)
	}
}

// ReadPump reads frames until the transport closes, invoking handler for
// each. Cleanup and hub unregistration happen before it returns.
func (c *Client) ReadPump(handler func(*Client, []byte)) {
	defer func() {
		c.Teardown()
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger().Debug().Err(err).Msg("websocket read error")
			}
			break
		}

		handler(c, message)
	}
}

// WritePump drains the send buffer and keeps the connection alive with
// pings. One writer per connection; gorilla allows no concurrent writes.
func (c *Client) WritePump() {
	ticker := time.NewTicker(c.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) logger() *zerolog.Logger {
	l := log.L().With().Str(log.FieldClientID, c.ID).Logger()
	if id := c.Identity(); id != nil {
		l = l.With().Str(log.FieldUserID, id.ID).Logger()
	}
	return &l
}
