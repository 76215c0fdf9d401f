// Package wsconn provides a production-grade WebSocket client with reconnection.
package wsconn

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
)

// State represents the connection state.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
	StateClosed       State = "closed"
)

// reconnectDialTimeout bounds each dial attempt made by the reconnect loop.
const reconnectDialTimeout = 30 * time.Second

// MessageHandler processes an incoming message.
type MessageHandler func(ctx context.Context, msg []byte)

// StateChangeHandler observes connection state transitions. err is non-nil
// when the transition was caused by a failure.
type StateChangeHandler func(state State, err error)

// Config holds WebSocket client configuration.
type Config struct {
	URL            string
	Name           string // Connection name for logging/metrics
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	MaxReconnects  int   // 0 = infinite
	PingInterval   time.Duration
	MaxMessageSize int64 // Bytes; 0 uses the default limit
}

// DefaultConfig returns sensible defaults.
func DefaultConfig(url, name string) Config {
	return Config{
		URL:            url,
		Name:           name,
		ReadTimeout:    60 * time.Second,
		WriteTimeout:   10 * time.Second,
		InitialBackoff: 1 * time.Second,
		MaxBackoff:     30 * time.Second,
		MaxReconnects:  0, // infinite
		PingInterval:   30 * time.Second,
		MaxMessageSize: 1 << 20, // 1MB
	}
}

// Client is a reconnecting WebSocket client.
type Client struct {
	config Config

	conn   *websocket.Conn
	connMu sync.Mutex

	state   State
	stateMu sync.RWMutex

	onMessage     MessageHandler
	onStateChange StateChangeHandler
	handlersMu    sync.RWMutex

	done      chan struct{}
	closed    atomic.Bool
	closeOnce sync.Once
	readWG    sync.WaitGroup
}

// New creates a new WebSocket client.
func New(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, errors.New("wsconn: url is required")
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 1 * time.Second
	}
	if cfg.MaxBackoff < cfg.InitialBackoff {
		cfg.MaxBackoff = cfg.InitialBackoff
	}

	return &Client{
		config: cfg,
		state:  StateDisconnected,
		done:   make(chan struct{}),
	}, nil
}

// OnMessage registers the handler invoked for every received message.
func (c *Client) OnMessage(handler MessageHandler) {
	c.handlersMu.Lock()
	c.onMessage = handler
	c.handlersMu.Unlock()
}

// OnStateChange registers the handler invoked on state transitions.
func (c *Client) OnStateChange(handler StateChangeHandler) {
	c.handlersMu.Lock()
	c.onStateChange = handler
	c.handlersMu.Unlock()
}

// Connect performs a single connection attempt and starts the read and
// ping loops on success.
func (c *Client) Connect(ctx context.Context) error {
	if c.closed.Load() {
		return errors.New("wsconn: client is closed")
	}

	c.setState(StateConnecting, nil)

	conn, _, err := websocket.Dial(ctx, c.config.URL, nil)
	if err != nil {
		c.setState(StateDisconnected, err)
		return err
	}

	if c.config.MaxMessageSize > 0 {
		conn.SetReadLimit(c.config.MaxMessageSize)
	}

	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()

	c.setState(StateConnected, nil)

	c.readWG.Add(1)
	go c.readLoop()

	if c.config.PingInterval > 0 {
		go c.pingLoop(conn)
	}

	return nil
}

// ConnectWithRetry connects with exponential backoff until it succeeds,
// the context is cancelled, or MaxReconnects attempts were exhausted.
func (c *Client) ConnectWithRetry(ctx context.Context) error {
	backoff := c.config.InitialBackoff
	attempts := 0

	for {
		err := c.Connect(ctx)
		if err == nil {
			return nil
		}

		attempts++
		if c.config.MaxReconnects > 0 && attempts >= c.config.MaxReconnects {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.done:
			return errors.New("wsconn: client is closed")
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > c.config.MaxBackoff {
			backoff = c.config.MaxBackoff
		}
	}
}

// Send writes a text message to the connection.
func (c *Client) Send(ctx context.Context, msg []byte) error {
	c.connMu.Lock()
	conn := c.conn
	c.connMu.Unlock()

	if conn == nil {
		return errors.New("wsconn: not connected")
	}

	if c.config.WriteTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.WriteTimeout)
		defer cancel()
	}

	return conn.Write(ctx, websocket.MessageText, msg)
}

// SendJSON marshals v and sends it as a text message.
func (c *Client) SendJSON(ctx context.Context, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.Send(ctx, data)
}

// State returns the current connection state.
func (c *Client) State() State {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.state
}

// IsConnected reports whether the connection is established.
func (c *Client) IsConnected() bool {
	return c.State() == StateConnected
}

// Close gracefully closes the connection. It is idempotent.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		close(c.done)

		c.connMu.Lock()
		if c.conn != nil {
			c.conn.Close(websocket.StatusNormalClosure, "client closing")
			c.conn = nil
		}
		c.connMu.Unlock()

		c.setState(StateClosed, nil)
	})
	return nil
}

// readLoop reads messages until the connection fails or the client closes.
func (c *Client) readLoop() {
	defer c.readWG.Done()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		<-c.done
		cancel()
	}()

	for {
		c.connMu.Lock()
		conn := c.conn
		c.connMu.Unlock()

		if conn == nil {
			return
		}

		readCtx := ctx
		if c.config.ReadTimeout > 0 {
			var readCancel context.CancelFunc
			readCtx, readCancel = context.WithTimeout(ctx, c.config.ReadTimeout)
			_, data, err := conn.Read(readCtx)
			readCancel()
			if err != nil {
				c.handleReadError(err)
				return
			}
			c.dispatch(ctx, data)
			continue
		}

		_, data, err := conn.Read(readCtx)
		if err != nil {
			c.handleReadError(err)
			return
		}
		c.dispatch(ctx, data)
	}
}

func (c *Client) dispatch(ctx context.Context, data []byte) {
	c.handlersMu.RLock()
	handler := c.onMessage
	c.handlersMu.RUnlock()

	if handler != nil {
		handler(ctx, data)
	}
}

// handleReadError tears down the failed connection and schedules a
// reconnect unless the client was closed.
func (c *Client) handleReadError(err error) {
	if c.closed.Load() {
		return
	}

	c.connMu.Lock()
	if c.conn != nil {
		c.conn.Close(websocket.StatusInternalError, "read error")
		c.conn = nil
	}
	c.connMu.Unlock()

	c.setState(StateReconnecting, err)

	go c.reconnect()
}

// reconnect re-establishes the connection with exponential backoff.
// It must not inherit the read loop's context: that context is
// cancelled when the loop returns, which is exactly when reconnection
// starts. Shutdown is signalled through c.done instead.
func (c *Client) reconnect() {
	backoff := c.config.InitialBackoff
	attempts := 0

	for {
		select {
		case <-c.done:
			return
		case <-time.After(backoff):
		}

		if c.closed.Load() {
			return
		}

		dialCtx, cancel := context.WithTimeout(context.Background(), reconnectDialTimeout)
		err := c.Connect(dialCtx)
		cancel()
		if err == nil {
			return
		}

		attempts++
		if c.config.MaxReconnects > 0 && attempts >= c.config.MaxReconnects {
			c.setState(StateDisconnected, errors.New("wsconn: reconnect attempts exhausted"))
			return
		}

		backoff *= 2
		if backoff > c.config.MaxBackoff {
			backoff = c.config.MaxBackoff
		}
	}
}

// pingLoop keeps conn alive with periodic pings. It is tied to the
// connection it was started for and exits once that connection is torn
// down or replaced, so a reconnect never leaves two loops pinging the
// same connection.
func (c *Client) pingLoop(conn *websocket.Conn) {
	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.connMu.Lock()
			current := c.conn
			c.connMu.Unlock()

			if current != conn {
				return
			}

			ctx, cancel := context.WithTimeout(context.Background(), c.config.WriteTimeout)
			err := conn.Ping(ctx)
			cancel()
			if err != nil {
				return
			}
		}
	}
}

func (c *Client) setState(state State, err error) {
	c.stateMu.Lock()
	if c.state == StateClosed && state != StateClosed {
		c.stateMu.Unlock()
		return
	}
	c.state = state
	c.stateMu.Unlock()

	c.handlersMu.RLock()
	handler := c.onStateChange
	c.handlersMu.RUnlock()

	if handler != nil {
		handler(state, err)
	}
}
