package websocket

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/peronio/realmnet"
	"github.com/peronio/realmnet/internal/session"
	"github.com/peronio/realmnet/protocol"
)

// ClientConfig configures a reconnecting client.
type ClientConfig struct {
	URL    string
	Header http.Header
	Dialer *websocket.Dialer

	// ReconnectDelay defaults to session.DefaultReconnectDelay.
	ReconnectDelay time.Duration
	// HeartbeatInterval enables a system:ping every interval while
	// connected. Zero disables it.
	HeartbeatInterval time.Duration

	OnMessage     func(msg protocol.ServerMessage)
	OnStateChange func(from, to session.State)

	Clock  clock.Clock
	Logger *zerolog.Logger
}

// Client is a WebSocket client that reconnects after every drop, forever,
// with a fixed delay. At most one reconnect attempt is pending at a time.
type Client struct {
	url       string
	header    http.Header
	dialer    *websocket.Dialer
	heartbeat time.Duration
	onMessage func(protocol.ServerMessage)
	clock     clock.Clock
	log       zerolog.Logger

	machine     *session.Machine
	reconnector *session.Reconnector

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	conn       *websocket.Conn
	lastNotice *protocol.SystemNotice
	closed     bool

	writeMu sync.Mutex
}

func NewClient(cfg *ClientConfig) *Client {
	clk := cfg.Clock
	if clk == nil {
		clk = clock.New()
	}
	logger := log.Logger
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}
	dialer := cfg.Dialer
	if dialer == nil {
		dialer = &websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		url:       cfg.URL,
		header:    cfg.Header,
		dialer:    dialer,
		heartbeat: cfg.HeartbeatInterval,
		onMessage: cfg.OnMessage,
		clock:     clk,
		log:       logger.With().Str("component", "ws-client").Str("url", cfg.URL).Logger(),
		machine:   session.NewMachine(session.RoleClient, clk),
		ctx:       ctx,
		cancel:    cancel,
	}
	c.reconnector = session.NewReconnector(clk, cfg.ReconnectDelay, c.reconnect)

	c.machine.OnChange(func(from, to session.State) {
		c.log.Debug().Stringer("from", from).Stringer("to", to).Msg("state change")
		if to == session.Disconnected && !c.isClosed() {
			c.reconnector.Schedule()
		}
		if cfg.OnStateChange != nil {
			cfg.OnStateChange(from, to)
		}
	})
	return c
}

// Connect performs the first dial. On failure the client is Disconnected,
// a reconnect is already scheduled, and the dial error is returned. Once
// the first dial was made, reconnection is automatic and Connect returns
// ErrNotConnecting.
func (c *Client) Connect(ctx context.Context) error {
	return c.dial(ctx)
}

// State returns the current lifecycle state.
func (c *Client) State() session.State {
	return c.machine.State()
}

// ReconnectPending reports whether a reconnect attempt is armed.
func (c *Client) ReconnectPending() bool {
	return c.reconnector.Pending()
}

// LastNotice returns the most recent system notice, or nil.
func (c *Client) LastNotice() *protocol.SystemNotice {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastNotice
}

// Send writes msg if the client is Connected.
func (c *Client) Send(ctx context.Context, msg protocol.ClientMessage) error {
	frame, err := protocol.Encode(msg)
	if err != nil {
		return err
	}

	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil || !c.machine.IsConnected() {
		return realmnet.ErrConnectionClosed
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	deadline := time.Now().Add(writeWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	conn.SetWriteDeadline(deadline)
	return conn.WriteMessage(websocket.TextMessage, frame)
}

// Close stops reconnecting and closes the current socket.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	c.cancel()
	c.reconnector.Cancel()

	var err error
	if conn != nil {
		c.writeMu.Lock()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()
		err = conn.Close()
	}
	c.machine.Close()
	return err
}

func (c *Client) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// reconnect is the Reconnector callback.
func (c *Client) reconnect() {
	if c.isClosed() {
		return
	}
	if err := c.machine.Reconnect(); err != nil {
		c.log.Debug().Err(err).Msg("skipping reconnect")
		return
	}
	if err := c.dial(c.ctx); err != nil {
		c.log.Warn().Err(err).Dur("retry_in", c.reconnector.Delay()).Msg("reconnect failed")
	}
}

func (c *Client) dial(ctx context.Context) error {
	if state := c.machine.State(); state != session.Connecting {
		return fmt.Errorf("%w: state is %s", realmnet.ErrNotConnecting, state)
	}

	conn, _, err := c.dialer.DialContext(ctx, c.url, c.header)
	if err != nil {
		c.machine.Close()
		return err
	}

	// A live socket is never replaced; it is only cleared by readLoop or
	// Close.
	c.mu.Lock()
	switch {
	case c.closed:
		c.mu.Unlock()
		conn.Close()
		return realmnet.ErrConnectionClosed
	case c.conn != nil:
		c.mu.Unlock()
		conn.Close()
		return realmnet.ErrNotConnecting
	}
	c.conn = conn
	c.mu.Unlock()

	if err := c.machine.Open(); err != nil {
		c.mu.Lock()
		if c.conn == conn {
			c.conn = nil
		}
		c.mu.Unlock()
		conn.Close()
		return err
	}
	c.log.Info().Msg("connected")

	done := make(chan struct{})
	go c.readLoop(conn, done)
	if c.heartbeat > 0 {
		go c.heartbeatLoop(c.clock.Ticker(c.heartbeat), done)
	}
	return nil
}

func (c *Client) readLoop(conn *websocket.Conn, done chan struct{}) {
	defer func() {
		close(done)
		conn.Close()

		c.mu.Lock()
		current := c.conn == conn
		if current {
			c.conn = nil
		}
		c.mu.Unlock()

		if current {
			c.machine.Close()
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Warn().Err(err).Msg("connection lost")
			}
			return
		}
		c.machine.Touch()

		msg, err := protocol.ParseServer(data)
		if err != nil {
			c.log.Warn().Err(err).Msg("dropping invalid server message")
			continue
		}
		if notice, ok := msg.(*protocol.SystemNotice); ok {
			c.mu.Lock()
			c.lastNotice = notice
			c.mu.Unlock()
		}
		if c.onMessage != nil {
			c.onMessage(msg)
		}
	}
}

func (c *Client) heartbeatLoop(ticker *clock.Ticker, done <-chan struct{}) {
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := c.Send(c.ctx, &protocol.Ping{}); err != nil {
				c.log.Debug().Err(err).Msg("heartbeat failed")
			}
		case <-done:
			return
		case <-c.ctx.Done():
			return
		}
	}
}
