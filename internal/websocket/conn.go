package websocket

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/peronio/realmnet"
	"github.com/peronio/realmnet/internal/session"
	"github.com/peronio/realmnet/protocol"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = 54 * time.Second
	sendBufSize  = 256
	bufferSizeIO = 1024

	// flushWait bounds how long a close waits for queued frames.
	flushWait = time.Second
)

// Conn is the server side of one WebSocket connection. It implements
// realmnet.Conn.
type Conn struct {
	id          string
	conn        *websocket.Conn
	remoteAddr  string
	ctx         context.Context
	cancel      context.CancelFunc
	sendCh      chan []byte
	closing     chan struct{}
	pumpDone    chan struct{}
	closeOnce   sync.Once
	closeFrame  []byte
	machine     *session.Machine
	rateLimiter *rate.Limiter
	log         zerolog.Logger
}

var _ realmnet.Conn = (*Conn)(nil)

// NewConn wraps an upgraded socket. The connection starts in Connecting and
// its write pump is already running.
func NewConn(conn *websocket.Conn, remoteAddr string, rateLimitConfig *RateLimitConfig, clk clock.Clock, logger zerolog.Logger) *Conn {
	ctx, cancel := context.WithCancel(context.Background())

	var limiter *rate.Limiter
	if rateLimitConfig != nil && rateLimitConfig.Enabled {
		limiter = rate.NewLimiter(rateLimitConfig.MessagesPerSecond, rateLimitConfig.Burst)
	}

	id := uuid.New().String()
	c := &Conn{
		id:          id,
		conn:        conn,
		remoteAddr:  remoteAddr,
		ctx:         ctx,
		cancel:      cancel,
		sendCh:      make(chan []byte, sendBufSize),
		closing:     make(chan struct{}),
		pumpDone:    make(chan struct{}),
		machine:     session.NewMachine(session.RoleServer, clk),
		rateLimiter: limiter,
		log:         logger.With().Str("conn_id", id).Str("remote_addr", remoteAddr).Logger(),
	}

	go c.writePump()

	return c
}

func (c *Conn) ID() string {
	return c.id
}

func (c *Conn) RemoteAddr() string {
	return c.remoteAddr
}

// Context is cancelled when the connection closes.
func (c *Conn) Context() context.Context {
	return c.ctx
}

func (c *Conn) State() session.State {
	return c.machine.State()
}

// Machine exposes the lifecycle for the server's read loop.
func (c *Conn) Machine() *session.Machine {
	return c.machine
}

// Send encodes msg and queues it.
func (c *Conn) Send(ctx context.Context, msg protocol.ServerMessage) error {
	// Encode before taking the lock
	frame, err := protocol.Encode(msg)
	if err != nil {
		return fmt.Errorf("encode %s: %w", msg.Kind(), err)
	}
	return c.SendFrame(ctx, frame)
}

// SendFrame queues an encoded frame for the write pump.
func (c *Conn) SendFrame(ctx context.Context, frame []byte) error {
	if !c.machine.IsConnected() {
		return realmnet.ErrConnectionClosed
	}

	select {
	case c.sendCh <- frame:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-c.ctx.Done():
		return realmnet.ErrContextCancelled
	}
}

func (c *Conn) Close(ctx context.Context) error {
	return c.CloseWithCode(ctx, websocket.CloseNormalClosure, "")
}

// CloseWithCode moves the connection to Disconnected, lets the write pump
// flush frames that were already queued, sends a close frame and closes the
// socket. The flush is bounded by flushWait and ctx. Later calls are
// no-ops.
func (c *Conn) CloseWithCode(ctx context.Context, code int, reason string) error {
	// Transition first so new writes fail fast
	if !c.machine.Close() {
		return nil
	}

	c.closeOnce.Do(func() {
		c.closeFrame = websocket.FormatCloseMessage(code, reason)
		close(c.closing)
	})

	timer := time.NewTimer(flushWait)
	defer timer.Stop()
	select {
	case <-c.pumpDone:
	case <-timer.C:
		c.log.Debug().Msg("flush timed out")
	case <-ctx.Done():
	}

	c.cancel()
	// The pump closes the socket itself once it has flushed
	if err := c.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}

// IsAlive reports whether the connection is Connected.
func (c *Conn) IsAlive() bool {
	return c.machine.IsConnected()
}

// CheckRateLimit reports whether one more inbound message is allowed.
func (c *Conn) CheckRateLimit() bool {
	if c.rateLimiter == nil {
		return true
	}
	return c.rateLimiter.Allow()
}

// writePump drains sendCh to the socket and pings every pingPeriod. Once
// the connection is closing it writes what is still queued, then the close
// frame.
func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		// unblock senders waiting on a full buffer
		c.cancel()
		c.conn.Close()
		close(c.pumpDone)
	}()

	for {
		select {
		case frame := <-c.sendCh:
			if err := c.write(frame); err != nil {
				return
			}

		case <-c.closing:
			c.flush()
			return

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.ctx.Done():
			return
		}
	}
}

func (c *Conn) write(frame []byte) error {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		c.log.Debug().Err(err).Msg("write failed")
		return err
	}
	return nil
}

func (c *Conn) flush() {
	for {
		select {
		case frame := <-c.sendCh:
			if err := c.write(frame); err != nil {
				return
			}
		default:
			_ = c.conn.WriteControl(websocket.CloseMessage, c.closeFrame, time.Now().Add(writeWait))
			return
		}
	}
}
