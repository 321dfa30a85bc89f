// Package conntest provides an in-memory realmnet.Conn that records what is
// written to it.
package conntest

import (
	"context"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"

	"github.com/peronio/realmnet"
	"github.com/peronio/realmnet/internal/session"
	"github.com/peronio/realmnet/protocol"
)

// Conn is a recording connection. New returns it already Connected.
type Conn struct {
	id      string
	ctx     context.Context
	cancel  context.CancelFunc
	machine *session.Machine

	mu        sync.Mutex
	frames    [][]byte
	closeCode int
	sendErr   error
}

var _ realmnet.Conn = (*Conn)(nil)

func New() *Conn {
	ctx, cancel := context.WithCancel(context.Background())
	m := session.NewMachine(session.RoleServer, clock.NewMock())
	_ = m.Open()
	return &Conn{
		id:      uuid.New().String(),
		ctx:     ctx,
		cancel:  cancel,
		machine: m,
	}
}

func (c *Conn) ID() string               { return c.id }
func (c *Conn) RemoteAddr() string       { return "127.0.0.1:0" }
func (c *Conn) Context() context.Context { return c.ctx }
func (c *Conn) State() session.State     { return c.machine.State() }
func (c *Conn) IsAlive() bool            { return c.machine.IsConnected() }

// FailWith makes every later write return err.
func (c *Conn) FailWith(err error) {
	c.mu.Lock()
	c.sendErr = err
	c.mu.Unlock()
}

func (c *Conn) Send(ctx context.Context, msg protocol.ServerMessage) error {
	frame, err := protocol.Encode(msg)
	if err != nil {
		return err
	}
	return c.SendFrame(ctx, frame)
}

func (c *Conn) SendFrame(_ context.Context, frame []byte) error {
	if !c.machine.IsConnected() {
		return realmnet.ErrConnectionClosed
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return c.sendErr
	}
	c.frames = append(c.frames, append([]byte(nil), frame...))
	return nil
}

func (c *Conn) Close(ctx context.Context) error {
	return c.CloseWithCode(ctx, 1000, "")
}

func (c *Conn) CloseWithCode(_ context.Context, code int, _ string) error {
	if !c.machine.Close() {
		return nil
	}
	c.mu.Lock()
	c.closeCode = code
	c.mu.Unlock()
	c.cancel()
	return nil
}

// CloseCode is the code passed to the first close, or 0.
func (c *Conn) CloseCode() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeCode
}

// Frames returns copies of the frames written so far.
func (c *Conn) Frames() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]byte, len(c.frames))
	copy(out, c.frames)
	return out
}

// Messages decodes every recorded frame. Frames that do not decode are
// skipped.
func (c *Conn) Messages() []protocol.ServerMessage {
	var out []protocol.ServerMessage
	for _, f := range c.Frames() {
		msg, err := protocol.ParseServer(f)
		if err != nil {
			continue
		}
		out = append(out, msg)
	}
	return out
}

// Kinds lists the kinds of the recorded messages in order.
func (c *Conn) Kinds() []protocol.Kind {
	var out []protocol.Kind
	for _, m := range c.Messages() {
		out = append(out, m.Kind())
	}
	return out
}

// Last returns the most recent message, or nil.
func (c *Conn) Last() protocol.ServerMessage {
	msgs := c.Messages()
	if len(msgs) == 0 {
		return nil
	}
	return msgs[len(msgs)-1]
}

// Reset forgets recorded frames.
func (c *Conn) Reset() {
	c.mu.Lock()
	c.frames = nil
	c.mu.Unlock()
}
