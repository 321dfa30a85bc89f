package realmnet

import (
	"context"

	"github.com/peronio/realmnet/internal/session"
	"github.com/peronio/realmnet/protocol"
)

// State is a connection lifecycle state.
type State = session.State

const (
	Connecting   = session.Connecting
	Connected    = session.Connected
	Disconnected = session.Disconnected
)

// Server defines the game-facing surface of the WebSocket server.
//
// Inbound frames are validated before they reach a handler, and every
// connection's messages are handled one at a time in arrival order.
//
// Example usage:
//
//	import (
//	    "github.com/peronio/realmnet"
//	    "github.com/peronio/realmnet/protocol"
//	    "github.com/peronio/realmnet/ws"
//	)
//
//	server := ws.New(ws.NewConfig(":3001", ws.DefaultRateLimitConfig(), ws.AllOrigins()))
//
//	server.Handle(protocol.KindPing, func(ctx context.Context, conn realmnet.Conn, msg protocol.ClientMessage) error {
//	    return conn.Send(ctx, &protocol.Pong{})
//	})
//
//	server.Start(ctx)
type Server interface {
	// Start starts listening for connections. It returns once the listener
	// is up or failed to bind.
	Start(ctx context.Context) error

	// Stop closes every connection and shuts the listener down.
	Stop(ctx context.Context) error

	// Handle registers the single handler for a client-origin kind.
	//
	// Registering a server-origin kind or registering the same kind twice
	// fails. Kinds without a handler are logged and dropped.
	Handle(kind protocol.Kind, handler HandlerFunc) error

	// Broadcast sends msg to every connected client and returns how many
	// received it. Connections that are not Connected are skipped silently.
	Broadcast(ctx context.Context, msg protocol.ServerMessage) (int, error)
}

// HandlerFunc processes one validated client message.
//
// Returning a *ClientError reports it to the sender as a system:error.
// Any other error is logged. A panic is recovered and does not close the
// connection.
type HandlerFunc func(ctx context.Context, conn Conn, msg protocol.ClientMessage) error

// Conn represents one live client connection.
//
// The connection's context is cancelled when the socket closes, and the
// connection never outlives its socket.
type Conn interface {
	// ID returns the connection's unique identifier, a UUID generated at
	// accept time.
	ID() string

	// RemoteAddr returns the peer address, typically "IP:port".
	RemoteAddr() string

	// Context returns the connection's lifecycle context.
	//
	// Example:
	//
	//	go func() {
	//	    <-conn.Context().Done()
	//	    log.Printf("connection %s closed", conn.ID())
	//	}()
	Context() context.Context

	// State returns the lifecycle state.
	State() State

	// Send encodes msg and queues it for delivery.
	//
	// Returns ErrConnectionClosed if the connection is not Connected.
	Send(ctx context.Context, msg protocol.ServerMessage) error

	// SendFrame queues an already encoded frame. Broadcasts use it to
	// encode once for many connections.
	SendFrame(ctx context.Context, frame []byte) error

	// Close closes the connection with websocket.CloseNormalClosure.
	Close(ctx context.Context) error

	// CloseWithCode closes the connection with a specific close code and
	// reason.
	//
	// Common close codes:
	//   - 1000 (websocket.CloseNormalClosure): Normal closure
	//   - 1001 (websocket.CloseGoingAway): Server shutting down
	//   - 1008 (websocket.ClosePolicyViolation): Rate limit exceeded
	CloseWithCode(ctx context.Context, code int, reason string) error

	// IsAlive reports whether the connection is Connected.
	IsAlive() bool
}
