// Package realmnet is the real-time session protocol layer of the Peronio
// game server.
//
// Clients and the server exchange JSON envelopes over a WebSocket. Every
// message carries a "type" discriminant, a millisecond timestamp and an
// optional correlation id. Client-origin and server-origin kinds are two
// disjoint closed sets.
//
// # Architecture
//
// Raw frames are validated at the trust boundary (package protocol), the
// connection's lifecycle is tracked by a state machine (internal/session),
// and validated messages are routed to exactly one handler per kind
// (internal/dispatch). Handlers live in internal/game and talk to the
// persistence store and the session verifier through interfaces.
//
// # Quick Start
//
//	import (
//	    "github.com/peronio/realmnet"
//	    "github.com/peronio/realmnet/protocol"
//	    "github.com/peronio/realmnet/ws"
//	)
//
//	cfg := ws.NewConfig(":3001", ws.DefaultRateLimitConfig(), ws.AllOrigins())
//	cfg.WelcomeMessage = "Welcome!"
//	server := ws.New(cfg)
//
//	server.Handle(protocol.KindPing, func(ctx context.Context, conn realmnet.Conn, msg protocol.ClientMessage) error {
//	    pong := &protocol.Pong{}
//	    pong.CorrelationID = msg.Header().CorrelationID
//	    return conn.Send(ctx, pong)
//	})
//
//	server.Start(ctx)
//
// # Wire Format
//
// One UTF-8 JSON object per text frame:
//
//	{"type":"player:move","timestamp":1700000000000,"direction":"up","running":false}
//
// A payload that fails validation is answered with a system:error carrying
// code INVALID_MESSAGE. The connection stays open.
//
// # Rate Limiting
//
// Each connection has its own token bucket:
//
//	// Default: 100 messages/second, burst 200
//	rateLimitConfig := ws.DefaultRateLimitConfig()
//
//	// Disabled
//	rateLimitConfig := ws.NoRateLimit()
//
// When the limit is exceeded the connection is closed with code 1008
// (Policy Violation).
//
// # Transport Limits
//
//   - Maximum frame: 64KB
//   - Read timeout: 60s, reset by every frame and pong
//   - Write timeout: 10s
//   - Ping every 54 seconds
//   - 256-frame outbound buffer per connection
//
// # Reconnection
//
// The Go client (ws.Dial) reconnects after a fixed 3 second delay and never
// gives up. At most one reconnect attempt is pending at any time.
package realmnet
