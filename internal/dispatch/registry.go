package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/peronio/realmnet"
	"github.com/peronio/realmnet/protocol"
)

// Filter selects broadcast targets. A nil Filter selects every connection.
type Filter func(conn realmnet.Conn) bool

// Registry is the set of live connections owned by one server. It is
// created when the server starts and closed when it shuts down.
type Registry struct {
	mu     sync.RWMutex
	conns  map[string]realmnet.Conn
	closed bool
	log    zerolog.Logger
}

func NewRegistry(logger zerolog.Logger) *Registry {
	return &Registry{
		conns: make(map[string]realmnet.Conn),
		log:   logger.With().Str("component", "registry").Logger(),
	}
}

// Add registers conn. It fails once the registry is closed.
func (r *Registry) Add(conn realmnet.Conn) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return realmnet.ErrRegistryClosed
	}
	if _, ok := r.conns[conn.ID()]; ok {
		return fmt.Errorf("%w: %s", realmnet.ErrDuplicateConn, conn.ID())
	}
	r.conns[conn.ID()] = conn
	return nil
}

// Remove unregisters the connection with the given id and reports whether it
// was present.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.conns[id]; !ok {
		return false
	}
	delete(r.conns, id)
	return true
}

func (r *Registry) Get(id string) (realmnet.Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.conns[id]
	return conn, ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// Snapshot returns the registered connections at the time of the call.
func (r *Registry) Snapshot() []realmnet.Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]realmnet.Conn, 0, len(r.conns))
	for _, conn := range r.conns {
		out = append(out, conn)
	}
	return out
}

// Send delivers msg to conn if it is Connected. Writes to any other state
// are dropped and reported as success.
func (r *Registry) Send(ctx context.Context, conn realmnet.Conn, msg protocol.ServerMessage) error {
	if !conn.IsAlive() {
		return nil
	}
	frame, err := protocol.Encode(msg)
	if err != nil {
		return err
	}
	return dropClosed(conn.SendFrame(ctx, frame))
}

// Broadcast encodes msg once and delivers it to every Connected connection
// the filter selects. It returns the number of connections written to.
func (r *Registry) Broadcast(ctx context.Context, msg protocol.ServerMessage, filter Filter) (int, error) {
	frame, err := protocol.Encode(msg)
	if err != nil {
		return 0, err
	}

	delivered := 0
	for _, conn := range r.Snapshot() {
		if filter != nil && !filter(conn) {
			continue
		}
		if !conn.IsAlive() {
			continue
		}
		if err := dropClosed(conn.SendFrame(ctx, frame)); err != nil {
			if ctx.Err() != nil {
				return delivered, ctx.Err()
			}
			r.log.Warn().Err(err).Str("conn_id", conn.ID()).Str("kind", string(msg.Kind())).Msg("broadcast write failed")
			continue
		}
		delivered++
	}
	return delivered, nil
}

// Close refuses further Add calls and closes every registered connection
// with 1001 going away.
func (r *Registry) Close(ctx context.Context) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	conns := make([]realmnet.Conn, 0, len(r.conns))
	for _, conn := range r.conns {
		conns = append(conns, conn)
	}
	r.conns = make(map[string]realmnet.Conn)
	r.mu.Unlock()

	// Each close may wait for its queue to flush
	var wg sync.WaitGroup
	for _, conn := range conns {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := conn.CloseWithCode(ctx, websocket.CloseGoingAway, realmnet.ReasonServerShutdown); err != nil {
				r.log.Debug().Err(err).Str("conn_id", conn.ID()).Msg("close on shutdown")
			}
		}()
	}
	wg.Wait()
}

// dropClosed hides the race where a connection closes between the state
// check and the write.
func dropClosed(err error) error {
	if errors.Is(err, realmnet.ErrConnectionClosed) || errors.Is(err, realmnet.ErrContextCancelled) {
		return nil
	}
	return err
}
