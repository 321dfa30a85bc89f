// Package dispatch routes validated client messages to their handlers and
// frames outbound server messages.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/peronio/realmnet"
	"github.com/peronio/realmnet/protocol"
)

// Dispatch outcomes reported to the Observer.
const (
	OutcomeHandled   = "handled"
	OutcomeUnhandled = "unhandled"
	OutcomeRejected  = "rejected"
	OutcomeFailed    = "failed"
	OutcomePanic     = "panic"
)

// Observer is told about every dispatched message.
type Observer interface {
	ObserveDispatch(kind protocol.Kind, outcome string, elapsed time.Duration)
}

// Router maps each client kind to exactly one handler.
type Router struct {
	mu       sync.RWMutex
	handlers map[protocol.Kind]realmnet.HandlerFunc
	registry *Registry
	observer Observer
	log      zerolog.Logger
}

// NewRouter returns a router that replies through registry. observer may be
// nil.
func NewRouter(registry *Registry, observer Observer, logger zerolog.Logger) *Router {
	return &Router{
		handlers: make(map[protocol.Kind]realmnet.HandlerFunc),
		registry: registry,
		observer: observer,
		log:      logger.With().Str("component", "router").Logger(),
	}
}

// Handle registers handler for kind.
func (r *Router) Handle(kind protocol.Kind, handler realmnet.HandlerFunc) error {
	if !kind.IsClientKind() {
		return fmt.Errorf("%w: %q", realmnet.ErrNotClientKind, kind)
	}
	if handler == nil {
		return fmt.Errorf("nil handler for %q", kind)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.handlers[kind]; ok {
		return fmt.Errorf("%w: %q", realmnet.ErrDuplicateHandler, kind)
	}
	r.handlers[kind] = handler
	return nil
}

// Handles reports whether kind has a handler.
func (r *Router) Handles(kind protocol.Kind) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.handlers[kind]
	return ok
}

// Dispatch runs the handler for msg on the caller's goroutine. It never
// panics and never closes conn.
func (r *Router) Dispatch(ctx context.Context, conn realmnet.Conn, msg protocol.ClientMessage) {
	start := time.Now()
	kind := msg.Kind()

	r.mu.RLock()
	handler, ok := r.handlers[kind]
	r.mu.RUnlock()

	if !ok {
		r.log.Debug().Str("conn_id", conn.ID()).Str("kind", string(kind)).Msg("no handler registered, dropping message")
		r.observe(kind, OutcomeUnhandled, start)
		return
	}

	outcome := r.invoke(ctx, conn, handler, msg)
	r.observe(kind, outcome, start)
}

func (r *Router) invoke(ctx context.Context, conn realmnet.Conn, handler realmnet.HandlerFunc, msg protocol.ClientMessage) (outcome string) {
	defer func() {
		if p := recover(); p != nil {
			r.log.Error().
				Str("conn_id", conn.ID()).
				Str("kind", string(msg.Kind())).
				Interface("panic", p).
				Bytes("stack", debug.Stack()).
				Msg("handler panicked")
			r.replyError(ctx, conn, msg.Header(), realmnet.CodeInternalError, "internal error")
			outcome = OutcomePanic
		}
	}()

	err := handler(ctx, conn, msg)
	if err == nil {
		return OutcomeHandled
	}

	var clientErr *realmnet.ClientError
	if errors.As(err, &clientErr) {
		r.replyError(ctx, conn, msg.Header(), clientErr.Code, clientErr.Message)
		return OutcomeRejected
	}

	r.log.Error().Err(err).Str("conn_id", conn.ID()).Str("kind", string(msg.Kind())).Msg("handler failed")
	r.replyError(ctx, conn, msg.Header(), realmnet.CodeInternalError, "internal error")
	return OutcomeFailed
}

// Reject answers a payload that failed validation, echoing its
// correlation id when it had one. The connection stays open.
func (r *Router) Reject(ctx context.Context, conn realmnet.Conn, err error) {
	var rej *protocol.Rejection
	if !errors.As(err, &rej) {
		rej = &protocol.Rejection{Code: protocol.CodeInvalidMessage, Reason: err.Error()}
	}
	r.log.Debug().Str("conn_id", conn.ID()).Str("field", rej.Field).Str("reason", rej.Reason).Msg("rejected payload")
	r.replyError(ctx, conn, &protocol.Envelope{CorrelationID: rej.CorrelationID}, rej.Code, rej.Message())
	if r.observer != nil {
		r.observer.ObserveDispatch("invalid", OutcomeRejected, 0)
	}
}

func (r *Router) replyError(ctx context.Context, conn realmnet.Conn, reply *protocol.Envelope, code, message string) {
	if err := r.registry.Send(ctx, conn, protocol.NewError(reply, code, message)); err != nil {
		r.log.Warn().Err(err).Str("conn_id", conn.ID()).Msg("failed to send error reply")
	}
}

func (r *Router) observe(kind protocol.Kind, outcome string, start time.Time) {
	if r.observer != nil {
		r.observer.ObserveDispatch(kind, outcome, time.Since(start))
	}
}
