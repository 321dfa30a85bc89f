// Package game holds the authoritative player registry and the handlers
// that turn validated client messages into world updates.
package game

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/peronio/realmnet"
	"github.com/peronio/realmnet/internal/auth"
	"github.com/peronio/realmnet/internal/dispatch"
	"github.com/peronio/realmnet/internal/store"
	"github.com/peronio/realmnet/protocol"
)

// NearbyRadius is the Manhattan distance within which players appear in
// each other's world snapshot.
const NearbyRadius = 20

// saveTimeout bounds the position save on disconnect, which runs after the
// connection context is gone.
const saveTimeout = 5 * time.Second

// Router is where the world registers its handlers. Both the transport
// server and dispatch.Router satisfy it.
type Router interface {
	Handle(kind protocol.Kind, handler realmnet.HandlerFunc) error
}

type Config struct {
	Store        store.Store
	Verifier     auth.Verifier
	Registry     *dispatch.Registry
	DefaultMapID string
	Clock        clock.Clock
	Logger       *zerolog.Logger
}

// online is a logged-in player bound to one connection.
type online struct {
	conn   realmnet.Conn
	record *store.Player
	state  protocol.PlayerState
	mapID  string
	seq    uint64
}

// World tracks which connection controls which player and fans updates out
// to the players on the same map.
type World struct {
	store        store.Store
	verifier     auth.Verifier
	registry     *dispatch.Registry
	defaultMapID string
	clock        clock.Clock
	policy       *bluemonday.Policy
	log          zerolog.Logger

	mu     sync.RWMutex
	byConn map[string]*online
	byID   map[string]*online
	maps   map[string]*store.Map
}

func NewWorld(cfg Config) *World {
	clk := cfg.Clock
	if clk == nil {
		clk = clock.New()
	}
	logger := log.Logger
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}
	return &World{
		store:        cfg.Store,
		verifier:     cfg.Verifier,
		registry:     cfg.Registry,
		defaultMapID: cfg.DefaultMapID,
		clock:        clk,
		policy:       bluemonday.StrictPolicy(),
		log:          logger.With().Str("component", "world").Logger(),
		byConn:       make(map[string]*online),
		byID:         make(map[string]*online),
		maps:         make(map[string]*store.Map),
	}
}

// Register installs every handler the world implements. Combat, skills and
// inventory kinds are left unregistered.
func (w *World) Register(r Router) error {
	handlers := map[protocol.Kind]realmnet.HandlerFunc{
		protocol.KindAuthLogin:   w.handleLogin,
		protocol.KindAuthLogout:  w.authed(w.handleLogout),
		protocol.KindMove:        w.authed(w.handleMove),
		protocol.KindStop:        w.authed(w.handleStop),
		protocol.KindChat:        w.authed(w.handleChat),
		protocol.KindGodToggle:   w.authed(w.handleGodToggle),
		protocol.KindGodTeleport: w.authed(w.handleGodTeleport),
		protocol.KindPing:        w.handlePing,
		protocol.KindRequestSync: w.authed(w.handleRequestSync),
	}
	for kind, h := range handlers {
		if err := r.Handle(kind, h); err != nil {
			return fmt.Errorf("register %s: %w", kind, err)
		}
	}
	return nil
}

// Online returns the number of logged-in players.
func (w *World) Online() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.byConn)
}

// PlayerState returns the live state of the player controlled by connID.
func (w *World) PlayerState(connID string) (protocol.PlayerState, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	p, ok := w.byConn[connID]
	if !ok {
		return protocol.PlayerState{}, false
	}
	return p.state, true
}

// Leave logs out whoever controls conn. The transport calls it after the
// connection left the registry.
func (w *World) Leave(conn realmnet.Conn, voluntary bool) {
	p := w.detach(conn.ID())
	if p == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()

	w.persist(ctx, p)
	w.broadcastMap(ctx, p.mapID, &protocol.PlayerLeft{PlayerID: p.state.ID}, "")
	w.log.Info().Str("conn_id", conn.ID()).Str("player_id", p.state.ID).Bool("voluntary", voluntary).Msg("player left")
}

type authedHandler func(ctx context.Context, p *online, msg protocol.ClientMessage) error

// authed rejects messages from connections that have not logged in.
func (w *World) authed(h authedHandler) realmnet.HandlerFunc {
	return func(ctx context.Context, conn realmnet.Conn, msg protocol.ClientMessage) error {
		w.mu.RLock()
		p, ok := w.byConn[conn.ID()]
		w.mu.RUnlock()
		if !ok {
			return realmnet.NewClientError(realmnet.CodeNotAuthenticated, "login required")
		}
		return h(ctx, p, msg)
	}
}

// attach binds p to its connection. A previous session of the same player
// is detached and returned so the caller can close it.
func (w *World) attach(p *online) *online {
	w.mu.Lock()
	defer w.mu.Unlock()

	prev := w.byID[p.state.ID]
	if prev != nil {
		delete(w.byConn, prev.conn.ID())
	}
	w.byConn[p.conn.ID()] = p
	w.byID[p.state.ID] = p
	return prev
}

func (w *World) detach(connID string) *online {
	w.mu.Lock()
	defer w.mu.Unlock()

	p, ok := w.byConn[connID]
	if !ok {
		return nil
	}
	delete(w.byConn, connID)
	if w.byID[p.state.ID] == p {
		delete(w.byID, p.state.ID)
	}
	return p
}

// loadMap returns a map from the cache or the store.
func (w *World) loadMap(ctx context.Context, id string) (*store.Map, error) {
	w.mu.RLock()
	m, ok := w.maps[id]
	w.mu.RUnlock()
	if ok {
		return m, nil
	}

	m, err := w.store.Map(ctx, id)
	if err != nil {
		return nil, err
	}
	w.mu.Lock()
	w.maps[id] = m
	w.mu.Unlock()
	return m, nil
}

// snapshot builds the world state for p.
func (w *World) snapshot(p *online) *protocol.WorldState {
	w.mu.RLock()
	defer w.mu.RUnlock()

	nearby := []protocol.PublicPlayerState{}
	for _, other := range w.byConn {
		if other == p || other.mapID != p.mapID {
			continue
		}
		if other.state.Position.ManhattanDistance(p.state.Position) > NearbyRadius {
			continue
		}
		nearby = append(nearby, other.state.Public())
	}
	return &protocol.WorldState{
		Player:        p.state,
		NearbyPlayers: nearby,
		Creatures:     []protocol.CreatureState{},
		GroundItems:   []protocol.GroundItemState{},
		MapID:         p.mapID,
	}
}

// broadcastMap sends msg to every player on mapID except the connection
// with id except.
func (w *World) broadcastMap(ctx context.Context, mapID string, msg protocol.ServerMessage, except string) {
	w.mu.RLock()
	targets := make(map[string]struct{})
	for id, p := range w.byConn {
		if p.mapID == mapID && id != except {
			targets[id] = struct{}{}
		}
	}
	w.mu.RUnlock()

	if len(targets) == 0 {
		return
	}
	_, err := w.registry.Broadcast(ctx, msg, func(conn realmnet.Conn) bool {
		_, ok := targets[conn.ID()]
		return ok
	})
	if err != nil {
		w.log.Warn().Err(err).Str("kind", string(msg.Kind())).Str("map_id", mapID).Msg("map broadcast failed")
	}
}

// persist writes the live state back to the player record.
func (w *World) persist(ctx context.Context, p *online) {
	w.mu.RLock()
	rec := *p.record
	rec.Position = p.state.Position
	rec.Stats = p.state.Stats
	rec.IsGodMode = p.state.IsGodMode
	rec.MapID = p.mapID
	w.mu.RUnlock()

	rec.UpdatedAt = w.clock.Now().UTC()
	if err := w.store.SavePlayer(ctx, &rec); err != nil {
		w.log.Error().Err(err).Str("player_id", rec.ID).Msg("failed to save player")
	}
}

func (w *World) send(ctx context.Context, conn realmnet.Conn, msg protocol.ServerMessage) error {
	return w.registry.Send(ctx, conn, msg)
}

func isNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}
