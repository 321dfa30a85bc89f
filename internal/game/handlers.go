package game

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/peronio/realmnet"
	"github.com/peronio/realmnet/internal/auth"
	"github.com/peronio/realmnet/protocol"
)

// reply starts an outbound envelope that answers in.
func reply(in protocol.ClientMessage) protocol.Envelope {
	return protocol.Envelope{CorrelationID: in.Header().CorrelationID}
}

func (w *World) handleLogin(ctx context.Context, conn realmnet.Conn, msg protocol.ClientMessage) error {
	m := msg.(*protocol.AuthLogin)
	fail := func(reason string) error {
		w.log.Info().Str("conn_id", conn.ID()).Str("reason", reason).Msg("login refused")
		return w.send(ctx, conn, &protocol.AuthFailure{Envelope: reply(m), Reason: reason})
	}

	w.mu.RLock()
	_, already := w.byConn[conn.ID()]
	w.mu.RUnlock()
	if already {
		return fail("already authenticated")
	}

	sess, err := w.verifier.Verify(ctx, m.Token)
	if errors.Is(err, auth.ErrInvalidToken) {
		return fail("invalid token")
	}
	if err != nil {
		return fmt.Errorf("verify token: %w", err)
	}

	rec, err := w.store.Player(ctx, sess.PlayerID)
	if isNotFound(err) {
		return fail("player not found")
	}
	if err != nil {
		return fmt.Errorf("load player: %w", err)
	}
	if rec.IsBanned {
		return fail("account banned")
	}

	mapID := rec.MapID
	if mapID == "" {
		mapID = w.defaultMapID
	}
	if mapID == "" {
		return fail("no map assigned")
	}
	gm, err := w.loadMap(ctx, mapID)
	if isNotFound(err) {
		return fail("map not found")
	}
	if err != nil {
		return fmt.Errorf("load map: %w", err)
	}

	state := rec.State()
	if !gm.Data().InBounds(state.Position) {
		state.Position = gm.PlayerSpawn()
	}
	now := w.clock.Now().UTC()
	rec.LastLoginAt = &now

	p := &online{conn: conn, record: rec, state: state, mapID: mapID}
	if prev := w.attach(p); prev != nil {
		w.log.Info().Str("player_id", state.ID).Str("conn_id", prev.conn.ID()).Msg("replacing previous session")
		if err := prev.conn.CloseWithCode(ctx, websocket.CloseNormalClosure, realmnet.ReasonReplaced); err != nil {
			w.log.Debug().Err(err).Str("conn_id", prev.conn.ID()).Msg("close replaced session")
		}
		if prev.mapID != mapID {
			w.broadcastMap(ctx, prev.mapID, &protocol.PlayerLeft{PlayerID: state.ID}, conn.ID())
		}
	}
	w.persist(ctx, p)

	if err := w.send(ctx, conn, &protocol.AuthSuccess{Envelope: reply(m), Player: state}); err != nil {
		return err
	}
	if err := w.send(ctx, conn, &protocol.MapDataMessage{Map: gm.Data()}); err != nil {
		return err
	}
	if err := w.send(ctx, conn, w.snapshot(p)); err != nil {
		return err
	}
	w.broadcastMap(ctx, mapID, &protocol.PlayerJoined{Player: state.Public()}, conn.ID())

	w.log.Info().Str("conn_id", conn.ID()).Str("player_id", state.ID).Str("map_id", mapID).Msg("player logged in")
	return nil
}

func (w *World) handleLogout(ctx context.Context, p *online, msg protocol.ClientMessage) error {
	if w.detach(p.conn.ID()) == nil {
		return nil
	}
	w.persist(ctx, p)
	w.broadcastMap(ctx, p.mapID, &protocol.PlayerLeft{PlayerID: p.state.ID}, p.conn.ID())

	notice := protocol.NewNotice(protocol.NoticeInfo, "Logged out")
	notice.CorrelationID = msg.Header().CorrelationID
	return w.send(ctx, p.conn, notice)
}

func (w *World) handleMove(ctx context.Context, p *online, msg protocol.ClientMessage) error {
	m := msg.(*protocol.Move)
	gm, err := w.loadMap(ctx, p.mapID)
	if err != nil {
		return fmt.Errorf("load map: %w", err)
	}
	data := gm.Data()

	w.mu.Lock()
	next := p.state.Position.Adjacent(m.Direction)
	p.state.Direction = m.Direction
	if !data.InBounds(next) || (!p.state.IsGodMode && data.Blocked(next)) {
		p.state.IsMoving = false
		p.state.IsRunning = false
		correction := p.moved(reply(m))
		w.mu.Unlock()
		// only the mover learns about a refused step
		return w.send(ctx, p.conn, correction)
	}
	p.state.Position = next
	p.state.IsMoving = true
	p.state.IsRunning = m.Running
	p.seq++
	out := p.moved(reply(m))
	w.mu.Unlock()

	w.broadcastMap(ctx, p.mapID, out, "")
	return nil
}

func (w *World) handleStop(ctx context.Context, p *online, msg protocol.ClientMessage) error {
	w.mu.Lock()
	p.state.IsMoving = false
	p.state.IsRunning = false
	out := p.moved(reply(msg))
	w.mu.Unlock()

	w.broadcastMap(ctx, p.mapID, out, "")
	return nil
}

// moved must be called with w.mu held.
func (p *online) moved(env protocol.Envelope) *protocol.PlayerMoved {
	return &protocol.PlayerMoved{
		Envelope:       env,
		PlayerID:       p.state.ID,
		Position:       p.state.Position,
		Direction:      p.state.Direction,
		IsRunning:      p.state.IsRunning,
		SequenceNumber: p.seq,
	}
}

// sanitize strips markup from chat text.
func (w *World) sanitize(s string) string {
	return strings.TrimSpace(w.policy.Sanitize(html.UnescapeString(s)))
}

func (w *World) handleChat(ctx context.Context, p *online, msg protocol.ClientMessage) error {
	m := msg.(*protocol.Chat)

	content := w.sanitize(m.Content)
	if content == "" {
		return realmnet.NewClientError(realmnet.CodeInvalidMessage, "content: empty after removing markup")
	}

	w.mu.RLock()
	echo := &protocol.ChatReceived{
		Envelope:   reply(m),
		Channel:    m.Channel,
		SenderID:   p.state.ID,
		SenderName: p.state.Name,
		Content:    content,
	}
	admin := p.state.IsAdmin
	w.mu.RUnlock()

	switch m.Channel {
	case protocol.ChannelGlobal:
		w.broadcastOnline(ctx, echo)
	case protocol.ChannelLocal:
		w.broadcastMap(ctx, p.mapID, echo, "")
	case protocol.ChannelPrivate:
		if m.TargetPlayerID == "" {
			return realmnet.NewClientError(realmnet.CodeInvalidMessage, "targetPlayerId: required for private chat")
		}
		w.mu.RLock()
		target, ok := w.byID[m.TargetPlayerID]
		w.mu.RUnlock()
		if !ok {
			return realmnet.NewClientError(realmnet.CodeNotFound, "player is not online")
		}
		if err := w.send(ctx, target.conn, echo); err != nil {
			return err
		}
		if target.conn.ID() != p.conn.ID() {
			return w.send(ctx, p.conn, echo)
		}
	case protocol.ChannelSystem:
		if !admin {
			return realmnet.NewClientError(realmnet.CodeForbidden, "system channel is reserved for administrators")
		}
		w.broadcastOnline(ctx, protocol.NewNotice(protocol.NoticeInfo, content))
	default:
		return realmnet.NewClientError(realmnet.CodeUnsupportedChannel, fmt.Sprintf("channel %q is not available", m.Channel))
	}
	return nil
}

// broadcastOnline sends msg to every logged-in player.
func (w *World) broadcastOnline(ctx context.Context, msg protocol.ServerMessage) {
	w.mu.RLock()
	targets := make(map[string]struct{}, len(w.byConn))
	for id := range w.byConn {
		targets[id] = struct{}{}
	}
	w.mu.RUnlock()

	_, err := w.registry.Broadcast(ctx, msg, func(conn realmnet.Conn) bool {
		_, ok := targets[conn.ID()]
		return ok
	})
	if err != nil {
		w.log.Warn().Err(err).Str("kind", string(msg.Kind())).Msg("broadcast failed")
	}
}

func requireAdmin(w *World, p *online) error {
	w.mu.RLock()
	admin := p.state.IsAdmin
	w.mu.RUnlock()
	if !admin {
		return realmnet.NewClientError(realmnet.CodeForbidden, "administrator only")
	}
	return nil
}

func (w *World) handleGodToggle(ctx context.Context, p *online, msg protocol.ClientMessage) error {
	if err := requireAdmin(w, p); err != nil {
		return err
	}
	m := msg.(*protocol.GodToggle)

	w.mu.Lock()
	p.state.IsGodMode = m.Enabled
	w.mu.Unlock()

	w.log.Info().Str("player_id", p.state.ID).Bool("enabled", m.Enabled).Msg("god mode toggled")
	if m.Enabled {
		return w.send(ctx, p.conn, &protocol.GodModeEnabled{Envelope: reply(m)})
	}
	return w.send(ctx, p.conn, &protocol.GodModeDisabled{Envelope: reply(m)})
}

func (w *World) handleGodTeleport(ctx context.Context, p *online, msg protocol.ClientMessage) error {
	if err := requireAdmin(w, p); err != nil {
		return err
	}
	m := msg.(*protocol.GodTeleport)

	gm, err := w.loadMap(ctx, m.MapID)
	if isNotFound(err) {
		return realmnet.NewClientError(realmnet.CodeNotFound, "map not found")
	}
	if err != nil {
		return fmt.Errorf("load map: %w", err)
	}
	dest := protocol.Position{X: m.X, Y: m.Y}
	if !gm.Data().InBounds(dest) {
		return realmnet.NewClientError(realmnet.CodeInvalidMessage, fmt.Sprintf("position %d,%d is outside the map", m.X, m.Y))
	}

	w.mu.Lock()
	from := p.mapID
	p.mapID = m.MapID
	p.state.Position = dest
	p.state.IsMoving = false
	p.state.IsRunning = false
	p.seq++
	moved := p.moved(reply(m))
	public := p.state.Public()
	w.mu.Unlock()

	if from == m.MapID {
		w.broadcastMap(ctx, from, moved, "")
		return nil
	}

	w.broadcastMap(ctx, from, &protocol.PlayerLeft{PlayerID: public.ID}, p.conn.ID())
	if err := w.send(ctx, p.conn, &protocol.MapChange{Envelope: reply(m), MapID: m.MapID, Position: dest}); err != nil {
		return err
	}
	if err := w.send(ctx, p.conn, &protocol.MapDataMessage{Map: gm.Data()}); err != nil {
		return err
	}
	if err := w.send(ctx, p.conn, w.snapshot(p)); err != nil {
		return err
	}
	w.broadcastMap(ctx, m.MapID, &protocol.PlayerJoined{Player: public}, p.conn.ID())
	return nil
}

func (w *World) handlePing(ctx context.Context, conn realmnet.Conn, msg protocol.ClientMessage) error {
	return w.send(ctx, conn, &protocol.Pong{Envelope: reply(msg)})
}

func (w *World) handleRequestSync(ctx context.Context, p *online, msg protocol.ClientMessage) error {
	snap := w.snapshot(p)
	snap.CorrelationID = msg.Header().CorrelationID
	return w.send(ctx, p.conn, snap)
}
