package protocol

// Kind is the discriminant carried in the "type" field of every envelope.
type Kind string

// Client-origin kinds.
const (
	KindAuthLogin   Kind = "auth:login"
	KindAuthLogout  Kind = "auth:logout"
	KindMove        Kind = "player:move"
	KindStop        Kind = "player:stop"
	KindAttack      Kind = "combat:attack"
	KindUseSkill    Kind = "combat:use_skill"
	KindChat        Kind = "chat:message"
	KindPickupItem  Kind = "inventory:pickup"
	KindDropItem    Kind = "inventory:drop"
	KindGodToggle   Kind = "god:toggle"
	KindGodTeleport Kind = "god:teleport"
	KindPing        Kind = "system:ping"
	KindRequestSync Kind = "system:request_sync"
)

// Server-origin kinds.
const (
	KindAuthSuccess      Kind = "auth:success"
	KindAuthFailure      Kind = "auth:failure"
	KindWorldState       Kind = "world:state"
	KindPlayerJoined     Kind = "player:joined"
	KindPlayerLeft       Kind = "player:left"
	KindPlayerMoved      Kind = "player:moved"
	KindCreatureSpawned  Kind = "creature:spawned"
	KindCreatureMoved    Kind = "creature:moved"
	KindCreatureDied     Kind = "creature:died"
	KindCreatureAttacked Kind = "creature:attacked"
	KindCombatDamage     Kind = "combat:damage"
	KindCombatHeal       Kind = "combat:heal"
	KindCombatEffect     Kind = "combat:effect"
	KindCombatDeath      Kind = "combat:death"
	KindItemDropped      Kind = "item:dropped"
	KindItemPickedUp     Kind = "item:picked_up"
	KindItemDespawned    Kind = "item:despawned"
	KindInventoryUpdate  Kind = "inventory:update"
	KindEquipmentUpdate  Kind = "equipment:update"
	KindChatReceived     Kind = "chat:received"
	KindSystemNotice     Kind = "system:message"
	KindPong             Kind = "system:pong"
	KindError            Kind = "system:error"
	KindGodModeEnabled   Kind = "god:enabled"
	KindGodModeDisabled  Kind = "god:disabled"
	KindMapChange        Kind = "map:change"
	KindMapData          Kind = "map:data"
	KindQuestUpdate      Kind = "quest:update"
	KindQuestCompleted   Kind = "quest:completed"
)

// Version is the protocol version the kind sets below belong to.
const Version = 1

var clientKinds = map[Kind]struct{}{
	KindAuthLogin:   {},
	KindAuthLogout:  {},
	KindMove:        {},
	KindStop:        {},
	KindAttack:      {},
	KindUseSkill:    {},
	KindChat:        {},
	KindPickupItem:  {},
	KindDropItem:    {},
	KindGodToggle:   {},
	KindGodTeleport: {},
	KindPing:        {},
	KindRequestSync: {},
}

var serverKinds = map[Kind]func() ServerMessage{
	KindAuthSuccess:      func() ServerMessage { return &AuthSuccess{} },
	KindAuthFailure:      func() ServerMessage { return &AuthFailure{} },
	KindWorldState:       func() ServerMessage { return &WorldState{} },
	KindPlayerJoined:     func() ServerMessage { return &PlayerJoined{} },
	KindPlayerLeft:       func() ServerMessage { return &PlayerLeft{} },
	KindPlayerMoved:      func() ServerMessage { return &PlayerMoved{} },
	KindCreatureSpawned:  func() ServerMessage { return &CreatureSpawned{} },
	KindCreatureMoved:    func() ServerMessage { return &CreatureMoved{} },
	KindCreatureDied:     func() ServerMessage { return &CreatureDied{} },
	KindCreatureAttacked: func() ServerMessage { return &CreatureAttacked{} },
	KindCombatDamage:     func() ServerMessage { return &CombatDamage{} },
	KindCombatHeal:       func() ServerMessage { return &CombatHeal{} },
	KindCombatEffect:     func() ServerMessage { return &CombatEffect{} },
	KindCombatDeath:      func() ServerMessage { return &CombatDeath{} },
	KindItemDropped:      func() ServerMessage { return &ItemDropped{} },
	KindItemPickedUp:     func() ServerMessage { return &ItemPickedUp{} },
	KindItemDespawned:    func() ServerMessage { return &ItemDespawned{} },
	KindInventoryUpdate:  func() ServerMessage { return &InventoryUpdate{} },
	KindEquipmentUpdate:  func() ServerMessage { return &EquipmentUpdate{} },
	KindChatReceived:     func() ServerMessage { return &ChatReceived{} },
	KindSystemNotice:     func() ServerMessage { return &SystemNotice{} },
	KindPong:             func() ServerMessage { return &Pong{} },
	KindError:            func() ServerMessage { return &Error{} },
	KindGodModeEnabled:   func() ServerMessage { return &GodModeEnabled{} },
	KindGodModeDisabled:  func() ServerMessage { return &GodModeDisabled{} },
	KindMapChange:        func() ServerMessage { return &MapChange{} },
	KindMapData:          func() ServerMessage { return &MapDataMessage{} },
	KindQuestUpdate:      func() ServerMessage { return &QuestUpdate{} },
	KindQuestCompleted:   func() ServerMessage { return &QuestCompleted{} },
}

// IsClientKind reports whether k belongs to the client-origin set.
func (k Kind) IsClientKind() bool {
	_, ok := clientKinds[k]
	return ok
}

// IsServerKind reports whether k belongs to the server-origin set.
func (k Kind) IsServerKind() bool {
	_, ok := serverKinds[k]
	return ok
}

// ClientKinds returns every client-origin kind.
func ClientKinds() []Kind {
	out := make([]Kind, 0, len(clientKinds))
	for k := range clientKinds {
		out = append(out, k)
	}
	return out
}

// ServerKinds returns every server-origin kind.
func ServerKinds() []Kind {
	out := make([]Kind, 0, len(serverKinds))
	for k := range serverKinds {
		out = append(out, k)
	}
	return out
}
