package protocol

type AuthSuccess struct {
	Envelope
	Player PlayerState `json:"player"`
}

type AuthFailure struct {
	Envelope
	Reason string `json:"reason"`
}

// WorldState is the full snapshot sent after login and on request_sync.
type WorldState struct {
	Envelope
	Player        PlayerState         `json:"player"`
	NearbyPlayers []PublicPlayerState `json:"nearbyPlayers"`
	Creatures     []CreatureState     `json:"creatures"`
	GroundItems   []GroundItemState   `json:"groundItems"`
	MapID         string              `json:"mapId"`
}

type PlayerJoined struct {
	Envelope
	Player PublicPlayerState `json:"player"`
}

type PlayerLeft struct {
	Envelope
	PlayerID string `json:"playerId"`
}

type PlayerMoved struct {
	Envelope
	PlayerID       string    `json:"playerId"`
	Position       Position  `json:"position"`
	Direction      Direction `json:"direction"`
	IsRunning      bool      `json:"isRunning"`
	SequenceNumber uint64    `json:"sequenceNumber,omitempty"`
}

type CreatureSpawned struct {
	Envelope
	Creature CreatureState `json:"creature"`
}

type CreatureMoved struct {
	Envelope
	CreatureID string    `json:"creatureId"`
	Position   Position  `json:"position"`
	Direction  Direction `json:"direction"`
}

type CreatureDied struct {
	Envelope
	CreatureID string `json:"creatureId"`
	KillerID   string `json:"killerId,omitempty"`
}

type CreatureAttacked struct {
	Envelope
	CreatureID string `json:"creatureId"`
	TargetID   string `json:"targetId"`
}

type CombatDamage struct {
	Envelope
	AttackerID          string     `json:"attackerId"`
	TargetID            string     `json:"targetId"`
	Damage              int        `json:"damage"`
	DamageType          DamageType `json:"damageType"`
	IsCritical          bool       `json:"isCritical"`
	TargetCurrentHealth int        `json:"targetCurrentHealth"`
}

type CombatHeal struct {
	Envelope
	SourceID            string `json:"sourceId"`
	TargetID            string `json:"targetId"`
	Amount              int    `json:"amount"`
	IsCritical          bool   `json:"isCritical"`
	TargetCurrentHealth int    `json:"targetCurrentHealth"`
}

// CombatEffect announces a timed effect. Value is fractional for
// multipliers such as slows.
type CombatEffect struct {
	Envelope
	SourceID   string     `json:"sourceId"`
	TargetID   string     `json:"targetId"`
	Effect     EffectType `json:"effect"`
	DamageType DamageType `json:"damageType,omitempty"`
	DurationMS int        `json:"duration"`
	Value      float64    `json:"value,omitempty"`
}

type CombatDeath struct {
	Envelope
	TargetID string `json:"targetId"`
	KillerID string `json:"killerId,omitempty"`
}

type ItemDropped struct {
	Envelope
	Item GroundItemState `json:"item"`
}

type ItemPickedUp struct {
	Envelope
	GroundItemID string `json:"groundItemId"`
	PlayerID     string `json:"playerId"`
}

type ItemDespawned struct {
	Envelope
	GroundItemID string `json:"groundItemId"`
}

type InventoryUpdate struct {
	Envelope
	Inventory []InventoryItem `json:"inventory"`
}

type EquipmentUpdate struct {
	Envelope
	Equipment EquipmentSlots `json:"equipment"`
}

// ChatReceived is the server echo of a chat message.
type ChatReceived struct {
	Envelope
	Channel    ChatChannel `json:"channel"`
	SenderID   string      `json:"senderId"`
	SenderName string      `json:"senderName"`
	Content    string      `json:"content"`
}

type SystemNotice struct {
	Envelope
	Content string      `json:"content"`
	Level   NoticeLevel `json:"level"`
}

type Pong struct {
	Envelope
}

// Error reports a problem with one message; the connection stays open.
type Error struct {
	Envelope
	Code    string `json:"code"`
	Message string `json:"message"`
}

type GodModeEnabled struct {
	Envelope
}

type GodModeDisabled struct {
	Envelope
}

type MapChange struct {
	Envelope
	MapID    string   `json:"mapId"`
	Position Position `json:"position"`
}

type MapDataMessage struct {
	Envelope
	Map MapData `json:"map"`
}

type QuestUpdate struct {
	Envelope
	Quest QuestProgress `json:"quest"`
}

type QuestCompleted struct {
	Envelope
	QuestID          string `json:"questId"`
	ExperienceReward int64  `json:"experienceReward"`
	GoldReward       int64  `json:"goldReward"`
}

func (*AuthSuccess) Kind() Kind      { return KindAuthSuccess }
func (*AuthFailure) Kind() Kind      { return KindAuthFailure }
func (*WorldState) Kind() Kind       { return KindWorldState }
func (*PlayerJoined) Kind() Kind     { return KindPlayerJoined }
func (*PlayerLeft) Kind() Kind       { return KindPlayerLeft }
func (*PlayerMoved) Kind() Kind      { return KindPlayerMoved }
func (*CreatureSpawned) Kind() Kind  { return KindCreatureSpawned }
func (*CreatureMoved) Kind() Kind    { return KindCreatureMoved }
func (*CreatureDied) Kind() Kind     { return KindCreatureDied }
func (*CreatureAttacked) Kind() Kind { return KindCreatureAttacked }
func (*CombatDamage) Kind() Kind     { return KindCombatDamage }
func (*CombatHeal) Kind() Kind       { return KindCombatHeal }
func (*CombatEffect) Kind() Kind     { return KindCombatEffect }
func (*CombatDeath) Kind() Kind      { return KindCombatDeath }
func (*ItemDropped) Kind() Kind      { return KindItemDropped }
func (*ItemPickedUp) Kind() Kind     { return KindItemPickedUp }
func (*ItemDespawned) Kind() Kind    { return KindItemDespawned }
func (*InventoryUpdate) Kind() Kind  { return KindInventoryUpdate }
func (*EquipmentUpdate) Kind() Kind  { return KindEquipmentUpdate }
func (*ChatReceived) Kind() Kind     { return KindChatReceived }
func (*SystemNotice) Kind() Kind     { return KindSystemNotice }
func (*Pong) Kind() Kind             { return KindPong }
func (*Error) Kind() Kind            { return KindError }
func (*GodModeEnabled) Kind() Kind   { return KindGodModeEnabled }
func (*GodModeDisabled) Kind() Kind  { return KindGodModeDisabled }
func (*MapChange) Kind() Kind        { return KindMapChange }
func (*MapDataMessage) Kind() Kind   { return KindMapData }
func (*QuestUpdate) Kind() Kind      { return KindQuestUpdate }
func (*QuestCompleted) Kind() Kind   { return KindQuestCompleted }

func (*AuthSuccess) serverMessage()      {}
func (*AuthFailure) serverMessage()      {}
func (*WorldState) serverMessage()       {}
func (*PlayerJoined) serverMessage()     {}
func (*PlayerLeft) serverMessage()       {}
func (*PlayerMoved) serverMessage()      {}
func (*CreatureSpawned) serverMessage()  {}
func (*CreatureMoved) serverMessage()    {}
func (*CreatureDied) serverMessage()     {}
func (*CreatureAttacked) serverMessage() {}
func (*CombatDamage) serverMessage()     {}
func (*CombatHeal) serverMessage()       {}
func (*CombatEffect) serverMessage()     {}
func (*CombatDeath) serverMessage()      {}
func (*ItemDropped) serverMessage()      {}
func (*ItemPickedUp) serverMessage()     {}
func (*ItemDespawned) serverMessage()    {}
func (*InventoryUpdate) serverMessage()  {}
func (*EquipmentUpdate) serverMessage()  {}
func (*ChatReceived) serverMessage()     {}
func (*SystemNotice) serverMessage()     {}
func (*Pong) serverMessage()             {}
func (*Error) serverMessage()            {}
func (*GodModeEnabled) serverMessage()   {}
func (*GodModeDisabled) serverMessage()  {}
func (*MapChange) serverMessage()        {}
func (*MapDataMessage) serverMessage()   {}
func (*QuestUpdate) serverMessage()      {}
func (*QuestCompleted) serverMessage()   {}

// NewNotice builds a system notice.
func NewNotice(level NoticeLevel, content string) *SystemNotice {
	return &SystemNotice{Content: content, Level: level}
}

// NewError builds an error message replying to the envelope in reply, which
// may be nil.
func NewError(reply *Envelope, code, message string) *Error {
	e := &Error{Code: code, Message: message}
	if reply != nil {
		e.CorrelationID = reply.CorrelationID
	}
	return e
}
