package protocol

// Position is a tile coordinate.
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Adjacent returns the neighbouring tile in the given direction.
func (p Position) Adjacent(d Direction) Position {
	switch d {
	case DirectionUp:
		return Position{X: p.X, Y: p.Y - 1}
	case DirectionDown:
		return Position{X: p.X, Y: p.Y + 1}
	case DirectionLeft:
		return Position{X: p.X - 1, Y: p.Y}
	case DirectionRight:
		return Position{X: p.X + 1, Y: p.Y}
	}
	return p
}

// ManhattanDistance returns |dx| + |dy| between p and q.
func (p Position) ManhattanDistance(q Position) int {
	return abs(q.X-p.X) + abs(q.Y-p.Y)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

type Direction string

const (
	DirectionUp    Direction = "up"
	DirectionDown  Direction = "down"
	DirectionLeft  Direction = "left"
	DirectionRight Direction = "right"
)

var directions = []string{"up", "down", "left", "right"}

type TargetType string

const (
	TargetPlayer   TargetType = "player"
	TargetCreature TargetType = "creature"
)

var targetTypes = []string{"player", "creature"}

type ChatChannel string

const (
	ChannelGlobal  ChatChannel = "global"
	ChannelLocal   ChatChannel = "local"
	ChannelParty   ChatChannel = "party"
	ChannelGuild   ChatChannel = "guild"
	ChannelPrivate ChatChannel = "private"
	ChannelSystem  ChatChannel = "system"
)

var chatChannels = []string{"global", "local", "party", "guild", "private", "system"}

// NoticeLevel is the severity of a system notice.
type NoticeLevel string

const (
	NoticeInfo    NoticeLevel = "info"
	NoticeWarning NoticeLevel = "warning"
	NoticeError   NoticeLevel = "error"
)

type DamageType string

const (
	DamagePhysical  DamageType = "physical"
	DamageFire      DamageType = "fire"
	DamageIce       DamageType = "ice"
	DamageLightning DamageType = "lightning"
	DamagePoison    DamageType = "poison"
	DamageHoly      DamageType = "holy"
	DamageNature    DamageType = "nature"
)

type EffectType string

const (
	EffectDamageOverTime EffectType = "dot"
	EffectSlow           EffectType = "slow"
	EffectStun           EffectType = "stun"
	EffectHealOverTime   EffectType = "heal_over_time"
	EffectBuff           EffectType = "buff"
	EffectDebuff         EffectType = "debuff"
)

type CharacterClass string

const (
	ClassKnight   CharacterClass = "knight"
	ClassPaladin  CharacterClass = "paladin"
	ClassSorcerer CharacterClass = "sorcerer"
	ClassDruid    CharacterClass = "druid"
)

type PlayerStats struct {
	Health       int `json:"health"`
	MaxHealth    int `json:"maxHealth"`
	Mana         int `json:"mana"`
	MaxMana      int `json:"maxMana"`
	Strength     int `json:"strength"`
	Dexterity    int `json:"dexterity"`
	Intelligence int `json:"intelligence"`
	Vitality     int `json:"vitality"`
}

// PlayerState is the private view of a player, only ever sent to its owner.
type PlayerState struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	CharacterClass CharacterClass `json:"characterClass"`
	Level          int            `json:"level"`
	Experience     int64          `json:"experience"`
	Stats          PlayerStats    `json:"stats"`
	Position       Position       `json:"position"`
	Direction      Direction      `json:"direction"`
	IsAdmin        bool           `json:"isAdmin"`
	IsGodMode      bool           `json:"isGodMode"`
	IsMoving       bool           `json:"isMoving"`
	IsRunning      bool           `json:"isRunning"`
}

// Public strips the fields other players may not see.
func (p PlayerState) Public() PublicPlayerState {
	return PublicPlayerState{
		ID:             p.ID,
		Name:           p.Name,
		CharacterClass: p.CharacterClass,
		Level:          p.Level,
		Position:       p.Position,
		Direction:      p.Direction,
		IsMoving:       p.IsMoving,
		Health:         p.Stats.Health,
		MaxHealth:      p.Stats.MaxHealth,
	}
}

type PublicPlayerState struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	CharacterClass CharacterClass `json:"characterClass"`
	Level          int            `json:"level"`
	Position       Position       `json:"position"`
	Direction      Direction      `json:"direction"`
	IsMoving       bool           `json:"isMoving"`
	Health         int            `json:"health"`
	MaxHealth      int            `json:"maxHealth"`
}

type CreatureState struct {
	ID         string    `json:"id"`
	TemplateID string    `json:"templateId"`
	Name       string    `json:"name"`
	Position   Position  `json:"position"`
	Direction  Direction `json:"direction"`
	Health     int       `json:"health"`
	MaxHealth  int       `json:"maxHealth"`
	IsMoving   bool      `json:"isMoving"`
}

// GroundItemState is an item instance lying in the world.
type GroundItemState struct {
	ID       string   `json:"id"`
	ItemID   string   `json:"itemId"`
	Position Position `json:"position"`
	Quantity int      `json:"quantity"`
}

type InventoryItem struct {
	ItemID   string         `json:"itemId"`
	Quantity int            `json:"quantity"`
	Slot     int            `json:"slot"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

type EquipmentSlot string

const (
	SlotWeapon EquipmentSlot = "weapon"
	SlotShield EquipmentSlot = "shield"
	SlotHelmet EquipmentSlot = "helmet"
	SlotArmor  EquipmentSlot = "armor"
	SlotBoots  EquipmentSlot = "boots"
	SlotRing1  EquipmentSlot = "ring1"
	SlotRing2  EquipmentSlot = "ring2"
	SlotAmulet EquipmentSlot = "amulet"
)

// EquipmentSlots maps an occupied slot to the equipped item id.
type EquipmentSlots map[EquipmentSlot]string

type Rectangle struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Contains reports whether p lies inside r.
func (r Rectangle) Contains(p Position) bool {
	return p.X >= r.X && p.X < r.X+r.Width && p.Y >= r.Y && p.Y < r.Y+r.Height
}

type TileLayer struct {
	Name    string      `json:"name"`
	ZIndex  int         `json:"zIndex"`
	Tiles   [][]*string `json:"tiles"`
	Visible bool        `json:"visible"`
}

type SpawnPoint struct {
	ID                 string `json:"id"`
	X                  int    `json:"x"`
	Y                  int    `json:"y"`
	Type               string `json:"type"`
	CreatureTemplateID string `json:"creatureTemplateId,omitempty"`
	RespawnTime        int    `json:"respawnTime,omitempty"`
}

type Portal struct {
	ID          string    `json:"id"`
	SourceRect  Rectangle `json:"sourceRect"`
	TargetMapID string    `json:"targetMapId"`
	TargetX     int       `json:"targetX"`
	TargetY     int       `json:"targetY"`
}

type MapData struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Width       int          `json:"width"`
	Height      int          `json:"height"`
	Layers      []TileLayer  `json:"layers"`
	Collisions  [][]bool     `json:"collisions"`
	SpawnPoints []SpawnPoint `json:"spawnPoints"`
	Portals     []Portal     `json:"portals"`
	PvPZones    []Rectangle  `json:"pvpZones"`
	SafeZones   []Rectangle  `json:"safeZones"`
}

// InBounds reports whether p is a tile of the map.
func (m MapData) InBounds(p Position) bool {
	return p.X >= 0 && p.Y >= 0 && p.X < m.Width && p.Y < m.Height
}

// Blocked reports whether the collision layer marks p as solid.
func (m MapData) Blocked(p Position) bool {
	if p.Y < 0 || p.Y >= len(m.Collisions) {
		return false
	}
	row := m.Collisions[p.Y]
	if p.X < 0 || p.X >= len(row) {
		return false
	}
	return row[p.X]
}

type QuestStatus string

const (
	QuestStatusAvailable  QuestStatus = "available"
	QuestStatusInProgress QuestStatus = "in_progress"
	QuestStatusCompleted  QuestStatus = "completed"
	QuestStatusFailed     QuestStatus = "failed"
)

type QuestProgress struct {
	QuestID     string         `json:"questId"`
	Status      QuestStatus    `json:"status"`
	Progress    map[string]int `json:"progress"`
	StartedAt   string         `json:"startedAt,omitempty"`
	CompletedAt string         `json:"completedAt,omitempty"`
}
