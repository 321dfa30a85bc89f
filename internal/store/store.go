// Package store persists the records the game world loads and saves:
// players, maps, item templates and quests.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/peronio/realmnet/protocol"
)

// ErrNotFound is returned when no record has the requested id.
var ErrNotFound = errors.New("record not found")

// ErrClosed is returned by a store used after Close.
var ErrClosed = errors.New("store is closed")

// Store is the persistence collaborator of the world. Implementations are
// safe for concurrent use.
type Store interface {
	Player(ctx context.Context, id string) (*Player, error)
	SavePlayer(ctx context.Context, p *Player) error
	Map(ctx context.Context, id string) (*Map, error)
	SaveMap(ctx context.Context, m *Map) error
	Item(ctx context.Context, id string) (*Item, error)
	SaveItem(ctx context.Context, it *Item) error
	Quest(ctx context.Context, id string) (*Quest, error)
	SaveQuest(ctx context.Context, q *Quest) error
	Close() error
}

// Player is a persisted character.
type Player struct {
	ID             string                   `json:"id" gorm:"type:uuid;primaryKey"`
	Email          string                   `json:"email" gorm:"size:255;uniqueIndex;not null"`
	Name           string                   `json:"name" gorm:"size:32;uniqueIndex;not null"`
	CharacterClass protocol.CharacterClass  `json:"characterClass" gorm:"size:16;not null"`
	Level          int                      `json:"level" gorm:"default:1;not null"`
	Experience     int64                    `json:"experience" gorm:"default:0;not null"`
	Stats          protocol.PlayerStats     `json:"stats" gorm:"embedded"`
	MapID          string                   `json:"mapId" gorm:"type:uuid"`
	Position       protocol.Position        `json:"position" gorm:"embedded;embeddedPrefix:position_"`
	IsAdmin        bool                     `json:"isAdmin" gorm:"default:false;not null"`
	IsGodMode      bool                     `json:"isGodMode" gorm:"default:false;not null"`
	IsBanned       bool                     `json:"isBanned" gorm:"default:false;not null"`
	Equipment      protocol.EquipmentSlots  `json:"equipment" gorm:"serializer:json"`
	Inventory      []protocol.InventoryItem `json:"inventory" gorm:"serializer:json"`
	Gold           int64                    `json:"gold" gorm:"default:0;not null"`
	CreatedAt      time.Time                `json:"createdAt"`
	UpdatedAt      time.Time                `json:"updatedAt"`
	LastLoginAt    *time.Time               `json:"lastLoginAt,omitempty"`
}

// State is the private wire view of the player. Direction defaults to down
// and the movement flags start cleared.
func (p *Player) State() protocol.PlayerState {
	return protocol.PlayerState{
		ID:             p.ID,
		Name:           p.Name,
		CharacterClass: p.CharacterClass,
		Level:          p.Level,
		Experience:     p.Experience,
		Stats:          p.Stats,
		Position:       p.Position,
		Direction:      protocol.DirectionDown,
		IsAdmin:        p.IsAdmin,
		IsGodMode:      p.IsGodMode,
	}
}

// Map is a persisted map with its publishing flags.
type Map struct {
	ID           string                `json:"id" gorm:"type:uuid;primaryKey"`
	Name         string                `json:"name" gorm:"size:128;not null"`
	Width        int                   `json:"width" gorm:"not null"`
	Height       int                   `json:"height" gorm:"not null"`
	Layers       []protocol.TileLayer  `json:"layers" gorm:"column:tile_data;serializer:json"`
	Collisions   [][]bool              `json:"collisions" gorm:"column:collision_data;serializer:json"`
	SpawnPoints  []protocol.SpawnPoint `json:"spawnPoints" gorm:"serializer:json"`
	Portals      []protocol.Portal     `json:"portals" gorm:"serializer:json"`
	PvPZones     []protocol.Rectangle  `json:"pvpZones" gorm:"column:pvp_zones;serializer:json"`
	SafeZones    []protocol.Rectangle  `json:"safeZones" gorm:"serializer:json"`
	IsPublished  bool                  `json:"isPublished" gorm:"default:false;not null"`
	IsPvPEnabled bool                  `json:"isPvpEnabled" gorm:"column:is_pvp_enabled;default:false;not null"`
	CreatedAt    time.Time             `json:"createdAt"`
	UpdatedAt    time.Time             `json:"updatedAt"`
}

// Data is the wire form of the map.
func (m *Map) Data() protocol.MapData {
	return protocol.MapData{
		ID:          m.ID,
		Name:        m.Name,
		Width:       m.Width,
		Height:      m.Height,
		Layers:      m.Layers,
		Collisions:  m.Collisions,
		SpawnPoints: m.SpawnPoints,
		Portals:     m.Portals,
		PvPZones:    m.PvPZones,
		SafeZones:   m.SafeZones,
	}
}

// PlayerSpawn returns the first player spawn point, or the map centre.
func (m *Map) PlayerSpawn() protocol.Position {
	for _, sp := range m.SpawnPoints {
		if sp.Type == "player" {
			return protocol.Position{X: sp.X, Y: sp.Y}
		}
	}
	return protocol.Position{X: m.Width / 2, Y: m.Height / 2}
}

type ItemType string

const (
	ItemWeapon     ItemType = "weapon"
	ItemArmor      ItemType = "armor"
	ItemConsumable ItemType = "consumable"
	ItemQuest      ItemType = "quest"
	ItemMaterial   ItemType = "material"
)

type ItemRarity string

const (
	RarityCommon    ItemRarity = "common"
	RarityUncommon  ItemRarity = "uncommon"
	RarityRare      ItemRarity = "rare"
	RarityEpic      ItemRarity = "epic"
	RarityLegendary ItemRarity = "legendary"
)

// Item is an item template. Inventory entries and ground items refer to it
// by id.
type Item struct {
	ID            string                  `json:"id" gorm:"type:uuid;primaryKey"`
	Name          string                  `json:"name" gorm:"size:64;not null"`
	Description   string                  `json:"description,omitempty" gorm:"size:512"`
	SpriteID      string                  `json:"spriteId" gorm:"size:64;not null"`
	Type          ItemType                `json:"type" gorm:"size:16;not null"`
	Rarity        ItemRarity              `json:"rarity" gorm:"size:16;default:common;not null"`
	RequiredLevel int                     `json:"requiredLevel" gorm:"default:1;not null"`
	RequiredClass protocol.CharacterClass `json:"requiredClass,omitempty" gorm:"size:16"`
	Attack        int                     `json:"attack,omitempty"`
	Defense       int                     `json:"defense,omitempty"`
	HealthBonus   int                     `json:"healthBonus,omitempty"`
	ManaBonus     int                     `json:"manaBonus,omitempty"`
	BuyPrice      int                     `json:"buyPrice,omitempty"`
	SellPrice     int                     `json:"sellPrice,omitempty"`
	IsStackable   bool                    `json:"isStackable" gorm:"default:false;not null"`
	MaxStack      int                     `json:"maxStack" gorm:"default:1"`
	CreatedAt     time.Time               `json:"createdAt"`
}

type QuestObjective struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Target      string `json:"target"`
	TargetCount int    `json:"targetCount"`
}

type ItemReward struct {
	ItemID   string `json:"itemId"`
	Quantity int    `json:"quantity"`
}

type Quest struct {
	ID                  string           `json:"id" gorm:"type:uuid;primaryKey"`
	Name                string           `json:"name" gorm:"size:128;not null"`
	Description         string           `json:"description" gorm:"size:2048;not null"`
	RequiredLevel       int              `json:"requiredLevel" gorm:"default:1;not null"`
	PrerequisiteQuestID string           `json:"prerequisiteQuestId,omitempty" gorm:"type:uuid"`
	Objectives          []QuestObjective `json:"objectives" gorm:"serializer:json;not null"`
	ExperienceReward    int64            `json:"experienceReward" gorm:"default:0;not null"`
	GoldReward          int64            `json:"goldReward" gorm:"default:0;not null"`
	ItemRewards         []ItemReward     `json:"itemRewards" gorm:"serializer:json"`
	IsRepeatable        bool             `json:"isRepeatable" gorm:"default:false;not null"`
	IsMainQuest         bool             `json:"isMainQuest" gorm:"default:false;not null"`
	CreatedAt           time.Time        `json:"createdAt"`
}

// Options selects and configures a backend. DatabaseURL wins over DataPath.
type Options struct {
	DatabaseURL string
	DataPath    string
	Logger      zerolog.Logger
}

var errNoBackend = errors.New("store: neither DATABASE_URL nor DATA_PATH is set")

// Open returns the backend selected by opts.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch {
	case opts.DatabaseURL != "":
		s, err := OpenPostgres(ctx, opts.DatabaseURL, opts.Logger)
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		return s, nil
	case opts.DataPath != "":
		s, err := OpenPebble(opts.DataPath, nil, opts.Logger)
		if err != nil {
			return nil, fmt.Errorf("open pebble store: %w", err)
		}
		return s, nil
	}
	return nil, errNoBackend
}

func requireID(kind, id string) error {
	if id == "" {
		return fmt.Errorf("store: %s id is empty", kind)
	}
	return nil
}
