package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Models lists every table AutoMigrate manages.
var Models = []any{&Map{}, &Player{}, &Item{}, &Quest{}}

// PostgresStore keeps records in Postgres through GORM.
type PostgresStore struct {
	db  *gorm.DB
	log zerolog.Logger
}

var _ Store = (*PostgresStore)(nil)

// OpenPostgres connects with dsn, configures the pool and migrates the
// schema.
func OpenPostgres(ctx context.Context, dsn string, logger zerolog.Logger) (*PostgresStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get database object: %w", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	s := &PostgresStore{db: db, log: logger.With().Str("component", "store").Logger()}
	if err := s.Migrate(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	s.log.Info().Msg("postgres store opened")
	return s, nil
}

// Migrate creates or updates every table in Models.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(Models...); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	return nil
}

func (s *PostgresStore) Player(ctx context.Context, id string) (*Player, error) {
	var p Player
	if err := s.first(ctx, &p, id); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *PostgresStore) SavePlayer(ctx context.Context, p *Player) error {
	return s.save(ctx, "player", p.ID, p)
}

func (s *PostgresStore) Map(ctx context.Context, id string) (*Map, error) {
	var m Map
	if err := s.first(ctx, &m, id); err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *PostgresStore) SaveMap(ctx context.Context, m *Map) error {
	return s.save(ctx, "map", m.ID, m)
}

func (s *PostgresStore) Item(ctx context.Context, id string) (*Item, error) {
	var it Item
	if err := s.first(ctx, &it, id); err != nil {
		return nil, err
	}
	return &it, nil
}

func (s *PostgresStore) SaveItem(ctx context.Context, it *Item) error {
	return s.save(ctx, "item", it.ID, it)
}

func (s *PostgresStore) Quest(ctx context.Context, id string) (*Quest, error) {
	var q Quest
	if err := s.first(ctx, &q, id); err != nil {
		return nil, err
	}
	return &q, nil
}

func (s *PostgresStore) SaveQuest(ctx context.Context, q *Quest) error {
	return s.save(ctx, "quest", q.ID, q)
}

func (s *PostgresStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *PostgresStore) first(ctx context.Context, dest any, id string) error {
	err := s.db.WithContext(ctx).First(dest, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return err
}

func (s *PostgresStore) save(ctx context.Context, kind, id string, v any) error {
	if err := requireID(kind, id); err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Save(v).Error; err != nil {
		return fmt.Errorf("save %s %s: %w", kind, id, err)
	}
	return nil
}
