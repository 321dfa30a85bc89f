package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/cockroachdb/pebble/v2"
	"github.com/cockroachdb/pebble/v2/vfs"
	"github.com/rs/zerolog"
)

// Key prefixes. Values are the JSON encoding of the record.
const (
	prefixPlayer = "player/"
	prefixMap    = "map/"
	prefixItem   = "item/"
	prefixQuest  = "quest/"
)

// PebbleStore keeps every record in one Pebble database. Calls made after
// Close return ErrClosed.
type PebbleStore struct {
	mu     sync.RWMutex
	closed bool
	db     *pebble.DB
	log    zerolog.Logger
}

var _ Store = (*PebbleStore)(nil)

// OpenPebble opens or creates the database in dir. A non-nil fs replaces
// the disk, which tests use with vfs.NewMem().
func OpenPebble(dir string, fs vfs.FS, logger zerolog.Logger) (*PebbleStore, error) {
	opts := &pebble.Options{}
	if fs != nil {
		opts.FS = fs
	} else {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
		dir = filepath.Clean(dir)
	}
	db, err := pebble.Open(dir, opts)
	if err != nil {
		return nil, fmt.Errorf("open pebble db: %w", err)
	}
	logger.Info().Str("dir", dir).Msg("pebble store opened")
	return &PebbleStore{db: db, log: logger.With().Str("component", "store").Logger()}, nil
}

func (s *PebbleStore) Player(ctx context.Context, id string) (*Player, error) {
	var p Player
	if err := s.get(ctx, prefixPlayer, id, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *PebbleStore) SavePlayer(ctx context.Context, p *Player) error {
	return s.put(ctx, prefixPlayer, p.ID, p)
}

func (s *PebbleStore) Map(ctx context.Context, id string) (*Map, error) {
	var m Map
	if err := s.get(ctx, prefixMap, id, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *PebbleStore) SaveMap(ctx context.Context, m *Map) error {
	return s.put(ctx, prefixMap, m.ID, m)
}

func (s *PebbleStore) Item(ctx context.Context, id string) (*Item, error) {
	var it Item
	if err := s.get(ctx, prefixItem, id, &it); err != nil {
		return nil, err
	}
	return &it, nil
}

func (s *PebbleStore) SaveItem(ctx context.Context, it *Item) error {
	return s.put(ctx, prefixItem, it.ID, it)
}

func (s *PebbleStore) Quest(ctx context.Context, id string) (*Quest, error) {
	var q Quest
	if err := s.get(ctx, prefixQuest, id, &q); err != nil {
		return nil, err
	}
	return &q, nil
}

func (s *PebbleStore) SaveQuest(ctx context.Context, q *Quest) error {
	return s.put(ctx, prefixQuest, q.ID, q)
}

// MapIDs lists the ids of every stored map in key order.
func (s *PebbleStore) MapIDs(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	it, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(prefixMap),
		UpperBound: prefixEnd(prefixMap),
	})
	if err != nil {
		return nil, err
	}
	defer func() { _ = it.Close() }()

	var ids []string
	for it.First(); it.Valid(); it.Next() {
		ids = append(ids, string(it.Key()[len(prefixMap):]))
	}
	return ids, it.Error()
}

func (s *PebbleStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func (s *PebbleStore) get(ctx context.Context, prefix, id string, v any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	val, closer, err := s.db.Get([]byte(prefix + id))
	if errors.Is(err, pebble.ErrNotFound) {
		return fmt.Errorf("%w: %s%s", ErrNotFound, prefix, id)
	}
	if err != nil {
		return err
	}
	defer func() { _ = closer.Close() }()

	if err := json.Unmarshal(val, v); err != nil {
		return fmt.Errorf("decode %s%s: %w", prefix, id, err)
	}
	return nil
}

func (s *PebbleStore) put(ctx context.Context, prefix, id string, v any) error {
	if err := requireID(prefix[:len(prefix)-1], id); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s%s: %w", prefix, id, err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	if err := s.db.Set([]byte(prefix+id), data, pebble.Sync); err != nil {
		return err
	}
	s.log.Debug().Str("key", prefix+id).Int("bytes", len(data)).Msg("record saved")
	return nil
}

// prefixEnd is the smallest key greater than every key with prefix.
func prefixEnd(prefix string) []byte {
	end := []byte(prefix)
	end[len(end)-1]++
	return end
}
