package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	convmemory "strive-chatbot-be/pkg/memory"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "chat:memory:"

// MemoryStore keeps conversation memory in Redis so several instances can share sessions.
// Save uses WATCH/MULTI, so a concurrent writer turns into ErrVersionConflict.
type MemoryStore struct {
	rdb *redis.Client
	ttl time.Duration
}

var _ convmemory.Store = (*MemoryStore)(nil)

func NewMemoryStore(rdb *redis.Client, ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &MemoryStore{rdb: rdb, ttl: ttl}
}

func key(sessionID string) string {
	return keyPrefix + sessionID
}

func (s *MemoryStore) Load(ctx context.Context, sessionID string) (*convmemory.ConversationMemory, error) {
	data, err := s.rdb.Get(ctx, key(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, convmemory.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}
	return decode(data)
}

func (s *MemoryStore) Save(ctx context.Context, m *convmemory.ConversationMemory) error {
	k := key(m.SessionID)

	next := m.Clone()
	next.Version = m.Version + 1
	data, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("encode memory: %w", err)
	}

	err = s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		current, err := currentVersion(ctx, tx, k)
		if err != nil {
			return err
		}
		if current != m.Version {
			return convmemory.ErrVersionConflict
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, k, data, s.ttl)
			return nil
		})
		return err
	}, k)

	switch {
	case err == nil:
		m.Version = next.Version
		return nil
	case errors.Is(err, redis.TxFailedErr):
		return convmemory.ErrVersionConflict
	default:
		return err
	}
}

func (s *MemoryStore) Delete(ctx context.Context, sessionID string) error {
	if err := s.rdb.Del(ctx, key(sessionID)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

func currentVersion(ctx context.Context, tx *redis.Tx, k string) (int64, error) {
	data, err := tx.Get(ctx, k).Bytes()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis get: %w", err)
	}
	m, err := decode(data)
	if err != nil {
		return 0, err
	}
	return m.Version, nil
}

func decode(data []byte) (*convmemory.ConversationMemory, error) {
	var m convmemory.ConversationMemory
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode memory: %w", err)
	}
	if m.Mentions == nil {
		m.Mentions = map[string][]string{}
	}
	return &m, nil
}
