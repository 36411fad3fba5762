package memory

import (
	"context"
	"sync"
	"time"

	convmemory "strive-chatbot-be/pkg/memory"

	"github.com/patrickmn/go-cache"
)

// SessionRepository keeps conversation memory in process, with TTL eviction.
// Saves are compare-and-set on the memory version.
type SessionRepository struct {
	mu    sync.Mutex
	cache *cache.Cache
}

var _ convmemory.Store = (*SessionRepository)(nil)

func NewSessionRepository(ttl time.Duration) *SessionRepository {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &SessionRepository{
		cache: cache.New(ttl, 10*time.Minute),
	}
}

func (r *SessionRepository) Load(ctx context.Context, sessionID string) (*convmemory.ConversationMemory, error) {
	if x, found := r.cache.Get(sessionID); found {
		return x.(*convmemory.ConversationMemory).Clone(), nil
	}
	return nil, convmemory.ErrNotFound
}

func (r *SessionRepository) Save(ctx context.Context, m *convmemory.ConversationMemory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var current int64
	if x, found := r.cache.Get(m.SessionID); found {
		current = x.(*convmemory.ConversationMemory).Version
	}
	if current != m.Version {
		return convmemory.ErrVersionConflict
	}

	m.Version++
	r.cache.Set(m.SessionID, m.Clone(), cache.DefaultExpiration)
	return nil
}

func (r *SessionRepository) Delete(ctx context.Context, sessionID string) error {
	r.cache.Delete(sessionID)
	return nil
}
