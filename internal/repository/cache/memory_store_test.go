package cache

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	convmemory "strive-chatbot-be/pkg/memory"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestStore connects to REDIS_TEST_URL and skips when it is not set.
func newTestStore(t *testing.T) *MemoryStore {
	t.Helper()
	url := os.Getenv("REDIS_TEST_URL")
	if url == "" {
		t.Skip("REDIS_TEST_URL not set")
	}
	opt, err := redis.ParseURL(url)
	require.NoError(t, err)
	rdb := redis.NewClient(opt)
	t.Cleanup(func() { _ = rdb.Close() })
	require.NoError(t, rdb.Ping(context.Background()).Err())
	return NewMemoryStore(rdb, time.Minute)
}

func TestDecode(t *testing.T) {
	m, err := decode([]byte(`{"sessionId":"s1","version":3,"topicsDiscussed":["budget"]}`))
	require.NoError(t, err)
	assert.Equal(t, "s1", m.SessionID)
	assert.Equal(t, int64(3), m.Version)
	assert.NotNil(t, m.Mentions)

	_, err = decode([]byte("not json"))
	assert.Error(t, err)
}

func TestMemoryStore_CompareAndSet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	sessionID := uuid.NewString()
	t.Cleanup(func() { _ = store.Delete(ctx, sessionID) })

	_, err := store.Load(ctx, sessionID)
	assert.ErrorIs(t, err, convmemory.ErrNotFound)

	m := &convmemory.ConversationMemory{SessionID: sessionID, TopicsDiscussed: []string{"budget"}}
	require.NoError(t, store.Save(ctx, m))
	assert.Equal(t, int64(1), m.Version)

	assert.ErrorIs(t, store.Save(ctx, &convmemory.ConversationMemory{SessionID: sessionID}), convmemory.ErrVersionConflict)

	loaded, err := store.Load(ctx, sessionID)
	require.NoError(t, err)
	assert.Equal(t, []string{"budget"}, loaded.TopicsDiscussed)
	assert.Equal(t, int64(1), loaded.Version)
}

func TestMemoryStore_ConcurrentManagers(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	sessionID := uuid.NewString()
	t.Cleanup(func() { _ = store.Delete(ctx, sessionID) })

	cfg := convmemory.DefaultConfig()
	cfg.MaxRetries = 50
	manager := convmemory.NewManager(store, cfg, nil)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, manager.RecordView(ctx, sessionID, uuid.NewString()))
		}(i)
	}
	wg.Wait()

	mem, err := manager.Get(ctx, sessionID)
	require.NoError(t, err)
	assert.Len(t, mem.EntitiesViewed, 10)
}
