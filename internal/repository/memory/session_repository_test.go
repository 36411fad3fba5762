package memory

import (
	"context"
	"testing"
	"time"

	convmemory "strive-chatbot-be/pkg/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionRepository_CompareAndSet(t *testing.T) {
	repo := NewSessionRepository(time.Hour)
	ctx := context.Background()

	_, err := repo.Load(ctx, "s1")
	assert.ErrorIs(t, err, convmemory.ErrNotFound)

	m := &convmemory.ConversationMemory{SessionID: "s1", TopicsDiscussed: []string{"budget"}}
	require.NoError(t, repo.Save(ctx, m))
	assert.Equal(t, int64(1), m.Version)

	stale := &convmemory.ConversationMemory{SessionID: "s1"}
	assert.ErrorIs(t, repo.Save(ctx, stale), convmemory.ErrVersionConflict)

	loaded, err := repo.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, []string{"budget"}, loaded.TopicsDiscussed)

	loaded.TopicsDiscussed = append(loaded.TopicsDiscussed, "schools")
	require.NoError(t, repo.Save(ctx, loaded))
	assert.Equal(t, int64(2), loaded.Version)

	require.NoError(t, repo.Delete(ctx, "s1"))
	_, err = repo.Load(ctx, "s1")
	assert.ErrorIs(t, err, convmemory.ErrNotFound)
}

func TestSessionRepository_LoadReturnsCopy(t *testing.T) {
	repo := NewSessionRepository(time.Hour)
	ctx := context.Background()
	require.NoError(t, repo.Save(ctx, &convmemory.ConversationMemory{SessionID: "s1", EntitiesViewed: []string{"p1"}}))

	first, err := repo.Load(ctx, "s1")
	require.NoError(t, err)
	first.EntitiesViewed[0] = "mutated"

	second, err := repo.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "p1", second.EntitiesViewed[0])
}

func TestSessionRepository_WithManager(t *testing.T) {
	manager := convmemory.NewManager(NewSessionRepository(time.Hour), convmemory.DefaultConfig(), nil)
	ctx := context.Background()

	require.NoError(t, manager.RecordQuestion(ctx, "s1", "What's your budget?"))
	asked, err := manager.HasQuestionBeenAsked(ctx, "s1", "what's your budget")
	require.NoError(t, err)
	assert.True(t, asked)
}
