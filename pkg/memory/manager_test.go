package memory

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"strive-chatbot-be/pkg/extraction"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mapStore is a minimal versioned store for exercising the manager.
type mapStore struct {
	mu        sync.Mutex
	data      map[string]*ConversationMemory
	conflicts int // number of Save calls to reject before accepting
}

func newMapStore() *mapStore {
	return &mapStore{data: map[string]*ConversationMemory{}}
}

func (s *mapStore) Load(ctx context.Context, id string) (*ConversationMemory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.data[id]
	if !ok {
		return nil, ErrNotFound
	}
	return m.Clone(), nil
}

func (s *mapStore) Save(ctx context.Context, m *ConversationMemory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conflicts > 0 {
		s.conflicts--
		return ErrVersionConflict
	}
	var current int64
	if existing, ok := s.data[m.SessionID]; ok {
		current = existing.Version
	}
	if current != m.Version {
		return ErrVersionConflict
	}
	m.Version++
	s.data[m.SessionID] = m.Clone()
	return nil
}

func (s *mapStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, id)
	return nil
}

type failingStore struct{}

func (failingStore) Load(context.Context, string) (*ConversationMemory, error) {
	return nil, errors.New("redis down")
}
func (failingStore) Save(context.Context, *ConversationMemory) error { return errors.New("redis down") }
func (failingStore) Delete(context.Context, string) error             { return errors.New("redis down") }

func newTestManager(store Store, now time.Time) *Manager {
	return NewManager(store, DefaultConfig(), nil, WithClock(func() time.Time { return now }))
}

func TestGet_LazilyCreates(t *testing.T) {
	store := newMapStore()
	m := newTestManager(store, time.Now())

	mem, err := m.Get(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, "s1", mem.SessionID)
	assert.Empty(t, mem.QuestionsAsked)
	assert.False(t, mem.HasSearched())
	assert.Equal(t, int64(1), mem.Version)

	again, err := m.Get(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, mem.Version, again.Version)
}

func TestUpdate_UnionsSetsAndMergesPreferences(t *testing.T) {
	m := newTestManager(newMapStore(), time.Now())
	ctx := context.Background()
	location := "Nashville"
	price := 700000.0

	_, err := m.Update(ctx, "s1", Update{
		QuestionsAsked:  []string{"What is your budget?"},
		TopicsDiscussed: []string{"budget"},
		Preferences:     &extraction.PropertyPreferences{Location: &location, MaxPrice: &price},
	})
	require.NoError(t, err)

	mem, err := m.Update(ctx, "s1", Update{
		QuestionsAsked:  []string{"what is your budget", "Where are you looking?"},
		TopicsDiscussed: []string{"budget", "location"},
		Preferences:     &extraction.PropertyPreferences{},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"what is your budget", "where are you looking"}, mem.QuestionsAsked)
	assert.Equal(t, []string{"budget", "location"}, mem.TopicsDiscussed)
	require.NotNil(t, mem.Preferences.Location)
	assert.Equal(t, "Nashville", *mem.Preferences.Location)
	assert.Equal(t, 700000.0, *mem.Preferences.MaxPrice)
}

func TestRecorders_AreIdempotent(t *testing.T) {
	m := newTestManager(newMapStore(), time.Now())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, m.RecordView(ctx, "s1", "prop-1"))
		require.NoError(t, m.RecordFavorite(ctx, "s1", "prop-1"))
		require.NoError(t, m.RecordTopic(ctx, "s1", "schools"))
		require.NoError(t, m.RecordQuestion(ctx, "s1", "How many bedrooms?"))
	}

	mem, err := m.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, []string{"prop-1"}, mem.EntitiesViewed)
	assert.Equal(t, []string{"prop-1"}, mem.EntitiesFavorited)
	assert.Equal(t, []string{"schools"}, mem.TopicsDiscussed)
	assert.Equal(t, []string{"how many bedrooms"}, mem.QuestionsAsked)

	discussed, err := m.HasTopicBeenDiscussed(ctx, "s1", "schools")
	require.NoError(t, err)
	assert.True(t, discussed)

	stats := StatsOf(mem)
	assert.Equal(t, Stats{QuestionsAsked: 1, TopicsDiscussed: 1, EntitiesViewed: 1, EntitiesFavorited: 1}, stats)
}

func TestHasQuestionBeenAsked(t *testing.T) {
	m := newTestManager(newMapStore(), time.Now())
	ctx := context.Background()
	require.NoError(t, m.RecordQuestion(ctx, "s1", "What neighborhoods are you most interested in?"))

	tests := []struct {
		name     string
		question string
		want     bool
	}{
		{"same question", "What neighborhoods are you most interested in?", true},
		{"case and punctuation", "what NEIGHBORHOODS are you most interested in!", true},
		{"substring", "neighborhoods are you most interested in", true},
		{"high word overlap", "which neighborhoods are you most interested in", true},
		{"unrelated", "Would you like to schedule a showing?", false},
		{"empty", "  ?? ", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := m.HasQuestionBeenAsked(ctx, "s1", tt.question)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRecordMentions(t *testing.T) {
	m := newTestManager(newMapStore(), time.Now())
	ctx := context.Background()

	require.NoError(t, m.RecordMentions(ctx, "s1", "I'm WORRIED about rates"))
	require.NoError(t, m.RecordMentions(ctx, "s1", "I hate HOAs"))
	require.NoError(t, m.RecordMentions(ctx, "s1", "ok"))
	for i := 0; i < 6; i++ {
		require.NoError(t, m.RecordMentions(ctx, "s1", "we want a yard "+strings.Repeat("!", i)))
	}

	mem, err := m.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, []string{"i'm worried about rates"}, mem.Mentions[MentionConcerns])
	assert.Equal(t, []string{"i hate hoas"}, mem.Mentions[MentionDislikes])
	require.Len(t, mem.Mentions[MentionPreferences], 5)
	assert.Equal(t, "we want a yard !!!!!", mem.Mentions[MentionPreferences][4])
	assert.Equal(t, "we want a yard !", mem.Mentions[MentionPreferences][0])
}

func TestGuidance_RecentSearchWarning(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		ago      time.Duration
		wantWarn bool
	}{
		{"two minutes ago", 2 * time.Minute, true},
		{"ten minutes ago", 10 * time.Minute, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMapStore()
			searchedAt := now.Add(-tt.ago)
			_, err := newTestManager(store, searchedAt).Update(context.Background(), "s1", Update{LastSearchAt: &searchedAt})
			require.NoError(t, err)

			guidance, err := newTestManager(store, now).RenderGuidance(context.Background(), "s1")
			require.NoError(t, err)
			assert.Equal(t, tt.wantWarn, strings.Contains(strings.ToLower(guidance), "do not search again immediately"))
		})
	}
}

func TestGuidance_Sections(t *testing.T) {
	now := time.Now()
	m := newTestManager(newMapStore(), now)
	ctx := context.Background()

	for _, q := range []string{"q one", "q two", "q three", "q four", "q five", "q six"} {
		require.NoError(t, m.RecordQuestion(ctx, "s1", q))
	}
	require.NoError(t, m.RecordTopic(ctx, "s1", "financing"))
	require.NoError(t, m.RecordMentions(ctx, "s1", "I'm nervous about closing costs"))
	require.NoError(t, m.RecordView(ctx, "s1", "p1"))
	require.NoError(t, m.RecordFavorite(ctx, "s1", "p1"))

	guidance, err := m.RenderGuidance(ctx, "s1")
	require.NoError(t, err)

	assert.Contains(t, guidance, "DO NOT REPEAT")
	assert.NotContains(t, guidance, "- q one\n")
	assert.Contains(t, guidance, "- q six")
	assert.Contains(t, guidance, "financing")
	assert.Contains(t, guidance, "i'm nervous about closing costs")
	assert.Contains(t, guidance, "Address these concerns")
	assert.Contains(t, guidance, "Properties viewed: 1")
	assert.Contains(t, guidance, "Properties favorited: 1")

	mem, err := m.Get(ctx, "s1")
	require.NoError(t, err)
	summary := m.ContextSummary(mem)
	assert.Contains(t, summary, "Topics discussed: financing")
	assert.Contains(t, summary, "User has expressed concerns")
}

func TestUpdate_RetriesOnConflict(t *testing.T) {
	store := newMapStore()
	m := newTestManager(store, time.Now())
	ctx := context.Background()

	_, err := m.Get(ctx, "s1")
	require.NoError(t, err)

	store.conflicts = 2
	mem, err := m.Update(ctx, "s1", Update{TopicsDiscussed: []string{"schools"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"schools"}, mem.TopicsDiscussed)

	store.conflicts = 100
	_, err = m.Update(ctx, "s1", Update{TopicsDiscussed: []string{"taxes"}})
	assert.ErrorIs(t, err, ErrVersionConflict)
}

func TestUpdate_ConcurrentWritersDoNotLoseUpdates(t *testing.T) {
	store := newMapStore()
	cfg := DefaultConfig()
	cfg.MaxRetries = 100
	m := NewManager(store, cfg, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, m.RecordView(ctx, "s1", string(rune('a'+i))))
		}(i)
	}
	wg.Wait()

	mem, err := m.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, mem.EntitiesViewed, 20)
}

func TestReset(t *testing.T) {
	m := newTestManager(newMapStore(), time.Now())
	ctx := context.Background()
	require.NoError(t, m.RecordTopic(ctx, "s1", "schools"))

	require.NoError(t, m.Reset(ctx, "s1"))

	mem, err := m.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, mem.TopicsDiscussed)
}

func TestGet_StoreFailure(t *testing.T) {
	m := newTestManager(failingStore{}, time.Now())
	_, err := m.Get(context.Background(), "s1")
	assert.Error(t, err)
	assert.Error(t, m.Reset(context.Background(), "s1"))
}
