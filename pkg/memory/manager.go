package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"strive-chatbot-be/internal/pkg/logger"
	"strive-chatbot-be/pkg/utils"
)

const logModule = "memory"

type Config struct {
	QuestionSimilarity float64       // word-overlap above which two questions count as the same
	RecentSearchWindow time.Duration // searches newer than this trigger the "do not search again" hint
	MentionLimit       int
	GuidanceQuestions  int
	GuidanceConcerns   int
	MaxRetries         int
}

func DefaultConfig() Config {
	return Config{
		QuestionSimilarity: 0.7,
		RecentSearchWindow: 5 * time.Minute,
		MentionLimit:       5,
		GuidanceQuestions:  5,
		GuidanceConcerns:   3,
		MaxRetries:         5,
	}
}

var mentionKeywords = []struct {
	category string
	keywords []string
}{
	{MentionConcerns, []string{"worried", "concern", "afraid", "nervous", "unsure"}},
	{MentionPreferences, []string{"like", "want", "need", "prefer", "love"}},
	{MentionDislikes, []string{"don't like", "hate", "avoid", "not a fan"}},
}

// Manager owns all read-modify-write cycles on session memory.
type Manager struct {
	store  Store
	cfg    Config
	logger logger.ILogger
	now    func() time.Time
}

type ManagerOption func(*Manager)

// WithClock overrides time.Now, mainly for tests.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.now = now
	}
}

func NewManager(store Store, cfg Config, log logger.ILogger, opts ...ManagerOption) *Manager {
	if log == nil {
		log = logger.NewNopLogger()
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 1
	}
	m := &Manager{store: store, cfg: cfg, logger: log, now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Get returns the session memory, creating an empty one on first access.
func (m *Manager) Get(ctx context.Context, sessionID string) (*ConversationMemory, error) {
	mem, err := m.store.Load(ctx, sessionID)
	if err == nil {
		return mem, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("load memory %s: %w", sessionID, err)
	}

	mem = newMemory(sessionID, m.now())
	if err := m.store.Save(ctx, mem); err != nil {
		if errors.Is(err, ErrVersionConflict) {
			// Another writer created it first.
			return m.store.Load(ctx, sessionID)
		}
		return nil, fmt.Errorf("create memory %s: %w", sessionID, err)
	}
	return mem, nil
}

// Update applies a partial change under optimistic concurrency, retrying on conflicts.
func (m *Manager) Update(ctx context.Context, sessionID string, u Update) (*ConversationMemory, error) {
	return m.mutate(ctx, sessionID, func(mem *ConversationMemory) {
		u.apply(mem, m.cfg.MentionLimit)
	})
}

func (m *Manager) mutate(ctx context.Context, sessionID string, fn func(*ConversationMemory)) (*ConversationMemory, error) {
	var lastErr error
	for attempt := 0; attempt < m.cfg.MaxRetries; attempt++ {
		current, err := m.Get(ctx, sessionID)
		if err != nil {
			return nil, err
		}

		next := current.Clone()
		fn(next)
		next.UpdatedAt = m.now()

		err = m.store.Save(ctx, next)
		if err == nil {
			return next, nil
		}
		if !errors.Is(err, ErrVersionConflict) {
			return nil, fmt.Errorf("save memory %s: %w", sessionID, err)
		}

		lastErr = err
		m.logger.Debug(logModule, "Memory version conflict, retrying", map[string]interface{}{
			"session_id": sessionID,
			"attempt":    attempt + 1,
		})
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("update memory %s after %d attempts: %w", sessionID, m.cfg.MaxRetries, lastErr)
}

func (m *Manager) RecordQuestion(ctx context.Context, sessionID, question string) error {
	_, err := m.Update(ctx, sessionID, Update{QuestionsAsked: []string{question}})
	return err
}

func (m *Manager) RecordTopic(ctx context.Context, sessionID, topic string) error {
	_, err := m.Update(ctx, sessionID, Update{TopicsDiscussed: []string{topic}})
	return err
}

func (m *Manager) RecordView(ctx context.Context, sessionID, entityID string) error {
	_, err := m.Update(ctx, sessionID, Update{EntitiesViewed: []string{entityID}})
	return err
}

func (m *Manager) RecordFavorite(ctx context.Context, sessionID, entityID string) error {
	_, err := m.Update(ctx, sessionID, Update{EntitiesFavorited: []string{entityID}})
	return err
}

// RecordSearch stamps the session with the current time as its last search.
func (m *Manager) RecordSearch(ctx context.Context, sessionID string) error {
	now := m.now()
	_, err := m.Update(ctx, sessionID, Update{LastSearchAt: &now})
	return err
}

// RecordMentions appends the lowercased utterance to each category whose keywords it
// contains, keeping only the most recent entries per category.
func (m *Manager) RecordMentions(ctx context.Context, sessionID, utterance string) error {
	lowered := strings.ToLower(utterance)
	categories := MentionCategories(lowered)
	if len(categories) == 0 {
		return nil
	}

	_, err := m.mutate(ctx, sessionID, func(mem *ConversationMemory) {
		if mem.Mentions == nil {
			mem.Mentions = map[string][]string{}
		}
		for _, c := range categories {
			mem.Mentions[c] = lastN(append(mem.Mentions[c], lowered), m.cfg.MentionLimit)
		}
	})
	return err
}

// MentionCategories returns the categories whose keywords appear in the lowercased text.
func MentionCategories(lowered string) []string {
	var categories []string
	for _, mk := range mentionKeywords {
		if utils.ContainsAny(lowered, mk.keywords...) {
			categories = append(categories, mk.category)
		}
	}
	return categories
}

// HasQuestionBeenAsked matches on normalized equality, containment either way,
// or word overlap above the configured threshold.
func (m *Manager) HasQuestionBeenAsked(ctx context.Context, sessionID, question string) (bool, error) {
	mem, err := m.Get(ctx, sessionID)
	if err != nil {
		return false, err
	}
	return QuestionAsked(mem, question, m.cfg.QuestionSimilarity), nil
}

// QuestionAsked is the pure form of HasQuestionBeenAsked.
func QuestionAsked(mem *ConversationMemory, question string, threshold float64) bool {
	candidate := utils.NormalizeText(question)
	if candidate == "" {
		return false
	}
	for _, asked := range mem.QuestionsAsked {
		if asked == candidate ||
			strings.Contains(asked, candidate) ||
			strings.Contains(candidate, asked) ||
			utils.WordOverlap(asked, candidate) > threshold {
			return true
		}
	}
	return false
}

func (m *Manager) HasTopicBeenDiscussed(ctx context.Context, sessionID, topic string) (bool, error) {
	mem, err := m.Get(ctx, sessionID)
	if err != nil {
		return false, err
	}
	for _, t := range mem.TopicsDiscussed {
		if t == topic {
			return true, nil
		}
	}
	return false, nil
}

// Reset drops all memory for the session.
func (m *Manager) Reset(ctx context.Context, sessionID string) error {
	if err := m.store.Delete(ctx, sessionID); err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("reset memory %s: %w", sessionID, err)
	}
	return nil
}

type Stats struct {
	QuestionsAsked    int  `json:"questionsAsked"`
	TopicsDiscussed   int  `json:"topicsDiscussed"`
	EntitiesViewed    int  `json:"entitiesViewed"`
	EntitiesFavorited int  `json:"entitiesFavorited"`
	HasSearched       bool `json:"hasSearched"`
}

func StatsOf(mem *ConversationMemory) Stats {
	return Stats{
		QuestionsAsked:    len(mem.QuestionsAsked),
		TopicsDiscussed:   len(mem.TopicsDiscussed),
		EntitiesViewed:    len(mem.EntitiesViewed),
		EntitiesFavorited: len(mem.EntitiesFavorited),
		HasSearched:       mem.HasSearched(),
	}
}
