package memory

import (
	"time"

	"strive-chatbot-be/pkg/extraction"
	"strive-chatbot-be/pkg/utils"
)

// Mention categories recorded from user utterances.
const (
	MentionConcerns    = "concerns"
	MentionPreferences = "preferences"
	MentionDislikes    = "dislikes"
)

// ConversationMemory is the per-session dialogue state. Set-valued fields keep
// first-seen order and never hold duplicates.
type ConversationMemory struct {
	SessionID         string                         `json:"sessionId"`
	QuestionsAsked    []string                       `json:"questionsAsked"`
	TopicsDiscussed   []string                       `json:"topicsDiscussed"`
	EntitiesViewed    []string                       `json:"entitiesViewed"`
	EntitiesFavorited []string                       `json:"entitiesFavorited"`
	LastSearchAt      *time.Time                     `json:"lastSearchAt,omitempty"`
	Preferences       extraction.PropertyPreferences `json:"preferences"`
	Contact           extraction.ContactInfo         `json:"contact"`
	Mentions          map[string][]string            `json:"mentions"`
	Summary           string                         `json:"summary"`
	CreatedAt         time.Time                      `json:"createdAt"`
	UpdatedAt         time.Time                      `json:"updatedAt"`

	// Version is the optimistic-concurrency token; stores bump it on every save.
	Version int64 `json:"version"`
}

func newMemory(sessionID string, now time.Time) *ConversationMemory {
	return &ConversationMemory{
		SessionID:         sessionID,
		QuestionsAsked:    []string{},
		TopicsDiscussed:   []string{},
		EntitiesViewed:    []string{},
		EntitiesFavorited: []string{},
		Mentions:          map[string][]string{},
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

// HasSearched reports whether a search was ever recorded for the session.
func (m *ConversationMemory) HasSearched() bool {
	return m.LastSearchAt != nil
}

// Clone returns a deep copy safe to mutate.
func (m *ConversationMemory) Clone() *ConversationMemory {
	c := *m
	c.QuestionsAsked = append([]string{}, m.QuestionsAsked...)
	c.TopicsDiscussed = append([]string{}, m.TopicsDiscussed...)
	c.EntitiesViewed = append([]string{}, m.EntitiesViewed...)
	c.EntitiesFavorited = append([]string{}, m.EntitiesFavorited...)
	if m.LastSearchAt != nil {
		t := *m.LastSearchAt
		c.LastSearchAt = &t
	}
	c.Mentions = make(map[string][]string, len(m.Mentions))
	for k, v := range m.Mentions {
		c.Mentions[k] = append([]string{}, v...)
	}
	return &c
}

// Update is a partial change. Slices are unioned into the existing sets,
// pointer fields overwrite only when set, and each mentions category replaces
// the stored one.
type Update struct {
	QuestionsAsked    []string
	TopicsDiscussed   []string
	EntitiesViewed    []string
	EntitiesFavorited []string
	LastSearchAt      *time.Time
	Preferences       *extraction.PropertyPreferences
	Contact           *extraction.ContactInfo
	Mentions          map[string][]string
	Summary           *string
}

func (u Update) apply(m *ConversationMemory, mentionLimit int) {
	for _, q := range u.QuestionsAsked {
		if n := utils.NormalizeText(q); n != "" {
			m.QuestionsAsked = utils.AppendUnique(m.QuestionsAsked, n)
		}
	}
	m.TopicsDiscussed = utils.AppendUnique(m.TopicsDiscussed, nonEmpty(u.TopicsDiscussed)...)
	m.EntitiesViewed = utils.AppendUnique(m.EntitiesViewed, nonEmpty(u.EntitiesViewed)...)
	m.EntitiesFavorited = utils.AppendUnique(m.EntitiesFavorited, nonEmpty(u.EntitiesFavorited)...)

	if u.LastSearchAt != nil {
		t := *u.LastSearchAt
		m.LastSearchAt = &t
	}
	if u.Preferences != nil {
		m.Preferences = extraction.Merge(m.Preferences, *u.Preferences)
	}
	if u.Contact != nil {
		m.Contact = extraction.MergeContact(m.Contact, *u.Contact)
	}
	if len(u.Mentions) > 0 && m.Mentions == nil {
		m.Mentions = map[string][]string{}
	}
	for category, entries := range u.Mentions {
		m.Mentions[category] = lastN(append([]string{}, entries...), mentionLimit)
	}
	if u.Summary != nil {
		m.Summary = *u.Summary
	}
}

func nonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

func lastN(values []string, n int) []string {
	if n > 0 && len(values) > n {
		return values[len(values)-n:]
	}
	return values
}
