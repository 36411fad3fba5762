package memory

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// RenderGuidance loads the session and renders its guidance block.
func (m *Manager) RenderGuidance(ctx context.Context, sessionID string) (string, error) {
	mem, err := m.Get(ctx, sessionID)
	if err != nil {
		return "", err
	}
	return m.Guidance(mem), nil
}

// Guidance renders the block appended to the model's system instructions.
func (m *Manager) Guidance(mem *ConversationMemory) string {
	return renderGuidance(mem, m.now(), m.cfg)
}

// ContextSummary renders a one-line digest such as "Topics discussed: budget | Last search: 3 minutes ago".
func (m *Manager) ContextSummary(mem *ConversationMemory) string {
	var parts []string
	if len(mem.TopicsDiscussed) > 0 {
		parts = append(parts, "Topics discussed: "+strings.Join(mem.TopicsDiscussed, ", "))
	}
	if len(mem.EntitiesViewed) > 0 {
		parts = append(parts, fmt.Sprintf("Properties viewed: %d", len(mem.EntitiesViewed)))
	}
	if len(mem.EntitiesFavorited) > 0 {
		parts = append(parts, fmt.Sprintf("Properties favorited: %d", len(mem.EntitiesFavorited)))
	}
	if mem.LastSearchAt != nil {
		parts = append(parts, fmt.Sprintf("Last search: %d minutes ago", minutesSince(*mem.LastSearchAt, m.now())))
	}
	if len(mem.Mentions[MentionConcerns]) > 0 {
		parts = append(parts, "User has expressed concerns")
	}
	if len(mem.Mentions[MentionPreferences]) > 0 {
		parts = append(parts, "User has stated preferences")
	}
	return strings.Join(parts, " | ")
}

func renderGuidance(mem *ConversationMemory, now time.Time, cfg Config) string {
	var b strings.Builder
	b.WriteString("### CONVERSATION MEMORY\n\n")

	if len(mem.QuestionsAsked) > 0 {
		b.WriteString("Questions already asked (DO NOT REPEAT):\n")
		for _, q := range lastN(mem.QuestionsAsked, cfg.GuidanceQuestions) {
			b.WriteString("- " + q + "\n")
		}
		b.WriteString("\n")
	}

	if len(mem.TopicsDiscussed) > 0 {
		b.WriteString("Topics already discussed:\n")
		b.WriteString(strings.Join(mem.TopicsDiscussed, ", ") + "\n\n")
	}

	if concerns := mem.Mentions[MentionConcerns]; len(concerns) > 0 {
		b.WriteString("User has expressed concerns about:\n")
		for _, c := range lastN(concerns, cfg.GuidanceConcerns) {
			b.WriteString("- " + c + "\n")
		}
		b.WriteString("Address these concerns in your response.\n\n")
	}

	if mem.LastSearchAt != nil && now.Sub(*mem.LastSearchAt) < cfg.RecentSearchWindow {
		b.WriteString("A property search was just performed.\n")
		b.WriteString("Do not search again immediately; ask for feedback on the properties shown instead.\n\n")
	}

	if len(mem.EntitiesViewed) > 0 {
		b.WriteString(fmt.Sprintf("Properties viewed: %d\n", len(mem.EntitiesViewed)))
		if len(mem.EntitiesFavorited) > 0 {
			b.WriteString(fmt.Sprintf("Properties favorited: %d\n", len(mem.EntitiesFavorited)))
			b.WriteString("Reference their favorites in conversation.\n")
		}
		b.WriteString("\n")
	}

	return b.String()
}

func minutesSince(t, now time.Time) int {
	return int(now.Sub(t) / time.Minute)
}
