package conversation

import (
	"time"

	"strive-chatbot-be/pkg/llm"
)

const (
	RoleUser      = llm.RoleUser
	RoleAssistant = llm.RoleAssistant
)

// Turn is one recorded message. Turns are appended, never edited.
type Turn struct {
	Role      string    `json:"role" validate:"required,oneof=user assistant"`
	Content   string    `json:"content" validate:"required"`
	Timestamp time.Time `json:"timestamp"`
}

// Last returns the final n turns (all of them when n <= 0 or n >= len).
func Last(turns []Turn, n int) []Turn {
	if n <= 0 || n >= len(turns) {
		return turns
	}
	return turns[len(turns)-n:]
}

// LastUserMessage returns the most recent user-authored content, or "".
func LastUserMessage(turns []Turn) string {
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Role == RoleUser {
			return turns[i].Content
		}
	}
	return ""
}

// ToMessages converts turns to provider messages.
func ToMessages(turns []Turn) []llm.Message {
	messages := make([]llm.Message, len(turns))
	for i, t := range turns {
		messages[i] = llm.Message{Role: t.Role, Content: t.Content}
	}
	return messages
}
