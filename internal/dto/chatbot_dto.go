package dto

import (
	"time"

	"strive-chatbot-be/internal/entity"
	"strive-chatbot-be/pkg/conversation"
	"strive-chatbot-be/pkg/extraction"
	"strive-chatbot-be/pkg/followup"
	"strive-chatbot-be/pkg/memory"
)

// Stream event types sent to chat clients.
const (
	StreamEventToken = "token"
	StreamEventMeta  = "meta"
	StreamEventError = "error"
	StreamEventDone  = "done"
)

type StreamChatRequest struct {
	SessionId string              `json:"session_id" validate:"required,max=128"`
	DomainTag string              `json:"domain_tag" validate:"omitempty,max=64"`
	Messages  []conversation.Turn `json:"messages" validate:"required,min=1,dive"`
}

// StreamEvent is one SSE frame or websocket message.
type StreamEvent struct {
	Type    string          `json:"type"`
	Content string          `json:"content,omitempty"`
	Meta    *StreamTurnMeta `json:"meta,omitempty"`
}

// StreamTurnMeta describes how the reply was assembled. It is sent once before the first token.
type StreamTurnMeta struct {
	Stage            string   `json:"stage"`
	DomainTag        string   `json:"domain_tag"`
	DetectedProblems []string `json:"detected_problems"`
	Approach         string   `json:"approach"`
	Confidence       float64  `json:"confidence"`
	Urgency          string   `json:"urgency"`
	ExtractedFields  []string `json:"extracted_fields"`
	CanSearch        bool     `json:"can_search"`
}

type MarkSuccessRequest struct {
	SessionId       string   `json:"session_id" validate:"required,max=128"`
	ConversionScore *float64 `json:"conversion_score" validate:"omitempty,gte=0,lte=1"`
}

type MarkSuccessResponse struct {
	SessionId       string  `json:"session_id"`
	ConversionScore float64 `json:"conversion_score"`
	Updated         int64   `json:"updated"`
}

type FollowUpRequest struct {
	SessionId   string                          `json:"session_id" validate:"omitempty,max=128"`
	Messages    []conversation.Turn             `json:"messages" validate:"dive"`
	Preferences *extraction.PropertyPreferences `json:"preferences"`
	HasSearched *bool                           `json:"has_searched"`
	ResultCount int                             `json:"result_count" validate:"gte=0"`
}

type FollowUpSingleRequest struct {
	SessionId   string                          `json:"session_id" validate:"omitempty,max=128"`
	LastMessage string                          `json:"last_message" validate:"required"`
	Preferences *extraction.PropertyPreferences `json:"preferences"`
	Stage       string                          `json:"stage" validate:"omitempty,oneof=discovery qualifying search_results post_search closing"`
}

type FollowUpSingleResponse struct {
	Suggestion string         `json:"suggestion"`
	Stage      followup.Stage `json:"stage"`
}

type ExtractRequest struct {
	Message string              `json:"message" validate:"required"`
	History []conversation.Turn `json:"history" validate:"dive"`
}

// Memory activity types.
const (
	ActivityView     = "view"
	ActivityFavorite = "favorite"
	ActivitySearch   = "search"
	ActivityTopic    = "topic"
	ActivityQuestion = "question"
)

type MemoryActivityRequest struct {
	Type  string `json:"type" validate:"required,oneof=view favorite search topic question"`
	Value string `json:"value" validate:"required_unless=Type search,max=500"`
}

type MemoryResponse struct {
	Memory   *memory.ConversationMemory `json:"memory"`
	Stats    memory.Stats               `json:"stats"`
	Guidance string                     `json:"guidance"`
	Summary  string                     `json:"summary"`
}

// PublishConversationTurnMessage is the watermill payload carrying a completed turn to persistence.
type PublishConversationTurnMessage struct {
	SessionId         string                      `json:"session_id"`
	DomainTag         string                      `json:"domain_tag"`
	UserMessage       string                      `json:"user_message"`
	AssistantResponse string                      `json:"assistant_response"`
	Stage             string                      `json:"stage"`
	Problem           string                      `json:"problem,omitempty"`
	Solution          string                      `json:"solution,omitempty"`
	ResponseTimeMs    int64                       `json:"response_time_ms"`
	Metadata          entity.ConversationMetadata `json:"metadata"`
}

// BookingCompletedEvent is consumed from events.booking.completed.
type BookingCompletedEvent struct {
	SessionId       string   `json:"session_id" validate:"required"`
	ConversionScore *float64 `json:"conversion_score" validate:"omitempty,gte=0,lte=1"`
}

type ListTurnsRequest struct {
	Limit  int `query:"limit" validate:"gte=0,lte=100"`
	Offset int `query:"offset" validate:"gte=0"`
}

// ConversationTurnResponse is one stored turn of a session transcript.
type ConversationTurnResponse struct {
	Id                string     `json:"id"`
	UserMessage       string     `json:"user_message"`
	AssistantResponse string     `json:"assistant_response"`
	Stage             string     `json:"stage"`
	Outcome           string     `json:"outcome"`
	Problem           string     `json:"problem,omitempty"`
	Solution          string     `json:"solution,omitempty"`
	ConversionScore   *float64   `json:"conversion_score,omitempty"`
	BookingCompleted  bool       `json:"booking_completed"`
	ResponseTimeMs    int64      `json:"response_time_ms"`
	HasEmbedding      bool       `json:"has_embedding"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         *time.Time `json:"updated_at,omitempty"`
}

type ListTurnsResponse struct {
	SessionId string                     `json:"session_id"`
	Total     int64                      `json:"total"`
	Turns     []ConversationTurnResponse `json:"turns"`
}
