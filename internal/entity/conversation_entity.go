package entity

import (
	"time"

	"github.com/google/uuid"
)

const (
	OutcomeInProgress       = "in_progress"
	OutcomeBookingCompleted = "booking_completed"
)

// ConversationMetadata is stored as JSON alongside each turn.
type ConversationMetadata struct {
	ExtractedFields  []string `json:"extractedFields,omitempty"`
	ExtractionMethod string   `json:"extractionMethod,omitempty"`
	Confidence       float64  `json:"confidence,omitempty"`
	Urgency          string   `json:"urgency,omitempty"`
	ContactEmail     string   `json:"contactEmail,omitempty"`
}

// Conversation is one stored user/assistant exchange.
type Conversation struct {
	Id                uuid.UUID
	DomainTag         string
	SessionId         string
	UserMessage       string
	AssistantResponse string
	Embedding         []float32
	Stage             string
	Outcome           string
	Problem           string
	Solution          string
	ConversionScore   *float64
	BookingCompleted  bool
	ResponseTimeMs    int64
	Metadata          ConversationMetadata
	CreatedAt         time.Time
	UpdatedAt         *time.Time
}

// ConversationExample is a curated, labelled exchange used as retrieval ground truth.
type ConversationExample struct {
	Id              uuid.UUID
	DomainTag       string
	Utterance       string
	Response        string
	Embedding       []float32
	Problem         string
	Solution        string
	Outcome         string
	Stage           string
	ConversionScore *float64
	CreatedAt       time.Time
}
