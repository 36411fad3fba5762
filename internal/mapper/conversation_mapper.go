package mapper

import (
	"encoding/json"
	"time"

	"strive-chatbot-be/internal/entity"
	"strive-chatbot-be/internal/model"

	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
)

type ConversationMapper struct{}

func NewConversationMapper() *ConversationMapper {
	return &ConversationMapper{}
}

func (m *ConversationMapper) ToEntity(c *model.Conversation) *entity.Conversation {
	if c == nil {
		return nil
	}

	var metadata entity.ConversationMetadata
	if len(c.Metadata) > 0 {
		// Unknown or malformed metadata is dropped rather than failing the read.
		_ = json.Unmarshal(c.Metadata, &metadata)
	}

	var updatedAt *time.Time
	if !c.UpdatedAt.IsZero() {
		t := c.UpdatedAt
		updatedAt = &t
	}

	return &entity.Conversation{
		Id:                c.Id,
		DomainTag:         c.DomainTag,
		SessionId:         c.SessionId,
		UserMessage:       c.UserMessage,
		AssistantResponse: c.AssistantResponse,
		Embedding:         vectorSlice(c.Embedding),
		Stage:             c.Stage,
		Outcome:           c.Outcome,
		Problem:           c.Problem,
		Solution:          c.Solution,
		ConversionScore:   c.ConversionScore,
		BookingCompleted:  c.BookingCompleted,
		ResponseTimeMs:    c.ResponseTimeMs,
		Metadata:          metadata,
		CreatedAt:         c.CreatedAt,
		UpdatedAt:         updatedAt,
	}
}

func (m *ConversationMapper) ToModel(c *entity.Conversation) *model.Conversation {
	if c == nil {
		return nil
	}

	metadata, err := json.Marshal(c.Metadata)
	if err != nil {
		metadata = []byte("{}")
	}

	var updatedAt time.Time
	if c.UpdatedAt != nil {
		updatedAt = *c.UpdatedAt
	}

	return &model.Conversation{
		Id:                c.Id,
		DomainTag:         c.DomainTag,
		SessionId:         c.SessionId,
		UserMessage:       c.UserMessage,
		AssistantResponse: c.AssistantResponse,
		Embedding:         toVector(c.Embedding),
		Stage:             c.Stage,
		Outcome:           c.Outcome,
		Problem:           c.Problem,
		Solution:          c.Solution,
		ConversionScore:   c.ConversionScore,
		BookingCompleted:  c.BookingCompleted,
		ResponseTimeMs:    c.ResponseTimeMs,
		Metadata:          datatypes.JSON(metadata),
		CreatedAt:         c.CreatedAt,
		UpdatedAt:         updatedAt,
	}
}

type ConversationExampleMapper struct{}

func NewConversationExampleMapper() *ConversationExampleMapper {
	return &ConversationExampleMapper{}
}

func (m *ConversationExampleMapper) ToEntity(e *model.ConversationExample) *entity.ConversationExample {
	if e == nil {
		return nil
	}
	return &entity.ConversationExample{
		Id:              e.Id,
		DomainTag:       e.DomainTag,
		Utterance:       e.Utterance,
		Response:        e.Response,
		Embedding:       vectorSlice(e.Embedding),
		Problem:         e.Problem,
		Solution:        e.Solution,
		Outcome:         e.Outcome,
		Stage:           e.Stage,
		ConversionScore: e.ConversionScore,
		CreatedAt:       e.CreatedAt,
	}
}

func (m *ConversationExampleMapper) ToModel(e *entity.ConversationExample) *model.ConversationExample {
	if e == nil {
		return nil
	}
	return &model.ConversationExample{
		Id:              e.Id,
		DomainTag:       e.DomainTag,
		Utterance:       e.Utterance,
		Response:        e.Response,
		Embedding:       toVector(e.Embedding),
		Problem:         e.Problem,
		Solution:        e.Solution,
		Outcome:         e.Outcome,
		Stage:           e.Stage,
		ConversionScore: e.ConversionScore,
		CreatedAt:       e.CreatedAt,
	}
}

// toVector maps an empty embedding to NULL.
func toVector(values []float32) *pgvector.Vector {
	if len(values) == 0 {
		return nil
	}
	v := pgvector.NewVector(values)
	return &v
}

func vectorSlice(v *pgvector.Vector) []float32 {
	if v == nil {
		return nil
	}
	return v.Slice()
}
