package contract

import (
	"context"

	"strive-chatbot-be/internal/entity"
	"strive-chatbot-be/internal/repository/specification"
)

// ScoredConversation wraps a Conversation with its cosine similarity to the query.
type ScoredConversation struct {
	Conversation *entity.Conversation
	Similarity   float64 // 0.0 to 1.0 (1.0 = identical)
}

type ScoredConversationExample struct {
	Example    *entity.ConversationExample
	Similarity float64
}

type ConversationRepository interface {
	Create(ctx context.Context, conversation *entity.Conversation) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Conversation, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Conversation, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
	// MarkLatestSuccess flags the newest turn of the session as a completed booking.
	// It returns the number of rows updated.
	MarkLatestSuccess(ctx context.Context, sessionId string, conversionScore float64) (int64, error)
	SearchSimilarWithScore(ctx context.Context, embedding []float32, domainTag string, limit int, threshold float64) ([]*ScoredConversation, error)
}

type ConversationExampleRepository interface {
	Create(ctx context.Context, example *entity.ConversationExample) error
	CreateBulk(ctx context.Context, examples []*entity.ConversationExample) error
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.ConversationExample, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
	SearchSimilarWithScore(ctx context.Context, embedding []float32, domainTag string, limit int, threshold float64) ([]*ScoredConversationExample, error)
}
