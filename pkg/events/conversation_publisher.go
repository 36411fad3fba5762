package events

import (
	"context"
	"time"

	"strive-chatbot-be/internal/pkg/logger"
)

// Emitter is the transport the publisher writes to (the NATS publisher in production).
type Emitter interface {
	Publish(ctx context.Context, event Event) error
}

// ConversationPublisher emits conversation lifecycle events. Failures are logged, never returned.
type ConversationPublisher interface {
	PublishTurnStored(ctx context.Context, conversationId, sessionId, domainTag, stage string)
	PublishConversionMarked(ctx context.Context, sessionId string, conversionScore float64, updated int64)
}

type conversationPublisher struct {
	emitter Emitter
	logger  logger.ILogger
	now     func() time.Time
}

// NewConversationPublisher accepts a nil emitter, in which case every publish is a no-op.
func NewConversationPublisher(emitter Emitter, log logger.ILogger) ConversationPublisher {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &conversationPublisher{emitter: emitter, logger: log, now: time.Now}
}

func (p *conversationPublisher) PublishTurnStored(ctx context.Context, conversationId, sessionId, domainTag, stage string) {
	p.publish(ctx, TypeTurnStored, map[string]interface{}{
		"conversation_id": conversationId,
		"session_id":      sessionId,
		"domain_tag":      domainTag,
		"stage":           stage,
	})
}

func (p *conversationPublisher) PublishConversionMarked(ctx context.Context, sessionId string, conversionScore float64, updated int64) {
	p.publish(ctx, TypeConversionMarked, map[string]interface{}{
		"session_id":       sessionId,
		"conversion_score": conversionScore,
		"updated":          updated,
	})
}

func (p *conversationPublisher) publish(ctx context.Context, eventType string, data map[string]interface{}) {
	if p.emitter == nil {
		return
	}
	evt := BaseEvent{Type: eventType, Data: data, OccurredAt: p.now()}
	if err := p.emitter.Publish(ctx, evt); err != nil {
		p.logger.Error("EVENTS", "Failed to publish event", map[string]interface{}{
			"type":  eventType,
			"error": err.Error(),
		})
	}
}
