package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"strive-chatbot-be/internal/dto"
	"strive-chatbot-be/internal/entity"
	"strive-chatbot-be/internal/pkg/logger"
	"strive-chatbot-be/internal/repository/unitofwork"
	"strive-chatbot-be/pkg/embedding"
	"strive-chatbot-be/pkg/events"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
)

const consumerModule = "CONSUMER"

type IConsumerService interface {
	Consume(ctx context.Context) error
}

type ConsumerConfig struct {
	EmbedTimeout time.Duration
	MaxAttempts  int
	RetryBackoff time.Duration
}

func DefaultConsumerConfig() ConsumerConfig {
	return ConsumerConfig{
		EmbedTimeout: 10 * time.Second,
		MaxAttempts:  3,
		RetryBackoff: 500 * time.Millisecond,
	}
}

// consumerService persists completed turns published by the chatbot service.
type consumerService struct {
	subscriber        message.Subscriber
	topicName         string
	uowFactory        unitofwork.RepositoryFactory
	embeddingProvider embedding.EmbeddingProvider
	events            events.ConversationPublisher
	cfg               ConsumerConfig
	logger            logger.ILogger
	now               func() time.Time
}

func NewConsumerService(
	subscriber message.Subscriber,
	topicName string,
	uowFactory unitofwork.RepositoryFactory,
	embeddingProvider embedding.EmbeddingProvider,
	eventPublisher events.ConversationPublisher,
	cfg ConsumerConfig,
	log logger.ILogger,
) IConsumerService {
	if log == nil {
		log = logger.NewNopLogger()
	}
	if eventPublisher == nil {
		eventPublisher = events.NewConversationPublisher(nil, log)
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	return &consumerService{
		subscriber:        subscriber,
		topicName:         topicName,
		uowFactory:        uowFactory,
		embeddingProvider: embeddingProvider,
		events:            eventPublisher,
		cfg:               cfg,
		logger:            log,
		now:               time.Now,
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.subscriber.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(ctx, msg)
		}
	}()

	return nil
}

// processMessage always acks. Malformed payloads are dropped, and a turn that
// still fails after MaxAttempts is logged and dropped so a database outage
// cannot turn into a redelivery loop.
func (cs *consumerService) processMessage(ctx context.Context, msg *message.Message) {
	defer msg.Ack()

	var payload dto.PublishConversationTurnMessage
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		cs.logger.Error(consumerModule, "Failed to unmarshal turn message", map[string]interface{}{
			"message_id": msg.UUID,
			"error":      err.Error(),
		})
		return
	}
	if strings.TrimSpace(payload.UserMessage) == "" {
		cs.logger.Warn(consumerModule, "Skipping turn without user message", map[string]interface{}{
			"session_id": payload.SessionId,
		})
		return
	}

	conversation := cs.toEntity(payload)
	conversation.Embedding = cs.embed(ctx, payload)

	var err error
	for attempt := 1; attempt <= cs.cfg.MaxAttempts; attempt++ {
		if err = cs.persist(ctx, conversation); err == nil {
			break
		}
		cs.logger.Warn(consumerModule, "Failed to persist turn", map[string]interface{}{
			"session_id": payload.SessionId,
			"attempt":    attempt,
			"error":      err.Error(),
		})
		if attempt < cs.cfg.MaxAttempts {
			select {
			case <-ctx.Done():
				return
			case <-time.After(cs.cfg.RetryBackoff * time.Duration(attempt)):
			}
		}
	}
	if err != nil {
		cs.logger.Error(consumerModule, "Dropping turn after retries", map[string]interface{}{
			"session_id": payload.SessionId,
			"error":      err.Error(),
		})
		return
	}

	cs.logger.Info(consumerModule, "Turn stored", map[string]interface{}{
		"conversation_id": conversation.Id.String(),
		"session_id":      conversation.SessionId,
		"stage":           conversation.Stage,
		"has_embedding":   len(conversation.Embedding) > 0,
	})
	cs.events.PublishTurnStored(ctx, conversation.Id.String(), conversation.SessionId, conversation.DomainTag, conversation.Stage)
}

// embed returns nil when the provider fails; the turn is still stored and simply never retrieved.
func (cs *consumerService) embed(ctx context.Context, payload dto.PublishConversationTurnMessage) []float32 {
	if cs.embeddingProvider == nil {
		return nil
	}
	if cs.cfg.EmbedTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cs.cfg.EmbedTimeout)
		defer cancel()
	}

	res, err := cs.embeddingProvider.Generate(ctx, payload.UserMessage, embedding.TaskRetrievalDocument)
	if err != nil {
		cs.logger.Warn(consumerModule, "Embedding failed, storing turn without vector", map[string]interface{}{
			"session_id": payload.SessionId,
			"error":      err.Error(),
		})
		return nil
	}
	return res.Embedding.Values
}

func (cs *consumerService) persist(ctx context.Context, conversation *entity.Conversation) error {
	uow := cs.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer uow.Rollback()

	if err := uow.ConversationRepository().Create(ctx, conversation); err != nil {
		return fmt.Errorf("create conversation: %w", err)
	}
	if err := uow.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (cs *consumerService) toEntity(payload dto.PublishConversationTurnMessage) *entity.Conversation {
	return &entity.Conversation{
		Id:                uuid.New(),
		DomainTag:         payload.DomainTag,
		SessionId:         payload.SessionId,
		UserMessage:       payload.UserMessage,
		AssistantResponse: payload.AssistantResponse,
		Stage:             payload.Stage,
		Outcome:           entity.OutcomeInProgress,
		Problem:           payload.Problem,
		Solution:          payload.Solution,
		ResponseTimeMs:    payload.ResponseTimeMs,
		Metadata:          payload.Metadata,
		CreatedAt:         cs.now(),
	}
}
