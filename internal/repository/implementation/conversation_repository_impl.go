package implementation

import (
	"context"
	"errors"
	"time"

	"strive-chatbot-be/internal/entity"
	"strive-chatbot-be/internal/mapper"
	"strive-chatbot-be/internal/model"
	"strive-chatbot-be/internal/repository/contract"
	"strive-chatbot-be/internal/repository/specification"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

type ConversationRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.ConversationMapper
}

func NewConversationRepository(db *gorm.DB) contract.ConversationRepository {
	return &ConversationRepositoryImpl{
		db:     db,
		mapper: mapper.NewConversationMapper(),
	}
}

func (r *ConversationRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *ConversationRepositoryImpl) Create(ctx context.Context, conversation *entity.Conversation) error {
	m := r.mapper.ToModel(conversation)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*conversation = *r.mapper.ToEntity(m)
	return nil
}

func (r *ConversationRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Conversation, error) {
	var m model.Conversation
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&m), nil
}

func (r *ConversationRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Conversation, error) {
	var models []*model.Conversation
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	entities := make([]*entity.Conversation, len(models))
	for i, m := range models {
		entities[i] = r.mapper.ToEntity(m)
	}
	return entities, nil
}

func (r *ConversationRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	err := query.Model(&model.Conversation{}).Count(&count).Error
	return count, err
}

func (r *ConversationRepositoryImpl) MarkLatestSuccess(ctx context.Context, sessionId string, conversionScore float64) (int64, error) {
	latest := r.db.Model(&model.Conversation{}).
		Select("id").
		Where("session_id = ?", sessionId).
		Order("created_at DESC").
		Limit(1)

	res := r.db.WithContext(ctx).
		Model(&model.Conversation{}).
		Where("id = (?)", latest).
		Updates(map[string]interface{}{
			"outcome":           entity.OutcomeBookingCompleted,
			"booking_completed": true,
			"conversion_score":  conversionScore,
			"updated_at":        time.Now(),
		})
	return res.RowsAffected, res.Error
}

// SearchSimilarWithScore returns conversations of one domain whose cosine
// similarity to embedding is at least threshold, best first.
func (r *ConversationRepositoryImpl) SearchSimilarWithScore(ctx context.Context, embedding []float32, domainTag string, limit int, threshold float64) ([]*contract.ScoredConversation, error) {
	if limit <= 0 {
		limit = 5
	}

	// Cosine distance in pgvector is 1 - cosine_similarity.
	type result struct {
		model.Conversation
		Similarity float64
	}
	var results []result

	queryVector := pgvector.NewVector(embedding)

	err := r.db.WithContext(ctx).
		Table("conversations").
		Select("conversations.*, 1 - (embedding <=> ?) as similarity", queryVector).
		Where("domain_tag = ?", domainTag).
		Where("embedding IS NOT NULL").
		Where("1 - (embedding <=> ?) >= ?", queryVector, threshold).
		Order("similarity DESC").
		Limit(limit).
		Scan(&results).Error
	if err != nil {
		return nil, err
	}

	scored := make([]*contract.ScoredConversation, len(results))
	for i := range results {
		scored[i] = &contract.ScoredConversation{
			Conversation: r.mapper.ToEntity(&results[i].Conversation),
			Similarity:   results[i].Similarity,
		}
	}
	return scored, nil
}
