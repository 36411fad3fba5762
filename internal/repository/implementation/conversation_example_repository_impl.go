package implementation

import (
	"context"

	"strive-chatbot-be/internal/entity"
	"strive-chatbot-be/internal/mapper"
	"strive-chatbot-be/internal/model"
	"strive-chatbot-be/internal/repository/contract"
	"strive-chatbot-be/internal/repository/specification"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

type ConversationExampleRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.ConversationExampleMapper
}

func NewConversationExampleRepository(db *gorm.DB) contract.ConversationExampleRepository {
	return &ConversationExampleRepositoryImpl{
		db:     db,
		mapper: mapper.NewConversationExampleMapper(),
	}
}

func (r *ConversationExampleRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *ConversationExampleRepositoryImpl) Create(ctx context.Context, example *entity.ConversationExample) error {
	m := r.mapper.ToModel(example)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*example = *r.mapper.ToEntity(m)
	return nil
}

func (r *ConversationExampleRepositoryImpl) CreateBulk(ctx context.Context, examples []*entity.ConversationExample) error {
	if len(examples) == 0 {
		return nil
	}
	models := make([]*model.ConversationExample, len(examples))
	for i, e := range examples {
		models[i] = r.mapper.ToModel(e)
	}

	if err := r.db.WithContext(ctx).Create(models).Error; err != nil {
		return err
	}

	for i, m := range models {
		*examples[i] = *r.mapper.ToEntity(m)
	}
	return nil
}

func (r *ConversationExampleRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.ConversationExample, error) {
	var models []*model.ConversationExample
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	entities := make([]*entity.ConversationExample, len(models))
	for i, m := range models {
		entities[i] = r.mapper.ToEntity(m)
	}
	return entities, nil
}

func (r *ConversationExampleRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	err := query.Model(&model.ConversationExample{}).Count(&count).Error
	return count, err
}

func (r *ConversationExampleRepositoryImpl) SearchSimilarWithScore(ctx context.Context, embedding []float32, domainTag string, limit int, threshold float64) ([]*contract.ScoredConversationExample, error) {
	if limit <= 0 {
		limit = 5
	}

	type result struct {
		model.ConversationExample
		Similarity float64
	}
	var results []result

	queryVector := pgvector.NewVector(embedding)

	err := r.db.WithContext(ctx).
		Table("conversation_examples").
		Select("conversation_examples.*, 1 - (embedding <=> ?) as similarity", queryVector).
		Where("domain_tag = ?", domainTag).
		Where("embedding IS NOT NULL").
		Where("1 - (embedding <=> ?) >= ?", queryVector, threshold).
		Order("similarity DESC").
		Limit(limit).
		Scan(&results).Error
	if err != nil {
		return nil, err
	}

	scored := make([]*contract.ScoredConversationExample, len(results))
	for i := range results {
		scored[i] = &contract.ScoredConversationExample{
			Example:    r.mapper.ToEntity(&results[i].ConversationExample),
			Similarity: results[i].Similarity,
		}
	}
	return scored, nil
}
