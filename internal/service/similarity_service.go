package service

import (
	"context"
	"fmt"

	"strive-chatbot-be/internal/repository/unitofwork"
	"strive-chatbot-be/pkg/rag"
)

// similarityService adapts the pgvector repositories to rag.SimilaritySearcher.
type similarityService struct {
	uowFactory unitofwork.RepositoryFactory
}

func NewSimilarityService(uowFactory unitofwork.RepositoryFactory) rag.SimilaritySearcher {
	return &similarityService{uowFactory: uowFactory}
}

func (s *similarityService) SearchConversations(ctx context.Context, q rag.SearchQuery) ([]rag.Match, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	rows, err := uow.ConversationRepository().SearchSimilarWithScore(ctx, q.Vector, q.DomainTag, q.Limit, q.Threshold)
	if err != nil {
		return nil, fmt.Errorf("search conversations: %w", err)
	}

	matches := make([]rag.Match, 0, len(rows))
	for _, row := range rows {
		c := row.Conversation
		matches = append(matches, rag.Match{
			ID:              c.Id.String(),
			SourceUtterance: c.UserMessage,
			ResponseText:    c.AssistantResponse,
			ProblemLabel:    c.Problem,
			SolutionLabel:   c.Solution,
			Outcome:         c.Outcome,
			Stage:           c.Stage,
			ConversionScore: c.ConversionScore,
			Similarity:      row.Similarity,
		})
	}
	return matches, nil
}

func (s *similarityService) SearchExamples(ctx context.Context, q rag.SearchQuery) ([]rag.ExampleRow, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	rows, err := uow.ConversationExampleRepository().SearchSimilarWithScore(ctx, q.Vector, q.DomainTag, q.Limit, q.Threshold)
	if err != nil {
		return nil, fmt.Errorf("search examples: %w", err)
	}

	out := make([]rag.ExampleRow, 0, len(rows))
	for _, row := range rows {
		e := row.Example
		out = append(out, rag.ExampleRow{
			ID:              e.Id.String(),
			Utterance:       e.Utterance,
			Response:        e.Response,
			Problem:         e.Problem,
			Solution:        e.Solution,
			Outcome:         e.Outcome,
			Stage:           e.Stage,
			ConversionScore: e.ConversionScore,
			Similarity:      row.Similarity,
		})
	}
	return out, nil
}
