package unitofwork

import (
	"context"

	"strive-chatbot-be/internal/repository/contract"
)

type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	ConversationRepository() contract.ConversationRepository
	ConversationExampleRepository() contract.ConversationExampleRepository
}
