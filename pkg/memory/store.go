package memory

import (
	"context"
	"errors"
)

var (
	ErrNotFound        = errors.New("memory: session not found")
	ErrVersionConflict = errors.New("memory: version conflict")
)

// Store persists session memory with optimistic concurrency.
//
// Save succeeds only when the stored version still equals m.Version (0 means the
// session must not exist yet). On success the store increments m.Version.
type Store interface {
	Load(ctx context.Context, sessionID string) (*ConversationMemory, error)
	Save(ctx context.Context, m *ConversationMemory) error
	Delete(ctx context.Context, sessionID string) error
}
