package service

import (
	"context"
	"errors"
	"sync"

	"strive-chatbot-be/internal/entity"
	"strive-chatbot-be/internal/repository/contract"
	"strive-chatbot-be/internal/repository/specification"
	"strive-chatbot-be/internal/repository/unitofwork"
	"strive-chatbot-be/pkg/conversation"
	"strive-chatbot-be/pkg/embedding"
	"strive-chatbot-be/pkg/extraction"
	"strive-chatbot-be/pkg/llm"
	"strive-chatbot-be/pkg/rag"
)

// fakeConversationRepo records creates and serves canned search results.
type fakeConversationRepo struct {
	mu          sync.Mutex
	created     []*entity.Conversation
	createErr   error
	createCalls int
	marked      map[string]float64
	markUpdated int64
	markErr     error
	scored      []*contract.ScoredConversation
	searchErr   error
}

func (r *fakeConversationRepo) Create(ctx context.Context, c *entity.Conversation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.createCalls++
	if r.createErr != nil {
		return r.createErr
	}
	r.created = append(r.created, c)
	return nil
}

func (r *fakeConversationRepo) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Conversation, error) {
	return nil, nil
}

func (r *fakeConversationRepo) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Conversation, error) {
	return r.created, nil
}

func (r *fakeConversationRepo) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	return int64(len(r.created)), nil
}

func (r *fakeConversationRepo) MarkLatestSuccess(ctx context.Context, sessionId string, score float64) (int64, error) {
	if r.markErr != nil {
		return 0, r.markErr
	}
	if r.marked == nil {
		r.marked = map[string]float64{}
	}
	r.marked[sessionId] = score
	return r.markUpdated, nil
}

func (r *fakeConversationRepo) SearchSimilarWithScore(ctx context.Context, emb []float32, domainTag string, limit int, threshold float64) ([]*contract.ScoredConversation, error) {
	return r.scored, r.searchErr
}

type fakeExampleRepo struct {
	scored    []*contract.ScoredConversationExample
	searchErr error
}

func (r *fakeExampleRepo) Create(ctx context.Context, e *entity.ConversationExample) error { return nil }
func (r *fakeExampleRepo) CreateBulk(ctx context.Context, e []*entity.ConversationExample) error {
	return nil
}
func (r *fakeExampleRepo) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.ConversationExample, error) {
	return nil, nil
}
func (r *fakeExampleRepo) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	return 0, nil
}
func (r *fakeExampleRepo) SearchSimilarWithScore(ctx context.Context, emb []float32, domainTag string, limit int, threshold float64) ([]*contract.ScoredConversationExample, error) {
	return r.scored, r.searchErr
}

type fakeUnitOfWork struct {
	conversations *fakeConversationRepo
	examples      *fakeExampleRepo
	beginErr      error
}

func (u *fakeUnitOfWork) Begin(ctx context.Context) error { return u.beginErr }
func (u *fakeUnitOfWork) Commit() error                   { return nil }
func (u *fakeUnitOfWork) Rollback() error                 { return nil }
func (u *fakeUnitOfWork) ConversationRepository() contract.ConversationRepository {
	return u.conversations
}
func (u *fakeUnitOfWork) ConversationExampleRepository() contract.ConversationExampleRepository {
	return u.examples
}

type fakeFactory struct {
	uow *fakeUnitOfWork
}

func newFakeFactory() *fakeFactory {
	return &fakeFactory{uow: &fakeUnitOfWork{
		conversations: &fakeConversationRepo{markUpdated: 1},
		examples:      &fakeExampleRepo{},
	}}
}

func (f *fakeFactory) NewUnitOfWork(ctx context.Context) unitofwork.UnitOfWork { return f.uow }

type fakeEmbedder struct {
	err   error
	calls int
}

func (f *fakeEmbedder) Generate(ctx context.Context, text, taskType string) (*embedding.EmbeddingResponse, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &embedding.EmbeddingResponse{Embedding: embedding.EmbeddingResponseEmbedding{Values: []float32{0.1, 0.2, 0.3}}}, nil
}

// fakeStreamLLM streams the configured tokens, optionally failing after failAfter of them.
type fakeStreamLLM struct {
	tokens    []string
	failAfter int
	err       error
	messages  []llm.Message
}

func (f *fakeStreamLLM) Chat(ctx context.Context, history []llm.Message, options ...llm.Option) (string, error) {
	return "", errors.New("not used")
}

func (f *fakeStreamLLM) Generate(ctx context.Context, prompt string, options ...llm.Option) (string, error) {
	return "", errors.New("not used")
}

func (f *fakeStreamLLM) ChatStream(ctx context.Context, history []llm.Message, onToken llm.StreamHandler, options ...llm.Option) (string, error) {
	f.messages = history
	var full string
	for i, tok := range f.tokens {
		if f.err != nil && i == f.failAfter {
			return full, f.err
		}
		if err := onToken(tok); err != nil {
			return full, errors.Join(llm.ErrStreamAborted, err)
		}
		full += tok
	}
	if f.err != nil && f.failAfter >= len(f.tokens) {
		return full, f.err
	}
	return full, nil
}

type fakeExtractor struct {
	result *extraction.Result
	calls  int
}

func (f *fakeExtractor) Extract(ctx context.Context, utterance string, history []conversation.Turn) *extraction.Result {
	f.calls++
	if f.result != nil {
		return f.result
	}
	return extraction.ExtractWithPatterns(utterance)
}

type fakeContextBuilder struct {
	rc      rag.Context
	summary string
}

func (f *fakeContextBuilder) BuildContext(ctx context.Context, utterance, domainTag, summary string) rag.Context {
	f.summary = summary
	return f.rc
}

type capturePublisher struct {
	mu       sync.Mutex
	payloads [][]byte
	err      error
}

func (p *capturePublisher) Publish(ctx context.Context, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.payloads = append(p.payloads, payload)
	return p.err
}

type captureEvents struct {
	stored    []string
	converted map[string]float64
}

func (c *captureEvents) PublishTurnStored(ctx context.Context, conversationId, sessionId, domainTag, stage string) {
	c.stored = append(c.stored, conversationId)
}

func (c *captureEvents) PublishConversionMarked(ctx context.Context, sessionId string, score float64, updated int64) {
	if c.converted == nil {
		c.converted = map[string]float64{}
	}
	c.converted[sessionId] = score
}
