package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"strive-chatbot-be/internal/config"
	"strive-chatbot-be/internal/dto"
	"strive-chatbot-be/internal/entity"
	"strive-chatbot-be/internal/metrics"
	"strive-chatbot-be/internal/pkg/logger"
	"strive-chatbot-be/internal/pkg/serverutils"
	"strive-chatbot-be/internal/repository/specification"
	"strive-chatbot-be/internal/repository/unitofwork"
	"strive-chatbot-be/pkg/conversation"
	"strive-chatbot-be/pkg/events"
	"strive-chatbot-be/pkg/extraction"
	"strive-chatbot-be/pkg/followup"
	"strive-chatbot-be/pkg/llm"
	"strive-chatbot-be/pkg/memory"
	"strive-chatbot-be/pkg/rag"
	"strive-chatbot-be/pkg/rag/prompt"
	"strive-chatbot-be/pkg/utils"
)

const (
	chatbotModule       = "CHATBOT"
	fallbackReplyPrefix = "Sorry, I'm having trouble pulling that together right now."
	defaultTurnPage     = 50
)

var (
	ErrInvalidTurns    = errors.New("conversation must end with a user message")
	ErrSessionNotFound = errors.New("no stored turns for session")
	ErrInvalidActivity = errors.New("unknown memory activity")
)

// StreamSink receives every event of a streamed turn. A returned error aborts the turn.
type StreamSink func(event dto.StreamEvent) error

type IChatbotService interface {
	StreamChat(ctx context.Context, request *dto.StreamChatRequest, sink StreamSink) error
	MarkConversationSuccess(ctx context.Context, request *dto.MarkSuccessRequest) (*dto.MarkSuccessResponse, error)
	GenerateFollowUps(ctx context.Context, request *dto.FollowUpRequest) (*followup.Suggestions, error)
	GenerateFollowUp(ctx context.Context, request *dto.FollowUpSingleRequest) (*dto.FollowUpSingleResponse, error)
	Extract(ctx context.Context, request *dto.ExtractRequest) (*extraction.Result, error)
	GetMemory(ctx context.Context, sessionId string) (*dto.MemoryResponse, error)
	RecordActivity(ctx context.Context, sessionId string, request *dto.MemoryActivityRequest) (*dto.MemoryResponse, error)
	ResetMemory(ctx context.Context, sessionId string) error
	ListTurns(ctx context.Context, sessionId string, request *dto.ListTurnsRequest) (*dto.ListTurnsResponse, error)
	HandleBookingCompleted(ctx context.Context, event events.Event) error
}

// Extractor and ContextBuilder are the slices of pkg/extraction and pkg/rag the orchestrator needs.
type Extractor interface {
	Extract(ctx context.Context, utterance string, history []conversation.Turn) *extraction.Result
}

type ContextBuilder interface {
	BuildContext(ctx context.Context, utterance, domainTag, summary string) rag.Context
}

type ChatbotConfig struct {
	ExtractionWindow  int // turns passed to the extractor as history
	PromptWindow      int // turns replayed to the model; 0 replays all
	GenerationTimeout time.Duration
	Temperature       float64
}

func DefaultChatbotConfig() ChatbotConfig {
	return ChatbotConfig{
		ExtractionWindow:  5,
		PromptWindow:      20,
		GenerationTimeout: 60 * time.Second,
		Temperature:       0.7,
	}
}

func ChatbotConfigFrom(cfg config.ChatbotConfig) ChatbotConfig {
	c := DefaultChatbotConfig()
	c.ExtractionWindow = cfg.HistoryWindow
	c.GenerationTimeout = cfg.GenerationTimeout
	c.Temperature = cfg.Temperature
	return c
}

type chatbotService struct {
	uowFactory     unitofwork.RepositoryFactory
	llmProvider    llm.LLMProvider
	extractor      Extractor
	contextBuilder ContextBuilder
	memory         *memory.Manager
	followUps      *followup.Generator
	publisher      IPublisherService
	events         events.ConversationPublisher
	domains        *config.Domains
	cfg            ChatbotConfig
	logger         logger.ILogger
	now            func() time.Time
}

func NewChatbotService(
	uowFactory unitofwork.RepositoryFactory,
	llmProvider llm.LLMProvider,
	extractor Extractor,
	contextBuilder ContextBuilder,
	memoryManager *memory.Manager,
	followUps *followup.Generator,
	publisher IPublisherService,
	eventPublisher events.ConversationPublisher,
	domains *config.Domains,
	cfg ChatbotConfig,
	log logger.ILogger,
) IChatbotService {
	if log == nil {
		log = logger.NewNopLogger()
	}
	if eventPublisher == nil {
		eventPublisher = events.NewConversationPublisher(nil, log)
	}
	if domains == nil {
		domains = config.DefaultDomains()
	}
	return &chatbotService{
		uowFactory:     uowFactory,
		llmProvider:    llmProvider,
		extractor:      extractor,
		contextBuilder: contextBuilder,
		memory:         memoryManager,
		followUps:      followUps,
		publisher:      publisher,
		events:         eventPublisher,
		domains:        domains,
		cfg:            cfg,
		logger:         log,
		now:            time.Now,
	}
}

// turnState is everything derived from a request before generation starts.
type turnState struct {
	sessionId  string
	domainTag  string
	profile    config.DomainProfile
	utterance  string
	extraction *extraction.Result
	memory     *memory.ConversationMemory
	stage      followup.Stage
	problems   []string
	rag        rag.Context
}

// StreamChat runs one orchestrated turn. The reply is written to sink as token
// events followed by a done event. The turn is persisted only when the model
// stream completed.
func (cs *chatbotService) StreamChat(ctx context.Context, request *dto.StreamChatRequest, sink StreamSink) error {
	start := cs.now()

	if err := ValidateTurns(request.Messages); err != nil {
		return err
	}
	utterance := conversation.LastUserMessage(request.Messages)

	state := cs.prepareTurn(ctx, request, utterance)

	systemPrompt := prompt.NewContextualBuilder(state.profile.BasePrompt, state.rag, state.memory.Preferences).
		WithExtractedFields(state.extraction.ExtractedFields).
		WithMemoryGuidance(cs.memory.Guidance(state.memory)).
		Build()

	messages := []llm.Message{{Role: llm.RoleSystem, Content: systemPrompt}}
	messages = append(messages, conversation.ToMessages(conversation.Last(request.Messages, cs.cfg.PromptWindow))...)

	if err := sink(dto.StreamEvent{Type: dto.StreamEventMeta, Meta: cs.turnMeta(state)}); err != nil {
		metrics.RecordTurn(state.domainTag, metrics.TurnAborted, 0)
		return fmt.Errorf("send turn metadata: %w", err)
	}

	genCtx, cancel := cs.withGenerationTimeout(ctx)
	defer cancel()

	var sinkErr error
	tokens := 0
	reply, err := cs.llmProvider.ChatStream(genCtx, messages, func(token string) error {
		if token == "" {
			return nil
		}
		if sinkErr = sink(dto.StreamEvent{Type: dto.StreamEventToken, Content: token}); sinkErr != nil {
			return sinkErr
		}
		tokens++
		return nil
	}, llm.WithTemperature(cs.cfg.Temperature))

	if err != nil {
		return cs.handleStreamFailure(ctx, state, tokens, sinkErr, err, sink)
	}

	if err := sink(dto.StreamEvent{Type: dto.StreamEventDone}); err != nil {
		metrics.RecordTurn(state.domainTag, metrics.TurnAborted, 0)
		return fmt.Errorf("send done event: %w", err)
	}

	elapsed := cs.now().Sub(start)
	metrics.RecordTurn(state.domainTag, metrics.TurnCompleted, elapsed.Seconds())
	cs.completeTurn(context.WithoutCancel(ctx), state, reply, elapsed)
	return nil
}

// ValidateTurns reports ErrInvalidTurns unless the history ends with a non-empty user message.
func ValidateTurns(turns []conversation.Turn) error {
	if len(turns) == 0 {
		return ErrInvalidTurns
	}
	last := turns[len(turns)-1]
	if last.Role != conversation.RoleUser || strings.TrimSpace(last.Content) == "" {
		return ErrInvalidTurns
	}
	return nil
}

// handleStreamFailure decides between a static reply and an aborted turn.
// Only a generation failure before the first token is answered statically.
func (cs *chatbotService) handleStreamFailure(ctx context.Context, state *turnState, tokens int, sinkErr, err error, sink StreamSink) error {
	aborted := sinkErr != nil || ctx.Err() != nil || tokens > 0
	cs.logger.Warn(chatbotModule, "Reply stream failed", map[string]interface{}{
		"session_id": state.sessionId,
		"tokens":     tokens,
		"aborted":    aborted,
		"error":      err.Error(),
	})
	if aborted {
		metrics.RecordTurn(state.domainTag, metrics.TurnAborted, 0)
		return fmt.Errorf("stream reply: %w", err)
	}

	metrics.RecordTurn(state.domainTag, metrics.TurnFailed, 0)
	if err := sink(dto.StreamEvent{Type: dto.StreamEventToken, Content: cs.fallbackReply(state)}); err != nil {
		return fmt.Errorf("send fallback reply: %w", err)
	}
	if err := sink(dto.StreamEvent{Type: dto.StreamEventDone}); err != nil {
		return fmt.Errorf("send done event: %w", err)
	}
	return nil
}

func (cs *chatbotService) fallbackReply(state *turnState) string {
	next := followup.Fallback(state.stage, state.memory.Preferences, 1)
	if len(next) == 0 {
		return fallbackReplyPrefix
	}
	return fallbackReplyPrefix + " " + next[0]
}

// prepareTurn runs extraction, memory bookkeeping, stage classification and
// retrieval. Memory failures degrade to a request-local memory.
func (cs *chatbotService) prepareTurn(ctx context.Context, request *dto.StreamChatRequest, utterance string) *turnState {
	domainTag, profile := cs.domains.Profile(request.DomainTag)
	state := &turnState{
		sessionId: request.SessionId,
		domainTag: domainTag,
		profile:   profile,
		utterance: utterance,
	}

	state.extraction = cs.extractor.Extract(ctx, utterance, conversation.Last(request.Messages, cs.cfg.ExtractionWindow))
	metrics.RecordExtraction(state.extraction.Method)

	if err := cs.memory.RecordMentions(ctx, request.SessionId, utterance); err != nil {
		cs.logger.Warn(chatbotModule, "Failed to record mentions", map[string]interface{}{
			"session_id": request.SessionId,
			"error":      err.Error(),
		})
	}
	mem, err := cs.memory.Update(ctx, request.SessionId, memory.Update{
		Preferences: &state.extraction.Preferences,
		Contact:     &state.extraction.Contact,
	})
	if err != nil {
		cs.logger.Error(chatbotModule, "Failed to update session memory, continuing with this turn only", map[string]interface{}{
			"session_id": request.SessionId,
			"error":      err.Error(),
		})
		mem = &memory.ConversationMemory{
			SessionID:   request.SessionId,
			Preferences: state.extraction.Preferences,
			Contact:     state.extraction.Contact,
			Mentions:    map[string][]string{},
		}
	}
	state.memory = mem

	state.stage = followup.ClassifyStage(cs.followUpInput(request.Messages, mem), cs.followUps.Config())
	state.problems = ProblemsDiscussed(request.Messages, profile.ProblemKeywords)
	metrics.RecordStage(string(state.stage))

	state.rag = cs.contextBuilder.BuildContext(ctx, utterance, domainTag, cs.memory.ContextSummary(mem))
	metrics.RecordRetrievalConfidence(domainTag, state.rag.Confidence.Overall)

	cs.logger.Info(chatbotModule, "Turn prepared", map[string]interface{}{
		"session_id":        request.SessionId,
		"domain":            domainTag,
		"stage":             string(state.stage),
		"extracted_fields":  state.extraction.ExtractedFields,
		"extraction_method": state.extraction.Method,
		"problems":          state.problems,
		"rag_confidence":    state.rag.Confidence.Overall,
		"approach":          state.rag.Guidance.Approach,
	})
	return state
}

func (cs *chatbotService) followUpInput(history []conversation.Turn, mem *memory.ConversationMemory) followup.Input {
	return followup.Input{
		History:     history,
		Preferences: mem.Preferences,
		HasSearched: mem.HasSearched(),
		ResultCount: len(mem.EntitiesViewed),
	}
}

// completeTurn runs the post-stream side effects. Nothing here reaches the caller.
func (cs *chatbotService) completeTurn(ctx context.Context, state *turnState, reply string, elapsed time.Duration) {
	if _, err := cs.memory.Update(ctx, state.sessionId, memory.Update{
		QuestionsAsked:  memory.ExtractQuestions(reply),
		TopicsDiscussed: state.problems,
	}); err != nil {
		cs.logger.Warn(chatbotModule, "Failed to record turn in memory", map[string]interface{}{
			"session_id": state.sessionId,
			"error":      err.Error(),
		})
	}

	msg := dto.PublishConversationTurnMessage{
		SessionId:         state.sessionId,
		DomainTag:         state.domainTag,
		UserMessage:       state.utterance,
		AssistantResponse: reply,
		Stage:             string(state.stage),
		Problem:           first(state.rag.DetectedProblems),
		Solution:          first(state.rag.RecommendedSolutions),
		ResponseTimeMs:    elapsed.Milliseconds(),
		Metadata: entity.ConversationMetadata{
			ExtractedFields:  state.extraction.ExtractedFields,
			ExtractionMethod: state.extraction.Method,
			Confidence:       state.rag.Confidence.Overall,
			Urgency:          state.rag.Guidance.Urgency,
			ContactEmail:     deref(state.memory.Contact.Email),
		},
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		cs.logger.Error(chatbotModule, "Failed to encode turn", map[string]interface{}{"error": err.Error()})
		return
	}
	if err := cs.publisher.Publish(ctx, payload); err != nil {
		cs.logger.Error(chatbotModule, "Failed to publish turn for persistence", map[string]interface{}{
			"session_id": state.sessionId,
			"error":      err.Error(),
		})
	}
}

func (cs *chatbotService) turnMeta(state *turnState) *dto.StreamTurnMeta {
	return &dto.StreamTurnMeta{
		Stage:            string(state.stage),
		DomainTag:        state.domainTag,
		DetectedProblems: state.rag.DetectedProblems,
		Approach:         state.rag.Guidance.Approach,
		Confidence:       state.rag.Confidence.Overall,
		Urgency:          state.rag.Guidance.Urgency,
		ExtractedFields:  state.extraction.ExtractedFields,
		CanSearch:        extraction.HasMinimumSearchCriteria(state.memory.Preferences),
	}
}

func (cs *chatbotService) withGenerationTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if cs.cfg.GenerationTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, cs.cfg.GenerationTimeout)
}

// MarkConversationSuccess flags the session's latest stored turn as a completed booking.
func (cs *chatbotService) MarkConversationSuccess(ctx context.Context, request *dto.MarkSuccessRequest) (*dto.MarkSuccessResponse, error) {
	score := 1.0
	if request.ConversionScore != nil {
		score = utils.Clamp01(*request.ConversionScore)
	}

	uow := cs.uowFactory.NewUnitOfWork(ctx)
	updated, err := uow.ConversationRepository().MarkLatestSuccess(ctx, request.SessionId, score)
	if err != nil {
		return nil, fmt.Errorf("mark conversation success: %w", err)
	}
	if updated == 0 {
		return nil, ErrSessionNotFound
	}

	metrics.RecordConversion()
	cs.events.PublishConversionMarked(ctx, request.SessionId, score, updated)
	cs.logger.Info(chatbotModule, "Conversation marked successful", map[string]interface{}{
		"session_id":       request.SessionId,
		"conversion_score": score,
	})

	return &dto.MarkSuccessResponse{
		SessionId:       request.SessionId,
		ConversionScore: score,
		Updated:         updated,
	}, nil
}

// HandleBookingCompleted is the events.booking.completed handler. A session
// with no stored turns is logged and acknowledged, not retried.
func (cs *chatbotService) HandleBookingCompleted(ctx context.Context, event events.Event) error {
	var payload dto.BookingCompletedEvent
	if err := events.Decode(event, &payload); err != nil {
		return fmt.Errorf("decode booking event: %w", err)
	}
	// Redelivery cannot repair a bad payload, so it is dropped.
	if err := serverutils.ValidateRequest(payload); err != nil {
		cs.logger.Warn(chatbotModule, "Dropping invalid booking event", map[string]interface{}{
			"session_id": payload.SessionId,
			"error":      err.Error(),
		})
		return nil
	}

	_, err := cs.MarkConversationSuccess(ctx, &dto.MarkSuccessRequest{
		SessionId:       payload.SessionId,
		ConversionScore: payload.ConversionScore,
	})
	if errors.Is(err, ErrSessionNotFound) {
		cs.logger.Warn(chatbotModule, "Booking event for unknown session", map[string]interface{}{
			"session_id": payload.SessionId,
		})
		return nil
	}
	return err
}

// GenerateFollowUps fills missing request fields from session memory when a session id is given.
func (cs *chatbotService) GenerateFollowUps(ctx context.Context, request *dto.FollowUpRequest) (*followup.Suggestions, error) {
	in := followup.Input{History: request.Messages, ResultCount: request.ResultCount}

	if request.SessionId != "" {
		mem, err := cs.memory.Get(ctx, request.SessionId)
		if err != nil {
			cs.logger.Warn(chatbotModule, "Failed to load memory for follow-ups", map[string]interface{}{
				"session_id": request.SessionId,
				"error":      err.Error(),
			})
		} else {
			in.Preferences = mem.Preferences
			in.HasSearched = mem.HasSearched()
		}
	}
	if request.Preferences != nil {
		in.Preferences = extraction.Merge(in.Preferences, *request.Preferences)
	}
	if request.HasSearched != nil {
		in.HasSearched = *request.HasSearched
	}

	suggestions := cs.followUps.Generate(ctx, in)
	metrics.RecordFollowUps(suggestions.Source, string(suggestions.Stage))
	return &suggestions, nil
}

func (cs *chatbotService) GenerateFollowUp(ctx context.Context, request *dto.FollowUpSingleRequest) (*dto.FollowUpSingleResponse, error) {
	var prefs extraction.PropertyPreferences
	stage := followup.Stage(request.Stage)

	if request.SessionId != "" {
		if mem, err := cs.memory.Get(ctx, request.SessionId); err == nil {
			prefs = mem.Preferences
			if stage == "" {
				stage = followup.ClassifyStage(cs.followUpInput(nil, mem), cs.followUps.Config())
			}
		}
	}
	if request.Preferences != nil {
		prefs = extraction.Merge(prefs, *request.Preferences)
	}
	if stage == "" {
		stage = followup.StageDiscovery
	}

	return &dto.FollowUpSingleResponse{
		Suggestion: cs.followUps.GenerateSingle(ctx, request.LastMessage, prefs, stage),
		Stage:      stage,
	}, nil
}

func (cs *chatbotService) Extract(ctx context.Context, request *dto.ExtractRequest) (*extraction.Result, error) {
	res := cs.extractor.Extract(ctx, request.Message, conversation.Last(request.History, cs.cfg.ExtractionWindow))
	metrics.RecordExtraction(res.Method)
	return res, nil
}

func (cs *chatbotService) GetMemory(ctx context.Context, sessionId string) (*dto.MemoryResponse, error) {
	mem, err := cs.memory.Get(ctx, sessionId)
	if err != nil {
		return nil, fmt.Errorf("load memory: %w", err)
	}
	return cs.memoryResponse(mem), nil
}

func (cs *chatbotService) RecordActivity(ctx context.Context, sessionId string, request *dto.MemoryActivityRequest) (*dto.MemoryResponse, error) {
	var err error
	switch request.Type {
	case dto.ActivityView:
		err = cs.memory.RecordView(ctx, sessionId, request.Value)
	case dto.ActivityFavorite:
		err = cs.memory.RecordFavorite(ctx, sessionId, request.Value)
	case dto.ActivitySearch:
		err = cs.memory.RecordSearch(ctx, sessionId)
	case dto.ActivityTopic:
		err = cs.memory.RecordTopic(ctx, sessionId, request.Value)
	case dto.ActivityQuestion:
		err = cs.memory.RecordQuestion(ctx, sessionId, request.Value)
	default:
		return nil, ErrInvalidActivity
	}
	if err != nil {
		return nil, fmt.Errorf("record %s activity: %w", request.Type, err)
	}
	return cs.GetMemory(ctx, sessionId)
}

func (cs *chatbotService) ResetMemory(ctx context.Context, sessionId string) error {
	return cs.memory.Reset(ctx, sessionId)
}

// ListTurns returns the stored transcript of a session, oldest first.
func (cs *chatbotService) ListTurns(ctx context.Context, sessionId string, request *dto.ListTurnsRequest) (*dto.ListTurnsResponse, error) {
	limit := request.Limit
	if limit == 0 {
		limit = defaultTurnPage
	}

	repo := cs.uowFactory.NewUnitOfWork(ctx).ConversationRepository()
	bySession := specification.BySessionID{SessionID: sessionId}
	total, err := repo.Count(ctx, bySession)
	if err != nil {
		return nil, fmt.Errorf("count turns: %w", err)
	}
	rows, err := repo.FindAll(ctx,
		bySession,
		specification.Oldest{},
		specification.Pagination{Limit: limit, Offset: request.Offset},
	)
	if err != nil {
		return nil, fmt.Errorf("list turns: %w", err)
	}

	res := &dto.ListTurnsResponse{SessionId: sessionId, Total: total, Turns: make([]dto.ConversationTurnResponse, 0, len(rows))}
	for _, c := range rows {
		res.Turns = append(res.Turns, dto.ConversationTurnResponse{
			Id:                c.Id.String(),
			UserMessage:       c.UserMessage,
			AssistantResponse: c.AssistantResponse,
			Stage:             c.Stage,
			Outcome:           c.Outcome,
			Problem:           c.Problem,
			Solution:          c.Solution,
			ConversionScore:   c.ConversionScore,
			BookingCompleted:  c.BookingCompleted,
			ResponseTimeMs:    c.ResponseTimeMs,
			HasEmbedding:      len(c.Embedding) > 0,
			CreatedAt:         c.CreatedAt,
			UpdatedAt:         c.UpdatedAt,
		})
	}
	return res, nil
}

func (cs *chatbotService) memoryResponse(mem *memory.ConversationMemory) *dto.MemoryResponse {
	return &dto.MemoryResponse{
		Memory:   mem,
		Stats:    memory.StatsOf(mem),
		Guidance: cs.memory.Guidance(mem),
		Summary:  cs.memory.ContextSummary(mem),
	}
}

// ProblemsDiscussed scans every turn for the domain's problem keywords and
// returns the keywords found, in keyword-first-seen order.
func ProblemsDiscussed(turns []conversation.Turn, keywords []string) []string {
	problems := []string{}
	seen := map[string]bool{}
	for _, t := range turns {
		content := strings.ToLower(t.Content)
		for _, kw := range keywords {
			if !seen[kw] && strings.Contains(content, strings.ToLower(kw)) {
				seen[kw] = true
				problems = append(problems, kw)
			}
		}
	}
	return problems
}

func first(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
