package extraction

import (
	"context"
	"errors"
	"fmt"
	"math"

	"strive-chatbot-be/internal/pkg/logger"
	"strive-chatbot-be/pkg/conversation"
	"strive-chatbot-be/pkg/llm"
	"strive-chatbot-be/pkg/utils"
)

const logModule = "extraction"

// ErrNoValidPayload means the model answered but no tool call survived validation.
var ErrNoValidPayload = errors.New("extraction: no valid tool payload")

// strategy is one rung of the extraction ladder.
type strategy interface {
	name() string
	extract(ctx context.Context, utterance string, history []conversation.Turn) (*Result, error)
}

// Extractor runs the model-backed strategy first and falls back to pattern matching.
type Extractor struct {
	chain  []strategy
	logger logger.ILogger
}

// NewExtractor builds the ladder. A nil caller leaves only the pattern strategy.
func NewExtractor(caller llm.ToolCaller, cfg Config, log logger.ILogger) *Extractor {
	if log == nil {
		log = logger.NewNopLogger()
	}
	var chain []strategy
	if caller != nil {
		chain = append(chain, &toolStrategy{caller: caller, cfg: cfg})
	}
	chain = append(chain, patternStrategy{})

	return &Extractor{chain: chain, logger: log}
}

// Extract never fails: the last strategy in the chain always produces a result.
func (e *Extractor) Extract(ctx context.Context, utterance string, history []conversation.Turn) *Result {
	for _, s := range e.chain {
		res, err := s.extract(ctx, utterance, history)
		if err != nil {
			e.logger.Warn(logModule, "Extraction strategy failed, trying next", map[string]interface{}{
				"strategy": s.name(),
				"error":    err.Error(),
			})
			continue
		}
		res.Confidence = utils.Clamp01(res.Confidence)
		e.logger.Debug(logModule, "Extraction complete", map[string]interface{}{
			"strategy":   s.name(),
			"fields":     res.ExtractedFields,
			"confidence": res.Confidence,
		})
		return res
	}
	return ExtractWithPatterns(utterance)
}

type patternStrategy struct{}

func (patternStrategy) name() string { return MethodPattern }

func (patternStrategy) extract(_ context.Context, utterance string, _ []conversation.Turn) (*Result, error) {
	return ExtractWithPatterns(utterance), nil
}

type toolStrategy struct {
	caller llm.ToolCaller
	cfg    Config
}

func (s *toolStrategy) name() string { return MethodToolCall }

func (s *toolStrategy) extract(ctx context.Context, utterance string, history []conversation.Turn) (*Result, error) {
	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	messages := []llm.Message{{Role: llm.RoleSystem, Content: systemInstructions}}
	messages = append(messages, conversation.ToMessages(conversation.Last(history, s.cfg.HistoryWindow))...)
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: utterance})

	calls, err := s.caller.ChatWithTools(ctx, messages, Tools(), llm.WithTemperature(s.cfg.Temperature))
	if err != nil {
		return nil, fmt.Errorf("tool call: %w", err)
	}

	return assemble(calls)
}

// assemble folds validated payloads into a Result. A call that fails to decode is
// dropped on its own; if every call fails the whole attempt is rejected.
func assemble(calls []llm.ToolCall) (*Result, error) {
	res := &Result{ExtractedFields: []string{}, Method: MethodToolCall}

	var failures []error
	for _, call := range calls {
		payload, err := DecodeToolCall(call)
		if err != nil {
			failures = append(failures, err)
			continue
		}
		switch p := payload.(type) {
		case PreferencesPayload:
			res.Preferences = Merge(res.Preferences, p.Preferences)
		case ContactPayload:
			res.Contact = MergeContact(res.Contact, p.Contact)
		}
		res.ExtractedFields = utils.AppendUnique(res.ExtractedFields, payload.Fields()...)
	}

	if len(calls) > 0 && len(failures) == len(calls) {
		return nil, errors.Join(append([]error{ErrNoValidPayload}, failures...)...)
	}

	if len(res.ExtractedFields) == 0 {
		res.Confidence = 0.8
	} else {
		res.Confidence = math.Min(0.9, 0.6+0.1*float64(len(res.ExtractedFields)))
	}
	return res, nil
}
