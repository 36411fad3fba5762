package followup

import (
	"context"
	"fmt"
	"strings"
	"time"

	"strive-chatbot-be/internal/pkg/logger"
	"strive-chatbot-be/pkg/conversation"
	"strive-chatbot-be/pkg/extraction"
	"strive-chatbot-be/pkg/llm"
)

const logModule = "followup"

const (
	SourceModel    = "model"
	SourceFallback = "fallback"
)

type Suggestions struct {
	Suggestions []string `json:"suggestions"`
	Reasoning   string   `json:"reasoning"`
	Stage       Stage    `json:"stage"`
	Source      string   `json:"source"`
}

type Config struct {
	Timeout           time.Duration
	Temperature       float64
	MaxTokens         int
	SingleTemperature float64
	SingleMaxTokens   int
	HistoryWindow     int
	MaxSuggestions    int
	DiscoveryTurns    int
	MatchKeywords     []string
}

func DefaultConfig() Config {
	return Config{
		Timeout:           10 * time.Second,
		Temperature:       0.7,
		MaxTokens:         300,
		SingleTemperature: 0.6,
		SingleMaxTokens:   100,
		HistoryWindow:     6,
		MaxSuggestions:    4,
		DiscoveryTurns:    2,
		MatchKeywords:     []string{"match"},
	}
}

// Generator asks the model for follow-up questions and falls back to static lists.
type Generator struct {
	llm    llm.LLMProvider
	cfg    Config
	logger logger.ILogger
}

// NewGenerator accepts a nil provider, in which case only static suggestions are served.
func NewGenerator(provider llm.LLMProvider, cfg Config, log logger.ILogger) *Generator {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Generator{llm: provider, cfg: cfg, logger: log}
}

func (g *Generator) Config() Config {
	return g.cfg
}

// Generate never fails. Transport errors, timeouts and unparseable replies
// all produce the static list for the detected stage.
func (g *Generator) Generate(ctx context.Context, in Input) Suggestions {
	stage := ClassifyStage(in, g.cfg)
	if g.llm == nil {
		return g.fallback(stage, in.Preferences)
	}

	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	messages := []llm.Message{{Role: llm.RoleSystem, Content: systemPrompt(stage, in)}}
	messages = append(messages, conversation.ToMessages(conversation.Last(in.History, g.cfg.HistoryWindow))...)
	messages = append(messages, llm.Message{
		Role:    llm.RoleUser,
		Content: "Generate 3-4 natural follow-up questions that would help move this conversation forward.",
	})

	reply, err := g.llm.Chat(ctx, messages, llm.WithTemperature(g.cfg.Temperature), llm.WithMaxTokens(g.cfg.MaxTokens))
	if err != nil {
		g.logger.Warn(logModule, "Follow-up generation failed, using static suggestions", map[string]interface{}{
			"stage": string(stage),
			"error": err.Error(),
		})
		return g.fallback(stage, in.Preferences)
	}

	suggestions := ParseSuggestions(reply, g.cfg.MaxSuggestions)
	if len(suggestions) == 0 {
		g.logger.Warn(logModule, "Follow-up reply had no usable questions", map[string]interface{}{
			"stage": string(stage),
		})
		return g.fallback(stage, in.Preferences)
	}

	return Suggestions{
		Suggestions: suggestions,
		Reasoning:   fmt.Sprintf("Generated %d suggestions for %s stage", len(suggestions), stage),
		Stage:       stage,
		Source:      SourceModel,
	}
}

// GenerateSingle returns one follow-up question for the last user message, or "" on any failure.
func (g *Generator) GenerateSingle(ctx context.Context, lastMessage string, prefs extraction.PropertyPreferences, stage Stage) string {
	if g.llm == nil || strings.TrimSpace(lastMessage) == "" {
		return ""
	}

	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: singlePrompt(stage, prefs)},
		{Role: llm.RoleUser, Content: lastMessage},
	}
	reply, err := g.llm.Chat(ctx, messages, llm.WithTemperature(g.cfg.SingleTemperature), llm.WithMaxTokens(g.cfg.SingleMaxTokens))
	if err != nil {
		g.logger.Warn(logModule, "Single follow-up generation failed", map[string]interface{}{"error": err.Error()})
		return ""
	}
	return strings.TrimSpace(reply)
}

func (g *Generator) fallback(stage Stage, prefs extraction.PropertyPreferences) Suggestions {
	return Suggestions{
		Suggestions: Fallback(stage, prefs, g.cfg.MaxSuggestions),
		Reasoning:   fmt.Sprintf("Fallback suggestions for %s", stage),
		Stage:       stage,
		Source:      SourceFallback,
	}
}

func (g *Generator) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if g.cfg.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, g.cfg.Timeout)
}
