package llm

import (
	"context"
	"errors"
)

// Message represents a chat message in a provider-agnostic format
type Message struct {
	Role    string // "user", "assistant", "system"
	Content string
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ErrStreamAborted is returned when the token handler asks the provider to stop.
var ErrStreamAborted = errors.New("llm: stream aborted by handler")

// Option allows for optional parameters like Temperature, MaxTokens, etc.
type Option func(*Options)

type Options struct {
	Temperature float64
	MaxTokens   int
	Model       string // Override default model
}

func WithTemperature(temp float64) Option {
	return func(o *Options) {
		o.Temperature = temp
	}
}

func WithModel(model string) Option {
	return func(o *Options) {
		o.Model = model
	}
}

func WithMaxTokens(n int) Option {
	return func(o *Options) {
		o.MaxTokens = n
	}
}

// ApplyOptions resolves opts on top of the given default temperature.
func ApplyOptions(defaultTemperature float64, opts ...Option) *Options {
	options := &Options{Temperature: defaultTemperature}
	for _, opt := range opts {
		opt(options)
	}
	return options
}

// StreamHandler receives each generated token. Returning an error stops the stream.
type StreamHandler func(token string) error

// LLMProvider defines the contract for any LLM backend
type LLMProvider interface {
	// Chat sends a chat history to the model and returns the response
	Chat(ctx context.Context, history []Message, options ...Option) (string, error)

	// Generate sends a single prompt to the model (convenience method)
	Generate(ctx context.Context, prompt string, options ...Option) (string, error)

	// ChatStream streams the reply token by token and returns the assembled text.
	ChatStream(ctx context.Context, history []Message, onToken StreamHandler, options ...Option) (string, error)
}

// Tool describes a function the model may call. Parameters is a JSON schema object.
type Tool struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// ToolCall is one function invocation emitted by the model. Arguments holds raw JSON.
type ToolCall struct {
	Name      string
	Arguments string
}

// ToolCaller is implemented by providers that support function calling.
type ToolCaller interface {
	ChatWithTools(ctx context.Context, history []Message, tools []Tool, options ...Option) ([]ToolCall, error)
}
