package factory

import (
	"fmt"

	"strive-chatbot-be/pkg/llm"
	"strive-chatbot-be/pkg/llm/ollama"
	"strive-chatbot-be/pkg/llm/openai"
)

const (
	groqBaseURL        = "https://api.groq.com/openai/v1"
	huggingFaceBaseURL = "https://router.huggingface.co/v1"
)

func NewLLMProvider(providerType, modelName, baseURL, apiKey string) (llm.LLMProvider, error) {
	switch providerType {
	case "ollama":
		if baseURL == "" {
			baseURL = "http://localhost:11434" // Default
		}
		return ollama.NewOllamaProvider(baseURL, modelName), nil
	case "openai":
		if apiKey == "" {
			return nil, fmt.Errorf("openai provider requires an API key")
		}
		return openai.NewOpenAIProvider(apiKey, baseURL, modelName), nil
	case "groq":
		if apiKey == "" {
			return nil, fmt.Errorf("groq provider requires an API key")
		}
		if baseURL == "" {
			baseURL = groqBaseURL
		}
		return openai.NewOpenAIProvider(apiKey, baseURL, modelName), nil
	case "huggingface":
		// The router speaks the OpenAI chat completions protocol.
		if baseURL == "" {
			baseURL = huggingFaceBaseURL
		}
		return openai.NewOpenAIProvider(apiKey, baseURL, modelName), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", providerType)
	}
}
