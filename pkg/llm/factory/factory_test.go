package factory

import (
	"testing"

	"strive-chatbot-be/pkg/llm/ollama"
	"strive-chatbot-be/pkg/llm/openai"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLLMProvider(t *testing.T) {
	p, err := NewLLMProvider("ollama", "llama3", "", "")
	require.NoError(t, err)
	assert.IsType(t, &ollama.OllamaProvider{}, p)
	assert.Equal(t, "http://localhost:11434", p.(*ollama.OllamaProvider).BaseURL)

	p, err = NewLLMProvider("groq", "llama-3.3-70b-versatile", "", "key")
	require.NoError(t, err)
	assert.IsType(t, &openai.OpenAIProvider{}, p)

	p, err = NewLLMProvider("huggingface", "meta-llama/Llama-3.1-8B-Instruct", "", "hf_token")
	require.NoError(t, err)
	assert.IsType(t, &openai.OpenAIProvider{}, p)

	_, err = NewLLMProvider("openai", "gpt-4o-mini", "", "")
	assert.Error(t, err)

	_, err = NewLLMProvider("gemini", "x", "", "")
	assert.Error(t, err)
}
