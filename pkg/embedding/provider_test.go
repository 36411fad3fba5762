package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingProvider struct {
	calls int
	err   error
}

func (p *countingProvider) Generate(ctx context.Context, text string, taskType string) (*EmbeddingResponse, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	return &EmbeddingResponse{Embedding: EmbeddingResponseEmbedding{Values: []float32{1, 0}}}, nil
}

func TestOllamaProvider_NormalizesVector(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embeddings", r.URL.Path)

		var req ollamaEmbeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "nomic-embed-text", req.Model)
		assert.Equal(t, "three bedrooms in Austin", req.Prompt)

		w.Write([]byte(`{"embedding":[3,4]}`))
	}))
	defer server.Close()

	p := NewOllamaProvider(server.URL, "")
	res, err := p.Generate(context.Background(), "three bedrooms in Austin", TaskRetrievalQuery)

	require.NoError(t, err)
	require.Len(t, res.Embedding.Values, 2)
	assert.InDelta(t, 0.6, res.Embedding.Values[0], 1e-6)
	assert.InDelta(t, 0.8, res.Embedding.Values[1], 1e-6)
}

func TestOllamaProvider_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := NewOllamaProvider(server.URL, "").Generate(context.Background(), "x", TaskRetrievalQuery)
	assert.Error(t, err)
}

func TestNormalizeVector(t *testing.T) {
	zero := []float32{0, 0, 0}
	assert.Equal(t, zero, normalizeVector(zero))

	v := normalizeVector([]float32{1, 2, 2})
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-6)
}

func TestCachedProvider(t *testing.T) {
	inner := &countingProvider{}
	p := NewCachedProvider(inner, 0)

	_, err := p.Generate(context.Background(), "Looking in  Nashville", TaskRetrievalQuery)
	require.NoError(t, err)
	_, err = p.Generate(context.Background(), "looking in nashville", TaskRetrievalQuery)
	require.NoError(t, err)
	assert.Equal(t, 1, inner.calls)

	_, err = p.Generate(context.Background(), "looking in nashville", TaskRetrievalDocument)
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls)
}

func TestCachedProvider_DoesNotCacheErrors(t *testing.T) {
	inner := &countingProvider{err: errors.New("unreachable")}
	p := NewCachedProvider(inner, 0)

	_, err := p.Generate(context.Background(), "x", TaskRetrievalQuery)
	assert.Error(t, err)
	_, err = p.Generate(context.Background(), "x", TaskRetrievalQuery)
	assert.Error(t, err)
	assert.Equal(t, 2, inner.calls)
}
