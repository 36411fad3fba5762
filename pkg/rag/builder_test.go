package rag

import (
	"context"
	"errors"
	"testing"
	"time"

	"strive-chatbot-be/pkg/embedding"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEmbedder struct {
	err error
}

func (f fakeEmbedder) Generate(ctx context.Context, text, taskType string) (*embedding.EmbeddingResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &embedding.EmbeddingResponse{Embedding: embedding.EmbeddingResponseEmbedding{Values: []float32{0.1, 0.2}}}, nil
}

type fakeSearcher struct {
	conversations []Match
	examples      []ExampleRow
	convErr       error
	exampleErr    error
	delay         time.Duration
	lastQuery     SearchQuery
}

func (f *fakeSearcher) SearchConversations(ctx context.Context, q SearchQuery) ([]Match, error) {
	f.lastQuery = q
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.conversations, f.convErr
}

func (f *fakeSearcher) SearchExamples(ctx context.Context, q SearchQuery) ([]ExampleRow, error) {
	return f.examples, f.exampleErr
}

func score(v float64) *float64 { return &v }

func TestBuildContext_NoMatchesFallsBackToDiscovery(t *testing.T) {
	b := NewBuilder(fakeEmbedder{}, &fakeSearcher{}, DefaultConfig(), nil)

	rc := b.BuildContext(context.Background(), "hello", "real-estate", "")

	assert.Empty(t, rc.Matches)
	assert.Empty(t, rc.DetectedProblems)
	assert.Nil(t, rc.BestPattern)
	assert.Equal(t, Confidence{}, rc.Confidence)
	assert.Equal(t, "Continue discovery to understand pain points", rc.Guidance.Approach)
	assert.Contains(t, rc.Guidance.AvoidTopics, "Specific solution recommendations")
	assert.Equal(t, UrgencyLow, rc.Guidance.Urgency)
}

func TestBuildContext_FailuresDegradeToEmpty(t *testing.T) {
	tests := []struct {
		name     string
		embedder fakeEmbedder
		searcher *fakeSearcher
	}{
		{"embedding failure", fakeEmbedder{err: errors.New("connection refused")}, &fakeSearcher{conversations: []Match{{ID: "1", Similarity: 0.9}}}},
		{"both searches fail", fakeEmbedder{}, &fakeSearcher{convErr: errors.New("db down"), exampleErr: errors.New("db down")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rc := NewBuilder(tt.embedder, tt.searcher, DefaultConfig(), nil).BuildContext(context.Background(), "hi", "saas", "")
			assert.Empty(t, rc.Matches)
			assert.Equal(t, "Continue discovery to understand pain points", rc.Guidance.Approach)
		})
	}
}

func TestBuildContext_OneSearchFailingKeepsTheOther(t *testing.T) {
	searcher := &fakeSearcher{
		convErr:  errors.New("timeout"),
		examples: []ExampleRow{{ID: "ex-1", Utterance: "we lose customers", Problem: "churn", Similarity: 0.8}},
	}
	b := NewBuilder(fakeEmbedder{}, searcher, DefaultConfig(), nil)

	rc := b.BuildContext(context.Background(), "customers keep leaving", "saas", "summary")

	require.Len(t, rc.Matches, 1)
	assert.Equal(t, "we lose customers", rc.Matches[0].SourceUtterance)
	assert.Equal(t, []string{"churn"}, rc.DetectedProblems)
	assert.Equal(t, "summary", rc.Summary)
	assert.Equal(t, "saas", searcher.lastQuery.DomainTag)
	assert.Equal(t, 0.75, searcher.lastQuery.Threshold)
	assert.Equal(t, 5, searcher.lastQuery.Limit)
}

func TestBuildContext_SearchTimeout(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Timeout = 20 * time.Millisecond
	searcher := &fakeSearcher{delay: time.Second, conversations: []Match{{ID: "slow"}}}

	start := time.Now()
	rc := NewBuilder(fakeEmbedder{}, searcher, cfg, nil).BuildContext(context.Background(), "hi", "saas", "")

	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.Empty(t, rc.Matches)
}

func TestAnalyze_HighConfidenceWithPattern(t *testing.T) {
	matches := []Match{
		{ID: "1", ProblemLabel: "churn", SolutionLabel: "retention", ResponseText: "Let's quantify churn", ConversionScore: score(0.92), Similarity: 0.95},
		{ID: "2", ProblemLabel: "churn", SolutionLabel: "retention", ConversionScore: score(0.8), Similarity: 0.9},
		{ID: "3", ProblemLabel: "churn", SolutionLabel: "retention", ConversionScore: score(0.6), Similarity: 0.85},
	}

	rc := Analyze(matches, DefaultConfig())

	assert.Equal(t, []string{"churn"}, rc.DetectedProblems)
	assert.Equal(t, []string{"retention"}, rc.RecommendedSolutions)
	require.NotNil(t, rc.BestPattern)
	assert.Equal(t, 0.92, rc.BestPattern.ConversionScore)
	assert.Equal(t, "Let's quantify churn", rc.BestPattern.Approach)
	assert.Equal(t, 1.0, rc.Confidence.ProblemDetection)
	assert.InDelta(t, (0.9+1+1)/3, rc.Confidence.Overall, 1e-9)

	assert.Equal(t, "Present solution with proven talking points", rc.Guidance.Approach)
	assert.Equal(t, "Similar conversations with 92% conversion rate used this approach", rc.Guidance.KeyPoints[0])
	assert.Equal(t, UrgencyHigh, rc.Guidance.Urgency)
	assert.Contains(t, rc.Guidance.KeyPoints, "Emphasize cost of inaction and urgency")
}

func TestAnalyze_MediumConfidenceQualifies(t *testing.T) {
	matches := []Match{
		{ID: "1", ProblemLabel: "onboarding", SolutionLabel: "training", Similarity: 0.8},
		{ID: "2", ProblemLabel: "pricing", SolutionLabel: "training", Similarity: 0.8},
	}

	rc := Analyze(matches, DefaultConfig())

	// mean(0.8, 0.5, 1.0)
	assert.InDelta(t, 0.7667, rc.Confidence.Overall, 1e-3)
	assert.Equal(t, "Ask qualifying questions to confirm problem", rc.Guidance.Approach)
	assert.Equal(t, []string{"Ask 2-3 discovery questions to clarify the problem", "Avoid premature solution presentation"}, rc.Guidance.KeyPoints)
	assert.Equal(t, UrgencyLow, rc.Guidance.Urgency)
}

func TestAnalyze_HighConfidenceWithoutPatternPresentsSolution(t *testing.T) {
	matches := []Match{
		{ID: "1", ProblemLabel: "fraud", SolutionLabel: "monitoring", ConversionScore: score(0.7), Similarity: 0.99},
	}

	rc := Analyze(matches, DefaultConfig())

	assert.Nil(t, rc.BestPattern, "a score of exactly 0.7 does not qualify")
	assert.Equal(t, "Present solution with proven talking points", rc.Guidance.Approach)
	assert.Equal(t, []string{"Emphasize cost of inaction and urgency"}, rc.Guidance.KeyPoints)
	assert.Empty(t, rc.Guidance.AvoidTopics)
	assert.Equal(t, UrgencyHigh, rc.Guidance.Urgency)
}

func TestAnalyze_HighConfidenceLowScoresHasNoKeyPoints(t *testing.T) {
	matches := []Match{
		{ID: "1", ProblemLabel: "onboarding", SolutionLabel: "training", ConversionScore: score(0.5), Similarity: 0.95},
		{ID: "2", ProblemLabel: "onboarding", SolutionLabel: "training", ConversionScore: score(0.5), Similarity: 0.95},
	}

	rc := Analyze(matches, DefaultConfig())

	assert.Greater(t, rc.Confidence.Overall, 0.8)
	assert.Nil(t, rc.BestPattern)
	assert.Equal(t, "Present solution with proven talking points", rc.Guidance.Approach)
	assert.Empty(t, rc.Guidance.KeyPoints)
	assert.Equal(t, UrgencyLow, rc.Guidance.Urgency)
}

func TestRankLabels_StableTieBreak(t *testing.T) {
	matches := []Match{
		{ProblemLabel: "b"},
		{ProblemLabel: "a"},
		{ProblemLabel: "c"},
		{ProblemLabel: "a"},
		{ProblemLabel: "d"},
		{ProblemLabel: "b"},
		{},
	}

	ranked, maxFreq := rankLabels(matches, 3, func(m Match) string { return m.ProblemLabel })

	assert.Equal(t, []string{"b", "a", "c"}, ranked)
	assert.Equal(t, 2, maxFreq)
}

func TestAnalyze_ConfidenceIsBounded(t *testing.T) {
	matches := []Match{{ProblemLabel: "x", SolutionLabel: "y", Similarity: 1.7}}
	rc := Analyze(matches, DefaultConfig())

	for _, v := range []float64{rc.Confidence.Overall, rc.Confidence.ProblemDetection, rc.Confidence.SolutionMatch} {
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 1.0)
	}
}
