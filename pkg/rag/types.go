package rag

import (
	"context"
	"time"
)

const (
	UrgencyLow    = "low"
	UrgencyMedium = "medium"
	UrgencyHigh   = "high"
)

// Match is one retrieved conversation or curated example, normalized to a single shape.
type Match struct {
	ID              string   `json:"id"`
	SourceUtterance string   `json:"sourceUtterance"`
	ResponseText    string   `json:"responseText"`
	ProblemLabel    string   `json:"problemLabel,omitempty"`
	SolutionLabel   string   `json:"solutionLabel,omitempty"`
	Outcome         string   `json:"outcome,omitempty"`
	Stage           string   `json:"stage,omitempty"`
	ConversionScore *float64 `json:"conversionScore,omitempty"`
	Similarity      float64  `json:"similarity"`
}

// ExampleRow is a curated example as returned by the example collection.
type ExampleRow struct {
	ID              string
	Utterance       string
	Response        string
	Problem         string
	Solution        string
	Outcome         string
	Stage           string
	ConversionScore *float64
	Similarity      float64
}

// ToMatch maps an example row into the conversation match shape.
func (r ExampleRow) ToMatch() Match {
	return Match{
		ID:              r.ID,
		SourceUtterance: r.Utterance,
		ResponseText:    r.Response,
		ProblemLabel:    r.Problem,
		SolutionLabel:   r.Solution,
		Outcome:         r.Outcome,
		Stage:           r.Stage,
		ConversionScore: r.ConversionScore,
		Similarity:      r.Similarity,
	}
}

type SearchQuery struct {
	Vector    []float32
	DomainTag string
	Threshold float64
	Limit     int
}

// SimilaritySearcher is the narrow query interface to the vector store.
type SimilaritySearcher interface {
	SearchConversations(ctx context.Context, q SearchQuery) ([]Match, error)
	SearchExamples(ctx context.Context, q SearchQuery) ([]ExampleRow, error)
}

type Pattern struct {
	Approach        string  `json:"approach"`
	ConversionScore float64 `json:"conversionScore"`
	Stage           string  `json:"stage,omitempty"`
}

type Confidence struct {
	ProblemDetection float64 `json:"problemDetection"`
	SolutionMatch    float64 `json:"solutionMatch"`
	Overall          float64 `json:"overall"`
}

type Guidance struct {
	Approach    string   `json:"approach"`
	KeyPoints   []string `json:"keyPoints"`
	AvoidTopics []string `json:"avoidTopics"`
	Urgency     string   `json:"urgency"`
}

// Context is the retrieval result for one turn.
type Context struct {
	Matches              []Match    `json:"matches"`
	DetectedProblems     []string   `json:"detectedProblems"`
	RecommendedSolutions []string   `json:"recommendedSolutions"`
	BestPattern          *Pattern   `json:"bestPattern,omitempty"`
	Confidence           Confidence `json:"confidence"`
	Guidance             Guidance   `json:"guidance"`
	Summary              string     `json:"summary,omitempty"`
}

type Config struct {
	SimilarityThreshold float64
	MatchLimit          int
	TopLabels           int
	PatternMinScore     float64 // best pattern must score strictly above this
	HighConfidence      float64
	MediumConfidence    float64
	HighUrgencyTerms    []string
	Timeout             time.Duration
}

func DefaultConfig() Config {
	return Config{
		SimilarityThreshold: 0.75,
		MatchLimit:          5,
		TopLabels:           3,
		PatternMinScore:     0.7,
		HighConfidence:      0.8,
		MediumConfidence:    0.5,
		HighUrgencyTerms:    []string{"churn", "fraud"},
		Timeout:             5 * time.Second,
	}
}
