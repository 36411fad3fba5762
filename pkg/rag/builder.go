package rag

import (
	"context"

	"strive-chatbot-be/internal/pkg/logger"
	"strive-chatbot-be/pkg/embedding"
	"strive-chatbot-be/pkg/utils"

	"golang.org/x/sync/errgroup"
)

const logModule = "rag"

// Builder turns an utterance into a retrieval context. It holds no mutable state.
type Builder struct {
	embedder embedding.EmbeddingProvider
	searcher SimilaritySearcher
	cfg      Config
	logger   logger.ILogger
}

func NewBuilder(embedder embedding.EmbeddingProvider, searcher SimilaritySearcher, cfg Config, log logger.ILogger) *Builder {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Builder{embedder: embedder, searcher: searcher, cfg: cfg, logger: log}
}

// BuildContext never fails: embedding or search failures degrade to an empty match list.
func (b *Builder) BuildContext(ctx context.Context, utterance, domainTag, summary string) Context {
	matches := b.retrieve(ctx, utterance, domainTag)
	rc := Analyze(matches, b.cfg)
	rc.Summary = summary

	b.logger.Debug(logModule, "Built retrieval context", map[string]interface{}{
		"domain":     domainTag,
		"matches":    len(matches),
		"problems":   rc.DetectedProblems,
		"confidence": rc.Confidence.Overall,
		"approach":   rc.Guidance.Approach,
	})
	return rc
}

func (b *Builder) retrieve(ctx context.Context, utterance, domainTag string) []Match {
	if b.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.cfg.Timeout)
		defer cancel()
	}

	res, err := b.embedder.Generate(ctx, utterance, embedding.TaskRetrievalQuery)
	if err != nil {
		b.logger.Warn(logModule, "Embedding failed, continuing without retrieval", map[string]interface{}{"error": err.Error()})
		return nil
	}

	q := SearchQuery{
		Vector:    res.Embedding.Values,
		DomainTag: domainTag,
		Threshold: b.cfg.SimilarityThreshold,
		Limit:     b.cfg.MatchLimit,
	}

	var conversations []Match
	var examples []ExampleRow

	// Each search swallows its own error so one failure never cancels the other.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rows, err := b.searcher.SearchConversations(gctx, q)
		if err != nil {
			b.logger.Warn(logModule, "Conversation search failed", map[string]interface{}{"error": err.Error()})
			return nil
		}
		conversations = rows
		return nil
	})
	g.Go(func() error {
		rows, err := b.searcher.SearchExamples(gctx, q)
		if err != nil {
			b.logger.Warn(logModule, "Example search failed", map[string]interface{}{"error": err.Error()})
			return nil
		}
		examples = rows
		return nil
	})
	_ = g.Wait()

	matches := make([]Match, 0, len(conversations)+len(examples))
	matches = append(matches, conversations...)
	for _, row := range examples {
		matches = append(matches, row.ToMatch())
	}
	return matches
}

// Analyze derives rankings, best pattern, confidence and guidance from a match list.
func Analyze(matches []Match, cfg Config) Context {
	problems, maxProblem := rankLabels(matches, cfg.TopLabels, func(m Match) string { return m.ProblemLabel })
	solutions, maxSolution := rankLabels(matches, cfg.TopLabels, func(m Match) string { return m.SolutionLabel })

	confidence := computeConfidence(matches, maxProblem, maxSolution)
	pattern := bestPattern(matches, cfg.PatternMinScore)

	if matches == nil {
		matches = []Match{}
	}
	return Context{
		Matches:              matches,
		DetectedProblems:     problems,
		RecommendedSolutions: solutions,
		BestPattern:          pattern,
		Confidence:           confidence,
		Guidance:             synthesizeGuidance(problems, pattern, confidence, cfg),
	}
}

// rankLabels orders labels by descending frequency, ties broken by first occurrence.
// It also returns the highest frequency seen.
func rankLabels(matches []Match, top int, label func(Match) string) ([]string, int) {
	counts := map[string]int{}
	var order []string
	for _, m := range matches {
		l := label(m)
		if l == "" {
			continue
		}
		if _, seen := counts[l]; !seen {
			order = append(order, l)
		}
		counts[l]++
	}

	ranked := make([]string, 0, len(order))
	used := make(map[string]bool, len(order))
	maxFreq := 0
	for len(ranked) < len(order) {
		best := ""
		for _, l := range order {
			if !used[l] && (best == "" || counts[l] > counts[best]) {
				best = l
			}
		}
		used[best] = true
		ranked = append(ranked, best)
		if counts[best] > maxFreq {
			maxFreq = counts[best]
		}
	}

	if top > 0 && len(ranked) > top {
		ranked = ranked[:top]
	}
	return ranked, maxFreq
}

func bestPattern(matches []Match, minScore float64) *Pattern {
	var best *Match
	for i := range matches {
		m := &matches[i]
		if m.ConversionScore == nil || *m.ConversionScore <= minScore {
			continue
		}
		if best == nil || *m.ConversionScore > *best.ConversionScore {
			best = m
		}
	}
	if best == nil {
		return nil
	}
	return &Pattern{
		Approach:        best.ResponseText,
		ConversionScore: utils.Clamp01(*best.ConversionScore),
		Stage:           best.Stage,
	}
}

func computeConfidence(matches []Match, maxProblem, maxSolution int) Confidence {
	if len(matches) == 0 {
		return Confidence{}
	}
	total := float64(len(matches))

	var simSum float64
	for _, m := range matches {
		simSum += utils.Clamp01(m.Similarity)
	}
	meanSimilarity := simSum / total

	problem := utils.Clamp01(float64(maxProblem) / total)
	solution := utils.Clamp01(float64(maxSolution) / total)

	return Confidence{
		ProblemDetection: problem,
		SolutionMatch:    solution,
		Overall:          utils.Clamp01((meanSimilarity + problem + solution) / 3),
	}
}
