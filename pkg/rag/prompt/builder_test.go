package prompt

import (
	"strings"
	"testing"

	"strive-chatbot-be/pkg/extraction"
	"strive-chatbot-be/pkg/rag"

	"github.com/stretchr/testify/assert"
)

func TestBuild_IncludesRetrievalInsights(t *testing.T) {
	location := "Austin"
	price := 450000.0
	rc := rag.Context{
		DetectedProblems:     []string{"churn"},
		RecommendedSolutions: []string{"retention program"},
		BestPattern:          &rag.Pattern{ConversionScore: 0.875},
		Confidence:           rag.Confidence{Overall: 0.91},
		Guidance: rag.Guidance{
			Approach:    "Present solution with proven talking points",
			KeyPoints:   []string{"Focus on problem quantification and impact"},
			AvoidTopics: []string{"Pricing details"},
			Urgency:     rag.UrgencyHigh,
		},
	}

	out := NewContextualBuilder("You are a helpful agent.", rc, extraction.PropertyPreferences{Location: &location, MaxPrice: &price}).
		WithExtractedFields([]string{"location", "maxPrice"}).
		WithMemoryGuidance("### CONVERSATION MEMORY\n- budget").
		Build()

	assert.True(t, strings.HasPrefix(out, "You are a helpful agent.\n\n## CONTEXTUAL INTELLIGENCE"))
	assert.Contains(t, out, "- Location: Austin")
	assert.Contains(t, out, "- Budget: $450,000")
	assert.Contains(t, out, "Just extracted from last message: location, maxPrice")
	assert.Contains(t, out, "READY TO SEARCH")
	assert.Contains(t, out, "- churn")
	assert.Contains(t, out, "Solutions that worked: retention program")
	assert.Contains(t, out, "converted at 88%")
	assert.Contains(t, out, "Present solution with proven talking points")
	assert.Contains(t, out, "Avoid: Pricing details")
	assert.Contains(t, out, "Confidence: 0.91")
	assert.Contains(t, out, "Urgency: high")
	assert.Contains(t, out, "### CONVERSATION MEMORY\n- budget\n")
}

func TestBuild_MissingCriteria(t *testing.T) {
	rc := rag.Context{Guidance: rag.Guidance{Approach: "Continue discovery to understand pain points", Urgency: rag.UrgencyLow}}

	out := NewContextualBuilder("base", rc, extraction.PropertyPreferences{}).Build()

	assert.Contains(t, out, "(No preferences collected yet)")
	assert.Contains(t, out, "Cannot search yet. Missing: location, budget")
	assert.NotContains(t, out, "Just extracted")
	assert.NotContains(t, out, "Similar Conversations")
	assert.NotContains(t, out, "converted at")
	assert.Contains(t, out, "Confidence: 0.00")
}
