package prompt

import (
	"fmt"
	"math"
	"strings"

	"strive-chatbot-be/pkg/extraction"
	"strive-chatbot-be/pkg/rag"
)

// ContextualBuilder appends the per-turn intelligence block to a domain base prompt.
type ContextualBuilder struct {
	basePrompt      string
	rc              rag.Context
	preferences     extraction.PropertyPreferences
	extractedFields []string
	memoryGuidance  string
}

func NewContextualBuilder(basePrompt string, rc rag.Context, preferences extraction.PropertyPreferences) *ContextualBuilder {
	return &ContextualBuilder{
		basePrompt:  basePrompt,
		rc:          rc,
		preferences: preferences,
	}
}

// WithExtractedFields lists the fields pulled out of the latest message.
func (b *ContextualBuilder) WithExtractedFields(fields []string) *ContextualBuilder {
	b.extractedFields = fields
	return b
}

func (b *ContextualBuilder) WithMemoryGuidance(guidance string) *ContextualBuilder {
	b.memoryGuidance = guidance
	return b
}

// Build returns basePrompt followed by the contextual intelligence block.
func (b *ContextualBuilder) Build() string {
	var prompt strings.Builder
	prompt.WriteString(b.basePrompt)
	prompt.WriteString("\n\n## CONTEXTUAL INTELLIGENCE\n\n")

	b.writeConversationState(&prompt)
	b.writeSearchReadiness(&prompt)
	b.writeRetrievalInsights(&prompt)
	b.writeMemory(&prompt)
	b.writeReminders(&prompt)

	return prompt.String()
}

func (b *ContextualBuilder) writeConversationState(prompt *strings.Builder) {
	prompt.WriteString("### Current Conversation State\n\n")
	prompt.WriteString("Information already collected:\n")
	prompt.WriteString(extraction.FormatPreferencesForPrompt(b.preferences))
	prompt.WriteString("\n\n")

	if len(b.extractedFields) > 0 {
		prompt.WriteString("Just extracted from last message: ")
		prompt.WriteString(strings.Join(b.extractedFields, ", "))
		prompt.WriteString("\n\n")
	}
}

func (b *ContextualBuilder) writeSearchReadiness(prompt *strings.Builder) {
	if extraction.HasMinimumSearchCriteria(b.preferences) {
		prompt.WriteString("READY TO SEARCH: location and budget are known. You can search for properties now.\n\n")
		return
	}
	missing := extraction.MissingCriticalFields(b.preferences)
	prompt.WriteString("Cannot search yet. Missing: ")
	prompt.WriteString(strings.Join(missing, ", "))
	prompt.WriteString("\nAsk for these naturally in your next response.\n\n")
}

func (b *ContextualBuilder) writeRetrievalInsights(prompt *strings.Builder) {
	rc := b.rc

	if len(rc.DetectedProblems) > 0 {
		prompt.WriteString("### Similar Conversations\n")
		prompt.WriteString("Detected problems:\n")
		for _, p := range rc.DetectedProblems {
			prompt.WriteString("- " + p + "\n")
		}
		if len(rc.RecommendedSolutions) > 0 {
			prompt.WriteString("Solutions that worked: ")
			prompt.WriteString(strings.Join(rc.RecommendedSolutions, ", "))
			prompt.WriteString("\n")
		}
		prompt.WriteString("\n")
	}

	if rc.BestPattern != nil {
		prompt.WriteString(fmt.Sprintf("Best matching pattern converted at %d%%.\n\n", int(math.Round(rc.BestPattern.ConversionScore*100))))
	}

	g := rc.Guidance
	prompt.WriteString("### Recommended Approach\n")
	prompt.WriteString(g.Approach + "\n")
	if len(g.KeyPoints) > 0 {
		prompt.WriteString("Key points:\n")
		for _, kp := range g.KeyPoints {
			prompt.WriteString("- " + kp + "\n")
		}
	}
	if len(g.AvoidTopics) > 0 {
		prompt.WriteString("Avoid: " + strings.Join(g.AvoidTopics, ", ") + "\n")
	}
	prompt.WriteString(fmt.Sprintf("Confidence: %.2f\n", rc.Confidence.Overall))
	prompt.WriteString("Urgency: " + g.Urgency + "\n\n")
}

func (b *ContextualBuilder) writeMemory(prompt *strings.Builder) {
	if strings.TrimSpace(b.memoryGuidance) == "" {
		return
	}
	prompt.WriteString(b.memoryGuidance)
	if !strings.HasSuffix(b.memoryGuidance, "\n") {
		prompt.WriteString("\n")
	}
}

func (b *ContextualBuilder) writeReminders(prompt *strings.Builder) {
	prompt.WriteString("REMEMBER: Don't ask for information you already have. Reference it naturally instead.\n")
	prompt.WriteString("REMEMBER: If you can search now, do it. Don't keep asking unnecessary questions.\n")
}
