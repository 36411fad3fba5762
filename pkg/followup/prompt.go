package followup

import (
	"fmt"
	"strings"

	"strive-chatbot-be/pkg/extraction"
)

type stageGuidance struct {
	focus    []string
	examples []string
}

var guidanceByStage = map[Stage]stageGuidance{
	StageDiscovery: {
		focus: []string{
			"Discovering their motivation (why they're looking)",
			"Understanding their timeline",
			"Building rapport with warm questions",
			"Making them feel comfortable sharing more",
		},
		examples: []string{
			"What's bringing you to the market right now?",
			"Are you currently renting or selling another property?",
			"How soon are you hoping to move in?",
		},
	},
	StageQualifying: {
		focus: []string{
			"Getting missing critical info (location, budget)",
			"Understanding must-have vs nice-to-have features",
			"Qualifying their seriousness",
			"Setting realistic expectations",
		},
		examples: []string{
			"What neighborhoods are you most interested in?",
			"What's your maximum budget?",
			"Any must-have features I should know about?",
		},
	},
	StageSearchResults: {
		focus: []string{
			"Getting feedback on the properties shown",
			"Understanding which ones they like or dislike",
			"Identifying what they want to see more or less of",
			"Encouraging scheduling a showing",
		},
		examples: []string{
			"Which of these homes catches your eye the most?",
			"Would you like to schedule showings for any of these?",
			"Should I search with different criteria?",
		},
	},
	StagePostSearch: {
		focus: []string{
			"Understanding what they liked or didn't like",
			"Refining search criteria",
			"Moving toward scheduling showings",
			"Building urgency if appropriate",
		},
		examples: []string{
			"Were any of these close to what you're looking for?",
			"Would you like to see properties in a different price range?",
			"Which property would you like to learn more about?",
		},
	},
	StageClosing: {
		focus: []string{
			"Scheduling showings",
			"Getting contact information",
			"Connecting with an agent",
			"Next steps",
		},
		examples: []string{
			"Would you like me to schedule a showing?",
			"What's the best way to reach you - email or phone?",
			"When would be a good time to tour these properties?",
		},
	},
}

func systemPrompt(stage Stage, in Input) string {
	var b strings.Builder
	b.WriteString("You are a real estate AI assistant helping generate natural follow-up questions.\n\n")
	b.WriteString(fmt.Sprintf("Current context: %s\n", stage))
	b.WriteString(fmt.Sprintf("Has searched: %t\n", in.HasSearched))
	b.WriteString(fmt.Sprintf("Properties shown: %d\n\n", in.ResultCount))
	b.WriteString("Current preferences collected:\n")
	b.WriteString(extraction.FormatPreferencesForPrompt(in.Preferences))
	b.WriteString("\n\n")
	b.WriteString("Generate 3-4 natural, conversational follow-up questions that:\n")
	b.WriteString("1. Help move the conversation forward\n")
	b.WriteString("2. Sound like a real estate agent would ask\n")
	b.WriteString("3. Are relevant to the current stage\n")
	b.WriteString("4. Don't repeat information already collected\n")
	b.WriteString("5. Build on the last user message\n\n")
	b.WriteString("Format as a numbered list (1. 2. 3. 4.)\n")

	if g, ok := guidanceByStage[stage]; ok {
		b.WriteString("\nFocus on:\n")
		for _, f := range g.focus {
			b.WriteString("- " + f + "\n")
		}
		b.WriteString("\nExamples:\n")
		for i, e := range g.examples {
			b.WriteString(fmt.Sprintf("%d. %s\n", i+1, e))
		}
	}
	return b.String()
}

func singlePrompt(stage Stage, prefs extraction.PropertyPreferences) string {
	var b strings.Builder
	b.WriteString("You are a real estate AI assistant. Generate ONE natural follow-up question based on the user's last message.\n\n")
	b.WriteString("Current preferences: " + extraction.FormatPreferencesForPrompt(prefs) + "\n")
	b.WriteString(fmt.Sprintf("Context: %s\n\n", stage))
	b.WriteString("The question should:\n")
	b.WriteString("1. Be conversational and friendly\n")
	b.WriteString("2. Help gather more information or move the conversation forward\n")
	b.WriteString("3. Not repeat information already collected\n")
	b.WriteString("4. Be relevant to what they just said\n\n")
	b.WriteString("Return ONLY the question, nothing else.")
	return b.String()
}
