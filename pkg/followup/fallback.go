package followup

import "strive-chatbot-be/pkg/extraction"

var staticSuggestions = map[Stage][]string{
	StageDiscovery: {
		"What's bringing you to the market right now?",
		"Are you currently renting or looking to sell another property?",
		"How soon are you hoping to move in?",
		"Are you familiar with the areas you're interested in?",
	},
	StageSearchResults: {
		"Which of these homes catches your eye?",
		"Would you like to schedule showings for any of these?",
		"Should I search with different criteria?",
		"What do you think about the pricing on these?",
	},
	StagePostSearch: {
		"Were any of those close to what you're looking for?",
		"Would you like to see more properties in a different price range?",
		"Should I look for homes with different features?",
		"Which property would you like to learn more about?",
	},
	StageClosing: {
		"Would you like to schedule a showing?",
		"What's the best way to reach you?",
		"When would be a good time to tour these properties?",
		"Would you like to connect with a financing specialist?",
	},
}

// qualifyingSuggestions skips questions whose answer is already known.
func qualifyingSuggestions(p extraction.PropertyPreferences) []string {
	var out []string
	if p.Location == nil {
		out = append(out, "What area are you looking in?")
	}
	if p.MaxPrice == nil {
		out = append(out, "What's your maximum budget?")
	}
	if p.MinBedrooms == nil {
		out = append(out, "How many bedrooms do you need?")
	}
	return append(out, "Any must-have features like a pool or garage?")
}

// Fallback returns the static suggestion list for a stage.
func Fallback(stage Stage, p extraction.PropertyPreferences, limit int) []string {
	list, ok := staticSuggestions[stage]
	if !ok {
		list = qualifyingSuggestions(p)
	}
	out := append([]string{}, list...)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
