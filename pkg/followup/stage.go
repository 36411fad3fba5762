package followup

import (
	"strings"

	"strive-chatbot-be/pkg/conversation"
	"strive-chatbot-be/pkg/extraction"
)

type Stage string

const (
	StageDiscovery     Stage = "discovery"
	StageQualifying    Stage = "qualifying"
	StageSearchResults Stage = "search_results"
	StagePostSearch    Stage = "post_search"
	StageClosing       Stage = "closing"
)

// Input is everything stage classification and generation look at.
type Input struct {
	History     []conversation.Turn            `json:"history" validate:"dive"`
	Preferences extraction.PropertyPreferences `json:"preferences"`
	HasSearched bool                           `json:"hasSearched"`
	ResultCount int                            `json:"resultCount" validate:"gte=0"`
}

// StageRule maps a predicate to a stage.
type StageRule struct {
	Name  string
	Stage Stage
	When  func(in Input, cfg Config) bool
}

// StageRules are evaluated top-down; the first rule that holds decides the stage.
var StageRules = []StageRule{
	{
		Name:  "short_history",
		Stage: StageDiscovery,
		When: func(in Input, cfg Config) bool {
			return len(in.History) <= cfg.DiscoveryTurns
		},
	},
	{
		Name:  "missing_search_criteria",
		Stage: StageQualifying,
		When: func(in Input, _ Config) bool {
			return !extraction.HasMinimumSearchCriteria(in.Preferences)
		},
	},
	{
		Name:  "results_just_shown",
		Stage: StageSearchResults,
		When: func(in Input, cfg Config) bool {
			if !in.HasSearched || in.ResultCount <= 0 || len(in.History) == 0 {
				return false
			}
			last := in.History[len(in.History)-1]
			return last.Role == conversation.RoleAssistant && containsKeyword(last.Content, cfg.MatchKeywords)
		},
	},
	{
		Name:  "searched",
		Stage: StagePostSearch,
		When: func(in Input, _ Config) bool {
			return in.HasSearched
		},
	},
	{
		Name:  "ready_to_close",
		Stage: StageClosing,
		When: func(in Input, _ Config) bool {
			p := in.Preferences
			return p.Location != nil && p.MaxPrice != nil && p.MinBedrooms != nil
		},
	},
}

// ClassifyStage returns the stage of the first matching rule, or qualifying.
func ClassifyStage(in Input, cfg Config) Stage {
	for _, rule := range StageRules {
		if rule.When(in, cfg) {
			return rule.Stage
		}
	}
	return StageQualifying
}

func containsKeyword(content string, keywords []string) bool {
	lowered := strings.ToLower(content)
	for _, k := range keywords {
		if k != "" && strings.Contains(lowered, strings.ToLower(k)) {
			return true
		}
	}
	return false
}
