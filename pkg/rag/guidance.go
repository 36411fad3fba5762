package rag

import (
	"fmt"
	"math"
	"strings"
)

type guidanceRule struct {
	name    string
	matches func(c Confidence, p *Pattern, cfg Config) bool
	build   func(p *Pattern) Guidance
}

// guidanceRules are evaluated in order; the first match wins.
var guidanceRules = []guidanceRule{
	{
		name: "present_solution",
		matches: func(c Confidence, p *Pattern, cfg Config) bool {
			return c.Overall > cfg.HighConfidence && p != nil
		},
		build: func(p *Pattern) Guidance {
			return Guidance{
				Approach: "Present solution with proven talking points",
				KeyPoints: []string{
					fmt.Sprintf("Similar conversations with %d%% conversion rate used this approach", int(math.Round(p.ConversionScore*100))),
					"Focus on problem quantification and impact",
				},
				AvoidTopics: []string{},
			}
		},
	},
	{
		// Confidence alone picks the approach when no converting pattern exists.
		name: "present_solution_unproven",
		matches: func(c Confidence, p *Pattern, cfg Config) bool {
			return c.Overall > cfg.HighConfidence
		},
		build: func(*Pattern) Guidance {
			return Guidance{
				Approach:    "Present solution with proven talking points",
				KeyPoints:   []string{},
				AvoidTopics: []string{},
			}
		},
	},
	{
		name: "qualify",
		matches: func(c Confidence, p *Pattern, cfg Config) bool {
			return c.Overall > cfg.MediumConfidence
		},
		build: func(*Pattern) Guidance {
			return Guidance{
				Approach: "Ask qualifying questions to confirm problem",
				KeyPoints: []string{
					"Ask 2-3 discovery questions to clarify the problem",
					"Avoid premature solution presentation",
				},
				AvoidTopics: []string{},
			}
		},
	},
	{
		name:    "discovery",
		matches: func(Confidence, *Pattern, Config) bool { return true },
		build: func(*Pattern) Guidance {
			return Guidance{
				Approach:    "Continue discovery to understand pain points",
				KeyPoints:   []string{"Stay in discovery mode - ask open-ended questions"},
				AvoidTopics: []string{"Specific solution recommendations"},
			}
		},
	},
}

func synthesizeGuidance(problems []string, pattern *Pattern, confidence Confidence, cfg Config) Guidance {
	var g Guidance
	for _, rule := range guidanceRules {
		if rule.matches(confidence, pattern, cfg) {
			g = rule.build(pattern)
			break
		}
	}

	g.Urgency = UrgencyLow
	if isUrgent(problems, cfg.HighUrgencyTerms) {
		g.Urgency = UrgencyHigh
		g.KeyPoints = append(g.KeyPoints, "Emphasize cost of inaction and urgency")
	}
	return g
}

func isUrgent(problems, terms []string) bool {
	for _, p := range problems {
		lowered := strings.ToLower(p)
		for _, t := range terms {
			if t != "" && strings.Contains(lowered, strings.ToLower(t)) {
				return true
			}
		}
	}
	return false
}
