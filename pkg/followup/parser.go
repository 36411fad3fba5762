package followup

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	numberedMarker = regexp.MustCompile(`(?:^|\s)\d{1,2}[.)]\s+`)
	bulletLine     = regexp.MustCompile(`(?m)^\s*[-*•]\s+(.+?)\s*$`)
)

const (
	minLineLength     = 10
	maxQuestionLength = 200
)

// parser is one rung of the parsing ladder. It returns nil when its format is absent.
type parser func(text string) []string

var parsers = []parser{parseNumbered, parseBullets, parseLines}

// ParseSuggestions runs the ladder and returns at most limit cleaned suggestions.
func ParseSuggestions(text string, limit int) []string {
	for _, p := range parsers {
		if out := clean(p(text), limit); len(out) > 0 {
			return out
		}
	}
	return []string{}
}

// parseNumbered handles both "1. a\n2. b" and inline "1. a 2. b".
func parseNumbered(text string) []string {
	locs := numberedMarker.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return nil
	}
	out := make([]string, 0, len(locs))
	for i, loc := range locs {
		end := len(text)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		out = append(out, strings.TrimSpace(text[loc[1]:end]))
	}
	return out
}

func parseBullets(text string) []string {
	matches := bulletLine.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m[1])
	}
	return out
}

func parseLines(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); len(line) > minLineLength {
			out = append(out, line)
		}
	}
	return out
}

func clean(candidates []string, limit int) []string {
	out := make([]string, 0, len(candidates))
	for _, c := range candidates {
		c = strings.TrimSpace(strings.Trim(strings.TrimSpace(c), `"'“”`))
		if n := utf8.RuneCountInString(c); n == 0 || n >= maxQuestionLength {
			continue
		}
		out = append(out, c)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}
