package memory

import (
	"regexp"
	"strings"
)

var (
	questionPattern = regexp.MustCompile(`[^.!?\n]+\?`)
	listMarker      = regexp.MustCompile(`^\s*(?:[-*•]|\d{1,2}[.)])\s*`)
)

// ExtractQuestions returns the question sentences of an assistant reply, in order.
// Fragments of three characters or fewer ("Hm?") are ignored.
func ExtractQuestions(text string) []string {
	var out []string
	for _, q := range questionPattern.FindAllString(text, -1) {
		q = strings.TrimSpace(listMarker.ReplaceAllString(q, ""))
		if len(q) > 4 {
			out = append(out, q)
		}
	}
	return out
}
