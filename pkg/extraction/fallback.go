package extraction

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	// Tried in order; the first pattern that matches wins.
	pricePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\$\s*(\d{1,3}(?:,\d{3})+|\d+(?:\.\d+)?)\s*(k)?\b`),
		regexp.MustCompile(`(?i)\b(\d+(?:\.\d+)?)\s*(k)\b`),
		regexp.MustCompile(`(?i)\b(?:budget|under|up to|max(?:imum)?)\b[^\d$]{0,15}\$?\s*(\d{1,3}(?:,\d{3})+|\d+(?:\.\d+)?)\s*(k)?\b`),
	}
	bedroomPattern  = regexp.MustCompile(`(?i)(\d+)\s*(?:bedrooms?|beds?|br)\b`)
	bathroomPattern = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(?:bathrooms?|baths?|ba)\b`)
	emailPattern    = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	phonePattern    = regexp.MustCompile(`\(?\b\d{3}\)?[\s.\-]?\d{3}[\s.\-]?\d{4}\b`)

	featureVocabulary = []struct {
		pattern *regexp.Regexp
		feature string
	}{
		{regexp.MustCompile(`(?i)\bpool\b`), "pool"},
		{regexp.MustCompile(`(?i)\b(?:back)?yard\b`), "backyard"},
		{regexp.MustCompile(`(?i)\bgarage\b`), "garage"},
		{regexp.MustCompile(`(?i)\bfireplace\b`), "fireplace"},
	}

	propertyTypeVocabulary = []struct {
		pattern      *regexp.Regexp
		propertyType string
	}{
		{regexp.MustCompile(`(?i)\b(?:house|home|single[\s-]family)\b`), "single-family"},
		{regexp.MustCompile(`(?i)\bcondo(?:minium)?\b`), "condo"},
		{regexp.MustCompile(`(?i)\btown(?:house|home)\b`), "townhouse"},
	}
)

// ExtractWithPatterns is the deterministic extractor used when the model path fails.
// It has no location extractor; locations need the model.
func ExtractWithPatterns(utterance string) *Result {
	var prefs PropertyPreferences
	var contact ContactInfo
	var fields []string

	if price, ok := matchPrice(utterance); ok {
		prefs.MaxPrice = ptr(price)
		fields = append(fields, "maxPrice")
	}

	if m := bedroomPattern.FindStringSubmatch(utterance); m != nil {
		if beds, err := strconv.Atoi(m[1]); err == nil && beds > 0 {
			prefs.MinBedrooms = ptr(beds)
			fields = append(fields, "minBedrooms")
		}
	}

	if m := bathroomPattern.FindStringSubmatch(utterance); m != nil {
		if baths, err := strconv.ParseFloat(m[1], 64); err == nil && baths > 0 {
			prefs.MinBathrooms = ptr(baths)
			fields = append(fields, "minBathrooms")
		}
	}

	for _, f := range featureVocabulary {
		if f.pattern.MatchString(utterance) {
			prefs.MustHaveFeatures = append(prefs.MustHaveFeatures, f.feature)
		}
	}
	if len(prefs.MustHaveFeatures) > 0 {
		fields = append(fields, "mustHaveFeatures")
	}

	for _, t := range propertyTypeVocabulary {
		if t.pattern.MatchString(utterance) {
			prefs.PropertyType = ptr(t.propertyType)
			fields = append(fields, "propertyType")
			break
		}
	}

	if email := emailPattern.FindString(utterance); email != "" {
		contact.Email = ptr(email)
		fields = append(fields, "email")
	}

	if phone := phonePattern.FindString(utterance); phone != "" {
		contact.Phone = ptr(strings.TrimSpace(phone))
		fields = append(fields, "phone")
	}

	confidence := 0.3
	if len(fields) > 0 {
		confidence = 0.6
	}

	return &Result{
		Preferences:     prefs,
		Contact:         contact,
		ExtractedFields: nonNil(fields),
		Confidence:      confidence,
		Method:          MethodPattern,
	}
}

func matchPrice(utterance string) (float64, bool) {
	for _, p := range pricePatterns {
		m := p.FindStringSubmatch(utterance)
		if m == nil {
			continue
		}
		value, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
		if err != nil || value <= 0 {
			continue
		}
		hasK := strings.EqualFold(m[2], "k")
		if hasK && value < 10000 {
			value *= 1000
		}
		return value, true
	}
	return 0, false
}

func nonNil(fields []string) []string {
	if fields == nil {
		return []string{}
	}
	return fields
}
