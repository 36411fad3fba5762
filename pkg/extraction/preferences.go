package extraction

import (
	"fmt"
	"strconv"
	"strings"
)

// Merge copies existing and overwrites only the fields set in incoming.
// Unset incoming fields never clear known values, so Merge(Merge(e, i), i) == Merge(e, i).
func Merge(existing, incoming PropertyPreferences) PropertyPreferences {
	merged := existing
	if incoming.Location != nil {
		merged.Location = incoming.Location
	}
	if incoming.MaxPrice != nil {
		merged.MaxPrice = incoming.MaxPrice
	}
	if incoming.MinBedrooms != nil {
		merged.MinBedrooms = incoming.MinBedrooms
	}
	if incoming.MinBathrooms != nil {
		merged.MinBathrooms = incoming.MinBathrooms
	}
	if len(incoming.MustHaveFeatures) > 0 {
		merged.MustHaveFeatures = append([]string(nil), incoming.MustHaveFeatures...)
	}
	if len(incoming.NiceToHaveFeatures) > 0 {
		merged.NiceToHaveFeatures = append([]string(nil), incoming.NiceToHaveFeatures...)
	}
	if incoming.PropertyType != nil {
		merged.PropertyType = incoming.PropertyType
	}
	if incoming.Timeline != nil {
		merged.Timeline = incoming.Timeline
	}
	if incoming.IsFirstTimeBuyer != nil {
		merged.IsFirstTimeBuyer = incoming.IsFirstTimeBuyer
	}
	if incoming.CurrentSituation != nil {
		merged.CurrentSituation = incoming.CurrentSituation
	}
	return merged
}

// MergeContact follows the same rules as Merge for contact details.
func MergeContact(existing, incoming ContactInfo) ContactInfo {
	merged := existing
	if incoming.FirstName != nil {
		merged.FirstName = incoming.FirstName
	}
	if incoming.LastName != nil {
		merged.LastName = incoming.LastName
	}
	if incoming.FullName != nil {
		merged.FullName = incoming.FullName
	}
	if incoming.Email != nil {
		merged.Email = incoming.Email
	}
	if incoming.Phone != nil {
		merged.Phone = incoming.Phone
	}
	return merged
}

// HasMinimumSearchCriteria is true once both location and budget are known.
func HasMinimumSearchCriteria(p PropertyPreferences) bool {
	return p.Location != nil && p.MaxPrice != nil
}

// MissingCriticalFields lists the gaps blocking a search, in asking order.
func MissingCriticalFields(p PropertyPreferences) []string {
	missing := []string{}
	if p.Location == nil {
		missing = append(missing, "location")
	}
	if p.MaxPrice == nil {
		missing = append(missing, "budget")
	}
	return missing
}

// FormatPreferences renders a one-line summary such as "Nashville • Under $700,000 • 3+ beds".
func FormatPreferences(p PropertyPreferences) string {
	var parts []string
	if p.Location != nil {
		parts = append(parts, *p.Location)
	}
	if p.MaxPrice != nil {
		parts = append(parts, "Under "+FormatPrice(*p.MaxPrice))
	}
	if p.MinBedrooms != nil {
		parts = append(parts, fmt.Sprintf("%d+ beds", *p.MinBedrooms))
	}
	if p.MinBathrooms != nil {
		parts = append(parts, fmt.Sprintf("%s+ baths", formatNumber(*p.MinBathrooms)))
	}
	if len(p.MustHaveFeatures) > 0 {
		parts = append(parts, "Must have: "+strings.Join(p.MustHaveFeatures, ", "))
	}
	if len(parts) == 0 {
		return "No preferences yet"
	}
	return strings.Join(parts, " • ")
}

// FormatPreferencesForPrompt renders known preferences as a bulleted block for model prompts.
func FormatPreferencesForPrompt(p PropertyPreferences) string {
	var lines []string
	if p.Location != nil {
		lines = append(lines, "- Location: "+*p.Location)
	}
	if p.MaxPrice != nil {
		lines = append(lines, "- Budget: "+FormatPrice(*p.MaxPrice))
	}
	if p.MinBedrooms != nil {
		lines = append(lines, fmt.Sprintf("- Bedrooms: %d+", *p.MinBedrooms))
	}
	if p.MinBathrooms != nil {
		lines = append(lines, fmt.Sprintf("- Bathrooms: %s+", formatNumber(*p.MinBathrooms)))
	}
	if p.PropertyType != nil {
		lines = append(lines, "- Type: "+*p.PropertyType)
	}
	if len(p.MustHaveFeatures) > 0 {
		lines = append(lines, "- Must-haves: "+strings.Join(p.MustHaveFeatures, ", "))
	}
	if len(p.NiceToHaveFeatures) > 0 {
		lines = append(lines, "- Nice-to-haves: "+strings.Join(p.NiceToHaveFeatures, ", "))
	}
	if p.Timeline != nil {
		lines = append(lines, "- Timeline: "+*p.Timeline)
	}
	if p.CurrentSituation != nil {
		lines = append(lines, "- Situation: "+*p.CurrentSituation)
	}
	if p.IsFirstTimeBuyer != nil && *p.IsFirstTimeBuyer {
		lines = append(lines, "- First-time buyer")
	}
	if len(lines) == 0 {
		return "(No preferences collected yet)"
	}
	return strings.Join(lines, "\n")
}

// FormatPrice renders whole dollars with thousands separators, e.g. $1,250,000.
func FormatPrice(v float64) string {
	digits := strconv.FormatInt(int64(v), 10)
	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return "$" + b.String()
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Name is a split personal name.
type Name struct {
	FirstName string
	LastName  string
	FullName  string
}

// SplitName splits "Billy Bob Thornton" into first "Billy" and last "Bob Thornton".
func SplitName(full string) Name {
	parts := strings.Fields(full)
	switch len(parts) {
	case 0:
		return Name{}
	case 1:
		return Name{FirstName: parts[0], FullName: parts[0]}
	default:
		return Name{
			FirstName: parts[0],
			LastName:  strings.Join(parts[1:], " "),
			FullName:  strings.Join(parts, " "),
		}
	}
}
