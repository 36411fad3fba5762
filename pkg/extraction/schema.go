package extraction

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"strive-chatbot-be/pkg/llm"

	"github.com/go-playground/validator/v10"
)

const (
	ToolPropertyPreferences = "extract_property_preferences"
	ToolContactInfo         = "extract_contact_info"
)

var validate = validator.New()

// Payload is one decoded and validated tool call. Exactly one variant exists per tool.
type Payload interface {
	Target() string
	Fields() []string
}

type PreferencesPayload struct {
	Preferences PropertyPreferences
}

func (PreferencesPayload) Target() string { return ToolPropertyPreferences }

func (p PreferencesPayload) Fields() []string {
	v := p.Preferences
	var fields []string
	if v.Location != nil {
		fields = append(fields, "location")
	}
	if v.MaxPrice != nil {
		fields = append(fields, "maxPrice")
	}
	if v.MinBedrooms != nil {
		fields = append(fields, "minBedrooms")
	}
	if v.MinBathrooms != nil {
		fields = append(fields, "minBathrooms")
	}
	if len(v.MustHaveFeatures) > 0 {
		fields = append(fields, "mustHaveFeatures")
	}
	if len(v.NiceToHaveFeatures) > 0 {
		fields = append(fields, "niceToHaveFeatures")
	}
	if v.PropertyType != nil {
		fields = append(fields, "propertyType")
	}
	if v.Timeline != nil {
		fields = append(fields, "timeline")
	}
	if v.IsFirstTimeBuyer != nil {
		fields = append(fields, "isFirstTimeBuyer")
	}
	if v.CurrentSituation != nil {
		fields = append(fields, "currentSituation")
	}
	return fields
}

type ContactPayload struct {
	Contact ContactInfo
}

func (ContactPayload) Target() string { return ToolContactInfo }

func (p ContactPayload) Fields() []string {
	v := p.Contact
	var fields []string
	if v.FirstName != nil {
		fields = append(fields, "firstName")
	}
	if v.LastName != nil {
		fields = append(fields, "lastName")
	}
	if v.FullName != nil {
		fields = append(fields, "fullName")
	}
	if v.Email != nil {
		fields = append(fields, "email")
	}
	if v.Phone != nil {
		fields = append(fields, "phone")
	}
	return fields
}

// DecodeToolCall turns raw tool arguments into a typed payload, rejecting unknown
// tools, unknown fields, wrong types and schema violations.
func DecodeToolCall(call llm.ToolCall) (Payload, error) {
	switch call.Name {
	case ToolPropertyPreferences:
		var prefs PropertyPreferences
		if err := decodeStrict(call.Arguments, &prefs); err != nil {
			return nil, fmt.Errorf("decode %s: %w", call.Name, err)
		}
		prefs = cleanPreferences(prefs)
		if err := validate.Struct(prefs); err != nil {
			return nil, fmt.Errorf("validate %s: %w", call.Name, err)
		}
		return PreferencesPayload{Preferences: prefs}, nil
	case ToolContactInfo:
		var contact ContactInfo
		if err := decodeStrict(call.Arguments, &contact); err != nil {
			return nil, fmt.Errorf("decode %s: %w", call.Name, err)
		}
		contact = cleanContact(contact)
		if err := validate.Struct(contact); err != nil {
			return nil, fmt.Errorf("validate %s: %w", call.Name, err)
		}
		return ContactPayload{Contact: contact}, nil
	default:
		return nil, fmt.Errorf("unknown extraction tool %q", call.Name)
	}
}

func decodeStrict(arguments string, target any) error {
	if strings.TrimSpace(arguments) == "" {
		arguments = "{}"
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(arguments)))
	dec.DisallowUnknownFields()
	return dec.Decode(target)
}

// Models often emit "" or [] for fields they could not fill. Those mean "absent".
func cleanPreferences(p PropertyPreferences) PropertyPreferences {
	p.Location = cleanString(p.Location)
	p.PropertyType = cleanString(p.PropertyType)
	p.Timeline = cleanString(p.Timeline)
	p.CurrentSituation = cleanString(p.CurrentSituation)
	p.MustHaveFeatures = cleanList(p.MustHaveFeatures)
	p.NiceToHaveFeatures = cleanList(p.NiceToHaveFeatures)
	return p
}

func cleanContact(c ContactInfo) ContactInfo {
	c.FirstName = cleanString(c.FirstName)
	c.LastName = cleanString(c.LastName)
	c.FullName = cleanString(c.FullName)
	c.Email = cleanString(c.Email)
	c.Phone = cleanString(c.Phone)
	return c
}

func cleanString(s *string) *string {
	if s == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*s)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func cleanList(values []string) []string {
	var out []string
	for _, v := range values {
		if v = strings.ToLower(strings.TrimSpace(v)); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// Tools returns the two function schemas offered to the model.
func Tools() []llm.Tool {
	return []llm.Tool{
		{
			Name:        ToolPropertyPreferences,
			Description: "Extract property search preferences from the user message",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"location":           map[string]any{"type": "string", "description": `City, state, zip code, or neighborhood (e.g. "Nashville, TN", "37209")`},
					"maxPrice":           map[string]any{"type": "number", "description": `Maximum budget in dollars ("500k" is 500000)`},
					"minBedrooms":        map[string]any{"type": "integer", "description": "Minimum number of bedrooms"},
					"minBathrooms":       map[string]any{"type": "number", "description": "Minimum number of bathrooms, may be fractional like 2.5"},
					"mustHaveFeatures":   map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "description": "Required features such as pool, backyard, garage"},
					"niceToHaveFeatures": map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "description": "Optional features"},
					"propertyType":       map[string]any{"type": "string", "enum": []string{"single-family", "condo", "townhouse", "multi-family", "any"}},
					"timeline":           map[string]any{"type": "string", "enum": []string{"ASAP", "WITHIN_1_MONTH", "WITHIN_3_MONTHS", "WITHIN_6_MONTHS", "FLEXIBLE"}},
					"isFirstTimeBuyer":   map[string]any{"type": "boolean", "description": "Whether this is their first home purchase"},
					"currentSituation":   map[string]any{"type": "string", "enum": []string{"renting", "selling", "first-time", "relocating", "unknown"}},
				},
			},
		},
		{
			Name:        ToolContactInfo,
			Description: "Extract contact information from the user message",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"firstName": map[string]any{"type": "string", "description": `First name only ("Billy" from "I'm Billy Bob")`},
					"lastName":  map[string]any{"type": "string", "description": `Last name only ("Bob" from "I'm Billy Bob")`},
					"fullName":  map[string]any{"type": "string", "description": "Full name if given as a single unit"},
					"email":     map[string]any{"type": "string", "description": "Email address"},
					"phone":     map[string]any{"type": "string", "description": "Phone number"},
				},
			},
		},
	}
}

const systemInstructions = `You extract structured data for a real estate assistant.
Read the latest user message and call the matching tools with what it states.

Rules:
1. Location: city, state, zip code or neighborhood ("Nashville, TN", "Austin", "37209").
2. Budget: convert shorthand to whole dollars ("$500k" is 500000, "$1.2M" is 1200000).
3. Bedrooms and bathrooms: "3 bed", "4BR", "2.5 bath", "4BR/3BA".
4. Features: pool, backyard, garage, fireplace and similar. "yard" means "backyard".
5. Property type: "house" means single-family, "apartment" means condo.
6. Timeline: "ASAP", "next month" is WITHIN_1_MONTH, "6 months" is WITHIN_6_MONTHS, "flexible" is FLEXIBLE.
7. Contact: names, email addresses and phone numbers when given.

Only extract what is stated or strongly implied in the current message. Never guess.`
