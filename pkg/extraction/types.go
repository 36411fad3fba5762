package extraction

import "time"

// PropertyPreferences are the situational facts a buyer reveals during a conversation.
// A nil pointer or empty slice means "not known".
type PropertyPreferences struct {
	Location           *string  `json:"location,omitempty" validate:"omitempty,min=1,max=200"`
	MaxPrice           *float64 `json:"maxPrice,omitempty" validate:"omitempty,gt=0"`
	MinBedrooms        *int     `json:"minBedrooms,omitempty" validate:"omitempty,gt=0"`
	MinBathrooms       *float64 `json:"minBathrooms,omitempty" validate:"omitempty,gt=0"`
	MustHaveFeatures   []string `json:"mustHaveFeatures,omitempty" validate:"omitempty,dive,min=1"`
	NiceToHaveFeatures []string `json:"niceToHaveFeatures,omitempty" validate:"omitempty,dive,min=1"`
	PropertyType       *string  `json:"propertyType,omitempty" validate:"omitempty,oneof=single-family condo townhouse multi-family any"`
	Timeline           *string  `json:"timeline,omitempty" validate:"omitempty,oneof=ASAP WITHIN_1_MONTH WITHIN_3_MONTHS WITHIN_6_MONTHS FLEXIBLE"`
	IsFirstTimeBuyer   *bool    `json:"isFirstTimeBuyer,omitempty"`
	CurrentSituation   *string  `json:"currentSituation,omitempty" validate:"omitempty,oneof=renting selling first-time relocating unknown"`
}

// ContactInfo identifies the person on the other side of the conversation.
type ContactInfo struct {
	FirstName *string `json:"firstName,omitempty" validate:"omitempty,min=1,max=100"`
	LastName  *string `json:"lastName,omitempty" validate:"omitempty,min=1,max=100"`
	FullName  *string `json:"fullName,omitempty" validate:"omitempty,min=1,max=200"`
	Email     *string `json:"email,omitempty" validate:"omitempty,email"`
	Phone     *string `json:"phone,omitempty" validate:"omitempty,min=7,max=32"`
}

const (
	MethodToolCall = "tool_call"
	MethodPattern  = "pattern"
)

// Result is the outcome of one extraction call. It is never mutated after Extract returns.
type Result struct {
	Preferences     PropertyPreferences `json:"propertyPreferences"`
	Contact         ContactInfo         `json:"contactInfo"`
	ExtractedFields []string            `json:"extractedFields"`
	Confidence      float64             `json:"confidence"`
	Method          string              `json:"method"`
}

// Config tunes the model-backed path.
type Config struct {
	Timeout       time.Duration
	Temperature   float64
	HistoryWindow int
}

func DefaultConfig() Config {
	return Config{
		Timeout:       10 * time.Second,
		Temperature:   0.1,
		HistoryWindow: 5,
	}
}

func ptr[T any](v T) *T {
	return &v
}
