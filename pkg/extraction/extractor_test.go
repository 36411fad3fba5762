package extraction

import (
	"context"
	"errors"
	"testing"
	"time"

	"strive-chatbot-be/pkg/conversation"
	"strive-chatbot-be/pkg/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeToolCaller struct {
	calls    []llm.ToolCall
	err      error
	block    bool
	messages []llm.Message
}

func (f *fakeToolCaller) ChatWithTools(ctx context.Context, history []llm.Message, tools []llm.Tool, options ...llm.Option) ([]llm.ToolCall, error) {
	f.messages = history
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return f.calls, f.err
}

func TestExtractWithPatterns_NashvilleScenario(t *testing.T) {
	res := ExtractWithPatterns("Nashville, $700k, 3 bed 2 bath with a pool")

	assert.Nil(t, res.Preferences.Location)
	require.NotNil(t, res.Preferences.MaxPrice)
	assert.Equal(t, 700000.0, *res.Preferences.MaxPrice)
	require.NotNil(t, res.Preferences.MinBedrooms)
	assert.Equal(t, 3, *res.Preferences.MinBedrooms)
	require.NotNil(t, res.Preferences.MinBathrooms)
	assert.Equal(t, 2.0, *res.Preferences.MinBathrooms)
	assert.Equal(t, []string{"pool"}, res.Preferences.MustHaveFeatures)
	assert.Nil(t, res.Preferences.PropertyType)
	assert.Equal(t, []string{"maxPrice", "minBedrooms", "minBathrooms", "mustHaveFeatures"}, res.ExtractedFields)
	assert.Equal(t, 0.6, res.Confidence)
	assert.Equal(t, MethodPattern, res.Method)
}

func TestExtractWithPatterns(t *testing.T) {
	tests := []struct {
		name      string
		utterance string
		check     func(t *testing.T, r *Result)
	}{
		{
			name:      "nothing recognizable",
			utterance: "hi there",
			check: func(t *testing.T, r *Result) {
				assert.Empty(t, r.ExtractedFields)
				assert.Equal(t, 0.3, r.Confidence)
			},
		},
		{
			name:      "comma separated dollars",
			utterance: "my budget is $850,000",
			check: func(t *testing.T, r *Result) {
				require.NotNil(t, r.Preferences.MaxPrice)
				assert.Equal(t, 850000.0, *r.Preferences.MaxPrice)
			},
		},
		{
			name:      "k suffix without dollar sign",
			utterance: "around 450k would be ideal",
			check: func(t *testing.T, r *Result) {
				require.NotNil(t, r.Preferences.MaxPrice)
				assert.Equal(t, 450000.0, *r.Preferences.MaxPrice)
			},
		},
		{
			name:      "budget keyword",
			utterance: "budget of 600000",
			check: func(t *testing.T, r *Result) {
				require.NotNil(t, r.Preferences.MaxPrice)
				assert.Equal(t, 600000.0, *r.Preferences.MaxPrice)
			},
		},
		{
			name:      "bare number is not a price",
			utterance: "we have 2 kids",
			check: func(t *testing.T, r *Result) {
				assert.Nil(t, r.Preferences.MaxPrice)
			},
		},
		{
			name:      "yard normalizes to backyard",
			utterance: "a house with a yard and a garage",
			check: func(t *testing.T, r *Result) {
				assert.Equal(t, []string{"backyard", "garage"}, r.Preferences.MustHaveFeatures)
				require.NotNil(t, r.Preferences.PropertyType)
				assert.Equal(t, "single-family", *r.Preferences.PropertyType)
			},
		},
		{
			name:      "townhouse is not a house",
			utterance: "looking for a townhouse, 2.5 baths",
			check: func(t *testing.T, r *Result) {
				require.NotNil(t, r.Preferences.PropertyType)
				assert.Equal(t, "townhouse", *r.Preferences.PropertyType)
				require.NotNil(t, r.Preferences.MinBathrooms)
				assert.Equal(t, 2.5, *r.Preferences.MinBathrooms)
			},
		},
		{
			name:      "contact details",
			utterance: "reach me at jo.smith@example.com or (615) 555-1234",
			check: func(t *testing.T, r *Result) {
				require.NotNil(t, r.Contact.Email)
				assert.Equal(t, "jo.smith@example.com", *r.Contact.Email)
				require.NotNil(t, r.Contact.Phone)
				assert.Equal(t, "(615) 555-1234", *r.Contact.Phone)
				assert.Contains(t, r.ExtractedFields, "email")
				assert.Contains(t, r.ExtractedFields, "phone")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ExtractWithPatterns(tt.utterance)
			assert.GreaterOrEqual(t, res.Confidence, 0.0)
			assert.LessOrEqual(t, res.Confidence, 1.0)
			tt.check(t, res)
		})
	}
}

func TestExtractor_ToolPath(t *testing.T) {
	caller := &fakeToolCaller{calls: []llm.ToolCall{
		{Name: ToolPropertyPreferences, Arguments: `{"location":"Austin, TX","maxPrice":500000,"minBedrooms":3,"propertyType":""}`},
		{Name: ToolContactInfo, Arguments: `{"email":"jo@example.com"}`},
	}}
	ex := NewExtractor(caller, DefaultConfig(), nil)

	history := []conversation.Turn{{Role: conversation.RoleAssistant, Content: "Where are you looking?"}}
	res := ex.Extract(context.Background(), "Austin TX under 500k, 3 beds, jo@example.com", history)

	assert.Equal(t, MethodToolCall, res.Method)
	assert.Equal(t, []string{"location", "maxPrice", "minBedrooms", "email"}, res.ExtractedFields)
	assert.Equal(t, 0.9, res.Confidence)
	assert.Nil(t, res.Preferences.PropertyType)
	require.NotNil(t, res.Contact.Email)

	require.Len(t, caller.messages, 3)
	assert.Equal(t, llm.RoleSystem, caller.messages[0].Role)
	assert.Equal(t, "Where are you looking?", caller.messages[1].Content)
}

func TestExtractor_ToolPathConfidence(t *testing.T) {
	tests := []struct {
		name  string
		calls []llm.ToolCall
		want  float64
	}{
		{"no calls", nil, 0.8},
		{"empty arguments", []llm.ToolCall{{Name: ToolContactInfo, Arguments: `{}`}}, 0.8},
		{"one field", []llm.ToolCall{{Name: ToolPropertyPreferences, Arguments: `{"location":"Denver"}`}}, 0.7},
		{"two fields", []llm.ToolCall{{Name: ToolPropertyPreferences, Arguments: `{"location":"Denver","timeline":"ASAP"}`}}, 0.8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ex := NewExtractor(&fakeToolCaller{calls: tt.calls}, DefaultConfig(), nil)
			res := ex.Extract(context.Background(), "x", nil)
			assert.Equal(t, MethodToolCall, res.Method)
			assert.InDelta(t, tt.want, res.Confidence, 1e-9)
		})
	}
}

func TestExtractor_PartialFailureOmitsTarget(t *testing.T) {
	caller := &fakeToolCaller{calls: []llm.ToolCall{
		{Name: ToolPropertyPreferences, Arguments: `{"location":"Denver"}`},
		{Name: ToolContactInfo, Arguments: `{"email":"not-an-email"}`},
	}}
	res := NewExtractor(caller, DefaultConfig(), nil).Extract(context.Background(), "Denver", nil)

	assert.Equal(t, MethodToolCall, res.Method)
	assert.Equal(t, []string{"location"}, res.ExtractedFields)
	assert.Nil(t, res.Contact.Email)
}

func TestExtractor_FallsBack(t *testing.T) {
	tests := []struct {
		name   string
		caller *fakeToolCaller
	}{
		{"transport error", &fakeToolCaller{err: errors.New("connection refused")}},
		{"invalid enum", &fakeToolCaller{calls: []llm.ToolCall{{Name: ToolPropertyPreferences, Arguments: `{"timeline":"SOMEDAY"}`}}}},
		{"wrong type", &fakeToolCaller{calls: []llm.ToolCall{{Name: ToolPropertyPreferences, Arguments: `{"maxPrice":"lots"}`}}}},
		{"unknown tool", &fakeToolCaller{calls: []llm.ToolCall{{Name: "book_showing", Arguments: `{}`}}}},
		{"malformed json", &fakeToolCaller{calls: []llm.ToolCall{{Name: ToolContactInfo, Arguments: `{"email":`}}}},
		{"negative bedrooms", &fakeToolCaller{calls: []llm.ToolCall{{Name: ToolPropertyPreferences, Arguments: `{"minBedrooms":-2}`}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := NewExtractor(tt.caller, DefaultConfig(), nil).Extract(context.Background(), "$400k 2 bed condo", nil)
			assert.Equal(t, MethodPattern, res.Method)
			assert.Equal(t, 0.6, res.Confidence)
			require.NotNil(t, res.Preferences.MaxPrice)
			assert.Equal(t, 400000.0, *res.Preferences.MaxPrice)
		})
	}
}

func TestExtractor_TimeoutFallsBack(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Timeout = 20 * time.Millisecond

	res := NewExtractor(&fakeToolCaller{block: true}, cfg, nil).Extract(context.Background(), "3 bedrooms", nil)

	assert.Equal(t, MethodPattern, res.Method)
	require.NotNil(t, res.Preferences.MinBedrooms)
	assert.Equal(t, 3, *res.Preferences.MinBedrooms)
}

func TestExtractor_NoCallerUsesPatterns(t *testing.T) {
	res := NewExtractor(nil, DefaultConfig(), nil).Extract(context.Background(), "hello", nil)
	assert.Equal(t, MethodPattern, res.Method)
	assert.Equal(t, 0.3, res.Confidence)
}
