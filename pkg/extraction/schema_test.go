package extraction

import (
	"testing"

	"strive-chatbot-be/pkg/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeToolCall(t *testing.T) {
	tests := []struct {
		name       string
		call       llm.ToolCall
		wantErr    bool
		wantTarget string
		wantFields []string
	}{
		{
			name:       "preferences",
			call:       llm.ToolCall{Name: ToolPropertyPreferences, Arguments: `{"location":" Austin ","mustHaveFeatures":["Pool",""],"isFirstTimeBuyer":true}`},
			wantTarget: ToolPropertyPreferences,
			wantFields: []string{"location", "mustHaveFeatures", "isFirstTimeBuyer"},
		},
		{
			name:       "contact",
			call:       llm.ToolCall{Name: ToolContactInfo, Arguments: `{"firstName":"Billy","lastName":"Bob","phone":"615-555-1234"}`},
			wantTarget: ToolContactInfo,
			wantFields: []string{"firstName", "lastName", "phone"},
		},
		{
			name:       "empty arguments",
			call:       llm.ToolCall{Name: ToolContactInfo, Arguments: ""},
			wantTarget: ToolContactInfo,
		},
		{
			name:    "unknown field",
			call:    llm.ToolCall{Name: ToolContactInfo, Arguments: `{"nickname":"B"}`},
			wantErr: true,
		},
		{
			name:    "fractional bedrooms",
			call:    llm.ToolCall{Name: ToolPropertyPreferences, Arguments: `{"minBedrooms":2.5}`},
			wantErr: true,
		},
		{
			name:    "bad property type",
			call:    llm.ToolCall{Name: ToolPropertyPreferences, Arguments: `{"propertyType":"castle"}`},
			wantErr: true,
		},
		{
			name:    "zero price",
			call:    llm.ToolCall{Name: ToolPropertyPreferences, Arguments: `{"maxPrice":0}`},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload, err := DecodeToolCall(tt.call)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantTarget, payload.Target())
			assert.Equal(t, tt.wantFields, payload.Fields())
		})
	}
}

func TestDecodeToolCall_CleansValues(t *testing.T) {
	payload, err := DecodeToolCall(llm.ToolCall{Name: ToolPropertyPreferences, Arguments: `{"location":" Austin ","mustHaveFeatures":["Pool",""]}`})
	require.NoError(t, err)

	prefs := payload.(PreferencesPayload).Preferences
	assert.Equal(t, "Austin", *prefs.Location)
	assert.Equal(t, []string{"pool"}, prefs.MustHaveFeatures)
}

func TestTools(t *testing.T) {
	tools := Tools()
	require.Len(t, tools, 2)
	assert.Equal(t, ToolPropertyPreferences, tools[0].Name)
	assert.Equal(t, ToolContactInfo, tools[1].Name)
	assert.Equal(t, "object", tools[0].Parameters["type"])
}
