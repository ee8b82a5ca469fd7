package parser

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	Name       string         `json:"name"`
	Parameters map[string]any `json:"parameters"`
}

func TestJSONParser_Parse(t *testing.T) {
	tests := []struct {
		name    string
		opts    []Option
		input   string
		want    call
		wantErr bool
	}{
		{
			name:  "Plain",
			input: `{"name": "get_weather", "parameters": {"city": "Paris"}}`,
			want:  call{Name: "get_weather", Parameters: map[string]any{"city": "Paris"}},
		},
		{
			name:  "Surrounding Whitespace",
			input: "\n  {\"name\": \"x\"}  \n",
			want:  call{Name: "x"},
		},
		{
			name:    "Prose",
			input:   "The answer is 42.",
			wantErr: true,
		},
		{
			name:    "Trailing Data",
			input:   `{"name": "x"} and more`,
			wantErr: true,
		},
		{
			name:    "Fenced Without Option",
			input:   "```json\n{\"name\": \"x\"}\n```",
			wantErr: true,
		},
		{
			name:  "Fenced",
			opts:  []Option{WithFences()},
			input: "```json\n{\"name\": \"x\"}\n```",
			want:  call{Name: "x"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewJSONParser[call](tt.opts...).Parse(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrNotJSON))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestJSONParser_WithNumbers(t *testing.T) {
	input := `{"name": "get_shipment_date", "parameters": {"order_id": 12345678901234567890}}`

	got, err := NewJSONParser[call](WithNumbers()).Parse(input)
	require.NoError(t, err)
	assert.Equal(t, json.Number("12345678901234567890"), got.Parameters["order_id"])

	got, err = NewJSONParser[call]().Parse(input)
	require.NoError(t, err)
	assert.IsType(t, float64(0), got.Parameters["order_id"])
}

func TestJSONParser_FormatInstructions(t *testing.T) {
	assert.Equal(t, "Return the output as a valid JSON object.", NewJSONParser[call]().FormatInstructions())
	assert.Equal(t, "Return function calls in JSON format.",
		NewJSONParser[call](WithInstructions("Return function calls in JSON format.")).FormatInstructions())
}
