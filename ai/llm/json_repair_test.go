package llm

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepairJSON(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "valid json untouched",
			input: `{"title":"a","tags":["x","y"]}`,
			want:  `{"title":"a","tags":["x","y"]}`,
		},
		{
			name:  "missing opening quote",
			input: `{"title":"a", tags":["x"]}`,
			want:  `{"title":"a", "tags":["x"]}`,
		},
		{
			name:  "missing quote after brace",
			input: `{ title":"a"}`,
			want:  `{ "title":"a"}`,
		},
		{
			name:  "trailing comma in array",
			input: `{"tags":["x","y",]}`,
			want:  `{"tags":["x","y"]}`,
		},
		{
			name:  "trailing comma in object",
			input: "{\"title\":\"a\",\n}",
			want:  "{\"title\":\"a\"\n}",
		},
		{
			name:  "comma inside string kept",
			input: `{"markdown":"a,]b"}`,
			want:  `{"markdown":"a,]b"}`,
		},
		{
			name:  "escaped quote inside string",
			input: `{"markdown":"say \",}\" ok",}`,
			want:  `{"markdown":"say \",}\" ok"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := repairJSON(tt.input)
			assert.Equal(t, tt.want, got)
			assert.True(t, json.Valid([]byte(got)), "repaired output should be valid JSON: %s", got)
		})
	}
}

func TestStripCodeFences(t *testing.T) {
	assert.Equal(t, `{"a":1}`, stripCodeFences("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripCodeFences("```\n{\"a\":1}```"))
	assert.Equal(t, `{"a":1}`, stripCodeFences(`  {"a":1} `))
}

func TestParseAnalysis(t *testing.T) {
	a, err := parseAnalysis("```json\n{\"title\":\" Flowchart \",\"description\":\"A system diagram\",\"tags\":[\"diagram\",\"diagram\"],\"markdown\":\"# Flowchart\"}\n```")
	require.NoError(t, err)
	assert.Equal(t, "Flowchart", a.Title)
	assert.Equal(t, []string{"diagram"}, a.Tags)

	_, err = parseAnalysis(`{"title":"t","description":"d","tags":[]}`)
	require.Error(t, err, "missing markdown")

	_, err = parseAnalysis(`not json at all`)
	require.Error(t, err)
}
