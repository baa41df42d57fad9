package snapshot

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dev/bravebird/pagecheck/pkg/models"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		want      []Todo
		malformed bool
	}{
		{"empty list", `[]`, []Todo{}, false},
		{"records", `[{"title":"buy some cheese","completed":false},{"title":"feed the cat","completed":true,"id":"2"}]`,
			[]Todo{{Title: "buy some cheese"}, {ID: json.RawMessage(`"2"`), Title: "feed the cat", Completed: true}}, false},
		{"numeric ids", `[{"id":1700000000000,"title":"buy some cheese","completed":false}]`,
			[]Todo{{ID: json.RawMessage(`1700000000000`), Title: "buy some cheese"}}, false},
		{"empty value", ``, nil, true},
		{"torn write", `[{"title":"buy so`, nil, true},
		{"null", `null`, nil, true},
		{"object", `{"title":"x"}`, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse([]byte(tt.raw))
			if tt.malformed {
				assert.ErrorIs(t, err, models.ErrMalformedSnapshot)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHelpers(t *testing.T) {
	todos := []Todo{
		{Title: "buy some cheese"},
		{Title: "feed the cat", Completed: true},
		{Title: "book a doctors appointment"},
	}

	assert.Equal(t, []string{"buy some cheese", "feed the cat", "book a doctors appointment"}, Titles(todos))
	assert.Equal(t, 1, CompletedCount(todos))
	assert.True(t, ContainsTitle(todos, "feed the cat"))
	assert.False(t, ContainsTitle(todos, "feed the"))
}

func TestEncode_RoundTripsThroughParse(t *testing.T) {
	got, err := Parse(Encode(nil))
	require.NoError(t, err)
	assert.Empty(t, got)
}
