package rodpage

import (
	"testing"

	"github.com/go-rod/rod/lib/input"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyFromName(t *testing.T) {
	tests := []struct {
		name string
		want input.Key
	}{
		{"Enter", input.Enter},
		{"escape", input.Escape},
		{"Tab", input.Tab},
		{"ArrowDown", input.ArrowDown},
		{"Home", input.Home},
		{"PageDown", input.PageDown},
		{"Space", input.Key(' ')},
		{"k", input.Key('k')},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := keyFromName(tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestKeyFromName_Unknown(t *testing.T) {
	for _, name := range []string{"unknown-key", "Control+a", "F13", ""} {
		_, err := keyFromName(name)
		assert.ErrorContains(t, err, "unsupported key", name)
	}
}

func TestResolverEmbedded(t *testing.T) {
	assert.Contains(t, resolverJS, "compareDocumentPosition")
	assert.Contains(t, resolverJS, "has_text")
}
