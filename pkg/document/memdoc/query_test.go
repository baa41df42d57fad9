package memdoc

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dev/bravebird/pagecheck/pkg/models"
)

const fixture = `
<header>
  <a href="/" id="logo" aria-label="Home">logo</a>
  <div id="search-bar" role="search">
    <input type="text" name="q" placeholder="Search">
    <button aria-label="Search">icon</button>
    <button>Search history</button>
  </div>
</header>
<main>
  <h1>Installation</h1>
  <label for="email">Email address</label><input id="email" type="email">
  <label>Remember me <input type="checkbox" checked></label>
  <ul>
    <li class="row">First <b>bold</b></li>
    <li class="row">Second</li>
    <li class="row" style="display: none">Third</li>
  </ul>
  <div id="contentWrapper"><p>Sign in to like videos</p><a href="/login">Sign in</a></div>
  <div id="contentWrapper"><p>Other popup</p></div>
</main>`

func resolveFixture(t *testing.T, path models.Path) []models.ElementState {
	t.Helper()
	d := New()
	d.Register("https://fixture.test/", &StaticPage{Body: fixture})
	ctx := context.Background()
	require.NoError(t, d.Navigate(ctx, "https://fixture.test/"))

	els, err := d.Resolve(ctx, path)
	require.NoError(t, err)
	out := make([]models.ElementState, len(els))
	for i, el := range els {
		out[i], err = el.State(ctx)
		require.NoError(t, err)
	}
	return out
}

func q(kind models.QueryKind, value string) models.Query {
	return models.Query{Kind: kind, Value: value}
}

func TestResolve_QueryKinds(t *testing.T) {
	tests := []struct {
		name     string
		path     models.Path
		wantTags []string
	}{
		{"role with substring name", models.Path{{Query: models.Query{Kind: models.QueryRole, Value: "button", Name: "search"}}}, []string{"button", "button"}},
		{"role with exact name", models.Path{{Query: models.Query{Kind: models.QueryRole, Value: "button", Name: "Search", Exact: true}}}, []string{"button"}},
		{"role excludes hidden", models.Path{{Query: q(models.QueryRole, "listitem")}}, []string{"li", "li"}},
		{"css includes hidden", models.Path{{Query: q(models.QueryCSS, "li.row")}}, []string{"li", "li", "li"}},
		{"heading", models.Path{{Query: models.Query{Kind: models.QueryRole, Value: "heading", Name: "Installation"}}}, []string{"h1"}},
		{"label for", models.Path{{Query: q(models.QueryLabel, "Email address")}}, []string{"input"}},
		{"label wrapping", models.Path{{Query: q(models.QueryLabel, "remember")}}, []string{"input"}},
		{"aria-label", models.Path{{Query: q(models.QueryLabel, "Home")}}, []string{"a"}},
		{"placeholder", models.Path{{Query: q(models.QueryPlaceholder, "search")}}, []string{"input"}},
		{"text picks innermost", models.Path{{Query: q(models.QueryText, "bold")}}, []string{"b"}},
		{"exact text", models.Path{{Query: models.Query{Kind: models.QueryText, Value: "Sign in", Exact: true}}}, []string{"a"}},
		{"has-text filter", models.Path{{Query: models.Query{Kind: models.QueryCSS, Value: "#contentWrapper", HasText: "Sign in to"}}}, []string{"div"}},
		{"chained", models.Path{{Query: q(models.QueryRole, "search")}, {Query: q(models.QueryRole, "textbox")}}, []string{"input"}},
		{"nth from end", models.Path{{Query: q(models.QueryCSS, "li.row"), Nth: intPtr(-1)}}, []string{"li"}},
		{"nth out of range", models.Path{{Query: q(models.QueryCSS, "li.row"), Nth: intPtr(5)}}, nil},
		{"no match", models.Path{{Query: q(models.QueryTestID, "missing")}}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			states := resolveFixture(t, tt.path)
			var tags []string
			for _, st := range states {
				tags = append(tags, st.Tag)
			}
			assert.Equal(t, tt.wantTags, tags)
		})
	}
}

func TestResolve_StateFields(t *testing.T) {
	states := resolveFixture(t, models.Path{{Query: q(models.QueryLabel, "Remember me")}})
	require.Len(t, states, 1)
	assert.True(t, states[0].Checked)
	assert.True(t, states[0].Visible)
	assert.Equal(t, "checkbox", states[0].Attributes["type"])

	states = resolveFixture(t, models.Path{{Query: q(models.QueryCSS, "li.row"), Nth: intPtr(2)}})
	require.Len(t, states, 1)
	assert.False(t, states[0].Visible)
	assert.Equal(t, "row", states[0].Class)
}

func TestResolve_Idempotent(t *testing.T) {
	path := models.Path{{Query: q(models.QueryCSS, "li")}}
	assert.Equal(t, resolveFixture(t, path), resolveFixture(t, path))
}

func intPtr(i int) *int { return &i }
