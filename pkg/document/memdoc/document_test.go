package memdoc

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dev/bravebird/pagecheck/pkg/models"
	"dev/bravebird/pagecheck/pkg/snapshot"
)

const todoURL = "https://todo.test/todomvc"

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func step(kind models.QueryKind, value string) models.Step {
	return models.Step{Query: models.Query{Kind: kind, Value: value}}
}

func nth(s models.Step, i int) models.Step {
	s.Nth = &i
	return s
}

func newTodoDoc(t *testing.T, opts ...TodoOption) (*Document, *fakeClock) {
	t.Helper()
	clk := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	d := New(WithClock(clk.now))
	d.Register(todoURL, NewTodoApp(opts...))
	require.NoError(t, d.Navigate(context.Background(), todoURL))
	return d, clk
}

func perform(t *testing.T, d *Document, path models.Path, a models.Action) {
	t.Helper()
	ctx := context.Background()
	els, err := d.Resolve(ctx, path)
	require.NoError(t, err)
	require.Len(t, els, 1, "path %s", path)
	require.NoError(t, d.Perform(ctx, els[0], a))
}

func addTodo(t *testing.T, d *Document, title string) {
	t.Helper()
	input := models.Path{step(models.QueryPlaceholder, "What needs to be done?")}
	perform(t, d, input, models.Action{Type: models.ActionFill, Value: title})
	perform(t, d, input, models.Action{Type: models.ActionPress, Value: "Enter"})
}

func titles(t *testing.T, d *Document) []string {
	t.Helper()
	els, err := d.Resolve(context.Background(), models.Path{step(models.QueryTestID, "todo-title")})
	require.NoError(t, err)
	out := make([]string, 0, len(els))
	for _, el := range els {
		st, err := el.State(context.Background())
		require.NoError(t, err)
		out = append(out, st.Text)
	}
	return out
}

func TestTodoApp_AddAndRender(t *testing.T) {
	d, _ := newTodoDoc(t)

	addTodo(t, d, "buy some cheese")
	addTodo(t, d, "  feed the cat  ")

	assert.Equal(t, []string{"buy some cheese", "feed the cat"}, titles(t, d))

	els, err := d.Resolve(context.Background(), models.Path{step(models.QueryTestID, "todo-count")})
	require.NoError(t, err)
	require.Len(t, els, 1)
	st, _ := els[0].State(context.Background())
	assert.Equal(t, "2 items left", st.Text)
}

func TestTodoApp_RenderAndPersistLag(t *testing.T) {
	d, clk := newTodoDoc(t, WithRenderLag(50*time.Millisecond), WithPersistLag(200*time.Millisecond))
	ctx := context.Background()

	addTodo(t, d, "buy some cheese")
	assert.Empty(t, titles(t, d), "render should lag")
	_, ok, _ := d.ReadPersisted(ctx, snapshot.DefaultKey)
	assert.False(t, ok, "nothing saved yet")

	clk.advance(50 * time.Millisecond)
	assert.Equal(t, []string{"buy some cheese"}, titles(t, d))
	_, ok, _ = d.ReadPersisted(ctx, snapshot.DefaultKey)
	assert.False(t, ok, "persistence lags independently")

	clk.advance(150 * time.Millisecond)
	todos, err := snapshot.Read(ctx, d, snapshot.DefaultKey)
	require.NoError(t, err)
	assert.Equal(t, []string{"buy some cheese"}, snapshot.Titles(todos))
}

func TestTodoApp_TornReads(t *testing.T) {
	d, _ := newTodoDoc(t, WithTornReads(2))
	ctx := context.Background()
	addTodo(t, d, "buy some cheese")

	for i := 0; i < 2; i++ {
		_, err := snapshot.Read(ctx, d, snapshot.DefaultKey)
		assert.ErrorIs(t, err, models.ErrMalformedSnapshot)
	}
	todos, err := snapshot.Read(ctx, d, snapshot.DefaultKey)
	require.NoError(t, err)
	assert.Len(t, todos, 1)
}

func TestTodoApp_ReloadLosesUnsavedChanges(t *testing.T) {
	d, clk := newTodoDoc(t, WithPersistLag(100*time.Millisecond))
	ctx := context.Background()

	addTodo(t, d, "saved")
	clk.advance(100 * time.Millisecond)
	addTodo(t, d, "unsaved")

	require.NoError(t, d.Reload(ctx))
	assert.Equal(t, []string{"saved"}, titles(t, d))
}

func TestTodoApp_EditSemantics(t *testing.T) {
	d, _ := newTodoDoc(t)
	addTodo(t, d, "buy some cheese")
	addTodo(t, d, "feed the cat")

	item := func(i int) models.Path { return models.Path{nth(step(models.QueryTestID, "todo-item"), i)} }
	edit := func(i int) models.Path {
		return item(i).With(models.Step{Query: models.Query{Kind: models.QueryRole, Value: "textbox", Name: "Edit"}})
	}

	perform(t, d, item(1), models.Action{Type: models.ActionDblClick})
	perform(t, d, edit(1), models.Action{Type: models.ActionFill, Value: "  buy some sausages  "})
	perform(t, d, edit(1), models.Action{Type: models.ActionPress, Value: "Enter"})
	assert.Equal(t, []string{"buy some cheese", "buy some sausages"}, titles(t, d))

	perform(t, d, item(0), models.Action{Type: models.ActionDblClick})
	perform(t, d, edit(0), models.Action{Type: models.ActionFill, Value: "changed"})
	perform(t, d, edit(0), models.Action{Type: models.ActionPress, Value: "Escape"})
	assert.Equal(t, []string{"buy some cheese", "buy some sausages"}, titles(t, d))

	perform(t, d, item(0), models.Action{Type: models.ActionDblClick})
	perform(t, d, edit(0), models.Action{Type: models.ActionFill, Value: "blurred"})
	perform(t, d, edit(0), models.Action{Type: models.ActionDispatch, Value: "blur"})
	assert.Equal(t, []string{"blurred", "buy some sausages"}, titles(t, d))

	perform(t, d, item(1), models.Action{Type: models.ActionDblClick})
	perform(t, d, edit(1), models.Action{Type: models.ActionFill, Value: ""})
	perform(t, d, edit(1), models.Action{Type: models.ActionPress, Value: "Enter"})
	assert.Equal(t, []string{"blurred"}, titles(t, d))
}

func TestTodoApp_EditingHidesControls(t *testing.T) {
	d, _ := newTodoDoc(t)
	addTodo(t, d, "buy some cheese")

	item := models.Path{nth(step(models.QueryTestID, "todo-item"), 0)}
	perform(t, d, item, models.Action{Type: models.ActionDblClick})

	boxes, err := d.Resolve(context.Background(), item.With(models.Step{Query: models.Query{Kind: models.QueryRole, Value: "checkbox"}}))
	require.NoError(t, err)
	assert.Empty(t, boxes)
}

func TestDocument_FilterLinksAndHistory(t *testing.T) {
	d, _ := newTodoDoc(t)
	ctx := context.Background()
	addTodo(t, d, "a")
	addTodo(t, d, "b")
	perform(t, d, models.Path{nth(step(models.QueryTestID, "todo-item"), 1), step(models.QueryRole, "checkbox")},
		models.Action{Type: models.ActionCheck})

	link := func(name string) models.Path {
		return models.Path{{Query: models.Query{Kind: models.QueryRole, Value: "link", Name: name}}}
	}

	perform(t, d, link("Active"), models.Action{Type: models.ActionClick})
	assert.Equal(t, []string{"a"}, titles(t, d))
	perform(t, d, link("Completed"), models.Action{Type: models.ActionClick})
	assert.Equal(t, []string{"b"}, titles(t, d))

	require.NoError(t, d.GoBack(ctx))
	assert.Equal(t, []string{"a"}, titles(t, d))
	require.NoError(t, d.GoBack(ctx))
	assert.Equal(t, []string{"a", "b"}, titles(t, d))

	u, _ := d.URL(ctx)
	assert.Equal(t, todoURL, u)
}

func TestDocument_SameLinkTwiceDoesNotPush(t *testing.T) {
	d, _ := newTodoDoc(t)
	addTodo(t, d, "a")
	before := d.HistoryLen()

	all := models.Path{{Query: models.Query{Kind: models.QueryRole, Value: "link", Name: "All"}}}
	perform(t, d, all, models.Action{Type: models.ActionClick})
	perform(t, d, all, models.Action{Type: models.ActionClick})

	assert.Equal(t, before+1, d.HistoryLen())
}

func TestDocument_CheckIsIdempotent(t *testing.T) {
	d, _ := newTodoDoc(t)
	addTodo(t, d, "a")

	toggle := models.Path{nth(step(models.QueryTestID, "todo-item"), 0), step(models.QueryRole, "checkbox")}
	perform(t, d, toggle, models.Action{Type: models.ActionCheck})
	perform(t, d, toggle, models.Action{Type: models.ActionCheck})

	els, err := d.Resolve(context.Background(), toggle)
	require.NoError(t, err)
	st, _ := els[0].State(context.Background())
	assert.True(t, st.Checked)
}

func TestDocument_PerformRejectsHiddenAndWrongTarget(t *testing.T) {
	d := New()
	d.Register("https://static.test/", &StaticPage{Body: `<div hidden><button>Go</button></div><span>text</span>`})
	ctx := context.Background()
	require.NoError(t, d.Navigate(ctx, "https://static.test/"))

	els, err := d.Resolve(ctx, models.Path{step(models.QueryCSS, "button")})
	require.NoError(t, err)
	require.Len(t, els, 1)
	assert.Error(t, d.Perform(ctx, els[0], models.Action{Type: models.ActionClick}))

	els, err = d.Resolve(ctx, models.Path{step(models.QueryCSS, "span")})
	require.NoError(t, err)
	assert.Error(t, d.Perform(ctx, els[0], models.Action{Type: models.ActionFill, Value: "x"}))

	other := New()
	assert.Error(t, other.Perform(ctx, els[0], models.Action{Type: models.ActionClick}))
}

func TestDocument_GoBackOnFirstEntryIsNoop(t *testing.T) {
	d := New()
	require.NoError(t, d.GoBack(context.Background()))
	u, _ := d.URL(context.Background())
	assert.Equal(t, "about:blank", u)
}

func TestDocument_RelativeNavigation(t *testing.T) {
	d := New(WithBaseURL("https://video.test"))
	page := &StaticPage{PageTitle: "Watch"}
	d.Register("https://video.test/watch", page)
	ctx := context.Background()

	require.NoError(t, d.Navigate(ctx, "/watch?v=abc"))
	u, _ := d.URL(ctx)
	assert.Equal(t, "https://video.test/watch?v=abc", u)
	title, _ := d.Title(ctx)
	assert.Equal(t, "Watch", title)
}
