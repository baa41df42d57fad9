package pages

import (
	"context"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"dev/bravebird/pagecheck/pkg/document"
	"dev/bravebird/pagecheck/pkg/document/memdoc"
	"dev/bravebird/pagecheck/pkg/filter"
	"dev/bravebird/pagecheck/pkg/models"
	"dev/bravebird/pagecheck/pkg/verify"
)

var todoItems = []string{"buy some cheese", "feed the cat", "book a doctors appointment"}

func fastVerify() Option {
	return WithVerifyOptions(verify.WithTimeout(time.Second), verify.WithInterval(2*time.Millisecond, 10*time.Millisecond))
}

func newTodoPage(t testing.TB, opts ...memdoc.TodoOption) *TodoPage {
	t.Helper()
	doc := memdoc.New()
	doc.Register(DefaultTodoURL, memdoc.NewTodoApp(opts...))
	p := NewTodoPage(doc, "", "", fastVerify())
	require.NoError(t, p.Goto(context.Background()))
	return p
}

func lagging() []memdoc.TodoOption {
	return []memdoc.TodoOption{
		memdoc.WithRenderLag(15 * time.Millisecond),
		memdoc.WithPersistLag(40 * time.Millisecond),
		memdoc.WithTornReads(1),
	}
}

func TestTodoPage_ScenarioLiteral(t *testing.T) {
	p := newTodoPage(t, lagging()...)
	ctx := context.Background()

	require.NoError(t, p.CreateTodos(ctx, todoItems))
	require.NoError(t, p.ExpectTodoTitles(ctx, todoItems))
	require.NoError(t, p.ExpectPersistedCount(ctx, 3))

	require.NoError(t, p.CheckTodoAt(ctx, 1))
	require.NoError(t, p.ExpectPersistedCompletedCount(ctx, 1))
	require.NoError(t, p.ExpectCompletedPattern(ctx, []bool{false, true, false}))
	require.NoError(t, p.TodoItems.ToHaveClasses(ctx, []string{"", "completed", ""}, p.VerifyOptions()...))
}

func TestTodoPage_NewTodo(t *testing.T) {
	p := newTodoPage(t, lagging()...)
	ctx := context.Background()

	require.NoError(t, p.CreateTodo(ctx, todoItems[0]))
	require.NoError(t, p.ExpectTodoTitles(ctx, todoItems[:1]))
	require.NoError(t, p.ExpectInputEmpty(ctx))
	require.NoError(t, p.ExpectTodoCountVisible(ctx))
	require.NoError(t, p.ExpectTodoCountText(ctx, "1 item left"))
	require.NoError(t, p.ExpectTodoCountContains(ctx, "1"))
	require.NoError(t, p.ExpectTodoCountMatches(ctx, regexp.MustCompile(`1`)))
	require.NoError(t, p.ExpectPersistedTitle(ctx, todoItems[0]))
}

func TestTodoPage_MarkAll(t *testing.T) {
	p := newTodoPage(t, lagging()...)
	ctx := context.Background()
	require.NoError(t, p.CreateTodos(ctx, todoItems))
	require.NoError(t, p.ExpectTodoItemsCount(ctx, 3))

	require.NoError(t, p.MarkAllCompleted(ctx))
	require.NoError(t, p.ExpectAllCompleted(ctx, 3))
	require.NoError(t, p.ExpectToggleAllChecked(ctx))
	require.NoError(t, p.ExpectPersistedCompletedCount(ctx, 3))

	require.NoError(t, p.MarkAllNotCompleted(ctx))
	require.NoError(t, p.ExpectAllNotCompleted(ctx, 3))

	require.NoError(t, p.MarkAllCompleted(ctx))
	require.NoError(t, p.ExpectAllCompleted(ctx, 3))
	require.NoError(t, p.UncheckTodoAt(ctx, 0))
	require.NoError(t, p.ExpectToggleAllUnchecked(ctx))
	require.NoError(t, p.ExpectTodoNotCompleted(ctx, 0))
	require.NoError(t, p.CheckTodoAt(ctx, 0))
	require.NoError(t, p.ExpectToggleAllChecked(ctx))
	require.NoError(t, p.ExpectTodoCompleted(ctx, 0))
	require.NoError(t, p.ExpectTodoItemChecked(ctx, 0))
}

func TestTodoPage_Editing(t *testing.T) {
	p := newTodoPage(t, lagging()...)
	ctx := context.Background()
	require.NoError(t, p.CreateTodos(ctx, todoItems))
	require.NoError(t, p.ExpectTodoItemsCount(ctx, 3))

	require.NoError(t, p.TodoItemAt(1).DblClick(ctx))
	require.NoError(t, p.ExpectEditControlsHidden(ctx, 1))
	require.NoError(t, p.editInput(1).Press(ctx, "Escape"))

	require.NoError(t, p.EditTodoAt(ctx, 1, "    buy some sausages    "))
	require.NoError(t, p.ExpectTodoTitles(ctx, []string{todoItems[0], "buy some sausages", todoItems[2]}))

	require.NoError(t, p.SaveEditOnBlurAt(ctx, 1, "feed the dog"))
	require.NoError(t, p.ExpectTodoTitles(ctx, []string{todoItems[0], "feed the dog", todoItems[2]}))

	require.NoError(t, p.CancelEditAt(ctx, 1, "discarded"))
	require.NoError(t, p.ExpectTodoTitles(ctx, []string{todoItems[0], "feed the dog", todoItems[2]}))

	require.NoError(t, p.EditTodoAt(ctx, 1, ""))
	require.NoError(t, p.ExpectTodoTitles(ctx, []string{todoItems[0], todoItems[2]}))
	require.NoError(t, p.ExpectPersistedCount(ctx, 2))
}

func TestTodoPage_ClearCompletedAndDelete(t *testing.T) {
	p := newTodoPage(t, lagging()...)
	ctx := context.Background()
	require.NoError(t, p.CreateTodos(ctx, todoItems))
	require.NoError(t, p.ExpectTodoItemsCount(ctx, 3))

	require.NoError(t, p.ExpectClearCompletedHidden(ctx))
	require.NoError(t, p.CheckTodoAt(ctx, 0))
	require.NoError(t, p.ExpectClearCompletedVisible(ctx))
	require.NoError(t, p.ClickClearCompleted(ctx))
	require.NoError(t, p.ExpectTodoTitles(ctx, todoItems[1:]))
	require.NoError(t, p.ExpectClearCompletedHidden(ctx))

	require.NoError(t, p.DeleteTodoAt(ctx, 0))
	require.NoError(t, p.ExpectTodoTitles(ctx, todoItems[2:]))
}

func TestTodoPage_PersistsAcrossReload(t *testing.T) {
	p := newTodoPage(t, lagging()...)
	ctx := context.Background()
	require.NoError(t, p.CreateTodos(ctx, todoItems[:2]))
	require.NoError(t, p.ExpectTodoItemsCount(ctx, 2))
	require.NoError(t, p.CheckTodoAt(ctx, 0))
	require.NoError(t, p.ExpectPersistedCompletedCount(ctx, 1))

	require.NoError(t, p.Reload(ctx))
	require.NoError(t, p.ExpectTodoTitles(ctx, todoItems[:2]))
	require.NoError(t, p.ExpectCompletedPattern(ctx, []bool{true, false}))
}

func TestTodoPage_FiltersAndBack(t *testing.T) {
	p := newTodoPage(t, lagging()...)
	ctx := context.Background()
	require.NoError(t, p.CreateTodos(ctx, todoItems))
	require.NoError(t, p.ExpectTodoItemsCount(ctx, 3))
	require.NoError(t, p.CheckTodoAt(ctx, 1))
	require.NoError(t, p.ExpectPersistedCompletedCount(ctx, 1))

	require.NoError(t, p.ClickActiveLink(ctx))
	require.NoError(t, p.ExpectTodoItemsCount(ctx, 2))
	require.NoError(t, p.ExpectFilterSelected(ctx, filter.Active))
	require.NoError(t, p.ExpectFilterApplied(ctx))

	require.NoError(t, p.ClickCompletedLink(ctx))
	require.NoError(t, p.ExpectTodoItemsCount(ctx, 1))
	require.NoError(t, p.ExpectFilterApplied(ctx))

	require.NoError(t, p.ClickAllLink(ctx))
	require.NoError(t, p.ExpectTodoItemsCount(ctx, 3))

	require.NoError(t, p.GoBack(ctx))
	assert.Equal(t, filter.Completed, p.Filter())
	require.NoError(t, p.ExpectTodoItemsCount(ctx, 1))

	require.NoError(t, p.GoBack(ctx))
	assert.Equal(t, filter.Active, p.Filter())
	require.NoError(t, p.ExpectTodoItemsCount(ctx, 2))
	require.NoError(t, p.ExpectFilterApplied(ctx))
}

// collapsingDoc reports element text with whitespace runs collapsed, the way
// a browser's innerText does, while storage keeps the raw title.
type collapsingDoc struct {
	*memdoc.Document
}

type collapsedElement struct {
	document.Element
}

func (e collapsedElement) State(ctx context.Context) (models.ElementState, error) {
	st, err := e.Element.State(ctx)
	st.Text = strings.Join(strings.Fields(st.Text), " ")
	return st, err
}

func (d collapsingDoc) Resolve(ctx context.Context, path models.Path) ([]document.Element, error) {
	els, err := d.Document.Resolve(ctx, path)
	for i, el := range els {
		els[i] = collapsedElement{el}
	}
	return els, err
}

func (d collapsingDoc) Perform(ctx context.Context, el document.Element, a models.Action) error {
	if c, ok := el.(collapsedElement); ok {
		el = c.Element
	}
	return d.Document.Perform(ctx, el, a)
}

func TestTodoPage_FilterAppliedIgnoresWhitespaceRuns(t *testing.T) {
	doc := memdoc.New()
	doc.Register(DefaultTodoURL, memdoc.NewTodoApp())
	p := NewTodoPage(collapsingDoc{doc}, "", "", fastVerify())
	ctx := context.Background()
	require.NoError(t, p.Goto(ctx))

	require.NoError(t, p.CreateTodos(ctx, []string{"feed  the cat", "buy some cheese"}))
	require.NoError(t, p.ExpectPersistedTitle(ctx, "feed  the cat"))
	require.NoError(t, p.ExpectFilterApplied(ctx))
}

func TestTodoPage_ActionOnMissingItemFails(t *testing.T) {
	p := newTodoPage(t)
	ctx := context.Background()

	err := p.CheckTodoAt(ctx, 4)
	assert.ErrorIs(t, err, models.ErrNotFound)

	err = p.ExpectTodoTitles(ctx, []string{"never"})
	assert.ErrorIs(t, err, models.ErrTimeout)
}

func TestTodoPage_CreateTodosIsFailFast(t *testing.T) {
	doc := memdoc.New()
	p := NewTodoPage(doc, "", "", fastVerify())
	// nothing registered: the page is blank and the input is missing
	require.NoError(t, p.Goto(context.Background()))

	err := p.CreateTodos(context.Background(), todoItems)
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.Contains(t, err.Error(), todoItems[0])
}

func TestTodoPage_OrderPreservation(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		titles := rapid.SliceOfN(rapid.StringMatching(`[a-z][a-z ]{0,10}[a-z]`), 1, 6).Draw(rt, "titles")

		p := newTodoPage(t, memdoc.WithRenderLag(3*time.Millisecond))
		ctx := context.Background()
		if err := p.CreateTodos(ctx, titles); err != nil {
			rt.Fatal(err)
		}
		if err := p.ExpectTodoTitles(ctx, titles); err != nil {
			rt.Fatal(err)
		}
	})
}

func TestTodoPage_HistorySymmetry(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		completed := rapid.SliceOfN(rapid.Bool(), 1, 5).Draw(rt, "completed")
		f2 := rapid.SampledFrom(filter.Filters[1:]).Draw(rt, "f2")
		f3 := rapid.SampledFrom(filter.Filters).Filter(func(f filter.Filter) bool { return f != f2 }).Draw(rt, "f3")

		p := newTodoPage(t)
		ctx := context.Background()
		titles := make([]string, len(completed))
		for i := range completed {
			titles[i] = string(rune('a' + i))
		}
		if err := p.CreateTodos(ctx, titles); err != nil {
			rt.Fatal(err)
		}
		for i, done := range completed {
			if done {
				if err := p.CheckTodoAt(ctx, i); err != nil {
					rt.Fatal(err)
				}
			}
		}
		if err := p.ExpectPersistedCompletedCount(ctx, countTrue(completed)); err != nil {
			rt.Fatal(err)
		}

		// F1 is All after Goto
		for _, f := range []filter.Filter{f2, f3} {
			if err := p.ClickFilter(ctx, f); err != nil {
				rt.Fatal(err)
			}
		}
		for _, want := range []filter.Filter{f2, filter.All} {
			if err := p.GoBack(ctx); err != nil {
				rt.Fatal(err)
			}
			if p.Filter() != want {
				rt.Fatalf("after back: filter %v, want %v", p.Filter(), want)
			}
			if err := p.ExpectFilterApplied(ctx); err != nil {
				rt.Fatal(err)
			}
		}
	})
}

func countTrue(bs []bool) int {
	n := 0
	for _, b := range bs {
		if b {
			n++
		}
	}
	return n
}
