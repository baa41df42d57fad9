package pages

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"slices"

	"go.uber.org/zap"

	"dev/bravebird/pagecheck/pkg/document"
	"dev/bravebird/pagecheck/pkg/filter"
	"dev/bravebird/pagecheck/pkg/locator"
	"dev/bravebird/pagecheck/pkg/snapshot"
	"dev/bravebird/pagecheck/pkg/verify"
)

// DefaultTodoURL is the public TodoMVC demo
const DefaultTodoURL = "https://demo.playwright.dev/todomvc"

// TodoPage is the TodoMVC application
type TodoPage struct {
	Base

	URL        string
	StorageKey string

	NewTodo        locator.Locator
	TodoItems      locator.Locator
	TodoTitles     locator.Locator
	TodoCount      locator.Locator
	ToggleAll      locator.Locator
	ClearCompleted locator.Locator
	AllLink        locator.Locator
	ActiveLink     locator.Locator
	CompletedLink  locator.Locator

	filters *filter.Machine
}

// NewTodoPage declares every reference up front. url and key fall back to
// DefaultTodoURL and snapshot.DefaultKey when empty.
func NewTodoPage(doc document.Handle, pageURL, key string, opts ...Option) *TodoPage {
	if pageURL == "" {
		pageURL = DefaultTodoURL
	}
	if key == "" {
		key = snapshot.DefaultKey
	}
	return &TodoPage{
		Base:           newBase(doc, opts),
		URL:            pageURL,
		StorageKey:     key,
		NewTodo:        locator.GetByPlaceholder(doc, "What needs to be done?"),
		TodoItems:      locator.GetByTestID(doc, "todo-item"),
		TodoTitles:     locator.GetByTestID(doc, "todo-title"),
		TodoCount:      locator.GetByTestID(doc, "todo-count"),
		ToggleAll:      locator.GetByLabel(doc, "Mark all as complete"),
		ClearCompleted: locator.GetByRole(doc, "button", locator.Name("Clear completed")),
		AllLink:        locator.GetByRole(doc, "link", locator.Name("All")),
		ActiveLink:     locator.GetByRole(doc, "link", locator.Name("Active")),
		CompletedLink:  locator.GetByRole(doc, "link", locator.Name("Completed")),
		filters:        filter.NewMachine(filter.All),
	}
}

// With returns a view of the same page whose expectations also apply opts.
// The copy shares references and filter history with p.
func (p *TodoPage) With(opts ...verify.Option) *TodoPage {
	cp := *p
	cp.verify = p.VerifyOptions(opts...)
	return &cp
}

// ==================== Navigation ====================

func (p *TodoPage) Goto(ctx context.Context) error {
	if err := p.doc.Navigate(ctx, p.URL); err != nil {
		return fmt.Errorf("goto %s: %w", p.URL, err)
	}
	start := filter.All
	if u, err := url.Parse(p.URL); err == nil {
		start = filter.FromRoute(u.Fragment)
	}
	p.filters.Reset(start)
	return nil
}

func (p *TodoPage) Reload(ctx context.Context) error {
	return p.doc.Reload(ctx)
}

// GoBack navigates back and restores the previous filter
func (p *TodoPage) GoBack(ctx context.Context) error {
	if err := p.doc.GoBack(ctx); err != nil {
		return err
	}
	p.filters.Back()
	return nil
}

// Filter is the filter the page should currently be showing
func (p *TodoPage) Filter() filter.Filter {
	return p.filters.Current()
}

func (p *TodoPage) filterLink(f filter.Filter) locator.Locator {
	switch f {
	case filter.Active:
		return p.ActiveLink
	case filter.Completed:
		return p.CompletedLink
	}
	return p.AllLink
}

// ClickFilter follows the filter's link
func (p *TodoPage) ClickFilter(ctx context.Context, f filter.Filter) error {
	if err := p.filterLink(f).Click(ctx); err != nil {
		return err
	}
	p.filters.Navigate(f)
	p.logger.Debug("filter", zap.Stringer("filter", f), zap.Int("depth", p.filters.Depth()))
	return nil
}

func (p *TodoPage) ClickAllLink(ctx context.Context) error {
	return p.ClickFilter(ctx, filter.All)
}

func (p *TodoPage) ClickActiveLink(ctx context.Context) error {
	return p.ClickFilter(ctx, filter.Active)
}

func (p *TodoPage) ClickCompletedLink(ctx context.Context) error {
	return p.ClickFilter(ctx, filter.Completed)
}

// ==================== Actions ====================

// CreateTodo types title into the new-todo input and submits it
func (p *TodoPage) CreateTodo(ctx context.Context, title string) error {
	if err := p.NewTodo.Fill(ctx, title); err != nil {
		return fmt.Errorf("create todo %q: %w", title, err)
	}
	if err := p.NewTodo.Press(ctx, "Enter"); err != nil {
		return fmt.Errorf("create todo %q: %w", title, err)
	}
	p.logger.Debug("created todo", zap.String("title", title))
	return nil
}

// CreateTodos creates each title in order and stops at the first failure
func (p *TodoPage) CreateTodos(ctx context.Context, titles []string) error {
	for _, title := range titles {
		if err := p.CreateTodo(ctx, title); err != nil {
			return err
		}
	}
	return nil
}

// TodoItemAt references the index-th rendered item
func (p *TodoPage) TodoItemAt(index int) locator.Locator {
	return p.TodoItems.Nth(index)
}

func (p *TodoPage) editInput(index int) locator.Locator {
	return p.TodoItemAt(index).GetByRole("textbox", locator.Name("Edit"))
}

// startEdit double-clicks the item and overwrites the edit field
func (p *TodoPage) startEdit(ctx context.Context, index int, text string) (locator.Locator, error) {
	if err := p.TodoItemAt(index).DblClick(ctx); err != nil {
		return locator.Locator{}, fmt.Errorf("edit todo %d: %w", index, err)
	}
	edit := p.editInput(index)
	if err := edit.Fill(ctx, text); err != nil {
		return locator.Locator{}, fmt.Errorf("edit todo %d: %w", index, err)
	}
	return edit, nil
}

// EditTodoAt replaces the item's text and submits with Enter. An empty text
// submits an empty edit; what the application does with it is up to the
// caller to check.
func (p *TodoPage) EditTodoAt(ctx context.Context, index int, text string) error {
	edit, err := p.startEdit(ctx, index, text)
	if err != nil {
		return err
	}
	if err := edit.Press(ctx, "Enter"); err != nil {
		return fmt.Errorf("edit todo %d: %w", index, err)
	}
	return nil
}

// CancelEditAt types text into the edit field and presses Escape
func (p *TodoPage) CancelEditAt(ctx context.Context, index int, text string) error {
	edit, err := p.startEdit(ctx, index, text)
	if err != nil {
		return err
	}
	if err := edit.Press(ctx, "Escape"); err != nil {
		return fmt.Errorf("cancel edit %d: %w", index, err)
	}
	return nil
}

// SaveEditOnBlurAt types text into the edit field and blurs it
func (p *TodoPage) SaveEditOnBlurAt(ctx context.Context, index int, text string) error {
	edit, err := p.startEdit(ctx, index, text)
	if err != nil {
		return err
	}
	if err := edit.DispatchEvent(ctx, "blur"); err != nil {
		return fmt.Errorf("blur edit %d: %w", index, err)
	}
	return nil
}

// DeleteTodoAt hovers the item and clicks its destroy button
func (p *TodoPage) DeleteTodoAt(ctx context.Context, index int) error {
	item := p.TodoItemAt(index)
	if err := item.Hover(ctx); err != nil {
		return fmt.Errorf("delete todo %d: %w", index, err)
	}
	if err := item.Locate("button.destroy").Click(ctx); err != nil {
		return fmt.Errorf("delete todo %d: %w", index, err)
	}
	return nil
}

func (p *TodoPage) CheckTodoAt(ctx context.Context, index int) error {
	return p.TodoItemAt(index).GetByRole("checkbox").Check(ctx)
}

func (p *TodoPage) UncheckTodoAt(ctx context.Context, index int) error {
	return p.TodoItemAt(index).GetByRole("checkbox").Uncheck(ctx)
}

func (p *TodoPage) MarkAllCompleted(ctx context.Context) error {
	return p.ToggleAll.Check(ctx)
}

func (p *TodoPage) MarkAllNotCompleted(ctx context.Context) error {
	return p.ToggleAll.Uncheck(ctx)
}

func (p *TodoPage) ClickClearCompleted(ctx context.Context) error {
	return p.ClearCompleted.Click(ctx)
}

// ==================== Rendered State ====================

func (p *TodoPage) ExpectTodoTitles(ctx context.Context, titles []string) error {
	return p.TodoTitles.ToHaveTexts(ctx, titles, p.verify...)
}

func (p *TodoPage) ExpectInputEmpty(ctx context.Context) error {
	return p.NewTodo.ToBeEmpty(ctx, p.verify...)
}

func (p *TodoPage) ExpectTodoCountVisible(ctx context.Context) error {
	return p.ExpectVisible(ctx, p.TodoCount)
}

func (p *TodoPage) ExpectTodoCountText(ctx context.Context, text string) error {
	return p.TodoCount.ToHaveText(ctx, text, p.verify...)
}

func (p *TodoPage) ExpectTodoCountContains(ctx context.Context, text string) error {
	return p.TodoCount.ToContainText(ctx, text, p.verify...)
}

func (p *TodoPage) ExpectTodoCountMatches(ctx context.Context, re *regexp.Regexp) error {
	return p.TodoCount.ToMatchText(ctx, re, p.verify...)
}

// ExpectCompletedPattern waits until item i has class "completed" exactly
// when pattern[i] is true, and the list has len(pattern) items
func (p *TodoPage) ExpectCompletedPattern(ctx context.Context, pattern []bool) error {
	classes := make([]string, len(pattern))
	for i, done := range pattern {
		if done {
			classes[i] = "completed"
		}
	}
	return p.TodoItems.ToHaveClasses(ctx, classes, p.verify...)
}

func (p *TodoPage) ExpectAllCompleted(ctx context.Context, count int) error {
	return p.ExpectCompletedPattern(ctx, repeat(true, count))
}

func (p *TodoPage) ExpectAllNotCompleted(ctx context.Context, count int) error {
	return p.ExpectCompletedPattern(ctx, repeat(false, count))
}

func (p *TodoPage) ExpectTodoCompleted(ctx context.Context, index int) error {
	return p.TodoItemAt(index).ToHaveClass(ctx, "completed", p.verify...)
}

func (p *TodoPage) ExpectTodoNotCompleted(ctx context.Context, index int) error {
	return p.TodoItemAt(index).NotToHaveClass(ctx, "completed", p.verify...)
}

func (p *TodoPage) ExpectToggleAllChecked(ctx context.Context) error {
	return p.ToggleAll.ToBeChecked(ctx, p.verify...)
}

func (p *TodoPage) ExpectToggleAllUnchecked(ctx context.Context) error {
	return p.ToggleAll.NotToBeChecked(ctx, p.verify...)
}

// ExpectTodoItemChecked checks the checkbox inside the item
func (p *TodoPage) ExpectTodoItemChecked(ctx context.Context, index int) error {
	return p.TodoItemAt(index).GetByRole("checkbox").ToBeChecked(ctx, p.verify...)
}

func (p *TodoPage) ExpectTodoItemUnchecked(ctx context.Context, index int) error {
	return p.TodoItemAt(index).GetByRole("checkbox").NotToBeChecked(ctx, p.verify...)
}

// ExpectEditControlsHidden waits until the item's toggle and title are
// hidden, as they are while the item is being edited
func (p *TodoPage) ExpectEditControlsHidden(ctx context.Context, index int) error {
	item := p.TodoItemAt(index)
	if err := item.Locate("input.toggle").ToBeHidden(ctx, p.verify...); err != nil {
		return err
	}
	return item.GetByTestID("todo-title").ToBeHidden(ctx, p.verify...)
}

func (p *TodoPage) ExpectClearCompletedVisible(ctx context.Context) error {
	return p.ExpectVisible(ctx, p.ClearCompleted)
}

func (p *TodoPage) ExpectClearCompletedHidden(ctx context.Context) error {
	return p.ClearCompleted.ToBeHidden(ctx, p.verify...)
}

func (p *TodoPage) ExpectTodoItemsCount(ctx context.Context, count int) error {
	return p.TodoItems.ToHaveCount(ctx, count, p.verify...)
}

// ExpectFilterSelected waits until f's link carries the "selected" class
func (p *TodoPage) ExpectFilterSelected(ctx context.Context, f filter.Filter) error {
	return p.filterLink(f).ToContainClass(ctx, "selected", p.verify...)
}

// ExpectFilterApplied waits until the rendered titles are exactly the
// persisted records matching the current filter, in stored order
func (p *TodoPage) ExpectFilterApplied(ctx context.Context) error {
	f := p.filters.Current()
	return verify.Eventually(ctx, verify.Check{
		Description: fmt.Sprintf("%s filter applied", f),
		Expected:    "rendered titles = filter(persisted)",
		Sample: func(ctx context.Context) (bool, string, error) {
			todos, err := snapshot.Read(ctx, p.doc, p.StorageKey)
			if err != nil {
				return false, "", err
			}
			want := snapshot.Titles(f.Apply(todos))
			for i, t := range want {
				want[i] = locator.NormalizeText(t)
			}
			states, err := p.TodoTitles.States(ctx)
			if err != nil {
				return false, "", err
			}
			got := make([]string, len(states))
			for i, st := range states {
				got[i] = locator.NormalizeText(st.Text)
			}
			return slices.Equal(got, want), fmt.Sprintf("rendered %q, filtered %q", got, want), nil
		},
	}, p.verify...)
}

// ==================== Persisted State ====================

func (p *TodoPage) ExpectPersistedCount(ctx context.Context, count int) error {
	return verify.Eventually(ctx, verify.PersistedCount(p.doc, p.StorageKey, count), p.verify...)
}

func (p *TodoPage) ExpectPersistedCompletedCount(ctx context.Context, count int) error {
	return verify.Eventually(ctx, verify.PersistedCompletedCount(p.doc, p.StorageKey, count), p.verify...)
}

func (p *TodoPage) ExpectPersistedTitle(ctx context.Context, title string) error {
	return verify.Eventually(ctx, verify.PersistedContainsTitle(p.doc, p.StorageKey, title), p.verify...)
}

func repeat(v bool, n int) []bool {
	out := make([]bool, max(n, 0))
	for i := range out {
		out[i] = v
	}
	return out
}
