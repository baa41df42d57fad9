package scenario

import (
	"context"
	"fmt"
	"regexp"

	"dev/bravebird/pagecheck/pkg/filter"
	"dev/bravebird/pagecheck/pkg/pages"
)

// Step arguments
const (
	argTitle   = "title"
	argTitles  = "titles"
	argIndex   = "index"
	argText    = "text"
	argCount   = "count"
	argFilter  = "filter"
	argClasses = "classes"
	argPattern = "pattern"
)

type opSpec struct {
	args []string
	run  func(ctx context.Context, p *pages.TodoPage, s Step) error
}

func op(run func(ctx context.Context, p *pages.TodoPage, s Step) error, args ...string) opSpec {
	return opSpec{args: args, run: run}
}

// registry maps op names to TodoPage operations
var registry = map[string]opSpec{
	// navigation
	"goto":   op(func(ctx context.Context, p *pages.TodoPage, _ Step) error { return p.Goto(ctx) }),
	"reload": op(func(ctx context.Context, p *pages.TodoPage, _ Step) error { return p.Reload(ctx) }),
	"back":   op(func(ctx context.Context, p *pages.TodoPage, _ Step) error { return p.GoBack(ctx) }),
	"filter": op(func(ctx context.Context, p *pages.TodoPage, s Step) error {
		f, err := filter.Parse(s.Filter)
		if err != nil {
			return err
		}
		return p.ClickFilter(ctx, f)
	}, argFilter),

	// actions
	"create": op(func(ctx context.Context, p *pages.TodoPage, s Step) error {
		return p.CreateTodo(ctx, s.Title)
	}, argTitle),
	"create_todos": op(func(ctx context.Context, p *pages.TodoPage, s Step) error {
		return p.CreateTodos(ctx, s.Titles)
	}, argTitles),
	"edit": op(func(ctx context.Context, p *pages.TodoPage, s Step) error {
		return p.EditTodoAt(ctx, *s.Index, *s.Text)
	}, argIndex, argText),
	"cancel_edit": op(func(ctx context.Context, p *pages.TodoPage, s Step) error {
		return p.CancelEditAt(ctx, *s.Index, *s.Text)
	}, argIndex, argText),
	"blur_edit": op(func(ctx context.Context, p *pages.TodoPage, s Step) error {
		return p.SaveEditOnBlurAt(ctx, *s.Index, *s.Text)
	}, argIndex, argText),
	"delete": op(func(ctx context.Context, p *pages.TodoPage, s Step) error {
		return p.DeleteTodoAt(ctx, *s.Index)
	}, argIndex),
	"check": op(func(ctx context.Context, p *pages.TodoPage, s Step) error {
		return p.CheckTodoAt(ctx, *s.Index)
	}, argIndex),
	"uncheck": op(func(ctx context.Context, p *pages.TodoPage, s Step) error {
		return p.UncheckTodoAt(ctx, *s.Index)
	}, argIndex),
	"mark_all_completed": op(func(ctx context.Context, p *pages.TodoPage, _ Step) error {
		return p.MarkAllCompleted(ctx)
	}),
	"mark_all_not_completed": op(func(ctx context.Context, p *pages.TodoPage, _ Step) error {
		return p.MarkAllNotCompleted(ctx)
	}),
	"clear_completed": op(func(ctx context.Context, p *pages.TodoPage, _ Step) error {
		return p.ClickClearCompleted(ctx)
	}),

	// rendered state
	"expect_titles": op(func(ctx context.Context, p *pages.TodoPage, s Step) error {
		return p.ExpectTodoTitles(ctx, s.Titles)
	}, argTitles),
	"expect_empty_list": op(func(ctx context.Context, p *pages.TodoPage, _ Step) error {
		return p.ExpectTodoItemsCount(ctx, 0)
	}),
	"expect_input_empty": op(func(ctx context.Context, p *pages.TodoPage, _ Step) error {
		return p.ExpectInputEmpty(ctx)
	}),
	"expect_count_visible": op(func(ctx context.Context, p *pages.TodoPage, _ Step) error {
		return p.ExpectTodoCountVisible(ctx)
	}),
	"expect_count_text": op(func(ctx context.Context, p *pages.TodoPage, s Step) error {
		return p.ExpectTodoCountText(ctx, *s.Text)
	}, argText),
	"expect_count_contains": op(func(ctx context.Context, p *pages.TodoPage, s Step) error {
		return p.ExpectTodoCountContains(ctx, *s.Text)
	}, argText),
	"expect_count_matches": op(func(ctx context.Context, p *pages.TodoPage, s Step) error {
		re, err := regexp.Compile(s.Pattern)
		if err != nil {
			return err
		}
		return p.ExpectTodoCountMatches(ctx, re)
	}, argPattern),
	"expect_items_count": op(func(ctx context.Context, p *pages.TodoPage, s Step) error {
		return p.ExpectTodoItemsCount(ctx, *s.Count)
	}, argCount),
	"expect_all_completed": op(func(ctx context.Context, p *pages.TodoPage, s Step) error {
		return p.ExpectAllCompleted(ctx, *s.Count)
	}, argCount),
	"expect_all_not_completed": op(func(ctx context.Context, p *pages.TodoPage, s Step) error {
		return p.ExpectAllNotCompleted(ctx, *s.Count)
	}, argCount),
	"expect_classes": op(func(ctx context.Context, p *pages.TodoPage, s Step) error {
		return p.TodoItems.ToHaveClasses(ctx, s.Classes, p.VerifyOptions()...)
	}, argClasses),
	"expect_completed": op(func(ctx context.Context, p *pages.TodoPage, s Step) error {
		return p.ExpectTodoCompleted(ctx, *s.Index)
	}, argIndex),
	"expect_not_completed": op(func(ctx context.Context, p *pages.TodoPage, s Step) error {
		return p.ExpectTodoNotCompleted(ctx, *s.Index)
	}, argIndex),
	"expect_item_checked": op(func(ctx context.Context, p *pages.TodoPage, s Step) error {
		return p.ExpectTodoItemChecked(ctx, *s.Index)
	}, argIndex),
	"expect_editing": op(func(ctx context.Context, p *pages.TodoPage, s Step) error {
		return p.ExpectEditControlsHidden(ctx, *s.Index)
	}, argIndex),
	"expect_toggle_all_checked": op(func(ctx context.Context, p *pages.TodoPage, _ Step) error {
		return p.ExpectToggleAllChecked(ctx)
	}),
	"expect_toggle_all_unchecked": op(func(ctx context.Context, p *pages.TodoPage, _ Step) error {
		return p.ExpectToggleAllUnchecked(ctx)
	}),
	"expect_clear_completed_visible": op(func(ctx context.Context, p *pages.TodoPage, _ Step) error {
		return p.ExpectClearCompletedVisible(ctx)
	}),
	"expect_clear_completed_hidden": op(func(ctx context.Context, p *pages.TodoPage, _ Step) error {
		return p.ExpectClearCompletedHidden(ctx)
	}),
	"expect_filter_selected": op(func(ctx context.Context, p *pages.TodoPage, s Step) error {
		f, err := filter.Parse(s.Filter)
		if err != nil {
			return err
		}
		return p.ExpectFilterSelected(ctx, f)
	}, argFilter),
	"expect_filter_applied": op(func(ctx context.Context, p *pages.TodoPage, _ Step) error {
		return p.ExpectFilterApplied(ctx)
	}),

	// persisted state
	"expect_persisted_count": op(func(ctx context.Context, p *pages.TodoPage, s Step) error {
		return p.ExpectPersistedCount(ctx, *s.Count)
	}, argCount),
	"expect_persisted_completed": op(func(ctx context.Context, p *pages.TodoPage, s Step) error {
		return p.ExpectPersistedCompletedCount(ctx, *s.Count)
	}, argCount),
	"expect_persisted_title": op(func(ctx context.Context, p *pages.TodoPage, s Step) error {
		return p.ExpectPersistedTitle(ctx, s.Title)
	}, argTitle),
}

// checkArgs validates argument values that can be checked without a page
func checkArgs(s Step) error {
	if s.Filter != "" {
		if _, err := filter.Parse(s.Filter); err != nil {
			return err
		}
	}
	if s.Pattern != "" {
		if _, err := regexp.Compile(s.Pattern); err != nil {
			return fmt.Errorf("bad pattern: %w", err)
		}
	}
	return nil
}
