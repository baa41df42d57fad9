package locator

import (
	"context"

	"dev/bravebird/pagecheck/pkg/models"
)

// Actions resolve the locator once, require exactly one match and perform a
// single primitive. They are not retried and do not verify their effect.

func (l Locator) act(ctx context.Context, a models.Action) error {
	el, err := l.one(ctx)
	if err != nil {
		return err
	}
	if err := l.doc.Perform(ctx, el, a); err != nil {
		return &models.ActionError{Path: l.path, Action: a, Err: err}
	}
	return nil
}

func (l Locator) Click(ctx context.Context) error {
	return l.act(ctx, models.Action{Type: models.ActionClick})
}

func (l Locator) DblClick(ctx context.Context) error {
	return l.act(ctx, models.Action{Type: models.ActionDblClick})
}

// Fill replaces the value of an input
func (l Locator) Fill(ctx context.Context, value string) error {
	return l.act(ctx, models.Action{Type: models.ActionFill, Value: value})
}

// Press sends one key, e.g. "Enter" or "Escape"
func (l Locator) Press(ctx context.Context, key string) error {
	return l.act(ctx, models.Action{Type: models.ActionPress, Value: key})
}

// Check ensures a checkbox is checked; it does nothing if it already is
func (l Locator) Check(ctx context.Context) error {
	return l.act(ctx, models.Action{Type: models.ActionCheck})
}

func (l Locator) Uncheck(ctx context.Context) error {
	return l.act(ctx, models.Action{Type: models.ActionUncheck})
}

// DispatchEvent fires a DOM event such as "blur" on the element
func (l Locator) DispatchEvent(ctx context.Context, event string) error {
	return l.act(ctx, models.Action{Type: models.ActionDispatch, Value: event})
}

func (l Locator) Focus(ctx context.Context) error {
	return l.act(ctx, models.Action{Type: models.ActionFocus})
}

func (l Locator) Hover(ctx context.Context) error {
	return l.act(ctx, models.Action{Type: models.ActionHover})
}
