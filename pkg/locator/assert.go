package locator

import (
	"context"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"dev/bravebird/pagecheck/pkg/models"
	"dev/bravebird/pagecheck/pkg/verify"
)

// Option tunes the polling of an assertion
type Option = verify.Option

// ==================== Sequence Assertions ====================

// ToHaveTexts waits until the matches' texts equal want, in order and in
// full. A partly rendered list (wrong length or order) keeps failing.
func (l Locator) ToHaveTexts(ctx context.Context, want []string, opts ...Option) error {
	expected := quoteAll(want)
	return verify.Eventually(ctx, verify.Check{
		Description: fmt.Sprintf("%s texts", l.path),
		Expected:    expected,
		Sample: func(ctx context.Context) (bool, string, error) {
			states, err := l.States(ctx)
			if err != nil {
				return false, "", err
			}
			got := make([]string, len(states))
			for i, st := range states {
				got[i] = NormalizeText(st.Text)
			}
			return slices.Equal(got, normalizeAll(want)), quoteAll(got), nil
		},
	}, opts...)
}

// ToHaveClasses waits until each match's full class attribute equals the
// corresponding entry of want
func (l Locator) ToHaveClasses(ctx context.Context, want []string, opts ...Option) error {
	return verify.Eventually(ctx, verify.Check{
		Description: fmt.Sprintf("%s classes", l.path),
		Expected:    quoteAll(want),
		Sample: func(ctx context.Context) (bool, string, error) {
			states, err := l.States(ctx)
			if err != nil {
				return false, "", err
			}
			got := make([]string, len(states))
			for i, st := range states {
				got[i] = strings.Join(st.Classes(), " ")
			}
			return slices.Equal(got, normalizeAll(want)), quoteAll(got), nil
		},
	}, opts...)
}

// ToHaveCount waits until exactly n elements match
func (l Locator) ToHaveCount(ctx context.Context, n int, opts ...Option) error {
	return verify.Eventually(ctx, verify.Check{
		Description: fmt.Sprintf("%s count", l.path),
		Expected:    fmt.Sprint(n),
		Sample: func(ctx context.Context) (bool, string, error) {
			c, err := l.Count(ctx)
			if err != nil {
				return false, "", err
			}
			return c == n, fmt.Sprint(c), nil
		},
	}, opts...)
}

// ==================== Single Element Assertions ====================

// expectOne polls a predicate over the single match
func (l Locator) expectOne(ctx context.Context, what, expected string, pred func(models.ElementState) (bool, string), opts []Option) error {
	return verify.Eventually(ctx, verify.Check{
		Description: fmt.Sprintf("%s %s", l.path, what),
		Expected:    expected,
		Sample: func(ctx context.Context) (bool, string, error) {
			st, err := l.State(ctx)
			if err != nil {
				return false, "", err
			}
			ok, actual := pred(st)
			return ok, actual, nil
		},
	}, opts...)
}

func (l Locator) ToHaveText(ctx context.Context, want string, opts ...Option) error {
	return l.expectOne(ctx, "text", fmt.Sprintf("%q", want), func(st models.ElementState) (bool, string) {
		got := NormalizeText(st.Text)
		return got == NormalizeText(want), fmt.Sprintf("%q", got)
	}, opts)
}

func (l Locator) ToContainText(ctx context.Context, sub string, opts ...Option) error {
	return l.expectOne(ctx, "text", fmt.Sprintf("contains %q", sub), func(st models.ElementState) (bool, string) {
		got := NormalizeText(st.Text)
		return strings.Contains(got, NormalizeText(sub)), fmt.Sprintf("%q", got)
	}, opts)
}

func (l Locator) ToMatchText(ctx context.Context, re *regexp.Regexp, opts ...Option) error {
	return l.expectOne(ctx, "text", fmt.Sprintf("matches /%s/", re), func(st models.ElementState) (bool, string) {
		got := NormalizeText(st.Text)
		return re.MatchString(got), fmt.Sprintf("%q", got)
	}, opts)
}

// ToHaveValue waits for an input's current value
func (l Locator) ToHaveValue(ctx context.Context, want string, opts ...Option) error {
	return l.expectOne(ctx, "value", fmt.Sprintf("%q", want), func(st models.ElementState) (bool, string) {
		return st.Value == want, fmt.Sprintf("%q", st.Value)
	}, opts)
}

// ToBeEmpty holds for an input with no value or an element with no text
func (l Locator) ToBeEmpty(ctx context.Context, opts ...Option) error {
	return l.expectOne(ctx, "emptiness", "empty", func(st models.ElementState) (bool, string) {
		content := st.Text
		if st.Tag == "input" || st.Tag == "textarea" {
			content = st.Value
		}
		return strings.TrimSpace(content) == "", fmt.Sprintf("%q", content)
	}, opts)
}

// ToHaveClass waits until the full class attribute equals want
func (l Locator) ToHaveClass(ctx context.Context, want string, opts ...Option) error {
	return l.expectOne(ctx, "class", fmt.Sprintf("%q", want), func(st models.ElementState) (bool, string) {
		got := strings.Join(st.Classes(), " ")
		return got == NormalizeText(want), fmt.Sprintf("%q", got)
	}, opts)
}

func (l Locator) ToContainClass(ctx context.Context, class string, opts ...Option) error {
	return l.expectOne(ctx, "class", fmt.Sprintf("contains %q", class), func(st models.ElementState) (bool, string) {
		return slices.Contains(st.Classes(), class), fmt.Sprintf("%q", st.Class)
	}, opts)
}

func (l Locator) NotToHaveClass(ctx context.Context, class string, opts ...Option) error {
	return l.expectOne(ctx, "class", fmt.Sprintf("not %q", class), func(st models.ElementState) (bool, string) {
		return !slices.Contains(st.Classes(), class), fmt.Sprintf("%q", st.Class)
	}, opts)
}

func (l Locator) ToBeVisible(ctx context.Context, opts ...Option) error {
	return l.expectOne(ctx, "visibility", "visible", func(st models.ElementState) (bool, string) {
		return st.Visible, visibility(st.Visible)
	}, opts)
}

func (l Locator) ToBeChecked(ctx context.Context, opts ...Option) error {
	return l.expectOne(ctx, "checked", "checked", func(st models.ElementState) (bool, string) {
		return st.Checked, checked(st.Checked)
	}, opts)
}

func (l Locator) NotToBeChecked(ctx context.Context, opts ...Option) error {
	return l.expectOne(ctx, "checked", "unchecked", func(st models.ElementState) (bool, string) {
		return !st.Checked, checked(st.Checked)
	}, opts)
}

// ToBeHidden holds when nothing matches or every match is invisible
func (l Locator) ToBeHidden(ctx context.Context, opts ...Option) error {
	return verify.Eventually(ctx, verify.Check{
		Description: fmt.Sprintf("%s visibility", l.path),
		Expected:    "hidden",
		Sample: func(ctx context.Context) (bool, string, error) {
			states, err := l.States(ctx)
			if err != nil {
				return false, "", err
			}
			for _, st := range states {
				if st.Visible {
					return false, visibility(true), nil
				}
			}
			return true, visibility(false), nil
		},
	}, opts...)
}

// NormalizeText collapses whitespace runs and trims, the way rendered text
// is compared
func NormalizeText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func normalizeAll(ss []string) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = NormalizeText(s)
	}
	return out
}

func quoteAll(ss []string) string {
	if len(ss) == 0 {
		return "[]"
	}
	return fmt.Sprintf("%q", ss)
}

func visibility(v bool) string {
	if v {
		return "visible"
	}
	return "hidden"
}

func checked(c bool) string {
	if c {
		return "checked"
	}
	return "unchecked"
}
