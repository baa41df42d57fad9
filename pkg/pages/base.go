// Package pages holds page objects: named views over a document handle that
// declare their element references once and expose intention-revealing
// operations and state checks.
package pages

import (
	"context"
	"fmt"
	"regexp"

	"go.uber.org/zap"

	"dev/bravebird/pagecheck/pkg/document"
	"dev/bravebird/pagecheck/pkg/locator"
	"dev/bravebird/pagecheck/pkg/verify"
)

// Option configures a page object
type Option func(*Base)

// WithVerifyOptions sets the polling options used by every expectation
func WithVerifyOptions(opts ...verify.Option) Option {
	return func(b *Base) { b.verify = append(b.verify, opts...) }
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(b *Base) {
		if l != nil {
			b.logger = l
		}
	}
}

// Base carries what every page object shares: the document handle (not
// owned) and the capability helpers over Clickable and Visible references.
type Base struct {
	doc    document.Handle
	verify []verify.Option
	logger *zap.Logger
}

func newBase(doc document.Handle, opts []Option) Base {
	b := Base{doc: doc, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&b)
	}
	b.verify = append([]verify.Option{verify.WithLogger(b.logger)}, b.verify...)
	return b
}

// Document returns the shared handle
func (b Base) Document() document.Handle { return b.doc }

// VerifyOptions returns the options expectations poll with, followed by extra
func (b Base) VerifyOptions(extra ...verify.Option) []verify.Option {
	out := make([]verify.Option, 0, len(b.verify)+len(extra))
	out = append(out, b.verify...)
	return append(out, extra...)
}

// ExpectVisible waits for any visible reference
func (b Base) ExpectVisible(ctx context.Context, v locator.Visible) error {
	return v.ToBeVisible(ctx, b.verify...)
}

// Click clicks any clickable reference
func (b Base) Click(ctx context.Context, c locator.Clickable) error {
	return c.Click(ctx)
}

// ExpectTitle waits for the document title to match re
func (b Base) ExpectTitle(ctx context.Context, re *regexp.Regexp) error {
	return verify.Eventually(ctx, verify.Check{
		Description: "page title",
		Expected:    fmt.Sprintf("matches /%s/", re),
		Sample: func(ctx context.Context) (bool, string, error) {
			title, err := b.doc.Title(ctx)
			if err != nil {
				return false, "", err
			}
			return re.MatchString(title), fmt.Sprintf("%q", title), nil
		},
	}, b.verify...)
}

// ExpectURL waits for the current URL to match re
func (b Base) ExpectURL(ctx context.Context, re *regexp.Regexp) error {
	return verify.Eventually(ctx, verify.Check{
		Description: "page url",
		Expected:    fmt.Sprintf("matches /%s/", re),
		Sample: func(ctx context.Context) (bool, string, error) {
			u, err := b.doc.URL(ctx)
			if err != nil {
				return false, "", err
			}
			return re.MatchString(u), u, nil
		},
	}, b.verify...)
}
