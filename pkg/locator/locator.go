// Package locator provides lazy, immutable element references. A Locator is
// only a path of queries; every operation resolves it again against the
// live document, so a Locator stays valid while the page re-renders.
package locator

import (
	"context"

	"dev/bravebird/pagecheck/pkg/document"
	"dev/bravebird/pagecheck/pkg/models"
)

// Clickable is anything that can be clicked
type Clickable interface {
	Click(ctx context.Context) error
}

// Visible is anything whose visibility can be read and awaited
type Visible interface {
	IsVisible(ctx context.Context) (bool, error)
	ToBeVisible(ctx context.Context, opts ...Option) error
}

// Fillable is anything that accepts text input
type Fillable interface {
	Fill(ctx context.Context, value string) error
}

var (
	_ Clickable = Locator{}
	_ Visible   = Locator{}
	_ Fillable  = Locator{}
)

// Locator references zero or more elements of one document
type Locator struct {
	doc  document.Handle
	path models.Path
}

// QueryOption refines a query built by one of the GetBy helpers
type QueryOption func(*models.Query)

// Name sets the accessible name a role query must match
func Name(name string) QueryOption {
	return func(q *models.Query) { q.Name = name }
}

// Exact switches name/text matching to exact, case-sensitive equality
func Exact() QueryOption {
	return func(q *models.Query) { q.Exact = true }
}

// HasText keeps only matches containing text
func HasText(text string) QueryOption {
	return func(q *models.Query) { q.HasText = text }
}

func build(kind models.QueryKind, value string, opts []QueryOption) models.Query {
	q := models.Query{Kind: kind, Value: value}
	for _, opt := range opts {
		opt(&q)
	}
	return q
}

// New returns a locator for q at the document root. No lookup happens.
func New(doc document.Handle, q models.Query) Locator {
	return Locator{doc: doc, path: models.Path{{Query: q}}}
}

// FromPath rebuilds a locator from a path
func FromPath(doc document.Handle, path models.Path) Locator {
	return Locator{doc: doc, path: path}
}

func GetByRole(doc document.Handle, role string, opts ...QueryOption) Locator {
	return New(doc, build(models.QueryRole, role, opts))
}

func GetByLabel(doc document.Handle, text string, opts ...QueryOption) Locator {
	return New(doc, build(models.QueryLabel, text, opts))
}

func GetByPlaceholder(doc document.Handle, text string, opts ...QueryOption) Locator {
	return New(doc, build(models.QueryPlaceholder, text, opts))
}

func GetByText(doc document.Handle, text string, opts ...QueryOption) Locator {
	return New(doc, build(models.QueryText, text, opts))
}

func GetByTestID(doc document.Handle, id string) Locator {
	return New(doc, models.Query{Kind: models.QueryTestID, Value: id})
}

// Locate matches a raw CSS selector
func Locate(doc document.Handle, css string, opts ...QueryOption) Locator {
	return New(doc, build(models.QueryCSS, css, opts))
}

// Path returns the locator's query chain
func (l Locator) Path() models.Path { return l.path }

// Document returns the handle the locator resolves against
func (l Locator) Document() document.Handle { return l.doc }

func (l Locator) String() string { return l.path.String() }

// Refine returns a locator for q scoped inside every current match
func (l Locator) Refine(q models.Query) Locator {
	return Locator{doc: l.doc, path: l.path.With(models.Step{Query: q})}
}

func (l Locator) GetByRole(role string, opts ...QueryOption) Locator {
	return l.Refine(build(models.QueryRole, role, opts))
}

func (l Locator) GetByLabel(text string, opts ...QueryOption) Locator {
	return l.Refine(build(models.QueryLabel, text, opts))
}

func (l Locator) GetByPlaceholder(text string, opts ...QueryOption) Locator {
	return l.Refine(build(models.QueryPlaceholder, text, opts))
}

func (l Locator) GetByText(text string, opts ...QueryOption) Locator {
	return l.Refine(build(models.QueryText, text, opts))
}

func (l Locator) GetByTestID(id string) Locator {
	return l.Refine(models.Query{Kind: models.QueryTestID, Value: id})
}

func (l Locator) Locate(css string, opts ...QueryOption) Locator {
	return l.Refine(build(models.QueryCSS, css, opts))
}

// Filter keeps only current matches whose text contains text. It applies
// after any Nth already set, and repeated filters must all hold.
func (l Locator) Filter(text string) Locator {
	return l.Refine(models.Query{Kind: models.QueryFilter, HasText: text})
}

// Nth narrows the last step to its i-th match; negative counts from the end.
// Out of range is only an error once something is done with the locator.
// Calling Nth again replaces the previous index.
func (l Locator) Nth(i int) Locator {
	return Locator{doc: l.doc, path: l.path.WithNth(i)}
}

func (l Locator) First() Locator { return l.Nth(0) }
func (l Locator) Last() Locator  { return l.Nth(-1) }

// Resolve returns every current match in document order
func (l Locator) Resolve(ctx context.Context) ([]document.Element, error) {
	return l.doc.Resolve(ctx, l.path)
}

// Count returns the number of current matches
func (l Locator) Count(ctx context.Context) (int, error) {
	els, err := l.Resolve(ctx)
	if err != nil {
		return 0, err
	}
	return len(els), nil
}

// States reads every current match
func (l Locator) States(ctx context.Context) ([]models.ElementState, error) {
	els, err := l.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.ElementState, 0, len(els))
	for _, el := range els {
		st, err := el.State(ctx)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, nil
}

// one resolves the locator and insists on a single match
func (l Locator) one(ctx context.Context) (document.Element, error) {
	els, err := l.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	if len(els) != 1 {
		return nil, &models.NotFoundError{Path: l.path, Want: "exactly 1", Got: len(els)}
	}
	return els[0], nil
}

// State reads the single match
func (l Locator) State(ctx context.Context) (models.ElementState, error) {
	el, err := l.one(ctx)
	if err != nil {
		return models.ElementState{}, err
	}
	return el.State(ctx)
}

// IsVisible reports whether the single match is visible right now
func (l Locator) IsVisible(ctx context.Context) (bool, error) {
	st, err := l.State(ctx)
	if err != nil {
		return false, err
	}
	return st.Visible, nil
}
