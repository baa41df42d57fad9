// Package memdoc is an in-memory Document Handle. It renders registered
// applications to HTML on every resolve, matches queries with goquery and
// routes actions back to the application, so page objects and verifiers can
// be exercised without a browser.
package memdoc

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"dev/bravebird/pagecheck/pkg/document"
	"dev/bravebird/pagecheck/pkg/models"
)

// Target describes the element an action was performed on, as seen by an App
type Target struct {
	Tag   string
	Attrs map[string]string
	Text  string
	// Index is the data-index of the closest element carrying one, or -1.
	Index int
}

// HasClass reports whether the target's class attribute contains name
func (t Target) HasClass(name string) bool {
	for _, c := range strings.Fields(t.Attrs["class"]) {
		if c == name {
			return true
		}
	}
	return false
}

// App is an application served by a Document at one base URL
type App interface {
	Title() string
	// Render returns the body HTML for the given route (URL fragment).
	Render(now time.Time, route string) string
	// Load is called on every full navigation and reload.
	Load(now time.Time)
	// Act applies an action. A non-empty return value is a URL to navigate to.
	Act(now time.Time, t Target, a models.Action) (string, error)
	// Persisted returns what the app has saved under key, if anything.
	Persisted(now time.Time, key string) ([]byte, bool)
}

// Option configures a Document
type Option func(*Document)

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(d *Document) { d.now = now }
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(d *Document) { d.logger = l }
}

// WithBaseURL sets the URL relative navigations are resolved against
func WithBaseURL(u string) Option {
	return func(d *Document) { d.baseURL = u }
}

// Document is an in-memory page with a history stack
type Document struct {
	mu      sync.Mutex
	now     func() time.Time
	logger  *zap.Logger
	baseURL string

	apps    map[string]App
	current App
	history []string
	index   int
}

var _ document.Handle = (*Document)(nil)

// New creates an empty document positioned at about:blank
func New(opts ...Option) *Document {
	d := &Document{
		now:     time.Now,
		logger:  zap.NewNop(),
		apps:    make(map[string]App),
		current: blank{},
		history: []string{"about:blank"},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Register serves app at rawURL (fragment and query are ignored)
func (d *Document) Register(rawURL string, app App) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.apps[docKey(rawURL)] = app
}

// Navigate performs a full navigation
func (d *Document) Navigate(ctx context.Context, rawURL string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	u, err := d.resolveURL(rawURL)
	if err != nil {
		return err
	}
	d.push(u)
	d.load(u)
	return nil
}

// Reload reloads the current entry
func (d *Document) Reload(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.load(d.history[d.index])
	return nil
}

// GoBack moves one entry back. It is a no-op on the first entry.
func (d *Document) GoBack(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.index == 0 {
		return nil
	}
	from := d.history[d.index]
	d.index--
	to := d.history[d.index]
	if docKey(from) != docKey(to) {
		d.load(to)
	}
	d.logger.Debug("memdoc: back", zap.String("from", from), zap.String("to", to))
	return nil
}

// URL returns the current URL
func (d *Document) URL(ctx context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.history[d.index], nil
}

// Title returns the current document title
func (d *Document) Title(ctx context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.current.Title(), nil
}

// Resolve renders the current app and evaluates path against it
func (d *Document) Resolve(ctx context.Context, path models.Path) ([]document.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	root, err := d.render()
	if err != nil {
		return nil, err
	}
	nodes := resolvePath(root, path)
	out := make([]document.Element, len(nodes))
	for i, n := range nodes {
		out[i] = &element{doc: d, node: n}
	}
	return out, nil
}

// Perform applies action to el through the current app
func (d *Document) Perform(ctx context.Context, el document.Element, action models.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e, ok := el.(*element)
	if !ok || e.doc != d {
		return errors.New("memdoc: element does not belong to this document")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	st := stateOf(e.node)
	if !st.Visible && action.Type != models.ActionDispatch {
		return fmt.Errorf("element <%s> is not visible", st.Tag)
	}

	switch action.Type {
	case models.ActionCheck, models.ActionUncheck:
		if st.Tag != "input" || (st.Attributes["type"] != "checkbox" && st.Attributes["type"] != "radio") {
			return fmt.Errorf("element <%s> is not a checkbox", st.Tag)
		}
		if st.Checked == (action.Type == models.ActionCheck) {
			return nil
		}
		action = models.Action{Type: models.ActionClick}
	case models.ActionFill:
		if st.Tag != "input" && st.Tag != "textarea" {
			return fmt.Errorf("element <%s> is not an <input> or <textarea>", st.Tag)
		}
	}

	target := targetOf(e.node)
	next, err := d.current.Act(d.now(), target, action)
	if err != nil {
		return err
	}
	if next == "" && action.Type == models.ActionClick && target.Tag == "a" {
		next = target.Attrs["href"]
	}
	if next == "" {
		return nil
	}

	u, err := d.resolveURL(next)
	if err != nil {
		return err
	}
	prev := d.history[d.index]
	d.push(u)
	if docKey(u) != docKey(prev) || !strings.Contains(u, "#") {
		d.load(u)
	}
	return nil
}

// ReadPersisted reads from the current app's storage
func (d *Document) ReadPersisted(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	b, ok := d.current.Persisted(d.now(), key)
	return b, ok, nil
}

// HistoryLen returns the number of history entries
func (d *Document) HistoryLen() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.history)
}

// push adds u as a new history entry, dropping any forward entries.
// Navigating to the URL already shown replaces the entry instead.
func (d *Document) push(u string) {
	if d.history[d.index] == u {
		return
	}
	d.history = append(d.history[:d.index+1], u)
	d.index = len(d.history) - 1
}

func (d *Document) load(u string) {
	app, ok := d.apps[docKey(u)]
	if !ok {
		app = blank{}
	}
	d.current = app
	app.Load(d.now())
	d.logger.Debug("memdoc: load", zap.String("url", u))
}

func (d *Document) render() (*html.Node, error) {
	route := ""
	if i := strings.Index(d.history[d.index], "#"); i >= 0 {
		route = d.history[d.index][i:]
	}
	body := d.current.Render(d.now(), route)
	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<html><body>" + body + "</body></html>"))
	if err != nil {
		return nil, fmt.Errorf("memdoc: parse render: %w", err)
	}
	return doc.Selection.Nodes[0], nil
}

func (d *Document) resolveURL(raw string) (string, error) {
	ref, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("memdoc: invalid url %q: %w", raw, err)
	}
	if ref.IsAbs() {
		return ref.String(), nil
	}
	base := d.history[d.index]
	if base == "about:blank" || base == "" {
		base = d.baseURL
	}
	b, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("memdoc: invalid base url %q: %w", base, err)
	}
	return b.ResolveReference(ref).String(), nil
}

// docKey identifies a document: the URL without fragment and query
func docKey(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	u.Fragment = ""
	u.RawQuery = ""
	return strings.TrimSuffix(u.String(), "/")
}

type element struct {
	doc  *Document
	node *html.Node
}

func (e *element) State(ctx context.Context) (models.ElementState, error) {
	if err := ctx.Err(); err != nil {
		return models.ElementState{}, err
	}
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	return stateOf(e.node), nil
}

// blank is the app served for unregistered URLs
type blank struct{}

func (blank) Title() string                                        { return "" }
func (blank) Render(time.Time, string) string                      { return "" }
func (blank) Load(time.Time)                                       {}
func (blank) Persisted(time.Time, string) ([]byte, bool)           { return nil, false }
func (blank) Act(time.Time, Target, models.Action) (string, error) { return "", nil }
