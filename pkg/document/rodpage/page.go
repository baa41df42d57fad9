// Package rodpage implements document.Handle on top of a go-rod page.
package rodpage

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"

	"dev/bravebird/pagecheck/pkg/document"
	"dev/bravebird/pagecheck/pkg/models"
)

//go:embed resolver.js
var resolverJS string

const stateJS = `function() {
	const attrs = {};
	for (const a of this.attributes) attrs[a.name] = a.value;
	const style = getComputedStyle(this);
	const rect = this.getBoundingClientRect();
	const tag = this.tagName.toLowerCase();
	const hasValue = tag === 'input' || tag === 'textarea' || tag === 'select';
	return {
		tag: tag,
		text: (this.textContent || '').replace(/\s+/g, ' ').trim(),
		class: this.getAttribute('class') || '',
		value: hasValue ? this.value : '',
		visible: this.isConnected && style.visibility !== 'hidden' && style.display !== 'none' && rect.width > 0 && rect.height > 0,
		checked: this.checked === true || this.getAttribute('aria-checked') === 'true',
		attributes: attrs,
	};
}`

const dispatchJS = `function(type) {
	this.dispatchEvent(new Event(type, { bubbles: true }));
	if (type === 'blur') this.dispatchEvent(new FocusEvent('focusout', { bubbles: true }));
}`

const persistedJS = `(key) => localStorage.getItem(key)`

var errForeignElement = errors.New("element does not belong to this page")

// Page is a document.Handle backed by a rod page
type Page struct {
	page   *rod.Page
	logger *zap.Logger
}

var _ document.Handle = (*Page)(nil)

// New wraps p. A nil logger disables logging.
func New(p *rod.Page, logger *zap.Logger) *Page {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Page{page: p, logger: logger}
}

// Rod exposes the underlying rod page
func (p *Page) Rod() *rod.Page { return p.page }

type element struct {
	owner *Page
	el    *rod.Element
}

func (e *element) State(ctx context.Context) (models.ElementState, error) {
	var st models.ElementState
	res, err := e.el.Context(ctx).Eval(stateJS)
	if err != nil {
		return st, fmt.Errorf("failed to read element state: %w", err)
	}
	if err := res.Value.Unmarshal(&st); err != nil {
		return st, fmt.Errorf("failed to decode element state: %w", err)
	}
	return st, nil
}

// ==================== Navigation ====================

func (p *Page) Navigate(ctx context.Context, url string) error {
	page := p.page.Context(ctx)
	if err := page.Navigate(url); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	if err := page.WaitLoad(); err != nil {
		return fmt.Errorf("failed waiting for %s to load: %w", url, err)
	}
	p.logger.Debug("navigated", zap.String("url", url))
	return nil
}

func (p *Page) Reload(ctx context.Context) error {
	page := p.page.Context(ctx)
	if err := page.Reload(); err != nil {
		return fmt.Errorf("failed to reload: %w", err)
	}
	return page.WaitLoad()
}

func (p *Page) GoBack(ctx context.Context) error {
	if err := p.page.Context(ctx).NavigateBack(); err != nil {
		return fmt.Errorf("failed to navigate back: %w", err)
	}
	return nil
}

func (p *Page) URL(ctx context.Context) (string, error) {
	info, err := p.page.Context(ctx).Info()
	if err != nil {
		return "", err
	}
	return info.URL, nil
}

func (p *Page) Title(ctx context.Context) (string, error) {
	info, err := p.page.Context(ctx).Info()
	if err != nil {
		return "", err
	}
	return info.Title, nil
}

// ==================== Resolution ====================

func (p *Page) Resolve(ctx context.Context, path models.Path) ([]document.Element, error) {
	els, err := p.page.Context(ctx).ElementsByJS(rod.Eval(resolverJS, path))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	out := make([]document.Element, len(els))
	for i, el := range els {
		out[i] = &element{owner: p, el: el}
	}
	return out, nil
}

// ==================== Actions ====================

func (p *Page) Perform(ctx context.Context, el document.Element, action models.Action) error {
	e, ok := el.(*element)
	if !ok || e.owner != p {
		return errForeignElement
	}
	rel := e.el.Context(ctx)

	switch action.Type {
	case models.ActionClick:
		return rel.Click(proto.InputMouseButtonLeft, 1)

	case models.ActionDblClick:
		return rel.Click(proto.InputMouseButtonLeft, 2)

	case models.ActionFill:
		if err := rel.SelectAllText(); err != nil {
			return err
		}
		if action.Value == "" {
			return rel.Type(input.Backspace)
		}
		return rel.Input(action.Value)

	case models.ActionCheck, models.ActionUncheck:
		st, err := e.State(ctx)
		if err != nil {
			return err
		}
		if st.Checked == (action.Type == models.ActionCheck) {
			return nil
		}
		return rel.Click(proto.InputMouseButtonLeft, 1)

	case models.ActionPress:
		key, err := keyFromName(action.Value)
		if err != nil {
			return err
		}
		return rel.Type(key)

	case models.ActionDispatch:
		_, err := rel.Eval(dispatchJS, action.Value)
		return err

	case models.ActionFocus:
		return rel.Focus()

	case models.ActionHover:
		return rel.Hover()

	default:
		return fmt.Errorf("unsupported action type: %s", action.Type)
	}
}

// keyFromName converts a key name to a rod input key. Names it does not
// know are an error rather than a guess.
func keyFromName(value string) (input.Key, error) {
	switch strings.ToLower(value) {
	case "enter":
		return input.Enter, nil
	case "tab":
		return input.Tab, nil
	case "escape":
		return input.Escape, nil
	case "backspace":
		return input.Backspace, nil
	case "delete":
		return input.Delete, nil
	case "arrowup":
		return input.ArrowUp, nil
	case "arrowdown":
		return input.ArrowDown, nil
	case "arrowleft":
		return input.ArrowLeft, nil
	case "arrowright":
		return input.ArrowRight, nil
	case "home":
		return input.Home, nil
	case "end":
		return input.End, nil
	case "pageup":
		return input.PageUp, nil
	case "pagedown":
		return input.PageDown, nil
	case "space":
		return input.Key(' '), nil
	}
	if r := []rune(value); len(r) == 1 {
		return input.Key(r[0]), nil
	}
	return 0, fmt.Errorf("unsupported key %q", value)
}

// ==================== Storage ====================

func (p *Page) ReadPersisted(ctx context.Context, key string) ([]byte, bool, error) {
	res, err := p.page.Context(ctx).Eval(persistedJS, key)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read local storage: %w", err)
	}
	if res.Value.Nil() {
		return nil, false, nil
	}
	return []byte(res.Value.Str()), true, nil
}

// Screenshot captures the current viewport as PNG
func (p *Page) Screenshot(ctx context.Context) ([]byte, error) {
	data, err := p.page.Context(ctx).Screenshot(true, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to take screenshot: %w", err)
	}
	return data, nil
}
