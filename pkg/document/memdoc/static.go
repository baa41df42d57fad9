package memdoc

import (
	"time"

	"dev/bravebird/pagecheck/pkg/models"
)

// StaticPage serves fixed or time-dependent HTML with an optional action hook
type StaticPage struct {
	PageTitle string
	Body      string
	// RenderFunc, when set, is used instead of Body.
	RenderFunc func(now time.Time) string
	// OnAction sees every action. A non-empty return is a URL to navigate to.
	OnAction func(now time.Time, t Target, a models.Action) (string, error)
	// OnLoad runs on every full navigation to the page.
	OnLoad func(now time.Time)
}

var _ App = (*StaticPage)(nil)

func (p *StaticPage) Title() string { return p.PageTitle }

func (p *StaticPage) Render(now time.Time, _ string) string {
	if p.RenderFunc != nil {
		return p.RenderFunc(now)
	}
	return p.Body
}

func (p *StaticPage) Load(now time.Time) {
	if p.OnLoad != nil {
		p.OnLoad(now)
	}
}

func (p *StaticPage) Act(now time.Time, t Target, a models.Action) (string, error) {
	if p.OnAction == nil {
		return "", nil
	}
	return p.OnAction(now, t, a)
}

func (p *StaticPage) Persisted(time.Time, string) ([]byte, bool) { return nil, false }
