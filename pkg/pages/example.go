package pages

import (
	"context"
	"regexp"

	"dev/bravebird/pagecheck/pkg/document"
	"dev/bravebird/pagecheck/pkg/locator"
)

const DefaultExampleURL = "https://playwright.dev/"

// ExamplePage is the documentation site's landing page
type ExamplePage struct {
	Base

	URL                 string
	GetStartedLink      locator.Locator
	InstallationHeading locator.Locator
}

func NewExamplePage(doc document.Handle, pageURL string, opts ...Option) *ExamplePage {
	if pageURL == "" {
		pageURL = DefaultExampleURL
	}
	return &ExamplePage{
		Base:                newBase(doc, opts),
		URL:                 pageURL,
		GetStartedLink:      locator.GetByRole(doc, "link", locator.Name("Get Started")),
		InstallationHeading: locator.GetByRole(doc, "heading", locator.Name("Installation")),
	}
}

func (p *ExamplePage) Goto(ctx context.Context) error {
	return p.doc.Navigate(ctx, p.URL)
}

func (p *ExamplePage) ExpectTitle(ctx context.Context) error {
	return p.Base.ExpectTitle(ctx, regexp.MustCompile(`Playwright`))
}

func (p *ExamplePage) ClickGetStarted(ctx context.Context) error {
	return p.Click(ctx, p.GetStartedLink)
}

func (p *ExamplePage) ExpectInstallationHeadingVisible(ctx context.Context) error {
	return p.ExpectVisible(ctx, p.InstallationHeading)
}
