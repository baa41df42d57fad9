package pages

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"dev/bravebird/pagecheck/pkg/document"
	"dev/bravebird/pagecheck/pkg/locator"
	"dev/bravebird/pagecheck/pkg/verify"
)

const DefaultVideoPath = "/watch?v=wM6exo00T5I"

// Player classes while media is playing or paused
const (
	PlayingMode = "playing-mode"
	PausedMode  = "paused-mode"
)

// VideoPage is a video watch page with search, rating buttons and a player
type VideoPage struct {
	Base

	URL             string
	Logo            locator.Locator
	SearchBar       locator.Locator
	SearchInput     locator.Locator
	SearchButton    locator.Locator
	LikeButton      locator.Locator
	DislikeButton   locator.Locator
	SubscribeButton locator.Locator
	Player          locator.Locator
	SignInPopUp     locator.Locator
	SignInButton    locator.Locator
}

// NewVideoPage declares the references. SearchInput and SignInButton are
// derived from the search bar and the sign-in pop-up.
func NewVideoPage(doc document.Handle, pageURL string, opts ...Option) *VideoPage {
	if pageURL == "" {
		pageURL = DefaultVideoPath
	}
	p := &VideoPage{
		Base:            newBase(doc, opts),
		URL:             pageURL,
		Logo:            locator.GetByRole(doc, "link", locator.Name("YouTube Home")),
		SearchBar:       locator.GetByRole(doc, "search"),
		SearchButton:    locator.GetByRole(doc, "button", locator.Name("Search"), locator.Exact()),
		LikeButton:      locator.GetByRole(doc, "button", locator.Name("like this video along with")),
		DislikeButton:   locator.GetByRole(doc, "button", locator.Name("Dislike this video")),
		SubscribeButton: locator.GetByRole(doc, "button", locator.Name("Subscribe")),
		Player:          locator.Locate(doc, ".html5-video-player"),
		SignInPopUp:     locator.Locate(doc, "#contentWrapper").Filter("Sign in to"),
	}
	p.SearchInput = p.SearchBar.Locate("input")
	p.SignInButton = p.SignInPopUp.Locate("#button")
	return p
}

func (p *VideoPage) Goto(ctx context.Context) error {
	return p.doc.Navigate(ctx, p.URL)
}

func (p *VideoPage) ExpectTitle(ctx context.Context) error {
	return p.Base.ExpectTitle(ctx, regexp.MustCompile(`YouTube`))
}

// Search fills the search input and clicks the search button
func (p *VideoPage) Search(ctx context.Context, text string) error {
	if err := p.SearchInput.Fill(ctx, text); err != nil {
		return fmt.Errorf("search %q: %w", text, err)
	}
	if err := p.SearchButton.Click(ctx); err != nil {
		return fmt.Errorf("search %q: %w", text, err)
	}
	return nil
}

func (p *VideoPage) ExpectSignInPopUp(ctx context.Context) error {
	if err := p.ExpectVisible(ctx, p.SignInPopUp); err != nil {
		return err
	}
	return p.ExpectVisible(ctx, p.SignInButton)
}

// TogglePlayback sends the play/pause keyboard shortcut to the player
func (p *VideoPage) TogglePlayback(ctx context.Context) error {
	return p.Player.Press(ctx, "k")
}

// ExpectPlayerState waits for the player to carry class. Media transitions
// are slow, so the caller passes the deadline.
func (p *VideoPage) ExpectPlayerState(ctx context.Context, class string, timeout time.Duration) error {
	return p.Player.ToContainClass(ctx, class, p.VerifyOptions(verify.WithTimeout(timeout))...)
}
