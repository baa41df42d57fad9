// Package document defines the Document Handle: the only way the rest of
// pagecheck touches a live page. Implementations live in subpackages
// (rodpage for a real browser, memdoc for an in-memory document).
package document

import (
	"context"

	"dev/bravebird/pagecheck/pkg/models"
)

// Element is a live element returned by Resolve. It is only valid until the
// next mutation of the page; callers re-resolve instead of caching.
type Element interface {
	State(ctx context.Context) (models.ElementState, error)
}

// Handle navigates a page, resolves queries against the rendered document,
// performs actions and reads persisted storage.
//
// A Handle belongs to one scenario at a time. Implementations do not need to
// be safe for concurrent use by multiple scenarios.
type Handle interface {
	Navigate(ctx context.Context, url string) error
	Reload(ctx context.Context) error
	GoBack(ctx context.Context) error
	URL(ctx context.Context) (string, error)
	Title(ctx context.Context) (string, error)

	// Resolve returns every element matching path, in document order.
	// Zero matches is not an error.
	Resolve(ctx context.Context, path models.Path) ([]Element, error)

	// Perform runs one action against el. el must come from this handle.
	Perform(ctx context.Context, el Element, action models.Action) error

	// ReadPersisted returns the raw value stored under key and whether it
	// exists.
	ReadPersisted(ctx context.Context, key string) ([]byte, bool, error)
}
