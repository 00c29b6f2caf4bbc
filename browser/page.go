// Package browser owns headless browser sessions: launching a hardened
// browser process per scrape attempt, filtering its network traffic, and
// tearing every piece of it down again.
package browser

import "context"

// Page is the slice of a browser tab that scraping needs. Every method is
// bounded by ctx; when ctx expires the method returns ctx.Err() (possibly
// wrapped).
type Page interface {
	// Navigate loads url and waits until the network is almost idle.
	Navigate(ctx context.Context, url string) error

	// Reload reloads the current document and waits for it to settle.
	Reload(ctx context.Context) error

	// Title returns document.title.
	Title(ctx context.Context) (string, error)

	// BodyText returns the visible text of the document body.
	BodyText(ctx context.Context) (string, error)

	// Has reports whether selector matches any node right now, without waiting.
	Has(ctx context.Context, selector string) (bool, error)

	// Click clicks the first node matching selector and waits for the
	// navigation it triggers to settle.
	Click(ctx context.Context, selector string) error

	// WaitElement blocks until selector matches at least one node.
	WaitElement(ctx context.Context, selector string) error

	// HTML returns the serialized DOM.
	HTML(ctx context.Context) (string, error)

	// Screenshot captures the full page as PNG.
	Screenshot(ctx context.Context) ([]byte, error)
}

// Provider hands out exclusively owned pages. Every acquired page must be
// released exactly once, on every path.
type Provider interface {
	Acquire(ctx context.Context) (Page, error)
	Release(p Page) error
}
