// Package scraper drives one scrape attempt against one source: it loads
// the search page, clears anti-bot obstacles, waits for results to render
// and turns the rendered DOM into product records.
package scraper

import (
	"context"
	"errors"
	"time"

	"github.com/use-agent/shopscout/browser"
	"github.com/use-agent/shopscout/models"
)

// Navigate loads url and waits for the network to go almost idle, giving
// up after timeout.
func Navigate(ctx context.Context, page browser.Page, url string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := page.Navigate(ctx, url); err != nil {
		return categorizeError(err, "navigation to search page failed")
	}
	return nil
}

// WaitForReady waits up to timeout for selector to match. A timeout is a
// soft failure reported as (false, nil): the page loaded but no results
// rendered. Any other fault is returned as an error.
func WaitForReady(ctx context.Context, page browser.Page, selector string, timeout time.Duration) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := page.WaitElement(ctx, selector)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, context.DeadlineExceeded):
		return false, nil
	default:
		return false, models.NewScrapeError(models.ErrCodeExtraction,
			"failed while waiting for results to render", err)
	}
}

// categorizeError wraps raw browser errors into typed ScrapeErrors so the
// retry layer and API can tell timeouts from network faults.
func categorizeError(err error, msg string) *models.ScrapeError {
	var se *models.ScrapeError
	if errors.As(err, &se) {
		return se
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewScrapeError(models.ErrCodeNavigationTimeout, msg, err)
	case errors.Is(err, context.Canceled):
		return models.NewScrapeError(models.ErrCodeNavigationTimeout, "navigation canceled", err)
	default:
		return models.NewScrapeError(models.ErrCodeNetwork, msg, err)
	}
}
