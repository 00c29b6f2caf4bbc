package scraper

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/use-agent/shopscout/browser"
	"github.com/use-agent/shopscout/config"
	"github.com/use-agent/shopscout/models"
	"github.com/use-agent/shopscout/sources"
)

// Options are the per-attempt limits and debug switches.
type Options struct {
	NavigationTimeout   time.Duration
	ReadyTimeout        time.Duration
	InterstitialTimeout time.Duration

	// Debug captures a screenshot into ScreenshotDir whenever results never render.
	Debug         bool
	ScreenshotDir string
}

// OptionsFrom derives Options from process configuration.
func OptionsFrom(sc config.ScraperConfig) Options {
	return Options{
		NavigationTimeout:   sc.NavigationTimeout,
		ReadyTimeout:        sc.ReadyTimeout,
		InterstitialTimeout: sc.InterstitialTimeout,
		Debug:               sc.Debug,
		ScreenshotDir:       sc.ScreenshotDir,
	}
}

// Pipeline runs single scrape attempts. Each Run owns a fresh session from
// the provider and releases it on every path.
type Pipeline struct {
	provider browser.Provider
	opts     Options
	logger   *slog.Logger
}

// NewPipeline creates a Pipeline. A nil logger uses slog.Default().
func NewPipeline(provider browser.Provider, opts Options, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{provider: provider, opts: opts, logger: logger}
}

// Run performs one attempt of the pipeline for spec:
//
//  1. Acquire    – launch an isolated browser session
//  2. DEFER      – release the session whatever happens next
//  3. Navigate   – load the search page until the network is almost idle
//  4. Challenge  – detect a bot challenge, reload once if present
//  5. Gate       – clear a "continue shopping" interstitial
//  6. Ready      – wait for product containers; a timeout yields no products
//  7. Extract    – map container nodes to product records
func (p *Pipeline) Run(ctx context.Context, spec sources.Spec, query string) ([]models.ProductRecord, error) {
	log := p.logger.With("source", spec.ID)

	target, err := spec.SearchURL(query)
	if err != nil {
		return nil, err
	}

	// ── 1. Acquire ───────────────────────────────────────────────────
	page, err := p.provider.Acquire(ctx)
	if err != nil {
		return nil, asSessionError(err)
	}

	// ── 2. Release on every path ─────────────────────────────────────
	defer func() {
		if rerr := p.provider.Release(page); rerr != nil {
			log.Warn("session release failed", "error", rerr)
		}
	}()

	// ── 3. Navigate ──────────────────────────────────────────────────
	log.Debug("navigating", "url", target)
	if err := Navigate(ctx, page, target, p.opts.NavigationTimeout); err != nil {
		return nil, err
	}

	// ── 4–5. Mitigations ─────────────────────────────────────────────
	m := &Mitigator{
		NavigationTimeout: p.opts.NavigationTimeout,
		StepTimeout:       p.opts.InterstitialTimeout,
		Logger:            log,
	}
	if outcome := m.HandleChallenge(ctx, page, spec.Challenge); outcome != ChallengeAbsent {
		log.Info("challenge handled", "outcome", outcome)
	}
	if outcome := m.ClearInterstitial(ctx, page, spec.Interstitial); outcome != InterstitialAbsent {
		log.Info("interstitial handled", "outcome", outcome)
	}

	// ── 6. Ready ─────────────────────────────────────────────────────
	ready, err := WaitForReady(ctx, page, spec.ReadySelector(), p.opts.ReadyTimeout)
	if err != nil {
		return nil, err
	}
	if !ready {
		log.Info("results did not render in time, returning no products",
			"selector", spec.ReadySelector(), "timeout", p.opts.ReadyTimeout)
		if p.opts.Debug {
			if path, serr := saveDebugScreenshot(ctx, page, p.opts.ScreenshotDir, spec.ID, "not_ready"); serr != nil {
				log.Warn("debug screenshot failed", "error", serr)
			} else {
				log.Info("debug screenshot saved", "path", path)
			}
		}
		return []models.ProductRecord{}, nil
	}

	// ── 7. Extract ───────────────────────────────────────────────────
	products, err := Extract(ctx, page, &spec)
	if err != nil {
		return nil, err
	}
	log.Debug("extraction complete", "products", len(products))
	return products, nil
}

func asSessionError(err error) error {
	var se *models.ScrapeError
	if errors.As(err, &se) {
		return err
	}
	return models.NewScrapeError(models.ErrCodeSessionAcquire, "failed to acquire browser session", err)
}
