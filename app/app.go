// Package app wires configuration into a ready-to-use scrape stack shared
// by the server and CLI binaries.
package app

import (
	"fmt"
	"log/slog"

	"github.com/use-agent/shopscout/browser"
	"github.com/use-agent/shopscout/config"
	"github.com/use-agent/shopscout/engine"
	"github.com/use-agent/shopscout/scraper"
	"github.com/use-agent/shopscout/sources"
)

// App holds the long-lived components of one process.
type App struct {
	Catalogue    *sources.Catalogue
	Sessions     *browser.Manager
	Orchestrator *engine.Orchestrator
	Metrics      *engine.Metrics
}

// New builds the stack described by cfg. No browser is launched until the
// first scrape acquires a session.
func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	cat, err := sources.Load(cfg.Scraper.SourcesFile)
	if err != nil {
		return nil, fmt.Errorf("load sources: %w", err)
	}
	// One query runs a session per source at once; fewer slots would
	// serialise its sources.
	if n := len(cat.IDs()); cfg.Browser.MaxSessions < n {
		return nil, fmt.Errorf("max sessions (%d) must be at least the number of sources (%d)",
			cfg.Browser.MaxSessions, n)
	}

	sessions := browser.NewManager(
		browser.LaunchConfigFrom(cfg.Browser, cfg.Scraper),
		cfg.Browser.MaxSessions,
	)
	pipeline := scraper.NewPipeline(sessions, scraper.OptionsFrom(cfg.Scraper), logger)
	metrics := engine.NewMetrics()

	retry := engine.Retrier{
		MaxAttempts: cfg.Scraper.MaxAttempts,
		Backoff: engine.Backoff{
			Base: cfg.Scraper.RetryBaseDelay,
			Max:  cfg.Scraper.RetryMaxDelay,
		},
	}

	orch := engine.NewOrchestrator(cat, pipeline.Run, retry,
		engine.WithMetrics(metrics),
		engine.WithLogger(logger),
	)

	return &App{
		Catalogue:    cat,
		Sessions:     sessions,
		Orchestrator: orch,
		Metrics:      metrics,
	}, nil
}
