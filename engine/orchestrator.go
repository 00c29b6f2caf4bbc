// Package engine fans a search query out to every configured source,
// retries each source independently and folds the outcomes into one
// aggregate result.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/use-agent/shopscout/models"
	"github.com/use-agent/shopscout/sources"
)

// PipelineFunc runs one scrape attempt for one source. It is injected so
// the engine does not depend on the browser stack.
type PipelineFunc func(ctx context.Context, spec sources.Spec, query string) ([]models.ProductRecord, error)

// Orchestrator runs the per-source pipelines for a query concurrently.
// It is safe for concurrent use.
type Orchestrator struct {
	catalogue *sources.Catalogue
	pipeline  PipelineFunc
	retry     Retrier
	metrics   *Metrics
	logger    *slog.Logger
	now       func() time.Time
	newID     func() string
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithMetrics records orchestration metrics into m.
func WithMetrics(m *Metrics) Option { return func(o *Orchestrator) { o.metrics = m } }

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option { return func(o *Orchestrator) { o.logger = l } }

// WithClock overrides the clock used to stamp results.
func WithClock(now func() time.Time) Option { return func(o *Orchestrator) { o.now = now } }

// NewOrchestrator creates an Orchestrator over the catalogue's sources.
func NewOrchestrator(catalogue *sources.Catalogue, pipeline PipelineFunc, retry Retrier, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		catalogue: catalogue,
		pipeline:  pipeline,
		retry:     retry,
		logger:    slog.Default(),
		now:       time.Now,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Sources returns the configured source IDs in order.
func (o *Orchestrator) Sources() []string { return o.catalogue.IDs() }

// Scrape runs every configured source for query.
func (o *Orchestrator) Scrape(ctx context.Context, query string) (*models.AggregateResult, error) {
	return o.ScrapeSources(ctx, query, nil)
}

// ScrapeSources runs the named sources (all when ids is empty) for query.
//
// A blank query is rejected before any browser work. Otherwise the call
// always yields an aggregate: each source succeeds or fails on its own and
// a failed source contributes an empty product list plus its reason.
//
// Cancelling ctx does not abort in-flight sources; every browser operation
// is bounded by its own timeout and its session is always released.
func (o *Orchestrator) ScrapeSources(ctx context.Context, query string, ids []string) (*models.AggregateResult, error) {
	q, err := sources.NormalizeQuery(query)
	if err != nil {
		return nil, err
	}
	specs, err := o.catalogue.Select(ids)
	if err != nil {
		return nil, err
	}

	id := o.newID()
	log := o.logger.With("scrape_id", id)
	log.Info("scrape started", "query", q, "sources", len(specs))

	o.metrics.scrapeStarted()
	defer o.metrics.scrapeFinished()

	ctx = context.WithoutCancel(ctx)
	results := make([]models.SourceResult, len(specs))

	// No shared context: a failing source must never cancel its siblings,
	// so every goroutine reports through its own slot and returns nil.
	var g errgroup.Group
	for i, spec := range specs {
		g.Go(func() error {
			results[i] = o.runSource(ctx, log, spec, q)
			return nil
		})
	}
	_ = g.Wait()

	agg := models.NewAggregateResult(id, q, results, o.now())
	log.Info("scrape finished", "products", agg.Total(), "failed_sources", len(agg.Failures()))
	return agg, nil
}

// runSource drives one source through the retry coordinator and maps the
// outcome, panics included, to a SourceResult.
func (o *Orchestrator) runSource(ctx context.Context, log *slog.Logger, spec sources.Spec, query string) (res models.SourceResult) {
	log = log.With("source", spec.ID)
	start := time.Now()
	res.Source = spec.ID

	defer func() {
		if r := recover(); r != nil {
			res.Products = nil
			res.Err = models.NewScrapeError(models.ErrCodeInternal, "source pipeline panicked", fmt.Errorf("%v", r))
			log.Error("source pipeline panicked", "panic", r)
		}
		res.Duration = time.Since(start)
		code := ""
		if res.Err != nil {
			code = models.CodeOf(res.Err)
			log.Warn("source failed", "attempts", res.Attempts, "code", code, "error", res.Err)
		} else {
			log.Info("source finished", "attempts", res.Attempts, "products", len(res.Products))
		}
		o.metrics.observeSource(spec.ID, res.Duration, len(res.Products), code)
	}()

	r := o.retry
	r.Retryable = retryable
	r.OnRetry = func(attempt int, delay time.Duration, err error) {
		o.metrics.incRetry(spec.ID)
		log.Info("attempt failed, retrying", "attempt", attempt, "delay", delay, "error", err)
	}

	var products []models.ProductRecord
	attempts, err := r.Do(ctx, func(ctx context.Context, attempt int) error {
		res.Attempts = attempt
		o.metrics.incAttempt(spec.ID)
		var perr error
		products, perr = o.pipeline(ctx, spec, query)
		return perr
	})
	res.Attempts = attempts
	if err != nil {
		res.Err = err
		return res
	}
	if products == nil {
		products = []models.ProductRecord{}
	}
	res.Products = products
	return res
}

// retryable rejects failures another attempt cannot fix.
func retryable(err error) bool {
	return !errors.Is(err, models.ErrInvalidQuery)
}
