package scraper

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/propfetch/rightmove-scraper/internal/archive"
	"github.com/propfetch/rightmove-scraper/internal/metrics"
)

// Resource types filtered out before extraction. Listings render fine without
// them and skipping them cuts page weight substantially.
var blockedResourceTypes = []string{"image", "stylesheet", "font"}

// Operation names recorded per pipeline phase.
const (
	opPreprocess = "preprocess"
	opScrape     = "scrape"
	opValidation = "validation"
)

// DefaultRetryDelays is the increasing wait schedule applied between
// extraction attempts: attempt n waits delays[n-1] before re-running.
var DefaultRetryDelays = []time.Duration{time.Second, 2 * time.Second, 5 * time.Second}

// Orchestrator drives one extraction: strategy resolution, page preparation,
// extraction, validation, with retry-with-backoff on transient failure.
type Orchestrator struct {
	strategies  map[string]Strategy
	validator   Validator
	recorder    *metrics.Recorder
	archive     archive.Provider
	retryDelays []time.Duration
	logger      *zap.Logger
}

// NewOrchestrator registers the given strategies and wires the collaborators.
// A nil snapshots provider disables failure archiving.
func NewOrchestrator(
	strategies []Strategy,
	validator Validator,
	recorder *metrics.Recorder,
	snapshots archive.Provider,
	retryDelays []time.Duration,
	logger *zap.Logger,
) *Orchestrator {
	if len(retryDelays) == 0 {
		retryDelays = DefaultRetryDelays
	}
	if snapshots == nil {
		snapshots = archive.NoOp{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	bySource := make(map[string]Strategy, len(strategies))
	for _, s := range strategies {
		bySource[s.Source()] = s
	}
	return &Orchestrator{
		strategies:  bySource,
		validator:   validator,
		recorder:    recorder,
		archive:     snapshots,
		retryDelays: append([]time.Duration(nil), retryDelays...),
		logger:      logger,
	}
}

// Process extracts, validates, and normalizes one listing from the page.
// Transient failures are retried per the delay schedule; configuration and
// validation failures are deterministic and returned immediately.
func (o *Orchestrator) Process(ctx context.Context, page PageAccessor, source string) (CleanRecord, error) {
	strategy, ok := o.strategies[source]
	if !ok {
		// Configuration errors are never transient, so no retry.
		return CleanRecord{}, NewError(KindConfiguration, fmt.Sprintf("unsupported source: %s", source), nil)
	}

	var lastErr error
	for attempt := 0; attempt <= len(o.retryDelays); attempt++ {
		if attempt > 0 {
			delay := o.retryDelays[attempt-1]
			o.logger.Debug("retrying extraction",
				zap.String("url", page.URL()),
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
			)
			if err := sleep(ctx, delay); err != nil {
				return CleanRecord{}, o.annotate(NewError(KindScrape, "extraction canceled", err), page)
			}
		}

		record, err := o.attempt(ctx, strategy, page)
		if err == nil {
			return record, nil
		}
		if !IsRetryable(err) {
			return CleanRecord{}, err
		}
		lastErr = err
	}

	o.archiveSnapshot(ctx, page)
	return CleanRecord{}, o.annotate(lastErr, page)
}

// attempt runs one full preprocess/extract/validate cycle.
func (o *Orchestrator) attempt(ctx context.Context, strategy Strategy, page PageAccessor) (CleanRecord, error) {
	if err := o.preprocess(ctx, page); err != nil {
		return CleanRecord{}, err
	}

	scrapeStart := o.recorder.StartOperation(opScrape)
	raw, err := strategy.Scrape(ctx, page)
	o.recorder.EndOperation(opScrape, scrapeStart, err)
	if err != nil {
		o.logger.Warn("extraction attempt failed",
			zap.String("url", page.URL()),
			zap.String("kind", string(KindOf(err))),
			zap.Error(err),
		)
		return CleanRecord{}, err
	}

	validationStart := o.recorder.StartOperation(opValidation)
	record, err := o.validator.Validate(raw)
	o.recorder.EndOperation(opValidation, validationStart, err)
	if err != nil {
		// Validation is deterministic given the same rendered page.
		return CleanRecord{}, err
	}
	return record, nil
}

// preprocess applies resource filtering and crash observation to the page.
func (o *Orchestrator) preprocess(ctx context.Context, page PageAccessor) error {
	start := o.recorder.StartOperation(opPreprocess)
	err := o.runPreprocess(ctx, page)
	o.recorder.EndOperation(opPreprocess, start, err)
	if err != nil {
		return NewError(KindPreprocessing, "failed to preprocess page", err)
	}
	return nil
}

func (o *Orchestrator) runPreprocess(ctx context.Context, page PageAccessor) error {
	if err := page.BlockResourceTypes(ctx, blockedResourceTypes...); err != nil {
		return fmt.Errorf("block resource types: %w", err)
	}
	if err := page.WatchCrashes(ctx); err != nil {
		return fmt.Errorf("watch crashes: %w", err)
	}
	return nil
}

// annotate stamps the terminal error with the page URL and failure time.
func (o *Orchestrator) annotate(err error, page PageAccessor) error {
	se, ok := err.(*Error)
	if !ok {
		se = NewError(KindScrape, "extraction failed", err)
	}
	if se.URL == "" {
		se.URL = page.URL()
	}
	se.Timestamp = time.Now().UTC()
	return se
}

// archiveSnapshot best-effort stores the page markup after retries exhaust.
func (o *Orchestrator) archiveSnapshot(ctx context.Context, page PageAccessor) {
	html, err := page.HTML(ctx)
	if err != nil || html == "" {
		return
	}
	name := fmt.Sprintf("failures/%s/%d.html", metricsSafeName(page.URL()), time.Now().UTC().UnixNano())
	uri, err := o.archive.Save(ctx, name, "text/html; charset=utf-8", []byte(html))
	if err != nil {
		o.logger.Warn("snapshot archive failed", zap.String("url", page.URL()), zap.Error(err))
		return
	}
	if uri != "" {
		o.logger.Info("archived failure snapshot", zap.String("url", page.URL()), zap.String("uri", uri))
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
