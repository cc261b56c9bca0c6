// Package runner owns the lifecycle of one scrape run: metrics start and
// finalization, per-task orchestration, sink fan-out, and terminal
// notifications.
package runner

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/propfetch/rightmove-scraper/internal/metrics"
	"github.com/propfetch/rightmove-scraper/internal/scraper"
	"github.com/propfetch/rightmove-scraper/internal/webhook"
)

// PageFactory opens a page accessor for one task. The returned release
// function must be called when the task completes.
type PageFactory interface {
	Open(ctx context.Context, url string) (scraper.PageAccessor, func(), error)
}

// Publisher optionally mirrors the terminal run event to a message topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// ItemScraped is the payload of an ITEM_SCRAPED event.
type ItemScraped struct {
	URL        string `json:"url"`
	PropertyID string `json:"property_id"`
}

// ItemFailed is the payload of an ITEM_FAILED event.
type ItemFailed struct {
	URL   string `json:"url"`
	Error string `json:"error"`
}

// RunFinished is the payload of the terminal RUN_FINISHED event.
type RunFinished struct {
	Status  scraper.RunStatus `json:"status"`
	Metrics *metrics.Snapshot `json:"metrics,omitempty"`
	Error   string            `json:"error,omitempty"`
}

// Config carries optional runner wiring.
type Config struct {
	// Topic, when set with a Publisher, receives the RUN_FINISHED payload.
	Topic string
}

// Runner drives one run end-to-end. Per-task failures are non-fatal to the
// run; only configuration faults and context cancellation end it early.
type Runner struct {
	orchestrator *scraper.Orchestrator
	recorder     *metrics.Recorder
	sink         scraper.Sink
	events       *webhook.Dispatcher
	pages        PageFactory
	publisher    Publisher
	clock        scraper.Clock
	cfg          Config
	logger       *zap.Logger
}

// New constructs a Runner. The publisher may be nil.
func New(
	orchestrator *scraper.Orchestrator,
	recorder *metrics.Recorder,
	sink scraper.Sink,
	events *webhook.Dispatcher,
	pages PageFactory,
	publisher Publisher,
	clock scraper.Clock,
	cfg Config,
	logger *zap.Logger,
) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		orchestrator: orchestrator,
		recorder:     recorder,
		sink:         sink,
		events:       events,
		pages:        pages,
		publisher:    publisher,
		clock:        clock,
		cfg:          cfg,
		logger:       logger,
	}
}

// Run processes each task once and returns the finalized metrics snapshot.
// On a run-level fault the snapshot is still finalized best-effort, the
// RUN_FINISHED{FAILED} event is emitted, and the error is returned so the
// host can exit non-zero.
func (r *Runner) Run(ctx context.Context, tasks []scraper.Task) (metrics.Snapshot, error) {
	r.recorder.StartRun()

	var runErr error
	for _, task := range tasks {
		if ctx.Err() != nil {
			runErr = ctx.Err()
			break
		}
		if err := r.processTask(ctx, task); err != nil {
			// Configuration faults are unrecoverable; everything else is
			// isolated to the task.
			if scraper.KindOf(err) == scraper.KindConfiguration {
				runErr = err
				break
			}
		}
	}

	// Finalization still runs after cancellation, so the snapshot and the
	// terminal event are attempted on a detached context.
	finalCtx := context.WithoutCancel(ctx)
	snapshot := r.recorder.Finalize()
	if err := r.sink.PushReport(finalCtx, "performance-metrics", snapshot); err != nil {
		r.logger.Warn("metrics snapshot not persisted", zap.Error(err))
	}

	if runErr != nil {
		r.finish(finalCtx, RunFinished{Status: scraper.RunFailed, Error: runErr.Error()})
		return snapshot, runErr
	}
	r.finish(finalCtx, RunFinished{Status: scraper.RunSuccess, Metrics: &snapshot})
	return snapshot, nil
}

func (r *Runner) processTask(ctx context.Context, task scraper.Task) error {
	page, release, err := r.pages.Open(ctx, task.URL)
	if err != nil {
		r.reportFailure(ctx, task, err)
		return err
	}
	defer release()

	record, err := r.orchestrator.Process(ctx, page, task.Source)
	if err != nil {
		r.reportFailure(ctx, task, err)
		return err
	}

	if err := r.sink.PushRecord(ctx, record); err != nil {
		r.reportFailure(ctx, task, err)
		return err
	}

	r.recorder.RecordSuccess()
	r.logger.Info("listing scraped",
		zap.String("url", task.URL),
		zap.String("property_id", record.BasicInfo.ID),
	)
	r.events.Emit(ctx, webhook.EventItemScraped, ItemScraped{
		URL:        task.URL,
		PropertyID: record.BasicInfo.ID,
	})
	return nil
}

// reportFailure records the task failure, persists the structured diagnostic,
// and emits ITEM_FAILED. The run continues afterwards.
func (r *Runner) reportFailure(ctx context.Context, task scraper.Task, taskErr error) {
	r.recorder.RecordFailure()
	r.logger.Error("task failed",
		zap.String("url", task.URL),
		zap.String("kind", string(scraper.KindOf(taskErr))),
		zap.Error(taskErr),
	)
	entry := scraper.DebugEntry{
		URL:       task.URL,
		ErrorKind: string(scraper.KindOf(taskErr)),
		Message:   taskErr.Error(),
		Timestamp: r.clock.Now(),
	}
	if err := r.sink.PushReport(ctx, "debug", entry); err != nil {
		r.logger.Warn("debug record not persisted", zap.String("url", task.URL), zap.Error(err))
	}
	r.events.Emit(ctx, webhook.EventItemFailed, ItemFailed{
		URL:   task.URL,
		Error: taskErr.Error(),
	})
}

func (r *Runner) finish(ctx context.Context, body RunFinished) {
	r.events.Emit(ctx, webhook.EventRunFinished, body)
	if r.publisher == nil || r.cfg.Topic == "" {
		return
	}
	if _, err := r.publisher.Publish(ctx, r.cfg.Topic, body); err != nil && !errors.Is(err, context.Canceled) {
		r.logger.Warn("run event publish failed", zap.Error(err))
	}
}
