// Package webhook delivers run lifecycle events to configured subscribers
// with bounded retry. Delivery failures are escalated to the run sink and
// never propagate to the extraction pipeline.
package webhook

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/propfetch/rightmove-scraper/internal/metrics"
)

// EventKind names a lifecycle event subscribers can register for.
type EventKind string

// Events emitted over the life of a run.
const (
	EventItemScraped EventKind = "ITEM_SCRAPED"
	EventItemFailed  EventKind = "ITEM_FAILED"
	EventRunFinished EventKind = "RUN_FINISHED"
)

// Subscription is a webhook target filtered by event kind. Loaded once at run
// start and read-only afterward.
type Subscription struct {
	URL        string      `json:"url" mapstructure:"url"`
	EventTypes []EventKind `json:"event_types" mapstructure:"event_types"`
}

func (s Subscription) wants(event EventKind) bool {
	for _, e := range s.EventTypes {
		if e == event {
			return true
		}
	}
	return false
}

// Transport sends one JSON payload to a URL. Implementations are stateless
// per call; retry is owned by the Dispatcher.
type Transport interface {
	SendJSON(ctx context.Context, url string, body any, headers map[string]string, timeout time.Duration) error
}

// FailureSink receives terminal delivery-failure entries. The run Sink
// satisfies this interface.
type FailureSink interface {
	PushReport(ctx context.Context, key string, report any) error
}

// DeliveryFailure is the terminal failure entry written to the sink after the
// retry bound is exhausted for one subscription.
type DeliveryFailure struct {
	Event    EventKind `json:"event"`
	URL      string    `json:"url"`
	Error    string    `json:"error"`
	Attempts int       `json:"attempts"`
}

// Config controls retry behavior and request identification.
type Config struct {
	// RetryCount is the total number of attempts per subscription (default 3).
	RetryCount int
	// BaseDelay grows linearly with the attempt number (default 1s).
	BaseDelay time.Duration
	// Timeout bounds each individual send (default 30s).
	Timeout time.Duration
	// RunID identifies the run in payloads and headers.
	RunID string
}

const (
	defaultRetryCount = 3
	defaultBaseDelay  = time.Second
	defaultTimeout    = 30 * time.Second
)

// Dispatcher fans lifecycle events out to matching subscriptions. Each
// subscription is attempted independently; one target's failure never
// affects another's delivery.
type Dispatcher struct {
	subs      []Subscription
	transport Transport
	sink      FailureSink
	cfg       Config
	logger    *zap.Logger
}

// payload is the wire body sent for every attempt.
type payload struct {
	Event     EventKind `json:"event"`
	Payload   any       `json:"payload"`
	Timestamp string    `json:"timestamp"`
	RunID     string    `json:"run_id"`
}

// NewDispatcher configures a Dispatcher for the given subscriptions.
func NewDispatcher(subs []Subscription, transport Transport, sink FailureSink, cfg Config, logger *zap.Logger) *Dispatcher {
	if cfg.RetryCount <= 0 {
		cfg.RetryCount = defaultRetryCount
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = defaultBaseDelay
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		subs:      append([]Subscription(nil), subs...),
		transport: transport,
		sink:      sink,
		cfg:       cfg,
		logger:    logger,
	}
}

// Emit delivers the event to every matching subscription, retrying each one
// independently. It resolves all deliveries before returning and never
// returns an error: terminal failures are recorded through the sink instead.
func (d *Dispatcher) Emit(ctx context.Context, event EventKind, body any) {
	if d == nil {
		return
	}
	for _, sub := range d.subs {
		if !sub.wants(event) {
			continue
		}
		d.deliver(ctx, sub, event, body)
	}
}

func (d *Dispatcher) deliver(ctx context.Context, sub Subscription, event EventKind, body any) {
	wire := payload{
		Event:     event,
		Payload:   body,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		RunID:     d.cfg.RunID,
	}
	headers := map[string]string{
		"Content-Type":    "application/json",
		"X-Webhook-Event": string(event),
		"X-Run-Id":        d.cfg.RunID,
	}

	var lastErr error
	for attempt := 1; attempt <= d.cfg.RetryCount; attempt++ {
		err := d.transport.SendJSON(ctx, sub.URL, wire, headers, d.cfg.Timeout)
		if err == nil {
			metrics.ObserveWebhookDelivery("success")
			return
		}
		lastErr = err
		metrics.ObserveWebhookDelivery("failure")
		d.logger.Warn("webhook delivery failed",
			zap.String("url", sub.URL),
			zap.String("event", string(event)),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		if attempt < d.cfg.RetryCount {
			if sleepErr := sleep(ctx, time.Duration(attempt)*d.cfg.BaseDelay); sleepErr != nil {
				break
			}
		}
	}

	d.escalate(ctx, sub, event, lastErr)
}

// escalate records the terminal failure in the run output instead of raising.
func (d *Dispatcher) escalate(ctx context.Context, sub Subscription, event EventKind, lastErr error) {
	entry := DeliveryFailure{
		Event:    event,
		URL:      sub.URL,
		Attempts: d.cfg.RetryCount,
	}
	if lastErr != nil {
		entry.Error = lastErr.Error()
	}
	if d.sink == nil {
		return
	}
	if err := d.sink.PushReport(ctx, "webhook-failure", entry); err != nil {
		d.logger.Error("webhook failure record not persisted",
			zap.String("url", sub.URL),
			zap.Error(err),
		)
	}
}

func sleep(ctx context.Context, delay time.Duration) error {
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
