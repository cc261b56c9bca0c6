package scraper

import (
	"context"
	"time"
)

// PageAccessor is the DOM query capability exposed by the rendering engine.
// It is stateless per call and has no retry awareness; retry is owned by the
// Orchestrator. Implementations own the browser tab for the duration of one
// task.
type PageAccessor interface {
	// URL returns the page target being accessed.
	URL() string
	// BlockResourceTypes configures request filtering so non-essential
	// resources (images, stylesheets, fonts) are never fetched.
	BlockResourceTypes(ctx context.Context, types ...string) error
	// WatchCrashes installs a renderer crash observer. After a crash every
	// subsequent accessor call fails with a PAGE_CRASH error.
	WatchCrashes(ctx context.Context) error
	// WaitVisible blocks until the selector is rendered or the timeout fires.
	WaitVisible(ctx context.Context, selector string, timeout time.Duration) error
	// ExtractJSON evaluates a page expression and unmarshals its JSON result.
	ExtractJSON(ctx context.Context, expr string, out any) error
	// HTML returns the current document markup, used for failure snapshots.
	HTML(ctx context.Context) (string, error)
}

// Strategy extracts a RawRecord for one listing source.
type Strategy interface {
	Source() string
	Scrape(ctx context.Context, page PageAccessor) (RawRecord, error)
}

// Validator turns a RawRecord into a CleanRecord or a typed validation error.
type Validator interface {
	Validate(raw RawRecord) (CleanRecord, error)
}

// Sink is the append-only run output store. PushRecord persists validated
// listings; PushReport persists auxiliary entries (debug records, webhook
// failures, the final metrics snapshot) under a report key.
type Sink interface {
	PushRecord(ctx context.Context, record CleanRecord) error
	PushReport(ctx context.Context, key string, report any) error
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}
