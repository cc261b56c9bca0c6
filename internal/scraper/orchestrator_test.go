package scraper

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/propfetch/rightmove-scraper/internal/metrics"
)

var testRetryDelays = []time.Duration{time.Millisecond, time.Millisecond, time.Millisecond}

type fakePage struct {
	url      string
	blockErr error
	watchErr error
	html     string
	htmlErr  error
}

func (p *fakePage) URL() string { return p.url }

func (p *fakePage) BlockResourceTypes(_ context.Context, _ ...string) error { return p.blockErr }

func (p *fakePage) WatchCrashes(context.Context) error { return p.watchErr }

func (p *fakePage) WaitVisible(context.Context, string, time.Duration) error { return nil }

func (p *fakePage) ExtractJSON(context.Context, string, any) error { return nil }

func (p *fakePage) HTML(context.Context) (string, error) { return p.html, p.htmlErr }

// fakeStrategy fails the first failures calls, then returns raw.
type fakeStrategy struct {
	source   string
	failures int
	err      error
	raw      RawRecord
	calls    int
}

func (s *fakeStrategy) Source() string { return s.source }

func (s *fakeStrategy) Scrape(context.Context, PageAccessor) (RawRecord, error) {
	s.calls++
	if s.calls <= s.failures {
		return nil, s.err
	}
	return s.raw, nil
}

type stubValidator struct {
	record CleanRecord
	err    error
	calls  int
}

func (v *stubValidator) Validate(RawRecord) (CleanRecord, error) {
	v.calls++
	return v.record, v.err
}

type fakeArchive struct {
	names []string
	data  [][]byte
	err   error
}

func (a *fakeArchive) Save(_ context.Context, objectName, _ string, data []byte) (string, error) {
	a.names = append(a.names, objectName)
	a.data = append(a.data, data)
	if a.err != nil {
		return "", a.err
	}
	return "file:///" + objectName, nil
}

func newTestOrchestrator(strategy Strategy, validator Validator, store *fakeArchive) (*Orchestrator, *metrics.Recorder) {
	recorder := metrics.NewRecorder(time.Hour)
	o := NewOrchestrator([]Strategy{strategy}, validator, recorder, store, testRetryDelays, nil)
	return o, recorder
}

func operationStats(t *testing.T, snap metrics.Snapshot, name string) metrics.OperationStats {
	t.Helper()
	for _, op := range snap.Operations {
		if op.Name == name {
			return op
		}
	}
	t.Fatalf("operation %q not recorded", name)
	return metrics.OperationStats{}
}

func TestProcessUnknownSourceIsConfigurationError(t *testing.T) {
	t.Parallel()

	strategy := &fakeStrategy{source: "rightmove"}
	o, _ := newTestOrchestrator(strategy, &stubValidator{}, &fakeArchive{})

	_, err := o.Process(context.Background(), &fakePage{url: "https://example.com/p/1"}, "zoopla")
	require.Error(t, err)
	require.Equal(t, KindConfiguration, KindOf(err))
	require.Zero(t, strategy.calls)
}

func TestProcessRetriesTransientFailures(t *testing.T) {
	t.Parallel()

	strategy := &fakeStrategy{
		source:   "rightmove",
		failures: 2,
		err:      NewError(KindScrape, "timeout waiting for property details", nil),
		raw:      RawRecord{"basicInfo": map[string]any{"id": "1"}},
	}
	validator := &stubValidator{record: CleanRecord{}}
	o, recorder := newTestOrchestrator(strategy, validator, &fakeArchive{})

	_, err := o.Process(context.Background(), &fakePage{url: "https://example.com/p/1"}, "rightmove")
	require.NoError(t, err)
	require.Equal(t, 3, strategy.calls)
	require.Equal(t, 1, validator.calls)

	snap := recorder.Finalize()
	scrape := operationStats(t, snap, "scrape")
	require.Equal(t, int64(3), scrape.Count)
	require.InDelta(t, 100.0*2/3, scrape.FailureRate, 0.01)
	require.Equal(t, int64(3), operationStats(t, snap, "preprocess").Count)
	require.Equal(t, int64(1), operationStats(t, snap, "validation").Count)
}

func TestProcessExhaustsRetriesAndAnnotates(t *testing.T) {
	t.Parallel()

	strategy := &fakeStrategy{
		source:   "rightmove",
		failures: 10,
		err:      NewError(KindScrape, "timeout waiting for property details", nil),
	}
	store := &fakeArchive{}
	o, recorder := newTestOrchestrator(strategy, &stubValidator{}, store)

	page := &fakePage{url: "https://example.com/p/1", html: "<html><body>partial</body></html>"}
	_, err := o.Process(context.Background(), page, "rightmove")
	require.Error(t, err)

	// One initial attempt plus one per retry delay.
	require.Equal(t, len(testRetryDelays)+1, strategy.calls)

	se := err.(*Error)
	require.Equal(t, KindScrape, se.Kind)
	require.Equal(t, page.url, se.URL)
	require.False(t, se.Timestamp.IsZero())

	// The rendered markup is archived once after the final attempt.
	require.Len(t, store.names, 1)
	require.Equal(t, []byte(page.html), store.data[0])

	snap := recorder.Finalize()
	scrape := operationStats(t, snap, "scrape")
	require.Equal(t, int64(4), scrape.Count)
	require.InDelta(t, 100.0, scrape.FailureRate, 0.01)
}

func TestProcessDoesNotRetryValidationFailures(t *testing.T) {
	t.Parallel()

	strategy := &fakeStrategy{source: "rightmove", raw: RawRecord{}}
	validator := &stubValidator{err: NewValidationError("basicInfo", []string{"id"})}
	store := &fakeArchive{}
	o, _ := newTestOrchestrator(strategy, validator, store)

	_, err := o.Process(context.Background(), &fakePage{url: "https://example.com/p/1"}, "rightmove")
	require.Error(t, err)
	require.Equal(t, KindValidation, KindOf(err))
	require.Equal(t, 1, strategy.calls)
	require.Empty(t, store.names)
}

func TestProcessRetriesPreprocessingFailures(t *testing.T) {
	t.Parallel()

	strategy := &fakeStrategy{source: "rightmove", raw: RawRecord{}}
	o, recorder := newTestOrchestrator(strategy, &stubValidator{}, &fakeArchive{})

	page := &fakePage{url: "https://example.com/p/1", blockErr: errors.New("session closed")}
	_, err := o.Process(context.Background(), page, "rightmove")
	require.Error(t, err)
	require.Equal(t, KindPreprocessing, KindOf(err))
	require.Zero(t, strategy.calls)

	snap := recorder.Finalize()
	require.Equal(t, int64(len(testRetryDelays)+1), operationStats(t, snap, "preprocess").Count)
}

func TestProcessStopsWhenContextCanceled(t *testing.T) {
	t.Parallel()

	strategy := &fakeStrategy{
		source:   "rightmove",
		failures: 10,
		err:      NewError(KindScrape, "timeout waiting for property details", nil),
	}
	o, _ := newTestOrchestrator(strategy, &stubValidator{}, &fakeArchive{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := o.Process(ctx, &fakePage{url: "https://example.com/p/1"}, "rightmove")
	require.Error(t, err)
	require.ErrorIs(t, err, context.Canceled)
	// The first attempt runs without a delay; cancellation stops the retry loop.
	require.Equal(t, 1, strategy.calls)
}
