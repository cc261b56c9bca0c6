package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFinalizeEmptyRunReportsZeroSuccessRate(t *testing.T) {
	t.Parallel()

	r := NewRecorder(time.Hour)
	r.StartRun()
	snap := r.Finalize()

	require.Zero(t, snap.SuccessRate)
	require.Zero(t, snap.Requests.Total)
	require.Empty(t, snap.Operations)
	require.Empty(t, snap.Errors)
	require.False(t, snap.Timestamp.IsZero())
}

func TestRecorderAccumulatesRequests(t *testing.T) {
	t.Parallel()

	r := NewRecorder(time.Hour)
	r.StartRun()
	r.RecordSuccess()
	r.RecordSuccess()
	r.RecordSuccess()
	r.RecordFailure()

	counters := r.Requests()
	require.Equal(t, int64(4), counters.Total)
	require.Equal(t, int64(3), counters.Successful)
	require.Equal(t, int64(1), counters.Failed)

	snap := r.Finalize()
	require.InDelta(t, 75.0, snap.SuccessRate, 0.01)
}

func TestRecorderTracksOperations(t *testing.T) {
	t.Parallel()

	r := NewRecorder(time.Hour)
	r.StartRun()

	for i := 0; i < 4; i++ {
		start := r.StartOperation("scrape")
		var opErr error
		if i%2 == 0 {
			opErr = errors.New("timeout")
		}
		r.EndOperation("scrape", start, opErr)
	}
	start := r.StartOperation("validation")
	r.EndOperation("validation", start, nil)

	snap := r.Finalize()
	require.Len(t, snap.Operations, 2)

	// Insertion order is preserved in the summary.
	scrape := snap.Operations[0]
	require.Equal(t, "scrape", scrape.Name)
	require.Equal(t, int64(4), scrape.Count)
	require.InDelta(t, 50.0, scrape.FailureRate, 0.01)

	validation := snap.Operations[1]
	require.Equal(t, "validation", validation.Name)
	require.Equal(t, int64(1), validation.Count)
	require.Zero(t, validation.FailureRate)

	require.Len(t, snap.Errors, 2)
	require.Equal(t, "scrape", snap.Errors[0].Operation)
	require.Equal(t, "timeout", snap.Errors[0].Error)
}

func TestStartRunResetsState(t *testing.T) {
	t.Parallel()

	r := NewRecorder(time.Hour)
	r.StartRun()
	r.RecordFailure()
	start := r.StartOperation("scrape")
	r.EndOperation("scrape", start, errors.New("timeout"))

	r.StartRun()
	snap := r.Finalize()
	require.Zero(t, snap.Requests.Total)
	require.Empty(t, snap.Operations)
	require.Empty(t, snap.Errors)
}

func TestRecorderSamplesMemory(t *testing.T) {
	t.Parallel()

	r := NewRecorder(time.Millisecond)
	r.StartRun()
	time.Sleep(20 * time.Millisecond)
	snap := r.Finalize()

	require.NotEmpty(t, snap.Memory.Samples)
	for _, s := range snap.Memory.Samples {
		require.False(t, s.Timestamp.IsZero())
		require.LessOrEqual(t, s.HeapUsed, snap.Memory.PeakHeap)
	}
}

func TestFinalizeIsIdempotent(t *testing.T) {
	t.Parallel()

	r := NewRecorder(time.Hour)
	r.StartRun()
	r.RecordSuccess()

	first := r.Finalize()
	second := r.Finalize()
	require.Equal(t, first.Requests, second.Requests)
	require.Equal(t, first.SuccessRate, second.SuccessRate)
}
