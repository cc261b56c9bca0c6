// Package metrics implements run-scoped performance accounting plus the
// Prometheus collectors exposed by the status server.
package metrics

import (
	"runtime"
	"sync"
	"time"
)

const defaultMemorySampleInterval = 30 * time.Second

// ErrorEntry records one failed operation attempt for the run error log.
type ErrorEntry struct {
	Operation string    `json:"operation"`
	Error     string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}

// MemorySample is one periodic heap reading, in MiB.
type MemorySample struct {
	Timestamp time.Time `json:"timestamp"`
	HeapUsed  int64     `json:"heap_used_mb"`
	HeapTotal int64     `json:"heap_total_mb"`
}

// OperationStats summarizes one named operation at run end.
type OperationStats struct {
	Name        string  `json:"name"`
	Count       int64   `json:"count"`
	AverageTime float64 `json:"average_time_ms"`
	FailureRate float64 `json:"failure_rate"`
}

// RequestCounters tracks request-level outcomes across the run.
type RequestCounters struct {
	Total      int64 `json:"total"`
	Successful int64 `json:"successful"`
	Failed     int64 `json:"failed"`
}

// Snapshot is the immutable run summary computed by Finalize.
type Snapshot struct {
	Timestamp   time.Time        `json:"timestamp"`
	DurationMs  int64            `json:"duration_ms"`
	SuccessRate float64          `json:"success_rate"`
	Requests    RequestCounters  `json:"requests"`
	Operations  []OperationStats `json:"operations"`
	Memory      MemorySummary    `json:"memory"`
	Errors      []ErrorEntry     `json:"errors"`
}

// MemorySummary carries the raw samples plus the observed peak heap.
type MemorySummary struct {
	Samples  []MemorySample `json:"measurements"`
	PeakHeap int64          `json:"peak_heap_mb"`
}

type operation struct {
	count     int64
	totalTime time.Duration
	failures  int64
}

// Recorder accumulates counters and timers for a single run. All mutations
// go through one mutex so concurrent tasks observe a single-writer
// discipline. Counters are monotonic within a run and reset by StartRun.
type Recorder struct {
	mu             sync.Mutex
	startTime      time.Time
	ops            map[string]*operation
	opNames        []string
	requests       RequestCounters
	samples        []MemorySample
	errs           []ErrorEntry
	sampleInterval time.Duration
	stopSampling   chan struct{}
}

// NewRecorder creates a Recorder sampling memory every sampleInterval.
func NewRecorder(sampleInterval time.Duration) *Recorder {
	if sampleInterval <= 0 {
		sampleInterval = defaultMemorySampleInterval
	}
	return &Recorder{
		ops:            make(map[string]*operation),
		sampleInterval: sampleInterval,
	}
}

// StartRun resets all counters and begins periodic memory sampling. Sampling
// runs until Finalize stops it.
func (r *Recorder) StartRun() {
	r.mu.Lock()
	r.startTime = time.Now()
	r.ops = make(map[string]*operation)
	r.opNames = nil
	r.requests = RequestCounters{}
	r.samples = nil
	r.errs = nil
	if r.stopSampling != nil {
		close(r.stopSampling)
	}
	r.stopSampling = make(chan struct{})
	stop := r.stopSampling
	r.mu.Unlock()

	go r.sampleMemory(stop)
}

// StartOperation lazily registers the named counter set and returns the
// monotonic start marker for the attempt.
func (r *Recorder) StartOperation(name string) time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.ops[name]; !ok {
		r.ops[name] = &operation{}
		r.opNames = append(r.opNames, name)
	}
	return time.Now()
}

// EndOperation accumulates the attempt duration. A non-nil opErr increments
// the failure counter and appends to the run error log.
func (r *Recorder) EndOperation(name string, start time.Time, opErr error) {
	elapsed := time.Since(start)
	r.mu.Lock()
	defer r.mu.Unlock()
	op, ok := r.ops[name]
	if !ok {
		op = &operation{}
		r.ops[name] = op
		r.opNames = append(r.opNames, name)
	}
	op.count++
	op.totalTime += elapsed
	observeOperation(name, elapsed, opErr != nil)
	if opErr != nil {
		op.failures++
		r.errs = append(r.errs, ErrorEntry{
			Operation: name,
			Error:     opErr.Error(),
			Timestamp: time.Now().UTC(),
		})
	}
}

// RecordSuccess counts one successfully processed request.
func (r *Recorder) RecordSuccess() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests.Total++
	r.requests.Successful++
	observeItem("success")
}

// RecordFailure counts one failed request.
func (r *Recorder) RecordFailure() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests.Total++
	r.requests.Failed++
	observeItem("failure")
}

// Requests returns the request counters accumulated so far.
func (r *Recorder) Requests() RequestCounters {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.requests
}

// Finalize stops memory sampling and computes the run summary. Calling it
// again recomputes from the same final state.
func (r *Recorder) Finalize() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopSampling != nil {
		close(r.stopSampling)
		r.stopSampling = nil
	}

	snap := Snapshot{
		Timestamp: time.Now().UTC(),
		Requests:  r.requests,
		Errors:    append([]ErrorEntry(nil), r.errs...),
		Memory: MemorySummary{
			Samples: append([]MemorySample(nil), r.samples...),
		},
	}
	if !r.startTime.IsZero() {
		snap.DurationMs = time.Since(r.startTime).Milliseconds()
	}
	// Guard the zero-request run: success rate reports 0, not NaN.
	if r.requests.Total > 0 {
		snap.SuccessRate = float64(r.requests.Successful) / float64(r.requests.Total) * 100
	}
	for _, name := range r.opNames {
		op := r.ops[name]
		stats := OperationStats{Name: name, Count: op.count}
		if op.count > 0 {
			stats.AverageTime = float64(op.totalTime.Milliseconds()) / float64(op.count)
			stats.FailureRate = float64(op.failures) / float64(op.count) * 100
		}
		snap.Operations = append(snap.Operations, stats)
	}
	for _, s := range r.samples {
		if s.HeapUsed > snap.Memory.PeakHeap {
			snap.Memory.PeakHeap = s.HeapUsed
		}
	}
	return snap
}

func (r *Recorder) sampleMemory(stop <-chan struct{}) {
	ticker := time.NewTicker(r.sampleInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			var ms runtime.MemStats
			runtime.ReadMemStats(&ms)
			sample := MemorySample{
				Timestamp: time.Now().UTC(),
				HeapUsed:  int64(ms.HeapAlloc / 1024 / 1024),
				HeapTotal: int64(ms.HeapSys / 1024 / 1024),
			}
			r.mu.Lock()
			r.samples = append(r.samples, sample)
			r.mu.Unlock()
		}
	}
}
