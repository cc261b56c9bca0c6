// Package memory provides an in-memory sink used in tests and dry runs.
package memory

import (
	"context"
	"sync"

	"github.com/propfetch/rightmove-scraper/internal/scraper"
)

// Report is one keyed report entry.
type Report struct {
	Key  string
	Data any
}

// Sink accumulates records and reports in memory. Safe for concurrent use.
type Sink struct {
	mu      sync.Mutex
	records []scraper.CleanRecord
	reports []Report
}

// New creates an empty Sink.
func New() *Sink {
	return &Sink{}
}

// PushRecord appends the record.
func (s *Sink) PushRecord(_ context.Context, record scraper.CleanRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, record)
	return nil
}

// PushReport appends a keyed report entry.
func (s *Sink) PushReport(_ context.Context, key string, report any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports = append(s.reports, Report{Key: key, Data: report})
	return nil
}

// Records returns a copy of the accumulated records.
func (s *Sink) Records() []scraper.CleanRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]scraper.CleanRecord(nil), s.records...)
}

// Reports returns a copy of the accumulated report entries.
func (s *Sink) Reports() []Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Report(nil), s.reports...)
}

// ReportsByKey filters reports by key.
func (s *Sink) ReportsByKey(key string) []Report {
	var out []Report
	for _, r := range s.Reports() {
		if r.Key == key {
			out = append(out, r)
		}
	}
	return out
}
