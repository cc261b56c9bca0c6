// Package fs implements the run sink on the local filesystem: records append
// to a JSONL dataset, reports append to a JSONL report log, and the metrics
// snapshot additionally lands in its own JSON file.
package fs

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/propfetch/rightmove-scraper/internal/scraper"
)

const (
	datasetFile  = "dataset.jsonl"
	reportsFile  = "reports.jsonl"
	snapshotFile = "performance_metrics.json"
	snapshotKey  = "performance-metrics"
)

// Sink writes run output under a root directory.
type Sink struct {
	mu   sync.Mutex
	root string
}

// New creates the root directory and returns the sink.
func New(root string) (*Sink, error) {
	if root == "" {
		return nil, fmt.Errorf("sink directory is required")
	}
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("create sink dir %s: %w", root, err)
	}
	return &Sink{root: root}, nil
}

// PushRecord appends the record to the dataset file.
func (s *Sink) PushRecord(ctx context.Context, record scraper.CleanRecord) error {
	return s.appendLine(ctx, datasetFile, record)
}

// PushReport appends a keyed report entry. The metrics snapshot is also
// written whole to its own file for easy retrieval.
func (s *Sink) PushReport(ctx context.Context, key string, report any) error {
	entry := map[string]any{
		"key":  key,
		"at":   time.Now().UTC().Format(time.RFC3339),
		"data": report,
	}
	if err := s.appendLine(ctx, reportsFile, entry); err != nil {
		return err
	}
	if key != snapshotKey {
		return nil
	}
	payload, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.WriteFile(filepath.Join(s.root, snapshotFile), payload, 0o600); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

func (s *Sink) appendLine(ctx context.Context, name string, v any) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context canceled: %w", err)
	}
	line, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s entry: %w", name, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := os.OpenFile(filepath.Join(s.root, name), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open %s: %w", name, err)
	}
	defer f.Close()
	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("append %s: %w", name, err)
	}
	return nil
}
