package fs

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/propfetch/rightmove-scraper/internal/metrics"
	"github.com/propfetch/rightmove-scraper/internal/scraper"
)

func readLines(t *testing.T, path string) []map[string]any {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var out []map[string]any
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var entry map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &entry))
		out = append(out, entry)
	}
	require.NoError(t, scanner.Err())
	return out
}

func TestNewRequiresDirectory(t *testing.T) {
	t.Parallel()

	_, err := New("")
	require.Error(t, err)
}

func TestPushRecordAppendsToDataset(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	sink, err := New(dir)
	require.NoError(t, err)

	price := 250000.0
	record := scraper.CleanRecord{}
	record.BasicInfo.ID = "12345"
	record.BasicInfo.Price = &price

	require.NoError(t, sink.PushRecord(context.Background(), record))
	require.NoError(t, sink.PushRecord(context.Background(), record))

	lines := readLines(t, filepath.Join(dir, "dataset.jsonl"))
	require.Len(t, lines, 2)
	basicInfo := lines[0]["basicInfo"].(map[string]any)
	require.Equal(t, "12345", basicInfo["id"])
	require.Equal(t, 250000.0, basicInfo["price"])
}

func TestPushReportAppendsKeyedEntries(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	sink, err := New(dir)
	require.NoError(t, err)

	entry := scraper.DebugEntry{URL: "https://example.com/p/1", ErrorKind: "SCRAPE_ERROR", Message: "timeout"}
	require.NoError(t, sink.PushReport(context.Background(), "debug", entry))

	lines := readLines(t, filepath.Join(dir, "reports.jsonl"))
	require.Len(t, lines, 1)
	require.Equal(t, "debug", lines[0]["key"])
	data := lines[0]["data"].(map[string]any)
	require.Equal(t, "https://example.com/p/1", data["url"])
}

func TestMetricsSnapshotGetsOwnFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	sink, err := New(dir)
	require.NoError(t, err)

	snap := metrics.Snapshot{SuccessRate: 75, Requests: metrics.RequestCounters{Total: 4, Successful: 3, Failed: 1}}
	require.NoError(t, sink.PushReport(context.Background(), "performance-metrics", snap))

	payload, err := os.ReadFile(filepath.Join(dir, "performance_metrics.json"))
	require.NoError(t, err)

	var decoded metrics.Snapshot
	require.NoError(t, json.Unmarshal(payload, &decoded))
	require.Equal(t, snap.Requests, decoded.Requests)
	require.Equal(t, snap.SuccessRate, decoded.SuccessRate)

	// The snapshot also lands in the shared report log.
	require.Len(t, readLines(t, filepath.Join(dir, "reports.jsonl")), 1)
}

func TestPushRecordHonorsCanceledContext(t *testing.T) {
	t.Parallel()

	sink, err := New(t.TempDir())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.Error(t, sink.PushRecord(ctx, scraper.CleanRecord{}))
}
