// Package archive defines the blob storage interface used to keep page
// snapshots for post-mortem analysis of terminal scrape failures.
package archive

import "context"

// Provider abstracts the snapshot store so the pipeline is independent of a
// specific backend (local filesystem, Google Cloud Storage).
type Provider interface {
	// Save uploads data under the object name and returns the stored URI.
	Save(ctx context.Context, objectName string, contentType string, data []byte) (string, error)
}

// NoOp discards snapshots. Used when archiving is disabled.
type NoOp struct{}

// Save does nothing and reports an empty URI.
func (NoOp) Save(context.Context, string, string, []byte) (string, error) {
	return "", nil
}
