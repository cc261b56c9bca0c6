// Package tasks builds the ordered task list a run iterates over, either
// from configured start URLs or by discovering detail-page links from search
// result pages.
package tasks

import "github.com/propfetch/rightmove-scraper/internal/scraper"

// FromURLs wraps explicit start URLs as tasks for the given source.
func FromURLs(urls []string, source string) []scraper.Task {
	out := make([]scraper.Task, 0, len(urls))
	for _, u := range urls {
		if u == "" {
			continue
		}
		out = append(out, scraper.Task{URL: u, Source: source})
	}
	return out
}
