package scraper

import (
	"net/url"
	"strings"
)

// metricsSafeName reduces a page URL to a path-safe label used for snapshot
// object names and log fields.
func metricsSafeName(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return sanitizeLabel(rawURL)
	}
	return sanitizeLabel(u.Host + u.Path)
}

func sanitizeLabel(s string) string {
	if s == "" {
		return "unknown"
	}
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	return strings.Trim(b.String(), "-")
}
