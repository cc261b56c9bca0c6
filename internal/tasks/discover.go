package tasks

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/propfetch/rightmove-scraper/internal/scraper"
)

// DiscoverConfig controls search-result crawling.
type DiscoverConfig struct {
	// UserAgent sent with discovery requests.
	UserAgent string
	// LinkSelector matches detail-page anchors on a result page.
	LinkSelector string
	// MaxTasks caps the number of discovered tasks; zero means no cap.
	MaxTasks int
	// Source is stamped on every discovered task.
	Source string
}

const defaultLinkSelector = `a.propertyCard-link[href], a[href*="/properties/"]`

// Discoverer crawls search-result pages with colly and yields detail tasks.
type Discoverer struct {
	cfg    DiscoverConfig
	logger *zap.Logger
}

// NewDiscoverer builds a Discoverer.
func NewDiscoverer(cfg DiscoverConfig, logger *zap.Logger) *Discoverer {
	if cfg.LinkSelector == "" {
		cfg.LinkSelector = defaultLinkSelector
	}
	if cfg.Source == "" {
		cfg.Source = "rightmove"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Discoverer{cfg: cfg, logger: logger}
}

// Discover visits each search URL and collects unique detail-page links in
// document order.
func (d *Discoverer) Discover(ctx context.Context, searchURLs []string) ([]scraper.Task, error) {
	opts := []colly.CollectorOption{colly.Async(false)}
	if d.cfg.UserAgent != "" {
		opts = append(opts, colly.UserAgent(d.cfg.UserAgent))
	}
	c := colly.NewCollector(opts...)

	seen := make(map[string]struct{})
	var found []scraper.Task
	var full bool

	c.OnHTML(d.cfg.LinkSelector, func(e *colly.HTMLElement) {
		if full {
			return
		}
		link := strings.TrimSpace(e.Attr("href"))
		if link == "" {
			return
		}
		abs := e.Request.AbsoluteURL(link)
		abs = stripFragment(abs)
		if abs == "" {
			return
		}
		if _, ok := seen[abs]; ok {
			return
		}
		seen[abs] = struct{}{}
		found = append(found, scraper.Task{URL: abs, Source: d.cfg.Source})
		if d.cfg.MaxTasks > 0 && len(found) >= d.cfg.MaxTasks {
			full = true
		}
	})

	var visitErr error
	for _, u := range searchURLs {
		if ctx.Err() != nil {
			return found, ctx.Err()
		}
		if full {
			break
		}
		if err := c.Visit(u); err != nil {
			visitErr = fmt.Errorf("visit %s: %w", u, err)
			d.logger.Warn("discovery visit failed", zap.String("url", u), zap.Error(err))
		}
	}
	c.Wait()

	if len(found) == 0 && visitErr != nil {
		return nil, visitErr
	}
	d.logger.Info("discovery finished",
		zap.Int("search_pages", len(searchURLs)),
		zap.Int("tasks", len(found)),
	)
	return found, nil
}

func stripFragment(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	u.Fragment = ""
	return u.String()
}
