package scraper

import (
	"context"
	"fmt"
	"time"
)

const (
	rightmoveSource          = "rightmove"
	rightmoveDetailsSelector = `[data-testid="property-details"]`
	defaultWaitTimeout       = 30 * time.Second
)

// rightmoveExtractExpr collects the raw listing fields from the rendered
// property page. Parsing and normalization happen later in the validator;
// this expression only reads text out of the DOM.
const rightmoveExtractExpr = `(() => {
	const getData = (selector) => {
		const el = document.querySelector(selector);
		return el ? el.textContent.trim() : null;
	};
	const getList = (selector) => Array.from(document.querySelectorAll(selector))
		.map((el) => el.textContent.trim())
		.filter(Boolean);
	return {
		basicInfo: {
			id: getData('[data-testid="property-id"]'),
			price: getData('.property-header-price'),
			title: getData('h1'),
			propertyType: getData('[data-testid="property-type"]'),
			addedOn: getData('[data-testid="added-on-date"]'),
			tenure: getData('[data-testid="tenure-type"]'),
			councilTax: getData('[data-testid="council-tax-band"]'),
		},
		location: {
			postcode: getData('[data-testid="postcode"]'),
			address: getData('[data-testid="address"]'),
			nearestStations: getList('[data-testid="nearest-stations"] li'),
			schoolsNearby: getList('[data-testid="nearby-schools"] li'),
		},
		features: {
			bedrooms: getData('[data-testid="beds"]'),
			bathrooms: getData('[data-testid="baths"]'),
			receptionRooms: getData('[data-testid="receptions"]'),
			keyFeatures: getList('[data-testid="key-features"] li'),
		},
		description: getData('[data-testid="property-description"]'),
	};
})()`

// Rightmove extracts listing records from rightmove.co.uk property pages.
type Rightmove struct {
	waitTimeout time.Duration
}

// NewRightmove builds the rightmove Strategy. waitTimeout bounds the wait for
// the property-details root element; zero applies the 30s default.
func NewRightmove(waitTimeout time.Duration) *Rightmove {
	if waitTimeout <= 0 {
		waitTimeout = defaultWaitTimeout
	}
	return &Rightmove{waitTimeout: waitTimeout}
}

// Source returns the source key this strategy handles.
func (s *Rightmove) Source() string {
	return rightmoveSource
}

// Scrape waits for the details root and pulls the raw field mapping.
func (s *Rightmove) Scrape(ctx context.Context, page PageAccessor) (RawRecord, error) {
	if err := page.WaitVisible(ctx, rightmoveDetailsSelector, s.waitTimeout); err != nil {
		return nil, NewError(KindScrape, "timeout waiting for property details", err)
	}
	var raw RawRecord
	if err := page.ExtractJSON(ctx, rightmoveExtractExpr, &raw); err != nil {
		return nil, NewError(KindScrape, fmt.Sprintf("failed to scrape property page: %v", err), err)
	}
	return raw, nil
}
