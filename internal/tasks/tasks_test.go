package tasks

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/propfetch/rightmove-scraper/internal/scraper"
)

func TestFromURLs(t *testing.T) {
	t.Parallel()

	got := FromURLs([]string{
		"https://www.rightmove.co.uk/properties/123",
		"",
		"https://www.rightmove.co.uk/properties/456",
	}, "rightmove")

	require.Equal(t, []scraper.Task{
		{URL: "https://www.rightmove.co.uk/properties/123", Source: "rightmove"},
		{URL: "https://www.rightmove.co.uk/properties/456", Source: "rightmove"},
	}, got)
}

const searchResultsPage = `<html><body>
<a class="propertyCard-link" href="/properties/111">First</a>
<a class="propertyCard-link" href="/properties/222#anchor">Second</a>
<a class="propertyCard-link" href="/properties/111">Duplicate</a>
<a class="propertyCard-link" href="/properties/333">Third</a>
<a href="/about">Unrelated</a>
</body></html>`

func TestDiscoverCollectsUniqueDetailLinks(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, searchResultsPage)
	}))
	defer srv.Close()

	d := NewDiscoverer(DiscoverConfig{Source: "rightmove"}, nil)
	found, err := d.Discover(context.Background(), []string{srv.URL})
	require.NoError(t, err)

	require.Equal(t, []scraper.Task{
		{URL: srv.URL + "/properties/111", Source: "rightmove"},
		{URL: srv.URL + "/properties/222", Source: "rightmove"},
		{URL: srv.URL + "/properties/333", Source: "rightmove"},
	}, found)
}

func TestDiscoverRespectsMaxTasks(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, searchResultsPage)
	}))
	defer srv.Close()

	d := NewDiscoverer(DiscoverConfig{Source: "rightmove", MaxTasks: 2}, nil)
	found, err := d.Discover(context.Background(), []string{srv.URL})
	require.NoError(t, err)
	require.Len(t, found, 2)
}

func TestDiscoverReportsErrorWhenNothingFound(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	defer srv.Close()

	d := NewDiscoverer(DiscoverConfig{Source: "rightmove"}, nil)
	_, err := d.Discover(context.Background(), []string{srv.URL})
	require.Error(t, err)
}

func TestDiscoverStopsOnCanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d := NewDiscoverer(DiscoverConfig{Source: "rightmove"}, nil)
	_, err := d.Discover(ctx, []string{"https://www.rightmove.co.uk/property-for-sale/find.html"})
	require.ErrorIs(t, err, context.Canceled)
}
