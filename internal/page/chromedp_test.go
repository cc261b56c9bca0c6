package page

import (
	"testing"

	"github.com/chromedp/cdproto/network"
	"github.com/stretchr/testify/require"
)

func TestResourceTypeMapping(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		expected network.ResourceType
	}{
		{"image", network.ResourceTypeImage},
		{"Image", network.ResourceTypeImage},
		{"stylesheet", network.ResourceTypeStylesheet},
		{"font", network.ResourceTypeFont},
		{"media", network.ResourceTypeMedia},
		{"script", network.ResourceTypeScript},
		{"Document", network.ResourceType("document")},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.expected, resourceType(tc.name))
		})
	}
}

func TestCrashedAccessorFailsEveryCall(t *testing.T) {
	t.Parallel()

	a := &Accessor{url: "https://example.com/p/1"}
	a.crashed.Store(true)

	require.Error(t, a.checkCrash())
	require.Equal(t, "https://example.com/p/1", a.URL())
}
