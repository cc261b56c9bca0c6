package scraper

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		err      error
		expected ErrorKind
	}{
		{"tagged", NewError(KindPageCrash, "renderer gone", nil), KindPageCrash},
		{"wrapped", fmt.Errorf("task: %w", NewError(KindValidation, "missing fields", nil)), KindValidation},
		{"untagged defaults to scrape", errors.New("connection reset"), KindScrape},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.expected, KindOf(tc.err))
		})
	}
}

func TestIsRetryable(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name      string
		err       error
		retryable bool
	}{
		{"nil", nil, false},
		{"configuration", NewError(KindConfiguration, "unsupported source", nil), false},
		{"validation", NewValidationError("basicInfo", []string{"id"}), false},
		{"scrape", NewError(KindScrape, "timeout", nil), true},
		{"preprocessing", NewError(KindPreprocessing, "filter install failed", nil), true},
		{"page crash", NewError(KindPageCrash, "renderer crashed", nil), true},
		{"untagged", errors.New("connection reset"), true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.retryable, IsRetryable(tc.err))
		})
	}
}

func TestErrorUnwrap(t *testing.T) {
	t.Parallel()

	cause := errors.New("net timeout")
	err := NewError(KindScrape, "extraction failed", cause)
	require.ErrorIs(t, err, cause)
	require.Contains(t, err.Error(), "SCRAPE_ERROR")
	require.Contains(t, err.Error(), "net timeout")
}
