// Package exchange provides the fetch boundary of the pipeline: a narrow
// window-fetch interface over the exchange REST API, an HTTP adapter
// implementing it with shared rate limiting and retry/backoff, and a mock
// implementation for tests and offline runs.
package exchange

import (
	"context"
	"fmt"
	"time"

	"github.com/quantgate/ohlcv-pipeline/internal/models"
)

// Window specifies one bounded fetch request. Pagination is the caller's
// responsibility: when a result reaches the page limit, the caller issues a
// follow-up window starting after the last returned timestamp.
type Window struct {
	// Symbol is the exchange pair identifier (e.g. "BTC/USDT").
	Symbol string

	// Interval is the bar spacing label (e.g. "15min").
	Interval string

	// Since is the inclusive start of the window.
	Since time.Time

	// Limit is the maximum number of rows for this call.
	Limit int
}

// WindowResult is the outcome of one window fetch.
type WindowResult struct {
	// Bars holds the fetched rows in the order the exchange returned them.
	// They are raw: not yet deduplicated, sorted, or validated.
	Bars []models.Bar

	// NextSince is the cursor for the follow-up request when HasMore is set.
	NextSince time.Time

	// HasMore indicates the result reached the page limit and more data may
	// exist past NextSince.
	HasMore bool
}

// WindowFetcher retrieves raw bars from an exchange one bounded window at a
// time. Implementations own rate limiting and retry/backoff; a fetch that
// returns an error has exhausted its retry budget or hit a non-recoverable
// condition.
type WindowFetcher interface {
	FetchWindow(ctx context.Context, w Window) (*WindowResult, error)
}

// Validate checks the window parameters.
func (w *Window) Validate() error {
	if w.Symbol == "" {
		return fmt.Errorf("window symbol cannot be empty")
	}
	if w.Interval == "" {
		return fmt.Errorf("window interval cannot be empty")
	}
	if w.Since.IsZero() {
		return fmt.Errorf("window since cannot be zero")
	}
	if w.Limit <= 0 {
		return fmt.Errorf("window limit must be positive")
	}
	return nil
}

// TimeframeToken converts an interval label to the exchange's native
// timeframe token (e.g. "15min" -> "15m", "1hour" -> "1h").
func TimeframeToken(interval string) (string, error) {
	d, err := models.ParseInterval(interval)
	if err != nil {
		return "", err
	}

	day := 24 * time.Hour
	switch {
	case d%day == 0:
		return fmt.Sprintf("%dd", d/day), nil
	case d%time.Hour == 0:
		return fmt.Sprintf("%dh", d/time.Hour), nil
	case d%time.Minute == 0:
		return fmt.Sprintf("%dm", d/time.Minute), nil
	default:
		return "", fmt.Errorf("interval %s is not a whole number of minutes", interval)
	}
}
