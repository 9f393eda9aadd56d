package errors

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryClassification(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
	}{
		{"rate limit", &RateLimitError{Err: errors.New("429")}, true},
		{"transient network", &TransientNetworkError{Err: errors.New("conn reset")}, true},
		{"schema", &SchemaError{MissingColumns: []string{"close"}}, false},
		{"quality threshold", &QualityThresholdError{Column: "close", Ratio: 0.1, Threshold: 0.05}, false},
		{"empty data", &EmptyDataError{Symbol: "BTC/USDT", Interval: "15min"}, false},
		{"store io", &StoreIOError{Path: "/data/x", Err: errors.New("disk full")}, false},
		{"retry exhausted", &RetryExhaustedError{Attempts: 5, Err: errors.New("last")}, false},
		{"wrapped rate limit", fmt.Errorf("fetch: %w", &RateLimitError{Err: errors.New("429")}), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.retryable, IsRetryable(tt.err))
			assert.Equal(t, !tt.retryable, IsFatal(tt.err))
		})
	}
}

func TestIsFatalNilError(t *testing.T) {
	assert.False(t, IsFatal(nil))
	assert.False(t, IsRetryable(nil))
}

func TestErrorUnwrapping(t *testing.T) {
	cause := errors.New("socket closed")
	err := &TransientNetworkError{Err: cause}
	assert.ErrorIs(t, err, cause)

	exhausted := &RetryExhaustedError{
		Attempts: 3,
		Err:      &RateLimitError{Err: cause},
	}
	var rateLimit *RateLimitError
	require.ErrorAs(t, exhausted, &rateLimit)
	assert.ErrorIs(t, exhausted, cause)
}

func TestErrorMessages(t *testing.T) {
	rateLimit := &RateLimitError{RetryAfter: 2 * time.Second, Err: errors.New("429")}
	assert.Contains(t, rateLimit.Error(), "retry after 2s")

	quality := &QualityThresholdError{Column: "close", Ratio: 0.0625, Threshold: 0.05}
	assert.Contains(t, quality.Error(), "close")
	assert.Contains(t, quality.Error(), "0.0625")

	empty := &EmptyDataError{Symbol: "BTC/USDT", Interval: "15min"}
	assert.Contains(t, empty.Error(), "BTC/USDT")
}
