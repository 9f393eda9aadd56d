// Package errors defines the pipeline error taxonomy with retry
// classification. Recoverable fetch failures (rate limits, transient network
// faults) are retried with exponential backoff by the exchange adapter; all
// other errors are fatal for the batch and propagate to the caller, which
// decides whether to skip the symbol or abort the run.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// RateLimitError reports that the exchange rejected a request for exceeding
// its rate limit. Retryable; RetryAfter carries the server-suggested wait
// when the response included one.
type RateLimitError struct {
	RetryAfter time.Duration
	Err        error
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited, retry after %s: %v", e.RetryAfter, e.Err)
	}
	return fmt.Sprintf("rate limited: %v", e.Err)
}

func (e *RateLimitError) Unwrap() error { return e.Err }

// TransientNetworkError reports a recoverable network or server-side failure
// during a fetch. Retryable.
type TransientNetworkError struct {
	Err error
}

func (e *TransientNetworkError) Error() string {
	return fmt.Sprintf("transient network error: %v", e.Err)
}

func (e *TransientNetworkError) Unwrap() error { return e.Err }

// SchemaError reports that a batch is missing required columns entirely.
// Fatal for the batch.
type SchemaError struct {
	MissingColumns []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema error: required columns missing: %v", e.MissingColumns)
}

// QualityThresholdError reports that the fraction of missing values in a
// required column exceeds the configured threshold. Fatal for the batch.
type QualityThresholdError struct {
	Column    string
	Ratio     float64
	Threshold float64
}

func (e *QualityThresholdError) Error() string {
	return fmt.Sprintf("quality threshold exceeded for column %s: missing ratio %.4f > threshold %.4f",
		e.Column, e.Ratio, e.Threshold)
}

// ConsistencyError reports OHLC relationship violations when the validator
// runs in strict mode. Advisory by default; fatal only when strict.
type ConsistencyError struct {
	Rows int
	Err  error
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("ohlc consistency violated on %d rows: %v", e.Rows, e.Err)
}

func (e *ConsistencyError) Unwrap() error { return e.Err }

// EmptyDataError reports an attempt to persist an empty batch. Fatal.
type EmptyDataError struct {
	Symbol   string
	Interval string
}

func (e *EmptyDataError) Error() string {
	return fmt.Sprintf("no bars to write for %s %s", e.Symbol, e.Interval)
}

// StoreIOError reports a filesystem failure during a partition or manifest
// write. Fatal; the previous manifest (if any) remains the visible state.
type StoreIOError struct {
	Path string
	Err  error
}

func (e *StoreIOError) Error() string {
	return fmt.Sprintf("store i/o failure at %s: %v", e.Path, e.Err)
}

func (e *StoreIOError) Unwrap() error { return e.Err }

// RetryExhaustedError reports that the fetch retry ceiling was reached.
// Fatal for the window; wraps the last recoverable error observed.
type RetryExhaustedError struct {
	Attempts int
	Err      error
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("retries exhausted after %d attempts: %v", e.Attempts, e.Err)
}

func (e *RetryExhaustedError) Unwrap() error { return e.Err }

// IsRetryable reports whether an error is a recoverable fetch failure that
// the retry policy should absorb.
func IsRetryable(err error) bool {
	var rateLimit *RateLimitError
	if errors.As(err, &rateLimit) {
		return true
	}
	var transient *TransientNetworkError
	return errors.As(err, &transient)
}

// IsFatal reports whether an error must abort the batch rather than be
// retried. Everything that is not retryable is fatal for its batch.
func IsFatal(err error) bool {
	return err != nil && !IsRetryable(err)
}
