package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	"github.com/quantgate/ohlcv-pipeline/internal/config"
	pipeerrors "github.com/quantgate/ohlcv-pipeline/internal/errors"
	"github.com/quantgate/ohlcv-pipeline/internal/models"
)

const ohlcvEndpoint = "/api/v1/ohlcv"

// Client fetches OHLCV windows from an exchange REST API.
//
// A single Client carries the per-exchange rate-limit budget: all symbol
// pipelines hitting the same exchange must share one Client (or at least its
// limiter) so concurrent fetches draw from one token bucket.
type Client struct {
	httpClient  *http.Client
	rateLimiter *rate.Limiter
	baseURL     string
	exchangeID  string
	retries     int
	backoffBase time.Duration
	logger      *slog.Logger
}

// NewClient builds an exchange client from configuration.
func NewClient(cfg config.ExchangeConfig, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}

	timeout, err := cfg.TimeoutDuration()
	if err != nil {
		return nil, err
	}
	backoffBase, err := cfg.BackoffBaseDuration()
	if err != nil {
		return nil, err
	}

	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		rateLimiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), burst),
		baseURL:     cfg.BaseURL,
		exchangeID:  cfg.ID,
		retries:     cfg.Retries,
		backoffBase: backoffBase,
		logger:      logger.With("component", "exchange_client", "exchange", cfg.ID),
	}, nil
}

// Limiter exposes the shared rate limiter for callers that need to coordinate
// additional traffic against the same exchange budget.
func (c *Client) Limiter() *rate.Limiter {
	return c.rateLimiter
}

// FetchWindow implements WindowFetcher.
//
// Recoverable failures (HTTP 429, network faults, 5xx) are retried with
// exponential backoff (base * 2^attempt) up to the configured attempt count;
// when attempts exhaust, the last error is wrapped in RetryExhaustedError and
// propagated. Client-side 4xx responses fail immediately.
func (c *Client) FetchWindow(ctx context.Context, w Window) (*WindowResult, error) {
	if err := w.Validate(); err != nil {
		return nil, fmt.Errorf("invalid window: %w", err)
	}

	timeframe, err := TimeframeToken(w.Interval)
	if err != nil {
		return nil, fmt.Errorf("unsupported interval: %w", err)
	}
	intervalDuration, err := models.ParseInterval(w.Interval)
	if err != nil {
		return nil, fmt.Errorf("unsupported interval: %w", err)
	}

	c.logger.Debug("fetching window",
		"symbol", w.Symbol,
		"timeframe", timeframe,
		"since", w.Since,
		"limit", w.Limit)

	params := url.Values{}
	params.Set("symbol", w.Symbol)
	params.Set("timeframe", timeframe)
	params.Set("since", strconv.FormatInt(w.Since.UnixMilli(), 10))
	params.Set("limit", strconv.Itoa(w.Limit))
	requestURL := c.baseURL + ohlcvEndpoint + "?" + params.Encode()

	body, err := c.getWithRetry(ctx, requestURL)
	if err != nil {
		return nil, err
	}

	var rows [][]json.Number
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse ohlcv response: %w", err)
	}

	bars := make([]models.Bar, 0, len(rows))
	for _, row := range rows {
		bar, err := rowToBar(row, w.Symbol, w.Interval)
		if err != nil {
			return nil, fmt.Errorf("malformed ohlcv row: %w", err)
		}
		bars = append(bars, bar)
	}

	result := &WindowResult{Bars: bars}
	if len(bars) >= w.Limit && len(bars) > 0 {
		result.HasMore = true
		result.NextSince = bars[len(bars)-1].Timestamp.Add(intervalDuration)
	}

	c.logger.Debug("window fetched",
		"symbol", w.Symbol,
		"rows", len(bars),
		"has_more", result.HasMore)

	return result, nil
}

// getWithRetry issues the GET request under the shared rate limiter, retrying
// recoverable failures with exponential backoff.
func (c *Client) getWithRetry(ctx context.Context, requestURL string) ([]byte, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.backoffBase
	policy.Multiplier = 2.0
	policy.RandomizationFactor = 0
	policy.MaxInterval = 5 * time.Minute
	policy.MaxElapsedTime = 0 // bounded by attempt count and context

	var body []byte
	attempts := 0

	operation := func() error {
		attempts++

		if err := c.rateLimiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return &pipeerrors.TransientNetworkError{Err: err}
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"))
			c.logger.Warn("rate limited by exchange", "retry_after", retryAfter)
			if retryAfter > 0 {
				// Honor the server-suggested delay before the backoff
				// interval kicks in.
				select {
				case <-time.After(retryAfter):
				case <-ctx.Done():
					return backoff.Permanent(ctx.Err())
				}
			}
			return &pipeerrors.RateLimitError{
				RetryAfter: retryAfter,
				Err:        fmt.Errorf("http 429 from %s", c.exchangeID),
			}
		case resp.StatusCode >= 500:
			return &pipeerrors.TransientNetworkError{
				Err: fmt.Errorf("server error %d from %s", resp.StatusCode, c.exchangeID),
			}
		case resp.StatusCode >= 400:
			payload, _ := io.ReadAll(resp.Body)
			return backoff.Permanent(fmt.Errorf("client error %d: %s", resp.StatusCode, payload))
		}

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return &pipeerrors.TransientNetworkError{Err: fmt.Errorf("failed to read response body: %w", err)}
		}
		return nil
	}

	retryPolicy := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(c.retries)), ctx)
	if err := backoff.Retry(operation, retryPolicy); err != nil {
		if pipeerrors.IsRetryable(err) {
			return nil, &pipeerrors.RetryExhaustedError{Attempts: attempts, Err: err}
		}
		return nil, err
	}

	return body, nil
}

// rowToBar converts one raw exchange row ([timestamp_ms, o, h, l, c, v]) to a
// Bar. Null OHLCV entries decode to empty strings, the pipeline's missing
// value representation.
func rowToBar(row []json.Number, symbol, interval string) (models.Bar, error) {
	if len(row) < 6 {
		return models.Bar{}, fmt.Errorf("expected 6 fields, got %d", len(row))
	}

	ms, err := row[0].Int64()
	if err != nil {
		return models.Bar{}, fmt.Errorf("invalid timestamp %q: %w", row[0], err)
	}

	return models.Bar{
		Symbol:    symbol,
		Interval:  interval,
		Timestamp: time.UnixMilli(ms).UTC(),
		Open:      row[1].String(),
		High:      row[2].String(),
		Low:       row[3].String(),
		Close:     row[4].String(),
		Volume:    row[5].String(),
	}, nil
}

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(header); err == nil {
		return time.Duration(seconds) * time.Second
	}
	if t, err := http.ParseTime(header); err == nil {
		return time.Until(t)
	}
	return 0
}
