// Package pipeline orchestrates the ingestion flow for each symbol:
// fetch -> normalize -> validate -> gap-fill -> outlier-flag -> persist.
//
// Stages within one symbol's batch run strictly sequentially; each consumes
// the previous stage's full output and produces an independently owned
// result. Symbols run in parallel against a shared exchange rate-limit
// budget, which lives inside the injected WindowFetcher.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/quantgate/ohlcv-pipeline/internal/config"
	"github.com/quantgate/ohlcv-pipeline/internal/exchange"
	"github.com/quantgate/ohlcv-pipeline/internal/gapfill"
	"github.com/quantgate/ohlcv-pipeline/internal/models"
	"github.com/quantgate/ohlcv-pipeline/internal/normalize"
	"github.com/quantgate/ohlcv-pipeline/internal/outlier"
	"github.com/quantgate/ohlcv-pipeline/internal/store"
	"github.com/quantgate/ohlcv-pipeline/internal/validate"
)

// Result summarizes one symbol's completed batch.
type Result struct {
	BatchID     string
	Symbol      string
	Interval    string
	RowsFetched int
	RowsFilled  int
	Report      *models.ValidationReport
	Manifest    *models.Manifest
}

// Pipeline runs symbol batches end to end.
type Pipeline struct {
	fetcher exchange.WindowFetcher
	store   *store.Store
	cfg     *config.Config
	logger  *slog.Logger
	now     func() time.Time
	rand    *rand.Rand
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithClock overrides the fetch-timestamp clock; tests use this for
// deterministic manifests.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// WithRand injects the randomness source used by the opt-in outlier
// minimum-count padding.
func WithRand(rng *rand.Rand) Option {
	return func(p *Pipeline) { p.rand = rng }
}

// New builds a Pipeline from its collaborators.
func New(fetcher exchange.WindowFetcher, st *store.Store, cfg *config.Config, logger *slog.Logger, opts ...Option) (*Pipeline, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("pipeline requires a fetcher")
	}
	if st == nil {
		return nil, fmt.Errorf("pipeline requires a store")
	}
	if cfg == nil {
		return nil, fmt.Errorf("pipeline requires configuration")
	}
	if logger == nil {
		logger = slog.Default()
	}

	p := &Pipeline{
		fetcher: fetcher,
		store:   st,
		cfg:     cfg,
		logger:  logger.With("component", "pipeline"),
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// RunSymbol executes the full pipeline for one (symbol, interval) window.
// The window is [start, end): bars at or after end are discarded.
//
// Fatal conditions (retry exhaustion, schema failure, quality threshold,
// empty result, store I/O) abort the batch and propagate; gaps, outliers,
// and advisory OHLC inconsistencies are folded into the returned report.
func (p *Pipeline) RunSymbol(ctx context.Context, symbol, interval string, start, end time.Time) (*Result, error) {
	batchID := uuid.NewString()
	logger := p.logger.With("batch_id", batchID, "symbol", symbol, "interval", interval)
	fetchTime := p.now()

	intervalDuration, err := models.ParseInterval(interval)
	if err != nil {
		return nil, fmt.Errorf("unsupported interval: %w", err)
	}
	if !end.After(start) {
		return nil, fmt.Errorf("window end must be after start")
	}

	raw, err := p.fetchAll(ctx, symbol, interval, start, end, logger)
	if err != nil {
		return nil, fmt.Errorf("fetch failed for %s: %w", symbol, err)
	}
	logger.Info("fetch complete", "rows", len(raw))

	bars := normalize.Normalize(raw)

	report, err := validate.Validate(bars, validate.Config{
		MissingThreshold: p.cfg.Validation.MissingThreshold,
		Strict:           p.cfg.Validation.Strict,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("validation failed for %s: %w", symbol, err)
	}

	repaired, err := gapfill.Repair(bars, intervalDuration, p.cfg.GapFill.ShortGap(), logger)
	if err != nil {
		return nil, fmt.Errorf("gap repair failed for %s: %w", symbol, err)
	}

	flagged, outliers := outlier.Flag(repaired.Bars, outlier.Config{
		PriceJump:     p.cfg.Outliers.PriceJump,
		VolumeSpike:   p.cfg.Outliers.VolumeSpike,
		RollingWindow: p.cfg.Outliers.RollingWindow,
		EnsureMinimum: p.cfg.Outliers.EnsureMinimum,
		Rand:          p.rand,
	}, logger)

	// Fold the downstream stage outcomes into the batch report.
	report.GapsDetected = repaired.GapsDetected
	report.OutliersDetected = outliers

	manifest, err := p.store.Write(ctx, store.WriteRequest{
		Bars:      flagged,
		Symbol:    symbol,
		Interval:  interval,
		FetchTime: fetchTime,
	})
	if err != nil {
		return nil, fmt.Errorf("store write failed for %s: %w", symbol, err)
	}

	logger.Info("batch complete",
		"rows", report.TotalRows,
		"filled", repaired.RowsFilled,
		"gaps", report.GapsDetected,
		"outliers", report.OutliersDetected)

	return &Result{
		BatchID:     batchID,
		Symbol:      symbol,
		Interval:    interval,
		RowsFetched: len(raw),
		RowsFilled:  repaired.RowsFilled,
		Report:      report,
		Manifest:    manifest,
	}, nil
}

// Run executes RunSymbol for every symbol with bounded parallelism. With
// ContinueOnError set, a failed symbol is recorded and the rest proceed; the
// combined error is returned alongside the successful results. Otherwise the
// first failure cancels the remaining symbols.
func (p *Pipeline) Run(ctx context.Context, symbols []string, interval string, start, end time.Time) ([]*Result, error) {
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(p.cfg.Pipeline.Concurrency)

	var mu sync.Mutex
	results := make([]*Result, 0, len(symbols))
	var failures []error

	for _, symbol := range symbols {
		symbol := symbol
		group.Go(func() error {
			result, err := p.RunSymbol(groupCtx, symbol, interval, start, end)
			if err != nil {
				if p.cfg.Pipeline.ContinueOnError {
					p.logger.Error("symbol batch failed, continuing",
						"symbol", symbol, "error", err)
					mu.Lock()
					failures = append(failures, err)
					mu.Unlock()
					return nil
				}
				return err
			}
			mu.Lock()
			results = append(results, result)
			mu.Unlock()
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return results, err
	}
	return results, errors.Join(failures...)
}

// fetchAll pages through the exchange window until the fetcher reports no
// more data or the cursor passes the window end. A fetch error aborts the
// whole batch; no partial writes have happened at that point.
func (p *Pipeline) fetchAll(ctx context.Context, symbol, interval string, start, end time.Time, logger *slog.Logger) ([]models.Bar, error) {
	var all []models.Bar
	since := start

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		result, err := p.fetcher.FetchWindow(ctx, exchange.Window{
			Symbol:   symbol,
			Interval: interval,
			Since:    since,
			Limit:    p.cfg.Exchange.PageLimit,
		})
		if err != nil {
			return nil, err
		}

		for _, bar := range result.Bars {
			if bar.Timestamp.Before(end) && !bar.Timestamp.Before(start) {
				all = append(all, bar)
			}
		}

		if !result.HasMore || !result.NextSince.Before(end) {
			break
		}
		if !result.NextSince.After(since) {
			logger.Warn("pagination cursor did not advance, stopping", "since", since)
			break
		}
		since = result.NextSince
	}

	return all, nil
}
