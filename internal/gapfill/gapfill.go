// Package gapfill repairs short timing gaps in a normalized bar series and
// counts the long gaps it refuses to touch.
//
// A gap is a run of missing expected intervals between two observed bars.
// Runs whose total missing duration does not exceed the short-gap bound are
// forward-filled with flat bars carrying zero volume and a provenance flag;
// longer runs are left open and their missing steps are accumulated into the
// detected-gap count.
package gapfill

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/quantgate/ohlcv-pipeline/internal/models"
)

// Result is the outcome of one repair pass.
type Result struct {
	// Bars is the repaired series, sorted ascending, containing all input
	// bars plus any filled rows. Input bars are never mutated.
	Bars []models.Bar

	// GapsDetected is the number of missing expected-interval steps in runs
	// that were too long to fill.
	GapsDetected int

	// RowsFilled is the number of synthesized bars.
	RowsFilled int
}

// Repair walks the sorted, deduplicated series and compares consecutive
// timestamp deltas against the expected interval. Any delta exceeding the
// interval by more than a rounding tolerance marks a gap of
// (delta / interval) - 1 missing steps.
//
// The input must be normalized (sorted ascending, unique timestamps);
// Repair returns an error when it observes a non-increasing sequence.
func Repair(bars []models.Bar, interval time.Duration, shortGap time.Duration, logger *slog.Logger) (*Result, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("expected interval must be positive, got %s", interval)
	}
	if logger == nil {
		logger = slog.Default()
	}

	result := &Result{Bars: make([]models.Bar, 0, len(bars))}
	if len(bars) == 0 {
		return result, nil
	}

	// Timestamp jitter below this bound is not a gap.
	tolerance := interval / 100

	result.Bars = append(result.Bars, bars[0])
	for i := 1; i < len(bars); i++ {
		prev := bars[i-1]
		curr := bars[i]

		delta := curr.Timestamp.Sub(prev.Timestamp)
		if delta <= 0 {
			return nil, fmt.Errorf("series is not strictly increasing at %s", curr.Timestamp.Format(time.RFC3339))
		}

		if delta > interval+tolerance {
			missingSteps := int((delta + tolerance) / interval)
			missingSteps--
			missingDuration := time.Duration(missingSteps) * interval

			if missingDuration <= shortGap && shortGap > 0 {
				for step := 1; step <= missingSteps; step++ {
					result.Bars = append(result.Bars, fillBar(prev, step, interval))
				}
				result.RowsFilled += missingSteps
				logger.Debug("filled short gap",
					"symbol", curr.Symbol,
					"after", prev.Timestamp,
					"steps", missingSteps)
			} else {
				result.GapsDetected += missingSteps
				logger.Warn("long gap left unfilled",
					"symbol", curr.Symbol,
					"after", prev.Timestamp,
					"steps", missingSteps,
					"duration", missingDuration)
			}
		}

		result.Bars = append(result.Bars, curr)
	}

	return result, nil
}

// fillBar synthesizes the bar for one missing step by carrying the previous
// observed bar's prices forward. Volume is zero and the provenance flag is
// set so consumers can tell the row apart from observed data.
func fillBar(prev models.Bar, step int, interval time.Duration) models.Bar {
	return models.Bar{
		Symbol:    prev.Symbol,
		Interval:  prev.Interval,
		Timestamp: prev.Timestamp.Add(time.Duration(step) * interval),
		Open:      prev.Open,
		High:      prev.High,
		Low:       prev.Low,
		Close:     prev.Close,
		Volume:    "0",
		Filled:    true,
	}
}
