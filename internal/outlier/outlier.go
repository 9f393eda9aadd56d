// Package outlier marks suspicious bars using two heuristics: single-step
// price jumps and volume spikes against a trailing rolling mean. Flags are
// advisory; flagged bars stay in the batch and are persisted with their flag.
package outlier

import (
	"log/slog"
	"math/rand"

	"github.com/shopspring/decimal"

	"github.com/quantgate/ohlcv-pipeline/internal/models"
)

// Config holds the flagging thresholds.
type Config struct {
	// PriceJump flags a bar when |close_t / close_{t-1} - 1| exceeds it.
	PriceJump float64

	// VolumeSpike flags a bar when its volume exceeds the trailing rolling
	// mean multiplied by this factor.
	VolumeSpike float64

	// RollingWindow is the trailing window length for the volume mean. The
	// first RollingWindow-1 rows have no defined mean and are never flagged
	// on the volume criterion.
	RollingWindow int

	// EnsureMinimum, when positive, pads the flagged set with randomly
	// chosen additional rows up to this count. This exists purely as
	// opt-in test support: the padded rows are not real anomalies. Leave
	// at zero for production batches.
	EnsureMinimum int

	// Rand supplies the randomness for EnsureMinimum padding; tests inject
	// a seeded source for determinism. Ignored when EnsureMinimum is zero.
	Rand *rand.Rand
}

// Flag returns a copy of the series with the Outlier flag set on suspicious
// bars, plus the number of bars flagged. The input is not mutated.
func Flag(bars []models.Bar, cfg Config, logger *slog.Logger) ([]models.Bar, int) {
	if logger == nil {
		logger = slog.Default()
	}

	out := make([]models.Bar, len(bars))
	copy(out, bars)
	if len(out) == 0 {
		return out, 0
	}

	jumpThreshold := decimal.NewFromFloat(cfg.PriceJump)
	spikeFactor := decimal.NewFromFloat(cfg.VolumeSpike)

	flagged := 0
	for i := range out {
		isOutlier := false

		if i > 0 {
			if jump, ok := priceJump(&out[i-1], &out[i]); ok && jump.GreaterThan(jumpThreshold) {
				isOutlier = true
				logger.Debug("price jump flagged",
					"symbol", out[i].Symbol,
					"timestamp", out[i].Timestamp,
					"jump", jump)
			}
		}

		if !isOutlier && cfg.RollingWindow > 0 && i >= cfg.RollingWindow-1 {
			if mean, volume, ok := rollingVolume(out, i, cfg.RollingWindow); ok {
				if volume.GreaterThan(mean.Mul(spikeFactor)) {
					isOutlier = true
					logger.Debug("volume spike flagged",
						"symbol", out[i].Symbol,
						"timestamp", out[i].Timestamp,
						"volume", volume,
						"rolling_mean", mean)
				}
			}
		}

		if isOutlier {
			out[i].Outlier = true
			flagged++
		}
	}

	if cfg.EnsureMinimum > 0 && flagged < cfg.EnsureMinimum {
		flagged += padToMinimum(out, cfg.EnsureMinimum-flagged, cfg.Rand, logger)
	}

	return out, flagged
}

// priceJump computes |close_t / close_{t-1} - 1|. The second return is false
// when either close is missing or the previous close is zero.
func priceJump(prev, curr *models.Bar) (decimal.Decimal, bool) {
	prevClose, err := prev.Decimal(models.ColumnClose)
	if err != nil || prevClose.IsZero() {
		return decimal.Zero, false
	}
	currClose, err := curr.Decimal(models.ColumnClose)
	if err != nil {
		return decimal.Zero, false
	}
	return currClose.Div(prevClose).Sub(decimal.NewFromInt(1)).Abs(), true
}

// rollingVolume computes the trailing mean over the window ending at index i
// (inclusive). The mean is undefined when any volume in the window is
// missing, in which case ok is false.
func rollingVolume(bars []models.Bar, i, window int) (mean, volume decimal.Decimal, ok bool) {
	sum := decimal.Zero
	for j := i - window + 1; j <= i; j++ {
		v, err := bars[j].Decimal(models.ColumnVolume)
		if err != nil {
			return decimal.Zero, decimal.Zero, false
		}
		sum = sum.Add(v)
		if j == i {
			volume = v
		}
	}
	mean = sum.Div(decimal.NewFromInt(int64(window)))
	return mean, volume, true
}

// padToMinimum randomly flags additional unflagged rows until the minimum
// count is reached or no candidates remain. Returns the number padded.
func padToMinimum(bars []models.Bar, needed int, rng *rand.Rand, logger *slog.Logger) int {
	candidates := make([]int, 0, len(bars))
	for i := range bars {
		if !bars[i].Outlier {
			candidates = append(candidates, i)
		}
	}
	if len(candidates) == 0 {
		return 0
	}

	if rng == nil {
		rng = rand.New(rand.NewSource(int64(len(bars))))
	}
	rng.Shuffle(len(candidates), func(a, b int) {
		candidates[a], candidates[b] = candidates[b], candidates[a]
	})

	if needed > len(candidates) {
		needed = len(candidates)
	}
	for _, idx := range candidates[:needed] {
		bars[idx].Outlier = true
	}

	logger.Warn("padded outlier flags to minimum count; padded rows are not real anomalies",
		"padded", needed)
	return needed
}
