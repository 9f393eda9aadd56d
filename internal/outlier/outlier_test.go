package outlier

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantgate/ohlcv-pipeline/internal/models"
)

func series(closes []string, volumes []string) []models.Bar {
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]models.Bar, len(closes))
	for i := range closes {
		bars[i] = models.Bar{
			Symbol:    "BTC/USDT",
			Interval:  "15min",
			Timestamp: base.Add(time.Duration(i) * 15 * time.Minute),
			Open:      closes[i],
			High:      closes[i],
			Low:       closes[i],
			Close:     closes[i],
			Volume:    volumes[i],
		}
	}
	return bars
}

func flat(n int, value string) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = value
	}
	return out
}

func TestFlagSinglePriceJump(t *testing.T) {
	// Price steps up 30% at index 5 and stays there: exactly one jump.
	closes := flat(10, "100")
	for i := 5; i < 10; i++ {
		closes[i] = "130"
	}
	bars := series(closes, flat(10, "10"))

	flagged, count := Flag(bars, Config{
		PriceJump:     0.2,
		VolumeSpike:   3,
		RollingWindow: 96, // never defined for 10 rows
	}, nil)

	assert.Equal(t, 1, count)
	for i := range flagged {
		assert.Equal(t, i == 5, flagged[i].Outlier, "row %d", i)
	}
}

func TestFlagPriceJumpBelowThresholdNotFlagged(t *testing.T) {
	closes := flat(5, "100")
	closes[2] = "115" // 15% < 20% threshold; the return step is also 13%
	bars := series(closes, flat(5, "10"))

	_, count := Flag(bars, Config{PriceJump: 0.2, VolumeSpike: 3, RollingWindow: 96}, nil)
	assert.Equal(t, 0, count)
}

func TestFlagVolumeSpike(t *testing.T) {
	volumes := flat(6, "10")
	volumes[5] = "100" // 10x the steady volume
	bars := series(flat(6, "100"), volumes)

	flagged, count := Flag(bars, Config{
		PriceJump:     0.2,
		VolumeSpike:   3,
		RollingWindow: 6,
	}, nil)

	// Trailing mean over the full window is (5*10+100)/6 = 25; 100 > 75.
	assert.Equal(t, 1, count)
	assert.True(t, flagged[5].Outlier)
}

func TestFlagVolumeNeverFlaggedBeforeWindowDefined(t *testing.T) {
	// A huge early volume cannot be flagged: rows before index
	// RollingWindow-1 have no defined rolling mean.
	volumes := flat(10, "10")
	volumes[3] = "10000"
	bars := series(flat(10, "100"), volumes)

	_, count := Flag(bars, Config{PriceJump: 0.5, VolumeSpike: 3, RollingWindow: 6}, nil)
	assert.Equal(t, 0, count)
}

func TestFlagSkipsMissingValues(t *testing.T) {
	closes := flat(6, "100")
	closes[2] = "" // missing close: neither row 2 nor row 3 can jump
	bars := series(closes, flat(6, "10"))
	bars[4].Volume = "" // undefined window means no volume flags

	_, count := Flag(bars, Config{PriceJump: 0.2, VolumeSpike: 3, RollingWindow: 6}, nil)
	assert.Equal(t, 0, count)
}

func TestFlagEnsureMinimumPadsDeterministically(t *testing.T) {
	bars := series(flat(20, "100"), flat(20, "10")) // nothing anomalous

	rng := rand.New(rand.NewSource(42))
	flagged, count := Flag(bars, Config{
		PriceJump:     0.2,
		VolumeSpike:   3,
		RollingWindow: 96,
		EnsureMinimum: 5,
		Rand:          rng,
	}, nil)

	assert.Equal(t, 5, count)
	total := 0
	for _, bar := range flagged {
		if bar.Outlier {
			total++
		}
	}
	assert.Equal(t, 5, total)

	// Same seed, same padded rows.
	again, _ := Flag(bars, Config{
		PriceJump:     0.2,
		VolumeSpike:   3,
		RollingWindow: 96,
		EnsureMinimum: 5,
		Rand:          rand.New(rand.NewSource(42)),
	}, nil)
	assert.Equal(t, flagged, again)
}

func TestFlagEnsureMinimumDisabledByDefault(t *testing.T) {
	bars := series(flat(20, "100"), flat(20, "10"))
	_, count := Flag(bars, Config{PriceJump: 0.2, VolumeSpike: 3, RollingWindow: 96}, nil)
	assert.Equal(t, 0, count)
}

func TestFlagDoesNotMutateInput(t *testing.T) {
	closes := flat(5, "100")
	closes[3] = "200"
	bars := series(closes, flat(5, "10"))

	Flag(bars, Config{PriceJump: 0.2, VolumeSpike: 3, RollingWindow: 96}, nil)
	for i, bar := range bars {
		assert.False(t, bar.Outlier, fmt.Sprintf("input row %d was mutated", i))
	}
}

func TestFlagEmptyInput(t *testing.T) {
	flagged, count := Flag(nil, Config{PriceJump: 0.2, VolumeSpike: 3, RollingWindow: 96}, nil)
	require.Empty(t, flagged)
	assert.Equal(t, 0, count)
}
