package normalize

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantgate/ohlcv-pipeline/internal/models"
)

func bar(ts time.Time, closePrice string) models.Bar {
	return models.Bar{
		Symbol:    "BTC/USDT",
		Interval:  "1min",
		Timestamp: ts,
		Open:      "100",
		High:      "101",
		Low:       "99",
		Close:     closePrice,
		Volume:    "10",
	}
}

func TestNormalizeSortsAscending(t *testing.T) {
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	input := []models.Bar{
		bar(base.Add(2*time.Minute), "102"),
		bar(base, "100"),
		bar(base.Add(time.Minute), "101"),
	}

	out := Normalize(input)
	require.Len(t, out, 3)
	assert.Equal(t, base, out[0].Timestamp)
	assert.Equal(t, base.Add(time.Minute), out[1].Timestamp)
	assert.Equal(t, base.Add(2*time.Minute), out[2].Timestamp)
}

func TestNormalizeKeepsFirstSeenDuplicate(t *testing.T) {
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	first := bar(base, "100")
	second := bar(base, "999") // same timestamp, different values

	out := Normalize([]models.Bar{first, second})
	require.Len(t, out, 1)

	// The first-seen record wins, never the latest.
	assert.Equal(t, "100", out[0].Close)
}

func TestNormalizeIdempotent(t *testing.T) {
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	input := []models.Bar{
		bar(base.Add(3*time.Minute), "103"),
		bar(base, "100"),
		bar(base, "998"),
		bar(base.Add(time.Minute), "101"),
		bar(base.Add(3*time.Minute), "997"),
	}

	once := Normalize(input)
	twice := Normalize(once)
	assert.Equal(t, once, twice)
}

func TestNormalizeEmptyInput(t *testing.T) {
	assert.Empty(t, Normalize(nil))
	assert.Empty(t, Normalize([]models.Bar{}))
}

func TestNormalizeDoesNotMutateInput(t *testing.T) {
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	input := []models.Bar{
		bar(base.Add(time.Minute), "101"),
		bar(base, "100"),
	}
	snapshot := make([]models.Bar, len(input))
	copy(snapshot, input)

	Normalize(input)
	assert.Equal(t, snapshot, input)
}
