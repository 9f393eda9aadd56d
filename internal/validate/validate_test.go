package validate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pipeerrors "github.com/quantgate/ohlcv-pipeline/internal/errors"
	"github.com/quantgate/ohlcv-pipeline/internal/models"
)

func makeBars(n int) []models.Bar {
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]models.Bar, n)
	for i := range bars {
		bars[i] = models.Bar{
			Symbol:    "BTC/USDT",
			Interval:  "1min",
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			Open:      "100",
			High:      "101",
			Low:       "99",
			Close:     "100.5",
			Volume:    "10",
		}
	}
	return bars
}

func TestValidateCleanBatch(t *testing.T) {
	bars := makeBars(10)

	report, err := Validate(bars, Config{MissingThreshold: 0.05}, nil)
	require.NoError(t, err)
	assert.Equal(t, 10, report.TotalRows)
	assert.Equal(t, 10, report.ValidRows)
	assert.Equal(t, 0, report.InconsistentRows)
	assert.Equal(t, 0, report.MissingTotal())
	for _, col := range models.RequiredColumns {
		assert.Contains(t, report.MissingByColumn, col)
	}
}

func TestValidateSchemaErrorWhenColumnAbsent(t *testing.T) {
	bars := makeBars(5)
	for i := range bars {
		bars[i].Volume = ""
	}

	_, err := Validate(bars, Config{MissingThreshold: 0.5}, nil)
	require.Error(t, err)

	var schemaErr *pipeerrors.SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, []string{models.ColumnVolume}, schemaErr.MissingColumns)
}

func TestValidateMissingRatioBoundaryIsInclusive(t *testing.T) {
	// 100 rows, threshold 0.05: exactly 5 missing closes must pass.
	bars := makeBars(100)
	for i := 0; i < 5; i++ {
		bars[i].Close = ""
	}

	report, err := Validate(bars, Config{MissingThreshold: 0.05}, nil)
	require.NoError(t, err)
	assert.Equal(t, 5, report.MissingByColumn[models.ColumnClose])

	// One more missing row tips the ratio over the threshold.
	bars[5].Close = ""
	_, err = Validate(bars, Config{MissingThreshold: 0.05}, nil)
	require.Error(t, err)

	var qualityErr *pipeerrors.QualityThresholdError
	require.ErrorAs(t, err, &qualityErr)
	assert.Equal(t, models.ColumnClose, qualityErr.Column)
	assert.InDelta(t, 0.06, qualityErr.Ratio, 1e-9)
}

func TestValidateMissingCheckedBeforeAnythingElse(t *testing.T) {
	// A batch that would also trip strict consistency must still fail on the
	// quality threshold first: the missing check runs against raw completeness.
	bars := makeBars(10)
	for i := 0; i < 2; i++ {
		bars[i].Close = ""
	}
	bars[5].High = "1" // inconsistent

	_, err := Validate(bars, Config{MissingThreshold: 0.05, Strict: true}, nil)
	var qualityErr *pipeerrors.QualityThresholdError
	require.ErrorAs(t, err, &qualityErr)
}

func TestValidateConsistencyIsAdvisoryByDefault(t *testing.T) {
	bars := makeBars(10)
	bars[3].High = "1" // below max(open, close, low)

	report, err := Validate(bars, Config{MissingThreshold: 0.05}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, report.InconsistentRows)
	assert.Equal(t, 9, report.ValidRows)
}

func TestValidateStrictModeRejectsInconsistency(t *testing.T) {
	bars := makeBars(10)
	bars[3].High = "1"

	_, err := Validate(bars, Config{MissingThreshold: 0.05, Strict: true}, nil)
	require.Error(t, err)

	var consistencyErr *pipeerrors.ConsistencyError
	require.ErrorAs(t, err, &consistencyErr)
	assert.Equal(t, 1, consistencyErr.Rows)
}

func TestValidateEmptyBatch(t *testing.T) {
	report, err := Validate(nil, Config{MissingThreshold: 0.05}, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, report.TotalRows)
}
