// Package validate checks batch integrity before any repair takes place:
// schema completeness, per-column missing-value ratios, and advisory OHLC
// consistency. The missing-value check runs against raw completeness, before
// gap filling, so repair can never mask a quality failure.
package validate

import (
	"log/slog"

	pipeerrors "github.com/quantgate/ohlcv-pipeline/internal/errors"
	"github.com/quantgate/ohlcv-pipeline/internal/models"
)

// Config holds the validation thresholds for one batch.
type Config struct {
	// MissingThreshold is the maximum tolerated fraction of missing values
	// per required column. The boundary is inclusive: a ratio exactly equal
	// to the threshold passes.
	MissingThreshold float64

	// Strict escalates OHLC consistency violations to a fatal
	// ConsistencyError instead of only counting them.
	Strict bool
}

// Validate checks the batch and produces a ValidationReport.
//
// Failure modes, in order of evaluation:
//   - SchemaError when a required column is absent from the batch entirely
//     (short-circuits, no further checks run);
//   - QualityThresholdError when any column's missing ratio exceeds the
//     threshold;
//   - ConsistencyError when Strict is set and OHLC violations exist.
//
// OHLC inconsistency is otherwise advisory: counted in the report, never
// rejected. The report's gap and outlier fields are zero here; the pipeline
// folds those in from the later stages.
func Validate(bars []models.Bar, cfg Config, logger *slog.Logger) (*models.ValidationReport, error) {
	if logger == nil {
		logger = slog.Default()
	}

	report := &models.ValidationReport{
		TotalRows:       len(bars),
		MissingByColumn: make(map[string]int, len(models.RequiredColumns)),
	}
	for _, col := range models.RequiredColumns {
		report.MissingByColumn[col] = 0
	}

	if len(bars) == 0 {
		return report, nil
	}

	for _, bar := range bars {
		for _, col := range models.RequiredColumns {
			if bar.Missing(col) {
				report.MissingByColumn[col]++
			}
		}
	}

	// A column missing on every row means the feed never carried it at all.
	var absent []string
	for _, col := range models.RequiredColumns {
		if report.MissingByColumn[col] == len(bars) {
			absent = append(absent, col)
		}
	}
	if len(absent) > 0 {
		return report, &pipeerrors.SchemaError{MissingColumns: absent}
	}

	total := float64(len(bars))
	for _, col := range models.RequiredColumns {
		ratio := float64(report.MissingByColumn[col]) / total
		if ratio > cfg.MissingThreshold {
			return report, &pipeerrors.QualityThresholdError{
				Column:    col,
				Ratio:     ratio,
				Threshold: cfg.MissingThreshold,
			}
		}
	}

	var firstViolation error
	for i := range bars {
		if err := bars[i].ConsistencyCheck(); err != nil {
			report.InconsistentRows++
			if firstViolation == nil {
				firstViolation = err
			}
			logger.Warn("ohlc consistency violation",
				"symbol", bars[i].Symbol,
				"timestamp", bars[i].Timestamp,
				"error", err)
		}
	}
	report.ValidRows = report.TotalRows - report.InconsistentRows

	if cfg.Strict && report.InconsistentRows > 0 {
		return report, &pipeerrors.ConsistencyError{
			Rows: report.InconsistentRows,
			Err:  firstViolation,
		}
	}

	return report, nil
}
