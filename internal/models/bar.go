// Package models provides the core data structures for the OHLCV ingestion
// pipeline: bars, validation reports, and write manifests.
//
// Prices and volumes are carried as decimal strings and parsed with
// shopspring/decimal for exact arithmetic. An empty string marks a missing
// value; downstream stages treat missing values explicitly rather than
// substituting defaults.
package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Column names for the required OHLCV schema.
const (
	ColumnOpen   = "open"
	ColumnHigh   = "high"
	ColumnLow    = "low"
	ColumnClose  = "close"
	ColumnVolume = "volume"
)

// RequiredColumns lists the columns every bar batch must carry, in canonical order.
var RequiredColumns = []string{ColumnOpen, ColumnHigh, ColumnLow, ColumnClose, ColumnVolume}

// Bar represents one OHLCV observation for a symbol at a point in time.
//
// A Bar is immutable once normalized; gap repair produces new bars with the
// Filled provenance flag set instead of mutating observed ones. The Outlier
// flag is set by the outlier stage and is advisory.
type Bar struct {
	Symbol    string    `json:"symbol"`
	Interval  string    `json:"interval"`
	Timestamp time.Time `json:"timestamp"`
	Open      string    `json:"open"`
	High      string    `json:"high"`
	Low       string    `json:"low"`
	Close     string    `json:"close"`
	Volume    string    `json:"volume"`

	// Filled marks a bar synthesized by gap repair rather than observed.
	Filled bool `json:"filled,omitempty"`

	// Outlier marks a bar flagged by the outlier detection heuristics.
	Outlier bool `json:"outlier,omitempty"`
}

// ValidationError reports a bar field that failed validation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field %s: %s", e.Field, e.Message)
}

// Value returns the named column's raw string value.
// Unknown columns return the empty string.
func (b *Bar) Value(column string) string {
	switch column {
	case ColumnOpen:
		return b.Open
	case ColumnHigh:
		return b.High
	case ColumnLow:
		return b.Low
	case ColumnClose:
		return b.Close
	case ColumnVolume:
		return b.Volume
	}
	return ""
}

// Missing reports whether the named column has no value on this bar.
func (b *Bar) Missing(column string) bool {
	return b.Value(column) == ""
}

// Complete reports whether every required column has a value.
func (b *Bar) Complete() bool {
	for _, col := range RequiredColumns {
		if b.Missing(col) {
			return false
		}
	}
	return true
}

// Decimal parses the named column as a decimal.
// Returns an error for missing or malformed values.
func (b *Bar) Decimal(column string) (decimal.Decimal, error) {
	raw := b.Value(column)
	if raw == "" {
		return decimal.Zero, &ValidationError{Field: column, Message: "value is missing"}
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, &ValidationError{Field: column, Message: fmt.Sprintf("invalid decimal %q: %v", raw, err)}
	}
	return d, nil
}

// ConsistencyCheck verifies the OHLC relationships on a complete bar:
// high >= max(open, close, low), low <= min(open, close, high), volume >= 0.
// Bars with missing values are skipped (returns nil) since the relationships
// cannot be evaluated. Violations are advisory in the pipeline; callers decide
// whether to escalate.
func (b *Bar) ConsistencyCheck() error {
	if !b.Complete() {
		return nil
	}

	open, err := b.Decimal(ColumnOpen)
	if err != nil {
		return err
	}
	high, err := b.Decimal(ColumnHigh)
	if err != nil {
		return err
	}
	low, err := b.Decimal(ColumnLow)
	if err != nil {
		return err
	}
	closePrice, err := b.Decimal(ColumnClose)
	if err != nil {
		return err
	}
	volume, err := b.Decimal(ColumnVolume)
	if err != nil {
		return err
	}

	if upper := decimal.Max(open, closePrice, low); high.LessThan(upper) {
		return &ValidationError{
			Field:   ColumnHigh,
			Message: fmt.Sprintf("high (%s) is below max(open, close, low) (%s)", high, upper),
		}
	}
	if lower := decimal.Min(open, closePrice, high); low.GreaterThan(lower) {
		return &ValidationError{
			Field:   ColumnLow,
			Message: fmt.Sprintf("low (%s) is above min(open, close, high) (%s)", low, lower),
		}
	}
	if volume.IsNegative() {
		return &ValidationError{
			Field:   ColumnVolume,
			Message: fmt.Sprintf("volume must be non-negative, got %s", volume),
		}
	}

	return nil
}

// Validate checks the structural fields a bar must always carry,
// independent of OHLC value consistency.
func (b *Bar) Validate() error {
	if b.Symbol == "" {
		return &ValidationError{Field: "symbol", Message: "symbol cannot be empty"}
	}
	if b.Interval == "" {
		return &ValidationError{Field: "interval", Message: "interval cannot be empty"}
	}
	if b.Timestamp.IsZero() {
		return &ValidationError{Field: "timestamp", Message: "timestamp cannot be zero"}
	}
	return nil
}

// String implements fmt.Stringer for log and error output.
func (b *Bar) String() string {
	return fmt.Sprintf("Bar{Symbol: %s, Interval: %s, Timestamp: %s, O: %s, H: %s, L: %s, C: %s, V: %s, Filled: %t, Outlier: %t}",
		b.Symbol, b.Interval, b.Timestamp.Format(time.RFC3339), b.Open, b.High, b.Low, b.Close, b.Volume, b.Filled, b.Outlier)
}
