package models

import (
	"fmt"
	"time"
)

// ManifestVersion is the current manifest schema version string.
const ManifestVersion = "1"

// Manifest is the persisted descriptor for one (symbol, interval) write.
// It is rewritten after every successful batch write, after all partition
// files have been durably written, so its presence is evidence that every
// partition it describes exists.
type Manifest struct {
	ExchangeID     string    `json:"exchange_id"`
	Symbol         string    `json:"symbol"`
	Interval       string    `json:"interval"`
	StartTimestamp time.Time `json:"start_timestamp"`
	EndTimestamp   time.Time `json:"end_timestamp"`
	FetchTimestamp time.Time `json:"fetch_timestamp"`
	Version        string    `json:"version"`
	RowCount       int       `json:"row_count"`
}

// Validate checks that the manifest carries every field the schema requires.
func (m *Manifest) Validate() error {
	if m.ExchangeID == "" {
		return fmt.Errorf("manifest exchange_id is required")
	}
	if m.Symbol == "" {
		return fmt.Errorf("manifest symbol is required")
	}
	if m.Interval == "" {
		return fmt.Errorf("manifest interval is required")
	}
	if m.StartTimestamp.IsZero() || m.EndTimestamp.IsZero() {
		return fmt.Errorf("manifest timestamps are required")
	}
	if m.EndTimestamp.Before(m.StartTimestamp) {
		return fmt.Errorf("manifest end_timestamp precedes start_timestamp")
	}
	if m.Version == "" {
		return fmt.Errorf("manifest version is required")
	}
	if m.RowCount <= 0 {
		return fmt.Errorf("manifest row_count must be positive, got %d", m.RowCount)
	}
	return nil
}
