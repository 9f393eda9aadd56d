// Package store persists validated bars as date-partitioned files with an
// accompanying manifest.
//
// Layout: {root}/{exchange_id}/{symbol with "/" replaced by "-"}/{interval}/
// holds one file per UTC calendar date ({YYYY-MM-DD}.parquet or .csv) plus
// manifest.json describing the latest write. Every file is written to a
// temporary path and renamed into place so readers never observe a
// half-written file, and the manifest is written last so its presence is
// evidence that every partition it describes was durably written.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	pipeerrors "github.com/quantgate/ohlcv-pipeline/internal/errors"
	"github.com/quantgate/ohlcv-pipeline/internal/models"
)

const manifestFile = "manifest.json"

// partitionWriter serializes one day's records to a file.
type partitionWriter interface {
	Extension() string
	Write(path string, records []Record) error
}

// Record is the flat on-disk row shape shared by the Parquet and CSV writers.
type Record struct {
	Timestamp int64  `parquet:"timestamp" json:"t"` // epoch milliseconds, UTC
	Open      string `parquet:"open,optional" json:"o"`
	High      string `parquet:"high,optional" json:"h"`
	Low       string `parquet:"low,optional" json:"l"`
	Close     string `parquet:"close,optional" json:"c"`
	Volume    string `parquet:"volume,optional" json:"v"`
	Filled    bool   `parquet:"filled" json:"filled"`
	Outlier   bool   `parquet:"outlier" json:"outlier"`
}

// Store writes date-partitioned bar files and manifests under a root
// directory for one exchange.
type Store struct {
	root       string
	exchangeID string
	writer     partitionWriter
	logger     *slog.Logger
}

// WriteRequest describes one batch write.
type WriteRequest struct {
	Bars      []models.Bar
	Symbol    string
	Interval  string
	FetchTime time.Time
}

// New builds a Store. Format selects the partition file format, "parquet"
// (default) or "csv".
func New(root, exchangeID, format string, logger *slog.Logger) (*Store, error) {
	if root == "" {
		return nil, fmt.Errorf("store root cannot be empty")
	}
	if exchangeID == "" {
		return nil, fmt.Errorf("store exchange id cannot be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}

	var writer partitionWriter
	switch format {
	case "", "parquet":
		writer = parquetWriter{}
	case "csv":
		writer = csvWriter{}
	default:
		return nil, fmt.Errorf("unsupported partition format %q", format)
	}

	return &Store{
		root:       root,
		exchangeID: exchangeID,
		writer:     writer,
		logger:     logger.With("component", "partitioned_store"),
	}, nil
}

// Write persists the batch grouped by UTC calendar date, replacing each
// touched date's file and leaving other dates untouched, then rewrites the
// manifest. Returns EmptyDataError for an empty batch and StoreIOError on
// filesystem failure; on failure before the manifest write completes, the
// previous manifest (if any) remains the visible state.
func (s *Store) Write(ctx context.Context, req WriteRequest) (*models.Manifest, error) {
	if len(req.Bars) == 0 {
		return nil, &pipeerrors.EmptyDataError{Symbol: req.Symbol, Interval: req.Interval}
	}

	dir := s.seriesDir(req.Symbol, req.Interval)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &pipeerrors.StoreIOError{Path: dir, Err: err}
	}

	partitions := groupByDate(req.Bars)
	dates := make([]string, 0, len(partitions))
	for date := range partitions {
		dates = append(dates, date)
	}
	sort.Strings(dates)

	for _, date := range dates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		path := filepath.Join(dir, date+"."+s.writer.Extension())
		if err := s.writePartition(path, partitions[date]); err != nil {
			return nil, err
		}
		s.logger.Debug("partition written",
			"path", path,
			"rows", len(partitions[date]))
	}

	manifest := s.buildManifest(req)
	if err := s.writeManifest(dir, manifest); err != nil {
		return nil, err
	}

	s.logger.Info("batch persisted",
		"symbol", req.Symbol,
		"interval", req.Interval,
		"partitions", len(dates),
		"rows", manifest.RowCount)

	return manifest, nil
}

// ReadManifest loads the current manifest for a (symbol, interval) series.
// Returns (nil, nil) when no manifest exists yet.
func (s *Store) ReadManifest(symbol, interval string) (*models.Manifest, error) {
	path := filepath.Join(s.seriesDir(symbol, interval), manifestFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, &pipeerrors.StoreIOError{Path: path, Err: err}
	}

	var manifest models.Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("corrupt manifest at %s: %w", path, err)
	}
	return &manifest, nil
}

func (s *Store) seriesDir(symbol, interval string) string {
	return filepath.Join(s.root, s.exchangeID, SanitizeSymbol(symbol), interval)
}

// SanitizeSymbol makes a pair identifier filesystem-safe.
func SanitizeSymbol(symbol string) string {
	return strings.ReplaceAll(symbol, "/", "-")
}

// writePartition serializes the records to a temporary file in the target
// directory and renames it into place.
func (s *Store) writePartition(path string, records []Record) error {
	tmp := path + ".tmp"
	if err := s.writer.Write(tmp, records); err != nil {
		os.Remove(tmp)
		return &pipeerrors.StoreIOError{Path: path, Err: err}
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return &pipeerrors.StoreIOError{Path: path, Err: err}
	}
	return nil
}

func (s *Store) writeManifest(dir string, manifest *models.Manifest) error {
	path := filepath.Join(dir, manifestFile)
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		os.Remove(tmp)
		return &pipeerrors.StoreIOError{Path: path, Err: err}
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return &pipeerrors.StoreIOError{Path: path, Err: err}
	}
	return nil
}

func (s *Store) buildManifest(req WriteRequest) *models.Manifest {
	minTS := req.Bars[0].Timestamp
	maxTS := req.Bars[0].Timestamp
	for _, bar := range req.Bars[1:] {
		if bar.Timestamp.Before(minTS) {
			minTS = bar.Timestamp
		}
		if bar.Timestamp.After(maxTS) {
			maxTS = bar.Timestamp
		}
	}

	fetchTime := req.FetchTime
	if fetchTime.IsZero() {
		fetchTime = time.Now().UTC()
	}

	return &models.Manifest{
		ExchangeID:     s.exchangeID,
		Symbol:         req.Symbol,
		Interval:       req.Interval,
		StartTimestamp: minTS.UTC(),
		EndTimestamp:   maxTS.UTC(),
		FetchTimestamp: fetchTime.UTC(),
		Version:        models.ManifestVersion,
		RowCount:       len(req.Bars),
	}
}

// groupByDate buckets bars by the UTC calendar date of their timestamp,
// preserving input order within each bucket.
func groupByDate(bars []models.Bar) map[string][]Record {
	partitions := make(map[string][]Record)
	for _, bar := range bars {
		date := bar.Timestamp.UTC().Format("2006-01-02")
		partitions[date] = append(partitions[date], Record{
			Timestamp: bar.Timestamp.UTC().UnixMilli(),
			Open:      bar.Open,
			High:      bar.High,
			Low:       bar.Low,
			Close:     bar.Close,
			Volume:    bar.Volume,
			Filled:    bar.Filled,
			Outlier:   bar.Outlier,
		})
	}
	return partitions
}
