package store

import (
	"encoding/csv"
	"os"
	"strconv"
)

// csvWriter serializes partitions as CSV with a fixed header.
type csvWriter struct{}

func (csvWriter) Extension() string { return "csv" }

func (csvWriter) Write(path string, records []Record) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write([]string{"timestamp", "open", "high", "low", "close", "volume", "filled", "outlier"}); err != nil {
		return err
	}
	for _, r := range records {
		row := []string{
			strconv.FormatInt(r.Timestamp, 10),
			r.Open,
			r.High,
			r.Low,
			r.Close,
			r.Volume,
			strconv.FormatBool(r.Filled),
			strconv.FormatBool(r.Outlier),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}
