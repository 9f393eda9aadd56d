package store

import (
	"github.com/parquet-go/parquet-go"
)

// parquetWriter serializes partitions as Parquet.
type parquetWriter struct{}

func (parquetWriter) Extension() string { return "parquet" }

func (parquetWriter) Write(path string, records []Record) error {
	return parquet.WriteFile(path, records)
}
