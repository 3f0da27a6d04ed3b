package archive

import (
	"bytes"
	"fmt"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress/zstd"
)

// ParquetWriter writes Record slices to Parquet format with ZSTD
// compression. Grounded on the teacher's observability.ParquetWriter;
// compressionLevel maps to a zstd.Level the same way.
type ParquetWriter struct {
	compressionLevel int
}

// NewParquetWriter returns a writer at the given compression level (1-22,
// clamped).
func NewParquetWriter(compressionLevel int) *ParquetWriter {
	if compressionLevel < 1 {
		compressionLevel = 1
	}
	if compressionLevel > 22 {
		compressionLevel = 22
	}
	return &ParquetWriter{compressionLevel: compressionLevel}
}

func (w *ParquetWriter) getZstdLevel() zstd.Level {
	switch {
	case w.compressionLevel <= 1:
		return zstd.SpeedFastest
	case w.compressionLevel <= 3:
		return zstd.SpeedDefault
	case w.compressionLevel <= 9:
		return zstd.SpeedBetterCompression
	default:
		return zstd.SpeedBestCompression
	}
}

// WriteRecords serializes records to Parquet bytes.
func (w *ParquetWriter) WriteRecords(records []Record) ([]byte, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("no records to write")
	}

	var buf bytes.Buffer
	writer := parquet.NewGenericWriter[Record](
		&buf,
		parquet.Compression(&zstd.Codec{Level: w.getZstdLevel()}),
	)

	if _, err := writer.Write(records); err != nil {
		return nil, fmt.Errorf("failed to write parquet records: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close parquet writer: %w", err)
	}

	return buf.Bytes(), nil
}
