// Package archive implements the raw store's optional age-based compaction:
// rows older than the configured retention window are written columnar to a
// local Parquet file, one per platform per sweep, then deleted from SQLite.
package archive

import "time"

// Record is the flat, Parquet-tagged projection of a RawTrace row. Decoded
// payload bytes travel as a JSON string column rather than a nested group,
// mirroring the teacher's SpanJSONRaw convention — sufficient for replay
// without a full schema for every historical event shape.
type Record struct {
	RowID     int64     `parquet:"row_id" json:"row_id"`
	EventID   string    `parquet:"event_id" json:"event_id"`
	Platform  string    `parquet:"platform" json:"platform"`
	SessionID string    `parquet:"session_id" json:"session_id"`
	EventType string    `parquet:"event_type" json:"event_type"`
	Timestamp time.Time `parquet:"timestamp,timestamp(microsecond)" json:"timestamp"`
	EventJSON string    `parquet:"event_json" json:"event_json"`
	ArchivedAt time.Time `parquet:"archived_at,timestamp(microsecond)" json:"archived_at"`
}
