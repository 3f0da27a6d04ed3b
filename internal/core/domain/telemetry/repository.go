package telemetry

import (
	"context"
	"time"

	"signalcore/pkg/pagination"
	"signalcore/pkg/ulid"
)

// RawStoreRepository persists RawTrace rows (C3) into one table per
// platform (see RawTraceTableName). Implementations must absorb
// at-least-once redelivery via a unique index on event_id, scoped to each
// platform's own table.
type RawStoreRepository interface {
	// InsertBatch inserts rows via INSERT OR IGNORE on event_id within the
	// caller's transaction (see shared.GetDB), routing each row to its
	// platform's table. Returns the row_id assigned to (or already held by)
	// each input row, in input order, plus which indices were pre-existing
	// duplicates. row_id is only unique within a platform's table.
	InsertBatch(ctx context.Context, rows []*RawTrace) (rowIDs []int64, duplicates []bool, err error)

	// GetByRowID fetches one row for slow-path derivation from platform's table.
	GetByRowID(ctx context.Context, platform Platform, rowID int64) (*RawTrace, error)

	// GetByEventID supports idempotence checks and tests.
	GetByEventID(ctx context.Context, platform Platform, eventID ulid.ULID) (*RawTrace, error)

	// CompactOlderThan returns rows older than cutoff for archival, ordered
	// by row_id, bounded by limit ( "optional age-based compaction").
	CompactOlderThan(ctx context.Context, platform Platform, cutoff time.Time, limit int) ([]*RawTrace, error)

	// DeleteRowIDs removes rows already archived to parquet from platform's table.
	DeleteRowIDs(ctx context.Context, platform Platform, rowIDs []int64) error
}

// DerivedStoreRepository persists Conversation/Turn/SessionAggregate rows
// (C7). Writers: slow-path workers only.
type DerivedStoreRepository interface {
	// GetConversation returns nil, nil if no row exists yet.
	GetConversation(ctx context.Context, sessionID string) (*Conversation, error)

	// UpsertConversation creates the row on first event, otherwise overwrites
	// it in place unconditionally. The idempotence check (raw row_id greater
	// than the stored LastProcessedRowID) is made by the caller beforehand.
	UpsertConversation(ctx context.Context, conv *Conversation) error

	// AppendTurn records one shape-only turn.
	AppendTurn(ctx context.Context, turn *Turn) error

	// UpsertSessionAggregate maintains the recency-listing index.
	UpsertSessionAggregate(ctx context.Context, agg *SessionAggregate) error

	// ListSessionsByRecency supports the read-only query surface.
	ListSessionsByRecency(ctx context.Context, platform Platform, params pagination.Params) ([]*SessionAggregate, error)
}

// MetricsStoreRepository persists and ranges MetricPoint rows (C8).
type MetricsStoreRepository interface {
	// RecordBatch writes monotonic time-series points; duplicate writes at
	// the same (category, name, session_id, timestamp) are coalesced.
	RecordBatch(ctx context.Context, points []*MetricPoint) error

	// Range queries a metric by key over [from, to], bounded by maxPoints.
	Range(ctx context.Context, category MetricCategory, name string, sessionID *string, from, to time.Time, maxPoints int) ([]*MetricPoint, error)

	// DeleteOlderThan enforces per-category retention.
	DeleteOlderThan(ctx context.Context, category MetricCategory, cutoff time.Time) (int64, error)
}

// SharedStateRepository exposes atomic counters, TTL strings, and a
// single-holder lock shared across all workers (C9).
type SharedStateRepository interface {
	// IncrCounter atomically adds delta to key, returning the new value.
	IncrCounter(ctx context.Context, key string, delta int64) (int64, error)

	// GetCounter reads the current value of key (0 if unset).
	GetCounter(ctx context.Context, key string) (int64, error)

	// SetString stores a TTL'd string value (e.g. last_composite_calc_at).
	SetString(ctx context.Context, key, value string, ttl time.Duration) error

	// GetString reads a string value, ok=false if absent or expired.
	GetString(ctx context.Context, key string) (value string, ok bool, err error)

	// TryLock attempts to acquire a single-holder lock with TTL, non-blocking.
	// Returns false if another holder already owns the lock.
	TryLock(ctx context.Context, key string, ttl time.Duration) (acquired bool, err error)

	// ReleaseLock releases a lock previously acquired with TryLock.
	ReleaseLock(ctx context.Context, key string) error
}

// DLQRepository exposes the dead-letter stream for operator-facing replay
// (C10 supervisor).
type DLQRepository interface {
	// Move appends a failed entry to the DLQ with a reason and the last
	// error code observed.
	Move(ctx context.Context, event *Event, errorCode string, reason string) error

	// List returns up to limit pending DLQ entries for operator inspection.
	List(ctx context.Context, limit int64) ([]DLQEntry, error)

	// Replay re-appends matching DLQ entries to the main queue with
	// retry_count reset, returning the count replayed.
	Replay(ctx context.Context, filter DLQFilter) (int, error)
}

// DLQEntry is one dead-lettered event plus the reason it was moved.
type DLQEntry struct {
	StreamID  string    `json:"stream_id"`
	Event     Event     `json:"event"`
	ErrorCode string    `json:"error_code"`
	Reason    string    `json:"reason"`
	MovedAt   time.Time `json:"moved_at"`
}

// DLQFilter narrows which DLQ entries an operator replay targets.
type DLQFilter struct {
	Platform  Platform
	ErrorCode string
	Limit     int64
}
