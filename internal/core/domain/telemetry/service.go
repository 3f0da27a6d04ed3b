package telemetry

import "context"

// Codec implements the canonical wire encoding of C1: canonical JSON then
// zlib level 6, with the 1 MiB post-compression ceiling enforced at encode
// time.
type Codec interface {
	// Encode validates then compresses event, returning the wire bytes.
	Encode(event *Event) ([]byte, error)
	// Decode decompresses and parses wire bytes back into an Event.
	Decode(data []byte) (*Event, error)
	// Validate checks required fields without encoding; the size ceiling is
	// enforced only by Encode.
	Validate(event *Event) error
}

// IngestService orchestrates the fast path's per-batch contract (C4):
// decode+validate, compress, one write transaction, CDC emit, ack.
type IngestService interface {
	// IngestBatch processes a batch of queue entries end to end. Entries
	// that fail validation are returned in invalid (for DLQ); entries
	// successfully persisted (including absorbed duplicates) are returned
	// in committed (for ack + CDC).
	IngestBatch(ctx context.Context, entries []QueueEntry) (committed []CommittedEntry, invalid []InvalidEntry, err error)
}

// CommittedEntry pairs a persisted entry with the row_id it now owns.
type CommittedEntry struct {
	Entry     QueueEntry
	RowID     int64
	Duplicate bool
}

// InvalidEntry pairs a rejected entry with its validation error code.
type InvalidEntry struct {
	Entry     QueueEntry
	ErrorCode string
	Reason    string
}

// DerivationService implements the slow path's per-record work (C6):
// conversation-state advancement and pure metric derivation.
type DerivationService interface {
	// ApplyRecord reads the raw blob, advances conversation state for its
	// session (no-op if already applied), and derives metric points. It
	// does not itself ack the CDC record; the caller's worker does that
	// after this returns nil.
	ApplyRecord(ctx context.Context, record *CDCRecord) error
}

// CompositeService computes global composite metrics from shared-state
// counters on a fixed cadence, guarded by a TTL lock (C9).
type CompositeService interface {
	// RunOnce attempts the lock; if acquired, reads counters, computes and
	// records composite metrics, and stamps last_composite_calc_at. Returns
	// ran=false if the lock was held elsewhere (not an error).
	RunOnce(ctx context.Context) (ran bool, err error)
}
