package telemetry

import "errors"

// Sentinel errors surfaced by the codec and derivation layers. HTTP/queue
// boundaries translate these into pkg/errors.AppError via errors.Is.
var (
	// ErrSchemaInvalid is returned by Validate when a required field is
	// missing. An oversize payload is reported by Encode as
	// ErrPayloadTooLarge instead.
	ErrSchemaInvalid = errors.New("event failed schema validation")

	// ErrPayloadTooLarge is returned when the compressed event exceeds the
	// 1 MiB ceiling.
	ErrPayloadTooLarge = errors.New("event payload exceeds 1 MiB post-compression ceiling")

	// ErrDuplicateEvent signals that event_id already has a RawTrace row;
	// callers treat this as success and still emit CDC .
	ErrDuplicateEvent = errors.New("duplicate event_id")

	// ErrPartitionMisroute signals a CDC record observed by a worker outside
	// its sticky partition.
	ErrPartitionMisroute = errors.New("record outside worker partition")

	// ErrRawRowTrimmed signals a CDC record referencing a raw_row_id that no
	// longer exists in the raw store (boundary case). Should never
	// happen; derivation skips with DerivationError.
	ErrRawRowTrimmed = errors.New("raw row was trimmed from the raw store")

	// ErrSessionNotFound signals no Conversation row exists yet for a
	// session (first-event case is not an error at the repository layer,
	// this is reserved for read-only query paths).
	ErrSessionNotFound = errors.New("session not found")
)
