package telemetry

import "context"

// QueueEntry is one delivered-but-not-yet-acked entry from a durable stream.
type QueueEntry struct {
	StreamID string
	Event    Event
}

// Queue is the durable, append-only event log with consumer groups and a
// dead-letter queue (C2). Implemented over Redis Streams.
type Queue interface {
	// Append adds an entry to stream, returning its assigned stream id.
	Append(ctx context.Context, stream string, event *Event) (streamID string, err error)

	// ReadGroup reads up to count new entries for consumer within group,
	// blocking up to blockMs for at least one entry.
	ReadGroup(ctx context.Context, stream, group, consumer string, count int64, blockMs int64) ([]QueueEntry, error)

	// Ack acknowledges entries, removing them from the consumer group's PEL.
	Ack(ctx context.Context, stream, group string, streamIDs ...string) error

	// ClaimStale reassigns entries whose PEL idle time exceeds minIdleMs to
	// consumer, incrementing retry_count on each claimed entry.
	ClaimStale(ctx context.Context, stream, group, consumer string, minIdleMs int64) ([]QueueEntry, error)

	// EnsureGroup idempotently creates the consumer group (MKSTREAM), no-op
	// if it already exists (BUSYGROUP).
	EnsureGroup(ctx context.Context, stream, group string) error

	// Trim approximately caps the stream at maxLength (MAXLEN ~).
	Trim(ctx context.Context, stream string, maxLength int64) error

	// Len returns the approximate stream length.
	Len(ctx context.Context, stream string) (int64, error)
}

// CDCPublisher appends committed raw-row identifiers to the CDC stream
// (C5). Not compressed; decouples raw-store durability from
// derivation.
type CDCPublisher interface {
	Publish(ctx context.Context, records []*CDCRecord) error
}

// CDCConsumer reads CDC records for the slow-path pool. A consumer is one
// member of the "slowpath" group bound to a sticky partition of sessions.
type CDCConsumer interface {
	Read(ctx context.Context, consumer string, count int64, blockMs int64) ([]CDCDelivery, error)
	Ack(ctx context.Context, consumer string, streamIDs ...string) error
}

// CDCDelivery pairs a delivered CDC record with its stream id for acking.
type CDCDelivery struct {
	StreamID string
	Record   CDCRecord
}
