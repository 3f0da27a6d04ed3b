package telemetry

import (
	"context"
	"log/slog"

	domain "signalcore/internal/core/domain/telemetry"
	appErrors "signalcore/pkg/errors"
)

// ingestService implements the fast path's per-batch contract: decode (the
// queue already decoded on read), validate, one write transaction against
// the raw store, then hand committed/invalid entries back to the worker for
// CDC emission, acking, and DLQ routing.
type ingestService struct {
	rawStore   domain.RawStoreRepository
	transactor domain.Transactor
	codec      domain.Codec
	logger     *slog.Logger
}

// NewIngestService returns the fast-path IngestService.
func NewIngestService(rawStore domain.RawStoreRepository, transactor domain.Transactor, codec domain.Codec, logger *slog.Logger) domain.IngestService {
	return &ingestService{rawStore: rawStore, transactor: transactor, codec: codec, logger: logger}
}

// IngestBatch validates every entry up front, splitting off anything
// schema-invalid before it ever touches the raw store, then commits the
// valid set in one transaction. A transaction failure is returned whole —
// the worker treats the entire batch as not-yet-committed and retries it,
// since SQLite gives no partial-commit outcome to reconcile against.
func (s *ingestService) IngestBatch(ctx context.Context, entries []domain.QueueEntry) ([]domain.CommittedEntry, []domain.InvalidEntry, error) {
	if len(entries) == 0 {
		return nil, nil, nil
	}

	var invalid []domain.InvalidEntry
	valid := make([]domain.QueueEntry, 0, len(entries))
	rows := make([]*domain.RawTrace, 0, len(entries))

	for _, entry := range entries {
		event := entry.Event
		if err := s.codec.Validate(&event); err != nil {
			invalid = append(invalid, domain.InvalidEntry{
				Entry:     entry,
				ErrorCode: appErrors.CodeSchemaInvalid,
				Reason:    err.Error(),
			})
			continue
		}

		wire, err := s.codec.Encode(&event)
		if err != nil {
			invalid = append(invalid, domain.InvalidEntry{
				Entry:     entry,
				ErrorCode: appErrors.CodePayloadTooLarge,
				Reason:    err.Error(),
			})
			continue
		}

		valid = append(valid, entry)
		rows = append(rows, &domain.RawTrace{
			EventID:     event.EventID,
			Platform:    event.Platform,
			SessionID:   event.SessionID(),
			EventType:   event.EventType,
			Timestamp:   event.Timestamp,
			EventData:   wire,
			Compression: "zlib",
			ByteSize:    len(wire),
		})
	}

	if len(valid) == 0 {
		return nil, invalid, nil
	}

	var rowIDs []int64
	var duplicates []bool
	err := s.transactor.WithinTransaction(ctx, func(txCtx context.Context) error {
		var txErr error
		rowIDs, duplicates, txErr = s.rawStore.InsertBatch(txCtx, rows)
		return txErr
	})
	if err != nil {
		return nil, invalid, err
	}

	committed := make([]domain.CommittedEntry, len(valid))
	for i, entry := range valid {
		committed[i] = domain.CommittedEntry{
			Entry:     entry,
			RowID:     rowIDs[i],
			Duplicate: duplicates[i],
		}
	}
	return committed, invalid, nil
}
