package sharedstate

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	domain "signalcore/internal/core/domain/telemetry"
	"signalcore/internal/infrastructure/database"
)

// dlqRepository implements domain.DLQRepository directly over the events.dlq
// Redis stream, independent of the consumer-group machinery the main queue
// uses — the DLQ is drained only by an operator action, never auto-retried.
type dlqRepository struct {
	redis      *database.RedisDB
	codec      domain.Codec
	stream     string
	mainQueue  domain.Queue
	mainStream string
}

// NewDLQRepository returns the Redis-backed DLQRepository bound to stream.
func NewDLQRepository(redisDB *database.RedisDB, codec domain.Codec, stream string, mainQueue domain.Queue, mainStream string) domain.DLQRepository {
	return &dlqRepository{redis: redisDB, codec: codec, stream: stream, mainQueue: mainQueue, mainStream: mainStream}
}

func (d *dlqRepository) Move(ctx context.Context, event *domain.Event, errorCode, reason string) error {
	wire, err := d.codec.Encode(event)
	// Encoding fails for an event that is missing a required field or is
	// over the size ceiling; such an entry is stored with a "{}" placeholder
	// as its data, so its event_id, error code and reason are still recorded
	// in the stream. List and Replay skip entries whose data does not
	// decode, so neither returns it.
	if err != nil {
		wire = []byte("{}")
	}

	_, addErr := d.redis.Client.XAdd(ctx, &redis.XAddArgs{
		Stream: d.stream,
		Values: map[string]interface{}{
			"event_id":   event.EventID.String(),
			"data":       wire,
			"error_code": errorCode,
			"reason":     reason,
			"moved_at":   time.Now().UTC().Unix(),
		},
	}).Result()
	if addErr != nil {
		return fmt.Errorf("move to dlq: %w", addErr)
	}
	return nil
}

func (d *dlqRepository) List(ctx context.Context, limit int64) ([]domain.DLQEntry, error) {
	msgs, err := d.redis.Client.XRevRangeN(ctx, d.stream, "+", "-", limit).Result()
	if err != nil {
		return nil, fmt.Errorf("list dlq: %w", err)
	}

	entries := make([]domain.DLQEntry, 0, len(msgs))
	for _, msg := range msgs {
		entry, parseErr := d.parseEntry(msg)
		if parseErr != nil {
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (d *dlqRepository) parseEntry(msg redis.XMessage) (domain.DLQEntry, error) {
	raw, _ := msg.Values["data"].(string)
	event, err := d.codec.Decode([]byte(raw))
	if err != nil {
		return domain.DLQEntry{}, err
	}
	errorCode, _ := msg.Values["error_code"].(string)
	reason, _ := msg.Values["reason"].(string)
	movedAt := parseMovedAt(msg.Values["moved_at"])

	return domain.DLQEntry{
		StreamID:  msg.ID,
		Event:     *event,
		ErrorCode: errorCode,
		Reason:    reason,
		MovedAt:   movedAt,
	}, nil
}

func parseMovedAt(v interface{}) time.Time {
	s, _ := v.(string)
	sec, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}

// Replay re-appends matching DLQ entries to the main events stream with
// retry_count reset to zero and removes them from the DLQ so a second
// replay call doesn't double-enqueue the same entry.
func (d *dlqRepository) Replay(ctx context.Context, filter domain.DLQFilter) (int, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 1000
	}
	entries, err := d.List(ctx, limit)
	if err != nil {
		return 0, err
	}

	replayed := 0
	for _, entry := range entries {
		if filter.Platform != "" && entry.Event.Platform != filter.Platform {
			continue
		}
		if filter.ErrorCode != "" && entry.ErrorCode != filter.ErrorCode {
			continue
		}

		event := entry.Event
		event.RetryCount = 0
		if _, err := d.mainQueue.Append(ctx, d.mainStream, &event); err != nil {
			return replayed, fmt.Errorf("replay event %s: %w", event.EventID, err)
		}
		if err := d.redis.Client.XDel(ctx, d.stream, entry.StreamID).Err(); err != nil {
			return replayed, fmt.Errorf("remove replayed dlq entry %s: %w", entry.StreamID, err)
		}
		replayed++
	}
	return replayed, nil
}
