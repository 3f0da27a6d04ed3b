// Package streams implements the durable queue (C2) and CDC fan-out (C5)
// over Redis Streams, following the XADD/XREADGROUP/XACK/XCLAIM idiom this
// codebase already uses for telemetry batch ingestion.
package streams

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	domain "signalcore/internal/core/domain/telemetry"
	"signalcore/internal/infrastructure/database"
)

// redisQueue implements domain.Queue over a single Redis client shared by
// every named stream (events, events.dlq, cdc).
type redisQueue struct {
	redis  *database.RedisDB
	codec  domain.Codec
	logger *logrus.Logger
}

// NewQueue returns the Redis Streams-backed durable queue.
func NewQueue(redisDB *database.RedisDB, codec domain.Codec, logger *logrus.Logger) domain.Queue {
	return &redisQueue{redis: redisDB, codec: codec, logger: logger}
}

func (q *redisQueue) Append(ctx context.Context, stream string, event *domain.Event) (string, error) {
	wire, err := q.codec.Encode(event)
	if err != nil {
		return "", err
	}

	id, err := q.redis.Client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: map[string]interface{}{
			"event_id":    event.EventID.String(),
			"retry_count": event.RetryCount,
			"data":        wire,
		},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("append to stream %s: %w", stream, err)
	}
	return id, nil
}

func (q *redisQueue) EnsureGroup(ctx context.Context, stream, group string) error {
	err := q.redis.Client.XGroupCreateMkStream(ctx, stream, group, "$").Err()
	if err != nil && !isBusyGroupErr(err) {
		return fmt.Errorf("ensure group %s on %s: %w", group, stream, err)
	}
	return nil
}

func isBusyGroupErr(err error) bool {
	return err != nil && (err.Error() == "BUSYGROUP Consumer Group name already exists" ||
		len(err.Error()) >= 9 && err.Error()[:9] == "BUSYGROUP")
}

func (q *redisQueue) ReadGroup(ctx context.Context, stream, group, consumer string, count, blockMs int64) ([]domain.QueueEntry, error) {
	res, err := q.redis.Client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    group,
		Consumer: consumer,
		Streams:  []string{stream, ">"},
		Count:    count,
		Block:    msToDuration(blockMs),
	}).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("read_group %s/%s: %w", stream, group, err)
	}

	var entries []domain.QueueEntry
	for _, s := range res {
		for _, msg := range s.Messages {
			entry, decErr := q.toEntry(msg)
			if decErr != nil {
				q.logger.WithError(decErr).WithField("stream_id", msg.ID).Warn("dropping undecodable stream entry")
				continue
			}
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

func (q *redisQueue) toEntry(msg redis.XMessage) (domain.QueueEntry, error) {
	raw, ok := msg.Values["data"].(string)
	if !ok {
		return domain.QueueEntry{}, fmt.Errorf("stream entry %s missing data field", msg.ID)
	}
	event, err := q.codec.Decode([]byte(raw))
	if err != nil {
		return domain.QueueEntry{}, err
	}
	return domain.QueueEntry{StreamID: msg.ID, Event: *event}, nil
}

func (q *redisQueue) Ack(ctx context.Context, stream, group string, streamIDs ...string) error {
	if len(streamIDs) == 0 {
		return nil
	}
	if err := q.redis.Client.XAck(ctx, stream, group, streamIDs...).Err(); err != nil {
		return fmt.Errorf("ack %s/%s: %w", stream, group, err)
	}
	return nil
}

func (q *redisQueue) ClaimStale(ctx context.Context, stream, group, consumer string, minIdleMs int64) ([]domain.QueueEntry, error) {
	msgs, _, err := q.redis.Client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   stream,
		Group:    group,
		Consumer: consumer,
		MinIdle:  msToDuration(minIdleMs),
		Start:    "0",
		Count:    100,
	}).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("claim_stale %s/%s: %w", stream, group, err)
	}

	var entries []domain.QueueEntry
	for _, msg := range msgs {
		entry, decErr := q.toEntry(msg)
		if decErr != nil {
			continue
		}
		entry.Event.RetryCount++
		entries = append(entries, entry)
	}
	return entries, nil
}

func (q *redisQueue) Trim(ctx context.Context, stream string, maxLength int64) error {
	return q.redis.Client.XTrimMaxLenApprox(ctx, stream, maxLength, 0).Err()
}

func (q *redisQueue) Len(ctx context.Context, stream string) (int64, error) {
	return q.redis.Client.XLen(ctx, stream).Result()
}

func msToDuration(ms int64) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
