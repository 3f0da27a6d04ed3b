package streams

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	domain "signalcore/internal/core/domain/telemetry"
	"signalcore/internal/infrastructure/database"
)

// cdcChannel implements both domain.CDCPublisher and domain.CDCConsumer over
// a single Redis stream carrying compact, uncompressed key/value records —
// not the codec's zlib wire form, since CDC only ever carries identifiers,
// never payloads.
type cdcChannel struct {
	redis     *database.RedisDB
	stream    string
	group     string
	maxLength int64
	logger    *logrus.Logger
}

// NewCDCChannel returns the CDC fan-out publisher/consumer bound to the
// "slowpath" consumer group on the configured cdc stream.
func NewCDCChannel(redisDB *database.RedisDB, stream, group string, maxLength int64, logger *logrus.Logger) (*cdcChannel, error) {
	ch := &cdcChannel{redis: redisDB, stream: stream, group: group, maxLength: maxLength, logger: logger}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := redisDB.Client.XGroupCreateMkStream(ctx, stream, group, "$").Err(); err != nil && !isBusyGroupErr(err) {
		return nil, fmt.Errorf("ensure cdc group: %w", err)
	}
	return ch, nil
}

func (c *cdcChannel) Publish(ctx context.Context, records []*domain.CDCRecord) error {
	for _, rec := range records {
		_, err := c.redis.Client.XAdd(ctx, &redis.XAddArgs{
			Stream: c.stream,
			Values: map[string]interface{}{
				"raw_row_id": rec.RawRowID,
				"platform":   string(rec.Platform),
				"session_id": rec.SessionID,
				"event_type": string(rec.EventType),
				"timestamp":  rec.Timestamp.UnixNano(),
			},
		}).Result()
		if err != nil {
			return fmt.Errorf("publish cdc record for raw_row_id=%d: %w", rec.RawRowID, err)
		}
	}
	// Approximate MAXLEN trim keeps retention short; best-effort, never
	// blocks publication on failure.
	if c.maxLength > 0 {
		if err := c.redis.Client.XTrimMaxLenApprox(ctx, c.stream, c.maxLength, 0).Err(); err != nil {
			c.logger.WithError(err).Debug("cdc stream trim failed")
		}
	}
	return nil
}

func (c *cdcChannel) Read(ctx context.Context, consumer string, count, blockMs int64) ([]domain.CDCDelivery, error) {
	res, err := c.redis.Client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.group,
		Consumer: consumer,
		Streams:  []string{c.stream, ">"},
		Count:    count,
		Block:    msToDuration(blockMs),
	}).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("read cdc: %w", err)
	}

	var out []domain.CDCDelivery
	for _, s := range res {
		for _, msg := range s.Messages {
			rec, parseErr := parseCDCRecord(msg.Values)
			if parseErr != nil {
				c.logger.WithError(parseErr).WithField("stream_id", msg.ID).Warn("dropping undecodable cdc entry")
				continue
			}
			out = append(out, domain.CDCDelivery{StreamID: msg.ID, Record: rec})
		}
	}
	return out, nil
}

func (c *cdcChannel) Ack(ctx context.Context, consumer string, streamIDs ...string) error {
	if len(streamIDs) == 0 {
		return nil
	}
	return c.redis.Client.XAck(ctx, c.stream, c.group, streamIDs...).Err()
}

func parseCDCRecord(values map[string]interface{}) (domain.CDCRecord, error) {
	rowID, err := toInt64(values["raw_row_id"])
	if err != nil {
		return domain.CDCRecord{}, fmt.Errorf("raw_row_id: %w", err)
	}
	ts, err := toInt64(values["timestamp"])
	if err != nil {
		return domain.CDCRecord{}, fmt.Errorf("timestamp: %w", err)
	}
	sessionID, _ := values["session_id"].(string)
	platform, _ := values["platform"].(string)
	eventType, _ := values["event_type"].(string)

	return domain.CDCRecord{
		RawRowID:  rowID,
		Platform:  domain.Platform(platform),
		SessionID: sessionID,
		EventType: domain.EventType(eventType),
		Timestamp: time.Unix(0, ts),
	}, nil
}

func toInt64(v interface{}) (int64, error) {
	switch t := v.(type) {
	case string:
		return strconv.ParseInt(t, 10, 64)
	case int64:
		return t, nil
	case int:
		return int64(t), nil
	default:
		return 0, fmt.Errorf("unexpected type %T", v)
	}
}
