package sharedstate

import (
	"strconv"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "signalcore/internal/core/domain/telemetry"
	telemetrysvc "signalcore/internal/services/telemetry"
	"signalcore/pkg/ulid"
)

func TestDLQRepository_ParseEntry_RoundTripsViaCodec(t *testing.T) {
	codec := telemetrysvc.NewCodec()
	repo := &dlqRepository{codec: codec, stream: "telemetry:events.dlq"}

	event := &domain.Event{
		EventID:           ulid.New(),
		Platform:          domain.PlatformClaude,
		ExternalSessionID: "session-1",
		EventType:         domain.EventTypeUserPromptSubmit,
		Timestamp:         time.Now().UTC(),
	}
	wire, err := codec.Encode(event)
	require.NoError(t, err)

	movedAt := time.Now().UTC().Truncate(time.Second)
	msg := redis.XMessage{
		ID: "5-0",
		Values: map[string]interface{}{
			"data":       string(wire),
			"error_code": "INGEST_SCHEMA_INVALID",
			"reason":     "missing event_type",
			"moved_at":   strconv.FormatInt(movedAt.Unix(), 10),
		},
	}

	entry, err := repo.parseEntry(msg)
	require.NoError(t, err)
	assert.Equal(t, "5-0", entry.StreamID)
	assert.Equal(t, event.EventID, entry.Event.EventID)
	assert.Equal(t, "INGEST_SCHEMA_INVALID", entry.ErrorCode)
	assert.Equal(t, "missing event_type", entry.Reason)
	assert.Equal(t, movedAt, entry.MovedAt)
}

func TestDLQRepository_ParseEntry_UndecodableDataErrors(t *testing.T) {
	repo := &dlqRepository{codec: telemetrysvc.NewCodec(), stream: "telemetry:events.dlq"}

	_, err := repo.parseEntry(redis.XMessage{ID: "1-0", Values: map[string]interface{}{"data": "garbage"}})
	assert.Error(t, err)
}

func TestParseMovedAt_InvalidStringReturnsZeroTime(t *testing.T) {
	assert.True(t, parseMovedAt("not-a-timestamp").IsZero())
	assert.True(t, parseMovedAt(nil).IsZero())
}

func TestParseMovedAt_ValidUnixSeconds(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	got := parseMovedAt(strconv.FormatInt(now.Unix(), 10))
	assert.Equal(t, now, got)
}
