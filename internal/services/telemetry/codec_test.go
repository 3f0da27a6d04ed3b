package telemetry

import (
	"encoding/base64"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "signalcore/internal/core/domain/telemetry"
	"signalcore/pkg/ulid"
)

func validEvent() *domain.Event {
	return &domain.Event{
		EventID:           ulid.New(),
		Platform:          domain.PlatformClaude,
		ExternalSessionID: "session-1",
		EventType:         domain.EventTypeUserPromptSubmit,
		Timestamp:         time.Now().UTC(),
		Payload:           map[string]interface{}{"text": "hello"},
	}
}

func TestZlibCodec_EncodeDecode_RoundTrips(t *testing.T) {
	codec := NewCodec()
	event := validEvent()

	wire, err := codec.Encode(event)
	require.NoError(t, err)
	assert.NotEmpty(t, wire)

	decoded, err := codec.Decode(wire)
	require.NoError(t, err)
	assert.Equal(t, event.EventID, decoded.EventID)
	assert.Equal(t, event.Platform, decoded.Platform)
	assert.Equal(t, event.ExternalSessionID, decoded.ExternalSessionID)
	assert.Equal(t, event.EventType, decoded.EventType)
	assert.Equal(t, event.Payload["text"], decoded.Payload["text"])
}

func TestZlibCodec_Validate(t *testing.T) {
	codec := NewCodec()

	tests := []struct {
		name    string
		mutate  func(*domain.Event)
		wantErr bool
	}{
		{"valid event", func(e *domain.Event) {}, false},
		{"zero event_id", func(e *domain.Event) { e.EventID = ulid.ULID{} }, true},
		{"zero timestamp", func(e *domain.Event) { e.Timestamp = time.Time{} }, true},
		{"empty platform", func(e *domain.Event) { e.Platform = "" }, true},
		{"empty event_type", func(e *domain.Event) { e.EventType = "" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event := validEvent()
			tt.mutate(event)

			err := codec.Validate(event)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, domain.ErrSchemaInvalid)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestZlibCodec_Validate_NilEvent(t *testing.T) {
	codec := NewCodec()
	err := codec.Validate(nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrSchemaInvalid)
}

func TestZlibCodec_Encode_RejectsInvalidEvent(t *testing.T) {
	codec := NewCodec()
	event := validEvent()
	event.Platform = ""

	_, err := codec.Encode(event)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrSchemaInvalid)
}

func TestZlibCodec_Encode_RejectsOversizedPayload(t *testing.T) {
	codec := NewCodec()
	event := validEvent()

	// Random, incompressible payload well past the 1 MiB post-compression
	// ceiling — zlib can't shrink it below the limit.
	raw := make([]byte, 2_000_000)
	rand.New(rand.NewSource(1)).Read(raw)
	event.Payload = map[string]interface{}{"blob": base64.StdEncoding.EncodeToString(raw)}

	_, err := codec.Encode(event)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrPayloadTooLarge)
}

func TestZlibCodec_Decode_RejectsGarbage(t *testing.T) {
	codec := NewCodec()
	_, err := codec.Decode([]byte("not zlib data"))
	require.Error(t, err)
}
