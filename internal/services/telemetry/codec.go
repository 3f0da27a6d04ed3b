// Package telemetry implements the engine's service layer: the C1 codec,
// the C4 fast-path orchestration, the C6 pure derivation functions, and the
// C9 composite computation.
package telemetry

import (
	"bytes"
	"compress/zlib"
	"encoding/json"
	"fmt"
	"io"

	domain "signalcore/internal/core/domain/telemetry"
	"signalcore/pkg/ulid"
)

// maxCompressedBytes is the post-compression size ceiling enforced on
// every encoded event.
const maxCompressedBytes = 1 << 20 // 1 MiB

// zlibLevel matches the compression level every producer and consumer in
// this engine agrees on; changing it changes the wire format.
const zlibLevel = 6

// zlibCodec implements domain.Codec with canonical JSON + zlib level 6.
// encoding/json already serializes map keys in sorted order, which makes
// json.Marshal of the Event struct canonical without a separate canonicalization
// step; no third-party codec in the retrieved corpus implements this exact
// zlib scheme, so this component is built directly on the standard library.
type zlibCodec struct{}

// NewCodec returns the canonical-JSON + zlib codec used by the fast path.
func NewCodec() domain.Codec {
	return &zlibCodec{}
}

func (c *zlibCodec) Validate(event *domain.Event) error {
	if event == nil {
		return fmt.Errorf("%w: nil event", domain.ErrSchemaInvalid)
	}
	if event.EventID.IsZero() {
		return fmt.Errorf("%w: event_id is required", domain.ErrSchemaInvalid)
	}
	if event.Timestamp.IsZero() {
		return fmt.Errorf("%w: timestamp is required", domain.ErrSchemaInvalid)
	}
	if event.Platform == "" {
		return fmt.Errorf("%w: platform is required", domain.ErrSchemaInvalid)
	}
	if event.EventType == "" {
		return fmt.Errorf("%w: event_type is required", domain.ErrSchemaInvalid)
	}
	return nil
}

func (c *zlibCodec) Encode(event *domain.Event) ([]byte, error) {
	if err := c.Validate(event); err != nil {
		return nil, err
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}

	var buf bytes.Buffer
	w, err := zlib.NewWriterLevel(&buf, zlibLevel)
	if err != nil {
		return nil, fmt.Errorf("init zlib writer: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("compress event: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("flush zlib writer: %w", err)
	}

	if buf.Len() > maxCompressedBytes {
		return nil, fmt.Errorf("%w: %d bytes", domain.ErrPayloadTooLarge, buf.Len())
	}

	return buf.Bytes(), nil
}

func (c *zlibCodec) Decode(data []byte) (*domain.Event, error) {
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("init zlib reader: %w", err)
	}
	defer r.Close()

	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("decompress event: %w", err)
	}

	var event domain.Event
	if err := json.Unmarshal(raw, &event); err != nil {
		return nil, fmt.Errorf("unmarshal event: %w", err)
	}
	return &event, nil
}

// NewEventID is a thin wrapper kept here so callers in this package never
// import pkg/ulid directly for event generation, matching the convention
// elsewhere of centralizing id minting per concern.
func NewEventID() ulid.ULID {
	return ulid.New()
}
