package events

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"signalcore/internal/config"
	domain "signalcore/internal/core/domain/telemetry"
)

type mockQueue struct{ mock.Mock }

func (m *mockQueue) Append(ctx context.Context, stream string, event *domain.Event) (string, error) {
	args := m.Called(ctx, stream, event)
	return args.String(0), args.Error(1)
}

func (m *mockQueue) ReadGroup(ctx context.Context, stream, group, consumer string, count, blockMs int64) ([]domain.QueueEntry, error) {
	args := m.Called(ctx, stream, group, consumer, count, blockMs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.QueueEntry), args.Error(1)
}

func (m *mockQueue) Ack(ctx context.Context, stream, group string, streamIDs ...string) error {
	args := m.Called(ctx, stream, group, streamIDs)
	return args.Error(0)
}

func (m *mockQueue) ClaimStale(ctx context.Context, stream, group, consumer string, minIdleMs int64) ([]domain.QueueEntry, error) {
	args := m.Called(ctx, stream, group, consumer, minIdleMs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.QueueEntry), args.Error(1)
}

func (m *mockQueue) EnsureGroup(ctx context.Context, stream, group string) error {
	return m.Called(ctx, stream, group).Error(0)
}

func (m *mockQueue) Trim(ctx context.Context, stream string, maxLength int64) error {
	return m.Called(ctx, stream, maxLength).Error(0)
}

func (m *mockQueue) Len(ctx context.Context, stream string) (int64, error) {
	args := m.Called(ctx, stream)
	return args.Get(0).(int64), args.Error(1)
}

func testConfig() *config.Config {
	return &config.Config{Queue: config.QueueConfig{MainStream: "telemetry:events"}}
}

func newIngestContext(body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	recorder := httptest.NewRecorder()
	ctx, _ := gin.CreateTestContext(recorder)
	req := httptest.NewRequest(http.MethodPost, "/events", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	ctx.Request = req
	return ctx, recorder
}

func validEventRequest() eventRequest {
	return eventRequest{
		Platform:          "claude",
		ExternalSessionID: "session-1",
		HookType:          "PreToolUse",
		EventType:         "tool_call",
		Timestamp:         time.Now().UTC(),
		Payload:           map[string]interface{}{"tool": "Edit"},
	}
}

func TestHandler_Ingest_AllValidReturnsAccepted(t *testing.T) {
	queue := new(mockQueue)
	handler := NewHandler(queue, testConfig(), logrus.New())

	queue.On("Append", mock.Anything, "telemetry:events", mock.AnythingOfType("*telemetry.Event")).
		Return("1-0", nil).Twice()

	body, err := json.Marshal(ingestRequest{Events: []eventRequest{validEventRequest(), validEventRequest()}})
	require.NoError(t, err)

	ctx, recorder := newIngestContext(body)
	handler.Ingest(ctx)

	require.Equal(t, http.StatusAccepted, recorder.Code)

	var resp struct {
		Data ingestResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Data.Accepted)
	assert.Equal(t, 0, resp.Data.Rejected)
	queue.AssertExpectations(t)
}

func TestHandler_Ingest_PartialFailureStillReturnsAccepted(t *testing.T) {
	queue := new(mockQueue)
	handler := NewHandler(queue, testConfig(), logrus.New())

	queue.On("Append", mock.Anything, "telemetry:events", mock.AnythingOfType("*telemetry.Event")).
		Return("1-0", nil).Once()
	queue.On("Append", mock.Anything, "telemetry:events", mock.AnythingOfType("*telemetry.Event")).
		Return("", assert.AnError).Once()

	body, err := json.Marshal(ingestRequest{Events: []eventRequest{validEventRequest(), validEventRequest()}})
	require.NoError(t, err)

	ctx, recorder := newIngestContext(body)
	handler.Ingest(ctx)

	require.Equal(t, http.StatusAccepted, recorder.Code)

	var resp struct {
		Data ingestResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Data.Accepted)
	assert.Equal(t, 1, resp.Data.Rejected)
	require.Len(t, resp.Data.Errors, 1)
	queue.AssertExpectations(t)
}

func TestHandler_Ingest_AllRejectedReturnsServiceUnavailable(t *testing.T) {
	queue := new(mockQueue)
	handler := NewHandler(queue, testConfig(), logrus.New())

	queue.On("Append", mock.Anything, "telemetry:events", mock.AnythingOfType("*telemetry.Event")).
		Return("", assert.AnError)

	body, err := json.Marshal(ingestRequest{Events: []eventRequest{validEventRequest()}})
	require.NoError(t, err)

	ctx, recorder := newIngestContext(body)
	handler.Ingest(ctx)

	assert.Equal(t, http.StatusServiceUnavailable, recorder.Code)
	queue.AssertExpectations(t)
}

func TestHandler_Ingest_InvalidBodyReturnsBadRequest(t *testing.T) {
	queue := new(mockQueue)
	handler := NewHandler(queue, testConfig(), logrus.New())

	ctx, recorder := newIngestContext([]byte(`{"events": "not-an-array"}`))
	handler.Ingest(ctx)

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	queue.AssertNotCalled(t, "Append", mock.Anything, mock.Anything, mock.Anything)
}

func TestHandler_Ingest_MissingRequiredFieldReturnsBadRequest(t *testing.T) {
	queue := new(mockQueue)
	handler := NewHandler(queue, testConfig(), logrus.New())

	body, err := json.Marshal(ingestRequest{Events: []eventRequest{{
		ExternalSessionID: "session-1",
		EventType:         "tool_call",
		Timestamp:         time.Now().UTC(),
	}}})
	require.NoError(t, err)

	ctx, recorder := newIngestContext(body)
	handler.Ingest(ctx)

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	queue.AssertNotCalled(t, "Append", mock.Anything, mock.Anything, mock.Anything)
}
