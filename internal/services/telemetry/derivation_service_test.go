package telemetry

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	domain "signalcore/internal/core/domain/telemetry"
	"signalcore/pkg/pagination"
)

// ============================================================================
// Pure helper functions — table-driven.
// ============================================================================

func TestTokenEstimate(t *testing.T) {
	tests := []struct {
		name    string
		payload map[string]interface{}
		field   string
		want    int64
	}{
		{"explicit token count wins", map[string]interface{}{"prompt_tokens": float64(12)}, "prompt", 12},
		{"falls back to char estimate", map[string]interface{}{"prompt": "hello world!"}, "prompt", int64(12/4) + 1},
		{"missing field yields zero", map[string]interface{}{}, "prompt", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tokenEstimate(tt.payload, tt.field))
		})
	}
}

func TestPayloadLength(t *testing.T) {
	assert.Equal(t, 5, payloadLength(map[string]interface{}{"prompt": "hello"}))
	assert.Equal(t, 8, payloadLength(map[string]interface{}{"response": "response"}))
	assert.Equal(t, 0, payloadLength(map[string]interface{}{"other": "value"}))
}

func TestApplyEventToConversation(t *testing.T) {
	tests := []struct {
		name      string
		eventType domain.EventType
		check     func(t *testing.T, conv *domain.Conversation)
	}{
		{
			name:      "user prompt increments turn and user counts",
			eventType: domain.EventTypeUserPromptSubmit,
			check: func(t *testing.T, conv *domain.Conversation) {
				assert.EqualValues(t, 1, conv.TurnCount)
				assert.EqualValues(t, 1, conv.UserMessageCount)
			},
		},
		{
			name:      "assistant reply increments turn and assistant counts",
			eventType: domain.EventTypeAssistantReply,
			check: func(t *testing.T, conv *domain.Conversation) {
				assert.EqualValues(t, 1, conv.TurnCount)
				assert.EqualValues(t, 1, conv.AssistantMessageCount)
			},
		},
		{
			name:      "tool use increments tool invocations only",
			eventType: domain.EventTypePostToolUse,
			check: func(t *testing.T, conv *domain.Conversation) {
				assert.EqualValues(t, 0, conv.TurnCount)
				assert.EqualValues(t, 1, conv.ToolInvocationsCount)
			},
		},
		{
			name:      "session lifecycle events don't affect counters",
			eventType: domain.EventTypeSessionStart,
			check: func(t *testing.T, conv *domain.Conversation) {
				assert.EqualValues(t, 0, conv.TurnCount)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conv := &domain.Conversation{}
			event := &domain.Event{EventType: tt.eventType, Payload: map[string]interface{}{}}
			applyEventToConversation(conv, event)
			tt.check(t, conv)
		})
	}
}

func TestTurnForEvent(t *testing.T) {
	event := &domain.Event{
		EventType: domain.EventTypePostToolUse,
		Timestamp: time.Now().UTC(),
		Payload:   map[string]interface{}{"tool_name": "bash"},
	}
	turn := turnForEvent("session-1", 3, event)
	require.NotNil(t, turn)
	assert.Equal(t, domain.RoleTool, turn.Role)
	assert.Equal(t, int64(3), turn.TurnIndex)
	require.NotNil(t, turn.ToolName)
	assert.Equal(t, "bash", *turn.ToolName)

	// Session lifecycle events produce no turn.
	lifecycle := &domain.Event{EventType: domain.EventTypeSessionEnd}
	assert.Nil(t, turnForEvent("session-1", 0, lifecycle))
}

func TestMetricPointsForEvent(t *testing.T) {
	lifecycle := &domain.Event{EventType: domain.EventTypeSessionStart}
	assert.Nil(t, metricPointsForEvent("session-1", lifecycle))
}

func TestMetricPointsForEvent_ToolEventIsNamedAfterTheLowercasedTool(t *testing.T) {
	toolEvent := &domain.Event{
		EventType: domain.EventTypePostToolUse,
		Timestamp: time.Now().UTC(),
		Payload:   map[string]interface{}{"tool_name": "Read"},
	}
	points := metricPointsForEvent("session-1", toolEvent)
	require.Len(t, points, 1)
	assert.Equal(t, domain.MetricCategoryTools, points[0].Category)
	assert.Equal(t, "read", points[0].Name)
	assert.Equal(t, float64(1), points[0].Value)
}

func TestMetricPointsForEvent_ToolEventWithoutToolNameYieldsNoPoint(t *testing.T) {
	toolEvent := &domain.Event{EventType: domain.EventTypePreToolUse, Timestamp: time.Now().UTC()}
	assert.Nil(t, metricPointsForEvent("session-1", toolEvent))
}

func TestMetricPointsForEvent_UserPromptSubmit_EmitsTokensAndPromptLength(t *testing.T) {
	event := &domain.Event{
		EventType: domain.EventTypeUserPromptSubmit,
		Timestamp: time.Now().UTC(),
		Payload:   map[string]interface{}{"prompt_length": float64(42)},
	}
	points := metricPointsForEvent("session-1", event)
	require.Len(t, points, 2)

	assert.Equal(t, domain.MetricCategoryTokens, points[0].Category)
	assert.Equal(t, "input_tokens", points[0].Name)

	assert.Equal(t, domain.MetricCategoryPrompting, points[1].Category)
	assert.Equal(t, "length", points[1].Name)
	assert.Equal(t, float64(42), points[1].Value)
}

func TestMetricPointsForEvent_UserPromptSubmit_WithoutPromptLengthOmitsPromptingPoint(t *testing.T) {
	event := &domain.Event{EventType: domain.EventTypeUserPromptSubmit, Timestamp: time.Now().UTC()}
	points := metricPointsForEvent("session-1", event)
	require.Len(t, points, 1)
	assert.Equal(t, domain.MetricCategoryTokens, points[0].Category)
}

// ============================================================================
// Mocks for ApplyRecord orchestration.
// ============================================================================

type mockDerivedStore struct{ mock.Mock }

func (m *mockDerivedStore) GetConversation(ctx context.Context, sessionID string) (*domain.Conversation, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Conversation), args.Error(1)
}

func (m *mockDerivedStore) UpsertConversation(ctx context.Context, conv *domain.Conversation) error {
	return m.Called(ctx, conv).Error(0)
}

func (m *mockDerivedStore) AppendTurn(ctx context.Context, turn *domain.Turn) error {
	return m.Called(ctx, turn).Error(0)
}

func (m *mockDerivedStore) UpsertSessionAggregate(ctx context.Context, agg *domain.SessionAggregate) error {
	return m.Called(ctx, agg).Error(0)
}

func (m *mockDerivedStore) ListSessionsByRecency(ctx context.Context, platform domain.Platform, params pagination.Params) ([]*domain.SessionAggregate, error) {
	args := m.Called(ctx, platform, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.SessionAggregate), args.Error(1)
}

type mockMetricsStore struct{ mock.Mock }

func (m *mockMetricsStore) RecordBatch(ctx context.Context, points []*domain.MetricPoint) error {
	return m.Called(ctx, points).Error(0)
}

func (m *mockMetricsStore) Range(ctx context.Context, category domain.MetricCategory, name string, sessionID *string, from, to time.Time, maxPoints int) ([]*domain.MetricPoint, error) {
	args := m.Called(ctx, category, name, sessionID, from, to, maxPoints)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.MetricPoint), args.Error(1)
}

func (m *mockMetricsStore) DeleteOlderThan(ctx context.Context, category domain.MetricCategory, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, category, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

type mockSharedState struct{ mock.Mock }

func (m *mockSharedState) IncrCounter(ctx context.Context, key string, delta int64) (int64, error) {
	args := m.Called(ctx, key, delta)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockSharedState) GetCounter(ctx context.Context, key string) (int64, error) {
	args := m.Called(ctx, key)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockSharedState) SetString(ctx context.Context, key, value string, ttl time.Duration) error {
	return m.Called(ctx, key, value, ttl).Error(0)
}

func (m *mockSharedState) GetString(ctx context.Context, key string) (string, bool, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Bool(1), args.Error(2)
}

func (m *mockSharedState) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, key, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *mockSharedState) ReleaseLock(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

func TestDerivationService_ApplyRecord_SkipsAlreadyAppliedRow(t *testing.T) {
	rawStore := new(mockRawStore)
	derivedStore := new(mockDerivedStore)
	metrics := new(mockMetricsStore)
	shared := new(mockSharedState)

	codec := NewCodec()
	event := validEvent()
	wire, err := codec.Encode(event)
	require.NoError(t, err)

	raw := &domain.RawTrace{RowID: 5, SessionID: "session-1", Platform: domain.PlatformClaude, EventData: wire}
	rawStore.On("GetByRowID", mock.Anything, domain.PlatformClaude, int64(5)).Return(raw, nil)
	derivedStore.On("GetConversation", mock.Anything, "session-1").
		Return(&domain.Conversation{SessionID: "session-1", LastProcessedRowID: 10}, nil)

	svc := NewDerivationService(rawStore, derivedStore, metrics, shared, passthroughTransactor{}, codec, slog.Default())

	err = svc.ApplyRecord(context.Background(), &domain.CDCRecord{RawRowID: 5, Platform: domain.PlatformClaude})
	require.NoError(t, err)

	derivedStore.AssertNotCalled(t, "UpsertConversation", mock.Anything, mock.Anything)
	derivedStore.AssertNotCalled(t, "AppendTurn", mock.Anything, mock.Anything)
}

func TestDerivationService_ApplyRecord_SkipsTrimmedRow(t *testing.T) {
	rawStore := new(mockRawStore)
	derivedStore := new(mockDerivedStore)
	metrics := new(mockMetricsStore)
	shared := new(mockSharedState)

	rawStore.On("GetByRowID", mock.Anything, domain.PlatformClaude, int64(99)).Return(nil, domain.ErrRawRowTrimmed)

	svc := NewDerivationService(rawStore, derivedStore, metrics, shared, passthroughTransactor{}, NewCodec(), slog.Default())

	err := svc.ApplyRecord(context.Background(), &domain.CDCRecord{RawRowID: 99, Platform: domain.PlatformClaude})
	require.NoError(t, err)
	derivedStore.AssertNotCalled(t, "GetConversation", mock.Anything, mock.Anything)
}

func TestDerivationService_ApplyRecord_NewSessionAdvancesState(t *testing.T) {
	rawStore := new(mockRawStore)
	derivedStore := new(mockDerivedStore)
	metrics := new(mockMetricsStore)
	shared := new(mockSharedState)

	codec := NewCodec()
	event := validEvent()
	event.EventType = domain.EventTypeUserPromptSubmit
	wire, err := codec.Encode(event)
	require.NoError(t, err)

	raw := &domain.RawTrace{RowID: 1, SessionID: "session-1", Platform: domain.PlatformClaude, EventData: wire}
	rawStore.On("GetByRowID", mock.Anything, domain.PlatformClaude, int64(1)).Return(raw, nil)
	derivedStore.On("GetConversation", mock.Anything, "session-1").Return(nil, nil)
	derivedStore.On("UpsertConversation", mock.Anything, mock.MatchedBy(func(conv *domain.Conversation) bool {
		return conv.LastProcessedRowID == 1 && conv.TurnCount == 1
	})).Return(nil)
	derivedStore.On("AppendTurn", mock.Anything, mock.Anything).Return(nil)
	derivedStore.On("UpsertSessionAggregate", mock.Anything, mock.Anything).Return(nil)
	metrics.On("RecordBatch", mock.Anything, mock.Anything).Return(nil)

	svc := NewDerivationService(rawStore, derivedStore, metrics, shared, passthroughTransactor{}, codec, slog.Default())

	err = svc.ApplyRecord(context.Background(), &domain.CDCRecord{RawRowID: 1, Platform: domain.PlatformClaude})
	require.NoError(t, err)
	derivedStore.AssertExpectations(t)
	metrics.AssertExpectations(t)
}
