package telemetry

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	domain "signalcore/internal/core/domain/telemetry"
)

func TestCompositeService_RunOnce_SkipsWhenLockHeldElsewhere(t *testing.T) {
	shared := new(mockSharedState)
	metrics := new(mockMetricsStore)

	shared.On("TryLock", mock.Anything, domain.SharedKeyCompositeLock, 30*time.Second).Return(false, nil)

	svc := NewCompositeService(shared, metrics, 30*time.Second, slog.Default())

	ran, err := svc.RunOnce(context.Background())
	require.NoError(t, err)
	require.False(t, ran)
	shared.AssertNotCalled(t, "GetCounter", mock.Anything, mock.Anything)
}

func TestCompositeService_RunOnce_FoldsGlobalCountersIntoComposite(t *testing.T) {
	shared := new(mockSharedState)
	metrics := new(mockMetricsStore)

	shared.On("TryLock", mock.Anything, domain.SharedKeyCompositeLock, 30*time.Second).Return(true, nil)
	shared.On("ReleaseLock", mock.Anything, domain.SharedKeyCompositeLock).Return(nil)

	shared.On("GetCounter", mock.Anything, domain.GlobalKeyToolInvocations).Return(int64(15), nil).Once()
	shared.On("GetCounter", mock.Anything, domain.GlobalKeyToolAcceptances).Return(int64(13), nil).Once()

	var recorded []*domain.MetricPoint
	metrics.On("RecordBatch", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		recorded = args.Get(1).([]*domain.MetricPoint)
	}).Return(nil)

	shared.On("SetString", mock.Anything, domain.SharedKeyLastCompositeCalcAt, mock.Anything, time.Duration(0)).Return(nil)

	svc := NewCompositeService(shared, metrics, 30*time.Second, slog.Default())

	ran, err := svc.RunOnce(context.Background())
	require.NoError(t, err)
	require.True(t, ran)

	require.Len(t, recorded, 2)
	require.Equal(t, "tool_invocations_total", recorded[0].Name)
	require.Equal(t, float64(15), recorded[0].Value)
	require.Equal(t, "tool_acceptance_rate", recorded[1].Name)
	require.InDelta(t, 13.0/15.0, recorded[1].Value, 0.0001)

	shared.AssertExpectations(t)
	shared.AssertNumberOfCalls(t, "GetCounter", 2)
	metrics.AssertExpectations(t)
}

func TestCompositeService_RunOnce_NoInvocations_OmitsAcceptanceRate(t *testing.T) {
	shared := new(mockSharedState)
	metrics := new(mockMetricsStore)

	shared.On("TryLock", mock.Anything, mock.Anything, mock.Anything).Return(true, nil)
	shared.On("ReleaseLock", mock.Anything, mock.Anything).Return(nil)
	shared.On("GetCounter", mock.Anything, domain.GlobalKeyToolInvocations).Return(int64(0), nil)
	shared.On("GetCounter", mock.Anything, domain.GlobalKeyToolAcceptances).Return(int64(0), nil)

	var recorded []*domain.MetricPoint
	metrics.On("RecordBatch", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		recorded = args.Get(1).([]*domain.MetricPoint)
	}).Return(nil)
	shared.On("SetString", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	svc := NewCompositeService(shared, metrics, 30*time.Second, slog.Default())

	ran, err := svc.RunOnce(context.Background())
	require.NoError(t, err)
	require.True(t, ran)
	require.Len(t, recorded, 1)
	require.Equal(t, "tool_invocations_total", recorded[0].Name)
}
