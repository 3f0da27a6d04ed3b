package workers

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"signalcore/internal/config"
)

type mockCompositeService struct{ mock.Mock }

func (m *mockCompositeService) RunOnce(ctx context.Context) (bool, error) {
	args := m.Called(ctx)
	return args.Bool(0), args.Error(1)
}

func TestCompositeUpdater_Run_TicksRunOnceUntilCancelled(t *testing.T) {
	composite := new(mockCompositeService)
	composite.On("RunOnce", mock.Anything).Return(true, nil)

	updater := NewCompositeUpdater(composite, config.CompositeConfig{IntervalSeconds: 0}, logrus.New())
	// time.NewTicker panics on a zero interval, so the interval is set
	// directly before Run; the context deadline below is what actually
	// bounds the test.
	updater.interval = 5 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := updater.Run(ctx)
	require.NoError(t, err)
	composite.AssertExpectations(t)
}

func TestCompositeUpdater_Run_ErrorDoesNotStopTheLoop(t *testing.T) {
	composite := new(mockCompositeService)
	composite.On("RunOnce", mock.Anything).Return(false, assert.AnError)

	updater := NewCompositeUpdater(composite, config.CompositeConfig{IntervalSeconds: 0}, logrus.New())
	updater.interval = 5 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := updater.Run(ctx)
	require.NoError(t, err)
}
