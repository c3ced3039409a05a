package schedule

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"staybook/internal/app/commands"
	"staybook/internal/app/dto"
	bookingapp "staybook/internal/app/handlers/booking"
)

type busMock struct {
	mock.Mock
}

func (m *busMock) Dispatch(ctx context.Context, cmd commands.Command) (any, error) {
	args := m.Called(ctx, cmd)
	return args.Get(0), args.Error(1)
}

func TestRunNow_DispatchesSweepWithClock(t *testing.T) {
	now := time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)
	bus := &busMock{}
	bus.On("Dispatch", mock.Anything, bookingapp.CompleteFinishedStaysCommand{Now: now}).
		Return(&dto.CompletionReport{Completed: []string{"b-1"}}, nil).Once()

	s := &Scheduler{Commands: bus, Now: func() time.Time { return now }}
	report, err := s.RunNow(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []string{"b-1"}, report.Completed)
	assert.Equal(t, now, s.LastRun())
	bus.AssertExpectations(t)
}

func TestStart_RejectsBadSpec(t *testing.T) {
	s := &Scheduler{Commands: &busMock{}, Spec: "not a spec"}
	assert.Error(t, s.Start(context.Background()))
}

func TestStart_Twice(t *testing.T) {
	bus := &busMock{}
	bus.On("Dispatch", mock.Anything, mock.Anything).Return(&dto.CompletionReport{}, nil).Maybe()
	s := &Scheduler{Commands: bus, Spec: "@every 1h"}

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()
	assert.ErrorIs(t, s.Start(context.Background()), ErrAlreadyStarted)
}
