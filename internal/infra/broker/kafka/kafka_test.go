package kafka

import (
	"context"
	"errors"
	"testing"

	"github.com/IBM/sarama"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"staybook/internal/app/commands"
	"staybook/internal/app/dto"
	"staybook/internal/app/handlers/feed"
)

type commandBusMock struct {
	mock.Mock
}

func (m *commandBusMock) Dispatch(ctx context.Context, cmd commands.Command) (any, error) {
	args := m.Called(ctx, cmd)
	return args.Get(0), args.Error(1)
}

type inboxMock struct {
	mock.Mock
}

func (m *inboxMock) Seen(ctx context.Context, id string) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *inboxMock) Forget(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func message(value string) *sarama.ConsumerMessage {
	return &sarama.ConsumerMessage{Topic: "staybook.booking.events.v1", Value: []byte(value)}
}

const approvedEvent = `{"specversion":"1.0","id":"evt-1","type":"booking.approved.v1","data":{"booking_id":"b-1","property_id":"p-1"}}`

func TestFeedRefresher_PublishesFeed(t *testing.T) {
	bus := &commandBusMock{}
	inbox := &inboxMock{}
	inbox.On("Seen", mock.Anything, "evt-1").Return(false, nil)
	bus.On("Dispatch", mock.Anything, feed.PublishCalendarFeedCommand{PropertyID: "p-1"}).
		Return(&dto.CalendarFeed{PropertyID: "p-1", Location: "https://cdn/p-1.ics", Events: 2}, nil)

	r := &FeedRefresher{Commands: bus, Inbox: inbox}
	require.NoError(t, r.Handle(context.Background(), message(approvedEvent)))
	bus.AssertExpectations(t)
	inbox.AssertExpectations(t)
}

func TestFeedRefresher_SkipsDuplicates(t *testing.T) {
	bus := &commandBusMock{}
	inbox := &inboxMock{}
	inbox.On("Seen", mock.Anything, "evt-1").Return(true, nil)

	r := &FeedRefresher{Commands: bus, Inbox: inbox}
	require.NoError(t, r.Handle(context.Background(), message(approvedEvent)))
	bus.AssertNotCalled(t, "Dispatch", mock.Anything, mock.Anything)
}

func TestFeedRefresher_ForgetsOnFailure(t *testing.T) {
	bus := &commandBusMock{}
	inbox := &inboxMock{}
	inbox.On("Seen", mock.Anything, "evt-1").Return(false, nil)
	inbox.On("Forget", mock.Anything, "evt-1").Return(nil)
	bus.On("Dispatch", mock.Anything, mock.Anything).Return(nil, errors.New("s3 down"))

	r := &FeedRefresher{Commands: bus, Inbox: inbox}
	err := r.Handle(context.Background(), message(approvedEvent))
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrPermanent))
	inbox.AssertExpectations(t)
}

func TestFeedRefresher_BadPayloadIsPermanent(t *testing.T) {
	r := &FeedRefresher{Commands: &commandBusMock{}}
	err := r.Handle(context.Background(), message(`not json`))
	assert.ErrorIs(t, err, ErrPermanent)
}

func TestFeedRefresher_IgnoresEventsWithoutProperty(t *testing.T) {
	bus := &commandBusMock{}
	r := &FeedRefresher{Commands: bus}
	require.NoError(t, r.Handle(context.Background(), message(`{"id":"evt-2","data":{}}`)))
	bus.AssertNotCalled(t, "Dispatch", mock.Anything, mock.Anything)
}

type handlerFunc func(ctx context.Context, msg *sarama.ConsumerMessage) error

func (f handlerFunc) Handle(ctx context.Context, msg *sarama.ConsumerMessage) error { return f(ctx, msg) }

func TestDeliver_RetriesTransientErrors(t *testing.T) {
	calls := 0
	h := consumerGroupHandler{attempts: 3, handler: handlerFunc(func(context.Context, *sarama.ConsumerMessage) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})}
	require.NoError(t, h.deliver(context.Background(), message("{}")))
	assert.Equal(t, 3, calls)
}

func TestDeliver_StopsOnPermanentError(t *testing.T) {
	calls := 0
	h := consumerGroupHandler{attempts: 3, handler: handlerFunc(func(context.Context, *sarama.ConsumerMessage) error {
		calls++
		return ErrPermanent
	})}
	assert.ErrorIs(t, h.deliver(context.Background(), message("{}")), ErrPermanent)
	assert.Equal(t, 1, calls)
}

func TestNewMessage_SortsHeaders(t *testing.T) {
	msg := newMessage("t", "p-1", []byte("x"), map[string]string{"z": "1", "a": "2"})
	require.Len(t, msg.Headers, 2)
	assert.Equal(t, "a", string(msg.Headers[0].Key))
	assert.Equal(t, "z", string(msg.Headers[1].Key))
}

func TestFeedTopics(t *testing.T) {
	assert.Equal(t, []string{"staybook.booking.events.v1", "staybook.availability.events.v1"}, FeedTopics("staybook."))
}

func TestProducer_NilIsClosed(t *testing.T) {
	var p *Producer
	assert.ErrorIs(t, p.Publish(context.Background(), "t", "k", nil, nil), ErrProducerClosed)
}
