package event

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ploop3/Natours/internal/domain"
	pkgkafka "github.com/ploop3/Natours/pkg/kafka"
)

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, topic string, event *pkgkafka.Event) error {
	args := m.Called(ctx, topic, event)
	return args.Error(0)
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestBookingCreated(t *testing.T) {
	pub := new(mockPublisher)
	var got *pkgkafka.Event
	pub.On("Publish", mock.Anything, "natours.booking.created", mock.Anything).
		Run(func(args mock.Arguments) { got = args.Get(2).(*pkgkafka.Event) }).
		Return(nil)

	NewProducer(pub, newTestLogger()).BookingCreated(context.Background(), &domain.Booking{
		ID: "bk-1", TourID: "tour-1", UserID: "user-1", Price: 497, SessionID: "cs_1",
	})

	pub.AssertExpectations(t)
	require.NotNil(t, got)
	assert.Equal(t, "booking.created", got.EventType)
	assert.Equal(t, "bk-1", got.AggregateID)
	assert.Equal(t, Source, got.Source)

	var data BookingCreatedData
	require.NoError(t, got.UnmarshalData(&data))
	assert.Equal(t, 497.0, data.Price)
	assert.Equal(t, "cs_1", data.SessionID)
}

func TestReviewChanged_KeyedByTour(t *testing.T) {
	pub := new(mockPublisher)
	pub.On("Publish", mock.Anything, TopicReviewChanged, mock.MatchedBy(func(e *pkgkafka.Event) bool {
		return e.AggregateID == "tour-1" && e.EventType == "review.deleted"
	})).Return(nil)

	NewProducer(pub, newTestLogger()).ReviewChanged(context.Background(),
		&domain.Review{ID: "r1", TourID: "tour-1", UserID: "u1", Rating: 4}, ActionDeleted)

	pub.AssertExpectations(t)
}

func TestPublishFailureIsSwallowed(t *testing.T) {
	pub := new(mockPublisher)
	pub.On("Publish", mock.Anything, TopicUserSignedUp, mock.Anything).Return(errors.New("no leader"))

	assert.NotPanics(t, func() {
		NewProducer(pub, newTestLogger()).UserSignedUp(context.Background(), &domain.User{ID: "u1"})
	})
	pub.AssertExpectations(t)
}

func TestNilPublisherDisablesEvents(t *testing.T) {
	assert.NotPanics(t, func() {
		NewProducer(nil, newTestLogger()).UserSignedUp(context.Background(), &domain.User{ID: "u1"})
		var p *Producer
		p.BookingCreated(context.Background(), &domain.Booking{ID: "b1"})
	})
}
