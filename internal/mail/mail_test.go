package mail

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "github.com/ploop3/Natours/pkg/errors"
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

func TestKafkaSender_Send(t *testing.T) {
	pub := new(mockPublisher)
	pub.On("Publish", mock.Anything, "natours.notification.email.requested", mock.MatchedBy(func(e *pkgkafka.Event) bool {
		var data EmailRequestedData
		if e.UnmarshalData(&data) != nil {
			return false
		}
		return e.AggregateID == "jonas@example.com" &&
			data.Kind == "password-reset" &&
			data.URL == "https://natours.dev/api/v1/users/resetPassword/abc" &&
			data.Subject == KindPasswordReset.Subject()
	})).Return(nil)

	s := NewKafkaSender(pub, "natours", newTestLogger())
	err := s.Send(context.Background(), Message{
		Kind: KindPasswordReset,
		To:   "jonas@example.com",
		Name: "Jonas",
		URL:  "https://natours.dev/api/v1/users/resetPassword/abc",
	})
	require.NoError(t, err)
	pub.AssertExpectations(t)
}

func TestKafkaSender_PublishFailureIsDeliveryFailure(t *testing.T) {
	pub := new(mockPublisher)
	pub.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("broker down"))

	err := NewKafkaSender(pub, "natours", newTestLogger()).Send(context.Background(), Message{Kind: KindWelcome, To: "a@b.c"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDeliveryFailed)
	assert.ErrorIs(t, err, apperrors.ErrDeliveryFailed)
	assert.Contains(t, err.Error(), "broker down")
}

func TestLogSender(t *testing.T) {
	var buf bytes.Buffer
	s := NewLogSender(slog.New(slog.NewJSONHandler(&buf, nil)))

	require.NoError(t, s.Send(context.Background(), Message{Kind: KindWelcome, To: "a@b.c", URL: "http://x/me"}))
	assert.Contains(t, buf.String(), `"kind":"welcome"`)
	assert.Contains(t, buf.String(), "Welcome to the Natours Family!")
}

func TestKind_Subject(t *testing.T) {
	assert.Equal(t, "custom", Kind("custom").Subject())
}
