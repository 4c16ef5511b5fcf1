package kafka

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return nil
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestTopic(t *testing.T) {
	assert.Equal(t, "natours.booking.created", Topic("booking", "created"))
}

func TestNewEvent(t *testing.T) {
	type bookingData struct {
		TourID string  `json:"tour_id"`
		Price  float64 `json:"price"`
	}

	event, err := NewEvent("booking.created", "bk-1", "booking", "natours", bookingData{TourID: "t-1", Price: 497})
	require.NoError(t, err)

	assert.NotEmpty(t, event.EventID)
	assert.Equal(t, 1, event.Version)
	assert.WithinDuration(t, time.Now().UTC(), event.Timestamp, 2*time.Second)

	var got bookingData
	require.NoError(t, event.UnmarshalData(&got))
	assert.Equal(t, "t-1", got.TourID)
	assert.Equal(t, 497.0, got.Price)
}

func TestNewEvent_InvalidData(t *testing.T) {
	_, err := NewEvent("x", "agg", "test", "natours", make(chan int))
	require.Error(t, err)
}

func TestProducer_Publish(t *testing.T) {
	w := &recordingWriter{}
	p := newProducer(w, []string{"localhost:9092"}, newTestLogger())

	event, err := NewEvent("review.created", "tour-1", "tour", "natours", map[string]string{"review_id": "r-1"})
	require.NoError(t, err)
	event.WithCorrelationID("corr-1")

	topic := Topic("review", "created")
	before := testutil.ToFloat64(producerMessagesPublished.WithLabelValues(topic))
	require.NoError(t, p.Publish(context.Background(), topic, event))

	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.Equal(t, topic, msg.Topic)
	assert.Equal(t, "tour-1", string(msg.Key))

	headers := map[string]string{}
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, "review.created", headers["event_type"])
	assert.Equal(t, "corr-1", headers["correlation_id"])

	decoded, err := UnmarshalEvent(msg.Value)
	require.NoError(t, err)
	assert.Equal(t, event.EventID, decoded.EventID)

	assert.Equal(t, before+1, testutil.ToFloat64(producerMessagesPublished.WithLabelValues(topic)))
}

func TestProducer_PublishError(t *testing.T) {
	w := &recordingWriter{err: errors.New("leader not available")}
	p := newProducer(w, nil, newTestLogger())

	event, err := NewEvent("booking.created", "bk-1", "booking", "natours", nil)
	require.NoError(t, err)

	err = p.Publish(context.Background(), Topic("booking", "created"), event)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "leader not available")
}

func TestProducer_PingWithoutBrokers(t *testing.T) {
	p := newProducer(&recordingWriter{}, nil, newTestLogger())
	assert.Error(t, p.Ping(context.Background()))
}

func TestProducer_Close(t *testing.T) {
	w := &recordingWriter{}
	require.NoError(t, newProducer(w, nil, newTestLogger()).Close())
	assert.True(t, w.closed)
}
