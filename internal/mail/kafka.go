package mail

import (
	"context"
	"log/slog"

	pkgkafka "github.com/ploop3/Natours/pkg/kafka"
)

// TopicEmailRequested carries email requests to the notification worker.
var TopicEmailRequested = pkgkafka.Topic("notification", "email.requested")

// EmailRequestedData is the payload of an email request event.
type EmailRequestedData struct {
	Kind    string `json:"kind"`
	To      string `json:"to"`
	Name    string `json:"name"`
	Subject string `json:"subject"`
	URL     string `json:"url,omitempty"`
}

// KafkaSender publishes email requests for an external notification worker.
// A publish failure counts as a delivery failure.
type KafkaSender struct {
	publisher pkgkafka.Publisher
	source    string
	logger    *slog.Logger
}

// NewKafkaSender creates a KafkaSender publishing as source.
func NewKafkaSender(p pkgkafka.Publisher, source string, logger *slog.Logger) *KafkaSender {
	return &KafkaSender{publisher: p, source: source, logger: logger}
}

// Send publishes msg keyed by recipient.
func (s *KafkaSender) Send(ctx context.Context, msg Message) error {
	event, err := pkgkafka.NewEvent("email.requested", msg.To, "email", s.source, EmailRequestedData{
		Kind:    string(msg.Kind),
		To:      msg.To,
		Name:    msg.Name,
		Subject: msg.Kind.Subject(),
		URL:     msg.URL,
	})
	if err != nil {
		return deliveryFailed(err)
	}

	if err := s.publisher.Publish(ctx, TopicEmailRequested, event); err != nil {
		return deliveryFailed(err)
	}

	s.logger.DebugContext(ctx, "email requested",
		slog.String("kind", string(msg.Kind)),
		slog.String("event_id", event.EventID),
	)
	return nil
}
