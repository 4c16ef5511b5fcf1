// Package event publishes the domain events of the booking system.
package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ploop3/Natours/internal/domain"
	pkgkafka "github.com/ploop3/Natours/pkg/kafka"
)

// Topics of the domain events.
var (
	TopicUserSignedUp   = pkgkafka.Topic("user", "signed_up")
	TopicReviewChanged  = pkgkafka.Topic("review", "changed")
	TopicBookingCreated = pkgkafka.Topic("booking", "created")
)

// Source identifies events published by this service.
const Source = "natours-api"

// UserSignedUpData is the payload of a user.signed_up event.
type UserSignedUpData struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// ReviewChangedData is the payload of a review.changed event.
type ReviewChangedData struct {
	ID     string  `json:"id"`
	TourID string  `json:"tour_id"`
	UserID string  `json:"user_id"`
	Rating float64 `json:"rating"`
	Action string  `json:"action"`
}

// Review actions.
const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionDeleted = "deleted"
)

// BookingCreatedData is the payload of a booking.created event.
type BookingCreatedData struct {
	ID        string  `json:"id"`
	TourID    string  `json:"tour_id"`
	UserID    string  `json:"user_id"`
	Price     float64 `json:"price"`
	SessionID string  `json:"session_id"`
}

// Producer publishes domain events. Publish failures are logged and
// swallowed: events are notifications, the stored state is the source of
// truth.
type Producer struct {
	publisher pkgkafka.Publisher
	logger    *slog.Logger
}

// NewProducer creates a Producer. A nil publisher disables publishing.
func NewProducer(p pkgkafka.Publisher, logger *slog.Logger) *Producer {
	return &Producer{publisher: p, logger: logger}
}

func (p *Producer) publish(ctx context.Context, topic, eventType, aggregateID, aggregateType string, data any) {
	if p == nil || p.publisher == nil {
		return
	}
	if err := p.send(ctx, topic, eventType, aggregateID, aggregateType, data); err != nil {
		p.logger.WarnContext(ctx, "failed to publish domain event",
			slog.String("event_type", eventType),
			slog.String("aggregate_id", aggregateID),
			slog.String("error", err.Error()),
		)
	}
}

func (p *Producer) send(ctx context.Context, topic, eventType, aggregateID, aggregateType string, data any) error {
	ev, err := pkgkafka.NewEvent(eventType, aggregateID, aggregateType, Source, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", eventType, err)
	}
	if err := p.publisher.Publish(ctx, topic, ev); err != nil {
		return fmt.Errorf("publish %s event: %w", eventType, err)
	}
	return nil
}

// UserSignedUp publishes a user.signed_up event.
func (p *Producer) UserSignedUp(ctx context.Context, u *domain.User) {
	p.publish(ctx, TopicUserSignedUp, "user.signed_up", u.ID, "user", UserSignedUpData{
		ID: u.ID, Name: u.Name, Email: u.Email,
	})
}

// ReviewChanged publishes a review.changed event keyed by tour so that the
// changes of one tour stay ordered.
func (p *Producer) ReviewChanged(ctx context.Context, r *domain.Review, action string) {
	p.publish(ctx, TopicReviewChanged, "review."+action, r.TourID, "tour", ReviewChangedData{
		ID: r.ID, TourID: r.TourID, UserID: r.UserID, Rating: r.Rating, Action: action,
	})
}

// BookingCreated publishes a booking.created event.
func (p *Producer) BookingCreated(ctx context.Context, b *domain.Booking) {
	p.publish(ctx, TopicBookingCreated, "booking.created", b.ID, "booking", BookingCreatedData{
		ID: b.ID, TourID: b.TourID, UserID: b.UserID, Price: b.Price, SessionID: b.SessionID,
	})
}
