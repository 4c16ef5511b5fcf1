package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ploop3/Natours/internal/checkout"
	"github.com/ploop3/Natours/internal/domain"
	"github.com/ploop3/Natours/internal/event"
	"github.com/ploop3/Natours/internal/query"
	"github.com/ploop3/Natours/internal/store"
	apperrors "github.com/ploop3/Natours/pkg/errors"
)

// BookingService sells tours through the checkout provider and records the
// resulting bookings.
type BookingService struct {
	*Resource[domain.Booking]
	bookings      store.Collection[domain.Booking]
	tours         store.Collection[domain.Tour]
	users         store.Collection[domain.User]
	provider      checkout.Provider
	webhookSecret []byte
	events        *event.Producer
	logger        *slog.Logger
	now           func() time.Time
}

// NewBookingService creates a BookingService. Callbacks must be signed with
// webhookSecret.
func NewBookingService(
	bookings store.Collection[domain.Booking],
	tours store.Collection[domain.Tour],
	users store.Collection[domain.User],
	provider checkout.Provider,
	webhookSecret string,
	events *event.Producer,
	logger *slog.Logger,
) *BookingService {
	return &BookingService{
		Resource:      NewResource(bookings, "booking"),
		bookings:      bookings,
		tours:         tours,
		users:         users,
		provider:      provider,
		webhookSecret: []byte(webhookSecret),
		events:        events,
		logger:        logger,
		now:           time.Now,
	}
}

// CheckoutURLs are where the provider sends the customer afterwards.
type CheckoutURLs struct {
	Success string
	Cancel  string
}

// CheckoutSession opens a payment session for u buying tourID.
func (s *BookingService) CheckoutSession(ctx context.Context, u *domain.User, tourID string, urls CheckoutURLs) (*checkout.Session, error) {
	tour, err := s.tours.FindOne(ctx, query.ByID(tourID).And(visibleTours))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperrors.NotFound("tour", tourID)
		}
		return nil, fmt.Errorf("get tour %s: %w", tourID, err)
	}

	sess, err := s.provider.CreateSession(ctx, checkout.SessionRequest{
		Tour:       tour,
		User:       u,
		SuccessURL: urls.Success,
		CancelURL:  urls.Cancel,
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "checkout session created",
		slog.String("session_id", sess.ID),
		slog.String("tour_id", tourID),
	)
	return sess, nil
}

// ConfirmCheckout handles a signed provider callback. A completed session
// becomes a booking; other callback types are acknowledged and ignored, as
// are repeated deliveries of a session already booked.
func (s *BookingService) ConfirmCheckout(ctx context.Context, body []byte, signature string) (*domain.Booking, error) {
	if err := checkout.VerifySignature(s.webhookSecret, body, signature); err != nil {
		return nil, apperrors.InvalidInput("webhook error: " + err.Error())
	}
	cb, err := checkout.ParseCallback(body)
	if err != nil {
		return nil, apperrors.InvalidInput("webhook error: malformed body")
	}
	if cb.Type != checkout.EventSessionCompleted {
		return nil, nil
	}
	sess := cb.Data.Object

	u, err := findActive(ctx, s.users, query.Eq("email", domain.NormalizeEmail(sess.CustomerEmail)))
	if err != nil {
		return nil, fmt.Errorf("customer of session %s: %w", sess.ID, err)
	}

	b := &domain.Booking{
		ID:        uuid.NewString(),
		TourID:    sess.ClientReferenceID,
		UserID:    u.ID,
		Price:     sess.Price(),
		Paid:      true,
		SessionID: sess.ID,
		CreatedAt: s.now().UTC(),
	}
	if err := s.bookings.Insert(ctx, b); err != nil {
		if errors.Is(err, store.ErrConflict) {
			existing, findErr := s.bookings.FindOne(ctx, query.Filter{query.Eq("session_id", sess.ID)})
			if findErr == nil {
				return existing, nil
			}
		}
		return nil, fmt.Errorf("create booking: %w", err)
	}

	s.events.BookingCreated(ctx, b)
	s.logger.InfoContext(ctx, "booking created",
		slog.String("booking_id", b.ID),
		slog.String("tour_id", b.TourID),
		slog.String("session_id", b.SessionID),
	)
	return b, nil
}

// CreateBookingInput is a booking entered by staff.
type CreateBookingInput struct {
	TourID string  `json:"tour_id" validate:"required,uuid"`
	UserID string  `json:"user_id" validate:"required,uuid"`
	Price  float64 `json:"price" validate:"required,gt=0"`
	Paid   *bool   `json:"paid"`
}

// Create records a booking without a checkout session.
func (s *BookingService) Create(ctx context.Context, in *CreateBookingInput) (*domain.Booking, error) {
	b := &domain.Booking{
		ID:        uuid.NewString(),
		TourID:    in.TourID,
		UserID:    in.UserID,
		Price:     in.Price,
		Paid:      in.Paid == nil || *in.Paid,
		CreatedAt: s.now().UTC(),
	}
	if err := s.bookings.Insert(ctx, b); err != nil {
		return nil, fmt.Errorf("create booking: %w", err)
	}
	return b, nil
}

// UpdateBookingInput is a partial booking update.
type UpdateBookingInput struct {
	Price *float64 `json:"price,omitempty" validate:"omitempty,gt=0"`
	Paid  *bool    `json:"paid,omitempty"`
}

// Update applies a partial update.
func (s *BookingService) Update(ctx context.Context, id string, in *UpdateBookingInput) (*domain.Booking, error) {
	p, err := store.PatchOf(in)
	if err != nil {
		return nil, err
	}
	return s.Resource.Update(ctx, id, p)
}

// MyTours returns the tours u has booked.
func (s *BookingService) MyTours(ctx context.Context, u *domain.User) ([]domain.Tour, error) {
	recs, err := s.bookings.Find(ctx, query.All(query.Filter{query.Eq("user_id", u.ID)}))
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	bookings, err := store.Decode[domain.Booking](recs)
	if err != nil {
		return nil, err
	}
	if len(bookings) == 0 {
		return []domain.Tour{}, nil
	}

	ids := make([]any, len(bookings))
	for i, b := range bookings {
		ids[i] = b.TourID
	}
	recs, err = s.tours.Find(ctx, query.All(query.Filter{query.In("id", ids...)}))
	if err != nil {
		return nil, fmt.Errorf("list booked tours: %w", err)
	}
	return store.Decode[domain.Tour](recs)
}
